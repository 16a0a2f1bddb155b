// Package googleai provides a thin wrapper around the Google Gen AI SDK for embeddings and content generation (Gemini API).
package googleai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"

	vec "github.com/directorio/hub/pkg/embeddings"
)

var (
	// ErrEmptyInput is returned when CreateEmbedding is called with empty input.
	ErrEmptyInput = errors.New("googleai: input text is empty")
	// ErrInvalidDims is returned when dimensions is not positive.
	ErrInvalidDims = errors.New("googleai: embedding dimensions must be positive")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("googleai: no embedding in response")
	// ErrDimensionMismatch is returned when the response embedding length does not match configured dimensions.
	ErrDimensionMismatch = errors.New("googleai: embedding dimension mismatch")
	// ErrEmptyGeneration is returned when GenerateContent yields no text.
	ErrEmptyGeneration = errors.New("googleai: empty generation")
)

// Name identifies this backend in telemetry.
const Name = "google"

const (
	defaultDimension = 1536
	defaultModel     = "gemini-embedding-001"
	defaultChatModel = "gemini-2.5-flash"
)

// Client calls the Gemini embeddings API via the Google Gen AI SDK.
type Client struct {
	client     *genai.Client
	model      string
	chatModel  string
	dimensions int
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithDimensions sets the requested embedding dimension (must match DB column).
func WithDimensions(dim int) ClientOption {
	return func(c *Client) {
		c.dimensions = dim
	}
}

// WithModel sets the embedding model name (e.g. gemini-embedding-001). Empty uses default.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithChatModel sets the generation model name (e.g. gemini-2.5-flash). Empty uses default.
func WithChatModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.chatModel = model
		}
	}
}

// NewClient creates a Gemini client.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("googleai client: %w", err)
	}

	client := &Client{
		client:     genaiClient,
		model:      defaultModel,
		chatModel:  defaultChatModel,
		dimensions: defaultDimension,
	}
	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// CreateEmbedding returns the embedding vector for the given text using the configured model.
// The returned vector has the configured dimensions and unit length.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	if c.dimensions <= 0 || c.dimensions > math.MaxInt32 {
		return nil, ErrInvalidDims
	}

	model := c.model
	if model == "" {
		model = defaultModel
	}

	contents := []*genai.Content{genai.NewContentFromText(input, genai.RoleUser)}
	//nolint:gosec // G115: c.dimensions is bounded above by math.MaxInt32
	dimInt32 := int32(c.dimensions)

	resp, err := c.client.Models.EmbedContent(ctx, model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dimInt32,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}

	if len(resp.Embeddings) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	emb := resp.Embeddings[0].Values
	if len(emb) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb), c.dimensions)
	}

	out := vec.ToFloat64(emb)

	// Gemini only normalizes full-size embeddings; truncated outputs are rescaled here.
	vec.NormalizeL2(out)

	return out, nil
}

// Name returns the backend name used in telemetry.
func (c *Client) Name() string {
	return Name
}

// CreateChatCompletion generates text for userPrompt with systemPrompt as the system instruction.
// Nil temperature or maxTokens leave the model defaults in place.
func (c *Client) CreateChatCompletion(
	ctx context.Context, systemPrompt, userPrompt string, temperature *float64, maxTokens *int,
) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}

	if temperature != nil {
		t := float32(*temperature)
		config.Temperature = &t
	}

	if maxTokens != nil && *maxTokens > 0 && *maxTokens <= math.MaxInt32 {
		//nolint:gosec // G115: bounded above by math.MaxInt32
		config.MaxOutputTokens = int32(*maxTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.chatModel, genai.Text(userPrompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyGeneration
	}

	return text, nil
}
