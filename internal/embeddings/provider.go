// Package embeddings turns text into fixed-size vectors and prompts into answers. Every call
// produces a result: when the remote model is absent, fails, times out or returns an unusable
// response, the deterministic local fallback is used instead.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/directorio/hub/internal/observability"
)

// Provider names recorded on embedding records.
const (
	ProviderNameRemote = "remote"
	ProviderNameLocal  = "local-fallback"
)

// Telemetry operations.
const (
	operationCreateEmbedding = "create_embedding"
	operationChatCompletion  = "chat_completion"
)

// Dimension bounds accepted by NewProvider.
const (
	MinDimensions = 64
	MaxDimensions = 4096
)

const defaultTimeout = 15 * time.Second

var (
	// ErrInvalidDimensions is returned by NewProvider when dimensions are outside [64, 4096].
	ErrInvalidDimensions = errors.New("embeddings: dimensions out of range")
	// ErrRemoteDimensionMismatch marks a remote vector whose length differs from Dimensions().
	ErrRemoteDimensionMismatch = errors.New("embeddings: remote vector dimension mismatch")
	// ErrEmptyRemoteResponse marks a remote call that returned no usable content.
	ErrEmptyRemoteResponse = errors.New("embeddings: empty remote response")
)

// RemoteModel is a hosted embedding and chat model (OpenAI, Gemini).
type RemoteModel interface {
	Name() string
	CreateEmbedding(ctx context.Context, input string) ([]float64, error)
	CreateChatCompletion(ctx context.Context, systemPrompt, userPrompt string, temperature *float64, maxTokens *int) (string, error)
}

// Embedding is a vector together with the source that produced it.
type Embedding struct {
	Vector []float64
	Source string
}

// ChatRequest is a single-turn chat completion request.
type ChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  *float64
	MaxTokens    *int
}

// ProviderParams configures a Provider. Remote may be nil (local fallback only);
// Metrics may be nil (metrics disabled).
type ProviderParams struct {
	Remote     RemoteModel
	Dimensions int
	Timeout    time.Duration
	Metrics    observability.DependencyMetrics
	Logger     *slog.Logger
}

// Provider wraps an optional RemoteModel with the deterministic local fallback.
// A Provider is safe for concurrent use.
type Provider struct {
	remote  RemoteModel
	dims    int
	timeout time.Duration
	metrics observability.DependencyMetrics
	logger  *slog.Logger
}

// NewProvider creates a Provider. Zero Timeout uses 15s; nil Logger uses slog.Default().
func NewProvider(params ProviderParams) (*Provider, error) {
	if params.Dimensions < MinDimensions || params.Dimensions > MaxDimensions {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidDimensions, params.Dimensions, MinDimensions, MaxDimensions)
	}

	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		remote:  params.Remote,
		dims:    params.Dimensions,
		timeout: timeout,
		metrics: params.Metrics,
		logger:  logger,
	}, nil
}

// IsRemoteEnabled reports whether a remote model is configured.
func (p *Provider) IsRemoteEnabled() bool {
	return p.remote != nil
}

// ProviderName returns the configured source: "remote" when a remote model is set, otherwise "local-fallback".
// The source of an individual vector is reported by Embed.
func (p *Provider) ProviderName() string {
	if p.IsRemoteEnabled() {
		return ProviderNameRemote
	}

	return ProviderNameLocal
}

// Dimensions returns the vector length every call produces.
func (p *Provider) Dimensions() int {
	return p.dims
}

// CreateEmbedding returns a vector of length Dimensions() for text. It never fails.
func (p *Provider) CreateEmbedding(ctx context.Context, text string) []float64 {
	return p.Embed(ctx, text).Vector
}

// Embed returns a vector of length Dimensions() for text and the source that produced it.
// Empty text, a missing remote model, or any remote failure yields the local embedding.
func (p *Provider) Embed(ctx context.Context, text string) Embedding {
	if p.remote != nil && strings.TrimSpace(text) != "" {
		vector, err := p.remoteEmbedding(ctx, text)
		if err == nil {
			return Embedding{Vector: vector, Source: ProviderNameRemote}
		}

		p.logger.WarnContext(ctx, "embeddings: remote embedding failed, using local fallback",
			"backend", p.remote.Name(), "error", err)
	}

	return Embedding{
		Vector: LocalEmbedding(text, p.dims),
		Source: ProviderNameLocal,
	}
}

func (p *Provider) remoteEmbedding(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	vector, err := p.remote.CreateEmbedding(ctx, text)

	if err == nil && len(vector) != p.dims {
		err = fmt.Errorf("%w: got %d, want %d", ErrRemoteDimensionMismatch, len(vector), p.dims)
	}

	p.observe(ctx, operationCreateEmbedding, time.Since(start), err == nil)

	if err != nil {
		return nil, err
	}

	return vector, nil
}

// GenerateChatCompletion returns the remote model's answer, or the templated local answer when
// the remote model is missing, fails, times out or returns only whitespace. It never fails.
func (p *Provider) GenerateChatCompletion(ctx context.Context, req ChatRequest) string {
	if p.remote != nil {
		answer, err := p.remoteChatCompletion(ctx, req)
		if err == nil {
			return answer
		}

		p.logger.WarnContext(ctx, "embeddings: remote chat completion failed, using local fallback",
			"backend", p.remote.Name(), "error", err)
	}

	return LocalChatCompletion(req.SystemPrompt, req.UserPrompt)
}

func (p *Provider) remoteChatCompletion(ctx context.Context, req ChatRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	answer, err := p.remote.CreateChatCompletion(ctx, req.SystemPrompt, req.UserPrompt, req.Temperature, req.MaxTokens)

	answer = strings.TrimSpace(answer)
	if err == nil && answer == "" {
		err = ErrEmptyRemoteResponse
	}

	p.observe(ctx, operationChatCompletion, time.Since(start), err == nil)

	if err != nil {
		return "", err
	}

	return answer, nil
}

func (p *Provider) observe(ctx context.Context, operation string, duration time.Duration, success bool) {
	if p.metrics == nil {
		return
	}

	// ctx may already be past its deadline; detach so the sample is still recorded.
	p.metrics.RecordCall(context.WithoutCancel(ctx), p.remote.Name(), operation, duration, success)
}
