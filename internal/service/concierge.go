package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/directorio/hub/internal/embeddings"
	"github.com/directorio/hub/internal/huberrors"
	"github.com/directorio/hub/internal/models"
)

// ErrEmptyQuery is returned by Ask for an empty or whitespace-only query.
var ErrEmptyQuery = errors.New("query must not be empty")

const (
	conciergeSystemPrompt = "You are the concierge of a business directory. " +
		"Recommend businesses using only the directory context you are given. " +
		"Mention each recommended business by name with its address, contact and profile link. " +
		"If the context does not contain a suitable business, say so plainly and do not invent one. " +
		"Answer in the language of the question and keep it brief."

	noBusinessesContext = "No businesses retrieved for this query."

	conciergeTemperature = 0.2
	conciergeMaxTokens   = 500
)

// ConciergeMatch is a retrieved business as shown to the concierge caller.
type ConciergeMatch struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organizationId"` //nolint:tagliatelle // API contract
	Name           string     `json:"name"`
	Slug           string     `json:"slug"`
	Description    string     `json:"description"`
	Address        string     `json:"address"`
	Phone          string     `json:"phone"`
	WhatsApp       string     `json:"whatsapp"`
	Latitude       *float64   `json:"lat,omitempty"`
	Longitude      *float64   `json:"lng,omitempty"`
	CityID         *uuid.UUID `json:"cityId,omitempty"` //nolint:tagliatelle // API contract
	ProfileURL     string     `json:"profileUrl"`       //nolint:tagliatelle // API contract
	Score          float64    `json:"score"`
}

// ConciergeMeta describes how an answer was produced.
type ConciergeMeta struct {
	Source       models.MatchSource `json:"source"`
	Query        string             `json:"query"`
	ProviderName string             `json:"providerName"` //nolint:tagliatelle // API contract
}

// ConciergeAnswer is the result of Ask.
type ConciergeAnswer struct {
	Answer  string           `json:"answer"`
	Matches []ConciergeMatch `json:"matches"`
	Meta    ConciergeMeta    `json:"meta"`
}

// Concierge answers free-text questions with retrieval-augmented generation.
type Concierge struct {
	retrieval      *RetrievalEngine
	chat           ChatCompleter
	profileBaseURL string
	logger         *slog.Logger
}

// ConciergeParams configures a Concierge.
type ConciergeParams struct {
	Retrieval      *RetrievalEngine
	Chat           ChatCompleter
	ProfileBaseURL string
	Logger         *slog.Logger
}

// NewConcierge creates a Concierge.
func NewConcierge(params ConciergeParams) *Concierge {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Concierge{
		retrieval:      params.Retrieval,
		chat:           params.Chat,
		profileBaseURL: strings.TrimRight(params.ProfileBaseURL, "/"),
		logger:         logger,
	}
}

// Ask retrieves the businesses relevant to query and asks the chat model to answer from them.
func (c *Concierge) Ask(ctx context.Context, query string, filters models.QueryFilters) (*ConciergeAnswer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, huberrors.WrapValidation("query", ErrEmptyQuery)
	}

	result, err := c.retrieval.SearchText(ctx, query, filters)
	if err != nil {
		return nil, fmt.Errorf("concierge retrieval: %w", err)
	}

	matches := make([]ConciergeMatch, 0, len(result.Matches))
	for _, m := range result.Matches {
		matches = append(matches, c.toConciergeMatch(m))
	}

	temperature, maxTokens := conciergeTemperature, conciergeMaxTokens

	answer := c.chat.GenerateChatCompletion(ctx, embeddings.ChatRequest{
		SystemPrompt: conciergeSystemPrompt,
		UserPrompt:   buildUserPrompt(query, buildContext(matches)),
		Temperature:  &temperature,
		MaxTokens:    &maxTokens,
	})

	providerName := c.chat.ProviderName()
	if embeddings.IsLocalChatCompletion(answer) {
		providerName = embeddings.ProviderNameLocal
	}

	c.logger.DebugContext(ctx, "concierge: answered",
		"source", result.Source, "matches", len(matches), "provider_name", providerName)

	return &ConciergeAnswer{
		Answer:  answer,
		Matches: matches,
		Meta: ConciergeMeta{
			Source:       result.Source,
			Query:        query,
			ProviderName: providerName,
		},
	}, nil
}

func (c *Concierge) toConciergeMatch(m models.Match) ConciergeMatch {
	return ConciergeMatch{
		ID:             m.BusinessID,
		OrganizationID: m.OrganizationID,
		Name:           m.Name,
		Slug:           m.Slug,
		Description:    m.Description,
		Address:        m.Address,
		Phone:          m.Phone,
		WhatsApp:       m.WhatsApp,
		Latitude:       m.Latitude,
		Longitude:      m.Longitude,
		CityID:         m.CityID,
		ProfileURL:     c.profileBaseURL + "/" + m.Slug,
		Score:          roundScore(m.Score),
	}
}

func roundScore(score float64) float64 {
	return math.Round(score*10000) / 10000
}

// buildContext renders one numbered paragraph per match in rank order.
func buildContext(matches []ConciergeMatch) string {
	if len(matches) == 0 {
		return noBusinessesContext
	}

	paragraphs := make([]string, 0, len(matches))
	for n, m := range matches {
		var b strings.Builder

		b.WriteString(strconv.Itoa(n+1) + ". " + m.Name + "\n")
		b.WriteString("Address: " + orDash(m.Address) + "\n")
		b.WriteString("Contact: " + contact(m) + "\n")
		b.WriteString("Profile: " + m.ProfileURL + "\n")
		b.WriteString("Score: " + strconv.FormatFloat(m.Score, 'f', 4, 64))

		paragraphs = append(paragraphs, b.String())
	}

	return strings.Join(paragraphs, "\n\n")
}

func buildUserPrompt(query, contextBlock string) string {
	return "Question: " + query + "\n\nDirectory context:\n" + contextBlock
}

func contact(m ConciergeMatch) string {
	var parts []string
	if m.Phone != "" {
		parts = append(parts, "phone "+m.Phone)
	}

	if m.WhatsApp != "" {
		parts = append(parts, "WhatsApp "+m.WhatsApp)
	}

	if len(parts) == 0 {
		return "-"
	}

	return strings.Join(parts, ", ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}

	return s
}
