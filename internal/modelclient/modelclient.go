// Package modelclient builds the remote embedding and chat model named by the configuration.
package modelclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/directorio/hub/internal/config"
	"github.com/directorio/hub/internal/embeddings"
	"github.com/directorio/hub/internal/googleai"
	"github.com/directorio/hub/internal/openai"
)

// Supported EMBEDDING_PROVIDER values.
const (
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
)

// ErrUnsupportedProvider is returned for an unknown EMBEDDING_PROVIDER.
var ErrUnsupportedProvider = errors.New("unsupported embedding provider")

// New returns the configured remote model, or nil when EMBEDDING_PROVIDER is unset
// (the embeddings provider then serves the local fallback only).
func New(ctx context.Context, cfg *config.Config) (embeddings.RemoteModel, error) {
	switch cfg.EmbeddingProvider {
	case "":
		slog.Info("embeddings: no remote provider configured, using local fallback")

		return nil, nil //nolint:nilnil // nil model selects the local fallback
	case ProviderOpenAI:
		return openai.NewClient(cfg.EmbeddingProviderAPIKey,
			openai.WithModel(cfg.EmbeddingModel),
			openai.WithChatModel(cfg.ChatModel),
			openai.WithDimensions(cfg.EmbeddingDimensions),
		), nil
	case ProviderGoogle:
		client, err := googleai.NewClient(ctx, cfg.EmbeddingProviderAPIKey,
			googleai.WithModel(cfg.EmbeddingModel),
			googleai.WithChatModel(cfg.ChatModel),
			googleai.WithDimensions(cfg.EmbeddingDimensions),
		)
		if err != nil {
			return nil, fmt.Errorf("create google client: %w", err)
		}

		return client, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.EmbeddingProvider)
	}
}
