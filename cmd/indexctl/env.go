package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/directorio/hub/internal/config"
	"github.com/directorio/hub/internal/embeddings"
	"github.com/directorio/hub/internal/modelclient"
	"github.com/directorio/hub/internal/repository"
	"github.com/directorio/hub/internal/service"
	"github.com/directorio/hub/pkg/database"
)

// env holds the services a command runs against. Close releases the pool.
type env struct {
	cfg        *config.Config
	db         *pgxpool.Pool
	projection *service.VectorProjectionSync
	indexer    *service.Indexer
	engine     *service.RetrievalEngine
	concierge  *service.Concierge
}

type envOptions struct {
	backfillBatchSize int
}

func newEnv(ctx context.Context, opts envOptions) (*env, error) {
	cfg, err := config.LoadWithoutAPIKey()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	remote, err := modelclient.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	provider, err := embeddings.NewProvider(embeddings.ProviderParams{
		Remote:     remote,
		Dimensions: cfg.EmbeddingDimensions,
		Timeout:    cfg.ProviderTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding provider: %w", err)
	}

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	embeddingsRepo := repository.NewEmbeddingsRepository(db)
	vectorRepo := repository.NewVectorProjectionRepository(db, cfg.VectorIndexTable)

	projection := service.NewVectorProjectionSync(service.VectorProjectionSyncParams{Store: vectorRepo})

	engine, err := service.NewRetrievalEngine(service.RetrievalEngineParams{
		Accelerated: service.NewAcceleratedBackend(vectorRepo),
		Fallback:    service.NewFallbackBackend(embeddingsRepo),
		Projection:  projection,
		Embedder:    provider,
	})
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("create retrieval engine: %w", err)
	}

	return &env{
		cfg:        cfg,
		db:         db,
		projection: projection,
		indexer: service.NewIndexer(service.IndexerParams{
			Businesses:        repository.NewBusinessesRepository(db),
			Records:           embeddingsRepo,
			Embedder:          provider,
			Projection:        projection,
			BackfillBatchSize: opts.backfillBatchSize,
		}),
		engine: engine,
		concierge: service.NewConcierge(service.ConciergeParams{
			Retrieval:      engine,
			Chat:           provider,
			ProfileBaseURL: cfg.ProfileBaseURL,
		}),
	}, nil
}

func (e *env) Close() {
	e.db.Close()
}

// newJobInserter returns an insert-only River client on the env's pool.
func (e *env) newJobInserter() (*river.Client[pgx.Tx], error) {
	client, err := river.NewClient(riverpgxv5.New(e.db), &river.Config{})
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}

	return client, nil
}
