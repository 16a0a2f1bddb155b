package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"

	"github.com/directorio/hub/internal/api"
	"github.com/directorio/hub/internal/api/handlers"
	"github.com/directorio/hub/internal/api/middleware"
	"github.com/directorio/hub/internal/config"
	"github.com/directorio/hub/internal/embeddings"
	"github.com/directorio/hub/internal/jobs"
	"github.com/directorio/hub/internal/modelclient"
	"github.com/directorio/hub/internal/observability"
	"github.com/directorio/hub/internal/repository"
	"github.com/directorio/hub/internal/service"
	"github.com/directorio/hub/internal/workers"
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	db             *pgxpool.Pool
	server         *http.Server
	river          *river.Client[pgx.Tx]
	message        *service.MessagePublisherManager
	nats           *nats.Conn
	lifecycle      *service.LifecycleSubscriber
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	metrics        *observability.Metrics
}

const riverQueueDepthInterval = 15 * time.Second

// setupMetrics creates meter provider, hub metrics and the optional Prometheus handler.
// Returns all nil when the exporter is unsupported or disabled.
func setupMetrics(cfg *config.Config) (*sdkmetric.MeterProvider, *observability.Metrics, http.Handler, error) {
	mp, handler, err := observability.NewMeterProvider(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create meter provider: %w", err)
	}

	if mp == nil {
		return nil, nil, nil, nil
	}

	metrics, err := observability.NewMetrics(mp.Meter("hub"))
	if err != nil {
		if err2 := observability.ShutdownMeterProvider(context.Background(), mp); err2 != nil {
			slog.Error("shutdown meter provider after metrics error", "error", err2)
		}

		return nil, nil, nil, fmt.Errorf("create metrics: %w", err)
	}

	return mp, metrics, handler, nil
}

// NewApp builds and wires all components. It does not start the HTTP server, River or the
// lifecycle subscriber; call Run to start and block until shutdown or failure.
func NewApp(cfg *config.Config, db *pgxpool.Pool) (*App, error) {
	var (
		err            error
		meterProvider  *sdkmetric.MeterProvider
		metrics        *observability.Metrics
		metricsHandler http.Handler
	)

	if cfg.OtelMetricsExporter == "" {
		slog.Warn("metrics not enabled (OTEL_METRICS_EXPORTER empty or unset)")
	} else {
		meterProvider, metrics, metricsHandler, err = setupMetrics(cfg)
		if err != nil {
			return nil, err
		}
	}

	var tracerProvider *sdktrace.TracerProvider

	if cfg.OtelTracesExporter == "" {
		slog.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty or unset)")
	} else {
		tracerProvider, err = observability.NewTracerProvider(cfg)
		if err != nil {
			_ = shutdownObservability(context.Background(), nil, meterProvider)

			return nil, fmt.Errorf("create tracer provider: %w", err)
		}
	}

	// Installed unconditionally so request_id (and trace_id/span_id when tracing is on) appear in logs.
	slog.SetDefault(slog.New(observability.NewTraceContextHandler(slog.Default().Handler())))

	if tracerProvider != nil {
		otel.SetTracerProvider(tracerProvider)
	}

	if meterProvider != nil {
		otel.SetMeterProvider(meterProvider)
	}

	app := &App{
		cfg:            cfg,
		db:             db,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		metrics:        metrics,
	}

	if err := app.wire(metricsHandler); err != nil {
		if app.message != nil {
			app.message.Shutdown()
		}

		if app.nats != nil {
			app.nats.Close()
		}

		if err2 := shutdownObservability(context.Background(), tracerProvider, meterProvider); err2 != nil {
			slog.Error("shutdown observability after wiring error", "error", err2)
		}

		return nil, err
	}

	return app, nil
}

// wire builds the indexing and retrieval services, the event fan-out and the HTTP server.
func (a *App) wire(metricsHandler http.Handler) error {
	cfg, metrics := a.cfg, a.metrics

	var (
		eventMetrics      observability.EventMetrics
		cacheMetrics      observability.CacheMetrics
		dependencyMetrics observability.DependencyMetrics
		indexingMetrics   observability.IndexingMetrics
		retrievalMetrics  observability.RetrievalMetrics
		requestRecorder   middleware.RequestRecorder
		bodyRecorder      middleware.RequestBodyTooLargeRecorder
		failureRecorder   jobs.FailureRecorder
	)
	if metrics != nil {
		eventMetrics = metrics.Events
		cacheMetrics = metrics.Cache
		dependencyMetrics = metrics.Dependencies
		indexingMetrics = metrics.Indexing
		retrievalMetrics = metrics.Retrieval
		requestRecorder = metrics.API
		bodyRecorder = metrics.API
		failureRecorder = metrics.Indexing
	}

	ctx := context.Background()

	remote, err := modelclient.New(ctx, cfg)
	if err != nil {
		return err
	}

	provider, err := embeddings.NewProvider(embeddings.ProviderParams{
		Remote:     remote,
		Dimensions: cfg.EmbeddingDimensions,
		Timeout:    cfg.ProviderTimeout,
		Metrics:    dependencyMetrics,
		Logger:     slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("create embedding provider: %w", err)
	}

	businessesRepo := repository.NewBusinessesRepository(a.db)
	embeddingsRepo := repository.NewEmbeddingsRepository(a.db)
	vectorRepo := repository.NewVectorProjectionRepository(a.db, cfg.VectorIndexTable)

	projection := service.NewVectorProjectionSync(service.VectorProjectionSyncParams{
		Store:        vectorRepo,
		Dependencies: dependencyMetrics,
		Indexing:     indexingMetrics,
		Retrieval:    retrievalMetrics,
		Logger:       slog.Default(),
	})

	engine, err := service.NewRetrievalEngine(service.RetrievalEngineParams{
		Accelerated:    service.NewAcceleratedBackend(vectorRepo),
		Fallback:       service.NewFallbackBackend(embeddingsRepo),
		Projection:     projection,
		Embedder:       provider,
		QueryCacheSize: cfg.QueryCacheSize,
		QueryCacheTTL:  cfg.QueryCacheTTL,
		Metrics:        retrievalMetrics,
		CacheMetrics:   cacheMetrics,
		Logger:         slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("create retrieval engine: %w", err)
	}

	indexer := service.NewIndexer(service.IndexerParams{
		Businesses: businessesRepo,
		Records:    embeddingsRepo,
		Embedder:   provider,
		Projection: projection,
		Metrics:    indexingMetrics,
		Logger:     slog.Default(),
	})

	concierge := service.NewConcierge(service.ConciergeParams{
		Retrieval:      engine,
		Chat:           provider,
		ProfileBaseURL: cfg.ProfileBaseURL,
		Logger:         slog.Default(),
	})

	a.message = service.NewMessagePublisherManager(cfg.EventBufferSize, cfg.EventTimeout, eventMetrics)

	switch cfg.IndexQueue {
	case config.IndexQueueRiver:
		riverClient, err := newRiverClient(a.db, cfg, indexer, failureRecorder)
		if err != nil {
			return err
		}

		a.river = riverClient
		a.message.RegisterProvider(service.NewIndexJobProvider(riverClient))
		slog.Info("indexing: dispatching through River",
			"queue", service.IndexQueueName, "workers", cfg.IndexWorkers, "rate_limit", cfg.IndexRateLimit)
	default:
		a.message.RegisterProvider(service.NewIndexingListener(indexer))
		slog.Info("indexing: dispatching in-process")
	}

	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("directorio-hub"))
		if err != nil {
			return fmt.Errorf("connect NATS: %w", err)
		}

		a.nats = nc
		a.lifecycle = service.NewLifecycleSubscriber(a.message, eventMetrics)
	}

	router := api.NewRouter(api.RouterParams{
		APIKey:          cfg.APIKey,
		Health:          handlers.NewHealthHandler(a.db),
		Search:          handlers.NewSearchHandler(engine),
		Concierge:       handlers.NewConciergeHandler(concierge),
		Index:           handlers.NewIndexHandler(indexer),
		VectorIndex:     handlers.NewVectorIndexHandler(projection),
		Metrics:         metricsHandler,
		RequestRecorder: requestRecorder,
		BodyRecorder:    bodyRecorder,
	})

	a.server = newHTTPServer(cfg, router, a.meterProvider, a.tracerProvider)

	return nil
}

// newRiverClient registers the business index worker on the indexing queue.
func newRiverClient(
	db *pgxpool.Pool, cfg *config.Config, indexer *service.Indexer, recorder jobs.FailureRecorder,
) (*river.Client[pgx.Tx], error) {
	limiter := rate.NewLimiter(rate.Limit(cfg.IndexRateLimit), 1)

	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, workers.NewBusinessIndexWorker(indexer, limiter))

	client, err := river.NewClient(riverpgxv5.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			service.IndexQueueName: {MaxWorkers: cfg.IndexWorkers},
		},
		Workers:      riverWorkers,
		ErrorHandler: jobs.NewErrorHandler(recorder),
	})
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}

	return client, nil
}

// newHTTPServer wraps the router. Handler chain: RequestID -> otelhttp(Logging(router))
// so access logs get trace_id/span_id from context.
func newHTTPServer(
	cfg *config.Config,
	router http.Handler,
	meterProvider *sdkmetric.MeterProvider,
	tracerProvider *sdktrace.TracerProvider,
) *http.Server {
	otelOpts := []otelhttp.Option{
		// Skip tracing and HTTP metrics for health checks and scrapes.
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	}
	if meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(meterProvider))
	}

	if tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(tracerProvider))
	}

	handler := otelhttp.NewHandler(middleware.Logging(router), "hub-api", otelOpts...)
	handler = middleware.RequestID(handler)

	const (
		readTimeout  = 15 * time.Second
		writeTimeout = 60 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server, River and the lifecycle subscriber, then blocks until ctx is
// cancelled (e.g. signal) or a component fails. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	riverCtx, cancelRiver := context.WithCancel(ctx)
	defer cancelRiver()

	if a.river != nil {
		if a.metrics != nil && a.metrics.Events != nil {
			go runRiverQueueDepthPoller(riverCtx, a.db, a.metrics.Events)
		}

		go func() {
			if err := a.river.Start(riverCtx); err != nil && !errors.Is(err, context.Canceled) {
				select {
				case runErr <- fmt.Errorf("river: %w", err):
				default:
				}
			}
		}()
	}

	if a.lifecycle != nil {
		if err := a.lifecycle.Start(a.nats, a.cfg.NATSSubject); err != nil {
			return fmt.Errorf("lifecycle subscriber: %w", err)
		}

		slog.Info("lifecycle subscriber started", "subject", a.cfg.NATSSubject)
	}

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		cancelRiver()

		return err
	case <-ctx.Done():
		cancelRiver()

		return nil
	}
}

// runRiverQueueDepthPoller periodically updates the indexing queue depth gauge.
func runRiverQueueDepthPoller(ctx context.Context, db *pgxpool.Pool, eventMetrics observability.EventMetrics) {
	ticker := time.NewTicker(riverQueueDepthInterval)
	defer ticker.Stop()

	update := func() {
		var count int

		err := db.QueryRow(ctx,
			`SELECT COUNT(*) FROM river_job WHERE queue = $1 AND state IN ($2, $3, $4)`,
			service.IndexQueueName,
			rivertype.JobStateAvailable, rivertype.JobStateRetryable, rivertype.JobStateScheduled,
		).Scan(&count)
		if err != nil {
			slog.WarnContext(ctx, "river queue depth poll failed", "error", err)

			return
		}

		eventMetrics.SetRiverQueueDepth(count)
	}

	update()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}

// shutdownObservability shuts down tracer and meter providers. Logs secondary errors, returns the first.
func shutdownObservability(ctx context.Context, tracer *sdktrace.TracerProvider, meter *sdkmetric.MeterProvider) error {
	var first error

	if tracer != nil {
		if err := observability.ShutdownTracerProvider(ctx, tracer); err != nil {
			first = err
		}
	}

	if meter != nil {
		if err := observability.ShutdownMeterProvider(ctx, meter); err != nil {
			if first == nil {
				first = err
			} else {
				slog.Error("shutdown meter provider", "error", err)
			}
		}
	}

	return first
}

// Shutdown stops the lifecycle subscriber, the server, the message publisher and River in order.
// Call after Run returns. Observability is shut down last; its error is returned only when
// everything else shut down successfully.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		obsErr := shutdownObservability(ctx, a.tracerProvider, a.meterProvider)
		if err == nil {
			err = obsErr
		} else if obsErr != nil {
			slog.Error("shutdown observability", "error", obsErr)
		}
	}()

	if a.lifecycle != nil {
		if stopErr := a.lifecycle.Stop(); stopErr != nil {
			slog.Error("lifecycle subscriber stop", "error", stopErr)
		}
	}

	if a.nats != nil {
		a.nats.Close()
	}

	serverErr := a.server.Shutdown(ctx)
	if errors.Is(serverErr, http.ErrServerClosed) {
		serverErr = nil
	}

	// Drains queued events so in-process indexing or job inserts finish before River stops.
	a.message.Shutdown()

	if a.river != nil {
		if stopErr := a.river.Stop(ctx); stopErr != nil {
			if serverErr != nil {
				slog.Error("river stop during server shutdown", "error", stopErr)
			} else {
				return fmt.Errorf("river stop: %w", stopErr)
			}
		}
	}

	if serverErr != nil {
		return fmt.Errorf("server shutdown: %w", serverErr)
	}

	return nil
}
