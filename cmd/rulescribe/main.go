package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/rulescribe/rulescribe/internal/adapter/docstore"
	rshttp "github.com/rulescribe/rulescribe/internal/adapter/http"
	"github.com/rulescribe/rulescribe/internal/adapter/memory"
	rsnats "github.com/rulescribe/rulescribe/internal/adapter/nats"
	rsotel "github.com/rulescribe/rulescribe/internal/adapter/otel"
	"github.com/rulescribe/rulescribe/internal/adapter/postgres"
	"github.com/rulescribe/rulescribe/internal/adapter/reasoner"
	"github.com/rulescribe/rulescribe/internal/adapter/ristretto"
	"github.com/rulescribe/rulescribe/internal/adapter/telegram"
	"github.com/rulescribe/rulescribe/internal/config"
	"github.com/rulescribe/rulescribe/internal/governor"
	"github.com/rulescribe/rulescribe/internal/logger"
	"github.com/rulescribe/rulescribe/internal/pipeline"
	"github.com/rulescribe/rulescribe/internal/port/history"
	"github.com/rulescribe/rulescribe/internal/port/messagequeue"
	"github.com/rulescribe/rulescribe/internal/progress"
	"github.com/rulescribe/rulescribe/internal/resilience"
	"github.com/rulescribe/rulescribe/internal/search"
	"github.com/rulescribe/rulescribe/internal/state"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"docs_dir", cfg.Docs.Dir,
		"rate_max_requests", cfg.Rate.MaxRequests,
		"search_max_concurrent", cfg.Search.MaxConcurrent,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	// PostgreSQL turn log, with an in-memory fallback so the service runs
	// without a database in development.
	var turnLog history.Log
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, using in-memory history", "error", err)
		turnLog = memory.NewHistoryLog()
	} else {
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		slog.Info("postgres connected, migrations applied")
		turnLog = postgres.NewHistoryLog(pool)
	}

	// NATS
	queue, err := rsnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	// Document library and search guard
	library, err := docstore.NewLibrary(cfg.Docs.Dir)
	if err != nil {
		return fmt.Errorf("docstore: %w", err)
	}

	cache, err := ristretto.New(cfg.Search.CacheSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()

	metrics, err := rsotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	tokens := governor.NewTokenPool(cfg.Search.MaxConcurrent)
	guard := search.NewGuard(library, tokens, cache, cfg.Search)
	guard.SetCallCounter(metrics.SearchCalls)
	if err := guard.WarmupProbe(ctx); err != nil {
		slog.Warn("search warmup probe failed", "error", err)
	}

	// --- Core services ---

	limiter := governor.NewRateLimiter(cfg.Rate.MaxRequests, cfg.Rate.Window)
	stopCleanup := limiter.StartCleanup(cfg.Rate.Window)
	defer stopCleanup()

	transport := telegram.New(cfg.Telegram)

	engine := reasoner.NewClient(cfg.Engine)
	engine.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	router := pipeline.NewRouter(pipeline.RouterParams{
		Engine:                 engine,
		Transport:              transport,
		States:                 state.NewStore(),
		Limiter:                limiter,
		Reporter:               progress.NewReporter(transport, cfg.Progress.Debounce),
		History:                turnLog,
		Metrics:                metrics,
		Logger:                 log,
		LowConfidenceThreshold: cfg.Answer.LowConfidenceThreshold,
	})

	dispatcher := pipeline.NewDispatcher(router.HandleTurn,
		cfg.Pipeline.ActorIdleTimeout, cfg.Pipeline.ActorQueueSize, log)
	defer dispatcher.Close()

	// Feed both ingress subjects into the per-user dispatcher.
	ingress := func(_ context.Context, subject string, data []byte) error {
		var msg messagequeue.InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Error("malformed ingress payload", "subject", subject, "error", err)
			return nil // do not redeliver garbage
		}
		dispatcher.Dispatch(msg)
		return nil
	}

	cancelMessages, err := queue.Subscribe(ctx, messagequeue.SubjectIngressMessage, ingress)
	if err != nil {
		return fmt.Errorf("subscribe messages: %w", err)
	}
	defer cancelMessages()

	cancelSelections, err := queue.Subscribe(ctx, messagequeue.SubjectIngressSelection, ingress)
	if err != nil {
		return fmt.Errorf("subscribe selections: %w", err)
	}
	defer cancelSelections()

	// --- HTTP ---

	handlers := &rshttp.Handlers{
		Queue:     queue,
		Tools:     guard,
		Documents: library,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(rsotel.HTTPMiddleware(cfg.Logging.Service))

	r.Get("/health", healthHandler(cfg))
	rshttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// healthHandler reports the service's configured collaborators.
func healthHandler(cfg *config.Config) http.HandlerFunc {
	type healthStatus struct {
		Status string `json:"status"`
		NATS   string `json:"nats"`
		Engine string `json:"engine"`
		Docs   string `json:"docs"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		status := healthStatus{
			Status: "ok",
			NATS:   cfg.NATS.URL,
			Engine: cfg.Engine.URL,
			Docs:   cfg.Docs.Dir,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}
