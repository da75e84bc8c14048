// Package main implements the Moda catalog assistant API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ModaAI/moda-mvp/engine/domain"
	"github.com/ModaAI/moda-mvp/engine/ingest"
	"github.com/ModaAI/moda-mvp/engine/rag"
	"github.com/ModaAI/moda-mvp/engine/semantic"
	"github.com/ModaAI/moda-mvp/pkg/events"
	"github.com/ModaAI/moda-mvp/pkg/metrics"
	"github.com/ModaAI/moda-mvp/pkg/mid"
	"github.com/ModaAI/moda-mvp/pkg/openai"
	"github.com/ModaAI/moda-mvp/pkg/resilience"
	"github.com/ModaAI/moda-mvp/pkg/twelvelabs"
	"github.com/nats-io/nats.go"
)

// Config holds all environment-based configuration.
type Config struct {
	Port          string
	QdrantURL     string
	Collection    string
	TwelveLabsURL string
	TwelveLabsKey string
	OpenAIKey     string
	OpenAIModel   string
	NATSURL       string
	Metric        string
	TopK          string
	CORSOrigin    string
}

func loadConfig() Config {
	return Config{
		Port:          envOr("PORT", "8080"),
		QdrantURL:     envOr("QDRANT_URL", "localhost:6334"),
		Collection:    envOr("QDRANT_COLLECTION", semantic.DefaultCollection),
		TwelveLabsURL: envOr("TWELVELABS_URL", "https://api.twelvelabs.io"),
		TwelveLabsKey: envOr("TWELVELABS_API_KEY", ""),
		OpenAIKey:     envOr("OPENAI_API_KEY", ""),
		OpenAIModel:   envOr("OPENAI_MODEL", ""),
		NATSURL:       envOr("NATS_URL", ""),
		Metric:        envOr("SIMILARITY_METRIC", string(domain.MetricCosineScore)),
		TopK:          envOr("TOP_K", "5"),
		CORSOrigin:    envOr("CORS_ORIGIN", "*"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Qdrant ---
	store, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	if err := store.EnsureCollection(ctx, domain.EmbeddingDims); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	// --- External model clients ---
	embedder := twelvelabs.New(cfg.TwelveLabsURL, cfg.TwelveLabsKey)
	generator := &guardedGenerator{
		gen:     openai.NewClient(cfg.OpenAIKey, openai.WithModel(cfg.OpenAIModel)),
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}

	// --- Optional NATS events ---
	var publisher *events.Publisher
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn("nats connect failed, events disabled", "err", err)
		} else {
			defer nc.Close()
			publisher = events.NewPublisher(nc, logger)
		}
	}

	// --- Build pipeline services ---
	opts := rag.DefaultOptions()
	opts.Metric = domain.Metric(cfg.Metric)
	if k := atoiOr(cfg.TopK, 5); k > 0 {
		opts.TopK = k
	}
	ragSvc := rag.New(embedder, store, generator, opts, logger)
	ingestSvc := ingest.New(embedder, store, publisherOrNil(publisher), logger)

	// --- HTTP server ---
	met := metrics.New()
	api := &apiHandler{
		rag:    ragSvc,
		ingest: ingestSvc,
		events: publisher,
		met:    met,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", api.handleHealth)
	mux.HandleFunc("POST /api/chat", api.handleChat)
	mux.HandleFunc("POST /api/visual-search", api.handleVisualSearch)
	mux.HandleFunc("POST /api/products", api.handleAddProduct)
	mux.Handle("GET /metrics", met.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("moda-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// publisherOrNil avoids handing a typed nil to the ingest service.
func publisherOrNil(p *events.Publisher) ingest.Publisher {
	if p == nil {
		return nil
	}
	return p
}

// guardedGenerator wraps the generation client with a circuit breaker so a
// failing upstream degrades answers instead of being hammered. Open-breaker
// calls surface as generation failures, which the orchestrator already
// treats as degraded-with-sources.
type guardedGenerator struct {
	gen     rag.Generator
	breaker *resilience.Breaker
}

func (g *guardedGenerator) Generate(ctx context.Context, system, payload string) (string, error) {
	return resilience.Guard(g.breaker, ctx, func(ctx context.Context) (string, error) {
		return g.gen.Generate(ctx, system, payload)
	})
}
