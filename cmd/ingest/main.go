// Command ingest loads a JSON array of products from a file and pushes them
// through the ingestion pipeline into Qdrant. Embedding calls are rate
// limited so a large catalog does not trip the upstream quota.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"golang.org/x/time/rate"

	"github.com/ModaAI/moda-mvp/engine/domain"
	"github.com/ModaAI/moda-mvp/engine/ingest"
	"github.com/ModaAI/moda-mvp/engine/semantic"
	"github.com/ModaAI/moda-mvp/pkg/metrics"
	"github.com/ModaAI/moda-mvp/pkg/twelvelabs"
)

var met = metrics.New()

// Ingest metrics
var (
	mProductsTotal = met.Counter("moda_ingest_products_total", "Products ingested")
	mSkippedTotal  = met.Counter("moda_ingest_skipped_total", "Products skipped by validation or dedup")
	mErrorsTotal   = func(stage string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("moda_ingest_errors_total", "stage", stage), "Ingestion errors by stage")
	}
	mPipelineDur = met.Histogram("moda_ingest_pipeline_duration_seconds", "Per-product pipeline time", nil)
)

func main() {
	var (
		inputFile  = flag.String("input", "", "path to a JSON array of products (required)")
		qdrantAddr = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection = flag.String("collection", semantic.DefaultCollection, "Qdrant collection name")
		tlURL      = flag.String("twelvelabs", "https://api.twelvelabs.io", "Twelve Labs base URL")
		embedRate  = flag.Float64("rate", 5, "max embedding calls per second")
		metricsOut = flag.String("metrics-out", "", "write Prometheus metrics to this file on exit")
		dryRun     = flag.Bool("dry-run", false, "validate the input without embedding or inserting")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *inputFile == "" {
		log.Error("missing -input")
		flag.Usage()
		os.Exit(2)
	}

	products, err := loadProducts(*inputFile)
	if err != nil {
		log.Error("load input failed", "error", err)
		os.Exit(1)
	}
	log.Info("loaded products", "file", *inputFile, "count", len(products))

	if *dryRun {
		valid, skipped := validateOnly(log, products)
		log.Info("dry run complete", "valid", valid, "skipped", skipped)
		return
	}

	tlKey := os.Getenv("TWELVELABS_API_KEY")
	if tlKey == "" {
		log.Error("TWELVELABS_API_KEY is required")
		os.Exit(1)
	}

	vs, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		log.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer vs.Close()
	if err := vs.EnsureCollection(ctx, domain.EmbeddingDims); err != nil {
		log.Error("qdrant ensure collection failed", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Qdrant", "collection", *collection, "dims", domain.EmbeddingDims)

	embedder := twelvelabs.New(*tlURL, tlKey)
	svc := ingest.New(embedder, vs, nil, log)

	limiter := rate.NewLimiter(rate.Limit(*embedRate), 1)

	var ingested, skipped, failed int
	seen := make(map[string]bool, len(products))

	for i, record := range products {
		if seen[record.ProductID] {
			log.Warn("skipping duplicate", "index", i, "product_id", record.ProductID, "error", domain.ErrDuplicateID)
			mSkippedTotal.Inc()
			skipped++
			continue
		}
		seen[record.ProductID] = true

		if err := limiter.Wait(ctx); err != nil {
			log.Info("interrupted", "ingested", ingested, "remaining", len(products)-i)
			break
		}

		start := time.Now()
		if err := svc.AddProduct(ctx, record); err != nil {
			if errors.Is(err, domain.ErrInvalidProduct) {
				log.Warn("skipping invalid product", "index", i, "product_id", record.ProductID, "error", err)
				mSkippedTotal.Inc()
				skipped++
				continue
			}
			stage := "insert"
			if errors.Is(err, domain.ErrEmbedding) {
				stage = "embed"
			}
			log.Error("ingest failed", "index", i, "product_id", record.ProductID, "stage", stage, "error", err)
			mErrorsTotal(stage).Inc()
			failed++
			continue
		}
		mPipelineDur.Since(start)
		mProductsTotal.Inc()
		ingested++

		if ingested%50 == 0 {
			log.Info("progress", "ingested", ingested, "skipped", skipped, "failed", failed, "total", len(products))
		}
	}

	log.Info("done", "ingested", ingested, "skipped", skipped, "failed", failed, "total", len(products))

	if *metricsOut != "" {
		if err := os.WriteFile(*metricsOut, []byte(met.Render()), 0o644); err != nil {
			log.Error("write metrics failed", "error", err)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func loadProducts(path string) ([]domain.ProductRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read %s: %w", path, err)
	}
	var products []domain.ProductRecord
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("ingest: parse %s: %w", path, err)
	}
	return products, nil
}

func validateOnly(log *slog.Logger, products []domain.ProductRecord) (valid, skipped int) {
	seen := make(map[string]bool, len(products))
	for i, record := range products {
		if seen[record.ProductID] {
			log.Warn("duplicate product id", "index", i, "product_id", record.ProductID)
			skipped++
			continue
		}
		seen[record.ProductID] = true
		if err := domain.ValidateProduct(record); err != nil {
			log.Warn("invalid product", "index", i, "product_id", record.ProductID, "error", err)
			skipped++
			continue
		}
		valid++
	}
	return valid, skipped
}
