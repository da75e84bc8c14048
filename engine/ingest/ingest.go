// Package ingest provides the catalog ingestion path: validating a product
// record, embedding its display text, and inserting it into the vector
// store. There is no retry built in; a failed submission is reported to
// the caller, who re-submits.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ModaAI/moda-mvp/engine/domain"
)

// Embedder is the subset of the embedding client the ingestion path needs.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Inserter abstracts the vector store's write side.
type Inserter interface {
	Insert(ctx context.Context, id string, embedding []float32, record domain.ProductRecord) error
}

// Publisher is an optional event sink notified after successful inserts.
type Publisher interface {
	ProductIngested(ctx context.Context, record domain.ProductRecord)
}

// Service runs the ingestion pipeline for one product at a time.
type Service struct {
	embed  Embedder
	store  Inserter
	events Publisher
	logger *slog.Logger
}

// New creates an ingestion Service. events may be nil.
func New(embed Embedder, store Inserter, events Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{embed: embed, store: store, events: events, logger: logger}
}

// AddProduct validates, embeds, and stores one catalog record. The vector
// is derived from the title and description, matching what the query path
// searches against.
func (s *Service) AddProduct(ctx context.Context, record domain.ProductRecord) error {
	if err := domain.ValidateProduct(record); err != nil {
		return err
	}

	embedding, err := s.embed.EmbedText(ctx, embeddingText(record))
	if err != nil {
		return domain.NewPipelineError("embed", domain.ErrEmbedding, err)
	}

	if err := s.store.Insert(ctx, record.ProductID, embedding, record); err != nil {
		return fmt.Errorf("ingest: insert %s: %w", record.ProductID, err)
	}

	s.logger.Info("product ingested", "product_id", record.ProductID)
	if s.events != nil {
		s.events.ProductIngested(ctx, record)
	}
	return nil
}

// embeddingText is the canonical text representation of a product for
// embedding purposes.
func embeddingText(record domain.ProductRecord) string {
	return record.Title + ". " + record.Description
}
