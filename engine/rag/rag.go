// Package rag orchestrates the retrieval-augmented generation pipeline.
// It accepts a user query (text or image), embeds it, searches the vector
// store, normalizes and calibrates the hits, builds a bounded context, and
// calls the generation service for the final answer with source attribution.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ModaAI/moda-mvp/engine/domain"
	"github.com/ModaAI/moda-mvp/engine/semantic"
)

// Embedder converts queries into fixed-dimension vectors.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, image []byte) ([]float32, error)
}

// Searcher abstracts vector-store k-NN search.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int) ([]semantic.RawHit, error)
}

// Generator abstracts the text-generation service. Stateless per call.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPayload string) (string, error)
}

// Options configures the pipeline behaviour.
type Options struct {
	TopK            int
	Metric          domain.Metric
	SystemPrompt    string
	MaxHistoryTurns int
	EmbedTimeout    time.Duration
	SearchTimeout   time.Duration
	GenerateTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:            5,
		Metric:          domain.MetricCosineScore,
		SystemPrompt:    defaultSystemPrompt,
		MaxHistoryTurns: 6,
		EmbedTimeout:    10 * time.Second,
		SearchTimeout:   5 * time.Second,
		GenerateTimeout: 30 * time.Second,
	}
}

const defaultSystemPrompt = `You are Moda, a fashion shopping assistant.
Answer the customer's question using ONLY the provided product context.
Recommend specific products from the context and explain why they fit.
If the context does not contain a suitable product, say so.`

// Fixed user-visible messages. The orchestrator substitutes these instead
// of surfacing raw upstream failures.
const (
	// NoResultsMessage is returned when no usable hits survive
	// normalization; the generator is never called in that case.
	NoResultsMessage = "I couldn't find any matching products for your request. Try rephrasing or asking about something else."
	// FallbackMessage replaces the answer text when generation fails after
	// a successful retrieval. Sources are still attached.
	FallbackMessage = "I found some relevant products but couldn't generate a full answer right now. The matches are listed below."
)

// Service is the query orchestrator. Clients are injected and owned by the
// caller; the service holds no per-query state.
type Service struct {
	embed  Embedder
	search Searcher
	gen    Generator
	opts   Options
	logger *slog.Logger
}

// New creates a Service.
func New(embed Embedder, search Searcher, gen Generator, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{embed: embed, search: search, gen: gen, opts: opts, logger: logger}
}

// Answer is the structured response from the pipeline.
type Answer struct {
	Text         string                    `json:"text"`
	Sources      []domain.NormalizedRecord `json:"sources"`
	TotalSources int                       `json:"total_sources"`
	// Degraded is set when retrieval succeeded but generation failed and
	// Text carries the fallback message.
	Degraded bool `json:"degraded,omitempty"`
}

// Query runs the full pipeline for a text question. The conversation log
// is an explicit value owned by the caller: the last MaxHistoryTurns turns
// are folded into the generation payload, and the updated log (question
// plus answer) is returned.
func (s *Service) Query(ctx context.Context, question string, conv domain.Conversation) (*Answer, domain.Conversation, error) {
	q, err := domain.NewTextQuery(question)
	if err != nil {
		return nil, conv, err
	}
	s.logger.Info("rag query start", "question_len", len(question), "history_turns", len(conv))

	embedding, err := s.embedQuery(ctx, q)
	if err != nil {
		return nil, conv, err
	}

	records, err := s.retrieve(ctx, embedding)
	if err != nil {
		return nil, conv, err
	}

	if len(records) == 0 {
		s.logger.Info("rag query no usable hits")
		ans := &Answer{Text: NoResultsMessage}
		return ans, conv.Append(domain.RoleUser, question).Append(domain.RoleAssistant, ans.Text), nil
	}

	ans := s.generateAnswer(ctx, question, conv, records)
	return ans, conv.Append(domain.RoleUser, question).Append(domain.RoleAssistant, ans.Text), nil
}

// SearchSimilar runs the visual-search path: embed an uploaded image and
// return the top matching indexed video segments. No generation call.
func (s *Service) SearchSimilar(ctx context.Context, image []byte, topK int) ([]domain.NormalizedRecord, error) {
	q, err := domain.NewImageQuery(image)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = s.opts.TopK
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.opts.EmbedTimeout)
	defer cancel()
	embedding, err := s.embed.EmbedImage(embedCtx, q.Image)
	if err != nil {
		return nil, domain.NewPipelineError("embed", domain.ErrEmbedding, err)
	}
	if len(embedding) != domain.EmbeddingDims {
		return nil, domain.NewPipelineError("embed", domain.ErrEmbedding,
			fmt.Errorf("got %d dims, want %d", len(embedding), domain.EmbeddingDims))
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()
	hits, err := s.search.Search(searchCtx, embedding, topK)
	if err != nil {
		return nil, domain.NewPipelineError("search", domain.ErrRetrieval, err)
	}

	records := normalizeHits(hits, s.opts.Metric)
	s.logger.Info("visual search done", "hits", len(hits), "kept", len(records))
	return records, nil
}

func (s *Service) embedQuery(ctx context.Context, q domain.Query) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, s.opts.EmbedTimeout)
	defer cancel()

	embedding, err := s.embed.EmbedText(embedCtx, q.Text)
	if err != nil {
		return nil, domain.NewPipelineError("embed", domain.ErrEmbedding, err)
	}
	if len(embedding) != domain.EmbeddingDims {
		return nil, domain.NewPipelineError("embed", domain.ErrEmbedding,
			fmt.Errorf("got %d dims, want %d", len(embedding), domain.EmbeddingDims))
	}
	return embedding, nil
}

func (s *Service) retrieve(ctx context.Context, embedding []float32) ([]domain.NormalizedRecord, error) {
	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()

	hits, err := s.search.Search(searchCtx, embedding, s.opts.TopK)
	if err != nil {
		return nil, domain.NewPipelineError("search", domain.ErrRetrieval, err)
	}

	records := normalizeHits(hits, s.opts.Metric)
	if dropped := len(hits) - len(records); dropped > 0 {
		s.logger.Debug("hits dropped during normalization", "dropped", dropped, "kept", len(records))
	}
	return records, nil
}

// generateAnswer calls the generator and assembles the final Answer.
// Generation failure degrades the answer but never discards the sources:
// retrieval already succeeded and the matches are independently valuable.
func (s *Service) generateAnswer(ctx context.Context, question string, conv domain.Conversation, records []domain.NormalizedRecord) *Answer {
	genCtx, cancel := context.WithTimeout(ctx, s.opts.GenerateTimeout)
	defer cancel()

	payload := buildPayload(question, conv.Tail(s.opts.MaxHistoryTurns), buildContext(records))
	text, err := s.gen.Generate(genCtx, s.opts.SystemPrompt, payload)
	if err != nil {
		perr := domain.NewPipelineError("generate", domain.ErrGeneration, err)
		s.logger.Error("generation failed, returning sources with fallback", "err", perr)
		return &Answer{
			Text:         FallbackMessage,
			Sources:      records,
			TotalSources: len(records),
			Degraded:     true,
		}
	}

	return &Answer{
		Text:         text,
		Sources:      records,
		TotalSources: len(records),
	}
}

// buildPayload folds the recent conversation, the retrieved context, and
// the question into the generator's user payload. The generator itself is
// stateless; everything it may rely on is made explicit here.
func buildPayload(question string, history domain.Conversation, productContext string) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
		}
		b.WriteString("\n")
	}
	b.WriteString("Product context:\n")
	b.WriteString(productContext)
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
