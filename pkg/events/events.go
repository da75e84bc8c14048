// Package events publishes catalog lifecycle events to NATS with
// OpenTelemetry trace propagation in message headers. Publishing is
// fire-and-forget: analytics failures never fail the request path.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ModaAI/moda-mvp/engine/domain"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// Subjects for catalog events.
const (
	SubjectQueryCompleted  = "catalog.query.completed"
	SubjectProductIngested = "catalog.product.ingested"
)

// QueryCompleted is emitted after each chat query finishes.
type QueryCompleted struct {
	QuestionLen  int       `json:"question_len"`
	TotalSources int       `json:"total_sources"`
	Degraded     bool      `json:"degraded"`
	At           time.Time `json:"at"`
}

// ProductIngested is emitted after a product is stored.
type ProductIngested struct {
	ProductID string    `json:"product_id"`
	Title     string    `json:"title"`
	At        time.Time `json:"at"`
}

// natsHeaderCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// publish serializes v as JSON and publishes it with trace context
// injected into the message headers.
func publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return nc.PublishMsg(msg)
}

// Publisher emits catalog events. A nil Publisher is safe to skip at call
// sites; construct one only when NATS is configured.
type Publisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewPublisher creates a Publisher on an established NATS connection.
func NewPublisher(nc *nats.Conn, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{nc: nc, logger: logger}
}

// QueryCompleted publishes a query-completed event.
func (p *Publisher) QueryCompleted(ctx context.Context, questionLen, totalSources int, degraded bool) {
	evt := QueryCompleted{
		QuestionLen:  questionLen,
		TotalSources: totalSources,
		Degraded:     degraded,
		At:           time.Now().UTC(),
	}
	if err := publish(ctx, p.nc, SubjectQueryCompleted, evt); err != nil {
		p.logger.Warn("query event publish failed", "err", err)
	}
}

// ProductIngested publishes an ingestion event. Implements ingest.Publisher.
func (p *Publisher) ProductIngested(ctx context.Context, record domain.ProductRecord) {
	evt := ProductIngested{
		ProductID: record.ProductID,
		Title:     record.Title,
		At:        time.Now().UTC(),
	}
	if err := publish(ctx, p.nc, SubjectProductIngested, evt); err != nil {
		p.logger.Warn("ingest event publish failed", "err", err)
	}
}
