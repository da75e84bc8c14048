package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline failures. Each query-time failure maps to
// exactly one of these kinds so callers can translate them into stable
// user-visible messages without parsing error text.
var (
	// ErrEmbedding: the upstream embedding call failed, timed out, or
	// returned a malformed vector. Fatal per query.
	ErrEmbedding = errors.New("embedding failed")
	// ErrRetrieval: the vector-store search call failed. Fatal per query.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrGeneration: the generation call failed. Degraded, not fatal;
	// retrieved sources are still surfaced.
	ErrGeneration = errors.New("generation failed")
	// ErrSchemaMismatch: a hit exposed no usable display content under any
	// extraction strategy. Per-hit, the hit is dropped.
	ErrSchemaMismatch = errors.New("hit schema mismatch")

	ErrInvalidQuery   = errors.New("invalid query")
	ErrInvalidProduct = errors.New("invalid product")
	ErrDuplicateID    = errors.New("duplicate product id")
)

// PipelineError wraps a sentinel with the failing stage and the raw
// upstream error as a diagnostic payload.
type PipelineError struct {
	Stage   string // "embed", "search", "generate"
	Kind    error  // one of the sentinels above
	Wrapped error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Wrapped)
}

func (e *PipelineError) Unwrap() error { return e.Kind }

// NewPipelineError creates a PipelineError for the given stage and kind.
func NewPipelineError(stage string, kind, wrapped error) *PipelineError {
	return &PipelineError{Stage: stage, Kind: kind, Wrapped: wrapped}
}

// ValidationError wraps a sentinel with field context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
