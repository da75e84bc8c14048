// Package domain defines core domain types, constants, and validation for the
// Moda catalog pipeline. It acts as the validation gate at pipeline entry points.
package domain

// EmbeddingDims is the vector dimension agreed with the vector store's
// index configuration. Text and image embeddings share the same index.
const EmbeddingDims = 1024

// QueryKind distinguishes the two supported query modes.
type QueryKind string

const (
	QueryText  QueryKind = "text"
	QueryImage QueryKind = "image"
)

// Query represents a single user query, either text or an uploaded image.
// Queries are immutable and created per request.
type Query struct {
	Kind  QueryKind `json:"kind"`
	Text  string    `json:"text,omitempty"`
	Image []byte    `json:"-"`
}

// NewTextQuery creates a validated text query.
func NewTextQuery(text string) (Query, error) {
	q := Query{Kind: QueryText, Text: text}
	if err := ValidateQuery(q); err != nil {
		return Query{}, err
	}
	return q, nil
}

// NewImageQuery creates a validated image query from raw uploaded bytes.
func NewImageQuery(image []byte) (Query, error) {
	q := Query{Kind: QueryImage, Image: image}
	if err := ValidateQuery(q); err != nil {
		return Query{}, err
	}
	return q, nil
}

// Metric selects the calibration law applied to raw vector-store scores.
// Exactly one metric is configured per deployment; it is never guessed
// per hit.
type Metric string

const (
	// MetricCosineDistance means the store returns cosine distance in [0,2],
	// smaller is more similar.
	MetricCosineDistance Metric = "cosine_distance"
	// MetricCosineScore means the store returns cosine similarity in [-1,1],
	// larger is more similar.
	MetricCosineScore Metric = "cosine_score"
)

// Placeholder values for display fields absent from a vector-store hit.
const (
	PlaceholderTitle       = "Untitled"
	PlaceholderDescription = "No description available"
)

// ProductRecord is a catalog entry on the ingestion side.
type ProductRecord struct {
	ProductID   string `json:"product_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
	VideoURL    string `json:"video_url"`
}

// NormalizedRecord is the canonical shape extracted from one vector-store
// hit. Display fields are always populated, falling back to placeholders.
// Similarity is a calibrated percentage in [0,100]; RawScore preserves the
// store's raw value for diagnostics. StartTime/EndTime are only set for
// video-segment hits and carry values like "12.5s".
type NormalizedRecord struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ProductID   string  `json:"product_id"`
	Link        string  `json:"link"`
	VideoURL    string  `json:"video_url"`
	StartTime   string  `json:"start_time,omitempty"`
	EndTime     string  `json:"end_time,omitempty"`
	Similarity  float64 `json:"similarity"`
	RawScore    float64 `json:"raw_score"`
}

// Role identifies a conversation participant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one conversation exchange entry.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is an explicit conversation log owned by the caller. It is
// passed into and returned from each orchestrator invocation; the pipeline
// itself holds no session state.
type Conversation []Turn

// Append returns the conversation extended with a new turn.
func (c Conversation) Append(role Role, content string) Conversation {
	return append(c, Turn{Role: role, Content: content})
}

// Tail returns at most the last n turns.
func (c Conversation) Tail(n int) Conversation {
	if n <= 0 {
		return nil
	}
	if len(c) <= n {
		return c
	}
	return c[len(c)-n:]
}
