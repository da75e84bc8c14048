package semantic

// RawHit is one result entry as returned by the vector store: a raw
// similarity scalar plus the point's payload decoded into plain Go values.
// Payload schema is NOT uniform across deployments; older indexes store
// display fields under a nested "metadata" map or under free-form names.
// Interpreting the fields is the normalizer's job, not the store's.
type RawHit struct {
	ID     string
	Score  float64
	Fields map[string]any
}
