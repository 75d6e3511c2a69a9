// Package vectorindex implements the Vector Index (B): a pluggable
// nearest-neighbor store over embedded capture text, addressed by
// record id and filterable on screen_name and a numeric timestamp range
// (spec §4.2).
package vectorindex

import "context"

// TimestampField is the metadata key carrying a record's capture instant
// as microseconds since the Unix epoch. Backends that support native
// numeric range filters (e.g. Qdrant) translate Filter.TimestampGTE/LTE
// into range conditions on this field.
const TimestampField = "timestamp"

// VectorResult is a single nearest-neighbor or point lookup result.
type VectorResult struct {
	ID       string
	Score    float64 // higher is closer
	Metadata map[string]any
}

// Filter narrows a similarity search or GetByIDs call. Eq entries are
// string equality predicates (e.g. screen_name); the timestamp bounds
// are numeric (inclusive) and may be combined with Eq predicates.
type Filter struct {
	Eq           map[string]string
	TimestampGTE *int64
	TimestampLTE *int64
}

// IsZero reports whether f applies no constraint at all.
func (f Filter) IsZero() bool {
	return len(f.Eq) == 0 && f.TimestampGTE == nil && f.TimestampLTE == nil
}

// VectorStore defines the minimum interface for a pluggable vector
// index backend (spec §4.2). Implementations: qdrant (external, via
// gRPC), chromem (embedded, file-backed), memory (process-local: the
// configured default, the fallback for an unknown backend name, and the
// backend used in tests).
type VectorStore interface {
	// Upsert inserts or replaces the embedding and metadata for id.
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error

	// Delete removes id if present; deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// SimilaritySearch returns up to k nearest neighbors of vector that
	// satisfy filter, ordered by descending score.
	SimilaritySearch(ctx context.Context, vector []float32, k int, filter Filter) ([]VectorResult, error)

	// GetByIDs returns the entries present for the given ids, in no
	// particular order; absent ids are silently omitted.
	GetByIDs(ctx context.Context, ids []string) ([]VectorResult, error)

	// Count returns the total number of entries in the index.
	Count(ctx context.Context) (int, error)

	// Dimension returns the configured embedding dimension.
	Dimension() int

	// Close releases any held connections or file handles.
	Close() error
}
