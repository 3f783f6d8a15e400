package storage

import (
	"context"
	"errors"
)

// ErrUnavailable marks transport-level failures talking to the vector store.
// Callers map it to a 502: an unreachable backend must never read as an empty
// result or a zero total.
var ErrUnavailable = errors.New("vector store unavailable")

// Record is one payload unit stored in the vector backend. The source data is
// noisy, so every field is optional and values arrive in mixed types; callers
// own tolerant extraction.
type Record map[string]any

// ScoredRecord is one similarity-search result in the store's ranking order.
type ScoredRecord struct {
	ID      string
	Score   float64
	Payload Record
}

// Point is one vector plus payload for upsert.
type Point struct {
	ID      string
	Vector  []float64
	Payload Record
}

// RangeCondition is a half-bounded or fully bounded comparison on a payload
// key, rendered into Qdrant's {"key": ..., "range": {"gte", "lte"}} shape.
type RangeCondition struct {
	Key string
	GTE string
	LTE string
}

// MatchCondition is an exact-value comparison on a payload key.
type MatchCondition struct {
	Key   string
	Value any
}

// Filter is a conjunction of conditions; all must hold.
type Filter struct {
	Ranges  []RangeCondition
	Matches []MatchCondition
}

// IsZero reports whether the filter has no conditions.
func (f Filter) IsZero() bool {
	return len(f.Ranges) == 0 && len(f.Matches) == 0
}

// VectorStore is the read/write surface the core needs from the vector
// backend. Scroll returns an opaque continuation offset; a nil next offset
// signals exhaustion.
type VectorStore interface {
	Search(ctx context.Context, collection string, vector []float64, limit int) ([]ScoredRecord, error)
	Scroll(ctx context.Context, collection string, filter Filter, limit int, offset any) ([]Record, any, error)
	Upsert(ctx context.Context, collection string, points []Point) error
	EnsureCollection(ctx context.Context, collection string, dimension int) error
	Ping(ctx context.Context) error
}
