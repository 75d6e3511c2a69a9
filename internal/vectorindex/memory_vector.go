package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"
)

type memoryVector struct {
	mu        sync.RWMutex
	vectors   map[string]vec
	dimension int
}

type vec struct {
	v        []float32
	metadata map[string]any
}

// NewMemoryVector returns a process-local VectorStore backed by a plain
// map. Used as the durability-warned default backend (spec §6.4) and in
// tests for every other component.
func NewMemoryVector(dimension int) VectorStore {
	return &memoryVector{vectors: make(map[string]vec), dimension: dimension}
}

func (m *memoryVector) Upsert(_ context.Context, id string, vector []float32, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]float32, len(vector))
	copy(cp, vector)
	m.vectors[id] = vec{v: cp, metadata: copyMetadata(metadata)}
	return nil
}

func (m *memoryVector) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vectors, id)
	return nil
}

func (m *memoryVector) SimilaritySearch(_ context.Context, vector []float32, k int, filter Filter) ([]VectorResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 {
		k = 10
	}
	qnorm := norm(vector)
	scores := make([]VectorResult, 0, len(m.vectors))
	for id, v := range m.vectors {
		if !matchesFilter(v.metadata, filter) {
			continue
		}
		s := cosine(vector, v.v, qnorm)
		scores = append(scores, VectorResult{ID: id, Score: s, Metadata: copyMetadata(v.metadata)})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if len(scores) > k {
		scores = scores[:k]
	}
	return scores, nil
}

func (m *memoryVector) GetByIDs(_ context.Context, ids []string) ([]VectorResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]VectorResult, 0, len(ids))
	for _, id := range ids {
		v, ok := m.vectors[id]
		if !ok {
			continue
		}
		out = append(out, VectorResult{ID: id, Metadata: copyMetadata(v.metadata)})
	}
	return out, nil
}

func (m *memoryVector) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors), nil
}

func (m *memoryVector) Dimension() int { return m.dimension }

func (m *memoryVector) Close() error { return nil }

func matchesFilter(md map[string]any, f Filter) bool {
	if f.IsZero() {
		return true
	}
	for k, want := range f.Eq {
		got, ok := md[k].(string)
		if !ok || got != want {
			return false
		}
	}
	if f.TimestampGTE != nil || f.TimestampLTE != nil {
		ts, ok := toInt64(md[TimestampField])
		if !ok {
			return false
		}
		if f.TimestampGTE != nil && ts < *f.TimestampGTE {
			return false
		}
		if f.TimestampLTE != nil && ts > *f.TimestampLTE {
			return false
		}
	}
	return true
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func copyMetadata(md map[string]any) map[string]any {
	cp := make(map[string]any, len(md))
	for k, v := range md {
		cp[k] = v
	}
	return cp
}

func norm(a []float32) float64 {
	var s float64
	for _, x := range a {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func cosine(a, b []float32, anorm float64) float64 {
	if anorm == 0 {
		anorm = norm(a)
	}
	bnorm := norm(b)
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	return dot(a, b) / (anorm * bnorm)
}
