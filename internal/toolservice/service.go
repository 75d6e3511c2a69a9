// Package toolservice implements the Tool Service algorithms (E): the
// eight retrieval tools of spec §4.5, served read-only against the
// Record Store and Vector Index.
package toolservice

import (
	"fmt"
	"time"

	"memex/internal/embedder"
	"memex/internal/memexerr"
	"memex/internal/metrics"
	"memex/internal/record"
	"memex/internal/vectorindex"
)

// Clock abstracts time so tests can pin "now".
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Service is the typed, explicitly-constructed object each tool handler
// hangs off of (spec §9 design note: no global client objects).
type Service struct {
	store   *record.FileStore
	index   vectorindex.VectorStore
	embed   embedder.Embedder
	clock   Clock
	metrics metrics.Sink
}

// Option configures a Service at construction time.
type Option func(*Service)

// WithClock overrides the default SystemClock, for deterministic tests.
func WithClock(c Clock) Option { return func(s *Service) { s.clock = c } }

// WithMetrics overrides the default no-op metrics sink.
func WithMetrics(m metrics.Sink) Option { return func(s *Service) { s.metrics = m } }

// New constructs a Service over an existing record store and vector
// index. The vector index may be nil — every tool with a defined
// fallback degrades to (A) when it is, reporting mode="fallback"; tools
// with no fallback return Unavailable.
func New(store *record.FileStore, index vectorindex.VectorStore, embed embedder.Embedder, opts ...Option) *Service {
	s := &Service{
		store:   store,
		index:   index,
		embed:   embed,
		clock:   SystemClock{},
		metrics: metrics.NoopSink{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// indexAvailable reports whether the vector index can be queried. A nil
// index (e.g. construction failed, or deliberately omitted) is treated
// the same as an index that errors on every call.
func (s *Service) indexAvailable() bool { return s.index != nil }

// Hit is a single retrieval result shared across the search tools.
type Hit struct {
	ID         string    `json:"id"`
	ScreenName string    `json:"screen_name"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	Score      float64   `json:"score"`
}

// relevance maps the vector store's raw similarity score to [0,1].
//
// Open question resolved: VectorStore.SimilaritySearch reports cosine
// similarity in [-1,1] (higher is closer), consistent across the qdrant,
// chromem, and memory backends. relevance = (score+1)/2, clamped, is the
// monotone transform this implementation picks per spec §9's open
// question on normalized distance.
func relevance(score float64) float64 {
	r := (score + 1) / 2
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// parseDateBound parses a date-only (YYYY-MM-DD) or full ISO-8601 input.
// A date-only start bound is midnight of that day; a date-only end bound
// is midnight at the *start* of the next day if endOfDay is true (so
// end_date is inclusive through 23:59:59.999...), matching the half-open
// contract of spec §8.
func parseDateBound(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		if endOfDay {
			return t.AddDate(0, 0, 1), nil
		}
		return t, nil
	}
	return time.Time{}, memexerr.Invalid("date", fmt.Sprintf("unparseable date %q: want YYYY-MM-DD or RFC3339", s))
}

func screenName(md map[string]any) string {
	v, _ := md["screen_name"].(string)
	return v
}

func timestampOf(md map[string]any) time.Time {
	for _, key := range []string{vectorindex.TimestampField} {
		if raw, ok := md[key]; ok {
			if micros, ok := toInt64Any(raw); ok {
				return time.UnixMicro(micros).UTC()
			}
		}
	}
	return time.Time{}
}

func toInt64Any(v any) (int64, bool) {
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
