package toolservice

import (
	"context"
	"sort"
	"time"

	"memex/internal/memexerr"
	"memex/internal/vectorindex"
)

// VectorSearchWindowedRequest is the input to vector-search-windowed
// (spec §4.5.2): a best-match-per-window scan over the trailing
// hours_back hours, useful for "what was I looking at, roughly every
// hour, over the last two days" style recall.
type VectorSearchWindowedRequest struct {
	Query        string
	ScreenName   string
	HoursBack    int
	MinRelevance float64
	Limit        int
}

// VectorSearchWindowedResponse is the ordered (oldest-first) set of
// per-window best matches. WindowCount is W, the number of windows the
// requested lookback span was actually partitioned into (spec §4.5.2
// step 1) — not a duration.
type VectorSearchWindowedResponse struct {
	WindowCount int
	Results     []Hit
}

const (
	// minWindowCount and maxWindowCount bound W, the window *count*
	// clamp(hours_back,4,48) from spec §4.5.2 step 1 — they are not a
	// bound on the requested lookback span itself.
	minWindowCount = 4
	maxWindowCount = 48

	defaultHoursBack    = 24
	defaultMinRelevance = 0.5
)

// VectorSearchWindowed partitions the requested [now-hours_back, now]
// span into W = clamp(hours_back,4,48) contiguous windows, each of width
// hours_back/W, and runs an independent k=1 similarity query per window,
// restricted to that window's timestamp range and to relevance >=
// min_relevance (spec §4.5.2). A span longer than 48 hours is still
// searched in full — it simply gets wider windows — and a span shorter
// than 4 hours gets narrower-than-an-hour windows rather than having its
// span silently widened. Windows are queried concurrently (grounded on
// the teacher's parallel-candidate fan-out) since each is an
// independent, side-effect-free read. A window with no qualifying
// result simply contributes nothing; the final result set is sorted
// ascending by timestamp and capped at limit.
func (s *Service) VectorSearchWindowed(ctx context.Context, req VectorSearchWindowedRequest) (VectorSearchWindowedResponse, error) {
	if !s.indexAvailable() {
		return VectorSearchWindowedResponse{}, memexerr.New(memexerr.KindUnavailable, "vector index unavailable, no fallback defined for vector-search-windowed")
	}

	hoursBack := req.HoursBack
	if hoursBack <= 0 {
		hoursBack = defaultHoursBack
	}
	windowCount := hoursBack
	if windowCount < minWindowCount {
		windowCount = minWindowCount
	}
	if windowCount > maxWindowCount {
		windowCount = maxWindowCount
	}
	windowWidth := time.Duration(hoursBack) * time.Hour / time.Duration(windowCount)

	minRelevance := req.MinRelevance
	if minRelevance <= 0 {
		minRelevance = defaultMinRelevance
	}

	vectors, err := s.embed.EmbedBatch(ctx, []string{req.Query})
	if err != nil {
		return VectorSearchWindowedResponse{}, memexerr.Wrap(memexerr.KindUnavailable, "embed query", err)
	}
	queryVec := vectors[0]

	now := s.clock.Now()
	tStart := now.Add(-time.Duration(hoursBack) * time.Hour)
	limit := req.Limit
	if limit <= 0 {
		limit = windowCount
	}

	type windowResult struct {
		hit *Hit
		err error
	}
	results := make([]windowResult, windowCount)
	resultsCh := make(chan int, windowCount)

	for w := 0; w < windowCount; w++ {
		w := w
		go func() {
			windowStart := tStart.Add(time.Duration(w) * windowWidth)
			windowEnd := windowStart.Add(windowWidth)
			gte := windowStart.UnixMicro()
			lte := windowEnd.UnixMicro()
			if w < windowCount-1 {
				lte-- // half-open: a boundary instant belongs to the later window
			}

			filter := vectorindex.Filter{TimestampGTE: &gte, TimestampLTE: &lte}
			if req.ScreenName != "" {
				filter.Eq = map[string]string{"screen_name": req.ScreenName}
			}

			hits, err := s.index.SimilaritySearch(ctx, queryVec, 1, filter)
			if err != nil {
				results[w] = windowResult{err: err}
				resultsCh <- w
				return
			}
			if len(hits) == 0 {
				resultsCh <- w
				return
			}
			rel := relevance(hits[0].Score)
			if rel < minRelevance {
				resultsCh <- w
				return
			}
			text, _ := s.hydrateText(hits[0].ID)
			h := Hit{
				ID:         hits[0].ID,
				ScreenName: screenName(hits[0].Metadata),
				Text:       text,
				Timestamp:  timestampOf(hits[0].Metadata),
				Score:      rel,
			}
			results[w] = windowResult{hit: &h}
			resultsCh <- w
		}()
	}
	for i := 0; i < windowCount; i++ {
		<-resultsCh
	}

	var hits []Hit
	for _, r := range results {
		if r.err != nil {
			continue // one window's failure does not abort the others
		}
		if r.hit != nil {
			hits = append(hits, *r.hit)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Timestamp.Before(hits[j].Timestamp) })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return VectorSearchWindowedResponse{WindowCount: windowCount, Results: hits}, nil
}
