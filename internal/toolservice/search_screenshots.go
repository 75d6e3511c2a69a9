package toolservice

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"memex/internal/memexerr"
	"memex/internal/record"
	"memex/internal/vectorindex"
)

// SearchScreenshotsRequest is the input to search-screenshots (spec §4.5.1).
type SearchScreenshotsRequest struct {
	Query      string
	ScreenName string
	StartDate  string
	EndDate    string
	Limit      int
}

// SearchScreenshotsResponse reports which retrieval path served the
// request: "index" when the vector index answered, "fallback" when it
// was unreachable and the request was served by a direct file scan.
type SearchScreenshotsResponse struct {
	Mode    string
	Results []Hit
}

const defaultSearchLimit = 10

// SearchScreenshots resolves a free-text query against the vector index,
// narrowed by any of screen_name/start_date/end_date the caller supplied.
// On index unavailability or timeout it degrades to a case-insensitive
// substring scan of the record store, ranked by match frequency with
// recency as the tiebreaker (spec §4.5.1, §8 scenario 2).
func (s *Service) SearchScreenshots(ctx context.Context, req SearchScreenshotsRequest) (SearchScreenshotsResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	filter, err := s.buildFilter(req.ScreenName, req.StartDate, req.EndDate)
	if err != nil {
		return SearchScreenshotsResponse{}, err
	}

	if s.indexAvailable() {
		resp, err := s.searchViaIndex(ctx, req.Query, limit, filter)
		if err == nil {
			return resp, nil
		}
		if kind, ok := memexerr.Of(err); !ok || (kind != memexerr.KindUnavailable && kind != memexerr.KindTimeout) {
			return SearchScreenshotsResponse{}, err
		}
		log.Warn().Err(err).Msg("search-screenshots: index unavailable, falling back to file scan")
	}

	s.metrics.IncCounter("toolservice_search_fallback_total", nil)
	return s.searchViaFallback(ctx, req, limit)
}

func (s *Service) buildFilter(screenName, startDate, endDate string) (vectorindex.Filter, error) {
	var f vectorindex.Filter
	if screenName != "" {
		f.Eq = map[string]string{"screen_name": screenName}
	}
	if startDate != "" {
		t, err := parseDateBound(startDate, false)
		if err != nil {
			return f, err
		}
		gte := t.UnixMicro()
		f.TimestampGTE = &gte
	}
	if endDate != "" {
		t, err := parseDateBound(endDate, true)
		if err != nil {
			return f, err
		}
		lte := t.UnixMicro()
		f.TimestampLTE = &lte
	}
	return f, nil
}

func (s *Service) searchViaIndex(ctx context.Context, query string, limit int, filter vectorindex.Filter) (SearchScreenshotsResponse, error) {
	vectors, err := s.embed.EmbedBatch(ctx, []string{query})
	if err != nil {
		return SearchScreenshotsResponse{}, memexerr.Wrap(memexerr.KindUnavailable, "embed query", err)
	}
	results, err := s.index.SimilaritySearch(ctx, vectors[0], limit, filter)
	if err != nil {
		if _, ok := memexerr.Of(err); !ok {
			// A backend error with no memexerr kind (e.g. a qdrant
			// connection failure) counts as the index being unavailable.
			err = memexerr.Wrap(memexerr.KindUnavailable, "vector search", err)
		}
		return SearchScreenshotsResponse{}, err
	}
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		text, _ := s.hydrateText(r.ID)
		hits = append(hits, Hit{
			ID:         r.ID,
			ScreenName: screenName(r.Metadata),
			Text:       text,
			Timestamp:  timestampOf(r.Metadata),
			Score:      relevance(r.Score),
		})
	}
	return SearchScreenshotsResponse{Mode: "index", Results: hits}, nil
}

func (s *Service) searchViaFallback(ctx context.Context, req SearchScreenshotsRequest, limit int) (SearchScreenshotsResponse, error) {
	var startBound, endBound *int64
	if req.StartDate != "" {
		t, err := parseDateBound(req.StartDate, false)
		if err != nil {
			return SearchScreenshotsResponse{}, err
		}
		v := t.UnixMicro()
		startBound = &v
	}
	if req.EndDate != "" {
		t, err := parseDateBound(req.EndDate, true)
		if err != nil {
			return SearchScreenshotsResponse{}, err
		}
		v := t.UnixMicro()
		endBound = &v
	}

	type candidate struct {
		rec   record.CaptureRecord
		count int
	}
	var candidates []candidate
	_, err := s.store.Iter(ctx, func(r record.CaptureRecord) error {
		if req.ScreenName != "" && r.ScreenName != req.ScreenName {
			return nil
		}
		if startBound != nil && r.TimestampMicros < *startBound {
			return nil
		}
		if endBound != nil && r.TimestampMicros >= *endBound {
			return nil
		}
		if req.Query == "" {
			candidates = append(candidates, candidate{rec: r, count: 1})
			return nil
		}
		n := substringCount(r.Text, req.Query)
		if n > 0 {
			candidates = append(candidates, candidate{rec: r, count: n})
		}
		return nil
	})
	if err != nil {
		return SearchScreenshotsResponse{}, memexerr.Wrap(memexerr.KindIoFailure, "fallback scan", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].rec.Timestamp.After(candidates[j].rec.Timestamp)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	hits := make([]Hit, 0, len(candidates))
	for _, c := range candidates {
		hits = append(hits, Hit{
			ID:         c.rec.ID,
			ScreenName: c.rec.ScreenName,
			Text:       c.rec.Text,
			Timestamp:  c.rec.Timestamp,
			Score:      float64(c.count),
		})
	}
	return SearchScreenshotsResponse{Mode: "fallback", Results: hits}, nil
}

func substringCount(haystack, needle string) int {
	if needle == "" {
		return 0
	}
	return strings.Count(strings.ToLower(haystack), strings.ToLower(needle))
}

// hydrateText recovers the full OCR text for a vector-index hit, whose
// metadata carries only length/word-count summaries, by re-reading the
// record store (the vector index is never the source of truth for text).
func (s *Service) hydrateText(id string) (string, error) {
	r, err := s.store.ReadFile(id + ".json")
	if err != nil {
		return "", err
	}
	return r.Text, nil
}
