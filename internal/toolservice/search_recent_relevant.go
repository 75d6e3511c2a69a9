package toolservice

import (
	"context"
	"sort"
	"time"

	"memex/internal/memexerr"
	"memex/internal/vectorindex"
)

// SearchRecentRelevantRequest is the input to search-recent-relevant
// (spec §4.5.3): a relevance/recency-blended search that starts with a
// short lookback window and doubles it until enough results qualify,
// rather than forcing the caller to guess a fixed window up front.
type SearchRecentRelevantRequest struct {
	Query         string
	ScreenName    string
	InitialDays   int
	MaxDays       int
	RecencyWeight float64
	MinScore      float64
	Limit         int
}

// SearchRecentRelevantResponse reports the window that ultimately
// satisfied the request, alongside the blended-score results.
type SearchRecentRelevantResponse struct {
	WindowDays int
	Results    []Hit
}

const (
	defaultInitialDays   = 7
	defaultMaxDays       = 90
	defaultRecencyWeight = 0.5
	defaultMinScore      = 0.6
)

// SearchRecentRelevant doubles its lookback window (starting at
// initial_days, capped at max_days) until at least limit results clear
// min_score, or the window can no longer expand. Each candidate's score
// blends relevance (embedding similarity) and recency (linear decay over
// max_days) per recency_weight; ids already seen in a smaller window are
// never re-emitted when the window grows.
func (s *Service) SearchRecentRelevant(ctx context.Context, req SearchRecentRelevantRequest) (SearchRecentRelevantResponse, error) {
	if !s.indexAvailable() {
		return SearchRecentRelevantResponse{}, memexerr.New(memexerr.KindUnavailable, "vector index unavailable, no fallback defined for search-recent-relevant")
	}

	initialDays := req.InitialDays
	if initialDays <= 0 {
		initialDays = defaultInitialDays
	}
	maxDays := req.MaxDays
	if maxDays <= 0 {
		maxDays = defaultMaxDays
	}
	if maxDays < initialDays {
		maxDays = initialDays
	}
	recencyWeight := req.RecencyWeight
	if recencyWeight == 0 {
		recencyWeight = defaultRecencyWeight
	}
	minScore := req.MinScore
	if minScore <= 0 {
		minScore = defaultMinScore
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	vectors, err := s.embed.EmbedBatch(ctx, []string{req.Query})
	if err != nil {
		return SearchRecentRelevantResponse{}, memexerr.Wrap(memexerr.KindUnavailable, "embed query", err)
	}
	queryVec := vectors[0]

	now := s.clock.Now()
	days := initialDays
	seen := make(map[string]bool)
	var scored []scoredHit

	for {
		gte := now.AddDate(0, 0, -days).UnixMicro()
		lte := now.UnixMicro()
		filter := vectorindex.Filter{TimestampGTE: &gte, TimestampLTE: &lte}
		if req.ScreenName != "" {
			filter.Eq = map[string]string{"screen_name": req.ScreenName}
		}

		results, err := s.index.SimilaritySearch(ctx, queryVec, limit*4, filter)
		if err != nil {
			return SearchRecentRelevantResponse{}, err
		}

		scored = scored[:0]
		seen = make(map[string]bool)
		for _, r := range results {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			ts := timestampOf(r.Metadata)
			rel := relevance(r.Score)
			recency := recencyOf(ts, now, maxDays)
			score := (1-recencyWeight)*rel + recencyWeight*recency
			if score < minScore {
				continue
			}
			scored = append(scored, scoredHit{
				hit: Hit{
					ID:         r.ID,
					ScreenName: screenName(r.Metadata),
					Timestamp:  ts,
					Score:      score,
				},
				score: score,
			})
		}

		if len(scored) >= limit || days >= maxDays {
			break
		}
		days *= 2
		if days > maxDays {
			days = maxDays
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > limit {
		scored = scored[:limit]
	}

	hits := make([]Hit, len(scored))
	for i, sh := range scored {
		hits[i] = sh.hit
		text, _ := s.hydrateText(sh.hit.ID)
		hits[i].Text = text
	}
	return SearchRecentRelevantResponse{WindowDays: days, Results: hits}, nil
}

type scoredHit struct {
	hit   Hit
	score float64
}

// recencyOf maps an age in [0, maxDays] linearly to [0,1]; ages beyond
// maxDays clamp to 0 relevance-from-recency, ages of 0 clamp to 1.
func recencyOf(ts, now time.Time, maxDays int) float64 {
	if ts.IsZero() || maxDays <= 0 {
		return 0
	}
	age := now.Sub(ts).Hours() / 24
	frac := age / float64(maxDays)
	if frac > 1 {
		frac = 1
	}
	if frac < 0 {
		frac = 0
	}
	return 1 - frac
}
