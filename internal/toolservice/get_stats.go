package toolservice

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"memex/internal/memexerr"
	"memex/internal/record"
)

// GetStatsResponse is the output of get-stats (spec §4.5.8). IndexCount
// is nil when the vector index is unavailable; callers must check
// IndexAvailable rather than treating a nil count as zero.
type GetStatsResponse struct {
	RecordCountOnDisk int
	IndexCount        *int
	FirstTimestamp    *time.Time
	LastTimestamp     *time.Time
	DistinctScreens   int
	IndexAvailable    bool
}

// GetStats reports the record store's extent (count, time bounds,
// distinct screens) and, when reachable, the vector index's entry count.
func (s *Service) GetStats(ctx context.Context) (GetStatsResponse, error) {
	resp := GetStatsResponse{}
	screens := make(map[string]struct{})

	_, err := s.store.Iter(ctx, func(r record.CaptureRecord) error {
		resp.RecordCountOnDisk++
		screens[r.ScreenName] = struct{}{}
		if resp.FirstTimestamp == nil || r.Timestamp.Before(*resp.FirstTimestamp) {
			ts := r.Timestamp
			resp.FirstTimestamp = &ts
		}
		if resp.LastTimestamp == nil || r.Timestamp.After(*resp.LastTimestamp) {
			ts := r.Timestamp
			resp.LastTimestamp = &ts
		}
		return nil
	})
	if err != nil {
		return GetStatsResponse{}, memexerr.Wrap(memexerr.KindIoFailure, "get-stats scan", err)
	}
	resp.DistinctScreens = len(screens)

	if !s.indexAvailable() {
		return resp, nil
	}
	count, err := s.index.Count(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("get-stats: vector index count failed, reporting unavailable")
		return resp, nil
	}
	resp.IndexCount = &count
	resp.IndexAvailable = true
	return resp, nil
}
