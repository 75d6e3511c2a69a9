package toolservice

import (
	"context"

	"memex/internal/record"
)

// TimeRangeSummaryRequest is the input to time-range-summary.
type TimeRangeSummaryRequest struct {
	StartDate  string
	EndDate    string
	ScreenName string
}

// TimeRangeSummaryResponse wraps a sweep of up to 24 samples of the
// range with aggregate counts over the same window. A range shorter than
// 24 windows of 15 minutes (6 hours) yields fewer samples, one per
// 15-minute window.
type TimeRangeSummaryResponse struct {
	Samples       []Sample
	TotalRecords  int
	EmptyWindows  int
}

// TimeRangeSummary delegates to SampleTimeRange with max_samples fixed
// at 24 (spec §4.5.5), then adds the total record count in range and
// the count of windows that held nothing.
func (s *Service) TimeRangeSummary(ctx context.Context, req TimeRangeSummaryRequest) (TimeRangeSummaryResponse, error) {
	sampled, err := s.SampleTimeRange(ctx, SampleTimeRangeRequest{
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		ScreenName: req.ScreenName,
		MaxSamples: defaultMaxSamples,
	})
	if err != nil {
		return TimeRangeSummaryResponse{}, err
	}

	start, end, err := s.resolveRange(req.StartDate, req.EndDate)
	if err != nil {
		return TimeRangeSummaryResponse{}, err
	}

	total := 0
	_, err = s.store.Iter(ctx, func(r record.CaptureRecord) error {
		if req.ScreenName != "" && r.ScreenName != req.ScreenName {
			return nil
		}
		if r.Timestamp.Before(start) || !r.Timestamp.Before(end) {
			return nil
		}
		total++
		return nil
	})
	if err != nil {
		return TimeRangeSummaryResponse{}, err
	}

	empty := 0
	for _, sm := range sampled.Samples {
		if sm.Empty {
			empty++
		}
	}

	return TimeRangeSummaryResponse{
		Samples:      sampled.Samples,
		TotalRecords: total,
		EmptyWindows: empty,
	}, nil
}
