package toolservice

import (
	"context"
	"math"
	"time"

	"memex/internal/memexerr"
	"memex/internal/record"
)

// Sample is one window of sample-time-range's output: either the
// earliest record in that window, or an explicit empty marker. Empty
// windows are never interpolated from neighboring samples (spec §4.5.4).
type Sample struct {
	WindowStart time.Time
	WindowEnd   time.Time
	Empty       bool
	ID          string
	ScreenName  string
	Text        string
	Timestamp   time.Time
}

// SampleTimeRangeRequest is the input to sample-time-range.
type SampleTimeRangeRequest struct {
	StartDate       string
	EndDate         string
	ScreenName      string
	MaxSamples      int
	MinWindowMinutes int
}

// SampleTimeRangeResponse is the strictly time-ordered sequence of
// samples (or empty markers) covering [start_date, end_date).
type SampleTimeRangeResponse struct {
	Samples []Sample
}

const (
	defaultMaxSamples       = 24
	defaultMinWindowMinutes = 15
)

// SampleTimeRange divides [start_date, end_date) into
// min(max_samples, floor(span/min_window_minutes)) (never fewer than 1)
// equal-width windows and reports the earliest record in each, or an
// empty marker when a window holds none. A single store scan buckets
// every record into its window in one pass.
func (s *Service) SampleTimeRange(ctx context.Context, req SampleTimeRangeRequest) (SampleTimeRangeResponse, error) {
	start, end, err := s.resolveRange(req.StartDate, req.EndDate)
	if err != nil {
		return SampleTimeRangeResponse{}, err
	}

	maxSamples := req.MaxSamples
	if maxSamples <= 0 {
		maxSamples = defaultMaxSamples
	}
	minWindowMinutes := req.MinWindowMinutes
	if minWindowMinutes <= 0 {
		minWindowMinutes = defaultMinWindowMinutes
	}

	span := end.Sub(start)
	windows := int(math.Floor(span.Minutes() / float64(minWindowMinutes)))
	if windows > maxSamples {
		windows = maxSamples
	}
	if windows < 1 {
		windows = 1
	}
	windowDuration := span / time.Duration(windows)

	samples := make([]Sample, windows)
	for i := range samples {
		wStart := start.Add(time.Duration(i) * windowDuration)
		wEnd := wStart.Add(windowDuration)
		if i == windows-1 {
			wEnd = end
		}
		samples[i] = Sample{WindowStart: wStart, WindowEnd: wEnd, Empty: true}
	}

	_, err = s.store.Iter(ctx, func(r record.CaptureRecord) error {
		if req.ScreenName != "" && r.ScreenName != req.ScreenName {
			return nil
		}
		if r.Timestamp.Before(start) || !r.Timestamp.Before(end) {
			return nil
		}
		idx := windowIndex(r.Timestamp, start, windowDuration, windows)
		if idx < 0 || idx >= windows {
			return nil
		}
		if !samples[idx].Empty {
			return nil // already holds this window's earliest record
		}
		samples[idx] = Sample{
			WindowStart: samples[idx].WindowStart,
			WindowEnd:   samples[idx].WindowEnd,
			Empty:       false,
			ID:          r.ID,
			ScreenName:  r.ScreenName,
			Text:        r.Text,
			Timestamp:   r.Timestamp,
		}
		return nil
	})
	if err != nil {
		return SampleTimeRangeResponse{}, memexerr.Wrap(memexerr.KindIoFailure, "sample time range scan", err)
	}

	return SampleTimeRangeResponse{Samples: samples}, nil
}

func windowIndex(ts, start time.Time, windowDuration time.Duration, windows int) int {
	idx := int(ts.Sub(start) / windowDuration)
	if idx >= windows {
		idx = windows - 1
	}
	return idx
}

func (s *Service) resolveRange(startDate, endDate string) (time.Time, time.Time, error) {
	if startDate == "" || endDate == "" {
		return time.Time{}, time.Time{}, memexerr.Invalid("start_date/end_date", "both start_date and end_date are required")
	}
	start, err := parseDateBound(startDate, false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDateBound(endDate, true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, memexerr.Invalid("end_date", "end_date must be after start_date")
	}
	return start, end, nil
}
