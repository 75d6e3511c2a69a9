package toolservice

import (
	"context"
	"sort"
	"time"

	"memex/internal/memexerr"
	"memex/internal/record"
)

const (
	dailyPeriodCount    = 6
	dailyPeriodHours    = 24 / dailyPeriodCount
	dailySubWindowCount = 5
	dailyTopScreens     = 3
)

// ScreenCount is a screen_name's record count within a period.
type ScreenCount struct {
	ScreenName string
	Count      int
}

// DailyPeriod is one of the day's six fixed 4-hour periods.
type DailyPeriod struct {
	Start       time.Time
	End         time.Time
	RecordCount int
	TopScreens  []ScreenCount
	Samples     []Sample
}

// DailySummaryRequest is the input to daily-summary.
type DailySummaryRequest struct {
	Date       string
	ScreenName string
}

// DailySummaryResponse is the day's six periods, in chronological order.
type DailySummaryResponse struct {
	Periods []DailyPeriod
}

// DailySummary buckets a single day into six fixed 4-hour periods,
// reporting each period's record count, its top-3 screens by count, and
// up to five samples drawn one-per-equal-sub-window (spec §4.5.6).
func (s *Service) DailySummary(ctx context.Context, req DailySummaryRequest) (DailySummaryResponse, error) {
	if req.Date == "" {
		return DailySummaryResponse{}, memexerr.Invalid("date", "date is required")
	}
	dayStart, err := parseDateBound(req.Date, false)
	if err != nil {
		return DailySummaryResponse{}, err
	}
	dayEnd := dayStart.AddDate(0, 0, 1)

	periods := make([]DailyPeriod, dailyPeriodCount)
	screenCounts := make([]map[string]int, dailyPeriodCount)
	subSamples := make([][]Sample, dailyPeriodCount)
	subWindowDuration := time.Duration(dailyPeriodHours) * time.Hour / dailySubWindowCount

	for i := range periods {
		start := dayStart.Add(time.Duration(i*dailyPeriodHours) * time.Hour)
		end := start.Add(time.Duration(dailyPeriodHours) * time.Hour)
		periods[i] = DailyPeriod{Start: start, End: end}
		screenCounts[i] = make(map[string]int)
		subSamples[i] = make([]Sample, dailySubWindowCount)
		for j := range subSamples[i] {
			subSamples[i][j] = Sample{
				WindowStart: start.Add(time.Duration(j) * subWindowDuration),
				WindowEnd:   start.Add(time.Duration(j+1) * subWindowDuration),
				Empty:       true,
			}
		}
	}

	_, err = s.store.Iter(ctx, func(r record.CaptureRecord) error {
		if req.ScreenName != "" && r.ScreenName != req.ScreenName {
			return nil
		}
		if r.Timestamp.Before(dayStart) || !r.Timestamp.Before(dayEnd) {
			return nil
		}
		periodIdx := int(r.Timestamp.Sub(dayStart) / (time.Duration(dailyPeriodHours) * time.Hour))
		if periodIdx >= dailyPeriodCount {
			periodIdx = dailyPeriodCount - 1
		}
		periods[periodIdx].RecordCount++
		screenCounts[periodIdx][r.ScreenName]++

		periodStart := periods[periodIdx].Start
		subIdx := int(r.Timestamp.Sub(periodStart) / subWindowDuration)
		if subIdx >= dailySubWindowCount {
			subIdx = dailySubWindowCount - 1
		}
		if subSamples[periodIdx][subIdx].Empty {
			subSamples[periodIdx][subIdx] = Sample{
				WindowStart: subSamples[periodIdx][subIdx].WindowStart,
				WindowEnd:   subSamples[periodIdx][subIdx].WindowEnd,
				Empty:       false,
				ID:          r.ID,
				ScreenName:  r.ScreenName,
				Text:        r.Text,
				Timestamp:   r.Timestamp,
			}
		}
		return nil
	})
	if err != nil {
		return DailySummaryResponse{}, memexerr.Wrap(memexerr.KindIoFailure, "daily summary scan", err)
	}

	for i := range periods {
		var top []ScreenCount
		for name, count := range screenCounts[i] {
			top = append(top, ScreenCount{ScreenName: name, Count: count})
		}
		sort.Slice(top, func(a, b int) bool {
			if top[a].Count != top[b].Count {
				return top[a].Count > top[b].Count
			}
			return top[a].ScreenName < top[b].ScreenName
		})
		if len(top) > dailyTopScreens {
			top = top[:dailyTopScreens]
		}
		periods[i].TopScreens = top
		periods[i].Samples = subSamples[i]
	}

	return DailySummaryResponse{Periods: periods}, nil
}
