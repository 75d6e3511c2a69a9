package toolservice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"memex/internal/embedder"
	"memex/internal/record"
	"memex/internal/vectorindex"
)

type fixedClock struct{ now time.Time }

func (f fixedClock) Now() time.Time { return f.now }

func setupService(t *testing.T) (*Service, *record.FileStore, vectorindex.VectorStore, fixedClock) {
	t.Helper()
	store, err := record.NewFileStore(t.TempDir())
	require.NoError(t, err)
	index := vectorindex.NewMemoryVector(64)
	embed := embedder.NewDeterministic(64, true, 0)
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	clock := fixedClock{now: now}
	svc := New(store, index, embed, WithClock(clock))
	return svc, store, index, clock
}

func seedRecord(t *testing.T, store *record.FileStore, index vectorindex.VectorStore, embed embedder.Embedder, ts time.Time, screen, text string) record.CaptureRecord {
	t.Helper()
	ctx := context.Background()
	r := record.New(ts, screen, text, "screencapture")
	require.NoError(t, store.Put(r))
	if !r.IsEmpty() {
		vecs, err := embed.EmbedBatch(ctx, []string{text})
		require.NoError(t, err)
		md := map[string]any{
			"screen_name":              r.ScreenName,
			vectorindex.TimestampField: r.TimestampMicros,
			"text_length":              r.TextLength,
			"word_count":               r.WordCount,
		}
		require.NoError(t, index.Upsert(ctx, r.ID, vecs[0], md))
	}
	return r
}

func TestSearchScreenshots_UsesIndexWhenAvailable(t *testing.T) {
	svc, store, index, clock := setupService(t)
	embed := embedder.NewDeterministic(64, true, 0)
	seedRecord(t, store, index, embed, clock.now.Add(-time.Hour), "Display_1", "quarterly budget review spreadsheet")
	seedRecord(t, store, index, embed, clock.now.Add(-30*time.Minute), "Display_1", "unrelated chat window")

	resp, err := svc.SearchScreenshots(context.Background(), SearchScreenshotsRequest{Query: "quarterly budget review", Limit: 5})
	require.NoError(t, err)
	require.Equal(t, "index", resp.Mode)
	require.NotEmpty(t, resp.Results)
}

func TestSearchScreenshots_FallsBackWhenIndexNil(t *testing.T) {
	store, err := record.NewFileStore(t.TempDir())
	require.NoError(t, err)
	embed := embedder.NewDeterministic(64, true, 0)
	svc := New(store, nil, embed)

	now := time.Now()
	require.NoError(t, store.Put(record.New(now.Add(-time.Hour), "Display_1", "budget budget review", "screencapture")))
	require.NoError(t, store.Put(record.New(now, "Display_1", "unrelated text", "screencapture")))

	resp, err := svc.SearchScreenshots(context.Background(), SearchScreenshotsRequest{Query: "budget", Limit: 5})
	require.NoError(t, err)
	require.Equal(t, "fallback", resp.Mode)
	require.Len(t, resp.Results, 1)
	require.Equal(t, 2, int(resp.Results[0].Score))
}

func TestSampleTimeRange_MarksEmptyWindowsWithoutInterpolating(t *testing.T) {
	svc, store, index, clock := setupService(t)
	embed := embedder.NewDeterministic(64, true, 0)
	start := clock.now.Add(-4 * time.Hour)
	seedRecord(t, store, index, embed, start.Add(10*time.Minute), "Display_1", "morning notes")

	resp, err := svc.SampleTimeRange(context.Background(), SampleTimeRangeRequest{
		StartDate:        start.Format(time.RFC3339),
		EndDate:          clock.now.Format(time.RFC3339),
		MaxSamples:       4,
		MinWindowMinutes: 15,
	})
	require.NoError(t, err)
	require.Len(t, resp.Samples, 4)
	require.False(t, resp.Samples[0].Empty)
	for _, sm := range resp.Samples[1:] {
		require.True(t, sm.Empty)
	}
}

func TestActivityGraph_ZeroFillsEveryBucket(t *testing.T) {
	svc, store, index, clock := setupService(t)
	embed := embedder.NewDeterministic(64, true, 0)
	seedRecord(t, store, index, embed, clock.now.Add(-23*time.Hour), "Display_1", "early capture")

	resp, err := svc.ActivityGraph(context.Background(), ActivityGraphRequest{Range: "day", Granularity: "hour"})
	require.NoError(t, err)
	require.Len(t, resp.Buckets, 24)
	nonZero := 0
	for _, b := range resp.Buckets {
		if b.RecordCount > 0 {
			nonZero++
		}
	}
	require.Equal(t, 1, nonZero)
}

func TestGetStats_ReportsIndexUnavailable(t *testing.T) {
	store, err := record.NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Put(record.New(time.Now(), "Display_1", "hello", "screencapture")))
	embed := embedder.NewDeterministic(64, true, 0)
	svc := New(store, nil, embed)

	resp, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, resp.RecordCountOnDisk)
	require.False(t, resp.IndexAvailable)
	require.Nil(t, resp.IndexCount)
}

func TestGetStats_ReportsIndexCountWhenAvailable(t *testing.T) {
	svc, store, index, clock := setupService(t)
	embed := embedder.NewDeterministic(64, true, 0)
	seedRecord(t, store, index, embed, clock.now, "Display_1", "text here")

	resp, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	require.True(t, resp.IndexAvailable)
	require.NotNil(t, resp.IndexCount)
	require.Equal(t, 1, *resp.IndexCount)
}

func TestDailySummary_BucketsIntoSixPeriods(t *testing.T) {
	svc, store, index, _ := setupService(t)
	embed := embedder.NewDeterministic(64, true, 0)
	day := time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)
	seedRecord(t, store, index, embed, day.Add(1*time.Hour), "Display_1", "early morning")
	seedRecord(t, store, index, embed, day.Add(13*time.Hour), "Display_2", "afternoon")

	resp, err := svc.DailySummary(context.Background(), DailySummaryRequest{Date: "2026-01-09"})
	require.NoError(t, err)
	require.Len(t, resp.Periods, 6)
	require.Equal(t, 1, resp.Periods[0].RecordCount)
	require.Equal(t, 1, resp.Periods[3].RecordCount)
}

func TestVectorSearchWindowed_ClampsWindowCountNotSpan(t *testing.T) {
	svc, store, index, clock := setupService(t)
	embed := embedder.NewDeterministic(64, true, 0)
	// Outside the true 1-hour span: a narrowed-window search must not widen
	// the span to compensate for the window-count floor.
	seedRecord(t, store, index, embed, clock.now.Add(-2*time.Hour), "Display_1", "design review notes")

	resp, err := svc.VectorSearchWindowed(context.Background(), VectorSearchWindowedRequest{
		Query:     "design review notes",
		HoursBack: 1, // below the 4-window floor
	})
	require.NoError(t, err)
	require.Equal(t, 4, resp.WindowCount, "window count floors at 4 even though the span stays 1 hour")
	require.Empty(t, resp.Results, "the record at -2h falls outside the true 1-hour span")
}

func TestVectorSearchWindowed_LongSpanIsNotTruncated(t *testing.T) {
	svc, store, index, clock := setupService(t)
	embed := embedder.NewDeterministic(64, true, 0)
	// 60 hours back is older than the 48-window ceiling would be if it were
	// (wrongly) treated as an hours-back clamp; the full span must still be
	// searched, just with wider windows.
	seedRecord(t, store, index, embed, clock.now.Add(-60*time.Hour), "Display_1", "quarterly budget review")

	resp, err := svc.VectorSearchWindowed(context.Background(), VectorSearchWindowedRequest{
		Query:     "quarterly budget review",
		HoursBack: 72,
	})
	require.NoError(t, err)
	require.Equal(t, 48, resp.WindowCount, "window count ceilings at 48 while the 72-hour span is preserved")
	require.Len(t, resp.Results, 1, "a record 60 hours back is still within the 72-hour span")
}
