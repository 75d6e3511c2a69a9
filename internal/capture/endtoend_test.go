package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"memex/internal/embedder"
	"memex/internal/metrics"
	"memex/internal/record"
	"memex/internal/sync"
	"memex/internal/toolservice"
	"memex/internal/vectorindex"
)

// TestEndToEnd_CaptureIndexSyncStats drives the pipeline across several
// ticks, deletes a slice of index entries to simulate drift, reconciles
// with sync, then reads the result back through the Tool Service --
// exercising (C), (D), and (E) against the same record store and index
// spec §8's concrete scenarios describe.
func TestEndToEnd_CaptureIndexSyncStats(t *testing.T) {
	store, err := record.NewFileStore(t.TempDir())
	require.NoError(t, err)
	index := vectorindex.NewMemoryVector(64)
	embed := embedder.NewDeterministic(64, true, 0)
	cfg := Config{TickInterval: time.Hour, RecordDir: store.Dir(), Source: "screencapture"}
	p := New(cfg, store, index, embed,
		StaticCapturer{Images: []ScreenImage{
			{ScreenName: "Display_1", Data: []byte("quarterly invoice totals")},
			{ScreenName: "Display_2", Data: []byte("weekly standup notes")},
		}},
		EchoOCR{}, metrics.NewMockMetrics())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		p.onTick(ctx)
		time.Sleep(1100 * time.Millisecond) // cross a wall-clock second so ids never collide
	}

	onDisk, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 6, onDisk, "three ticks over two screens persist six records")

	indexed, err := index.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 6, indexed, "every capture had non-empty OCR text, so all six are indexed")

	// Simulate drift: delete every other entry from the index.
	var ids []string
	_, err = store.Iter(ctx, func(r record.CaptureRecord) error {
		ids = append(ids, r.ID)
		return nil
	})
	require.NoError(t, err)
	deleted := 0
	for i, id := range ids {
		if i%2 == 0 {
			require.NoError(t, index.Delete(ctx, id))
			deleted++
		}
	}
	remaining := len(ids) - deleted

	reconciler := sync.New(store, index, embed)
	report, err := reconciler.CatchUp(ctx)
	require.NoError(t, err)
	require.Equal(t, deleted, report.Added, "catch-up re-adds exactly the deleted entries")
	require.Equal(t, remaining, report.SkippedExisting)
	require.Equal(t, 0, report.Errors)

	report2, err := reconciler.CatchUp(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, report2.Added, "a second catch-up pass is a no-op")

	svc := toolservice.New(store, index, embed)
	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 6, stats.RecordCountOnDisk)
	require.True(t, stats.IndexAvailable)
	require.NotNil(t, stats.IndexCount)
	require.Equal(t, 6, *stats.IndexCount)
}
