package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"memex/internal/embedder"
	"memex/internal/record"
	"memex/internal/vectorindex"
)

func setup(t *testing.T) (*record.FileStore, vectorindex.VectorStore, *Reconciler) {
	t.Helper()
	store, err := record.NewFileStore(t.TempDir())
	require.NoError(t, err)
	index := vectorindex.NewMemoryVector(64)
	embed := embedder.NewDeterministic(64, true, 0)
	return store, index, New(store, index, embed)
}

func TestCatchUp_AddsMissingSkipsExistingAndEmpty(t *testing.T) {
	store, index, r := setup(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)

	require.NoError(t, store.Put(record.New(base, "Display_1", "has text", "screencapture")))
	require.NoError(t, store.Put(record.New(base.Add(time.Minute), "Display_1", "", "screencapture")))
	require.NoError(t, store.Put(record.New(base.Add(2*time.Minute), "Display_1", "more text", "screencapture")))

	// Pre-seed the index with one of the three records so catch-up skips it.
	pre := record.New(base.Add(2*time.Minute), "Display_1", "more text", "screencapture")
	vecs, err := embedder.NewDeterministic(64, true, 0).EmbedBatch(ctx, []string{pre.Text})
	require.NoError(t, err)
	require.NoError(t, index.Upsert(ctx, pre.ID, vecs[0], map[string]any{}))

	rep, err := r.CatchUp(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, rep.Scanned)
	require.Equal(t, 1, rep.Added)
	require.Equal(t, 1, rep.SkippedEmpty)
	require.Equal(t, 1, rep.SkippedExisting)
	require.Equal(t, 0, rep.Errors)

	n, err := index.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestCatchUp_IsIdempotent(t *testing.T) {
	store, _, r := setup(t)
	ctx := context.Background()
	require.NoError(t, store.Put(record.New(time.Now(), "Display_1", "text", "screencapture")))

	first, err := r.CatchUp(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, first.Added)

	second, err := r.CatchUp(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, second.Added)
	require.Equal(t, 1, second.SkippedExisting)
}

func TestRebuild_ReplacesAllEntries(t *testing.T) {
	store, index, r := setup(t)
	ctx := context.Background()
	require.NoError(t, store.Put(record.New(time.Now(), "Display_1", "alpha", "screencapture")))
	require.NoError(t, store.Put(record.New(time.Now().Add(time.Minute), "Display_1", "beta", "screencapture")))

	_, err := r.CatchUp(ctx)
	require.NoError(t, err)

	rep, err := r.Rebuild(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, rep.Scanned)
	require.Equal(t, 2, rep.Added)

	n, err := index.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
