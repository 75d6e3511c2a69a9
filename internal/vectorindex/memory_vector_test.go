package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryVector_UpsertAndSimilaritySearch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVector(3)

	require.NoError(t, store.Upsert(ctx, "a", []float32{1, 0, 0}, map[string]any{"screen_name": "Display_1", TimestampField: int64(100)}))
	require.NoError(t, store.Upsert(ctx, "b", []float32{0, 1, 0}, map[string]any{"screen_name": "Display_2", TimestampField: int64(200)}))

	results, err := store.SimilaritySearch(ctx, []float32{1, 0, 0}, 2, Filter{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "a", results[0].ID)
}

func TestMemoryVector_SimilaritySearch_EqFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVector(3)
	require.NoError(t, store.Upsert(ctx, "a", []float32{1, 0, 0}, map[string]any{"screen_name": "Display_1"}))
	require.NoError(t, store.Upsert(ctx, "b", []float32{1, 0, 0}, map[string]any{"screen_name": "Display_2"}))

	results, err := store.SimilaritySearch(ctx, []float32{1, 0, 0}, 10, Filter{Eq: map[string]string{"screen_name": "Display_2"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "b", results[0].ID)
}

func TestMemoryVector_SimilaritySearch_TimestampRangeFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVector(3)
	require.NoError(t, store.Upsert(ctx, "old", []float32{1, 0, 0}, map[string]any{TimestampField: int64(100)}))
	require.NoError(t, store.Upsert(ctx, "new", []float32{1, 0, 0}, map[string]any{TimestampField: int64(900)}))

	gte := int64(500)
	results, err := store.SimilaritySearch(ctx, []float32{1, 0, 0}, 10, Filter{TimestampGTE: &gte})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "new", results[0].ID)
}

func TestMemoryVector_DeleteAndGetByIDsAndCount(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVector(3)
	require.NoError(t, store.Upsert(ctx, "a", []float32{1, 0, 0}, nil))
	require.NoError(t, store.Upsert(ctx, "b", []float32{0, 1, 0}, nil))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	got, err := store.GetByIDs(ctx, []string{"a", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].ID)

	require.NoError(t, store.Delete(ctx, "a"))
	n, err = store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
