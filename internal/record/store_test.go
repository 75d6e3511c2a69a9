package record

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"memex/internal/memexerr"
)

func TestFileStore_PutAndReadFile(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r := New(ts, "Display_1", "some text here", "screencapture")
	require.NoError(t, s.Put(r))

	got, err := s.ReadFile(Filename(ts, "Display_1", 0, "json"))
	require.NoError(t, err)
	require.Equal(t, r.ID, got.ID)
	require.Equal(t, r.Text, got.Text)
	require.True(t, ts.Equal(got.Timestamp))
}

func TestFileStore_Put_DuplicateIsHardError(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r := New(ts, "Display_1", "first", "screencapture")
	require.NoError(t, s.Put(r))

	dup := New(ts, "Display_1", "second", "screencapture")
	err = s.Put(dup)
	require.Error(t, err)
	kind, ok := memexerr.Of(err)
	require.True(t, ok)
	require.Equal(t, memexerr.KindDuplicateID, kind)
}

func TestFileStore_Iter_OrdersChronologicallyAndSkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.Put(New(base.Add(2*time.Minute), "Display_1", "third", "screencapture")))
	require.NoError(t, s.Put(New(base, "Display_1", "first", "screencapture")))
	require.NoError(t, s.Put(New(base.Add(time.Minute), "Display_1", "second", "screencapture")))

	// A malformed file using a well-formed name but invalid JSON body.
	badName := Filename(base.Add(3*time.Minute), "Display_1", 0, "json")
	require.NoError(t, os.WriteFile(filepath.Join(dir, badName), []byte("not json"), 0o644))

	var texts []string
	skipped, err := s.Iter(context.Background(), func(r CaptureRecord) error {
		texts = append(texts, r.Text)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second", "third"}, texts)
	require.Len(t, skipped, 1)
	require.Equal(t, badName, skipped[0].Name)
}

func TestFileStore_PendingQueue_EnqueueDedupeAndDrain(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.EnqueuePending("id-1"))
	require.NoError(t, s.EnqueuePending("id-2"))
	require.NoError(t, s.EnqueuePending("id-1")) // duplicate, no-op

	ids, err := s.DrainPending()
	require.NoError(t, err)
	require.Equal(t, []string{"id-1", "id-2"}, ids)

	// Drained queue is now empty.
	ids, err = s.DrainPending()
	require.NoError(t, err)
	require.Empty(t, ids)
}
