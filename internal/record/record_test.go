package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_DerivesLengthsAndID(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r := New(ts, "Display_1", "hello world  foo", "screencapture")

	require.Equal(t, "2024-01-02T03-04-05_Display_1", r.ID)
	require.Equal(t, 16, r.TextLength)
	require.Equal(t, 3, r.WordCount)
	require.Equal(t, DataTypeOCR, r.DataType)
	require.False(t, r.IsEmpty())
}

func TestNew_EmptyTextIsEmpty(t *testing.T) {
	r := New(time.Now(), "Display_1", "   \n\t  ", "screencapture")
	require.True(t, r.IsEmpty())
	require.Equal(t, 0, r.WordCount)
}

func TestFilenameRoundTrip(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	name := Filename(ts, "Display_1", 0, "json")
	require.Equal(t, "2024-01-02T03-04-05_Display_1.json", name)

	pf, ok := ParseFilename(name)
	require.True(t, ok)
	require.True(t, ts.Equal(pf.Timestamp))
	require.Equal(t, "Display_1", pf.ScreenName)
	require.Equal(t, 0, pf.Suffix)
	require.Equal(t, "json", pf.Ext)
}

func TestFilenameWithSuffix(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	name := Filename(ts, "Display_1", 2, "json")
	require.Equal(t, "2024-01-02T03-04-05-2_Display_1.json", name)

	pf, ok := ParseFilename(name)
	require.True(t, ok)
	require.Equal(t, 2, pf.Suffix)
}

func TestParseFilename_RejectsNonMatching(t *testing.T) {
	for _, name := range []string{
		"not-a-record.json",
		"2024-01-02T03-04-05_Display 1.json",
		"2024-01-02T03-04-05_Display_1.JSON",
		".pending-upserts",
	} {
		_, ok := ParseFilename(name)
		require.False(t, ok, "expected %q to be rejected", name)
	}
}
