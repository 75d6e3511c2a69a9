// Package record implements the Record Store (A): the canonical,
// append-only per-capture document store described in spec §3.1/§4.1,
// plus the filename codec of §6.1.
package record

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DataTypeOCR is the only data_type this revision produces.
const DataTypeOCR = "ocr"

// filenameLayout is second-resolution; it matches the ISO portion of the
// filename pattern in spec §6.1, with ':' replaced by '-' for filesystem
// safety (dots never appear at this resolution).
const filenameLayout = "2006-01-02T15-04-05"

// filenamePattern is the regex of spec §6.1.
var filenamePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2})(-\d+)?_([A-Za-z0-9_]+)\.([a-z]+)$`)

// CaptureRecord is the atomic unit of stored history (spec §3.1).
type CaptureRecord struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"-"`
	TimestampMicros int64     `json:"timestamp"`
	ScreenName      string    `json:"screen_name"`
	Text            string    `json:"text"`
	TextLength      int       `json:"text_length"`
	WordCount       int       `json:"word_count"`
	Source          string    `json:"source"`
	DataType        string    `json:"data_type"`
}

// New builds a CaptureRecord from a capture instant, screen, and OCR
// output, deriving id/text_length/word_count per the invariants of §3.1.
func New(ts time.Time, screenName, text, source string) CaptureRecord {
	ts = ts.UTC()
	return CaptureRecord{
		ID:              ts.Format(filenameLayout) + "_" + screenName,
		Timestamp:       ts,
		TimestampMicros: ts.UnixMicro(),
		ScreenName:      screenName,
		Text:            text,
		TextLength:      utf8.RuneCountInString(text),
		WordCount:       wordCount(text),
		Source:          source,
		DataType:        DataTypeOCR,
	}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// IsEmpty reports whether the OCR output is empty after trimming
// whitespace (spec §4.3 threshold policy).
func (r CaptureRecord) IsEmpty() bool {
	return strings.TrimSpace(r.Text) == ""
}

// Filename returns the on-disk file name for r (spec §6.1), with suffix
// used only to disambiguate a same-second, same-screen collision.
func Filename(ts time.Time, screenName string, suffix int, ext string) string {
	base := ts.UTC().Format(filenameLayout)
	if suffix > 0 {
		base = fmt.Sprintf("%s-%d", base, suffix)
	}
	return fmt.Sprintf("%s_%s.%s", base, screenName, ext)
}

// ParsedFilename is the result of parsing a record file name without
// opening the file, used by date/screen filters during iteration.
type ParsedFilename struct {
	Timestamp  time.Time
	ScreenName string
	Suffix     int
	Ext        string
}

// ParseFilename extracts the timestamp and screen name from a file name
// matching the pattern in spec §6.1, without reading the file's contents.
func ParseFilename(name string) (ParsedFilename, bool) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return ParsedFilename{}, false
	}
	ts, err := time.ParseInLocation(filenameLayout, m[1], time.UTC)
	if err != nil {
		return ParsedFilename{}, false
	}
	suffix := 0
	if m[2] != "" {
		suffix, _ = strconv.Atoi(strings.TrimPrefix(m[2], "-"))
	}
	return ParsedFilename{Timestamp: ts, ScreenName: m[3], Suffix: suffix, Ext: m[4]}, true
}
