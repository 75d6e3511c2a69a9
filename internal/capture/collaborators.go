// Package capture implements the Capture/Ingest Pipeline (C): a
// periodic tick loop that snapshots every active screen, extracts text
// via OCR, persists a CaptureRecord per screen, and upserts it into the
// Vector Index (spec §4.3).
package capture

import "context"

// ScreenImage is one screen's raw capture output, opaque to the
// pipeline beyond its screen identity.
type ScreenImage struct {
	ScreenName string
	Data       []byte
}

// ScreenCapturer is the external collaborator that snapshots every
// active screen. Real implementations shell out to a platform screen
// capture API; spec.md treats this as outside the module's boundary.
type ScreenCapturer interface {
	Capture(ctx context.Context) ([]ScreenImage, error)
}

// OCREngine is the external collaborator that extracts text from a
// screen image.
type OCREngine interface {
	Extract(ctx context.Context, img ScreenImage) (string, error)
}

// deterministicCapturer and deterministicOCR below are test/local
// doubles, grounded on the same "real client + deterministic double"
// shape used by internal/embedder for the embedding model.

// StaticCapturer returns the same fixed set of screen images on every
// tick. Useful for tests and local runs without real displays.
type StaticCapturer struct {
	Images []ScreenImage
}

func (s StaticCapturer) Capture(context.Context) ([]ScreenImage, error) {
	out := make([]ScreenImage, len(s.Images))
	copy(out, s.Images)
	return out, nil
}

// EchoOCR returns the image's Data decoded as UTF-8 text, unchanged.
// Used in tests in place of a real OCR engine, where ScreenImage.Data is
// set directly to the text a real OCR pass would have produced.
type EchoOCR struct{}

func (EchoOCR) Extract(_ context.Context, img ScreenImage) (string, error) {
	return string(img.Data), nil
}
