package capture

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/kbinani/screenshot"
)

// DisplayCapturer is the real ScreenCapturer: it snapshots every active
// display via the OS's native capture API, grounded on the same
// kbinani/screenshot library waddle uses for its Windows/Linux/macOS
// capture layer. Each display becomes one ScreenImage, PNG-encoded, with
// ScreenName set to "display_<index>".
type DisplayCapturer struct{}

func (DisplayCapturer) Capture(ctx context.Context) ([]ScreenImage, error) {
	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		return nil, fmt.Errorf("no active displays")
	}
	images := make([]ScreenImage, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := screenshot.CaptureDisplay(i)
		if err != nil {
			return nil, fmt.Errorf("capture display %d: %w", i, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode display %d: %w", i, err)
		}
		images = append(images, ScreenImage{
			ScreenName: fmt.Sprintf("display_%d", i),
			Data:       buf.Bytes(),
		})
	}
	return images, nil
}
