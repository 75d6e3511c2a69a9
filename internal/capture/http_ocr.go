package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"memex/internal/config"
	"memex/internal/observability"
)

// httpClient is shared across calls, mirroring internal/embedding's client
// so OTel transport instrumentation wraps one long-lived client rather than
// one per request.
var httpClient = observability.NewHTTPClient(nil)

type ocrReq struct {
	ImagePNGBase64 string `json:"image_png_base64"`
}

type ocrResp struct {
	Text string `json:"text"`
}

// HTTPOCR calls an externally-hosted OCR endpoint (spec §1 treats OCR as
// an external collaborator), following the same request/response shape
// internal/embedding uses for the embedding endpoint.
type HTTPOCR struct {
	cfg config.OCRConfig
}

// NewHTTPOCR constructs an OCREngine backed by the configured OCR endpoint.
func NewHTTPOCR(cfg config.OCRConfig) HTTPOCR { return HTTPOCR{cfg: cfg} }

func (o HTTPOCR) Extract(ctx context.Context, img ScreenImage) (string, error) {
	reqBody, err := json.Marshal(ocrReq{ImagePNGBase64: base64.StdEncoding.EncodeToString(img.Data)})
	if err != nil {
		return "", err
	}
	timeout := time.Duration(o.cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := o.cfg.BaseURL + o.cfg.Path
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	if o.cfg.APIHeader == "Authorization" {
		req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	} else if o.cfg.APIHeader != "" {
		req.Header.Set(o.cfg.APIHeader, o.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ocr endpoint error: %s: %s", resp.Status, string(b))
	}

	var or ocrResp
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return "", fmt.Errorf("parse ocr response: %w", err)
	}
	return or.Text, nil
}
