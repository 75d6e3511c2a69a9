package capture

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"memex/internal/config"
)

func TestHTTPOCR_AuthorizationHeaderAndDecode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req ocrReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.ImagePNGBase64)
		b, _ := json.Marshal(ocrResp{Text: "hello world"})
		w.Write(b)
	}))
	defer ts.Close()

	ocr := NewHTTPOCR(config.OCRConfig{BaseURL: ts.URL, Path: "/", APIHeader: "Authorization", APIKey: "secret"})
	text, err := ocr.Extract(context.Background(), ScreenImage{ScreenName: "display-0", Data: []byte{0x89, 0x50, 0x4e, 0x47}})
	require.NoError(t, err)
	require.Equal(t, "hello world", text)
}

func TestHTTPOCR_NonOKStatusIsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("ocr backend down"))
	}))
	defer ts.Close()

	ocr := NewHTTPOCR(config.OCRConfig{BaseURL: ts.URL, Path: "/"})
	_, err := ocr.Extract(context.Background(), ScreenImage{Data: []byte{1, 2, 3}})
	require.Error(t, err)
}
