package screenshot

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/olegrjumin/riskscan/internal/logging"
)

func skipWithoutBrowser(t *testing.T) {
	t.Helper()
	if os.Getenv("CI") == "true" {
		t.Skip("Skipping browser test in CI")
	}
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell", "chrome"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("Skipping browser test: no Chrome binary found")
}

func TestScreenshotter(t *testing.T) {
	skipWithoutBrowser(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body style="background:#c33"><h1>capture me</h1></body></html>`))
	}))
	defer srv.Close()

	s, err := New(PoolConfig{Size: 1}, logging.Discard())
	if err != nil {
		t.Fatalf("Failed to create screenshotter: %v", err)
	}
	defer s.Close()

	result, err := s.Capture(context.Background(), &Options{URL: srv.URL, TimeoutMs: 10000})
	if err != nil {
		t.Fatalf("Failed to capture screenshot: %v", err)
	}
	if !result.Success {
		t.Error("Expected success")
	}
	if len(result.Data) == 0 || result.SizeBytes != int64(len(result.Data)) {
		t.Errorf("Unexpected data size %d / %d", len(result.Data), result.SizeBytes)
	}
	if result.MimeType != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %s", result.MimeType)
	}
	if result.BlurHash == "" {
		t.Error("Expected a blurhash")
	}
}

func TestBrowserPool(t *testing.T) {
	skipWithoutBrowser(t)

	pool, err := NewBrowserPool(PoolConfig{Size: 2}, logging.Discard())
	if err != nil {
		t.Fatalf("Failed to create browser pool: %v", err)
	}
	defer pool.Close()

	available, total := pool.Health()
	if total != 2 || available != 2 {
		t.Errorf("Expected 2/2 available, got %d/%d", available, total)
	}

	first, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Failed to acquire instance: %v", err)
	}
	second, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Failed to acquire instance: %v", err)
	}
	if _, err := pool.Acquire(context.Background()); err != ErrBrowserUnavailable {
		t.Errorf("Expected ErrBrowserUnavailable, got %v", err)
	}

	pool.Release(first)
	pool.Release(second)

	available, _ = pool.Health()
	if available != 2 {
		t.Errorf("Expected 2 available after release, got %d", available)
	}
}

func TestOptionsValidation(t *testing.T) {
	tests := []struct {
		name       string
		opts       *Options
		wantErr    bool
		wantFormat string
		wantMs     int
	}{
		{name: "empty URL", opts: &Options{}, wantErr: true},
		{name: "bad scheme", opts: &Options{URL: "ftp://example.com"}, wantErr: true},
		{name: "no host", opts: &Options{URL: "https://"}, wantErr: true},
		{
			name:       "defaults applied",
			opts:       &Options{URL: "https://example.com"},
			wantFormat: FormatJPEG,
			wantMs:     defaultTimeoutMs,
		},
		{
			name:       "png kept",
			opts:       &Options{URL: "https://example.com", Format: "PNG", TimeoutMs: 2500},
			wantFormat: FormatPNG,
			wantMs:     2500,
		},
		{
			name:       "duration used when ms unset",
			opts:       &Options{URL: "https://example.com", Format: "webp", Timeout: 4 * time.Second},
			wantFormat: FormatJPEG,
			wantMs:     4000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.opts.Format != tt.wantFormat {
				t.Errorf("Expected format %s, got %s", tt.wantFormat, tt.opts.Format)
			}
			if tt.opts.TimeoutMs != tt.wantMs || tt.opts.Timeout != time.Duration(tt.wantMs)*time.Millisecond {
				t.Errorf("Expected %dms, got %d / %v", tt.wantMs, tt.opts.TimeoutMs, tt.opts.Timeout)
			}
			if tt.opts.Width != defaultWidth || tt.opts.Height != defaultHeight || tt.opts.Quality != defaultQuality {
				t.Errorf("Expected default viewport and quality, got %+v", tt.opts)
			}
		})
	}
}

func TestPlaceholder(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 18))
	for x := 0; x < 32; x++ {
		for y := 0; y < 18; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 14), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	hash, w, h := placeholder(buf.Bytes())
	if hash == "" {
		t.Error("Expected a blurhash")
	}
	if w != 32 || h != 18 {
		t.Errorf("Expected 32x18, got %dx%d", w, h)
	}

	if hash, _, _ := placeholder([]byte("not an image")); hash != "" {
		t.Errorf("Expected empty hash for garbage, got %q", hash)
	}
}

func TestEncodeDataURI(t *testing.T) {
	got := EncodeDataURI("image/png", []byte("hi"))
	if got != "data:image/png;base64,aGk=" {
		t.Errorf("unexpected data URI %s", got)
	}
}
