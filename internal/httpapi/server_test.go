package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/olegrjumin/riskscan/internal/logging"
	"github.com/olegrjumin/riskscan/internal/narrative"
	"github.com/olegrjumin/riskscan/internal/scan"
	"github.com/olegrjumin/riskscan/internal/scoring"
	"github.com/olegrjumin/riskscan/internal/screenshot"
	"github.com/olegrjumin/riskscan/internal/store"
)

type fakeScanner struct {
	lastInclude bool
}

func (f *fakeScanner) Scan(ctx context.Context, rawURL string, includeScreenshot bool) (*scan.ScanResult, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, &scan.ValidationError{Err: scan.ErrEmptyURL}
	}
	f.lastInclude = includeScreenshot
	if strings.Contains(rawURL, "down") {
		return &scan.ScanResult{
			Target:     rawURL,
			Status:     scan.StatusFailed,
			Error:      "connection-refused: connection refused",
			Assessment: scoring.RiskAssessment{Score: 50, Level: scoring.LevelMedium},
		}, nil
	}
	return &scan.ScanResult{
		Target:     rawURL,
		Status:     scan.StatusCompleted,
		Assessment: scoring.RiskAssessment{Score: 0, Level: scoring.LevelSafe},
	}, nil
}

func (f *fakeScanner) ScanBatch(ctx context.Context, urls []string, includeScreenshots bool) (*scan.BatchResult, error) {
	if len(urls) == 0 {
		return nil, &scan.ValidationError{Err: scan.ErrNoURLs}
	}
	results := make([]*scan.ScanResult, len(urls))
	for i, u := range urls {
		results[i], _ = f.Scan(ctx, u, includeScreenshots)
	}
	return &scan.BatchResult{BatchID: "b-1", Results: results, Summary: scan.Summarize(results)}, nil
}

func (f *fakeScanner) ScanBatchStreaming(ctx context.Context, urls []string, includeScreenshots bool) (<-chan scan.StreamEvent, error) {
	batch, err := f.ScanBatch(ctx, urls, includeScreenshots)
	if err != nil {
		return nil, err
	}
	events := make(chan scan.StreamEvent, len(urls)+2)
	events <- scan.StreamEvent{Stage: scan.StageStart, Data: scan.StartEvent{Total: len(urls)}}
	for i, r := range batch.Results {
		events <- scan.StreamEvent{Stage: scan.StageItem, Data: scan.ItemEvent{Index: i, Result: r}}
	}
	events <- scan.StreamEvent{Stage: scan.StageComplete, Data: batch}
	close(events)
	return events, nil
}

type fakeRecords struct {
	recs map[string]*store.Record
}

func (f *fakeRecords) Get(ctx context.Context, id string) (*store.Record, error) {
	rec, ok := f.recs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRecords) ListRecent(ctx context.Context, limit int) ([]store.Record, error) {
	out := make([]store.Record, 0)
	for _, rec := range f.recs {
		if len(out) == limit {
			break
		}
		out = append(out, *rec)
	}
	return out, nil
}

type fakeShooter struct {
	err error
}

func (f *fakeShooter) CaptureQueued(ctx context.Context, opts *screenshot.Options) (*screenshot.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &screenshot.Result{Success: true, URL: opts.URL, Data: []byte("img"), MimeType: "image/jpeg", Width: opts.Width}, nil
}

// queuedShooter also reports queue depth, like screenshot.QueuedScreenshotter
type queuedShooter struct {
	fakeShooter
}

func (q *queuedShooter) QueueStats() (int, int) {
	return 3, 16
}

type fakeExplainer struct {
	got narrative.Request
}

func (f *fakeExplainer) Explain(ctx context.Context, r narrative.Request) (*narrative.Explanation, error) {
	f.got = r
	return &narrative.Explanation{Text: "Looks fine.", Tone: narrative.ToneNeutral}, nil
}

func newTestRouter(deps Deps) http.Handler {
	if deps.Scanner == nil {
		deps.Scanner = &fakeScanner{}
	}
	return NewRouter(logging.Discard(), deps)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthHandler(t *testing.T) {
	rec := do(t, newTestRouter(Deps{}), http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var response map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["status"] != "ok" || response["service"] != "riskscan" {
		t.Errorf("unexpected body %v", response)
	}
}

func TestHealthReportsScreenshotQueue(t *testing.T) {
	rec := do(t, newTestRouter(Deps{Screenshotter: &queuedShooter{}}), http.MethodGet, "/health", "")

	var response struct {
		Status          string `json:"status"`
		ScreenshotQueue *struct {
			Queued   int `json:"queued"`
			Capacity int `json:"capacity"`
		} `json:"screenshot_queue"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "ok" || response.ScreenshotQueue == nil {
		t.Fatalf("expected queue stats, got %+v", response)
	}
	if response.ScreenshotQueue.Queued != 3 || response.ScreenshotQueue.Capacity != 16 {
		t.Errorf("unexpected queue stats %+v", *response.ScreenshotQueue)
	}

	// plain screenshotters report no queue
	rec = do(t, newTestRouter(Deps{Screenshotter: &fakeShooter{}}), http.MethodGet, "/health", "")
	if strings.Contains(rec.Body.String(), "screenshot_queue") {
		t.Errorf("unexpected queue stats in %s", rec.Body.String())
	}
}

func TestScanHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantScan   string
	}{
		{"completed", `{"url":"https://example.com"}`, http.StatusOK, "completed"},
		{"fetch failure is still 200", `{"url":"https://down.example"}`, http.StatusOK, "failed"},
		{"blank url", `{"url":"  "}`, http.StatusBadRequest, ""},
		{"missing url", `{}`, http.StatusBadRequest, ""},
		{"invalid json", `{not json`, http.StatusBadRequest, ""},
	}

	h := newTestRouter(Deps{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/scan", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantScan == "" {
				return
			}
			var result scan.ScanResult
			if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
				t.Fatal(err)
			}
			if string(result.Status) != tt.wantScan {
				t.Errorf("expected scan status %s, got %s", tt.wantScan, result.Status)
			}
		})
	}
}

func TestScanHandlerMethodNotAllowed(t *testing.T) {
	rec := do(t, newTestRouter(Deps{}), http.MethodGet, "/scan", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestScanHandlerPassesScreenshotFlag(t *testing.T) {
	s := &fakeScanner{}
	do(t, newTestRouter(Deps{Scanner: s}), http.MethodPost, "/scan", `{"url":"https://example.com","include_screenshot":true}`)
	if !s.lastInclude {
		t.Error("expected include_screenshot to reach the scanner")
	}
}

func TestBatchHandler(t *testing.T) {
	h := newTestRouter(Deps{})

	rec := do(t, h, http.MethodPost, "/scan/batch", `{"urls":["https://a.example","https://down.example"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var batch scan.BatchResult
	if err := json.NewDecoder(rec.Body).Decode(&batch); err != nil {
		t.Fatal(err)
	}
	want := scan.BatchSummary{Total: 2, Completed: 1, Failed: 1}
	if batch.Summary != want {
		t.Errorf("expected %+v, got %+v", want, batch.Summary)
	}

	rec = do(t, h, http.MethodPost, "/scan/batch", `{"urls":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty list, got %d", rec.Code)
	}
}

func TestBatchStreamHandler(t *testing.T) {
	h := newTestRouter(Deps{})

	rec := do(t, h, http.MethodPost, "/scan/batch/stream", `{"urls":["https://a.example","https://b.example"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected event stream, got %s", ct)
	}

	body := rec.Body.String()
	if strings.Count(body, "event: item\n") != 2 {
		t.Errorf("expected two item events, got:\n%s", body)
	}
	start := strings.Index(body, "event: start\n")
	complete := strings.Index(body, "event: complete\n")
	if start < 0 || complete < start {
		t.Errorf("expected start before complete, got:\n%s", body)
	}

	rec = do(t, h, http.MethodPost, "/scan/batch/stream", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 before streaming starts, got %d", rec.Code)
	}
}

func TestScanRecords(t *testing.T) {
	records := &fakeRecords{recs: map[string]*store.Record{
		"abc": {ID: "abc", URL: "https://a.example", Level: "safe", Screenshot: []byte{0xff, 0xd8, 0xff, 0xe0}},
		"def": {ID: "def", URL: "https://d.example", Level: "low"},
	}}
	h := newTestRouter(Deps{Records: records})

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"list", "/scans", http.StatusOK},
		{"list with limit", "/scans?limit=1", http.StatusOK},
		{"bad limit", "/scans?limit=-2", http.StatusBadRequest},
		{"get", "/scans/abc", http.StatusOK},
		{"get missing", "/scans/zzz", http.StatusNotFound},
		{"screenshot", "/scans/abc/screenshot", http.StatusOK},
		{"no screenshot", "/scans/def/screenshot", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}

	rec := do(t, h, http.MethodGet, "/scans?limit=1", "")
	var list struct {
		Count int `json:"count"`
	}
	json.NewDecoder(rec.Body).Decode(&list)
	if list.Count != 1 {
		t.Errorf("expected limit to apply, got %d", list.Count)
	}

	rec = do(t, h, http.MethodGet, "/scans/abc/screenshot", "")
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", ct)
	}
}

func TestDisabledDependencies(t *testing.T) {
	h := newTestRouter(Deps{})

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/scans", ""},
		{http.MethodGet, "/scans/abc", ""},
		{http.MethodPost, "/screenshot", `{"url":"https://a.example"}`},
		{http.MethodPost, "/explain", `{"url":"https://a.example"}`},
	} {
		rec := do(t, h, tc.method, tc.path, tc.body)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s: expected 503, got %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestScreenshotHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		body       string
		wantStatus int
	}{
		{"success", nil, `{"url":"https://a.example","width":800}`, http.StatusOK},
		{"missing url", nil, `{}`, http.StatusBadRequest},
		{"queue full", screenshot.ErrQueueFull, `{"url":"https://a.example"}`, http.StatusTooManyRequests},
		{"queue timeout", screenshot.ErrQueueTimeout, `{"url":"https://a.example"}`, http.StatusGatewayTimeout},
		{"invalid url", screenshot.ErrInvalidURL, `{"url":"ftp://a.example"}`, http.StatusBadRequest},
		{"browser down", screenshot.ErrBrowserUnavailable, `{"url":"https://a.example"}`, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(Deps{Screenshotter: &fakeShooter{err: tt.err}})
			rec := do(t, h, http.MethodPost, "/screenshot", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK && !strings.Contains(rec.Body.String(), `"base64_data":"aW1n"`) {
				t.Errorf("expected base64 image data, got %s", rec.Body.String())
			}
		})
	}
}

func TestExplainHandler(t *testing.T) {
	records := &fakeRecords{recs: map[string]*store.Record{
		"abc": {
			ID:         "abc",
			URL:        "http://paypa1.xyz",
			Score:      80,
			Level:      "critical",
			Indicators: json.RawMessage(`[{"type":"no_ssl","description":"Page is not served over HTTPS"},{"type":"suspicious_tld","description":"Low-reputation TLD .xyz"}]`),
		},
	}}

	t.Run("stored scan", func(t *testing.T) {
		exp := &fakeExplainer{}
		h := newTestRouter(Deps{Records: records, Explainer: exp})

		rec := do(t, h, http.MethodPost, "/explain", `{"scan_id":"abc"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if exp.got.URL != "http://paypa1.xyz" || exp.got.Score != 80 || exp.got.Level != "critical" {
			t.Errorf("unexpected request %+v", exp.got)
		}
		want := []string{"Page is not served over HTTPS", "Low-reputation TLD .xyz"}
		if strings.Join(exp.got.Indicators, "|") != strings.Join(want, "|") {
			t.Errorf("expected indicators %v, got %v", want, exp.got.Indicators)
		}

		var body narrative.Explanation
		json.NewDecoder(rec.Body).Decode(&body)
		if body.Text != "Looks fine." {
			t.Errorf("unexpected body %+v", body)
		}
	})

	t.Run("inline signals", func(t *testing.T) {
		exp := &fakeExplainer{}
		h := newTestRouter(Deps{Explainer: exp})

		rec := do(t, h, http.MethodPost, "/explain", `{"url":"https://a.example","score":10,"level":"safe","indicators":["x"]}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if exp.got.URL != "https://a.example" || len(exp.got.Indicators) != 1 {
			t.Errorf("unexpected request %+v", exp.got)
		}
	})

	t.Run("unknown scan", func(t *testing.T) {
		h := newTestRouter(Deps{Records: records, Explainer: &fakeExplainer{}})
		if rec := do(t, h, http.MethodPost, "/explain", `{"scan_id":"nope"}`); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("nothing to explain", func(t *testing.T) {
		h := newTestRouter(Deps{Explainer: &fakeExplainer{}})
		if rec := do(t, h, http.MethodPost, "/explain", `{}`); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}
