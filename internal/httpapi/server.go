package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/olegrjumin/riskscan/internal/logging"
	"github.com/olegrjumin/riskscan/internal/narrative"
	"github.com/olegrjumin/riskscan/internal/scan"
	"github.com/olegrjumin/riskscan/internal/screenshot"
	"github.com/olegrjumin/riskscan/internal/store"
)

// Scanner runs single, batch and streaming batch scans
type Scanner interface {
	Scan(ctx context.Context, rawURL string, includeScreenshot bool) (*scan.ScanResult, error)
	ScanBatch(ctx context.Context, urls []string, includeScreenshots bool) (*scan.BatchResult, error)
	ScanBatchStreaming(ctx context.Context, urls []string, includeScreenshots bool) (<-chan scan.StreamEvent, error)
}

// Records reads persisted scans
type Records interface {
	Get(ctx context.Context, id string) (*store.Record, error)
	ListRecent(ctx context.Context, limit int) ([]store.Record, error)
}

// Screenshotter captures standalone screenshots
type Screenshotter interface {
	CaptureQueued(ctx context.Context, opts *screenshot.Options) (*screenshot.Result, error)
}

// Explainer turns scan signals into prose
type Explainer interface {
	Explain(ctx context.Context, r narrative.Request) (*narrative.Explanation, error)
}

// Deps are the collaborators behind the routes. Only Scanner is required;
// routes backed by a nil dependency answer 503.
type Deps struct {
	Scanner       Scanner
	Records       Records
	Screenshotter Screenshotter
	Explainer     Explainer
}

// NewRouter builds the chi router with every API route registered
func NewRouter(logger *logging.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/health", healthHandler(deps.Screenshotter))

	r.Route("/scan", func(sr chi.Router) {
		sr.Post("/", scanHandler(deps.Scanner))
		sr.Post("/batch", batchHandler(deps.Scanner))
		sr.Post("/batch/stream", batchStreamHandler(deps.Scanner, logger))
	})

	r.Route("/scans", func(sr chi.Router) {
		sr.Get("/", listScansHandler(deps.Records))
		sr.Get("/{id}", getScanHandler(deps.Records))
		sr.Get("/{id}/screenshot", scanScreenshotHandler(deps.Records))
	})

	r.Post("/screenshot", screenshotHandler(deps.Screenshotter))
	r.Post("/explain", explainHandler(deps.Explainer, deps.Records))

	return r
}

// NewServer creates and configures a new HTTP server
func NewServer(addr string, logger *logging.Logger, deps Deps) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: NewRouter(logger, deps),
	}
}

// queueReporter is implemented by screenshotters that run behind a queue
type queueReporter interface {
	QueueStats() (queued, capacity int)
}

type queueHealth struct {
	Queued   int `json:"queued"`
	Capacity int `json:"capacity"`
}

type healthResponse struct {
	Status          string       `json:"status"`
	Service         string       `json:"service"`
	ScreenshotQueue *queueHealth `json:"screenshot_queue,omitempty"`
}

// healthHandler handles GET requests to /health
func healthHandler(shooter Screenshotter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Service: "riskscan"}
		if qr, ok := shooter.(queueReporter); ok {
			queued, capacity := qr.QueueStats()
			resp.ScreenshotQueue = &queueHealth{Queued: queued, Capacity: capacity}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// writeJSON sets the Content-Type header and encodes data as JSON
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
