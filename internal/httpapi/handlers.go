package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegrjumin/riskscan/internal/scan"
	"github.com/olegrjumin/riskscan/internal/store"
)

const maxListLimit = 100

// scanRequest represents the JSON request body for POST /scan
type scanRequest struct {
	URL               string `json:"url"`
	IncludeScreenshot bool   `json:"include_screenshot"`
}

// batchRequest represents the JSON request body for the batch endpoints
type batchRequest struct {
	URLs               []string `json:"urls"`
	IncludeScreenshots bool     `json:"include_screenshots"`
}

// scanHandler handles POST /scan. A failed fetch is still a 200 with status=failed.
func scanHandler(svc Scanner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}

		result, err := svc.Scan(r.Context(), req.URL, req.IncludeScreenshot)
		if err != nil {
			writeScanError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// batchHandler handles POST /scan/batch
func batchHandler(svc Scanner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}

		batch, err := svc.ScanBatch(r.Context(), req.URLs, req.IncludeScreenshots)
		if err != nil {
			writeScanError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, batch)
	}
}

func writeScanError(w http.ResponseWriter, err error) {
	if scan.IsValidation(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// listScansHandler handles GET /scans?limit=N
func listScansHandler(records Records) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if records == nil {
			writeError(w, http.StatusServiceUnavailable, "Scan history is disabled")
			return
		}

		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxListLimit)
		}

		recs, err := records.ListRecent(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list scans")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"scans": recs,
			"count": len(recs),
		})
	}
}

// getScanHandler handles GET /scans/{id}
func getScanHandler(records Records) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := loadRecord(w, r, records)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// scanScreenshotHandler handles GET /scans/{id}/screenshot and serves the stored image
func scanScreenshotHandler(records Records) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := loadRecord(w, r, records)
		if !ok {
			return
		}
		if len(rec.Screenshot) == 0 {
			writeError(w, http.StatusNotFound, "No screenshot for this scan")
			return
		}

		w.Header().Set("Content-Type", http.DetectContentType(rec.Screenshot))
		w.Header().Set("Content-Length", strconv.Itoa(len(rec.Screenshot)))
		w.Header().Set("Cache-Control", "private, max-age=86400")
		w.WriteHeader(http.StatusOK)
		w.Write(rec.Screenshot)
	}
}

func loadRecord(w http.ResponseWriter, r *http.Request, records Records) (*store.Record, bool) {
	if records == nil {
		writeError(w, http.StatusServiceUnavailable, "Scan history is disabled")
		return nil, false
	}

	rec, err := records.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Scan not found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scan")
		return nil, false
	}
	return rec, true
}
