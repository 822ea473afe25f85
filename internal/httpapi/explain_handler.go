package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/olegrjumin/riskscan/internal/narrative"
	"github.com/olegrjumin/riskscan/internal/store"
)

type explainRequest struct {
	ScanID     string   `json:"scan_id"`
	URL        string   `json:"url"`
	Score      int      `json:"score"`
	Level      string   `json:"level"`
	Indicators []string `json:"indicators"`
	Stream     bool     `json:"stream"`
}

// explainHandler handles POST /explain, either for a stored scan or for
// signals supplied inline
func explainHandler(explainer Explainer, records Records) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if explainer == nil {
			writeError(w, http.StatusServiceUnavailable, "Narrative service is disabled")
			return
		}

		var req explainRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}

		nreq := narrative.Request{
			URL:        req.URL,
			Score:      req.Score,
			Level:      req.Level,
			Indicators: req.Indicators,
			Stream:     req.Stream,
		}

		if req.ScanID != "" {
			if records == nil {
				writeError(w, http.StatusServiceUnavailable, "Scan history is disabled")
				return
			}
			rec, err := records.Get(r.Context(), req.ScanID)
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Scan not found")
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to load scan")
				return
			}
			nreq = requestFromRecord(rec, req.Stream)
		}

		if nreq.URL == "" {
			writeError(w, http.StatusBadRequest, "URL or scan_id is required")
			return
		}

		exp, err := explainer.Explain(r.Context(), nreq)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, exp)
	}
}

// requestFromRecord pulls indicator descriptions out of the stored JSON column
func requestFromRecord(rec *store.Record, stream bool) narrative.Request {
	var indicators []struct {
		Description string `json:"description"`
	}
	// a malformed column only costs the indicator list
	_ = json.Unmarshal(rec.Indicators, &indicators)

	descs := make([]string, 0, len(indicators))
	for _, ind := range indicators {
		if ind.Description != "" {
			descs = append(descs, ind.Description)
		}
	}

	return narrative.Request{
		URL:        rec.URL,
		Score:      rec.Score,
		Level:      rec.Level,
		Indicators: descs,
		Stream:     stream,
	}
}
