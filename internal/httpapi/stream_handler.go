package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/olegrjumin/riskscan/internal/logging"
)

// batchStreamHandler handles POST /scan/batch/stream. Each finished item is
// pushed as an SSE event so clients can render results before the batch ends.
func batchStreamHandler(svc Scanner, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "Streaming not supported")
			return
		}

		events, err := svc.ScanBatchStreaming(r.Context(), req.URLs, req.IncludeScreenshots)
		if err != nil {
			writeScanError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for event := range events {
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error("Failed to marshal stream event", "stage", event.Stage, "error", err)
				continue
			}

			fmt.Fprintf(w, "event: %s\n", event.Stage)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()

			// client went away; the batch stops launching items and drains into the buffered channel
			select {
			case <-r.Context().Done():
				return
			default:
			}
		}
	}
}
