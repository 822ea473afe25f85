package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/olegrjumin/riskscan/internal/screenshot"
)

// screenshotHandler handles POST /screenshot
// Accepts a JSON body with a URL and optional parameters, returns screenshot result
func screenshotHandler(shooter Screenshotter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if shooter == nil {
			writeError(w, http.StatusServiceUnavailable, "Screenshots are disabled")
			return
		}

		opts := screenshot.DefaultOptions()
		if err := json.NewDecoder(r.Body).Decode(opts); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}

		if opts.URL == "" {
			writeError(w, http.StatusBadRequest, "URL is required")
			return
		}

		result, err := shooter.CaptureQueued(r.Context(), opts)
		if err != nil {
			if result == nil {
				result = &screenshot.Result{URL: opts.URL, Error: err.Error()}
			}
			writeJSON(w, screenshotStatus(err), result)
			return
		}

		if result.Base64Data == "" && len(result.Data) > 0 {
			result.Base64Data = base64.StdEncoding.EncodeToString(result.Data)
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func screenshotStatus(err error) int {
	switch {
	case errors.Is(err, screenshot.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, screenshot.ErrBrowserUnavailable), errors.Is(err, screenshot.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, screenshot.ErrTimeout), errors.Is(err, screenshot.ErrQueueTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, screenshot.ErrQueueFull):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
