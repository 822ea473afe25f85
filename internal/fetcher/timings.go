package fetcher

import (
	"github.com/olegrjumin/riskscan/internal/httpclient"
)

// Timings holds per-phase durations of the final hop in milliseconds
type Timings struct {
	DNSMs     int64 `json:"dns_ms"`
	ConnectMs int64 `json:"connect_ms"`
	TLSMs     int64 `json:"tls_ms"`
	TTFBMs    int64 `json:"ttfb_ms"`
}

// extractTimings converts httpclient.TimingInfo to Timings
func extractTimings(t *httpclient.TimingInfo) Timings {
	var out Timings
	if t == nil {
		return out
	}

	if !t.DNSStart.IsZero() && !t.DNSDone.IsZero() {
		out.DNSMs = t.DNSDone.Sub(t.DNSStart).Milliseconds()
	}
	if !t.ConnectStart.IsZero() && !t.ConnectDone.IsZero() {
		out.ConnectMs = t.ConnectDone.Sub(t.ConnectStart).Milliseconds()
	}
	if !t.TLSStart.IsZero() && !t.TLSDone.IsZero() {
		out.TLSMs = t.TLSDone.Sub(t.TLSStart).Milliseconds()
	}
	if !t.RequestStart.IsZero() && !t.GotFirstByte.IsZero() {
		out.TTFBMs = t.GotFirstByte.Sub(t.RequestStart).Milliseconds()
	}

	return out
}
