package transport

import (
	"net/http"

	"toolhub/internal/infra/telemetry"
)

const userAgent = "toolhub/1"

// headerRoundTripper stamps outgoing provider requests with the caller's
// request ID and a fixed user agent.
type headerRoundTripper struct {
	base http.RoundTripper
}

func newHeaderRoundTripper(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		if dt, ok := http.DefaultTransport.(*http.Transport); ok {
			base = dt.Clone()
		} else {
			base = http.DefaultTransport
		}
	}
	return &headerRoundTripper{base: base}
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", userAgent)
	if requestID, ok := telemetry.RequestIDFromContext(req.Context()); ok && requestID != "" {
		clone.Header.Set(telemetry.RequestIDHeader, requestID)
	}
	return h.base.RoundTrip(clone)
}

// CloseIdleConnections lets http.Client.CloseIdleConnections reach the base transport.
func (h *headerRoundTripper) CloseIdleConnections() {
	type idleCloser interface{ CloseIdleConnections() }
	if closer, ok := h.base.(idleCloser); ok {
		closer.CloseIdleConnections()
	}
}
