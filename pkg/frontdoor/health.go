package frontdoor

import (
	"net/http"
)

// healthBody is the fixed liveness payload.
var healthBody = []byte(`{"status":"ok"}`)

// HealthResponder answers liveness checks without touching the delegate.
// It ignores the method and body of the request.
type HealthResponder struct{}

// NewHealthResponder creates a health responder.
func NewHealthResponder() *HealthResponder {
	return &HealthResponder{}
}

func (HealthResponder) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(healthBody)
}
