package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// checkResponse is the JSON body for warmup probe endpoints.
type checkResponse struct {
	Handler   string         `json:"handler"`
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// ReadinessHandler returns an HTTP handler for readiness probes: 200
// when the cache is warm or degraded, 503 while it is still cold. A
// degraded cache is servable; failed combinations replay their recorded
// failure instead of blocking every other combination.
func ReadinessHandler(checker *WarmupChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := checker.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if result.Status == StatusCold {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(checkResponse{
			Handler:   checker.Name(),
			Status:    result.Status.String(),
			Message:   result.Message,
			Details:   result.Details,
			Timestamp: result.Timestamp.UTC().Format(time.RFC3339),
		})
	}
}
