package clients

import (
	"context"
	"net/http"
)

// TelemetryDispatch forwards telemetry events to the external analytics
// service. Everything here is best effort: callers log failures and move on.
type TelemetryDispatch struct {
	BaseURL string
	Client  *http.Client
}

// SendEvent forwards one string-encoded telemetry event for a user.
func (s *TelemetryDispatch) SendEvent(ctx context.Context, userID, payload string) error {
	if s == nil || s.BaseURL == "" {
		return nil
	}
	body := map[string]string{"userID": userID, "event": payload}
	return doJSON(ctx, s.Client, http.MethodPost, s.BaseURL+"/events", body, nil)
}

// SendDropOff forwards a drop-off timing event: how long the user took to
// answer the question at questionIndex of flow.
func (s *TelemetryDispatch) SendDropOff(ctx context.Context, userID, flow string, questionIndex int, elapsedMs int64) error {
	if s == nil || s.BaseURL == "" {
		return nil
	}
	body := map[string]any{
		"userID":        userID,
		"flow":          flow,
		"questionIndex": questionIndex,
		"elapsedMs":     elapsedMs,
	}
	return doJSON(ctx, s.Client, http.MethodPost, s.BaseURL+"/dropoff", body, nil)
}
