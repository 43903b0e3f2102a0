package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Notifier posts run events to configured audit and event endpoints,
// best-effort. A nil Notifier is safe to call.
type Notifier struct {
	audit  *endpoint
	events *endpoint
	client *http.Client
}

type endpoint struct {
	baseURL string
	timeout time.Duration
}

func NewNotifier(auditURL, auditTimeout, eventURL, eventTimeout string) *Notifier {
	return &Notifier{
		audit:  parseEndpoint(auditURL, auditTimeout),
		events: parseEndpoint(eventURL, eventTimeout),
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *Notifier) RunEvent(requestID string, status Status, step int, event, note string) {
	if n == nil {
		return
	}
	payload := map[string]any{
		"event_id":   uuid.NewString(),
		"event":      event,
		"request_id": requestID,
		"status":     status,
		"step":       step,
		"note":       note,
		"ts":         time.Now().UTC().Format(time.RFC3339),
	}
	if n.audit != nil && n.audit.baseURL != "" {
		n.postJSON(n.audit, payload)
	}
	if n.events != nil && n.events.baseURL != "" {
		n.postJSON(n.events, map[string]any{
			"topic":   event,
			"payload": payload,
		})
	}
}

func (n *Notifier) postJSON(ep *endpoint, payload map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), ep.timeout)
	defer cancel()
	raw, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.baseURL+"/v1/events", bytes.NewReader(raw))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if resp, err := n.client.Do(req); err == nil {
		_ = resp.Body.Close()
	}
}

func parseEndpoint(url, timeout string) *endpoint {
	if url == "" {
		return nil
	}
	return &endpoint{baseURL: url, timeout: parseDuration(timeout, 5*time.Second)}
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
