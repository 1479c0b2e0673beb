package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Notifier fans instance and step lifecycle events out to the audit-log and
// event-bus HTTP collectors, when configured. Delivery is fire-and-forget;
// the engine never blocks on or fails from a notification.
type Notifier struct {
	auditLog *endpoint
	eventBus *endpoint
	client   *http.Client
}

type endpoint struct {
	baseURL string
	timeout time.Duration
}

func NewNotifier(auditURL, auditTimeout, eventURL, eventTimeout string) *Notifier {
	return &Notifier{
		auditLog: parseEndpoint(auditURL, auditTimeout),
		eventBus: parseEndpoint(eventURL, eventTimeout),
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *Notifier) InstanceEvent(inst Instance, event, note string) {
	if n == nil {
		return
	}
	payload := map[string]any{
		"event":        event,
		"instance_id":  inst.ID,
		"workflow_id":  inst.WorkflowID,
		"status":       inst.Status,
		"current_step": inst.CurrentStep,
		"priority":     inst.Priority.String(),
		"error":        inst.Error,
		"note":         note,
		"ts":           time.Now().UTC().Format(time.RFC3339),
	}
	n.postAudit(payload)
	n.postEventBus(payload)
}

func (n *Notifier) StepEvent(instanceID, workflowID string, result StepResult, event string) {
	if n == nil {
		return
	}
	payload := map[string]any{
		"event":       event,
		"instance_id": instanceID,
		"workflow_id": workflowID,
		"step_id":     result.StepID,
		"step_status": result.Status,
		"retries":     result.Retries,
		"duration_ms": result.Duration.Milliseconds(),
		"error":       result.Error,
		"ts":          time.Now().UTC().Format(time.RFC3339),
	}
	n.postAudit(payload)
	n.postEventBus(payload)
}

func (n *Notifier) postAudit(payload map[string]any) {
	if n.auditLog == nil || n.auditLog.baseURL == "" {
		return
	}
	n.postJSON(n.auditLog, "/v1/events", payload)
}

func (n *Notifier) postEventBus(payload map[string]any) {
	if n.eventBus == nil || n.eventBus.baseURL == "" {
		return
	}
	body := map[string]any{
		"topic":   payload["event"],
		"payload": payload,
	}
	n.postJSON(n.eventBus, "/v1/events", body)
}

func (n *Notifier) postJSON(ep *endpoint, path string, payload map[string]any) {
	raw, _ := json.Marshal(payload)
	ctx, cancel := context.WithTimeout(context.Background(), ep.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return
	}
	_ = resp.Body.Close()
}

func parseEndpoint(url, timeout string) *endpoint {
	if url == "" {
		return nil
	}
	dur, err := time.ParseDuration(timeout)
	if err != nil {
		dur = 5 * time.Second
	}
	return &endpoint{baseURL: url, timeout: dur}
}
