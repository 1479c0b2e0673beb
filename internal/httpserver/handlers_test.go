package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clinicore/orchestrator/internal/config"
	"github.com/clinicore/orchestrator/internal/workflow"
	"go.uber.org/zap"
)

type echoStep struct{ id string }

func (s echoStep) Spec() workflow.StepSpec {
	return workflow.StepSpec{ID: s.id, Name: s.id}
}

func (s echoStep) Execute(_ context.Context, wc *workflow.Context) (map[string]any, error) {
	wc.Set(s.id+"_done", true)
	return map[string]any{"ok": true}, nil
}

func newTestServer(t *testing.T, steps ...workflow.Step) (*httptest.Server, *workflow.Engine) {
	t.Helper()
	engine := workflow.NewEngine(workflow.Config{
		BackoffBase: time.Millisecond,
		BackoffMax:  10 * time.Millisecond,
	}, zap.NewNop(), workflow.NewRegistry(), workflow.NewNotifier("", "", "", ""))
	for _, s := range steps {
		if err := engine.RegisterStep(s); err != nil {
			t.Fatalf("register step: %v", err)
		}
	}
	server := NewServer(config.Default(), zap.NewNop(), engine)
	ts := httptest.NewServer(server.srv.Handler)
	t.Cleanup(ts.Close)
	return ts, engine
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestRegisterStartAndPollLifecycle(t *testing.T) {
	ts, _ := newTestServer(t, echoStep{id: "triage"}, echoStep{id: "route"})

	def := `{
		"id": "er.triage",
		"name": "ER triage",
		"steps": ["triage", "route"],
		"dependencies": {"route": ["triage"]}
	}`
	resp := postJSON(t, ts.URL+"/v1/workflows", def)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/v1/workflows/er.triage/instances",
		`{"data": {"acuity": 2}, "principal": "nurse.jo", "priority": "URGENT"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("start status = %d, want 202", resp.StatusCode)
	}
	var started map[string]string
	decodeBody(t, resp, &started)
	id := started["instance_id"]
	if id == "" {
		t.Fatal("start response missing instance_id")
	}

	var inst workflow.Instance
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(ts.URL + "/v1/instances/" + id)
		if err != nil {
			t.Fatalf("GET instance: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("poll status = %d", resp.StatusCode)
		}
		decodeBody(t, resp, &inst)
		if inst.Terminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("instance never finished: %+v", inst)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if inst.Status != workflow.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED (error: %s)", inst.Status, inst.Error)
	}
	if inst.Priority != workflow.PriorityUrgent {
		t.Fatalf("priority = %s, want URGENT", inst.Priority)
	}
}

func TestListWorkflows(t *testing.T) {
	ts, engine := newTestServer(t, echoStep{id: "a"})
	if err := engine.RegisterWorkflow(workflow.Definition{ID: "wf.one", Name: "one", Steps: []string{"a"}}); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, err := http.Get(ts.URL + "/v1/workflows")
	if err != nil {
		t.Fatalf("GET workflows: %v", err)
	}
	var listing struct {
		Items []workflow.Definition `json:"items"`
	}
	decodeBody(t, resp, &listing)
	if len(listing.Items) != 1 || listing.Items[0].ID != "wf.one" {
		t.Fatalf("listing = %+v", listing.Items)
	}
}

func TestListInstances(t *testing.T) {
	ts, engine := newTestServer(t, echoStep{id: "a"})
	if err := engine.RegisterWorkflow(workflow.Definition{ID: "wf", Name: "wf", Steps: []string{"a"}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := engine.StartWorkflow("wf", workflow.StartOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	resp, err := http.Get(ts.URL + "/v1/instances")
	if err != nil {
		t.Fatalf("GET instances: %v", err)
	}
	var listing struct {
		Items []workflow.Instance `json:"items"`
	}
	decodeBody(t, resp, &listing)
	if len(listing.Items) != 1 || listing.Items[0].WorkflowID != "wf" {
		t.Fatalf("listing = %+v", listing.Items)
	}
}

func TestRegisterRejectsInvalidDefinition(t *testing.T) {
	ts, _ := newTestServer(t)
	cases := []string{
		`{`,
		`{"id": "x", "name": "x"}`,
		`{"id": "x", "name": "x", "steps": ["a"], "parallel_groups": [["a"]]}`,
	}
	for i, body := range cases {
		resp := postJSON(t, ts.URL+"/v1/workflows", body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("case %d: status = %d, want 400", i, resp.StatusCode)
		}
	}
}

func TestStartUnknownWorkflowIs404(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postJSON(t, ts.URL+"/v1/workflows/ghost/instances", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStartRejectsBadPriority(t *testing.T) {
	ts, engine := newTestServer(t, echoStep{id: "a"})
	if err := engine.RegisterWorkflow(workflow.Definition{ID: "wf", Name: "wf", Steps: []string{"a"}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	resp := postJSON(t, ts.URL+"/v1/workflows/wf/instances", `{"priority": "WHENEVER"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCancelEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postJSON(t, ts.URL+"/v1/instances/wfi_missing/cancel", "")
	var body map[string]bool
	decodeBody(t, resp, &body)
	if body["cancelled"] {
		t.Fatal("cancel of an unknown instance must report cancelled=false")
	}
}

func TestInstanceNotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/instances/wfi_missing")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStatisticsEndpoint(t *testing.T) {
	ts, engine := newTestServer(t, echoStep{id: "a"})
	if err := engine.RegisterWorkflow(workflow.Definition{ID: "wf", Name: "wf", Steps: []string{"a"}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	id, err := engine.StartWorkflow("wf", workflow.StartOptions{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		inst, err := engine.GetInstance(id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if inst.Terminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("instance never finished")
		}
		time.Sleep(2 * time.Millisecond)
	}

	resp, err := http.Get(ts.URL + "/v1/statistics")
	if err != nil {
		t.Fatalf("GET statistics: %v", err)
	}
	var stats workflow.Statistics
	decodeBody(t, resp, &stats)
	if stats.TotalInstances != 1 || stats.ByStatus["completed"] != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(body.String(), "ok") {
		t.Fatalf("healthz = %d %s", resp.StatusCode, body.String())
	}
}
