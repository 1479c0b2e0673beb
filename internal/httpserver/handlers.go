package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/clinicore/orchestrator/internal/workflow"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("content-type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleWorkflows(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "unreadable body", http.StatusBadRequest)
			return
		}
		if err := workflow.ValidateDefinitionJSON(body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var def workflow.Definition
		if err := json.Unmarshal(body, &def); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := s.engine.RegisterWorkflow(def); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, def)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"items": s.engine.Definitions()})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type startRequest struct {
	Data      map[string]any `json:"data"`
	Principal string         `json:"principal"`
	Priority  string         `json:"priority"`
}

func (s *Server) handleWorkflowRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/workflows/")
	id, tail, _ := strings.Cut(rest, "/")
	if id == "" || tail != "instances" || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	opts := workflow.StartOptions{Data: req.Data, Principal: req.Principal}
	if req.Priority != "" {
		p, err := parsePriority(req.Priority)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		opts.Priority = &p
	}

	instanceID, err := s.engine.StartWorkflow(id, opts)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, workflow.ErrUnknownWorkflow) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"instance_id": instanceID})
}

func (s *Server) handleInstances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": s.engine.ListInstances()})
}

func (s *Server) handleInstanceRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/instances/")
	id, tail, _ := strings.Cut(rest, "/")
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch {
	case tail == "" && r.Method == http.MethodGet:
		inst, err := s.engine.GetInstance(id)
		if err != nil {
			http.Error(w, "instance not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, inst)
	case tail == "cancel" && r.Method == http.MethodPost:
		cancelled := s.engine.Cancel(id)
		writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Statistics())
}

func parsePriority(raw string) (workflow.Priority, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "LOW":
		return workflow.PriorityLow, nil
	case "NORMAL":
		return workflow.PriorityNormal, nil
	case "HIGH":
		return workflow.PriorityHigh, nil
	case "URGENT":
		return workflow.PriorityUrgent, nil
	default:
		return 0, errors.New("priority must be one of LOW, NORMAL, HIGH, URGENT")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
