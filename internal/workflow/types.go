package workflow

import (
	"encoding/json"
	"sync"
	"time"
)

// Instance lifecycle statuses. PAUSED is reserved for approval-gated
// workflows and is never set by the current scheduler.
const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusPaused    = "PAUSED"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
	StatusTimeout   = "TIMEOUT"
)

// Step result statuses.
const (
	StepCompleted = "COMPLETED"
	StepFailed    = "FAILED"
	StepSkipped   = "SKIPPED"
)

type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityHigh:
		return "HIGH"
	case PriorityUrgent:
		return "URGENT"
	default:
		return "NORMAL"
	}
}

// Definition is the static declaration of a step graph. Definitions are
// registered once at startup and treated as immutable afterwards.
type Definition struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Steps          []string            `json:"steps"`
	Dependencies   map[string][]string `json:"dependencies,omitempty"`
	ParallelGroups [][]string          `json:"parallel_groups,omitempty"`
	Timeout        time.Duration       `json:"timeout,omitempty"`
	Priority       Priority            `json:"priority,omitempty"`
}

// StepResult records one finished step invocation. Immutable once appended
// to the context history.
type StepResult struct {
	StepID     string         `json:"step_id"`
	Status     string         `json:"status"`
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	Duration   time.Duration  `json:"duration"`
	Retries    int            `json:"retries"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Instance is one runtime execution of a Definition. The store holds
// instances by value; only the owning scheduler goroutine writes them back.
type Instance struct {
	ID          string    `json:"id"`
	WorkflowID  string    `json:"workflow_id"`
	Status      string    `json:"status"`
	CurrentStep string    `json:"current_step,omitempty"`
	Context     *Context  `json:"context,omitempty"`
	Error       string    `json:"error,omitempty"`
	Priority    Priority  `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Terminal reports whether the instance has reached a final status.
func (i Instance) Terminal() bool {
	switch i.Status {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}

// Context is the per-instance execution state shared by all steps of one
// run. The data bag is the sole channel steps use to communicate; the
// variables bag is engine-internal. Parallel group members touch both
// concurrently, so access goes through the mutex.
type Context struct {
	WorkflowID string
	InstanceID string
	Principal  string

	mu        sync.Mutex
	data      map[string]any
	variables map[string]any
	history   []StepResult
	createdAt time.Time
	updatedAt time.Time
}

func NewContext(workflowID, instanceID, principal string, data map[string]any) *Context {
	bag := make(map[string]any, len(data))
	for k, v := range data {
		bag[k] = v
	}
	now := time.Now().UTC()
	return &Context{
		WorkflowID: workflowID,
		InstanceID: instanceID,
		Principal:  principal,
		data:       bag,
		variables:  map[string]any{},
		createdAt:  now,
		updatedAt:  now,
	}
}

func (c *Context) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.updatedAt = time.Now().UTC()
}

func (c *Context) Var(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.variables[key]
	return v, ok
}

func (c *Context) SetVar(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variables[key] = value
	c.updatedAt = time.Now().UTC()
}

func (c *Context) appendResult(r StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, r)
	c.updatedAt = time.Now().UTC()
}

// History returns a copy of the result history in completion order.
func (c *Context) History() []StepResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]StepResult(nil), c.history...)
}

// Result returns the recorded result for a step, if any.
func (c *Context) Result(stepID string) (StepResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.history {
		if r.StepID == stepID {
			return r, true
		}
	}
	return StepResult{}, false
}

// ContextSnapshot is a point-in-time copy of a Context, safe to hand to
// readers outside the owning scheduler goroutine.
type ContextSnapshot struct {
	WorkflowID string         `json:"workflow_id"`
	InstanceID string         `json:"instance_id"`
	Principal  string         `json:"principal,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Variables  map[string]any `json:"variables,omitempty"`
	History    []StepResult   `json:"history,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (c *Context) Snapshot() ContextSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	data := make(map[string]any, len(c.data))
	for k, v := range c.data {
		data[k] = v
	}
	vars := make(map[string]any, len(c.variables))
	for k, v := range c.variables {
		vars[k] = v
	}
	return ContextSnapshot{
		WorkflowID: c.WorkflowID,
		InstanceID: c.InstanceID,
		Principal:  c.Principal,
		Data:       data,
		Variables:  vars,
		History:    append([]StepResult(nil), c.history...),
		CreatedAt:  c.createdAt,
		UpdatedAt:  c.updatedAt,
	}
}

// MarshalJSON renders a snapshot so instances can be serialized while a run
// is still mutating the context.
func (c *Context) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Snapshot())
}
