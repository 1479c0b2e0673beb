package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Engine is the public facade: it owns the registries, the instance store
// and the per-instance scheduler goroutines. Construct one per process and
// share it by handle; there is no package-level state.
type Engine struct {
	cfg      Config
	logger   *zap.Logger
	registry *Registry
	store    *InstanceStore
	notifier *Notifier
	backoff  BackoffStrategy

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewEngine(cfg Config, logger *zap.Logger, registry *Registry, notifier *Notifier) *Engine {
	cfg = cfg.normalized()
	return &Engine{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		store:    NewInstanceStore(cfg.RetentionMaxInstances, cfg.RetentionTTL),
		notifier: notifier,
		backoff:  ExponentialBackoff{Base: cfg.BackoffBase, Max: cfg.BackoffMax},
		cancels:  map[string]context.CancelFunc{},
	}
}

func (e *Engine) RegisterStep(s Step) error {
	return e.registry.RegisterStep(s)
}

func (e *Engine) RegisterWorkflow(d Definition) error {
	return e.registry.RegisterWorkflow(d)
}

// Definitions lists every registered workflow definition.
func (e *Engine) Definitions() []Definition {
	return e.registry.Definitions()
}

// StartOptions carries the caller-supplied inputs for a run.
type StartOptions struct {
	Data      map[string]any
	Principal string
	// Priority overrides the definition default when non-nil.
	Priority *Priority
}

// StartWorkflow validates the workflow and its step bindings, creates a
// PENDING instance and schedules its run. It never blocks on step work:
// misconfiguration (unknown workflow or unregistered step) surfaces here,
// synchronously; everything later is reported through the instance.
func (e *Engine) StartWorkflow(workflowID string, opts StartOptions) (string, error) {
	def, err := e.registry.Definition(workflowID)
	if err != nil {
		return "", err
	}
	for _, stepID := range def.Steps {
		if _, err := e.registry.Step(stepID); err != nil {
			return "", fmt.Errorf("workflow %s: %w", workflowID, err)
		}
	}

	priority := def.Priority
	if opts.Priority != nil {
		priority = *opts.Priority
	}
	now := time.Now().UTC()
	instanceID := newID("wfi")
	inst := Instance{
		ID:         instanceID,
		WorkflowID: def.ID,
		Status:     StatusPending,
		Context:    NewContext(def.ID, instanceID, opts.Principal, opts.Data),
		Priority:   priority,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	e.store.Create(inst)

	var runCtx context.Context
	var cancel context.CancelFunc
	if def.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(context.Background(), def.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(context.Background())
	}
	e.mu.Lock()
	e.cancels[instanceID] = cancel
	e.mu.Unlock()

	e.logger.Info("workflow instance scheduled",
		zap.String("workflow_id", def.ID),
		zap.String("instance_id", instanceID),
		zap.String("priority", priority.String()),
	)
	go e.run(runCtx, def, instanceID)
	return instanceID, nil
}

// GetInstance returns a snapshot of the instance. The embedded Context is
// shared with the running scheduler; use its Snapshot/History accessors.
func (e *Engine) GetInstance(instanceID string) (Instance, error) {
	return e.store.Get(instanceID)
}

// ListInstances returns all retained instances ordered by creation time.
func (e *Engine) ListInstances() []Instance {
	return e.store.List()
}

// Cancel requests cooperative cancellation of a running instance. It
// returns false when the instance is unknown or already terminal. The
// terminal transition is a compare-and-set in the store, so a Cancel that
// returns true can never be overwritten by a concurrent completion. The
// in-flight step is interrupted at its next suspension point; no rollback
// of completed steps is attempted.
func (e *Engine) Cancel(instanceID string) bool {
	inst, ok := e.store.FinalizeIfLive(instanceID, StatusCancelled, "")
	if !ok {
		return false
	}

	e.mu.Lock()
	cancel, found := e.cancels[instanceID]
	e.mu.Unlock()
	if found {
		cancel()
	}

	e.logger.Info("workflow instance cancelled",
		zap.String("workflow_id", inst.WorkflowID),
		zap.String("instance_id", instanceID),
	)
	e.notifier.InstanceEvent(inst, "instance.cancelled", "")
	return true
}

// finalize records the terminal outcome exactly once. A concurrent Cancel
// may already have made the instance terminal; the store's compare-and-set
// lets its status win.
func (e *Engine) finalize(instanceID, status, errText string) {
	inst, ok := e.store.FinalizeIfLive(instanceID, status, errText)
	e.dropCancel(instanceID)
	if !ok {
		return
	}

	event := "instance.completed"
	if status != StatusCompleted {
		event = "instance.failed"
	}
	e.notifier.InstanceEvent(inst, event, errText)
}

func (e *Engine) dropCancel(instanceID string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[instanceID]; ok {
		delete(e.cancels, instanceID)
		cancel()
	}
	e.mu.Unlock()
}

// Shutdown cancels every in-flight instance; used on process stop. Runs
// interrupted here are lost, like everything else in memory.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(e.cancels))
	for _, cancel := range e.cancels {
		cancels = append(cancels, cancel)
	}
	e.cancels = map[string]context.CancelFunc{}
	e.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

func (e *Engine) markCurrentStep(instanceID, stepID string) {
	e.store.SetCurrentStep(instanceID, stepID)
}
