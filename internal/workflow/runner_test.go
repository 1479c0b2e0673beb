package workflow

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func failNTimes(n int) func(context.Context, *Context) (map[string]any, error) {
	var calls atomic.Int32
	return func(context.Context, *Context) (map[string]any, error) {
		if int(calls.Add(1)) <= n {
			return nil, fmt.Errorf("transient failure")
		}
		return map[string]any{"ok": true}, nil
	}
}

func singleStepDef(id string) Definition {
	return Definition{ID: "wf." + id, Name: id, Steps: []string{id}}
}

func TestRetryUntilSuccessRecordsRetryCount(t *testing.T) {
	const failures = 3
	step := hookedStep{
		stubStep: stubStep{
			id:         "flaky",
			retryable:  true,
			maxRetries: 5,
			execute:    failNTimes(failures),
		},
	}
	engine := newTestEngine(t, step)
	if err := engine.RegisterWorkflow(singleStepDef("flaky")); err != nil {
		t.Fatalf("register workflow: %v", err)
	}
	id, _ := engine.StartWorkflow("wf.flaky", StartOptions{})
	inst := waitTerminal(t, engine, id)

	if inst.Status != StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED (error: %s)", inst.Status, inst.Error)
	}
	result, ok := inst.Context.Result("flaky")
	if !ok {
		t.Fatal("missing result for flaky step")
	}
	if result.Status != StepCompleted || result.Retries != failures {
		t.Fatalf("result = %s retries=%d, want COMPLETED retries=%d", result.Status, result.Retries, failures)
	}
}

func TestRetriesExhaustedFailsInstance(t *testing.T) {
	step := hookedStep{
		stubStep: stubStep{
			id:         "doomed",
			retryable:  true,
			maxRetries: 2,
			execute:    failNTimes(5),
		},
	}
	engine := newTestEngine(t, step)
	if err := engine.RegisterWorkflow(singleStepDef("doomed")); err != nil {
		t.Fatalf("register workflow: %v", err)
	}
	id, _ := engine.StartWorkflow("wf.doomed", StartOptions{})
	inst := waitTerminal(t, engine, id)

	if inst.Status != StatusFailed {
		t.Fatalf("status = %s, want FAILED", inst.Status)
	}
	if !contains(inst.Error, "doomed") || !contains(inst.Error, "transient failure") {
		t.Fatalf("error %q should preserve the step's message", inst.Error)
	}
	result, ok := inst.Context.Result("doomed")
	if !ok || result.Status != StepFailed || result.Retries != 2 {
		t.Fatalf("result = %+v, want FAILED after 2 retries", result)
	}
}

func TestNonRetryableStepFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	step := stubStep{
		id:         "fatal",
		retryable:  false,
		maxRetries: 5,
		execute: func(context.Context, *Context) (map[string]any, error) {
			calls.Add(1)
			return nil, fmt.Errorf("permanent failure")
		},
	}
	engine := newTestEngine(t, step)
	if err := engine.RegisterWorkflow(singleStepDef("fatal")); err != nil {
		t.Fatalf("register workflow: %v", err)
	}
	id, _ := engine.StartWorkflow("wf.fatal", StartOptions{})
	inst := waitTerminal(t, engine, id)

	if inst.Status != StatusFailed {
		t.Fatalf("status = %s, want FAILED", inst.Status)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("non-retryable step executed %d times, want 1", got)
	}
}

func TestOnFailureVetoStopsRetries(t *testing.T) {
	var calls atomic.Int32
	step := hookedStep{
		stubStep: stubStep{
			id:         "vetoed",
			retryable:  true,
			maxRetries: 5,
			execute: func(context.Context, *Context) (map[string]any, error) {
				calls.Add(1)
				return nil, fmt.Errorf("boom")
			},
		},
		onFailure: func(*Context, error) bool { return false },
	}
	engine := newTestEngine(t, step)
	if err := engine.RegisterWorkflow(singleStepDef("vetoed")); err != nil {
		t.Fatalf("register workflow: %v", err)
	}
	id, _ := engine.StartWorkflow("wf.vetoed", StartOptions{})
	inst := waitTerminal(t, engine, id)

	if inst.Status != StatusFailed {
		t.Fatalf("status = %s, want FAILED", inst.Status)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("vetoed step executed %d times, want 1", got)
	}
}

func TestOnFailureObservesEveryAttempt(t *testing.T) {
	var hookCalls atomic.Int32
	step := hookedStep{
		stubStep: stubStep{
			id:         "watched",
			retryable:  true,
			maxRetries: 2,
			execute:    failNTimes(5),
		},
		onFailure: func(*Context, error) bool {
			hookCalls.Add(1)
			return true
		},
	}
	engine := newTestEngine(t, step)
	if err := engine.RegisterWorkflow(singleStepDef("watched")); err != nil {
		t.Fatalf("register workflow: %v", err)
	}
	id, _ := engine.StartWorkflow("wf.watched", StartOptions{})
	inst := waitTerminal(t, engine, id)

	if inst.Status != StatusFailed {
		t.Fatalf("status = %s, want FAILED", inst.Status)
	}
	// Three executions (initial + 2 retries) fail, and the hook must see
	// all of them, the budget-exhausting one included.
	if got := hookCalls.Load(); got != 3 {
		t.Fatalf("OnFailure ran %d times, want 3", got)
	}
}

func TestStepTimeoutIsRetriedThenFails(t *testing.T) {
	step := stubStep{
		id:         "stuck",
		retryable:  true,
		maxRetries: 1,
		timeout:    10 * time.Millisecond,
		execute: func(ctx context.Context, _ *Context) (map[string]any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	engine := newTestEngine(t, step)
	if err := engine.RegisterWorkflow(singleStepDef("stuck")); err != nil {
		t.Fatalf("register workflow: %v", err)
	}
	id, _ := engine.StartWorkflow("wf.stuck", StartOptions{})
	inst := waitTerminal(t, engine, id)

	if inst.Status != StatusFailed {
		t.Fatalf("status = %s, want FAILED", inst.Status)
	}
	if !contains(inst.Error, "timed out after") {
		t.Fatalf("error %q should report the step timeout", inst.Error)
	}
	result, _ := inst.Context.Result("stuck")
	if result.Retries != 1 {
		t.Fatalf("retries = %d, want 1", result.Retries)
	}
}

func TestOnSuccessHookRuns(t *testing.T) {
	var sawResult atomic.Bool
	step := hookedStep{
		stubStep: stubStep{id: "hooked"},
		onSuccess: func(wc *Context, result StepResult) {
			if result.Status == StepCompleted {
				sawResult.Store(true)
				wc.SetVar("post_commit", true)
			}
		},
	}
	engine := newTestEngine(t, step)
	if err := engine.RegisterWorkflow(singleStepDef("hooked")); err != nil {
		t.Fatalf("register workflow: %v", err)
	}
	id, _ := engine.StartWorkflow("wf.hooked", StartOptions{})
	inst := waitTerminal(t, engine, id)

	if inst.Status != StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", inst.Status)
	}
	if !sawResult.Load() {
		t.Fatal("OnSuccess hook never ran")
	}
	if v, ok := inst.Context.Var("post_commit"); !ok || v != true {
		t.Fatal("OnSuccess hook could not write engine variables")
	}
}

func TestExponentialBackoffDelays(t *testing.T) {
	b := ExponentialBackoff{Base: time.Second, Max: 30 * time.Second}
	if got := b.Delay(1); got != time.Second {
		t.Fatalf("Delay(1) = %s, want 1s", got)
	}
	if got := b.Delay(2); got != 2*time.Second {
		t.Fatalf("Delay(2) = %s, want 2s", got)
	}
	if got := b.Delay(3); got != 4*time.Second {
		t.Fatalf("Delay(3) = %s, want 4s", got)
	}
	if got := b.Delay(10); got != 30*time.Second {
		t.Fatalf("Delay(10) = %s, want the 30s cap", got)
	}
}
