package workflow

import (
	"context"
	"time"
)

// StepSpec describes a step's identity and execution policy.
type StepSpec struct {
	ID         string
	Name       string
	Timeout    time.Duration
	Retryable  bool
	MaxRetries int
}

// Step is the unit of work every business operation implements. Execute
// receives only the instance context; it has no access to the registries or
// to other instances. A non-nil error marks the attempt failed and hands
// control to the retry policy.
type Step interface {
	Spec() StepSpec
	Execute(ctx context.Context, wc *Context) (map[string]any, error)
}

// Gate is an optional capability: a side-effect-free precondition evaluated
// before Execute. Returning false records the step as SKIPPED without
// running it; dependents still become eligible.
type Gate interface {
	CanExecute(wc *Context) bool
}

// FailureHook is an optional capability consulted after every failed
// attempt, including the one that exhausts the retry budget. Returning false
// finalizes the step as FAILED even if retries remain; returning true
// permits a retry only while the budget lasts.
type FailureHook interface {
	OnFailure(wc *Context, err error) bool
}

// SuccessHook is an optional post-commit capability invoked after a step
// completes. It is best effort and cannot fail the step.
type SuccessHook interface {
	OnSuccess(wc *Context, result StepResult)
}
