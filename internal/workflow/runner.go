package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// runStep wraps one step invocation with the gate check, the per-step
// deadline and the retry policy. A nil return means the step finished as
// COMPLETED or SKIPPED and its result is already in the context history.
func (e *Engine) runStep(ctx context.Context, stepID string, wc *Context) error {
	step, err := e.registry.Step(stepID)
	if err != nil {
		return err
	}
	spec := step.Spec()

	if gate, ok := step.(Gate); ok && !gate.CanExecute(wc) {
		result := StepResult{
			StepID:     spec.ID,
			Status:     StepSkipped,
			FinishedAt: time.Now().UTC(),
		}
		wc.appendResult(result)
		e.logger.Debug("step skipped",
			zap.String("instance_id", wc.InstanceID),
			zap.String("step_id", spec.ID),
		)
		e.notifier.StepEvent(wc.InstanceID, wc.WorkflowID, result, "step.skipped")
		return nil
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = e.cfg.DefaultStepTimeout
	}

	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		execCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		output, execErr := step.Execute(execCtx, wc)
		duration := time.Since(start)
		cancel()

		if execErr == nil {
			result := StepResult{
				StepID:     spec.ID,
				Status:     StepCompleted,
				Output:     output,
				Duration:   duration,
				Retries:    attempt,
				FinishedAt: time.Now().UTC(),
			}
			wc.appendResult(result)
			if hook, ok := step.(SuccessHook); ok {
				hook.OnSuccess(wc, result)
			}
			e.notifier.StepEvent(wc.InstanceID, wc.WorkflowID, result, "step.completed")
			return nil
		}

		// A cancelled parent pre-empts both retries and failure recording;
		// the instance outcome is decided by the caller.
		if err := ctx.Err(); err != nil {
			return err
		}
		if errors.Is(execErr, context.DeadlineExceeded) {
			execErr = fmt.Errorf("timed out after %s: %w", timeout, execErr)
		}

		// The hook observes every failed attempt, including the exhausting
		// one. Its veto is absolute; its approval still spends the budget.
		retry := spec.Retryable && attempt < spec.MaxRetries
		if hook, ok := step.(FailureHook); ok && !hook.OnFailure(wc, execErr) {
			retry = false
		}
		if !retry {
			result := StepResult{
				StepID:     spec.ID,
				Status:     StepFailed,
				Error:      execErr.Error(),
				Duration:   duration,
				Retries:    attempt,
				FinishedAt: time.Now().UTC(),
			}
			wc.appendResult(result)
			e.notifier.StepEvent(wc.InstanceID, wc.WorkflowID, result, "step.failed")
			return fmt.Errorf("step %s failed: %w", spec.ID, execErr)
		}

		attempt++
		delay := e.backoff.Delay(attempt)
		e.logger.Debug("step retrying",
			zap.String("instance_id", wc.InstanceID),
			zap.String("step_id", spec.ID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(execErr),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
