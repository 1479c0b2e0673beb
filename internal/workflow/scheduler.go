package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// run executes one instance to a terminal status. It is the only writer of
// that instance; inspection calls read concurrently through the store.
func (e *Engine) run(ctx context.Context, def Definition, instanceID string) {
	inst, ok := e.store.MarkRunning(instanceID)
	if !ok {
		// Cancelled (or evicted) before the goroutine was scheduled.
		e.dropCancel(instanceID)
		return
	}
	e.notifier.InstanceEvent(inst, "instance.started", "")

	execErr := e.execute(ctx, def, inst.Context)
	switch {
	case execErr == nil:
		e.finalize(instanceID, StatusCompleted, "")
	case errors.Is(execErr, context.DeadlineExceeded) && ctx.Err() != nil:
		e.finalize(instanceID, StatusTimeout, fmt.Sprintf("workflow timed out after %s", def.Timeout))
	case errors.Is(execErr, context.Canceled):
		e.finalize(instanceID, StatusCancelled, "")
	default:
		e.logger.Warn("workflow instance failed",
			zap.String("workflow_id", def.ID),
			zap.String("instance_id", instanceID),
			zap.Error(execErr),
		)
		e.finalize(instanceID, StatusFailed, execErr.Error())
	}
}

// execute drives the scheduling cycle: compute the ready set, peel off
// whole parallel groups, run them fan-out/fan-in, then run the remaining
// ready steps one at a time. It returns nil only when every step in the
// definition is COMPLETED or SKIPPED.
func (e *Engine) execute(ctx context.Context, def Definition, wc *Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		done := map[string]bool{}
		for _, r := range wc.History() {
			if r.Status == StepCompleted || r.Status == StepSkipped {
				done[r.StepID] = true
			}
		}

		var remaining []string
		for _, id := range def.Steps {
			if !done[id] {
				remaining = append(remaining, id)
			}
		}
		if len(remaining) == 0 {
			return nil
		}

		ready := map[string]bool{}
		for _, id := range remaining {
			eligible := true
			for _, dep := range def.Dependencies[id] {
				if !done[dep] {
					eligible = false
					break
				}
			}
			if eligible {
				ready[id] = true
			}
		}

		// Step ids are validated against the registry before the run
		// starts, so an empty ready set can only mean an unsatisfiable
		// dependency graph.
		if len(ready) == 0 {
			sort.Strings(remaining)
			return fmt.Errorf("deadlock detected: no runnable steps among [%s]", strings.Join(remaining, ", "))
		}

		var groups [][]string
		for _, group := range def.ParallelGroups {
			if len(group) == 0 {
				continue
			}
			contained := true
			for _, member := range group {
				if !ready[member] {
					contained = false
					break
				}
			}
			if contained {
				groups = append(groups, group)
				for _, member := range group {
					delete(ready, member)
				}
			}
		}

		if err := e.runGroups(ctx, groups, wc); err != nil {
			return err
		}

		sequential := make([]string, 0, len(ready))
		for id := range ready {
			sequential = append(sequential, id)
		}
		sort.Strings(sequential)
		for _, id := range sequential {
			if err := ctx.Err(); err != nil {
				return err
			}
			e.markCurrentStep(wc.InstanceID, id)
			if err := e.runStep(ctx, id, wc); err != nil {
				return err
			}
		}
	}
}

// runGroups fans out every member of the selected parallel groups and joins
// on all of them. Members run under the parent context, not a group-scoped
// one: a failing member does not interrupt its siblings, so their results
// (including successes) are always committed before the first error
// propagates and fails the instance.
func (e *Engine) runGroups(ctx context.Context, groups [][]string, wc *Context) error {
	if len(groups) == 0 {
		return nil
	}
	var eg errgroup.Group
	for _, group := range groups {
		for _, member := range group {
			e.markCurrentStep(wc.InstanceID, member)
			eg.Go(func() error {
				return e.runStep(ctx, member, wc)
			})
		}
	}
	return eg.Wait()
}
