package workflow

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownStep     = errors.New("unknown step")
	ErrUnknownWorkflow = errors.New("unknown workflow")
)

// Registry holds the step implementations and workflow definitions. Both
// maps are written during startup and read-only afterwards; registration is
// overwrite-by-id and there is no removal.
type Registry struct {
	mu          sync.RWMutex
	steps       map[string]Step
	definitions map[string]Definition
}

func NewRegistry() *Registry {
	return &Registry{
		steps:       map[string]Step{},
		definitions: map[string]Definition{},
	}
}

func (r *Registry) RegisterStep(s Step) error {
	spec := s.Spec()
	if spec.ID == "" {
		return errors.New("step id is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[spec.ID] = s
	return nil
}

func (r *Registry) RegisterWorkflow(d Definition) error {
	if d.ID == "" {
		return errors.New("workflow id is empty")
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("workflow %s has no steps", d.ID)
	}
	listed := make(map[string]bool, len(d.Steps))
	for _, id := range d.Steps {
		listed[id] = true
	}
	for step, deps := range d.Dependencies {
		if !listed[step] {
			return fmt.Errorf("workflow %s: dependency map references step %s not in step list", d.ID, step)
		}
		for _, dep := range deps {
			if !listed[dep] {
				return fmt.Errorf("workflow %s: step %s depends on %s which is not in step list", d.ID, step, dep)
			}
		}
	}
	for _, group := range d.ParallelGroups {
		for _, member := range group {
			if !listed[member] {
				return fmt.Errorf("workflow %s: parallel group references step %s not in step list", d.ID, member)
			}
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.definitions[d.ID] = d
	return nil
}

func (r *Registry) Step(id string) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.steps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStep, id)
	}
	return s, nil
}

func (r *Registry) Definition(id string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.definitions[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownWorkflow, id)
	}
	return d, nil
}

func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.definitions))
	for _, d := range r.definitions {
		out = append(out, d)
	}
	return out
}
