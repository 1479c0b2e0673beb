package workflow

import (
	"sort"
	"sync"
	"time"
)

// InstanceStore keeps every instance in memory. Each instance is written by
// exactly one scheduler goroutine and read by inspection/statistics calls,
// so a single RWMutex over the map is enough.
//
// The source of this engine grew without bound; this store instead evicts
// terminal instances past a cap and past a TTL. Live instances are never
// evicted. The bound is new, documented behavior, not an inherited contract.
type InstanceStore struct {
	mu        sync.RWMutex
	instances map[string]Instance

	maxInstances int
	ttl          time.Duration
}

func NewInstanceStore(maxInstances int, ttl time.Duration) *InstanceStore {
	return &InstanceStore{
		instances:    map[string]Instance{},
		maxInstances: maxInstances,
		ttl:          ttl,
	}
}

func (s *InstanceStore) Create(inst Instance) Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[inst.ID] = inst
	s.sweepLocked()
	return inst
}

// MarkRunning flips a live instance to RUNNING and stamps StartedAt. It
// returns false when the instance is unknown or already terminal, so a
// cancellation that raced ahead is never overwritten.
func (s *InstanceStore) MarkRunning(id string) (Instance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok || inst.Terminal() {
		return inst, false
	}
	now := time.Now().UTC()
	inst.Status = StatusRunning
	inst.StartedAt = now
	inst.UpdatedAt = now
	s.instances[id] = inst
	return inst, true
}

// SetCurrentStep records the step being dispatched. No-op once the instance
// is terminal.
func (s *InstanceStore) SetCurrentStep(id, stepID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok || inst.Terminal() {
		return
	}
	inst.CurrentStep = stepID
	inst.UpdatedAt = time.Now().UTC()
	s.instances[id] = inst
}

// FinalizeIfLive moves an instance to a terminal status exactly once. The
// read-decide-write happens under the write lock, so of two racing callers
// (scheduler completion vs Cancel) exactly one wins; the loser gets false
// and must not report the transition as its own.
func (s *InstanceStore) FinalizeIfLive(id, status, errText string) (Instance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok || inst.Terminal() {
		return inst, false
	}
	now := time.Now().UTC()
	inst.Status = status
	inst.Error = errText
	inst.CompletedAt = now
	inst.UpdatedAt = now
	s.instances[id] = inst
	return inst, true
}

func (s *InstanceStore) Get(id string) (Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[id]
	if !ok {
		return Instance{}, ErrNotFound
	}
	return inst, nil
}

func (s *InstanceStore) List() []Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *InstanceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instances)
}

// sweepLocked drops terminal instances older than the TTL, then the oldest
// terminal instances beyond the cap. Callers hold the write lock.
func (s *InstanceStore) sweepLocked() {
	now := time.Now().UTC()
	if s.ttl > 0 {
		for id, inst := range s.instances {
			if inst.Terminal() && now.Sub(inst.UpdatedAt) > s.ttl {
				delete(s.instances, id)
			}
		}
	}
	if s.maxInstances <= 0 || len(s.instances) <= s.maxInstances {
		return
	}
	terminal := make([]Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		if inst.Terminal() {
			terminal = append(terminal, inst)
		}
	}
	sort.Slice(terminal, func(i, j int) bool { return terminal[i].UpdatedAt.Before(terminal[j].UpdatedAt) })
	excess := len(s.instances) - s.maxInstances
	for i := 0; i < len(terminal) && excess > 0; i++ {
		delete(s.instances, terminal[i].ID)
		excess--
	}
}
