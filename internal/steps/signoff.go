package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/clinicore/orchestrator/internal/workflow"
)

// ValidateNote checks that the encounter note is complete enough to sign.
type ValidateNote struct{}

func (ValidateNote) Spec() workflow.StepSpec {
	return workflow.StepSpec{
		ID:      "encounter.validate_note",
		Name:    "Validate encounter note",
		Timeout: 10 * time.Second,
	}
}

func (ValidateNote) Execute(_ context.Context, wc *workflow.Context) (map[string]any, error) {
	noteID, ok := wc.Get("note_id")
	if !ok {
		return nil, fmt.Errorf("note_id is required")
	}
	if _, ok := wc.Get("provider_id"); !ok {
		return nil, fmt.Errorf("provider_id is required")
	}
	if signed, _ := wc.Get("signed"); signed == true {
		return nil, fmt.Errorf("note %v is already signed", noteID)
	}
	return map[string]any{"note_id": noteID}, nil
}

// LockRecord marks the encounter immutable. Locking is deliberately not
// retryable: a failed lock needs human review, not a second attempt.
type LockRecord struct{}

func (LockRecord) Spec() workflow.StepSpec {
	return workflow.StepSpec{
		ID:      "encounter.lock_record",
		Name:    "Lock encounter record",
		Timeout: 10 * time.Second,
	}
}

func (LockRecord) Execute(_ context.Context, wc *workflow.Context) (map[string]any, error) {
	wc.Set("signed", true)
	wc.Set("signed_at", time.Now().UTC().Format(time.RFC3339))
	return map[string]any{"locked": true}, nil
}

func (LockRecord) OnFailure(_ *workflow.Context, _ error) bool {
	return false
}
