package steps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clinicore/orchestrator/internal/workflow"
	"github.com/google/uuid"
)

// ValidatePatient checks the demographics in the context data bag and
// normalizes the medical record number for downstream steps.
type ValidatePatient struct{}

func (ValidatePatient) Spec() workflow.StepSpec {
	return workflow.StepSpec{
		ID:      "patient.validate",
		Name:    "Validate patient demographics",
		Timeout: 10 * time.Second,
	}
}

func (ValidatePatient) Execute(_ context.Context, wc *workflow.Context) (map[string]any, error) {
	name, _ := wc.Get("patient_name")
	nameStr, _ := name.(string)
	if strings.TrimSpace(nameStr) == "" {
		return nil, fmt.Errorf("patient_name is required")
	}
	dob, _ := wc.Get("date_of_birth")
	dobStr, _ := dob.(string)
	if _, err := time.Parse("2006-01-02", dobStr); err != nil {
		return nil, fmt.Errorf("date_of_birth must be YYYY-MM-DD: %w", err)
	}

	mrn, _ := wc.Get("mrn")
	mrnStr, _ := mrn.(string)
	mrnStr = strings.ToUpper(strings.TrimSpace(mrnStr))
	if mrnStr == "" {
		mrnStr = "MRN-" + strings.ToUpper(uuid.NewString()[:8])
	}
	wc.Set("mrn", mrnStr)
	return map[string]any{"mrn": mrnStr}, nil
}

// DuplicateCheck guards against double registration. Intake flows that
// already de-duplicated upstream set skip_duplicate_check and the step is
// recorded as SKIPPED.
type DuplicateCheck struct{}

func (DuplicateCheck) Spec() workflow.StepSpec {
	return workflow.StepSpec{
		ID:      "patient.duplicate_check",
		Name:    "Check for duplicate records",
		Timeout: 10 * time.Second,
	}
}

func (DuplicateCheck) CanExecute(wc *workflow.Context) bool {
	skip, _ := wc.Get("skip_duplicate_check")
	v, _ := skip.(bool)
	return !v
}

func (DuplicateCheck) Execute(_ context.Context, wc *workflow.Context) (map[string]any, error) {
	if existing, ok := wc.Get("existing_mrn"); ok {
		return nil, fmt.Errorf("patient already registered under %v", existing)
	}
	wc.Set("duplicates_found", false)
	return map[string]any{"duplicates_found": false}, nil
}

// CreateChart allocates the patient's chart and records its id in the data
// bag for the sync and notification steps.
type CreateChart struct{}

func (CreateChart) Spec() workflow.StepSpec {
	return workflow.StepSpec{
		ID:      "patient.create_chart",
		Name:    "Initialize patient chart",
		Timeout: 10 * time.Second,
	}
}

func (CreateChart) Execute(_ context.Context, wc *workflow.Context) (map[string]any, error) {
	chartID := "chart_" + uuid.NewString()
	wc.Set("chart_id", chartID)
	return map[string]any{"chart_id": chartID}, nil
}
