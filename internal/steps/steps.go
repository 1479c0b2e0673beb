// Package steps bundles the clinical step implementations wired into the
// engine at startup. They are ordinary Step values; the engine knows nothing
// about them beyond the Step contract.
package steps

import (
	"github.com/clinicore/orchestrator/internal/workflow"
	"go.uber.org/zap"
)

// All returns the default clinical step set. client may be nil, in which
// case the FHIR sync steps gate themselves off and are recorded SKIPPED.
func All(client *FHIRClient, logger *zap.Logger) []workflow.Step {
	return []workflow.Step{
		ValidatePatient{},
		DuplicateCheck{},
		CreateChart{},
		NewPatientFHIRSync(client),
		NewPatientNotify(logger),
		ValidateNote{},
		LockRecord{},
		NewEncounterFHIRSync(client),
		NewEncounterNotify(logger),
	}
}
