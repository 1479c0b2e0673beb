package workflow

import "time"

// BuiltinDefinitions are the clinical workflows registered at startup.
// Step ids are bound by the steps package.
var BuiltinDefinitions = []Definition{
	{
		ID:   "patient.registration",
		Name: "Register patient",
		Steps: []string{
			"patient.validate",
			"patient.duplicate_check",
			"patient.create_chart",
			"patient.fhir_sync",
			"patient.notify_care_team",
		},
		Dependencies: map[string][]string{
			"patient.duplicate_check":  {"patient.validate"},
			"patient.create_chart":     {"patient.duplicate_check"},
			"patient.fhir_sync":        {"patient.create_chart"},
			"patient.notify_care_team": {"patient.create_chart"},
		},
		ParallelGroups: [][]string{
			{"patient.fhir_sync", "patient.notify_care_team"},
		},
		Timeout:  5 * time.Minute,
		Priority: PriorityNormal,
	},
	{
		ID:   "encounter.signoff",
		Name: "Sign encounter",
		Steps: []string{
			"encounter.validate_note",
			"encounter.lock_record",
			"encounter.fhir_sync",
			"encounter.notify_care_team",
		},
		Dependencies: map[string][]string{
			"encounter.lock_record":      {"encounter.validate_note"},
			"encounter.fhir_sync":        {"encounter.lock_record"},
			"encounter.notify_care_team": {"encounter.lock_record"},
		},
		ParallelGroups: [][]string{
			{"encounter.fhir_sync", "encounter.notify_care_team"},
		},
		Timeout:  2 * time.Minute,
		Priority: PriorityHigh,
	},
}
