package steps

import (
	"context"
	"time"

	"github.com/clinicore/orchestrator/internal/workflow"
	"go.uber.org/zap"
)

// FHIRSync pushes one resource to the FHIR gateway. Transient gateway
// failures are retried with backoff; the step is skipped entirely when no
// gateway is configured.
type FHIRSync struct {
	id           string
	resourceType string
	client       *FHIRClient
}

func NewPatientFHIRSync(client *FHIRClient) FHIRSync {
	return FHIRSync{id: "patient.fhir_sync", resourceType: "Patient", client: client}
}

func NewEncounterFHIRSync(client *FHIRClient) FHIRSync {
	return FHIRSync{id: "encounter.fhir_sync", resourceType: "Encounter", client: client}
}

func (s FHIRSync) Spec() workflow.StepSpec {
	return workflow.StepSpec{
		ID:         s.id,
		Name:       "Sync " + s.resourceType + " to FHIR",
		Timeout:    15 * time.Second,
		Retryable:  true,
		MaxRetries: 3,
	}
}

func (s FHIRSync) CanExecute(_ *workflow.Context) bool {
	return s.client != nil
}

func (s FHIRSync) Execute(ctx context.Context, wc *workflow.Context) (map[string]any, error) {
	resource := map[string]any{"resourceType": s.resourceType}
	if mrn, ok := wc.Get("mrn"); ok {
		resource["identifier"] = mrn
	}
	if chartID, ok := wc.Get("chart_id"); ok {
		resource["chart_id"] = chartID
	}
	if noteID, ok := wc.Get("note_id"); ok {
		resource["note_id"] = noteID
	}
	out, err := s.client.CreateResource(ctx, s.resourceType, resource)
	if err != nil {
		return nil, err
	}
	wc.Set("fhir_synced", true)
	return out, nil
}

func (s FHIRSync) OnFailure(_ *workflow.Context, _ error) bool {
	// Gateway hiccups are the norm; let the backoff policy decide.
	return true
}

// NotifyCareTeam records a care-team notification. Delivery is handled by
// the notification service downstream of the event bus; here it only has to
// be queued into the context.
type NotifyCareTeam struct {
	id     string
	event  string
	logger *zap.Logger
}

func NewPatientNotify(logger *zap.Logger) NotifyCareTeam {
	return NotifyCareTeam{id: "patient.notify_care_team", event: "patient.registered", logger: logger}
}

func NewEncounterNotify(logger *zap.Logger) NotifyCareTeam {
	return NotifyCareTeam{id: "encounter.notify_care_team", event: "encounter.signed", logger: logger}
}

func (s NotifyCareTeam) Spec() workflow.StepSpec {
	return workflow.StepSpec{
		ID:         s.id,
		Name:       "Notify care team",
		Timeout:    5 * time.Second,
		Retryable:  true,
		MaxRetries: 2,
	}
}

func (s NotifyCareTeam) Execute(_ context.Context, wc *workflow.Context) (map[string]any, error) {
	principal := wc.Principal
	if principal == "" {
		principal = "system"
	}
	notice := map[string]any{
		"event":     s.event,
		"actor":     principal,
		"queued_at": time.Now().UTC().Format(time.RFC3339),
	}
	wc.Set("notification", notice)
	return notice, nil
}

func (s NotifyCareTeam) OnSuccess(wc *workflow.Context, result workflow.StepResult) {
	wc.SetVar("notified_at", result.FinishedAt)
	if s.logger != nil {
		s.logger.Info("care team notified",
			zap.String("instance_id", wc.InstanceID),
			zap.String("event", s.event),
		)
	}
}
