package workflow

import (
	"strings"
	"time"
)

// Statistics is the on-demand aggregate over every retained instance. It is
// computed by scanning the store, O(n) in retained instances.
type Statistics struct {
	TotalInstances  int                `json:"total_instances"`
	ByStatus        map[string]int     `json:"by_status"`
	ByWorkflow      map[string]int     `json:"by_workflow"`
	AverageDuration time.Duration      `json:"average_duration"`
	SuccessRate     map[string]float64 `json:"success_rate"`
}

func (e *Engine) Statistics() Statistics {
	stats := Statistics{
		ByStatus:    map[string]int{},
		ByWorkflow:  map[string]int{},
		SuccessRate: map[string]float64{},
	}

	var totalDuration time.Duration
	var finished int
	terminalByWorkflow := map[string]int{}
	completedByWorkflow := map[string]int{}

	for _, inst := range e.store.List() {
		stats.TotalInstances++
		stats.ByStatus[strings.ToLower(inst.Status)]++
		stats.ByWorkflow[inst.WorkflowID]++
		if !inst.Terminal() {
			continue
		}
		terminalByWorkflow[inst.WorkflowID]++
		if inst.Status == StatusCompleted {
			completedByWorkflow[inst.WorkflowID]++
		}
		if !inst.StartedAt.IsZero() && !inst.CompletedAt.IsZero() {
			totalDuration += inst.CompletedAt.Sub(inst.StartedAt)
			finished++
		}
	}

	if finished > 0 {
		stats.AverageDuration = totalDuration / time.Duration(finished)
	}
	for workflowID, terminal := range terminalByWorkflow {
		stats.SuccessRate[workflowID] = float64(completedByWorkflow[workflowID]) / float64(terminal)
	}
	return stats
}
