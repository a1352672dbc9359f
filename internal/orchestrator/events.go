package orchestrator

import (
	"time"

	"github.com/mtzanidakis/parlm/internal/natsbus"
	"github.com/mtzanidakis/parlm/internal/store"
)

// RunEvent is published on the bus at every run status transition.
type RunEvent struct {
	RunID         string    `json:"run_id"`
	Status        string    `json:"status"`
	FailedWorkers int       `json:"failed_workers,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func (o *Orchestrator) publishStatus(runID, status string, failedWorkers int) {
	if o.bus == nil {
		return
	}
	ev := RunEvent{
		RunID:         runID,
		Status:        status,
		FailedWorkers: failedWorkers,
		Timestamp:     time.Now().UTC(),
	}
	if err := o.bus.PublishJSON(natsbus.TopicRunEvents(runID), ev); err != nil {
		o.log.Warn("failed to publish run event", "run_id", runID, "status", status, "error", err)
	}
}

func (o *Orchestrator) recordSubmitted(runID, model string, workers int) {
	if o.store == nil {
		return
	}
	err := o.store.SaveRun(&store.Run{
		ID:      runID,
		Model:   model,
		Status:  StatusSubmitted,
		Workers: workers,
	})
	if err != nil {
		o.log.Warn("failed to record run", "run_id", runID, "error", err)
	}
}

func (o *Orchestrator) recordFinished(runID, status string, result []byte, failedWorkers int, fallbackUsed bool, errMsg string) {
	if o.store == nil {
		return
	}
	if err := o.store.FinishRun(runID, status, result, failedWorkers, fallbackUsed, errMsg); err != nil {
		o.log.Warn("failed to record run outcome", "run_id", runID, "error", err)
	}
}
