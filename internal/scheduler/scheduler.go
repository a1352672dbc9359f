package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/mtzanidakis/parlm/internal/config"
	"github.com/mtzanidakis/parlm/internal/natsbus"
	"github.com/mtzanidakis/parlm/internal/orchestrator"
	"github.com/mtzanidakis/parlm/internal/schedule"
	"github.com/mtzanidakis/parlm/internal/store"
)

// Scheduler polls the store for due scheduled requests and dispatches them
// through the orchestrator.
type Scheduler struct {
	store        *store.Store
	orch         *orchestrator.Orchestrator
	bus          *natsbus.Client
	pollInterval time.Duration
	reloadCh     chan struct{}
	log          *slog.Logger
}

func New(s *store.Store, orch *orchestrator.Orchestrator, bus *natsbus.Client, cfg config.SchedulerConfig, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		store:        s,
		orch:         orch,
		bus:          bus,
		pollInterval: cfg.PollInterval,
		reloadCh:     make(chan struct{}, 1),
		log:          log,
	}
}

// UpdatePollInterval changes the poll cadence and signals the run loop to
// reset its ticker.
func (s *Scheduler) UpdatePollInterval(interval time.Duration) {
	s.pollInterval = interval
	select {
	case s.reloadCh <- struct{}{}:
	default:
	}
}

// Start runs the poll loop until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	if s.pollInterval == 0 {
		s.pollInterval = 30 * time.Second
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.log.Info("scheduler started", "poll_interval", s.pollInterval)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-s.reloadCh:
			ticker.Reset(s.pollInterval)
			s.log.Info("scheduler poll interval updated", "poll_interval", s.pollInterval)
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Scheduler) poll(ctx context.Context) {
	due, err := s.store.GetDueScheduledRequests(time.Now().UTC())
	if err != nil {
		s.log.Error("failed to get due scheduled requests", "error", err)
		return
	}

	for _, req := range due {
		s.dispatch(ctx, req)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, sr store.ScheduledRequest) {
	s.log.Info("dispatching scheduled request", "id", sr.ID, "name", sr.Name)

	var lastStatus, lastError string
	req, err := orchestrator.DecodePayload(sr.Request)
	if err == nil {
		_, err = s.orch.Execute(ctx, req)
	}
	if err != nil {
		lastStatus = "error"
		lastError = err.Error()
		s.log.Error("scheduled request failed", "id", sr.ID, "error", err)
	} else {
		lastStatus = "success"
	}

	var nextRun *time.Time
	if sched, perr := schedule.Parse(sr.Schedule); perr == nil {
		nextRun = sched.Next(time.Now())
	}

	if err := s.store.UpdateScheduledRun(sr.ID, lastStatus, lastError, nextRun); err != nil {
		s.log.Error("failed to update scheduled request", "id", sr.ID, "error", err)
	}

	s.publishDispatched(sr, lastStatus)

	if nextRun == nil {
		s.log.Info("schedule exhausted, marking completed", "id", sr.ID, "name", sr.Name)
		if err := s.store.UpdateScheduledStatus(sr.ID, "completed"); err != nil {
			s.log.Error("failed to complete scheduled request", "id", sr.ID, "error", err)
		}
	}
}

// ScheduleEvent is published on the bus after every dispatch.
type ScheduleEvent struct {
	ScheduleID string    `json:"schedule_id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

func (s *Scheduler) publishDispatched(sr store.ScheduledRequest, status string) {
	if s.bus == nil {
		return
	}
	ev := ScheduleEvent{
		ScheduleID: sr.ID,
		Name:       sr.Name,
		Status:     status,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.bus.PublishJSON(natsbus.TopicScheduleEvents(sr.ID), ev); err != nil {
		s.log.Warn("failed to publish schedule event", "id", sr.ID, "error", err)
	}
}
