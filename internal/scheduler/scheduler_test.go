package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/mtzanidakis/parlm/internal/config"
	"github.com/mtzanidakis/parlm/internal/llm"
	"github.com/mtzanidakis/parlm/internal/orchestrator"
	"github.com/mtzanidakis/parlm/internal/store"
)

type stubClient struct {
	value json.RawMessage
	err   error
}

func (s *stubClient) Parse(ctx context.Context, req llm.ParseRequest) (json.RawMessage, error) {
	return s.value, s.err
}

const payload = `{
	"model": "gpt-4o",
	"messages": [{"role": "user", "content": "summarize"}],
	"schema": {"type": "object", "properties": {"answer": {"type": "string"}}, "required": ["answer"]}
}`

func newTestScheduler(t *testing.T, client llm.Client) (*Scheduler, *store.Store) {
	t.Helper()

	st, err := store.New(config.StoreConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		Orchestrator: config.OrchestratorConfig{Workers: 1, RequestTimeout: 5 * time.Second, BackoffBase: time.Millisecond},
		Arbiter:      config.ArbiterConfig{Model: "gpt-4o", Temperature: 0.1},
	}
	orch, err := orchestrator.New(cfg, client, st, nil, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("create orchestrator: %v", err)
	}

	return New(st, orch, nil, config.SchedulerConfig{PollInterval: time.Second}, slog.New(slog.DiscardHandler)), st
}

func saveDue(t *testing.T, st *store.Store, id, scheduleJSON string) {
	t.Helper()
	next := time.Now().Add(-time.Minute).UTC()
	err := st.SaveScheduledRequest(&store.ScheduledRequest{
		ID:        id,
		Name:      "test request",
		Schedule:  scheduleJSON,
		Request:   []byte(payload),
		Status:    "active",
		NextRunAt: &next,
	})
	if err != nil {
		t.Fatalf("save scheduled request: %v", err)
	}
}

func TestPollDispatchesDueRequest(t *testing.T) {
	sched, st := newTestScheduler(t, &stubClient{value: json.RawMessage(`{"answer":"done"}`)})
	saveDue(t, st, "s1", `{"kind":"interval","interval_ms":60000}`)

	sched.poll(context.Background())

	got, err := st.GetScheduledRequest("s1")
	if err != nil {
		t.Fatalf("get scheduled request: %v", err)
	}
	if got.LastStatus != "success" {
		t.Errorf("expected success, got %s (%s)", got.LastStatus, got.LastError)
	}
	if got.Status != "active" {
		t.Errorf("interval schedule must stay active, got %s", got.Status)
	}
	if got.NextRunAt == nil || !got.NextRunAt.After(time.Now().Add(30*time.Second)) {
		t.Errorf("expected next run rescheduled, got %v", got.NextRunAt)
	}

	runs, err := st.ListRuns(10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != "finalized" {
		t.Errorf("expected one finalized run, got %v", runs)
	}
}

func TestPollCompletesExhaustedSchedule(t *testing.T) {
	sched, st := newTestScheduler(t, &stubClient{value: json.RawMessage(`{"answer":"done"}`)})
	at := time.Now().Add(-time.Hour).UnixMilli()
	saveDue(t, st, "s2", `{"kind":"once","at_ms":`+strconv.FormatInt(at, 10)+`}`)

	sched.poll(context.Background())

	got, err := st.GetScheduledRequest("s2")
	if err != nil {
		t.Fatalf("get scheduled request: %v", err)
	}
	if got.Status != "completed" {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if got.NextRunAt != nil {
		t.Errorf("expected no next run, got %v", got.NextRunAt)
	}
}

func TestPollRecordsDispatchFailure(t *testing.T) {
	sched, st := newTestScheduler(t, &stubClient{err: &llm.Error{Kind: llm.KindAuth, Status: 401, Detail: "bad key"}})
	saveDue(t, st, "s3", `{"kind":"interval","interval_ms":60000}`)

	sched.poll(context.Background())

	got, err := st.GetScheduledRequest("s3")
	if err != nil {
		t.Fatalf("get scheduled request: %v", err)
	}
	if got.LastStatus != "error" {
		t.Errorf("expected error status, got %s", got.LastStatus)
	}
	if got.LastError == "" {
		t.Error("expected last error recorded")
	}
	if got.Status != "active" {
		t.Errorf("failed dispatch must not complete the schedule, got %s", got.Status)
	}
}
