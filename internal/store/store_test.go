package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mtzanidakis/parlm/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(config.StoreConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)

	run := &Run{ID: "r1", Model: "gpt-4o", Status: "submitted", Workers: 3}
	if err := s.SaveRun(run); err != nil {
		t.Fatalf("save run: %v", err)
	}

	if err := s.UpdateRunStatus("r1", "fanned_out"); err != nil {
		t.Fatalf("update status: %v", err)
	}

	got, err := s.GetRun("r1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got == nil {
		t.Fatal("expected run, got nil")
	}
	if got.Status != "fanned_out" {
		t.Errorf("expected status fanned_out, got %s", got.Status)
	}
	if got.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", got.Workers)
	}

	if err := s.FinishRun("r1", "finalized", []byte(`{"ok":true}`), 1, true, ""); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	got, err = s.GetRun("r1")
	if err != nil {
		t.Fatalf("get run after finish: %v", err)
	}
	if got.Status != "finalized" {
		t.Errorf("expected status finalized, got %s", got.Status)
	}
	if got.FailedWorkers != 1 {
		t.Errorf("expected 1 failed worker, got %d", got.FailedWorkers)
	}
	if !got.FallbackUsed {
		t.Error("expected fallback_used set")
	}
	if string(got.Result) != `{"ok":true}` {
		t.Errorf("unexpected result: %s", got.Result)
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at set")
	}
}

func TestGetRunMissing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetRun("nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"a", "b", "c"} {
		if err := s.SaveRun(&Run{ID: id, Model: "m", Status: "submitted", Workers: 1}); err != nil {
			t.Fatalf("save run %s: %v", id, err)
		}
	}

	runs, err := s.ListRuns(2)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
}

func TestScheduledRequestLifecycle(t *testing.T) {
	s := newTestStore(t)

	next := time.Now().Add(-time.Minute).UTC()
	req := &ScheduledRequest{
		ID:        "s1",
		Name:      "daily digest",
		Schedule:  `{"kind":"interval","interval_ms":60000}`,
		Request:   []byte(`{"model":"gpt-4o"}`),
		Status:    "active",
		NextRunAt: &next,
	}
	if err := s.SaveScheduledRequest(req); err != nil {
		t.Fatalf("save scheduled request: %v", err)
	}

	due, err := s.GetDueScheduledRequests(time.Now().UTC())
	if err != nil {
		t.Fatalf("get due: %v", err)
	}
	if len(due) != 1 || due[0].ID != "s1" {
		t.Fatalf("expected s1 due, got %v", due)
	}

	later := time.Now().Add(time.Hour).UTC()
	if err := s.UpdateScheduledRun("s1", "ok", "", &later); err != nil {
		t.Fatalf("update scheduled run: %v", err)
	}

	due, err = s.GetDueScheduledRequests(time.Now().UTC())
	if err != nil {
		t.Fatalf("get due after update: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("expected no due requests, got %d", len(due))
	}

	got, err := s.GetScheduledRequest("s1")
	if err != nil {
		t.Fatalf("get scheduled request: %v", err)
	}
	if got.LastStatus != "ok" {
		t.Errorf("expected last_status ok, got %s", got.LastStatus)
	}

	if err := s.DeleteScheduledRequest("s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = s.GetScheduledRequest("s1")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestPausedScheduledRequestNotDue(t *testing.T) {
	s := newTestStore(t)

	next := time.Now().Add(-time.Minute).UTC()
	req := &ScheduledRequest{
		ID:        "s2",
		Name:      "paused",
		Schedule:  `{"kind":"interval","interval_ms":60000}`,
		Request:   []byte(`{}`),
		Status:    "paused",
		NextRunAt: &next,
	}
	if err := s.SaveScheduledRequest(req); err != nil {
		t.Fatalf("save: %v", err)
	}

	due, err := s.GetDueScheduledRequests(time.Now().UTC())
	if err != nil {
		t.Fatalf("get due: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("expected paused request to be skipped, got %d", len(due))
	}
}

func TestCredentialRoundTrip(t *testing.T) {
	s := newTestStore(t)

	cred := &Credential{ID: "c1", Provider: "openai", Name: "prod key", Value: []byte("sealed")}
	if err := s.SaveCredential(cred); err != nil {
		t.Fatalf("save credential: %v", err)
	}

	got, err := s.GetCredential("openai")
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if got == nil || string(got.Value) != "sealed" {
		t.Fatalf("unexpected credential: %+v", got)
	}

	// Upsert on provider
	cred2 := &Credential{ID: "c2", Provider: "openai", Name: "rotated", Value: []byte("sealed2")}
	if err := s.SaveCredential(cred2); err != nil {
		t.Fatalf("save rotated credential: %v", err)
	}
	got, err = s.GetCredential("openai")
	if err != nil {
		t.Fatalf("get rotated: %v", err)
	}
	if got.Name != "rotated" || string(got.Value) != "sealed2" {
		t.Errorf("expected rotated credential, got %+v", got)
	}

	list, err := s.ListCredentials()
	if err != nil {
		t.Fatalf("list credentials: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 credential, got %d", len(list))
	}
	if list[0].Value != nil {
		t.Error("list must not expose sealed values")
	}

	if err := s.DeleteCredential("openai"); err != nil {
		t.Fatalf("delete credential: %v", err)
	}
	got, err = s.GetCredential("openai")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}
