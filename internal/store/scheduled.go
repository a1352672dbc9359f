package store

import (
	"database/sql"
	"fmt"
	"time"
)

type ScheduledRequest struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Schedule   string     `json:"schedule"`
	Request    []byte     `json:"request"`
	Status     string     `json:"status"`
	NextRunAt  *time.Time `json:"next_run_at,omitempty"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	LastStatus string     `json:"last_status,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func scanScheduled(sc scanner) (*ScheduledRequest, error) {
	r := &ScheduledRequest{}
	var lastStatus, lastError *string
	err := sc.Scan(&r.ID, &r.Name, &r.Schedule, &r.Request, &r.Status,
		&r.NextRunAt, &r.LastRunAt, &lastStatus, &lastError, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lastStatus != nil {
		r.LastStatus = *lastStatus
	}
	if lastError != nil {
		r.LastError = *lastError
	}
	return r, nil
}

func (s *Store) SaveScheduledRequest(r *ScheduledRequest) error {
	_, err := s.db.Exec(`
		INSERT INTO scheduled_requests (id, name, schedule, request, status, next_run_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			schedule = excluded.schedule,
			request = excluded.request,
			status = excluded.status,
			next_run_at = excluded.next_run_at`,
		r.ID, r.Name, r.Schedule, r.Request, r.Status, r.NextRunAt)
	if err != nil {
		return fmt.Errorf("save scheduled request: %w", err)
	}
	return nil
}

func (s *Store) GetScheduledRequest(id string) (*ScheduledRequest, error) {
	row := s.db.QueryRow(`
		SELECT id, name, schedule, request, status,
		       next_run_at, last_run_at, last_status, last_error, created_at
		FROM scheduled_requests WHERE id = ?`, id)
	r, err := scanScheduled(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scheduled request: %w", err)
	}
	return r, nil
}

func (s *Store) ListScheduledRequests() ([]ScheduledRequest, error) {
	rows, err := s.db.Query(`
		SELECT id, name, schedule, request, status,
		       next_run_at, last_run_at, last_status, last_error, created_at
		FROM scheduled_requests ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list scheduled requests: %w", err)
	}
	defer rows.Close()

	var reqs []ScheduledRequest
	for rows.Next() {
		r, err := scanScheduled(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled request: %w", err)
		}
		reqs = append(reqs, *r)
	}
	return reqs, rows.Err()
}

func (s *Store) GetDueScheduledRequests(now time.Time) ([]ScheduledRequest, error) {
	rows, err := s.db.Query(`
		SELECT id, name, schedule, request, status,
		       next_run_at, last_run_at, last_status, last_error, created_at
		FROM scheduled_requests
		WHERE status = 'active' AND next_run_at <= ?
		ORDER BY next_run_at`, now)
	if err != nil {
		return nil, fmt.Errorf("get due scheduled requests: %w", err)
	}
	defer rows.Close()

	var reqs []ScheduledRequest
	for rows.Next() {
		r, err := scanScheduled(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled request: %w", err)
		}
		reqs = append(reqs, *r)
	}
	return reqs, rows.Err()
}

func (s *Store) UpdateScheduledRun(id string, lastStatus string, lastError string, nextRunAt *time.Time) error {
	_, err := s.db.Exec(`
		UPDATE scheduled_requests
		SET last_run_at = CURRENT_TIMESTAMP, last_status = ?, last_error = ?, next_run_at = ?
		WHERE id = ?`, lastStatus, lastError, nextRunAt, id)
	return err
}

func (s *Store) UpdateScheduledStatus(id string, status string) error {
	_, err := s.db.Exec(`UPDATE scheduled_requests SET status = ? WHERE id = ?`, status, id)
	return err
}

func (s *Store) DeleteScheduledRequest(id string) error {
	_, err := s.db.Exec(`DELETE FROM scheduled_requests WHERE id = ?`, id)
	return err
}
