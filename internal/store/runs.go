package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Run statuses follow the request lifecycle: submitted, fanned_out,
// arbitrating, finalized, all_failed, validation_failed.
type Run struct {
	ID            string     `json:"id"`
	Model         string     `json:"model"`
	Status        string     `json:"status"`
	Workers       int        `json:"workers"`
	FailedWorkers int        `json:"failed_workers"`
	FallbackUsed  bool       `json:"fallback_used"`
	Result        []byte     `json:"result,omitempty"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func (s *Store) SaveRun(r *Run) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, model, status, workers)
		VALUES (?, ?, ?, ?)`,
		r.ID, r.Model, r.Status, r.Workers)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (s *Store) UpdateRunStatus(id, status string) error {
	_, err := s.db.Exec(`UPDATE runs SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return nil
}

// FinishRun records the terminal state of a run.
func (s *Store) FinishRun(id, status string, result []byte, failedWorkers int, fallbackUsed bool, errMsg string) error {
	_, err := s.db.Exec(`
		UPDATE runs
		SET status = ?, result = ?, failed_workers = ?, fallback_used = ?,
		    error = ?, completed_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		status, result, failedWorkers, boolToInt(fallbackUsed), errMsg, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, model, status, workers, failed_workers, fallback_used,
		       result, error, started_at, completed_at
		FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, model, status, workers, failed_workers, fallback_used,
		       result, error, started_at, completed_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func scanRun(sc scanner) (*Run, error) {
	r := &Run{}
	var fallback int
	var result []byte
	var errMsg sql.NullString
	err := sc.Scan(&r.ID, &r.Model, &r.Status, &r.Workers, &r.FailedWorkers,
		&fallback, &result, &errMsg, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		return nil, err
	}
	r.FallbackUsed = fallback == 1
	r.Result = result
	r.Error = errMsg.String
	return r, nil
}
