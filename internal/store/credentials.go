package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Credential is a provider API key, sealed by the vault before it reaches
// the database.
type Credential struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	Name      string    `json:"name"`
	Value     []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Store) SaveCredential(c *Credential) error {
	_, err := s.db.Exec(`
		INSERT INTO credentials (id, provider, name, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			name = excluded.name,
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP`,
		c.ID, c.Provider, c.Name, c.Value)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *Store) GetCredential(provider string) (*Credential, error) {
	row := s.db.QueryRow(`
		SELECT id, provider, name, value, created_at, updated_at
		FROM credentials WHERE provider = ?`, provider)
	c := &Credential{}
	err := row.Scan(&c.ID, &c.Provider, &c.Name, &c.Value, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return c, nil
}

// ListCredentials returns credential metadata without sealed values.
func (s *Store) ListCredentials() ([]Credential, error) {
	rows, err := s.db.Query(`
		SELECT id, provider, name, created_at, updated_at
		FROM credentials ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []Credential
	for rows.Next() {
		c := Credential{}
		if err := rows.Scan(&c.ID, &c.Provider, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func (s *Store) DeleteCredential(provider string) error {
	_, err := s.db.Exec(`DELETE FROM credentials WHERE provider = ?`, provider)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
