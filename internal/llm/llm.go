package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mtzanidakis/parlm/internal/schema"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params is the closed set of pass-through generation parameters. Anything the
// remote endpoint accepts beyond these has to be added here explicitly.
type Params struct {
	MaxTokens int      `json:"max_tokens,omitempty" yaml:"max_tokens"`
	TopP      *float64 `json:"top_p,omitempty" yaml:"top_p"`
	Seed      *int     `json:"seed,omitempty" yaml:"seed"`
	Stop      []string `json:"stop,omitempty" yaml:"stop"`
}

// Validate checks parameter bounds at the boundary.
func (p Params) Validate() error {
	if p.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative, got %d", p.MaxTokens)
	}
	if p.TopP != nil && (*p.TopP < 0 || *p.TopP > 1) {
		return fmt.Errorf("top_p must be between 0 and 1, got %g", *p.TopP)
	}
	if len(p.Stop) > 4 {
		return fmt.Errorf("at most 4 stop sequences allowed, got %d", len(p.Stop))
	}
	return nil
}

// ParseRequest asks the remote service for one schema-conformant value.
type ParseRequest struct {
	Model       string
	Messages    []Message
	Schema      *schema.Schema
	Temperature float64
	Params      Params
}

// Client is the structured-generation capability the orchestrator depends on.
// Implementations return either a schema-conformant JSON value or an *Error
// carrying a failure classification.
type Client interface {
	Parse(ctx context.Context, req ParseRequest) (json.RawMessage, error)
}

type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindRateLimited ErrorKind = "rate_limited"
	KindRemote      ErrorKind = "remote"
	KindAuth        ErrorKind = "auth"
	KindValidation  ErrorKind = "validation"
)

// Error is a classified remote-call failure.
type Error struct {
	Kind       ErrorKind
	Status     int
	RetryAfter time.Duration
	Detail     string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("llm %s (status %d): %s", e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("llm %s: %s", e.Kind, e.Detail)
}

// Retryable reports whether another attempt can reasonably succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimited, KindRemote:
		return true
	}
	return false
}
