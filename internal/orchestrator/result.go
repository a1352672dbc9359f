package orchestrator

import (
	"encoding/json"
	"time"

	"github.com/mtzanidakis/parlm/internal/llm"
	"github.com/mtzanidakis/parlm/internal/schema"
)

// Request is one logical structured-generation request. It is immutable once
// submitted and shared by reference across all workers and the arbitration
// call.
type Request struct {
	Model       string
	Messages    []llm.Message
	Schema      *schema.Schema
	Temperature float64
	Params      llm.Params
}

// WorkerResult is the terminal outcome of one worker's full retry sequence.
type WorkerResult struct {
	Worker int
	Value  json.RawMessage
	Err    error
}

// Succeeded reports whether the worker produced a value.
func (r WorkerResult) Succeeded() bool {
	return r.Err == nil
}

// report collects all worker results for one request. Successes preserve the
// order workers were issued, not completion order.
type report struct {
	results   []WorkerResult
	successes []json.RawMessage
	failures  int
}

// Result is the plain presentation of a finished orchestration.
type Result struct {
	RunID         string          `json:"run_id"`
	Value         json.RawMessage `json:"value"`
	Arbitrated    bool            `json:"arbitrated"`
	FallbackUsed  bool            `json:"fallback_used"`
	Workers       int             `json:"workers"`
	FailedWorkers int             `json:"failed_workers"`
	Duration      time.Duration   `json:"duration_ms"`
}

// Completion is the envelope presentation for callers expecting the
// chat-completions response shape. Same semantics as Result, different shape.
type Completion struct {
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Message ChoiceMessage `json:"message"`
}

type ChoiceMessage struct {
	Parsed json.RawMessage `json:"parsed"`
}

// Completion wraps the final value in the envelope shape.
func (r *Result) Completion() *Completion {
	return &Completion{
		Choices: []Choice{{Message: ChoiceMessage{Parsed: r.Value}}},
	}
}
