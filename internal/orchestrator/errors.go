package orchestrator

import "fmt"

// ProcessingError is the aggregate failure raised when every fan-out worker
// terminally failed. The orchestrator never retries it; callers may retry the
// whole request.
type ProcessingError struct {
	FailedWorkers int
	Detail        string
}

func (e *ProcessingError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("all %d workers failed: %s", e.FailedWorkers, e.Detail)
	}
	return fmt.Sprintf("all %d workers failed", e.FailedWorkers)
}

// DecisionMakerError is raised when arbitration failed and no successful
// candidate was available to fall back to.
type DecisionMakerError struct {
	FallbackAttempted bool
	Detail            string
}

func (e *DecisionMakerError) Error() string {
	if e.FallbackAttempted {
		return fmt.Sprintf("arbitration failed with no fallback candidate: %s", e.Detail)
	}
	return fmt.Sprintf("arbitration failed: %s", e.Detail)
}

// ValidationError is raised when a request is malformed or the final value
// does not conform to the declared schema even after coercion.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed at %s: %s", e.Field, e.Detail)
	}
	return fmt.Sprintf("validation failed: %s", e.Detail)
}
