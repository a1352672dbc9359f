package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/mtzanidakis/parlm/internal/config"
	"github.com/mtzanidakis/parlm/internal/llm"
)

// invoke performs one worker's full retry sequence: the initial attempt plus
// up to MaxRetries retries, each under its own request timeout. Only
// retryable failures are retried; the last classified error is returned on
// exhaustion.
func (o *Orchestrator) invoke(ctx context.Context, req llm.ParseRequest, cfg config.OrchestratorConfig) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := wait(ctx, backoffDelay(cfg.BackoffBase, attempt, retryAfterHint(lastErr))); err != nil {
				return nil, err
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		value, err := o.client.Parse(attemptCtx, req)
		cancel()
		if err == nil {
			return value, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var lerr *llm.Error
		if errors.As(err, &lerr) && !lerr.Retryable() {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// backoffDelay doubles the base delay per retry. A rate-limit hint from the
// remote service takes precedence when it is longer.
func backoffDelay(base time.Duration, attempt int, hint time.Duration) time.Duration {
	d := base << (attempt - 1)
	if hint > d {
		d = hint
	}
	return d
}

func retryAfterHint(err error) time.Duration {
	var lerr *llm.Error
	if errors.As(err, &lerr) {
		return lerr.RetryAfter
	}
	return 0
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
