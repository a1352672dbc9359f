package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mtzanidakis/parlm/internal/config"
	"github.com/mtzanidakis/parlm/internal/llm"
	"github.com/mtzanidakis/parlm/internal/natsbus"
	"github.com/mtzanidakis/parlm/internal/schema"
	"github.com/mtzanidakis/parlm/internal/store"
)

// Run statuses, in lifecycle order.
const (
	StatusSubmitted        = "submitted"
	StatusFannedOut        = "fanned_out"
	StatusArbitrating      = "arbitrating"
	StatusFinalized        = "finalized"
	StatusAllFailed        = "all_failed"
	StatusValidationFailed = "validation_failed"
)

// Orchestrator fans one structured-generation request out to N concurrent
// workers, arbitrates between their results and finalizes a single
// schema-conformant value.
type Orchestrator struct {
	mu           sync.RWMutex
	cfg          config.OrchestratorConfig
	arbiter      config.ArbiterConfig
	defaultModel string

	client llm.Client
	store  *store.Store
	bus    *natsbus.Client
	log    *slog.Logger
}

// New validates the configuration and builds an Orchestrator. Store and bus
// may be nil; run recording and event publishing are then skipped.
func New(cfg *config.Config, client llm.Client, st *store.Store, bus *natsbus.Client, log *slog.Logger) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("invalid configuration: llm client is required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Orchestrator{
		cfg:          cfg.Orchestrator,
		arbiter:      cfg.Arbiter,
		defaultModel: cfg.LLM.Model,
		client:       client,
		store:        st,
		bus:          bus,
		log:          log,
	}, nil
}

// UpdateConfig swaps the orchestration and arbiter settings. In-flight runs
// keep the snapshot they started with.
func (o *Orchestrator) UpdateConfig(run config.OrchestratorConfig, arbiter config.ArbiterConfig) {
	o.mu.Lock()
	o.cfg = run
	o.arbiter = arbiter
	o.mu.Unlock()
}

func (o *Orchestrator) snapshot() (config.OrchestratorConfig, config.ArbiterConfig, string) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cfg, o.arbiter, o.defaultModel
}

// Execute runs one request end to end: fan-out, arbitration, finalization.
// The request is never mutated; repeated calls with the same request are
// independent runs.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Result, error) {
	cfg, arbiter, defaultModel := o.snapshot()

	if err := validateRequest(&req, defaultModel); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	started := time.Now()
	log := o.log.With("run_id", runID, "model", req.Model, "workers", cfg.Workers)

	o.recordSubmitted(runID, req.Model, cfg.Workers)
	o.publishStatus(runID, StatusSubmitted, 0)
	log.Info("run submitted")

	rep := o.fanOut(ctx, req, cfg)
	if err := ctx.Err(); err != nil {
		o.recordFinished(runID, StatusAllFailed, nil, rep.failures, false, err.Error())
		return nil, err
	}

	o.publishStatus(runID, StatusFannedOut, rep.failures)
	log.Info("fan-out complete", "succeeded", len(rep.successes), "failed", rep.failures)

	if len(rep.successes) == 0 {
		perr := &ProcessingError{FailedWorkers: rep.failures, Detail: firstFailure(rep)}
		o.recordFinished(runID, StatusAllFailed, nil, rep.failures, false, perr.Error())
		o.publishStatus(runID, StatusAllFailed, rep.failures)
		log.Error("all workers failed", "error", perr.Detail)
		return nil, perr
	}

	value := rep.successes[0]
	arbitrated := false
	fallbackUsed := false

	if len(rep.successes) > 1 {
		o.publishStatus(runID, StatusArbitrating, rep.failures)
		chosen, err := o.arbitrate(ctx, req, rep.successes, arbiter, cfg)
		if err != nil {
			if ctx.Err() != nil {
				o.recordFinished(runID, StatusAllFailed, nil, rep.failures, false, ctx.Err().Error())
				return nil, ctx.Err()
			}
			log.Warn("arbitration failed, falling back to first success", "error", err)
			fallbackUsed = true
		} else {
			value = chosen
			arbitrated = true
		}
	}

	final, verr := o.finalize(req, value)
	if verr != nil {
		o.recordFinished(runID, StatusValidationFailed, nil, rep.failures, fallbackUsed, verr.Error())
		o.publishStatus(runID, StatusValidationFailed, rep.failures)
		log.Error("final value failed schema validation", "field", verr.Field)
		return nil, verr
	}

	res := &Result{
		RunID:         runID,
		Value:         final,
		Arbitrated:    arbitrated,
		FallbackUsed:  fallbackUsed,
		Workers:       cfg.Workers,
		FailedWorkers: rep.failures,
		Duration:      time.Since(started),
	}

	o.recordFinished(runID, StatusFinalized, final, rep.failures, fallbackUsed, "")
	o.publishStatus(runID, StatusFinalized, rep.failures)
	log.Info("run finalized", "arbitrated", arbitrated, "fallback_used", fallbackUsed, "duration", res.Duration)
	return res, nil
}

// ExecuteCompletion runs Execute and presents the value in the
// chat-completions envelope shape.
func (o *Orchestrator) ExecuteCompletion(ctx context.Context, req Request) (*Completion, error) {
	res, err := o.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Completion(), nil
}

// fanOut issues the request to every worker concurrently and collects all
// terminal outcomes, preserving worker order.
func (o *Orchestrator) fanOut(ctx context.Context, req Request, cfg config.OrchestratorConfig) report {
	results := make([]WorkerResult, cfg.Workers)

	var wg sync.WaitGroup
	for i := range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := o.invoke(ctx, llm.ParseRequest{
				Model:       req.Model,
				Messages:    req.Messages,
				Schema:      req.Schema,
				Temperature: req.Temperature,
				Params:      req.Params,
			}, cfg)
			results[i] = WorkerResult{Worker: i, Value: value, Err: err}
			if err != nil {
				o.log.Warn("worker failed", "worker", i, "error", err)
			}
		}()
	}
	wg.Wait()

	rep := report{results: results}
	for _, r := range results {
		if r.Succeeded() {
			rep.successes = append(rep.successes, r.Value)
		} else {
			rep.failures++
		}
	}
	return rep
}

// finalize checks the value against the declared schema, applying one
// normalization pass if the raw value does not conform.
func (o *Orchestrator) finalize(req Request, value []byte) ([]byte, *ValidationError) {
	err := req.Schema.Validate(value)
	if err == nil {
		return value, nil
	}

	if normalized, nerr := schema.Normalize(value); nerr == nil {
		if err = req.Schema.Validate(normalized); err == nil {
			return normalized, nil
		}
	}

	var serr *schema.Error
	if errors.As(err, &serr) {
		return nil, &ValidationError{Field: serr.Field, Detail: serr.Detail}
	}
	return nil, &ValidationError{Detail: err.Error()}
}

func validateRequest(req *Request, defaultModel string) error {
	if req.Model == "" {
		req.Model = defaultModel
	}
	if req.Model == "" {
		return &ValidationError{Field: "model", Detail: "model is required"}
	}
	if len(req.Messages) == 0 {
		return &ValidationError{Field: "messages", Detail: "at least one message is required"}
	}
	if req.Schema == nil {
		return &ValidationError{Field: "schema", Detail: "a response schema is required"}
	}
	if req.Temperature < 0 || req.Temperature > 2 {
		return &ValidationError{Field: "temperature", Detail: fmt.Sprintf("temperature must be between 0 and 2, got %g", req.Temperature)}
	}
	if err := req.Params.Validate(); err != nil {
		return &ValidationError{Field: "params", Detail: err.Error()}
	}
	return nil
}

func firstFailure(rep report) string {
	for _, r := range rep.results {
		if r.Err != nil {
			return r.Err.Error()
		}
	}
	return ""
}
