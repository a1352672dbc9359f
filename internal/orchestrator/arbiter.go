package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mtzanidakis/parlm/internal/config"
	"github.com/mtzanidakis/parlm/internal/llm"
)

// defaultInstruction is used when no arbiter instruction is configured.
const defaultInstruction = `You are a decision maker evaluating multiple candidate responses to the same request.

Evaluate each candidate on accuracy, completeness, relevance, quality and internal consistency. Select the single best candidate, or synthesize a combined response if that would clearly be better than any individual candidate.

Respond with the chosen or synthesized content only, in exactly the same format as the candidates. Do not include commentary, rankings or explanations.`

// arbitrate issues a second structured-generation call asking the arbiter
// model to pick or synthesize the best of the candidate values. The arbiter
// answers under the same schema as the workers, so its output is a valid
// candidate itself. The call runs through the same retry sequence as a
// worker before its failure is surfaced.
func (o *Orchestrator) arbitrate(ctx context.Context, req Request, candidates []json.RawMessage, arbiter config.ArbiterConfig, cfg config.OrchestratorConfig) (json.RawMessage, error) {
	value, err := o.invoke(ctx, llm.ParseRequest{
		Model:       arbiter.Model,
		Messages:    arbitrationMessages(req, candidates, arbiter.Instruction),
		Schema:      req.Schema,
		Temperature: arbiter.Temperature,
	}, cfg)
	if err != nil {
		return nil, fmt.Errorf("arbitration call: %w", err)
	}
	return value, nil
}

func arbitrationMessages(req Request, candidates []json.RawMessage, instruction string) []llm.Message {
	if instruction == "" {
		instruction = defaultInstruction
	}

	var b strings.Builder
	b.WriteString("Original request:\n")
	for _, m := range req.Messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	b.WriteString("\nCandidate responses:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "\nCandidate %d:\n%s\n", i+1, c)
	}

	return []llm.Message{
		{Role: "system", Content: instruction},
		{Role: "user", Content: b.String()},
	}
}
