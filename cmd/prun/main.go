package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/mtzanidakis/parlm/internal/config"
	"github.com/mtzanidakis/parlm/internal/llm"
	"github.com/mtzanidakis/parlm/internal/orchestrator"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, `  prun --file request.json [--envelope] [--workers N] [--quiet]`)
	fmt.Fprintln(w, `  prun --file - < request.json`)
}

func run(args []string, stdout io.Writer) error {
	var (
		file     string
		envelope bool
		quiet    bool
		workers  int
	)

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--file":
			if i+1 >= len(args) {
				return fmt.Errorf("missing value for --file")
			}
			i++
			file = args[i]
		case "--workers":
			if i+1 >= len(args) {
				return fmt.Errorf("missing value for --workers")
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return fmt.Errorf("invalid --workers value: %s", args[i])
			}
			workers = n
		case "--envelope":
			envelope = true
		case "--quiet":
			quiet = true
		case "--help", "-h":
			usage(stdout)
			return nil
		default:
			usage(os.Stderr)
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	if file == "" {
		usage(os.Stderr)
		return fmt.Errorf("missing --file flag")
	}

	var payload []byte
	var err error
	if file == "-" {
		payload, err = io.ReadAll(os.Stdin)
	} else {
		payload, err = os.ReadFile(file)
	}
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}

	req, err := orchestrator.DecodePayload(payload)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if workers > 0 {
		cfg.Orchestrator.Workers = workers
	}

	log := slog.Default()
	if quiet {
		log = slog.New(slog.DiscardHandler)
	}

	orch, err := orchestrator.New(cfg, llm.NewOpenAIClient(cfg.LLM), nil, nil, log)
	if err != nil {
		return err
	}

	res, err := orch.Execute(context.Background(), req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if envelope {
		return enc.Encode(res.Completion())
	}
	return enc.Encode(res)
}
