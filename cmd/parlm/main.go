package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mtzanidakis/parlm/internal/config"
	"github.com/mtzanidakis/parlm/internal/llm"
	"github.com/mtzanidakis/parlm/internal/natsbus"
	"github.com/mtzanidakis/parlm/internal/orchestrator"
	"github.com/mtzanidakis/parlm/internal/scheduler"
	"github.com/mtzanidakis/parlm/internal/store"
	"github.com/mtzanidakis/parlm/internal/web"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("parlm %s\n", version)
	case "gateway":
		if err := runGateway(); err != nil {
			slog.Error("gateway failed", "error", err)
			os.Exit(1)
		}
	case "backup":
		if err := runBackup(os.Args[2:]); err != nil {
			slog.Error("backup failed", "error", err)
			os.Exit(1)
		}
	case "restore":
		if err := runRestore(os.Args[2:]); err != nil {
			slog.Error("restore failed", "error", err)
			os.Exit(1)
		}
	case "credential":
		if err := runCredential(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: parlm <command>

Commands:
  gateway     Start the parlm gateway service
  backup      Archive the data directory
  restore     Restore a data directory archive
  credential  Manage sealed provider credentials
  version     Print version
`)
}

func runGateway() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting parlm gateway", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats started", "port", bus.Port())

	events, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("init nats client: %w", err)
	}
	defer events.Close()

	apiKey, err := resolveAPIKey(cfg, db)
	if err != nil {
		return err
	}
	cfg.LLM.APIKey = apiKey

	client := llm.NewOpenAIClient(cfg.LLM)

	orch, err := orchestrator.New(cfg, client, db, events, slog.Default())
	if err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}
	slog.Info("orchestrator ready", "workers", cfg.Orchestrator.Workers, "arbiter", cfg.Arbiter.Model)

	sched := scheduler.New(db, orch, events, cfg.Scheduler, slog.Default())
	go sched.Start(ctx)

	if cfg.Web.Enabled {
		srv := web.NewServer(db, events, orch, cfg.Web, version)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
		slog.Info("web server started", "port", cfg.Web.Port)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			cfg = reloadConfig(cfg, orch, sched)
			continue
		}
		slog.Info("shutting down", "signal", sig)
		break
	}
	cancel()
	return nil
}

// reloadConfig re-reads the config on SIGHUP and applies the reloadable
// sections to running components.
func reloadConfig(current *config.Config, orch *orchestrator.Orchestrator, sched *scheduler.Scheduler) *config.Config {
	fresh, err := config.Load()
	if err != nil {
		slog.Error("config reload failed, keeping current config", "error", err)
		return current
	}

	next, diff, err := config.Update(current, *fresh)
	if err != nil {
		slog.Error("config reload rejected", "error", err)
		return current
	}

	if diff.OrchestratorChanged || diff.ArbiterChanged {
		orch.UpdateConfig(next.Orchestrator, next.Arbiter)
		slog.Info("orchestration settings reloaded", "workers", next.Orchestrator.Workers, "arbiter", next.Arbiter.Model)
	}
	if diff.SchedulerChanged {
		sched.UpdatePollInterval(next.Scheduler.PollInterval)
	}
	for _, field := range diff.NonReloadable {
		slog.Warn("config change requires restart", "field", field)
	}
	if !diff.HasChanges() && len(diff.NonReloadable) == 0 {
		slog.Info("config reloaded, no changes")
	}
	return next
}
