package config

// Diff describes what changed between two configs. Every field is compared
// explicitly; there is no reflective probing, so a new config field that is not
// enumerated here fails review, not runtime.
type Diff struct {
	OrchestratorChanged bool
	NewOrchestrator     OrchestratorConfig

	ArbiterChanged bool
	NewArbiter     ArbiterConfig

	SchedulerChanged bool
	NewScheduler     SchedulerConfig

	// Non-reloadable fields that changed (log warnings only)
	NonReloadable []string
}

// HasChanges reports whether any reloadable field changed.
func (d *Diff) HasChanges() bool {
	return d.OrchestratorChanged || d.ArbiterChanged || d.SchedulerChanged
}

// Compare returns what changed between two configs.
func Compare(old, new *Config) Diff {
	var d Diff

	if old.Orchestrator != new.Orchestrator {
		d.OrchestratorChanged = true
		d.NewOrchestrator = new.Orchestrator
	}

	if old.Arbiter != new.Arbiter {
		d.ArbiterChanged = true
		d.NewArbiter = new.Arbiter
	}

	if old.Scheduler != new.Scheduler {
		d.SchedulerChanged = true
		d.NewScheduler = new.Scheduler
	}

	// Non-reloadable warnings
	if old.LLM != new.LLM {
		d.NonReloadable = append(d.NonReloadable, "llm")
	}
	if old.Web.Port != new.Web.Port {
		d.NonReloadable = append(d.NonReloadable, "web.port")
	}
	if old.NATS.DataDir != new.NATS.DataDir {
		d.NonReloadable = append(d.NonReloadable, "nats.data_dir")
	}
	if old.Store.Path != new.Store.Path {
		d.NonReloadable = append(d.NonReloadable, "store.path")
	}
	if old.Vault.Passphrase != new.Vault.Passphrase {
		d.NonReloadable = append(d.NonReloadable, "vault.passphrase")
	}

	return d
}

// Update validates the candidate config and returns it as the replacement.
// The current config is never mutated; callers swap the pointer on success.
func Update(current *Config, candidate Config) (*Config, Diff, error) {
	if err := candidate.Validate(); err != nil {
		return current, Diff{}, err
	}
	d := Compare(current, &candidate)
	return &candidate, d, nil
}
