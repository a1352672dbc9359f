package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Arbiter      ArbiterConfig      `yaml:"arbiter"`
	LLM          LLMConfig          `yaml:"llm"`
	NATS         NATSConfig         `yaml:"nats"`
	Store        StoreConfig        `yaml:"store"`
	Web          WebConfig          `yaml:"web"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Vault        VaultConfig        `yaml:"vault"`
}

type OrchestratorConfig struct {
	Workers        int           `yaml:"workers"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	BackoffBase    time.Duration `yaml:"backoff_base"`
}

type ArbiterConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	Instruction string  `yaml:"instruction"`
}

type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type NATSConfig struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Auth    string `yaml:"auth"`
}

type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type VaultConfig struct {
	Passphrase string `yaml:"passphrase"`
}

func defaults() Config {
	return Config{
		Orchestrator: OrchestratorConfig{
			Workers:        3,
			RequestTimeout: 30 * time.Second,
			MaxRetries:     2,
			BackoffBase:    time.Second,
		},
		Arbiter: ArbiterConfig{
			Model:       "gpt-4o",
			Temperature: 0.1,
		},
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Store: StoreConfig{
			Path: "data/parlm.db",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
		Scheduler: SchedulerConfig{
			PollInterval: 30 * time.Second,
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("PARLM_CONFIG")
	if path == "" {
		path = "config/parlm.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PARLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("PARLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("PARLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("PARLM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Orchestrator.Workers = n
		}
	}
	if v := os.Getenv("PARLM_ARBITER_MODEL"); v != "" {
		cfg.Arbiter.Model = v
	}
	if v := os.Getenv("PARLM_WEB_PASSWORD"); v != "" {
		cfg.Web.Auth = v
	}
	if v := os.Getenv("PARLM_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("PARLM_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("PARLM_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("PARLM_VAULT_PASSPHRASE"); v != "" {
		cfg.Vault.Passphrase = v
	}
}

// Validate rejects invalid settings before any orchestration begins.
func (c *Config) Validate() error {
	if c.Orchestrator.Workers < 1 {
		return fmt.Errorf("config: orchestrator.workers must be at least 1, got %d", c.Orchestrator.Workers)
	}
	if c.Orchestrator.RequestTimeout <= 0 {
		return fmt.Errorf("config: orchestrator.request_timeout must be positive, got %v", c.Orchestrator.RequestTimeout)
	}
	if c.Orchestrator.MaxRetries < 0 {
		return fmt.Errorf("config: orchestrator.max_retries must be non-negative, got %d", c.Orchestrator.MaxRetries)
	}
	if c.Orchestrator.BackoffBase < 0 {
		return fmt.Errorf("config: orchestrator.backoff_base must be non-negative, got %v", c.Orchestrator.BackoffBase)
	}
	if c.Arbiter.Model == "" {
		return fmt.Errorf("config: arbiter.model is required")
	}
	if c.Arbiter.Temperature < 0 || c.Arbiter.Temperature > 2 {
		return fmt.Errorf("config: arbiter.temperature must be between 0 and 2, got %g", c.Arbiter.Temperature)
	}
	return nil
}
