package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Env carries secrets and deployment overrides read from the environment.
// Environment values take precedence over the YAML file so credentials never
// have to live on disk.
type Env struct {
	STTAPIKey   string `envconfig:"STT_API_KEY"`
	LLMAPIKey   string `envconfig:"LLM_API_KEY"`
	PostgresDSN string `envconfig:"POSTGRES_DSN"`
	ListenAddr  string `envconfig:"LISTEN_ADDR"`
	LogLevel    string `envconfig:"LOG_LEVEL"`
}

const namespace = "VOXTASK"

// LoadEnv reads VOXTASK_* environment variables.
func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}
	return &env, nil
}

// Apply overlays the non-empty environment values onto cfg.
// Call Validate afterwards when LogLevel may have changed.
func (e *Env) Apply(cfg *Config) {
	if e.STTAPIKey != "" {
		cfg.Providers.STT.APIKey = e.STTAPIKey
	}
	if e.LLMAPIKey != "" {
		cfg.Providers.LLM.APIKey = e.LLMAPIKey
	}
	if e.PostgresDSN != "" {
		cfg.Store.PostgresDSN = e.PostgresDSN
	}
	if e.ListenAddr != "" {
		cfg.Server.ListenAddr = e.ListenAddr
	}
	if e.LogLevel != "" {
		cfg.Server.LogLevel = LogLevel(e.LogLevel)
	}
}
