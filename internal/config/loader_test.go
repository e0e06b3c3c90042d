package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/voxtask/voxtask/internal/config"
)

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("listen_addr = %q, want %q", cfg.Server.ListenAddr, config.DefaultListenAddr)
	}
	if cfg.Dispatch.ExecuteThreshold != config.DefaultExecuteThreshold {
		t.Errorf("execute_threshold = %v, want %v", cfg.Dispatch.ExecuteThreshold, config.DefaultExecuteThreshold)
	}
	if cfg.Dispatch.ClarifyThreshold != config.DefaultClarifyThreshold {
		t.Errorf("clarify_threshold = %v, want %v", cfg.Dispatch.ClarifyThreshold, config.DefaultClarifyThreshold)
	}
	if cfg.Dispatch.ActionTimeout.Std() != config.DefaultActionTimeout {
		t.Errorf("action_timeout = %v, want %v", cfg.Dispatch.ActionTimeout.Std(), config.DefaultActionTimeout)
	}
	if cfg.Session.MaxTurns != config.DefaultMaxTurns {
		t.Errorf("max_turns = %d, want %d", cfg.Session.MaxTurns, config.DefaultMaxTurns)
	}
}

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":9090"
  log_level: debug
  allowed_origins:
    - https://app.example.com
providers:
  stt:
    name: whisper-api
    model: whisper-1
  llm:
    name: openai
    model: gpt-4o-mini
dispatch:
  execute_threshold: 0.85
  clarify_threshold: 0.55
  action_timeout: 8s
session:
  inactivity_window: 90s
  max_turns: 6
store:
  postgres_dsn: "postgres://voxtask@localhost:5432/voxtask"
auth:
  tokens:
    abc123xyz: user-1
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q, want :9090", cfg.Server.ListenAddr)
	}
	if cfg.Session.InactivityWindow.Std() != 90*time.Second {
		t.Errorf("inactivity_window = %v, want 90s", cfg.Session.InactivityWindow.Std())
	}
	if cfg.Dispatch.ExecuteThreshold != 0.85 {
		t.Errorf("execute_threshold = %v, want 0.85", cfg.Dispatch.ExecuteThreshold)
	}
	if got := cfg.Auth.Tokens["abc123xyz"]; got != "user-1" {
		t.Errorf("auth token maps to %q, want user-1", got)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_adress: ":8080"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_ThresholdOrdering(t *testing.T) {
	t.Parallel()
	yaml := `
dispatch:
  execute_threshold: 0.5
  clarify_threshold: 0.7
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for clarify threshold above execute threshold, got nil")
	}
	if !strings.Contains(err.Error(), "clarify_threshold") {
		t.Errorf("error should mention clarify_threshold, got: %v", err)
	}
}

func TestValidate_ThresholdRange(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
	}{
		{"execute above one", "dispatch:\n  execute_threshold: 1.2\n"},
		{"clarify negative", "dispatch:\n  clarify_threshold: -0.1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_EmptyAuthUser(t *testing.T) {
	t.Parallel()
	yaml := `
auth:
  tokens:
    sometoken: ""
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for empty user ID, got nil")
	}
	if strings.Contains(err.Error(), "sometoken") {
		t.Errorf("error must not leak the full token, got: %v", err)
	}
}

func TestDuration_Invalid(t *testing.T) {
	t.Parallel()
	yaml := `
session:
  inactivity_window: soon
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for malformed duration, got nil")
	}
}
