package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper-api"},
	"llm": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Defaults applied by [LoadFromReader] for fields left at their zero value.
const (
	DefaultListenAddr       = ":8080"
	DefaultExecuteThreshold = 0.8
	DefaultClarifyThreshold = 0.6
	DefaultActionTimeout    = 10 * time.Second
	DefaultMaxAudioBytes    = 10 << 20
	DefaultInactivityWindow = 5 * time.Minute
	DefaultMaxTurns         = 10
	DefaultSweepInterval    = time.Minute
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills in defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero-value fields with the documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Dispatch.ExecuteThreshold == 0 {
		cfg.Dispatch.ExecuteThreshold = DefaultExecuteThreshold
	}
	if cfg.Dispatch.ClarifyThreshold == 0 {
		cfg.Dispatch.ClarifyThreshold = DefaultClarifyThreshold
	}
	if cfg.Dispatch.ActionTimeout == 0 {
		cfg.Dispatch.ActionTimeout = Duration(DefaultActionTimeout)
	}
	if cfg.Dispatch.MaxAudioBytes == 0 {
		cfg.Dispatch.MaxAudioBytes = DefaultMaxAudioBytes
	}
	if cfg.Session.InactivityWindow == 0 {
		cfg.Session.InactivityWindow = Duration(DefaultInactivityWindow)
	}
	if cfg.Session.MaxTurns == 0 {
		cfg.Session.MaxTurns = DefaultMaxTurns
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = Duration(DefaultSweepInterval)
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)

	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; voice clips will be rejected, text utterances still work")
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; intent classification relies on patterns alone")
	}

	// Dispatch thresholds
	if cfg.Dispatch.ExecuteThreshold <= 0 || cfg.Dispatch.ExecuteThreshold > 1 {
		errs = append(errs, fmt.Errorf("dispatch.execute_threshold %.2f is out of range (0, 1]", cfg.Dispatch.ExecuteThreshold))
	}
	if cfg.Dispatch.ClarifyThreshold <= 0 || cfg.Dispatch.ClarifyThreshold > 1 {
		errs = append(errs, fmt.Errorf("dispatch.clarify_threshold %.2f is out of range (0, 1]", cfg.Dispatch.ClarifyThreshold))
	}
	if cfg.Dispatch.ClarifyThreshold > cfg.Dispatch.ExecuteThreshold {
		errs = append(errs, fmt.Errorf("dispatch.clarify_threshold %.2f must not exceed dispatch.execute_threshold %.2f",
			cfg.Dispatch.ClarifyThreshold, cfg.Dispatch.ExecuteThreshold))
	}
	if cfg.Dispatch.ActionTimeout < 0 {
		errs = append(errs, fmt.Errorf("dispatch.action_timeout must not be negative"))
	}
	if cfg.Dispatch.MaxAudioBytes < 0 {
		errs = append(errs, fmt.Errorf("dispatch.max_audio_bytes must not be negative"))
	}

	// Session
	if cfg.Session.InactivityWindow <= 0 {
		errs = append(errs, fmt.Errorf("session.inactivity_window must be positive"))
	}
	if cfg.Session.MaxTurns <= 0 {
		errs = append(errs, fmt.Errorf("session.max_turns must be positive"))
	}

	// Store
	if cfg.Store.PostgresDSN == "" {
		slog.Warn("store.postgres_dsn is empty; tasks are kept in memory and lost on restart")
	}

	// Auth tokens
	for token, userID := range cfg.Auth.Tokens {
		if token == "" {
			errs = append(errs, errors.New("auth.tokens contains an empty token"))
		}
		if userID == "" {
			errs = append(errs, fmt.Errorf("auth.tokens entry %q maps to an empty user ID", redactToken(token)))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or a third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

// redactToken keeps the first four characters of a token for log correlation.
func redactToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}
