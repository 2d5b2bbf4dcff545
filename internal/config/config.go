// Package config provides unified configuration loading for the playbook
// engine. It supports loading from a YAML file and environment variable
// overrides, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/playbookhq/engine/internal/constants"
)

// Config contains every option named in the external interface's
// environment/config list.
type Config struct {
	// PlaybookPath is the playbook file's location. Defaults under .claude/
	// in the project directory.
	PlaybookPath string `json:"playbook_path" yaml:"playbook_path"`

	LLM LLMConfig `json:"llm" yaml:"llm"`

	// MergeThreshold is the minimum LLM-reported similarity to merge two
	// KPTs during reflection.
	MergeThreshold float64 `json:"merge_threshold" yaml:"merge_threshold"`

	// PruneThreshold is the score at or below which a KPT is pruned.
	PruneThreshold int `json:"prune_threshold" yaml:"prune_threshold"`

	// MaxKPTs is the maximum total playbook size.
	MaxKPTs int `json:"max_kpts" yaml:"max_kpts"`

	// DefaultSelectionLimit is the number of KPTs Selector returns absent
	// an explicit override.
	DefaultSelectionLimit int `json:"default_selection_limit" yaml:"default_selection_limit"`

	// DefaultTemperature is validated to lie in [0,1]. No component reads
	// it: the fallback client reports a fixed 0.5 whatever this is set to.
	DefaultTemperature float64 `json:"default_temperature" yaml:"default_temperature"`

	// BackupKeep is the number of most recent playbook backups retained.
	BackupKeep int `json:"backup_keep" yaml:"backup_keep"`

	// UpdateOnExit enables reflection at normal session end.
	UpdateOnExit bool `json:"update_on_exit" yaml:"update_on_exit"`

	// UpdateOnClear enables reflection before context compaction.
	UpdateOnClear bool `json:"update_on_clear" yaml:"update_on_clear"`

	// DiagnosticMode enables verbose structured logs to a sibling directory.
	DiagnosticMode bool `json:"diagnostic_mode" yaml:"diagnostic_mode"`

	// AdaptiveTemperatureOverride enables the keyword-based temperature
	// override ahead of Selector step 3. Defaults to enabled; the host may
	// disable it to use the LLM-supplied temperature verbatim.
	AdaptiveTemperatureOverride bool `json:"adaptive_temperature_override" yaml:"adaptive_temperature_override"`

	// EmbeddingModelPath is the GGUF model file backing the optional local
	// embedding cross-check on proposed merges (see internal/similarity).
	// Left empty, no cross-check runs and merges are accepted as the model
	// proposes them.
	EmbeddingModelPath string `json:"embedding_model_path,omitempty" yaml:"embedding_model_path,omitempty"`

	// EmbeddingLibPath is the directory containing the llama.cpp shared
	// libraries the embedding cross-check loads. Falls back to YZMA_LIB.
	EmbeddingLibPath string `json:"embedding_lib_path,omitempty" yaml:"embedding_lib_path,omitempty"`
}

// LLMConfig configures the LLM backend used for tag inference, reflection,
// and legacy migration.
type LLMConfig struct {
	// Provider identifies the backend: "anthropic", "openai", or "" to use
	// the deterministic fallback only.
	Provider string `json:"provider" yaml:"provider"`

	// APIKey is the API key for the provider. Supports ${VAR} expansion.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL is copied into llm.ClientConfig, but neither the Anthropic
	// nor the OpenAI client reads it: both always call their fixed
	// default endpoints.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Model is the model identifier to request.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// Timeout bounds a single LLM call.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Retries is the number of retries on transport errors; schema errors
	// are never retried.
	Retries int `json:"retries" yaml:"retries"`
}

// RedactedAPIKey returns the API key with most characters masked: first 4
// and last 4 characters, e.g. "sk-a...xyz9". Returns "" for empty keys and
// "(set)" for keys shorter than 12 characters.
func (c LLMConfig) RedactedAPIKey() string {
	if c.APIKey == "" {
		return ""
	}
	if len(c.APIKey) < 12 {
		return "(set)"
	}
	return c.APIKey[:4] + "..." + c.APIKey[len(c.APIKey)-4:]
}

// String implements fmt.Stringer without ever exposing the raw API key.
func (c LLMConfig) String() string {
	return fmt.Sprintf("LLMConfig{Provider:%s, Model:%s, APIKey:%s}", c.Provider, c.Model, c.RedactedAPIKey())
}

// Default returns a Config with the defaults named in the component design.
func Default() *Config {
	return &Config{
		PlaybookPath: filepath.Join(".claude", "playbook.json"),
		LLM: LLMConfig{
			Provider: "",
			Timeout:  30 * time.Second,
			Retries:  constants.DefaultLLMRetries,
		},
		MergeThreshold:              constants.DefaultMergeThreshold,
		PruneThreshold:              constants.DefaultPruneThreshold,
		MaxKPTs:                     constants.DefaultMaxKPTs,
		DefaultSelectionLimit:       constants.DefaultSelectionLimit,
		DefaultTemperature:         constants.DefaultTemperature,
		BackupKeep:                  constants.DefaultBackupKeep,
		UpdateOnExit:                true,
		UpdateOnClear:               true,
		DiagnosticMode:              false,
		AdaptiveTemperatureOverride: true,
	}
}

// Load loads configuration for projectRoot: defaults, then
// <projectRoot>/.claude/playbook.yaml if present, then environment
// variable overrides.
func Load(projectRoot string) (*Config, error) {
	cfg := Default()
	cfg.PlaybookPath = filepath.Join(projectRoot, ".claude", "playbook.json")

	configPath := filepath.Join(projectRoot, ".claude", "playbook.yaml")
	if _, err := os.Stat(configPath); err == nil {
		loaded, loadErr := LoadFromFile(configPath)
		if loadErr != nil {
			return nil, fmt.Errorf("loading config file: %w", loadErr)
		}
		if loaded.PlaybookPath == Default().PlaybookPath {
			loaded.PlaybookPath = cfg.PlaybookPath
		}
		cfg = loaded
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file, starting
// from defaults so that omitted fields keep their default value.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.LLM.APIKey = expandEnvVars(cfg.LLM.APIKey)
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.MergeThreshold < 0 || c.MergeThreshold > 1 {
		return fmt.Errorf("merge_threshold must be between 0 and 1, got %f", c.MergeThreshold)
	}
	if c.PruneThreshold >= 0 {
		return fmt.Errorf("prune_threshold must be negative, got %d", c.PruneThreshold)
	}
	if c.MaxKPTs <= 0 {
		return fmt.Errorf("max_kpts must be positive, got %d", c.MaxKPTs)
	}
	if c.DefaultSelectionLimit <= 0 {
		return fmt.Errorf("default_selection_limit must be positive, got %d", c.DefaultSelectionLimit)
	}
	if c.DefaultTemperature < 0 || c.DefaultTemperature > 1 {
		return fmt.Errorf("default_temperature must be between 0 and 1, got %f", c.DefaultTemperature)
	}
	if c.BackupKeep < 0 {
		return fmt.Errorf("backup_keep must be non-negative, got %d", c.BackupKeep)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm timeout must be non-negative, got %v", c.LLM.Timeout)
	}
	if c.LLM.Retries < 0 {
		return fmt.Errorf("llm retries must be non-negative, got %d", c.LLM.Retries)
	}
	validProviders := map[string]bool{"": true, "anthropic": true, "openai": true}
	if !validProviders[c.LLM.Provider] {
		return fmt.Errorf("invalid llm provider: %s (valid: anthropic, openai, or empty)", c.LLM.Provider)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PLAYBOOK_PATH"); v != "" {
		cfg.PlaybookPath = v
	}
	if v := os.Getenv("PLAYBOOK_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("PLAYBOOK_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("PLAYBOOK_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.LLM.Provider == "anthropic" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.LLM.Provider == "openai" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("PLAYBOOK_LLM_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LLM.Timeout = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("PLAYBOOK_LLM_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LLM.Retries = n
		}
	}
	if v := os.Getenv("PLAYBOOK_MERGE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.MergeThreshold = f
		}
	}
	if v := os.Getenv("PLAYBOOK_PRUNE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PruneThreshold = n
		}
	}
	if v := os.Getenv("PLAYBOOK_MAX_KPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxKPTs = n
		}
	}
	if v := os.Getenv("PLAYBOOK_DEFAULT_SELECTION_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultSelectionLimit = n
		}
	}
	if v := os.Getenv("PLAYBOOK_DEFAULT_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.DefaultTemperature = f
		}
	}
	if v := os.Getenv("PLAYBOOK_BACKUP_KEEP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BackupKeep = n
		}
	}
	if v := os.Getenv("PLAYBOOK_UPDATE_ON_EXIT"); v != "" {
		cfg.UpdateOnExit = v == "true" || v == "1"
	}
	if v := os.Getenv("PLAYBOOK_UPDATE_ON_CLEAR"); v != "" {
		cfg.UpdateOnClear = v == "true" || v == "1"
	}
	if v := os.Getenv("PLAYBOOK_DIAGNOSTIC_MODE"); v != "" {
		cfg.DiagnosticMode = v == "true" || v == "1"
	}
}

func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
