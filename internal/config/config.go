package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Send modes recognized by triage.sendMode.
const (
	SendModeReportOnly = "report-only"
	SendModeLive       = "live"
)

// Config is the root configuration for inboxtriage.
type Config struct {
	General   GeneralConfig             `json:"general"`
	Providers map[string]ProviderConfig `json:"providers"`
	Gmail     GmailConfig               `json:"gmail"`
	Triage    TriageConfig              `json:"triage"`
	Metrics   MetricsConfig             `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel        string   `json:"logLevel"`
	LogFile         string   `json:"logFile,omitempty"` // optional log file path
	DefaultProvider string   `json:"defaultProvider"`
	FailoverChain   []string `json:"failoverChain,omitempty"` // provider failover order
}

type ProviderConfig struct {
	Enabled        bool   `json:"enabled"`
	APIBase        string `json:"apiBase,omitempty"`
	APIKey         string `json:"apiKey,omitempty"`
	DefaultModel   string `json:"defaultModel,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
}

// GmailConfig locates the OAuth client secret and token cache and shapes the
// unread query.
type GmailConfig struct {
	CredentialsFile string `json:"credentialsFile"`
	TokenDB         string `json:"tokenDB"`
	Account         string `json:"account"` // key in the token store
	User            string `json:"user"`    // Gmail userId, "me" for the authorized account
	Query           string `json:"query"`
	MaxResults      int    `json:"maxResults"`
	From            string `json:"from"` // From header on replies
}

type TriageConfig struct {
	SendMode       string           `json:"sendMode"` // "report-only" | "live"
	BodyLimit      int              `json:"bodyLimit"`
	RecursiveParts bool             `json:"recursiveParts"`
	PromptsFile    string           `json:"promptsFile,omitempty"`
	Classify       CompletionConfig `json:"classify"`
	Draft          CompletionConfig `json:"draft"`
}

type CompletionConfig struct {
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
}

type MetricsConfig struct {
	Enabled    bool   `json:"enabled"`
	OutputFile string `json:"outputFile,omitempty"` // empty = stderr
}

// DefaultConfigDir returns the default config directory (~/.inboxtriage).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".inboxtriage"
	}
	return filepath.Join(home, ".inboxtriage")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefaults loads path, falling back to the built-in defaults when the
// file does not exist. Defaults go through the same env expansion as a file.
func LoadOrDefaults(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}
	data, err := json.Marshal(Defaults())
	if err != nil {
		return nil, false, fmt.Errorf("cannot marshal defaults: %w", err)
	}
	cfg, err = Parse(data)
	if err != nil {
		return nil, false, fmt.Errorf("defaults: %w", err)
	}
	return cfg, false, nil
}

// LoadUnexpanded decodes path over Defaults without resolving ${VAR}
// references, so a config edited and saved back keeps them. A missing file
// yields the defaults.
func LoadUnexpanded(path string) (*Config, error) {
	path = ExpandPath(path)
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config file %s: cannot parse config: %w", path, err)
	}
	return cfg, nil
}

// Parse expands ${VAR} references in raw JSON, decodes it over Defaults,
// resolves ~/ paths and validates the result.
func Parse(data []byte) (*Config, error) {
	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}

	// Default values the file did not override still carry raw references.
	for name, pc := range cfg.Providers {
		pc.APIKey = ExpandEnvVars(pc.APIKey)
		pc.APIBase = ExpandEnvVars(pc.APIBase)
		cfg.Providers[name] = pc
	}
	cfg.Gmail.CredentialsFile = ExpandEnvVars(cfg.Gmail.CredentialsFile)

	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Gmail.CredentialsFile = ExpandPath(cfg.Gmail.CredentialsFile)
	cfg.Gmail.TokenDB = ExpandPath(cfg.Gmail.TokenDB)
	cfg.Triage.PromptsFile = ExpandPath(cfg.Triage.PromptsFile)
	cfg.Metrics.OutputFile = ExpandPath(cfg.Metrics.OutputFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	switch cfg.Triage.SendMode {
	case SendModeReportOnly, SendModeLive:
	default:
		errs = append(errs, fmt.Sprintf("triage.sendMode must be one of: %s, %s", SendModeReportOnly, SendModeLive))
	}
	if cfg.Triage.BodyLimit < 1 {
		errs = append(errs, "triage.bodyLimit must be >= 1")
	}
	for name, cc := range map[string]CompletionConfig{"classify": cfg.Triage.Classify, "draft": cfg.Triage.Draft} {
		if cc.MaxTokens < 1 {
			errs = append(errs, fmt.Sprintf("triage.%s.maxTokens must be >= 1", name))
		}
		if cc.Temperature < 0 || cc.Temperature > 2 {
			errs = append(errs, fmt.Sprintf("triage.%s.temperature must be between 0 and 2", name))
		}
	}

	if cfg.Gmail.MaxResults < 1 || cfg.Gmail.MaxResults > 500 {
		errs = append(errs, "gmail.maxResults must be between 1 and 500")
	}
	if cfg.Gmail.User == "" {
		errs = append(errs, "gmail.user is required")
	}

	if _, ok := cfg.Providers[cfg.General.DefaultProvider]; !ok && len(cfg.General.FailoverChain) == 0 {
		errs = append(errs, fmt.Sprintf("general.defaultProvider references unknown provider: %s", cfg.General.DefaultProvider))
	}
	for _, provName := range cfg.General.FailoverChain {
		if _, ok := cfg.Providers[provName]; !ok {
			errs = append(errs, fmt.Sprintf("general.failoverChain references unknown provider: %s", provName))
		}
	}
	for name, pc := range cfg.Providers {
		if pc.TimeoutSeconds < 0 {
			errs = append(errs, fmt.Sprintf("providers.%s.timeoutSeconds must be >= 0", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
