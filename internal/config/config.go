// Package config loads the run configuration: YAML file first, then IMG2MD_* environment overrides.
// Command-line flags are applied on top by the caller; the result is immutable for the run.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Backend         string        `yaml:"backend"`
	APIKey          string        `yaml:"api_key"`
	Model           string        `yaml:"model"`
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	InputDir        string        `yaml:"input_dir"`
	OutputDir       string        `yaml:"output_dir"`
	OutputSuffix    string        `yaml:"output_suffix"`
	Extensions      []string      `yaml:"extensions"`
	Concurrency     int           `yaml:"concurrency"`
	Temperature     *float64      `yaml:"temperature"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	ReasoningEffort string        `yaml:"reasoning_effort"`
	PromptPath      string        `yaml:"prompt_path"`
	LogFile         bool          `yaml:"log_file"`
	LogDir          string        `yaml:"log_dir"`
	LogLevel        string        `yaml:"log_level"`
	MetricsFile     string        `yaml:"metrics_file"`
	ReportDir       string        `yaml:"report_dir"`
	ReportFormat    string        `yaml:"report_format"`
	Notify          Notify        `yaml:"notify"`
}

// Notify configures the optional run-summary email.
type Notify struct {
	SendGridAPIKey string   `yaml:"sendgrid_api_key"`
	SendGridHost   string   `yaml:"sendgrid_host"`
	FromName       string   `yaml:"from_name"`
	FromAddress    string   `yaml:"from_address"`
	To             []string `yaml:"to"`
}

func (n Notify) Enabled() bool {
	return n.SendGridAPIKey != "" && len(n.To) > 0
}

// providerKeyEnv lets the usual provider variables stand in for api_key.
var providerKeyEnv = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"claude":    "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"google":    "GEMINI_API_KEY",
	"mistral":   "MISTRAL_API_KEY",
	"pixtral":   "MISTRAL_API_KEY",
}

func defaults() Config {
	return Config{
		Backend:     "gemini",
		Timeout:     120 * time.Second,
		InputDir:    ".",
		Concurrency: 4,
		LogLevel:    "info",
	}
}

// Load reads path (if non-empty) over the defaults and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("IMG2MD_BACKEND", &cfg.Backend)
	setString("IMG2MD_API_KEY", &cfg.APIKey)
	setString("IMG2MD_MODEL", &cfg.Model)
	setString("IMG2MD_BASE_URL", &cfg.BaseURL)
	setString("IMG2MD_INPUT_DIR", &cfg.InputDir)
	setString("IMG2MD_OUTPUT_DIR", &cfg.OutputDir)
	setString("IMG2MD_OUTPUT_SUFFIX", &cfg.OutputSuffix)
	setString("IMG2MD_REASONING_EFFORT", &cfg.ReasoningEffort)
	setString("IMG2MD_PROMPT_PATH", &cfg.PromptPath)
	setString("IMG2MD_LOG_LEVEL", &cfg.LogLevel)
	setString("IMG2MD_METRICS_FILE", &cfg.MetricsFile)
	setString("IMG2MD_REPORT_DIR", &cfg.ReportDir)
	setString("IMG2MD_REPORT_FORMAT", &cfg.ReportFormat)
	setString("IMG2MD_SENDGRID_API_KEY", &cfg.Notify.SendGridAPIKey)

	if v := os.Getenv("IMG2MD_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: IMG2MD_CONCURRENCY=%q: %v", ErrInvalid, v, err)
		}
		cfg.Concurrency = n
	}
	if v := os.Getenv("IMG2MD_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: IMG2MD_TIMEOUT=%q: %v", ErrInvalid, v, err)
		}
		cfg.Timeout = d
	}
	if v := os.Getenv("IMG2MD_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: IMG2MD_TEMPERATURE=%q: %v", ErrInvalid, v, err)
		}
		cfg.Temperature = &f
	}
	if v := os.Getenv("IMG2MD_MAX_OUTPUT_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: IMG2MD_MAX_OUTPUT_TOKENS=%q: %v", ErrInvalid, v, err)
		}
		cfg.MaxOutputTokens = n
	}

	cfg.ResolveAPIKey()
	return nil
}

// ResolveAPIKey falls back to the provider's conventional environment variable when no key is set.
func (c *Config) ResolveAPIKey() {
	if c.APIKey != "" {
		return
	}
	if env := KeyEnv(c.Backend); env != "" {
		c.APIKey = os.Getenv(env)
	}
}

// KeyEnv names the provider's conventional API key variable, or "" when it has none.
func KeyEnv(backend string) string {
	return providerKeyEnv[strings.ToLower(strings.TrimSpace(backend))]
}

// Validate checks the values no component can recover from. Provider-specific checks (known backend,
// credentials) are made when the backend is built.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Backend) == "" {
		errs = append(errs, errors.New("backend must be set"))
	}
	if strings.TrimSpace(c.InputDir) == "" {
		errs = append(errs, errors.New("input_dir must be set"))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.MaxOutputTokens < 0 {
		errs = append(errs, fmt.Errorf("max_output_tokens must not be negative, got %d", c.MaxOutputTokens))
	}
	switch c.ReportFormat {
	case "", "csv", "json":
	default:
		errs = append(errs, fmt.Errorf("report_format must be csv or json, got %q", c.ReportFormat))
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel))
	}
	if c.Notify.SendGridAPIKey != "" && c.Notify.FromAddress == "" {
		errs = append(errs, errors.New("notify.from_address is required when sendgrid is configured"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
