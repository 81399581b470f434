package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"`
	Env         EnvConfig       `toml:"env"`
	Storage     StorageConfig   `toml:"storage"`
	Calendar    CalendarConfig  `toml:"calendar"`
	Prompt      PromptConfig    `toml:"prompt"`
	Assembler   AssemblerConfig `toml:"assembler"`
	Fetcher     FetcherConfig   `toml:"fetcher"`
	Results     ResultsConfig   `toml:"results"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Email       EmailConfig     `toml:"email"`
	Schedule    ScheduleConfig  `toml:"schedule"`
	Logging     LoggingConfig   `toml:"logging"`
}

// EnvConfig lists dotenv files loaded before environment overrides are applied
type EnvConfig struct {
	Files []string `toml:"files"`
}

// StorageConfig controls where fetched documents and run history live
type StorageConfig struct {
	Root         string       `toml:"root" validate:"required"` // storage_root/ticker/year_quarter/filename
	FallbackRoot string       `toml:"fallback_root"`            // Used when Root is not writable (default: <cwd>/downloads)
	Badger       BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration for run history
type BadgerConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path" validate:"required_if=Enabled true"`
}

// CalendarConfig locates the release calendar (.json, .yaml or .yml)
type CalendarConfig struct {
	Path string `toml:"path" validate:"required"`
}

// PromptConfig locates the instruction templates
type PromptConfig struct {
	Path            string `toml:"path"`                                            // Single-company template; built-in default when missing
	ComparativePath string `toml:"comparative_path"`                                // Dedicated comparative template
	ComparativeMode string `toml:"comparative_mode" validate:"oneof=augment dedicated"` // "augment" the single template or use a "dedicated" one
}

// AssemblerConfig holds the size-escalation thresholds
type AssemblerConfig struct {
	BinaryThresholdBytes     int64 `toml:"binary_threshold_bytes" validate:"gt=0"`
	TextBudgetChars          int   `toml:"text_budget_chars" validate:"gt=0"`
	ShortenedTextBudgetChars int   `toml:"shortened_text_budget_chars" validate:"gt=0,ltefield=TextBudgetChars"`
	FlattenHTML              bool  `toml:"flatten_html"` // Convert large HTML documents to markdown instead of raw text
}

// FetcherConfig controls document downloads
type FetcherConfig struct {
	UserAgent      string        `toml:"user_agent" validate:"required"`
	RequestTimeout time.Duration `toml:"request_timeout" validate:"gt=0"`
	HeadTimeout    time.Duration `toml:"head_timeout" validate:"gt=0"`
	RateLimit      float64       `toml:"rate_limit" validate:"gte=0"` // Requests per second, 0 disables throttling
	MaxBodyBytes   int64         `toml:"max_body_bytes" validate:"gt=0"`
}

// ResultsConfig controls report output
type ResultsConfig struct {
	Dir         string `toml:"dir" validate:"required"`
	FallbackDir string `toml:"fallback_dir"` // default: <cwd>/results
	ExportPDF   bool   `toml:"export_pdf"`
	TitlePrefix string `toml:"title_prefix"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model" validate:"required"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
	BaseURL     string  `toml:"base_url"` // Override the API endpoint, e.g. for a proxy
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model" validate:"required"`
	MaxTokens   int     `toml:"max_tokens" validate:"gt=0"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
	BaseURL     string  `toml:"base_url"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the provider used for analysis
type LLMConfig struct {
	Provider   LLMProvider `toml:"provider" validate:"oneof=gemini claude"`
	MaxRetries int         `toml:"max_retries" validate:"gte=0"` // Rate-limit retries per call

	// Wait before the first rate-limit retry when the provider suggests no delay
	RateLimitWait    time.Duration `toml:"rate_limit_wait" validate:"gt=0"`
	RateLimitMaxWait time.Duration `toml:"rate_limit_max_wait" validate:"gtefield=RateLimitWait"`
}

// EmailConfig points at the JSON email delivery settings
type EmailConfig struct {
	ConfigPath string `toml:"config_path"`
	Skip       bool   `toml:"skip"`
}

// ScheduleConfig drives unattended batch runs
type ScheduleConfig struct {
	Enabled bool     `toml:"enabled"`
	Cron    string   `toml:"cron" validate:"omitempty,cronexpr"`
	Tickers []string `toml:"tickers"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
	Dir    string   `toml:"dir"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Env: EnvConfig{
			Files: []string{".env"},
		},
		Storage: StorageConfig{
			Root: "downloads",
			Badger: BadgerConfig{
				Enabled: true,
				Path:    "./data/history",
			},
		},
		Calendar: CalendarConfig{
			Path: "config/company_config.json",
		},
		Prompt: PromptConfig{
			Path:            "config/prompt_config.txt",
			ComparativeMode: "augment",
		},
		Assembler: AssemblerConfig{
			BinaryThresholdBytes:     1024 * 1024,
			TextBudgetChars:          500000,
			ShortenedTextBudgetChars: 50000,
			FlattenHTML:              true,
		},
		Fetcher: FetcherConfig{
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RequestTimeout: 30 * time.Second,
			HeadTimeout:    10 * time.Second,
			RateLimit:      2,
			MaxBodyBytes:   100 * 1024 * 1024,
		},
		Results: ResultsConfig{
			Dir:         "results",
			TitlePrefix: "GCP Impact Analysis",
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-pro",
			Timeout:     "10m",
			Temperature: 0.2,
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-5",
			MaxTokens:   16384,
			Timeout:     "10m",
			Temperature: 0.2,
		},
		LLM: LLMConfig{
			Provider:         LLMProviderGemini,
			MaxRetries:       3,
			RateLimitWait:    45 * time.Second,
			RateLimitMaxWait: 90 * time.Second,
		},
		Email: EmailConfig{
			ConfigPath: "config/email_config.json",
		},
		Schedule: ScheduleConfig{
			Cron: "0 0 7 * * *",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
			Dir:    "logs",
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> .env -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	LoadEnvFiles(config.Env.Files...)
	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
// EARNINGS_* names take priority over the legacy names.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("EARNINGS_ENV"); env != "" {
		config.Environment = env
	}

	// Storage
	if root := firstEnv("EARNINGS_STORAGE_ROOT", "LOCAL_STORAGE_PATH"); root != "" {
		config.Storage.Root = root
	}
	if path := os.Getenv("EARNINGS_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if enabled := os.Getenv("EARNINGS_BADGER_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Storage.Badger.Enabled = b
		}
	}

	// Inputs
	if path := firstEnv("EARNINGS_CALENDAR_PATH", "COMPANY_CONFIG_PATH"); path != "" {
		config.Calendar.Path = path
	}
	if path := firstEnv("EARNINGS_PROMPT_PATH", "PROMPT_CONFIG_PATH"); path != "" {
		config.Prompt.Path = path
	}
	if path := os.Getenv("EARNINGS_PROMPT_COMPARATIVE_PATH"); path != "" {
		config.Prompt.ComparativePath = path
	}
	if mode := os.Getenv("EARNINGS_PROMPT_COMPARATIVE_MODE"); mode != "" {
		config.Prompt.ComparativeMode = mode
	}

	// Assembler thresholds
	if v := os.Getenv("EARNINGS_BINARY_THRESHOLD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Assembler.BinaryThresholdBytes = n
		}
	}
	if v := os.Getenv("EARNINGS_TEXT_BUDGET_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Assembler.TextBudgetChars = n
		}
	}
	if v := os.Getenv("EARNINGS_SHORTENED_TEXT_BUDGET_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Assembler.ShortenedTextBudgetChars = n
		}
	}

	// Fetcher
	if ua := os.Getenv("EARNINGS_FETCHER_USER_AGENT"); ua != "" {
		config.Fetcher.UserAgent = ua
	}
	if v := os.Getenv("EARNINGS_FETCHER_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Fetcher.RequestTimeout = d
		}
	}
	if v := os.Getenv("EARNINGS_FETCHER_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Fetcher.RateLimit = f
		}
	}

	// Results
	if dir := firstEnv("EARNINGS_RESULTS_DIR", "RESULTS_DIR"); dir != "" {
		config.Results.Dir = dir
	}
	if v := os.Getenv("EARNINGS_RESULTS_EXPORT_PDF"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Results.ExportPDF = b
		}
	}

	// Gemini
	if model := os.Getenv("EARNINGS_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if timeout := os.Getenv("EARNINGS_GEMINI_TIMEOUT"); timeout != "" {
		config.Gemini.Timeout = timeout
	}

	// Claude
	if model := os.Getenv("EARNINGS_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if timeout := os.Getenv("EARNINGS_CLAUDE_TIMEOUT"); timeout != "" {
		config.Claude.Timeout = timeout
	}

	if provider := os.Getenv("EARNINGS_LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = LLMProvider(strings.ToLower(provider))
	}

	// Email
	if path := firstEnv("EARNINGS_EMAIL_CONFIG_PATH", "EMAIL_CONFIG_PATH"); path != "" {
		config.Email.ConfigPath = path
	}

	// Schedule
	if expr := os.Getenv("EARNINGS_SCHEDULE_CRON"); expr != "" {
		config.Schedule.Cron = expr
	}
	if tickers := os.Getenv("EARNINGS_SCHEDULE_TICKERS"); tickers != "" {
		config.Schedule.Tickers = SplitList(tickers)
	}

	// Logging
	if level := os.Getenv("EARNINGS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("EARNINGS_LOG_OUTPUT"); output != "" {
		if outputs := SplitList(output); len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority).
// Empty values leave the loaded configuration untouched.
func ApplyFlagOverrides(config *Config, outputDir, calendarPath string, skipEmail, exportPDF bool) {
	if outputDir != "" {
		config.Results.Dir = outputDir
	}
	if calendarPath != "" {
		config.Calendar.Path = calendarPath
	}
	if skipEmail {
		config.Email.Skip = true
	}
	if exportPDF {
		config.Results.ExportPDF = true
	}
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.RegisterValidation("cronexpr", validateCronExpr); err != nil {
		return fmt.Errorf("failed to register cron validator: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Schedule.Enabled && c.Schedule.Cron == "" {
		return fmt.Errorf("invalid configuration: schedule.cron is required when schedule is enabled")
	}
	return nil
}

// CronParser accepts the six-field (seconds first) expressions used in [schedule]
var CronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func validateCronExpr(fl validator.FieldLevel) bool {
	_, err := CronParser.Parse(fl.Field().String())
	return err == nil
}

// ParseDuration parses a duration string, returning fallback when empty or invalid
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// SplitList splits a comma separated list, trimming blanks
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
