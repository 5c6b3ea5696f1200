package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultLLMBaseURL            = "http://localhost:11434/v1"
	DefaultModel                 = "claude-3-7-sonnet"
	DefaultProvider              = "http"
	DefaultConfidenceThreshold   = 0.7
	DefaultBatchSize             = 10
	DefaultMaxConcurrentBatches  = 3
	DefaultInterimSaveEvery      = 5
	DefaultRetryBackoffSeconds   = 2
	DefaultSecondBackoffSeconds  = 1
	DefaultRequestTimeoutSeconds = 120
	DefaultOutputPath            = "output/filtered_items.json"
)

// Config holds the application configuration. It is constructed once at
// startup and passed down; nothing reads configuration sources ad hoc.
type Config struct {
	LLMBaseURL            string
	LLMAPIKey             string
	LLMModel              string
	LLMProvider           string
	RequestTimeoutSeconds int

	ConfidenceThreshold  float64
	BatchSize            int
	MaxConcurrentBatches int
	InterimSaveEvery     int
	RetryBackoffSeconds  int
	SecondBackoffSeconds int

	OutputPath string

	LogLevel string
	LogFile  string

	GoalsiftDir string
	DBPath      string
	ConfigPath  string
}

type fileConfig struct {
	LLM struct {
		BaseURL               string `toml:"base_url"`
		APIKey                string `toml:"api_key"`
		Model                 string `toml:"model"`
		Provider              string `toml:"provider"`
		RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	} `toml:"llm"`
	Filter struct {
		ConfidenceThreshold       float64 `toml:"confidence_threshold"`
		BatchSize                 int     `toml:"batch_size"`
		MaxConcurrentBatches      int     `toml:"max_concurrent_batches"`
		InterimSaveEvery          int     `toml:"interim_save_every"`
		RetryBackoffSeconds       int     `toml:"retry_backoff_seconds"`
		RetryBackoffSecondSeconds int     `toml:"retry_backoff_second_seconds"`
	} `toml:"filter"`
	Output struct {
		Path string `toml:"path"`
	} `toml:"output"`
	Logging struct {
		Level string `toml:"level"`
		File  string `toml:"file"`
	} `toml:"logging"`
}

// LoadConfig loads configuration from defaults, the config file, and
// environment variables, in that order of precedence (later wins).
func LoadConfig() (*Config, error) {
	// A local .env may carry the API key so it never has to live in the
	// shell profile. Missing .env is fine.
	_ = godotenv.Load()

	dir, err := goalsiftDir()
	if err != nil {
		return nil, err
	}
	configPath := filepath.Join(dir, "config.toml")

	if err := ensureDirs(dir); err != nil {
		return nil, err
	}

	cfg := &Config{
		LLMBaseURL:            DefaultLLMBaseURL,
		LLMModel:              DefaultModel,
		LLMProvider:           DefaultProvider,
		RequestTimeoutSeconds: DefaultRequestTimeoutSeconds,
		ConfidenceThreshold:   DefaultConfidenceThreshold,
		BatchSize:             DefaultBatchSize,
		MaxConcurrentBatches:  DefaultMaxConcurrentBatches,
		InterimSaveEvery:      DefaultInterimSaveEvery,
		RetryBackoffSeconds:   DefaultRetryBackoffSeconds,
		SecondBackoffSeconds:  DefaultSecondBackoffSeconds,
		OutputPath:            DefaultOutputPath,
		LogLevel:              "info",
		LogFile:               filepath.Join(dir, "logs", "goalsift.log"),
		GoalsiftDir:           dir,
		DBPath:                filepath.Join(dir, "history.sqlite3"),
		ConfigPath:            configPath,
	}

	if _, err := os.Stat(configPath); err == nil {
		fileData, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		var parsed fileConfig
		if err := toml.Unmarshal(fileData, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
		}
		applyFileConfig(cfg, &parsed)
	}

	applyEnvOverrides(cfg)

	cfg.LLMBaseURL = normalizeBaseURL(cfg.LLMBaseURL)

	return cfg, nil
}

func applyFileConfig(cfg *Config, parsed *fileConfig) {
	if parsed.LLM.BaseURL != "" {
		cfg.LLMBaseURL = parsed.LLM.BaseURL
	}
	if parsed.LLM.APIKey != "" {
		cfg.LLMAPIKey = parsed.LLM.APIKey
	}
	if parsed.LLM.Model != "" {
		cfg.LLMModel = parsed.LLM.Model
	}
	if parsed.LLM.Provider != "" {
		cfg.LLMProvider = parsed.LLM.Provider
	}
	if parsed.LLM.RequestTimeoutSeconds > 0 {
		cfg.RequestTimeoutSeconds = parsed.LLM.RequestTimeoutSeconds
	}
	if parsed.Filter.ConfidenceThreshold > 0 {
		cfg.ConfidenceThreshold = parsed.Filter.ConfidenceThreshold
	}
	if parsed.Filter.BatchSize > 0 {
		cfg.BatchSize = parsed.Filter.BatchSize
	}
	if parsed.Filter.MaxConcurrentBatches > 0 {
		cfg.MaxConcurrentBatches = parsed.Filter.MaxConcurrentBatches
	}
	if parsed.Filter.InterimSaveEvery > 0 {
		cfg.InterimSaveEvery = parsed.Filter.InterimSaveEvery
	}
	if parsed.Filter.RetryBackoffSeconds > 0 {
		cfg.RetryBackoffSeconds = parsed.Filter.RetryBackoffSeconds
	}
	if parsed.Filter.RetryBackoffSecondSeconds > 0 {
		cfg.SecondBackoffSeconds = parsed.Filter.RetryBackoffSecondSeconds
	}
	if parsed.Output.Path != "" {
		cfg.OutputPath = parsed.Output.Path
	}
	if parsed.Logging.Level != "" {
		cfg.LogLevel = parsed.Logging.Level
	}
	if parsed.Logging.File != "" {
		cfg.LogFile = parsed.Logging.File
	}
}

func applyEnvOverrides(cfg *Config) {
	if baseURL := os.Getenv("GOALSIFT_LLM_BASE_URL"); baseURL != "" {
		cfg.LLMBaseURL = baseURL
	}
	if apiKey := os.Getenv("GOALSIFT_LLM_API_KEY"); apiKey != "" {
		cfg.LLMAPIKey = apiKey
	}
	// The original tool read the Anthropic key directly; honor it as a
	// fallback so existing setups keep working.
	if cfg.LLMAPIKey == "" {
		cfg.LLMAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if model := os.Getenv("GOALSIFT_LLM_MODEL"); model != "" {
		cfg.LLMModel = model
	}
	if provider := os.Getenv("GOALSIFT_LLM_PROVIDER"); provider != "" {
		cfg.LLMProvider = provider
	}
	if timeout := os.Getenv("GOALSIFT_REQUEST_TIMEOUT_SECONDS"); timeout != "" {
		if v, err := strconv.Atoi(timeout); err == nil {
			cfg.RequestTimeoutSeconds = v
		}
	}
	if threshold := os.Getenv("GOALSIFT_CONFIDENCE_THRESHOLD"); threshold != "" {
		if v, err := strconv.ParseFloat(threshold, 64); err == nil {
			cfg.ConfidenceThreshold = v
		}
	}
	if batchSize := os.Getenv("GOALSIFT_BATCH_SIZE"); batchSize != "" {
		if v, err := strconv.Atoi(batchSize); err == nil {
			cfg.BatchSize = v
		}
	}
	if maxBatches := os.Getenv("GOALSIFT_MAX_CONCURRENT_BATCHES"); maxBatches != "" {
		if v, err := strconv.Atoi(maxBatches); err == nil {
			cfg.MaxConcurrentBatches = v
		}
	}
	if every := os.Getenv("GOALSIFT_INTERIM_SAVE_EVERY"); every != "" {
		if v, err := strconv.Atoi(every); err == nil {
			cfg.InterimSaveEvery = v
		}
	}
	if outputPath := os.Getenv("GOALSIFT_OUTPUT_PATH"); outputPath != "" {
		cfg.OutputPath = outputPath
	}
	if level := os.Getenv("GOALSIFT_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if logFile := os.Getenv("GOALSIFT_LOG_FILE"); logFile != "" {
		cfg.LogFile = logFile
	}
}

func goalsiftDir() (string, error) {
	if dir := os.Getenv("GOALSIFT_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".goalsift"), nil
}

func ensureDirs(dir string) error {
	for _, d := range []string{dir, filepath.Join(dir, "logs")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}
	return nil
}

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return baseURL
	}
	return strings.TrimRight(baseURL, "/")
}

// Validate verifies the configuration is usable.
func (c *Config) Validate() error {
	if c.LLMProvider == "http" && strings.TrimSpace(c.LLMBaseURL) == "" {
		return fmt.Errorf("LLM base URL is empty")
	}
	if strings.TrimSpace(c.LLMModel) == "" {
		return fmt.Errorf("LLM model is empty")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be between 0 and 1")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.MaxConcurrentBatches <= 0 {
		return fmt.Errorf("max concurrent batches must be positive")
	}
	if c.InterimSaveEvery <= 0 {
		return fmt.Errorf("interim save interval must be positive")
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if strings.TrimSpace(c.OutputPath) == "" {
		return fmt.Errorf("output path is empty")
	}
	return nil
}
