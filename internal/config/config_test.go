package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv points GOALSIFT_DIR at a temp dir and blanks every override
// so tests see only what they set themselves.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GOALSIFT_DIR", dir)
	for _, key := range []string{
		"GOALSIFT_LLM_BASE_URL", "GOALSIFT_LLM_API_KEY", "GOALSIFT_LLM_MODEL",
		"GOALSIFT_LLM_PROVIDER", "GOALSIFT_REQUEST_TIMEOUT_SECONDS",
		"GOALSIFT_CONFIDENCE_THRESHOLD", "GOALSIFT_BATCH_SIZE",
		"GOALSIFT_MAX_CONCURRENT_BATCHES", "GOALSIFT_INTERIM_SAVE_EVERY",
		"GOALSIFT_OUTPUT_PATH", "GOALSIFT_LOG_LEVEL", "GOALSIFT_LOG_FILE",
		"ANTHROPIC_API_KEY",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := isolateEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultLLMBaseURL, cfg.LLMBaseURL)
	assert.Equal(t, DefaultModel, cfg.LLMModel)
	assert.Equal(t, DefaultProvider, cfg.LLMProvider)
	assert.Equal(t, DefaultConfidenceThreshold, cfg.ConfidenceThreshold)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, DefaultMaxConcurrentBatches, cfg.MaxConcurrentBatches)
	assert.Equal(t, DefaultInterimSaveEvery, cfg.InterimSaveEvery)
	assert.Equal(t, DefaultOutputPath, cfg.OutputPath)
	assert.Equal(t, dir, cfg.GoalsiftDir)

	// Loading must also create the working directories.
	info, err := os.Stat(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := isolateEnv(t)

	fileContent := `
[llm]
base_url = "https://api.example.com/v1/"
model = "my-model"

[filter]
confidence_threshold = 0.85
batch_size = 20

[output]
path = "custom/out.json"

[logging]
level = "debug"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(fileContent), 0644))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	// Trailing slash is normalized away.
	assert.Equal(t, "https://api.example.com/v1", cfg.LLMBaseURL)
	assert.Equal(t, "my-model", cfg.LLMModel)
	assert.Equal(t, 0.85, cfg.ConfidenceThreshold)
	assert.Equal(t, 20, cfg.BatchSize)
	assert.Equal(t, "custom/out.json", cfg.OutputPath)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Keys the file omits keep their defaults.
	assert.Equal(t, DefaultMaxConcurrentBatches, cfg.MaxConcurrentBatches)
}

func TestLoadConfigEnvWinsOverFile(t *testing.T) {
	dir := isolateEnv(t)

	fileContent := `
[llm]
model = "from-file"

[filter]
batch_size = 20
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(fileContent), 0644))

	t.Setenv("GOALSIFT_LLM_MODEL", "from-env")
	t.Setenv("GOALSIFT_BATCH_SIZE", "7")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.LLMModel)
	assert.Equal(t, 7, cfg.BatchSize)
}

func TestLoadConfigAnthropicKeyFallback(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test", cfg.LLMAPIKey)

	// Dedicated key wins over the fallback.
	t.Setenv("GOALSIFT_LLM_API_KEY", "sk-goalsift")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sk-goalsift", cfg.LLMAPIKey)
}

func TestLoadConfigBadTOML(t *testing.T) {
	dir := isolateEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("not [valid toml"), 0644))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	isolateEnv(t)

	base, err := LoadConfig()
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base URL for http provider", func(c *Config) { c.LLMBaseURL = "" }},
		{"empty model", func(c *Config) { c.LLMModel = "" }},
		{"threshold above one", func(c *Config) { c.ConfidenceThreshold = 1.5 }},
		{"negative threshold", func(c *Config) { c.ConfidenceThreshold = -0.1 }},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"zero concurrency", func(c *Config) { c.MaxConcurrentBatches = 0 }},
		{"zero interim interval", func(c *Config) { c.InterimSaveEvery = 0 }},
		{"zero timeout", func(c *Config) { c.RequestTimeoutSeconds = 0 }},
		{"empty output path", func(c *Config) { c.OutputPath = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := *base
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateCLIProviderNeedsNoBaseURL(t *testing.T) {
	isolateEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	cfg.LLMProvider = "claude"
	cfg.LLMBaseURL = ""
	assert.NoError(t, cfg.Validate())
}
