package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env.local")

	content := `# comment line
FOO_TEST_KEY=hello
BAR_TEST_KEY="quoted value"
BAZ_TEST_KEY='single quoted'

EMPTY_LINE_ABOVE=works
NO_VALUE_LINE
`
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	for _, k := range []string{"FOO_TEST_KEY", "BAR_TEST_KEY", "BAZ_TEST_KEY", "EMPTY_LINE_ABOVE"} {
		os.Unsetenv(k)
	}

	loadEnvFile(envFile)
	t.Cleanup(func() {
		for _, k := range []string{"FOO_TEST_KEY", "BAR_TEST_KEY", "BAZ_TEST_KEY", "EMPTY_LINE_ABOVE"} {
			os.Unsetenv(k)
		}
	})

	tests := []struct {
		key  string
		want string
	}{
		{"FOO_TEST_KEY", "hello"},
		{"BAR_TEST_KEY", "quoted value"},
		{"BAZ_TEST_KEY", "single quoted"},
		{"EMPTY_LINE_ABOVE", "works"},
	}
	for _, tt := range tests {
		if got := os.Getenv(tt.key); got != tt.want {
			t.Errorf("os.Getenv(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestLoadEnvFile_RealEnvTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env.local")

	if err := os.WriteFile(envFile, []byte("PRECEDENCE_TEST=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PRECEDENCE_TEST", "from-env")

	loadEnvFile(envFile)

	if got := os.Getenv("PRECEDENCE_TEST"); got != "from-env" {
		t.Errorf("env var = %q, want %q (real env should take precedence)", got, "from-env")
	}
}

func TestLoadEnvFile_MissingFile(t *testing.T) {
	loadEnvFile("/nonexistent/path/.env.local")
}

// clearEnv blanks every variable Load reads. Viper treats empty values as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LOG_LEVEL", "LOG_FORMAT", "PORT", "DB_PATH", "CORS_ORIGIN", "HTTP_TIMEOUT",
		"LLM_PROVIDER",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
		"ANTHROPIC_API_KEY", "ANTHROPIC_MODEL",
		"GEMINI_API_KEY", "GEMINI_MODEL",
		"OLLAMA_URL", "OLLAMA_MODEL",
		"DIGEST_TIMEOUT", "DIGEST_PROJECT_INPUT_LIMIT", "DIGEST_STAGE_INPUT_LIMIT",
		"DIGEST_STATUS_TTL", "DIGEST_STAGE_VARIANT_MATCH", "DIGEST_MAX_TEXT_LENGTH",
		"SWEEP_ENABLED", "SWEEP_AT", "SWEEP_TIMEZONE", "SWEEP_DAILY_LIMIT",
		"SWEEP_LOOKBACK", "SWEEP_DELAY", "SWEEP_BACKOFF_INITIAL", "SWEEP_BACKOFF_MAX",
		"SWEEP_BACKOFF_MULTIPLIER",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "moa.db", cfg.DBPath)
	assert.Equal(t, "*", cfg.CORSOrigin)
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "https://api.openai.com/v1", cfg.OpenAI.BaseURL)

	assert.Equal(t, 15*time.Second, cfg.Digest.Timeout)
	assert.Equal(t, 50, cfg.Digest.ProjectInputLimit)
	assert.Equal(t, 20, cfg.Digest.StageInputLimit)
	assert.Equal(t, 10*time.Minute, cfg.Digest.StatusTTL)
	assert.True(t, cfg.Digest.StageVariantMatch)
	assert.Equal(t, 1500, cfg.Digest.MaxTextLength)

	assert.True(t, cfg.Sweep.Enabled)
	assert.Equal(t, "04:00", cfg.Sweep.At)
	assert.Equal(t, "Asia/Seoul", cfg.Sweep.Timezone)
	assert.Equal(t, 200, cfg.Sweep.DailyLimit)
	assert.Equal(t, 168*time.Hour, cfg.Sweep.Lookback)
	assert.Equal(t, 200*time.Millisecond, cfg.Sweep.Delay)
	assert.Equal(t, time.Second, cfg.Sweep.BackoffInitial)
	assert.Equal(t, 15*time.Second, cfg.Sweep.BackoffMax)
	assert.InDelta(t, 1.8, cfg.Sweep.BackoffMultiplier, 1e-9)
	assert.Equal(t, time.Hour, cfg.Draft.TTL)
	assert.Equal(t, 10*time.Second, cfg.Draft.RecommendTimeout)
}

func TestLoad_EnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_BASE_URL", "https://llm-gateway.example.com/v1")
	t.Setenv("OPENAI_API_KEY", "sk-test-key")
	t.Setenv("DIGEST_TIMEOUT", "30s")
	t.Setenv("SWEEP_DAILY_LIMIT", "25")
	t.Setenv("DIGEST_STAGE_VARIANT_MATCH", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "https://llm-gateway.example.com/v1", cfg.OpenAI.BaseURL)
	assert.Equal(t, "sk-test-key", cfg.OpenAI.APIKey)
	assert.Equal(t, 30*time.Second, cfg.Digest.Timeout)
	assert.Equal(t, 25, cfg.Sweep.DailyLimit)
	assert.False(t, cfg.Digest.StageVariantMatch)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "moa.toml")
	content := `port = "9090"

[llm]
provider = "ollama"

[digest]
timeout = "20s"
stage_input_limit = 5

[sweep]
at = "03:30"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 20*time.Second, cfg.Digest.Timeout)
	assert.Equal(t, 5, cfg.Digest.StageInputLimit)
	assert.Equal(t, 50, cfg.Digest.ProjectInputLimit)
	assert.Equal(t, "03:30", cfg.Sweep.At)

	t.Setenv("PORT", "7070")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port, "environment should beat the file")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"LLM_PROVIDER", "mystery"},
		{"SWEEP_AT", "4am"},
		{"SWEEP_DAILY_LIMIT", "0"},
		{"SWEEP_BACKOFF_MULTIPLIER", "0.5"},
		{"DIGEST_TIMEOUT", "-1s"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestUseStubs(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"stub provider", Config{LLM: LLMConfig{Provider: "stub"}}, true},
		{"gemini without key", Config{LLM: LLMConfig{Provider: "gemini"}}, true},
		{"gemini with key", Config{LLM: LLMConfig{Provider: "gemini"}, Gemini: GeminiConfig{APIKey: "k"}}, false},
		{"claude without key", Config{LLM: LLMConfig{Provider: "claude"}}, true},
		{"claude with key", Config{LLM: LLMConfig{Provider: "claude"}, Anthropic: AnthropicConfig{APIKey: "k"}}, false},
		{"openai with key", Config{LLM: LLMConfig{Provider: "openai"}, OpenAI: OpenAIConfig{APIKey: "k"}}, false},
		{"ollama", Config{LLM: LLMConfig{Provider: "ollama"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.UseStubs())
		})
	}
}

func TestTOML_MasksSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "AIza-secret-1234")

	cfg, err := Load("")
	require.NoError(t, err)
	out, err := cfg.TOML()
	require.NoError(t, err)

	assert.NotContains(t, out, "AIza-secret")
	assert.Contains(t, out, "****1234")
	assert.Contains(t, out, "15s")
	assert.Contains(t, out, "[sweep]")
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Config{Log: LogConfig{Level: "warn", Format: "json"}}.Logger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"), "json handler expected, got %q", out)

	_, err = Config{Log: LogConfig{Level: "loud"}}.Logger(&buf)
	assert.Error(t, err)
	_, err = Config{Log: LogConfig{Level: "info", Format: "xml"}}.Logger(&buf)
	assert.Error(t, err)
}

func TestLocation(t *testing.T) {
	loc, err := Config{Sweep: SweepConfig{Timezone: "Asia/Seoul"}}.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", loc.String())

	_, err = Config{Sweep: SweepConfig{Timezone: "Mars/Olympus"}}.Location()
	assert.Error(t, err)
}
