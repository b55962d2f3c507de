// Package config provides centralized configuration for the moa server.
// Values come from defaults, an optional config file and the environment, in
// increasing order of precedence.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string `mapstructure:"port"`

	// DBPath is the path to the SQLite database file.
	DBPath string `mapstructure:"db_path"`

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string `mapstructure:"cors_origin"`

	// HTTPTimeout is the timeout for outgoing LLM requests.
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`

	Log       LogConfig       `mapstructure:"log"`
	LLM       LLMConfig       `mapstructure:"llm"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Ollama    OllamaConfig    `mapstructure:"ollama"`
	Digest    DigestConfig    `mapstructure:"digest"`
	Sweep     SweepConfig     `mapstructure:"sweep"`
	Draft     DraftConfig     `mapstructure:"draft"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LLMConfig selects the model backend: "openai", "claude", "gemini", "ollama" or "stub".
type LLMConfig struct {
	Provider string `mapstructure:"provider"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OllamaConfig struct {
	URL   string `mapstructure:"url"`
	Model string `mapstructure:"model"`
}

// DigestConfig tunes the refresh coordinator.
type DigestConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	ProjectInputLimit int           `mapstructure:"project_input_limit"`
	StageInputLimit   int           `mapstructure:"stage_input_limit"`
	StatusTTL         time.Duration `mapstructure:"status_ttl"`
	StageVariantMatch bool          `mapstructure:"stage_variant_match"`
	MaxTextLength     int           `mapstructure:"max_text_length"`
}

// SweepConfig tunes the daily bulk refresh.
type SweepConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	At                string        `mapstructure:"at"`
	Timezone          string        `mapstructure:"timezone"`
	DailyLimit        int           `mapstructure:"daily_limit"`
	Lookback          time.Duration `mapstructure:"lookback"`
	Delay             time.Duration `mapstructure:"delay"`
	BackoffInitial    time.Duration `mapstructure:"backoff_initial"`
	BackoffMax        time.Duration `mapstructure:"backoff_max"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
}

// DraftConfig tunes the capture workflow.
type DraftConfig struct {
	TTL              time.Duration `mapstructure:"ttl"`
	RecommendTimeout time.Duration `mapstructure:"recommend_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db_path", "moa.db")
	v.SetDefault("cors_origin", "*")
	v.SetDefault("http_timeout", 60*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("ollama.url", "http://localhost:11434")
	v.SetDefault("ollama.model", "llama3")
	v.SetDefault("digest.timeout", 15*time.Second)
	v.SetDefault("digest.project_input_limit", 50)
	v.SetDefault("digest.stage_input_limit", 20)
	v.SetDefault("digest.status_ttl", 10*time.Minute)
	v.SetDefault("digest.stage_variant_match", true)
	v.SetDefault("digest.max_text_length", 1500)
	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.at", "04:00")
	v.SetDefault("sweep.timezone", "Asia/Seoul")
	v.SetDefault("sweep.daily_limit", 200)
	v.SetDefault("sweep.lookback", 7*24*time.Hour)
	v.SetDefault("sweep.delay", 200*time.Millisecond)
	v.SetDefault("sweep.backoff_initial", time.Second)
	v.SetDefault("sweep.backoff_max", 15*time.Second)
	v.SetDefault("sweep.backoff_multiplier", 1.8)
	v.SetDefault("draft.ttl", time.Hour)
	v.SetDefault("draft.recommend_timeout", 10*time.Second)
}

// Load builds the configuration. An explicit path must exist; without one,
// moa.toml or moa.yaml in the working directory is used when present.
// Variables from .env.local are exported first, never overriding the real
// environment.
func Load(path string) (Config, error) {
	loadEnvFile(".env.local")

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("moa")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "claude", "gemini", "ollama", "stub":
	default:
		return fmt.Errorf("llm.provider %q is not one of openai, claude, gemini, ollama, stub", c.LLM.Provider)
	}
	if c.Digest.Timeout <= 0 {
		return errors.New("digest.timeout must be positive")
	}
	if c.Digest.ProjectInputLimit <= 0 || c.Digest.StageInputLimit <= 0 {
		return errors.New("digest input limits must be positive")
	}
	if c.Sweep.DailyLimit <= 0 {
		return errors.New("sweep.daily_limit must be positive")
	}
	if c.Sweep.BackoffMultiplier < 1 {
		return errors.New("sweep.backoff_multiplier must be at least 1")
	}
	if _, err := time.Parse("15:04", c.Sweep.At); err != nil {
		return fmt.Errorf("sweep.at %q must be HH:MM", c.Sweep.At)
	}
	return nil
}

// UseStubs returns true when no LLM API key is configured for the selected provider.
func (c Config) UseStubs() bool {
	switch c.LLM.Provider {
	case "stub":
		return true
	case "claude":
		return c.Anthropic.APIKey == ""
	case "gemini":
		return c.Gemini.APIKey == ""
	case "ollama":
		return false // Ollama runs locally, no key needed
	default:
		return c.OpenAI.APIKey == ""
	}
}

// Location resolves the sweep time zone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Sweep.Timezone)
	if err != nil {
		return nil, fmt.Errorf("sweep.timezone: %w", err)
	}
	return loc, nil
}

// Logger builds the process logger from the log section.
func (c Config) Logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(c.Log.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log.format %q is not text or json", c.Log.Format)
	}
}

// TOML renders the effective configuration with secrets masked.
func (c Config) TOML() (string, error) {
	doc := map[string]any{
		"port":         c.Port,
		"db_path":      c.DBPath,
		"cors_origin":  c.CORSOrigin,
		"http_timeout": c.HTTPTimeout.String(),
		"log": map[string]any{
			"level":  c.Log.Level,
			"format": c.Log.Format,
		},
		"llm": map[string]any{"provider": c.LLM.Provider},
		"openai": map[string]any{
			"api_key":  mask(c.OpenAI.APIKey),
			"base_url": c.OpenAI.BaseURL,
			"model":    c.OpenAI.Model,
		},
		"anthropic": map[string]any{
			"api_key": mask(c.Anthropic.APIKey),
			"model":   c.Anthropic.Model,
		},
		"gemini": map[string]any{
			"api_key": mask(c.Gemini.APIKey),
			"model":   c.Gemini.Model,
		},
		"ollama": map[string]any{
			"url":   c.Ollama.URL,
			"model": c.Ollama.Model,
		},
		"digest": map[string]any{
			"timeout":             c.Digest.Timeout.String(),
			"project_input_limit": c.Digest.ProjectInputLimit,
			"stage_input_limit":   c.Digest.StageInputLimit,
			"status_ttl":          c.Digest.StatusTTL.String(),
			"stage_variant_match": c.Digest.StageVariantMatch,
			"max_text_length":     c.Digest.MaxTextLength,
		},
		"sweep": map[string]any{
			"enabled":            c.Sweep.Enabled,
			"at":                 c.Sweep.At,
			"timezone":           c.Sweep.Timezone,
			"daily_limit":        c.Sweep.DailyLimit,
			"lookback":           c.Sweep.Lookback.String(),
			"delay":              c.Sweep.Delay.String(),
			"backoff_initial":    c.Sweep.BackoffInitial.String(),
			"backoff_max":        c.Sweep.BackoffMax.String(),
			"backoff_multiplier": c.Sweep.BackoffMultiplier,
		},
		"draft": map[string]any{
			"ttl":               c.Draft.TTL.String(),
			"recommend_timeout": c.Draft.RecommendTimeout.String(),
		},
	}
	b, err := toml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("render config: %w", err)
	}
	return string(b), nil
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

// loadEnvFile exports KEY=VALUE lines from path. Variables already present in
// the environment win. A missing file is ignored.
func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if _, set := os.LookupEnv(k); !set {
			os.Setenv(k, val)
		}
	}
}
