package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	GenAI     GenAIConfig     `yaml:"genai"`
	Audio     AudioConfig     `yaml:"audio"`
	Store     StoreConfig     `yaml:"store"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port         int    `yaml:"port"`
	Address      string `yaml:"address"`
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds
	WriteTimeout int    `yaml:"write_timeout"` // seconds, must cover a full speech generation
}

// GenAIConfig contains generative model API configuration
type GenAIConfig struct {
	APIKey        string  `yaml:"api_key"`
	BaseURL       string  `yaml:"base_url"` // optional endpoint override
	TextModel     string  `yaml:"text_model"`
	SpeechModel   string  `yaml:"speech_model"`
	Voice         string  `yaml:"voice"`
	Temperature   float32 `yaml:"temperature"`
	Timeout       int     `yaml:"timeout"` // seconds
	MaxRetries    int     `yaml:"max_retries"`
	MaxConcurrent int     `yaml:"max_concurrent"`
}

// AudioConfig describes the PCM layout produced by the speech model
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
	BitDepth   int `yaml:"bit_depth"`
}

// StoreConfig selects and configures the document backend
type StoreConfig struct {
	Backend    string         `yaml:"backend"` // "sqlite" or "supabase"
	SQLitePath string         `yaml:"sqlite_path"`
	Supabase   SupabaseConfig `yaml:"supabase"`
}

// SupabaseConfig contains managed backend connection settings
type SupabaseConfig struct {
	URL        string `yaml:"url"`
	ServiceKey string `yaml:"service_key"`
	AnonKey    string `yaml:"anon_key"`
	Table      string `yaml:"table"`
	Timeout    int    `yaml:"timeout"` // seconds
	MaxRetries int    `yaml:"max_retries"`
}

// AuthConfig contains token verification and re-authentication settings
type AuthConfig struct {
	JWTSecret     string       `yaml:"jwt_secret"`
	Reauth        string       `yaml:"reauth"`         // "supabase" or "static"
	UnlockTTL     int          `yaml:"unlock_ttl"`     // seconds
	CleanupPeriod int          `yaml:"cleanup_period"` // seconds
	Credentials   []Credential `yaml:"credentials"`
}

// Credential is a bcrypt password hash for static re-authentication
type Credential struct {
	Email        string `yaml:"email"`
	PasswordHash string `yaml:"password_hash"`
}

// RateLimitConfig contains per-user limits for AI flow requests
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads the optional .env file, parses the configuration file,
// applies environment overrides, and validates the result
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Default returns the configuration used for any field the file leaves unset
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:         8080,
			Address:      "0.0.0.0",
			ReadTimeout:  10,
			WriteTimeout: 120,
		},
		GenAI: GenAIConfig{
			TextModel:     "gemini-2.5-flash",
			SpeechModel:   "gemini-2.5-flash-preview-tts",
			Voice:         "Algenib",
			Timeout:       90,
			MaxRetries:    2,
			MaxConcurrent: 8,
		},
		Audio: AudioConfig{
			SampleRate: 24000,
			Channels:   1,
			BitDepth:   16,
		},
		Store: StoreConfig{
			Backend:    "sqlite",
			SQLitePath: "data/kairo.db",
			Supabase: SupabaseConfig{
				Table:      "documents",
				Timeout:    30,
				MaxRetries: 3,
			},
		},
		Auth: AuthConfig{
			Reauth:        "supabase",
			UnlockTTL:     900,
			CleanupPeriod: 30,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 1,
			Burst:             5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// ApplyEnv overrides secrets and endpoints from environment variables
func (c *Config) ApplyEnv() {
	if v := firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY", "GOOGLE_GENAI_API_KEY"); v != "" {
		c.GenAI.APIKey = v
	}
	if v := os.Getenv("SUPABASE_URL"); v != "" {
		c.Store.Supabase.URL = v
	}
	if v := os.Getenv("SUPABASE_SERVICE_KEY"); v != "" {
		c.Store.Supabase.ServiceKey = v
	}
	if v := os.Getenv("SUPABASE_ANON_KEY"); v != "" {
		c.Store.Supabase.AnonKey = v
	}
	if v := firstEnv("KAIRO_JWT_SECRET", "SUPABASE_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.GenAI.Validate(); err != nil {
		return fmt.Errorf("genai config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config: %w", err)
	}

	if err := c.Auth.Validate(c.Store); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate_limit config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if h.ReadTimeout < 1 {
		return fmt.Errorf("read_timeout must be at least 1 second, got %d", h.ReadTimeout)
	}

	if h.WriteTimeout < 1 {
		return fmt.Errorf("write_timeout must be at least 1 second, got %d", h.WriteTimeout)
	}

	return nil
}

// Validate validates generative model configuration
func (g *GenAIConfig) Validate() error {
	if g.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty")
	}

	if g.TextModel == "" {
		return fmt.Errorf("text_model cannot be empty")
	}

	if g.SpeechModel == "" {
		return fmt.Errorf("speech_model cannot be empty")
	}

	if g.Voice == "" {
		return fmt.Errorf("voice cannot be empty")
	}

	if g.Temperature < 0 || g.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", g.Temperature)
	}

	if g.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", g.Timeout)
	}

	if g.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", g.MaxRetries)
	}

	if g.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", g.MaxConcurrent)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 24000 {
		return fmt.Errorf("sample_rate must be 24000 Hz for speech output, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono) for speech output, got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16 for speech output, got %d", a.BitDepth)
	}

	return nil
}

// Validate validates store configuration
func (s *StoreConfig) Validate() error {
	switch s.Backend {
	case "sqlite":
		if s.SQLitePath == "" {
			return fmt.Errorf("sqlite_path cannot be empty for the sqlite backend")
		}
	case "supabase":
		if err := s.Supabase.Validate(); err != nil {
			return fmt.Errorf("supabase: %w", err)
		}
	default:
		return fmt.Errorf("backend must be 'sqlite' or 'supabase', got '%s'", s.Backend)
	}

	return nil
}

// Validate validates supabase configuration
func (s *SupabaseConfig) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("url cannot be empty")
	}

	if s.ServiceKey == "" {
		return fmt.Errorf("service_key cannot be empty")
	}

	if s.Table == "" {
		return fmt.Errorf("table cannot be empty")
	}

	if s.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", s.Timeout)
	}

	if s.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", s.MaxRetries)
	}

	return nil
}

// Validate validates auth configuration. Supabase re-authentication needs
// supabase connection settings even when documents live in sqlite.
func (a *AuthConfig) Validate(store StoreConfig) error {
	if a.JWTSecret == "" {
		return fmt.Errorf("jwt_secret cannot be empty")
	}

	switch a.Reauth {
	case "supabase":
		if store.Supabase.URL == "" {
			return fmt.Errorf("supabase reauth requires store.supabase.url")
		}
		if store.Supabase.AnonKey == "" && store.Supabase.ServiceKey == "" {
			return fmt.Errorf("supabase reauth requires store.supabase.anon_key or service_key")
		}
	case "static":
		if len(a.Credentials) == 0 {
			return fmt.Errorf("static reauth requires at least one credential")
		}
		for i, c := range a.Credentials {
			if c.Email == "" || c.PasswordHash == "" {
				return fmt.Errorf("credential %d must have email and password_hash", i)
			}
		}
	default:
		return fmt.Errorf("reauth must be 'supabase' or 'static', got '%s'", a.Reauth)
	}

	if a.UnlockTTL < 1 {
		return fmt.Errorf("unlock_ttl must be at least 1 second, got %d", a.UnlockTTL)
	}

	if a.CleanupPeriod < 1 {
		return fmt.Errorf("cleanup_period must be at least 1 second, got %d", a.CleanupPeriod)
	}

	return nil
}

// Validate validates rate limit configuration
func (r *RateLimitConfig) Validate() error {
	if r.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive, got %f", r.RequestsPerSecond)
	}

	if r.Burst < 1 {
		return fmt.Errorf("burst must be at least 1, got %d", r.Burst)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Any other output value is treated as a file path
	return nil
}

// GetReadTimeoutDuration returns the read timeout as a time.Duration
func (h *HTTPConfig) GetReadTimeoutDuration() time.Duration {
	return time.Duration(h.ReadTimeout) * time.Second
}

// GetWriteTimeoutDuration returns the write timeout as a time.Duration
func (h *HTTPConfig) GetWriteTimeoutDuration() time.Duration {
	return time.Duration(h.WriteTimeout) * time.Second
}

// GetTimeoutDuration returns the model call timeout as a time.Duration
func (g *GenAIConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(g.Timeout) * time.Second
}

// GetTimeoutDuration returns the supabase request timeout as a time.Duration
func (s *SupabaseConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// GetUnlockTTLDuration returns the journal unlock lifetime as a time.Duration
func (a *AuthConfig) GetUnlockTTLDuration() time.Duration {
	return time.Duration(a.UnlockTTL) * time.Second
}

// GetCleanupPeriodDuration returns the unlock cleanup interval as a time.Duration
func (a *AuthConfig) GetCleanupPeriodDuration() time.Duration {
	return time.Duration(a.CleanupPeriod) * time.Second
}
