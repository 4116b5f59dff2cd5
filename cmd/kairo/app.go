package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Micheline922/kairo/internal/audio"
	"github.com/Micheline922/kairo/internal/auth"
	"github.com/Micheline922/kairo/internal/config"
	"github.com/Micheline922/kairo/internal/flow"
	"github.com/Micheline922/kairo/internal/gemini"
	"github.com/Micheline922/kairo/internal/metrics"
	"github.com/Micheline922/kairo/internal/store"
	"github.com/Micheline922/kairo/internal/supabase"
)

// loadConfig loads the configuration and the logger it describes
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, initLogger(cfg.Logging), nil
}

func newModelClient(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*gemini.Client, error) {
	return gemini.NewClient(ctx, gemini.Config{
		APIKey:        cfg.GenAI.APIKey,
		BaseURL:       cfg.GenAI.BaseURL,
		TextModel:     cfg.GenAI.TextModel,
		SpeechModel:   cfg.GenAI.SpeechModel,
		Voice:         cfg.GenAI.Voice,
		Temperature:   cfg.GenAI.Temperature,
		Timeout:       cfg.GenAI.GetTimeoutDuration(),
		MaxRetries:    cfg.GenAI.MaxRetries,
		MaxConcurrent: cfg.GenAI.MaxConcurrent,
	}, m, logger)
}

func newFlowRegistry(gen gemini.Generator, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *flow.Registry {
	return flow.NewRegistry(gen,
		flow.WithVoice(cfg.GenAI.Voice),
		flow.WithSpeechFormat(audio.Format{
			Channels:   cfg.Audio.Channels,
			SampleRate: cfg.Audio.SampleRate,
			BitDepth:   cfg.Audio.BitDepth,
		}),
		flow.WithMetrics(m),
		flow.WithLogger(logger),
	)
}

// newSupabaseClient connects with key, the service key for table access
// or the anon key for password sign-in
func newSupabaseClient(cfg config.SupabaseConfig, key string) (*supabase.Client, error) {
	retry := supabase.DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries
	return supabase.New(supabase.Config{
		URL:     cfg.URL,
		APIKey:  key,
		Timeout: cfg.GetTimeoutDuration(),
		Retry:   retry,
	})
}

func newBackend(cfg *config.Config) (store.Backend, error) {
	switch cfg.Store.Backend {
	case "supabase":
		client, err := newSupabaseClient(cfg.Store.Supabase, cfg.Store.Supabase.ServiceKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create supabase client: %w", err)
		}
		return store.NewSupabaseBackend(client, cfg.Store.Supabase.Table), nil
	default:
		return store.NewSQLiteBackend(cfg.Store.SQLitePath)
	}
}

func newReauthenticator(cfg *config.Config) (auth.Reauthenticator, error) {
	if cfg.Auth.Reauth == "static" {
		hashes := make(map[string]string, len(cfg.Auth.Credentials))
		for _, c := range cfg.Auth.Credentials {
			hashes[c.Email] = c.PasswordHash
		}
		return auth.NewStaticReauthenticator(hashes)
	}

	key := cfg.Store.Supabase.AnonKey
	if key == "" {
		key = cfg.Store.Supabase.ServiceKey
	}
	client, err := newSupabaseClient(cfg.Store.Supabase, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase auth client: %w", err)
	}
	return auth.NewSupabaseReauthenticator(client), nil
}

// maskKey shows only the last four characters of a secret
func maskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", 8) + key[len(key)-4:]
}
