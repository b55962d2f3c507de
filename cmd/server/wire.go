package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Synergy-kakaotrack/moa-be/internal/api"
	"github.com/Synergy-kakaotrack/moa-be/internal/config"
	"github.com/Synergy-kakaotrack/moa-be/internal/digest"
	"github.com/Synergy-kakaotrack/moa-be/internal/draft"
	"github.com/Synergy-kakaotrack/moa-be/internal/engine"
	"github.com/Synergy-kakaotrack/moa-be/internal/store"
	"github.com/Synergy-kakaotrack/moa-be/internal/worker"
)

type app struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	store     *store.Store
	digests   *digest.Coordinator
	scheduler *worker.Scheduler
	server    *api.Server
}

func wireApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s, err := store.New(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}

	client := newModelClient(cfg, logger)
	generator := engine.NewDigestGenerator(client, nil)
	coordinator := digest.New(digest.Deps{
		Projects:   s,
		Sources:    s,
		Digests:    s,
		Generator:  generator,
		Normalizer: engine.NewHTMLNormalizer(cfg.Digest.MaxTextLength),
		Locks:      digest.NewKeyLocks(),
		Status:     digest.NewStatusCache(cfg.Digest.StatusTTL, time.Now),
		Logger:     logger,
	}, digest.Options{
		ProjectInputLimit: cfg.Digest.ProjectInputLimit,
		StageInputLimit:   cfg.Digest.StageInputLimit,
		GenerateTimeout:   cfg.Digest.Timeout,
		StageVariantMatch: cfg.Digest.StageVariantMatch,
	})

	drafts := draft.New(draft.Deps{
		Projects:    s,
		Contexts:    s,
		Drafts:      s,
		Recommender: engine.NewDraftRecommender(client, nil),
		Logger:      logger,
	}, draft.Options{
		TTL:              cfg.Draft.TTL,
		RecommendTimeout: cfg.Draft.RecommendTimeout,
	})

	scheduler := worker.New(s, coordinator, worker.Settings{
		DailyLimit:        cfg.Sweep.DailyLimit,
		Lookback:          cfg.Sweep.Lookback,
		Delay:             cfg.Sweep.Delay,
		BackoffInitial:    cfg.Sweep.BackoffInitial,
		BackoffMax:        cfg.Sweep.BackoffMax,
		BackoffMultiplier: cfg.Sweep.BackoffMultiplier,
	}, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		store:     s,
		digests:   coordinator,
		scheduler: scheduler,
		server: api.New(s, coordinator,
			api.WithCORSOrigin(cfg.CORSOrigin),
			api.WithLogger(logger),
			api.WithDrafts(drafts),
		),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func newModelClient(cfg config.Config, logger *slog.Logger) engine.ModelClient {
	if cfg.UseStubs() {
		logger.Warn("no API key for llm provider, using stub model client", "provider", cfg.LLM.Provider)
		return &engine.StubModelClient{}
	}
	switch cfg.LLM.Provider {
	case "claude":
		logger.Info("using Claude model client", "model", cfg.Anthropic.Model)
		return engine.NewClaudeClient(cfg.Anthropic.APIKey,
			engine.WithClaudeModel(cfg.Anthropic.Model),
			engine.WithClaudeTimeout(cfg.HTTPTimeout),
		)
	case "ollama":
		logger.Info("using Ollama model client", "url", cfg.Ollama.URL, "model", cfg.Ollama.Model)
		return engine.NewOllamaClient(cfg.Ollama.URL,
			engine.WithOllamaModel(cfg.Ollama.Model),
			engine.WithOllamaTimeout(cfg.HTTPTimeout),
		)
	case "openai":
		logger.Info("using OpenAI model client", "base_url", cfg.OpenAI.BaseURL, "model", cfg.OpenAI.Model)
		return engine.NewOpenAIClient(cfg.OpenAI.APIKey,
			engine.WithBaseURL(cfg.OpenAI.BaseURL),
			engine.WithModel(cfg.OpenAI.Model),
			engine.WithOpenAITimeout(cfg.HTTPTimeout),
		)
	default:
		logger.Info("using Gemini model client", "model", cfg.Gemini.Model)
		return engine.NewGeminiClient(cfg.Gemini.APIKey,
			engine.WithGeminiModel(cfg.Gemini.Model),
			engine.WithGeminiTimeout(cfg.HTTPTimeout),
		)
	}
}
