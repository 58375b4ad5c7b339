package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/hray3182/DeskPal/internal/ai"
	"github.com/hray3182/DeskPal/internal/config"
	"github.com/hray3182/DeskPal/internal/database"
	"github.com/hray3182/DeskPal/internal/logging"
	"github.com/hray3182/DeskPal/internal/repository"
	"github.com/hray3182/DeskPal/internal/scheduler"
	"github.com/hray3182/DeskPal/internal/service"
	"github.com/hray3182/DeskPal/internal/tools"
)

// app is everything a command needs, opened from configuration.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	db      *database.DB
	repo    *repository.ScheduleRepository
	tracker *scheduler.Tracker
	svc     *service.ScheduleService
	ai      *ai.Client
	tools   *tools.Dispatcher
}

func openApp(ctx context.Context, opts *rootOptions, logOut io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.dbDriver != "" {
		cfg.DBDriver = opts.dbDriver
	}
	if opts.dbURI != "" {
		cfg.DatabaseURI = opts.dbURI
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	log := logging.New(cfg.LogLevel, logOut)

	db, err := database.New(ctx, cfg.DBDriver, cfg.DatabaseURI, logging.Component(log, "database"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	repo := repository.NewScheduleRepository(db)
	tracker := scheduler.NewTracker()
	svc := service.NewScheduleService(repo, tracker, logging.Component(log, "service"))

	a := &app{cfg: cfg, log: log, db: db, repo: repo, tracker: tracker, svc: svc}

	var intents tools.IntentParser
	if cfg.AIAPIKey != "" {
		a.ai = ai.New(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)
		intents = a.ai
		log.Debug().Str("model", cfg.AIModel).Msg("AI client initialized")
	}
	a.tools = tools.New(svc, intents, logging.Component(log, "tools"))
	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// withApp opens the app for the duration of fn.
func withApp(ctx context.Context, opts *rootOptions, logOut io.Writer, fn func(*app) error) error {
	a, err := openApp(ctx, opts, logOut)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
