package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kyokaz/trackd/internal/clockify"
	"github.com/kyokaz/trackd/internal/config"
	"github.com/kyokaz/trackd/internal/health"
	"github.com/kyokaz/trackd/internal/metrics"
	"github.com/kyokaz/trackd/internal/mgmt"
	"github.com/kyokaz/trackd/internal/state"
	"github.com/kyokaz/trackd/internal/store"
	"github.com/kyokaz/trackd/internal/tracker"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("mgmt_addr", cfg.MgmtListenAddr).
		Str("api_base_url", cfg.APIBaseURL).
		Bool("auth_enabled", cfg.MgmtAuthEnabled()).
		Msg("starting trackd")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Local history store. Losing it degrades the service but does not stop
	// timer operations, so a failure here is non-fatal.
	var db *store.Store
	db, err = store.New(cfg.DBPath, logger)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.DBPath).
			Msg("failed to open local store, history disabled")
		db = nil
	}

	api := clockify.New(clockify.Config{
		BaseURL:     cfg.APIBaseURL,
		APIKey:      cfg.APIKey,
		WorkspaceID: cfg.WorkspaceID,
		UserID:      cfg.UserID,
		Timeout:     cfg.HTTPTimeout,
	}, logger)

	checker := health.NewChecker(logger)
	checker.Register("clockify", func(ctx context.Context) health.Status {
		if _, err := api.CurrentUser(ctx); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	m := metrics.New()

	tr := tracker.New(api, state.New(), db, m, tracker.Options{
		HourlyRate:    cfg.HourlyRate,
		Display:       cfg.Display,
		TickInterval:  cfg.TickInterval,
		DispatchBatch: cfg.DispatchBatch,
		StartupDelay:  cfg.StartupDelay,
	}, logger)

	go tr.Run(ctx)

	// Prime the caches and reconcile any timer left running.
	tr.VerifyCredentials()
	tr.RefreshClients()
	tr.RefreshProjects()
	tr.Resume(ctx)

	server := mgmt.NewServer(mgmt.ServerConfig{
		ListenAddr: cfg.MgmtListenAddr,
		APIKey:     cfg.MgmtAPIKey,
	}, tr, checker, db, m, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("management API server failed")
		}
	}

	cancel()

	if err := server.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("store close failed")
		}
	}

	logger.Info().Msg("trackd stopped")
}
