package main

import (
	"WasherHub/internal/adapters/eventbus"
	"WasherHub/internal/adapters/httpapi"
	"WasherHub/internal/adapters/postgres"
	"WasherHub/internal/adapters/provider"
	"WasherHub/internal/adapters/security"
	"WasherHub/internal/adapters/supabase"
	"WasherHub/internal/adapters/telegram"
	"WasherHub/internal/core/domain"
	"WasherHub/internal/core/ports"
	"WasherHub/internal/service/access"
	"WasherHub/internal/service/analytics"
	"WasherHub/internal/service/ledger"
	"WasherHub/internal/service/onboarding"
	"WasherHub/internal/service/payout"
	"WasherHub/internal/service/verification"
	"WasherHub/internal/shared/config"
	"WasherHub/internal/shared/logger"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
)

const webhookSignatureTolerance = 5 * time.Minute

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize Logger
	isDevMode := cfg.AppEnv == "dev"
	baseLogger := logger.New(isDevMode)
	baseLogger.Info().
		Str("app_env", cfg.AppEnv).
		Str("listen_addr", cfg.HTTPListenAddr).
		Bool("review_channel", cfg.Telegram.Enabled).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Database
	db, err := postgres.NewDB(ctx, cfg.DatabaseURL, &baseLogger)
	if err != nil {
		baseLogger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// 4. Initialize Repositories
	onboardingRepo := postgres.NewOnboardingRepository(db, &baseLogger)
	stepEventRepo := postgres.NewStepEventRepository(db, &baseLogger)
	verificationRepo := postgres.NewVerificationRepository(db, &baseLogger)
	earningsRepo := postgres.NewEarningsRepository(db, &baseLogger)
	payoutRepo := postgres.NewPayoutRepository(db, &baseLogger)

	// 5. Initialize outbound adapters
	bus := eventbus.NewInMemoryEventBus(&baseLogger)
	providerClient := provider.NewClient(cfg.Provider.APIURL, cfg.Provider.APIKey, cfg.Provider.CallTimeout, &baseLogger)
	identityClient := supabase.NewIdentityClient(cfg.Identity.APIURL, cfg.Identity.ServiceKey, &baseLogger)
	verifier, err := security.NewHMACVerifier(cfg.Provider.WebhookSecret, webhookSignatureTolerance, &baseLogger)
	if err != nil {
		baseLogger.Fatal().Err(err).Msg("Failed to initialize webhook verifier")
	}

	// 6. Initialize core services
	tracker := onboarding.NewTracker(onboardingRepo, stepEventRepo, bus, &baseLogger)
	gate := access.NewGate(identityClient, onboardingRepo, &baseLogger)
	syncService := verification.NewService(
		verificationRepo,
		providerClient,
		bus,
		tracker,
		domain.DefaultDerivationPolicy(),
		cfg.Sync.RetryInitialBackoff,
		cfg.Sync.RetryMaxAttempts,
		cfg.Provider.RefreshURL,
		cfg.Provider.ReturnURL,
		&baseLogger,
	)
	ledgerService := ledger.NewService(earningsRepo, bus, &baseLogger)
	engine := payout.NewEngine(
		verificationRepo,
		earningsRepo,
		payoutRepo,
		domain.PayoutPolicy{
			MinimumAmount: cfg.Payout.Minimum,
			WithdrawalFee: cfg.Payout.WithdrawalFee,
		},
		bus,
		&baseLogger,
	)
	aggregator := analytics.NewAggregator(onboardingRepo, stepEventRepo, 7*24*time.Hour, &baseLogger)

	// 7. Wire event subscribers. A completed external verification counts as
	// onboarding step 2 without the washer doing anything else.
	bus.Subscribe(ports.TopicVerificationUpdated, func(ctx context.Context, event ports.Event) error {
		update, ok := event.Data.(verification.UpdatedEvent)
		if !ok || update.State != domain.VerificationComplete {
			return nil
		}
		_, err := tracker.RecordStepCompletion(ctx, update.WasherID, domain.StepVerification)
		return err
	})

	// 8. Review channel (optional; payouts fall back to the admin HTTP route)
	if cfg.Telegram.Enabled {
		reviewer, err := telegram.NewReviewer(
			cfg.Telegram.BotToken,
			cfg.Telegram.ChannelID,
			cfg.Telegram.ModeratorIDs,
			engine,
			&baseLogger,
		)
		if err != nil {
			baseLogger.Fatal().Err(err).Msg("Failed to initialize review channel")
		}
		bus.Subscribe(ports.TopicPayoutRequested, func(ctx context.Context, event ports.Event) error {
			requested, ok := event.Data.(payout.RequestedEvent)
			if !ok {
				return nil
			}
			_, err := reviewer.PublishPayoutRequest(ctx, requested.Request)
			return err
		})
		go func() {
			if err := reviewer.Run(ctx); err != nil {
				baseLogger.Error().Err(err).Msg("Review channel listener exited")
			}
		}()
	}

	// 9. Analytics schedule
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.AnalyticsCron, func() {
		if _, err := aggregator.Run(context.Background()); err != nil {
			baseLogger.Error().Err(err).Msg("Funnel report run failed")
		}
	}); err != nil {
		baseLogger.Fatal().Err(err).Str("cron", cfg.AnalyticsCron).Msg("Bad analytics cron expression")
	}
	scheduler.Start()
	defer scheduler.Stop()

	// 10. HTTP API
	server := httpapi.NewServer(
		cfg.HTTPListenAddr,
		tracker,
		gate,
		syncService,
		ledgerService,
		engine,
		aggregator,
		verifier,
		isDevMode,
		&baseLogger,
	)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	baseLogger.Info().Msg("All services initialized successfully")

	select {
	case <-ctx.Done():
		baseLogger.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		baseLogger.Error().Err(err).Msg("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error().Err(err).Msg("HTTP shutdown failed")
	}
	baseLogger.Info().Msg("Application stopped")
}
