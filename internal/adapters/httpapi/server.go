// Package httpapi exposes the core operations and the provider callback
// endpoint over a thin JSON API. No rendering or UI concerns live here.
package httpapi

import (
	"WasherHub/internal/core/ports"
	"WasherHub/internal/service/access"
	"WasherHub/internal/service/analytics"
	"WasherHub/internal/service/ledger"
	"WasherHub/internal/service/onboarding"
	"WasherHub/internal/service/payout"
	"WasherHub/internal/service/verification"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Server wires the gin router around the core services.
type Server struct {
	tracker   *onboarding.Tracker
	gate      *access.Gate
	sync      *verification.Service
	ledger    *ledger.Service
	engine    *payout.Engine
	analytics *analytics.Aggregator
	verifier  ports.WebhookVerifier
	log       zerolog.Logger

	httpServer *http.Server
}

// NewServer creates the HTTP API server.
func NewServer(
	listenAddr string,
	tracker *onboarding.Tracker,
	gate *access.Gate,
	sync *verification.Service,
	ledgerSvc *ledger.Service,
	engine *payout.Engine,
	aggregator *analytics.Aggregator,
	verifier ports.WebhookVerifier,
	devMode bool,
	baseLogger *zerolog.Logger,
) *Server {
	if !devMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		tracker:   tracker,
		gate:      gate,
		sync:      sync,
		ledger:    ledgerSvc,
		engine:    engine,
		analytics: aggregator,
		verifier:  verifier,
		log:       baseLogger.With().Str("component", "http_api").Logger(),
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.POST("/webhooks/provider", s.handleProviderWebhook)

	washers := router.Group("/washers/:id")
	{
		washers.POST("/steps/:step", s.handleCompleteStep)
		washers.GET("/onboarding", s.handleGetOnboarding)
		washers.GET("/access/:feature", s.handleCheckAccess)
		washers.POST("/connect", s.handleConnect)
		washers.POST("/sync", s.handleSync)
		washers.GET("/balance", s.handleGetBalance)
		washers.POST("/earnings", s.handleRecordEarning)
		washers.POST("/payouts", s.handleRequestPayout)
		washers.GET("/payouts", s.handleListPayouts)
	}

	router.POST("/admin/payouts/:id/review", s.handleReviewPayout)
	router.GET("/analytics/funnel", s.handleFunnelReport)

	s.httpServer = &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}
	return s
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP API listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP API")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("Request handled")
	}
}
