package httpapi

import (
	"WasherHub/internal/core/domain"
	"WasherHub/internal/shared/messages"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const signatureHeader = "Provider-Signature"

// featurePolicies maps the feature names the API exposes to their access
// policies.
var featurePolicies = map[string]domain.AccessPolicy{
	"bookings": domain.FullFeaturePolicy(),
	"payouts":  domain.FullFeaturePolicy(),
	"settings": domain.AlwaysAvailablePolicy(),
}

// statusForKind maps the domain error taxonomy onto HTTP status codes.
func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindAuthenticationRequired:
		return http.StatusUnauthorized
	case domain.KindNotWasher, domain.KindWasherNotApproved,
		domain.KindOnboardingIncomplete, domain.KindRequiredStepsIncomplete,
		domain.KindPayoutsNotEnabled:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidStep, domain.KindInvalidAmount,
		domain.KindBelowMinimum, domain.KindInsufficientBalance,
		domain.KindFeeExceedsAmount:
		return http.StatusUnprocessableEntity
	case domain.KindDuplicateBooking, domain.KindInvalidTransition,
		domain.KindConcurrentModification:
		return http.StatusConflict
	case domain.KindTransientProviderError:
		return http.StatusServiceUnavailable
	case domain.KindPermanentProviderError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a domain error with its catalog message.
func (s *Server) writeError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	if kind == "" {
		s.log.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled internal error")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal",
			"message": messages.ForKind("").Text,
		})
		return
	}

	m := messages.ForError(err)
	body := gin.H{
		"error":   string(kind),
		"message": m.Text,
	}
	if m.NextAction != "" {
		body["next_action"] = m.NextAction
	}
	var de *domain.Error
	if errors.As(err, &de) && len(de.MissingSteps) > 0 {
		body["missing_steps"] = stepNames(de.MissingSteps)
	}
	c.JSON(statusForKind(kind), body)
}

func stepNames(steps []domain.Step) []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.String()
	}
	return names
}

func washerID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id", "message": "id must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

type webhookPayload struct {
	ID      string `json:"id"`
	Account string `json:"account"`
	Created int64  `json:"created"`
}

func (s *Server) handleProviderWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
		return
	}
	if err := s.verifier.Verify(payload, c.GetHeader(signatureHeader)); err != nil {
		s.log.Warn().Err(err).Msg("Rejected webhook with bad signature")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "bad_signature"})
		return
	}

	var body webhookPayload
	if err := json.Unmarshal(payload, &body); err != nil || body.ID == "" || body.Account == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
		return
	}

	status, err := s.sync.HandleCallback(c.Request.Context(), domain.CallbackEvent{
		EventID:    body.ID,
		AccountID:  body.Account,
		OccurredAt: time.Unix(body.Created, 0).UTC(),
	})
	if err != nil {
		// The provider retries on non-2xx; transient failures want that,
		// unknown accounts do not.
		if domain.IsKind(err, domain.KindNotFound) {
			c.JSON(http.StatusOK, gin.H{"received": true, "ignored": "unknown_account"})
			return
		}
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "state": string(status.State)})
}

func (s *Server) handleCompleteStep(c *gin.Context) {
	id, ok := washerID(c)
	if !ok {
		return
	}
	stepNum, err := strconv.Atoi(c.Param("step"))
	if err != nil {
		s.writeError(c, domain.NewError(domain.KindInvalidStep, "step %q is not a number", c.Param("step")))
		return
	}

	progress, err := s.tracker.RecordStepCompletion(c.Request.Context(), id, domain.Step(stepNum))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, progressResponse(progress))
}

func (s *Server) handleGetOnboarding(c *gin.Context) {
	id, ok := washerID(c)
	if !ok {
		return
	}
	progress, err := s.tracker.GetStatus(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, progressResponse(progress))
}

func progressResponse(p *domain.OnboardingProgress) gin.H {
	completed := make(map[string]time.Time, len(p.StepTimes))
	for step, at := range p.StepTimes {
		completed[step.String()] = at
	}
	resp := gin.H{
		"washer_id":       p.WasherID,
		"completed_steps": completed,
		"missing_steps":   stepNames(p.MissingSteps()),
		"is_complete":     p.IsComplete(),
		"started_at":      p.StartedAt,
		"updated_at":      p.UpdatedAt,
	}
	if p.CompletedAt != nil {
		resp["completed_at"] = *p.CompletedAt
	}
	return resp
}

func (s *Server) handleCheckAccess(c *gin.Context) {
	id, ok := washerID(c)
	if !ok {
		return
	}
	policy, known := featurePolicies[c.Param("feature")]
	if !known {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown_feature"})
		return
	}

	result, err := s.gate.CheckAccess(c.Request.Context(), id, policy)
	if err != nil {
		s.writeError(c, err)
		return
	}

	body := gin.H{"can_access": result.CanAccess}
	if !result.CanAccess {
		m := messages.ForKind(result.Reason)
		body["reason"] = string(result.Reason)
		body["message"] = m.Text
		if m.NextAction != "" {
			body["next_action"] = m.NextAction
		}
		if len(result.MissingSteps) > 0 {
			body["missing_steps"] = stepNames(result.MissingSteps)
		}
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleConnect(c *gin.Context) {
	id, ok := washerID(c)
	if !ok {
		return
	}
	url, err := s.sync.Connect(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"onboarding_url": url})
}

func (s *Server) handleSync(c *gin.Context) {
	id, ok := washerID(c)
	if !ok {
		return
	}
	status, err := s.sync.SyncNow(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, verificationResponse(status))
}

func verificationResponse(v *domain.VerificationStatus) gin.H {
	resp := gin.H{
		"washer_id":      v.WasherID,
		"state":          string(v.State),
		"requirements":   v.Requirements,
		"last_synced_at": v.LastSyncedAt,
	}
	if v.DisabledReason != nil {
		resp["disabled_reason"] = *v.DisabledReason
	}
	return resp
}

func (s *Server) handleGetBalance(c *gin.Context) {
	id, ok := washerID(c)
	if !ok {
		return
	}
	available, err := s.ledger.AvailableBalance(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	processing, err := s.ledger.ProcessingBalance(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"available":  available.StringFixed(2),
		"processing": processing.StringFixed(2),
	})
}

type recordEarningRequest struct {
	BookingID uuid.UUID       `json:"booking_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
}

func (s *Server) handleRecordEarning(c *gin.Context) {
	id, ok := washerID(c)
	if !ok {
		return
	}
	var req recordEarningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload", "message": err.Error()})
		return
	}

	earning, err := s.ledger.RecordEarning(c.Request.Context(), id, req.BookingID, req.Amount)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":                earning.ID,
		"booking_id":        earning.BookingID,
		"amount":            earning.Amount.StringFixed(2),
		"status":            string(earning.Status),
		"made_available_at": earning.MadeAvailableAt,
	})
}

type requestPayoutRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Notes  *string         `json:"notes"`
}

func (s *Server) handleRequestPayout(c *gin.Context) {
	id, ok := washerID(c)
	if !ok {
		return
	}

	// Payouts are a gated feature; the gate runs on every request.
	result, err := s.gate.CheckAccess(c.Request.Context(), id, featurePolicies["payouts"])
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !result.CanAccess {
		s.writeError(c, domain.NewError(result.Reason, "payouts feature denied").WithMissingSteps(result.MissingSteps))
		return
	}

	var req requestPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload", "message": err.Error()})
		return
	}

	request, err := s.engine.RequestPayout(c.Request.Context(), id, req.Amount, req.Notes)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payoutResponse(request))
}

func (s *Server) handleListPayouts(c *gin.Context) {
	id, ok := washerID(c)
	if !ok {
		return
	}
	requests, err := s.engine.ListForWasher(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]gin.H, len(requests))
	for i, r := range requests {
		out[i] = payoutResponse(r)
	}
	c.JSON(http.StatusOK, gin.H{"payouts": out})
}

func payoutResponse(r *domain.PayoutRequest) gin.H {
	resp := gin.H{
		"id":                 r.ID,
		"washer_id":          r.WasherID,
		"requested_amount":   r.RequestedAmount.StringFixed(2),
		"withdrawal_fee":     r.WithdrawalFee.StringFixed(2),
		"net_amount":         r.NetAmount.StringFixed(2),
		"status":             string(r.Status),
		"allocated_earnings": len(r.AllocatedEarningIDs),
		"created_at":         r.CreatedAt,
	}
	if r.ReviewedBy != nil {
		resp["reviewed_by"] = *r.ReviewedBy
	}
	if r.ReviewedAt != nil {
		resp["reviewed_at"] = *r.ReviewedAt
	}
	if r.Notes != nil {
		resp["notes"] = *r.Notes
	}
	return resp
}

type reviewRequest struct {
	Decision   string  `json:"decision" binding:"required"`
	ReviewedBy string  `json:"reviewed_by" binding:"required"`
	Notes      *string `json:"notes"`
}

func (s *Server) handleReviewPayout(c *gin.Context) {
	payoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id", "message": "id must be a UUID"})
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload", "message": err.Error()})
		return
	}

	request, err := s.engine.Review(c.Request.Context(), payoutID, domain.PayoutStatus(req.Decision), req.ReviewedBy, req.Notes)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payoutResponse(request))
}

func (s *Server) handleFunnelReport(c *gin.Context) {
	report := s.analytics.Latest()
	if report == nil {
		// First request before the scheduled job has run; compute inline.
		var err error
		report, err = s.analytics.Run(c.Request.Context())
		if err != nil {
			s.writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, report)
}
