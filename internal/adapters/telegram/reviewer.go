// Package telegram runs the administrative payout review channel. Pending
// payout requests are posted to a private moderator channel with inline
// approve/reject buttons; button presses drive the payout engine's review
// operation.
package telegram

import (
	"WasherHub/internal/core/domain"
	"WasherHub/internal/core/ports"
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	callbackApprovePrefix = "payout_approve_"
	callbackRejectPrefix  = "payout_reject_"
)

// Reviewer posts review notifications and routes moderator decisions.
type Reviewer struct {
	api        *tgbotapi.BotAPI
	channelID  int64
	moderators map[int64]bool
	engine     ports.PayoutReviewer
	log        zerolog.Logger
}

var _ ports.ReviewNotifier = (*Reviewer)(nil) // Ensure compliance

// NewReviewer creates the review channel adapter.
func NewReviewer(
	token string,
	channelID int64,
	moderatorIDs []int64,
	engine ports.PayoutReviewer,
	baseLogger *zerolog.Logger,
) (*Reviewer, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("could not create bot api: %w", err)
	}

	moderators := make(map[int64]bool, len(moderatorIDs))
	for _, id := range moderatorIDs {
		moderators[id] = true
	}

	return &Reviewer{
		api:        api,
		channelID:  channelID,
		moderators: moderators,
		engine:     engine,
		log:        baseLogger.With().Str("component", "telegram_reviewer").Logger(),
	}, nil
}

// PublishPayoutRequest posts the pending request to the review channel.
// The storage reference is the posted message id.
func (r *Reviewer) PublishPayoutRequest(ctx context.Context, request *domain.PayoutRequest) (string, error) {
	text := fmt.Sprintf(
		"Payout request pending review\n"+
			"RequestID: %s\n"+
			"Washer: %s\n"+
			"Requested: %s\n"+
			"Fee: %s\n"+
			"Net: %s\n"+
			"Allocated earnings: %d",
		request.ID,
		request.WasherID,
		request.RequestedAmount,
		request.WithdrawalFee,
		request.NetAmount,
		len(request.AllocatedEarningIDs),
	)
	if request.Notes != nil {
		text += "\nNotes: " + *request.Notes
	}

	msg := tgbotapi.NewMessage(r.channelID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Approve", callbackApprovePrefix+request.ID.String()),
			tgbotapi.NewInlineKeyboardButtonData("Reject", callbackRejectPrefix+request.ID.String()),
		),
	)

	sent, err := r.api.Send(msg)
	if err != nil {
		r.log.Error().Err(err).Str("payout_id", request.ID.String()).Msg("Failed to publish payout request to review channel")
		return "", err
	}
	return fmt.Sprintf("%d", sent.MessageID), nil
}

// Run polls for updates until the context is cancelled.
func (r *Reviewer) Run(ctx context.Context) error {
	// Clear any stale webhook so long polling works.
	if _, err := r.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		r.log.Warn().Err(err).Msg("Failed to delete webhook (continuing anyway)")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.api.GetUpdatesChan(u)

	r.log.Info().Int64("channel_id", r.channelID).Msg("Review channel listener started")

	for {
		select {
		case <-ctx.Done():
			r.api.StopReceivingUpdates()
			r.log.Info().Msg("Review channel listener stopped")
			return nil
		case update := <-updates:
			if update.CallbackQuery == nil {
				continue
			}
			r.handleCallback(ctx, update.CallbackQuery)
		}
	}
}

func (r *Reviewer) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	log := r.log.With().Int64("moderator_id", cq.From.ID).Logger()

	// Stop the client-side spinner regardless of the outcome.
	if _, err := r.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		log.Warn().Err(err).Msg("Failed to answer callback query")
	}

	if !r.moderators[cq.From.ID] {
		log.Warn().Msg("Unauthorized user pressed a review button")
		return
	}

	var decision domain.PayoutStatus
	var rawID string
	switch {
	case strings.HasPrefix(cq.Data, callbackApprovePrefix):
		decision = domain.PayoutApproved
		rawID = strings.TrimPrefix(cq.Data, callbackApprovePrefix)
	case strings.HasPrefix(cq.Data, callbackRejectPrefix):
		decision = domain.PayoutRejected
		rawID = strings.TrimPrefix(cq.Data, callbackRejectPrefix)
	default:
		log.Warn().Str("data", cq.Data).Msg("Unknown callback data")
		return
	}

	payoutID, err := uuid.Parse(rawID)
	if err != nil {
		log.Error().Err(err).Str("data", cq.Data).Msg("Callback data carries a bad payout id")
		return
	}

	reviewedBy := fmt.Sprintf("telegram:%d", cq.From.ID)
	request, err := r.engine.Review(ctx, payoutID, decision, reviewedBy, nil)
	if err != nil {
		log.Error().Err(err).Str("payout_id", payoutID.String()).Msg("Review decision failed")
		r.editDecision(cq, fmt.Sprintf("FAILED (%s)", domain.KindOf(err)))
		return
	}

	log.Info().
		Str("payout_id", payoutID.String()).
		Str("decision", string(decision)).
		Msg("Payout reviewed via channel")
	r.editDecision(cq, strings.ToUpper(string(request.Status)))
}

// editDecision appends the outcome to the original notification and drops
// the buttons so the request cannot be reviewed twice from the same message.
func (r *Reviewer) editDecision(cq *tgbotapi.CallbackQuery, outcome string) {
	if cq.Message == nil {
		return
	}
	edit := tgbotapi.NewEditMessageText(
		cq.Message.Chat.ID,
		cq.Message.MessageID,
		cq.Message.Text+"\n\nDecision: "+outcome,
	)
	if _, err := r.api.Send(edit); err != nil {
		r.log.Warn().Err(err).Msg("Failed to edit review message")
	}
}
