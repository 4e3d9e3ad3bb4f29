// Package provider implements the payment-provider account API port over
// JSON/HTTP. The provider is a black box: only the fields the core consumes
// are decoded, everything else is ignored.
package provider

import (
	"WasherHub/internal/core/domain"
	"WasherHub/internal/core/ports"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

var _ ports.ProviderPort = (*Client)(nil) // Ensure compliance

// NewClient creates the provider API client. callTimeout caps every request;
// a timeout surfaces as a transient provider error so callers may retry.
func NewClient(baseURL, apiKey string, callTimeout time.Duration, baseLogger *zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: callTimeout},
		log:     baseLogger.With().Str("component", "provider_client").Logger(),
	}
}

type accountPayload struct {
	ID               string `json:"id"`
	DetailsSubmitted bool   `json:"details_submitted"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	Requirements     struct {
		CurrentlyDue        []string `json:"currently_due"`
		EventuallyDue       []string `json:"eventually_due"`
		PastDue             []string `json:"past_due"`
		PendingVerification []string `json:"pending_verification"`
		DisabledReason      string   `json:"disabled_reason"`
	} `json:"requirements"`
}

type linkPayload struct {
	URL string `json:"url"`
}

type errorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateAccount provisions a new connected account.
func (c *Client) CreateAccount(ctx context.Context) (string, error) {
	var payload accountPayload
	if err := c.do(ctx, http.MethodPost, "/v1/accounts", map[string]string{"type": "express"}, &payload); err != nil {
		return "", err
	}
	return payload.ID, nil
}

// GetAccount fetches the live account state.
func (c *Client) GetAccount(ctx context.Context, accountID string) (*domain.AccountSnapshot, error) {
	var payload accountPayload
	path := "/v1/accounts/" + url.PathEscape(accountID)
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return &domain.AccountSnapshot{
		DetailsSubmitted: payload.DetailsSubmitted,
		ChargesEnabled:   payload.ChargesEnabled,
		PayoutsEnabled:   payload.PayoutsEnabled,
		Requirements: domain.Requirements{
			CurrentlyDue:        payload.Requirements.CurrentlyDue,
			EventuallyDue:       payload.Requirements.EventuallyDue,
			PastDue:             payload.Requirements.PastDue,
			PendingVerification: payload.Requirements.PendingVerification,
		},
		DisabledReason: payload.Requirements.DisabledReason,
	}, nil
}

// CreateOnboardingLink mints a hosted onboarding URL for the account.
func (c *Client) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	body := map[string]string{
		"account":     accountID,
		"refresh_url": refreshURL,
		"return_url":  returnURL,
		"type":        "account_onboarding",
	}
	var payload linkPayload
	if err := c.do(ctx, http.MethodPost, "/v1/account_links", body, &payload); err != nil {
		return "", err
	}
	return payload.URL, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport failures (including the client timeout) are retryable.
		return domain.WrapError(domain.KindTransientProviderError, err, "provider request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.WrapError(domain.KindTransientProviderError, err, "provider response read failed")
	}

	if resp.StatusCode >= 400 {
		return c.classify(resp.StatusCode, raw)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return domain.WrapError(domain.KindPermanentProviderError, err, "provider response malformed")
	}
	return nil
}

// classify splits provider failures into retryable and terminal kinds.
// Rate limits and 5xx api errors come back transient; invalid_request,
// authentication and card errors are terminal no matter the status.
func (c *Client) classify(status int, raw []byte) error {
	var payload errorPayload
	_ = json.Unmarshal(raw, &payload)
	errType := payload.Error.Type
	message := payload.Error.Message
	if message == "" {
		message = http.StatusText(status)
	}

	kind := domain.KindPermanentProviderError
	switch {
	case errType == "rate_limit_error":
		kind = domain.KindTransientProviderError
	case errType == "invalid_request_error", errType == "authentication_error", errType == "card_error":
		kind = domain.KindPermanentProviderError
	case status >= 500:
		kind = domain.KindTransientProviderError
	}

	c.log.Warn().
		Int("status", status).
		Str("error_type", errType).
		Str("kind", string(kind)).
		Msg("Provider call failed")

	return domain.NewError(kind, "provider %s (%d): %s", errType, status, message)
}
