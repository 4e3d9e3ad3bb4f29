// Package supabase adapts the hosted auth backend into the identity port.
// Washer profiles live in a profiles table exposed over PostgREST; the core
// only reads the three fields the access gate needs.
package supabase

import (
	"WasherHub/internal/core/domain"
	"WasherHub/internal/core/ports"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type IdentityClient struct {
	baseURL    string
	serviceKey string
	http       *http.Client
	log        zerolog.Logger
}

var _ ports.IdentityPort = (*IdentityClient)(nil) // Ensure compliance

// NewIdentityClient creates the identity adapter.
func NewIdentityClient(baseURL, serviceKey string, baseLogger *zerolog.Logger) *IdentityClient {
	return &IdentityClient{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        baseLogger.With().Str("component", "identity_client").Logger(),
	}
}

type profileRow struct {
	ID                string `json:"id"`
	Role              string `json:"role"`
	ApplicationStatus string `json:"application_status"`
}

// GetIdentity fetches the washer's profile snapshot.
// Returns (nil, nil) when no profile exists.
func (c *IdentityClient) GetIdentity(ctx context.Context, washerID uuid.UUID) (*domain.IdentitySnapshot, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/profiles?id=eq.%s&select=id,role,application_status",
		c.baseURL, washerID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("identity response read failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		c.log.Error().Int("status", resp.StatusCode).Msg("Identity backend returned an error")
		return nil, fmt.Errorf("identity backend returned %d", resp.StatusCode)
	}

	var rows []profileRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("identity response malformed: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil // Return nil, nil for "not found"
	}

	return &domain.IdentitySnapshot{
		WasherID:   washerID,
		Role:       domain.Role(rows[0].Role),
		IsApproved: rows[0].ApplicationStatus == "approved",
	}, nil
}
