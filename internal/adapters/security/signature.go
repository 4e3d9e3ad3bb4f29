package security

import (
	"WasherHub/internal/core/ports"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// hmacVerifier implements the WebhookVerifier port with the provider's
// signature scheme: a header of the form "t=<unix>,v1=<hex hmac>" where the
// mac covers "<unix>.<raw body>".
type hmacVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

var _ ports.WebhookVerifier = (*hmacVerifier)(nil) // Ensure compliance

// NewHMACVerifier creates a webhook signature verifier.
func NewHMACVerifier(secret string, tolerance time.Duration, baseLogger *zerolog.Logger) (ports.WebhookVerifier, error) {
	if secret == "" {
		return nil, errors.New("webhook secret must not be empty")
	}
	return &hmacVerifier{
		secret:    []byte(secret),
		tolerance: tolerance,
		now:       time.Now,
		log:       baseLogger.With().Str("component", "webhook_verifier").Logger(),
	}, nil
}

// Verify checks the signature header against the raw payload.
func (v *hmacVerifier) Verify(payload []byte, signatureHeader string) error {
	timestamp, signature, err := parseHeader(signatureHeader)
	if err != nil {
		return err
	}

	// Replayed payloads outside the tolerance window are refused even when
	// the mac itself is valid.
	age := v.now().UTC().Sub(time.Unix(timestamp, 0).UTC())
	if age > v.tolerance || age < -v.tolerance {
		v.log.Warn().Int64("timestamp", timestamp).Msg("Webhook signature timestamp outside tolerance")
		return errors.New("webhook signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		v.log.Warn().Msg("Webhook signature mismatch")
		return errors.New("webhook signature mismatch")
	}
	return nil
}

func parseHeader(header string) (timestamp int64, signature string, err error) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp, err = strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, "", fmt.Errorf("bad signature timestamp: %w", err)
			}
		case "v1":
			signature = value
		}
	}
	if timestamp == 0 || signature == "" {
		return 0, "", errors.New("signature header missing t or v1")
	}
	return timestamp, signature, nil
}
