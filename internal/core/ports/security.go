package ports

// WebhookVerifier authenticates incoming provider callback payloads before
// they reach the sync service.
type WebhookVerifier interface {
	// Verify checks the signature header against the raw payload.
	// A nil return means the payload is authentic.
	Verify(payload []byte, signatureHeader string) error
}
