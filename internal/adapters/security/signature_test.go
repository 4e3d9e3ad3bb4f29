package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func signPayload(secret string, payload []byte, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", at.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func newTestVerifier(t *testing.T, secret string, now time.Time) *hmacVerifier {
	t.Helper()
	nopLogger := zerolog.Nop()
	v, err := NewHMACVerifier(secret, 5*time.Minute, &nopLogger)
	if err != nil {
		t.Fatalf("Failed to create verifier: %v", err)
	}
	impl := v.(*hmacVerifier)
	impl.now = func() time.Time { return now }
	return impl
}

func TestVerify_ValidSignature(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"id":"evt_1","account":"acct_1"}`)
	v := newTestVerifier(t, "whsec_test", now)

	if err := v.Verify(payload, signPayload("whsec_test", payload, now)); err != nil {
		t.Fatalf("Valid signature rejected: %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"id":"evt_1"}`)
	v := newTestVerifier(t, "whsec_test", now)

	if err := v.Verify(payload, signPayload("whsec_other", payload, now)); err == nil {
		t.Fatal("Signature from the wrong secret was accepted")
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"id":"evt_1","account":"acct_1"}`)
	v := newTestVerifier(t, "whsec_test", now)
	header := signPayload("whsec_test", payload, now)

	tampered := append([]byte(nil), payload...)
	tampered[len(tampered)-2] = 'X'
	if err := v.Verify(tampered, header); err == nil {
		t.Fatal("Tampered payload was accepted")
	}
}

func TestVerify_ReplayOutsideTolerance(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"id":"evt_1"}`)
	v := newTestVerifier(t, "whsec_test", now)

	stale := signPayload("whsec_test", payload, now.Add(-10*time.Minute))
	if err := v.Verify(payload, stale); err == nil {
		t.Fatal("Replayed signature outside the tolerance window was accepted")
	}

	future := signPayload("whsec_test", payload, now.Add(10*time.Minute))
	if err := v.Verify(payload, future); err == nil {
		t.Fatal("Signature timestamped in the future was accepted")
	}
}

func TestVerify_MalformedHeader(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(t, "whsec_test", now)

	for _, header := range []string{"", "t=abc,v1=00", "v1=00", "t=123"} {
		if err := v.Verify([]byte("{}"), header); err == nil {
			t.Fatalf("Malformed header %q was accepted", header)
		}
	}
}

func TestNewHMACVerifier_EmptySecret(t *testing.T) {
	nopLogger := zerolog.Nop()
	if _, err := NewHMACVerifier("", time.Minute, &nopLogger); err == nil {
		t.Fatal("Verifier creation should fail with an empty secret")
	}
}
