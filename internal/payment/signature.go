// Package payment verifies signed confirmations issued by the payment gateway.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SecretSource supplies the shared HMAC secret agreed with the gateway.
type SecretSource interface {
	Secret(ctx context.Context) ([]byte, error)
}

// StaticSecret is a SecretSource backed by an in-memory value.
type StaticSecret []byte

func (s StaticSecret) Secret(context.Context) ([]byte, error) { return s, nil }

// Verifier checks gateway signatures. It has no side effects.
type Verifier struct {
	secrets SecretSource
}

func NewVerifier(secrets SecretSource) *Verifier {
	return &Verifier{secrets: secrets}
}

// Verify reports whether signature is the hex HMAC-SHA256 of
// gatewayOrderID + "|" + gatewayPaymentID under the shared secret.
// Malformed input and an unavailable or empty secret all yield false.
func (v *Verifier) Verify(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) bool {
	if v == nil || v.secrets == nil {
		return false
	}
	secret, err := v.secrets.Secret(ctx)
	if err != nil || len(secret) == 0 {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(got, mac(secret, gatewayOrderID, gatewayPaymentID))
}

// Sign returns the hex signature the gateway would send for the pair.
func Sign(secret []byte, gatewayOrderID, gatewayPaymentID string) string {
	return hex.EncodeToString(mac(secret, gatewayOrderID, gatewayPaymentID))
}

func mac(secret []byte, gatewayOrderID, gatewayPaymentID string) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return h.Sum(nil)
}
