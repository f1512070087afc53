// Package auth signs outbound merchant notifications and verifies inbound
// signed requests. Merchants check X-FoodCourt-Signature against the shared
// secret before trusting a settlement callback.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	// HeaderSignature carries hex-encoded HMAC-SHA256 over "<timestamp>.<body>".
	HeaderSignature = "X-FoodCourt-Signature"
	// HeaderTimestamp is the unix-seconds timestamp bound into the signature.
	HeaderTimestamp = "X-FoodCourt-Timestamp"
	// HeaderDeliveryID identifies the delivery attempt for idempotent handling.
	HeaderDeliveryID = "X-FoodCourt-Delivery"

	// MaxClockSkew bounds how stale a signed request may be.
	MaxClockSkew = 5 * time.Minute
)

// Signer produces notification signatures with a shared secret.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured. Unsigned delivery is
// allowed when merchants have not exchanged a secret yet.
func (s *Signer) Enabled() bool { return len(s.secret) > 0 }

// Sign returns the hex signature for a payload at the given timestamp.
func (s *Signer) Sign(timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignRequest stamps signature headers onto an outbound notification.
func (s *Signer) SignRequest(req *http.Request, deliveryID string, payload []byte) {
	now := time.Now().Unix()
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(now, 10))
	req.Header.Set(HeaderDeliveryID, deliveryID)
	if s.Enabled() {
		req.Header.Set(HeaderSignature, s.Sign(now, payload))
	}
}

// Verify checks a received signature against the payload. Used by the
// webhook test harness and available to merchant-side integrations.
func (s *Signer) Verify(timestampHeader, signature string, payload []byte, now time.Time) error {
	ts, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return fmt.Errorf("auth: bad timestamp %q", timestampHeader)
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > MaxClockSkew || age < -MaxClockSkew {
		return fmt.Errorf("auth: timestamp outside allowed skew")
	}
	expected := s.Sign(ts, payload)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("auth: signature mismatch")
	}
	return nil
}
