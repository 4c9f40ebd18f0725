package processor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// DefaultWebhookTolerance is how old a signed webhook timestamp may be.
const DefaultWebhookTolerance = 5 * time.Minute

var (
	ErrInvalidSignature = errors.New("webhook signature does not match")
	ErrExpiredSignature = errors.New("webhook timestamp outside tolerance")
)

// Event is a webhook event envelope. Account is set for events that happened
// on a connected account.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Account string `json:"account,omitempty"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// VerifySignature checks a Stripe-Signature header ("t=...,v1=...") against
// payload using HMAC-SHA256 with secret. Any v1 entry may match.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return ErrInvalidSignature
	}

	secs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if tolerance > 0 {
		if signed := time.Unix(secs, 0); now.Sub(signed) > tolerance || signed.Sub(now) > tolerance {
			return ErrExpiredSignature
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, s := range sigs {
		sigBytes, err := hex.DecodeString(s)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, sigBytes) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// Sign produces a Stripe-Signature header value for payload. Used by tests
// and local tooling that replays events.
func Sign(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}
