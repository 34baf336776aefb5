package partner

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// Signature verification errors
var (
	ErrMissingSignature = errors.New("missing partner signature")
	ErrBadSignature     = errors.New("invalid partner signature")
	ErrStaleTimestamp   = errors.New("partner timestamp outside tolerance")
)

// Verifier checks callback signatures: hex(sha256(timestamp + secret + body))
type Verifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier creates a callback verifier. A zero tolerance disables the
// timestamp freshness check.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	return &Verifier{
		secret:    secret,
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Sign computes the signature for a timestamp and body
func (v *Verifier) Sign(timestamp string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(timestamp))
	h.Write([]byte(v.secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify validates the signature headers of a callback. Verification is
// refused outright when no secret is configured.
func (v *Verifier) Verify(timestamp, signature string, body []byte) error {
	if v.secret == "" || timestamp == "" || signature == "" {
		return ErrMissingSignature
	}

	if v.tolerance > 0 {
		sec, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return ErrStaleTimestamp
		}
		skew := v.now().Sub(time.Unix(sec, 0))
		if skew < -v.tolerance || skew > v.tolerance {
			return ErrStaleTimestamp
		}
	}

	expected := v.Sign(timestamp, body)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return ErrBadSignature
	}
	return nil
}
