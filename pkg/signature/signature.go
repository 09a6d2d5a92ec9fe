// Package signature verifies the x-line-signature header of LINE webhooks.
//
// The header is base64(HMAC-SHA256(channelSecret, rawBody)). Verification must
// run on the body bytes exactly as received; decoding and re-encoding the JSON
// does not reproduce them.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

const Header = "x-line-signature"

var (
	ErrMissingSecret    = errors.New("channel secret is not configured")
	ErrMissingSignature = errors.New("missing signature header")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Sign returns the header value LINE would send for body.
func Sign(body []byte, secret string) string {
	return base64.StdEncoding.EncodeToString(compute(body, secret))
}

// Verify checks header against body. Missing inputs are reported before any
// hashing happens.
func Verify(body []byte, header, secret string) error {
	if secret == "" {
		return ErrMissingSecret
	}
	if header == "" {
		return ErrMissingSignature
	}
	got, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(got, compute(body, secret)) {
		return ErrInvalidSignature
	}
	return nil
}

// Valid is the boolean form of Verify.
func Valid(body []byte, header, secret string) bool {
	return Verify(body, header, secret) == nil
}

func compute(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
