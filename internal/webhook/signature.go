package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrBadSignature is returned when a webhook signature does not match the
// body it accompanies.
var ErrBadSignature = errors.New("webhook: invalid signature")

// VerifyMemberfulSignature checks the hex-encoded HMAC-SHA256 digest the
// membership platform sends alongside each delivery.
func VerifyMemberfulSignature(header string, body []byte, secret string) error {
	if header == "" {
		return ErrBadSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(header), []byte(want)) {
		return ErrBadSignature
	}
	return nil
}
