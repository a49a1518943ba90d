package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrNoSecret signals the shared webhook secret is not configured. The
// verifier fails closed: an unset secret never degrades into an implicit pass.
var ErrNoSecret = errors.New("webhook: signature secret not configured")

// VerifySignature checks a hex-encoded HMAC-SHA256 signature over the exact
// raw request body. Malformed signatures (bad hex, wrong length) are a plain
// verification failure, never an error.
func VerifySignature(rawBody []byte, signatureHex string, secret []byte) (bool, error) {
	if len(secret) == 0 {
		return false, ErrNoSecret
	}

	provided, err := hex.DecodeString(signatureHex)
	if err != nil || len(provided) != sha256.Size {
		return false, nil
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(rawBody)
	return hmac.Equal(mac.Sum(nil), provided), nil
}
