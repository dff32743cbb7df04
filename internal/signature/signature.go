package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the hex HMAC-SHA256 digest of payload under secret. The
// payload must be the exact bytes sent on the wire; re-serializing before
// signing changes whitespace or key order and breaks verification.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the digest and compares it in constant time.
func Verify(payload []byte, sig, secret string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(sig))
}
