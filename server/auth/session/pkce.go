package session

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

const (
	methodPlain = "plain"
	methodS256  = "S256"
)

func validChallengeMethod(method string) bool {
	return method == methodPlain || method == methodS256
}

func verifyPKCE(challenge, method, verifier string) bool {
	if challenge == "" {
		return true
	}
	if verifier == "" {
		return false
	}
	expected := verifier
	if method == methodS256 {
		sum := sha256.Sum256([]byte(verifier))
		expected = base64.RawURLEncoding.EncodeToString(sum[:])
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(challenge)) == 1
}
