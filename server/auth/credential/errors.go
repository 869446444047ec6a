package credential

import "errors"

var (
	// ErrAuthenticationRequired signals that no usable credential was found.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrInvalidCredential covers bad signature, issuer, audience or format.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrExpiredCredential is an invalid credential whose exp is in the past.
	ErrExpiredCredential = errors.New("expired credential")
	// ErrInsufficientScope means the credential is valid but lacks a required scope.
	ErrInsufficientScope = errors.New("insufficient scope")
	// ErrStorageUnavailable wraps backend I/O failures.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrMalformedClaims is reported when a credential cannot be decoded into a subject.
	ErrMalformedClaims = errors.New("malformed claims")
)

// IsUnauthenticated reports whether err maps to the request's unauthenticated outcome.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrAuthenticationRequired) ||
		errors.Is(err, ErrInvalidCredential) ||
		errors.Is(err, ErrExpiredCredential) ||
		errors.Is(err, ErrMalformedClaims)
}
