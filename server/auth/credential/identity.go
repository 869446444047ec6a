package credential

import (
	"time"
)

// Source names where a request's credential came from.
type Source string

const (
	SourceHeader     Source = "header"
	SourceConnection Source = "connection"
	SourceSession    Source = "session"
	SourcePAT        Source = "pat"
)

// Identity is the validated (subject, scopes, token) tuple attached to a request.
type Identity struct {
	Token     string
	Subject   string
	Scopes    []string
	ClientID  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Source    Source
}

// Expired reports whether the identity carries an expiry at or before now.
func (i *Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// MissingScopes returns the required scopes not granted to the identity.
func (i *Identity) MissingScopes(required ...string) []string {
	if len(required) == 0 {
		return nil
	}
	granted := make(map[string]bool, len(i.Scopes))
	for _, scope := range i.Scopes {
		granted[scope] = true
	}
	var missing []string
	for _, scope := range required {
		if scope != "" && !granted[scope] {
			missing = append(missing, scope)
		}
	}
	return missing
}

// Clone returns a copy with the given source.
func (i *Identity) Clone(source Source) *Identity {
	ret := *i
	ret.Scopes = append([]string(nil), i.Scopes...)
	ret.Source = source
	return &ret
}
