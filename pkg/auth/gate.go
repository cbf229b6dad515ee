// Package auth decides whether the client holds a usable RateBeer session and
// runs the login, silent re-authentication and logout exchanges.
package auth

import "github.com/Sternrassler/ratebeer-client/pkg/jar"

// EvidenceSource exposes the auth cookies currently held by the transport.
type EvidenceSource interface {
	AuthEvidence() jar.Evidence
}

// Gate reports whether auth evidence is complete.
type Gate struct {
	source EvidenceSource
}

// NewGate creates a gate reading from source.
func NewGate(source EvidenceSource) *Gate {
	return &Gate{source: source}
}

// IsAuthenticated returns true iff both the identity and the session token are present.
func (g *Gate) IsAuthenticated() bool {
	if g == nil || g.source == nil {
		return false
	}
	return Complete(g.source.AuthEvidence())
}

// Complete reports whether ev carries both tokens.
func Complete(ev jar.Evidence) bool {
	return ev.IdentityToken != "" && ev.SessionToken != ""
}
