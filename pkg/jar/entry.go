package jar

import (
	"net/http"
	"time"
)

const (
	// DefaultTTL is how long a cookie without expiry is kept in Redis.
	DefaultTTL = 30 * 24 * time.Hour
)

// Entry is a persisted cookie.
type Entry struct {
	// Name is the cookie name (e.g. "SessionID")
	Name string `json:"name"`

	// Value is the cookie value
	Value string `json:"value"`

	// Path is the cookie path
	Path string `json:"path"`

	// Expires is when the cookie stops being valid
	Expires time.Time `json:"expires"`

	// StoredAt is when we persisted this cookie
	StoredAt time.Time `json:"stored_at"`
}

// IsExpired returns true if the cookie has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// EntryFromCookie converts a cookie set by the server into an Entry.
// Session cookies (no Expires, no MaxAge) are kept for DefaultTTL.
func EntryFromCookie(c *http.Cookie) *Entry {
	now := time.Now()
	entry := &Entry{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		StoredAt: now,
	}

	switch {
	case c.MaxAge < 0:
		entry.Expires = now
	case c.MaxAge > 0:
		entry.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
	case !c.Expires.IsZero():
		entry.Expires = c.Expires
	default:
		entry.Expires = now.Add(DefaultTTL)
	}

	return entry
}

// Cookie converts the entry back into a cookie for the in-memory jar.
func (e *Entry) Cookie() *http.Cookie {
	path := e.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:    e.Name,
		Value:   e.Value,
		Path:    path,
		Expires: e.Expires,
	}
}
