package jar

import (
	"fmt"
	"strings"
)

// Key identifies a persisted cookie.
type Key struct {
	// Host is the site host the cookie belongs to (e.g. "www.ratebeer.com")
	Host string

	// Name is the cookie name
	Name string
}

// String generates the Redis key.
// Format: ratebeer:cookie:host:name
//
// Example:
//
//	ratebeer:cookie:www.ratebeer.com:SessionID
func (k Key) String() string {
	host := strings.ToLower(strings.TrimSpace(k.Host))
	return fmt.Sprintf("ratebeer:cookie:%s:%s", host, k.Name)
}
