package jar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Names of the cookies that make up the auth evidence.
const (
	CookieUserID    = "UserID"
	CookieSessionID = "SessionID"
)

// Evidence is the auth token pair currently held by the jar.
// Empty strings mean the token is absent.
type Evidence struct {
	IdentityToken string
	SessionToken  string
}

// EvidenceFromCookies returns the auth token pair carried by cookies.
// Later cookies override earlier ones; a cookie that expires immediately
// clears its token.
func EvidenceFromCookies(cookies []*http.Cookie) Evidence {
	var ev Evidence
	for _, c := range cookies {
		value := c.Value
		if c.MaxAge < 0 {
			value = ""
		}
		switch c.Name {
		case CookieUserID:
			ev.IdentityToken = value
		case CookieSessionID:
			ev.SessionToken = value
		}
	}
	return ev
}

// Jar is an http.CookieJar that mirrors the auth cookies of one site into Redis.
type Jar struct {
	mu      sync.Mutex
	inner   *cookiejar.Jar
	site    *url.URL
	store   *Store
	pending map[string]*http.Cookie
	logger  zerolog.Logger
}

// New creates a jar for site. A nil store keeps cookies in memory only.
func New(site *url.URL, store *Store) (*Jar, error) {
	if site == nil || site.Host == "" {
		return nil, fmt.Errorf("site url with host is required")
	}

	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Jar{
		inner:   inner,
		site:    &url.URL{Scheme: site.Scheme, Host: site.Host, Path: "/"},
		store:   store,
		pending: make(map[string]*http.Cookie),
		logger:  log.With().Str("component", "cookie-jar").Logger(),
	}, nil
}

// SetCookies implements http.CookieJar. Changes to tracked cookies of the
// site are remembered until the next Flush.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.inner.SetCookies(u, cookies)

	if !strings.EqualFold(u.Hostname(), j.site.Hostname()) {
		return
	}
	for _, c := range cookies {
		if isTracked(c.Name) {
			j.pending[c.Name] = c
		}
	}
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	inner := j.inner
	j.mu.Unlock()
	return inner.Cookies(u)
}

// AuthEvidence returns the auth token pair for the site.
func (j *Jar) AuthEvidence() Evidence {
	var ev Evidence
	for _, c := range j.Cookies(j.site) {
		switch c.Name {
		case CookieUserID:
			ev.IdentityToken = c.Value
		case CookieSessionID:
			ev.SessionToken = c.Value
		}
	}
	return ev
}

// Flush writes tracked cookie changes through to Redis.
func (j *Jar) Flush(ctx context.Context) error {
	j.mu.Lock()
	pending := j.pending
	j.pending = make(map[string]*http.Cookie)
	j.mu.Unlock()

	if j.store == nil || len(pending) == 0 {
		return nil
	}

	var errs []error
	for name, c := range pending {
		entry := EntryFromCookie(c)
		if err := j.store.Set(ctx, j.key(name), entry); err != nil {
			errs = append(errs, fmt.Errorf("persist cookie %s: %w", name, err))
			continue
		}
		j.logger.Debug().
			Str("cookie", name).
			Dur("ttl", entry.TTL()).
			Msg("Persisted auth cookie")
	}
	return errors.Join(errs...)
}

// Load restores persisted auth cookies into the in-memory jar.
func (j *Jar) Load(ctx context.Context) error {
	if j.store == nil {
		return nil
	}

	restored := make([]*http.Cookie, 0, 2)
	for _, name := range []string{CookieUserID, CookieSessionID} {
		entry, err := j.store.Get(ctx, j.key(name))
		if errors.Is(err, ErrNotStored) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load cookie %s: %w", name, err)
		}
		restored = append(restored, entry.Cookie())
	}

	if len(restored) == 0 {
		return nil
	}

	j.mu.Lock()
	j.inner.SetCookies(j.site, restored)
	j.mu.Unlock()

	j.logger.Info().Int("cookies", len(restored)).Msg("Restored auth cookies")
	return nil
}

// Clear drops every cookie of the jar and deletes the persisted auth cookies.
func (j *Jar) Clear(ctx context.Context) error {
	fresh, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("create cookie jar: %w", err)
	}

	j.mu.Lock()
	j.inner = fresh
	j.pending = make(map[string]*http.Cookie)
	j.mu.Unlock()

	if j.store == nil {
		return nil
	}
	return j.store.Delete(ctx, j.key(CookieUserID), j.key(CookieSessionID))
}

func (j *Jar) key(name string) Key {
	return Key{Host: j.site.Hostname(), Name: name}
}

func isTracked(name string) bool {
	return name == CookieUserID || name == CookieSessionID
}
