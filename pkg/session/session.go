// Package session holds the process-wide identity of the logged in RateBeer user.
//
// A Store is created once by the application and passed by reference to every
// component that needs the session. It is never reached through a global.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrIncomplete is returned when a session misses one of its identity fields.
var ErrIncomplete = errors.New("incomplete session")

// Session is the locally cached identity of the current user.
type Session struct {
	// UserID is the RateBeer user id (0 when anonymous).
	UserID int64 `json:"user_id"`

	// UserName is the login name used for the credential exchange.
	UserName string `json:"user_name"`

	// CredentialSecret is the password used to re-establish auth cookies.
	CredentialSecret string `json:"-"`

	// RateCount is the last known number of ratings of the user.
	RateCount int `json:"rate_count"`
}

// Authenticated reports whether the session carries a full identity.
func (s Session) Authenticated() bool {
	return s.UserID != 0 && s.UserName != "" && s.CredentialSecret != ""
}

// HasCredentials reports whether the session can be used for a credential exchange.
func (s Session) HasCredentials() bool {
	return s.UserName != "" && s.CredentialSecret != ""
}

// Validate checks the all-or-nothing identity invariant.
func (s Session) Validate() error {
	set := 0
	if s.UserID != 0 {
		set++
	}
	if s.UserName != "" {
		set++
	}
	if s.CredentialSecret != "" {
		set++
	}
	if set != 0 && set != 3 {
		return fmt.Errorf("%w: user id, user name and secret must be set together", ErrIncomplete)
	}
	return nil
}

// Persister saves the session outside the process so it survives restarts.
type Persister interface {
	// Load returns the saved session and whether one was found.
	Load(ctx context.Context) (Session, bool, error)

	// Save replaces the saved session atomically.
	Save(ctx context.Context, s Session) error

	// Delete removes the saved session. Deleting a missing session is not an error.
	Delete(ctx context.Context) error
}

// Store is the single mutable cell holding the current session.
//
// Writes (Start, End, Restore) swap the whole value under a write lock, so
// readers always see either the old or the new session. Concurrent logins
// are not supported: two Start calls may race and the last one wins.
type Store struct {
	mu        sync.RWMutex
	current   Session
	persister Persister
	logger    zerolog.Logger
}

// NewStore creates an empty store. The persister may be nil for a purely
// in-memory session.
func NewStore(persister Persister) *Store {
	return &Store{
		persister: persister,
		logger:    log.With().Str("component", "session-store").Logger(),
	}
}

// Snapshot returns a copy of the current session.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// UserID returns the current user id, or 0 when nobody is logged in.
func (s *Store) UserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.UserID
}

// Start commits a freshly authenticated session.
// The session is persisted before it becomes visible; on error the store
// keeps its previous value.
func (s *Store) Start(ctx context.Context, sess Session) error {
	if !sess.Authenticated() {
		return fmt.Errorf("%w: cannot start anonymous session", ErrIncomplete)
	}

	if s.persister != nil {
		if err := s.persister.Save(ctx, sess); err != nil {
			return fmt.Errorf("persist session: %w", err)
		}
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.logger.Info().
		Int64("user_id", sess.UserID).
		Str("user_name", sess.UserName).
		Int("rate_count", sess.RateCount).
		Msg("Session started")

	return nil
}

// End clears the session, both persisted and in memory.
func (s *Store) End(ctx context.Context) error {
	if s.persister != nil {
		if err := s.persister.Delete(ctx); err != nil {
			return fmt.Errorf("delete persisted session: %w", err)
		}
	}

	s.mu.Lock()
	previous := s.current.UserID
	s.current = Session{}
	s.mu.Unlock()

	s.logger.Info().Int64("user_id", previous).Msg("Session ended")
	return nil
}

// Restore loads a previously persisted session into memory.
// It returns false when nothing was persisted.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	if s.persister == nil {
		return false, nil
	}

	sess, found, err := s.persister.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load persisted session: %w", err)
	}
	if !found {
		s.logger.Debug().Msg("No persisted session")
		return false, nil
	}
	if err := sess.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.logger.Info().Int64("user_id", sess.UserID).Msg("Session restored")
	return true, nil
}
