package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Sternrassler/ratebeer-client/pkg/client"
	"github.com/Sternrassler/ratebeer-client/pkg/jar"
	"github.com/Sternrassler/ratebeer-client/pkg/model"
	"github.com/Sternrassler/ratebeer-client/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for authentication exchanges.
var (
	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratebeer_logins_total",
		Help: "Total login attempts by outcome",
	}, []string{"outcome"})

	reauthTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratebeer_reauthentications_total",
		Help: "Total silent re-authentications by outcome",
	}, []string{"outcome"})
)

// Routes are the remote operations a login needs.
type Routes interface {
	LookupUser(ctx context.Context, username string) ([]model.UserInfo, error)
	// ExchangeCredentials signs in and returns the auth cookies set by the
	// sign in response, not the ones held from earlier sessions.
	ExchangeCredentials(ctx context.Context, username, password string, persist bool) (jar.Evidence, error)
	LookupRateCount(ctx context.Context, userID int64) ([]model.UserRateCount, error)
	Logout(ctx context.Context) error
}

// EvidenceStore reads and drops the auth cookies.
type EvidenceStore interface {
	EvidenceSource
	ClearAuthEvidence(ctx context.Context) error
}

// Flow runs the authentication exchanges against the service and commits
// their outcome to the session store.
type Flow struct {
	routes   Routes
	evidence EvidenceStore
	sessions *session.Store
	gate     *Gate
	logger   zerolog.Logger
}

// NewFlow creates a login flow.
func NewFlow(routes Routes, evidence EvidenceStore, sessions *session.Store) *Flow {
	return &Flow{
		routes:   routes,
		evidence: evidence,
		sessions: sessions,
		gate:     NewGate(evidence),
		logger:   log.With().Str("component", "auth").Logger(),
	}
}

// Login authenticates username and commits the new session.
//
// The user lookup and the credential exchange run concurrently. The session
// store is only written when every step succeeded.
func (f *Flow) Login(ctx context.Context, username, password string) (session.Session, error) {
	var (
		wg          sync.WaitGroup
		users       []model.UserInfo
		received    jar.Evidence
		lookupErr   error
		exchangeErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		users, lookupErr = f.routes.LookupUser(ctx, username)
	}()
	go func() {
		defer wg.Done()
		received, exchangeErr = f.routes.ExchangeCredentials(ctx, username, password, true)
	}()
	wg.Wait()

	if err := errors.Join(lookupErr, exchangeErr); err != nil {
		loginsTotal.WithLabelValues("error").Inc()
		return session.Session{}, fmt.Errorf("login %s: %w", username, err)
	}

	if len(users) == 0 {
		loginsTotal.WithLabelValues("unknown_user").Inc()
		return session.Session{}, fmt.Errorf("%w: no user named %q", client.ErrAuth, username)
	}
	user := users[0]

	if !Complete(received) {
		loginsTotal.WithLabelValues("rejected").Inc()
		return session.Session{}, fmt.Errorf("%w: credentials rejected for %q", client.ErrAuth, username)
	}

	counts, err := f.routes.LookupRateCount(ctx, user.UserID)
	if err != nil {
		loginsTotal.WithLabelValues("error").Inc()
		return session.Session{}, fmt.Errorf("%w: rate count of user %d: %w", client.ErrAuth, user.UserID, err)
	}
	if len(counts) == 0 {
		loginsTotal.WithLabelValues("error").Inc()
		return session.Session{}, fmt.Errorf("%w: no rate count for user %d", client.ErrAuth, user.UserID)
	}

	sess := session.Session{
		UserID:           user.UserID,
		UserName:         username,
		CredentialSecret: password,
		RateCount:        counts[0].RateCount,
	}
	if err := f.sessions.Start(ctx, sess); err != nil {
		loginsTotal.WithLabelValues("error").Inc()
		return session.Session{}, fmt.Errorf("login %s: %w", username, err)
	}

	loginsTotal.WithLabelValues("success").Inc()
	return sess, nil
}

// Reauthenticate repeats the credential exchange with the stored credentials
// to renew the auth cookies. The session store is not modified.
func (f *Flow) Reauthenticate(ctx context.Context) error {
	sess := f.sessions.Snapshot()
	if !sess.HasCredentials() {
		reauthTotal.WithLabelValues("no_credentials").Inc()
		return fmt.Errorf("%w: no stored credentials", client.ErrAuth)
	}

	received, err := f.routes.ExchangeCredentials(ctx, sess.UserName, sess.CredentialSecret, true)
	if err != nil {
		reauthTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("re-authenticate: %w", err)
	}

	if !Complete(received) {
		reauthTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("%w: stored credentials rejected for %q", client.ErrAuth, sess.UserName)
	}

	f.logger.Debug().Int64("user_id", sess.UserID).Msg("Auth cookies renewed")
	reauthTotal.WithLabelValues("success").Inc()
	return nil
}

// Logout signs out remotely, then drops the auth cookies and the session.
// A transport failure returns before any local state is touched.
func (f *Flow) Logout(ctx context.Context) error {
	if err := f.routes.Logout(ctx); err != nil {
		return err
	}

	if err := f.evidence.ClearAuthEvidence(ctx); err != nil {
		return fmt.Errorf("clear auth cookies: %w", err)
	}
	if err := f.sessions.End(ctx); err != nil {
		return err
	}
	return nil
}

// Gate returns the gate the flow checks evidence with.
func (f *Flow) Gate() *Gate {
	return f.gate
}
