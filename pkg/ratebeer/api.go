// Package ratebeer is the entry point of the client: it combines the transport,
// the session store and the login flow into feed, search and history accessors.
//
// Every accessor returning a sequence is lazy. Nothing is requested until the
// sequence is ranged over, and a failure ends the sequence with one terminal
// error instead of being returned synchronously.
package ratebeer

import (
	"context"
	"fmt"
	"iter"

	"github.com/Sternrassler/ratebeer-client/pkg/auth"
	"github.com/Sternrassler/ratebeer-client/pkg/client"
	"github.com/Sternrassler/ratebeer-client/pkg/model"
	"github.com/Sternrassler/ratebeer-client/pkg/pagination"
	"github.com/Sternrassler/ratebeer-client/pkg/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Transport is the remote side of the API. *client.Client implements it.
type Transport interface {
	auth.Routes
	auth.EvidenceStore

	FetchRatingsPage(ctx context.Context, page int) ([]model.UserRating, error)
	FetchFeed(ctx context.Context, kind model.FeedKind) ([]model.FeedItem, error)
	SearchBeers(ctx context.Context, userID int64, query string) ([]model.BeerSearchResult, error)
	FetchBeerDetails(ctx context.Context, beerID int64) ([]model.BeerDetails, error)
	FetchBeerRatings(ctx context.Context, beerID, userID int64, sort, page int) ([]model.BeerRating, error)
}

var _ Transport = (*client.Client)(nil)

// Sort orders accepted by the beer ratings endpoint.
const (
	SortMostRecent = 1
)

// Config holds the API configuration.
type Config struct {
	// Pagination controls the rating history download
	Pagination pagination.Config
}

// DefaultConfig returns the default API configuration.
func DefaultConfig() Config {
	return Config{
		Pagination: pagination.DefaultConfig(),
	}
}

// API exposes the RateBeer operations of one user session.
type API struct {
	transport Transport
	sessions  *session.Store
	gate      *auth.Gate
	flow      *auth.Flow
	config    Config
	logger    zerolog.Logger
}

// New creates the API. sessions is shared with every other component that
// needs the current user.
func New(transport Transport, sessions *session.Store, cfg Config) *API {
	flow := auth.NewFlow(transport, transport, sessions)
	return &API{
		transport: transport,
		sessions:  sessions,
		gate:      flow.Gate(),
		flow:      flow,
		config:    cfg,
		logger:    log.With().Str("component", "ratebeer-api").Logger(),
	}
}

// Login authenticates the user and starts a new session.
func (a *API) Login(ctx context.Context, username, password string) error {
	_, err := a.flow.Login(ctx, username, password)
	return err
}

// Logout ends the session remotely and locally.
func (a *API) Logout(ctx context.Context) error {
	return a.flow.Logout(ctx)
}

// Session returns a copy of the current session.
func (a *API) Session() session.Session {
	return a.sessions.Snapshot()
}

// IsAuthenticated reports whether the transport holds complete auth evidence.
func (a *API) IsAuthenticated() bool {
	return a.gate.IsAuthenticated()
}

// GetGlobalFeed returns the public activity feed. It never triggers a login.
func (a *API) GetGlobalFeed(ctx context.Context) iter.Seq2[model.FeedItem, error] {
	return single(ctx, func() ([]model.FeedItem, error) {
		return a.transport.FetchFeed(ctx, model.FeedGlobal)
	})
}

// GetLocalFeed returns the activity feed of the user's locale.
func (a *API) GetLocalFeed(ctx context.Context) iter.Seq2[model.FeedItem, error] {
	return a.feed(ctx, model.FeedLocal)
}

// GetFriendsFeed returns the activity feed of the user's friends.
func (a *API) GetFriendsFeed(ctx context.Context) iter.Seq2[model.FeedItem, error] {
	return a.feed(ctx, model.FeedFriends)
}

func (a *API) feed(ctx context.Context, kind model.FeedKind) iter.Seq2[model.FeedItem, error] {
	return withLogin(ctx, a, single(ctx, func() ([]model.FeedItem, error) {
		return a.transport.FetchFeed(ctx, kind)
	}))
}

// SearchBeers searches beers by name. Results are marked as rated for the
// current user when one is logged in.
func (a *API) SearchBeers(ctx context.Context, query string) iter.Seq2[model.BeerSearchResult, error] {
	return single(ctx, func() ([]model.BeerSearchResult, error) {
		return a.transport.SearchBeers(ctx, a.sessions.UserID(), NormalizeQuery(query))
	})
}

// GetBeerDetails returns the details of a beer, or client.ErrNotFound.
func (a *API) GetBeerDetails(ctx context.Context, beerID int64) (model.BeerDetails, error) {
	beers, err := a.transport.FetchBeerDetails(ctx, beerID)
	if err != nil {
		return model.BeerDetails{}, err
	}
	if len(beers) == 0 {
		return model.BeerDetails{}, fmt.Errorf("beer %d: %w", beerID, client.ErrNotFound)
	}
	return beers[0], nil
}

// GetBeerRatings returns the most recent ratings of a beer.
func (a *API) GetBeerRatings(ctx context.Context, beerID int64) iter.Seq2[model.BeerRating, error] {
	return single(ctx, func() ([]model.BeerRating, error) {
		return a.transport.FetchBeerRatings(ctx, beerID, 0, SortMostRecent, 1)
	})
}

// GetBeerUserRating returns the rating userID gave beerID, or nil when there is none.
func (a *API) GetBeerUserRating(ctx context.Context, beerID, userID int64) (*model.BeerRating, error) {
	ratings, err := a.transport.FetchBeerRatings(ctx, beerID, userID, SortMostRecent, 1)
	if err != nil {
		return nil, err
	}
	if len(ratings) == 0 {
		return nil, nil
	}
	return &ratings[0], nil
}

// GetUserRatings returns the complete rating history of the logged in user in
// page order. onProgress, when not nil, receives the completed share in percent
// before the items of each page are released.
//
// Without a logged in user the sequence is empty and nothing is requested.
func (a *API) GetUserRatings(ctx context.Context, onProgress pagination.ProgressFunc) iter.Seq2[model.UserRating, error] {
	return func(yield func(model.UserRating, error) bool) {
		var zero model.UserRating

		userID := a.sessions.UserID()
		if userID == 0 {
			a.logger.Debug().Msg("No user logged in, skipping rating history")
			return
		}

		if err := a.loginPrefix(ctx); err != nil {
			yield(zero, err)
			return
		}

		counts, err := a.transport.LookupRateCount(ctx, userID)
		if err != nil {
			yield(zero, fmt.Errorf("refresh rate count: %w", err))
			return
		}
		total := 0
		if len(counts) > 0 {
			total = counts[0].RateCount
		}

		syncID := uuid.NewString()
		a.logger.Info().
			Str("sync_id", syncID).
			Int64("user_id", userID).
			Int("rate_count", total).
			Int("total_pages", pagination.PageCount(total, a.config.Pagination.ItemsPerPage)).
			Msg("Fetching rating history")

		fetcher := pagination.NewFetcher[model.UserRating](a.transport.FetchRatingsPage, a.config.Pagination)
		fetched := 0
		for rating, err := range fetcher.All(ctx, total, onProgress) {
			if err != nil {
				a.logger.Error().Err(err).Str("sync_id", syncID).Int("fetched", fetched).Msg("Rating history failed")
				yield(zero, err)
				return
			}
			fetched++
			if !yield(rating, nil) {
				return
			}
		}

		a.logger.Info().Str("sync_id", syncID).Int("fetched", fetched).Msg("Rating history complete")
	}
}

// loginPrefix renews the auth cookies when the gate reports them missing.
func (a *API) loginPrefix(ctx context.Context) error {
	if a.gate.IsAuthenticated() {
		return nil
	}
	a.logger.Debug().Msg("Auth cookies missing, re-authenticating")
	return a.flow.Reauthenticate(ctx)
}

// withLogin prepends the login prefix to seq. The prefix yields no items and
// runs when iteration starts.
func withLogin[T any](ctx context.Context, a *API, seq iter.Seq2[T, error]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		if err := a.loginPrefix(ctx); err != nil {
			var zero T
			yield(zero, err)
			return
		}
		for v, err := range seq {
			if !yield(v, err) {
				return
			}
		}
	}
}

// single flattens the result of one request into a sequence.
func single[T any](ctx context.Context, call func() ([]T, error)) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if err := ctx.Err(); err != nil {
			yield(zero, err)
			return
		}

		items, err := call()
		if err != nil {
			yield(zero, err)
			return
		}
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Collect drains seq into a slice. On a terminal error the items received so
// far are discarded.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var items []T
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
