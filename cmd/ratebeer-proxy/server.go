package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/ratebeer-client/pkg/client"
	"github.com/Sternrassler/ratebeer-client/pkg/metrics"
	"github.com/Sternrassler/ratebeer-client/pkg/model"
	"github.com/Sternrassler/ratebeer-client/pkg/ratebeer"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const requestTimeout = 30 * time.Second

// upgrader keeps gorilla's same-origin check; clients without an Origin
// header are accepted.
var upgrader = websocket.Upgrader{}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	UserID        int64  `json:"user_id"`
	UserName      string `json:"user_name"`
	RateCount     int    `json:"rate_count"`
	Authenticated bool   `json:"authenticated"`
}

// streamMessage is one frame of the rating history websocket.
type streamMessage struct {
	Type     string            `json:"type"`
	Percent  float64           `json:"percent,omitempty"`
	Rating   *model.UserRating `json:"rating,omitempty"`
	Count    int               `json:"count,omitempty"`
	Error    string            `json:"error,omitempty"`
	SyncedAt *time.Time        `json:"synced_at,omitempty"`
}

// server exposes the API over HTTP.
type server struct {
	api    *ratebeer.API
	ready  func(ctx context.Context) error
	logger zerolog.Logger
}

// newServer builds the echo instance with every route registered.
// ready reports whether backing services are reachable.
func newServer(api *ratebeer.API, ready func(ctx context.Context) error, logger zerolog.Logger) *echo.Echo {
	s := &server{api: api, ready: ready, logger: logger}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler

	e.GET("/health", s.health)
	e.GET("/ready", s.readiness)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	e.POST("/login", s.login)
	e.POST("/logout", s.logout)
	e.GET("/session", s.session)

	e.GET("/feeds/:kind", s.feed)
	e.GET("/beers", s.searchBeers)
	e.GET("/beers/:id", s.beerDetails)
	e.GET("/beers/:id/ratings", s.beerRatings)
	e.GET("/beers/:id/ratings/:user", s.beerUserRating)

	e.GET("/ratings", s.ratings)
	e.GET("/ws/ratings", s.ratingsStream)

	return e
}

func (s *server) health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *server) readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := s.ready(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Readiness check failed")
		return c.String(http.StatusServiceUnavailable, "Redis unavailable")
	}
	return c.String(http.StatusOK, "OK")
}

func (s *server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid login request")
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := s.api.Login(ctx, req.Username, req.Password); err != nil {
		return err
	}
	return s.session(c)
}

func (s *server) logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := s.api.Logout(ctx); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *server) session(c echo.Context) error {
	sess := s.api.Session()
	return c.JSON(http.StatusOK, sessionResponse{
		UserID:        sess.UserID,
		UserName:      sess.UserName,
		RateCount:     sess.RateCount,
		Authenticated: s.api.IsAuthenticated(),
	})
}

func (s *server) feed(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	var items []model.FeedItem
	var err error
	switch c.Param("kind") {
	case model.FeedGlobal.String():
		items, err = ratebeer.Collect(s.api.GetGlobalFeed(ctx))
	case model.FeedLocal.String():
		items, err = ratebeer.Collect(s.api.GetLocalFeed(ctx))
	case model.FeedFriends.String():
		items, err = ratebeer.Collect(s.api.GetFriendsFeed(ctx))
	default:
		return echo.NewHTTPError(http.StatusNotFound, "unknown feed")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nonNil(items))
}

func (s *server) searchBeers(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter q is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	results, err := ratebeer.Collect(s.api.SearchBeers(ctx, query))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nonNil(results))
}

func (s *server) beerDetails(c echo.Context) error {
	beerID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	beer, err := s.api.GetBeerDetails(ctx, beerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, beer)
}

func (s *server) beerRatings(c echo.Context) error {
	beerID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	ratings, err := ratebeer.Collect(s.api.GetBeerRatings(ctx, beerID))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nonNil(ratings))
}

func (s *server) beerUserRating(c echo.Context) error {
	beerID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	userID, err := pathID(c, "user")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	rating, err := s.api.GetBeerUserRating(ctx, beerID, userID)
	if err != nil {
		return err
	}
	if rating == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, rating)
}

// ratings returns the complete rating history in one response.
func (s *server) ratings(c echo.Context) error {
	ratings, err := ratebeer.Collect(s.api.GetUserRatings(c.Request().Context(), nil))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nonNil(ratings))
}

// ratingsStream streams the rating history over a websocket: a progress frame
// per page followed by the page's ratings, then a done or error frame.
// Closing the connection cancels the download.
func (s *server) ratingsStream(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Websocket upgrade failed")
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var writeErr error
	send := func(msg streamMessage) bool {
		if writeErr != nil {
			return false
		}
		if writeErr = conn.WriteJSON(msg); writeErr != nil {
			cancel()
			return false
		}
		return true
	}

	count := 0
	onProgress := func(percent float64) {
		send(streamMessage{Type: "progress", Percent: percent})
	}
	for rating, err := range s.api.GetUserRatings(ctx, onProgress) {
		if err != nil {
			// An error frame ends the stream; no done frame follows it.
			if send(streamMessage{Type: "error", Error: err.Error()}) {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "sync failed"))
			}
			s.logger.Warn().Err(err).Int("sent", count).Msg("Rating stream aborted")
			return nil
		}
		if !send(streamMessage{Type: "rating", Rating: &rating}) {
			break
		}
		count++
	}

	if writeErr != nil {
		s.logger.Debug().Err(writeErr).Int("sent", count).Msg("Rating stream closed by peer")
		return nil
	}

	now := time.Now().UTC()
	send(streamMessage{Type: "done", Count: count, SyncedAt: &now})
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}

// errorHandler maps client errors onto HTTP status codes.
func (s *server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		_ = c.JSON(httpErr.Code, map[string]any{"error": httpErr.Message})
		return
	}

	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
	}
	_ = c.JSON(status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, client.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, client.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, client.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, client.ErrNetwork):
		return http.StatusBadGateway
	default:
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
