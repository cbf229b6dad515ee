package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/ratebeer-client/internal/testutil"
	"github.com/Sternrassler/ratebeer-client/pkg/client"
	"github.com/Sternrassler/ratebeer-client/pkg/model"
	"github.com/Sternrassler/ratebeer-client/pkg/ratebeer"
	"github.com/Sternrassler/ratebeer-client/pkg/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type testEnv struct {
	echo     *echo.Echo
	mock     *testutil.MockRateBeer
	redis    *redis.Client
	sessions *session.Store
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	mock := testutil.NewMockRateBeer(42, "hopfan", "pw")
	t.Cleanup(mock.Close)

	cfg := client.DefaultConfig(redisClient, "test-key")
	cfg.BaseURL = mock.URL()
	cfg.RateLimit.Requests = 0
	rbClient, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { rbClient.Close() })

	var key [32]byte
	copy(key[:], "0123456789abcdef0123456789abcdef")
	sessions := session.NewStore(session.NewRedisPersister(redisClient, session.DefaultRedisKey, key))

	apiCfg := ratebeer.DefaultConfig()
	apiCfg.Pagination.MaxConcurrency = 2
	api := ratebeer.New(rbClient, sessions, apiCfg)

	ready := func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	return &testEnv{
		echo:     newServer(api, ready, zerolog.Nop()),
		mock:     mock,
		redis:    redisClient,
		sessions: sessions,
	}
}

func (env *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) login(t *testing.T) {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/login", `{"username":"hopfan","password":"pw"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got %s", rec.Body.String())
	}
}

func TestReadyEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("ready", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/ready", "")
		if rec.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", rec.Code)
		}
	})

	t.Run("not_ready_redis_down", func(t *testing.T) {
		e := newServer(nil, func(context.Context) error { return errors.New("connection refused") }, zerolog.Nop())
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", rec.Code)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	env.mock.SetJSON(client.PathFeed, []model.FeedItem{{ActivityID: 1}})

	if rec := env.do(t, http.MethodGet, "/feeds/global", ""); rec.Code != http.StatusOK {
		t.Fatalf("feed status = %d", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, metric := range []string{"ratebeer_requests_total", "ratebeer_request_duration_seconds"} {
		if !strings.Contains(body, metric) {
			t.Errorf("Expected metric %s in output", metric)
		}
	}
}

func TestLogin(t *testing.T) {
	env := setupTestEnv(t)
	env.mock.SetRatingHistory(250)

	rec := env.do(t, http.MethodPost, "/login", `{"username":"hopfan","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/login", `{"username":"hopfan","password":"pw"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}

	var sess sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	want := sessionResponse{UserID: 42, UserName: "hopfan", RateCount: 250, Authenticated: true}
	if sess != want {
		t.Errorf("session = %+v, want %+v", sess, want)
	}

	// the cookies of the first login are still held while the second one is rejected
	rec = env.do(t, http.MethodPost, "/login", `{"username":"hopfan","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password while signed in status = %d, want 401", rec.Code)
	}
	if got := env.sessions.Snapshot(); got.UserID != 42 || got.CredentialSecret != "pw" {
		t.Errorf("session after rejected login = %+v, want the first login", got)
	}

	rec = env.do(t, http.MethodPost, "/logout", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("logout status = %d, want 204", rec.Code)
	}
	if env.sessions.UserID() != 0 {
		t.Errorf("UserID() = %d after logout", env.sessions.UserID())
	}
}

func TestLogin_BadRequest(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.do(t, http.MethodPost, "/login", `{"username":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestFeeds(t *testing.T) {
	env := setupTestEnv(t)
	env.mock.SetRatingHistory(1)
	env.mock.SetJSON(client.PathFeed, []model.FeedItem{{ActivityID: 1}, {ActivityID: 2}})

	rec := env.do(t, http.MethodGet, "/feeds/global", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("global feed status = %d", rec.Code)
	}
	var items []model.FeedItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil || len(items) != 2 {
		t.Errorf("global feed = %s", rec.Body.String())
	}
	if n := env.mock.RequestCount(client.PathSignIn); n != 0 {
		t.Errorf("global feed signed in %d times", n)
	}

	rec = env.do(t, http.MethodGet, "/feeds/local", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("local feed without credentials status = %d, want 401", rec.Code)
	}

	env.login(t)
	signIns := env.mock.RequestCount(client.PathSignIn)
	rec = env.do(t, http.MethodGet, "/feeds/friends", "")
	if rec.Code != http.StatusOK {
		t.Errorf("friends feed status = %d", rec.Code)
	}
	if n := env.mock.RequestCount(client.PathSignIn); n != signIns {
		t.Errorf("friends feed signed in again (%d -> %d)", signIns, n)
	}

	rec = env.do(t, http.MethodGet, "/feeds/unknown", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown feed status = %d, want 404", rec.Code)
	}
}

func TestBeerEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	env.mock.SetJSON(client.PathBeerDetails, []model.BeerDetails{})
	env.mock.SetJSON(client.PathBeerRatings, []model.BeerRating{})
	env.mock.SetJSON(client.PathBeerSearch, []model.BeerSearchResult{{BeerID: 9, BeerName: "Orval"}})

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{name: "details not found", path: "/beers/9", status: http.StatusNotFound},
		{name: "invalid id", path: "/beers/abc", status: http.StatusBadRequest},
		{name: "ratings", path: "/beers/9/ratings", status: http.StatusOK},
		{name: "no user rating", path: "/beers/9/ratings/42", status: http.StatusNoContent},
		{name: "search", path: "/beers?q=Orval", status: http.StatusOK},
		{name: "search without query", path: "/beers", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, "")
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestRatingsEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	env.mock.SetRatingHistory(150)

	rec := env.do(t, http.MethodGet, "/ratings", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("ratings without user = %d %s, want empty list", rec.Code, rec.Body.String())
	}

	env.login(t)
	rec = env.do(t, http.MethodGet, "/ratings", "")
	var ratings []model.UserRating
	if err := json.Unmarshal(rec.Body.Bytes(), &ratings); err != nil {
		t.Fatalf("decode ratings: %v", err)
	}
	if len(ratings) != 150 {
		t.Errorf("ratings = %d, want 150", len(ratings))
	}
}

func TestRatingsWebSocket(t *testing.T) {
	env := setupTestEnv(t)
	env.mock.SetRatingHistory(250)
	env.login(t)

	srv := httptest.NewServer(env.echo)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/ratings", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var progress []float64
	var ratings []int64
	var done streamMessage
	for done.Type == "" {
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		switch msg.Type {
		case "progress":
			if len(ratings) != len(progress)*100 {
				t.Errorf("progress %.2f arrived after %d ratings", msg.Percent, len(ratings))
			}
			progress = append(progress, msg.Percent)
		case "rating":
			ratings = append(ratings, msg.Rating.RatingID)
		case "error":
			t.Fatalf("stream error: %s", msg.Error)
		case "done":
			done = msg
		}
	}

	if len(progress) != 3 || progress[2] != 100 {
		t.Errorf("progress = %v, want three frames ending at 100", progress)
	}
	if len(ratings) != 250 || done.Count != 250 {
		t.Fatalf("ratings = %d, done count = %d, want 250", len(ratings), done.Count)
	}
	for i, id := range ratings {
		if id != int64(i+1) {
			t.Fatalf("rating %d has id %d, want %d", i, id, i+1)
		}
	}
}

func TestRatingsWebSocket_PageFailure(t *testing.T) {
	env := setupTestEnv(t)
	env.mock.SetRatingHistory(250)
	env.login(t)
	env.mock.SetResponse(client.PathUserRatings, testutil.MockResponse{StatusCode: http.StatusInternalServerError})

	srv := httptest.NewServer(env.echo)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/ratings", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var types []string
	var readErr error
	for {
		var msg streamMessage
		if readErr = conn.ReadJSON(&msg); readErr != nil {
			break
		}
		types = append(types, msg.Type)
	}

	if len(types) == 0 || types[len(types)-1] != "error" {
		t.Fatalf("frames = %v, want the stream to end with an error frame", types)
	}
	for _, typ := range types {
		if typ == "done" {
			t.Errorf("frames = %v, want no done frame after a failed page", types)
		}
	}
	if !websocket.IsCloseError(readErr, websocket.CloseInternalServerErr) {
		t.Errorf("close = %v, want internal server error close", readErr)
	}
}

func TestRatingsWebSocket_Origin(t *testing.T) {
	env := setupTestEnv(t)

	srv := httptest.NewServer(env.echo)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/ratings"

	t.Run("cross origin rejected", func(t *testing.T) {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://evil.example"}})
		if err == nil {
			conn.Close()
			t.Fatal("cross-origin dial should fail")
		}
		if resp == nil || resp.StatusCode != http.StatusForbidden {
			t.Errorf("handshake response = %v, want 403", resp)
		}
	})

	t.Run("same origin accepted", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {srv.URL}})
		if err != nil {
			t.Fatalf("same-origin dial failed: %v", err)
		}
		conn.Close()
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "auth", err: client.ErrAuth, want: http.StatusUnauthorized},
		{name: "not found", err: client.ErrNotFound, want: http.StatusNotFound},
		{name: "network", err: &client.APIError{ErrorClass: client.ErrorClassNetwork}, want: http.StatusBadGateway},
		{name: "server", err: &client.APIError{StatusCode: 500, ErrorClass: client.ErrorClassServer}, want: http.StatusBadGateway},
		{name: "rate limited", err: &client.APIError{StatusCode: 429, ErrorClass: client.ErrorClassRateLimit}, want: http.StatusTooManyRequests},
		{name: "timeout", err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	env := func(values map[string]string) func(string) string {
		return func(key string) string { return values[key] }
	}

	t.Run("defaults", func(t *testing.T) {
		cfg, err := loadConfig(env(map[string]string{"RATEBEER_API_KEY": "k"}))
		if err != nil {
			t.Fatalf("loadConfig() failed: %v", err)
		}
		if cfg.RedisURL != "localhost:6379" || cfg.Port != "8080" || cfg.BaseURL != client.DefaultBaseURL {
			t.Errorf("unexpected defaults: %+v", cfg)
		}
		if cfg.SessionKey != nil {
			t.Error("SessionKey should be nil without SESSION_KEY")
		}
		if cfg.PageConcurrency != 4 || cfg.RequestsPerSecond != 5 {
			t.Errorf("PageConcurrency = %d, RequestsPerSecond = %d", cfg.PageConcurrency, cfg.RequestsPerSecond)
		}
	})

	t.Run("session key", func(t *testing.T) {
		cfg, err := loadConfig(env(map[string]string{
			"RATEBEER_API_KEY": "k",
			"SESSION_KEY":      strings.Repeat("ab", 32),
		}))
		if err != nil {
			t.Fatalf("loadConfig() failed: %v", err)
		}
		if cfg.SessionKey == nil || cfg.SessionKey[0] != 0xab {
			t.Errorf("SessionKey = %v", cfg.SessionKey)
		}
	})

	errorCases := map[string]map[string]string{
		"missing api key":   {},
		"bad session key":   {"RATEBEER_API_KEY": "k", "SESSION_KEY": "zz"},
		"bad concurrency":   {"RATEBEER_API_KEY": "k", "PAGE_CONCURRENCY": "0"},
		"bad request limit": {"RATEBEER_API_KEY": "k", "REQUESTS_PER_SECOND": "many"},
	}
	for name, values := range errorCases {
		t.Run(name, func(t *testing.T) {
			if _, err := loadConfig(env(values)); err == nil {
				t.Error("loadConfig() should fail")
			}
		})
	}
}
