// Package testutil provides testing utilities for the RateBeer client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockRateBeer is a configurable mock RateBeer site for testing.
//
// User lookups find the configured account by name. Sign in sets the UserID
// and SessionID cookies when the posted credentials match the account; sign
// out expires them. Other paths answer with the responses configured through
// SetResponse or SetJSON.
type MockRateBeer struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	userID   int64
	userName string
	password string

	requests map[string]int
	queries  map[string][]string
}

// NewMockRateBeer creates a new mock site with one known account.
func NewMockRateBeer(userID int64, userName, password string) *MockRateBeer {
	mock := &MockRateBeer{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		userID:   userID,
		userName: userName,
		password: password,
		requests: make(map[string]int),
		queries:  make(map[string][]string),
	}

	mock.SetHandler("/json/uis.asp", mock.userInfo)
	mock.SetHandler("/Signin_r.asp", mock.signIn)
	mock.SetHandler("/Signout.asp", mock.signOut)

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requests[r.URL.Path]++
		mock.queries[r.URL.Path] = append(mock.queries[r.URL.Path], r.URL.RawQuery)
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		http.NotFound(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockRateBeer) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockRateBeer) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockRateBeer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = make(map[string]int)
	m.queries = make(map[string][]string)
}

// SetHandler sets a custom handler for a specific path.
func (m *MockRateBeer) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockRateBeer) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetJSON configures a 200 JSON response for a path.
func (m *MockRateBeer) SetJSON(path string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal mock response: %v", err))
	}
	m.SetResponse(path, MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(data),
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	})
}

// SetRatingHistory serves a rating history of total items, 100 per page.
// Pages are only served to signed in clients.
func (m *MockRateBeer) SetRatingHistory(total int) {
	m.SetJSON("/json/urc.asp", []map[string]int{{"RateCount": total}})
	m.SetHandler("/json/urates.asp", func(w http.ResponseWriter, r *http.Request) {
		if !m.signedIn(r) {
			http.Error(w, "not signed in", http.StatusUnauthorized)
			return
		}
		page, err := strconv.Atoi(r.URL.Query().Get("p"))
		if err != nil || page < 1 {
			http.Error(w, "bad page", http.StatusBadRequest)
			return
		}

		ratings := []map[string]any{}
		for i := (page - 1) * 100; i < page*100 && i < total; i++ {
			ratings = append(ratings, map[string]any{
				"RatingID": i + 1,
				"BeerID":   1000 + i,
				"BeerName": fmt.Sprintf("Beer %d", i+1),
			})
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(ratings)
	})
}

// RequestCount returns the number of requests made to a path.
func (m *MockRateBeer) RequestCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[path]
}

// Queries returns the raw query strings received on a path, in arrival order.
func (m *MockRateBeer) Queries(path string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.queries[path]...)
}

func (m *MockRateBeer) userInfo(w http.ResponseWriter, r *http.Request) {
	users := []map[string]any{}
	if r.URL.Query().Get("un") == m.userName {
		users = append(users, map[string]any{"UserID": m.userID, "UserName": m.userName})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(users)
}

func (m *MockRateBeer) signIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("username") != m.userName || r.PostForm.Get("pwd") != m.password {
		// the real site answers 200 with a login page and no cookies
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>login failed</html>"))
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "UserID", Value: strconv.FormatInt(m.userID, 10), Path: "/"})
	http.SetCookie(w, &http.Cookie{Name: "SessionID", Value: "session-" + strconv.FormatInt(m.userID, 10), Path: "/"})
	w.WriteHeader(http.StatusOK)
}

func (m *MockRateBeer) signOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "UserID", Value: "", Path: "/", MaxAge: -1})
	http.SetCookie(w, &http.Cookie{Name: "SessionID", Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusOK)
}

func (m *MockRateBeer) signedIn(r *http.Request) bool {
	user, err := r.Cookie("UserID")
	if err != nil || user.Value == "" {
		return false
	}
	session, err := r.Cookie("SessionID")
	return err == nil && session.Value != ""
}
