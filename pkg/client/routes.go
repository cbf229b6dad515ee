package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sternrassler/ratebeer-client/pkg/jar"
	"github.com/Sternrassler/ratebeer-client/pkg/model"
)

// Endpoint paths below the site root.
const (
	PathUserInfo      = "/json/uis.asp"
	PathUserRateCount = "/json/urc.asp"
	PathUserRatings   = "/json/urates.asp"
	PathFeed          = "/json/feed.asp"
	PathBeerSearch    = "/json/bss.asp"
	PathBeerDetails   = "/json/bff.asp"
	PathBeerRatings   = "/json/gr.asp"
	PathSignIn        = "/Signin_r.asp"
	PathSignOut       = "/Signout.asp"
)

// LookupUser returns the users matching username.
func (c *Client) LookupUser(ctx context.Context, username string) ([]model.UserInfo, error) {
	var users []model.UserInfo
	err := c.getJSON(ctx, PathUserInfo, url.Values{"un": {username}}, &users)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return users, nil
}

// ExchangeCredentials signs in. The response body is ignored; the result is
// the auth cookies set by the sign in response itself, including any redirects
// it went through. Cookies already held by the jar are not part of the result,
// so a rejected exchange returns empty evidence even while an older session is
// still stored.
func (c *Client) ExchangeCredentials(ctx context.Context, username, password string, persist bool) (jar.Evidence, error) {
	form := url.Values{
		"username": {username},
		"pwd":      {password},
	}
	if persist {
		form.Set("SaveInfo", "on")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(PathSignIn, nil), strings.NewReader(form.Encode()))
	if err != nil {
		return jar.Evidence{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.Do(req)
	if err != nil {
		return jar.Evidence{}, fmt.Errorf("exchange credentials: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	ev := jar.EvidenceFromCookies(receivedCookies(resp))

	c.logger.Debug().
		Str("user_name", username).
		Bool("persist", persist).
		Bool("accepted", ev.IdentityToken != "" && ev.SessionToken != "").
		Msg("Credential exchange completed")
	return ev, nil
}

// receivedCookies collects the cookies set by resp and every redirect response before it.
func receivedCookies(resp *http.Response) []*http.Cookie {
	var chain []*http.Response
	for r := resp; r != nil; {
		chain = append(chain, r)
		if r.Request == nil {
			break
		}
		r = r.Request.Response
	}

	var cookies []*http.Cookie
	for i := len(chain) - 1; i >= 0; i-- {
		cookies = append(cookies, chain[i].Cookies()...)
	}
	return cookies
}

// LookupRateCount returns the rating count records of a user.
func (c *Client) LookupRateCount(ctx context.Context, userID int64) ([]model.UserRateCount, error) {
	var counts []model.UserRateCount
	err := c.getJSON(ctx, PathUserRateCount, url.Values{"u": {strconv.FormatInt(userID, 10)}}, &counts)
	if err != nil {
		return nil, fmt.Errorf("lookup rate count: %w", err)
	}
	return counts, nil
}

// FetchRatingsPage returns one page of the signed in user's ratings.
// The user is identified by the session cookies; pages start at 1.
func (c *Client) FetchRatingsPage(ctx context.Context, page int) ([]model.UserRating, error) {
	var ratings []model.UserRating
	err := c.getJSON(ctx, PathUserRatings, url.Values{"p": {strconv.Itoa(page)}}, &ratings)
	if err != nil {
		return nil, fmt.Errorf("fetch ratings page %d: %w", page, err)
	}
	return ratings, nil
}

// FetchFeed returns the items of an activity feed.
func (c *Client) FetchFeed(ctx context.Context, kind model.FeedKind) ([]model.FeedItem, error) {
	var items []model.FeedItem
	err := c.getJSON(ctx, PathFeed, url.Values{"m": {strconv.Itoa(int(kind))}}, &items)
	if err != nil {
		return nil, fmt.Errorf("fetch %s feed: %w", kind, err)
	}
	return items, nil
}

// SearchBeers searches beers by name. userID marks which results the user rated (0 for none).
func (c *Client) SearchBeers(ctx context.Context, userID int64, query string) ([]model.BeerSearchResult, error) {
	params := url.Values{"bn": {query}}
	if userID != 0 {
		params.Set("u", strconv.FormatInt(userID, 10))
	}

	var results []model.BeerSearchResult
	if err := c.getJSON(ctx, PathBeerSearch, params, &results); err != nil {
		return nil, fmt.Errorf("search beers: %w", err)
	}
	return results, nil
}

// FetchBeerDetails returns the details records of a beer.
func (c *Client) FetchBeerDetails(ctx context.Context, beerID int64) ([]model.BeerDetails, error) {
	var beers []model.BeerDetails
	err := c.getJSON(ctx, PathBeerDetails, url.Values{"bd": {strconv.FormatInt(beerID, 10)}}, &beers)
	if err != nil {
		return nil, fmt.Errorf("fetch beer details: %w", err)
	}
	return beers, nil
}

// FetchBeerRatings returns ratings of a beer, optionally restricted to one user (userID != 0).
func (c *Client) FetchBeerRatings(ctx context.Context, beerID, userID int64, sort, page int) ([]model.BeerRating, error) {
	params := url.Values{
		"bid": {strconv.FormatInt(beerID, 10)},
		"s":   {strconv.Itoa(sort)},
		"p":   {strconv.Itoa(page)},
	}
	if userID != 0 {
		params.Set("uid", strconv.FormatInt(userID, 10))
	}

	var ratings []model.BeerRating
	if err := c.getJSON(ctx, PathBeerRatings, params, &ratings); err != nil {
		return nil, fmt.Errorf("fetch beer ratings: %w", err)
	}
	return ratings, nil
}

// Logout signs out remotely. Any HTTP response counts as done; only a
// transport failure is returned.
func (c *Client) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpointURL(PathSignOut, nil), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.ErrorClass != ErrorClassNetwork {
			c.logger.Warn().Int("status", apiErr.StatusCode).Msg("Sign out answered with error status")
			return nil
		}
		return fmt.Errorf("logout: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}
