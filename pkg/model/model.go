// Package model holds the payload records decoded from the RateBeer JSON API.
//
// Field names follow the service's PascalCase JSON keys. Timestamps are kept
// as the raw strings the service returns; callers that need time values parse
// them themselves.
package model

// FeedKind selects one of the activity feeds.
type FeedKind int

const (
	// FeedFriends is the personalized feed of the logged in user's friends.
	FeedFriends FeedKind = 0

	// FeedGlobal is the public site-wide feed.
	FeedGlobal FeedKind = 1

	// FeedLocal is the feed for the logged in user's locale.
	FeedLocal FeedKind = 2
)

// String returns the feed name used in logs and URLs.
func (k FeedKind) String() string {
	switch k {
	case FeedFriends:
		return "friends"
	case FeedGlobal:
		return "global"
	case FeedLocal:
		return "local"
	default:
		return "unknown"
	}
}

// FeedItem is one entry of an activity feed.
type FeedItem struct {
	ActivityID     int64  `json:"ActivityID"`
	UserID         int64  `json:"UserID"`
	UserName       string `json:"Username"`
	Type           int    `json:"Type"`
	LinkID         int64  `json:"LinkID"`
	LinkText       string `json:"LinkText"`
	ActivityNumber int    `json:"ActivityNumber"`
	TimeEntered    string `json:"TimeEntered"`
	NumComments    int    `json:"NumComments"`
}

// UserInfo identifies a RateBeer user.
type UserInfo struct {
	UserID   int64  `json:"UserID"`
	UserName string `json:"UserName"`
}

// UserRateCount carries the number of ratings a user has entered.
type UserRateCount struct {
	RateCount int `json:"RateCount"`
}

// UserRating is one rating from a user's own history.
type UserRating struct {
	RatingID    int64   `json:"RatingID"`
	BeerID      int64   `json:"BeerID"`
	BeerName    string  `json:"BeerName"`
	BrewerID    int64   `json:"BrewerID"`
	BrewerName  string  `json:"BrewerName"`
	StyleName   string  `json:"StyleName"`
	Aroma       int     `json:"Aroma"`
	Appearance  int     `json:"Appearance"`
	Flavor      int     `json:"Flavor"`
	Mouthfeel   int     `json:"Mouthfeel"`
	Overall     int     `json:"Overall"`
	TotalScore  float64 `json:"TotalScore"`
	Comments    string  `json:"Comments"`
	TimeEntered string  `json:"TimeEntered"`
	TimeUpdated string  `json:"TimeUpdated"`
}

// BeerSearchResult is one hit of a beer name search.
type BeerSearchResult struct {
	BeerID      int64   `json:"BeerID"`
	BeerName    string  `json:"BeerName"`
	BrewerID    int64   `json:"BrewerID"`
	BrewerName  string  `json:"BrewerName"`
	OverallPctl float64 `json:"OverallPctl"`
	RateCount   int     `json:"RateCount"`
	Unrateable  bool    `json:"Unrateable"`
	IsAlias     bool    `json:"IsAlias"`
	Retired     bool    `json:"Retired"`
	IsRated     bool    `json:"IsRated"`
}

// BeerDetails holds the full description of a beer.
type BeerDetails struct {
	BeerID        int64   `json:"BeerID"`
	BeerName      string  `json:"BeerName"`
	BrewerID      int64   `json:"BrewerID"`
	BrewerName    string  `json:"BrewerName"`
	StyleID       int     `json:"BeerStyleID"`
	StyleName     string  `json:"BeerStyleName"`
	Alcohol       float64 `json:"Alcohol"`
	IBU           float64 `json:"IBU"`
	Description   string  `json:"Description"`
	OverallPctl   float64 `json:"OverallPctl"`
	StylePctl     float64 `json:"StylePctl"`
	RateCount     int     `json:"RateCount"`
	AverageRating float64 `json:"AverageRating"`
}

// BeerRating is a rating of a beer as shown on the beer's page.
type BeerRating struct {
	RatingID    int64   `json:"RatingID"`
	UserID      int64   `json:"UserID"`
	UserName    string  `json:"UserName"`
	UserCountry string  `json:"Country"`
	Aroma       int     `json:"Aroma"`
	Appearance  int     `json:"Appearance"`
	Flavor      int     `json:"Flavor"`
	Mouthfeel   int     `json:"Mouthfeel"`
	Overall     int     `json:"Overall"`
	TotalScore  float64 `json:"TotalScore"`
	Comments    string  `json:"Comments"`
	TimeEntered string  `json:"TimeEntered"`
}
