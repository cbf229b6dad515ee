// Package jar provides a persistent cookie jar for RateBeer authentication cookies.
//
// The site authenticates with two cookies, UserID and SessionID, which together
// form the auth evidence of a client. The jar keeps all cookies in memory
// through net/http/cookiejar and mirrors the tracked auth cookies into Redis so
// they survive process restarts.
//
// # Basic Usage
//
//	store := jar.NewStore(redisClient)
//	j, err := jar.New(siteURL, store)
//	if err != nil {
//		return err
//	}
//
//	// Restore cookies saved by a previous run
//	if err := j.Load(ctx); err != nil {
//		return err
//	}
//
//	httpClient := &http.Client{Jar: j}
//
//	// After each response, write changed auth cookies through
//	if err := j.Flush(ctx); err != nil {
//		return err
//	}
//
// # Auth Evidence
//
//	ev := j.AuthEvidence()
//	if ev.IdentityToken != "" && ev.SessionToken != "" {
//		// both cookies present
//	}
//
// # Metrics
//
//   - ratebeer_cookie_store_ops_total{operation} - Redis cookie operations
//   - ratebeer_cookie_store_errors_total{operation} - Redis cookie errors
package jar
