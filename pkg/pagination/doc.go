// Package pagination turns a total item count into ordered page requests.
//
// RateBeer serves a user's rating history in pages of 100 items, numbered from
// 1. The fetcher computes the page count from the total, requests pages with a
// bounded look-ahead, and merges them strictly in page order no matter which
// response arrives first.
//
// Example usage:
//
//	fetcher := pagination.NewFetcher(fetchPage, pagination.DefaultConfig())
//	for rating, err := range fetcher.All(ctx, rateCount, onProgress) {
//		if err != nil {
//			return err
//		}
//		store(rating)
//	}
//
// The fetcher:
//   - Computes pageCount = ceil(total / ItemsPerPage)
//   - Keeps at most MaxConcurrency pages in flight ahead of the consumer
//   - Releases page k+1 only after page k, reporting progress before each page's items
//   - Stops on the first page error (no partial result is reported as success)
//   - Stops launching pages as soon as the consumer stops or ctx is cancelled
package pagination
