// Package ratelimit paces outgoing work.
//
// MinInterval enforces a minimum spacing between consecutive grants. The
// engagement API requires at least ten seconds between batch requests, so
// the downloader waits on a MinInterval before every batch:
//
//	limiter := ratelimit.NewMinInterval(10*time.Second, nil)
//	for _, batch := range batches {
//	    if err := limiter.WaitContext(ctx); err != nil {
//	        return err
//	    }
//	    submit(batch)
//	}
//
// TokenBucket caps bursts of work per period; it budgets result writes.
//
// Both take a Clock. Tests use FakeClock, whose waits return at once and
// advance fake time.
package ratelimit
