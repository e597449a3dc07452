package db

import (
	"sync"

	"golang.org/x/time/rate"
)

// quotaLimiter paces active-expire field deletions across cycles with
// a mutex-guarded *rate.Limiter. The configured per-cycle budget caps
// a single cycle's work; this additionally caps the rate across cycles.
// NewDB passes the per-cycle quota as fieldsPerSecond, so the limiter
// refills that many tokens per second (burst the same), and at a cycle
// interval below one second it, not the per-cycle budget, is the
// binding limit on steady-state deletions.
type quotaLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

func newQuotaLimiter(fieldsPerSecond int) *quotaLimiter {
	if fieldsPerSecond <= 0 {
		fieldsPerSecond = 1
	}
	return &quotaLimiter{
		limiter: rate.NewLimiter(rate.Limit(fieldsPerSecond), fieldsPerSecond),
	}
}

// reserve returns how many of the requested budget may be spent right
// now, never blocking: active expiration must stay reentrant-safe and
// bounded per so this degrades the quota rather than stalling
// the caller.
func (q *quotaLimiter) reserve(want int) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if want <= 0 {
		return 0
	}
	granted := 0
	for granted < want {
		r := q.limiter.ReserveN(nowFunc(), 1)
		if !r.OK() || r.Delay() > 0 {
			r.Cancel()
			break
		}
		granted++
	}
	return granted
}
