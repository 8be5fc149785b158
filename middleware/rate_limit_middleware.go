package middleware

import (
	"context"
	"errors"
	"rigelnet/handler"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned instead of running the handler.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitMiddleware creates a token-bucket limiter shared by every call.
func RateLimitMiddleware(r float64, burst int) handler.Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next handler.Func) handler.Func {
		return func(ctx context.Context, req *handler.Request) error {
			if !limiter.Allow() {
				return ErrRateLimited
			}
			return next(ctx, req)
		}
	}
}

// PeerRateLimitMiddleware keeps one token bucket per sender address, so a
// single noisy peer cannot starve the others. Calls without a sender are
// not limited. The middleware may be shared by nodes ticking on different
// goroutines.
func PeerRateLimitMiddleware(r float64, burst int) handler.Middleware {
	return newPeerLimiter(r, burst, time.Now).middleware
}

// minSweep is the table size below which idle buckets are not swept.
const minSweep = 64

type peerLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	now      func() time.Time
	limiters map[string]*rate.Limiter
	sweepAt  int
}

func newPeerLimiter(r float64, burst int, now func() time.Time) *peerLimiter {
	return &peerLimiter{
		limit:    rate.Limit(r),
		burst:    burst,
		now:      now,
		limiters: make(map[string]*rate.Limiter),
		sweepAt:  minSweep,
	}
}

func (p *peerLimiter) middleware(next handler.Func) handler.Func {
	return func(ctx context.Context, req *handler.Request) error {
		if req.Sender == nil {
			return next(ctx, req)
		}
		if !p.allow(req.Sender.Address()) {
			return ErrRateLimited
		}
		return next(ctx, req)
	}
}

func (p *peerLimiter) allow(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	limiter, ok := p.limiters[key]
	if !ok {
		if len(p.limiters) >= p.sweepAt {
			p.sweep(now)
		}
		limiter = rate.NewLimiter(p.limit, p.burst)
		p.limiters[key] = limiter
	}
	return limiter.AllowN(now, 1)
}

// sweep drops buckets that have refilled to burst. A fresh bucket is
// identical, so no peer gains tokens from being forgotten.
func (p *peerLimiter) sweep(now time.Time) {
	for key, l := range p.limiters {
		if l.TokensAt(now) >= float64(p.burst) {
			delete(p.limiters, key)
		}
	}
	p.sweepAt = max(minSweep, 2*len(p.limiters))
}
