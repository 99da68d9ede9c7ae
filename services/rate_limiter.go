package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// PageRateLimiter throttles outbound replies separately for every page
type PageRateLimiter struct {
	mu                sync.Mutex
	requestsPerMinute int
	limiters          map[string]*rate.Limiter
}

// NewPageRateLimiter allows rpm replies per minute per page. rpm <= 0 disables limiting.
func NewPageRateLimiter(rpm int) *PageRateLimiter {
	return &PageRateLimiter{
		requestsPerMinute: rpm,
		limiters:          make(map[string]*rate.Limiter),
	}
}

func (r *PageRateLimiter) limiter(pageID string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[pageID]
	if !ok {
		l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(r.requestsPerMinute)), r.requestsPerMinute)
		r.limiters[pageID] = l
	}
	return l
}

// Wait blocks until a reply to pageID can be sent within rate limits
func (r *PageRateLimiter) Wait(ctx context.Context, pageID string) error {
	if r == nil || r.requestsPerMinute <= 0 {
		return nil
	}

	l := r.limiter(pageID)
	if l.Tokens() < 1 {
		slog.Info("Rate limit reached, waiting...",
			"pageID", pageID,
			"rpm", r.requestsPerMinute,
		)
	}
	return l.Wait(ctx)
}
