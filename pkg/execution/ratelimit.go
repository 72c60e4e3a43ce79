/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: ratelimit.go
Description: Token-bucket rate limiting for outbound exploration traffic, keeping
request volume against a live target bounded while the engine walks scenarios.
*/

package execution

import (
	"context"
	"time"
)

// RateLimiter is a token bucket refilled at a fixed rate. Burst capacity
// equals the per-second rate.
type RateLimiter struct {
	tokens chan struct{}
	stop   chan struct{}
}

// NewRateLimiter creates a limiter allowing requestsPerSecond sustained
// requests and starts the refill goroutine.
func NewRateLimiter(requestsPerSecond int) *RateLimiter {
	rl := &RateLimiter{
		tokens: make(chan struct{}, requestsPerSecond),
		stop:   make(chan struct{}),
	}
	for i := 0; i < requestsPerSecond; i++ {
		rl.tokens <- struct{}{}
	}
	go rl.refill(time.Second / time.Duration(requestsPerSecond))
	return rl
}

func (rl *RateLimiter) refill(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			select {
			case rl.tokens <- struct{}{}:
			default:
				// Bucket is full
			}
		case <-rl.stop:
			return
		}
	}
}

// Wait blocks until a token is available or the context is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	select {
	case <-rl.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the refill goroutine.
func (rl *RateLimiter) Close() {
	close(rl.stop)
}
