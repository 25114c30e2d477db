// Package ratelimiter provides a token bucket throttle for outbound
// object store requests.
//
// Cold reads translate every FUSE request into an S3 API call, so a
// misbehaving reader (a recursive grep, a backup job) can hammer the bucket
// at whatever rate the kernel issues reads. The throttle caps the sustained
// request rate toward the store while still allowing short bursts.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// unlimited is the rate used when throttling is disabled. rate.Inf has edge
// cases around burst accounting, so a large finite limit is used instead.
const unlimited = 1_000_000_000

// RateLimiter is a token bucket limiter for backend requests.
//
// Tokens are replenished at a constant rate and each request consumes one.
// The burst size bounds how many requests can proceed immediately when the
// bucket is full.
//
// All methods are safe for concurrent use, although in this filesystem the
// bridge serializes callers anyway.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing requestsPerSecond sustained requests
// with the given burst capacity.
//
// A requestsPerSecond of 0 disables throttling. A burst of 0 with a nonzero
// rate is normalized to the rate itself, since a zero-capacity bucket would
// reject every request.
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		requestsPerSecond = unlimited
		burst = unlimited
	}
	if burst == 0 {
		burst = requestsPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Allow reports whether a request may proceed right now, consuming a token
// when it may. It never blocks.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or the context is cancelled.
//
// Returns nil once a token was acquired, or the context error if ctx was
// cancelled first.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the number of tokens currently available. The value is a
// snapshot and may be stale immediately; it exists for tests and debugging.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
