package util

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryConfig controls exponential backoff. Only RPC dialing retries;
// contract calls and proof requests are single-shot.
type RetryConfig struct {
	MaxRetries int           // retries after the first attempt, -1 = unlimited
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration
	Multiplier float64 // defaults to 2
	Jitter     float64 // fraction of the delay, 0..1
	// RetryIf reports whether an error is worth another attempt. nil retries
	// everything except errors marked with Permanent.
	RetryIf func(error) bool
}

// DefaultRetryConfig returns the backoff used when dialing an RPC endpoint.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 3,
		BaseDelay:  250 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
	}
}

// RetryResult describes how a retried call went.
type RetryResult struct {
	Attempts  int
	LastError error
	Duration  time.Duration
}

var (
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
	ErrContextCanceled    = errors.New("context canceled during retry")
)

// RetryWithValue runs fn until it succeeds, the retry budget is spent or ctx
// ends, and returns the value of the successful call.
func RetryWithValue[T any](ctx context.Context, config *RetryConfig, fn func() (T, error)) (T, *RetryResult) {
	if config == nil {
		config = DefaultRetryConfig()
	}
	retryIf := config.RetryIf
	if retryIf == nil {
		retryIf = func(err error) bool { return !IsPermanent(err) }
	}

	var zero T
	result := &RetryResult{}
	start := time.Now()
	finish := func(err error) *RetryResult {
		result.LastError = err
		result.Duration = time.Since(start)
		return result
	}

	for {
		result.Attempts++

		val, err := fn()
		if err == nil {
			return val, finish(nil)
		}
		if !retryIf(err) {
			return zero, finish(err)
		}
		if config.MaxRetries >= 0 && result.Attempts > config.MaxRetries {
			return zero, finish(errors.Join(ErrMaxRetriesExceeded, err))
		}

		timer := time.NewTimer(backoff(config, result.Attempts))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, finish(errors.Join(ErrContextCanceled, ctx.Err()))
		case <-timer.C:
		}
	}
}

// backoff returns BaseDelay * Multiplier^(attempt-1), jittered and capped.
func backoff(config *RetryConfig, attempt int) time.Duration {
	multiplier := config.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	delay := float64(config.BaseDelay) * math.Pow(multiplier, float64(attempt-1))
	if config.Jitter > 0 {
		spread := delay * config.Jitter
		delay = delay - spread + rand.Float64()*2*spread
	}
	if config.MaxDelay > 0 && time.Duration(delay) > config.MaxDelay {
		delay = float64(config.MaxDelay)
	}
	return time.Duration(delay)
}

// PermanentError stops RetryWithValue from trying again.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying. A chain-id mismatch, for example.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
