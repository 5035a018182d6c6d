// Package retry runs store operations with bounded retry and exponential
// backoff. Only transient failures are retried; permanent failures
// (validation, not-found, duplicate-key used as a race signal) propagate
// immediately, and the last error after exhaustion propagates unchanged.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/chatwire/conversation-service/internal/config"
	"github.com/chatwire/conversation-service/internal/metrics"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Executor holds the retry policy shared by all store operations. It is the
// single place backoff tuning lives.
type Executor struct {
	// MaxAttempts is the total number of invocations, first try included.
	MaxAttempts int
	// BaseDelay is the wait before the first retry; subsequent waits grow
	// exponentially (with jitter) up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// FromConfig builds an Executor from the retry settings in cfg, falling back
// to defaults when cfg is nil.
func FromConfig(cfg *config.Config) *Executor {
	if cfg == nil {
		def := config.DefaultConfig()
		cfg = &def
	}
	return &Executor{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}
}

// Do invokes op until it succeeds, fails permanently, the attempt budget is
// exhausted, or ctx is cancelled. Wrapped operations must be idempotent or
// safe to retry.
func Do[T any](ctx context.Context, ex *Executor, name string, op func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = ex.BaseDelay
	b.MaxInterval = ex.MaxDelay
	b.Multiplier = 2
	b.MaxElapsedTime = 0

	attempts := ex.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	return backoff.RetryWithData(func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if !IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		if metrics.RetryAttemptsTotal != nil {
			metrics.RetryAttemptsTotal.WithLabelValues(name).Inc()
		}
		log.Warn("store operation failed, retrying", "op", name, "attempt", attempt, "maxAttempts", attempts, "err", err)
		return v, err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx))
}

// IsTransient classifies err as retry-safe. Connectivity problems, timeouts,
// and transient write conflicts qualify; everything else is permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	// Duplicate key is a control-flow signal on the create-or-get path,
	// never a reason to retry.
	if mongo.IsDuplicateKeyError(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return true
	}
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		if serverErr.HasErrorLabel("TransientTransactionError") ||
			serverErr.HasErrorLabel("UnknownTransactionCommitResult") ||
			serverErr.HasErrorLabel("RetryableWriteError") {
			return true
		}
		for _, code := range transientServerCodes {
			if serverErr.HasErrorCode(code) {
				return true
			}
		}
	}
	return false
}

// Server codes considered transient: HostUnreachable, HostNotFound,
// NetworkTimeout, ShutdownInProgress, WriteConflict, PrimarySteppedDown,
// ExceededTimeLimit, SocketException, NotWritablePrimary,
// InterruptedAtShutdown, InterruptedDueToReplStateChange,
// NotPrimaryNoSecondaryOk.
var transientServerCodes = []int{6, 7, 89, 91, 112, 189, 262, 9001, 10107, 11600, 11602, 13435}
