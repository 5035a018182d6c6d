package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chatwire/conversation-service/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func testExecutor() *retry.Executor {
	return &retry.Executor{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func transientErr() error {
	return mongo.CommandError{Code: 112, Message: "WriteConflict", Labels: []string{"TransientTransactionError"}}
}

func TestTransientFailuresAreRetried(t *testing.T) {
	calls := 0
	result, err := retry.Do(context.Background(), testExecutor(), "op", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", transientErr()
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestPermanentFailureIsNotRetried(t *testing.T) {
	permanent := errors.New("validation failed")
	calls := 0
	_, err := retry.Do(context.Background(), testExecutor(), "op", func(ctx context.Context) (string, error) {
		calls++
		return "", permanent
	})
	require.Error(t, err)
	assert.Same(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestLastErrorPropagatedUnchangedAfterExhaustion(t *testing.T) {
	last := transientErr()
	calls := 0
	_, err := retry.Do(context.Background(), testExecutor(), "op", func(ctx context.Context) (string, error) {
		calls++
		return "", last
	})
	require.Error(t, err)
	assert.Equal(t, last, err)
	assert.Equal(t, 3, calls)
}

func TestDuplicateKeyIsPermanent(t *testing.T) {
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	require.False(t, retry.IsTransient(dup))

	calls := 0
	_, err := retry.Do(context.Background(), testExecutor(), "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, dup
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsTransientClassification(t *testing.T) {
	assert.False(t, retry.IsTransient(nil))
	assert.False(t, retry.IsTransient(errors.New("boom")))
	assert.False(t, retry.IsTransient(context.Canceled))
	assert.True(t, retry.IsTransient(transientErr()))
	assert.True(t, retry.IsTransient(mongo.CommandError{Code: 91, Message: "ShutdownInProgress"}))
	assert.True(t, retry.IsTransient(mongo.CommandError{Code: 0, Labels: []string{"UnknownTransactionCommitResult"}}))
}

func TestContextCancellationStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := retry.Do(ctx, testExecutor(), "op", func(ctx context.Context) (string, error) {
		calls++
		cancel()
		return "", transientErr()
	})
	require.Error(t, err)
	assert.LessOrEqual(t, calls, 2)
}
