package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/availkit/go-node-client/entities"
)

var errBoom = errors.New("boom")

func fastPolicy() Policy {
	return Policy{
		RetryOnError: true,
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func TestDo_TransientTransportErrorThenSuccess(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), fastPolicy(), func(_ context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, entities.NewTransportError(errBoom)
		}
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, result)
	require.Equal(t, 3, calls)
}

func TestDo_DecodingErrorIsNeverRetried(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(), func(_ context.Context) (int, error) {
		calls++
		return 0, entities.NewDecodingError("bad bytes")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestDo_RuntimeRejectionIsNeverRetried(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(), func(_ context.Context) (int, error) {
		calls++
		return 0, entities.NewRuntimeRejection(1010, "stale nonce")
	})
	require.Error(t, err)
	require.True(t, entities.IsRuntimeRejection(err))
	require.Equal(t, 1, calls)
}

func TestDo_AttemptBudgetExhausted(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(), func(_ context.Context) (int, error) {
		calls++
		return 0, entities.NewTransportError(errBoom)
	})
	require.Error(t, err)
	require.True(t, entities.IsRetryable(err))
	require.Equal(t, 5, calls)
}

func TestDo_DisabledPolicyCallsOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Disabled(), func(_ context.Context) (int, error) {
		calls++
		return 0, entities.NewTransportError(errBoom)
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestDo_CancellationStopsBackoff(t *testing.T) {
	policy := Policy{
		RetryOnError: true,
		MaxAttempts:  10,
		InitialDelay: time.Hour,
	}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, policy, func(_ context.Context) (int, error) {
			return 0, entities.NewTransportError(errBoom)
		})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled retry did not return")
	}
}

func TestDoOptional_AbsenceIsNotRetriedByDefault(t *testing.T) {
	calls := 0
	result, err := DoOptional(context.Background(), fastPolicy(), func(_ context.Context) (*int, error) {
		calls++
		return nil, nil
	})
	require.NoError(t, err)
	require.Nil(t, result)
	require.Equal(t, 1, calls)
}

func TestDoOptional_RetryOnNoneRetriesAbsence(t *testing.T) {
	policy := fastPolicy()
	policy.RetryOnNone = true

	calls := 0
	value := 7
	result, err := DoOptional(context.Background(), policy, func(_ context.Context) (*int, error) {
		calls++
		if calls < 3 {
			return nil, nil
		}
		return &value, nil
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, 7, *result)
	require.Equal(t, 3, calls)
}

func TestPolicy_BackoffCeiling(t *testing.T) {
	policy := Policy{InitialDelay: time.Second, MaxDelay: 5 * time.Second}
	require.Equal(t, time.Second, policy.delay(0))
	require.Equal(t, 2*time.Second, policy.delay(1))
	require.Equal(t, 4*time.Second, policy.delay(2))
	require.Equal(t, 5*time.Second, policy.delay(3))
	require.Equal(t, 5*time.Second, policy.delay(10))
}
