package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/travelmesh/core"
)

func recordingSleep(slept *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
}

func TestInvokeRetriesTransientThenSucceeds(t *testing.T) {
	mock := NewMock("test")
	mock.EnqueueError(errors.New("429 rate limit exceeded"))
	mock.EnqueueError(errors.New("connection reset by peer"))
	mock.EnqueueText("xin chào")

	var slept []time.Duration
	inv := NewRetryInvoker(mock, func(o *InvokerOptions) {
		o.Sleep = recordingSleep(&slept)
	})

	resp, err := inv.Invoke(context.Background(), Request{
		Contents: []core.Content{core.NewTextContent("user", "hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, "xin chào", resp.Content.Text())
	assert.Equal(t, 3, mock.CallCount())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
}

func TestInvokeFatalErrorFailsFast(t *testing.T) {
	mock := NewMock("test")
	mock.EnqueueError(errors.New("invalid api key"))

	var slept []time.Duration
	inv := NewRetryInvoker(mock, func(o *InvokerOptions) {
		o.Sleep = recordingSleep(&slept)
	})

	_, err := inv.Invoke(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, 1, mock.CallCount())
	assert.Empty(t, slept)
}

func TestInvokeExhaustsRetries(t *testing.T) {
	mock := NewMock("test")
	mock.EnqueueError(errors.New("timeout"))
	mock.EnqueueError(errors.New("timeout"))
	mock.EnqueueError(errors.New("timeout"))

	var slept []time.Duration
	inv := NewRetryInvoker(mock, func(o *InvokerOptions) {
		o.Sleep = recordingSleep(&slept)
	})

	_, err := inv.Invoke(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.Equal(t, 3, mock.CallCount())
	assert.Len(t, slept, 2)
}

func TestInvokeStreamDiscardsFailedAttemptOutput(t *testing.T) {
	mock := NewMock("test")
	mock.Enqueue(MockStep{Err: errors.New("503 service unavailable")})
	mock.Enqueue(MockStep{
		Partials: []string{"Chuyến ", "bay"},
		Response: &Response{Content: core.NewTextContent("assistant", "Chuyến bay"), FinishReason: "stop"},
	})

	var slept []time.Duration
	inv := NewRetryInvoker(mock, func(o *InvokerOptions) {
		o.Sleep = recordingSleep(&slept)
	})

	var deltas []string
	resp, err := inv.InvokeStream(context.Background(), Request{}, func(delta string) {
		deltas = append(deltas, delta)
	})
	require.NoError(t, err)
	assert.Equal(t, "Chuyến bay", resp.Content.Text())
	// Only the successful attempt's deltas were delivered.
	assert.Equal(t, []string{"Chuyến ", "bay"}, deltas)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(errors.New("DEADLINE_EXCEEDED")))
	assert.True(t, IsTransient(errors.New("quota exhausted for project")))
	assert.True(t, IsTransient(&ProviderError{Provider: "openai", StatusCode: 429, Err: errors.New("slow down")}))
	assert.True(t, IsTransient(&ProviderError{Provider: "openai", StatusCode: 503, Err: errors.New("busy")}))

	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("invalid request")))
	// A structured non-retryable status wins over suggestive message text.
	assert.False(t, IsTransient(&ProviderError{Provider: "openai", StatusCode: 401, Err: errors.New("connection auth failed")}))
	assert.False(t, IsTransient(context.Canceled))
}
