package natsclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ItamarWilf/PipeRT/errors"
	"github.com/ItamarWilf/PipeRT/pkg/retry"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", WithName("cam.publish"))
	require.NoError(t, err)

	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
	assert.Equal(t, "cam.publish", client.cfg.name)
}

func TestNewClient_RejectsBadOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"zero timeout", WithTimeout(0)},
		{"negative drain", WithDrainTimeout(-time.Second)},
		{"zero ping", WithPingInterval(0)},
		{"zero reconnect wait", WithReconnectWait(0)},
		{"reconnects below -1", WithMaxReconnects(-2)},
		{"zero threshold", WithCircuitBreaker(0, time.Minute)},
		{"tiny backoff", WithCircuitBreaker(3, time.Millisecond)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient("nats://localhost:4222", tt.opt)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
		})
	}
}

func TestConfig_Options(t *testing.T) {
	assert.Empty(t, Config{}.Options())

	cfg := Config{
		MaxReconnects:    10,
		ReconnectWait:    time.Second,
		PingInterval:     10 * time.Second,
		Timeout:          2 * time.Second,
		DrainTimeout:     3 * time.Second,
		CircuitThreshold: 2,
		ConnectAttempts:  7,
	}
	client, err := NewDialer(cfg)("nats://localhost:4222", WithTimeout(time.Second))
	require.NoError(t, err)

	s := client.(*Client).cfg
	assert.Equal(t, 10, s.maxReconnects)
	assert.Equal(t, time.Second, s.reconnectWait)
	assert.Equal(t, 10*time.Second, s.pingInterval)
	assert.Equal(t, time.Second, s.timeout, "routine options apply after the dialer's")
	assert.Equal(t, 3*time.Second, s.drainTimeout)
	assert.Equal(t, int32(2), s.threshold)
	assert.Equal(t, time.Minute, s.maxBackoff, "unset max backoff keeps the default")
	assert.Equal(t, 7, s.retry.MaxAttempts)

	_, err = NewDialer(Config{Timeout: -time.Second})("nats://localhost:4222")
	assert.Error(t, err)
}

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "circuit_open", StatusCircuitOpen.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b := newBreaker(3, time.Minute)
	now := time.Now()

	for range 2 {
		tripped, _ := b.fail(now)
		assert.False(t, tripped)
	}
	assert.False(t, b.isOpen())

	tripped, wait := b.fail(now)
	assert.True(t, tripped)
	assert.Equal(t, time.Second, wait)
	assert.True(t, b.isOpen())

	failures, last, next := b.snapshot()
	assert.Equal(t, int32(3), failures)
	assert.Equal(t, now, last)
	assert.Equal(t, 2*time.Second, next)
}

func TestBreaker_BackoffDoublesUpToMax(t *testing.T) {
	b := newBreaker(1, 5*time.Second)

	var waits []time.Duration
	for range 5 {
		_, wait := b.fail(time.Now())
		waits = append(waits, wait)
		b.halfOpen()
	}
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second,
	}, waits)

	b.reset()
	failures, last, wait := b.snapshot()
	assert.Zero(t, failures)
	assert.True(t, last.IsZero())
	assert.Equal(t, time.Second, wait)
}

func TestBreaker_FailureWhileOpenDoesNotTripAgain(t *testing.T) {
	b := newBreaker(1, time.Minute)
	tripped, _ := b.fail(time.Now())
	require.True(t, tripped)

	tripped, wait := b.fail(time.Now())
	assert.False(t, tripped)
	assert.Equal(t, 2*time.Second, wait)
	assert.True(t, b.isOpen())
}

func TestConnect_OpenCircuitIsNotRetried(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", WithRetry(retry.Quick()), WithCircuitBreaker(1, time.Minute))
	require.NoError(t, err)
	client.breaker.fail(time.Now())
	require.Equal(t, StatusCircuitOpen, client.Status())

	err = client.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(1), client.GetStatus().FailureCount)
}

func TestConnect_UnreachableServer(t *testing.T) {
	var (
		mu      sync.Mutex
		changes []bool
	)
	client, err := NewClient("nats://127.0.0.1:1",
		WithTimeout(50*time.Millisecond),
		WithRetry(retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}),
		WithHealthChangeCallback(func(healthy bool) {
			mu.Lock()
			changes = append(changes, healthy)
			mu.Unlock()
		}),
	)
	require.NoError(t, err)

	err = client.Connect(context.Background())
	require.Error(t, err)

	st := client.GetStatus()
	assert.Equal(t, StatusDisconnected, st.Status)
	assert.Equal(t, int32(2), st.FailureCount)
	assert.False(t, st.LastFailureTime.IsZero())
	assert.Zero(t, st.RTT)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, changes, "no health change without a connection")
}

func TestConnect_TripsBreaker(t *testing.T) {
	client, err := NewClient("nats://127.0.0.1:1",
		WithTimeout(20*time.Millisecond),
		WithCircuitBreaker(2, time.Minute),
		WithRetry(retry.Config{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}),
	)
	require.NoError(t, err)

	err = client.Connect(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, StatusCircuitOpen, client.Status())
	assert.Equal(t, int32(2), client.GetStatus().FailureCount, "the open circuit stops the retries")
}

func TestConnect_AfterClose(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	require.NoError(t, client.Close(context.Background()))
	require.NoError(t, client.Close(context.Background()))

	err = client.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestNotConnected(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.ErrorIs(t, client.Publish("frames", []byte("x")), ErrNotConnected)
	assert.ErrorIs(t, client.Subscribe("frames", func([]byte) {}), ErrNotConnected)

	_, err = client.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConcurrentSafety(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, fn := range []func(){
		func() { client.state.Store(int32(StatusConnecting)) },
		func() { _ = client.GetStatus() },
		func() { client.breaker.fail(time.Now()) },
		client.breaker.halfOpen,
		client.breaker.reset,
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				fn()
			}
		}()
	}
	wg.Wait()

	assert.Contains(t, []ConnectionStatus{StatusConnecting, StatusCircuitOpen}, client.Status())
}
