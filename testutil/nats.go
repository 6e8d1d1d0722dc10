package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/ItamarWilf/PipeRT/natsclient"
)

// MockNATSClient is an in-memory natsclient.PubSub. Published messages are
// stored per subject and delivered synchronously to subscribers.
type MockNATSClient struct {
	mu            sync.RWMutex
	messages      map[string][][]byte
	subscriptions map[string][]func([]byte)
	connected     bool
	closed        bool
	failures      int32

	// ConnectErr, when set, is returned by Connect.
	ConnectErr error
}

var _ natsclient.PubSub = (*MockNATSClient)(nil)

// NewMockNATSClient creates a new mock NATS client.
func NewMockNATSClient() *MockNATSClient {
	return &MockNATSClient{
		messages:      make(map[string][][]byte),
		subscriptions: make(map[string][]func([]byte)),
	}
}

// Connect marks the client connected unless ConnectErr is set.
func (c *MockNATSClient) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ConnectErr != nil {
		return c.ConnectErr
	}
	if c.closed {
		return fmt.Errorf("client is closed")
	}
	c.connected = true
	return nil
}

// Publish stores data and calls the subject's handlers outside the lock.
func (c *MockNATSClient) Publish(subject string, data []byte) error {
	c.mu.Lock()
	if !c.connected || c.closed {
		c.mu.Unlock()
		return natsclient.ErrNotConnected
	}
	c.messages[subject] = append(c.messages[subject], data)
	handlers := slices.Clone(c.subscriptions[subject])
	c.mu.Unlock()

	for _, h := range handlers {
		h(data)
	}
	return nil
}

// Subscribe registers handler for subject.
func (c *MockNATSClient) Subscribe(subject string, handler func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.closed {
		return natsclient.ErrNotConnected
	}
	c.subscriptions[subject] = append(c.subscriptions[subject], handler)
	return nil
}

// Close drops subscriptions and marks the client closed.
func (c *MockNATSClient) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.connected = false
	c.subscriptions = make(map[string][]func([]byte))
	return nil
}

// IsHealthy reports whether the client is connected.
func (c *MockNATSClient) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && !c.closed
}

// GetStatus reports connected or disconnected and the number of Disconnect calls.
func (c *MockNATSClient) GetStatus() *natsclient.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := &natsclient.Status{Status: natsclient.StatusDisconnected, FailureCount: c.failures}
	if c.connected && !c.closed {
		st.Status = natsclient.StatusConnected
	}
	return st
}

// Disconnect simulates a lost connection; Connect restores it.
func (c *MockNATSClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.failures++
}

// IsClosed returns whether the client is closed.
func (c *MockNATSClient) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Subscribers returns the number of handlers on subject.
func (c *MockNATSClient) Subscribers(subject string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscriptions[subject])
}

// GetMessages returns a copy of the messages published on subject.
func (c *MockNATSClient) GetMessages(subject string) [][]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	msgs := c.messages[subject]
	if msgs == nil {
		return nil
	}
	result := make([][]byte, len(msgs))
	copy(result, msgs)
	return result
}

// GetMessageCount returns the number of messages on a subject.
func (c *MockNATSClient) GetMessageCount(subject string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages[subject])
}

// WaitForMessageCount waits until subject holds at least count messages.
func WaitForMessageCount(t *testing.T, client *MockNATSClient, subject string, count int, timeout time.Duration) {
	t.Helper()

	deadline := time.After(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for %d messages on subject %s (got %d)",
				count, subject, client.GetMessageCount(subject))
			return
		case <-ticker.C:
			if client.GetMessageCount(subject) >= count {
				return
			}
		}
	}
}
