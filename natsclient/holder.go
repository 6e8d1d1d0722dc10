package natsclient

import (
	"fmt"
	"sync"
)

// Holder keeps the client of one routine. The routine sets it in Setup and
// clears it in Cleanup; health queries come from other goroutines.
type Holder struct {
	mu     sync.RWMutex
	client PubSub
}

// Set replaces the held client. nil clears it.
func (h *Holder) Set(client PubSub) {
	h.mu.Lock()
	h.client = client
	h.mu.Unlock()
}

// Client returns the held client, nil outside Setup and Cleanup.
func (h *Holder) Client() PubSub {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.client
}

// Healthy reports false with the connection state while a held client is not
// connected. No client means nothing to report.
func (h *Holder) Healthy() (bool, string) {
	client := h.Client()
	if client == nil || client.IsHealthy() {
		return true, ""
	}
	st := client.GetStatus()
	return false, fmt.Sprintf("NATS connection %s after %d failures", st.Status, st.FailureCount)
}
