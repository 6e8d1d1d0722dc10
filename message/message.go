package message

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ItamarWilf/PipeRT/errors"
)

// History sections recorded by the pipeline.
const (
	SectionEntry = "entry"
	SectionExit  = "exit"
)

// History maps a component name to named timestamps within that component.
type History map[string]map[string]time.Time

// Message is the unit exchanged between routines. A message is annotated by
// every component it passes through; Exit is recorded at most once per component.
type Message struct {
	ID          string
	TraceID     string
	Source      string
	CreatedAt   time.Time
	Payload     Payload
	ReachedExit bool

	mu      sync.RWMutex
	history History
	gen     *Generator
}

func (m *Message) record(component, section string) {
	if m.history == nil {
		m.history = make(History)
	}
	sections, ok := m.history[component]
	if !ok {
		sections = make(map[string]time.Time)
		m.history[component] = sections
	}
	sections[section] = m.gen.now()
}

// RecordEntry stamps the time the message entered component.
func (m *Message) RecordEntry(component string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(component, SectionEntry)
}

// RecordCustom stamps the time the message reached section within component.
func (m *Message) RecordCustom(component, section string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(component, section)
}

// RecordExit stamps the time the message left component. Only the first call
// per component is recorded. Exiting a terminal component sets ReachedExit.
// It reports whether the exit was recorded by this call.
func (m *Message) RecordExit(component string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, done := m.history[component][SectionExit]; done {
		return false
	}
	m.record(component, SectionExit)
	if m.gen.IsTerminal(component) {
		m.ReachedExit = true
	}
	return true
}

// Timestamp returns the recorded time of section within component.
func (m *Message) Timestamp(component, section string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ts, ok := m.history[component][section]
	return ts, ok
}

// History returns a deep copy of the recorded history.
func (m *Message) History() History {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(History, len(m.history))
	for comp, sections := range m.history {
		out[comp] = maps.Clone(sections)
	}
	return out
}

// Latency returns the time between entry and exit of component.
func (m *Message) Latency(component string) (time.Duration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.history[component][SectionEntry]
	if !ok {
		return 0, false
	}
	exit, ok := m.history[component][SectionExit]
	if !ok {
		return 0, false
	}
	return exit.Sub(entry), true
}

// EndToEndLatency returns the time from entry into input to exit from output.
// It is only defined once the message reached a terminal component.
func (m *Message) EndToEndLatency(input, output string) (time.Duration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.ReachedExit {
		return 0, false
	}
	exit, ok := m.history[output][SectionExit]
	if !ok {
		return 0, false
	}
	entry, ok := m.history[input][SectionEntry]
	if !ok {
		return 0, false
	}
	return exit.Sub(entry), true
}

// PipelineLatency returns the time from the earliest recorded entry to the
// exit from output. Like EndToEndLatency it needs the terminal exit.
func (m *Message) PipelineLatency(output string) (time.Duration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.ReachedExit {
		return 0, false
	}
	exit, ok := m.history[output][SectionExit]
	if !ok {
		return 0, false
	}
	var first time.Time
	for _, sections := range m.history {
		if entry, ok := sections[SectionEntry]; ok && (first.IsZero() || entry.Before(first)) {
			first = entry
		}
	}
	if first.IsZero() {
		return 0, false
	}
	return exit.Sub(first), true
}

// UpdatePayload replaces the payload, keeping identity and history.
func (m *Message) UpdatePayload(p Payload) {
	m.Payload = p
}

// IsEmpty reports whether the message carries no usable payload.
func (m *Message) IsEmpty() bool {
	return m.Payload == nil || m.Payload.IsEmpty()
}

func (m *Message) payloadKind() Kind {
	if m.Payload == nil {
		return ""
	}
	return m.Payload.Kind()
}

func (m *Message) String() string {
	return fmt.Sprintf("{msg id: %s, payload type: %s, source address: %s}", m.ID, m.payloadKind(), m.Source)
}

// FullDescription is String plus the recorded history in component order.
func (m *Message) FullDescription() string {
	h := m.History()

	var b strings.Builder
	fmt.Fprintf(&b, "msg id: %s, payload type: %s, source address: %s, history: {", m.ID, m.payloadKind(), m.Source)
	for i, comp := range slices.Sorted(maps.Keys(h)) {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: {", comp)
		for j, section := range slices.Sorted(maps.Keys(h[comp])) {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %s", section, h[comp][section].Format(time.RFC3339Nano))
		}
		b.WriteString("}")
	}
	b.WriteString("}")
	return b.String()
}

type envelope struct {
	ID          string          `json:"id"`
	TraceID     string          `json:"trace_id,omitempty"`
	Source      string          `json:"source"`
	CreatedAt   time.Time       `json:"created_at"`
	Kind        Kind            `json:"kind,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	History     History         `json:"history,omitempty"`
	ReachedExit bool            `json:"reached_exit"`
}

// Encode serializes the message, payload and history included.
func (m *Message) Encode() ([]byte, error) {
	env := envelope{
		ID:          m.ID,
		TraceID:     m.TraceID,
		Source:      m.Source,
		CreatedAt:   m.CreatedAt,
		Kind:        m.payloadKind(),
		History:     m.History(),
		ReachedExit: m.ReachedExit,
	}
	if m.Payload != nil {
		data, err := json.Marshal(m.Payload)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Message", "Encode", "marshal payload")
		}
		env.Payload = data
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Message", "Encode", "marshal envelope")
	}
	return data, nil
}
