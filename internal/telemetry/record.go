// Package telemetry carries the per-event records agents emit: one record per
// state entry, action resolution, territorial reaction or death.
package telemetry

import "sync"

// Record is one meaningful event in an agent's life. Stat fields hold the
// values after the event was applied.
type Record struct {
	Tick    uint64  `json:"tick"`
	AgentID uint64  `json:"agent_id"`
	Agent   string  `json:"agent"`
	Kind    string  `json:"kind"` // "forage", "hunt", "rest", "help_start", "death", "territory_warned", ...
	State   string  `json:"state"`
	Action  string  `json:"action,omitempty"`
	Target  string  `json:"target,omitempty"`
	Success bool    `json:"success,omitempty"`
	Amount  float64 `json:"amount"`

	Hunger      float64 `json:"hunger"`
	Fatigue     float64 `json:"fatigue"`
	Injury      float64 `json:"injury"`
	Heat        float64 `json:"heat"`
	Temperature float64 `json:"temperature"`
	Kappa       float64 `json:"kappa"` // κ of Action after the update; 0 when no action applies

	Detail string `json:"detail,omitempty"`
}

// Sink receives records. Emit must not block the tick for long.
type Sink interface {
	Emit(Record)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Record)

// Emit calls f(r).
func (f SinkFunc) Emit(r Record) { f(r) }

// Discard drops every record.
var Discard Sink = SinkFunc(func(Record) {})

// Fanout forwards each record to every sink in order.
type Fanout []Sink

// Emit forwards r to each sink.
func (f Fanout) Emit(r Record) {
	for _, s := range f {
		if s != nil {
			s.Emit(r)
		}
	}
}

// Memory keeps records in memory. Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Emit appends r.
func (m *Memory) Emit(r Record) {
	m.mu.Lock()
	m.records = append(m.records, r)
	m.mu.Unlock()
}

// Records returns a copy of everything emitted so far.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// Kind returns the records with the given kind.
func (m *Memory) Kind(kind string) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, r := range m.records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Reset discards everything recorded.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.records = nil
	m.mu.Unlock()
}
