package steward

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

const maxRecords = 20

// CycleRecord captures what happened in a single cycle.
type CycleRecord struct {
	Tick        uint64  `json:"tick"`
	Action      string  `json:"action"`
	CrisisLevel string  `json:"crisis_level"`
	Alive       int     `json:"alive"`
	AvgHunger   float64 `json:"avg_hunger"`
	Target      string  `json:"target,omitempty"`
	Rationale   string  `json:"rationale,omitempty"`
}

// CycleMemory is a bounded log of recent cycles, kept on disk between runs.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`

	path string
}

// LoadMemory reads the memory file at path. A missing or corrupt file yields
// an empty memory; an empty path keeps memory in-process only.
func LoadMemory(path string) *CycleMemory {
	mem := &CycleMemory{path: path}
	if path == "" {
		return mem
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("steward memory unreadable, starting fresh", "path", path, "error", err)
		}
		return mem
	}
	if err := json.Unmarshal(data, mem); err != nil {
		slog.Warn("steward memory corrupted, starting fresh", "path", path, "error", err)
		return &CycleMemory{path: path}
	}
	return mem
}

// Save writes the memory to its file.
func (m *CycleMemory) Save() error {
	if m.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal steward memory: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("write steward memory: %w", err)
	}
	return nil
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// CyclesSince counts the cycles recorded after the last one that took action.
// It returns -1 when action never happened in the remembered window.
func (m *CycleMemory) CyclesSince(action string) int {
	for i := len(m.Records) - 1; i >= 0; i-- {
		if m.Records[i].Action == action {
			return len(m.Records) - 1 - i
		}
	}
	return -1
}

// Count returns how many remembered cycles took action.
func (m *CycleMemory) Count(action string) int {
	n := 0
	for _, r := range m.Records {
		if r.Action == action {
			n++
		}
	}
	return n
}
