package persistence

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/ssd-village/internal/agents"
	"github.com/talgya/ssd-village/internal/engine"
	"github.com/talgya/ssd-village/internal/world"
)

// SnapshotVersion is bumped whenever Snapshot changes shape.
const SnapshotVersion = 1

// Header is written as a plain JSON line ahead of the gob body so a snapshot
// can be identified without decoding it.
type Header struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`
	Tick    uint64 `json:"tick"`
	Agents  int    `json:"agents"`
}

// Snapshot is a complete point-in-time copy of a run.
type Snapshot struct {
	Header Header

	Seed   int64
	Resume engine.ResumePoint
	Nodes  world.NodeState
	Agents []agents.Agent
}

// TakeSnapshot copies the simulation under its read lock.
func TakeSnapshot(sim *engine.Simulation) Snapshot {
	sim.RLock()
	defer sim.RUnlock()

	all := sim.Roster.All()
	snap := Snapshot{
		Header: Header{
			Version: SnapshotVersion,
			RunID:   sim.RunID.String(),
			Tick:    sim.LastTick,
			Agents:  len(all),
		},
		Seed:   sim.Seed,
		Resume: engine.ResumePoint{Tick: sim.LastTick, Draws: sim.Draws, EventSeq: sim.EventSeq},
		Nodes:  sim.Map.State(),
		Agents: make([]agents.Agent, 0, len(all)),
	}
	for _, a := range all {
		snap.Agents = append(snap.Agents, a.Clone())
	}
	return snap
}

// Restored returns the snapshot's agents bound to p, in roster order.
func (s Snapshot) Restored(p *agents.Params) []*agents.Agent {
	out := make([]*agents.Agent, len(s.Agents))
	for i := range s.Agents {
		a := s.Agents[i].Clone()
		a.Bind(p)
		out[i] = &a
	}
	return out
}

// WriteSnapshot writes snap to path as zstd(header line + gob body).
func WriteSnapshot(path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)
	hb, err := json.Marshal(snap.Header)
	if err != nil {
		enc.Close()
		return err
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

// ReadHeader decodes only the header line of a snapshot.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

// ReadSnapshot decodes a snapshot written by WriteSnapshot.
func ReadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != SnapshotVersion {
		return snap, fmt.Errorf("snapshot version %d, want %d", snap.Header.Version, SnapshotVersion)
	}
	return snap, nil
}
