package persistence

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/talgya/ssd-village/internal/engine"
	"github.com/talgya/ssd-village/internal/world"
)

func TestSnapshotRoundTrip(t *testing.T) {
	sim := newTestSim(t)
	run(sim, 1, 200)

	path := filepath.Join(t.TempDir(), "snap", "village.snap.zst")
	if err := WriteSnapshot(path, TakeSnapshot(sim)); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if h.Tick != 200 || h.Agents != 10 || h.RunID != sim.RunID.String() {
		t.Fatalf("expected tick 200 with 10 agents, got %+v", h)
	}

	snap, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	restored := snap.Restored(sim.Params)
	if want, got := agentJSON(t, sim.Roster.All()), agentJSON(t, restored); !bytes.Equal(want, got) {
		t.Fatalf("expected identical agents\nwant %s\ngot  %s", want, got)
	}
}

func TestSnapshotResumeMatchesUninterruptedRun(t *testing.T) {
	full := newTestSim(t)
	run(full, 1, 180)

	half := newTestSim(t)
	run(half, 1, 90)
	path := filepath.Join(t.TempDir(), "half.snap.zst")
	if err := WriteSnapshot(path, TakeSnapshot(half)); err != nil {
		t.Fatalf("write: %v", err)
	}

	snap, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	m := world.Generate(world.SmallTestConfig())
	if err := m.Restore(snap.Nodes); err != nil {
		t.Fatalf("restore nodes: %v", err)
	}
	opts := testOptions(m)
	resumed := engine.NewSimulation(opts, snap.Restored(opts.Params))
	resumed.Resume(snap.Resume)
	run(resumed, 91, 180)

	if want, got := agentJSON(t, full.Roster.All()), agentJSON(t, resumed.Roster.All()); !bytes.Equal(want, got) {
		t.Fatal("expected snapshot resume to match the uninterrupted run")
	}
}

func TestReadSnapshotRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.snap.zst")
	if err := os.WriteFile(path, []byte("not zstd"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatal("expected error for a corrupt snapshot")
	}
}
