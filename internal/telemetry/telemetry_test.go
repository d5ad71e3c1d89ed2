package telemetry

import (
	"os"
	"testing"
)

func TestFanoutAndMemory(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	var calls int
	sink := Fanout{a, b, SinkFunc(func(Record) { calls++ }), nil}

	sink.Emit(Record{Tick: 1, Kind: "rest"})
	sink.Emit(Record{Tick: 2, Kind: "forage"})

	if len(a.Records()) != 2 || len(b.Records()) != 2 || calls != 2 {
		t.Fatalf("expected every sink to see 2 records, got %d, %d, %d",
			len(a.Records()), len(b.Records()), calls)
	}
	if got := a.Kind("forage"); len(got) != 1 || got[0].Tick != 2 {
		t.Fatalf("expected one forage record at tick 2, got %+v", got)
	}
	a.Reset()
	if len(a.Records()) != 0 {
		t.Fatal("expected reset to clear records")
	}
}

func TestJSONLZstdWriterRotatesAndReadsBack(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "telemetry", 10)

	for tick := uint64(0); tick < 25; tick++ {
		w.Emit(Record{Tick: tick, AgentID: 7, Kind: "idle"})
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 rotated files, got %d", len(entries))
	}

	recs, err := ReadFile(w.PathFor(1))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != 10 || recs[0].Tick != 10 || recs[9].Tick != 19 {
		t.Fatalf("expected ticks 10..19 in part 1, got %d records", len(recs))
	}
	if recs[0].AgentID != 7 {
		t.Fatalf("expected agent 7, got %d", recs[0].AgentID)
	}
}
