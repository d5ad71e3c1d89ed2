package world

import (
	"fmt"
	"sort"
)

// NodeKind distinguishes the two kinds of resource node.
type NodeKind uint8

const (
	NodeBerry NodeKind = iota // Forage target
	NodeHunt                  // Hunt target
)

func (k NodeKind) String() string {
	switch k {
	case NodeBerry:
		return "berry"
	case NodeHunt:
		return "hunt"
	default:
		return "unknown"
	}
}

// BerryPatch is a forage node. Abundance is consumed on success and regrows.
type BerryPatch struct {
	Pos       Pos     `json:"pos"`
	Abundance float64 `json:"abundance"` // 0.0–1.0
	Regen     float64 `json:"regen"`     // fraction of the gap to 1.0 recovered per tick
}

// HuntZone is a hunt node. BaseSuccess random-walks a little every tick.
type HuntZone struct {
	Pos         Pos     `json:"pos"`
	BaseSuccess float64 `json:"base_success"` // 0.03–0.8
	Danger      float64 `json:"danger"`       // scales injury risk
}

// Map holds the resource nodes keyed by cell.
type Map struct {
	Bounds    Bounds              `json:"bounds"`
	Berries   map[Pos]*BerryPatch `json:"-"`
	HuntZones map[Pos]*HuntZone   `json:"-"`
	Fertility map[Pos]float64     `json:"-"` // sampled noise per node cell, kept for reporting
}

// NewMap creates an empty map with the given bounds.
func NewMap(b Bounds) *Map {
	return &Map{
		Bounds:    b,
		Berries:   make(map[Pos]*BerryPatch),
		HuntZones: make(map[Pos]*HuntZone),
		Fertility: make(map[Pos]float64),
	}
}

// Berry returns the patch at p, or nil.
func (m *Map) Berry(p Pos) *BerryPatch {
	return m.Berries[p]
}

// Zone returns the hunt zone at p, or nil.
func (m *Map) Zone(p Pos) *HuntZone {
	return m.HuntZones[p]
}

// NodePositions returns all node cells of a kind in (y, x) order.
func (m *Map) NodePositions(kind NodeKind) []Pos {
	var out []Pos
	switch kind {
	case NodeBerry:
		out = make([]Pos, 0, len(m.Berries))
		for p := range m.Berries {
			out = append(out, p)
		}
	case NodeHunt:
		out = make([]Pos, 0, len(m.HuntZones))
		for p := range m.HuntZones {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return lessPos(out[i], out[j]) })
	return out
}

// NodeCount returns the number of nodes of each kind.
func (m *Map) NodeCount() (berries, zones int) {
	return len(m.Berries), len(m.HuntZones)
}

// NodeState is the mutable part of a map. The layout is regenerated from the
// seed; the state carries abundances and drifted success rates across restarts.
type NodeState struct {
	Berries   []BerryPatch `json:"berries"`
	HuntZones []HuntZone   `json:"hunt_zones"`
}

// State captures every node in (y, x) order.
func (m *Map) State() NodeState {
	var s NodeState
	for _, p := range m.NodePositions(NodeBerry) {
		s.Berries = append(s.Berries, *m.Berries[p])
	}
	for _, p := range m.NodePositions(NodeHunt) {
		s.HuntZones = append(s.HuntZones, *m.HuntZones[p])
	}
	return s
}

// Restore overwrites node values from a saved state. Every saved node must
// exist in the map; a mismatch means the map came from a different seed.
func (m *Map) Restore(s NodeState) error {
	for _, b := range s.Berries {
		patch := m.Berries[b.Pos]
		if patch == nil {
			return fmt.Errorf("restore berry at %s: %w", b.Pos, ErrInvalidTarget)
		}
		*patch = b
	}
	for _, z := range s.HuntZones {
		zone := m.HuntZones[z.Pos]
		if zone == nil {
			return fmt.Errorf("restore hunt zone at %s: %w", z.Pos, ErrInvalidTarget)
		}
		*zone = z
	}
	return nil
}

func (m *Map) String() string {
	return fmt.Sprintf("Map(%dx%d, berries=%d, hunt_zones=%d)",
		m.Bounds.Width, m.Bounds.Height, len(m.Berries), len(m.HuntZones))
}

func lessPos(a, b Pos) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}
