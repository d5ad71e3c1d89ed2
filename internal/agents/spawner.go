// Agent spawning: builds the roster from explicit specs or fills it with
// randomly placed agents of random presets.
package agents

import (
	"fmt"
	"strings"

	"github.com/talgya/ssd-village/internal/entropy"
	"github.com/talgya/ssd-village/internal/world"
)

// Spec describes one agent to create.
type Spec struct {
	Name   string    `yaml:"name" json:"name"`
	Preset string    `yaml:"preset" json:"preset"`
	Start  world.Pos `yaml:"start" json:"start"`
}

// Spawner creates agents for the simulation.
type Spawner struct {
	rng     entropy.Source
	presets Presets
	params  *Params
	nextID  AgentID
}

// NewSpawner creates an agent spawner with its own stream derived from seed.
func NewSpawner(seed int64, presets Presets, p *Params) *Spawner {
	if presets == nil {
		presets = DefaultPresets()
	}
	return &Spawner{
		rng:     entropy.NewSeeded(entropy.Derive(seed, 300)),
		presets: presets,
		params:  p,
		nextID:  1,
	}
}

// SetNextID sets the next agent ID to be issued (used when restoring from DB).
func (s *Spawner) SetNextID(id AgentID) {
	s.nextID = id
}

// Spawn creates one agent from a spec. The start cell must be in bounds.
func (s *Spawner) Spawn(spec Spec, bounds world.Bounds) (*Agent, error) {
	traits, err := s.presets.Lookup(spec.Preset)
	if err != nil {
		return nil, err
	}
	if err := traits.Validate(); err != nil {
		return nil, fmt.Errorf("preset %s: %w", spec.Preset, err)
	}
	if !bounds.Contains(spec.Start) {
		return nil, fmt.Errorf("agent %s: start %s outside %dx%d", spec.Name, spec.Start, bounds.Width, bounds.Height)
	}

	id := s.nextID
	s.nextID++
	name := spec.Name
	if name == "" {
		name = s.generateName(spec.Preset, id)
	}
	return NewAgent(id, name, strings.ToUpper(spec.Preset), traits, spec.Start, s.params), nil
}

// SpawnAll creates agents for every spec in order.
func (s *Spawner) SpawnAll(specs []Spec, bounds world.Bounds) ([]*Agent, error) {
	out := make([]*Agent, 0, len(specs))
	for _, spec := range specs {
		a, err := s.Spawn(spec, bounds)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// SpawnRandom creates count agents with random presets at random cells.
func (s *Spawner) SpawnRandom(count int, bounds world.Bounds) []*Agent {
	names := s.presets.Names()
	out := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		preset := names[s.rng.Intn(len(names))]
		start := world.Pos{X: s.rng.Intn(bounds.Width), Y: s.rng.Intn(bounds.Height)}
		a, err := s.Spawn(Spec{Preset: preset, Start: start}, bounds)
		if err != nil {
			// Only a config preset with bad traits fails here.
			continue
		}
		out = append(out, a)
	}
	return out
}

// generateName builds "Forager_A"-style names, suffixed with the id past Z.
func (s *Spawner) generateName(preset string, id AgentID) string {
	base := strings.ToUpper(preset[:1]) + strings.ToLower(preset[1:])
	letter := string(rune('A' + (id-1)%26))
	if id > 26 {
		return fmt.Sprintf("%s_%s%d", base, letter, (id-1)/26)
	}
	return base + "_" + letter
}
