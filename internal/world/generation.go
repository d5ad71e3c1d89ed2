// World generation: resource nodes placed against layered simplex noise.
// A fertility field pulls berry patches together into groves; a separate
// wildness field does the same for hunt zones.
package world

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/ssd-village/internal/entropy"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Width     int   // Grid width in cells
	Height    int   // Grid height in cells
	Berries   int   // Number of berry patches
	HuntZones int   // Number of hunt zones
	Seed      int64 // Random seed (0 = random)
}

// DefaultGenConfig returns the village-sized default.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:     40,
		Height:    40,
		Berries:   15,
		HuntZones: 10,
		Seed:      0,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Width:     12,
		Height:    12,
		Berries:   4,
		HuntZones: 3,
		Seed:      42,
	}
}

// maxPlacementTries bounds rejection sampling per node before falling back
// to uniform placement.
const maxPlacementTries = 200

// Generate creates a node map. The same seed always yields the same map.
// Every node gets its own cell; placement stops once the grid is full.
func Generate(cfg GenConfig) *Map {
	seed := cfg.Seed
	if seed == 0 {
		seed = entropy.CryptoSeed()
	}

	fertNoise := opensimplex.NewNormalized(seed)
	wildNoise := opensimplex.NewNormalized(seed + 1)
	rng := entropy.NewSeeded(entropy.Derive(seed, 100))

	m := NewMap(Bounds{Width: cfg.Width, Height: cfg.Height})
	if m.Bounds.Cells() == 0 {
		return m
	}

	occupied := make(map[Pos]bool)
	cells := m.Bounds.Cells()

	for i := 0; i < cfg.Berries && len(occupied) < cells; i++ {
		p, f := place(m.Bounds, rng, occupied, fertNoise)
		occupied[p] = true
		m.Fertility[p] = f
		abundance := entropy.Uniform(rng, 0.2, 0.6) * (0.8 + 0.4*f)
		m.Berries[p] = &BerryPatch{
			Pos:       p,
			Abundance: math.Min(1, abundance),
			Regen:     entropy.Uniform(rng, 0.003, 0.015),
		}
	}

	for i := 0; i < cfg.HuntZones && len(occupied) < cells; i++ {
		p, w := place(m.Bounds, rng, occupied, wildNoise)
		occupied[p] = true
		m.Fertility[p] = w
		m.HuntZones[p] = &HuntZone{
			Pos:         p,
			BaseSuccess: entropy.Uniform(rng, 0.15, 0.45),
			Danger:      entropy.Uniform(rng, 0.25, 0.65),
		}
	}

	return m
}

// place picks a free cell, accepting candidates with probability rising with
// the noise field. Returns the cell and its field value. The grid must have
// at least one free cell.
func place(b Bounds, rng entropy.Source, occupied map[Pos]bool, field opensimplex.Noise) (Pos, float64) {
	for try := 0; try < maxPlacementTries; try++ {
		p := Pos{X: rng.Intn(b.Width), Y: rng.Intn(b.Height)}
		if occupied[p] {
			continue
		}
		f := sample(field, p)
		if rng.Float64() < 0.25+0.75*f {
			return p, f
		}
	}

	for {
		p := Pos{X: rng.Intn(b.Width), Y: rng.Intn(b.Height)}
		if !occupied[p] {
			return p, sample(field, p)
		}
	}
}

func sample(field opensimplex.Noise, p Pos) float64 {
	return octaveNoise(field, float64(p.X), float64(p.Y), 3, 0.08, 0.5)
}

// octaveNoise samples multi-octave noise normalized to 0–1.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
