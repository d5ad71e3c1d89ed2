// Package config loads the run configuration: built-in defaults overlaid by
// an optional YAML file, validated against an embedded JSON Schema.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/talgya/ssd-village/internal/agents"
	"github.com/talgya/ssd-village/internal/weather"
	"github.com/talgya/ssd-village/internal/world"
)

//go:embed defaults.yaml
var defaultsYAML []byte

//go:embed schema.json
var schemaJSON string

// ErrInvalid marks a configuration that failed to parse or validate.
var ErrInvalid = errors.New("invalid config")

// Config is the complete run configuration.
type Config struct {
	Sim     Sim            `yaml:"sim"`
	World   World          `yaml:"world"`
	Agents  agents.Params  `yaml:"agents"`
	Presets agents.Presets `yaml:"presets"`
	Roster  []agents.Spec  `yaml:"roster"`
	Storage Storage        `yaml:"storage"`
	API     API            `yaml:"api"`
}

// Sim configures the run itself.
type Sim struct {
	Seed         int64         `yaml:"seed"`
	TickInterval time.Duration `yaml:"tick_interval"`
	Speed        float64       `yaml:"speed"`
	Ticks        uint64        `yaml:"ticks"`
	Debug        bool          `yaml:"debug"`
	LogLevel     string        `yaml:"log_level"`
}

// World configures map generation and the day cycle.
type World struct {
	Width        int     `yaml:"width"`
	Height       int     `yaml:"height"`
	Berries      int     `yaml:"berries"`
	HuntZones    int     `yaml:"hunt_zones"`
	RandomAgents int     `yaml:"random_agents"`
	DayLength    int     `yaml:"day_length"`
	NightStart   float64 `yaml:"night_start"`
	NightEnd     float64 `yaml:"night_end"`
	SeasonLength int     `yaml:"season_length"`
}

// Storage locates everything written to disk.
type Storage struct {
	DBPath                string `yaml:"db_path"`
	SnapshotPath          string `yaml:"snapshot_path"`
	TelemetryDir          string `yaml:"telemetry_dir"`
	TelemetryTicksPerFile uint64 `yaml:"telemetry_ticks_per_file"`
}

// API configures the observation server.
type API struct {
	Port            int    `yaml:"port"`
	AdminKeyEnv     string `yaml:"admin_key_env"`
	StreamPerMinute int    `yaml:"stream_per_minute"`
}

// GenConfig returns the map generation settings for seed.
func (w World) GenConfig(seed int64) world.GenConfig {
	return world.GenConfig{
		Width:     w.Width,
		Height:    w.Height,
		Berries:   w.Berries,
		HuntZones: w.HuntZones,
		Seed:      seed,
	}
}

// CycleConfig returns the day and season shape.
func (w World) CycleConfig() weather.CycleConfig {
	return weather.CycleConfig{
		DayLength:    w.DayLength,
		NightStart:   w.NightStart,
		NightEnd:     w.NightEnd,
		SeasonLength: w.SeasonLength,
	}
}

// Level returns the slog level named by LogLevel.
func (s Sim) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// AdminKey reads the admin bearer token from the configured environment
// variable. Empty disables the admin endpoints.
func (a API) AdminKey() string {
	if a.AdminKeyEnv == "" {
		return ""
	}
	return os.Getenv(a.AdminKeyEnv)
}

// Default returns the built-in configuration.
func Default() Config {
	cfg, err := Parse(nil)
	if err != nil {
		panic(fmt.Sprintf("config: built-in defaults: %v", err))
	}
	return cfg
}

// Load reads the YAML file at path over the defaults. An empty path loads the
// defaults alone.
func Load(path string) (Config, error) {
	if path == "" {
		return Parse(nil)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse merges user YAML over the defaults, validates the result and
// decodes it.
func Parse(user []byte) (Config, error) {
	var base map[string]any
	if err := yaml.Unmarshal(defaultsYAML, &base); err != nil {
		return Config{}, fmt.Errorf("defaults: %w", err)
	}
	if len(bytes.TrimSpace(user)) > 0 {
		var overlay map[string]any
		if err := yaml.Unmarshal(user, &overlay); err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		base = merge(base, overlay)
	}

	if err := validate(base); err != nil {
		return Config{}, err
	}

	merged, err := yaml.Marshal(base)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(merged, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cfg.Presets = normalizePresets(cfg.Presets)
	if err := cfg.check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// merge overlays src onto dst. Nested mappings merge; anything else replaces.
func merge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		sv, sok := v.(map[string]any)
		dv, dok := dst[k].(map[string]any)
		if sok && dok {
			dst[k] = merge(dv, sv)
			continue
		}
		dst[k] = v
	}
	return dst
}

// validate checks the merged document against the embedded schema. The
// document goes through JSON first so the validator sees JSON types.
func validate(doc map[string]any) error {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource("schema.json", strings.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	schema, err := c.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func normalizePresets(in agents.Presets) agents.Presets {
	out := make(agents.Presets, len(in))
	for k, v := range in {
		out[strings.ToUpper(k)] = v
	}
	return out
}

// check enforces the cross-field rules the schema cannot express.
func (c Config) check() error {
	p := c.Agents
	if p.TMin > p.TMax {
		return fmt.Errorf("%w: agents.t_min %v above t_max %v", ErrInvalid, p.TMin, p.TMax)
	}
	if p.T0 < p.TMin || p.T0 > p.TMax {
		return fmt.Errorf("%w: agents.t0 %v outside [%v,%v]", ErrInvalid, p.T0, p.TMin, p.TMax)
	}
	if c.World.NightStart >= c.World.NightEnd {
		return fmt.Errorf("%w: world.night_start must precede night_end", ErrInvalid)
	}
	bounds := world.Bounds{Width: c.World.Width, Height: c.World.Height}
	if n := c.World.Berries + c.World.HuntZones; n > bounds.Cells() {
		return fmt.Errorf("%w: world has %d nodes for %d cells", ErrInvalid, n, bounds.Cells())
	}
	for i, s := range c.Roster {
		if _, err := c.Presets.Lookup(s.Preset); err != nil {
			return fmt.Errorf("%w: roster[%d]: %v", ErrInvalid, i, err)
		}
		if !bounds.Contains(s.Start) {
			return fmt.Errorf("%w: roster[%d]: start %s outside %dx%d", ErrInvalid, i, s.Start, bounds.Width, bounds.Height)
		}
	}
	return nil
}
