// Package steward is an out-of-process caretaker for a running village. It
// polls the observation API, grades the village's health with fixed rules and
// applies at most one gentle intervention per cycle through the admin API.
package steward

import (
	"context"
	"fmt"
	"net/http"

	"github.com/talgya/ssd-village/internal/world"
)

// Observation is everything a cycle looks at.
type Observation struct {
	Status StatusResponse
	Stats  StatsResponse
	Nodes  NodesResponse
}

// StatusResponse mirrors GET /api/v1/status.
type StatusResponse struct {
	RunID       string `json:"run_id"`
	Tick        uint64 `json:"tick"`
	Season      string `json:"season"`
	Night       bool   `json:"night"`
	Alive       int    `json:"alive"`
	Dead        int    `json:"dead"`
	Territories int    `json:"territories"`
}

// StatsResponse mirrors the fields of GET /api/v1/stats the rules read.
type StatsResponse struct {
	Alive         int            `json:"alive"`
	Dead          int            `json:"dead"`
	DeathsByCause map[string]int `json:"deaths_by_cause"`
	AvgHunger     float64        `json:"avg_hunger"`
	AvgFatigue    float64        `json:"avg_fatigue"`
	AvgInjury     float64        `json:"avg_injury"`
}

// NodesResponse mirrors GET /api/v1/nodes.
type NodesResponse struct {
	Bounds    world.Bounds       `json:"bounds"`
	Berries   []world.BerryPatch `json:"berries"`
	HuntZones []world.HuntZone   `json:"hunt_zones"`
}

// Observer reads village state from the API.
type Observer struct {
	api apiClient
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{api: newAPIClient(baseURL, "")}
}

// Observe fetches status, stats and nodes.
func (o *Observer) Observe(ctx context.Context) (*Observation, error) {
	obs := &Observation{}
	for _, q := range []struct {
		path string
		out  any
	}{
		{"/api/v1/status", &obs.Status},
		{"/api/v1/stats", &obs.Stats},
		{"/api/v1/nodes", &obs.Nodes},
	} {
		if err := o.api.call(ctx, http.MethodGet, q.path, nil, q.out); err != nil {
			return nil, fmt.Errorf("observe: %w", err)
		}
	}
	return obs, nil
}

// Ready reports whether the status endpoint answers.
func (o *Observer) Ready(ctx context.Context) bool {
	return o.api.call(ctx, http.MethodGet, "/api/v1/status", nil, nil) == nil
}
