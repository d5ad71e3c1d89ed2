// Package api provides the HTTP API for observing the village.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/talgya/ssd-village/internal/agents"
	"github.com/talgya/ssd-village/internal/engine"
	"github.com/talgya/ssd-village/internal/persistence"
	"github.com/talgya/ssd-village/internal/world"
)

const (
	maxStreamConns = 8
	streamCatchUp  = 50
	defaultEvents  = 100
	maxEvents      = 1000
)

// Server serves the village state over HTTP.
type Server struct {
	Sim          *engine.Simulation
	Eng          *engine.Engine
	DB           *persistence.DB // nil disables /snapshot persistence
	SnapshotPath string          // empty skips the snapshot file
	Port         int
	AdminKey     string // Bearer token for POST endpoints. Empty = POST disabled.
	StreamLimit  int    // stream connections per IP per minute

	streamConns atomic.Int32
	upgrader    websocket.Upgrader
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	limit := s.StreamLimit
	if limit <= 0 {
		limit = 30
	}
	streamLimiter := NewRateLimiter(limit, time.Minute)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agent/", s.handleAgent)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/territories", s.handleTerritories)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/nodes", s.handleNodes)

	// WebSocket telemetry stream.
	mux.HandleFunc("/api/v1/stream", RateLimitMiddleware(streamLimiter, s.handleStream))

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))
	mux.HandleFunc("/api/v1/intervention", s.adminOnly(s.handleIntervention))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine. The returned server can
// be shut down by the caller.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no admin key set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.Sim.RLock()
	tick := s.Sim.LastTick
	dayLength := uint64(s.Sim.Cycle.DayLength())
	season := s.Sim.Cycle.Season()
	night := s.Sim.Cycle.IsNight()
	light := s.Sim.Cycle.LightLevel()
	st := s.Sim.Stats
	draws := s.Sim.Draws
	runID := s.Sim.RunID.String()
	started := s.Sim.StartedAt
	s.Sim.RUnlock()

	status := map[string]any{
		"name":        "ssd-village",
		"run_id":      runID,
		"tick":        tick,
		"tick_human":  humanize.Comma(int64(tick)),
		"sim_time":    engine.SimTime(tick, dayLength),
		"season":      season.Name,
		"night":       night,
		"light":       light,
		"alive":       st.Alive,
		"dead":        st.Dead,
		"territories": st.Territories,
		"draws":       humanize.Comma(int64(draws)),
		"started":     humanize.Time(started),
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
		status["running"] = s.Eng.Running()
	}
	writeJSON(w, status)
}

type agentSummary struct {
	ID           agents.AgentID `json:"id"`
	Name         string         `json:"name"`
	Preset       string         `json:"preset"`
	Alive        bool           `json:"alive"`
	Position     world.Pos      `json:"position"`
	State        string         `json:"state"`
	Hunger       float64        `json:"hunger"`
	Fatigue      float64        `json:"fatigue"`
	Injury       float64        `json:"injury"`
	Heat         float64        `json:"heat"`
	Temperature  float64        `json:"temperature"`
	KappaMean    float64        `json:"kappa_mean"`
	HasTerritory bool           `json:"has_territory"`
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	aliveOnly := r.URL.Query().Get("alive") == "true"
	preset := strings.ToUpper(r.URL.Query().Get("preset"))

	result := []agentSummary{}
	for _, a := range s.Sim.AgentCopies() {
		if aliveOnly && !a.Alive {
			continue
		}
		if preset != "" && a.Preset != preset {
			continue
		}
		result = append(result, agentSummary{
			ID:           a.ID,
			Name:         a.Name,
			Preset:       a.Preset,
			Alive:        a.Alive,
			Position:     a.Position,
			State:        a.State.String(),
			Hunger:       a.Stats.Hunger,
			Fatigue:      a.Stats.Fatigue,
			Injury:       a.Stats.Injury,
			Heat:         a.Heat,
			Temperature:  a.Temperature,
			KappaMean:    a.Kappa.Mean(),
			HasTerritory: a.Territory != nil,
		})
	}
	writeJSON(w, result)
}

// agentDetail is the full agent plus derived decision inputs.
type agentDetail struct {
	Agent     agents.Agent               `json:"agent"`
	Pressure  agents.Pressure            `json:"pressure"`
	Utilities [agents.NumActions]float64 `json:"utilities"`
	Probs     [agents.NumActions]float64 `json:"probabilities"`
	InCrisis  bool                       `json:"in_crisis"`
	Relations []engine.Relation          `json:"relations"`
	Nearby    []agents.AgentID           `json:"nearby"`
	AtHome    bool                       `json:"at_home"`
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 5 || parts[4] == "" {
		http.Error(w, "missing agent id", http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseUint(parts[4], 10, 64)
	if err != nil {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return
	}

	s.Sim.RLock()
	a := s.Sim.Roster.Get(agents.AgentID(id))
	if a == nil {
		s.Sim.RUnlock()
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	p := a.Params()
	d := agentDetail{
		Agent:     a.Clone(),
		InCrisis:  a.InCrisis(),
		Relations: engine.Relations(a),
		AtHome:    a.AtHome(),
		Nearby:    []agents.AgentID{},
	}
	if a.Alive {
		d.Pressure = a.Pressures(s.Sim.Roster)
		d.Utilities = agents.Utilities(d.Pressure, a.Kappa, a.Traits, p)
		d.Probs = agents.Softmax(d.Utilities, a.Temperature, p.TFloor)
		for _, o := range s.Sim.Roster.Nearby(a, p.HelpRadius) {
			d.Nearby = append(d.Nearby, o.ID)
		}
	}
	s.Sim.RUnlock()

	writeJSON(w, d)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEvents
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxEvents)
	}
	category := r.URL.Query().Get("category")

	var events []engine.Event
	if r.URL.Query().Get("source") == "db" {
		if s.DB == nil {
			http.Error(w, "database not available", http.StatusServiceUnavailable)
			return
		}
		stored, err := s.DB.RecentEvents(maxEvents)
		if err != nil {
			slog.Error("event query failed", "error", err)
			http.Error(w, "event query failed", http.StatusInternalServerError)
			return
		}
		// Stored events come newest first.
		for i := len(stored) - 1; i >= 0; i-- {
			events = append(events, stored[i])
		}
	} else {
		events = s.Sim.RecentEvents(0)
	}

	result := []engine.Event{}
	for i := len(events) - 1; i >= 0 && len(result) < limit; i-- {
		if category == "" || events[i].Category == category {
			result = append(result, events[i])
		}
	}
	writeJSON(w, result)
}

type territorySummary struct {
	Owner      agents.AgentID   `json:"owner"`
	OwnerName  string           `json:"owner_name"`
	CenterX    float64          `json:"center_x"`
	CenterY    float64          `json:"center_y"`
	Radius     float64          `json:"radius"`
	Attachment float64          `json:"attachment"`
	ClaimedAt  uint64           `json:"claimed_at"`
	Memory     map[string]int   `json:"memory"`
	Guests     []agents.AgentID `json:"guests"`
	OwnerAlive bool             `json:"owner_alive"`
}

func (s *Server) handleTerritories(w http.ResponseWriter, r *http.Request) {
	result := []territorySummary{}
	for _, a := range s.Sim.AgentCopies() {
		t := a.Territory
		if t == nil {
			continue
		}
		guests := make([]agents.AgentID, 0, len(t.Guests))
		for id := range t.Guests {
			guests = append(guests, id)
		}
		sort.Slice(guests, func(i, j int) bool { return guests[i] < guests[j] })
		result = append(result, territorySummary{
			Owner:      a.ID,
			OwnerName:  a.Name,
			CenterX:    t.CenterX,
			CenterY:    t.CenterY,
			Radius:     t.Radius,
			Attachment: t.Attachment,
			ClaimedAt:  t.ClaimedAt,
			Memory:     t.Memory,
			Guests:     guests,
			OwnerAlive: a.Alive,
		})
	}
	writeJSON(w, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Snapshot())
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	s.Sim.RLock()
	nodes := s.Sim.Map.State()
	bounds := s.Sim.Map.Bounds
	s.Sim.RUnlock()

	writeJSON(w, map[string]any{
		"bounds":     bounds,
		"berries":    nodes.Berries,
		"hunt_zones": nodes.HuntZones,
	})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Eng == nil {
		http.Error(w, "engine not available", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := s.Eng.SetSpeed(req.Speed); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"speed": s.Eng.Speed()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil && s.SnapshotPath == "" {
		http.Error(w, "persistence not available", http.StatusServiceUnavailable)
		return
	}

	if s.DB != nil {
		if err := s.DB.SaveWorldState(s.Sim); err != nil {
			slog.Error("snapshot save failed", "error", err)
			http.Error(w, "snapshot failed", http.StatusInternalServerError)
			return
		}
	}
	if s.SnapshotPath != "" {
		if err := persistence.WriteSnapshot(s.SnapshotPath, persistence.TakeSnapshot(s.Sim)); err != nil {
			slog.Error("snapshot write failed", "error", err)
			http.Error(w, "snapshot failed", http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, map[string]any{
		"tick":    s.Sim.CurrentTick(),
		"message": "snapshot saved",
	})
}

func (s *Server) handleIntervention(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Type      string     `json:"type"`
		Pos       *world.Pos `json:"pos,omitempty"`
		Abundance float64    `json:"abundance,omitempty"`
		Name      string     `json:"name,omitempty"`
		Preset    string     `json:"preset,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	switch req.Type {
	case "provision":
		if req.Pos == nil {
			http.Error(w, "pos required for provision type", http.StatusBadRequest)
			return
		}
		desc, err := s.Sim.ProvisionNode(*req.Pos, req.Abundance)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{"success": true, "details": desc})

	case "immigrate":
		if req.Pos == nil || req.Preset == "" {
			http.Error(w, "pos and preset required for immigrate type", http.StatusBadRequest)
			return
		}
		a, err := s.Sim.Immigrate(agents.Spec{Name: req.Name, Preset: req.Preset, Start: *req.Pos})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{
			"success": true,
			"details": fmt.Sprintf("%s arrived at %s", a.Name, a.Position),
			"id":      a.ID,
		})

	default:
		http.Error(w, "unknown intervention type (use: provision, immigrate)", http.StatusBadRequest)
	}
}

// handleStream upgrades to a WebSocket and forwards live telemetry records.
// Recent events are sent first as catch-up.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	current := s.streamConns.Add(1)
	defer s.streamConns.Add(-1)
	if current > maxStreamConns {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	subID, ch := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(subID)
	slog.Info("stream client connected", "sub_id", subID)

	send := func(v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return conn.WriteMessage(websocket.TextMessage, b)
	}

	for _, e := range s.Sim.RecentEvents(streamCatchUp) {
		if err := send(streamMessage{Type: "event", Event: &e}); err != nil {
			return
		}
	}

	// Reader goroutine: the client sends nothing we act on, but reading is
	// how close frames and dead peers are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case rec, ok := <-ch:
			if !ok {
				return
			}
			if err := send(streamMessage{Type: "record", Record: &rec}); err != nil {
				return
			}
		case <-heartbeat.C:
			_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
		case <-done:
			slog.Info("stream client disconnected", "sub_id", subID)
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
