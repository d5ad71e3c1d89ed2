package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/ssd-village/internal/agents"
	"github.com/talgya/ssd-village/internal/engine"
	"github.com/talgya/ssd-village/internal/weather"
	"github.com/talgya/ssd-village/internal/world"
)

const testKey = "secret"

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	p := agents.DefaultParams()
	m := world.Generate(world.SmallTestConfig())
	pop := agents.NewSpawner(5, nil, &p).SpawnRandom(8, m.Bounds)
	sim := engine.NewSimulation(engine.Options{
		Seed:   5,
		Params: &p,
		Map:    m,
		Cycle:  weather.DefaultCycleConfig(),
	}, pop)
	for tick := uint64(1); tick <= 20; tick++ {
		sim.Tick(tick)
	}

	s := &Server{Sim: sim, Eng: engine.NewEngine(48, 0), AdminKey: testKey}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func post(t *testing.T, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestStatus(t *testing.T) {
	_, ts := newTestServer(t)
	var status map[string]any
	if code := getJSON(t, ts.URL+"/api/v1/status", &status); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if status["tick"].(float64) != 20 {
		t.Fatalf("expected tick 20, got %v", status["tick"])
	}
	if status["alive"].(float64)+status["dead"].(float64) != 8 {
		t.Fatalf("expected 8 agents, got %v alive %v dead", status["alive"], status["dead"])
	}
	if status["speed"].(float64) != 1 {
		t.Fatalf("expected speed 1, got %v", status["speed"])
	}
}

func TestAgentsList(t *testing.T) {
	s, ts := newTestServer(t)
	var all []agentSummary
	getJSON(t, ts.URL+"/api/v1/agents", &all)
	if len(all) != 8 {
		t.Fatalf("expected 8 agents, got %d", len(all))
	}
	var alive []agentSummary
	getJSON(t, ts.URL+"/api/v1/agents?alive=true", &alive)
	if len(alive) != s.Sim.Snapshot().Alive {
		t.Fatalf("expected %d alive agents, got %d", s.Sim.Snapshot().Alive, len(alive))
	}
	for _, a := range alive {
		if !a.Alive {
			t.Fatalf("expected only live agents, got %s", a.Name)
		}
	}
}

func TestAgentDetail(t *testing.T) {
	s, ts := newTestServer(t)
	first := s.Sim.Roster.All()[0]

	var d struct {
		Agent struct {
			Name string `json:"name"`
		} `json:"agent"`
		Probs [agents.NumActions]float64 `json:"probabilities"`
	}
	if code := getJSON(t, ts.URL+"/api/v1/agent/1", &d); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if d.Agent.Name != first.Name {
		t.Fatalf("expected %s, got %s", first.Name, d.Agent.Name)
	}
	if first.Alive {
		var sum float64
		for _, p := range d.Probs {
			sum += p
		}
		if sum < 0.999 || sum > 1.001 {
			t.Fatalf("expected probabilities summing to 1, got %v", sum)
		}
	}

	if code := getJSON(t, ts.URL+"/api/v1/agent/abc", nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", code)
	}
	if code := getJSON(t, ts.URL+"/api/v1/agent/999", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", code)
	}
}

func TestEventsLimitAndCategory(t *testing.T) {
	s, ts := newTestServer(t)
	pos := s.Sim.Map.NodePositions(world.NodeBerry)[0]
	for i := 0; i < 3; i++ {
		if _, err := s.Sim.ProvisionNode(pos, 1); err != nil {
			t.Fatalf("provision: %v", err)
		}
	}

	var events []engine.Event
	getJSON(t, ts.URL+"/api/v1/events?category=admin&limit=2", &events)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Seq < events[1].Seq {
		t.Fatalf("expected newest first, got seq %d before %d", events[0].Seq, events[1].Seq)
	}
	if code := getJSON(t, ts.URL+"/api/v1/events?limit=-1", nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", code)
	}
	if code := getJSON(t, ts.URL+"/api/v1/events?source=db", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a database, got %d", code)
	}
}

func TestAdminAuth(t *testing.T) {
	s, ts := newTestServer(t)

	if resp := post(t, ts.URL+"/api/v1/speed", "", `{"speed":2}`); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	if resp := post(t, ts.URL+"/api/v1/speed", "wrong", `{"speed":2}`); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", resp.StatusCode)
	}
	if resp := post(t, ts.URL+"/api/v1/speed", testKey, `{"speed":2}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
	if s.Eng.Speed() != 2 {
		t.Fatalf("expected speed 2, got %v", s.Eng.Speed())
	}
	if resp := post(t, ts.URL+"/api/v1/speed", testKey, `{"speed":-3}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative speed, got %d", resp.StatusCode)
	}

	open := httptest.NewServer((&Server{Sim: s.Sim, Eng: s.Eng}).Handler())
	defer open.Close()
	if resp := post(t, open.URL+"/api/v1/speed", testKey, `{"speed":1}`); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 with admin disabled, got %d", resp.StatusCode)
	}
}

func TestInterventions(t *testing.T) {
	s, ts := newTestServer(t)

	resp := post(t, ts.URL+"/api/v1/intervention", testKey, `{"type":"immigrate","preset":"hermit","name":"Newcomer","pos":{"x":3,"y":3}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := s.Sim.Roster.Len(); got != 9 {
		t.Fatalf("expected 9 agents, got %d", got)
	}

	pos := s.Sim.Map.NodePositions(world.NodeBerry)[0]
	body, _ := json.Marshal(map[string]any{"type": "provision", "pos": pos, "abundance": 1})
	if resp := post(t, ts.URL+"/api/v1/intervention", testKey, string(body)); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for provision, got %d", resp.StatusCode)
	}
	if got := s.Sim.Map.Berry(pos).Abundance; got != 1 {
		t.Fatalf("expected abundance 1, got %v", got)
	}

	if resp := post(t, ts.URL+"/api/v1/intervention", testKey, `{"type":"flood"}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", resp.StatusCode)
	}
	if resp := post(t, ts.URL+"/api/v1/snapshot", testKey, ``); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without persistence, got %d", resp.StatusCode)
	}
}

func TestTerritoriesAndNodes(t *testing.T) {
	s, ts := newTestServer(t)
	var terrs []territorySummary
	if code := getJSON(t, ts.URL+"/api/v1/territories", &terrs); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(terrs) != s.Sim.Snapshot().Territories+countDeadOwners(s) {
		t.Fatalf("expected one entry per territory, got %d", len(terrs))
	}

	var nodes struct {
		Berries []world.BerryPatch `json:"berries"`
	}
	getJSON(t, ts.URL+"/api/v1/nodes", &nodes)
	if berries, _ := s.Sim.Map.NodeCount(); len(nodes.Berries) != berries {
		t.Fatalf("expected %d berry patches, got %d", berries, len(nodes.Berries))
	}
}

func countDeadOwners(s *Server) int {
	n := 0
	for _, a := range s.Sim.AgentCopies() {
		if !a.Alive && a.Territory != nil {
			n++
		}
	}
	return n
}

func TestCORS(t *testing.T) {
	_, ts := newTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/status", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("expected allowed origin echoed, got %q", got)
	}
}

func TestStreamDeliversRecords(t *testing.T) {
	s, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Keep ticking until the subscriber has seen a record.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for tick := uint64(21); ; tick++ {
			select {
			case <-stop:
				return
			default:
			}
			s.Sim.Tick(tick)
			time.Sleep(5 * time.Millisecond)
		}
	}()
	defer func() {
		close(stop)
		wg.Wait()
	}()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg streamMessage
		if err := json.Unmarshal(b, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.Type == "record" {
			if msg.Record == nil || msg.Record.Agent == "" {
				t.Fatalf("expected a populated record, got %s", b)
			}
			return
		}
	}
}
