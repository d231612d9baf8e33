package api_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"roach-race/internal/api"
	"roach-race/internal/game"
	"roach-race/internal/leaderboard"
	"roach-race/internal/race"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// MockEngine implements api.EngineInterface for testing
type MockEngine struct {
	mu         sync.Mutex
	snapshot   *game.RaceSnapshot
	results    []race.RankEntry
	lb         *leaderboard.Leaderboard
	raceID     string
	restarts   int
	restartErr error
}

func NewMockEngine() *MockEngine {
	m := &MockEngine{
		lb:     leaderboard.New(),
		raceID: "race-1",
		snapshot: &game.RaceSnapshot{
			Sequence:  1,
			RaceID:    "race-1",
			Tick:      7,
			State:     race.Running,
			LapTarget: 5,
			Racers: []game.RacerSnapshot{
				{ID: 1, Key: "roach-001", Name: "Roach 1", Shape: race.Ellipse, Speed: 1.5, Laps: 2},
				{ID: 2, Key: "roach-002", Name: "Roach 2", Shape: race.Circle, Speed: 3.25, Laps: 3},
				{ID: 3, Key: "roach-003", Name: "Roach 3", Shape: race.PulsingRadius, Speed: 0.75, Laps: 1},
			},
			ActiveCount: 3,
		},
	}
	for _, r := range m.snapshot.Racers {
		m.lb.UpdateRacer(r.Key, r.Speed)
	}
	return m
}

// finish turns the mock race into a finished one with a ranking
func (m *MockEngine) finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = []race.RankEntry{
		{Rank: 0, RacerID: 2, Name: "Roach 2", Speed: 3.25, Shape: race.Circle, Laps: 5, FinishPosition: 1, Elapsed: 12 * time.Second},
		{Rank: 1, RacerID: 1, Name: "Roach 1", Speed: 1.5, Shape: race.Ellipse, Laps: 5, FinishPosition: 2, Elapsed: 15 * time.Second},
		{Rank: 2, RacerID: 3, Name: "Roach 3", Speed: 0.75, Shape: race.PulsingRadius, Laps: 5, FinishPosition: 3, Elapsed: 20 * time.Second},
	}
	m.snapshot.State = race.Finished
	m.snapshot.Ranking = m.results
}

func (m *MockEngine) GetSnapshot() *game.RaceSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

func (m *MockEngine) Results() []race.RankEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results
}

func (m *MockEngine) Leaderboard() *leaderboard.Leaderboard { return m.lb }

func (m *MockEngine) RaceID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raceID
}

func (m *MockEngine) Restart() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.restartErr != nil {
		return m.restartErr
	}
	m.restarts++
	m.raceID = "race-2"
	m.results = nil
	return nil
}

// MockRenderer implements api.FrameRenderer for testing
type MockRenderer struct {
	err error
}

func (m *MockRenderer) EncodePNG(w io.Writer, snap *game.RaceSnapshot) error {
	if m.err != nil {
		return m.err
	}
	_, err := w.Write([]byte("\x89PNG\r\n\x1a\n"))
	return err
}

func newTestServer(t *testing.T, engine api.EngineInterface, renderer api.FrameRenderer) *httptest.Server {
	t.Helper()
	router := api.NewRouter(api.RouterConfig{
		Engine:   engine,
		Renderer: renderer,
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
			CleanupInterval:   time.Hour,
		},
		DisableLogging: true, // Quiet logs in tests
	})
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, wantStatus int, out interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("Expected %d, got %d", wantStatus, resp.StatusCode)
	}
	if out == nil {
		return
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

// ============================================================================
// API Endpoint Tests
// ============================================================================

func TestNewRouterHasNoSideEffects(t *testing.T) {
	router := api.NewRouter(api.RouterConfig{
		Engine: NewMockEngine(),
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
			CleanupInterval:   time.Hour,
		},
	})
	if router == nil {
		t.Fatal("Router should not be nil")
	}
}

func TestAPIHealth(t *testing.T) {
	ts := newTestServer(t, NewMockEngine(), nil)

	var body struct {
		Status   string           `json:"status"`
		Requests api.LimiterStats `json:"requests"`
		Restarts api.LimiterStats `json:"restarts"`
	}
	getJSON(t, ts.URL+"/health", http.StatusOK, &body)
	if body.Status != "ok" {
		t.Errorf("Expected status ok, got %q", body.Status)
	}
	if body.Requests.Allowed != 1 || body.Requests.Clients != 1 {
		t.Errorf("Expected the health request itself to be counted, got %+v", body.Requests)
	}
	if body.Restarts.Allowed != 0 {
		t.Errorf("Expected no restarts counted, got %+v", body.Restarts)
	}
}

func TestAPIGetState(t *testing.T) {
	ts := newTestServer(t, NewMockEngine(), nil)

	var snap game.RaceSnapshot
	getJSON(t, ts.URL+"/api/state", http.StatusOK, &snap)

	if snap.RaceID != "race-1" {
		t.Errorf("Expected race-1, got %s", snap.RaceID)
	}
	if len(snap.Racers) != 3 {
		t.Errorf("Expected 3 racers, got %d", len(snap.Racers))
	}
	if snap.Tick != 7 {
		t.Errorf("Expected tick 7, got %d", snap.Tick)
	}
}

func TestAPILeaderboard(t *testing.T) {
	ts := newTestServer(t, NewMockEngine(), nil)

	var body struct {
		RaceID      string `json:"raceId"`
		Leaderboard []struct {
			Rank  int     `json:"rank"`
			Key   string  `json:"key"`
			Name  string  `json:"name"`
			Speed float64 `json:"speed"`
			Laps  int     `json:"laps"`
		} `json:"leaderboard"`
	}
	getJSON(t, ts.URL+"/api/leaderboard", http.StatusOK, &body)

	if len(body.Leaderboard) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(body.Leaderboard))
	}
	top := body.Leaderboard[0]
	if top.Rank != 1 || top.Name != "Roach 2" || top.Laps != 3 {
		t.Errorf("Expected Roach 2 at rank 1 with 3 laps, got %+v", top)
	}
	if body.Leaderboard[2].Key != "roach-003" {
		t.Errorf("Expected roach-003 last, got %s", body.Leaderboard[2].Key)
	}
}

func TestAPILeaderboardLimit(t *testing.T) {
	ts := newTestServer(t, NewMockEngine(), nil)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantRows   int
	}{
		{"limit one", "?limit=1", http.StatusOK, 1},
		{"limit above roster", "?limit=500", http.StatusOK, 3},
		{"zero limit", "?limit=0", http.StatusBadRequest, 0},
		{"not a number", "?limit=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantStatus != http.StatusOK {
				getJSON(t, ts.URL+"/api/leaderboard"+tt.query, tt.wantStatus, nil)
				return
			}
			var body struct {
				Leaderboard []interface{} `json:"leaderboard"`
			}
			getJSON(t, ts.URL+"/api/leaderboard"+tt.query, tt.wantStatus, &body)
			if len(body.Leaderboard) != tt.wantRows {
				t.Errorf("Expected %d rows, got %d", tt.wantRows, len(body.Leaderboard))
			}
		})
	}
}

func TestAPIResultsWhileRunning(t *testing.T) {
	ts := newTestServer(t, NewMockEngine(), nil)

	getJSON(t, ts.URL+"/api/results", http.StatusConflict, nil)
	getJSON(t, ts.URL+"/api/results/0", http.StatusConflict, nil)

	resp, err := http.Get(ts.URL + "/api/results.txt")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409, got %d", resp.StatusCode)
	}
}

func TestAPIResults(t *testing.T) {
	engine := NewMockEngine()
	engine.finish()
	ts := newTestServer(t, engine, nil)

	var body struct {
		RaceID  string           `json:"raceId"`
		Results []race.RankEntry `json:"results"`
		Lines   []string         `json:"lines"`
		Leader  race.RankEntry   `json:"leader"`
	}
	getJSON(t, ts.URL+"/api/results", http.StatusOK, &body)

	if len(body.Results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(body.Results))
	}
	if body.Leader.Name != "Roach 2" {
		t.Errorf("Expected leader Roach 2, got %s", body.Leader.Name)
	}
	want := "Roach 2: Speed: 3.25, Trajectory: Circle, Time: 12.00 sec"
	if body.Lines[0] != want {
		t.Errorf("Expected %q, got %q", want, body.Lines[0])
	}
}

func TestAPIResultAt(t *testing.T) {
	engine := NewMockEngine()
	engine.finish()
	ts := newTestServer(t, engine, nil)

	tests := []struct {
		name       string
		rank       string
		wantStatus int
		wantName   string
		wantPrev   int
		wantNext   int
	}{
		{"leader wraps back to last", "0", http.StatusOK, "Roach 2", 2, 1},
		{"middle", "1", http.StatusOK, "Roach 1", 0, 2},
		{"last wraps forward to leader", "2", http.StatusOK, "Roach 3", 1, 0},
		{"out of range", "3", http.StatusNotFound, "", 0, 0},
		{"negative", "-1", http.StatusNotFound, "", 0, 0},
		{"not a number", "first", http.StatusBadRequest, "", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantStatus != http.StatusOK {
				getJSON(t, ts.URL+"/api/results/"+tt.rank, tt.wantStatus, nil)
				return
			}

			var view struct {
				Entry race.RankEntry `json:"entry"`
				Line  string         `json:"line"`
				Prev  int            `json:"prev"`
				Next  int            `json:"next"`
				Total int            `json:"total"`
			}
			getJSON(t, ts.URL+"/api/results/"+tt.rank, http.StatusOK, &view)

			if view.Entry.Name != tt.wantName {
				t.Errorf("Expected %s, got %s", tt.wantName, view.Entry.Name)
			}
			if view.Prev != tt.wantPrev || view.Next != tt.wantNext {
				t.Errorf("Expected prev/next %d/%d, got %d/%d", tt.wantPrev, tt.wantNext, view.Prev, view.Next)
			}
			if view.Total != 3 {
				t.Errorf("Expected total 3, got %d", view.Total)
			}
			if !strings.HasPrefix(view.Line, tt.wantName+": Speed: ") {
				t.Errorf("Unexpected line %q", view.Line)
			}
		})
	}
}

func TestAPIResultsText(t *testing.T) {
	engine := NewMockEngine()
	engine.finish()
	ts := newTestServer(t, engine, nil)

	resp, err := http.Get(ts.URL + "/api/results.txt")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Expected text/plain, got %s", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"Roach 1", "Roach 2", "Roach 3"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("Table should list %s:\n%s", name, body)
		}
	}
}

func TestAPIFrame(t *testing.T) {
	t.Run("no renderer", func(t *testing.T) {
		ts := newTestServer(t, NewMockEngine(), nil)
		getJSON(t, ts.URL+"/api/frame.png", http.StatusServiceUnavailable, nil)
	})

	t.Run("renderer error", func(t *testing.T) {
		ts := newTestServer(t, NewMockEngine(), &MockRenderer{err: errors.New("boom")})
		getJSON(t, ts.URL+"/api/frame.png", http.StatusInternalServerError, nil)
	})

	t.Run("png", func(t *testing.T) {
		ts := newTestServer(t, NewMockEngine(), &MockRenderer{})
		resp, err := http.Get(ts.URL + "/api/frame.png")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("Expected image/png, got %s", ct)
		}
	})
}

func TestAPIRestart(t *testing.T) {
	engine := NewMockEngine()
	engine.finish()
	ts := newTestServer(t, engine, nil)

	resp, err := http.Post(ts.URL+"/api/race/restart", "application/json", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var body map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&body)
	if body["raceId"] != "race-2" {
		t.Errorf("Expected race-2, got %v", body["raceId"])
	}
	if engine.restarts != 1 {
		t.Errorf("Expected 1 restart, got %d", engine.restarts)
	}
}

func TestAPIRestartFailure(t *testing.T) {
	engine := NewMockEngine()
	engine.restartErr = errors.New("invalid race configuration")
	ts := newTestServer(t, engine, nil)

	resp, err := http.Post(ts.URL+"/api/race/restart", "application/json", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", resp.StatusCode)
	}
}

func TestAPIRateLimit(t *testing.T) {
	router := api.NewRouter(api.RouterConfig{
		Engine: NewMockEngine(),
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: 1,
			Burst:             2,
			CleanupInterval:   time.Hour,
		},
		DisableLogging: true,
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	var limited bool
	for i := 0; i < 5; i++ {
		resp, err := http.Get(ts.URL + "/health")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("Expected a 429 after the burst was spent")
	}
}

func TestAPIRestartHasItsOwnLimit(t *testing.T) {
	engine := NewMockEngine()
	router := api.NewRouter(api.RouterConfig{
		Engine: engine,
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
			CleanupInterval:   time.Hour,
		},
		RestartLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: 0.5,
			Burst:             1,
			CleanupInterval:   time.Hour,
		},
		DisableLogging: true,
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		resp, err := http.Post(ts.URL+"/api/race/restart", "application/json", nil)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
		if i == 1 && resp.Header.Get("Retry-After") != "2" {
			t.Errorf("Expected Retry-After 2, got %q", resp.Header.Get("Retry-After"))
		}
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("Expected [200 429], got %v", codes)
	}
	if engine.restarts != 1 {
		t.Errorf("Expected 1 restart, got %d", engine.restarts)
	}

	// reads are not throttled by the restart bucket
	getJSON(t, ts.URL+"/api/state", http.StatusOK, nil)

	var health struct {
		Restarts api.LimiterStats `json:"restarts"`
	}
	getJSON(t, ts.URL+"/health", http.StatusOK, &health)
	if health.Restarts.Allowed != 1 || health.Restarts.Rejected != 1 {
		t.Errorf("Expected 1 allowed and 1 rejected restart, got %+v", health.Restarts)
	}
}

func TestIsAllowedOrigin(t *testing.T) {
	allowed := []string{"https://race.example.com"}

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"http://127.0.0.1:3000", true},
		{"https://race.example.com", true},
		{"https://evil.example.com", false},
		{"https://race.example.com.evil.net", false},
	}

	for _, tt := range tests {
		if got := api.IsAllowedOrigin(tt.origin, allowed); got != tt.want {
			t.Errorf("IsAllowedOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}
