package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/inconshreveable/log15/v3"
	"github.com/wricardo/star-royale/game/config"
	"github.com/wricardo/star-royale/game/engine"
	"github.com/wricardo/star-royale/game/reward"
	"github.com/wricardo/star-royale/game/service"
	"github.com/wricardo/star-royale/game/session"
	"github.com/wricardo/star-royale/transport/websocket"
)

// MockMatchService implements service.MatchService for testing
type MockMatchService struct {
	HealthFunc         func(ctx context.Context) (*service.HealthInfo, error)
	GetMatchFunc       func(ctx context.Context) (*engine.MatchSnapshot, error)
	ListPlayersFunc    func(ctx context.Context) ([]engine.Player, error)
	GetScoreFunc       func(ctx context.Context) (*service.ScoreInfo, error)
	GetRewardStatsFunc func(ctx context.Context) (*service.RewardInfo, error)
	ListConfigsFunc    func(ctx context.Context) ([]*service.ConfigInfo, error)
	LoadConfigFunc     func(ctx context.Context, configName string) (*engine.MatchConfig, error)
}

func (m *MockMatchService) Health(ctx context.Context) (*service.HealthInfo, error) {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return &service.HealthInfo{Status: "ok", Phase: engine.PhaseActive}, nil
}

func (m *MockMatchService) GetMatch(ctx context.Context) (*engine.MatchSnapshot, error) {
	if m.GetMatchFunc != nil {
		return m.GetMatchFunc(ctx)
	}
	return &engine.MatchSnapshot{
		State:  engine.MatchState{Phase: engine.PhaseActive, Prize: 0.01},
		Score:  engine.Score{TeamA: 20, TeamB: 10},
		Star:   &engine.Star{ID: 4, X: 100, Y: 200},
		Config: "classic",
	}, nil
}

func (m *MockMatchService) ListPlayers(ctx context.Context) ([]engine.Player, error) {
	if m.ListPlayersFunc != nil {
		return m.ListPlayersFunc(ctx)
	}
	return []engine.Player{
		{PlayerID: "c1", UserID: "secret-1", Team: engine.TeamA},
		{PlayerID: "c2", UserID: "secret-2", Team: engine.TeamB},
		{PlayerID: "c3", UserID: "secret-3", Team: engine.TeamA},
	}, nil
}

func (m *MockMatchService) GetScore(ctx context.Context) (*service.ScoreInfo, error) {
	if m.GetScoreFunc != nil {
		return m.GetScoreFunc(ctx)
	}
	return &service.ScoreInfo{Score: engine.Score{TeamA: 20, TeamB: 10}, WinningScore: 100, Phase: engine.PhaseActive}, nil
}

func (m *MockMatchService) GetRewardStats(ctx context.Context) (*service.RewardInfo, error) {
	if m.GetRewardStatsFunc != nil {
		return m.GetRewardStatsFunc(ctx)
	}
	balance := 42.0
	return &service.RewardInfo{
		Mode:          service.RewardModeLive,
		AppID:         "abcde",
		Prize:         0.01,
		WalletBalance: &balance,
		Stats:         reward.Stats{Queued: 3, Sent: 2, Failed: 1},
	}, nil
}

func (m *MockMatchService) ListConfigs(ctx context.Context) ([]*service.ConfigInfo, error) {
	if m.ListConfigsFunc != nil {
		return m.ListConfigsFunc(ctx)
	}
	return []*service.ConfigInfo{
		service.NewConfigInfo("classic.json", "classic", engine.DefaultMatchConfig()),
	}, nil
}

func (m *MockMatchService) LoadConfig(ctx context.Context, configName string) (*engine.MatchConfig, error) {
	if m.LoadConfigFunc != nil {
		return m.LoadConfigFunc(ctx, configName)
	}
	if configName != "classic" {
		return nil, fmt.Errorf("failed to load config %s: %w", configName, config.ErrConfigNotFound)
	}
	return engine.DefaultMatchConfig(), nil
}

type mockGate struct {
	allowed bool
	err     error
	asked   []string
}

func (g *mockGate) CanReceivePayout(ctx context.Context, userID string) (bool, error) {
	g.asked = append(g.asked, userID)
	return g.allowed, g.err
}

func quietLogger() log15.Logger {
	l := log15.New()
	l.SetHandler(log15.DiscardHandler())
	return l
}

func newTestServer(svc service.MatchService, opts ...Option) *Server {
	hub := websocket.NewHub(websocket.WithLogger(quietLogger()))
	return NewServer(svc, hub, nil, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(&MockMatchService{})

	rec := doRequest(t, s, "GET", "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %s", ct)
	}

	var health service.HealthInfo
	decode(t, rec, &health)
	if health.Status != "ok" {
		t.Errorf("Unexpected health %+v", health)
	}
}

func TestGetMatch(t *testing.T) {
	tests := []struct {
		name       string
		mock       *MockMatchService
		wantStatus int
	}{
		{"success", &MockMatchService{}, http.StatusOK},
		{
			"service error",
			&MockMatchService{GetMatchFunc: func(ctx context.Context) (*engine.MatchSnapshot, error) {
				return nil, errors.New("boom")
			}},
			http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, newTestServer(tt.mock), "GET", "/api/match")
			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus != http.StatusOK {
				var body map[string]interface{}
				decode(t, rec, &body)
				if body["error"] != "boom" {
					t.Errorf("Unexpected error body %v", body)
				}
				return
			}

			var snap engine.MatchSnapshot
			decode(t, rec, &snap)
			if snap.Star == nil || snap.Star.ID != 4 || snap.Score.TeamA != 20 || snap.Config != "classic" {
				t.Errorf("Unexpected snapshot %+v", snap)
			}
		})
	}
}

func TestListPlayers(t *testing.T) {
	s := newTestServer(&MockMatchService{})

	rec := doRequest(t, s, "GET", "/api/players")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret") {
		t.Error("Roster leaked external user IDs")
	}
	var players []engine.Player
	decode(t, rec, &players)
	if len(players) != 3 {
		t.Errorf("Expected 3 players, got %d", len(players))
	}

	rec = doRequest(t, s, "GET", "/api/players?team=a")
	decode(t, rec, &players)
	if len(players) != 2 {
		t.Errorf("Expected 2 players on team A, got %d", len(players))
	}
}

func TestGetScore(t *testing.T) {
	rec := doRequest(t, newTestServer(&MockMatchService{}), "GET", "/api/score")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var score service.ScoreInfo
	decode(t, rec, &score)
	if score.Score.TeamA != 20 || score.WinningScore != 100 {
		t.Errorf("Unexpected score %+v", score)
	}
}

func TestGetRewards(t *testing.T) {
	rec := doRequest(t, newTestServer(&MockMatchService{}), "GET", "/api/rewards")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var info service.RewardInfo
	decode(t, rec, &info)
	if info.Mode != service.RewardModeLive || info.WalletBalance == nil || *info.WalletBalance != 42 || info.Stats.Sent != 2 {
		t.Errorf("Unexpected reward info %+v", info)
	}
}

func TestListConfigs(t *testing.T) {
	rec := doRequest(t, newTestServer(&MockMatchService{}), "GET", "/api/configs")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var configs []service.ConfigInfo
	decode(t, rec, &configs)
	if len(configs) != 1 || configs[0].ConfigID != "classic" {
		t.Errorf("Unexpected configs %+v", configs)
	}
}

func TestGetConfig(t *testing.T) {
	broken := &MockMatchService{LoadConfigFunc: func(ctx context.Context, name string) (*engine.MatchConfig, error) {
		return nil, fmt.Errorf("%w: bad json", config.ErrInvalidConfig)
	}}

	tests := []struct {
		name       string
		mock       *MockMatchService
		path       string
		wantStatus int
	}{
		{"found", &MockMatchService{}, "/api/configs/classic", http.StatusOK},
		{"with extension", &MockMatchService{}, "/api/configs/classic.json", http.StatusOK},
		{"not found", &MockMatchService{}, "/api/configs/nope", http.StatusNotFound},
		{"invalid", broken, "/api/configs/classic", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, newTestServer(tt.mock), "GET", tt.path)
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := doRequest(t, newTestServer(&MockMatchService{}), "POST", "/api/match")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rec.Code)
	}
}

func TestWebSocketRejections(t *testing.T) {
	tests := []struct {
		name       string
		gate       *mockGate
		header     string
		query      string
		wantStatus int
	}{
		{"no identity", nil, "", "", http.StatusUnauthorized},
		{"payout not allowed", &mockGate{allowed: false}, "user-1", "", http.StatusForbidden},
		{"permission check fails", &mockGate{err: errors.New("api down")}, "", "?user=user-1", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.gate != nil {
				opts = append(opts, WithPermissionGate(tt.gate))
			}
			s := newTestServer(&MockMatchService{}, opts...)

			req := httptest.NewRequest("GET", "/ws"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set(DefaultIdentityHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.gate != nil && (len(tt.gate.asked) != 1 || tt.gate.asked[0] != "user-1") {
				t.Errorf("Gate asked about %v", tt.gate.asked)
			}
		})
	}
}

func TestWebSocketSession(t *testing.T) {
	registry := session.NewManager()
	hub := websocket.NewHub(websocket.WithLogger(quietLogger()), websocket.WithConnectionIDs(registry.NewConnectionID))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	eng, err := engine.NewEngine(engine.DefaultMatchConfig(), registry, hub, engine.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	gate := &mockGate{allowed: true}
	s := NewServer(service.NewMatchService(eng, nil), hub, eng,
		WithLogger(quietLogger()),
		WithIdentityResolver(HeaderResolver{Header: "X-Discord-ID"}),
		WithPermissionGate(gate),
	)
	server := httptest.NewServer(s)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := gorillaws.DefaultDialer.Dial(url, http.Header{"X-Discord-ID": []string{"discord-42"}})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first struct {
		Event string `json:"event"`
	}
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if first.Event != engine.EventRosterSnapshot {
		t.Errorf("Expected rosterSnapshot first, got %s", first.Event)
	}

	players := eng.Players()
	if len(players) != 1 || players[0].UserID != "discord-42" {
		t.Errorf("Expected one player for discord-42, got %+v", players)
	}

	rec := doRequest(t, s, "GET", "/api/players")
	var listed []engine.Player
	decode(t, rec, &listed)
	if len(listed) != 1 {
		t.Errorf("Expected the joined player over REST, got %d", len(listed))
	}
}

func TestHeaderResolver(t *testing.T) {
	tests := []struct {
		name     string
		resolver HeaderResolver
		header   string
		query    string
		want     string
		wantErr  error
	}{
		{"header", HeaderResolver{}, "user-1", "", "user-1", nil},
		{"header wins over query", HeaderResolver{AllowQuery: true}, "user-1", "other", "user-1", nil},
		{"query fallback", HeaderResolver{AllowQuery: true}, "", "user-2", "user-2", nil},
		{"query not allowed", HeaderResolver{}, "", "user-2", "", ErrNoIdentity},
		{"blank", HeaderResolver{}, "   ", "", "", ErrNoIdentity},
		{"too long", HeaderResolver{}, strings.Repeat("x", 200), "", "", ErrInvalidIdentity},
		{"control characters", HeaderResolver{AllowQuery: true}, "", "bad%00id", "", ErrInvalidIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/ws?user="+tt.query, nil)
			if tt.header != "" {
				req.Header.Set(DefaultIdentityHeader, tt.header)
			}

			got, err := tt.resolver.Resolve(req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
