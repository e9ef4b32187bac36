package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/inconshreveable/log15/v3"
	"github.com/wricardo/star-royale/game/config"
	"github.com/wricardo/star-royale/game/service"
	"github.com/wricardo/star-royale/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service   service.MatchService
	hub       *websocket.Hub
	game      websocket.Game
	identity  IdentityResolver
	gate      PermissionGate
	staticDir string
	router    *mux.Router
	logger    log15.Logger
}

// Option configures a Server
type Option func(*Server)

// WithIdentityResolver sets how /ws requests are mapped to a user
func WithIdentityResolver(r IdentityResolver) Option {
	return func(s *Server) { s.identity = r }
}

// WithPermissionGate refuses websocket sessions for users who have not
// allowed payouts.
func WithPermissionGate(g PermissionGate) Option {
	return func(s *Server) { s.gate = g }
}

// WithStaticDir serves files from dir for every path the API does not handle
func WithStaticDir(dir string) Option {
	return func(s *Server) { s.staticDir = dir }
}

// WithLogger sets the server logger
func WithLogger(l log15.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new API server
func NewServer(matchService service.MatchService, hub *websocket.Hub, game websocket.Game, opts ...Option) *Server {
	s := &Server{
		service:  matchService,
		hub:      hub,
		game:     game,
		identity: HeaderResolver{Header: DefaultIdentityHeader, AllowQuery: true},
		router:   mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log15.New("module", "api")
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Match state
	api.HandleFunc("/match", s.handleGetMatch).Methods("GET")
	api.HandleFunc("/players", s.handleListPlayers).Methods("GET")
	api.HandleFunc("/score", s.handleGetScore).Methods("GET")

	// Rewards
	api.HandleFunc("/rewards", s.handleGetRewards).Methods("GET")

	// Configuration
	api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")
	api.HandleFunc("/configs/{name}", s.handleGetConfig).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	if s.staticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.staticDir)))
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{"error": message, "code": status})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.service.Health(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, health)
}

// Match Handlers

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.GetMatch(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.service.ListPlayers(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Optional team filter
	if team := r.URL.Query().Get("team"); team != "" {
		filtered := players[:0:0]
		for _, p := range players {
			if strings.EqualFold(string(p.Team), team) {
				filtered = append(filtered, p)
			}
		}
		players = filtered
	}

	respondJSON(w, http.StatusOK, players)
}

func (s *Server) handleGetScore(w http.ResponseWriter, r *http.Request) {
	score, err := s.service.GetScore(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, score)
}

func (s *Server) handleGetRewards(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.GetRewardStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, info)
}

// Configuration Handlers

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.service.ListConfigs(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, configs)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	configName := strings.TrimSuffix(mux.Vars(r)["name"], ".json")

	matchConfig, err := s.service.LoadConfig(r.Context(), configName)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, config.ErrConfigNotFound) {
			status = http.StatusNotFound
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, matchConfig)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := s.identity.Resolve(r)
	if err != nil {
		s.logger.Info("websocket rejected", "remote", r.RemoteAddr, "err", err)
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	if s.gate != nil {
		allowed, err := s.gate.CanReceivePayout(r.Context(), userID)
		if err != nil {
			s.logger.Warn("permission check failed", "user", userID, "err", err)
			http.Error(w, "could not verify payout permission", http.StatusBadGateway)
			return
		}
		if !allowed {
			s.logger.Info("websocket rejected", "user", userID, "reason", "payout not allowed")
			http.Error(w, "payouts to this account are not allowed for this app", http.StatusForbidden)
			return
		}
	}

	s.hub.ServeWS(w, r, userID, s.game)
}
