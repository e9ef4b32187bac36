package engine

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/inconshreveable/log15/v3"
	"github.com/wricardo/star-royale/game/session"
)

var (
	ErrMatchFinished   = errors.New("match already finished")
	ErrInvalidIdentity = errors.New("external identity is required")
)

// Engine is the match controller and the single authority over the star,
// the score and the match state.
//
// mu is held exclusively by every operation that touches the star, the score
// or the match state (join, claim, leave) so those three move together as one
// unit. Movement only needs to observe the match state and takes mu shared,
// letting different connections move in parallel while a finishing claim
// still waits for every in-flight movement to drain.
type Engine struct {
	mu sync.RWMutex

	config   *MatchConfig
	registry *session.Manager
	players  *PlayerStore
	star     *StarManager
	score    ScoreTracker
	match    MatchState

	bus     Broadcaster
	rewards RewardDispatcher
	policy  TeamPolicy
	rng     *rand.Rand
	logger  log15.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithRewards sets the dispatcher used to pay the winning team.
func WithRewards(d RewardDispatcher) Option {
	return func(e *Engine) { e.rewards = d }
}

// WithLogger sets the engine logger
func WithLogger(l log15.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRand sets the random source used for spawning and team assignment.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithTeamPolicy overrides the policy named in the config.
func WithTeamPolicy(p TeamPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// NewEngine creates an active match with its first star already spawned.
func NewEngine(config *MatchConfig, registry *session.Manager, bus Broadcaster, opts ...Option) (*Engine, error) {
	if err := ValidateMatchConfig(config); err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, fmt.Errorf("engine: registry is required")
	}
	if bus == nil {
		return nil, fmt.Errorf("engine: broadcaster is required")
	}

	e := &Engine{
		config:   config,
		registry: registry,
		bus:      bus,
		match:    MatchState{Phase: PhaseActive, Prize: config.Prize},
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = log15.New("module", "engine")
	}
	if e.rng == nil {
		seed := uint64(time.Now().UnixNano())
		e.rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	if e.policy == nil {
		policy, err := NewTeamPolicy(config.TeamPolicy, e.rng)
		if err != nil {
			return nil, err
		}
		e.policy = policy
	}

	e.players = NewPlayerStore(config.SpawnBounds, e.policy)
	e.star = NewStarManager(config.StarBounds)
	star := e.star.Spawn(e.rng)

	e.logger.Info("match started", "config", config.Name, "star", star.ID, "winning_score", config.WinningScore)
	return e, nil
}

// Join registers connID under userID and creates its player. The new
// connection receives the roster, the star and the score; everyone else
// learns about the new player.
//
// Once the match is finished nobody is registered: the caller gets
// ErrMatchFinished and the connection has already been sent the matchOver
// event.
func (e *Engine) Join(connID, userID string) (Player, error) {
	if userID == "" {
		return Player{}, ErrInvalidIdentity
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.match.Finished() {
		e.bus.Unicast(connID, matchOverEvent(e.match, e.score.Snapshot()))
		return Player{}, ErrMatchFinished
	}

	if _, err := e.registry.Register(connID, userID); err != nil {
		if errors.Is(err, session.ErrAlreadyRegistered) {
			return Player{}, ErrAlreadyJoined
		}
		return Player{}, fmt.Errorf("failed to register connection: %w", err)
	}

	p, err := e.players.Create(connID, userID, e.rng)
	if err != nil {
		e.registry.Unregister(connID)
		return Player{}, err
	}

	star, _ := e.star.Current()
	e.bus.Unicast(connID, rosterEvent(connID, e.players.Snapshot()))
	e.bus.Unicast(connID, starEvent(star))
	e.bus.Unicast(connID, scoreEvent(e.score.Snapshot()))
	e.bus.BroadcastExcept(connID, Event{Type: EventPlayerJoined, Data: p})

	e.logger.Info("player joined", "conn", connID, "user", userID, "team", p.Team, "players", e.players.Count())
	return p, nil
}

// Move applies m to connID's own player and relays it to everyone else.
// It reports false when the update was dropped: unknown connection, finished
// match or non-finite coordinates.
func (e *Engine) Move(connID string, m Movement) bool {
	if !finite(m.X) || !finite(m.Y) || !finite(m.Rotation) {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.match.Finished() {
		return false
	}

	p, err := e.players.ApplyMovement(connID, m)
	if err != nil {
		return false
	}

	e.bus.BroadcastExcept(connID, Event{Type: EventPlayerMoved, Data: PlayerMoved{
		PlayerID: p.PlayerID,
		X:        p.X,
		Y:        p.Y,
		Rotation: p.Rotation,
	}})
	return true
}

// Claim arbitrates a star pickup reported by connID. starID names the star the
// client saw; zero means the currently active one. The first claim on a star
// scores for the claimer's team; the rest are stale no-ops.
func (e *Engine) Claim(connID string, starID uint64) ClaimResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, _ := e.star.Current()
	result := ClaimResult{
		Outcome:  ClaimIgnored,
		Score:    e.score.Snapshot(),
		Star:     current,
		Finished: e.match.Finished(),
	}

	if e.match.Finished() {
		return result
	}

	p, ok := e.players.Get(connID)
	if !ok {
		return result
	}

	claimed, ok := e.star.Claim(starID)
	if !ok {
		e.logger.Debug("stale claim", "conn", connID, "star", starID, "current", current.ID)
		result.Outcome = ClaimStale
		return result
	}

	score, err := e.score.Award(p.Team, e.config.PointsPerClaim)
	if err != nil {
		e.logger.Error("award failed", "conn", connID, "err", err)
		e.bus.BroadcastAll(starEvent(e.star.Spawn(e.rng)))
		return result
	}

	result.Outcome = ClaimAccepted
	result.Team = p.Team
	result.Score = score
	result.Star = claimed

	e.logger.Info("star claimed", "conn", connID, "team", p.Team, "star", claimed.ID, "teamA", score.TeamA, "teamB", score.TeamB)

	if score.Of(p.Team) >= e.config.WinningScore {
		e.finish(p.Team)
		result.Finished = true
		return result
	}

	next := e.star.Spawn(e.rng)
	e.bus.BroadcastAll(starEvent(next))
	e.bus.BroadcastAll(scoreEvent(score))
	return result
}

// Leave removes connID's player and registration. Any event already accepted
// from the connection has been broadcast by the time Leave runs.
func (e *Engine) Leave(connID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players.Remove(connID)
	if err := e.registry.Unregister(connID); err != nil && !errors.Is(err, session.ErrConnectionNotFound) {
		e.logger.Warn("unregister failed", "conn", connID, "err", err)
	}
	if !ok {
		return false
	}

	e.bus.BroadcastExcept(connID, Event{Type: EventPlayerLeft, Data: PlayerLeft{PlayerID: connID}})
	e.logger.Info("player left", "conn", connID, "team", p.Team, "players", e.players.Count())
	return true
}

// finish moves the match to its terminal state. Caller holds mu.
func (e *Engine) finish(winner Team) {
	winners := e.players.OnTeam(winner)

	e.match = MatchState{
		Phase:   PhaseFinished,
		Winner:  winner,
		Prize:   e.config.Prize,
		Payouts: len(winners),
	}

	score := e.score.Snapshot()
	e.bus.BroadcastAll(scoreEvent(score))
	e.bus.BroadcastAll(matchOverEvent(e.match, score))

	e.logger.Info("match finished", "winner", winner, "teamA", score.TeamA, "teamB", score.TeamB, "payouts", len(winners))

	if e.rewards == nil || e.config.Prize <= 0 {
		return
	}
	for _, p := range winners {
		e.rewards.Increment(p.UserID, e.config.Prize, e.config.RewardReason)
	}
}

// Snapshot returns a consistent view of the whole match
func (e *Engine) Snapshot() MatchSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := MatchSnapshot{
		State:   e.match,
		Score:   e.score.Snapshot(),
		Players: e.players.Snapshot(),
		Config:  e.config.Name,
	}
	if star, active := e.star.Current(); active && !e.match.Finished() {
		snap.Star = &star
	}
	return snap
}

// State returns the match state
func (e *Engine) State() MatchState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.match
}

// Score returns the current score
func (e *Engine) Score() Score {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.score.Snapshot()
}

// Star returns the active star
func (e *Engine) Star() Star {
	e.mu.RLock()
	defer e.mu.RUnlock()
	star, _ := e.star.Current()
	return star
}

// Players returns the roster
func (e *Engine) Players() []Player {
	return e.players.Snapshot()
}

// Config returns the rules the match runs with
func (e *Engine) Config() *MatchConfig {
	return e.config
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
