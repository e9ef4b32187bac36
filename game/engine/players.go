package engine

import (
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
)

var (
	ErrAlreadyJoined     = errors.New("connection already has a player")
	ErrUnknownConnection = errors.New("unknown connection")
)

// PlayerStore owns every Player record, keyed by connection ID.
//
// Movement updates from different connections may run concurrently, so the
// store carries its own lock independent of the engine's.
type PlayerStore struct {
	mu      sync.RWMutex
	players map[string]*Player
	bounds  Bounds
	policy  TeamPolicy
}

// NewPlayerStore creates a store spawning players inside bounds.
func NewPlayerStore(bounds Bounds, policy TeamPolicy) *PlayerStore {
	return &PlayerStore{
		players: make(map[string]*Player),
		bounds:  bounds,
		policy:  policy,
	}
}

// Create adds a player for connID at a random position inside the spawn
// bounds, on the team chosen by the store's policy.
func (s *PlayerStore) Create(connID, userID string, rng *rand.Rand) (Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.players[connID]; exists {
		return Player{}, ErrAlreadyJoined
	}

	counts := make(map[Team]int, len(Teams))
	for _, p := range s.players {
		counts[p.Team]++
	}

	p := &Player{
		PlayerID: connID,
		UserID:   userID,
		X:        randomIn(rng, s.bounds.MinX, s.bounds.MaxX),
		Y:        randomIn(rng, s.bounds.MinY, s.bounds.MaxY),
		Team:     s.policy.Assign(counts),
	}
	s.players[connID] = p

	return *p, nil
}

// ApplyMovement overwrites the position of connID's own player. Positions are
// taken as reported; there is no plausibility check.
func (s *PlayerStore) ApplyMovement(connID string, m Movement) (Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.players[connID]
	if !exists {
		return Player{}, ErrUnknownConnection
	}

	p.X = m.X
	p.Y = m.Y
	p.Rotation = m.Rotation

	return *p, nil
}

// Remove deletes connID's player and returns the removed record.
func (s *PlayerStore) Remove(connID string) (Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.players[connID]
	if !exists {
		return Player{}, false
	}
	delete(s.players, connID)
	return *p, true
}

// Get returns a copy of connID's player
func (s *PlayerStore) Get(connID string) (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.players[connID]
	if !exists {
		return Player{}, false
	}
	return *p, true
}

// Snapshot returns copies of all players ordered by player ID.
func (s *PlayerStore) Snapshot() []Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PlayerID < result[j].PlayerID
	})
	return result
}

// OnTeam returns copies of the players currently on team t.
func (s *PlayerStore) OnTeam(t Team) []Player {
	var result []Player
	for _, p := range s.Snapshot() {
		if p.Team == t {
			result = append(result, p)
		}
	}
	return result
}

// Count returns the number of players
func (s *PlayerStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}

func randomIn(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
