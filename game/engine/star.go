package engine

import "math/rand/v2"

// StarManager owns the single contested star and arbitrates claims on it.
// It is not safe for concurrent use; the engine serializes all calls.
type StarManager struct {
	bounds   Bounds
	current  Star
	consumed bool
}

// NewStarManager creates a manager placing stars inside bounds. No star exists
// until the first Spawn.
func NewStarManager(bounds Bounds) *StarManager {
	return &StarManager{bounds: bounds, consumed: true}
}

// Spawn relocates the star to a uniformly random point and gives it a new ID.
func (m *StarManager) Spawn(rng *rand.Rand) Star {
	m.current = Star{
		ID: m.current.ID + 1,
		X:  randomIn(rng, m.bounds.MinX, m.bounds.MaxX),
		Y:  randomIn(rng, m.bounds.MinY, m.bounds.MaxY),
	}
	m.consumed = false
	return m.current
}

// Current returns the active star and whether it is still claimable.
func (m *StarManager) Current() (Star, bool) {
	return m.current, !m.consumed
}

// Claim consumes the active star. starID zero means "whatever star is active";
// any other value must match the active star's ID. Claims on a consumed or
// superseded star return false and change nothing.
func (m *StarManager) Claim(starID uint64) (Star, bool) {
	if m.consumed {
		return m.current, false
	}
	if starID != 0 && starID != m.current.ID {
		return m.current, false
	}
	m.consumed = true
	return m.current, true
}
