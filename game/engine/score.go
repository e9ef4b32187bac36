package engine

import (
	"errors"
	"fmt"
)

var ErrInvalidAward = errors.New("invalid award")

// ScoreTracker accumulates points per team. Scores only ever go up.
// Like StarManager it relies on the engine for serialization.
type ScoreTracker struct {
	score Score
}

// Award adds amount to team t and returns the new score.
func (s *ScoreTracker) Award(t Team, amount int) (Score, error) {
	if amount <= 0 {
		return s.score, fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidAward, amount)
	}

	switch t {
	case TeamA:
		s.score.TeamA += amount
	case TeamB:
		s.score.TeamB += amount
	default:
		return s.score, fmt.Errorf("%w: unknown team %q", ErrInvalidAward, t)
	}

	return s.score, nil
}

// Snapshot returns the current score
func (s *ScoreTracker) Snapshot() Score {
	return s.score
}
