package engine

import (
	"fmt"
	"math/rand/v2"
)

// Team policy names accepted in MatchConfig.TeamPolicy
const (
	PolicyRandom      = "random"
	PolicyAlternating = "alternating"
	PolicyBalanced    = "balanced"
)

// PolicyNames lists the accepted team policy names.
var PolicyNames = []string{PolicyRandom, PolicyAlternating, PolicyBalanced}

func isKnownPolicy(name string) bool {
	for _, n := range PolicyNames {
		if n == name {
			return true
		}
	}
	return false
}

// TeamPolicy picks the team for a joining player given the current head count
// of each team. Implementations are only called from the engine's critical
// section and need no locking of their own.
type TeamPolicy interface {
	Assign(counts map[Team]int) Team
}

// RandomTeams flips a coin for every join, with no balancing guarantee.
type RandomTeams struct {
	rng *rand.Rand
}

func (p *RandomTeams) Assign(map[Team]int) Team {
	return Teams[p.rng.IntN(len(Teams))]
}

// AlternatingTeams hands out A, B, A, B... in join order.
type AlternatingTeams struct {
	next int
}

func (p *AlternatingTeams) Assign(map[Team]int) Team {
	t := Teams[p.next%len(Teams)]
	p.next++
	return t
}

// BalancedTeams puts the joiner on the smaller team, breaking ties at random.
type BalancedTeams struct {
	rng *rand.Rand
}

func (p *BalancedTeams) Assign(counts map[Team]int) Team {
	a, b := counts[TeamA], counts[TeamB]
	switch {
	case a < b:
		return TeamA
	case b < a:
		return TeamB
	default:
		return Teams[p.rng.IntN(len(Teams))]
	}
}

// NewTeamPolicy builds the named policy. An empty name selects balanced.
func NewTeamPolicy(name string, rng *rand.Rand) (TeamPolicy, error) {
	switch name {
	case PolicyRandom:
		return &RandomTeams{rng: rng}, nil
	case PolicyAlternating:
		return &AlternatingTeams{}, nil
	case PolicyBalanced, "":
		return &BalancedTeams{rng: rng}, nil
	default:
		return nil, fmt.Errorf("unknown team policy %q", name)
	}
}
