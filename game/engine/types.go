package engine

// Team identifies one of the two competing sides.
type Team string

const (
	TeamA Team = "A"
	TeamB Team = "B"
)

// Teams lists every team in a stable order.
var Teams = []Team{TeamA, TeamB}

// Valid reports whether t is one of the known teams.
func (t Team) Valid() bool {
	return t == TeamA || t == TeamB
}

// Phase is the lifecycle phase of the match
type Phase string

const (
	PhaseActive   Phase = "active"
	PhaseFinished Phase = "finished"
)

// Bounds is an axis-aligned rectangle, inclusive of Min and exclusive of Max.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

// Player is the authoritative state of one connected player.
// Values of this type handed out by the engine are copies.
type Player struct {
	PlayerID string  `json:"playerId"`
	UserID   string  `json:"-"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	Team     Team    `json:"team"`
}

// Movement is a client-reported position update. It carries no identity:
// the engine always applies it to the sender's own player.
type Movement struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
}

// Star is the single contested pickup. ID increases by one on every spawn.
type Star struct {
	ID uint64  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Score holds the accumulated points per team
type Score struct {
	TeamA int `json:"teamA"`
	TeamB int `json:"teamB"`
}

// Of returns the score of the given team.
func (s Score) Of(t Team) int {
	if t == TeamB {
		return s.TeamB
	}
	return s.TeamA
}

// MatchState is the terminal-state record owned by the match controller.
type MatchState struct {
	Phase   Phase   `json:"phase"`
	Winner  Team    `json:"winner,omitempty"`
	Prize   float64 `json:"prize"`
	Payouts int     `json:"payouts,omitempty"`
}

// Finished reports whether the match has ended.
func (m MatchState) Finished() bool {
	return m.Phase == PhaseFinished
}

// MatchSnapshot is a consistent read of the whole match.
type MatchSnapshot struct {
	State   MatchState `json:"state"`
	Score   Score      `json:"score"`
	Star    *Star      `json:"star,omitempty"`
	Players []Player   `json:"players"`
	Config  string     `json:"config_name"`
}

// ClaimOutcome describes how a claim was handled.
type ClaimOutcome string

const (
	// ClaimAccepted means the claim consumed the active star and scored.
	ClaimAccepted ClaimOutcome = "accepted"
	// ClaimStale means the referenced star was already consumed.
	ClaimStale ClaimOutcome = "stale"
	// ClaimIgnored covers claims from unknown connections or after the match ended.
	ClaimIgnored ClaimOutcome = "ignored"
)

// ClaimResult is returned from Engine.Claim.
type ClaimResult struct {
	Outcome  ClaimOutcome `json:"outcome"`
	Team     Team         `json:"team,omitempty"`
	Score    Score        `json:"score"`
	Star     Star         `json:"star"`
	Finished bool         `json:"finished"`
}
