package engine

// Outbound event names
const (
	EventRosterSnapshot = "rosterSnapshot"
	EventStarLocation   = "starLocation"
	EventScoreUpdate    = "scoreUpdate"
	EventPlayerJoined   = "playerJoined"
	EventPlayerMoved    = "playerMoved"
	EventPlayerLeft     = "playerLeft"
	EventMatchOver      = "matchOver"
)

// Event is one message pushed to clients.
type Event struct {
	Type string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// RosterSnapshot is sent to a newly joined connection.
type RosterSnapshot struct {
	You     string            `json:"you"`
	Players map[string]Player `json:"players"`
}

// PlayerMoved carries one movement update
type PlayerMoved struct {
	PlayerID string  `json:"playerId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
}

// PlayerLeft announces a disconnect
type PlayerLeft struct {
	PlayerID string `json:"playerId"`
}

// MatchOver is the terminal snapshot.
type MatchOver struct {
	Winner Team    `json:"winner"`
	Prize  float64 `json:"prize"`
	Score  Score   `json:"score"`
}

// Broadcaster delivers events to connections. Implementations must keep the
// order of events sent to any single connection and must not block on a slow
// receiver.
type Broadcaster interface {
	Unicast(connID string, ev Event)
	BroadcastExcept(connID string, ev Event)
	BroadcastAll(ev Event)
}

// RewardDispatcher pays the winners. Increment must return immediately; the
// transfer itself happens asynchronously and its failures stay on the
// dispatcher's side.
type RewardDispatcher interface {
	Increment(userID string, amount float64, reason string)
}

func rosterEvent(connID string, players []Player) Event {
	byID := make(map[string]Player, len(players))
	for _, p := range players {
		byID[p.PlayerID] = p
	}
	return Event{Type: EventRosterSnapshot, Data: RosterSnapshot{You: connID, Players: byID}}
}

func starEvent(s Star) Event {
	return Event{Type: EventStarLocation, Data: s}
}

func scoreEvent(s Score) Event {
	return Event{Type: EventScoreUpdate, Data: s}
}

func matchOverEvent(m MatchState, s Score) Event {
	return Event{Type: EventMatchOver, Data: MatchOver{Winner: m.Winner, Prize: m.Prize, Score: s}}
}
