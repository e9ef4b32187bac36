// Package engine provides the authoritative match logic for Star Royale.
//
// The engine package implements:
//   - The player roster and per-connection player state
//   - The contested star: spawning and first-claim-wins arbitration
//   - Team scoring and win detection
//   - The terminal match state and winner payouts
//   - Match configuration loading and validation
//
// Core Types:
//
// Engine is the match controller. It owns the star, the score and the match
// state and is the only code allowed to change them. PlayerStore owns the
// Player records, StarManager the star, ScoreTracker the score. MatchConfig
// holds the rules loaded from JSON.
//
// Collaborators:
//
// The engine pushes every state change through a Broadcaster (implemented by
// the websocket hub) and pays winners through a RewardDispatcher (implemented
// by the reward package). Both are interfaces so tests can record calls.
//
// Usage:
//
//	registry := session.NewManager()
//	eng, err := engine.NewEngine(engine.DefaultMatchConfig(), registry, hub,
//		engine.WithRewards(dispatcher))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	eng.Join(connID, userID)
//	eng.Move(connID, engine.Movement{X: 120, Y: 80, Rotation: 1.5})
//	eng.Claim(connID, starID)
//	eng.Leave(connID)
//
// Concurrency:
//
// Join, Claim and Leave are serialized by one lock guarding the star, the
// score and the match state together, so two players touching the same star
// always resolve in arrival order and the win check runs atomically with the
// award. Movement from different connections runs in parallel but never after
// the match has finished.
package engine
