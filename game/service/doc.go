// Package service provides the read-side business layer for Star Royale.
//
// The service package implements:
//   - Match snapshots, roster and score queries
//   - Reward payout reporting, including the API wallet balance
//   - Configuration listing and loading
//   - A liveness summary for health checks
//
// Core Interfaces:
//
// MatchService is what the HTTP API and the MCP tools call. Match,
// ConfigManager, RewardReporter and ConnectionCounter are the narrow views of
// the engine, the config manager, the reward dispatcher and the connection
// registry it is built from, so tests can substitute any of them.
//
// Architecture:
//
// The service never mutates the match. Joining, moving, claiming and leaving
// happen only over the websocket transport, which talks to the engine
// directly. Everything here is a consistent read.
//
// Usage:
//
//	svc := service.NewMatchService(eng, configMgr,
//		service.WithConnections(registry),
//		service.WithRewards(dispatcher, service.RewardModeLive),
//		service.WithWallet(client.AppID(), client.Balance),
//	)
//
//	snap, err := svc.GetMatch(ctx)
package service
