// Package mcp provides a Model Context Protocol server for Star Royale.
//
// The mcp package implements:
//   - MCP tool definitions for watching a match
//   - A thin proxy that answers every tool from the REST API
//   - Text formatting of match state for AI agents
//
// MCP Tools:
//   - match_state: Phase, score, active star and roster
//   - list_players: Connected players, optionally filtered by team
//   - score: Team scores and the winning threshold
//   - reward_stats: Payout counters and the API wallet balance
//   - list_configs: Available match configurations
//   - get_config: Full rules of one configuration
//   - game_instructions: Rules and websocket protocol reference
//
// The tools are read-only. Agents that want to play connect to /ws like any
// other client.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
//		log.Fatal(err)
//	}
package mcp
