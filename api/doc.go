// Package api provides the HTTP surface of Star Royale.
//
// The api package implements:
//   - Read-only REST endpoints for match state, roster, score and rewards
//   - Configuration listing and lookup
//   - The websocket upgrade with identity resolution and an optional payout
//     permission check
//   - Static file serving
//
// Endpoints:
//
// Match State:
//   - GET /api/health - Liveness and counters
//   - GET /api/match - Full match snapshot (phase, winner, score, star, players)
//   - GET /api/players - Roster, optionally filtered with ?team=A
//   - GET /api/score - Team scores and the winning threshold
//
// Rewards:
//   - GET /api/rewards - Payout counters and the API wallet balance
//
// Configuration:
//   - GET /api/configs - List available match configurations
//   - GET /api/configs/{name} - Get one configuration
//
// Realtime:
//   - GET /ws - Websocket session. The user comes from the identity header
//     (X-User-ID by default) or the ?user= query parameter.
//
// Gameplay never goes through REST. Everything that changes the match arrives
// over /ws.
//
// Usage:
//
//	server := api.NewServer(matchService, hub, eng,
//		api.WithIdentityResolver(api.HeaderResolver{Header: "X-User-ID", AllowQuery: true}),
//		api.WithPermissionGate(royaleClient),
//	)
//	http.ListenAndServe(":8080", server)
//
// Error Handling:
//
// Errors are returned as JSON with appropriate HTTP status codes:
//
//	{
//	  "error": "error message",
//	  "code": 404
//	}
//
// The websocket endpoint answers 401 without an identity, 403 when the user
// has not allowed payouts and 502 when that check cannot be made.
package api
