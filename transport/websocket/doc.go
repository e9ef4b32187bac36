// Package websocket provides the real-time transport for Star Royale.
//
// The websocket package implements:
//   - The hub that fans engine events out to connections
//   - Per-connection read and write pumps
//   - Inbound event dispatch to the match engine
//   - Slow-consumer eviction and per-connection rate limiting
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub owns every
// connection. Hub implements engine.Broadcaster, so the engine pushes events
// straight into it. Each client has a buffered send queue drained by its own
// write goroutine; a client that cannot keep up is disconnected.
//
// Message Protocol:
//
// Every frame, in both directions, is one JSON object:
//   - Incoming: {"event": "movement", "data": {"x": 1, "y": 2, "rotation": 0}}
//   - Incoming: {"event": "claim", "data": {"starId": 7}}
//   - Outgoing: {"event": "starLocation", "data": {"id": 8, "x": 310, "y": 95}}
//
// Malformed frames and unknown events are ignored. A claim without starId
// targets whatever star is active.
//
// Usage:
//
//	hub := websocket.NewHub(websocket.WithConnectionIDs(registry.NewConnectionID))
//	go hub.Run(ctx)
//
//	eng, _ := engine.NewEngine(cfg, registry, hub)
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, userID, eng)
//	})
//
// Connection Lifecycle:
//
// 1. The HTTP layer authenticates the request and resolves the user
// 2. The connection is upgraded and registered with the hub
// 3. The engine joins the player and sends roster, star and score
// 4. Frames from the client drive movement and claims
// 5. Disconnection removes the player and notifies everyone else
//
// When the match is already over, step 3 sends matchOver instead and the
// connection is closed.
package websocket
