// Package session provides the connection registry for Star Royale.
//
// The session package implements:
//   - Thread-safe tracking of live connections
//   - The mapping from a connection to its external user identity
//   - Unique connection ID generation
//
// Core Types:
//
// Manager is the registry. Connection is one live network session together
// with the identity the authentication layer resolved for it.
//
// Connection Identifiers:
//
// Connection IDs are random UUIDs. They double as player IDs on the wire, so
// clients never see the external identity of other players.
//
// Usage:
//
//	registry := session.NewManager()
//
//	id := registry.NewConnectionID()
//	if _, err := registry.Register(id, userID); err != nil {
//		return err
//	}
//	defer registry.Unregister(id)
//
// The match engine is the only writer; other packages read through Get, List
// and Count.
package session
