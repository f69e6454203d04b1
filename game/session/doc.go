// Package session is the session directory of the slap card game server.
//
// The session package implements:
//   - Thread-safe session storage and case-insensitive lookup
//   - Unique 4-character session ID generation
//   - Binding each session's game to its own room on the router
//   - Resolving which session a connection belongs to
//   - Idle session expiry
//
// Core Types:
//
// Manager is the directory. Each service.Session it hands out pairs an
// engine.Game with the room.Room its participants share; the game broadcasts
// every outbound event to that room.
//
// Lifecycle:
//
// A session lives exactly as long as its room. The router deletes a session room
// once its last member leaves, and Delete asks the router to close the room,
// which moves every member back to the lobby first. Either way the session is
// dropped from the directory and the OnClosed callback fires, so callers can stop
// timers or bots that belong to it.
//
// Usage:
//
//	router := room.NewRouter(logger)
//	manager := session.NewManager(router, logger)
//
//	sess, err := manager.Create("", "classic", preset.Settings, hooksFor)
//	if err != nil {
//		return err
//	}
//
//	// Later, from an inbound frame
//	sess, err = manager.ForConnection(conn.ID())
//
// Concurrency:
//
// Lookups are safe from any goroutine. Mutating a session's game is not: the
// service layer serializes those calls.
package session
