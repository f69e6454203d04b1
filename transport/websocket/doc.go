// Package websocket provides the live Connection transport for the slap card game.
//
// The websocket package implements:
//   - The handshake that assigns each client a stable identity
//   - JSON envelope framing in both directions
//   - Per-client read and write pumps with ping/pong keepalive
//   - Connection lifecycle reporting to a Handler
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub tracks every live
// Client. Each Client is a room.Connection, so the routing and session layers
// treat it exactly like an in-process bot. The Hub does not know about rooms or
// sessions; it decodes frames and hands them to its Handler.
//
// Message Protocol:
//
// Frames are JSON envelopes in both directions:
//
//	{"event": "play_card", "data": {}}
//	{"event": "state", "data": {"sessionId": "a1f3", "status": "PLAYING", ...}}
//
// Identity:
//
// Clients connect to /ws?id=<previous id>&name=<display name>. A previous id is
// reused when no other live client holds it, which lets a player re-attach to a
// running game after a dropped connection. Otherwise a fresh UUID is minted.
//
// Usage:
//
//	hub := websocket.NewHub(gameService, logger)
//	go hub.Run(ctx)
//	router.HandleFunc("/ws", hub.ServeWS)
//
// Concurrency:
//
// Emit never blocks: a client whose send buffer is full gets ErrSendBufferFull
// and the broadcast moves on to the next member.
package websocket
