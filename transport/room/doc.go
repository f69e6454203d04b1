// Package room routes participants between the lobby and session rooms.
//
// A Connection is either live (backed by a WebSocket, see transport/websocket)
// or Synthetic (a bot driven by listener callbacks). Both satisfy the same
// interface, so rooms and sessions never branch on participant kind.
//
// A Room is a bounded set of connections with OnAdd/OnRemove hooks and a
// Broadcast that keeps going when a single send fails. The Router owns one
// unbounded lobby plus a room per session and tracks which room each
// connection is in:
//
//	router := room.NewRouter(logger)
//	router.Register(conn)                      // lands in the lobby
//	router.CreateRoom("a1f3", 8, room.Hooks{...})
//	router.MoveToRoom(conn, "a1f3")            // leaves the lobby first
//
// Session rooms are deleted as soon as their last member leaves.
package room
