// Package api serves the REST surface of the slap card game and the /ws upgrade.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create a session from a preset ({"config_id": "classic"})
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N&status=PLAYING)
//   - GET /api/sessions/{id} - Session summary with its client view
//   - DELETE /api/sessions/{id} - Close a session; members return to the lobby
//   - GET /api/sessions/{id}/state - Client view only
//   - GET /api/sessions/{id}/events - Event log (?page=1&limit=20&order=desc)
//   - POST /api/sessions/{id}/bots - Seat a bot ({"name": "Robo"}, optional)
//
// Presets:
//   - GET /api/configs - List presets
//   - POST /api/configs - Save a preset ({"config_id", "name", "description", "settings"})
//   - GET /api/configs/schema - JSON schema of a preset document
//   - GET /api/configs/{name} - Load a preset
//
// Other:
//   - GET /health
//   - GET /ws?id=<previous id>&name=<display name> - live play
//
// Live play happens over the websocket only; REST never mutates a running game
// beyond seating bots and closing sessions.
//
// Errors are returned as JSON with an HTTP status derived from the error code:
//
//	{
//	  "error": "session \"zzzz\" not found",
//	  "code": "SESSION_NOT_FOUND"
//	}
package api
