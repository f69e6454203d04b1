// Package mcp exposes the slap card game REST API as Model Context Protocol tools.
//
// The Client is a thin proxy: every tool call becomes one HTTP request against a
// running server and the JSON response is rendered as plain text for the agent.
// Live play (playing cards, slapping, voting) stays on the websocket.
//
// Tools:
//   - create_session: Create a session from a preset
//   - list_sessions: List active sessions
//   - get_session: Session summary with players, pile top and recent events
//   - event_log: Paginated event log
//   - add_bot: Seat a bot before the game starts
//   - list_configs: List rule-set presets
//   - game_rules: Rules of play, optionally with a preset's slap rules
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
