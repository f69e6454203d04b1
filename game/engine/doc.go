// Package engine provides the core game logic for the slap card game.
//
// The engine package implements the game mechanics including:
//   - Deck construction, Fisher-Yates shuffling and round-robin dealing
//   - Turn order over a shared central pile
//   - Slap rules expressed as a small condition language
//   - Face-card challenges with escalation and counter cards
//   - Mid-game votes, win detection and an append-only event log
//   - Settings loading and validation
//
// Core Types:
//
// Game is one match and owns the roster, the pile and the status. It delegates
// to RuleEngine (slap legality and challenge settings), ChallengeEngine (the
// tribute sub-state), VotingSystem and WinConditionTracker, and records every
// state change in an EventLog. GameSettings describe the rules and are loaded
// from JSON presets.
//
// Usage:
//
//	g, err := engine.NewGame("a1f3", engine.DefaultSettings(),
//		engine.WithNotifier(room))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	_ = g.AddPlayer("p1", "alice", false)
//	_ = g.AddPlayer("p2", "bob", false)
//	_ = g.SetReady("p1", true)
//	_ = g.SetReady("p2", true) // deals and starts
//
//	_ = g.PlayCard(g.CurrentPlayerID())
//	result, _ := g.Slap("p2")
//
// Condition Language:
//
// A slap rule is a list of conditions that must all hold. Each side of a
// condition is a JSON literal or a path starting with "$", resolved against
// the pile and the acting player:
//
//	{"field": "$pile[-1].rank", "operator": "===", "value": "$pile[-2].rank"}
//	{"field": "$pile.length", "operator": ">=", "value": 2}
//	{"field": "$pile[-1].rank", "operator": "in", "value": ["Q", "K"]}
//
// Paths are parsed once when the rules are loaded. A path that does not
// resolve, or does not parse, makes its condition false.
//
// Concurrency:
//
// A Game is not safe for concurrent use. The service layer serializes every
// call, including those made from timers.
package engine
