// Package service ties sessions, rooms, bots and timers together for the slap
// card game.
//
// Service implements websocket.Handler: every client frame, bot request, timer
// firing and REST call runs under one mutex, so the engine sees a strictly
// ordered stream of actions. After each action the service re-arms the single
// per-session timer (turn timeout or challenge collection) and touches the
// session's idle clock.
//
// Core Interfaces:
//
// GameService is the read/administrative surface used by the REST API and MCP tools.
// SessionManager creates sessions and pairs each with its room.
// ConfigManager loads and saves rule-set presets.
//
// Usage:
//
//	router := room.NewRouter(logger)
//	sessions := session.NewManager(router, logger)
//	presets, _ := config.NewManager("configs")
//	svc := service.NewGameService(sessions, presets, router, service.Options{Logger: logger})
//
//	hub := websocket.NewHub(svc, logger)
//	go svc.RunJanitor(ctx, time.Minute, 30*time.Minute)
//
// Client events are the engine.Request* names; replies and broadcasts use the
// engine.Notify* names plus joined_lobby, session_joined, session_left, sessions
// and error.
package service
