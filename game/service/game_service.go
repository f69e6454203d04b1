package service

import (
	"context"
	"time"

	"github.com/wricardo/ratslap/game/engine"
	"github.com/wricardo/ratslap/transport/room"
)

// GameService defines the operations exposed to REST and MCP. Live play goes
// through the websocket Handler methods of Service instead.
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error
	AddBot(ctx context.Context, sessionID, name string) (*engine.PlayerView, error)

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*engine.GameView, error)
	GetEventLog(ctx context.Context, sessionID string, opts EventLogOptions) (*EventLogResponse, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.Preset, error)
	SaveConfig(ctx context.Context, configName string, preset *engine.Preset) error

	// Housekeeping
	CloseIdleSessions(ctx context.Context, maxIdle time.Duration) int
}

// HooksFunc builds the room hooks for a session once its id is known
type HooksFunc func(sessionID string) room.Hooks

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, configName string, settings engine.GameSettings, hooks HooksFunc, opts ...engine.Option) (*Session, error)
	Get(id string) (*Session, error)
	ForConnection(connID string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Expired(maxIdle time.Duration) []string
	OnClosed(fn func(sessionID string))
	Count() int
}

// ConfigManager handles rule-set preset loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.Preset, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.Preset
	SaveConfig(name string, preset *engine.Preset) error
}

// Session represents an active match and the room its participants share
type Session struct {
	ID             string
	Game           *engine.Game
	Room           *room.Room
	ConfigName     string
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
