package service

import (
	"time"

	"github.com/wricardo/ratslap/game/engine"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string           `json:"id"`
	ConfigName     string           `json:"config_name"`
	Status         engine.Status    `json:"status"`
	PlayerCount    int              `json:"player_count"`
	MaxPlayers     int              `json:"max_players"`
	CreatedAt      time.Time        `json:"created_at"`
	LastAccessedAt time.Time        `json:"last_accessed_at"`
	State          *engine.GameView `json:"state,omitempty"`
}

// EventLogOptions configures event log retrieval
type EventLogOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// EventLogResponse contains a page of the session event log
type EventLogResponse struct {
	Events      []engine.GameAction `json:"events"`
	TotalEvents int                 `json:"total_events"`
	Page        int                 `json:"page"`
	PageSize    int                 `json:"page_size"`
	TotalPages  int                 `json:"total_pages"`
	HasNext     bool                `json:"has_next"`
	HasPrevious bool                `json:"has_previous"`
}

// ConfigInfo provides information about a rule-set preset
type ConfigInfo struct {
	Filename    string `json:"filename"`
	ConfigID    string `json:"config_id"` // The identifier to use for session creation
	Name        string `json:"name"`      // Display name
	Description string `json:"description"`
	MinPlayers  int    `json:"min_players"`
	MaxPlayers  int    `json:"max_players"`
	NumDecks    int    `json:"num_decks"`
	SlapRules   int    `json:"slap_rules"`
}

// Inbound payloads, one per client event

type createSessionPayload struct {
	ConfigID string               `json:"configId"`
	Name     string               `json:"name"`
	Settings *engine.GameSettings `json:"settings,omitempty"`
}

type joinSessionPayload struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
}

type readyPayload struct {
	Ready *bool `json:"ready"`
}

type settingsPayload struct {
	Settings *engine.GameSettings `json:"settings"`
}

type votePayload struct {
	Topic string `json:"topic"`
	Vote  *bool  `json:"vote"`
}

type botPayload struct {
	Name string `json:"name"`
}

// Outbound payloads sent to a single connection

type sessionJoined struct {
	SessionID string `json:"sessionId"`
	PlayerID  string `json:"playerId"`
}

type lobbyJoined struct {
	ID string `json:"id"`
	// ResumableSession names a running session where this identity is seated but disconnected
	ResumableSession string `json:"resumableSession,omitempty"`
}
