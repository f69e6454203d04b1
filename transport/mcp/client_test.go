package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/ratslap/game/engine"
	"github.com/wricardo/ratslap/game/service"
)

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]interface{}) (string, bool) {
	t.Helper()
	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
	result, err := handler(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text, result.IsError
}

func sampleView() *engine.GameView {
	return &engine.GameView{
		SessionID: "abc",
		Status:    engine.StatusPlaying,
		Players: []engine.PlayerView{
			{ID: "p1", Name: "alice", CardCount: 20, Status: engine.PlayerActive},
			{ID: "p2", Name: "Robo", CardCount: 30, IsBot: true, Status: engine.PlayerActive},
		},
		CurrentPlayerID: "p2",
		CentralPileSize: 2,
		PileTop: []engine.Card{
			{ID: "0-1", Rank: "7", Suit: engine.Hearts},
			{ID: "0-2", Rank: engine.Queen, Suit: engine.Spades},
		},
		ActiveChallenge: &engine.FaceCardSequence{
			InitiatorID:    "p1",
			ActivePlayerID: "p2",
			FaceCardRank:   engine.Queen,
			CardsToPlay:    2,
		},
		Version: 9,
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")

	require.NotNil(t, client)
	assert.Equal(t, "http://localhost:8080", client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.GetMCPServer())
}

func TestClient_apiCallErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/coded":
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "session \"x\" not found", "code": "SESSION_NOT_FOUND"})
		case "/plain":
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "bad"})
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)

	err := client.apiCall(context.Background(), "GET", "/coded", nil, nil)
	assert.EqualError(t, err, "session \"x\" not found (SESSION_NOT_FOUND)")

	err = client.apiCall(context.Background(), "GET", "/plain", nil, nil)
	assert.EqualError(t, err, "bad")

	err = client.apiCall(context.Background(), "GET", "/other", nil, nil)
	assert.EqualError(t, err, "API error: 502")
}

func TestClient_CreateSession(t *testing.T) {
	var gotConfig string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/sessions", r.URL.Path)
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		gotConfig = body["config_id"]

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(service.SessionInfo{ID: "abcd", ConfigName: "Party", Status: engine.StatusPreGame})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	text, isErr := callTool(t, client.handleCreateSession, "create_session", map[string]interface{}{"config_id": "party"})

	assert.False(t, isErr)
	assert.Equal(t, "party", gotConfig)
	assert.Contains(t, text, "Created session: abcd")
	assert.Contains(t, text, "Config: Party")
	assert.Contains(t, text, `"sessionId":"abcd"`)
}

func TestClient_ListSessions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count": 2,
			"sessions": []service.SessionInfo{
				{ID: "aaaa", ConfigName: "Classic", Status: engine.StatusPlaying, PlayerCount: 2, MaxPlayers: 8, CreatedAt: time.Now()},
				{ID: "bbbb", ConfigName: "Party", Status: engine.StatusPreGame, PlayerCount: 1, MaxPlayers: 6, CreatedAt: time.Now()},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	text, isErr := callTool(t, client.handleListSessions, "list_sessions", nil)

	assert.False(t, isErr)
	assert.Contains(t, text, "Active Sessions (2)")
	assert.Contains(t, text, "aaaa [PLAYING] 2/8 players")
	assert.Contains(t, text, "bbbb [PRE_GAME] 1/6 players")
}

func TestClient_GetSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions/abc" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "session not found", "code": "SESSION_NOT_FOUND"})
			return
		}
		json.NewEncoder(w).Encode(service.SessionInfo{ID: "abc", ConfigName: "Classic", State: sampleView()})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	t.Run("found", func(t *testing.T) {
		text, isErr := callTool(t, client.handleGetSession, "get_session", map[string]interface{}{"session_id": "abc"})
		assert.False(t, isErr)
		assert.Contains(t, text, "Session: abc")
		assert.Contains(t, text, "Status: PLAYING | Pile: 2 cards")
		assert.Contains(t, text, "7 of hearts Q of spades")
		assert.Contains(t, text, "▶ Robo [bot] - 30 cards")
		assert.Contains(t, text, "p2 owes 2 more card(s) to p1")
	})

	t.Run("missing id", func(t *testing.T) {
		text, isErr := callTool(t, client.handleGetSession, "get_session", map[string]interface{}{})
		assert.True(t, isErr)
		assert.Equal(t, "session_id is required", text)
	})

	t.Run("unknown", func(t *testing.T) {
		text, isErr := callTool(t, client.handleGetSession, "get_session", map[string]interface{}{"session_id": "zzz"})
		assert.True(t, isErr)
		assert.Contains(t, text, "SESSION_NOT_FOUND")
	})
}

func TestClient_EventLog(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sessions/abc/events", r.URL.Path)
		query = r.URL.RawQuery
		json.NewEncoder(w).Encode(service.EventLogResponse{
			Events: []engine.GameAction{
				{Seq: 1, EventType: engine.EventType("GAME_STARTED")},
				{Seq: 2, PlayerID: "p1", EventType: engine.EventType("PLAY_CARD"), Data: map[string]any{"rank": "7", "suit": "hearts"}},
			},
			TotalEvents: 5,
			Page:        1,
			PageSize:    2,
			TotalPages:  3,
			HasNext:     true,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	text, isErr := callTool(t, client.handleEventLog, "event_log", map[string]interface{}{
		"session_id": "abc",
		"page":       float64(1),
		"limit":      float64(2),
		"order":      "asc",
	})

	assert.False(t, isErr)
	assert.Equal(t, "limit=2&order=asc&page=1", query)
	assert.Contains(t, text, "Event Log (Page 1/3) - Total: 5")
	assert.Contains(t, text, "1. GAME_STARTED")
	assert.Contains(t, text, "2. PLAY_CARD by p1 (rank=7, suit=hearts)")
	assert.Contains(t, text, "More events on page 2")
}

func TestClient_AddBot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sessions/abc/bots", r.URL.Path)
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(engine.PlayerView{ID: "bot-1", Name: body["name"], IsBot: true})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	text, isErr := callTool(t, client.handleAddBot, "add_bot", map[string]interface{}{"session_id": "abc", "name": "Robo"})

	assert.False(t, isErr)
	assert.Equal(t, "Added bot Robo (bot-1) to session abc", text)
}

func TestClient_ListConfigs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]service.ConfigInfo{
			{ConfigID: "classic", Name: "Classic", Description: "Standard rules", MinPlayers: 2, MaxPlayers: 8, NumDecks: 1, SlapRules: 4},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	text, isErr := callTool(t, client.handleListConfigs, "list_configs", nil)

	assert.False(t, isErr)
	assert.Contains(t, text, "Classic (config_id: classic)")
	assert.Contains(t, text, "Players: 2-8, Decks: 1, Slap rules: 4")
}

func TestClient_GameRules(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/configs/classic", r.URL.Path)
		json.NewEncoder(w).Encode(engine.Preset{Name: "Classic", Settings: engine.DefaultSettings()})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	text, isErr := callTool(t, client.handleGameRules, "game_rules", nil)
	assert.False(t, isErr)
	assert.Contains(t, text, "FACE-CARD CHALLENGES")
	assert.NotContains(t, text, "PRESET:")

	text, isErr = callTool(t, client.handleGameRules, "game_rules", map[string]interface{}{"config_id": "classic"})
	assert.False(t, isErr)
	assert.Contains(t, text, "PRESET: Classic")
	assert.Contains(t, text, "Tributes: J=1, Q=2, K=3, A=4")
	assert.Contains(t, text, "SLAP RULES:")
}

func TestFormatGameView(t *testing.T) {
	assert.Equal(t, "No game state available", formatGameView(nil))

	view := sampleView()
	view.ActiveChallenge = nil
	view.Status = engine.StatusGameOver
	view.Winner = &engine.PlayerView{ID: "p1", Name: "alice", CardCount: 52}
	text := formatGameView(view)

	assert.Contains(t, text, "WINNER: alice")
	assert.NotContains(t, text, "Challenge")
}
