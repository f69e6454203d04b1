package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/ratslap/game/engine"
	"github.com/wricardo/ratslap/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Rat Slap",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Rat Slap - MCP Interface

This is a thin client that proxies all requests to the REST API server. Live play
(playing cards, slapping, voting) happens over the websocket; these tools inspect and
administer sessions.

AVAILABLE TOOLS:
- create_session: Create a new session from a rule-set preset
- list_sessions: List all active sessions
- get_session: Session summary, players, pile top and recent events
- event_log: Paginated event log of a session
- add_bot: Seat a bot in a session that has not started
- list_configs: List rule-set presets
- game_rules: Explain the game, optionally with a preset's slap rules`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session with optional preset selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Preset id to use (optional, see list_configs)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID to retrieve",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "event_log",
		Description: "Get the event log of a session with pagination",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID",
				},
				"page": map[string]interface{}{
					"type":        "number",
					"description": "Page number (default 1)",
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Events per page (default 20, max 100)",
				},
				"order": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"asc", "desc"},
					"description": "asc for oldest first, desc for newest first (default)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleEventLog)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "add_bot",
		Description: "Seat a bot in a session that is still waiting for players",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Bot display name (optional)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleAddBot)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available rule-set presets",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_rules",
		Description: "Explain how the game is played; with config_id, also list that preset's slap rules and tributes",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Preset id to describe (optional)",
				},
			},
		},
	}, c.handleGameRules)
}

// GetMCPServer returns the underlying MCP server for serving over stdio
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			if code := errResp["code"]; code != "" {
				return fmt.Errorf("%s (%s)", msg, code)
			}
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	configID, _ := arguments(request)["config_id"].(string)

	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nConfig: %s\nPlayers join over the websocket with {\"event\":\"join_session\",\"data\":{\"sessionId\":%q}}\n",
		session.ID, session.ConfigName, session.ID)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		fmt.Fprintf(&b, "- %s [%s] %d/%d players (Config: %s, Created: %s)\n",
			s.ID, s.Status, s.PlayerCount, s.MaxPlayers, s.ConfigName, s.CreatedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", "/api/sessions/"+url.PathEscape(sessionID), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleEventLog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	params := url.Values{}
	if page, ok := args["page"].(float64); ok {
		params.Set("page", fmt.Sprintf("%d", int(page)))
	}
	if limit, ok := args["limit"].(float64); ok {
		params.Set("limit", fmt.Sprintf("%d", int(limit)))
	}
	if order, ok := args["order"].(string); ok && order != "" {
		params.Set("order", order)
	}

	path := "/api/sessions/" + url.PathEscape(sessionID) + "/events"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var events service.EventLogResponse
	if err := c.apiCall(ctx, "GET", path, nil, &events); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatEventLog(&events)), nil
}

func (c *Client) handleAddBot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	name, _ := args["name"].(string)

	var player engine.PlayerView
	if err := c.apiCall(ctx, "POST", "/api/sessions/"+url.PathEscape(sessionID)+"/bots", map[string]string{"name": name}, &player); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Added bot %s (%s) to session %s", player.Name, player.ID, sessionID)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Presets:\n\n")
	for _, cfg := range configs {
		fmt.Fprintf(&b, "• %s (config_id: %s)\n  %s\n  Players: %d-%d, Decks: %d, Slap rules: %d\n\n",
			cfg.Name, cfg.ConfigID, cfg.Description, cfg.MinPlayers, cfg.MaxPlayers, cfg.NumDecks, cfg.SlapRules)
	}
	return mcp.NewToolResultText(b.String()), nil
}

const gameRules = `Rat Slap - How To Play

SETUP:
• 2 or more players join a session and mark themselves ready
• The deck (52 cards per deck) is shuffled and dealt round-robin
• Players play the front card of their hand onto a shared central pile, in turn

FACE-CARD CHALLENGES:
• Playing a face card (J, Q, K, A by default) starts a challenge
• The next player must pay tribute: 1/2/3/4 cards for J/Q/K/A
• If a tribute card is itself a face card, the challenge passes on
• If tribute completes without a face card, the challenger takes the pile

SLAPPING:
• Any player may slap at any time
• If a slap rule matches the pile, the slapper takes the whole pile
• A wrong slap costs a penalty card placed under the pile

WINNING:
• A player with no cards is out of the rotation but may still slap back in
• The player holding every card wins

VOTES:
• Players may start a yes/no vote; it resolves once a majority is reached`

func (c *Client) handleGameRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	configID, _ := arguments(request)["config_id"].(string)
	if configID == "" {
		return mcp.NewToolResultText(gameRules), nil
	}

	var preset engine.Preset
	if err := c.apiCall(ctx, "GET", "/api/configs/"+url.PathEscape(configID), nil, &preset); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(gameRules + "\n\n" + formatPreset(&preset)), nil
}

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nConfig: %s\nCreated: %s\n\n%s",
		session.ID, session.ConfigName,
		session.CreatedAt.Format("2006-01-02 15:04:05"),
		formatGameView(session.State))
}

func formatGameView(view *engine.GameView) string {
	if view == nil {
		return "No game state available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s | Pile: %d cards | Version: %d\n", view.Status, view.CentralPileSize, view.Version)

	if len(view.PileTop) > 0 {
		cards := make([]string, len(view.PileTop))
		for i, card := range view.PileTop {
			cards[i] = card.String()
		}
		fmt.Fprintf(&b, "Pile top (top card last): %s\n", strings.Join(cards, " "))
	}

	b.WriteString("\nPlayers:\n")
	for _, p := range view.Players {
		marker := " "
		if p.ID == view.CurrentPlayerID {
			marker = "▶"
		}
		kind := ""
		if p.IsBot {
			kind = " [bot]"
		}
		fmt.Fprintf(&b, "%s %s%s - %d cards (%s)\n", marker, p.Name, kind, p.CardCount, p.Status)
	}

	if ch := view.ActiveChallenge; ch != nil {
		if ch.Pending {
			fmt.Fprintf(&b, "\nChallenge: tribute paid, %s collects unless someone slaps\n", ch.InitiatorID)
		} else {
			fmt.Fprintf(&b, "\nChallenge (%s): %s owes %d more card(s) to %s\n",
				ch.FaceCardRank, ch.ActivePlayerID, ch.CardsToPlay-ch.CardsPlayed, ch.InitiatorID)
		}
	}
	if view.VoteState != nil {
		fmt.Fprintf(&b, "\nVote in progress: %s\n", view.VoteState.Topic)
	}
	if view.Winner != nil {
		fmt.Fprintf(&b, "\n🎉 WINNER: %s\n", view.Winner.Name)
	}

	if n := len(view.EventLog); n > 0 {
		start := n - 5
		if start < 0 {
			start = 0
		}
		b.WriteString("\nRecent events:\n")
		for _, e := range view.EventLog[start:] {
			b.WriteString(formatEvent(e) + "\n")
		}
	}

	return b.String()
}

func formatEvent(e engine.GameAction) string {
	line := fmt.Sprintf("%d. %s", e.Seq, e.EventType)
	if e.PlayerID != "" {
		line += " by " + e.PlayerID
	}
	if len(e.Data) > 0 {
		keys := make([]string, 0, len(e.Data))
		for k := range e.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Data[k]))
		}
		line += " (" + strings.Join(parts, ", ") + ")"
	}
	return line
}

func formatEventLog(events *service.EventLogResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event Log (Page %d/%d) - Total: %d\n\n", events.Page, events.TotalPages, events.TotalEvents)
	for _, e := range events.Events {
		b.WriteString(formatEvent(e) + "\n")
	}
	if events.HasNext {
		fmt.Fprintf(&b, "\nMore events on page %d\n", events.Page+1)
	}
	return b.String()
}

func formatPreset(preset *engine.Preset) string {
	s := preset.Settings

	var b strings.Builder
	fmt.Fprintf(&b, "PRESET: %s\n", preset.Name)
	if preset.Description != "" {
		b.WriteString(preset.Description + "\n")
	}
	fmt.Fprintf(&b, "Players: %d-%d, Decks: %d\n", s.MinPlayers, s.MaxPlayers, s.NumDecks)

	ranks := make([]string, 0, len(s.FaceCardChallengeCounts))
	for rank := range s.FaceCardChallengeCounts {
		ranks = append(ranks, string(rank))
	}
	sort.Slice(ranks, func(i, j int) bool {
		return engine.Rank(ranks[i]).Value() < engine.Rank(ranks[j]).Value()
	})
	tributes := make([]string, 0, len(ranks))
	for _, rank := range ranks {
		tributes = append(tributes, fmt.Sprintf("%s=%d", rank, s.FaceCardChallengeCounts[engine.Rank(rank)]))
	}
	fmt.Fprintf(&b, "Tributes: %s\n", strings.Join(tributes, ", "))

	if s.TurnTimeoutMs > 0 {
		fmt.Fprintf(&b, "Turn timeout: %dms\n", s.TurnTimeoutMs)
	}
	if s.ChallengeCounterSlapTimeoutMs > 0 {
		fmt.Fprintf(&b, "Slap window after tribute: %dms\n", s.ChallengeCounterSlapTimeoutMs)
	}

	b.WriteString("\nSLAP RULES:\n")
	for _, rule := range s.SlapRules {
		conds := make([]string, len(rule.Conditions))
		for i, cond := range rule.Conditions {
			conds[i] = fmt.Sprintf("%v %s %v", cond.Field, cond.Operator, cond.Value)
		}
		fmt.Fprintf(&b, "• %s → %s\n  when %s\n", rule.Name, rule.Action, strings.Join(conds, " AND "))
	}
	return b.String()
}
