package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/invopop/jsonschema"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/ratslap/game/config"
	"github.com/wricardo/ratslap/game/engine"
	"github.com/wricardo/ratslap/game/service"
	"github.com/wricardo/ratslap/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
	logger  logrus.FieldLogger

	schemaOnce sync.Once
	schema     *jsonschema.Schema
}

// NewServer creates a new API server. hub may be nil, in which case /ws is unavailable.
func NewServer(gameService service.GameService, hub *websocket.Hub, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
		logger:  logger,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)

	api := s.router.PathPrefix("/api").Subrouter()

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Game views
	api.HandleFunc("/sessions/{id}/state", s.handleGetGameState).Methods("GET")
	api.HandleFunc("/sessions/{id}/events", s.handleGetEvents).Methods("GET")
	api.HandleFunc("/sessions/{id}/bots", s.handleAddBot).Methods("POST")

	// Configuration (schema must be before {name})
	api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")
	api.HandleFunc("/configs", s.handleCreateConfig).Methods("POST")
	api.HandleFunc("/configs/schema", s.handleConfigSchema).Methods("GET")
	api.HandleFunc("/configs/{name}", s.handleGetConfig).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if r.URL.Path == "/ws" {
			return
		}
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("HTTP request")
	})
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{"error": message, "code": code})
}

// respondFailure maps a service error onto an HTTP status
func respondFailure(w http.ResponseWriter, err error) {
	var ae *engine.ActionError
	switch {
	case errors.Is(err, config.ErrConfigNotFound):
		respondError(w, http.StatusNotFound, "CONFIG_NOT_FOUND", err.Error())
	case errors.Is(err, config.ErrInvalidConfig), errors.Is(err, config.ErrInvalidName):
		respondError(w, http.StatusBadRequest, engine.ErrInvalidSettings.Code, err.Error())
	case errors.As(err, &ae):
		status := http.StatusBadRequest
		switch ae.Code {
		case engine.ErrSessionNotFound.Code:
			status = http.StatusNotFound
		case engine.ErrWrongStatus.Code, engine.ErrSessionFull.Code, engine.ErrDuplicateName.Code:
			status = http.StatusConflict
		case engine.ErrInternal.Code:
			status = http.StatusInternalServerError
		}
		respondError(w, status, ae.Code, ae.Message)
	default:
		respondError(w, http.StatusInternalServerError, engine.ErrInternal.Code, err.Error())
	}
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID string `json:"config_id,omitempty"`
	}

	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, engine.ErrMalformedPayload.Code, "Invalid request body")
			return
		}
	}

	session, err := s.service.CreateSession(r.Context(), req.ConfigID)
	if err != nil {
		respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondFailure(w, err)
		return
	}
	total := len(sessions)

	// Parse query parameters
	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "accessed" (default)
	order := query.Get("order")    // "asc", "desc" (default: "desc")
	limitStr := query.Get("limit") // number of sessions to return
	status := query.Get("status")  // optional status filter

	// Set defaults
	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	if status != "" {
		filtered := sessions[:0]
		for _, sess := range sessions {
			if strings.EqualFold(string(sess.Status), status) {
				filtered = append(filtered, sess)
			}
		}
		sessions = filtered
	}

	// Sort sessions
	sort.SliceStable(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else { // "accessed"
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}

		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj) // desc
	})

	// Apply limit if specified
	if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(sessions) {
		sessions = sessions[:l]
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

func (s *Server) handleGetGameState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetGameState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	opts := service.EventLogOptions{
		Page:  1,
		Limit: 20,
		Order: "desc",
	}

	query := r.URL.Query()
	if p, err := strconv.Atoi(query.Get("page")); err == nil && p > 0 {
		opts.Page = p
	}
	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 {
		opts.Limit = l
	}
	if order := query.Get("order"); order == "asc" || order == "desc" {
		opts.Order = order
	}

	events, err := s.service.GetEventLog(r.Context(), mux.Vars(r)["id"], opts)
	if err != nil {
		respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusOK, events)
}

func (s *Server) handleAddBot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name,omitempty"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, engine.ErrMalformedPayload.Code, "Invalid request body")
			return
		}
	}

	player, err := s.service.AddBot(r.Context(), mux.Vars(r)["id"], req.Name)
	if err != nil {
		respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, player)
}

// Configuration Handlers

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.service.ListConfigs(r.Context())
	if err != nil {
		respondFailure(w, err)
		return
	}
	if configs == nil {
		configs = []*service.ConfigInfo{}
	}

	respondJSON(w, http.StatusOK, configs)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	// Remove .json extension if present
	configName := strings.TrimSuffix(mux.Vars(r)["name"], ".json")

	preset, err := s.service.LoadConfig(r.Context(), configName)
	if err != nil {
		respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusOK, preset)
}

var nonIDChars = regexp.MustCompile(`[^a-z0-9_-]+`)

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID string `json:"config_id,omitempty"`
		engine.Preset
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, engine.ErrMalformedPayload.Code, "Invalid request body")
		return
	}

	// Validate required fields
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, engine.ErrMalformedPayload.Code, "Config name is required")
		return
	}

	configID := req.ConfigID
	if configID == "" {
		configID = strings.Trim(nonIDChars.ReplaceAllString(strings.ToLower(req.Name), "-"), "-")
	}

	if err := s.service.SaveConfig(r.Context(), configID, &req.Preset); err != nil {
		respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Configuration saved successfully",
		"config_id": configID,
	})
}

// handleConfigSchema serves the JSON schema of a preset document
func (s *Server) handleConfigSchema(w http.ResponseWriter, r *http.Request) {
	s.schemaOnce.Do(func() {
		reflector := jsonschema.Reflector{
			AllowAdditionalProperties: false,
			DoNotReference:            true,
		}
		schema := reflector.Reflect(new(engine.Preset))
		schema.Title = "Slap card game rule-set preset"
		schema.Description = "Validates preset documents stored in the configs directory"
		s.schema = schema
	})

	respondJSON(w, http.StatusOK, s.schema)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "websocket unavailable", http.StatusServiceUnavailable)
		return
	}
	s.hub.ServeWS(w, r)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "healthy"}
	if s.hub != nil {
		body["connections"] = s.hub.Count()
	}
	respondJSON(w, http.StatusOK, body)
}
