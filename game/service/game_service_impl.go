package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/ratslap/game/bot"
	"github.com/wricardo/ratslap/game/engine"
	"github.com/wricardo/ratslap/transport/room"
	"github.com/wricardo/ratslap/transport/websocket"
)

// Outbound events sent to a single connection
const (
	EventJoinedLobby   = "joined_lobby"
	EventSessionJoined = "session_joined"
	EventSessionLeft   = "session_left"
	EventSessions      = "sessions"
	EventError         = "error"
)

const (
	defaultDisconnectedTurnTimeout = 5 * time.Second
	maxBotNameAttempts             = 16
	customConfigID                 = "custom"
)

var (
	_ GameService       = (*Service)(nil)
	_ websocket.Handler = (*Service)(nil)
	_ bot.Actor         = (*Service)(nil)
)

// Options configures a Service
type Options struct {
	Logger logrus.FieldLogger
	// Bot tunes the reaction delays of bots added to sessions
	Bot bot.Options
	// DisconnectedTurnTimeout plays for a disconnected turn holder when the rule
	// set has no turn timeout of its own
	DisconnectedTurnTimeout time.Duration
	// GameOptions are applied to every game created by the service
	GameOptions []engine.Option
}

// Service routes every input to the owning game: client frames, bot requests,
// timer expiries and REST calls. One mutex serializes all of them, so a game is
// never mutated from two goroutines at once.
type Service struct {
	sessions SessionManager
	configs  ConfigManager
	router   *room.Router
	logger   logrus.FieldLogger
	opts     Options

	mu     sync.Mutex
	names  map[string]string
	timers map[string]*time.Timer
	bots   map[string]map[string]*bot.Driver
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager, router *room.Router, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.DisconnectedTurnTimeout <= 0 {
		opts.DisconnectedTurnTimeout = defaultDisconnectedTurnTimeout
	}
	if opts.Bot == (bot.Options{}) {
		opts.Bot = bot.DefaultOptions()
	}
	if opts.Bot.Logger == nil {
		opts.Bot.Logger = opts.Logger
	}
	s := &Service{
		sessions: sessions,
		configs:  configs,
		router:   router,
		logger:   opts.Logger,
		opts:     opts,
		names:    make(map[string]string),
		timers:   make(map[string]*time.Timer),
		bots:     make(map[string]map[string]*bot.Driver),
	}
	sessions.OnClosed(s.sessionClosed)
	return s
}

// HandleConnect places a new connection in the lobby and acknowledges its identity
func (s *Service) HandleConnect(conn room.Connection, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.router.Register(conn)
	if name = strings.TrimSpace(name); name != "" {
		s.names[conn.ID()] = name
	}

	ack := lobbyJoined{ID: conn.ID()}
	for _, sess := range s.sessions.List() {
		if p, ok := sess.Game.Player(conn.ID()); ok && p.Disconnected {
			ack.ResumableSession = sess.ID
			break
		}
	}
	s.emit(conn, EventJoinedLobby, ack)
}

// HandleDisconnect takes a lost connection out of its room. During play the
// player keeps their seat and can re-attach by joining again.
func (s *Service) HandleDisconnect(conn room.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, _ := s.sessions.ForConnection(conn.ID())
	delete(s.names, conn.ID())
	s.guard(sess, func() { s.router.Unregister(conn) })
	if sess != nil {
		s.closeIfOnlyBots(sess)
		s.afterAction(sess, false)
	}
}

// HandleMessage runs one client frame against the sender's session
func (s *Service) HandleMessage(conn room.Connection, msg websocket.Inbound) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, _ := s.sessions.ForConnection(conn.ID())
	var err error
	s.guard(before, func() { err = s.dispatch(conn, before, msg) })
	if err != nil {
		s.reject(conn, msg.Event, err)
	}

	after, _ := s.sessions.ForConnection(conn.ID())
	touch := !conn.IsSynthetic()
	if before != nil {
		s.afterAction(before, touch)
	}
	if after != nil && after != before {
		s.afterAction(after, touch)
	}
}

// Act runs a bot request through the same path as a client frame
func (s *Service) Act(conn room.Connection, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"conn": conn.ID(), "event": event}).WithError(err).Error("Failed to encode bot request")
		return
	}
	s.HandleMessage(conn, websocket.Inbound{Event: event, Data: data})
}

func (s *Service) dispatch(conn room.Connection, sess *Session, msg websocket.Inbound) error {
	switch msg.Event {
	case engine.RequestCreateSession:
		return s.createAndJoin(conn, sess, msg.Data)
	case engine.RequestJoinSession:
		var p joinSessionPayload
		if err := decode(msg.Data, &p); err != nil {
			return err
		}
		target, err := s.lookup(p.SessionID)
		if err != nil {
			return err
		}
		if sess != nil && sess != target {
			return engine.ErrAlreadyInSession
		}
		return s.join(conn, target, p.Name)
	case engine.RequestListSessions:
		s.emit(conn, EventSessions, s.summaries())
		return nil
	}

	if sess == nil {
		if knownRequest(msg.Event) {
			return engine.ErrNotInSession
		}
		return engine.ErrUnknownEvent.WithMessage("unknown event %q", msg.Event)
	}

	g := sess.Game
	switch msg.Event {
	case engine.RequestLeaveSession:
		return s.leave(conn, sess)

	case engine.RequestSetReady:
		var p readyPayload
		if err := decode(msg.Data, &p); err != nil {
			return err
		}
		return g.SetReady(conn.ID(), p.Ready == nil || *p.Ready)

	case engine.RequestUpdateSettings:
		var p settingsPayload
		if err := decode(msg.Data, &p); err != nil {
			return err
		}
		if p.Settings == nil {
			return engine.ErrMalformedPayload.WithMessage("settings are required")
		}
		if err := g.UpdateSettings(conn.ID(), *p.Settings); err != nil {
			return err
		}
		sess.Room.SetCapacity(g.Settings().MaxPlayers)
		sess.ConfigName = customConfigID
		return nil

	case engine.RequestPlayCard:
		return g.PlayCard(conn.ID())

	case engine.RequestSlap:
		_, err := g.Slap(conn.ID())
		return err

	case engine.RequestStartVote:
		var p votePayload
		if err := decode(msg.Data, &p); err != nil {
			return err
		}
		return g.StartVote(conn.ID(), p.Topic)

	case engine.RequestSubmitVote:
		var p votePayload
		if err := decode(msg.Data, &p); err != nil {
			return err
		}
		if p.Vote == nil {
			return engine.ErrMalformedPayload.WithMessage("vote must be true or false")
		}
		return g.SubmitVote(conn.ID(), *p.Vote)

	case engine.RequestAddBot:
		var p botPayload
		if err := decode(msg.Data, &p); err != nil {
			return err
		}
		_, err := s.addBot(sess, p.Name)
		return err

	case engine.RequestGetState:
		s.emit(conn, engine.NotifyState, g.View())
		return nil
	}

	return engine.ErrUnknownEvent.WithMessage("unknown event %q", msg.Event)
}

func (s *Service) createAndJoin(conn room.Connection, current *Session, data json.RawMessage) error {
	if current != nil {
		return engine.ErrAlreadyInSession
	}
	var p createSessionPayload
	if err := decode(data, &p); err != nil {
		return err
	}

	preset, configID, err := s.resolvePreset(p.ConfigID)
	if err != nil {
		return err
	}
	settings := preset.Settings
	if p.Settings != nil {
		settings = *p.Settings
		configID = customConfigID
	}

	sess, err := s.createSession(configID, settings)
	if err != nil {
		return err
	}
	if err := s.join(conn, sess, p.Name); err != nil {
		_ = s.sessions.Delete(sess.ID)
		return err
	}
	return nil
}

func (s *Service) createSession(configID string, settings engine.GameSettings) (*Session, error) {
	sess, err := s.sessions.Create("", configID, settings, s.hooksFor, s.opts.GameOptions...)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidSettings) {
			return nil, engine.ErrInvalidSettings.WithMessage("%v", err)
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// join seats conn in sess, or re-attaches a disconnected player, and moves it into the room
func (s *Service) join(conn room.Connection, sess *Session, name string) error {
	if name = strings.TrimSpace(name); name == "" {
		name = s.names[conn.ID()]
	}

	g := sess.Game
	_, seated := g.Player(conn.ID())
	if err := g.AddPlayer(conn.ID(), name, conn.IsSynthetic()); err != nil {
		return err
	}
	if !s.router.MoveToRoom(conn, sess.ID) {
		if !seated {
			_ = g.RemovePlayer(conn.ID())
		}
		return engine.ErrSessionFull
	}

	s.logger.WithFields(logrus.Fields{"session": sess.ID, "conn": conn.ID(), "player": name}).Info("Player joined session")
	s.emit(conn, EventSessionJoined, sessionJoined{SessionID: sess.ID, PlayerID: conn.ID()})
	s.emit(conn, engine.NotifyState, g.View())
	return nil
}

func (s *Service) leave(conn room.Connection, sess *Session) error {
	if !s.router.MoveToRoom(conn, room.LobbyID) {
		return engine.ErrNotInSession
	}
	s.emit(conn, EventSessionLeft, map[string]string{"sessionId": sess.ID})
	s.closeIfOnlyBots(sess)
	return nil
}

func (s *Service) hooksFor(sessionID string) room.Hooks {
	return room.Hooks{
		OnAdd: func(conn room.Connection) {
			s.logger.WithFields(logrus.Fields{"session": sessionID, "conn": conn.ID()}).Debug("Connection entered session room")
		},
		OnRemove: func(conn room.Connection, reason room.LeaveReason) {
			s.onLeave(sessionID, conn, reason)
		},
	}
}

// onLeave turns room departures into roster changes; it runs inside router calls made with s.mu held
func (s *Service) onLeave(sessionID string, conn room.Connection, reason room.LeaveReason) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return
	}

	switch reason {
	case room.ReasonLeft:
		err = sess.Game.RemovePlayer(conn.ID())
	case room.ReasonDisconnected:
		err = sess.Game.DisconnectPlayer(conn.ID())
	default:
		return
	}
	entry := s.logger.WithFields(logrus.Fields{"session": sessionID, "conn": conn.ID(), "reason": reason})
	if err != nil {
		entry.WithError(err).Debug("Departure did not change the roster")
		return
	}
	entry.Info("Player left session")
}

// closeIfOnlyBots closes a session once no human is seated in it
func (s *Service) closeIfOnlyBots(sess *Session) {
	if current, err := s.sessions.Get(sess.ID); err != nil || current != sess {
		return
	}
	if len(s.bots[sess.ID]) == 0 {
		return
	}
	for _, id := range sess.Game.PlayerIDs() {
		if p, _ := sess.Game.Player(id); !p.IsBot {
			return
		}
	}
	s.logger.WithField("session", sess.ID).Info("Only bots left, closing session")
	if err := s.sessions.Delete(sess.ID); err != nil {
		s.logger.WithField("session", sess.ID).WithError(err).Warn("Failed to close session")
	}
}

// sessionClosed releases timers and bots; the directory calls it from router operations made with s.mu held
func (s *Service) sessionClosed(sessionID string) {
	s.stopTimer(sessionID)
	for _, d := range s.bots[sessionID] {
		d.Close()
		s.router.Unregister(d.Conn())
	}
	delete(s.bots, sessionID)
}

func (s *Service) addBot(sess *Session, name string) (*engine.PlayerView, error) {
	g := sess.Game
	if g.Status() != engine.StatusPreGame {
		return nil, engine.ErrWrongStatus
	}
	if g.PlayerCount() >= g.Settings().MaxPlayers {
		return nil, engine.ErrSessionFull
	}

	d := bot.NewDriver("bot-"+uuid.NewString(), s, s.opts.Bot)
	s.router.Register(d.Conn())

	var err error
	if name = strings.TrimSpace(name); name != "" {
		err = s.join(d.Conn(), sess, name)
	} else {
		for i := 1; i <= maxBotNameAttempts; i++ {
			err = s.join(d.Conn(), sess, fmt.Sprintf("Bot %d", i))
			if !errors.Is(err, engine.ErrDuplicateName) {
				break
			}
		}
	}
	if err != nil {
		d.Close()
		s.router.Unregister(d.Conn())
		return nil, err
	}

	if s.bots[sess.ID] == nil {
		s.bots[sess.ID] = make(map[string]*bot.Driver)
	}
	s.bots[sess.ID][d.ID()] = d

	for _, p := range g.View().Players {
		if p.ID == d.ID() {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("bot %s missing from roster", d.ID())
}

// afterAction refreshes the idle clock and re-arms the session timer
func (s *Service) afterAction(sess *Session, touch bool) {
	if current, err := s.sessions.Get(sess.ID); err != nil || current != sess {
		return
	}
	if touch {
		_ = s.sessions.UpdateLastAccessed(sess.ID)
	}
	s.schedule(sess)
}

// schedule arms at most one timer per session: pending pile collection, or the
// turn timeout of whoever must play next. A timer that fires after any other
// mutation is dropped.
func (s *Service) schedule(sess *Session) {
	s.stopTimer(sess.ID)

	g := sess.Game
	if g.Status() != engine.StatusPlaying {
		return
	}
	settings := g.Settings()

	var (
		delay  time.Duration
		action func() error
		what   string
	)
	if ch := g.ActiveChallenge(); ch != nil && ch.Pending {
		delay, action, what = settings.ChallengeCounterSlapTimeout(), g.CollectChallengePile, "collect"
	} else if current := g.CurrentPlayerID(); current != "" {
		delay, action, what = settings.TurnTimeout(), g.AutoPlay, "autoplay"
		if p, ok := g.Player(current); ok && p.Disconnected && delay <= 0 {
			delay = s.opts.DisconnectedTurnTimeout
		}
	}
	if delay <= 0 || action == nil {
		return
	}

	version := g.Version()
	s.timers[sess.ID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if current, err := s.sessions.Get(sess.ID); err != nil || current != sess || g.Version() != version {
			return
		}
		delete(s.timers, sess.ID)
		s.guard(sess, func() {
			if err := action(); err != nil {
				s.logger.WithFields(logrus.Fields{"session": sess.ID, "timer": what}).WithError(err).Debug("Timer action rejected")
			}
		})
		s.schedule(sess)
	})
}

func (s *Service) stopTimer(sessionID string) {
	if timer, ok := s.timers[sessionID]; ok {
		timer.Stop()
		delete(s.timers, sessionID)
	}
}

// guard recovers a panic inside fn and cancels only the affected session
func (s *Service) guard(sess *Session, fn func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		entry := s.logger.WithField("panic", r)
		if sess == nil {
			entry.Error("Handler panicked")
			return
		}
		entry.WithField("session", sess.ID).Error("Handler panicked, cancelling session")
		sess.Game.Fail(fmt.Sprintf("internal error: %v", r))
	}()
	fn()
}

// reject reports a failed action to the offending connection only
func (s *Service) reject(conn room.Connection, event string, err error) {
	var ae *engine.ActionError
	if !errors.As(err, &ae) {
		s.logger.WithFields(logrus.Fields{"conn": conn.ID(), "event": event}).WithError(err).Error("Action failed")
		ae = &engine.ActionError{Code: engine.ErrInternal.Code, Message: err.Error()}
	}
	s.logger.WithFields(logrus.Fields{"conn": conn.ID(), "event": event, "code": ae.Code}).Debug("Action rejected")
	s.emit(conn, EventError, ae)
}

func (s *Service) emit(conn room.Connection, event string, payload any) {
	if err := conn.Emit(event, payload); err != nil {
		s.logger.WithFields(logrus.Fields{"conn": conn.ID(), "event": event}).WithError(err).Warn("Send failed")
	}
}

func (s *Service) lookup(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, engine.ErrSessionNotFound.WithMessage("session %q not found", sessionID)
	}
	return sess, nil
}

// resolvePreset loads a preset by id, or the default one, and returns the id to report
func (s *Service) resolvePreset(configID string) (*engine.Preset, string, error) {
	if configID == "" {
		preset := s.configs.GetDefault()
		return preset, s.getConfigID(preset.Name), nil
	}
	preset, err := s.configs.LoadConfig(configID)
	if err != nil {
		if available, listErr := s.configs.ListConfigs(); listErr == nil && len(available) > 0 {
			ids := make([]string, 0, len(available))
			for _, cfg := range available {
				ids = append(ids, cfg.ConfigID)
			}
			return nil, "", engine.ErrMalformedPayload.WithMessage("config '%s' not found. Available configs: %v", configID, ids)
		}
		return nil, "", engine.ErrMalformedPayload.WithMessage("config '%s' not found", configID)
	}
	return preset, configID, nil
}

// getConfigID returns the config_id for a preset display name
func (s *Service) getConfigID(presetName string) string {
	if available, err := s.configs.ListConfigs(); err == nil {
		for _, cfg := range available {
			if cfg.Name == presetName {
				return cfg.ConfigID
			}
		}
	}
	return "default"
}

func (s *Service) info(sess *Session, withState bool) *SessionInfo {
	info := &SessionInfo{
		ID:             sess.ID,
		ConfigName:     sess.ConfigName,
		Status:         sess.Game.Status(),
		PlayerCount:    sess.Game.PlayerCount(),
		MaxPlayers:     sess.Room.Capacity(),
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
	}
	if withState {
		view := sess.Game.View()
		info.Status = view.Status
		info.State = &view
	}
	return info
}

func (s *Service) summaries() []*SessionInfo {
	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.info(sess, false))
	}
	return result
}

// CreateSession creates an empty session that clients join over the websocket
func (s *Service) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	preset, configID, err := s.resolvePreset(configName)
	if err != nil {
		return nil, err
	}
	sess, err := s.createSession(configID, preset.Settings)
	if err != nil {
		return nil, err
	}
	return s.info(sess, true), nil
}

// GetSession retrieves session information
func (s *Service) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	_ = s.sessions.UpdateLastAccessed(sess.ID)
	return s.info(sess, true), nil
}

// ListSessions returns all active sessions
func (s *Service) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaries(), nil
}

// DeleteSession closes a session and returns its members to the lobby
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	return s.sessions.Delete(sess.ID)
}

// AddBot seats a bot in a session that has not started yet
func (s *Service) AddBot(ctx context.Context, sessionID, name string) (*engine.PlayerView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	var player *engine.PlayerView
	s.guard(sess, func() { player, err = s.addBot(sess, name) })
	if err == nil && player == nil {
		err = engine.ErrInternal
	}
	return player, err
}

// GetGameState returns the client view of a session
func (s *Service) GetGameState(ctx context.Context, sessionID string) (*engine.GameView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	view := sess.Game.View()
	return &view, nil
}

// GetEventLog returns one page of a session's event log
func (s *Service) GetEventLog(ctx context.Context, sessionID string, opts EventLogOptions) (*EventLogResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	log := sess.Game.Log()
	total := log.Len()

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order != "asc" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	return &EventLogResponse{
		Events:      log.Page((opts.Page-1)*opts.Limit, opts.Limit, opts.Order == "desc"),
		TotalEvents: total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListConfigs lists the available rule-set presets
func (s *Service) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a rule-set preset by id
func (s *Service) LoadConfig(ctx context.Context, configName string) (*engine.Preset, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig validates and stores a rule-set preset
func (s *Service) SaveConfig(ctx context.Context, configName string, preset *engine.Preset) error {
	return s.configs.SaveConfig(configName, preset)
}

// CloseIdleSessions closes sessions nobody has touched within maxIdle
func (s *Service) CloseIdleSessions(ctx context.Context, maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	closed := 0
	for _, id := range s.sessions.Expired(maxIdle) {
		if ctx.Err() != nil {
			break
		}
		if err := s.sessions.Delete(id); err != nil {
			s.logger.WithField("session", id).WithError(err).Warn("Failed to close idle session")
			continue
		}
		closed++
	}
	if closed > 0 {
		s.logger.WithField("closed", closed).Info("Closed idle sessions")
	}
	return closed
}

// RunJanitor closes idle sessions every interval until ctx is cancelled
func (s *Service) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CloseIdleSessions(ctx, maxIdle)
		}
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return engine.ErrMalformedPayload.WithMessage("malformed payload: %v", err)
	}
	return nil
}

func knownRequest(event string) bool {
	switch event {
	case engine.RequestLeaveSession, engine.RequestSetReady, engine.RequestUpdateSettings,
		engine.RequestPlayCard, engine.RequestSlap, engine.RequestStartVote,
		engine.RequestSubmitVote, engine.RequestAddBot, engine.RequestGetState:
		return true
	}
	return false
}
