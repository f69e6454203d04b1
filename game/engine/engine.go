package engine

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Notifier receives every outbound event a game produces
type Notifier interface {
	Broadcast(event string, payload any)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(event string, payload any)

func (f NotifierFunc) Broadcast(event string, payload any) { f(event, payload) }

type discardNotifier struct{}

func (discardNotifier) Broadcast(string, any) {}

// Option configures a Game
type Option func(*Game)

// WithRand injects the random source used for shuffling and the starting turn
func WithRand(rng *rand.Rand) Option {
	return func(g *Game) { g.rng = rng }
}

// WithClock injects the time source used for log timestamps
func WithClock(now func() time.Time) Option {
	return func(g *Game) { g.now = now }
}

// WithNotifier sets where outbound events go
func WithNotifier(n Notifier) Option {
	return func(g *Game) { g.notify = n }
}

// WithLogger sets the logger used for invariant violations
func WithLogger(logger logrus.FieldLogger) Option {
	return func(g *Game) { g.logger = logger }
}

// Game is one match: roster, turn order, central pile and status. It is not safe
// for concurrent use; callers serialize every call.
type Game struct {
	id       string
	settings GameSettings

	rules     *RuleEngine
	challenge *ChallengeEngine
	voting    VotingSystem
	wins      WinConditionTracker
	log       EventLog

	players      []*Player
	pile         []Card
	turn         int
	status       Status
	winnerID     string
	lastPlayerID string
	failure      string
	version      uint64

	notify Notifier
	rng    *rand.Rand
	now    func() time.Time
	logger logrus.FieldLogger
}

// NewGame creates a game in PRE_GAME with validated settings
func NewGame(id string, settings GameSettings, opts ...Option) (*Game, error) {
	if err := ValidateSettings(&settings); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	g := &Game{
		id:     id,
		status: StatusPreGame,
		notify: discardNotifier{},
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		now:    time.Now,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.applySettings(settings)
	return g, nil
}

func (g *Game) applySettings(settings GameSettings) {
	g.settings = settings.Clone()
	g.rules = NewRuleEngine(g.settings)
	g.challenge = NewChallengeEngine(g.rules)
	g.wins = WinConditionTracker{TotalCards: g.settings.TotalCards()}
}

func (g *Game) ID() string                         { return g.id }
func (g *Game) Status() Status                     { return g.status }
func (g *Game) Settings() GameSettings             { return g.settings.Clone() }
func (g *Game) Rules() *RuleEngine                 { return g.rules }
func (g *Game) Log() *EventLog                     { return &g.log }
func (g *Game) Version() uint64                    { return g.version }
func (g *Game) WinnerID() string                   { return g.winnerID }
func (g *Game) Failure() string                    { return g.failure }
func (g *Game) TotalCards() int                    { return g.wins.TotalCards }
func (g *Game) PileSize() int                      { return len(g.pile) }
func (g *Game) ActiveChallenge() *FaceCardSequence { return g.challenge.Snapshot() }
func (g *Game) ActiveVote() *VoteState             { return g.voting.Snapshot() }

// Pile returns a copy of the central pile, bottom first
func (g *Game) Pile() []Card {
	return append([]Card(nil), g.pile...)
}

// PlayerCount returns the roster size
func (g *Game) PlayerCount() int {
	return len(g.players)
}

// Player returns a copy of the player with id
func (g *Game) Player(id string) (Player, bool) {
	p, _ := g.find(id)
	if p == nil {
		return Player{}, false
	}
	cp := *p
	cp.Hand = append([]Card(nil), p.Hand...)
	return cp, true
}

// PlayerIDs returns the roster in seat order
func (g *Game) PlayerIDs() []string {
	ids := make([]string, len(g.players))
	for i, p := range g.players {
		ids[i] = p.ID
	}
	return ids
}

// Finished reports whether the game reached a terminal status
func (g *Game) Finished() bool {
	return g.status == StatusGameOver || g.status == StatusCancelled
}

// CurrentPlayerID is the player expected to play next. During a challenge it is the
// player owing tribute; while a completed challenge awaits collection nobody may play.
func (g *Game) CurrentPlayerID() string {
	if g.status != StatusPlaying || len(g.players) == 0 {
		return ""
	}
	if ch := g.challenge.Active(); ch != nil {
		if ch.Pending {
			return ""
		}
		return ch.ActivePlayerID
	}
	return g.players[g.turn].ID
}

// AddPlayer seats a new player, or re-attaches a disconnected one with the same id
func (g *Game) AddPlayer(id, name string, isBot bool) error {
	if p, _ := g.find(id); p != nil {
		if !p.Disconnected {
			return nil
		}
		p.Disconnected = false
		g.record(id, EventPlayerReconnected, nil)
		g.notify.Broadcast(NotifyPlayerJoined, map[string]any{"player": g.playerView(p), "reconnected": true})
		g.commit()
		return nil
	}

	if g.status != StatusPreGame {
		return ErrWrongStatus
	}
	if len(g.players) >= g.settings.MaxPlayers {
		return ErrSessionFull
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	for _, p := range g.players {
		if strings.EqualFold(p.Name, name) {
			return ErrDuplicateName
		}
	}

	p := &Player{ID: id, Name: name, IsBot: isBot, JoinedAt: g.now()}
	g.players = append(g.players, p)
	g.record(id, EventAddPlayer, map[string]any{"name": name, "isBot": isBot})
	g.notify.Broadcast(NotifyPlayerJoined, map[string]any{"player": g.playerView(p)})
	g.commit()
	return nil
}

// RemovePlayer takes a player out of the roster. During play their hand goes under
// the pile; if only one player remains they collect it and win.
func (g *Game) RemovePlayer(id string) error {
	p, idx := g.find(id)
	if p == nil {
		return ErrNotInSession
	}

	if g.status != StatusPlaying {
		g.dropSeat(idx)
		g.record(id, EventRemovePlayer, map[string]any{"name": p.Name})
		g.notify.Broadcast(NotifyPlayerLeft, map[string]any{"playerId": id, "name": p.Name})
		if g.status == StatusPreGame {
			if len(g.players) == 0 {
				g.status = StatusCancelled
			} else {
				g.maybeStart()
			}
		}
		g.commit()
		return nil
	}

	holdsTurn := g.CurrentPlayerID() == id
	var inChallenge bool
	if ch := g.challenge.Active(); ch != nil {
		inChallenge = ch.InitiatorID == id || ch.ActivePlayerID == id
	}

	g.pile = append(append([]Card(nil), p.Hand...), g.pile...)
	p.Hand = nil
	g.dropSeat(idx)
	g.record(id, EventRemovePlayer, map[string]any{"name": p.Name})
	g.notify.Broadcast(NotifyPlayerLeft, map[string]any{"playerId": id, "name": p.Name})

	switch len(g.players) {
	case 0:
		g.status = StatusCancelled
		g.challenge.Clear()
		g.voting.Clear()
		g.commit()
		return nil
	case 1:
		g.collectPile(g.players[0], "last player standing")
		g.checkWin()
		g.commit()
		return nil
	}

	if inChallenge {
		g.challenge.Clear()
		holdsTurn = true
	}
	if holdsTurn {
		// idx now addresses the seat after the leaver
		g.advanceFrom(idx - 1)
	}

	if result := g.voting.Resolve(g.PlayerIDs()); result != nil {
		g.resolveVote(result)
	}
	g.checkWin()
	g.commit()
	return nil
}

// DisconnectPlayer handles a lost connection: removal before play, a presence flag after
func (g *Game) DisconnectPlayer(id string) error {
	p, _ := g.find(id)
	if p == nil {
		return ErrNotInSession
	}
	if g.status != StatusPlaying {
		return g.RemovePlayer(id)
	}
	if p.Disconnected {
		return nil
	}
	p.Disconnected = true
	g.record(id, EventPlayerDisconnected, nil)
	g.notify.Broadcast(NotifyPlayerLeft, map[string]any{"playerId": id, "name": p.Name, "disconnected": true})
	g.commit()
	return nil
}

// SetReady toggles readiness and starts the game once everyone is ready
func (g *Game) SetReady(id string, ready bool) error {
	if g.status != StatusPreGame {
		return ErrWrongStatus
	}
	p, _ := g.find(id)
	if p == nil {
		return ErrNotInSession
	}
	p.Ready = ready
	g.record(id, EventPlayerReady, map[string]any{"ready": ready})
	g.maybeStart()
	g.commit()
	return nil
}

// UpdateSettings replaces the rules before play begins. Readiness is reset so players
// confirm the new rules.
func (g *Game) UpdateSettings(id string, settings GameSettings) error {
	if g.status != StatusPreGame {
		return ErrWrongStatus
	}
	if p, _ := g.find(id); p == nil && id != "" {
		return ErrNotInSession
	}
	if err := ValidateSettings(&settings); err != nil {
		return ErrInvalidSettings.WithMessage("%v", err)
	}
	if len(g.players) > settings.MaxPlayers {
		return ErrInvalidSettings.WithMessage("session already has %d players, more than maxPlayers %d", len(g.players), settings.MaxPlayers)
	}

	g.applySettings(settings)
	for _, p := range g.players {
		p.Ready = false
	}
	g.record(id, EventSettingsUpdated, nil)
	g.commit()
	return nil
}

// PlayCard moves the front card of the acting player's hand onto the pile
func (g *Game) PlayCard(id string) error {
	if g.status != StatusPlaying {
		return ErrWrongStatus
	}
	p, idx := g.find(id)
	if p == nil {
		return ErrNotInSession
	}
	if g.challenge.Pending() {
		return ErrChallengePending
	}
	if g.CurrentPlayerID() != id {
		return ErrNotYourTurn
	}

	if len(p.Hand) == 0 {
		if ch := g.challenge.Active(); ch != nil {
			g.forfeit(p)
		} else {
			g.record(id, EventEmptyHand, nil)
			g.advanceFrom(idx)
		}
		g.commit()
		return nil
	}

	card := p.Hand[0]
	p.Hand = p.Hand[1:]
	g.pile = append(g.pile, card)
	g.lastPlayerID = id
	g.record(id, EventPlayCard, map[string]any{"card": card})
	g.notify.Broadcast(NotifyCardPlayed, map[string]any{
		"playerId":  id,
		"card":      card,
		"pileSize":  len(g.pile),
		"cardCount": len(p.Hand),
	})

	switch {
	case g.challenge.Active() != nil:
		g.respondToChallenge(p, idx, card)
	case g.challenge.Triggers(card):
		g.startChallenge(p, idx, card)
	default:
		if !g.checkWin() {
			g.advanceFrom(idx)
		}
	}

	g.checkWin()
	g.commit()
	return nil
}

// AutoPlay plays on behalf of whoever holds the turn; used by turn timeouts
func (g *Game) AutoPlay() error {
	id := g.CurrentPlayerID()
	if id == "" {
		return ErrWrongStatus
	}
	return g.PlayCard(id)
}

func (g *Game) startChallenge(p *Player, idx int, card Card) {
	successor := g.nextHolder(idx)
	if successor == nil {
		g.collectPile(p, "no challenger left")
		g.notify.Broadcast(NotifyChallengeWon, map[string]any{"playerId": p.ID, "pileSize": len(p.Hand)})
		return
	}
	ch := g.challenge.Start(p.ID, card, successor.ID)
	g.record(p.ID, EventChallengeStarted, map[string]any{
		"rank":           card.Rank,
		"cardsToPlay":    ch.CardsToPlay,
		"activePlayerId": ch.ActivePlayerID,
	})
	g.notify.Broadcast(NotifyChallengeStarted, g.challenge.Snapshot())
}

func (g *Game) respondToChallenge(p *Player, idx int, card Card) {
	var stranded bool
	outcome := g.challenge.Respond(card, func(string) string {
		if next := g.nextHolder(idx); next != nil {
			return next.ID
		}
		stranded = true
		return ""
	})

	switch outcome {
	case ChallengeTransferred:
		if stranded {
			g.collectPile(p, "no challenger left")
			g.notify.Broadcast(NotifyChallengeWon, map[string]any{"playerId": p.ID, "pileSize": len(p.Hand)})
			return
		}
		ch := g.challenge.Active()
		g.record(p.ID, EventChallengeTransfer, map[string]any{
			"rank":           card.Rank,
			"cardsToPlay":    ch.CardsToPlay,
			"activePlayerId": ch.ActivePlayerID,
		})
		g.notify.Broadcast(NotifyChallengeTransferred, g.challenge.Snapshot())

	case ChallengeCountered:
		g.record(p.ID, EventChallengeCountered, map[string]any{"card": card})
		g.notify.Broadcast(NotifyChallengeCountered, map[string]any{"playerId": p.ID, "card": card})
		if !g.checkWin() {
			g.advanceFrom(idx)
		}

	case ChallengeCompleted:
		ch := g.challenge.Active()
		if g.settings.ChallengeCounterSlapTimeoutMs > 0 {
			g.challenge.MarkPending()
			g.record(ch.InitiatorID, EventChallengePending, map[string]any{"timeoutMs": g.settings.ChallengeCounterSlapTimeoutMs})
			return
		}
		g.awardChallenge(ch.InitiatorID)

	case ChallengeContinues:
		if len(p.Hand) == 0 {
			g.forfeit(p)
		}
	}
}

// forfeit awards the pile to the initiator when the tribute payer runs dry
func (g *Game) forfeit(p *Player) {
	ch := g.challenge.Active()
	if ch == nil {
		return
	}
	g.record(p.ID, EventChallengeForfeit, map[string]any{"initiatorId": ch.InitiatorID})
	g.awardChallenge(ch.InitiatorID)
}

func (g *Game) awardChallenge(initiatorID string) {
	winner, _ := g.find(initiatorID)
	if winner == nil {
		g.challenge.Clear()
		g.fail(fmt.Errorf("%w: challenge initiator %s not seated", errInvariant, initiatorID))
		return
	}
	size := len(g.pile)
	g.record(initiatorID, EventChallengeWon, map[string]any{"pileSize": size})
	g.collectPile(winner, "challenge")
	g.notify.Broadcast(NotifyChallengeWon, map[string]any{"playerId": initiatorID, "pileSize": size})
}

// CollectChallengePile ends the post-tribute slap window in the initiator's favour
func (g *Game) CollectChallengePile() error {
	if g.status != StatusPlaying || !g.challenge.Pending() {
		return ErrWrongStatus
	}
	g.awardChallenge(g.challenge.Active().InitiatorID)
	g.checkWin()
	g.commit()
	return nil
}

// SlapResult describes the outcome of a slap attempt
type SlapResult struct {
	PlayerID         string     `json:"playerId"`
	Success          bool       `json:"success"`
	Rule             string     `json:"rule,omitempty"`
	Action           SlapAction `json:"action,omitempty"`
	TargetPlayerName string     `json:"targetPlayerName,omitempty"`
	Collected        int        `json:"collected,omitempty"`
	Penalty          *Card      `json:"penalty,omitempty"`
}

// Slap checks the pile against the configured rules. A match applies the first
// rule's action; a miss costs the slapper one card, placed under the pile.
func (g *Game) Slap(id string) (SlapResult, error) {
	if g.status != StatusPlaying {
		return SlapResult{}, ErrWrongStatus
	}
	p, idx := g.find(id)
	if p == nil {
		return SlapResult{}, ErrNotInSession
	}

	result := SlapResult{PlayerID: id}
	if rule, ok := g.rules.FirstValidRule(g.pile, p); ok {
		result.Success = true
		result.Rule = rule.Name
		result.Action = rule.Action
		result.TargetPlayerName = rule.TargetPlayerName
		if rule.Action == ActionTakePile {
			result.Collected = len(g.pile)
			g.collectPile(p, rule.Name)
		} else {
			g.resumeFrom(p, idx)
		}
		g.record(id, EventSlapSuccess, map[string]any{"rule": rule.Name, "action": rule.Action, "collected": result.Collected})
	} else {
		if len(p.Hand) > 0 {
			card := p.Hand[0]
			p.Hand = p.Hand[1:]
			g.pile = append([]Card{card}, g.pile...)
			result.Penalty = &card
		}
		g.record(id, EventSlapPenalty, map[string]any{"card": result.Penalty})
		g.repairTurn(p, idx)
	}

	g.notify.Broadcast(NotifySlapResult, result)
	g.checkWin()
	g.commit()
	return result, nil
}

// resumeFrom hands the turn to the slapper after a notification-only match.
// An open challenge keeps its own turn order.
func (g *Game) resumeFrom(p *Player, idx int) {
	if g.challenge.Active() != nil {
		return
	}
	if len(p.Hand) > 0 {
		g.turn = idx
		return
	}
	g.advanceFrom(idx)
}

// repairTurn keeps the turn on a card holder after p lost cards outside their own play
func (g *Game) repairTurn(p *Player, idx int) {
	if len(p.Hand) > 0 || g.CurrentPlayerID() != p.ID {
		return
	}
	if g.challenge.Active() != nil {
		g.forfeit(p)
		return
	}
	g.advanceFrom(idx)
}

// StartVote opens a referendum among the current players
func (g *Game) StartVote(id, topic string) error {
	if g.status != StatusPlaying {
		return ErrWrongStatus
	}
	if p, _ := g.find(id); p == nil {
		return ErrNotInSession
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ErrMalformedPayload.WithMessage("vote topic must not be empty")
	}
	if err := g.voting.Start(topic, id, g.now()); err != nil {
		return err
	}
	g.record(id, EventVoteStarted, map[string]any{"topic": topic})
	g.notify.Broadcast(NotifyVoteStarted, g.voting.Snapshot())
	g.commit()
	return nil
}

// SubmitVote records a ballot; the vote resolves once every current player has voted
func (g *Game) SubmitVote(id string, vote bool) error {
	if g.status != StatusPlaying {
		return ErrWrongStatus
	}
	if p, _ := g.find(id); p == nil {
		return ErrNotInSession
	}
	result, err := g.voting.Submit(id, vote, g.PlayerIDs())
	if err != nil {
		return err
	}
	g.record(id, EventVoteCast, map[string]any{"vote": vote})
	if result != nil {
		g.resolveVote(result)
	}
	g.commit()
	return nil
}

func (g *Game) resolveVote(result *VoteResult) {
	g.record("", EventVoteResolved, map[string]any{"topic": result.Topic, "yes": result.Yes, "no": result.No, "passed": result.Passed})
	g.notify.Broadcast(NotifyVoteResult, result)
}

// Fail cancels the game after an internal error. Other games are unaffected.
func (g *Game) Fail(reason string) {
	g.fail(fmt.Errorf("%w: %s", errInvariant, reason))
	g.commit()
}

func (g *Game) fail(err error) {
	if g.status == StatusCancelled {
		return
	}
	g.logger.WithField("session", g.id).WithError(err).Error("Game cancelled")
	g.status = StatusCancelled
	g.failure = err.Error()
	g.challenge.Clear()
	g.voting.Clear()
	g.record("", EventSessionFailed, map[string]any{"reason": g.failure})
	g.notify.Broadcast(NotifySessionError, map[string]any{"code": ErrInternal.Code, "message": g.failure})
}

func (g *Game) maybeStart() {
	if g.status != StatusPreGame || len(g.players) < g.settings.MinPlayers {
		return
	}
	for _, p := range g.players {
		if !p.Ready {
			return
		}
	}
	g.start()
}

func (g *Game) start() {
	deck := NewDeck(g.settings.NumDecks)
	Shuffle(deck, g.rng)
	for _, p := range g.players {
		p.Hand = nil
	}
	Deal(deck, g.players)

	g.pile = nil
	g.winnerID = ""
	g.lastPlayerID = ""
	g.log.Reset()
	g.voting.Clear()
	g.challenge.Clear()
	g.turn = g.rng.IntN(len(g.players))
	g.status = StatusPlaying

	g.record("", EventGameStarted, map[string]any{"players": len(g.players), "firstPlayerId": g.players[g.turn].ID})
	g.notify.Broadcast(NotifyGameStarted, map[string]any{"firstPlayerId": g.players[g.turn].ID})
}

// advanceFrom moves the turn to the next seat after idx that holds a card. With no
// holder left the last player to play takes the stranded pile.
func (g *Game) advanceFrom(idx int) {
	n := len(g.players)
	if n == 0 {
		return
	}
	for step := 1; step <= n; step++ {
		j := ((idx+step)%n + n) % n
		if len(g.players[j].Hand) > 0 {
			g.turn = j
			return
		}
	}

	if len(g.pile) > 0 {
		taker, _ := g.find(g.lastPlayerID)
		if taker == nil {
			taker = g.players[((idx%n)+n)%n]
		}
		g.collectPile(taker, "stranded pile")
		return
	}
	g.fail(fmt.Errorf("%w: no card holder and an empty pile", errInvariant))
}

// nextHolder returns the first seat after idx holding a card, excluding idx itself
func (g *Game) nextHolder(idx int) *Player {
	n := len(g.players)
	for step := 1; step < n; step++ {
		p := g.players[(idx+step)%n]
		if len(p.Hand) > 0 {
			return p
		}
	}
	return nil
}

// collectPile moves the whole pile to p, clears any challenge and gives p the turn
func (g *Game) collectPile(p *Player, reason string) {
	size := len(g.pile)
	p.Hand = append(p.Hand, g.pile...)
	g.pile = nil
	g.challenge.Clear()
	if _, idx := g.find(p.ID); idx >= 0 {
		g.turn = idx
	}
	g.record(p.ID, EventPileCollected, map[string]any{"cards": size, "reason": reason})
}

// checkWin ends the game when one player holds every card
func (g *Game) checkWin() bool {
	if g.status != StatusPlaying {
		return g.status == StatusGameOver
	}
	winnerID, ok := g.wins.Check(g.players, len(g.pile))
	if !ok {
		return false
	}
	winner, _ := g.find(winnerID)
	g.status = StatusGameOver
	g.winnerID = winnerID
	g.challenge.Clear()
	g.voting.Clear()
	g.record(winnerID, EventGameOver, map[string]any{"name": winner.Name})
	g.notify.Broadcast(NotifyGameEnded, map[string]any{"winner": g.playerView(winner)})
	return true
}

// commit bumps the version, verifies card conservation and broadcasts the new state
func (g *Game) commit() {
	if g.status == StatusPlaying && !g.wins.Conserved(g.players, len(g.pile)) {
		g.fail(fmt.Errorf("%w: card count no longer matches %d", errInvariant, g.wins.TotalCards))
	}
	g.version++
	g.notify.Broadcast(NotifyState, g.View())
}

func (g *Game) record(playerID string, eventType EventType, data map[string]any) {
	g.log.Append(playerID, eventType, g.now(), data)
}

func (g *Game) find(id string) (*Player, int) {
	for i, p := range g.players {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

// dropSeat removes the seat at idx and keeps the turn index on the same player
func (g *Game) dropSeat(idx int) {
	g.players = append(g.players[:idx], g.players[idx+1:]...)
	if idx < g.turn {
		g.turn--
	}
	if g.turn >= len(g.players) {
		g.turn = 0
	}
}
