package bot

import (
	"slices"

	"github.com/wricardo/ratslap/game/engine"
)

// Intent is something a bot wants to do next
type Intent int

const (
	IntentReady Intent = iota + 1
	IntentPlay
	IntentSlap
	IntentVote
)

func (i Intent) String() string {
	switch i {
	case IntentReady:
		return "ready"
	case IntentPlay:
		return "play"
	case IntentSlap:
		return "slap"
	case IntentVote:
		return "vote"
	}
	return "unknown"
}

// Request returns the client event and payload that carries out the intent
func (i Intent) Request() (string, any) {
	switch i {
	case IntentReady:
		return engine.RequestSetReady, map[string]bool{"ready": true}
	case IntentPlay:
		return engine.RequestPlayCard, nil
	case IntentSlap:
		return engine.RequestSlap, nil
	case IntentVote:
		return engine.RequestSubmitVote, map[string]bool{"vote": true}
	}
	return "", nil
}

// Brain decides what a bot does from the same view every other player receives.
// It never sees hands or the full pile, so slap decisions use the visible top only.
type Brain struct {
	ID string

	rules   *engine.RuleEngine
	version uint64
	status  engine.Status
}

func NewBrain(id string) *Brain {
	return &Brain{ID: id}
}

// Decide returns the intents that apply to view, in priority order: slapping beats
// playing because a slap is a race.
func (b *Brain) Decide(view engine.GameView) []Intent {
	me, seated := findPlayer(view, b.ID)
	b.track(view)
	if !seated {
		return nil
	}

	switch view.Status {
	case engine.StatusPreGame:
		if me.Status == engine.PlayerWaiting {
			return []Intent{IntentReady}
		}
		return nil
	case engine.StatusPlaying, engine.StatusVoting:
	default:
		return nil
	}

	var intents []Intent
	if b.wantsSlap(view, me) {
		intents = append(intents, IntentSlap)
	}
	if view.CurrentPlayerID == b.ID {
		intents = append(intents, IntentPlay)
	}
	if view.VoteState != nil && !slices.ContainsFunc(view.VoteState.Votes, func(v engine.Vote) bool { return v.PlayerID == b.ID }) {
		intents = append(intents, IntentVote)
	}
	return intents
}

// track rebuilds the rule engine whenever settings may have changed
func (b *Brain) track(view engine.GameView) {
	if b.rules == nil || view.Status == engine.StatusPreGame || b.status == engine.StatusPreGame || view.Version < b.version {
		b.rules = engine.NewRuleEngine(view.Settings)
	}
	b.version = view.Version
	b.status = view.Status
}

func (b *Brain) wantsSlap(view engine.GameView, me engine.PlayerView) bool {
	if len(view.PileTop) == 0 {
		return false
	}
	player := &engine.Player{
		ID:    me.ID,
		Name:  me.Name,
		IsBot: true,
		Hand:  make([]engine.Card, me.CardCount),
	}
	rule, ok := b.rules.FirstValidRuleOnTop(view.PileTop, view.CentralPileSize, player)
	return ok && rule.Action == engine.ActionTakePile
}

func findPlayer(view engine.GameView, id string) (engine.PlayerView, bool) {
	for _, p := range view.Players {
		if p.ID == id {
			return p, true
		}
	}
	return engine.PlayerView{}, false
}
