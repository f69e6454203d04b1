package engine

// PlayerView is what other participants may know about a player. Hands are never exposed.
type PlayerView struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	CardCount int          `json:"cardCount"`
	IsBot     bool         `json:"isBot"`
	Status    PlayerStatus `json:"status"`
}

// GameView is the only representation of a session ever sent to a participant
type GameView struct {
	SessionID       string            `json:"sessionId"`
	Status          Status            `json:"status"`
	Players         []PlayerView      `json:"players"`
	CurrentPlayerID string            `json:"currentPlayerId,omitempty"`
	CentralPileSize int               `json:"centralPileSize"`
	PileTop         []Card            `json:"pileTop"`
	ActiveChallenge *FaceCardSequence `json:"activeChallenge"`
	Winner          *PlayerView       `json:"winner"`
	VoteState       *VoteState        `json:"voteState"`
	Settings        GameSettings      `json:"settings"`
	EventLog        []GameAction      `json:"eventLog"`
	Version         uint64            `json:"version"`
}

// View derives the client-facing state of the game
func (g *Game) View() GameView {
	view := GameView{
		SessionID:       g.id,
		Status:          g.status,
		Players:         make([]PlayerView, 0, len(g.players)),
		CurrentPlayerID: g.CurrentPlayerID(),
		CentralPileSize: len(g.pile),
		PileTop:         g.pileTop(PileTopSize),
		ActiveChallenge: g.challenge.Snapshot(),
		VoteState:       g.voting.Snapshot(),
		Settings:        g.settings.Clone(),
		EventLog:        g.log.Recent(EventLogViewSize),
		Version:         g.version,
	}
	if g.status == StatusPlaying && view.VoteState != nil {
		view.Status = StatusVoting
	}
	for _, p := range g.players {
		pv := g.playerView(p)
		view.Players = append(view.Players, pv)
		if p.ID == g.winnerID {
			w := pv
			view.Winner = &w
		}
	}
	return view
}

func (g *Game) playerView(p *Player) PlayerView {
	return PlayerView{
		ID:        p.ID,
		Name:      p.Name,
		CardCount: len(p.Hand),
		IsBot:     p.IsBot,
		Status:    p.Status(g.status),
	}
}

// pileTop returns up to n cards from the top of the pile, top card last
func (g *Game) pileTop(n int) []Card {
	if len(g.pile) < n {
		n = len(g.pile)
	}
	return append([]Card{}, g.pile[len(g.pile)-n:]...)
}
