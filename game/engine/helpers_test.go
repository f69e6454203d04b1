package engine

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorded struct {
	event   string
	payload any
}

type recorder struct {
	events []recorded
}

func (r *recorder) Broadcast(event string, payload any) {
	r.events = append(r.events, recorded{event: event, payload: payload})
}

func (r *recorder) count(event string) int {
	n := 0
	for _, e := range r.events {
		if e.event == event {
			n++
		}
	}
	return n
}

func (r *recorder) last(event string) (any, bool) {
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].event == event {
			return r.events[i].payload, true
		}
	}
	return nil, false
}

func (r *recorder) reset() {
	r.events = nil
}

// c returns the first-deck card with rank and suit, matching NewDeck ids
func c(rank Rank, suit Suit) Card {
	return Card{ID: fmt.Sprintf("0-%s-%s", rank, suit), Rank: rank, Suit: suit}
}

func fixedClock() func() time.Time {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func newTestGame(t *testing.T, settings GameSettings, names ...string) (*Game, *recorder) {
	t.Helper()
	rec := &recorder{}
	g, err := NewGame("test", settings,
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithClock(fixedClock()),
		WithNotifier(rec),
	)
	require.NoError(t, err)
	for i, name := range names {
		require.NoError(t, g.AddPlayer(playerID(i), name, false))
	}
	return g, rec
}

func playerID(i int) string {
	return fmt.Sprintf("p%d", i+1)
}

// startedGame returns a PLAYING game with one seat per name
func startedGame(t *testing.T, settings GameSettings, names ...string) (*Game, *recorder) {
	t.Helper()
	g, rec := newTestGame(t, settings, names...)
	for i := range names {
		require.NoError(t, g.SetReady(playerID(i), true))
	}
	require.Equal(t, StatusPlaying, g.Status())
	rec.reset()
	return g, rec
}

// rig replaces hands and pile with the given cards. Every other card of the
// session's decks is appended to filler's hand so card conservation holds.
func rig(t *testing.T, g *Game, hands map[string][]Card, pile []Card, filler string) {
	t.Helper()
	used := make(map[string]bool)
	for _, p := range g.players {
		p.Hand = nil
	}
	for id, cards := range hands {
		p, _ := g.find(id)
		require.NotNil(t, p, "unknown player %s", id)
		for _, card := range cards {
			require.False(t, used[card.ID], "card %s used twice", card.ID)
			used[card.ID] = true
		}
		p.Hand = append([]Card(nil), cards...)
	}
	for _, card := range pile {
		require.False(t, used[card.ID], "card %s used twice", card.ID)
		used[card.ID] = true
	}
	g.pile = append([]Card(nil), pile...)

	fill, _ := g.find(filler)
	require.NotNil(t, fill)
	for _, card := range NewDeck(g.settings.NumDecks) {
		if !used[card.ID] {
			fill.Hand = append(fill.Hand, card)
		}
	}
	g.challenge.Clear()
	g.voting.Clear()
	require.True(t, g.wins.Conserved(g.players, len(g.pile)))
}

func setTurn(t *testing.T, g *Game, id string) {
	t.Helper()
	_, idx := g.find(id)
	require.GreaterOrEqual(t, idx, 0)
	g.turn = idx
}

func handSize(g *Game, id string) int {
	p, _ := g.find(id)
	return len(p.Hand)
}
