package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeEscalation(t *testing.T) {
	g, rec := startedGame(t, DefaultSettings(), "alice", "bob", "carol")
	rig(t, g, map[string][]Card{
		"p1": {c("Q", Hearts), c("2", Hearts)},
		"p2": {c("K", Spades), c("3", Spades)},
		"p3": {c("4", Clubs), c("5", Clubs), c("6", Clubs), c("7", Clubs)},
	}, nil, "p1")
	setTurn(t, g, "p1")

	require.NoError(t, g.PlayCard("p1"))
	ch := g.ActiveChallenge()
	require.NotNil(t, ch)
	assert.Equal(t, "p1", ch.InitiatorID)
	assert.Equal(t, "p2", ch.ActivePlayerID)
	assert.Equal(t, Queen, ch.FaceCardRank)
	assert.Equal(t, 2, ch.CardsToPlay)
	assert.Equal(t, "p2", g.CurrentPlayerID())
	assert.Equal(t, 1, rec.count(NotifyChallengeStarted))

	require.NoError(t, g.PlayCard("p2"))
	ch = g.ActiveChallenge()
	require.NotNil(t, ch)
	assert.Equal(t, "p2", ch.InitiatorID, "the K-player becomes the initiator")
	assert.Equal(t, "p3", ch.ActivePlayerID)
	assert.Equal(t, King, ch.FaceCardRank)
	assert.Equal(t, 3, ch.CardsToPlay)
	assert.Equal(t, 0, ch.CardsPlayed)
	assert.Equal(t, 1, rec.count(NotifyChallengeTransferred))

	require.NoError(t, g.PlayCard("p3"))
	require.NoError(t, g.PlayCard("p3"))
	assert.Equal(t, 2, g.ActiveChallenge().CardsPlayed)
	assert.ErrorIs(t, g.PlayCard("p1"), ErrNotYourTurn)

	p2Before := handSize(g, "p2")
	require.NoError(t, g.PlayCard("p3"))
	assert.Nil(t, g.ActiveChallenge())
	assert.Zero(t, g.PileSize())
	assert.Equal(t, p2Before+5, handSize(g, "p2"), "initiator takes the whole pile")
	assert.Equal(t, "p2", g.CurrentPlayerID())
	assert.Equal(t, 1, rec.count(NotifyChallengeWon))
}

func TestChallengeCounterCard(t *testing.T) {
	settings := DefaultSettings()
	settings.ChallengeCounterCards = []CounterCardSpec{{Rank: "10"}}
	g, rec := startedGame(t, settings, "alice", "bob", "carol")
	rig(t, g, map[string][]Card{
		"p1": {c("J", Hearts)},
		"p2": {c("10", Spades), c("3", Spades)},
		"p3": {c("4", Clubs)},
	}, nil, "p1")
	setTurn(t, g, "p1")

	require.NoError(t, g.PlayCard("p1"))
	require.NotNil(t, g.ActiveChallenge())

	require.NoError(t, g.PlayCard("p2"))
	assert.Nil(t, g.ActiveChallenge())
	assert.Equal(t, 2, g.PileSize(), "a counter moves no cards")
	assert.Equal(t, "p3", g.CurrentPlayerID())
	assert.Equal(t, 1, rec.count(NotifyChallengeCountered))
}

func TestChallengeForfeit(t *testing.T) {
	g, _ := startedGame(t, DefaultSettings(), "alice", "bob")
	rig(t, g, map[string][]Card{
		"p2": {c("A", Hearts)},
		"p1": {c("2", Spades)},
	}, nil, "p2")
	// p1 holds a single card and owes four
	setTurn(t, g, "p2")

	require.NoError(t, g.PlayCard("p2"))
	require.Equal(t, "p1", g.CurrentPlayerID())

	require.NoError(t, g.PlayCard("p1"))
	assert.Nil(t, g.ActiveChallenge())
	assert.Equal(t, StatusGameOver, g.Status())
	assert.Equal(t, "p2", g.WinnerID())

	var forfeits int
	for _, e := range g.Log().Entries() {
		if e.EventType == EventChallengeForfeit {
			forfeits++
		}
	}
	assert.Equal(t, 1, forfeits)
}

func TestChallengeWithoutChallenger(t *testing.T) {
	g, _ := startedGame(t, DefaultSettings(), "alice", "bob")
	rig(t, g, map[string][]Card{"p2": {}}, []Card{c("2", Spades)}, "p1")
	setTurn(t, g, "p1")
	g.players[0].Hand = append([]Card{c("J", Clubs)}, removeCard(g.players[0].Hand, c("J", Clubs))...)

	require.NoError(t, g.PlayCard("p1"))
	assert.Nil(t, g.ActiveChallenge())
	assert.Equal(t, StatusGameOver, g.Status())
	assert.Equal(t, "p1", g.WinnerID())
}

func TestChallengePendingWindow(t *testing.T) {
	settings := DefaultSettings()
	settings.ChallengeCounterSlapTimeoutMs = 500

	t.Run("initiator collects at expiry", func(t *testing.T) {
		g, _ := startedGame(t, settings, "alice", "bob")
		rig(t, g, map[string][]Card{
			"p1": {c("J", Hearts), c("2", Hearts)},
			"p2": {c("3", Spades), c("4", Spades)},
		}, nil, "p2")
		setTurn(t, g, "p1")

		require.NoError(t, g.PlayCard("p1"))
		require.NoError(t, g.PlayCard("p2"))
		ch := g.ActiveChallenge()
		require.NotNil(t, ch)
		assert.True(t, ch.Pending)
		assert.Empty(t, g.CurrentPlayerID())
		assert.ErrorIs(t, g.PlayCard("p2"), ErrChallengePending)

		require.NoError(t, g.CollectChallengePile())
		assert.Nil(t, g.ActiveChallenge())
		assert.Equal(t, 3, handSize(g, "p1"))
		assert.Equal(t, "p1", g.CurrentPlayerID())
		assert.ErrorIs(t, g.CollectChallengePile(), ErrWrongStatus)
	})

	t.Run("slap steals the pile", func(t *testing.T) {
		g, _ := startedGame(t, settings, "alice", "bob")
		rig(t, g, map[string][]Card{
			"p1": {c("Q", Hearts), c("2", Hearts)},
			"p2": {c("4", Spades), c("4", Clubs)},
		}, nil, "p2")
		setTurn(t, g, "p1")

		require.NoError(t, g.PlayCard("p1"))
		require.NoError(t, g.PlayCard("p2"))
		require.NoError(t, g.PlayCard("p2"))
		require.True(t, g.ActiveChallenge().Pending)

		before := handSize(g, "p2")
		result, err := g.Slap("p2")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "Doubles", result.Rule)
		assert.Nil(t, g.ActiveChallenge())
		assert.Equal(t, before+3, handSize(g, "p2"))
		assert.Equal(t, 1, handSize(g, "p1"))
		assert.Equal(t, "p2", g.CurrentPlayerID())
	})
}

func TestChallengeEngineRespond(t *testing.T) {
	re := NewRuleEngine(DefaultSettings())
	ch := NewChallengeEngine(re)
	next := func(id string) string { return id + "-next" }

	assert.Equal(t, ChallengeContinues, ch.Respond(c("2", Clubs), next), "no challenge, nothing to do")

	ch.Start("a", c("Q", Clubs), "b")
	assert.Equal(t, ChallengeContinues, ch.Respond(c("2", Clubs), next))
	assert.Equal(t, 1, ch.Active().CardsPlayed)

	assert.Equal(t, ChallengeTransferred, ch.Respond(c("J", Clubs), next))
	assert.Equal(t, "b", ch.Active().InitiatorID)
	assert.Equal(t, "b-next", ch.Active().ActivePlayerID)
	assert.Equal(t, 1, ch.Active().CardsToPlay)
	assert.Equal(t, 0, ch.Active().CardsPlayed)

	assert.Equal(t, ChallengeCompleted, ch.Respond(c("3", Clubs), next))
	assert.False(t, ch.Pending())
	ch.MarkPending()
	assert.True(t, ch.Pending())
	ch.Clear()
	assert.Nil(t, ch.Active())
}

func removeCard(hand []Card, card Card) []Card {
	out := make([]Card, 0, len(hand))
	for _, h := range hand {
		if h.ID != card.ID {
			out = append(out, h)
		}
	}
	return out
}
