package engine

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGame(t *testing.T) {
	g, err := NewGame("abcd", DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, "abcd", g.ID())
	assert.Equal(t, StatusPreGame, g.Status())
	assert.Equal(t, 52, g.TotalCards())
	assert.Empty(t, g.CurrentPlayerID())

	bad := DefaultSettings()
	bad.MinPlayers = 1
	_, err = NewGame("abcd", bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestAddPlayer(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxPlayers = 3

	tests := []struct {
		name    string
		id      string
		player  string
		wantErr error
	}{
		{"empty name", "x", "   ", ErrInvalidName},
		{"duplicate name ignores case", "x", "ALICE", ErrDuplicateName},
		{"new player", "p3", "carol", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGame(t, settings, "alice", "bob")
			err := g.AddPlayer(tt.id, tt.player, false)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 2, g.PlayerCount())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 3, g.PlayerCount())
		})
	}

	t.Run("session full", func(t *testing.T) {
		g, rec := newTestGame(t, settings, "alice", "bob", "carol")
		rec.reset()
		err := g.AddPlayer("p4", "dave", false)
		assert.ErrorIs(t, err, ErrSessionFull)
		assert.Equal(t, 3, g.PlayerCount())
		assert.Empty(t, rec.events, "rejected actions are never broadcast")
	})

	t.Run("not in pre-game", func(t *testing.T) {
		g, _ := startedGame(t, settings, "alice", "bob")
		err := g.AddPlayer("p9", "zed", false)
		assert.ErrorIs(t, err, ErrWrongStatus)
	})

	t.Run("logs and broadcasts", func(t *testing.T) {
		g, rec := newTestGame(t, settings, "alice")
		entries := g.Log().Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, EventAddPlayer, entries[0].EventType)
		assert.Equal(t, "p1", entries[0].PlayerID)
		assert.Equal(t, 1, rec.count(NotifyPlayerJoined))
		assert.Equal(t, 1, rec.count(NotifyState))
	})
}

func TestStartRequiresAllReady(t *testing.T) {
	g, rec := newTestGame(t, DefaultSettings(), "alice", "bob", "carol")

	require.NoError(t, g.SetReady("p1", true))
	require.NoError(t, g.SetReady("p2", true))
	assert.Equal(t, StatusPreGame, g.Status())

	require.NoError(t, g.SetReady("p3", true))
	require.Equal(t, StatusPlaying, g.Status())

	assert.Equal(t, 1, rec.count(NotifyGameStarted))
	assert.Zero(t, g.PileSize())
	total := 0
	for _, id := range g.PlayerIDs() {
		n := handSize(g, id)
		assert.GreaterOrEqual(t, n, 17)
		total += n
	}
	assert.Equal(t, 52, total)

	// the log restarts with the game
	entries := g.Log().Entries()
	require.NotEmpty(t, entries)
	assert.Equal(t, EventGameStarted, entries[0].EventType)
	assert.NotEmpty(t, g.CurrentPlayerID())

	// game_started precedes the snapshot
	var started, snapshot int
	for i, e := range rec.events {
		switch e.event {
		case NotifyGameStarted:
			started = i
		case NotifyState:
			snapshot = i
		}
	}
	assert.Less(t, started, snapshot)
}

func TestStartNeedsMinPlayers(t *testing.T) {
	g, _ := newTestGame(t, DefaultSettings(), "alice")
	require.NoError(t, g.SetReady("p1", true))
	assert.Equal(t, StatusPreGame, g.Status())
}

func TestRemovePlayerPreGame(t *testing.T) {
	t.Run("shrinks roster and re-checks start", func(t *testing.T) {
		g, _ := newTestGame(t, DefaultSettings(), "alice", "bob", "carol")
		require.NoError(t, g.SetReady("p1", true))
		require.NoError(t, g.SetReady("p2", true))

		require.NoError(t, g.RemovePlayer("p3"))
		assert.Equal(t, StatusPlaying, g.Status())
		assert.Equal(t, 2, g.PlayerCount())
	})

	t.Run("empty roster cancels", func(t *testing.T) {
		g, rec := newTestGame(t, DefaultSettings(), "alice")
		require.NoError(t, g.RemovePlayer("p1"))
		assert.Equal(t, StatusCancelled, g.Status())
		assert.Equal(t, 1, rec.count(NotifyPlayerLeft))
	})

	t.Run("unknown player", func(t *testing.T) {
		g, _ := newTestGame(t, DefaultSettings(), "alice")
		assert.ErrorIs(t, g.RemovePlayer("nobody"), ErrNotInSession)
	})

	t.Run("disconnect removes", func(t *testing.T) {
		g, _ := newTestGame(t, DefaultSettings(), "alice", "bob")
		require.NoError(t, g.DisconnectPlayer("p2"))
		assert.Equal(t, 1, g.PlayerCount())
	})
}

func TestPlayCard(t *testing.T) {
	g, rec := startedGame(t, DefaultSettings(), "alice", "bob", "carol")
	rig(t, g, map[string][]Card{
		"p1": {c("2", Hearts), c("3", Hearts)},
		"p2": {c("4", Clubs)},
	}, nil, "p3")
	setTurn(t, g, "p1")

	assert.ErrorIs(t, g.PlayCard("p2"), ErrNotYourTurn)
	assert.Equal(t, 0, g.PileSize())

	require.NoError(t, g.PlayCard("p1"))
	assert.Equal(t, []Card{c("2", Hearts)}, g.Pile())
	assert.Equal(t, 1, handSize(g, "p1"))
	assert.Equal(t, "p2", g.CurrentPlayerID())
	assert.Equal(t, 1, rec.count(NotifyCardPlayed))

	require.NoError(t, g.PlayCard("p2"))
	assert.Equal(t, "p3", g.CurrentPlayerID())

	// p2 is out, so the turn skips them
	require.NoError(t, g.PlayCard("p3"))
	assert.Equal(t, "p1", g.CurrentPlayerID())
	require.NoError(t, g.PlayCard("p1"))
	assert.Equal(t, "p3", g.CurrentPlayerID())

	entries := g.Log().Entries()
	var plays int
	for _, e := range entries {
		if e.EventType == EventPlayCard {
			plays++
		}
	}
	assert.Equal(t, 4, plays)
}

func TestPlayCardWrongStatus(t *testing.T) {
	g, _ := newTestGame(t, DefaultSettings(), "alice", "bob")
	assert.ErrorIs(t, g.PlayCard("p1"), ErrWrongStatus)
}

func TestEmptyHandAdvancesTurn(t *testing.T) {
	g, _ := startedGame(t, DefaultSettings(), "alice", "bob", "carol")
	rig(t, g, map[string][]Card{"p1": {}}, []Card{c("2", Clubs)}, "p2")
	g.lastPlayerID = "p3"
	setTurn(t, g, "p1")

	require.NoError(t, g.PlayCard("p1"))
	assert.Equal(t, "p2", g.CurrentPlayerID())
	assert.Equal(t, 1, g.PileSize())

	last := g.Log().Entries()[g.Log().Len()-1]
	assert.Equal(t, EventEmptyHand, last.EventType)
}

func TestDoublesSlap(t *testing.T) {
	g, rec := startedGame(t, DefaultSettings(), "alice", "bob")
	pile := []Card{c("3", Clubs), c("8", Spades), c("8", Hearts)}
	rig(t, g, map[string][]Card{"p2": {c("2", Diamonds)}}, pile, "p1")
	setTurn(t, g, "p1")

	before := handSize(g, "p2")
	result, err := g.Slap("p2")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "Doubles", result.Rule)
	assert.Equal(t, ActionTakePile, result.Action)
	assert.Equal(t, 3, result.Collected)
	assert.Zero(t, g.PileSize())
	assert.Equal(t, before+3, handSize(g, "p2"))
	assert.Equal(t, "p2", g.CurrentPlayerID(), "turn order resumes from the slapper")
	assert.Equal(t, 1, rec.count(NotifySlapResult))
}

func TestInvalidSlapPenalty(t *testing.T) {
	g, _ := startedGame(t, DefaultSettings(), "alice", "bob")
	pile := []Card{c("5", Spades), c("9", Hearts)}
	rig(t, g, map[string][]Card{"p2": {c("K", Diamonds), c("4", Clubs)}}, pile, "p1")
	setTurn(t, g, "p1")

	before := handSize(g, "p2")
	result, err := g.Slap("p2")
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.NotNil(t, result.Penalty)
	assert.Equal(t, c("K", Diamonds), *result.Penalty)
	assert.Equal(t, before-1, handSize(g, "p2"))
	assert.Equal(t, []Card{c("K", Diamonds), c("5", Spades), c("9", Hearts)}, g.Pile(), "penalty card goes under the pile")
	assert.Equal(t, "p1", g.CurrentPlayerID())
}

func TestPenaltyWithEmptyHand(t *testing.T) {
	g, _ := startedGame(t, DefaultSettings(), "alice", "bob")
	rig(t, g, map[string][]Card{"p2": {}}, []Card{c("5", Spades)}, "p1")
	setTurn(t, g, "p1")

	result, err := g.Slap("p2")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Nil(t, result.Penalty)
	assert.Equal(t, 1, g.PileSize())
}

func TestNotificationOnlySlap(t *testing.T) {
	settings := DefaultSettings()
	settings.SlapRules = append([]SlapRule{{
		Name:             "Seven",
		Conditions:       []Condition{{Field: "$pile[-1].rank", Operator: OpEqual, Value: "7"}},
		Action:           ActionDrink,
		TargetPlayerName: "bob",
	}}, settings.SlapRules...)

	g, _ := startedGame(t, settings, "alice", "bob")
	rig(t, g, nil, []Card{c("7", Spades), c("7", Hearts)}, "p1")
	setTurn(t, g, "p2")
	g.players[1].Hand = append(g.players[1].Hand, g.players[0].Hand[0])
	g.players[0].Hand = g.players[0].Hand[1:]

	result, err := g.Slap("p1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Seven", result.Rule, "first matching rule wins")
	assert.Equal(t, ActionDrink, result.Action)
	assert.Equal(t, "bob", result.TargetPlayerName)
	assert.Equal(t, 2, g.PileSize(), "drink moves no cards")
	assert.Equal(t, "p1", g.CurrentPlayerID(), "turn order resumes from the slapper")
}

func sevenSkipSettings() GameSettings {
	settings := DefaultSettings()
	settings.SlapRules = append([]SlapRule{{
		Name:       "Seven",
		Conditions: []Condition{{Field: "$pile[-1].rank", Operator: OpEqual, Value: "7"}},
		Action:     ActionSkip,
	}}, settings.SlapRules...)
	return settings
}

func TestSkipSlapResumesFromSlapper(t *testing.T) {
	g, _ := startedGame(t, sevenSkipSettings(), "alice", "bob", "carol")
	rig(t, g, map[string][]Card{
		"p2": {c("2", Clubs)},
		"p3": {c("3", Clubs)},
	}, []Card{c("7", Spades)}, "p1")
	setTurn(t, g, "p2")

	result, err := g.Slap("p3")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, ActionSkip, result.Action)
	assert.Equal(t, 1, g.PileSize())
	assert.Equal(t, "p3", g.CurrentPlayerID())

	assert.ErrorIs(t, g.PlayCard("p2"), ErrNotYourTurn)
	require.NoError(t, g.PlayCard("p3"))
	assert.Equal(t, "p1", g.CurrentPlayerID())
}

func TestSkipSlapWithEmptyHandPassesTurnOn(t *testing.T) {
	g, _ := startedGame(t, sevenSkipSettings(), "alice", "bob", "carol")
	rig(t, g, map[string][]Card{
		"p2": {c("2", Clubs)},
		"p3": {},
	}, []Card{c("7", Spades)}, "p1")
	setTurn(t, g, "p2")

	result, err := g.Slap("p3")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "p1", g.CurrentPlayerID(), "next holder after the slapper")
}

func TestSkipSlapDuringChallengeKeepsTributeOrder(t *testing.T) {
	g, _ := startedGame(t, sevenSkipSettings(), "alice", "bob", "carol")
	rig(t, g, map[string][]Card{
		"p2": {c("2", Clubs)},
		"p3": {c("3", Clubs)},
	}, []Card{c("K", Hearts), c("7", Spades)}, "p1")
	g.challenge.Start("p1", c("K", Hearts), "p2")

	result, err := g.Slap("p3")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, ActionSkip, result.Action)
	require.NotNil(t, g.ActiveChallenge())
	assert.Equal(t, "p2", g.CurrentPlayerID())
}

func TestWinDetection(t *testing.T) {
	g, rec := startedGame(t, DefaultSettings(), "alice", "bob")
	rig(t, g, map[string][]Card{"p2": {}}, []Card{c("7", Clubs), c("7", Diamonds)}, "p1")
	setTurn(t, g, "p1")
	require.Equal(t, 50, handSize(g, "p1"))

	_, err := g.Slap("p1")
	require.NoError(t, err)

	assert.Equal(t, 52, handSize(g, "p1"))
	assert.Equal(t, StatusGameOver, g.Status())
	assert.Equal(t, "p1", g.WinnerID())
	assert.Equal(t, 1, rec.count(NotifyGameEnded))

	view := g.View()
	require.NotNil(t, view.Winner)
	assert.Equal(t, "alice", view.Winner.Name)

	_, err = g.Slap("p1")
	assert.ErrorIs(t, err, ErrWrongStatus)
}

func TestStrandedPileGoesToLastPlayer(t *testing.T) {
	g, _ := startedGame(t, DefaultSettings(), "alice", "bob")
	pile := NewDeck(1)
	rig(t, g, map[string][]Card{"p2": {}}, nil, "p1")
	// p1 holds everything but one card, which they play onto a pile of the rest
	g.players[0].Hand = []Card{c("2", Hearts)}
	g.pile = nil
	for _, card := range pile {
		if card.ID != c("2", Hearts).ID {
			g.pile = append(g.pile, card)
		}
	}
	setTurn(t, g, "p1")

	require.NoError(t, g.PlayCard("p1"))
	assert.Equal(t, StatusGameOver, g.Status())
	assert.Equal(t, "p1", g.WinnerID())
}

func TestLeaveDuringPlay(t *testing.T) {
	t.Run("last player standing wins", func(t *testing.T) {
		g, _ := startedGame(t, DefaultSettings(), "alice", "bob")
		require.NoError(t, g.RemovePlayer("p2"))
		assert.Equal(t, StatusGameOver, g.Status())
		assert.Equal(t, "p1", g.WinnerID())
		assert.Equal(t, 52, handSize(g, "p1"))
	})

	t.Run("hand goes under the pile", func(t *testing.T) {
		g, _ := startedGame(t, DefaultSettings(), "alice", "bob", "carol")
		rig(t, g, map[string][]Card{
			"p2": {c("4", Clubs)},
			"p3": {c("5", Clubs)},
		}, []Card{c("9", Spades)}, "p1")
		setTurn(t, g, "p2")

		require.NoError(t, g.RemovePlayer("p2"))
		assert.Equal(t, StatusPlaying, g.Status())
		assert.Equal(t, []Card{c("4", Clubs), c("9", Spades)}, g.Pile())
		assert.Equal(t, "p3", g.CurrentPlayerID())
		assert.True(t, g.wins.Conserved(g.players, g.PileSize()))
	})
}

func TestDisconnectAndReconnect(t *testing.T) {
	g, _ := startedGame(t, DefaultSettings(), "alice", "bob")
	require.NoError(t, g.DisconnectPlayer("p2"))

	p, ok := g.Player("p2")
	require.True(t, ok)
	assert.True(t, p.Disconnected)
	assert.Equal(t, PlayerDisconnected, p.Status(g.Status()))
	assert.Equal(t, 2, g.PlayerCount())

	require.NoError(t, g.AddPlayer("p2", "bob", false))
	p, _ = g.Player("p2")
	assert.False(t, p.Disconnected)

	entries := g.Log().Entries()
	assert.Equal(t, EventPlayerReconnected, entries[len(entries)-1].EventType)
}

func TestUpdateSettings(t *testing.T) {
	g, _ := newTestGame(t, DefaultSettings(), "alice", "bob", "carol")
	require.NoError(t, g.SetReady("p1", true))

	next := DefaultSettings()
	next.NumDecks = 2
	require.NoError(t, g.UpdateSettings("p1", next))
	assert.Equal(t, 104, g.TotalCards())
	p, _ := g.Player("p1")
	assert.False(t, p.Ready, "new rules need a fresh ready")

	tooSmall := DefaultSettings()
	tooSmall.MaxPlayers = 2
	assert.ErrorIs(t, g.UpdateSettings("p1", tooSmall), ErrInvalidSettings)

	invalid := DefaultSettings()
	invalid.NumDecks = 9
	assert.ErrorIs(t, g.UpdateSettings("p1", invalid), ErrInvalidSettings)

	for i := 0; i < 3; i++ {
		require.NoError(t, g.SetReady(playerID(i), true))
	}
	assert.ErrorIs(t, g.UpdateSettings("p1", next), ErrWrongStatus)
}

func TestFailCancelsGame(t *testing.T) {
	g, rec := startedGame(t, DefaultSettings(), "alice", "bob")
	g.Fail("boom")
	assert.Equal(t, StatusCancelled, g.Status())
	assert.Contains(t, g.Failure(), "boom")
	assert.Equal(t, 1, rec.count(NotifySessionError))
	assert.ErrorIs(t, g.PlayCard(g.players[0].ID), ErrWrongStatus)
}

func TestConservationDetectsCorruption(t *testing.T) {
	g, rec := startedGame(t, DefaultSettings(), "alice", "bob")
	g.players[0].Hand = g.players[0].Hand[1:]
	setTurn(t, g, "p2")
	require.NoError(t, g.PlayCard("p2"))
	assert.Equal(t, StatusCancelled, g.Status())
	assert.Equal(t, 1, rec.count(NotifySessionError))
}

func TestViewHidesHands(t *testing.T) {
	g, _ := startedGame(t, DefaultSettings(), "alice", "bob")
	rig(t, g, nil, []Card{c("2", Clubs), c("3", Clubs), c("4", Clubs), c("5", Clubs)}, "p1")
	g.players[1].Hand = append(g.players[1].Hand, g.players[0].Hand[:10]...)
	g.players[0].Hand = g.players[0].Hand[10:]

	view := g.View()
	assert.Equal(t, "test", view.SessionID)
	assert.Equal(t, 4, view.CentralPileSize)
	assert.Equal(t, []Card{c("3", Clubs), c("4", Clubs), c("5", Clubs)}, view.PileTop)
	require.Len(t, view.Players, 2)
	assert.Equal(t, 38, view.Players[0].CardCount)
	assert.Equal(t, 10, view.Players[1].CardCount)
	assert.Nil(t, view.Winner)
	assert.Nil(t, view.ActiveChallenge)
	assert.LessOrEqual(t, len(view.EventLog), EventLogViewSize)

	require.NoError(t, g.StartVote("p1", "rematch"))
	assert.Equal(t, StatusVoting, g.View().Status)
	assert.Equal(t, StatusPlaying, g.Status())
}

// TestRandomPlayInvariants drives many games with random plays and slaps and checks
// card conservation and turn validity after every operation.
func TestRandomPlayInvariants(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		g, _ := newTestGame(t, DefaultSettings(), "alice", "bob", "carol")
		g.rng = rand.New(rand.NewPCG(seed, seed*7))
		for i := 0; i < 3; i++ {
			require.NoError(t, g.SetReady(playerID(i), true))
		}
		ops := rand.New(rand.NewPCG(seed, 99))

		for step := 0; step < 3000 && g.Status() == StatusPlaying; step++ {
			if ops.IntN(6) == 0 {
				_, err := g.Slap(playerID(ops.IntN(3)))
				require.NoError(t, err)
			} else {
				id := g.CurrentPlayerID()
				if id == "" {
					require.NoError(t, g.CollectChallengePile())
					continue
				}
				require.NoError(t, g.PlayCard(id))
				if g.Status() == StatusPlaying && g.ActiveChallenge() == nil {
					assert.Positive(t, handSize(g, g.CurrentPlayerID()), "seed %d step %d", seed, step)
				}
			}
			if g.Status() == StatusPlaying {
				require.True(t, g.wins.Conserved(g.players, g.PileSize()), "seed %d step %d", seed, step)
			}
		}
		assert.NotEqual(t, StatusCancelled, g.Status(), "seed %d: %s", seed, g.Failure())
	}
}
