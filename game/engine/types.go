package engine

import (
	"fmt"
	"time"
)

// Rank is a card rank as it appears on the wire ("2".."10", "J", "Q", "K", "A")
type Rank string

// Suit is a card suit
type Suit string

const (
	Hearts   Suit = "hearts"
	Diamonds Suit = "diamonds"
	Clubs    Suit = "clubs"
	Spades   Suit = "spades"

	Jack  Rank = "J"
	Queen Rank = "Q"
	King  Rank = "K"
	Ace   Rank = "A"

	// CardsPerDeck is the size of one standard deck
	CardsPerDeck = 52

	MinDecks        = 1
	MaxDecks        = 4
	MinPlayersFloor = 2
	MaxPlayersCeil  = 12

	// PileTopSize is how many cards from the top of the pile are shown to clients
	PileTopSize = 3

	// EventLogViewSize caps the number of log entries included in a client view
	EventLogViewSize = 50
)

// Ranks lists every rank in ascending order
var Ranks = []Rank{"2", "3", "4", "5", "6", "7", "8", "9", "10", Jack, Queen, King, Ace}

// Suits lists every suit
var Suits = []Suit{Hearts, Diamonds, Clubs, Spades}

// Value returns the numeric value of a rank (2..14, ace high), or 0 for an unknown rank
func (r Rank) Value() int {
	for i, rank := range Ranks {
		if rank == r {
			return i + 2
		}
	}
	return 0
}

// Valid reports whether r is a known rank
func (r Rank) Valid() bool {
	return r.Value() != 0
}

// Valid reports whether s is a known suit
func (s Suit) Valid() bool {
	switch s {
	case Hearts, Diamonds, Clubs, Spades:
		return true
	}
	return false
}

// Card is an immutable playing card. ID is unique across every deck in a session.
type Card struct {
	ID   string `json:"id"`
	Rank Rank   `json:"rank"`
	Suit Suit   `json:"suit"`
}

func (c Card) String() string {
	return fmt.Sprintf("%s of %s", c.Rank, c.Suit)
}

// Status is the lifecycle state of a session
type Status string

const (
	StatusPreGame   Status = "PRE_GAME"
	StatusPlaying   Status = "PLAYING"
	StatusVoting    Status = "VOTING" // view-only overlay of PLAYING
	StatusGameOver  Status = "GAME_OVER"
	StatusCancelled Status = "CANCELLED"
)

// PlayerStatus describes a player's presence and readiness
type PlayerStatus string

const (
	PlayerWaiting      PlayerStatus = "waiting"
	PlayerReady        PlayerStatus = "ready"
	PlayerActive       PlayerStatus = "active"
	PlayerOut          PlayerStatus = "out"
	PlayerDisconnected PlayerStatus = "disconnected"
)

// Player is a seat in a session. Hand front (index 0) is the next card to play.
type Player struct {
	ID           string
	Name         string
	Hand         []Card
	Ready        bool
	IsBot        bool
	Disconnected bool
	JoinedAt     time.Time
}

// CardCount returns the size of the player's hand
func (p *Player) CardCount() int {
	return len(p.Hand)
}

// Status derives the client-facing status of the player for the given session status
func (p *Player) Status(session Status) PlayerStatus {
	switch {
	case p.Disconnected:
		return PlayerDisconnected
	case session == StatusPreGame && p.Ready:
		return PlayerReady
	case session == StatusPreGame:
		return PlayerWaiting
	case len(p.Hand) == 0:
		return PlayerOut
	default:
		return PlayerActive
	}
}

// SlapAction is the effect of a matched slap rule
type SlapAction string

const (
	ActionTakePile SlapAction = "take-pile"
	ActionSkip     SlapAction = "skip"
	ActionDrink    SlapAction = "drink"
	ActionDrinkAll SlapAction = "drink-all"
)

// Valid reports whether a is a known slap action
func (a SlapAction) Valid() bool {
	switch a {
	case ActionTakePile, ActionSkip, ActionDrink, ActionDrinkAll:
		return true
	}
	return false
}

// EventType names an entry in the session event log
type EventType string

const (
	EventAddPlayer          EventType = "ADD_PLAYER"
	EventRemovePlayer       EventType = "REMOVE_PLAYER"
	EventPlayerDisconnected EventType = "PLAYER_DISCONNECTED"
	EventPlayerReconnected  EventType = "PLAYER_RECONNECTED"
	EventPlayerReady        EventType = "PLAYER_READY"
	EventSettingsUpdated    EventType = "SETTINGS_UPDATED"
	EventGameStarted        EventType = "GAME_STARTED"
	EventPlayCard           EventType = "PLAY_CARD"
	EventEmptyHand          EventType = "EMPTY_HAND"
	EventChallengeStarted   EventType = "CHALLENGE_STARTED"
	EventChallengeTransfer  EventType = "CHALLENGE_TRANSFERRED"
	EventChallengeCountered EventType = "CHALLENGE_COUNTERED"
	EventChallengePending   EventType = "CHALLENGE_PENDING"
	EventChallengeWon       EventType = "CHALLENGE_WON"
	EventChallengeForfeit   EventType = "CHALLENGE_FORFEIT"
	EventSlapSuccess        EventType = "SLAP_SUCCESS"
	EventSlapPenalty        EventType = "SLAP_PENALTY"
	EventVoteStarted        EventType = "VOTE_STARTED"
	EventVoteCast           EventType = "VOTE_CAST"
	EventVoteResolved       EventType = "VOTE_RESOLVED"
	EventPileCollected      EventType = "PILE_COLLECTED"
	EventGameOver           EventType = "GAME_OVER"
	EventSessionFailed      EventType = "SESSION_FAILED"
)

// Outbound event names broadcast to the session room
const (
	NotifyPlayerJoined         = "player_joined"
	NotifyPlayerLeft           = "player_left"
	NotifyGameStarted          = "game_started"
	NotifyState                = "state"
	NotifyCardPlayed           = "card_played"
	NotifyChallengeStarted     = "challenge_started"
	NotifyChallengeTransferred = "challenge_transferred"
	NotifyChallengeCountered   = "challenge_countered"
	NotifyChallengeWon         = "challenge_won"
	NotifySlapResult           = "slap_result"
	NotifyVoteStarted          = "vote_started"
	NotifyVoteResult           = "vote_result"
	NotifyGameEnded            = "game_ended"
	NotifySessionError         = "session_error"
)

// Inbound event names sent by clients
const (
	RequestCreateSession  = "create_session"
	RequestJoinSession    = "join_session"
	RequestLeaveSession   = "leave_session"
	RequestSetReady       = "set_ready"
	RequestUpdateSettings = "update_settings"
	RequestPlayCard       = "play_card"
	RequestSlap           = "slap"
	RequestStartVote      = "start_vote"
	RequestSubmitVote     = "submit_vote"
	RequestAddBot         = "add_bot"
	RequestGetState       = "get_state"
	RequestListSessions   = "list_sessions"
)
