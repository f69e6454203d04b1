package engine

// FaceCardSequence is an active face-card challenge. While it exists, ActivePlayerID
// holds the turn instead of the normal turn index.
type FaceCardSequence struct {
	InitiatorID    string `json:"initiatorId"`
	ActivePlayerID string `json:"activePlayerId"`
	FaceCardRank   Rank   `json:"faceCardRank"`
	CardsToPlay    int    `json:"cardsToPlay"`
	CardsPlayed    int    `json:"cardsPlayed"`
	// Pending is set once tribute is paid and the pile awaits collection
	Pending bool `json:"pending"`
}

// ChallengeOutcome is the result of a card played into an active challenge
type ChallengeOutcome int

const (
	ChallengeContinues ChallengeOutcome = iota
	ChallengeTransferred
	ChallengeCountered
	ChallengeCompleted
)

func (o ChallengeOutcome) String() string {
	switch o {
	case ChallengeTransferred:
		return "transferred"
	case ChallengeCountered:
		return "countered"
	case ChallengeCompleted:
		return "completed"
	}
	return "continues"
}

// ChallengeEngine tracks the escalating tribute sequence started by face cards
type ChallengeEngine struct {
	rules  *RuleEngine
	active *FaceCardSequence
}

func NewChallengeEngine(rules *RuleEngine) *ChallengeEngine {
	return &ChallengeEngine{rules: rules}
}

// Active returns the current sequence, or nil
func (c *ChallengeEngine) Active() *FaceCardSequence {
	return c.active
}

// Snapshot returns a copy of the current sequence, or nil
func (c *ChallengeEngine) Snapshot() *FaceCardSequence {
	if c.active == nil {
		return nil
	}
	cp := *c.active
	return &cp
}

// Triggers reports whether card starts a challenge
func (c *ChallengeEngine) Triggers(card Card) bool {
	return c.rules.GetFaceCardChallengeCount(card) > 0
}

// Start opens a challenge by initiatorID; successorID must pay the tribute
func (c *ChallengeEngine) Start(initiatorID string, card Card, successorID string) *FaceCardSequence {
	c.active = &FaceCardSequence{
		InitiatorID:    initiatorID,
		ActivePlayerID: successorID,
		FaceCardRank:   card.Rank,
		CardsToPlay:    c.rules.GetFaceCardChallengeCount(card),
	}
	return c.active
}

// Respond applies a card played by the active player. successor is only consulted
// when the card escalates the challenge.
func (c *ChallengeEngine) Respond(card Card, successor func(playerID string) string) ChallengeOutcome {
	if c.active == nil {
		return ChallengeContinues
	}

	if c.Triggers(card) {
		player := c.active.ActivePlayerID
		c.Start(player, card, successor(player))
		return ChallengeTransferred
	}

	if c.rules.IsCounterCard(card) {
		c.active = nil
		return ChallengeCountered
	}

	c.active.CardsPlayed++
	if c.active.CardsPlayed >= c.active.CardsToPlay {
		return ChallengeCompleted
	}
	return ChallengeContinues
}

// MarkPending holds the completed challenge open until the pile is collected
func (c *ChallengeEngine) MarkPending() {
	if c.active != nil {
		c.active.Pending = true
	}
}

// Pending reports whether tribute is paid and the pile awaits collection
func (c *ChallengeEngine) Pending() bool {
	return c.active != nil && c.active.Pending
}

// Clear drops the active challenge, if any
func (c *ChallengeEngine) Clear() {
	c.active = nil
}
