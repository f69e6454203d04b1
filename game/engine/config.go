package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Operator compares the two sides of a Condition
type Operator string

const (
	OpEqual        Operator = "==="
	OpNotEqual     Operator = "!=="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpIn           Operator = "in"
)

// Valid reports whether op is a known operator
func (op Operator) Valid() bool {
	switch op {
	case OpEqual, OpNotEqual, OpGreater, OpLess, OpGreaterEqual, OpLessEqual, OpIn:
		return true
	}
	return false
}

// Condition compares Field against Value. Either side is a literal JSON value or,
// when it is a string starting with "$", a path into {pile, actingPlayer}.
type Condition struct {
	Field    any      `json:"field" jsonschema:"description=Literal or $-prefixed path such as $pile[-1].rank"`
	Operator Operator `json:"operator" jsonschema:"enum====,enum=!==,enum=>,enum=<,enum=>=,enum=<=,enum=in"`
	Value    any      `json:"value"`
}

// SlapRule is a conjunction of conditions that, when satisfied, grants Action to the slapper
type SlapRule struct {
	Name             string      `json:"name" jsonschema:"minLength=1"`
	Conditions       []Condition `json:"conditions" jsonschema:"minItems=1"`
	Action           SlapAction  `json:"action" jsonschema:"enum=take-pile,enum=skip,enum=drink,enum=drink-all"`
	TargetPlayerName string      `json:"targetPlayerName,omitempty"`
}

// CounterCardSpec matches cards that cancel an active face-card challenge.
// An empty field matches any value.
type CounterCardSpec struct {
	Rank Rank `json:"rank,omitempty"`
	Suit Suit `json:"suit,omitempty"`
}

// Matches reports whether card fits every non-empty field of s
func (s CounterCardSpec) Matches(card Card) bool {
	if s.Rank != "" && s.Rank != card.Rank {
		return false
	}
	if s.Suit != "" && s.Suit != card.Suit {
		return false
	}
	return true
}

// GameSettings are the per-session rules, fixed once the session leaves PRE_GAME
type GameSettings struct {
	MinPlayers                    int               `json:"minPlayers" jsonschema:"minimum=2,maximum=12"`
	MaxPlayers                    int               `json:"maxPlayers" jsonschema:"minimum=2,maximum=12"`
	NumDecks                      int               `json:"numDecks" jsonschema:"minimum=1,maximum=4"`
	SlapRules                     []SlapRule        `json:"slapRules"`
	FaceCardChallengeCounts       map[Rank]int      `json:"faceCardChallengeCounts" jsonschema:"description=Tribute owed per face rank (1..10)"`
	ChallengeCounterCards         []CounterCardSpec `json:"challengeCounterCards,omitempty"`
	TurnTimeoutMs                 int               `json:"turnTimeoutMs,omitempty" jsonschema:"minimum=0,description=0 disables the turn timer"`
	ChallengeCounterSlapTimeoutMs int               `json:"challengeCounterSlapTimeoutMs,omitempty" jsonschema:"minimum=0,description=Slap window after tribute completes; 0 collects immediately"`
}

// TurnTimeout returns the turn timeout, zero when disabled
func (s GameSettings) TurnTimeout() time.Duration {
	return time.Duration(s.TurnTimeoutMs) * time.Millisecond
}

// ChallengeCounterSlapTimeout returns the post-tribute slap window, zero when disabled
func (s GameSettings) ChallengeCounterSlapTimeout() time.Duration {
	return time.Duration(s.ChallengeCounterSlapTimeoutMs) * time.Millisecond
}

// TotalCards is the number of cards in circulation for these settings
func (s GameSettings) TotalCards() int {
	n := s.NumDecks
	if n < MinDecks {
		n = MinDecks
	}
	return CardsPerDeck * n
}

// Clone returns a deep copy of the settings
func (s GameSettings) Clone() GameSettings {
	out := s
	out.SlapRules = make([]SlapRule, len(s.SlapRules))
	for i, rule := range s.SlapRules {
		out.SlapRules[i] = rule
		out.SlapRules[i].Conditions = append([]Condition(nil), rule.Conditions...)
	}
	out.FaceCardChallengeCounts = make(map[Rank]int, len(s.FaceCardChallengeCounts))
	for rank, n := range s.FaceCardChallengeCounts {
		out.FaceCardChallengeCounts[rank] = n
	}
	out.ChallengeCounterCards = append([]CounterCardSpec(nil), s.ChallengeCounterCards...)
	return out
}

// Preset is a named, shareable settings document stored as JSON
type Preset struct {
	Name        string       `json:"name" jsonschema:"minLength=1"`
	Description string       `json:"description,omitempty"`
	Settings    GameSettings `json:"settings"`
}

// DefaultSettings returns the classic rule set: doubles, sandwiches, top-bottom and
// marriages take the pile; J/Q/K/A demand 1/2/3/4 cards of tribute.
func DefaultSettings() GameSettings {
	return GameSettings{
		MinPlayers: 2,
		MaxPlayers: 8,
		NumDecks:   1,
		SlapRules: []SlapRule{
			{
				Name: "Doubles",
				Conditions: []Condition{
					{Field: "$pile[-1].rank", Operator: OpEqual, Value: "$pile[-2].rank"},
				},
				Action: ActionTakePile,
			},
			{
				Name: "Sandwich",
				Conditions: []Condition{
					{Field: "$pile[-1].rank", Operator: OpEqual, Value: "$pile[-3].rank"},
				},
				Action: ActionTakePile,
			},
			{
				Name: "Top Bottom",
				Conditions: []Condition{
					{Field: "$pile.length", Operator: OpGreaterEqual, Value: float64(2)},
					{Field: "$pile[-1].rank", Operator: OpEqual, Value: "$pile[0].rank"},
				},
				Action: ActionTakePile,
			},
			{
				Name: "Marriage",
				Conditions: []Condition{
					{Field: "$pile[-1].rank", Operator: OpIn, Value: []any{"Q", "K"}},
					{Field: "$pile[-2].rank", Operator: OpIn, Value: []any{"Q", "K"}},
					{Field: "$pile[-1].rank", Operator: OpNotEqual, Value: "$pile[-2].rank"},
				},
				Action: ActionTakePile,
			},
		},
		FaceCardChallengeCounts: map[Rank]int{Jack: 1, Queen: 2, King: 3, Ace: 4},
		ChallengeCounterCards:   []CounterCardSpec{},
	}
}

// ValidateSettings validates settings for correctness and playability
func ValidateSettings(s *GameSettings) error {
	if s.NumDecks < MinDecks || s.NumDecks > MaxDecks {
		return fmt.Errorf("settings validation: numDecks must be between %d and %d, got %d", MinDecks, MaxDecks, s.NumDecks)
	}
	if s.MinPlayers < MinPlayersFloor {
		return fmt.Errorf("settings validation: minPlayers must be at least %d, got %d", MinPlayersFloor, s.MinPlayers)
	}
	maxAllowed := MaxPlayersCeil
	if total := s.TotalCards(); total < maxAllowed {
		maxAllowed = total
	}
	if s.MaxPlayers < s.MinPlayers || s.MaxPlayers > maxAllowed {
		return fmt.Errorf("settings validation: maxPlayers must be between minPlayers (%d) and %d, got %d", s.MinPlayers, maxAllowed, s.MaxPlayers)
	}
	if s.TurnTimeoutMs < 0 || s.ChallengeCounterSlapTimeoutMs < 0 {
		return fmt.Errorf("settings validation: timeouts must not be negative")
	}

	seen := make(map[string]bool, len(s.SlapRules))
	for i, rule := range s.SlapRules {
		if rule.Name == "" {
			return fmt.Errorf("settings validation: slapRules[%d] name is required", i)
		}
		if seen[rule.Name] {
			return fmt.Errorf("settings validation: duplicate slap rule name %q", rule.Name)
		}
		seen[rule.Name] = true
		if !rule.Action.Valid() {
			return fmt.Errorf("settings validation: slap rule %q has unknown action %q", rule.Name, rule.Action)
		}
		if len(rule.Conditions) == 0 {
			return fmt.Errorf("settings validation: slap rule %q needs at least one condition", rule.Name)
		}
		for j, cond := range rule.Conditions {
			if !cond.Operator.Valid() {
				return fmt.Errorf("settings validation: slap rule %q condition %d has unknown operator %q", rule.Name, j, cond.Operator)
			}
		}
	}

	for rank, count := range s.FaceCardChallengeCounts {
		if !rank.Valid() {
			return fmt.Errorf("settings validation: faceCardChallengeCounts has unknown rank %q", rank)
		}
		if count < 1 || count > 10 {
			return fmt.Errorf("settings validation: tribute for %s must be between 1 and 10, got %d", rank, count)
		}
	}

	for i, spec := range s.ChallengeCounterCards {
		if spec.Rank == "" && spec.Suit == "" {
			return fmt.Errorf("settings validation: challengeCounterCards[%d] must name a rank or a suit", i)
		}
		if spec.Rank != "" && !spec.Rank.Valid() {
			return fmt.Errorf("settings validation: challengeCounterCards[%d] has unknown rank %q", i, spec.Rank)
		}
		if spec.Suit != "" && !spec.Suit.Valid() {
			return fmt.Errorf("settings validation: challengeCounterCards[%d] has unknown suit %q", i, spec.Suit)
		}
	}

	return nil
}

// ValidatePreset validates a preset document
func ValidatePreset(p *Preset) error {
	if p.Name == "" {
		return fmt.Errorf("preset validation: name is required")
	}
	return ValidateSettings(&p.Settings)
}

// LoadPreset loads and validates a preset from a JSON file
func LoadPreset(filename string) (*Preset, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var preset Preset
	if err := json.Unmarshal(data, &preset); err != nil {
		return nil, fmt.Errorf("failed to parse preset %q: %w", filename, err)
	}

	if err := ValidatePreset(&preset); err != nil {
		return nil, err
	}
	return &preset, nil
}
