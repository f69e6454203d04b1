package engine

import (
	"fmt"
	"reflect"
)

// RuleEngine evaluates slap rules and challenge settings. It holds no game state,
// so every query is a pure function of its arguments.
type RuleEngine struct {
	settings GameSettings
	rules    []compiledRule
}

type compiledRule struct {
	rule       SlapRule
	conditions []compiledCondition
}

type compiledCondition struct {
	field    operand
	operator Operator
	value    operand
}

// NewRuleEngine compiles every condition path in settings once
func NewRuleEngine(settings GameSettings) *RuleEngine {
	re := &RuleEngine{settings: settings.Clone()}
	for _, rule := range re.settings.SlapRules {
		re.rules = append(re.rules, compileRule(rule))
	}
	return re
}

func compileRule(rule SlapRule) compiledRule {
	cr := compiledRule{rule: rule}
	for _, cond := range rule.Conditions {
		cr.conditions = append(cr.conditions, compiledCondition{
			field:    compileOperand(cond.Field),
			operator: cond.Operator,
			value:    compileOperand(cond.Value),
		})
	}
	return cr
}

// Evaluate reports whether every condition of rule holds for the pile and acting player
func (re *RuleEngine) Evaluate(rule SlapRule, pile []Card, player *Player) bool {
	return re.compiled(rule).matches(evalContext{pile: pile, player: player, status: StatusPlaying})
}

// compiled returns the configured rule's precompiled form; ad-hoc rules are compiled on the fly
func (re *RuleEngine) compiled(rule SlapRule) *compiledRule {
	for i := range re.rules {
		cr := &re.rules[i]
		if cr.rule.Name == rule.Name && reflect.DeepEqual(cr.rule.Conditions, rule.Conditions) {
			return cr
		}
	}
	cr := compileRule(rule)
	return &cr
}

// GetValidRules returns the configured rules satisfied by the pile, in declaration order
func (re *RuleEngine) GetValidRules(pile []Card, player *Player) []SlapRule {
	ctx := evalContext{pile: pile, player: player, status: StatusPlaying}
	var out []SlapRule
	for _, cr := range re.rules {
		if cr.matches(ctx) {
			out = append(out, cr.rule)
		}
	}
	return out
}

// FirstValidRule returns the authoritative matching rule, if any
func (re *RuleEngine) FirstValidRule(pile []Card, player *Player) (SlapRule, bool) {
	ctx := evalContext{pile: pile, player: player, status: StatusPlaying}
	for _, cr := range re.rules {
		if cr.matches(ctx) {
			return cr.rule, true
		}
	}
	return SlapRule{}, false
}

// FirstValidRuleOnTop is FirstValidRule for a caller that sees only the top
// cards of a pile holding pileSize cards. Rules reading below the visible cards
// are skipped unless the whole pile is visible.
func (re *RuleEngine) FirstValidRuleOnTop(top []Card, pileSize int, player *Player) (SlapRule, bool) {
	ctx := evalContext{pile: top, player: player, status: StatusPlaying}
	partial := pileSize > len(top)
	for _, cr := range re.rules {
		if partial && cr.readsBelow(len(top)) {
			continue
		}
		if cr.matches(ctx) {
			return cr.rule, true
		}
	}
	return SlapRule{}, false
}

// GetFaceCardChallengeCount returns the tribute a card demands, 0 if it starts no challenge
func (re *RuleEngine) GetFaceCardChallengeCount(card Card) int {
	return re.settings.FaceCardChallengeCounts[card.Rank]
}

// IsCounterCard reports whether card cancels an active challenge
func (re *RuleEngine) IsCounterCard(card Card) bool {
	for _, spec := range re.settings.ChallengeCounterCards {
		if spec.Matches(card) {
			return true
		}
	}
	return false
}

func (re *RuleEngine) GetMinPlayers() int { return re.settings.MinPlayers }
func (re *RuleEngine) GetMaxPlayers() int { return re.settings.MaxPlayers }

// Diagnostics lists conditions whose paths do not compile. Such conditions are
// always false at runtime.
func (re *RuleEngine) Diagnostics() []string {
	var out []string
	for _, cr := range re.rules {
		for i, cond := range cr.rule.Conditions {
			for _, side := range []any{cond.Field, cond.Value} {
				if err := CheckPath(side); err != nil {
					out = append(out, fmt.Sprintf("%s condition %d: %v", cr.rule.Name, i, err))
				}
			}
		}
	}
	return out
}

// readsBelow reports whether any condition depends on more than the top visible cards
func (cr compiledRule) readsBelow(visible int) bool {
	for _, cond := range cr.conditions {
		if cond.field.readsBelow(visible) || cond.value.readsBelow(visible) {
			return true
		}
	}
	return false
}

func (cr compiledRule) matches(ctx evalContext) bool {
	if len(cr.conditions) == 0 {
		return false
	}
	for _, cond := range cr.conditions {
		if !cond.holds(ctx) {
			return false
		}
	}
	return true
}

func (c compiledCondition) holds(ctx evalContext) bool {
	left, ok := c.field.resolve(ctx)
	if !ok {
		return false
	}
	right, ok := c.value.resolve(ctx)
	if !ok {
		return false
	}
	return compare(left, c.operator, right)
}

func compare(left any, op Operator, right any) bool {
	switch op {
	case OpEqual:
		return scalarEqual(left, right)
	case OpNotEqual:
		return !scalarEqual(left, right)
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		cmp, ok := order(left, right)
		if !ok {
			return false
		}
		switch op {
		case OpGreater:
			return cmp > 0
		case OpLess:
			return cmp < 0
		case OpGreaterEqual:
			return cmp >= 0
		default:
			return cmp <= 0
		}
	case OpIn:
		switch list := right.(type) {
		case []any:
			for _, item := range list {
				if scalarEqual(left, normalize(item)) {
					return true
				}
			}
		case []Card:
			for _, card := range list {
				if c, ok := left.(Card); ok && c == card {
					return true
				}
			}
		}
		return false
	}
	return false
}

// scalarEqual is strict equality: mismatched types are never equal
func scalarEqual(a, b any) bool {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case Card:
		y, ok := b.(Card)
		return ok && x == y
	}
	return false
}

func order(a, b any) (int, bool) {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
