package engine

import (
	"strconv"
	"strings"
)

// PathPrefix marks a condition operand as a dynamic path instead of a literal
const PathPrefix = "$"

type segmentKind int

const (
	segmentKey segmentKind = iota
	segmentIndex
)

type segment struct {
	kind  segmentKind
	key   string
	index int
}

// operand is a condition side compiled once: either a literal or a parsed path
type operand struct {
	raw     any
	literal any
	path    []segment
	dynamic bool
	broken  bool
}

// evalContext is the root object paths resolve against
type evalContext struct {
	pile   []Card
	player *Player
	status Status
}

func compileOperand(v any) operand {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, PathPrefix) {
		return operand{raw: v, literal: normalize(v)}
	}
	segs, err := parsePath(strings.TrimPrefix(s, PathPrefix))
	if err != nil {
		return operand{raw: v, dynamic: true, broken: true}
	}
	return operand{raw: v, path: segs, dynamic: true}
}

// resolve returns the operand's value and whether it is defined
func (o operand) resolve(ctx evalContext) (any, bool) {
	if !o.dynamic {
		return o.literal, o.literal != nil
	}
	if o.broken || len(o.path) == 0 {
		return nil, false
	}

	root := o.path[0]
	if root.kind != segmentKey {
		return nil, false
	}
	var cur any
	switch root.key {
	case "pile":
		cur = ctx.pile
	case "actingPlayer":
		if ctx.player == nil {
			return nil, false
		}
		cur = playerFields(ctx.player, ctx.status)
	default:
		return nil, false
	}

	for _, seg := range o.path[1:] {
		next, ok := step(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return normalize(cur), true
}

// readsBelow reports whether the path needs pile cards under the top visible ones.
// Bottom-anchored indices and the pile length count.
func (o operand) readsBelow(visible int) bool {
	if !o.dynamic || o.broken || len(o.path) == 0 {
		return false
	}
	if root := o.path[0]; root.kind != segmentKey || root.key != "pile" {
		return false
	}
	if len(o.path) == 1 {
		return true
	}
	seg := o.path[1]
	if seg.kind == segmentKey {
		return seg.key == "length"
	}
	return seg.index >= 0 || -seg.index > visible
}

func step(cur any, seg segment) (any, bool) {
	switch v := cur.(type) {
	case []Card:
		if seg.kind == segmentKey {
			if seg.key == "length" {
				return float64(len(v)), true
			}
			return nil, false
		}
		i, ok := wrapIndex(seg.index, len(v))
		if !ok {
			return nil, false
		}
		return v[i], true
	case []any:
		if seg.kind == segmentKey {
			if seg.key == "length" {
				return float64(len(v)), true
			}
			return nil, false
		}
		i, ok := wrapIndex(seg.index, len(v))
		if !ok {
			return nil, false
		}
		return v[i], true
	case Card:
		if seg.kind != segmentKey {
			return nil, false
		}
		switch seg.key {
		case "id":
			return v.ID, true
		case "rank":
			return string(v.Rank), true
		case "suit":
			return string(v.Suit), true
		case "value":
			return float64(v.Rank.Value()), true
		}
		return nil, false
	case map[string]any:
		if seg.kind != segmentKey {
			return nil, false
		}
		next, ok := v[seg.key]
		return next, ok
	}
	return nil, false
}

func wrapIndex(i, n int) (int, bool) {
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

func playerFields(p *Player, status Status) map[string]any {
	return map[string]any{
		"id":        p.ID,
		"name":      p.Name,
		"cardCount": float64(len(p.Hand)),
		"isBot":     p.IsBot,
		"status":    string(p.Status(status)),
	}
}

// normalize folds Go numeric and named string types onto the JSON value space
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case Rank:
		return string(n)
	case Suit:
		return string(n)
	case []string:
		out := make([]any, len(n))
		for i, s := range n {
			out[i] = s
		}
		return out
	case []Rank:
		out := make([]any, len(n))
		for i, r := range n {
			out[i] = string(r)
		}
		return out
	}
	return v
}

type pathError struct {
	path string
	pos  int
}

func (e *pathError) Error() string {
	return "malformed path " + strconv.Quote(e.path) + " at offset " + strconv.Itoa(e.pos)
}

// parsePath splits "pile[-1].rank" or "actingPlayer['name']" into segments
func parsePath(path string) ([]segment, error) {
	var segs []segment
	i := 0

	ident := func() (string, bool) {
		start := i
		for i < len(path) && isIdentChar(path[i], i == start) {
			i++
		}
		return path[start:i], i > start
	}

	name, ok := ident()
	if !ok {
		return nil, &pathError{path, i}
	}
	segs = append(segs, segment{kind: segmentKey, key: name})

	for i < len(path) {
		switch path[i] {
		case '.':
			i++
			name, ok := ident()
			if !ok {
				return nil, &pathError{path, i}
			}
			segs = append(segs, segment{kind: segmentKey, key: name})
		case '[':
			i++
			if i >= len(path) {
				return nil, &pathError{path, i}
			}
			if q := path[i]; q == '"' || q == '\'' {
				end := strings.IndexByte(path[i+1:], q)
				if end < 0 {
					return nil, &pathError{path, i}
				}
				key := path[i+1 : i+1+end]
				i += end + 2
				if i >= len(path) || path[i] != ']' {
					return nil, &pathError{path, i}
				}
				i++
				segs = append(segs, segment{kind: segmentKey, key: key})
				continue
			}
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return nil, &pathError{path, i}
			}
			n, err := strconv.Atoi(strings.TrimSpace(path[i : i+end]))
			if err != nil {
				return nil, &pathError{path, i}
			}
			i += end + 1
			segs = append(segs, segment{kind: segmentIndex, index: n})
		default:
			return nil, &pathError{path, i}
		}
	}
	return segs, nil
}

func isIdentChar(c byte, first bool) bool {
	switch {
	case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}

// CheckPath reports whether a "$"-prefixed operand compiles. Literals always pass.
func CheckPath(v any) error {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, PathPrefix) {
		return nil
	}
	_, err := parsePath(strings.TrimPrefix(s, PathPrefix))
	return err
}
