package engine

import "time"

// GameAction is an immutable event log entry
type GameAction struct {
	Seq       int            `json:"seq"`
	PlayerID  string         `json:"playerId,omitempty"`
	EventType EventType      `json:"eventType"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventLog is the append-only record of state-changing actions for one game
type EventLog struct {
	entries []GameAction
	seq     int
}

// Append records an action and returns it
func (l *EventLog) Append(playerID string, eventType EventType, at time.Time, data map[string]any) GameAction {
	l.seq++
	entry := GameAction{
		Seq:       l.seq,
		PlayerID:  playerID,
		EventType: eventType,
		Timestamp: at,
		Data:      data,
	}
	l.entries = append(l.entries, entry)
	return entry
}

// Len returns the number of entries
func (l *EventLog) Len() int {
	return len(l.entries)
}

// Entries returns a copy of every entry, oldest first
func (l *EventLog) Entries() []GameAction {
	return append([]GameAction(nil), l.entries...)
}

// Recent returns up to n of the newest entries, oldest first
func (l *EventLog) Recent(n int) []GameAction {
	if n <= 0 || n >= len(l.entries) {
		return l.Entries()
	}
	return append([]GameAction(nil), l.entries[len(l.entries)-n:]...)
}

// Page returns a window of entries. With newestFirst the offset counts from the newest entry.
func (l *EventLog) Page(offset, limit int, newestFirst bool) []GameAction {
	total := len(l.entries)
	if offset < 0 {
		offset = 0
	}
	if offset >= total || limit <= 0 {
		return []GameAction{}
	}
	end := offset + limit
	if end > total {
		end = total
	}

	out := make([]GameAction, 0, end-offset)
	for i := offset; i < end; i++ {
		idx := i
		if newestFirst {
			idx = total - 1 - i
		}
		out = append(out, l.entries[idx])
	}
	return out
}

// Reset clears the log; called when a game (re)starts
func (l *EventLog) Reset() {
	l.entries = nil
	l.seq = 0
}
