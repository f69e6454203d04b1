package engine

// WinConditionTracker detects the single player holding every card in circulation
type WinConditionTracker struct {
	TotalCards int
}

// Check returns the winner's id, if any
func (w WinConditionTracker) Check(players []*Player, pileSize int) (string, bool) {
	if pileSize != 0 {
		return "", false
	}
	for _, p := range players {
		if len(p.Hand) == w.TotalCards {
			return p.ID, true
		}
	}
	return "", false
}

// Conserved reports whether hands plus pile still account for every card
func (w WinConditionTracker) Conserved(players []*Player, pileSize int) bool {
	sum := pileSize
	for _, p := range players {
		sum += len(p.Hand)
	}
	return sum == w.TotalCards
}
