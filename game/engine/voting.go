package engine

import "time"

// Vote is one player's ballot
type Vote struct {
	PlayerID string `json:"playerId"`
	Vote     bool   `json:"vote"`
}

// VoteState exists only while a referendum is open
type VoteState struct {
	Topic     string    `json:"topic"`
	StartedBy string    `json:"startedBy"`
	Votes     []Vote    `json:"votes"`
	StartTime time.Time `json:"startTime"`
}

// VoteResult is the tally broadcast when a vote resolves
type VoteResult struct {
	Topic  string `json:"topic"`
	Yes    int    `json:"yes"`
	No     int    `json:"no"`
	Passed bool   `json:"passed"`
}

// VotingSystem runs at most one referendum at a time
type VotingSystem struct {
	current *VoteState
}

// Active returns the open vote, or nil
func (v *VotingSystem) Active() *VoteState {
	return v.current
}

// Snapshot returns a copy of the open vote, or nil
func (v *VotingSystem) Snapshot() *VoteState {
	if v.current == nil {
		return nil
	}
	cp := *v.current
	cp.Votes = append([]Vote(nil), v.current.Votes...)
	return &cp
}

// Start opens a vote on topic
func (v *VotingSystem) Start(topic, startedBy string, now time.Time) error {
	if v.current != nil {
		return ErrVoteActive
	}
	v.current = &VoteState{Topic: topic, StartedBy: startedBy, StartTime: now, Votes: []Vote{}}
	return nil
}

// Submit records a ballot and resolves the vote once every eligible player has voted
func (v *VotingSystem) Submit(playerID string, vote bool, eligible []string) (*VoteResult, error) {
	if v.current == nil {
		return nil, ErrNoVote
	}
	for _, cast := range v.current.Votes {
		if cast.PlayerID == playerID {
			return nil, ErrAlreadyVoted
		}
	}
	v.current.Votes = append(v.current.Votes, Vote{PlayerID: playerID, Vote: vote})
	return v.Resolve(eligible), nil
}

// Resolve returns the tally and clears the vote if every eligible player has voted.
// It returns nil while ballots are outstanding.
func (v *VotingSystem) Resolve(eligible []string) *VoteResult {
	if v.current == nil {
		return nil
	}
	cast := make(map[string]bool, len(v.current.Votes))
	for _, b := range v.current.Votes {
		cast[b.PlayerID] = b.Vote
	}
	for _, id := range eligible {
		if _, ok := cast[id]; !ok {
			return nil
		}
	}

	result := &VoteResult{Topic: v.current.Topic}
	for _, id := range eligible {
		if cast[id] {
			result.Yes++
		} else {
			result.No++
		}
	}
	result.Passed = result.Yes > result.No
	v.current = nil
	return result
}

// Clear abandons the open vote
func (v *VotingSystem) Clear() {
	v.current = nil
}
