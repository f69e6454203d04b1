package engine

import (
	"errors"
	"fmt"
)

// ActionError is a rejected action: a precondition failed and no state changed.
// Code is machine readable; Message is shown to the player.
type ActionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ActionError) Error() string {
	return e.Message
}

// Is matches any ActionError carrying the same code, so wrapped or re-worded
// rejections still compare equal to the sentinels below.
func (e *ActionError) Is(target error) bool {
	var other *ActionError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// WithMessage returns a copy of e with a more specific message
func (e *ActionError) WithMessage(format string, args ...any) *ActionError {
	return &ActionError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

func newActionError(code, message string) *ActionError {
	return &ActionError{Code: code, Message: message}
}

var (
	ErrWrongStatus      = newActionError("WRONG_STATUS", "action not allowed in the current game status")
	ErrNotYourTurn      = newActionError("NOT_YOUR_TURN", "it is not your turn")
	ErrSessionFull      = newActionError("SESSION_FULL", "session is full")
	ErrInvalidName      = newActionError("INVALID_NAME", "player name must not be empty")
	ErrDuplicateName    = newActionError("DUPLICATE_NAME", "player name already taken in this session")
	ErrNotInSession     = newActionError("NOT_IN_SESSION", "you are not a player in this session")
	ErrVoteActive       = newActionError("VOTE_ACTIVE", "a vote is already in progress")
	ErrNoVote           = newActionError("NO_VOTE", "no vote is in progress")
	ErrAlreadyVoted     = newActionError("ALREADY_VOTED", "you have already voted")
	ErrChallengePending = newActionError("CHALLENGE_PENDING", "the pile is waiting to be collected")
	ErrInvalidSettings  = newActionError("INVALID_SETTINGS", "invalid game settings")
	ErrMalformedPayload = newActionError("MALFORMED_PAYLOAD", "malformed payload")
	ErrUnknownEvent     = newActionError("UNKNOWN_EVENT", "unknown event")
	ErrSessionNotFound  = newActionError("SESSION_NOT_FOUND", "session not found")
	ErrAlreadyInSession = newActionError("ALREADY_IN_SESSION", "leave your current session first")
	ErrInternal         = newActionError("INTERNAL", "the session hit an internal error and was closed")
)

// CodeOf extracts the machine code of an ActionError, or ErrInternal's code for anything else
func CodeOf(err error) string {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ErrInternal.Code
}

// errInvariant marks an internal invariant violation, fatal to the session only
var errInvariant = errors.New("engine invariant violated")
