// internal/game/errors.go
package game

import (
	"errors"
	"fmt"
)

// Kind groups rejection codes by how the caller should react.
type Kind int

const (
	// KindPreconditionViolation is a wrong-turn or wrong-phase action. The action is rejected
	// and the actor's state is re-sent.
	KindPreconditionViolation Kind = iota + 1
	// KindInvalidCombination is a commit or finish that failed server-side validation.
	KindInvalidCombination
	// KindStockExhausted signals an empty stock. It ends the match under the lifecycle policy.
	KindStockExhausted
	// KindConstructionInvariantFailure aborts match setup.
	KindConstructionInvariantFailure
)

func (k Kind) String() string {
	switch k {
	case KindPreconditionViolation:
		return "precondition_violation"
	case KindInvalidCombination:
		return "invalid_combination"
	case KindStockExhausted:
		return "stock_exhausted"
	case KindConstructionInvariantFailure:
		return "construction_invariant_failure"
	default:
		return "unknown"
	}
}

// Error is a rejected action. Two Errors match under errors.Is when their codes are equal,
// so the sentinels below can be compared against errors carrying a more specific message.
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrNotYourTurn        = &Error{KindPreconditionViolation, "not_your_turn", "it is not your turn"}
	ErrNoDrawRight        = &Error{KindPreconditionViolation, "no_draw_right", "you have already drawn this turn"}
	ErrDiscardUnavailable = &Error{KindPreconditionViolation, "discard_unavailable", "no unclaimed discard to take"}
	ErrMustDrawFirst      = &Error{KindPreconditionViolation, "must_draw_first", "you must draw before discarding"}
	ErrTileNotInHand      = &Error{KindPreconditionViolation, "tile_not_in_hand", "tile is not on your rack"}
	ErrUnknownPlayer      = &Error{KindPreconditionViolation, "unknown_player", "player is not seated in this match"}
	ErrMatchOver          = &Error{KindPreconditionViolation, "match_over", "the match has ended"}
	ErrInvalidLayout      = &Error{KindPreconditionViolation, "invalid_layout", "layout is not a rearrangement of your rack"}
	ErrBadAction          = &Error{KindPreconditionViolation, "bad_action", "action could not be understood"}

	ErrInvalidCombination = &Error{KindInvalidCombination, "invalid_combination", "combination is not a valid run or set"}
	ErrCombinationOverlap = &Error{KindInvalidCombination, "combination_overlap", "combinations share a rack slot"}
	ErrBelowThreshold     = &Error{KindInvalidCombination, "below_threshold", "combinations do not reach the opening threshold"}
	ErrMustKeepTile       = &Error{KindInvalidCombination, "must_keep_tile", "at least one tile must stay on the rack"}
	ErrHandNotComplete    = &Error{KindInvalidCombination, "hand_not_complete", "remaining tiles are not fully combined"}

	ErrStockEmpty = &Error{KindStockExhausted, "stock_empty", "the stock is empty"}

	ErrDeckConstruction = &Error{KindConstructionInvariantFailure, "deck_construction", "deck construction failed"}
)

// reject copies a sentinel with a more specific message.
func reject(base *Error, format string, args ...interface{}) *Error {
	return &Error{Kind: base.Kind, Code: base.Code, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, or 0 when err is not a game Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// CodeOf returns the rejection code of err, or "" when err is not a game Error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
