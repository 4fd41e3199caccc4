package game

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind classifies engine failures. Every error returned by an engine
// operation maps to exactly one kind; the host surfaces the kind plus any
// embedded diagnostic.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthorization
	KindState
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is a classified engine failure.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

var (
	ErrNotAuthorized               = &Error{KindAuthorization, "not authorized"}
	ErrNotActive                   = &Error{KindState, "game is not active"}
	ErrAlreadyEnded                = &Error{KindState, "game has already ended"}
	ErrNoWinners                   = &Error{KindState, "no eligible winners"}
	ErrGameExists                  = &Error{KindState, "game already instantiated"}
	ErrGameNotFound                = &Error{KindState, "game not found"}
	ErrInvalidTicketCount          = &Error{KindValidation, "ticket count must be at least 1"}
	ErrExceededMaxTicketsPerPlayer = &Error{KindValidation, "exceeded max tickets per player"}
	ErrInsufficientFunds           = &Error{KindValidation, "insufficient funds attached"}
	ErrExcessFunds                 = &Error{KindValidation, "excess funds attached"}
)

// UnderFundingThresholdError carries the configured threshold so callers
// can see how far sales fell short.
type UnderFundingThresholdError struct {
	Threshold decimal.Decimal
}

func (e *UnderFundingThresholdError) Error() string {
	return fmt.Sprintf("total sales below funding threshold %s", e.Threshold)
}

// InvalidSeedError reports seed text that does not decode to a 32-byte
// digest. This is fatal: it means the stored game record is corrupt.
type InvalidSeedError struct {
	Seed string
}

func (e *InvalidSeedError) Error() string {
	return fmt.Sprintf("invalid seed %q", e.Seed)
}

// KindOf classifies any error returned by the engine.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var uft *UnderFundingThresholdError
	if errors.As(err, &uft) {
		return KindValidation
	}
	var is *InvalidSeedError
	if errors.As(err, &is) {
		return KindValidation
	}
	return KindUnknown
}
