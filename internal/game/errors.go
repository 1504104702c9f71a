package game

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a rejected action.
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	ErrNotYourTurn
	ErrCardNotInHand
	ErrInvalidPlay
	ErrInvalidCounter
	ErrRuleSetNotFound
	ErrGameNotActive
	ErrDecisionPending
	ErrInvalidDecision
	ErrInvalidRuleSet
	// ErrInternal marks a failure that is not the player's fault, such as a
	// decision provider error.
	ErrInternal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNotYourTurn:
		return "NotYourTurn"
	case ErrCardNotInHand:
		return "CardNotInHand"
	case ErrInvalidPlay:
		return "InvalidPlay"
	case ErrInvalidCounter:
		return "InvalidCounter"
	case ErrRuleSetNotFound:
		return "RuleSetNotFound"
	case ErrGameNotActive:
		return "GameNotActive"
	case ErrDecisionPending:
		return "DecisionPending"
	case ErrInvalidDecision:
		return "InvalidDecision"
	case ErrInvalidRuleSet:
		return "InvalidRuleSet"
	case ErrInternal:
		return "Internal"
	default:
		return ""
	}
}

func (k ErrorKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *ErrorKind) UnmarshalText(b []byte) error {
	for v := ErrNone; v <= ErrInternal; v++ {
		if v.String() == string(b) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", b)
}

// RuleError is a rule violation reported back to the caller.
type RuleError struct {
	Kind    ErrorKind
	Message string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func ruleErr(kind ErrorKind, format string, args ...any) *RuleError {
	return &RuleError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewRuleError builds a RuleError for callers outside the engine.
func NewRuleError(kind ErrorKind, format string, args ...any) error {
	return ruleErr(kind, format, args...)
}

// KindOf returns the ErrorKind carried by err, or ErrNone.
func KindOf(err error) ErrorKind {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ErrNone
}

// ErrDecisionRequired is returned by a DecisionProvider that has no answer
// yet. The engine turns it into a suspended play.
var ErrDecisionRequired = errors.New("decision required")
