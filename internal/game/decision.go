package game

import (
	"context"
	"fmt"
	"slices"
	"strconv"
)

// DecisionRequest describes input the engine needs from one player before a
// play can finish.
type DecisionRequest struct {
	Kind     DecisionKind `json:"kind"`
	PlayerID string       `json:"player_id"`
	// Options are suits for choose_suit, option descriptions for
	// choose_counter_option, and candidate player ids for player_choice.
	Options []string `json:"options"`
	Prompt  string   `json:"prompt,omitempty"`
}

// Answer is a player's response. Only the field matching the request kind
// is read.
type Answer struct {
	Suit     string `json:"suit,omitempty"`
	Option   *int   `json:"option,omitempty"`
	PlayerID string `json:"target_player_id,omitempty"`
}

// OptionAnswer is a convenience for Answer{Option: &i}.
func OptionAnswer(i int) Answer {
	return Answer{Option: &i}
}

func (a Answer) has(kind DecisionKind) bool {
	switch kind {
	case DecisionChooseSuit:
		return a.Suit != ""
	case DecisionCounterOption:
		return a.Option != nil
	case DecisionPlayerChoice:
		return a.PlayerID != ""
	}
	return false
}

// merge fills the field for kind from other.
func (a Answer) merge(kind DecisionKind, other Answer) Answer {
	switch kind {
	case DecisionChooseSuit:
		a.Suit = other.Suit
	case DecisionCounterOption:
		a.Option = other.Option
	case DecisionPlayerChoice:
		a.PlayerID = other.PlayerID
	}
	return a
}

// Describe renders the answer for kind in event logs.
func (a Answer) Describe(kind DecisionKind) string {
	switch kind {
	case DecisionChooseSuit:
		return a.Suit
	case DecisionCounterOption:
		if a.Option == nil {
			return ""
		}
		return strconv.Itoa(*a.Option)
	default:
		return a.PlayerID
	}
}

// Check reports whether a answers the request.
func (r DecisionRequest) Check(a Answer) error {
	switch r.Kind {
	case DecisionChooseSuit:
		if !slices.Contains(r.Options, a.Suit) {
			return ruleErr(ErrInvalidDecision, "suit %q is not one of %v", a.Suit, r.Options)
		}
	case DecisionCounterOption:
		if a.Option == nil || *a.Option < 0 || *a.Option >= len(r.Options) {
			return ruleErr(ErrInvalidDecision, "counter option must be between 0 and %d", len(r.Options)-1)
		}
	case DecisionPlayerChoice:
		if !slices.Contains(r.Options, a.PlayerID) {
			return ruleErr(ErrInvalidDecision, "player %q is not a valid choice", a.PlayerID)
		}
	}
	return nil
}

// PlayRequest is one play_card call. Answers may be supplied up front;
// anything missing is asked of the engine's DecisionProvider.
type PlayRequest struct {
	PlayerID string `json:"player_id"`
	CardID   int    `json:"card_id"`
	Announce bool   `json:"announce,omitempty"`
	Answers  Answer `json:"answers"`
}

// DecisionProvider supplies answers at the engine's suspension points.
// Returning ErrDecisionRequired suspends the play until the answer arrives.
type DecisionProvider interface {
	Decide(ctx context.Context, gs *GameState, req DecisionRequest) (Answer, error)
}

// DecisionFunc adapts a function to DecisionProvider.
type DecisionFunc func(ctx context.Context, gs *GameState, req DecisionRequest) (Answer, error)

func (f DecisionFunc) Decide(ctx context.Context, gs *GameState, req DecisionRequest) (Answer, error) {
	return f(ctx, gs, req)
}

// Suspend never answers; every decision becomes a pending request.
type Suspend struct{}

func (Suspend) Decide(context.Context, *GameState, DecisionRequest) (Answer, error) {
	return Answer{}, ErrDecisionRequired
}

// DefaultDecider is the deterministic policy applied when a player does not
// answer in time:
//   - choose_suit: the suit the chooser holds most of, ties broken by the
//     configured suit order
//   - choose_counter_option: option 0
//   - player_choice: the first candidate
type DefaultDecider struct{}

func (DefaultDecider) Decide(_ context.Context, gs *GameState, req DecisionRequest) (Answer, error) {
	if len(req.Options) == 0 {
		return Answer{}, fmt.Errorf("decision %s has no options", req.Kind)
	}
	switch req.Kind {
	case DecisionChooseSuit:
		return Answer{Suit: mostHeldSuit(gs.Player(req.PlayerID), req.Options)}, nil
	case DecisionCounterOption:
		return OptionAnswer(0), nil
	default:
		return Answer{PlayerID: req.Options[0]}, nil
	}
}

func mostHeldSuit(ps *PlayerState, suits []string) string {
	best, bestN := suits[0], 0
	if ps == nil {
		return best
	}
	for _, s := range suits {
		n := 0
		for _, c := range ps.Hand {
			if c.Suit == s {
				n++
			}
		}
		if n > bestN {
			best, bestN = s, n
		}
	}
	return best
}

// RandomDecider picks uniformly among the options. Useful for simulations
// and fuzz-style tests with a seeded Rand.
type RandomDecider struct {
	Rand Rand
}

func (d RandomDecider) Decide(_ context.Context, _ *GameState, req DecisionRequest) (Answer, error) {
	if len(req.Options) == 0 {
		return Answer{}, fmt.Errorf("decision %s has no options", req.Kind)
	}
	i := d.Rand.Intn(len(req.Options))
	switch req.Kind {
	case DecisionChooseSuit:
		return Answer{Suit: req.Options[i]}, nil
	case DecisionCounterOption:
		return OptionAnswer(i), nil
	default:
		return Answer{PlayerID: req.Options[i]}, nil
	}
}
