package game

import (
	"fmt"
	"strconv"
)

// --- Enums ---

// Phase is a step of the turn state machine.
type Phase int

const (
	PhaseAwaitingPlay Phase = iota
	PhaseValidating
	PhaseEffectApplication
	PhaseChainResolution
	PhaseWinEvaluation
	PhaseTurnAdvance
	PhaseAwaitingDecision
	PhaseGameOver
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingPlay:
		return "awaiting_play"
	case PhaseValidating:
		return "validating"
	case PhaseEffectApplication:
		return "effect_application"
	case PhaseChainResolution:
		return "chain_resolution"
	case PhaseWinEvaluation:
		return "win_evaluation"
	case PhaseTurnAdvance:
		return "turn_advance"
	case PhaseAwaitingDecision:
		return "awaiting_decision"
	case PhaseGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	for v := PhaseAwaitingPlay; v <= PhaseGameOver; v++ {
		if v.String() == string(b) {
			*p = v
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// Direction is the order of play around the table: +1 or -1 seats per step.
type Direction int

const (
	Clockwise        Direction = 1
	Counterclockwise Direction = -1
)

func (d Direction) String() string {
	if d == Counterclockwise {
		return "counterclockwise"
	}
	return "clockwise"
}

// Reversed returns the opposite direction.
func (d Direction) Reversed() Direction {
	if d == Counterclockwise {
		return Clockwise
	}
	return Counterclockwise
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(b []byte) error {
	switch string(b) {
	case "clockwise", "1", "+1":
		*d = Clockwise
	case "counterclockwise", "-1":
		*d = Counterclockwise
	default:
		return fmt.Errorf("initial_direction must be clockwise or counterclockwise, got %q", b)
	}
	return nil
}

// EffectKind names what a card action does when played.
type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectDrawCards
	EffectSkipTurn
	EffectReverseDirection
	EffectGiveCard
	EffectChooseSuit
	EffectRevealCardAndDraw
	EffectDrawAndSkip
	EffectPlayAgain
	EffectChooseNextPlayer
)

func (e EffectKind) String() string {
	switch e {
	case EffectDrawCards:
		return "draw_cards"
	case EffectSkipTurn:
		return "skip_turn"
	case EffectReverseDirection:
		return "reverse_direction"
	case EffectGiveCard:
		return "give_card"
	case EffectChooseSuit:
		return "choose_suit"
	case EffectRevealCardAndDraw:
		return "reveal_card_and_draw"
	case EffectDrawAndSkip:
		return "draw_and_skip"
	case EffectPlayAgain:
		return "play_again"
	case EffectChooseNextPlayer:
		return "choose_next_player"
	default:
		return "none"
	}
}

func (e EffectKind) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *EffectKind) UnmarshalText(b []byte) error {
	for v := EffectNone; v <= EffectChooseNextPlayer; v++ {
		if v.String() == string(b) {
			*e = v
			return nil
		}
	}
	return fmt.Errorf("unknown effect %q", b)
}

// TargetKind is a symbolic description of who an effect applies to.
type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetNextPlayer
	TargetPreviousPlayer
	TargetSecondNextPlayer
	TargetOppositePlayer
	TargetAll
	TargetAllOthers
	TargetSelf
	TargetPlayerChoice
)

func (t TargetKind) String() string {
	switch t {
	case TargetNextPlayer:
		return "next_player"
	case TargetPreviousPlayer:
		return "previous_player"
	case TargetSecondNextPlayer:
		return "second_next_player"
	case TargetOppositePlayer:
		return "opposite_player"
	case TargetAll:
		return "all"
	case TargetAllOthers:
		return "all_others"
	case TargetSelf:
		return "self"
	case TargetPlayerChoice:
		return "player_choice"
	default:
		return "none"
	}
}

func (t TargetKind) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TargetKind) UnmarshalText(b []byte) error {
	for v := TargetNone; v <= TargetPlayerChoice; v++ {
		if v.String() == string(b) {
			*t = v
			return nil
		}
	}
	return fmt.Errorf("unknown target %q", b)
}

// CounterMove is the behavior of a counter option chosen during a chain.
type CounterMove int

const (
	CounterDrawCards CounterMove = iota
	CounterIncrease
	CounterTransfer
)

func (m CounterMove) String() string {
	switch m {
	case CounterIncrease:
		return "increase_amount"
	case CounterTransfer:
		return "transfer"
	default:
		return "draw_cards"
	}
}

func (m CounterMove) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *CounterMove) UnmarshalText(b []byte) error {
	for v := CounterDrawCards; v <= CounterTransfer; v++ {
		if v.String() == string(b) {
			*m = v
			return nil
		}
	}
	return fmt.Errorf("unknown counter option effect %q", b)
}

// WinConditionKind names a configured win or scoring rule.
type WinConditionKind int

const (
	WinEmptyHand WinConditionKind = iota
	WinSpecialLastCard
	WinEqualSumPenalty
)

func (w WinConditionKind) String() string {
	switch w {
	case WinSpecialLastCard:
		return "special_last_card"
	case WinEqualSumPenalty:
		return "equal_sum_penalty"
	default:
		return "empty_hand"
	}
}

func (w WinConditionKind) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

func (w *WinConditionKind) UnmarshalText(b []byte) error {
	for v := WinEmptyHand; v <= WinEqualSumPenalty; v++ {
		if v.String() == string(b) {
			*w = v
			return nil
		}
	}
	return fmt.Errorf("unknown win condition %q", b)
}

// GameVariant selects the strategy bundle a rule set runs with.
type GameVariant int

const (
	VariantBasic GameVariant = iota
	VariantIdiot
)

func (v GameVariant) String() string {
	if v == VariantIdiot {
		return "idiot"
	}
	return "basic"
}

func (v GameVariant) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *GameVariant) UnmarshalText(b []byte) error {
	switch string(b) {
	case "basic", "":
		*v = VariantBasic
	case "idiot":
		*v = VariantIdiot
	default:
		return fmt.Errorf("unknown variant %q", b)
	}
	return nil
}

// DecisionKind identifies which suspension point a decision request is for.
type DecisionKind int

const (
	DecisionChooseSuit DecisionKind = iota
	DecisionCounterOption
	DecisionPlayerChoice
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionCounterOption:
		return "choose_counter_option"
	case DecisionPlayerChoice:
		return "player_choice"
	default:
		return "choose_suit"
	}
}

func (k DecisionKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *DecisionKind) UnmarshalText(b []byte) error {
	for v := DecisionChooseSuit; v <= DecisionPlayerChoice; v++ {
		if v.String() == string(b) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown decision kind %q", b)
}

// --- Card ---

// SpecialSuit is the suit given to declared special cards.
const SpecialSuit = "special"

// Card is one physical card. Its identity never changes once built.
type Card struct {
	ID   int    `json:"id"`
	Suit string `json:"suit"`
	Rank string `json:"rank"`
}

// Key is the card-action lookup key "<suit>_<rank>".
func (c Card) Key() string {
	return c.Suit + "_" + c.Rank
}

func (c Card) String() string {
	return fmt.Sprintf("%s %s", c.Rank, c.Suit)
}

// IsSpecial reports whether the card came from a deck's special card list.
func (c Card) IsSpecial() bool {
	return c.Suit == SpecialSuit
}

// RankValue is the scoring value of a rank: numbers at face value,
// J=11, Q=12, K=13, A=14, anything else 10.
func RankValue(rank string) int {
	switch rank {
	case "J":
		return 11
	case "Q":
		return 12
	case "K":
		return 13
	case "A":
		return 14
	}
	if n, err := strconv.Atoi(rank); err == nil {
		return n
	}
	return 10
}
