package log

import "fmt"

// EventType enumerates all observable game events.
type EventType int

const (
	EventGameStarted EventType = iota
	EventCardPlayed
	EventCardDrawn
	EventTurnChanged
	EventGameEnded
	EventOneCardAnnounced
	EventEffectApplied
	EventChainOpened
	EventChainCountered
	EventChainResolved
	EventPenaltyApplied
	EventDeckReshuffled
	EventDecisionRequired
	EventDecisionResolved
	EventRoundStarted
	EventGameAbandoned
)

// String returns the wire name of the event.
func (e EventType) String() string {
	switch e {
	case EventGameStarted:
		return "game_started"
	case EventCardPlayed:
		return "card_played"
	case EventCardDrawn:
		return "card_drawn"
	case EventTurnChanged:
		return "turn_changed"
	case EventGameEnded:
		return "game_ended"
	case EventOneCardAnnounced:
		return "one_card_announced"
	case EventEffectApplied:
		return "effect_applied"
	case EventChainOpened:
		return "chain_opened"
	case EventChainCountered:
		return "chain_countered"
	case EventChainResolved:
		return "chain_resolved"
	case EventPenaltyApplied:
		return "penalty_applied"
	case EventDeckReshuffled:
		return "deck_reshuffled"
	case EventDecisionRequired:
		return "decision_required"
	case EventDecisionResolved:
		return "decision_resolved"
	case EventRoundStarted:
		return "round_started"
	case EventGameAbandoned:
		return "game_abandoned"
	default:
		return "unknown"
	}
}

func (e EventType) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *EventType) UnmarshalText(b []byte) error {
	for v := EventGameStarted; v <= EventGameAbandoned; v++ {
		if v.String() == string(b) {
			*e = v
			return nil
		}
	}
	return fmt.Errorf("unknown event type %q", b)
}

// GameEvent represents a single observable event in a game.
type GameEvent struct {
	Seq     int            `json:"seq"`               // monotonic sequence number
	GameID  string         `json:"game_id,omitempty"` // filled in by the table that owns the game
	Round   int            `json:"round"`
	Turn    int            `json:"turn"`
	Phase   string         `json:"phase"`
	Player  string         `json:"player_id,omitempty"` // acting player
	Type    EventType      `json:"type"`
	Card    string         `json:"card,omitempty"`
	Details string         `json:"details"` // human-readable detail string
	Payload map[string]any `json:"payload,omitempty"`
}
