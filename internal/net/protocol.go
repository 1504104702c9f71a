package net

import (
	"context"
	"fmt"

	"github.com/peterkuimelis/cardrules/internal/game"
	"github.com/peterkuimelis/cardrules/internal/log"
	"github.com/peterkuimelis/cardrules/internal/table"
)

// Message types for the JSON protocol over websocket.

// --- Client → Server messages ---

// Client actions.
const (
	ActionPlay     = "play"
	ActionDraw     = "draw"
	ActionPass     = "pass"
	ActionAnnounce = "announce"
	ActionDecide   = "decide"
	ActionState    = "state"
)

// ClientMessage is the envelope for all client-to-server messages. The
// player is fixed by the connection.
type ClientMessage struct {
	Action string `json:"action"`

	// For "play"
	CardID   int  `json:"card_id,omitempty"`
	Announce bool `json:"announce,omitempty"`

	// For "play" (answers supplied up front) and "decide"
	Answer game.Answer `json:"answer,omitzero"`
}

// --- Server → Client messages ---

// Server message types.
const (
	TypeState   = "state"
	TypeOutcome = "outcome"
	TypeEvent   = "event"
	TypeError   = "error"
)

// ServerMessage is the envelope for all server-to-client messages.
type ServerMessage struct {
	Type string `json:"type"`

	// For "state"
	State *game.StateView `json:"state,omitempty"`

	// For "outcome"
	Outcome *game.Outcome `json:"outcome,omitempty"`

	// For "event"
	Event *log.GameEvent `json:"event,omitempty"`

	// For "error"
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error,omitempty"`
}

// StateMessage wraps a view.
func StateMessage(v game.StateView) ServerMessage {
	return ServerMessage{Type: TypeState, State: &v}
}

// OutcomeMessage wraps an outcome. Rejections also carry the error kind.
func OutcomeMessage(o game.Outcome) ServerMessage {
	msg := ServerMessage{Type: TypeOutcome, Outcome: &o}
	if !o.Success {
		msg.Kind = o.Kind.String()
		msg.Error = o.Message
	}
	return msg
}

// EventMessage wraps one game event.
func EventMessage(ev log.GameEvent) ServerMessage {
	return ServerMessage{Type: TypeEvent, Event: &ev}
}

// ErrorMessage reports a failure outside the game rules.
func ErrorMessage(err error) ServerMessage {
	msg := ServerMessage{Type: TypeError, Error: err.Error()}
	if k := game.KindOf(err); k != game.ErrNone {
		msg.Kind = k.String()
	}
	return msg
}

// Apply runs one client action against a table on behalf of playerID. The
// "state" action changes nothing and returns a zero Outcome.
func Apply(ctx context.Context, t *table.Table, playerID string, msg ClientMessage) (game.Outcome, error) {
	switch msg.Action {
	case ActionPlay:
		return t.Play(ctx, game.PlayRequest{
			PlayerID: playerID,
			CardID:   msg.CardID,
			Announce: msg.Announce,
			Answers:  msg.Answer,
		})
	case ActionDraw:
		return t.Draw(ctx, playerID)
	case ActionPass:
		return t.Pass(ctx, playerID)
	case ActionAnnounce:
		return t.Announce(ctx, playerID)
	case ActionDecide:
		return t.Decide(ctx, playerID, msg.Answer)
	case ActionState:
		return game.Outcome{}, nil
	default:
		return game.Outcome{}, fmt.Errorf("unknown action %q", msg.Action)
	}
}
