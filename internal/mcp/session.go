package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/peterkuimelis/cardrules/internal/game"
	"github.com/peterkuimelis/cardrules/internal/log"
	"github.com/peterkuimelis/cardrules/internal/table"
)

// ToolResponse is the JSON envelope returned by the game tools.
type ToolResponse struct {
	GameID   string          `json:"game_id,omitempty"`
	PlayerID string          `json:"player_id,omitempty"`
	Events   []log.GameEvent `json:"events"`
	Outcome  *game.Outcome   `json:"outcome,omitempty"`
	State    *game.StateView `json:"state,omitempty"`
	Pending  *PendingView    `json:"pending,omitempty"`
	GameOver bool            `json:"game_over"`
	WinnerID string          `json:"winner_id,omitempty"`
	JoinHint string          `json:"join_hint,omitempty"`
}

// PendingView says whose move the game is waiting on.
type PendingView struct {
	ForPlayer string                `json:"for_player"`
	Kind      string                `json:"kind"` // "turn" or a decision kind
	Decision  *game.DecisionRequest `json:"decision,omitempty"`
}

// Session is the seat one MCP client holds. It also receives the committed
// events of the seated game so each tool response can report what happened
// since the previous call.
type Session struct {
	games *table.Manager
	// joinURL is where humans connect to the same games, if anywhere.
	joinURL string

	mu       sync.Mutex
	gameID   string
	playerID string
	events   []log.GameEvent
	changed  chan struct{}
}

// NewSession creates an unseated session. joinURL is the websocket base URL
// humans use to join games hosted by this process; it may be empty.
func NewSession(joinURL string) *Session {
	return &Session{joinURL: joinURL, changed: make(chan struct{}, 1)}
}

// Attach sets the manager the session acts through. The manager's publisher
// should include the session.
func (s *Session) Attach(games *table.Manager) {
	s.games = games
}

// Publish implements notify.Publisher.
func (s *Session) Publish(_ context.Context, gameID string, events []log.GameEvent) error {
	s.mu.Lock()
	if gameID != s.gameID {
		s.mu.Unlock()
		return nil
	}
	s.events = append(s.events, events...)
	s.mu.Unlock()
	select {
	case s.changed <- struct{}{}:
	default:
	}
	return nil
}

// seat takes the given seat, dropping events from the previous game.
func (s *Session) seat(gameID, playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gameID, s.playerID = gameID, playerID
	s.events = nil
}

// drainEvents returns all accumulated events and clears the buffer.
func (s *Session) drainEvents() []log.GameEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events
	s.events = nil
	if events == nil {
		events = []log.GameEvent{}
	}
	return events
}

// current returns the seated table and player.
func (s *Session) current(ctx context.Context) (*table.Table, string, error) {
	s.mu.Lock()
	gameID, playerID := s.gameID, s.playerID
	s.mu.Unlock()
	if gameID == "" {
		return nil, "", errors.New("no game joined; use create_game or join_game first")
	}
	t, err := s.games.Get(ctx, gameID)
	if err != nil {
		return nil, "", err
	}
	return t, playerID, nil
}

// respond builds the response for the seated player after an action.
func (s *Session) respond(t *table.Table, playerID string, out *game.Outcome) *ToolResponse {
	view := t.View(playerID)
	resp := &ToolResponse{
		GameID:   t.ID(),
		PlayerID: playerID,
		Events:   s.drainEvents(),
		Outcome:  out,
		State:    &view,
		GameOver: view.GameOver,
		WinnerID: view.WinnerID,
	}
	switch {
	case view.GameOver:
	case view.Decision != nil:
		resp.Pending = &PendingView{ForPlayer: playerID, Kind: view.Decision.Kind.String(), Decision: view.Decision}
	case view.WaitingOn != "":
		resp.Pending = &PendingView{ForPlayer: view.WaitingOn, Kind: "decision"}
	default:
		resp.Pending = &PendingView{ForPlayer: view.CurrentPlayerID, Kind: "turn"}
	}
	return resp
}

// waitForTurn blocks until the seated player has something to do, the game
// ends, or the timeout passes.
func (s *Session) waitForTurn(ctx context.Context, timeout time.Duration) (*ToolResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		t, playerID, err := s.current(ctx)
		if err != nil {
			return nil, err
		}
		view := t.View(playerID)
		if view.GameOver || view.Decision != nil || (view.IsYourTurn && view.WaitingOn == "") {
			return s.respond(t, playerID, nil), nil
		}
		select {
		case <-s.changed:
		case <-ctx.Done():
			return s.respond(t, playerID, nil), nil
		}
	}
}

func (s *Session) hint(gameID, playerID string) string {
	if s.joinURL == "" {
		return ""
	}
	return fmt.Sprintf("cardrules-cli join -url %s -game %s -player %s", s.joinURL, gameID, playerID)
}

// respondJSON marshals a ToolResponse to a JSON string.
func respondJSON(resp any) string {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Sprintf(`{"error": "marshal error: %v"}`, err)
	}
	return string(data)
}
