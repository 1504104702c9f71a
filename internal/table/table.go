// Package table hosts live games. A Table owns one game's state and
// serializes every action on it; the Manager creates, finds and restores
// tables.
package table

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/peterkuimelis/cardrules/internal/game"
	"github.com/peterkuimelis/cardrules/internal/log"
	"github.com/peterkuimelis/cardrules/internal/notify"
	"github.com/peterkuimelis/cardrules/internal/storage"
)

// ErrGameNotFound is returned for an unknown game id.
var ErrGameNotFound = errors.New("game not found")

// ErrGameExists is returned when creating a game under a taken id.
var ErrGameExists = errors.New("game already exists")

// ErrClosed is returned by a table that was removed from its manager.
var ErrClosed = errors.New("table closed")

// maxBotMoves bounds how many AI moves one action may trigger.
const maxBotMoves = 2000

// Store is the persistence a table needs. *storage.Store implements it.
type Store interface {
	SaveGame(ctx context.Context, gs *game.GameState, events []log.GameEvent) error
	LoadEvents(ctx context.Context, gameID string, afterID int64) ([]log.GameEvent, error)
	LoadGameState(ctx context.Context, gameID string) (*game.GameState, error)
	ListGames(ctx context.Context, activeOnly bool) ([]storage.GameRow, error)
	LoadRuleSet(ctx context.Context, id string) (*game.RuleSet, error)
}

// Table is one live game. All methods are safe for concurrent use; actions
// on the same table run one at a time.
type Table struct {
	mu      sync.Mutex
	id      string
	rules   *game.RuleSet
	engine  *game.Engine
	events  *log.MemoryLogger
	state   *game.GameState
	lastSeq int
	active  time.Time
	closed  bool

	timeout  time.Duration
	timer    *time.Timer
	timerGen int

	store Store
	pub   notify.Publisher
	// pubMu keeps batches in commit order once mu is released.
	pubMu sync.Mutex
	log   logrus.FieldLogger
}

type tableConfig struct {
	store   Store
	pub     notify.Publisher
	timeout time.Duration
	seed    int64
	log     logrus.FieldLogger
}

func newTable(rules *game.RuleSet, gs *game.GameState, events *log.MemoryLogger, engine *game.Engine, cfg tableConfig) *Table {
	pub := cfg.pub
	if pub == nil {
		pub = notify.Nop{}
	}
	return &Table{
		id:      gs.GameID,
		rules:   rules,
		engine:  engine,
		events:  events,
		state:   gs,
		active:  time.Now(),
		timeout: cfg.timeout,
		store:   cfg.store,
		pub:     pub,
		log:     cfg.log.WithFields(logrus.Fields{"game_id": gs.GameID, "rule_set": rules.ID}),
	}
}

func newEngine(rules *game.RuleSet, seed int64) (*game.Engine, *log.MemoryLogger) {
	events := log.NewMemoryLogger()
	eng := game.NewEngine(rules, game.EngineConfig{
		Logger:  events,
		Decider: game.Suspend{},
		Seed:    seed,
	})
	return eng, events
}

// ID returns the game id.
func (t *Table) ID() string { return t.id }

// Rules returns the rule set the game runs under.
func (t *Table) Rules() *game.RuleSet { return t.rules }

// View serializes the game for one player. An empty id is a spectator.
func (t *Table) View(playerID string) game.StateView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return game.Serialize(t.state, t.rules, playerID)
}

// Snapshot returns a deep copy of the game state.
func (t *Table) Snapshot() *game.GameState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

// History returns the committed events of the game after the given sequence
// number, oldest first. With a store the history survives restarts.
func (t *Table) History(ctx context.Context, after int64) ([]log.GameEvent, error) {
	if t.store != nil {
		return t.store.LoadEvents(ctx, t.id, after)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]log.GameEvent{}, t.events.Since(int(after))...), nil
}

// Seated reports whether playerID has a seat in this game.
func (t *Table) Seated(playerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Player(playerID) != nil
}

// --- Actions ---

// Play plays a card. The returned error is an infrastructure failure; rule
// violations come back in the Outcome.
func (t *Table) Play(ctx context.Context, req game.PlayRequest) (game.Outcome, error) {
	return t.do(ctx, func(gs *game.GameState) game.Outcome {
		return t.engine.PlayCard(ctx, gs, req)
	})
}

// Draw draws for the current player, or pays an open chain.
func (t *Table) Draw(ctx context.Context, playerID string) (game.Outcome, error) {
	return t.do(ctx, func(gs *game.GameState) game.Outcome {
		return t.engine.Draw(ctx, gs, playerID)
	})
}

// Pass ends the current player's turn.
func (t *Table) Pass(ctx context.Context, playerID string) (game.Outcome, error) {
	return t.do(ctx, func(gs *game.GameState) game.Outcome {
		return t.engine.Pass(ctx, gs, playerID)
	})
}

// Announce records a one-card announcement.
func (t *Table) Announce(ctx context.Context, playerID string) (game.Outcome, error) {
	return t.do(ctx, func(gs *game.GameState) game.Outcome {
		return t.engine.AnnounceOneCard(gs, playerID)
	})
}

// Decide answers the pending decision.
func (t *Table) Decide(ctx context.Context, playerID string, a game.Answer) (game.Outcome, error) {
	return t.do(ctx, func(gs *game.GameState) game.Outcome {
		return t.engine.Resolve(ctx, gs, playerID, a)
	})
}

// Abandon ends the game without a winner.
func (t *Table) Abandon(ctx context.Context, reason string) (game.Outcome, error) {
	return t.do(ctx, func(gs *game.GameState) game.Outcome {
		return t.engine.Abandon(gs, reason)
	})
}

// NewRound deals the next round of a finished game.
func (t *Table) NewRound(ctx context.Context) (game.Outcome, error) {
	return t.do(ctx, func(gs *game.GameState) game.Outcome {
		next, err := t.engine.ResetForNewRound(gs)
		if err != nil {
			var re *game.RuleError
			if errors.As(err, &re) {
				return game.Outcome{Kind: re.Kind, Message: re.Message}
			}
			return game.Outcome{Kind: game.ErrInternal, Message: err.Error()}
		}
		*gs = *next
		return game.Outcome{Success: true, NextPlayerID: gs.CurrentPlayerID}
	})
}

// do runs one action, then lets any AI seats that are now due move.
func (t *Table) do(ctx context.Context, action func(gs *game.GameState) game.Outcome) (game.Outcome, error) {
	out, err := t.step(ctx, action)
	if err == nil && out.Success {
		t.driveBots(context.WithoutCancel(ctx))
	}
	return out, err
}

// step runs one action under the table lock, persists the result with its
// events, re-arms the decision timer and publishes the events in order.
func (t *Table) step(ctx context.Context, action func(gs *game.GameState) game.Outcome) (game.Outcome, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return game.Outcome{}, ErrClosed
	}
	out, batch, err := t.applyLocked(ctx, action)
	t.pubMu.Lock()
	t.mu.Unlock()
	defer t.pubMu.Unlock()
	if err != nil {
		return out, err
	}
	t.publish(ctx, batch)
	return out, nil
}

func (t *Table) applyLocked(ctx context.Context, action func(gs *game.GameState) game.Outcome) (game.Outcome, []log.GameEvent, error) {
	prev := t.state.Clone()
	out := action(t.state)
	if !out.Success {
		return out, nil, nil
	}
	batch := t.takeEvents()
	t.active = time.Now()
	if t.store != nil {
		if err := t.store.SaveGame(ctx, t.state, batch); err != nil {
			*t.state = *prev
			t.log.WithError(err).Warn("save failed, action rolled back")
			return game.Outcome{}, nil, fmt.Errorf("save game %s: %w", t.id, err)
		}
	}
	t.armTimerLocked()
	return out, batch, nil
}

// driveBots plays AI seats until a human is due or the game ends.
func (t *Table) driveBots(ctx context.Context) {
	for range maxBotMoves {
		t.mu.Lock()
		actor := t.state.Actor()
		ps := t.state.Player(actor)
		t.mu.Unlock()
		if ps == nil || !ps.AI {
			return
		}
		out, err := t.step(ctx, func(gs *game.GameState) game.Outcome {
			if gs.Actor() != actor {
				return game.Outcome{Kind: game.ErrNotYourTurn, Message: "turn moved on"}
			}
			return t.engine.AutoPlay(ctx, gs, actor)
		})
		entry := t.log.WithField("player_id", actor)
		switch {
		case errors.Is(err, ErrClosed):
			return
		case err != nil:
			entry.WithError(err).Error("ai move not saved")
			return
		case out.Kind == game.ErrNotYourTurn:
			continue
		case !out.Success:
			entry.WithField("kind", out.Kind.String()).Warn("ai move rejected: " + out.Message)
			return
		}
	}
	t.log.Warn("ai seats hit the move limit")
}

// takeEvents returns the events logged since the last call.
func (t *Table) takeEvents() []log.GameEvent {
	batch := t.events.Since(t.lastSeq)
	if n := len(batch); n > 0 {
		t.lastSeq = batch[n-1].Seq
	}
	return batch
}

func (t *Table) publish(ctx context.Context, batch []log.GameEvent) {
	if len(batch) == 0 {
		return
	}
	if err := t.pub.Publish(context.WithoutCancel(ctx), t.id, batch); err != nil {
		t.log.WithError(err).Warn("publish events")
	}
}

// --- Decision timeout ---

// armTimerLocked starts the default-answer timer when a decision is pending
// and stops it otherwise. Each arming gets a generation so a timer that
// fires after its decision was answered does nothing.
func (t *Table) armTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.timerGen++
	pd := t.state.Pending
	if pd == nil || t.state.GameOver || t.timeout <= 0 {
		return
	}
	gen := t.timerGen
	t.log.WithFields(logrus.Fields{
		"player_id": pd.Request.PlayerID,
		"decision":  pd.Request.Kind.String(),
	}).Debug("decision timer armed")
	t.timer = time.AfterFunc(t.timeout, func() { t.expire(gen) })
}

func (t *Table) expire(gen int) {
	ctx := context.Background()
	t.mu.Lock()
	if t.closed || gen != t.timerGen || t.state.Pending == nil {
		t.mu.Unlock()
		return
	}
	player := t.state.Pending.Request.PlayerID
	out, batch, err := t.applyLocked(ctx, func(gs *game.GameState) game.Outcome {
		return t.engine.ResolveDefault(ctx, gs)
	})
	t.pubMu.Lock()
	t.mu.Unlock()
	entry := t.log.WithField("player_id", player)
	switch {
	case err != nil:
		t.pubMu.Unlock()
		entry.WithError(err).Error("default decision not saved")
		return
	case !out.Success:
		t.pubMu.Unlock()
		entry.WithField("kind", out.Kind.String()).Warn("default decision rejected: " + out.Message)
		return
	}
	entry.Info("decision timed out, default applied")
	t.publish(ctx, batch)
	t.pubMu.Unlock()
	t.driveBots(ctx)
}

// close stops the timer and rejects further actions.
func (t *Table) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.timerGen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Table) idleSince() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active, t.state.GameOver
}
