package table

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/peterkuimelis/cardrules/internal/game"
	"github.com/peterkuimelis/cardrules/internal/notify"
	"github.com/peterkuimelis/cardrules/internal/storage"
)

// Options configures a Manager. Every field is optional.
type Options struct {
	Store           Store
	Publisher       notify.Publisher
	DecisionTimeout time.Duration // zero disables default answers
	Logger          logrus.FieldLogger
	// Seed fixes the shuffle of new games (0 for random).
	Seed int64
}

// CreateRequest describes a new game.
type CreateRequest struct {
	RuleSetID string   `json:"rule_set_id"`
	Players   []string `json:"players"`
	GameID    string   `json:"game_id,omitempty"` // generated when empty
	// AI lists the players the table plays itself.
	AI []string `json:"ai,omitempty"`
}

// Summary is a short description of a live game.
type Summary struct {
	GameID          string   `json:"game_id"`
	RuleSetID       string   `json:"rule_set_id"`
	Players         []string `json:"players"`
	CurrentPlayerID string   `json:"current_player_id"`
	Round           int      `json:"round"`
	GameOver        bool     `json:"game_over"`
	WinnerID        string   `json:"winner_id,omitempty"`
}

// Manager owns all live tables and the lobbies still gathering players.
type Manager struct {
	mu      sync.RWMutex
	tables  map[string]*Table
	lobbies map[string]*lobby
	rules   *game.Registry
	opts    Options
	log     logrus.FieldLogger
}

// NewManager creates a manager resolving rule sets from rules first and the
// store second.
func NewManager(rules *game.Registry, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{
		tables:  make(map[string]*Table),
		lobbies: make(map[string]*lobby),
		rules:   rules,
		opts:    opts,
		log:     logger,
	}
}

func (m *Manager) config() tableConfig {
	return tableConfig{
		store:   m.opts.Store,
		pub:     m.opts.Publisher,
		timeout: m.opts.DecisionTimeout,
		seed:    m.opts.Seed,
		log:     m.log,
	}
}

// RuleSet resolves a rule set id.
func (m *Manager) RuleSet(ctx context.Context, id string) (*game.RuleSet, error) {
	rs, err := m.rules.Get(id)
	if err == nil || m.opts.Store == nil {
		return rs, err
	}
	rs, serr := m.opts.Store.LoadRuleSet(ctx, id)
	if serr != nil {
		if errors.Is(serr, storage.ErrNotFound) {
			return nil, err
		}
		return nil, serr
	}
	return rs, nil
}

// Create deals a new game, saves it and starts hosting it.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Table, error) {
	rs, err := m.RuleSet(ctx, req.RuleSetID)
	if err != nil {
		return nil, err
	}
	id := req.GameID
	if id == "" {
		id = uuid.NewString()
	}
	if m.taken(id) {
		return nil, fmt.Errorf("%s: %w", id, ErrGameExists)
	}

	cfg := m.config()
	eng, events := newEngine(rs, cfg.seed)
	gs, err := eng.NewGame(id, req.Players)
	if err != nil {
		return nil, game.NewRuleError(game.ErrInvalidPlay, "%v", err)
	}
	for _, p := range req.AI {
		ps := gs.Player(p)
		if ps == nil {
			return nil, game.NewRuleError(game.ErrInvalidPlay, "ai seat %q is not one of the players", p)
		}
		ps.AI = true
	}
	t := newTable(rs, gs, events, eng, cfg)
	batch := t.takeEvents()
	if cfg.store != nil {
		if err := cfg.store.SaveGame(ctx, gs, batch); err != nil {
			return nil, fmt.Errorf("save new game: %w", err)
		}
	}

	m.mu.Lock()
	_, live := m.tables[id]
	_, waiting := m.lobbies[id]
	if live || waiting {
		m.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", id, ErrGameExists)
	}
	m.tables[id] = t
	m.mu.Unlock()

	t.log.WithFields(logrus.Fields{"players": req.Players, "ai": req.AI}).Info("game created")
	t.pubMu.Lock()
	t.publish(ctx, batch)
	t.pubMu.Unlock()
	t.driveBots(context.WithoutCancel(ctx))
	return t, nil
}

// taken reports whether a game or lobby already uses id.
func (m *Manager) taken(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, live := m.tables[id]
	_, waiting := m.lobbies[id]
	return live || waiting
}

// Get returns a live table, restoring it from the store when it is not in
// memory.
func (m *Manager) Get(ctx context.Context, id string) (*Table, error) {
	m.mu.RLock()
	t, ok := m.tables[id]
	m.mu.RUnlock()
	if ok {
		return t, nil
	}
	if m.opts.Store == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrGameNotFound)
	}
	gs, err := m.opts.Store.LoadGameState(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", id, ErrGameNotFound)
	}
	if err != nil {
		return nil, err
	}
	return m.adopt(ctx, gs)
}

// adopt hosts a loaded state. If another caller adopted the same game first,
// that table wins.
func (m *Manager) adopt(ctx context.Context, gs *game.GameState) (*Table, error) {
	rs, err := m.RuleSet(ctx, gs.RuleSetID)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", gs.GameID, err)
	}
	cfg := m.config()
	eng, events := newEngine(rs, 0)
	t := newTable(rs, gs, events, eng, cfg)

	m.mu.Lock()
	if existing, ok := m.tables[gs.GameID]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.tables[gs.GameID] = t
	m.mu.Unlock()

	t.mu.Lock()
	t.armTimerLocked()
	t.mu.Unlock()
	t.log.WithField("version", gs.Version).Info("game restored")
	t.driveBots(context.WithoutCancel(ctx))
	return t, nil
}

// Restore loads every unfinished game from the store. Games that cannot be
// restored are logged and skipped.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.opts.Store == nil {
		return 0, nil
	}
	rows, err := m.opts.Store.ListGames(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("list games: %w", err)
	}
	n := 0
	for _, row := range rows {
		if _, err := m.Get(ctx, row.GameID); err != nil {
			m.log.WithError(err).WithField("game_id", row.GameID).Warn("skipping game")
			continue
		}
		n++
	}
	return n, nil
}

// List summarizes the live games ordered by id.
func (m *Manager) List() []Summary {
	m.mu.RLock()
	tables := make([]*Table, 0, len(m.tables))
	for _, t := range m.tables {
		tables = append(tables, t)
	}
	m.mu.RUnlock()

	out := make([]Summary, 0, len(tables))
	for _, t := range tables {
		t.mu.Lock()
		gs := t.state
		out = append(out, Summary{
			GameID:          gs.GameID,
			RuleSetID:       gs.RuleSetID,
			Players:         append([]string(nil), gs.Seats...),
			CurrentPlayerID: gs.CurrentPlayerID,
			Round:           gs.Round,
			GameOver:        gs.GameOver,
			WinnerID:        gs.WinnerID,
		})
		t.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out
}

// Abandon ends a game without a winner.
func (m *Manager) Abandon(ctx context.Context, id, reason string) (game.Outcome, error) {
	t, err := m.Get(ctx, id)
	if err != nil {
		return game.Outcome{}, err
	}
	return t.Abandon(ctx, reason)
}

// Remove stops hosting a game. The stored state is left alone.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	t, ok := m.tables[id]
	delete(m.tables, id)
	m.mu.Unlock()
	if ok {
		t.close()
		m.log.WithField("game_id", id).Info("game removed")
	}
}

// CleanupLoop periodically drops finished games idle for longer than maxIdle
// until ctx is done.
func (m *Manager) CleanupLoop(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cleanup(maxIdle)
		}
	}
}

func (m *Manager) cleanup(maxIdle time.Duration) int {
	m.mu.RLock()
	var stale []string
	for id, t := range m.tables {
		active, over := t.idleSince()
		if over && time.Since(active) > maxIdle {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()
	for _, id := range stale {
		m.Remove(id)
	}
	return len(stale)
}

// Close stops every table.
func (m *Manager) Close() {
	m.mu.Lock()
	tables := m.tables
	m.tables = make(map[string]*Table)
	m.mu.Unlock()
	for _, t := range tables {
		t.close()
	}
}

// RuleSets lists the registered rule sets ordered by id.
func (m *Manager) RuleSets() []*game.RuleSet {
	return m.rules.List()
}

// Register adds a rule set to the registry new games resolve from.
func (m *Manager) Register(rs *game.RuleSet) error {
	return m.rules.Register(rs)
}
