package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/peterkuimelis/cardrules/internal/game"
	"github.com/peterkuimelis/cardrules/internal/log"
)

var (
	// ErrNotFound is returned when a rule set or game state does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when a game state was saved by someone
	// else since it was loaded.
	ErrVersionConflict = errors.New("version conflict")
)

// RuleSetRow is a stored rule set without its definition.
type RuleSetRow struct {
	ID        string
	Name      string
	Variant   string
	UpdatedAt time.Time
}

// GameRow is a stored game state without its body.
type GameRow struct {
	GameID    string
	RuleSetID string
	Version   int64
	GameOver  bool
	UpdatedAt time.Time
}

// Store handles SQLite persistence of rule sets and game states.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection, so a ":memory:" database is the same across queries.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logrus.WithField("path", path).Debug("storage opened")
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS rule_sets (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			variant    TEXT NOT NULL,
			definition TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS game_states (
			game_id     TEXT PRIMARY KEY,
			rule_set_id TEXT NOT NULL,
			version     INTEGER NOT NULL,
			game_over   INTEGER NOT NULL DEFAULT 0,
			state_json  TEXT NOT NULL,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS game_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			game_id    TEXT NOT NULL,
			round      INTEGER NOT NULL,
			turn       INTEGER NOT NULL,
			type       TEXT NOT NULL,
			player_id  TEXT NOT NULL DEFAULT '',
			event_json TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS game_events_game ON game_events (game_id, id);
	`)
	return err
}

// --- Rule sets ---

// SaveRuleSet upserts a rule set definition.
func (s *Store) SaveRuleSet(ctx context.Context, rs *game.RuleSet) error {
	data, err := rs.JSON()
	if err != nil {
		return fmt.Errorf("encode rule set %s: %w", rs.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rule_sets (id, name, variant, definition, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, variant = excluded.variant,
			definition = excluded.definition, updated_at = excluded.updated_at
	`, rs.ID, rs.Name, rs.Variant.String(), string(data))
	if err != nil {
		return fmt.Errorf("save rule set %s: %w", rs.ID, err)
	}
	return nil
}

// LoadRuleSet reads and validates a stored rule set. A missing id yields an
// error matching both ErrNotFound and game.ErrRuleSetNotFound.
func (s *Store) LoadRuleSet(ctx context.Context, id string) (*game.RuleSet, error) {
	var def string
	err := s.db.QueryRowContext(ctx, "SELECT definition FROM rule_sets WHERE id = ?", id).Scan(&def)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, game.NewRuleError(game.ErrRuleSetNotFound, "rule set %q is not stored", id))
	}
	if err != nil {
		return nil, fmt.Errorf("load rule set %s: %w", id, err)
	}
	rs, err := game.ParseRuleSet([]byte(def), "json")
	if err != nil {
		return nil, fmt.Errorf("decode rule set %s: %w", id, err)
	}
	return rs, nil
}

// ListRuleSets returns every stored rule set ordered by id.
func (s *Store) ListRuleSets(ctx context.Context) ([]RuleSetRow, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, variant, updated_at FROM rule_sets ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []RuleSetRow
	for rows.Next() {
		var r RuleSetRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Variant, &r.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// DeleteRuleSet removes a stored rule set.
func (s *Store) DeleteRuleSet(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM rule_sets WHERE id = ?", id)
	return err
}

// --- Game states ---

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveGameState writes gs if the stored version still equals gs.Version,
// then bumps gs.Version. A state with version 0 must not exist yet.
func (s *Store) SaveGameState(ctx context.Context, gs *game.GameState) error {
	return s.SaveGame(ctx, gs, nil)
}

// SaveGame writes gs like SaveGameState and appends the events that produced
// it, in one transaction. On a version conflict nothing is written.
func (s *Store) SaveGame(ctx context.Context, gs *game.GameState, events []log.GameEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save game %s: %w", gs.GameID, err)
	}
	defer tx.Rollback()

	version, err := saveState(ctx, tx, gs)
	if err != nil {
		return err
	}
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event for game %s: %w", gs.GameID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO game_events (game_id, round, turn, type, player_id, event_json)
			VALUES (?, ?, ?, ?, ?, ?)
		`, gs.GameID, ev.Round, ev.Turn, ev.Type.String(), ev.Player, string(data))
		if err != nil {
			return fmt.Errorf("append events for game %s: %w", gs.GameID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save game %s: %w", gs.GameID, err)
	}
	gs.Version = version
	return nil
}

func saveState(ctx context.Context, db execer, gs *game.GameState) (int64, error) {
	next := *gs
	next.Version = gs.Version + 1
	data, err := json.Marshal(&next)
	if err != nil {
		return 0, fmt.Errorf("encode game %s: %w", gs.GameID, err)
	}

	var res sql.Result
	if gs.Version == 0 {
		res, err = db.ExecContext(ctx, `
			INSERT INTO game_states (game_id, rule_set_id, version, game_over, state_json, updated_at)
			VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(game_id) DO NOTHING
		`, gs.GameID, gs.RuleSetID, next.Version, gs.GameOver, string(data))
	} else {
		res, err = db.ExecContext(ctx, `
			UPDATE game_states SET version = ?, game_over = ?, state_json = ?, updated_at = CURRENT_TIMESTAMP
			WHERE game_id = ? AND version = ?
		`, next.Version, gs.GameOver, string(data), gs.GameID, gs.Version)
	}
	if err != nil {
		return 0, fmt.Errorf("save game %s: %w", gs.GameID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("save game %s: %w", gs.GameID, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("save game %s at version %d: %w", gs.GameID, gs.Version, ErrVersionConflict)
	}
	return next.Version, nil
}

// LoadEvents returns the stored history of a game, oldest first. afterID
// skips events already seen; each event's Seq is its stored id.
func (s *Store) LoadEvents(ctx context.Context, gameID string, afterID int64) ([]log.GameEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_json FROM game_events WHERE game_id = ? AND id > ? ORDER BY id
	`, gameID, afterID)
	if err != nil {
		return nil, fmt.Errorf("load events for game %s: %w", gameID, err)
	}
	defer rows.Close()
	result := []log.GameEvent{}
	for rows.Next() {
		var (
			id   int64
			data string
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		var ev log.GameEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", id, err)
		}
		ev.Seq = int(id)
		result = append(result, ev)
	}
	return result, rows.Err()
}

// LoadGameState reads a stored game.
func (s *Store) LoadGameState(ctx context.Context, gameID string) (*game.GameState, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT state_json FROM game_states WHERE game_id = ?", gameID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game %s: %w", gameID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", gameID, err)
	}
	var gs game.GameState
	if err := json.Unmarshal([]byte(data), &gs); err != nil {
		return nil, fmt.Errorf("decode game %s: %w", gameID, err)
	}
	return &gs, nil
}

// ListGames returns stored games, newest first. With activeOnly, finished
// games are skipped.
func (s *Store) ListGames(ctx context.Context, activeOnly bool) ([]GameRow, error) {
	q := "SELECT game_id, rule_set_id, version, game_over, updated_at FROM game_states"
	if activeOnly {
		q += " WHERE game_over = 0"
	}
	q += " ORDER BY updated_at DESC"
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []GameRow
	for rows.Next() {
		var r GameRow
		if err := rows.Scan(&r.GameID, &r.RuleSetID, &r.Version, &r.GameOver, &r.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// DeleteGameState removes a stored game and its history.
func (s *Store) DeleteGameState(ctx context.Context, gameID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM game_events WHERE game_id = ?", gameID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM game_states WHERE game_id = ?", gameID)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
