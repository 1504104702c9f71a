package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peterkuimelis/cardrules/internal/game"
	"github.com/peterkuimelis/cardrules/internal/log"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestGame(t *testing.T, id string) *game.GameState {
	t.Helper()
	rs, err := game.UnoRuleSet(game.PresetOptions{})
	require.NoError(t, err)
	eng := game.NewEngine(rs, game.EngineConfig{Seed: 3})
	gs, err := eng.NewGame(id, []string{"P1", "P2", "P3"})
	require.NoError(t, err)
	return gs
}

func TestRuleSetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rs, err := game.IdiotRuleSet(game.PresetOptions{})
	require.NoError(t, err)

	require.NoError(t, s.SaveRuleSet(ctx, rs))
	got, err := s.LoadRuleSet(ctx, "idiot")
	require.NoError(t, err)
	assert.Equal(t, rs, got)

	rs.Description = "changed"
	require.NoError(t, s.SaveRuleSet(ctx, rs))
	got, err = s.LoadRuleSet(ctx, "idiot")
	require.NoError(t, err)
	assert.Equal(t, "changed", got.Description)

	rows, err := s.ListRuleSets(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "idiot", rows[0].Variant)
	assert.False(t, rows[0].UpdatedAt.IsZero())
}

func TestLoadRuleSetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadRuleSet(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, game.ErrRuleSetNotFound, game.KindOf(err))
}

func TestDeleteRuleSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rs, err := game.UnoRuleSet(game.PresetOptions{})
	require.NoError(t, err)
	require.NoError(t, s.SaveRuleSet(ctx, rs))
	require.NoError(t, s.DeleteRuleSet(ctx, "uno"))
	_, err = s.LoadRuleSet(ctx, "uno")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGameStateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gs := newTestGame(t, "g1")

	require.NoError(t, s.SaveGameState(ctx, gs))
	assert.Equal(t, int64(1), gs.Version)

	got, err := s.LoadGameState(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, gs.Version, got.Version)
	assert.Equal(t, gs.Seats, got.Seats)
	assert.Equal(t, gs.DrawPile, got.DrawPile)
	assert.Equal(t, gs.DiscardPile, got.DiscardPile)
	assert.Equal(t, gs.Players["P2"].Hand, got.Players["P2"].Hand)
	assert.Equal(t, gs.CurrentPlayerID, got.CurrentPlayerID)
	assert.Equal(t, gs.Direction, got.Direction)
	assert.Equal(t, gs.Phase, got.Phase)
}

func TestSaveGameStateVersionConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gs := newTestGame(t, "g1")
	require.NoError(t, s.SaveGameState(ctx, gs))

	a, err := s.LoadGameState(ctx, "g1")
	require.NoError(t, err)
	b, err := s.LoadGameState(ctx, "g1")
	require.NoError(t, err)

	require.NoError(t, s.SaveGameState(ctx, a))
	assert.Equal(t, int64(2), a.Version)

	err = s.SaveGameState(ctx, b)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, int64(1), b.Version, "a rejected save must not bump the version")

	fresh := newTestGame(t, "g1")
	assert.ErrorIs(t, s.SaveGameState(ctx, fresh), ErrVersionConflict, "version 0 must not overwrite a stored game")
}

func TestSaveGameAppendsEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gs := newTestGame(t, "g1")
	started := log.GameEvent{Round: 1, Turn: 1, Type: log.EventGameStarted, Details: "Game started"}
	require.NoError(t, s.SaveGame(ctx, gs, []log.GameEvent{started}))

	stale, err := s.LoadGameState(ctx, "g1")
	require.NoError(t, err)
	drawn := log.GameEvent{Round: 1, Turn: 1, Player: "P1", Type: log.EventCardDrawn, Details: "P1 drew"}
	require.NoError(t, s.SaveGame(ctx, gs, []log.GameEvent{drawn}))

	lost := log.GameEvent{Round: 1, Turn: 2, Player: "P2", Type: log.EventCardDrawn}
	assert.ErrorIs(t, s.SaveGame(ctx, stale, []log.GameEvent{lost}), ErrVersionConflict)

	events, err := s.LoadEvents(ctx, "g1", 0)
	require.NoError(t, err)
	require.Len(t, events, 2, "a conflicting save must not append its events")
	assert.Equal(t, log.EventGameStarted, events[0].Type)
	assert.Equal(t, "P1", events[1].Player)
	assert.Less(t, events[0].Seq, events[1].Seq)

	rest, err := s.LoadEvents(ctx, "g1", int64(events[0].Seq))
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, log.EventCardDrawn, rest[0].Type)

	none, err := s.LoadEvents(ctx, "other", 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, s.DeleteGameState(ctx, "g1"))
	events, err = s.LoadEvents(ctx, "g1", 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestListGames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	live := newTestGame(t, "live")
	done := newTestGame(t, "done")
	done.GameOver = true
	require.NoError(t, s.SaveGameState(ctx, live))
	require.NoError(t, s.SaveGameState(ctx, done))

	all, err := s.ListGames(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := s.ListGames(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "live", active[0].GameID)
	assert.Equal(t, "uno", active[0].RuleSetID)
}

func TestDeleteGameState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveGameState(ctx, newTestGame(t, "g1")))
	require.NoError(t, s.DeleteGameState(ctx, "g1"))
	_, err := s.LoadGameState(ctx, "g1")
	assert.ErrorIs(t, err, ErrNotFound)
}
