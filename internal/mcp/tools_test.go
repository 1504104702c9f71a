package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peterkuimelis/cardrules/internal/game"
	"github.com/peterkuimelis/cardrules/internal/log"
	"github.com/peterkuimelis/cardrules/internal/table"
)

type handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func newSession(t *testing.T) (*Session, *table.Manager) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	sess := NewSession("ws://localhost:9999")
	mgr := table.NewManager(game.BuiltinRegistry(), table.Options{Publisher: sess, Logger: logger, Seed: 9})
	sess.Attach(mgr)
	t.Cleanup(mgr.Close)
	return sess, mgr
}

func call(t *testing.T, h handler, args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func decodeResponse(t *testing.T, text string) ToolResponse {
	t.Helper()
	var resp ToolResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	return resp
}

func TestRegisterTools(t *testing.T) {
	sess, _ := newSession(t)
	s := server.NewMCPServer("cardrules", "test")
	RegisterTools(s, sess)
	assert.Len(t, s.ListTools(), 10)
}

func TestListRuleSets(t *testing.T) {
	sess, _ := newSession(t)
	text, isErr := call(t, sess.handleListRuleSets, nil)
	require.False(t, isErr)
	assert.Contains(t, text, `"id":"uno"`)
	assert.Contains(t, text, `"id":"idiot"`)
}

func TestToolsNeedAGame(t *testing.T) {
	sess, _ := newSession(t)
	text, isErr := call(t, sess.handleGetState, nil)
	assert.True(t, isErr)
	assert.Contains(t, text, "create_game")

	_, isErr = call(t, sess.handleDrawCard, nil)
	assert.True(t, isErr)
}

func TestCreateGameAndPlay(t *testing.T) {
	sess, _ := newSession(t)
	text, isErr := call(t, sess.handleCreateGame, map[string]any{"rule_set_id": "uno", "players": "P1 P2"})
	require.False(t, isErr, text)
	resp := decodeResponse(t, text)
	assert.NotEmpty(t, resp.GameID)
	assert.Equal(t, "P1", resp.PlayerID)
	assert.Len(t, resp.State.Players[0].Hand, 7)
	require.NotNil(t, resp.Pending)
	assert.Equal(t, "turn", resp.Pending.Kind)
	assert.Equal(t, "P1", resp.Pending.ForPlayer)
	assert.Equal(t, "cardrules-cli join -url ws://localhost:9999 -game "+resp.GameID+" -player P2", resp.JoinHint)

	text, isErr = call(t, sess.handleDrawCard, nil)
	require.False(t, isErr, text)
	resp = decodeResponse(t, text)
	require.NotNil(t, resp.Outcome)
	assert.Len(t, resp.Outcome.Drawn, 1)
	require.NotEmpty(t, resp.Events)
	assert.Equal(t, log.EventCardDrawn, resp.Events[len(resp.Events)-1].Type)

	text, isErr = call(t, sess.handlePassTurn, nil)
	require.False(t, isErr, text)
	resp = decodeResponse(t, text)
	assert.Equal(t, "P2", resp.Pending.ForPlayer)

	text, isErr = call(t, sess.handleDrawCard, nil)
	assert.True(t, isErr)
	assert.Contains(t, text, "NotYourTurn")

	text, isErr = call(t, sess.handleGetState, nil)
	require.False(t, isErr)
	assert.Empty(t, decodeResponse(t, text).Events, "events are reported once")
}

func TestCreateGameErrors(t *testing.T) {
	sess, _ := newSession(t)
	_, isErr := call(t, sess.handleCreateGame, map[string]any{"rule_set_id": "poker", "players": "P1 P2"})
	assert.True(t, isErr)
	_, isErr = call(t, sess.handleCreateGame, map[string]any{"rule_set_id": "uno"})
	assert.True(t, isErr)
	text, isErr := call(t, sess.handleCreateGame, map[string]any{"rule_set_id": "uno", "players": "P1 P2", "seat": "P9"})
	assert.True(t, isErr)
	assert.Contains(t, text, "P9")
}

func TestCreateGameWithAISeats(t *testing.T) {
	sess, _ := newSession(t)
	_, isErr := call(t, sess.handleCreateGame, map[string]any{"rule_set_id": "uno", "players": "P1 P2", "ai": "P1"})
	assert.True(t, isErr)

	text, isErr := call(t, sess.handleCreateGame, map[string]any{"rule_set_id": "uno", "players": "P1 P2 P3", "ai": "P2"})
	require.False(t, isErr, text)
	resp := decodeResponse(t, text)
	assert.True(t, resp.State.Players[1].AI)
	assert.Contains(t, resp.JoinHint, "-player P3")
}

func TestJoinGame(t *testing.T) {
	sess, mgr := newSession(t)
	tb, err := mgr.Create(context.Background(), table.CreateRequest{RuleSetID: "idiot", Players: []string{"A", "B"}, GameID: "g1"})
	require.NoError(t, err)

	_, isErr := call(t, sess.handleJoinGame, map[string]any{"game_id": "g1", "player": "C"})
	assert.True(t, isErr)
	_, isErr = call(t, sess.handleJoinGame, map[string]any{"game_id": "nope", "player": "A"})
	assert.True(t, isErr)

	text, isErr := call(t, sess.handleJoinGame, map[string]any{"game_id": "g1", "player": "B"})
	require.False(t, isErr, text)
	resp := decodeResponse(t, text)
	assert.Equal(t, "B", resp.PlayerID)
	assert.Len(t, resp.State.Players[1].Hand, 4)
	assert.Equal(t, tb.ID(), resp.GameID)
}

func TestWaitForTurn(t *testing.T) {
	sess, mgr := newSession(t)
	tb, err := mgr.Create(context.Background(), table.CreateRequest{RuleSetID: "uno", Players: []string{"P1", "P2"}, GameID: "g1"})
	require.NoError(t, err)
	_, isErr := call(t, sess.handleJoinGame, map[string]any{"game_id": "g1", "player": "P2"})
	require.False(t, isErr)

	go func() {
		time.Sleep(20 * time.Millisecond)
		tb.Draw(context.Background(), "P1")
		tb.Pass(context.Background(), "P1")
	}()

	text, isErr := call(t, sess.handleWaitForTurn, map[string]any{"timeout_seconds": float64(2)})
	require.False(t, isErr, text)
	resp := decodeResponse(t, text)
	assert.True(t, resp.State.IsYourTurn)
	assert.Equal(t, "P2", resp.Pending.ForPlayer)
}

func TestAnswerDecisionNeedsAnAnswer(t *testing.T) {
	sess, _ := newSession(t)
	_, isErr := call(t, sess.handleCreateGame, map[string]any{"rule_set_id": "uno", "players": "P1 P2"})
	require.False(t, isErr)

	text, isErr := call(t, sess.handleAnswerDecision, nil)
	assert.True(t, isErr)
	assert.Contains(t, text, "suit")

	text, isErr = call(t, sess.handleAnswerDecision, map[string]any{"suit": "hearts"})
	assert.True(t, isErr)
	assert.Contains(t, text, "InvalidDecision")
}
