package mcp

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/peterkuimelis/cardrules/internal/game"
	"github.com/peterkuimelis/cardrules/internal/table"
)

// maxWait caps wait_for_turn.
const maxWait = 5 * time.Minute

// RegisterTools adds all game tools to the MCP server.
func RegisterTools(s *server.MCPServer, sess *Session) {
	s.AddTool(listRuleSetsTool(), sess.handleListRuleSets)
	s.AddTool(createGameTool(), sess.handleCreateGame)
	s.AddTool(joinGameTool(), sess.handleJoinGame)
	s.AddTool(getStateTool(), sess.handleGetState)
	s.AddTool(playCardTool(), sess.handlePlayCard)
	s.AddTool(drawCardTool(), sess.handleDrawCard)
	s.AddTool(passTurnTool(), sess.handlePassTurn)
	s.AddTool(announceTool(), sess.handleAnnounce)
	s.AddTool(answerDecisionTool(), sess.handleAnswerDecision)
	s.AddTool(waitForTurnTool(), sess.handleWaitForTurn)
}

// --- Tool definitions ---

func listRuleSetsTool() mcp.Tool {
	return mcp.NewTool("list_rule_sets",
		mcp.WithDescription("List the card games this server can host."),
	)
}

func createGameTool() mcp.Tool {
	return mcp.NewTool("create_game",
		mcp.WithDescription("Deal a new game and take a seat in it. Other seats are joined by humans with the returned join_hint, "+
			"or by another agent with join_game."),
		mcp.WithString("rule_set_id", mcp.Required(), mcp.Description("Rule set to play, e.g. 'uno' or 'idiot' (see list_rule_sets)")),
		mcp.WithString("players", mcp.Required(), mcp.Description("Space-separated player ids in seating order, e.g. 'P1 P2 P3'")),
		mcp.WithString("seat", mcp.Description("Which player id you play as (default: the first player)")),
		mcp.WithString("ai", mcp.Description("Space-separated player ids the server plays automatically")),
		mcp.WithString("game_id", mcp.Description("Game id to use (default: generated)")),
	)
}

func joinGameTool() mcp.Tool {
	return mcp.NewTool("join_game",
		mcp.WithDescription("Take a seat in an existing game."),
		mcp.WithString("game_id", mcp.Required(), mcp.Description("Game to join")),
		mcp.WithString("player", mcp.Required(), mcp.Description("Player id to play as")),
	)
}

func getStateTool() mcp.Tool {
	return mcp.NewTool("get_state",
		mcp.WithDescription("Get the game from your seat, the events since your last call, and whose move it is. Read-only."),
	)
}

func playCardTool() mcp.Tool {
	return mcp.NewTool("play_card",
		mcp.WithDescription("Play a card from your hand. Cards marked playable in the state can be played. "+
			"Answers for the decisions the card triggers may be given up front; otherwise the response carries a pending decision."),
		mcp.WithNumber("card_id", mcp.Required(), mcp.Description("Id of the card in your hand")),
		mcp.WithString("suit", mcp.Description("Suit to name when the card asks for one")),
		mcp.WithNumber("option", mcp.Description("0-based counter option when the card offers several")),
		mcp.WithString("target", mcp.Description("Player id when the card targets a chosen player")),
		mcp.WithBoolean("announce", mcp.Description("Announce your last card with this play")),
	)
}

func drawCardTool() mcp.Tool {
	return mcp.NewTool("draw_card",
		mcp.WithDescription("Draw from the draw pile, or take the penalty of an open counter chain aimed at you."),
	)
}

func passTurnTool() mcp.Tool {
	return mcp.NewTool("pass_turn",
		mcp.WithDescription("End your turn after drawing."),
	)
}

func announceTool() mcp.Tool {
	return mcp.NewTool("announce_one_card",
		mcp.WithDescription("Announce that you hold a single card."),
	)
}

func answerDecisionTool() mcp.Tool {
	return mcp.NewTool("answer_decision",
		mcp.WithDescription("Answer the pending decision. Give the field that matches the decision kind: "+
			"suit for choose_suit, option for choose_counter_option, target for player_choice."),
		mcp.WithString("suit", mcp.Description("Suit to name")),
		mcp.WithNumber("option", mcp.Description("0-based option index")),
		mcp.WithString("target", mcp.Description("Player id to target")),
	)
}

func waitForTurnTool() mcp.Tool {
	return mcp.NewTool("wait_for_turn",
		mcp.WithDescription("Block until it is your move, you owe a decision, or the game ends. Returns the state either way once the timeout passes."),
		mcp.WithNumber("timeout_seconds", mcp.Description("How long to wait (default 60, max 300)")),
	)
}

// --- Tool handlers ---

func (s *Session) handleListRuleSets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type entry struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Variant     string `json:"variant"`
		MaxPlayers  int    `json:"max_players"`
	}
	var out []entry
	for _, rs := range s.games.RuleSets() {
		out = append(out, entry{rs.ID, rs.Name, rs.Description, rs.Variant.String(), rs.MaxPlayers()})
	}
	return mcp.NewToolResultText(respondJSON(out)), nil
}

func (s *Session) handleCreateGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	players := strings.Fields(request.GetString("players", ""))
	if len(players) == 0 {
		return mcp.NewToolResultError("players must list at least two player ids"), nil
	}
	seat := request.GetString("seat", players[0])
	ai := strings.Fields(request.GetString("ai", ""))
	if slices.Contains(ai, seat) {
		return mcp.NewToolResultErrorf("Seat %q cannot also be an AI seat.", seat), nil
	}

	t, err := s.games.Create(ctx, table.CreateRequest{
		RuleSetID: request.GetString("rule_set_id", ""),
		Players:   players,
		GameID:    request.GetString("game_id", ""),
		AI:        ai,
	})
	if err != nil {
		return mcp.NewToolResultErrorf("Failed to create game: %v", err), nil
	}
	if !t.Seated(seat) {
		return mcp.NewToolResultErrorf("Seat %q is not one of the players.", seat), nil
	}
	s.seat(t.ID(), seat)

	resp := s.respond(t, seat, nil)
	for _, p := range players {
		if p != seat && !slices.Contains(ai, p) {
			resp.JoinHint = s.hint(t.ID(), p)
			break
		}
	}
	return mcp.NewToolResultText(respondJSON(resp)), nil
}

func (s *Session) handleJoinGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gameID := request.GetString("game_id", "")
	player := request.GetString("player", "")
	t, err := s.games.Get(ctx, gameID)
	if err != nil {
		return mcp.NewToolResultErrorf("Failed to join: %v", err), nil
	}
	if !t.Seated(player) {
		return mcp.NewToolResultErrorf("Player %q has no seat in game %s.", player, gameID), nil
	}
	s.seat(gameID, player)
	return mcp.NewToolResultText(respondJSON(s.respond(t, player, nil))), nil
}

func (s *Session) handleGetState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, player, err := s.current(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(respondJSON(s.respond(t, player, nil))), nil
}

func (s *Session) handlePlayCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cardID := request.GetInt("card_id", -1)
	if cardID < 0 {
		return mcp.NewToolResultError("card_id is required"), nil
	}
	announce := request.GetBool("announce", false)
	answer := answerFrom(request)
	return s.act(ctx, func(t *table.Table, player string) (game.Outcome, error) {
		return t.Play(ctx, game.PlayRequest{PlayerID: player, CardID: cardID, Announce: announce, Answers: answer})
	})
}

func (s *Session) handleDrawCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.act(ctx, func(t *table.Table, player string) (game.Outcome, error) {
		return t.Draw(ctx, player)
	})
}

func (s *Session) handlePassTurn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.act(ctx, func(t *table.Table, player string) (game.Outcome, error) {
		return t.Pass(ctx, player)
	})
}

func (s *Session) handleAnnounce(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.act(ctx, func(t *table.Table, player string) (game.Outcome, error) {
		return t.Announce(ctx, player)
	})
}

func (s *Session) handleAnswerDecision(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	answer := answerFrom(request)
	if answer == (game.Answer{}) {
		return mcp.NewToolResultError("Give one of suit, option or target."), nil
	}
	return s.act(ctx, func(t *table.Table, player string) (game.Outcome, error) {
		return t.Decide(ctx, player, answer)
	})
}

func (s *Session) handleWaitForTurn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wait := time.Duration(request.GetInt("timeout_seconds", 60)) * time.Second
	if wait <= 0 || wait > maxWait {
		wait = maxWait
	}
	resp, err := s.waitForTurn(ctx, wait)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(respondJSON(resp)), nil
}

// act runs one action from the seated player. Rule violations come back as
// tool errors carrying the full response so the agent can see the state.
func (s *Session) act(ctx context.Context, action func(t *table.Table, player string) (game.Outcome, error)) (*mcp.CallToolResult, error) {
	t, player, err := s.current(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := action(t, player)
	if err != nil {
		return mcp.NewToolResultErrorf("Action failed: %v", err), nil
	}
	resp := s.respond(t, player, &out)
	if !out.Success {
		return mcp.NewToolResultErrorf("%s: %s\n%s", out.Kind, out.Message, respondJSON(resp)), nil
	}
	return mcp.NewToolResultText(respondJSON(resp)), nil
}

func answerFrom(request mcp.CallToolRequest) game.Answer {
	a := game.Answer{
		Suit:     request.GetString("suit", ""),
		PlayerID: request.GetString("target", ""),
	}
	if opt := request.GetInt("option", -1); opt >= 0 {
		a.Option = &opt
	}
	return a
}
