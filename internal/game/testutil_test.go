package game

import (
	"context"
	"testing"

	"github.com/peterkuimelis/cardrules/internal/log"
)

// ScriptedDecider answers decisions from a queue and records every request.
// When the queue runs dry it suspends the play.
type ScriptedDecider struct {
	answers  []Answer
	pos      int
	Requests []DecisionRequest
}

func NewScriptedDecider(answers ...Answer) *ScriptedDecider {
	return &ScriptedDecider{answers: answers}
}

func (d *ScriptedDecider) Decide(_ context.Context, _ *GameState, req DecisionRequest) (Answer, error) {
	d.Requests = append(d.Requests, req)
	if d.pos >= len(d.answers) {
		return Answer{}, ErrDecisionRequired
	}
	a := d.answers[d.pos]
	d.pos++
	return a, nil
}

// table is a rigged game: hands and piles are set by hand so scenarios do
// not depend on dealing.
type table struct {
	t      *testing.T
	rules  *RuleSet
	engine *Engine
	gs     *GameState
	logger *log.MemoryLogger
	nextID int
}

func newTable(t *testing.T, rs *RuleSet, decider DecisionProvider, seats ...string) *table {
	t.Helper()
	logger := log.NewMemoryLogger()
	eng := NewEngine(rs, EngineConfig{Logger: logger, Decider: decider, Seed: 1, NoShuffle: true})
	gs := NewGameState("g1", rs.ID, seats, rs.TurnFlow.InitialDirection)
	for _, id := range seats {
		gs.Players[id] = &PlayerState{PlayerID: id}
	}
	gs.CurrentPlayerID = seats[0]
	gs.NextPlayerID = gs.SeatAt(seats[0], int(gs.Direction))
	gs.Turn = 1
	return &table{t: t, rules: rs, engine: eng, gs: gs, logger: logger, nextID: 1000}
}

func unoTable(t *testing.T, decider DecisionProvider, seats ...string) *table {
	t.Helper()
	rs, err := UnoRuleSet(PresetOptions{})
	if err != nil {
		t.Fatalf("uno rule set: %v", err)
	}
	return newTable(t, rs, decider, seats...)
}

func idiotTable(t *testing.T, decider DecisionProvider, seats ...string) *table {
	t.Helper()
	rs, err := IdiotRuleSet(PresetOptions{})
	if err != nil {
		t.Fatalf("idiot rule set: %v", err)
	}
	return newTable(t, rs, decider, seats...)
}

// card mints a card with a fresh instance id.
func (tb *table) card(suit, rank string) Card {
	tb.nextID++
	return Card{ID: tb.nextID, Suit: suit, Rank: rank}
}

// hand replaces a player's hand.
func (tb *table) hand(player string, cards ...Card) *table {
	tb.gs.Players[player].Hand = cards
	return tb
}

// filler adds n clubs 4s to a player's hand.
func (tb *table) filler(player string, n int) *table {
	ps := tb.gs.Players[player]
	for i := 0; i < n; i++ {
		ps.Hand = append(ps.Hand, tb.card("clubs", "4"))
	}
	return tb
}

func (tb *table) top(c Card) *table {
	tb.gs.DiscardPile = append(tb.gs.DiscardPile, c)
	return tb
}

// stock puts n filler cards (spades 3) on the draw pile.
func (tb *table) stock(n int) *table {
	for i := 0; i < n; i++ {
		tb.gs.DrawPile = append(tb.gs.DrawPile, tb.card("spades", "3"))
	}
	return tb
}

func (tb *table) turn(player string) *table {
	tb.gs.CurrentPlayerID = player
	tb.gs.NextPlayerID = tb.gs.SeatAt(player, int(tb.gs.Direction))
	return tb
}

func (tb *table) play(player string, c Card) Outcome {
	tb.t.Helper()
	return tb.engine.PlayCard(context.Background(), tb.gs, PlayRequest{PlayerID: player, CardID: c.ID})
}

func (tb *table) playWith(player string, c Card, a Answer) Outcome {
	tb.t.Helper()
	return tb.engine.PlayCard(context.Background(), tb.gs, PlayRequest{PlayerID: player, CardID: c.ID, Answers: a})
}

func (tb *table) mustPlay(player string, c Card) Outcome {
	tb.t.Helper()
	out := tb.play(player, c)
	if !out.Success {
		tb.t.Fatalf("%s playing %s: %s %s", player, c, out.Kind, out.Message)
	}
	return out
}

func (tb *table) count(player string) int {
	return tb.gs.Players[player].HandCount()
}

func (tb *table) counts() map[string]int {
	out := make(map[string]int)
	for _, id := range tb.gs.Seats {
		out[id] = tb.count(id)
	}
	return out
}
