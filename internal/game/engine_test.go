package game

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/peterkuimelis/cardrules/internal/log"
)

func TestNewGameDealsAndSerializes(t *testing.T) {
	rs, _ := UnoRuleSet(PresetOptions{})
	eng := NewEngine(rs, EngineConfig{Seed: 7})
	players := []string{"P1", "P2", "P3", "P4"}
	gs, err := eng.NewGame("g1", players)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}

	for _, viewer := range players {
		v := Serialize(gs, rs, viewer)
		total := 0
		for _, pv := range v.Players {
			total += pv.HandCount
			if pv.PlayerID == viewer && len(pv.Hand) != 7 {
				t.Errorf("%s: expected own hand of 7, got %d", viewer, len(pv.Hand))
			}
			if pv.PlayerID != viewer && len(pv.Hand) != 0 {
				t.Errorf("%s: saw %s's hand", viewer, pv.PlayerID)
			}
		}
		if total != 28 {
			t.Errorf("%s: expected 28 cards in hands, got %d", viewer, total)
		}
		if v.DiscardTop == nil || v.DrawPileCount != 56-28-1 {
			t.Errorf("%s: expected one discard and 27 to draw, got %+v / %d", viewer, v.DiscardTop, v.DrawPileCount)
		}
	}
	if gs.CurrentPlayerID != "P1" || gs.NextPlayerID != "P2" || gs.Turn != 1 {
		t.Errorf("Expected P1 to start with P2 next, got %s/%s turn %d", gs.CurrentPlayerID, gs.NextPlayerID, gs.Turn)
	}

	logger := eng.Logger.(*log.MemoryLogger)
	if len(logger.EventsOfType(log.EventGameStarted)) != 1 {
		t.Error("Expected a game_started event")
	}
}

func TestNewGameRejectsBadSeats(t *testing.T) {
	rs, _ := IdiotRuleSet(PresetOptions{CardsPerPlayer: 8})
	eng := NewEngine(rs, EngineConfig{Seed: 1})
	for _, ids := range [][]string{
		{"P1"},
		{"P1", "P1"},
		{"P1", ""},
		{"A", "B", "C", "D", "E", "F", "G"},
	} {
		if _, err := eng.NewGame("g", ids); err == nil {
			t.Errorf("Expected %v to be rejected", ids)
		}
	}
}

func TestCardNotInHandLeavesStateUnchanged(t *testing.T) {
	tb := unoTable(t, nil, "P1", "P2", "P3")
	tb.top(tb.card("hearts", "9")).filler("P1", 3).filler("P2", 3).filler("P3", 3).stock(5)
	before := tb.gs.Clone()

	out := tb.engine.PlayCard(context.Background(), tb.gs, PlayRequest{PlayerID: "P1", CardID: 424242})
	if out.Success || out.Kind != ErrCardNotInHand {
		t.Fatalf("Expected CardNotInHand, got %+v", out)
	}
	if !reflect.DeepEqual(before, tb.gs) {
		t.Error("Expected a rejected play to leave the state untouched")
	}
	if len(tb.logger.Events()) != 0 {
		t.Errorf("Expected no events from a rejected play, got %d", len(tb.logger.Events()))
	}
}

func TestDeciderFailureIsInternal(t *testing.T) {
	offline := DecisionFunc(func(context.Context, *GameState, DecisionRequest) (Answer, error) {
		return Answer{}, errors.New("decider offline")
	})
	tb := idiotTable(t, offline, "P1", "P2")
	jack := tb.card("hearts", "J")
	tb.top(tb.card("hearts", "9")).hand("P1", jack).filler("P1", 2).filler("P2", 3).stock(5)

	out := tb.play("P1", jack)
	if out.Success || out.Kind != ErrInternal {
		t.Fatalf("Expected an Internal failure, got %+v", out)
	}
	if tb.count("P1") != 3 || tb.gs.CurrentPlayerID != "P1" {
		t.Errorf("Expected the state to be untouched, got %v", tb.counts())
	}
	if KindOf(out.Err()) != ErrInternal {
		t.Errorf("Expected Err to carry Internal, got %s", KindOf(out.Err()))
	}
}

func TestValidationErrors(t *testing.T) {
	tb := unoTable(t, nil, "P1", "P2", "P3")
	clubs5 := tb.card("clubs", "5")
	p2card := tb.card("hearts", "6")
	tb.top(tb.card("hearts", "9")).hand("P1", clubs5).filler("P1", 2).hand("P2", p2card).filler("P2", 2).filler("P3", 3)

	if out := tb.play("P2", p2card); out.Kind != ErrNotYourTurn {
		t.Errorf("Expected NotYourTurn, got %s", out.Kind)
	}
	if out := tb.play("P9", p2card); out.Kind != ErrNotYourTurn {
		t.Errorf("Expected NotYourTurn for an unseated player, got %s", out.Kind)
	}
	if out := tb.play("P1", p2card); out.Kind != ErrCardNotInHand {
		t.Errorf("Expected CardNotInHand for another player's card, got %s", out.Kind)
	}
	if out := tb.play("P1", clubs5); out.Kind != ErrInvalidPlay {
		t.Errorf("Expected InvalidPlay, got %s", out.Kind)
	}
	if err := tb.play("P1", clubs5).Err(); KindOf(err) != ErrInvalidPlay {
		t.Errorf("Expected Err() to carry the kind, got %v", err)
	}

	tb.gs.GameOver = true
	if out := tb.play("P1", clubs5); out.Kind != ErrGameNotActive {
		t.Errorf("Expected GameNotActive, got %s", out.Kind)
	}
}

func TestPlainPlayAdvancesTurn(t *testing.T) {
	tb := unoTable(t, nil, "P1", "P2", "P3")
	h5 := tb.card("hearts", "5")
	tb.top(tb.card("hearts", "9")).hand("P1", h5).filler("P1", 2).filler("P2", 3).filler("P3", 3)

	out := tb.mustPlay("P1", h5)
	if out.NextPlayerID != "P2" || tb.gs.CurrentPlayerID != "P2" || tb.gs.NextPlayerID != "P3" {
		t.Errorf("Expected P2 to play next, got %s", out.NextPlayerID)
	}
	if top, _ := tb.gs.DiscardTop(); top != h5 {
		t.Errorf("Expected %s on the discard pile, got %s", h5, top)
	}
	if tb.gs.LastCard == nil || *tb.gs.LastCard != h5 || tb.gs.LastPlayerID != "P1" {
		t.Error("Expected last card and player to be recorded")
	}
	if tb.gs.Turn != 2 || tb.gs.Phase != PhaseAwaitingPlay {
		t.Errorf("Expected turn 2 awaiting play, got %d %s", tb.gs.Turn, tb.gs.Phase)
	}
	if len(tb.logger.EventsOfType(log.EventCardPlayed)) != 1 || len(tb.logger.EventsOfType(log.EventTurnChanged)) != 1 {
		t.Error("Expected card_played and turn_changed events")
	}
}

func TestUnoActionCards(t *testing.T) {
	t.Run("draw two", func(t *testing.T) {
		tb := unoTable(t, nil, "P1", "P2", "P3", "P4")
		c := tb.card("hearts", "2")
		tb.top(tb.card("hearts", "9")).hand("P1", c).filler("P1", 2).filler("P2", 3).filler("P3", 3).filler("P4", 3).stock(5)
		out := tb.mustPlay("P1", c)
		if tb.count("P2") != 5 {
			t.Errorf("Expected P2 to hold 5 cards, got %d", tb.count("P2"))
		}
		if out.NextPlayerID != "P2" {
			t.Errorf("Expected P2 to play next, got %s", out.NextPlayerID)
		}
		if len(out.Effects) != 1 || out.Effects[0].Effect != "draw_cards" || out.Effects[0].Amount != 2 {
			t.Errorf("Expected one draw_cards effect, got %+v", out.Effects)
		}
	})

	t.Run("skip", func(t *testing.T) {
		tb := unoTable(t, nil, "P1", "P2", "P3", "P4")
		c := tb.card("hearts", "A")
		tb.top(tb.card("hearts", "9")).hand("P1", c).filler("P1", 2).filler("P2", 3).filler("P3", 3).filler("P4", 3)
		out := tb.mustPlay("P1", c)
		if out.NextPlayerID != "P3" {
			t.Errorf("Expected P3 after skipping P2, got %s", out.NextPlayerID)
		}
		if len(tb.gs.SkippedPlayers) != 0 {
			t.Errorf("Expected skip set to be consumed, got %v", tb.gs.SkippedPlayers)
		}
	})

	t.Run("reverse", func(t *testing.T) {
		tb := unoTable(t, nil, "P1", "P2", "P3", "P4")
		c := tb.card("hearts", "K")
		tb.top(tb.card("hearts", "9")).hand("P1", c).filler("P1", 2).filler("P2", 3).filler("P3", 3).filler("P4", 3)
		out := tb.mustPlay("P1", c)
		if tb.gs.Direction != Counterclockwise || out.NextPlayerID != "P4" {
			t.Errorf("Expected counterclockwise play to P4, got %s %s", tb.gs.Direction, out.NextPlayerID)
		}
	})

	t.Run("wild picks the next player", func(t *testing.T) {
		tb := unoTable(t, nil, "P1", "P2", "P3", "P4")
		c := tb.card(SpecialSuit, "wild")
		tb.top(tb.card("hearts", "9")).hand("P1", c).filler("P1", 2).filler("P2", 3).filler("P3", 3).filler("P4", 3)
		out := tb.playWith("P1", c, Answer{PlayerID: "P3"})
		if !out.Success || out.NextPlayerID != "P3" {
			t.Errorf("Expected P3 to be chosen, got %+v", out)
		}
		if tb.gs.NextPlayerID != "P4" {
			t.Errorf("Expected P4 after P3, got %s", tb.gs.NextPlayerID)
		}
	})
}

func TestDecisionSuspendsAndResumes(t *testing.T) {
	tb := unoTable(t, Suspend{}, "P1", "P2", "P3", "P4")
	c := tb.card(SpecialSuit, "wild")
	tb.top(tb.card("hearts", "9")).hand("P1", c).filler("P1", 2).filler("P2", 3).filler("P3", 3).filler("P4", 3)

	out := tb.play("P1", c)
	if !out.Success || out.Decision == nil {
		t.Fatalf("Expected a decision request, got %+v", out)
	}
	if out.Decision.Kind != DecisionPlayerChoice || !reflect.DeepEqual(out.Decision.Options, []string{"P2", "P3", "P4"}) {
		t.Errorf("Unexpected decision %+v", out.Decision)
	}
	if tb.count("P1") != 3 || tb.gs.Pending == nil || tb.gs.Phase != PhaseAwaitingDecision {
		t.Error("Expected the play to be held until the decision arrives")
	}

	if o := tb.engine.Draw(context.Background(), tb.gs, "P1"); o.Kind != ErrDecisionPending {
		t.Errorf("Expected DecisionPending while waiting, got %s", o.Kind)
	}
	if o := tb.play("P1", c); o.Kind != ErrDecisionPending {
		t.Errorf("Expected DecisionPending for a second play, got %s", o.Kind)
	}
	if o := tb.engine.Resolve(context.Background(), tb.gs, "P2", Answer{PlayerID: "P3"}); o.Kind != ErrNotYourTurn {
		t.Errorf("Expected NotYourTurn for another player's answer, got %s", o.Kind)
	}
	if o := tb.engine.Resolve(context.Background(), tb.gs, "P1", Answer{PlayerID: "P1"}); o.Kind != ErrInvalidDecision {
		t.Errorf("Expected InvalidDecision for a non-candidate, got %s", o.Kind)
	}
	if tb.gs.Pending == nil {
		t.Fatal("Expected the decision to stay pending after a bad answer")
	}

	res := tb.engine.Resolve(context.Background(), tb.gs, "P1", Answer{PlayerID: "P4"})
	if !res.Success || res.NextPlayerID != "P4" {
		t.Fatalf("Expected P4 to play next, got %+v", res)
	}
	if tb.gs.Pending != nil || tb.count("P1") != 2 {
		t.Error("Expected the play to complete")
	}
	resolved := tb.logger.EventsOfType(log.EventDecisionResolved)
	if len(resolved) != 1 || resolved[0].Details == "" {
		t.Errorf("Expected one decision_resolved event, got %v", resolved)
	}
}

func TestResolveDefaultAppliesFirstCandidate(t *testing.T) {
	tb := unoTable(t, Suspend{}, "P1", "P2", "P3", "P4")
	c := tb.card(SpecialSuit, "wild")
	tb.top(tb.card("hearts", "9")).hand("P1", c).filler("P1", 2).filler("P2", 3).filler("P3", 3).filler("P4", 3)
	tb.play("P1", c)

	out := tb.engine.ResolveDefault(context.Background(), tb.gs)
	if !out.Success || out.NextPlayerID != "P2" {
		t.Fatalf("Expected default choice P2, got %+v", out)
	}
	ev := tb.logger.EventsOfType(log.EventDecisionResolved)
	if len(ev) != 1 || ev[0].Payload["defaulted"] != true {
		t.Errorf("Expected a defaulted decision_resolved event, got %v", ev)
	}
	if o := tb.engine.ResolveDefault(context.Background(), tb.gs); o.Kind != ErrInvalidDecision {
		t.Errorf("Expected InvalidDecision with nothing pending, got %s", o.Kind)
	}
}

func TestAbandonCancelsPendingDecision(t *testing.T) {
	tb := idiotTable(t, Suspend{}, "P1", "P2", "P3")
	seven := tb.card("hearts", "7")
	eight := tb.card("hearts", "8")
	tb.top(tb.card("hearts", "9")).hand("P1", seven).filler("P1", 2).hand("P2", eight).filler("P2", 2).filler("P3", 3).stock(5)
	tb.mustPlay("P1", seven)
	if out := tb.play("P2", eight); out.Decision == nil {
		t.Fatalf("Expected a counter option decision, got %+v", out)
	}

	out := tb.engine.Abandon(tb.gs, "players left")
	if !out.Success || !tb.gs.GameOver || !tb.gs.Abandoned {
		t.Fatalf("Expected the game to be abandoned, got %+v", out)
	}
	if tb.gs.Pending != nil || tb.gs.WinnerID != "" {
		t.Error("Expected no pending decision and no winner")
	}
	if tb.gs.Chain == nil || tb.gs.Chain.Counters() != 0 {
		t.Error("Expected the committed chain to be untouched by the cancelled counter")
	}
	if o := tb.engine.Resolve(context.Background(), tb.gs, "P2", OptionAnswer(0)); o.Kind != ErrGameNotActive {
		t.Errorf("Expected GameNotActive, got %s", o.Kind)
	}
	if o := tb.engine.Abandon(tb.gs, "again"); o.Success {
		t.Error("Expected a second abandon to fail")
	}
}

func TestDrawAndPass(t *testing.T) {
	tb := unoTable(t, nil, "P1", "P2", "P3")
	tb.top(tb.card("hearts", "9")).filler("P1", 3).filler("P2", 3).filler("P3", 3).stock(2)

	if out := tb.engine.Pass(context.Background(), tb.gs, "P1"); out.Kind != ErrInvalidPlay {
		t.Errorf("Expected passing before drawing to fail, got %s", out.Kind)
	}
	out := tb.engine.Draw(context.Background(), tb.gs, "P1")
	if !out.Success || len(out.Drawn) != 1 || tb.count("P1") != 4 {
		t.Fatalf("Expected one card drawn, got %+v", out)
	}
	if tb.gs.CurrentPlayerID != "P1" || !tb.gs.DrewThisTurn {
		t.Error("Expected P1 to keep the turn after drawing")
	}
	out = tb.engine.Pass(context.Background(), tb.gs, "P1")
	if !out.Success || out.NextPlayerID != "P2" || tb.gs.DrewThisTurn {
		t.Errorf("Expected the turn to pass to P2, got %+v", out)
	}
	if o := tb.engine.Draw(context.Background(), tb.gs, "P1"); o.Kind != ErrNotYourTurn {
		t.Errorf("Expected NotYourTurn, got %s", o.Kind)
	}
}

func TestAutoPlay(t *testing.T) {
	ctx := context.Background()
	tb := unoTable(t, nil, "P1", "P2", "P3")
	five := tb.card("hearts", "5")
	tb.top(tb.card("hearts", "9")).hand("P1", five).filler("P1", 3).filler("P2", 3).filler("P3", 3).stock(4)

	if out := tb.engine.AutoPlay(ctx, tb.gs, "P1"); !out.Success || tb.count("P1") != 3 {
		t.Fatalf("Expected P1 to play the 5, got %+v", out)
	}
	if top, _ := tb.gs.DiscardTop(); top.ID != five.ID {
		t.Errorf("Expected the 5 on the discard pile, got %s", top)
	}
	if tb.gs.Actor() != "P2" {
		t.Fatalf("Expected P2 to act, got %s", tb.gs.Actor())
	}

	if out := tb.engine.AutoPlay(ctx, tb.gs, "P2"); !out.Success || len(out.Drawn) != 1 {
		t.Fatalf("Expected P2 to draw, got %+v", out)
	}
	if out := tb.engine.AutoPlay(ctx, tb.gs, "P2"); !out.Success || out.NextPlayerID != "P3" {
		t.Fatalf("Expected P2 to pass after drawing, got %+v", out)
	}
	if out := tb.engine.AutoPlay(ctx, tb.gs, "P1"); out.Kind != ErrNotYourTurn {
		t.Errorf("Expected NotYourTurn, got %s", out.Kind)
	}
}

func TestAutoPlayAnswersItsOwnDecision(t *testing.T) {
	ctx := context.Background()
	tb := idiotTable(t, Suspend{}, "P1", "P2")
	jack := tb.card("hearts", "J")
	tb.top(tb.card("hearts", "9")).hand("P1", jack).filler("P1", 2).filler("P2", 3).stock(5)

	if out := tb.engine.AutoPlay(ctx, tb.gs, "P1"); out.Decision == nil {
		t.Fatalf("Expected the jack to wait for a suit, got %+v", out)
	}
	if tb.gs.Actor() != "P1" {
		t.Fatalf("Expected the decision owner to act, got %s", tb.gs.Actor())
	}
	if out := tb.engine.AutoPlay(ctx, tb.gs, "P2"); out.Kind != ErrDecisionPending {
		t.Errorf("Expected DecisionPending, got %s", out.Kind)
	}
	if out := tb.engine.AutoPlay(ctx, tb.gs, "P1"); !out.Success || tb.gs.Pending != nil {
		t.Fatalf("Expected the default suit, got %+v", out)
	}
	if tb.gs.CurrentSuitOverride != "clubs" {
		t.Errorf("Expected the most held suit, got %q", tb.gs.CurrentSuitOverride)
	}
}

func TestDrawEndsTurnAndExhaustedPiles(t *testing.T) {
	rs, _ := UnoRuleSet(PresetOptions{})
	rules := *rs
	rules.TurnFlow.DrawEndsTurn = true
	tb := newTable(t, &rules, nil, "P1", "P2")
	tb.top(tb.card("hearts", "9")).filler("P1", 3).filler("P2", 3)

	out := tb.engine.Draw(context.Background(), tb.gs, "P1")
	if !out.Success || len(out.Drawn) != 0 || out.Message == "" {
		t.Errorf("Expected an empty draw to succeed with a message, got %+v", out)
	}
	if out.NextPlayerID != "P2" {
		t.Errorf("Expected draw_ends_turn to pass to P2, got %s", out.NextPlayerID)
	}
	if o := tb.engine.Pass(context.Background(), tb.gs, "P2"); !o.Success {
		t.Errorf("Expected pass to be allowed with exhausted piles, got %+v", o)
	}
}

func TestDrawReshufflesDiscards(t *testing.T) {
	tb := unoTable(t, nil, "P1", "P2")
	tb.filler("P1", 3).filler("P2", 3)
	tb.top(tb.card("clubs", "2")).top(tb.card("clubs", "3")).top(tb.card("hearts", "9"))

	out := tb.engine.Draw(context.Background(), tb.gs, "P1")
	if len(out.Drawn) != 1 {
		t.Fatalf("Expected a card from the reshuffled discards, got %+v", out)
	}
	if top, _ := tb.gs.DiscardTop(); top.Rank != "9" || len(tb.gs.DiscardPile) != 1 {
		t.Errorf("Expected hearts 9 alone on the discard pile, got %v", tb.gs.DiscardPile)
	}
	if len(tb.logger.EventsOfType(log.EventDeckReshuffled)) != 1 {
		t.Error("Expected a deck_reshuffled event")
	}
}

func TestOneCardAnnouncement(t *testing.T) {
	t.Run("penalty", func(t *testing.T) {
		tb := unoTable(t, nil, "P1", "P2")
		c := tb.card("hearts", "5")
		tb.top(tb.card("hearts", "9")).hand("P1", c).filler("P1", 1).filler("P2", 3).stock(5)
		tb.mustPlay("P1", c)
		if tb.count("P1") != 3 || tb.gs.Players["P1"].Penalties != 1 {
			t.Errorf("Expected a 2 card penalty, got %d cards", tb.count("P1"))
		}
		if len(tb.logger.EventsOfType(log.EventPenaltyApplied)) != 1 {
			t.Error("Expected a penalty event")
		}
	})

	t.Run("announced with the play", func(t *testing.T) {
		tb := unoTable(t, nil, "P1", "P2")
		c := tb.card("hearts", "5")
		tb.top(tb.card("hearts", "9")).hand("P1", c).filler("P1", 1).filler("P2", 3).stock(5)
		out := tb.engine.PlayCard(context.Background(), tb.gs, PlayRequest{PlayerID: "P1", CardID: c.ID, Announce: true})
		if !out.Success || tb.count("P1") != 1 || !tb.gs.Players["P1"].AnnouncedOneCard {
			t.Errorf("Expected no penalty after announcing, got %d cards", tb.count("P1"))
		}
		if len(tb.logger.EventsOfType(log.EventOneCardAnnounced)) != 1 {
			t.Error("Expected a one_card_announced event")
		}
	})

	t.Run("announced out of band", func(t *testing.T) {
		rs, _ := UnoRuleSet(PresetOptions{})
		tb := newTable(t, rs, nil, "P1", "P2")
		tb.engine = NewEngine(rs, EngineConfig{
			Logger:    tb.logger,
			NoShuffle: true,
			Announced: func(gs *GameState, id string) bool { return id == "P1" },
		})
		c := tb.card("hearts", "5")
		tb.top(tb.card("hearts", "9")).hand("P1", c).filler("P1", 1).filler("P2", 3).stock(5)
		tb.mustPlay("P1", c)
		if tb.count("P1") != 1 {
			t.Errorf("Expected the reported announcement to avoid the penalty, got %d cards", tb.count("P1"))
		}
	})

	t.Run("entry point", func(t *testing.T) {
		tb := unoTable(t, nil, "P1", "P2")
		tb.top(tb.card("hearts", "9")).filler("P1", 2).filler("P2", 1)
		if out := tb.engine.AnnounceOneCard(tb.gs, "P1"); out.Kind != ErrInvalidPlay {
			t.Errorf("Expected announcing with two cards to fail, got %s", out.Kind)
		}
		if out := tb.engine.AnnounceOneCard(tb.gs, "P2"); !out.Success || !tb.gs.Players["P2"].AnnouncedOneCard {
			t.Errorf("Expected P2 to announce out of turn, got %+v", out)
		}
	})
}

func TestIdiotActionCards(t *testing.T) {
	seats := []string{"P1", "P2", "P3", "P4"}
	setup := func(t *testing.T, c Card, tb *table) *table {
		tb.top(tb.card("hearts", "9")).hand("P1", c).filler("P1", 3).filler("P2", 3).filler("P3", 3).filler("P4", 3).stock(10)
		return tb
	}

	t.Run("three hits the previous player", func(t *testing.T) {
		tb := idiotTable(t, nil, seats...)
		c := tb.card("hearts", "3")
		setup(t, c, tb).mustPlay("P1", c)
		if tb.count("P4") != 4 || tb.count("P2") != 3 {
			t.Errorf("Expected P4 to draw 1, got %v", tb.counts())
		}
	})

	t.Run("six hits the player after next", func(t *testing.T) {
		tb := idiotTable(t, nil, seats...)
		c := tb.card("hearts", "6")
		setup(t, c, tb).mustPlay("P1", c)
		if tb.count("P3") != 4 {
			t.Errorf("Expected P3 to draw 1, got %v", tb.counts())
		}
	})

	t.Run("nine of diamonds hits everyone else", func(t *testing.T) {
		tb := idiotTable(t, nil, seats...)
		c := tb.card("diamonds", "9")
		setup(t, c, tb).mustPlay("P1", c)
		want := map[string]int{"P1": 3, "P2": 4, "P3": 4, "P4": 4}
		if !reflect.DeepEqual(tb.counts(), want) {
			t.Errorf("Expected %v, got %v", want, tb.counts())
		}
	})

	t.Run("nine of hearts does nothing", func(t *testing.T) {
		tb := idiotTable(t, nil, seats...)
		c := tb.card("hearts", "9")
		setup(t, c, tb).mustPlay("P1", c)
		if tb.count("P2") != 3 {
			t.Errorf("Expected no draws, got %v", tb.counts())
		}
	})

	t.Run("two gives a card", func(t *testing.T) {
		tb := idiotTable(t, nil, seats...)
		c := tb.card("hearts", "2")
		setup(t, c, tb).mustPlay("P1", c)
		if tb.count("P2") != 4 {
			t.Errorf("Expected P2 to receive a card, got %v", tb.counts())
		}
	})

	t.Run("king draws and skips", func(t *testing.T) {
		tb := idiotTable(t, nil, seats...)
		c := tb.card("hearts", "K")
		out := setup(t, c, tb).mustPlay("P1", c)
		if tb.count("P2") != 4 || out.NextPlayerID != "P3" {
			t.Errorf("Expected P2 to draw and be skipped, got %v next %s", tb.counts(), out.NextPlayerID)
		}
	})

	t.Run("eight skips outside a chain", func(t *testing.T) {
		tb := idiotTable(t, nil, seats...)
		c := tb.card("hearts", "8")
		out := setup(t, c, tb).mustPlay("P1", c)
		if out.NextPlayerID != "P3" {
			t.Errorf("Expected P3 next, got %s", out.NextPlayerID)
		}
	})

	t.Run("ten reverses outside a chain", func(t *testing.T) {
		tb := idiotTable(t, nil, seats...)
		c := tb.card("hearts", "10")
		out := setup(t, c, tb).mustPlay("P1", c)
		if out.NextPlayerID != "P4" || tb.gs.Direction != Counterclockwise {
			t.Errorf("Expected reverse to P4, got %s", out.NextPlayerID)
		}
	})

	t.Run("jack sets the suit", func(t *testing.T) {
		tb := idiotTable(t, nil, seats...)
		c := tb.card("clubs", "J")
		setup(t, c, tb)
		out := tb.playWith("P1", c, Answer{Suit: "spades"})
		if !out.Success || tb.gs.CurrentSuitOverride != "spades" {
			t.Fatalf("Expected spades override, got %+v", out)
		}
		h := tb.card("clubs", "5")
		s := tb.card("spades", "5")
		tb.hand("P2", h, s).filler("P2", 2)
		if o := tb.play("P2", h); o.Kind != ErrInvalidPlay {
			t.Errorf("Expected clubs to be refused under a spades override, got %s", o.Kind)
		}
		tb.mustPlay("P2", s)
		if tb.gs.CurrentSuitOverride != "" {
			t.Error("Expected the override to clear after the next play")
		}
	})

	t.Run("jack default suit", func(t *testing.T) {
		tb := idiotTable(t, nil, seats...)
		c := tb.card("clubs", "J")
		setup(t, c, tb)
		tb.gs.Players["P1"].Hand = append(tb.gs.Players["P1"].Hand, tb.card("diamonds", "5"), tb.card("diamonds", "6"), tb.card("diamonds", "8"), tb.card("diamonds", "Q"))
		tb.mustPlay("P1", c)
		if tb.gs.CurrentSuitOverride != "diamonds" {
			t.Errorf("Expected the most held suit, got %q", tb.gs.CurrentSuitOverride)
		}
	})

	t.Run("queen reveals a card", func(t *testing.T) {
		tb := idiotTable(t, nil, seats...)
		c := tb.card("hearts", "Q")
		setup(t, c, tb)
		tb.gs.Players["P2"].Hand[0] = tb.card("hearts", "4")
		first := tb.gs.Players["P2"].Hand[0]
		tb.mustPlay("P1", c)
		if !tb.gs.IsRevealed("P2", first.ID) || tb.count("P2") != 4 {
			t.Fatalf("Expected P2's first card revealed and a draw, got %v", tb.gs.RevealedCards)
		}
		if o := tb.play("P2", first); o.Kind != ErrInvalidPlay {
			t.Errorf("Expected a revealed card to be unplayable, got %s", o.Kind)
		}
		if o := tb.engine.Draw(context.Background(), tb.gs, "P2"); !o.Success {
			t.Fatal(o.Message)
		}
		if o := tb.engine.Pass(context.Background(), tb.gs, "P2"); !o.Success {
			t.Fatal(o.Message)
		}
		if tb.gs.IsRevealed("P2", first.ID) {
			t.Error("Expected the mark to clear when P2's turn ended")
		}
	})

	t.Run("ace plays again", func(t *testing.T) {
		tb := idiotTable(t, nil, seats...)
		c := tb.card("hearts", "A")
		setup(t, c, tb)
		h5 := tb.card("hearts", "5")
		sA := tb.card("spades", "A")
		tb.gs.Players["P1"].Hand = append(tb.gs.Players["P1"].Hand, h5, sA)

		out := tb.mustPlay("P1", c)
		if out.NextPlayerID != "P1" || tb.gs.PendingReplay == nil {
			t.Fatalf("Expected P1 to keep the turn, got %s", out.NextPlayerID)
		}
		if o := tb.play("P1", tb.gs.Players["P1"].Hand[0]); o.Kind != ErrInvalidPlay {
			t.Errorf("Expected clubs to break the play-again constraint, got %s", o.Kind)
		}
		out = tb.mustPlay("P1", sA)
		if out.NextPlayerID != "P1" {
			t.Errorf("Expected another ace to chain the replay, got %s", out.NextPlayerID)
		}
		if tb.gs.PendingReplay.Suit != "spades" {
			t.Errorf("Expected the grant to follow the new ace, got %+v", tb.gs.PendingReplay)
		}
		before := tb.count("P1")
		out = tb.engine.Draw(context.Background(), tb.gs, "P1")
		if !out.Success || out.NextPlayerID != "P2" || tb.count("P1") != before+1 {
			t.Errorf("Expected drawing to spend the grant and end the turn, got %+v", out)
		}
		if tb.gs.Chain != nil || tb.gs.PendingReplay != nil {
			t.Error("Expected no chain or grant left")
		}
	})
}

func TestResetForNewRound(t *testing.T) {
	rs, _ := IdiotRuleSet(PresetOptions{})
	eng := NewEngine(rs, EngineConfig{Seed: 3})
	gs, err := eng.NewGame("g1", []string{"P1", "P2", "P3"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.ResetForNewRound(gs); KindOf(err) != ErrGameNotActive {
		t.Errorf("Expected reset of a running round to fail, got %v", err)
	}

	gs.GameOver = true
	gs.WinnerID = "P2"
	gs.Players["P2"].Score = 5
	gs.Players["P3"].AI = true
	gs.Version = 9
	next, err := eng.ResetForNewRound(gs)
	if err != nil {
		t.Fatal(err)
	}
	if next == gs || next.Round != 2 || next.CurrentPlayerID != "P2" || next.GameOver {
		t.Errorf("Expected a fresh round 2 led by P2, got round %d current %s", next.Round, next.CurrentPlayerID)
	}
	if next.Players["P2"].Score != 5 || next.Version != 9 {
		t.Error("Expected scores and version to carry over")
	}
	if !next.Players["P3"].AI {
		t.Error("Expected AI seats to carry over")
	}
	for _, id := range next.Seats {
		if next.Players[id].HandCount() != 4 {
			t.Errorf("Expected 4 cards for %s, got %d", id, next.Players[id].HandCount())
		}
	}
}

// autoPlay drives a game with the default decider until it ends or the step
// budget runs out, calling check after every accepted action.
func autoPlay(t *testing.T, eng *Engine, gs *GameState, steps int, check func(step int)) {
	t.Helper()
	ctx := context.Background()
	for step := 0; step < steps && !gs.GameOver; step++ {
		actor := gs.CurrentPlayerID
		played := false
		for _, c := range append([]Card(nil), gs.Player(actor).Hand...) {
			if eng.PlayCard(ctx, gs, PlayRequest{PlayerID: actor, CardID: c.ID}).Success {
				played = true
				break
			}
		}
		if !played {
			var out Outcome
			if gs.DrewThisTurn {
				out = eng.Pass(ctx, gs, actor)
			} else {
				out = eng.Draw(ctx, gs, actor)
			}
			if !out.Success {
				t.Fatalf("step %d: %s could not act: %s", step, actor, out.Message)
			}
		}
		check(step)
	}
}

func TestCardsAreConserved(t *testing.T) {
	for _, build := range []func(PresetOptions) (*RuleSet, error){UnoRuleSet, IdiotRuleSet} {
		rs, _ := build(PresetOptions{})
		for seed := int64(1); seed <= 5; seed++ {
			eng := NewEngine(rs, EngineConfig{Seed: seed})
			gs, err := eng.NewGame("g", []string{"P1", "P2", "P3", "P4"})
			if err != nil {
				t.Fatal(err)
			}
			autoPlay(t, eng, gs, 400, func(step int) {
				seen := make(map[int]bool)
				for _, c := range gs.AllCards() {
					if seen[c.ID] {
						t.Fatalf("%s seed %d step %d: card %d is in two places", rs.ID, seed, step, c.ID)
					}
					seen[c.ID] = true
				}
				if len(seen) != rs.DeckSize() {
					t.Fatalf("%s seed %d step %d: expected %d cards, found %d", rs.ID, seed, step, rs.DeckSize(), len(seen))
				}
			})
		}
	}
}

func TestRandomDeciderIsSeeded(t *testing.T) {
	d := RandomDecider{Rand: rand.New(rand.NewSource(5))}
	req := DecisionRequest{Kind: DecisionChooseSuit, PlayerID: "P1", Options: []string{"hearts", "spades"}}
	a, err := d.Decide(context.Background(), nil, req)
	if err != nil || req.Check(a) != nil {
		t.Errorf("Expected a valid random suit, got %+v %v", a, err)
	}
	if _, err := d.Decide(context.Background(), nil, DecisionRequest{}); err == nil {
		t.Error("Expected an error without options")
	}
}
