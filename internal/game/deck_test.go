package game

import (
	"math/rand"
	"testing"
)

func TestBuildDeckSizeAndIDs(t *testing.T) {
	uno, _ := UnoRuleSet(PresetOptions{})
	idiot, _ := IdiotRuleSet(PresetOptions{})
	small := DeckConfig{Suits: []string{"red"}, Values: []string{"1", "2"}, SpecialCards: []SpecialCard{{Type: "joker", Count: 3}}}

	for name, dc := range map[string]DeckConfig{
		"uno":   uno.DeckConfiguration,
		"idiot": idiot.DeckConfiguration,
		"small": small,
	} {
		deck := BuildDeck(dc)
		want := len(dc.Suits) * len(dc.Values)
		for _, s := range dc.SpecialCards {
			want += s.Count
		}
		if len(deck) != want {
			t.Errorf("%s: expected %d cards, got %d", name, want, len(deck))
		}
		seen := make(map[int]bool)
		for _, c := range deck {
			if seen[c.ID] {
				t.Errorf("%s: duplicate instance id %d", name, c.ID)
			}
			seen[c.ID] = true
		}
	}

	deck := BuildDeck(uno.DeckConfiguration)
	wilds := 0
	for _, c := range deck {
		if c.Key() == "special_wild" {
			wilds++
		}
	}
	if wilds != 4 {
		t.Errorf("Expected 4 wild cards, got %d", wilds)
	}

	joker := BuildDeck(small)[2]
	if joker.Suit != SpecialSuit || joker.Rank != "joker" {
		t.Errorf("Expected special card without value to use its type as rank, got %s", joker)
	}
}

func TestShuffleIsReproducible(t *testing.T) {
	rs, _ := IdiotRuleSet(PresetOptions{})
	a := BuildDeck(rs.DeckConfiguration)
	b := BuildDeck(rs.DeckConfiguration)
	Shuffle(a, rand.New(rand.NewSource(42)))
	Shuffle(b, rand.New(rand.NewSource(42)))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different order at %d: %s vs %s", i, a[i], b[i])
		}
	}

	moved := false
	for i, c := range a {
		if c.ID != i+1 {
			moved = true
			break
		}
	}
	if !moved {
		t.Error("Expected shuffle to change the deck order")
	}
}

func TestDealRoundRobin(t *testing.T) {
	gs := NewGameState("g", "r", []string{"P1", "P2", "P3"}, Clockwise)
	for _, id := range gs.Seats {
		gs.Players[id] = &PlayerState{PlayerID: id}
	}
	gs.DrawPile = BuildDeck(DeckConfig{Suits: []string{"hearts"}, Values: []string{"1", "2", "3", "4", "5", "6", "7", "8"}})

	deal(gs, 2)

	// draw pile top is the last element, so ids come off 8, 7, 6...
	if got := gs.Players["P1"].Hand; got[0].ID != 8 || got[1].ID != 5 {
		t.Errorf("Expected P1 to receive cards 8 and 5, got %v", got)
	}
	if got := gs.Players["P3"].Hand; got[0].ID != 6 || got[1].ID != 3 {
		t.Errorf("Expected P3 to receive cards 6 and 3, got %v", got)
	}
	if len(gs.DiscardPile) != 1 || gs.DiscardPile[0].ID != 2 {
		t.Errorf("Expected card 2 as the initial discard, got %v", gs.DiscardPile)
	}
	if len(gs.DrawPile) != 1 {
		t.Errorf("Expected 1 card left to draw, got %d", len(gs.DrawPile))
	}
}
