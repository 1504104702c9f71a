package game

// Rand is the randomness source used for shuffling. *math/rand.Rand
// satisfies it; tests inject a seeded one.
type Rand interface {
	Intn(n int) int
}

// BuildDeck expands a deck configuration into an ordered list of cards:
// every suit × value, then each declared special card Count times.
// Instance ids are assigned sequentially from 1.
func BuildDeck(dc DeckConfig) []Card {
	deck := make([]Card, 0, len(dc.Suits)*len(dc.Values))
	id := 0
	for _, suit := range dc.Suits {
		for _, value := range dc.Values {
			id++
			deck = append(deck, Card{ID: id, Suit: suit, Rank: value})
		}
	}
	for _, sc := range dc.SpecialCards {
		for i := 0; i < sc.Count; i++ {
			id++
			deck = append(deck, Card{ID: id, Suit: SpecialSuit, Rank: sc.Rank()})
		}
	}
	return deck
}

// Shuffle performs an in-place Fisher-Yates shuffle.
func Shuffle(cards []Card, rng Rand) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// deal hands out n cards to each seat round-robin from the end of the draw
// pile, then turns one card face up as the initial discard.
func deal(gs *GameState, n int) {
	for round := 0; round < n; round++ {
		for _, id := range gs.Seats {
			c, ok := gs.popDraw()
			if !ok {
				return
			}
			ps := gs.Players[id]
			ps.Hand = append(ps.Hand, c)
		}
	}
	if c, ok := gs.popDraw(); ok {
		gs.DiscardPile = append(gs.DiscardPile, c)
	}
}
