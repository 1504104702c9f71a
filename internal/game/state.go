package game

import "slices"

// PlayerState is one seat's hand and bookkeeping.
type PlayerState struct {
	PlayerID         string `json:"player_id"`
	Hand             []Card `json:"hand"`
	Score            int    `json:"score"`
	AnnouncedOneCard bool   `json:"announced_one_card"`
	Penalties        int    `json:"penalties"`
	// AI seats are played by the host with Engine.AutoPlay.
	AI bool `json:"ai,omitempty"`
}

// HandCount returns the number of cards in hand.
func (p *PlayerState) HandCount() int {
	return len(p.Hand)
}

// FindCard returns the index of the card with the given instance id, or -1.
func (p *PlayerState) FindCard(id int) int {
	return slices.IndexFunc(p.Hand, func(c Card) bool { return c.ID == id })
}

// RemoveCard takes a card out of the hand by instance id.
func (p *PlayerState) RemoveCard(id int) (Card, bool) {
	i := p.FindCard(id)
	if i < 0 {
		return Card{}, false
	}
	c := p.Hand[i]
	p.Hand = slices.Delete(p.Hand, i, i+1)
	return c, true
}

// HandValue sums RankValue over the hand.
func (p *PlayerState) HandValue() int {
	total := 0
	for _, c := range p.Hand {
		total += RankValue(c.Rank)
	}
	return total
}

// ChainLink is one play in a chain.
type ChainLink struct {
	Rank     string `json:"rank"`
	Suit     string `json:"suit"`
	PlayerID string `json:"player_id"`
}

// ChainContext tracks an open counter sequence until it resolves.
type ChainContext struct {
	InitiatingRank       string      `json:"initiating_rank"`
	InitiatingSuit       string      `json:"initiating_suit"`
	CurrentPenaltyAmount int         `json:"current_penalty_amount"`
	TargetPlayerID       string      `json:"target_player_id"`
	History              []ChainLink `json:"history"`
}

// Counters returns how many counters have been played into the chain.
func (c *ChainContext) Counters() int {
	return len(c.History) - 1
}

// PlayAgainGrant lets PlayerID play once more before the turn advances.
// The replayed card must share Suit (when SameSuit) or have a rank in
// ChainWith; with neither constraint any card is allowed.
type PlayAgainGrant struct {
	PlayerID  string   `json:"player_id"`
	SameSuit  bool     `json:"same_suit,omitempty"`
	Suit      string   `json:"suit,omitempty"`
	ChainWith []string `json:"chain_with,omitempty"`
}

// Allows reports whether c satisfies the grant's constraints.
func (g *PlayAgainGrant) Allows(c Card) bool {
	if !g.SameSuit && len(g.ChainWith) == 0 {
		return true
	}
	if g.SameSuit && c.Suit == g.Suit {
		return true
	}
	return slices.Contains(g.ChainWith, c.Rank)
}

// PendingDecision is a play suspended on a decision. The play is re-run
// from the committed state once the decision is answered.
type PendingDecision struct {
	Request DecisionRequest `json:"request"`
	Play    PlayRequest     `json:"play"`
}

// GameState is the whole mutable state of one game.
type GameState struct {
	GameID    string `json:"game_id"`
	RuleSetID string `json:"rule_set_id"`
	Round     int    `json:"round"`
	Turn      int    `json:"turn"`
	Phase     Phase  `json:"phase"`

	Seats           []string                `json:"seats"`
	Players         map[string]*PlayerState `json:"player_states"`
	CurrentPlayerID string                  `json:"current_player_id"`
	NextPlayerID    string                  `json:"next_player_id"`
	Direction       Direction               `json:"direction"`
	SkippedPlayers  []string                `json:"skipped_players,omitempty"`

	DiscardPile []Card `json:"discard_pile"` // top is last element
	DrawPile    []Card `json:"draw_pile"`    // top is last element

	GameOver  bool   `json:"game_over"`
	WinnerID  string `json:"winner_id,omitempty"`
	Abandoned bool   `json:"abandoned,omitempty"`

	// Optional per-game state. Empty string and nil mean absent.
	CurrentSuitOverride string           `json:"current_suit_override,omitempty"`
	RevealedCards       map[string][]int `json:"revealed_cards,omitempty"`
	Chain               *ChainContext    `json:"chain_context,omitempty"`
	PendingReplay       *PlayAgainGrant  `json:"pending_replay,omitempty"`
	Pending             *PendingDecision `json:"pending_decision,omitempty"`
	DeferredWin         *DeferredWin     `json:"deferred_win,omitempty"`

	LastCard     *Card  `json:"last_card,omitempty"`
	LastPlayerID string `json:"last_player_id,omitempty"`
	DrewThisTurn bool   `json:"drew_this_turn,omitempty"`

	// Version is the optimistic-lock counter maintained by storage.
	Version int64 `json:"version"`
}

// DeferredWin is a player who emptied their hand with a card that waits for
// the chain it opened to resolve before the win counts.
type DeferredWin struct {
	PlayerID string `json:"player_id"`
	Card     Card   `json:"card"`
}

// NewGameState creates an empty state for the given seats.
func NewGameState(gameID, ruleSetID string, seats []string, dir Direction) *GameState {
	gs := &GameState{
		GameID:        gameID,
		RuleSetID:     ruleSetID,
		Round:         1,
		Seats:         slices.Clone(seats),
		Players:       make(map[string]*PlayerState, len(seats)),
		Direction:     dir,
		RevealedCards: make(map[string][]int),
	}
	for _, id := range seats {
		gs.Players[id] = &PlayerState{PlayerID: id}
	}
	return gs
}

// Player returns the state for a player id, or nil.
func (gs *GameState) Player(id string) *PlayerState {
	return gs.Players[id]
}

// CurrentPlayer returns the player whose turn it is.
func (gs *GameState) CurrentPlayer() *PlayerState {
	return gs.Players[gs.CurrentPlayerID]
}

// SeatIndex returns the seat position of a player, or -1.
func (gs *GameState) SeatIndex(id string) int {
	return slices.Index(gs.Seats, id)
}

// SeatAt returns the player steps seats away from id around the ring.
func (gs *GameState) SeatAt(id string, steps int) string {
	n := len(gs.Seats)
	i := gs.SeatIndex(id)
	if n == 0 || i < 0 {
		return ""
	}
	return gs.Seats[((i+steps)%n+n)%n]
}

// DiscardTop returns the top of the discard pile.
func (gs *GameState) DiscardTop() (Card, bool) {
	if len(gs.DiscardPile) == 0 {
		return Card{}, false
	}
	return gs.DiscardPile[len(gs.DiscardPile)-1], true
}

// EffectiveSuit is the suit override if set, else the discard top's suit.
func (gs *GameState) EffectiveSuit() string {
	if gs.CurrentSuitOverride != "" {
		return gs.CurrentSuitOverride
	}
	top, _ := gs.DiscardTop()
	return top.Suit
}

func (gs *GameState) popDraw() (Card, bool) {
	if len(gs.DrawPile) == 0 {
		return Card{}, false
	}
	c := gs.DrawPile[len(gs.DrawPile)-1]
	gs.DrawPile = gs.DrawPile[:len(gs.DrawPile)-1]
	return c, true
}

// Reshuffle moves every discard except the top card into a freshly shuffled
// draw pile. It does nothing while the draw pile still has cards.
func (gs *GameState) Reshuffle(rng Rand) bool {
	if len(gs.DrawPile) > 0 || len(gs.DiscardPile) <= 1 {
		return false
	}
	top := gs.DiscardPile[len(gs.DiscardPile)-1]
	gs.DrawPile = slices.Clone(gs.DiscardPile[:len(gs.DiscardPile)-1])
	gs.DiscardPile = []Card{top}
	Shuffle(gs.DrawPile, rng)
	return true
}

// DrawCard takes the top card of the draw pile, reshuffling the discards
// when it is empty. It returns false when both piles are exhausted.
func (gs *GameState) DrawCard(rng Rand) (Card, bool) {
	if c, ok := gs.popDraw(); ok {
		return c, true
	}
	gs.Reshuffle(rng)
	return gs.popDraw()
}

// CanPlay reports whether a card may be laid on the discard pile under the
// normal matching rule.
func (gs *GameState) CanPlay(rs *RuleSet, c Card) bool {
	top, ok := gs.DiscardTop()
	if !ok {
		return true
	}
	if rs.IsWildRank(c.Rank) {
		return true
	}
	if gs.CurrentSuitOverride == "" && top.IsSpecial() {
		return true
	}
	if rs.Matches("suit") && c.Suit == gs.EffectiveSuit() {
		return true
	}
	return rs.Matches("value") && c.Rank == top.Rank
}

// AdvanceTurn moves the turn to the next eligible player along the current
// direction. Skipped players passed on the way are consumed; the skip set is
// empty afterwards. It returns the new current player.
func (gs *GameState) AdvanceTurn() string {
	id := gs.CurrentPlayerID
	for {
		id = gs.SeatAt(id, int(gs.Direction))
		i := slices.Index(gs.SkippedPlayers, id)
		if i < 0 {
			break
		}
		gs.SkippedPlayers = slices.Delete(gs.SkippedPlayers, i, i+1)
	}
	gs.SkippedPlayers = nil
	gs.CurrentPlayerID = id
	gs.NextPlayerID = gs.SeatAt(id, int(gs.Direction))
	return id
}

// IsRevealed reports whether a card in a player's hand is marked unplayable.
func (gs *GameState) IsRevealed(playerID string, cardID int) bool {
	return slices.Contains(gs.RevealedCards[playerID], cardID)
}

func (gs *GameState) reveal(playerID string, cardID int) {
	if gs.RevealedCards == nil {
		gs.RevealedCards = make(map[string][]int)
	}
	if !gs.IsRevealed(playerID, cardID) {
		gs.RevealedCards[playerID] = append(gs.RevealedCards[playerID], cardID)
	}
}

// AllCards returns every card instance in hands and piles.
func (gs *GameState) AllCards() []Card {
	var out []Card
	for _, id := range gs.Seats {
		out = append(out, gs.Players[id].Hand...)
	}
	out = append(out, gs.DiscardPile...)
	out = append(out, gs.DrawPile...)
	return out
}

// Clone returns a deep copy of the state.
func (gs *GameState) Clone() *GameState {
	c := *gs
	c.Seats = slices.Clone(gs.Seats)
	c.SkippedPlayers = slices.Clone(gs.SkippedPlayers)
	c.DiscardPile = slices.Clone(gs.DiscardPile)
	c.DrawPile = slices.Clone(gs.DrawPile)
	c.Players = make(map[string]*PlayerState, len(gs.Players))
	for id, p := range gs.Players {
		pc := *p
		pc.Hand = slices.Clone(p.Hand)
		c.Players[id] = &pc
	}
	c.RevealedCards = make(map[string][]int, len(gs.RevealedCards))
	for id, cards := range gs.RevealedCards {
		c.RevealedCards[id] = slices.Clone(cards)
	}
	if gs.Chain != nil {
		ch := *gs.Chain
		ch.History = slices.Clone(gs.Chain.History)
		c.Chain = &ch
	}
	if gs.PendingReplay != nil {
		g := *gs.PendingReplay
		g.ChainWith = slices.Clone(gs.PendingReplay.ChainWith)
		c.PendingReplay = &g
	}
	if gs.Pending != nil {
		p := *gs.Pending
		p.Request.Options = slices.Clone(gs.Pending.Request.Options)
		c.Pending = &p
	}
	if gs.LastCard != nil {
		lc := *gs.LastCard
		c.LastCard = &lc
	}
	if gs.DeferredWin != nil {
		dw := *gs.DeferredWin
		c.DeferredWin = &dw
	}
	return &c
}
