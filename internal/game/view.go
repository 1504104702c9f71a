package game

// CardView is a card as shown to a client.
type CardView struct {
	ID       int    `json:"id"`
	Suit     string `json:"suit"`
	Rank     string `json:"rank"`
	Name     string `json:"name"`
	Revealed bool   `json:"revealed,omitempty"`
	Playable bool   `json:"playable,omitempty"`
}

// PlayerView is one seat as seen by the viewer. Hand is only filled for the
// viewer's own seat; revealed cards of other players are listed in Revealed.
type PlayerView struct {
	PlayerID         string     `json:"player_id"`
	HandCount        int        `json:"hand_count"`
	Hand             []CardView `json:"hand,omitempty"`
	Revealed         []CardView `json:"revealed,omitempty"`
	Score            int        `json:"score"`
	AnnouncedOneCard bool       `json:"announced_one_card"`
	Penalties        int        `json:"penalties"`
	AI               bool       `json:"ai,omitempty"`
}

// ChainView summarizes an open chain.
type ChainView struct {
	InitiatingRank string   `json:"initiating_rank"`
	InitiatingSuit string   `json:"initiating_suit"`
	PendingAmount  int      `json:"pending_amount"`
	TargetPlayerID string   `json:"target_player_id"`
	Counters       int      `json:"counters"`
	Players        []string `json:"players"`
}

// StateView is the game from one player's perspective.
type StateView struct {
	GameID          string           `json:"game_id"`
	RuleSetID       string           `json:"rule_set_id"`
	Round           int              `json:"round"`
	Turn            int              `json:"turn"`
	Phase           string           `json:"phase"`
	Version         int64            `json:"version"`
	CurrentPlayerID string           `json:"current_player_id"`
	NextPlayerID    string           `json:"next_player_id"`
	IsYourTurn      bool             `json:"is_your_turn"`
	Direction       Direction        `json:"direction"`
	DiscardTop      *CardView        `json:"discard_top,omitempty"`
	SuitOverride    string           `json:"current_suit_override,omitempty"`
	DrawPileCount   int              `json:"draw_pile_count"`
	GameOver        bool             `json:"game_over"`
	WinnerID        string           `json:"winner_id,omitempty"`
	Abandoned       bool             `json:"abandoned,omitempty"`
	Players         []PlayerView     `json:"players"`
	Chain           *ChainView       `json:"chain,omitempty"`
	PlayAgain       bool             `json:"play_again,omitempty"`
	Decision        *DecisionRequest `json:"decision,omitempty"`
	WaitingOn       string           `json:"waiting_on,omitempty"`
}

func cardView(c Card) CardView {
	return CardView{ID: c.ID, Suit: c.Suit, Rank: c.Rank, Name: c.String()}
}

// Serialize builds the view of gs for forPlayerID. Only that player's hand is
// included; every other seat shows a count plus any revealed cards. An empty
// or unknown forPlayerID yields a spectator view. rs may be nil, in which
// case playable flags are left unset.
func Serialize(gs *GameState, rs *RuleSet, forPlayerID string) StateView {
	v := StateView{
		GameID:          gs.GameID,
		RuleSetID:       gs.RuleSetID,
		Round:           gs.Round,
		Turn:            gs.Turn,
		Phase:           gs.Phase.String(),
		Version:         gs.Version,
		CurrentPlayerID: gs.CurrentPlayerID,
		NextPlayerID:    gs.NextPlayerID,
		IsYourTurn:      forPlayerID != "" && gs.CurrentPlayerID == forPlayerID,
		Direction:       gs.Direction,
		SuitOverride:    gs.CurrentSuitOverride,
		DrawPileCount:   len(gs.DrawPile),
		GameOver:        gs.GameOver,
		WinnerID:        gs.WinnerID,
		Abandoned:       gs.Abandoned,
	}
	if top, ok := gs.DiscardTop(); ok {
		cv := cardView(top)
		v.DiscardTop = &cv
	}

	for _, id := range gs.Seats {
		ps := gs.Player(id)
		pv := PlayerView{
			PlayerID:         id,
			HandCount:        ps.HandCount(),
			Score:            ps.Score,
			AI:               ps.AI,
			AnnouncedOneCard: ps.AnnouncedOneCard,
			Penalties:        ps.Penalties,
		}
		for _, c := range ps.Hand {
			revealed := gs.IsRevealed(id, c.ID)
			if id == forPlayerID {
				cv := cardView(c)
				cv.Revealed = revealed
				cv.Playable = rs != nil && v.IsYourTurn && gs.Pending == nil && !revealed && playable(gs, rs, id, c)
				pv.Hand = append(pv.Hand, cv)
			} else if revealed {
				cv := cardView(c)
				cv.Revealed = true
				pv.Revealed = append(pv.Revealed, cv)
			}
		}
		v.Players = append(v.Players, pv)
	}

	if ch := gs.Chain; ch != nil {
		cv := &ChainView{
			InitiatingRank: ch.InitiatingRank,
			InitiatingSuit: ch.InitiatingSuit,
			PendingAmount:  ch.CurrentPenaltyAmount,
			TargetPlayerID: ch.TargetPlayerID,
			Counters:       ch.Counters(),
		}
		for _, l := range ch.History {
			cv.Players = append(cv.Players, l.PlayerID)
		}
		v.Chain = cv
	}
	if g := gs.PendingReplay; g != nil && g.PlayerID == forPlayerID {
		v.PlayAgain = true
	}
	if pd := gs.Pending; pd != nil {
		v.WaitingOn = pd.Request.PlayerID
		if pd.Request.PlayerID == forPlayerID {
			req := pd.Request
			v.Decision = &req
		}
	}
	return v
}

// playable mirrors the engine's validation for a single card.
func playable(gs *GameState, rs *RuleSet, playerID string, c Card) bool {
	if g := gs.PendingReplay; g != nil && g.PlayerID == playerID {
		return g.Allows(c)
	}
	if gs.Chain != nil {
		s := NewStrategy(rs.Variant)
		if s.Chain.IsCounter(gs, rs, c) {
			return s.Chain.ValidateCounter(gs, rs, c) == nil
		}
	}
	return gs.CanPlay(rs, c)
}
