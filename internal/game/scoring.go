package game

import (
	"maps"

	"github.com/peterkuimelis/cardrules/internal/log"
)

// evaluateWin checks the configured win conditions after a play. It returns
// true when the game ended.
func (e *Engine) evaluateWin(p *Ply) bool {
	rs := e.Rules
	gs := p.gs
	if !rs.HasWinCondition(WinEmptyHand) {
		return false
	}
	winner := emptyHanded(gs, p.actor)
	if winner == "" {
		gs.DeferredWin = nil
		return false
	}

	finish, ok := e.finishingCard(gs, winner)
	if ok && e.winDeferred(gs, winner, finish) {
		if gs.DeferredWin == nil {
			gs.DeferredWin = &DeferredWin{PlayerID: winner, Card: finish}
			p.Record("win_deferred", finish.String(), []string{winner}, 0)
		}
		return false
	}

	gs.GameOver = true
	gs.WinnerID = winner
	gs.Phase = PhaseGameOver
	gs.Chain = nil
	gs.PendingReplay = nil
	gs.SkippedPlayers = nil
	gs.DeferredWin = nil

	ws := gs.Player(winner)
	if ok {
		if pts := e.lastCardPoints(finish); pts != 0 {
			ws.Score += pts
			p.Record("last_card_points", finish.String(), []string{winner}, pts)
		}
	}
	if rs.HasWinCondition(WinSpecialLastCard) || rs.HasWinCondition(WinEqualSumPenalty) {
		if pen := e.equalSumPenalty(gs, winner); pen != 0 {
			ws.Score += pen
			ws.Penalties++
			p.Record("equal_sum_penalty", "", []string{winner}, pen)
			p.Emit(log.NewPenaltyEvent(gs.Turn, gs.Phase.String(), winner, pen, "equal hand sums"))
		}
	}

	scores := make(map[string]int, len(gs.Players))
	for id, ps := range gs.Players {
		scores[id] = ps.Score
	}
	p.Emit(log.NewGameEndedEvent(gs.Turn, winner, scores))
	return true
}

// emptyHanded returns the first player with no cards, checking the actor
// first and then the seats in order.
func emptyHanded(gs *GameState, actor string) string {
	if ps := gs.Player(actor); ps != nil && ps.HandCount() == 0 {
		return actor
	}
	for _, id := range gs.Seats {
		if gs.Player(id).HandCount() == 0 {
			return id
		}
	}
	return ""
}

// finishingCard returns the card the winner emptied their hand with: the
// deferred card if their win was waiting on a chain, otherwise the last card
// played when they played it.
func (e *Engine) finishingCard(gs *GameState, winner string) (Card, bool) {
	if dw := gs.DeferredWin; dw != nil && dw.PlayerID == winner {
		return dw.Card, true
	}
	if gs.LastCard != nil && gs.LastPlayerID == winner {
		return *gs.LastCard, true
	}
	return Card{}, false
}

// winDeferred reports whether the finishing card is configured to continue
// if countered and the chain it opened is still unresolved. Counters played
// by others keep the chain open, so the win keeps waiting.
func (e *Engine) winDeferred(gs *GameState, winner string, finish Card) bool {
	lp, ok := e.Rules.PlayRules.LastCardSpecialPoints[finish.Rank]
	if !ok || !lp.ContinueIfCountered {
		return false
	}
	ch := gs.Chain
	return ch != nil && len(ch.History) > 0 && ch.History[0].PlayerID == winner
}

func (e *Engine) lastCardPoints(c Card) int {
	if lp, ok := e.Rules.PlayRules.LastCardSpecialPoints[c.Rank]; ok {
		return lp.Points
	}
	if a, ok := e.Rules.ActionFor(c); ok {
		return a.PointsIfLast
	}
	return 0
}

// equalSumPenalty groups the losers by remaining hand value. The largest
// group decides the penalty: two equal sums cost two_players, three cost
// three_players.
func (e *Engine) equalSumPenalty(gs *GameState, winner string) int {
	cfg := e.Rules.PlayRules.EqualSumPenalty
	if cfg == nil {
		return 0
	}
	counts := make(map[int]int)
	for _, id := range gs.Seats {
		if id == winner {
			continue
		}
		counts[gs.Player(id).HandValue()]++
	}
	largest := 0
	for n := range maps.Values(counts) {
		largest = max(largest, n)
	}
	switch largest {
	case 2:
		return cfg.TwoPlayers
	case 3:
		return cfg.ThreePlayers
	}
	return 0
}
