package game

import "context"

// AutoPlay makes one move for playerID the way a simple bot would: answer
// its pending decision with the default, otherwise play the first playable
// card (announcing when it leaves one), otherwise draw, otherwise pass.
func (e *Engine) AutoPlay(ctx context.Context, gs *GameState, playerID string) Outcome {
	if pd := gs.Pending; pd != nil && !gs.GameOver {
		if pd.Request.PlayerID != playerID {
			return failure(ruleErr(ErrDecisionPending, "waiting for %s from %s", pd.Request.Kind, pd.Request.PlayerID))
		}
		return e.ResolveDefault(ctx, gs)
	}
	if err := e.validateTurn(gs, playerID); err != nil {
		return failure(err)
	}

	ps := gs.Player(playerID)
	for _, c := range ps.Hand {
		if gs.IsRevealed(playerID, c.ID) || !playable(gs, e.Rules, playerID, c) {
			continue
		}
		out := e.PlayCard(ctx, gs, PlayRequest{PlayerID: playerID, CardID: c.ID, Announce: ps.HandCount() == 2})
		if out.Success {
			return out
		}
	}

	exhausted := len(gs.DrawPile) == 0 && len(gs.DiscardPile) <= 1
	if gs.DrewThisTurn || gs.PendingReplay != nil || exhausted {
		return e.Pass(ctx, gs, playerID)
	}
	return e.Draw(ctx, gs, playerID)
}

// Actor returns who the game is waiting on: the owner of a pending decision,
// otherwise the current player. It is empty once the game is over.
func (gs *GameState) Actor() string {
	switch {
	case gs.GameOver:
		return ""
	case gs.Pending != nil:
		return gs.Pending.Request.PlayerID
	}
	return gs.CurrentPlayerID
}
