package game

import (
	"slices"

	"github.com/peterkuimelis/cardrules/internal/log"
)

// applyEffect dispatches on the action's effect kind. When the action opens
// a chain, draws are deferred into the chain's pending penalty instead of
// being paid now.
func (e *Engine) applyEffect(p *Ply, card Card, a CardAction, targets []string, deferDraw bool) error {
	gs := p.gs
	tf := e.Rules.TurnFlow
	name := card.String()

	switch a.Effect {
	case EffectNone:
		return nil

	case EffectDrawCards:
		if deferDraw {
			return nil
		}
		for _, t := range targets {
			p.Draw(t, a.DrawAmount(), name)
		}

	case EffectSkipTurn:
		if !tf.SkipAllowed {
			return nil
		}
		skip(gs, targets)

	case EffectReverseDirection:
		if !tf.CanReverse {
			return nil
		}
		gs.Direction = gs.Direction.Reversed()

	case EffectGiveCard:
		for _, t := range targets {
			p.Draw(t, 1, name)
		}

	case EffectChooseSuit:
		ans, err := p.Decide(DecisionRequest{
			Kind:     DecisionChooseSuit,
			PlayerID: p.actor,
			Options:  slices.Clone(e.Rules.DeckConfiguration.Suits),
			Prompt:   "Choose the suit to play next",
		})
		if err != nil {
			return err
		}
		gs.CurrentSuitOverride = ans.Suit

	case EffectRevealCardAndDraw:
		for _, t := range targets {
			ps := gs.Player(t)
			for _, c := range ps.Hand {
				if !gs.IsRevealed(t, c.ID) {
					gs.reveal(t, c.ID)
					break
				}
			}
			p.Draw(t, 1, name)
		}

	case EffectDrawAndSkip:
		if !deferDraw {
			for _, t := range targets {
				p.Draw(t, a.DrawAmount(), name)
			}
		}
		if tf.SkipAllowed {
			skip(gs, targets)
		}

	case EffectPlayAgain:
		if !tf.PlayAgainAllowed {
			return nil
		}
		gs.PendingReplay = &PlayAgainGrant{
			PlayerID:  p.actor,
			SameSuit:  a.SameSuit,
			Suit:      card.Suit,
			ChainWith: slices.Clone(a.ChainWith),
		}

	case EffectChooseNextPlayer:
		if len(targets) > 0 {
			p.nextOverride = targets[0]
		}
	}

	amount := 0
	if (a.Effect == EffectDrawCards || a.Effect == EffectDrawAndSkip) && !deferDraw {
		amount = a.DrawAmount()
	}
	p.Record(a.Effect.String(), name, targets, amount)
	p.Emit(log.NewEffectEvent(gs.Turn, gs.Phase.String(), p.actor, name, a.Effect.String(), targets, amount))
	return nil
}

func skip(gs *GameState, targets []string) {
	for _, t := range targets {
		if !slices.Contains(gs.SkippedPlayers, t) {
			gs.SkippedPlayers = append(gs.SkippedPlayers, t)
		}
	}
}
