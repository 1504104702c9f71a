package game

import (
	"fmt"
	"slices"

	"github.com/peterkuimelis/cardrules/internal/log"
)

// ChainHandler decides what counts as a counter to an open chain and what a
// counter does.
type ChainHandler interface {
	// IsCounter reports whether the card is configured to counter the open chain.
	IsCounter(gs *GameState, rs *RuleSet, c Card) bool
	// ValidateCounter checks the extra rules a configured counter must meet.
	ValidateCounter(gs *GameState, rs *RuleSet, c Card) error
	// HandleCounter applies a validated counter to the open chain.
	HandleCounter(p *Ply, c Card, a CardAction) error
}

// openChain starts a counter sequence for a chain-action card. Draw effects
// are held back as the pending penalty.
func (e *Engine) openChain(p *Ply, c Card, a CardAction, targets []string) {
	gs := p.gs
	amount := 0
	if a.Effect == EffectDrawCards || a.Effect == EffectDrawAndSkip {
		amount = a.DrawAmount()
	}
	target := p.actor
	if len(targets) > 0 {
		target = targets[0]
	}
	gs.Chain = &ChainContext{
		InitiatingRank:       c.Rank,
		InitiatingSuit:       c.Suit,
		CurrentPenaltyAmount: amount,
		TargetPlayerID:       target,
		History:              []ChainLink{{Rank: c.Rank, Suit: c.Suit, PlayerID: p.actor}},
	}
	p.Record("chain_opened", c.String(), []string{target}, amount)
	p.Emit(log.NewChainOpenedEvent(gs.Turn, p.actor, c.String(), target, amount))
}

// resolveChain pays the pending penalty to the chain target and closes it.
func (e *Engine) resolveChain(p *Ply) {
	closeChain(p, p.gs.Chain.TargetPlayerID, p.gs.Chain.CurrentPenaltyAmount)
}

func closeChain(p *Ply, target string, amount int) {
	gs := p.gs
	gs.Phase = PhaseChainResolution
	gs.Chain = nil
	if amount > 0 {
		p.Draw(target, amount, "chain penalty")
	}
	p.Record("chain_resolved", "", []string{target}, amount)
	p.Emit(log.NewChainResolvedEvent(gs.Turn, target, amount))
}

func pushLink(p *Ply, c Card) {
	ch := p.gs.Chain
	ch.History = append(ch.History, ChainLink{Rank: c.Rank, Suit: c.Suit, PlayerID: p.actor})
}

// --- shared counter rules ---

func isCounter(gs *GameState, rs *RuleSet, c Card) bool {
	ch := gs.Chain
	if ch == nil {
		return false
	}
	a, ok := rs.ActionFor(c)
	if !ok || a.CounterTo != ch.InitiatingRank {
		return false
	}
	opener, ok := rs.ActionFor(Card{Suit: ch.InitiatingSuit, Rank: ch.InitiatingRank})
	if ok && len(opener.CounterCards) > 0 && !slices.Contains(opener.CounterCards, c.Rank) {
		return false
	}
	return true
}

func validateCounter(gs *GameState, rs *RuleSet, c Card) error {
	ch := gs.Chain
	if ch == nil {
		return ruleErr(ErrInvalidCounter, "no chain is open")
	}
	a, _ := rs.ActionFor(c)
	opener, _ := rs.ActionFor(Card{Suit: ch.InitiatingSuit, Rank: ch.InitiatingRank})
	sameSuit := a.CounterSameSuit || opener.CounterSameSuit
	if ch.Counters() == 0 && sameSuit && c.Suit != ch.InitiatingSuit {
		return ruleErr(ErrInvalidCounter, "first counter to %s %s must be %s", ch.InitiatingRank, ch.InitiatingSuit, ch.InitiatingSuit)
	}
	return nil
}

// bounce reverses play and makes whoever played the countered card draw the
// card's bounce_amount, or the pending penalty when none is configured.
func bounce(p *Ply, c Card, a CardAction) {
	gs := p.gs
	ch := gs.Chain
	victim := ch.History[len(ch.History)-1].PlayerID
	amount := a.BounceAmount
	if amount <= 0 {
		amount = ch.CurrentPenaltyAmount
	}
	pushLink(p, c)
	gs.Direction = gs.Direction.Reversed()
	p.Record(CounterEffectReverseAndBounce, c.String(), []string{victim}, amount)
	p.Emit(log.NewChainCounteredEvent(gs.Turn, p.actor, c.String(), fmt.Sprintf("reverse and bounce %d to %s", amount, victim), amount))
	closeChain(p, victim, amount)
}

// --- BasicChain ---

// BasicChain supports bounce counters only. Any other counter keeps the chain
// open with its target and penalty unchanged.
type BasicChain struct{}

func (BasicChain) IsCounter(gs *GameState, rs *RuleSet, c Card) bool {
	return isCounter(gs, rs, c)
}

func (BasicChain) ValidateCounter(gs *GameState, rs *RuleSet, c Card) error {
	return validateCounter(gs, rs, c)
}

func (BasicChain) HandleCounter(p *Ply, c Card, a CardAction) error {
	if a.CounterEffect == CounterEffectReverseAndBounce {
		bounce(p, c, a)
		return nil
	}
	pushLink(p, c)
	ch := p.gs.Chain
	p.Record("chain_countered", c.String(), []string{ch.TargetPlayerID}, ch.CurrentPenaltyAmount)
	p.Emit(log.NewChainCounteredEvent(p.gs.Turn, p.actor, c.String(), "chain continues", ch.CurrentPenaltyAmount))
	return nil
}

// --- IdiotChain ---

// IdiotChain adds player choices: the first counter picks one of the card's
// counter_options, later counters choose between escalating the penalty and
// transferring it.
type IdiotChain struct{}

func (IdiotChain) IsCounter(gs *GameState, rs *RuleSet, c Card) bool {
	return isCounter(gs, rs, c)
}

func (IdiotChain) ValidateCounter(gs *GameState, rs *RuleSet, c Card) error {
	return validateCounter(gs, rs, c)
}

func (IdiotChain) HandleCounter(p *Ply, c Card, a CardAction) error {
	if a.CounterEffect == CounterEffectReverseAndBounce {
		bounce(p, c, a)
		return nil
	}
	ch := p.gs.Chain
	switch {
	case ch.Counters() == 0 && len(a.CounterOptions) > 0:
		descs := make([]string, len(a.CounterOptions))
		for i, o := range a.CounterOptions {
			descs[i] = o.Description
			if descs[i] == "" {
				descs[i] = fmt.Sprintf("%s %s %d", o.Effect, o.Target, o.Amount)
			}
		}
		ans, err := p.Decide(DecisionRequest{
			Kind:     DecisionCounterOption,
			PlayerID: p.actor,
			Options:  descs,
			Prompt:   fmt.Sprintf("Counter the %s", ch.InitiatingRank),
		})
		if err != nil {
			return err
		}
		pushLink(p, c)
		applyCounterOption(p, c, a.CounterOptions[*ans.Option])

	case ch.Counters() > 0 && a.ChainCounter != nil:
		cc := a.ChainCounter
		transferTo := cc.OrTransfer
		if transferTo == TargetNone {
			transferTo = TargetOppositePlayer
		}
		options := []CounterOption{
			{Effect: CounterIncrease, Target: TargetNextPlayer, Amount: cc.IncreaseAmount},
			{Effect: CounterTransfer, Target: transferTo},
		}
		ans, err := p.Decide(DecisionRequest{
			Kind:     DecisionCounterOption,
			PlayerID: p.actor,
			Options: []string{
				fmt.Sprintf("Raise the penalty to %d for the next player", ch.CurrentPenaltyAmount+cc.IncreaseAmount),
				fmt.Sprintf("Transfer %d to the %s", ch.CurrentPenaltyAmount, transferTo),
			},
			Prompt: "Escalate or transfer",
		})
		if err != nil {
			return err
		}
		pushLink(p, c)
		applyCounterOption(p, c, options[*ans.Option])

	default:
		pushLink(p, c)
		p.Record("chain_countered", c.String(), []string{ch.TargetPlayerID}, ch.CurrentPenaltyAmount)
		p.Emit(log.NewChainCounteredEvent(p.gs.Turn, p.actor, c.String(), "chain continues", ch.CurrentPenaltyAmount))
	}
	return nil
}

func applyCounterOption(p *Ply, c Card, o CounterOption) {
	gs := p.gs
	ch := gs.Chain
	targets := ResolveTargets(gs, p.Rules(), p.actor, o.Target)
	target := p.actor
	if len(targets) > 0 {
		target = targets[0]
	}
	switch o.Effect {
	case CounterIncrease:
		ch.CurrentPenaltyAmount += o.Amount
		ch.TargetPlayerID = target
		p.Record("chain_countered", c.String(), []string{target}, ch.CurrentPenaltyAmount)
		p.Emit(log.NewChainCounteredEvent(gs.Turn, p.actor, c.String(), fmt.Sprintf("penalty raised to %d for %s", ch.CurrentPenaltyAmount, target), ch.CurrentPenaltyAmount))
	case CounterTransfer:
		amount := ch.CurrentPenaltyAmount
		p.Emit(log.NewChainCounteredEvent(gs.Turn, p.actor, c.String(), fmt.Sprintf("transferred %d to %s", amount, target), amount))
		closeChain(p, target, amount)
	default:
		amount := o.Amount
		if amount <= 0 {
			amount = ch.CurrentPenaltyAmount
		}
		p.Emit(log.NewChainCounteredEvent(gs.Turn, p.actor, c.String(), fmt.Sprintf("%s draws %d", target, amount), amount))
		closeChain(p, target, amount)
	}
}
