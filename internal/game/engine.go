package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"time"

	"github.com/peterkuimelis/cardrules/internal/log"
)

// EngineConfig holds configuration for creating an engine.
type EngineConfig struct {
	Logger log.EventLogger
	// Decider answers decisions not supplied with the request. Nil means the
	// variant's deterministic defaults, so plays never suspend.
	Decider DecisionProvider
	// Announced reports whether a player with one card announced it in time
	// through some channel other than the play request.
	Announced func(gs *GameState, playerID string) bool
	Seed      int64 // RNG seed (0 for random)
	Rand      Rand  // overrides Seed when set
	NoShuffle bool  // skip deck shuffle (for deterministic tests)
}

// Engine interprets one rule set. It holds no per-game state; every call
// receives the GameState it acts on, so one engine may serve many games as
// long as calls for the same game are serialized.
type Engine struct {
	Rules     *RuleSet
	Strategy  Strategy
	Logger    log.EventLogger
	decider   DecisionProvider
	announced func(gs *GameState, playerID string) bool
	rng       Rand
	noShuffle bool
}

// NewEngine creates an engine for a validated rule set.
func NewEngine(rules *RuleSet, cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewMemoryLogger()
	}
	rng := cfg.Rand
	if rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}
	strategy := NewStrategy(rules.Variant)
	decider := cfg.Decider
	if decider == nil {
		decider = strategy.Defaults
	}
	return &Engine{
		Rules:     rules,
		Strategy:  strategy,
		Logger:    logger,
		decider:   decider,
		announced: cfg.Announced,
		rng:       rng,
		noShuffle: cfg.NoShuffle,
	}
}

// AppliedEffect is one effect reported back in an Outcome.
type AppliedEffect struct {
	Effect  string   `json:"effect"`
	Card    string   `json:"card,omitempty"`
	Targets []string `json:"targets,omitempty"`
	Amount  int      `json:"amount,omitempty"`
}

// Outcome is the structured result of every mutating entry point.
type Outcome struct {
	Success      bool             `json:"success"`
	Kind         ErrorKind        `json:"kind,omitempty"`
	Message      string           `json:"message,omitempty"`
	Effects      []AppliedEffect  `json:"effects,omitempty"`
	Drawn        []Card           `json:"drawn,omitempty"`
	NextPlayerID string           `json:"next_player_id,omitempty"`
	GameOver     bool             `json:"game_over"`
	WinnerID     string           `json:"winner_id,omitempty"`
	Decision     *DecisionRequest `json:"decision,omitempty"`
	Events       []log.GameEvent  `json:"-"`
}

// Err returns the rejection as an error, or nil on success.
func (o Outcome) Err() error {
	if o.Success {
		return nil
	}
	return &RuleError{Kind: o.Kind, Message: o.Message}
}

func failure(err error) Outcome {
	var re *RuleError
	if errors.As(err, &re) {
		return Outcome{Kind: re.Kind, Message: re.Message}
	}
	return Outcome{Kind: ErrInternal, Message: err.Error()}
}

// Ply is one in-flight mutation. It works on a copy of the game state and
// buffers its events; nothing is visible until the engine commits it.
type Ply struct {
	ctx          context.Context
	engine       *Engine
	gs           *GameState
	actor        string
	req          PlayRequest
	out          Outcome
	events       []log.GameEvent
	nextOverride string
	suspended    *DecisionRequest
	defaulted    bool
}

func (e *Engine) newPly(ctx context.Context, gs *GameState, actor string, req PlayRequest) *Ply {
	return &Ply{ctx: ctx, engine: e, gs: gs.Clone(), actor: actor, req: req}
}

// State is the working copy of the game.
func (p *Ply) State() *GameState { return p.gs }

// Rules is the rule set being interpreted.
func (p *Ply) Rules() *RuleSet { return p.engine.Rules }

// Emit buffers an event, stamping round and turn.
func (p *Ply) Emit(ev log.GameEvent) {
	ev.GameID = p.gs.GameID
	ev.Round = p.gs.Round
	if ev.Turn == 0 {
		ev.Turn = p.gs.Turn
	}
	p.events = append(p.events, ev)
}

// Record adds an applied effect to the outcome.
func (p *Ply) Record(effect string, card string, targets []string, amount int) {
	p.out.Effects = append(p.out.Effects, AppliedEffect{Effect: effect, Card: card, Targets: targets, Amount: amount})
}

// Draw makes a player draw up to n cards, reshuffling the discards when the
// draw pile runs out. It returns how many cards were actually drawn.
func (p *Ply) Draw(playerID string, n int, reason string) int {
	gs := p.gs
	ps := gs.Player(playerID)
	if ps == nil || n <= 0 {
		return 0
	}
	drawn := 0
	for ; drawn < n; drawn++ {
		if len(gs.DrawPile) == 0 && gs.Reshuffle(p.engine.rng) {
			p.Emit(log.NewReshuffleEvent(gs.Turn, gs.Phase.String(), len(gs.DrawPile)))
		}
		c, ok := gs.popDraw()
		if !ok {
			break
		}
		ps.Hand = append(ps.Hand, c)
		if playerID == p.actor {
			p.out.Drawn = append(p.out.Drawn, c)
		}
	}
	if drawn > 0 {
		p.Emit(log.NewCardDrawnEvent(gs.Turn, gs.Phase.String(), playerID, drawn, reason))
	}
	if ps.HandCount() != 1 {
		ps.AnnouncedOneCard = false
	}
	return drawn
}

// Decide answers a decision from the request's pre-supplied answers or the
// engine's provider. ErrDecisionRequired means the play must suspend.
func (p *Ply) Decide(req DecisionRequest) (Answer, error) {
	if p.req.Answers.has(req.Kind) {
		a := p.req.Answers
		if err := req.Check(a); err != nil {
			return Answer{}, err
		}
		p.Emit(log.NewDecisionResolvedEvent(p.gs.Turn, req.PlayerID, req.Kind.String(), a.Describe(req.Kind), p.defaulted))
		return a, nil
	}
	a, err := p.engine.decider.Decide(p.ctx, p.gs, req)
	if errors.Is(err, ErrDecisionRequired) {
		p.suspended = &req
		return Answer{}, err
	}
	if err != nil {
		return Answer{}, fmt.Errorf("decide %s: %w", req.Kind, err)
	}
	if err := req.Check(a); err != nil {
		return Answer{}, err
	}
	p.Emit(log.NewDecisionResolvedEvent(p.gs.Turn, req.PlayerID, req.Kind.String(), a.Describe(req.Kind), false))
	return a, nil
}

// Targets resolves a symbolic target for actor, asking for a decision when
// the target is player_choice.
func (p *Ply) Targets(actor string, kind TargetKind) ([]string, error) {
	ids := ResolveTargets(p.gs, p.engine.Rules, actor, kind)
	if kind != TargetPlayerChoice {
		return ids, nil
	}
	if len(ids) == 0 {
		return nil, nil
	}
	a, err := p.Decide(DecisionRequest{
		Kind:     DecisionPlayerChoice,
		PlayerID: actor,
		Options:  ids,
		Prompt:   "Choose a player",
	})
	if err != nil {
		return nil, err
	}
	return []string{a.PlayerID}, nil
}

// --- Game lifecycle ---

// NewGame builds, shuffles and deals a fresh game. The first seat starts.
func (e *Engine) NewGame(gameID string, playerIDs []string) (*GameState, error) {
	gs, err := e.newRound(gameID, playerIDs, "")
	if err != nil {
		return nil, err
	}
	top, _ := gs.DiscardTop()
	ev := log.NewGameStartedEvent(gs.Seats, gs.CurrentPlayerID, top.String())
	ev.GameID, ev.Round = gs.GameID, gs.Round
	e.Logger.Log(ev)
	return gs, nil
}

func (e *Engine) newRound(gameID string, playerIDs []string, first string) (*GameState, error) {
	if len(playerIDs) < 2 {
		return nil, fmt.Errorf("need at least 2 players, got %d", len(playerIDs))
	}
	if limit := e.Rules.MaxPlayers(); len(playerIDs) > limit {
		return nil, fmt.Errorf("rule set %s deals to at most %d players, got %d", e.Rules.ID, limit, len(playerIDs))
	}
	seen := make(map[string]bool, len(playerIDs))
	for _, id := range playerIDs {
		if id == "" || seen[id] {
			return nil, fmt.Errorf("player ids must be unique and non-empty: %q", id)
		}
		seen[id] = true
	}

	gs := NewGameState(gameID, e.Rules.ID, playerIDs, e.Rules.TurnFlow.InitialDirection)
	gs.DrawPile = BuildDeck(e.Rules.DeckConfiguration)
	if !e.noShuffle {
		Shuffle(gs.DrawPile, e.rng)
	}
	deal(gs, e.Rules.DealingConfig.CardsPerPlayer)

	if first == "" || gs.Player(first) == nil {
		first = gs.Seats[0]
	}
	gs.CurrentPlayerID = first
	gs.NextPlayerID = gs.SeatAt(first, int(gs.Direction))
	gs.Turn = 1
	gs.Phase = PhaseAwaitingPlay
	return gs, nil
}

// ResetForNewRound replaces a finished game with a freshly dealt one. Seats
// and scores carry over and the previous winner plays first.
func (e *Engine) ResetForNewRound(prev *GameState) (*GameState, error) {
	if !prev.GameOver {
		return nil, ruleErr(ErrGameNotActive, "round %d is still in progress", prev.Round)
	}
	gs, err := e.newRound(prev.GameID, prev.Seats, prev.WinnerID)
	if err != nil {
		return nil, err
	}
	gs.Round = prev.Round + 1
	gs.Version = prev.Version
	for id, ps := range prev.Players {
		gs.Players[id].Score = ps.Score
		gs.Players[id].AI = ps.AI
	}
	ev := log.NewRoundStartedEvent(gs.Round, gs.CurrentPlayerID)
	ev.GameID = gs.GameID
	e.Logger.Log(ev)
	return gs, nil
}

// Abandon ends the game without a winner and cancels any pending decision.
func (e *Engine) Abandon(gs *GameState, reason string) Outcome {
	if gs.GameOver {
		return failure(ruleErr(ErrGameNotActive, "game is already over"))
	}
	p := e.newPly(context.Background(), gs, "", PlayRequest{})
	p.gs.GameOver = true
	p.gs.Abandoned = true
	p.gs.Pending = nil
	p.gs.Phase = PhaseGameOver
	p.Emit(log.NewGameAbandonedEvent(gs.Turn, reason))
	return e.commit(gs, p)
}

// --- Mutating entry points ---

// PlayCard validates and applies one card play. On rejection the state is
// untouched. When a decision is needed and nobody has supplied it, the play
// is suspended: the outcome carries the DecisionRequest and gs.Pending
// records it for Resolve.
func (e *Engine) PlayCard(ctx context.Context, gs *GameState, req PlayRequest) Outcome {
	if gs.Pending != nil && !gs.GameOver {
		return failure(ruleErr(ErrDecisionPending, "waiting for %s from %s", gs.Pending.Request.Kind, gs.Pending.Request.PlayerID))
	}
	return e.play(ctx, gs, req, false)
}

func (e *Engine) play(ctx context.Context, gs *GameState, req PlayRequest, defaulted bool) Outcome {
	if err := e.validateAction(gs, req); err != nil {
		return failure(err)
	}
	p := e.newPly(ctx, gs, req.PlayerID, req)
	p.defaulted = defaulted
	err := e.processCardPlay(p)
	if err == nil {
		e.applyRules(p)
	}
	switch {
	case errors.Is(err, ErrDecisionRequired):
		return e.suspend(gs, p)
	case err != nil:
		return failure(err)
	}
	return e.commit(gs, p)
}

// Resolve answers the pending decision and re-runs the suspended play with
// the answer supplied.
func (e *Engine) Resolve(ctx context.Context, gs *GameState, playerID string, a Answer) Outcome {
	return e.resolve(ctx, gs, playerID, a, false)
}

func (e *Engine) resolve(ctx context.Context, gs *GameState, playerID string, a Answer, defaulted bool) Outcome {
	if gs.GameOver {
		return failure(ruleErr(ErrGameNotActive, "game is over"))
	}
	pd := gs.Pending
	if pd == nil {
		return failure(ruleErr(ErrInvalidDecision, "no decision is pending"))
	}
	if playerID != pd.Request.PlayerID {
		return failure(ruleErr(ErrNotYourTurn, "decision belongs to %s", pd.Request.PlayerID))
	}
	if err := pd.Request.Check(a); err != nil {
		return failure(err)
	}
	req := pd.Play
	req.Answers = req.Answers.merge(pd.Request.Kind, a)
	gs.Pending = nil
	out := e.play(ctx, gs, req, defaulted)
	if !out.Success {
		gs.Pending = pd
	}
	return out
}

// ResolveDefault answers the pending decision with the variant's
// deterministic default. Used when a player does not answer in time.
func (e *Engine) ResolveDefault(ctx context.Context, gs *GameState) Outcome {
	pd := gs.Pending
	if pd == nil || gs.GameOver {
		return failure(ruleErr(ErrInvalidDecision, "no decision is pending"))
	}
	a, err := e.Strategy.Defaults.Decide(ctx, gs, pd.Request)
	if err != nil {
		return failure(err)
	}
	return e.resolve(ctx, gs, pd.Request.PlayerID, a, true)
}

// Draw draws one card for the current player. While a chain is open the
// pending penalty is paid to the chain's target instead, closing the chain.
func (e *Engine) Draw(ctx context.Context, gs *GameState, playerID string) Outcome {
	if err := e.validateTurn(gs, playerID); err != nil {
		return failure(err)
	}
	p := e.newPly(ctx, gs, playerID, PlayRequest{PlayerID: playerID})
	w := p.gs
	hadGrant := w.PendingReplay != nil
	w.PendingReplay = nil
	if w.Chain != nil {
		target, amount := w.Chain.TargetPlayerID, w.Chain.CurrentPenaltyAmount
		e.resolveChain(p)
		if target != playerID || amount == 0 {
			p.Draw(playerID, 1, "draw")
		}
	} else if p.Draw(playerID, 1, "draw") == 0 {
		p.out.Message = "no cards left to draw"
	}
	w.DrewThisTurn = true
	if e.evaluateWin(p) {
		return e.commit(gs, p)
	}
	if hadGrant || e.Rules.TurnFlow.DrawEndsTurn {
		e.advanceTurn(p)
	}
	return e.commit(gs, p)
}

// Pass ends the current player's turn. A player must have drawn this turn,
// hold an unused play-again grant, or face exhausted piles.
func (e *Engine) Pass(ctx context.Context, gs *GameState, playerID string) Outcome {
	if err := e.validateTurn(gs, playerID); err != nil {
		return failure(err)
	}
	exhausted := len(gs.DrawPile) == 0 && len(gs.DiscardPile) <= 1
	if !gs.DrewThisTurn && !exhausted && gs.PendingReplay == nil {
		return failure(ruleErr(ErrInvalidPlay, "draw a card before passing"))
	}
	p := e.newPly(ctx, gs, playerID, PlayRequest{PlayerID: playerID})
	p.gs.PendingReplay = nil
	if p.gs.Chain != nil {
		e.resolveChain(p)
		if e.evaluateWin(p) {
			return e.commit(gs, p)
		}
	}
	e.advanceTurn(p)
	return e.commit(gs, p)
}

// AnnounceOneCard records that a player holding exactly one card announced it.
func (e *Engine) AnnounceOneCard(gs *GameState, playerID string) Outcome {
	if gs.GameOver {
		return failure(ruleErr(ErrGameNotActive, "game is over"))
	}
	ps := gs.Player(playerID)
	if ps == nil {
		return failure(ruleErr(ErrNotYourTurn, "%s is not seated in this game", playerID))
	}
	if ps.HandCount() != 1 {
		return failure(ruleErr(ErrInvalidPlay, "announcement requires exactly one card in hand, have %d", ps.HandCount()))
	}
	p := e.newPly(context.Background(), gs, playerID, PlayRequest{PlayerID: playerID})
	p.gs.Player(playerID).AnnouncedOneCard = true
	p.Emit(log.NewOneCardAnnouncedEvent(gs.Turn, gs.Phase.String(), playerID))
	return e.commit(gs, p)
}

// --- Validation ---

func (e *Engine) validateTurn(gs *GameState, playerID string) error {
	if gs.GameOver {
		return ruleErr(ErrGameNotActive, "game is over")
	}
	if gs.Pending != nil {
		return ruleErr(ErrDecisionPending, "waiting for %s from %s", gs.Pending.Request.Kind, gs.Pending.Request.PlayerID)
	}
	if gs.Player(playerID) == nil {
		return ruleErr(ErrNotYourTurn, "%s is not seated in this game", playerID)
	}
	if playerID != gs.CurrentPlayerID {
		return ruleErr(ErrNotYourTurn, "it is %s's turn", gs.CurrentPlayerID)
	}
	return nil
}

func (e *Engine) validateAction(gs *GameState, req PlayRequest) error {
	if gs.GameOver {
		return ruleErr(ErrGameNotActive, "game is over")
	}
	ps := gs.Player(req.PlayerID)
	if ps == nil {
		return ruleErr(ErrNotYourTurn, "%s is not seated in this game", req.PlayerID)
	}
	if req.PlayerID != gs.CurrentPlayerID {
		return ruleErr(ErrNotYourTurn, "it is %s's turn", gs.CurrentPlayerID)
	}
	i := ps.FindCard(req.CardID)
	if i < 0 {
		return ruleErr(ErrCardNotInHand, "card %d is not in %s's hand", req.CardID, req.PlayerID)
	}
	card := ps.Hand[i]
	if gs.IsRevealed(req.PlayerID, card.ID) {
		return ruleErr(ErrInvalidPlay, "%s is revealed and cannot be played", card)
	}
	if g := gs.PendingReplay; g != nil && g.PlayerID == req.PlayerID {
		if !g.Allows(card) {
			return ruleErr(ErrInvalidPlay, "%s does not satisfy the play-again constraint", card)
		}
		return nil
	}
	if gs.Chain != nil && e.Strategy.Chain.IsCounter(gs, e.Rules, card) {
		return e.Strategy.Chain.ValidateCounter(gs, e.Rules, card)
	}
	if !gs.CanPlay(e.Rules, card) {
		top, _ := gs.DiscardTop()
		return ruleErr(ErrInvalidPlay, "%s does not match %s (suit %s)", card, top, gs.EffectiveSuit())
	}
	return nil
}

// --- Play processing ---

func (e *Engine) processCardPlay(p *Ply) error {
	gs := p.gs
	actor := p.actor
	gs.Phase = PhaseEffectApplication
	ps := gs.Player(actor)
	card, _ := ps.RemoveCard(p.req.CardID)
	gs.DiscardPile = append(gs.DiscardPile, card)
	gs.LastCard = &card
	gs.LastPlayerID = actor
	gs.CurrentSuitOverride = ""
	gs.PendingReplay = nil
	p.Emit(log.NewCardPlayedEvent(gs.Turn, gs.Phase.String(), actor, card.String(), ps.HandCount()))

	if p.req.Announce && ps.HandCount() == 1 {
		ps.AnnouncedOneCard = true
		p.Emit(log.NewOneCardAnnouncedEvent(gs.Turn, gs.Phase.String(), actor))
	}

	action, ok := e.Rules.ActionFor(card)
	if gs.Chain != nil {
		gs.Phase = PhaseChainResolution
		chain := e.Strategy.Chain
		if ok && chain.IsCounter(gs, e.Rules, card) && chain.ValidateCounter(gs, e.Rules, card) == nil {
			return chain.HandleCounter(p, card, action)
		}
		e.resolveChain(p)
		gs.Phase = PhaseEffectApplication
	}
	if !ok {
		return nil
	}

	targets, err := p.Targets(actor, action.Target)
	if err != nil {
		return err
	}
	opensChain := action.ChainAction && e.Rules.TurnFlow.ChainActions
	if err := e.applyEffect(p, card, action, targets, opensChain); err != nil {
		return err
	}
	if opensChain {
		e.openChain(p, card, action, targets)
	}
	return nil
}

// applyRules runs the announcement check, win evaluation and turn advance.
func (e *Engine) applyRules(p *Ply) {
	gs := p.gs
	gs.Phase = PhaseWinEvaluation
	e.checkAnnouncements(p)
	if e.evaluateWin(p) {
		return
	}
	gs.Phase = PhaseTurnAdvance
	e.advanceTurn(p)
}

func (e *Engine) checkAnnouncements(p *Ply) {
	cfg := e.Rules.PlayRules.OneCardAnnouncement
	gs := p.gs
	for _, id := range gs.Seats {
		ps := gs.Player(id)
		if ps.HandCount() != 1 {
			ps.AnnouncedOneCard = false
			continue
		}
		if ps.AnnouncedOneCard || cfg == nil || !cfg.Required {
			continue
		}
		if e.announced != nil && e.announced(gs, id) {
			ps.AnnouncedOneCard = true
			p.Emit(log.NewOneCardAnnouncedEvent(gs.Turn, gs.Phase.String(), id))
			continue
		}
		penalty := cfg.Penalty
		if penalty <= 0 {
			penalty = 1
		}
		ps.Penalties++
		p.Emit(log.NewPenaltyEvent(gs.Turn, gs.Phase.String(), id, penalty, "one card not announced"))
		p.Record("one_card_penalty", "", []string{id}, penalty)
		p.Draw(id, penalty, "one card penalty")
	}
}

func (e *Engine) advanceTurn(p *Ply) {
	gs := p.gs
	gs.Phase = PhaseTurnAdvance
	if g := gs.PendingReplay; g != nil {
		gs.CurrentPlayerID = g.PlayerID
		gs.NextPlayerID = g.PlayerID
		gs.Phase = PhaseAwaitingPlay
		return
	}
	delete(gs.RevealedCards, p.actor)
	if p.nextOverride != "" {
		gs.SkippedPlayers = nil
		gs.CurrentPlayerID = p.nextOverride
		gs.NextPlayerID = gs.SeatAt(p.nextOverride, int(gs.Direction))
	} else {
		gs.AdvanceTurn()
	}
	// a seat with no cards is waiting on a deferred win
	for i := 0; i < len(gs.Seats) && gs.CurrentPlayer().HandCount() == 0; i++ {
		gs.AdvanceTurn()
	}
	gs.Turn++
	gs.DrewThisTurn = false
	gs.Phase = PhaseAwaitingPlay
	p.Emit(log.NewTurnChangedEvent(gs.Turn, gs.CurrentPlayerID, gs.Direction.String()))
}

// --- Commit ---

func (e *Engine) commit(gs *GameState, p *Ply) Outcome {
	p.gs.Pending = nil
	*gs = *p.gs
	for _, ev := range p.events {
		e.Logger.Log(ev)
	}
	out := p.out
	out.Success = true
	out.Events = p.events
	out.NextPlayerID = gs.CurrentPlayerID
	out.GameOver = gs.GameOver
	out.WinnerID = gs.WinnerID
	return out
}

// suspend records the decision the play is waiting on. Nothing else from the
// attempted play is kept.
func (e *Engine) suspend(gs *GameState, p *Ply) Outcome {
	req := *p.suspended
	req.Options = slices.Clone(req.Options)
	gs.Pending = &PendingDecision{Request: req, Play: p.req}
	gs.Phase = PhaseAwaitingDecision
	ev := log.NewDecisionRequiredEvent(gs.Turn, req.PlayerID, req.Kind.String(), req.Options)
	ev.GameID, ev.Round = gs.GameID, gs.Round
	e.Logger.Log(ev)
	return Outcome{
		Success:      true,
		Decision:     &req,
		NextPlayerID: gs.CurrentPlayerID,
		Events:       []log.GameEvent{ev},
	}
}
