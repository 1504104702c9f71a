package game

import "fmt"

// PresetOptions tunes a built-in rule set. Zero fields take the preset's
// defaults.
type PresetOptions struct {
	InitialDirection Direction
	CardsPerPlayer   int
	MinCards         int
	MaxCards         int
}

func (o PresetOptions) apply(rs *RuleSet) error {
	if o.InitialDirection != 0 {
		rs.TurnFlow.InitialDirection = o.InitialDirection
	}
	switch rs.TurnFlow.InitialDirection {
	case Clockwise, Counterclockwise:
	default:
		return ruleErr(ErrInvalidRuleSet, "initial_direction must be either clockwise or counterclockwise")
	}
	d := &rs.DealingConfig
	if o.CardsPerPlayer != 0 {
		d.CardsPerPlayer = o.CardsPerPlayer
	}
	if o.MinCards != 0 {
		d.MinCards = o.MinCards
	}
	if o.MaxCards != 0 {
		d.MaxCards = o.MaxCards
	}
	switch {
	case d.CardsPerPlayer < 0:
		return ruleErr(ErrInvalidRuleSet, "cards_per_player must be greater than 0")
	case d.MinCards < 0:
		return ruleErr(ErrInvalidRuleSet, "min_cards must be greater than 0")
	case d.MaxCards < 0:
		return ruleErr(ErrInvalidRuleSet, "max_cards must be greater than 0")
	}
	return rs.Validate()
}

var standardSuits = []string{"hearts", "diamonds", "clubs", "spades"}

func standardValues() []string {
	return []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}
}

func offset(n int) *SeatOffset { return &SeatOffset{Value: n} }

// UnoRuleSet builds the Uno-like game: 2s make the next player draw two, aces
// skip, kings reverse, and four wild cards let the player pick who goes next.
func UnoRuleSet(o PresetOptions) (*RuleSet, error) {
	rs := &RuleSet{
		ID:          "uno",
		Name:        "Uno-like Game",
		Version:     "1.0",
		Description: "A game similar to Uno with action cards",
		Variant:     VariantBasic,
		DeckConfiguration: DeckConfig{
			CardTypes:    []string{"standard", "special"},
			Suits:        append([]string(nil), standardSuits...),
			Values:       standardValues(),
			SpecialCards: []SpecialCard{{Type: "wild", Value: "wild", Count: 4}},
		},
		DealingConfig: DealingConfig{CardsPerPlayer: 7, MinCards: 1, MaxCards: 12},
		TurnFlow: TurnFlow{
			InitialDirection: Clockwise,
			CanReverse:       true,
			SkipAllowed:      true,
		},
		CardActions: map[string]CardAction{
			"*_2": {ActionType: "draw", Target: TargetNextPlayer, Effect: EffectDrawCards, Amount: 2},
			"*_A": {ActionType: "skip", Target: TargetNextPlayer, Effect: EffectSkipTurn},
			"*_K": {ActionType: "reverse", Target: TargetAll, Effect: EffectReverseDirection},
			"special_wild": {
				ActionType: "choose",
				Target:     TargetPlayerChoice,
				Effect:     EffectChooseNextPlayer,
			},
		},
		TargetingRules: map[TargetKind]TargetRule{
			TargetNextPlayer:     {Offset: offset(1)},
			TargetPreviousPlayer: {Offset: offset(-1)},
			TargetOppositePlayer: {Offset: &SeatOffset{Expr: "players_count / 2"}},
			TargetAll:            {Type: "all_players"},
			TargetPlayerChoice:   {Type: "selection", Constraints: []string{ConstraintNotSelf}},
		},
		WinConditions: []WinCondition{
			{Type: WinEmptyHand, Description: "First player to play all cards wins"},
		},
		PlayRules: PlayRules{
			MatchCriteria:       []string{"suit", "value"},
			SpecialCards:        map[string]string{"wild": EffectChooseNextPlayer.String()},
			OneCardAnnouncement: &OneCardAnnouncement{Required: true, Penalty: 2},
		},
	}
	if err := o.apply(rs); err != nil {
		return nil, fmt.Errorf("uno rule set: %w", err)
	}
	return rs, nil
}

// IdiotRuleSet builds the Idiot game: a 52-card deck, four cards each, and
// an action on almost every rank including the 7/8/10 counter chain.
func IdiotRuleSet(o PresetOptions) (*RuleSet, error) {
	rs := &RuleSet{
		ID:          "idiot",
		Name:        "Idiot Card Game",
		Version:     "1.0",
		Description: "Shed your hand first; sevens start a chain that eights and tens can answer",
		Variant:     VariantIdiot,
		DeckConfiguration: DeckConfig{
			CardTypes: []string{"standard"},
			Suits:     append([]string(nil), standardSuits...),
			Values:    standardValues(),
		},
		DealingConfig: DealingConfig{CardsPerPlayer: 4, MinCards: 2, MaxCards: 8},
		TurnFlow: TurnFlow{
			InitialDirection: Clockwise,
			CanReverse:       true,
			SkipAllowed:      true,
			PlayAgainAllowed: true,
			ChainActions:     true,
		},
		CardActions: map[string]CardAction{
			"*_2": {
				ActionType: "give", Target: TargetNextPlayer, Effect: EffectGiveCard,
				PointsIfLast: 3, Description: "Next player takes a card",
			},
			"*_3": {
				ActionType: "draw", Target: TargetPreviousPlayer, Effect: EffectDrawCards, Amount: 1,
				Description: "Previous player draws 1 card",
			},
			"*_6": {
				ActionType: "draw", Target: TargetSecondNextPlayer, Effect: EffectDrawCards, Amount: 1,
				Description: "The player after next draws 1 card",
			},
			"*_7": {
				ActionType: "draw", Target: TargetNextPlayer, Effect: EffectDrawCards, Amount: 2,
				CanCounter: true, CounterCards: []string{"8", "10"}, CounterSameSuit: true,
				ChainAction: true, Description: "Next player draws 2 cards unless countered",
			},
			"*_8": {
				ActionType: "skip", Target: TargetNextPlayer, Effect: EffectSkipTurn,
				CounterTo: "7",
				CounterOptions: []CounterOption{
					{Effect: CounterIncrease, Target: TargetNextPlayer, Amount: 3, Description: "Next player draws 5 cards (2+3)"},
					{Effect: CounterTransfer, Target: TargetOppositePlayer, Description: "Opposite player draws 2 cards"},
				},
				ChainCounter: &ChainCounter{IncreaseAmount: 3, OrTransfer: TargetOppositePlayer},
				Description:  "Skip the next player, or answer a 7",
			},
			"diamonds_9": {
				ActionType: "draw", Target: TargetAllOthers, Effect: EffectDrawCards, Amount: 1,
				Description: "Everyone else draws 1 card",
			},
			"*_10": {
				ActionType: "reverse", Target: TargetAll, Effect: EffectReverseDirection,
				CounterTo: "7", CounterEffect: CounterEffectReverseAndBounce,
				BounceTarget: TargetPreviousPlayer, BounceAmount: 2,
				Description: "Reverse play, or bounce a 7 back",
			},
			"*_J": {
				ActionType: "choose", Target: TargetNone, Effect: EffectChooseSuit,
				PointsIfLast: 2, Description: "Choose the next suit",
			},
			"*_Q": {
				ActionType: "reveal", Target: TargetNextPlayer, Effect: EffectRevealCardAndDraw,
				Description: "Next player reveals a card and draws 1",
			},
			"*_K": {
				ActionType: "draw_skip", Target: TargetNextPlayer, Effect: EffectDrawAndSkip, Amount: 1,
				Description: "Next player draws 1 card and misses a turn",
			},
			"*_A": {
				ActionType: "play_again", Target: TargetSelf, Effect: EffectPlayAgain,
				SameSuit: true, ChainAction: true, ChainWith: []string{"A"},
				Description: "Play again with the same suit or another ace",
			},
		},
		TargetingRules: map[TargetKind]TargetRule{
			TargetNextPlayer:       {Offset: offset(1)},
			TargetPreviousPlayer:   {Offset: offset(-1)},
			TargetSecondNextPlayer: {Offset: offset(2)},
			TargetOppositePlayer:   {Offset: &SeatOffset{Expr: "players_count / 2"}},
			TargetAll:              {Type: "all_players"},
			TargetAllOthers:        {Type: "all_except_current"},
			TargetSelf:             {Type: "current_player"},
			TargetNone:             {Type: "none"},
			TargetPlayerChoice:     {Type: "selection", Constraints: []string{ConstraintNotSelf}},
		},
		WinConditions: []WinCondition{
			{Type: WinEmptyHand, Description: "First player to play all cards wins"},
			{Type: WinSpecialLastCard, Description: "The last card played can change the score"},
		},
		PlayRules: PlayRules{
			MatchCriteria:       []string{"suit", "value"},
			SpecialCards:        map[string]string{"J": EffectChooseSuit.String()},
			OneCardAnnouncement: &OneCardAnnouncement{Required: true, Penalty: 1},
			EqualSumPenalty:     &EqualSumPenalty{TwoPlayers: -1, ThreePlayers: -3},
			LastCardSpecialPoints: map[string]LastCardPoints{
				"2": {Points: 3},
				"J": {Points: 2},
				"7": {ContinueIfCountered: true},
			},
		},
	}
	if err := o.apply(rs); err != nil {
		return nil, fmt.Errorf("idiot rule set: %w", err)
	}
	return rs, nil
}
