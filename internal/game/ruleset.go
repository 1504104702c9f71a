package game

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleSet is the declarative definition of one playable game. It is built
// once, validated, and then shared read-only by every game that uses it.
type RuleSet struct {
	ID                string                    `json:"id" yaml:"id"`
	Name              string                    `json:"name" yaml:"name"`
	Version           string                    `json:"version" yaml:"version"`
	Description       string                    `json:"description,omitempty" yaml:"description,omitempty"`
	Variant           GameVariant               `json:"variant" yaml:"variant"`
	DeckConfiguration DeckConfig                `json:"deck_configuration" yaml:"deck_configuration"`
	DealingConfig     DealingConfig             `json:"dealing_config" yaml:"dealing_config"`
	TurnFlow          TurnFlow                  `json:"turn_flow" yaml:"turn_flow"`
	CardActions       map[string]CardAction     `json:"card_actions" yaml:"card_actions"`
	TargetingRules    map[TargetKind]TargetRule `json:"targeting_rules" yaml:"targeting_rules"`
	WinConditions     []WinCondition            `json:"win_conditions" yaml:"win_conditions"`
	PlayRules         PlayRules                 `json:"play_rules" yaml:"play_rules"`
}

type DeckConfig struct {
	CardTypes    []string      `json:"card_types" yaml:"card_types"`
	Suits        []string      `json:"suits" yaml:"suits"`
	Values       []string      `json:"values" yaml:"values"`
	SpecialCards []SpecialCard `json:"special_cards,omitempty" yaml:"special_cards,omitempty"`
}

// SpecialCard declares Count extra cards outside the suit grid.
type SpecialCard struct {
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
	Count int    `json:"count" yaml:"count"`
}

// Rank is the rank the special card is dealt with.
func (s SpecialCard) Rank() string {
	if s.Value != "" {
		return s.Value
	}
	return s.Type
}

type DealingConfig struct {
	CardsPerPlayer int `json:"cards_per_player" yaml:"cards_per_player"`
	MinCards       int `json:"min_cards" yaml:"min_cards"`
	MaxCards       int `json:"max_cards" yaml:"max_cards"`
}

type TurnFlow struct {
	InitialDirection Direction `json:"initial_direction" yaml:"initial_direction"`
	CanReverse       bool      `json:"can_reverse" yaml:"can_reverse"`
	SkipAllowed      bool      `json:"skip_allowed" yaml:"skip_allowed"`
	PlayAgainAllowed bool      `json:"play_again_allowed" yaml:"play_again_allowed"`
	ChainActions     bool      `json:"chain_actions" yaml:"chain_actions"`
	DrawEndsTurn     bool      `json:"draw_ends_turn,omitempty" yaml:"draw_ends_turn,omitempty"`
}

// CounterEffectReverseAndBounce reverses play and sends the pending penalty
// back to whoever played the countered card.
const CounterEffectReverseAndBounce = "reverse_and_bounce"

// CardAction is what happens when a card with a given key is played.
type CardAction struct {
	ActionType      string          `json:"action_type" yaml:"action_type"`
	Target          TargetKind      `json:"target" yaml:"target"`
	Effect          EffectKind      `json:"effect" yaml:"effect"`
	Amount          int             `json:"amount,omitempty" yaml:"amount,omitempty"`
	CanCounter      bool            `json:"can_counter,omitempty" yaml:"can_counter,omitempty"`
	CounterCards    []string        `json:"counter_cards,omitempty" yaml:"counter_cards,omitempty"`
	CounterSameSuit bool            `json:"counter_same_suit,omitempty" yaml:"counter_same_suit,omitempty"`
	ChainAction     bool            `json:"chain_action,omitempty" yaml:"chain_action,omitempty"`
	CounterTo       string          `json:"counter_to,omitempty" yaml:"counter_to,omitempty"`
	CounterOptions  []CounterOption `json:"counter_options,omitempty" yaml:"counter_options,omitempty"`
	ChainCounter    *ChainCounter   `json:"chain_counter,omitempty" yaml:"chain_counter,omitempty"`
	PointsIfLast    int             `json:"points_if_last,omitempty" yaml:"points_if_last,omitempty"`
	CounterEffect   string          `json:"counter_effect,omitempty" yaml:"counter_effect,omitempty"`
	BounceTarget    TargetKind      `json:"bounce_target,omitempty" yaml:"bounce_target,omitempty"`
	BounceAmount    int             `json:"bounce_amount,omitempty" yaml:"bounce_amount,omitempty"`
	SameSuit        bool            `json:"same_suit,omitempty" yaml:"same_suit,omitempty"`
	ChainWith       []string        `json:"chain_with,omitempty" yaml:"chain_with,omitempty"`
	Description     string          `json:"description,omitempty" yaml:"description,omitempty"`
}

// DrawAmount is the configured amount, defaulting to one card.
func (a CardAction) DrawAmount() int {
	if a.Amount > 0 {
		return a.Amount
	}
	return 1
}

// CounterOption is one choice offered when a chain is first countered.
type CounterOption struct {
	Effect      CounterMove `json:"effect" yaml:"effect"`
	Target      TargetKind  `json:"target" yaml:"target"`
	Amount      int         `json:"amount,omitempty" yaml:"amount,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
}

// ChainCounter configures counters after the first one in a chain.
type ChainCounter struct {
	IncreaseAmount int        `json:"increase_amount" yaml:"increase_amount"`
	OrTransfer     TargetKind `json:"or_transfer,omitempty" yaml:"or_transfer,omitempty"`
}

type TargetRule struct {
	Offset      *SeatOffset `json:"offset,omitempty" yaml:"offset,omitempty"`
	Type        string      `json:"type,omitempty" yaml:"type,omitempty"`
	Constraints []string    `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// HasConstraint reports whether c is listed in the rule's constraints.
func (t TargetRule) HasConstraint(c string) bool {
	return slices.Contains(t.Constraints, c)
}

// SeatOffset is a seat distance. Older rule sets write an expression such as
// "players_count / 2"; those are kept verbatim and resolved by target kind.
type SeatOffset struct {
	Value int
	Expr  string
}

func (o SeatOffset) MarshalJSON() ([]byte, error) {
	if o.Expr != "" {
		return json.Marshal(o.Expr)
	}
	return json.Marshal(o.Value)
}

func (o *SeatOffset) UnmarshalJSON(b []byte) error {
	if err := json.Unmarshal(b, &o.Value); err == nil {
		o.Expr = ""
		return nil
	}
	return json.Unmarshal(b, &o.Expr)
}

func (o SeatOffset) MarshalYAML() (any, error) {
	if o.Expr != "" {
		return o.Expr, nil
	}
	return o.Value, nil
}

func (o *SeatOffset) UnmarshalYAML(n *yaml.Node) error {
	if err := n.Decode(&o.Value); err == nil {
		o.Expr = ""
		return nil
	}
	return n.Decode(&o.Expr)
}

type WinCondition struct {
	Type        WinConditionKind `json:"type" yaml:"type"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
}

type PlayRules struct {
	MatchCriteria         []string                  `json:"match_criteria,omitempty" yaml:"match_criteria,omitempty"`
	SpecialCards          map[string]string         `json:"special_cards,omitempty" yaml:"special_cards,omitempty"`
	OneCardAnnouncement   *OneCardAnnouncement      `json:"one_card_announcement,omitempty" yaml:"one_card_announcement,omitempty"`
	EqualSumPenalty       *EqualSumPenalty          `json:"equal_sum_penalty,omitempty" yaml:"equal_sum_penalty,omitempty"`
	LastCardSpecialPoints map[string]LastCardPoints `json:"last_card_special_points,omitempty" yaml:"last_card_special_points,omitempty"`
}

type OneCardAnnouncement struct {
	Required bool `json:"required" yaml:"required"`
	Penalty  int  `json:"penalty" yaml:"penalty"`
}

type EqualSumPenalty struct {
	TwoPlayers   int `json:"two_players" yaml:"two_players"`
	ThreePlayers int `json:"three_players" yaml:"three_players"`
}

const continueIfCountered = "continue_if_countered"

// LastCardPoints is either a point bonus or the "continue_if_countered" marker.
type LastCardPoints struct {
	Points              int
	ContinueIfCountered bool
}

func (p LastCardPoints) MarshalJSON() ([]byte, error) {
	if p.ContinueIfCountered {
		return json.Marshal(continueIfCountered)
	}
	return json.Marshal(p.Points)
}

func (p *LastCardPoints) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return p.setMarker(s)
	}
	return json.Unmarshal(b, &p.Points)
}

func (p LastCardPoints) MarshalYAML() (any, error) {
	if p.ContinueIfCountered {
		return continueIfCountered, nil
	}
	return p.Points, nil
}

func (p *LastCardPoints) UnmarshalYAML(n *yaml.Node) error {
	if err := n.Decode(&p.Points); err == nil {
		return nil
	}
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	return p.setMarker(s)
}

func (p *LastCardPoints) setMarker(s string) error {
	if s != continueIfCountered {
		return fmt.Errorf("last_card_special_points: unknown marker %q", s)
	}
	p.ContinueIfCountered = true
	return nil
}

// --- Lookups ---

// ActionFor returns the action configured for a card: the exact
// "<suit>_<rank>" key first, then the any-suit "*_<rank>" key.
func (rs *RuleSet) ActionFor(c Card) (CardAction, bool) {
	if a, ok := rs.CardActions[c.Key()]; ok {
		return a, true
	}
	a, ok := rs.CardActions["*_"+c.Rank]
	return a, ok
}

// IsWildRank reports whether a rank is flagged in play_rules.special_cards.
func (rs *RuleSet) IsWildRank(rank string) bool {
	_, ok := rs.PlayRules.SpecialCards[rank]
	return ok
}

// HasWinCondition reports whether kind is configured.
func (rs *RuleSet) HasWinCondition(kind WinConditionKind) bool {
	for _, w := range rs.WinConditions {
		if w.Type == kind {
			return true
		}
	}
	return false
}

// Matches reports whether the match criteria include c ("suit" or "value").
func (rs *RuleSet) Matches(c string) bool {
	if len(rs.PlayRules.MatchCriteria) == 0 {
		return true
	}
	return slices.Contains(rs.PlayRules.MatchCriteria, c)
}

// DeckSize is the number of cards build_deck produces.
func (rs *RuleSet) DeckSize() int {
	n := len(rs.DeckConfiguration.Suits) * len(rs.DeckConfiguration.Values)
	for _, s := range rs.DeckConfiguration.SpecialCards {
		n += s.Count
	}
	return n
}

// MaxPlayers is the largest table the deck can deal to while still seeding
// the discard pile.
func (rs *RuleSet) MaxPlayers() int {
	per := rs.DealingConfig.CardsPerPlayer
	if per <= 0 {
		return 0
	}
	return (rs.DeckSize() - 1) / per
}

func (rs *RuleSet) hasRank(rank string) bool {
	if slices.Contains(rs.DeckConfiguration.Values, rank) {
		return true
	}
	for _, s := range rs.DeckConfiguration.SpecialCards {
		if s.Rank() == rank {
			return true
		}
	}
	return false
}

// --- Validation ---

func (rs *RuleSet) normalize() {
	if rs.TurnFlow.InitialDirection == 0 {
		rs.TurnFlow.InitialDirection = Clockwise
	}
	if rs.DealingConfig.CardsPerPlayer == 0 {
		rs.DealingConfig.CardsPerPlayer = 7
	}
	if rs.DealingConfig.MinCards == 0 {
		rs.DealingConfig.MinCards = 1
	}
	if rs.DealingConfig.MaxCards == 0 {
		rs.DealingConfig.MaxCards = rs.DealingConfig.CardsPerPlayer
	}
	if rs.ID == "" {
		rs.ID = strings.ToLower(strings.ReplaceAll(rs.Name, " ", "-"))
	}
}

// Validate checks a rule set for internal consistency.
func (rs *RuleSet) Validate() error {
	dc := rs.DeckConfiguration
	if len(dc.Suits) == 0 || len(dc.Values) == 0 {
		return ruleErr(ErrInvalidRuleSet, "deck_configuration needs at least one suit and one value")
	}
	for _, s := range dc.SpecialCards {
		if s.Count < 0 || s.Rank() == "" {
			return ruleErr(ErrInvalidRuleSet, "special card %q needs a value and a non-negative count", s.Type)
		}
	}
	d := rs.DealingConfig
	switch {
	case d.CardsPerPlayer <= 0 || d.MinCards <= 0 || d.MaxCards <= 0:
		return ruleErr(ErrInvalidRuleSet, "dealing_config values must be greater than 0")
	case d.MinCards > d.MaxCards:
		return ruleErr(ErrInvalidRuleSet, "min_cards cannot be greater than max_cards")
	case d.CardsPerPlayer < d.MinCards || d.CardsPerPlayer > d.MaxCards:
		return ruleErr(ErrInvalidRuleSet, "cards_per_player must be between min_cards and max_cards")
	case rs.MaxPlayers() < 2:
		return ruleErr(ErrInvalidRuleSet, "deck of %d cards cannot deal %d cards to two players", rs.DeckSize(), d.CardsPerPlayer)
	}
	if len(rs.WinConditions) == 0 {
		return ruleErr(ErrInvalidRuleSet, "at least one win condition is required")
	}
	for key, a := range rs.CardActions {
		if a.CounterTo != "" && !rs.hasRank(a.CounterTo) {
			return ruleErr(ErrInvalidRuleSet, "%s: counter_to %q is not a rank in the deck", key, a.CounterTo)
		}
		if a.CounterEffect != "" && a.CounterEffect != CounterEffectReverseAndBounce {
			return ruleErr(ErrInvalidRuleSet, "%s: unknown counter_effect %q", key, a.CounterEffect)
		}
		if a.Effect == EffectChooseNextPlayer && a.Target != TargetPlayerChoice {
			return ruleErr(ErrInvalidRuleSet, "%s: choose_next_player needs target player_choice", key)
		}
	}
	return nil
}

// --- Parsing ---

// ParseRuleSet decodes a rule set in JSON or YAML ("json", "yaml", "yml"),
// fills defaults and validates it.
func ParseRuleSet(data []byte, format string) (*RuleSet, error) {
	var rs RuleSet
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &rs); err != nil {
			return nil, fmt.Errorf("parse rule set YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &rs); err != nil {
			return nil, fmt.Errorf("parse rule set JSON: %w", err)
		}
	}
	rs.normalize()
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// LoadRuleSetFile reads a rule set file, picking the format from its extension.
func LoadRuleSetFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule set file: %w", err)
	}
	return ParseRuleSet(data, filepath.Ext(path))
}

// LoadRuleSetDir loads every .json/.yaml/.yml file in dir.
func LoadRuleSetDir(dir string) ([]*RuleSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read rule set dir: %w", err)
	}
	var out []*RuleSet
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		rs, err := LoadRuleSetFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, rs)
	}
	return out, nil
}

// JSON encodes the rule set in its persisted form.
func (rs *RuleSet) JSON() ([]byte, error) {
	return json.Marshal(rs)
}
