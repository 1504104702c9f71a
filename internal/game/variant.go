package game

// Strategy bundles the variant-specific behaviour the engine delegates to.
type Strategy struct {
	Variant  GameVariant
	Chain    ChainHandler
	Defaults DecisionProvider
}

// NewStrategy returns the strategy for a variant. Unknown variants get the
// basic one.
func NewStrategy(v GameVariant) Strategy {
	switch v {
	case VariantIdiot:
		return Strategy{Variant: VariantIdiot, Chain: IdiotChain{}, Defaults: DefaultDecider{}}
	default:
		return Strategy{Variant: VariantBasic, Chain: BasicChain{}, Defaults: DefaultDecider{}}
	}
}
