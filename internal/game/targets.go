package game

// ConstraintNotSelf excludes the actor from player_choice candidates.
const ConstraintNotSelf = "not_self"

func offsetOr(rs *RuleSet, kind TargetKind, def int) int {
	rule, ok := rs.TargetingRules[kind]
	if !ok || rule.Offset == nil || rule.Offset.Expr != "" || rule.Offset.Value == 0 {
		return def
	}
	return rule.Offset.Value
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// ResolveTargets maps a symbolic target to concrete player ids, seen from
// actor. Seats form a ring; direction-relative kinds step along gs.Direction.
// For player_choice it returns the candidate list a decision must pick from.
func ResolveTargets(gs *GameState, rs *RuleSet, actor string, kind TargetKind) []string {
	dir := int(gs.Direction)
	switch kind {
	case TargetNone:
		return nil
	case TargetSelf:
		return []string{actor}
	case TargetNextPlayer:
		return []string{gs.SeatAt(actor, dir*abs(offsetOr(rs, kind, 1)))}
	case TargetPreviousPlayer:
		return []string{gs.SeatAt(actor, -dir*abs(offsetOr(rs, kind, 1)))}
	case TargetSecondNextPlayer:
		return []string{gs.SeatAt(actor, dir*abs(offsetOr(rs, kind, 2)))}
	case TargetOppositePlayer:
		return []string{gs.SeatAt(actor, len(gs.Seats)/2)}
	case TargetAll:
		return append([]string{actor}, ringAfter(gs, actor)...)
	case TargetAllOthers:
		return ringAfter(gs, actor)
	case TargetPlayerChoice:
		return choiceCandidates(gs, rs, actor)
	}
	return nil
}

// ringAfter lists every other seat in play order starting after actor.
func ringAfter(gs *GameState, actor string) []string {
	n := len(gs.Seats)
	out := make([]string, 0, n-1)
	for i := 1; i < n; i++ {
		out = append(out, gs.SeatAt(actor, i*int(gs.Direction)))
	}
	return out
}

func choiceCandidates(gs *GameState, rs *RuleSet, actor string) []string {
	out := ringAfter(gs, actor)
	if !rs.TargetingRules[TargetPlayerChoice].HasConstraint(ConstraintNotSelf) {
		out = append(out, actor)
	}
	return out
}
