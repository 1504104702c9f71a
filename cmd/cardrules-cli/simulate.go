package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/peterkuimelis/cardrules/internal/game"
	"github.com/peterkuimelis/cardrules/internal/log"
)

// resolveRules finds a rule set by built-in id or file path.
func resolveRules(name string) (*game.RuleSet, error) {
	if _, err := os.Stat(name); err == nil {
		return game.LoadRuleSetFile(name)
	}
	return game.BuiltinRegistry().Get(name)
}

// simulate plays a whole game with every seat auto-played by
// Engine.AutoPlay. decider answers the decisions. It returns the finished
// state.
func simulate(ctx context.Context, rs *game.RuleSet, players int, seed int64, maxActions int, decider game.DecisionProvider, w io.Writer) (*game.GameState, error) {
	ids := make([]string, players)
	for i := range ids {
		ids[i] = fmt.Sprintf("P%d", i+1)
	}
	eng := game.NewEngine(rs, game.EngineConfig{
		Logger:  log.NewTextLogger(w),
		Decider: decider,
		Seed:    seed,
	})
	gs, err := eng.NewGame("simulation", ids)
	if err != nil {
		return nil, err
	}

	for i := 0; i < maxActions && !gs.GameOver; i++ {
		p := gs.Actor()
		if out := eng.AutoPlay(ctx, gs, p); !out.Success {
			return gs, fmt.Errorf("%s stuck: %w", p, out.Err())
		}
	}
	if !gs.GameOver {
		return gs, fmt.Errorf("no winner after %d actions", maxActions)
	}
	return gs, nil
}

func printScores(w io.Writer, gs *game.GameState) {
	fmt.Fprintf(w, "\nWinner: %s after %d turns\n", gs.WinnerID, gs.Turn)
	for _, id := range gs.Seats {
		p := gs.Player(id)
		fmt.Fprintf(w, "  %-4s score %-4d cards left %d\n", id, p.Score, p.HandCount())
	}
}
