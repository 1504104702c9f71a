package web

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/peterkuimelis/cardrules/internal/game"
	"github.com/peterkuimelis/cardrules/internal/table"
)

// LoadRuleSets registers every rule-set file in dir with mgr and, when saver
// is set, persists it. It returns the loaded ids.
func LoadRuleSets(ctx context.Context, dir string, mgr *table.Manager, saver RuleSetSaver, logger logrus.FieldLogger) ([]string, error) {
	sets, err := game.LoadRuleSetDir(dir)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(sets))
	for _, rs := range sets {
		if err := mgr.Register(rs); err != nil {
			return ids, fmt.Errorf("register %s: %w", rs.ID, err)
		}
		if saver != nil {
			if err := saver.SaveRuleSet(ctx, rs); err != nil {
				return ids, fmt.Errorf("save %s: %w", rs.ID, err)
			}
		}
		if logger != nil {
			logger.WithFields(logrus.Fields{"rule_set": rs.ID, "variant": rs.Variant}).Info("rule set loaded")
		}
		ids = append(ids, rs.ID)
	}
	return ids, nil
}
