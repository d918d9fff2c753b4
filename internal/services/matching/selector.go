// Package matching selects not-yet-consumed target records eligible to be
// adjudicated against a source record.
package matching

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ai-reconciliation-backend/internal/services/normalizer"
)

// StrategyDateAmount is the default windowed near-join on date and amount.
const StrategyDateAmount = "default_date_amount"

const dateWindowDays = 7

var amountTolerance = decimal.RequireFromString("100.00")

type Selector struct {
	logger *zap.Logger
}

func NewSelector(logger *zap.Logger) *Selector {
	return &Selector{logger: logger}
}

// Candidates returns the indices of eligible targets in target-sequence
// order. Targets already marked used are skipped. An unknown strategy is
// non-fatal: it logs a warning and yields no candidates.
//
// The default strategy admits a target iff the date difference is at most 7
// days and the amount difference at most 100.00, both bounds inclusive. A
// record with a zero date is treated as maximally distant; an unparseable
// amount never survives the normalizer, so amounts are always comparable
// here.
func (s *Selector) Candidates(strategy string, src normalizer.Record, targets []normalizer.Record, used []bool) []int {
	if strategy != StrategyDateAmount {
		s.logger.Warn("unknown candidate strategy, yielding no candidates",
			zap.String("strategy", strategy))
		return nil
	}

	var out []int
	for j, tgt := range targets {
		if used[j] {
			continue
		}
		if src.Date.IsZero() || tgt.Date.IsZero() {
			continue
		}
		days := src.Date.Sub(tgt.Date).Hours() / 24
		if days < 0 {
			days = -days
		}
		if days > dateWindowDays {
			continue
		}
		if src.Amount.Sub(tgt.Amount).Abs().GreaterThan(amountTolerance) {
			continue
		}
		out = append(out, j)
	}
	return out
}
