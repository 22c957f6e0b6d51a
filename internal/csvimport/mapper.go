package csvimport

import (
	"encoding/json"

	"tradekuant/internal/store"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RowToSnapshot maps a validated row onto a snapshot insert for the
// given platform. initialCapital anchors the percentage baseline and
// serves as the floor for peak equity, since manual imports carry no
// history to derive a real running peak from.
func RowToSnapshot(row Row, platformID int, initialCapital float64) store.Snapshot {
	equity := decimal.NewFromFloat(row.Equity)
	capital := decimal.NewFromFloat(initialCapital)

	var pnlPercent decimal.Decimal
	if !capital.IsZero() {
		pnlPercent = decimal.NewFromFloat(row.TotalPnL).Div(capital).Mul(hundred)
	}

	peak := capital
	if equity.GreaterThanOrEqual(capital) {
		peak = equity
	}
	var drawdown decimal.Decimal
	if peak.IsPositive() {
		drawdown = peak.Sub(equity).Div(peak).Mul(hundred)
	}

	peakValue := peak.InexactFloat64()
	snap := store.Snapshot{
		PlatformID:      platformID,
		Date:            row.Date,
		Equity:          row.Equity,
		DailyPnL:        row.DailyPnL,
		TotalPnL:        row.TotalPnL,
		TotalPnLPercent: pnlPercent.InexactFloat64(),
		PeakEquity:      &peakValue,
		Drawdown:        drawdown.InexactFloat64(),
		Copiers:         row.Copiers,
		AUM:             row.AUM,
		Source:          store.SourceManual,
	}
	if row.Notes != "" {
		notes := row.Notes
		snap.Notes = &notes
	}
	if raw, err := json.Marshal(row); err == nil {
		snap.RawData = raw
	}
	return snap
}
