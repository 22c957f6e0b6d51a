package metrics

import (
	"time"

	"tradekuant/internal/store"
)

// ComputePlatform builds the full cache row for one (platform, period)
// pair from the snapshots and trades inside the period window.
// initialCapital anchors the percentage baseline for the all period;
// narrower windows measure against the window's own opening equity.
func ComputePlatform(platformID int, period string, snaps []store.Snapshot, trades []store.Trade, initialCapital float64) store.MetricsCache {
	rec := store.MetricsCache{
		PlatformID:   platformID,
		Period:       period,
		CalculatedAt: time.Now(),
	}
	if len(snaps) == 0 {
		rec.ProfitFactor = ProfitFactor(trades)
		rec.WinRate = WinRate(trades)
		rec.AvgWin = AvgWin(trades)
		rec.AvgLoss = AvgLoss(trades)
		rec.AvgTradeDurationDays = AvgTradeDuration(trades)
		rec.TotalTrades = len(trades)
		rec.WinningTrades, rec.LosingTrades = countWinnersLosers(trades)
		return rec
	}

	sorted := sortedByDate(snaps)
	first := sorted[0]
	last := sorted[len(sorted)-1]

	baseline := initialCapital
	if period != "all" {
		baseline = first.Equity
	}

	rec.TotalReturn = TotalReturn(baseline, last.Equity)
	rec.CAGR = CAGR(baseline, last.Equity, YearsBetween(first.Date, last.Date))
	rec.AvgMonthlyReturn = AvgMonthlyReturn(sorted)
	rec.BestMonth = BestMonth(sorted)
	rec.WorstMonth = WorstMonth(sorted)
	rec.PositiveMonths = PositiveMonths(sorted)
	rec.NegativeMonths = NegativeMonths(sorted)

	rec.MaxDrawdown = MaxDrawdown(sorted)
	rec.CurrentDrawdown = CurrentDrawdown(sorted)
	rec.Volatility = Volatility(sorted)

	rec.SharpeRatio = SharpeRatio(sorted)
	rec.SortinoRatio = SortinoRatio(sorted)
	rec.CalmarRatio = CalmarRatio(rec.CAGR, rec.MaxDrawdown)
	rec.ProfitFactor = ProfitFactor(trades)

	rec.TotalTrades = len(trades)
	rec.WinningTrades, rec.LosingTrades = countWinnersLosers(trades)
	rec.WinRate = WinRate(trades)
	rec.AvgWin = AvgWin(trades)
	rec.AvgLoss = AvgLoss(trades)
	rec.AvgTradeDurationDays = AvgTradeDuration(trades)

	rec.CurrentCopiers = last.Copiers
	rec.TotalAUM = last.AUM
	return rec
}

// ComputeGlobal folds per-platform latest snapshots plus the combined
// per-date equity series into the all-platforms cache row.
// combined carries one synthetic snapshot per date with equity summed
// across platforms. Like ComputePlatform, the all period measures
// against deployed capital while narrower windows measure return and
// pnl against the combined window's opening equity.
func ComputeGlobal(period string, latest []store.Snapshot, combined []store.Snapshot, initialCapital float64) store.GlobalMetricsCache {
	rec := store.GlobalMetricsCache{
		Period:       period,
		CalculatedAt: time.Now(),
	}
	for _, s := range latest {
		rec.TotalEquity += s.Equity
		rec.TotalCopiers += s.Copiers
		rec.TotalAUM += s.AUM
		if period == "all" {
			rec.TotalPnL += s.TotalPnL
		}
	}
	if period == "all" {
		rec.TotalReturn = TotalReturn(initialCapital*float64(len(latest)), rec.TotalEquity)
	} else if len(combined) > 0 {
		sorted := sortedByDate(combined)
		opening := sorted[0].Equity
		closing := sorted[len(sorted)-1].Equity
		rec.TotalReturn = TotalReturn(opening, closing)
		rec.TotalPnL = closing - opening
	}
	rec.CombinedMaxDrawdown = MaxDrawdown(combined)
	return rec
}

func countWinnersLosers(trades []store.Trade) (winners, losers int) {
	for _, t := range trades {
		if t.PnL == nil {
			continue
		}
		switch {
		case *t.PnL > 0:
			winners++
		case *t.PnL < 0:
			losers++
		}
	}
	return winners, losers
}
