package metrics

import (
	"math"
	"sort"
	"time"

	"tradekuant/internal/store"
)

// Annualization assumes 252 trading days per year.
const tradingDaysPerYear = 252

// sortedByDate returns a copy of snaps ordered ascending by date.
// Every series computation works on sorted input.
func sortedByDate(snaps []store.Snapshot) []store.Snapshot {
	out := make([]store.Snapshot, len(snaps))
	copy(out, snaps)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// TotalReturn reports the percentage gain of current over initial.
// 0 when initial is 0.
func TotalReturn(initial, current float64) float64 {
	if initial == 0 {
		return 0
	}
	return (current - initial) / initial * 100
}

// CAGR is the compound annual growth rate in percent.
// 0 when initial or years is 0.
func CAGR(initial, final, years float64) float64 {
	if initial == 0 || years == 0 {
		return 0
	}
	return (math.Pow(final/initial, 1/years) - 1) * 100
}

// YearsBetween measures the span between two YYYY-MM-DD dates in
// fractional years (days / 365.25). 0 when either date is malformed.
func YearsBetween(startDate, endDate string) float64 {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return 0
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return 0
	}
	days := end.Sub(start).Hours() / 24
	return days / 365.25
}

// MonthlyReturns buckets snapshots into YYYY-MM months and reports each
// month's return chained against the previous month's closing equity.
// The first month uses its own opening equity as the base. A month with
// a zero base contributes no entry but still advances the baseline.
// Keys come back in chronological order.
func MonthlyReturns(snaps []store.Snapshot) (map[string]float64, []string) {
	snaps = sortedByDate(snaps)

	type bucket struct{ start, end float64 }
	months := make(map[string]*bucket)
	var order []string
	for _, s := range snaps {
		if len(s.Date) < 7 {
			continue
		}
		key := s.Date[:7]
		b, ok := months[key]
		if !ok {
			months[key] = &bucket{start: s.Equity, end: s.Equity}
			order = append(order, key)
			continue
		}
		b.end = s.Equity
	}

	returns := make(map[string]float64, len(months))
	var keys []string
	var prevEnd float64
	for i, key := range order {
		b := months[key]
		base := prevEnd
		if i == 0 {
			base = b.start
		}
		if base > 0 {
			returns[key] = (b.end - base) / base * 100
			keys = append(keys, key)
		}
		prevEnd = b.end
	}
	return returns, keys
}

// AvgMonthlyReturn is the simple mean of the monthly returns. 0 when
// there are no complete months.
func AvgMonthlyReturn(snaps []store.Snapshot) float64 {
	returns, keys := MonthlyReturns(snaps)
	if len(keys) == 0 {
		return 0
	}
	var sum float64
	for _, k := range keys {
		sum += returns[k]
	}
	return sum / float64(len(keys))
}

// BestMonth reports the highest monthly return, 0 when empty.
func BestMonth(snaps []store.Snapshot) float64 {
	returns, keys := MonthlyReturns(snaps)
	if len(keys) == 0 {
		return 0
	}
	best := math.Inf(-1)
	for _, k := range keys {
		if returns[k] > best {
			best = returns[k]
		}
	}
	return best
}

// WorstMonth reports the lowest monthly return, 0 when empty.
func WorstMonth(snaps []store.Snapshot) float64 {
	returns, keys := MonthlyReturns(snaps)
	if len(keys) == 0 {
		return 0
	}
	worst := math.Inf(1)
	for _, k := range keys {
		if returns[k] < worst {
			worst = returns[k]
		}
	}
	return worst
}

// PositiveMonths counts months with a return above 0.
func PositiveMonths(snaps []store.Snapshot) int {
	returns, keys := MonthlyReturns(snaps)
	n := 0
	for _, k := range keys {
		if returns[k] > 0 {
			n++
		}
	}
	return n
}

// NegativeMonths counts months with a return below 0.
func NegativeMonths(snaps []store.Snapshot) int {
	returns, keys := MonthlyReturns(snaps)
	n := 0
	for _, k := range keys {
		if returns[k] < 0 {
			n++
		}
	}
	return n
}

// MaxDrawdown runs a single forward peak-tracking pass and reports the
// deepest percentage decline from a running peak. Always >= 0.
func MaxDrawdown(snaps []store.Snapshot) float64 {
	if len(snaps) == 0 {
		return 0
	}
	snaps = sortedByDate(snaps)

	peak := snaps[0].Equity
	maxDD := 0.0
	for _, s := range snaps {
		if s.Equity > peak {
			peak = s.Equity
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - s.Equity) / peak * 100
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// CurrentDrawdown reports how far the last equity sits below the
// all-time peak of the series.
func CurrentDrawdown(snaps []store.Snapshot) float64 {
	if len(snaps) == 0 {
		return 0
	}
	snaps = sortedByDate(snaps)

	peak := snaps[0].Equity
	for _, s := range snaps {
		if s.Equity > peak {
			peak = s.Equity
		}
	}
	if peak <= 0 {
		return 0
	}
	last := snaps[len(snaps)-1].Equity
	return (peak - last) / peak * 100
}

// dailyReturns builds the daily percentage return series
// daily_pnl / equity * 100, dropping rows that produce NaN.
func dailyReturns(snaps []store.Snapshot) []float64 {
	out := make([]float64, 0, len(snaps))
	for _, s := range snaps {
		r := s.DailyPnL / s.Equity * 100
		if math.IsNaN(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// population standard deviation, not sample
func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// Volatility is the annualized standard deviation of daily returns.
func Volatility(snaps []store.Snapshot) float64 {
	returns := dailyReturns(snaps)
	if len(returns) == 0 {
		return 0
	}
	return stdDev(returns) * math.Sqrt(tradingDaysPerYear)
}

// SharpeRatio is the annualized mean/stddev of daily returns with a
// zero risk-free rate. 0 for flat or empty series.
func SharpeRatio(snaps []store.Snapshot) float64 {
	returns := dailyReturns(snaps)
	if len(returns) == 0 {
		return 0
	}
	sd := stdDev(returns)
	if sd == 0 {
		return 0
	}
	return mean(returns) / sd * math.Sqrt(tradingDaysPerYear)
}

// SortinoRatio annualizes mean daily return over downside deviation
// only. 0 when there are no negative days.
func SortinoRatio(snaps []store.Snapshot) float64 {
	returns := dailyReturns(snaps)
	if len(returns) == 0 {
		return 0
	}
	var negSquares float64
	negCount := 0
	for _, r := range returns {
		if r < 0 {
			negSquares += r * r
			negCount++
		}
	}
	if negCount == 0 {
		return 0
	}
	downside := math.Sqrt(negSquares / float64(negCount))
	if downside == 0 {
		return 0
	}
	return mean(returns) / downside * math.Sqrt(tradingDaysPerYear)
}

// CalmarRatio divides CAGR by max drawdown. 0 when drawdown is 0.
func CalmarRatio(cagr, maxDrawdown float64) float64 {
	if maxDrawdown == 0 {
		return 0
	}
	return cagr / maxDrawdown
}

// ProfitFactor is gross profit over gross loss. +Inf with profit and no
// realized loss, 0 when both sides are empty.
func ProfitFactor(trades []store.Trade) float64 {
	var grossProfit, grossLoss float64
	for _, t := range trades {
		if t.PnL == nil {
			continue
		}
		switch {
		case *t.PnL > 0:
			grossProfit += *t.PnL
		case *t.PnL < 0:
			grossLoss += *t.PnL
		}
	}
	grossLoss = math.Abs(grossLoss)
	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossProfit / grossLoss
}

// WinRate is the share of trades with positive realized pnl, in
// percent over the whole trade set.
func WinRate(trades []store.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	winners := 0
	for _, t := range trades {
		if t.PnL != nil && *t.PnL > 0 {
			winners++
		}
	}
	return float64(winners) / float64(len(trades)) * 100
}

// AvgWin is the mean realized pnl over winning trades, 0 when none.
func AvgWin(trades []store.Trade) float64 {
	var sum float64
	n := 0
	for _, t := range trades {
		if t.PnL != nil && *t.PnL > 0 {
			sum += *t.PnL
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// AvgLoss is the mean realized pnl over losing trades, 0 when none.
// The result is negative.
func AvgLoss(trades []store.Trade) float64 {
	var sum float64
	n := 0
	for _, t := range trades {
		if t.PnL != nil && *t.PnL < 0 {
			sum += *t.PnL
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// AvgTradeDuration is the mean holding time of closed trades in whole
// days. 0 when nothing is closed.
func AvgTradeDuration(trades []store.Trade) float64 {
	var sum float64
	n := 0
	for _, t := range trades {
		if t.ClosedAt == nil || t.ClosedAt.IsZero() {
			continue
		}
		days := math.Trunc(t.ClosedAt.Sub(t.OpenedAt).Hours() / 24)
		sum += days
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
