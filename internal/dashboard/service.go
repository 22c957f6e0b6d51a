package dashboard

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"tradekuant/internal/logger"
	"tradekuant/internal/metrics"
	"tradekuant/internal/store"

	"golang.org/x/sync/errgroup"
)

// Periods the dashboard understands, widest last.
var validPeriods = []string{"1m", "3m", "6m", "1y", "ytd", "all"}

const defaultPlatformColor = "#10B981"

// Service composes the public dashboard payload and owns the metrics
// cache write path.
type Service struct {
	store          store.Store
	initialCapital float64
}

func NewService(st store.Store, initialCapital float64) *Service {
	return &Service{store: st, initialCapital: initialCapital}
}

// InitialCapital is the percentage anchor shared with the import paths.
func (s *Service) InitialCapital() float64 {
	return s.initialCapital
}

// GlobalSummary is the all-platforms headline block.
type GlobalSummary struct {
	TotalEquity  float64 `json:"totalEquity"`
	TotalReturn  float64 `json:"totalReturn"`
	MaxDrawdown  float64 `json:"maxDrawdown"`
	TotalCopiers int     `json:"totalCopiers"`
	TotalAUM     float64 `json:"totalAUM"`
	SharpeRatio  float64 `json:"sharpeRatio"`
	SortinoRatio float64 `json:"sortinoRatio"`
	WinRate      float64 `json:"winRate"`
	YTDReturn    float64 `json:"ytdReturn"`
}

// PlatformRow is one platform's summary card.
type PlatformRow struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Slug       string  `json:"slug"`
	Type       string  `json:"type"`
	Color      string  `json:"color"`
	Equity     float64 `json:"equity"`
	Return     float64 `json:"return"`
	Copiers    int     `json:"copiers"`
	AUM        float64 `json:"aum"`
	Drawdown   float64 `json:"drawdown"`
	Sharpe     float64 `json:"sharpe"`
	Sortino    float64 `json:"sortino"`
	WinRate    float64 `json:"winRate"`
	LastUpdate string  `json:"lastUpdate"`
}

// MonthlyReturn is one bar of the monthly grid.
type MonthlyReturn struct {
	Month string  `json:"month"`
	Value float64 `json:"value"`
}

// EquityPoint carries per-platform equity for one date plus the sum.
type EquityPoint struct {
	Date   string
	Series map[string]float64
	Total  float64
}

// MarshalJSON flattens the per-platform series into the object itself,
// keyed by slug, next to date and total.
func (p EquityPoint) MarshalJSON() ([]byte, error) {
	buf := []byte(fmt.Sprintf(`{"date":%q`, p.Date))
	slugs := make([]string, 0, len(p.Series))
	for slug := range p.Series {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	for _, slug := range slugs {
		buf = append(buf, fmt.Sprintf(`,%q:%s`, slug, formatFloat(p.Series[slug]))...)
	}
	buf = append(buf, fmt.Sprintf(`,"total":%s}`, formatFloat(p.Total))...)
	return buf, nil
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return fmt.Sprintf("%g", v)
}

// DrawdownPoint is one point of the combined drawdown curve. Drawdown
// is zero or negative.
type DrawdownPoint struct {
	Date     string  `json:"date"`
	Drawdown float64 `json:"drawdown"`
}

// Data is the full dashboard payload for one period.
type Data struct {
	Period         string               `json:"period"`
	Global         GlobalSummary        `json:"global"`
	Platforms      []PlatformRow        `json:"platforms"`
	MonthlyReturns []MonthlyReturn      `json:"monthlyReturns"`
	EquityCurve    []EquityPoint        `json:"equityCurve"`
	DrawdownCurve  []DrawdownPoint      `json:"drawdownCurve"`
	SparklineData  map[string][]float64 `json:"sparklineData"`
}

// NormalizePeriod maps unknown tokens to all.
func NormalizePeriod(period string) string {
	for _, p := range validPeriods {
		if period == p {
			return period
		}
	}
	return "all"
}

// PeriodStart resolves a period token to its window start. all is a
// fixed two year lookback, not since inception.
func PeriodStart(period string, now time.Time) time.Time {
	switch period {
	case "1m":
		return now.AddDate(0, -1, 0)
	case "3m":
		return now.AddDate(0, -3, 0)
	case "6m":
		return now.AddDate(0, -6, 0)
	case "1y":
		return now.AddDate(-1, 0, 0)
	case "ytd":
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	default:
		return now.AddDate(-2, 0, 0)
	}
}

// Aggregate builds the dashboard payload for the requested period.
// Any store read failure aborts the whole call; there is no partial
// payload.
func (s *Service) Aggregate(ctx context.Context, period string) (Data, error) {
	period = NormalizePeriod(period)
	now := time.Now()
	periodStart := PeriodStart(period, now).Format("2006-01-02")

	platforms, err := s.store.ListPlatforms(ctx)
	if err != nil {
		return Data{}, fmt.Errorf("list platforms: %w", err)
	}

	var (
		latestSlots = make([]*store.Snapshot, len(platforms))
		metricRows  []store.MetricsCache
		globalRow   store.GlobalMetricsCache
		globalOK    bool
		chartSnaps  []store.Snapshot
		sparkSnaps  []store.Snapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range platforms {
		i, p := i, p
		g.Go(func() error {
			snap, ok, err := s.store.LatestSnapshot(gctx, p.ID)
			if err != nil {
				return fmt.Errorf("latest snapshot for %s: %w", p.Slug, err)
			}
			if ok {
				latestSlots[i] = &snap
			}
			return nil
		})
	}
	g.Go(func() error {
		rows, _, err := s.resolveMetrics(gctx, period)
		if err != nil {
			return err
		}
		metricRows = rows
		return nil
	})
	g.Go(func() error {
		row, ok, err := s.resolveGlobal(gctx, period)
		if err != nil {
			return err
		}
		globalRow, globalOK = row, ok
		return nil
	})
	g.Go(func() error {
		snaps, err := s.store.ListSnapshotsSince(gctx, periodStart)
		if err != nil {
			return fmt.Errorf("chart snapshots: %w", err)
		}
		chartSnaps = snaps
		return nil
	})
	g.Go(func() error {
		since := now.AddDate(0, 0, -30).Format("2006-01-02")
		snaps, err := s.store.ListSnapshotsSince(gctx, since)
		if err != nil {
			return fmt.Errorf("sparkline snapshots: %w", err)
		}
		sparkSnaps = snaps
		return nil
	})
	if err := g.Wait(); err != nil {
		return Data{}, err
	}

	latest := make(map[int]*store.Snapshot, len(platforms))
	for i, p := range platforms {
		if latestSlots[i] != nil {
			latest[p.ID] = latestSlots[i]
		}
	}

	metricByPlatform := make(map[int]*store.MetricsCache, len(metricRows))
	for i := range metricRows {
		metricByPlatform[metricRows[i].PlatformID] = &metricRows[i]
	}

	rows := make([]PlatformRow, 0, len(platforms))
	for _, p := range platforms {
		rows = append(rows, buildPlatformRow(p, latest[p.ID], metricByPlatform[p.ID], now))
	}

	global := buildGlobalSummary(rows, metricRows, globalRow, globalOK)

	return Data{
		Period:         period,
		Global:         global,
		Platforms:      rows,
		MonthlyReturns: buildMonthlyReturns(chartSnaps, period, now),
		EquityCurve:    buildEquityCurve(chartSnaps, platforms),
		DrawdownCurve:  buildDrawdownCurve(chartSnaps),
		SparklineData:  buildSparklines(sparkSnaps, platforms),
	}, nil
}

// resolveMetrics reads the cache for the period and widens to the all
// window when the period has no rows at all. The cache is treated as
// authoritative; a gap never triggers a live recomputation here.
func (s *Service) resolveMetrics(ctx context.Context, period string) ([]store.MetricsCache, string, error) {
	rows, err := s.store.MetricsByPeriod(ctx, period)
	if err != nil {
		return nil, "", fmt.Errorf("metrics cache for %s: %w", period, err)
	}
	if len(rows) > 0 || period == "all" {
		return rows, period, nil
	}
	logger.Debugf("metrics cache empty for period %s, widening to all", period)
	rows, err = s.store.MetricsByPeriod(ctx, "all")
	if err != nil {
		return nil, "", fmt.Errorf("metrics cache fallback: %w", err)
	}
	return rows, "all", nil
}

func (s *Service) resolveGlobal(ctx context.Context, period string) (store.GlobalMetricsCache, bool, error) {
	row, ok, err := s.store.GlobalMetricsByPeriod(ctx, period)
	if err != nil {
		return store.GlobalMetricsCache{}, false, fmt.Errorf("global metrics for %s: %w", period, err)
	}
	if ok || period == "all" {
		return row, ok, nil
	}
	row, ok, err = s.store.GlobalMetricsByPeriod(ctx, "all")
	if err != nil {
		return store.GlobalMetricsCache{}, false, fmt.Errorf("global metrics fallback: %w", err)
	}
	return row, ok, nil
}

// PlatformTypeLabel names the product category a slug belongs to.
func PlatformTypeLabel(slug string) string {
	switch slug {
	case "bitget":
		return "Copy Trading"
	case "darwinex":
		return "DARWIN Index"
	default:
		return "Popular Investor"
	}
}

// buildPlatformRow merges the latest snapshot with the cached metrics.
// Return and drawdown prefer the cache, copiers and aum prefer the live
// snapshot. The precedence is part of the contract.
func buildPlatformRow(p store.Platform, snap *store.Snapshot, m *store.MetricsCache, now time.Time) PlatformRow {
	row := PlatformRow{
		ID:    p.ID,
		Name:  p.Name,
		Slug:  p.Slug,
		Type:  PlatformTypeLabel(p.Slug),
		Color: p.Color,
	}
	if row.Color == "" {
		row.Color = defaultPlatformColor
	}
	if snap != nil {
		row.Equity = snap.Equity
		row.Return = snap.TotalPnLPercent
		row.Copiers = snap.Copiers
		row.AUM = snap.AUM
		row.Drawdown = snap.Drawdown
		switch {
		case !snap.UpdatedAt.IsZero():
			row.LastUpdate = snap.UpdatedAt.Format(time.RFC3339)
		case !snap.CreatedAt.IsZero():
			row.LastUpdate = snap.CreatedAt.Format(time.RFC3339)
		}
	}
	if row.LastUpdate == "" {
		row.LastUpdate = now.Format(time.RFC3339)
	}
	if m != nil {
		row.Return = m.TotalReturn
		row.Drawdown = m.MaxDrawdown
		row.Sharpe = m.SharpeRatio
		row.Sortino = m.SortinoRatio
		row.WinRate = m.WinRate
		if snap == nil {
			row.Copiers = m.CurrentCopiers
			row.AUM = m.TotalAUM
		}
	}
	return row
}

// buildGlobalSummary sums platform rows and averages the per-platform
// ratios with a simple unweighted mean. Max drawdown prefers the global
// cache row and falls back to the worst per-platform figure.
func buildGlobalSummary(rows []PlatformRow, metricRows []store.MetricsCache, global store.GlobalMetricsCache, globalOK bool) GlobalSummary {
	var out GlobalSummary
	for _, r := range rows {
		out.TotalEquity += r.Equity
		out.TotalCopiers += r.Copiers
		out.TotalAUM += r.AUM
	}
	if n := len(metricRows); n > 0 {
		var sharpe, sortino, winRate, maxDD float64
		for _, m := range metricRows {
			sharpe += m.SharpeRatio
			sortino += m.SortinoRatio
			winRate += m.WinRate
			if dd := math.Abs(m.MaxDrawdown); dd > maxDD {
				maxDD = dd
			}
		}
		out.SharpeRatio = sharpe / float64(n)
		out.SortinoRatio = sortino / float64(n)
		out.WinRate = winRate / float64(n)
		out.MaxDrawdown = maxDD
	}
	if globalOK {
		out.TotalReturn = global.TotalReturn
		out.YTDReturn = global.TotalReturn
		if global.CombinedMaxDrawdown != 0 {
			out.MaxDrawdown = global.CombinedMaxDrawdown
		}
	}
	return out
}

// sumByDate collapses snapshots into one total-equity value per date,
// returning the dates in ascending order.
func sumByDate(snaps []store.Snapshot) (map[string]float64, []string) {
	totals := make(map[string]float64)
	var dates []string
	for _, s := range snaps {
		if _, ok := totals[s.Date]; !ok {
			dates = append(dates, s.Date)
		}
		totals[s.Date] += s.Equity
	}
	sort.Strings(dates)
	return totals, dates
}

// sampleStride picks the chart decimation stride for a series length.
func sampleStride(n int) int {
	switch {
	case n > 180:
		return 3
	case n > 90:
		return 2
	default:
		return 1
	}
}

// buildMonthlyReturns emits the last N calendar months for the period,
// zero-filled where no data exists. Each month is measured against its
// own opening total equity.
func buildMonthlyReturns(snaps []store.Snapshot, period string, now time.Time) []MonthlyReturn {
	totals, dates := sumByDate(snaps)

	type bucket struct{ start, end float64 }
	months := make(map[string]*bucket)
	for _, date := range dates {
		if len(date) < 7 {
			continue
		}
		key := date[:7]
		b, ok := months[key]
		if !ok {
			months[key] = &bucket{start: totals[date], end: totals[date]}
			continue
		}
		b.end = totals[date]
	}

	monthsToShow := 12
	switch period {
	case "1m":
		monthsToShow = 1
	case "3m":
		monthsToShow = 3
	case "6m":
		monthsToShow = 6
	}

	out := make([]MonthlyReturn, 0, monthsToShow)
	for i := monthsToShow - 1; i >= 0; i-- {
		m := time.Date(now.Year(), now.Month()-time.Month(i), 1, 0, 0, 0, 0, now.Location())
		key := m.Format("2006-01")
		value := 0.0
		if b, ok := months[key]; ok && b.start > 0 {
			value = (b.end - b.start) / b.start * 100
		}
		out = append(out, MonthlyReturn{Month: key, Value: round2(value)})
	}
	return out
}

// buildEquityCurve groups snapshots by date, one series per platform
// plus the summed total, decimated by the stride policy. The final date
// always survives decimation.
func buildEquityCurve(snaps []store.Snapshot, platforms []store.Platform) []EquityPoint {
	byDate := make(map[string]map[int]float64)
	var dates []string
	for _, s := range snaps {
		m, ok := byDate[s.Date]
		if !ok {
			m = make(map[int]float64)
			byDate[s.Date] = m
			dates = append(dates, s.Date)
		}
		m[s.PlatformID] = s.Equity
	}
	sort.Strings(dates)

	stride := sampleStride(len(dates))
	out := make([]EquityPoint, 0, len(dates)/stride+1)
	for i, date := range dates {
		if i%stride != 0 && i != len(dates)-1 {
			continue
		}
		point := EquityPoint{Date: date, Series: make(map[string]float64, len(platforms))}
		for _, p := range platforms {
			equity := byDate[date][p.ID]
			point.Series[p.Slug] = equity
			point.Total += equity
		}
		out = append(out, point)
	}
	return out
}

// buildDrawdownCurve runs a forward peak-tracking pass over the summed
// equity series. The peak starts at zero, so the first point is always
// a zero drawdown. Values are negative percentages rounded to 2dp.
func buildDrawdownCurve(snaps []store.Snapshot) []DrawdownPoint {
	totals, dates := sumByDate(snaps)

	points := make([]DrawdownPoint, 0, len(dates))
	runningMax := 0.0
	for _, date := range dates {
		equity := totals[date]
		if equity > runningMax {
			runningMax = equity
		}
		dd := 0.0
		if runningMax > 0 {
			dd = (equity - runningMax) / runningMax * 100
		}
		points = append(points, DrawdownPoint{Date: date, Drawdown: round2(dd)})
	}

	stride := sampleStride(len(points))
	out := make([]DrawdownPoint, 0, len(points)/stride+1)
	for i, p := range points {
		if i%stride != 0 && i != len(points)-1 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// buildSparklines emits per-platform equity arrays over the last 30
// distinct dates, zero-filled for missing platform-days.
func buildSparklines(snaps []store.Snapshot, platforms []store.Platform) map[string][]float64 {
	out := make(map[string][]float64, len(platforms))
	for _, p := range platforms {
		out[p.Slug] = []float64{}
	}

	byDate := make(map[string]map[int]float64)
	var dates []string
	for _, s := range snaps {
		m, ok := byDate[s.Date]
		if !ok {
			m = make(map[int]float64)
			byDate[s.Date] = m
			dates = append(dates, s.Date)
		}
		m[s.PlatformID] = s.Equity
	}
	sort.Strings(dates)
	if len(dates) > 30 {
		dates = dates[len(dates)-30:]
	}

	for _, date := range dates {
		for _, p := range platforms {
			out[p.Slug] = append(out[p.Slug], byDate[date][p.ID])
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// RecomputeCaches rebuilds every (platform, period) metrics row and the
// per-period global rows from raw history. Called after imports, syncs,
// and admin writes.
func (s *Service) RecomputeCaches(ctx context.Context) error {
	platforms, err := s.store.ListPlatforms(ctx)
	if err != nil {
		return fmt.Errorf("list platforms: %w", err)
	}
	now := time.Now()

	for _, period := range validPeriods {
		start := PeriodStart(period, now).Format("2006-01-02")
		snaps, err := s.store.ListSnapshotsSince(ctx, start)
		if err != nil {
			return fmt.Errorf("snapshots since %s: %w", start, err)
		}
		byPlatform := make(map[int][]store.Snapshot)
		for _, snap := range snaps {
			byPlatform[snap.PlatformID] = append(byPlatform[snap.PlatformID], snap)
		}

		latest := make([]store.Snapshot, 0, len(platforms))
		for _, p := range platforms {
			trades, err := s.store.ListTradesSince(ctx, p.ID, start)
			if err != nil {
				return fmt.Errorf("trades for %s: %w", p.Slug, err)
			}
			rec := metrics.ComputePlatform(p.ID, period, byPlatform[p.ID], trades, s.initialCapital)
			if err := s.store.UpsertMetrics(ctx, rec); err != nil {
				return fmt.Errorf("upsert metrics %s/%s: %w", p.Slug, period, err)
			}
			if snap, ok, err := s.store.LatestSnapshot(ctx, p.ID); err != nil {
				return fmt.Errorf("latest snapshot for %s: %w", p.Slug, err)
			} else if ok {
				latest = append(latest, snap)
			}
		}

		totals, dates := sumByDate(snaps)
		combined := make([]store.Snapshot, 0, len(dates))
		for _, date := range dates {
			combined = append(combined, store.Snapshot{Date: date, Equity: totals[date]})
		}
		global := metrics.ComputeGlobal(period, latest, combined, s.initialCapital)
		if err := s.store.UpsertGlobalMetrics(ctx, global); err != nil {
			return fmt.Errorf("upsert global metrics %s: %w", period, err)
		}
	}
	logger.Infof("metrics caches recomputed for %d platforms", len(platforms))
	return nil
}
