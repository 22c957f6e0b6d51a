package dashboard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"tradekuant/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore serves canned data for aggregation tests.
type fakeStore struct {
	platforms []store.Platform
	latest    map[int]store.Snapshot
	metrics   map[string][]store.MetricsCache
	global    map[string]store.GlobalMetricsCache
	snapshots []store.Snapshot
	trades    map[int][]store.Trade

	upsertedMetrics []store.MetricsCache
	upsertedGlobal  []store.GlobalMetricsCache
}

func (f *fakeStore) SeedPlatforms(context.Context, []store.Platform) error { return nil }
func (f *fakeStore) ListPlatforms(context.Context) ([]store.Platform, error) {
	return f.platforms, nil
}
func (f *fakeStore) GetPlatformBySlug(_ context.Context, slug string) (store.Platform, bool, error) {
	for _, p := range f.platforms {
		if p.Slug == slug {
			return p, true, nil
		}
	}
	return store.Platform{}, false, nil
}
func (f *fakeStore) UpsertSnapshot(_ context.Context, s store.Snapshot) (store.Snapshot, error) {
	return s, nil
}
func (f *fakeStore) UpdateSnapshot(context.Context, int64, map[string]any) error { return nil }
func (f *fakeStore) DeleteSnapshot(context.Context, int64) error                 { return nil }
func (f *fakeStore) ListSnapshots(context.Context, store.SnapshotQuery) ([]store.Snapshot, error) {
	return f.snapshots, nil
}
func (f *fakeStore) CountSnapshots(context.Context, store.SnapshotQuery) (int, error) {
	return len(f.snapshots), nil
}
func (f *fakeStore) LatestSnapshot(_ context.Context, platformID int) (store.Snapshot, bool, error) {
	s, ok := f.latest[platformID]
	return s, ok, nil
}
func (f *fakeStore) ListSnapshotsSince(_ context.Context, startDate string) ([]store.Snapshot, error) {
	var out []store.Snapshot
	for _, s := range f.snapshots {
		if s.Date >= startDate {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *fakeStore) RunningPeak(context.Context, int) (float64, error) { return 0, nil }
func (f *fakeStore) UpsertTrade(context.Context, store.Trade) error    { return nil }
func (f *fakeStore) ListTrades(context.Context, store.TradeQuery) ([]store.Trade, error) {
	return nil, nil
}
func (f *fakeStore) ListTradesSince(_ context.Context, platformID int, _ string) ([]store.Trade, error) {
	return f.trades[platformID], nil
}
func (f *fakeStore) UpsertMetrics(_ context.Context, rec store.MetricsCache) error {
	f.upsertedMetrics = append(f.upsertedMetrics, rec)
	return nil
}
func (f *fakeStore) MetricsFor(_ context.Context, platformID int, period string) (store.MetricsCache, bool, error) {
	for _, m := range f.metrics[period] {
		if m.PlatformID == platformID {
			return m, true, nil
		}
	}
	return store.MetricsCache{}, false, nil
}
func (f *fakeStore) MetricsByPeriod(_ context.Context, period string) ([]store.MetricsCache, error) {
	return f.metrics[period], nil
}
func (f *fakeStore) AllMetrics(context.Context) ([]store.MetricsCache, error) { return nil, nil }
func (f *fakeStore) UpsertGlobalMetrics(_ context.Context, rec store.GlobalMetricsCache) error {
	f.upsertedGlobal = append(f.upsertedGlobal, rec)
	return nil
}
func (f *fakeStore) GlobalMetricsByPeriod(_ context.Context, period string) (store.GlobalMetricsCache, bool, error) {
	g, ok := f.global[period]
	return g, ok, nil
}
func (f *fakeStore) Close() error { return nil }

var _ store.Store = (*fakeStore)(nil)

func testPlatforms() []store.Platform {
	return []store.Platform{
		{ID: 1, Slug: "bitget", Name: "Bitget", Color: "#00F0FF"},
		{ID: 2, Slug: "darwinex", Name: "Darwinex"},
		{ID: 3, Slug: "etoro", Name: "eToro"},
	}
}

func TestNormalizePeriod(t *testing.T) {
	assert.Equal(t, "1m", NormalizePeriod("1m"))
	assert.Equal(t, "ytd", NormalizePeriod("ytd"))
	assert.Equal(t, "all", NormalizePeriod("bogus"))
	assert.Equal(t, "all", NormalizePeriod(""))
}

func TestPeriodStart(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-05-15", PeriodStart("1m", now).Format("2006-01-02"))
	assert.Equal(t, "2023-06-15", PeriodStart("1y", now).Format("2006-01-02"))
	assert.Equal(t, "2024-01-01", PeriodStart("ytd", now).Format("2006-01-02"))
	assert.Equal(t, "2022-06-15", PeriodStart("all", now).Format("2006-01-02"))
}

func TestSampleStride(t *testing.T) {
	assert.Equal(t, 1, sampleStride(90))
	assert.Equal(t, 2, sampleStride(91))
	assert.Equal(t, 2, sampleStride(180))
	assert.Equal(t, 3, sampleStride(181))
}

func TestBuildEquityCurveStrideKeepsFinalDate(t *testing.T) {
	platforms := testPlatforms()[:1]
	var snaps []store.Snapshot
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 200; i++ {
		snaps = append(snaps, store.Snapshot{
			PlatformID: 1,
			Date:       start.AddDate(0, 0, i).Format("2006-01-02"),
			Equity:     100 + float64(i),
		})
	}
	curve := buildEquityCurve(snaps, platforms)

	// stride 3 over 200: indices 0,3,...,198, plus the forced final 199
	require.Len(t, curve, 68)
	assert.Equal(t, "2024-01-01", curve[0].Date)
	assert.Equal(t, snaps[199].Date, curve[len(curve)-1].Date)
	assert.InDelta(t, 299.0, curve[len(curve)-1].Total, 1e-9)
}

func TestBuildDrawdownCurve(t *testing.T) {
	snaps := []store.Snapshot{
		{PlatformID: 1, Date: "2024-01-01", Equity: 100},
		{PlatformID: 1, Date: "2024-01-02", Equity: 120},
		{PlatformID: 1, Date: "2024-01-03", Equity: 90},
	}
	curve := buildDrawdownCurve(snaps)
	require.Len(t, curve, 3)
	assert.Equal(t, 0.0, curve[0].Drawdown)
	assert.Equal(t, 0.0, curve[1].Drawdown)
	assert.InDelta(t, -25.0, curve[2].Drawdown, 1e-9)
}

func TestBuildDrawdownCurveSumsAcrossPlatforms(t *testing.T) {
	snaps := []store.Snapshot{
		{PlatformID: 1, Date: "2024-01-01", Equity: 60},
		{PlatformID: 2, Date: "2024-01-01", Equity: 40},
		{PlatformID: 1, Date: "2024-01-02", Equity: 50},
		{PlatformID: 2, Date: "2024-01-02", Equity: 30},
	}
	curve := buildDrawdownCurve(snaps)
	require.Len(t, curve, 2)
	assert.InDelta(t, -20.0, curve[1].Drawdown, 1e-9)
}

func TestBuildMonthlyReturnsZeroFillsMissingMonths(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	snaps := []store.Snapshot{
		{PlatformID: 1, Date: "2024-06-03", Equity: 100},
		{PlatformID: 1, Date: "2024-06-10", Equity: 110},
	}
	out := buildMonthlyReturns(snaps, "3m", now)
	require.Len(t, out, 3)
	assert.Equal(t, "2024-04", out[0].Month)
	assert.Equal(t, 0.0, out[0].Value)
	assert.Equal(t, 0.0, out[1].Value)
	assert.Equal(t, "2024-06", out[2].Month)
	assert.InDelta(t, 10.0, out[2].Value, 1e-9)
}

func TestBuildSparklinesZeroFillsMissingPlatformDays(t *testing.T) {
	platforms := testPlatforms()[:2]
	snaps := []store.Snapshot{
		{PlatformID: 1, Date: "2024-06-01", Equity: 100},
		{PlatformID: 2, Date: "2024-06-01", Equity: 200},
		{PlatformID: 1, Date: "2024-06-02", Equity: 105},
	}
	lines := buildSparklines(snaps, platforms)
	assert.Equal(t, []float64{100, 105}, lines["bitget"])
	assert.Equal(t, []float64{200, 0}, lines["darwinex"])
}

func TestAggregateBogusPeriodBehavesLikeAll(t *testing.T) {
	fs := &fakeStore{
		platforms: testPlatforms(),
		latest:    map[int]store.Snapshot{},
		metrics:   map[string][]store.MetricsCache{},
		global:    map[string]store.GlobalMetricsCache{},
	}
	svc := NewService(fs, 300)

	got, err := svc.Aggregate(context.Background(), "bogus")
	require.NoError(t, err)
	want, err := svc.Aggregate(context.Background(), "all")
	require.NoError(t, err)

	assert.Equal(t, "all", got.Period)
	assert.Equal(t, want.Period, got.Period)
	assert.Equal(t, want.MonthlyReturns, got.MonthlyReturns)
	assert.Equal(t, want.EquityCurve, got.EquityCurve)
}

func TestAggregateMetricsFallBackToAllPeriod(t *testing.T) {
	fs := &fakeStore{
		platforms: testPlatforms(),
		latest:    map[int]store.Snapshot{},
		metrics: map[string][]store.MetricsCache{
			"all": {{PlatformID: 1, Period: "all", TotalReturn: 12.5, SharpeRatio: 1.1, WinRate: 60}},
		},
		global: map[string]store.GlobalMetricsCache{},
	}
	svc := NewService(fs, 300)

	data, err := svc.Aggregate(context.Background(), "1m")
	require.NoError(t, err)
	assert.Equal(t, "1m", data.Period)
	assert.InDelta(t, 12.5, data.Platforms[0].Return, 1e-9)
	assert.InDelta(t, 1.1, data.Global.SharpeRatio, 1e-9)
}

func TestAggregateFieldPrecedence(t *testing.T) {
	fs := &fakeStore{
		platforms: testPlatforms(),
		latest: map[int]store.Snapshot{
			1: {PlatformID: 1, Date: "2024-06-10", Equity: 350, TotalPnLPercent: 5, Copiers: 42, AUM: 9000, Drawdown: 3},
		},
		metrics: map[string][]store.MetricsCache{
			"all": {{PlatformID: 1, Period: "all", TotalReturn: 16.6, MaxDrawdown: 8, CurrentCopiers: 7, TotalAUM: 100}},
		},
		global: map[string]store.GlobalMetricsCache{},
	}
	svc := NewService(fs, 300)

	data, err := svc.Aggregate(context.Background(), "all")
	require.NoError(t, err)
	row := data.Platforms[0]

	// cache wins for return and drawdown, live snapshot for copiers/aum
	assert.InDelta(t, 16.6, row.Return, 1e-9)
	assert.InDelta(t, 8.0, row.Drawdown, 1e-9)
	assert.Equal(t, 42, row.Copiers)
	assert.InDelta(t, 9000.0, row.AUM, 1e-9)
	assert.InDelta(t, 350.0, row.Equity, 1e-9)
	assert.Equal(t, "Copy Trading", row.Type)
}

func TestAggregateGlobalSummary(t *testing.T) {
	fs := &fakeStore{
		platforms: testPlatforms(),
		latest: map[int]store.Snapshot{
			1: {PlatformID: 1, Equity: 300, Copiers: 10, AUM: 1000},
			2: {PlatformID: 2, Equity: 200, Copiers: 5, AUM: 500},
		},
		metrics: map[string][]store.MetricsCache{
			"all": {
				{PlatformID: 1, Period: "all", SharpeRatio: 2, SortinoRatio: 3, WinRate: 80, MaxDrawdown: 5},
				{PlatformID: 2, Period: "all", SharpeRatio: 1, SortinoRatio: 1, WinRate: 40, MaxDrawdown: 12},
			},
		},
		global: map[string]store.GlobalMetricsCache{
			"all": {Period: "all", TotalReturn: 20, CombinedMaxDrawdown: 9},
		},
	}
	svc := NewService(fs, 300)

	data, err := svc.Aggregate(context.Background(), "all")
	require.NoError(t, err)

	assert.InDelta(t, 500.0, data.Global.TotalEquity, 1e-9)
	assert.Equal(t, 15, data.Global.TotalCopiers)
	assert.InDelta(t, 1500.0, data.Global.TotalAUM, 1e-9)
	assert.InDelta(t, 1.5, data.Global.SharpeRatio, 1e-9)
	assert.InDelta(t, 60.0, data.Global.WinRate, 1e-9)
	assert.InDelta(t, 20.0, data.Global.TotalReturn, 1e-9)
	// cache row beats the per-platform worst figure
	assert.InDelta(t, 9.0, data.Global.MaxDrawdown, 1e-9)
}

func TestRecomputeCachesWritesEveryPeriod(t *testing.T) {
	now := time.Now()
	var snaps []store.Snapshot
	for i := 0; i < 10; i++ {
		snaps = append(snaps, store.Snapshot{
			PlatformID: 1,
			Date:       now.AddDate(0, 0, -i).Format("2006-01-02"),
			Equity:     300 + float64(i),
		})
	}
	fs := &fakeStore{
		platforms: testPlatforms(),
		latest:    map[int]store.Snapshot{1: snaps[0]},
		metrics:   map[string][]store.MetricsCache{},
		global:    map[string]store.GlobalMetricsCache{},
		snapshots: snaps,
		trades:    map[int][]store.Trade{},
	}
	svc := NewService(fs, 300)

	require.NoError(t, svc.RecomputeCaches(context.Background()))
	// one row per platform per period, one global row per period
	assert.Len(t, fs.upsertedMetrics, len(testPlatforms())*len(validPeriods))
	assert.Len(t, fs.upsertedGlobal, len(validPeriods))

	periods := map[string]bool{}
	for _, g := range fs.upsertedGlobal {
		periods[g.Period] = true
	}
	for _, p := range validPeriods {
		assert.True(t, periods[p], p)
	}
}

func TestRecomputeCachesWindowsGlobalRows(t *testing.T) {
	now := time.Now()
	snaps := []store.Snapshot{
		{PlatformID: 1, Date: now.AddDate(0, 0, -80).Format("2006-01-02"), Equity: 300},
		{PlatformID: 1, Date: now.AddDate(0, 0, -20).Format("2006-01-02"), Equity: 2300, TotalPnL: 2000},
		{PlatformID: 1, Date: now.Format("2006-01-02"), Equity: 2400, TotalPnL: 2100},
	}
	fs := &fakeStore{
		platforms: testPlatforms()[:1],
		latest:    map[int]store.Snapshot{1: snaps[2]},
		metrics:   map[string][]store.MetricsCache{},
		global:    map[string]store.GlobalMetricsCache{},
		snapshots: snaps,
		trades:    map[int][]store.Trade{},
	}
	svc := NewService(fs, 300)

	require.NoError(t, svc.RecomputeCaches(context.Background()))

	rows := map[string]store.GlobalMetricsCache{}
	for _, g := range fs.upsertedGlobal {
		rows[g.Period] = g
	}

	// lifetime row measures against deployed capital
	assert.InDelta(t, 700.0, rows["all"].TotalReturn, 1e-9)
	assert.InDelta(t, 2100.0, rows["all"].TotalPnL, 1e-9)
	// the monthly row measures against its window's opening equity
	assert.InDelta(t, 100.0/2300.0*100, rows["1m"].TotalReturn, 1e-9)
	assert.InDelta(t, 100.0, rows["1m"].TotalPnL, 1e-9)
	assert.NotEqual(t, rows["all"].TotalReturn, rows["1m"].TotalReturn)
}

func TestEquityPointMarshalJSON(t *testing.T) {
	p := EquityPoint{
		Date:   "2024-01-01",
		Series: map[string]float64{"bitget": 100, "etoro": 50.5},
		Total:  150.5,
	}
	raw, err := p.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-01-01","bitget":100,"etoro":50.5,"total":150.5}`, string(raw))
}

func TestPlatformTypeLabel(t *testing.T) {
	for slug, want := range map[string]string{
		"bitget":   "Copy Trading",
		"darwinex": "DARWIN Index",
		"etoro":    "Popular Investor",
	} {
		assert.Equal(t, want, PlatformTypeLabel(slug), fmt.Sprintf("slug %s", slug))
	}
}
