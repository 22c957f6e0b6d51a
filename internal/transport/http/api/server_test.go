package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"tradekuant/internal/dashboard"
	"tradekuant/internal/store"
	"tradekuant/internal/syncjob"
)

// memStore is a minimal in-memory store for handler tests.
type memStore struct {
	platforms []store.Platform
	snapshots []store.Snapshot
	metrics   []store.MetricsCache
	global    map[string]store.GlobalMetricsCache

	updated map[int64]map[string]any
	deleted []int64
}

func newMemStore() *memStore {
	return &memStore{
		platforms: []store.Platform{
			{ID: 1, Slug: "bitget", Name: "Bitget", Color: "#00F0FF", APIEnabled: true},
			{ID: 3, Slug: "etoro", Name: "eToro"},
		},
		global:  make(map[string]store.GlobalMetricsCache),
		updated: make(map[int64]map[string]any),
	}
}

func (m *memStore) SeedPlatforms(context.Context, []store.Platform) error { return nil }
func (m *memStore) ListPlatforms(context.Context) ([]store.Platform, error) {
	return m.platforms, nil
}
func (m *memStore) GetPlatformBySlug(_ context.Context, slug string) (store.Platform, bool, error) {
	for _, p := range m.platforms {
		if p.Slug == slug {
			return p, true, nil
		}
	}
	return store.Platform{}, false, nil
}
func (m *memStore) UpsertSnapshot(_ context.Context, s store.Snapshot) (store.Snapshot, error) {
	s.ID = int64(len(m.snapshots) + 1)
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	m.snapshots = append(m.snapshots, s)
	return s, nil
}
func (m *memStore) UpdateSnapshot(_ context.Context, id int64, fields map[string]any) error {
	m.updated[id] = fields
	return nil
}
func (m *memStore) DeleteSnapshot(_ context.Context, id int64) error {
	m.deleted = append(m.deleted, id)
	return nil
}
func (m *memStore) ListSnapshots(_ context.Context, q store.SnapshotQuery) ([]store.Snapshot, error) {
	var out []store.Snapshot
	for _, s := range m.snapshots {
		if q.PlatformID != 0 && s.PlatformID != q.PlatformID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
func (m *memStore) CountSnapshots(_ context.Context, q store.SnapshotQuery) (int, error) {
	snaps, _ := m.ListSnapshots(context.Background(), q)
	return len(snaps), nil
}
func (m *memStore) LatestSnapshot(_ context.Context, platformID int) (store.Snapshot, bool, error) {
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		if m.snapshots[i].PlatformID == platformID {
			return m.snapshots[i], true, nil
		}
	}
	return store.Snapshot{}, false, nil
}
func (m *memStore) ListSnapshotsSince(_ context.Context, startDate string) ([]store.Snapshot, error) {
	var out []store.Snapshot
	for _, s := range m.snapshots {
		if s.Date >= startDate {
			out = append(out, s)
		}
	}
	return out, nil
}
func (m *memStore) RunningPeak(context.Context, int) (float64, error) { return 0, nil }
func (m *memStore) UpsertTrade(context.Context, store.Trade) error    { return nil }
func (m *memStore) ListTrades(context.Context, store.TradeQuery) ([]store.Trade, error) {
	return nil, nil
}
func (m *memStore) ListTradesSince(context.Context, int, string) ([]store.Trade, error) {
	return nil, nil
}
func (m *memStore) UpsertMetrics(context.Context, store.MetricsCache) error { return nil }
func (m *memStore) MetricsFor(_ context.Context, platformID int, period string) (store.MetricsCache, bool, error) {
	for _, rec := range m.metrics {
		if rec.PlatformID == platformID && rec.Period == period {
			return rec, true, nil
		}
	}
	return store.MetricsCache{}, false, nil
}
func (m *memStore) MetricsByPeriod(_ context.Context, period string) ([]store.MetricsCache, error) {
	var out []store.MetricsCache
	for _, rec := range m.metrics {
		if rec.Period == period {
			out = append(out, rec)
		}
	}
	return out, nil
}
func (m *memStore) AllMetrics(context.Context) ([]store.MetricsCache, error) {
	return m.metrics, nil
}
func (m *memStore) UpsertGlobalMetrics(_ context.Context, rec store.GlobalMetricsCache) error {
	m.global[rec.Period] = rec
	return nil
}
func (m *memStore) GlobalMetricsByPeriod(_ context.Context, period string) (store.GlobalMetricsCache, bool, error) {
	rec, ok := m.global[period]
	return rec, ok, nil
}
func (m *memStore) Close() error { return nil }

var _ store.Store = (*memStore)(nil)

func newTestServer(t *testing.T, st *memStore) *Server {
	t.Helper()
	dash := dashboard.NewService(st, 300)
	sync := syncjob.NewService(st, nil, nil, 300)
	sync.Register(syncjob.NewBitgetClient(syncjob.BitgetConfig{}))
	srv, err := NewServer(ServerConfig{
		Addr:       ":0",
		Store:      st,
		Dashboard:  dash,
		Sync:       sync,
		AdminToken: "admin-token",
		SyncSecret: "cron-secret",
	})
	require.NoError(t, err)
	return srv
}

func doRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, newMemStore())
	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", gjson.Get(rec.Body.String(), "status").String())
}

func TestDashboardEnvelope(t *testing.T) {
	st := newMemStore()
	st.snapshots = []store.Snapshot{
		{PlatformID: 1, Date: "2024-06-01", Equity: 320, DailyPnL: 5},
		{PlatformID: 3, Date: "2024-06-01", Equity: 510, DailyPnL: -2},
	}
	srv := newTestServer(t, st)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/dashboard?period=1m", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, gjson.Get(body, "success").Bool())
	assert.Equal(t, "1m", gjson.Get(body, "data.period").String())
	assert.Equal(t, int64(2), gjson.Get(body, "data.platforms.#").Int())
}

func TestMetricsGroupedByPlatform(t *testing.T) {
	st := newMemStore()
	st.metrics = []store.MetricsCache{
		{PlatformID: 1, Period: "all", TotalReturn: 16.92},
		{PlatformID: 1, Period: "1m", TotalReturn: 2.1},
		{PlatformID: 3, Period: "all", TotalReturn: 5.07},
	}
	srv := newTestServer(t, st)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, int64(2), gjson.Get(body, "count").Int())
	assert.InDelta(t, 16.92, gjson.Get(body, "data.1.all.total_return").Float(), 1e-9)
	assert.InDelta(t, 2.1, gjson.Get(body, "data.1.1m.total_return").Float(), 1e-9)
}

func TestMetricsPlatformFilterAndInfinity(t *testing.T) {
	st := newMemStore()
	st.metrics = []store.MetricsCache{
		{
			PlatformID:   1,
			Period:       "all",
			ProfitFactor: positiveInf(),
			Volatility:   math.NaN(),
			SharpeRatio:  math.NaN(),
			WinRate:      100,
		},
	}
	srv := newTestServer(t, st)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/metrics?platformId=1&period=all", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "1", gjson.Get(body, "platform_id").String())
	// non-finite ratios serialize as null instead of breaking the encoder
	assert.Equal(t, gjson.Null, gjson.Get(body, "data.profit_factor").Type)
	assert.Equal(t, gjson.Null, gjson.Get(body, "data.volatility").Type)
	assert.Equal(t, gjson.Null, gjson.Get(body, "data.sharpe_ratio").Type)
	assert.InDelta(t, 100.0, gjson.Get(body, "data.win_rate").Float(), 1e-9)
}

func positiveInf() float64 {
	var zero float64
	return 1 / zero
}

func TestMetricsGlobal(t *testing.T) {
	st := newMemStore()
	st.global["all"] = store.GlobalMetricsCache{Period: "all", TotalEquity: 830, TotalReturn: 12.5}
	srv := newTestServer(t, st)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/metrics?global=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "all", gjson.Get(body, "period").String())
	assert.InDelta(t, 830.0, gjson.Get(body, "data.total_equity").Float(), 1e-9)
}

func TestSnapshotsPublicList(t *testing.T) {
	st := newMemStore()
	st.snapshots = []store.Snapshot{
		{PlatformID: 1, Date: "2024-06-01", Equity: 320},
		{PlatformID: 3, Date: "2024-06-01", Equity: 510},
	}
	srv := newTestServer(t, st)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/snapshots?platformId=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, int64(1), gjson.Get(body, "count").Int())
	assert.InDelta(t, 510.0, gjson.Get(body, "data.0.equity").Float(), 1e-9)
}

func TestStatsCards(t *testing.T) {
	st := newMemStore()
	st.metrics = []store.MetricsCache{
		{PlatformID: 1, Period: "all", TotalReturn: 16.92, SharpeRatio: 2.0, WinRate: 60, MaxDrawdown: 8.5},
		{PlatformID: 3, Period: "all", TotalReturn: -5.07, SharpeRatio: 1.0, WinRate: 70, MaxDrawdown: 4.0},
	}
	st.global["all"] = store.GlobalMetricsCache{Period: "all", TotalReturn: 12.5, CombinedMaxDrawdown: 9.1, CalculatedAt: time.Now()}
	srv := newTestServer(t, st)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "+12.50%", gjson.Get(body, "data.stats.0.value").String())
	assert.Equal(t, "9.1%", gjson.Get(body, "data.stats.1.value").String())
	assert.Equal(t, "1.50", gjson.Get(body, "data.stats.2.value").String())
	assert.Equal(t, "65.0%", gjson.Get(body, "data.stats.3.value").String())
	assert.Equal(t, "+16.92%", gjson.Get(body, "data.platforms.0.return").String())
	assert.Equal(t, "-5.07%", gjson.Get(body, "data.platforms.1.return").String())
	assert.Equal(t, "#10B981", gjson.Get(body, "data.platforms.1.color").String())
}

func TestAdminRequiresToken(t *testing.T) {
	srv := newTestServer(t, newMemStore())

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/admin/snapshots", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/snapshots", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, doRequest(srv, req).Code)

	// prefixes and extensions of the real token must not pass
	req = httptest.NewRequest(http.MethodGet, "/api/admin/snapshots", nil)
	req.Header.Set("Authorization", "Bearer admin-toke")
	assert.Equal(t, http.StatusUnauthorized, doRequest(srv, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/snapshots", nil)
	req.Header.Set("Authorization", "Bearer admin-token-extra")
	assert.Equal(t, http.StatusUnauthorized, doRequest(srv, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/snapshots", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	assert.Equal(t, http.StatusOK, doRequest(srv, req).Code)
}

func TestEmptyTokenRejectsEverything(t *testing.T) {
	st := newMemStore()
	dash := dashboard.NewService(st, 300)
	srv, err := NewServer(ServerConfig{Store: st, Dashboard: dash})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/snapshots", nil)
	req.Header.Set("Authorization", "Bearer ")
	assert.Equal(t, http.StatusUnauthorized, doRequest(srv, req).Code)
}

func TestAdminCreateSnapshot(t *testing.T) {
	st := newMemStore()
	srv := newTestServer(t, st)

	payload := `{"platform_id":3,"date":"2024-01-07","equity":312.45,"daily_pnl":12.45,"total_pnl":12.45,"notes":"manual entry"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/snapshots", strings.NewReader(payload))
	req.Header.Set("Authorization", "Bearer admin-token")
	req.Header.Set("Content-Type", "application/json")

	rec := doRequest(srv, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "manual", gjson.Get(body, "data.source").String())
	assert.InDelta(t, 4.15, gjson.Get(body, "data.total_pnl_percent").Float(), 1e-9)
	require.Len(t, st.snapshots, 1)
	assert.Equal(t, 3, st.snapshots[0].PlatformID)
}

func TestAdminCreateSnapshotValidation(t *testing.T) {
	srv := newTestServer(t, newMemStore())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/snapshots", strings.NewReader(`{"platform_id":3,"date":"2024-01-07"}`))
	req.Header.Set("Authorization", "Bearer admin-token")
	req.Header.Set("Content-Type", "application/json")
	rec := doRequest(srv, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields", gjson.Get(rec.Body.String(), "error").String())

	req = httptest.NewRequest(http.MethodPost, "/api/admin/snapshots", strings.NewReader(`{"platform_id":3,"date":"2024-01-07","equity":-5}`))
	req.Header.Set("Authorization", "Bearer admin-token")
	req.Header.Set("Content-Type", "application/json")
	rec = doRequest(srv, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Equity debe ser mayor a 0", gjson.Get(rec.Body.String(), "errors.0.message").String())
}

func TestAdminUpdateAndDeleteSnapshot(t *testing.T) {
	st := newMemStore()
	srv := newTestServer(t, st)

	req := httptest.NewRequest(http.MethodPut, "/api/admin/snapshots", strings.NewReader(`{"id":7,"equity":500.5,"notes":"fixed"}`))
	req.Header.Set("Authorization", "Bearer admin-token")
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusOK, doRequest(srv, req).Code)
	require.Contains(t, st.updated, int64(7))
	assert.Equal(t, 500.5, st.updated[7]["equity"])
	assert.Equal(t, "fixed", st.updated[7]["notes"])

	req = httptest.NewRequest(http.MethodDelete, "/api/admin/snapshots?id=7", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	require.Equal(t, http.StatusOK, doRequest(srv, req).Code)
	assert.Equal(t, []int64{7}, st.deleted)
}

func uploadRequest(t *testing.T, csv string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "etoro.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/upload-csv", &buf)
	req.Header.Set("Authorization", "Bearer admin-token")
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestAdminUploadCSV(t *testing.T) {
	st := newMemStore()
	srv := newTestServer(t, st)

	csv := "date,equity,daily_pnl,total_pnl,copiers,aum,notes\n2024-01-07,312.45,12.45,12.45,0,0,Primera semana\n"
	rec := doRequest(srv, uploadRequest(t, csv))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, int64(1), gjson.Get(body, "data.inserted").Int())
	assert.Equal(t, int64(0), gjson.Get(body, "data.failed").Int())
	assert.Equal(t, int64(1), gjson.Get(body, "summary.validRows").Int())
	require.Len(t, st.snapshots, 1)
	assert.Equal(t, 3, st.snapshots[0].PlatformID)
}

func TestAdminUploadCSVValidationFailure(t *testing.T) {
	srv := newTestServer(t, newMemStore())

	csv := "date,equity,daily_pnl,total_pnl\nnot-a-date,abc,0,0\n"
	rec := doRequest(srv, uploadRequest(t, csv))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "CSV validation failed", gjson.Get(body, "error").String())
	assert.Equal(t, int64(2), gjson.Get(body, "errors.#").Int())
}

func TestAdminCSVTemplate(t *testing.T) {
	srv := newTestServer(t, newMemStore())

	req := httptest.NewRequest(http.MethodGet, "/api/admin/csv-template", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := doRequest(srv, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "date,equity,daily_pnl,total_pnl")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "template.csv")
}

func TestCronAuthAndUnknownPlatform(t *testing.T) {
	srv := newTestServer(t, newMemStore())

	rec := doRequest(srv, httptest.NewRequest(http.MethodPost, "/api/cron/bitget", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/cron/kraken", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	assert.Equal(t, http.StatusNotFound, doRequest(srv, req).Code)
}

func TestCronSyncPlatform(t *testing.T) {
	st := newMemStore()
	srv := newTestServer(t, st)

	req := httptest.NewRequest(http.MethodPost, "/api/cron/bitget", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	rec := doRequest(srv, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "bitget", gjson.Get(body, "platform").String())
	assert.Equal(t, "api", gjson.Get(body, "data.source").String())
	assert.InDelta(t, 350.75, gjson.Get(body, "data.equity").Float(), 1e-9)
	require.Len(t, st.snapshots, 1)
}

func TestChartsPage(t *testing.T) {
	st := newMemStore()
	st.snapshots = []store.Snapshot{{PlatformID: 1, Date: "2024-06-01", Equity: 320}}
	srv := newTestServer(t, st)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/charts?period=3m", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "echarts")
}

func TestSnapshotPayloadShape(t *testing.T) {
	notes := "weekly"
	peak := 320.0
	s := store.Snapshot{
		ID: 5, PlatformID: 1, Date: "2024-06-01", Equity: 310,
		PeakEquity: &peak, Drawdown: 3.125, Source: store.SourceManual, Notes: &notes,
	}
	raw, err := json.Marshal(snapshotToPayload(s))
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", gjson.GetBytes(raw, "date").String())
	assert.InDelta(t, 320.0, gjson.GetBytes(raw, "peak_equity").Float(), 1e-9)
	assert.Equal(t, "weekly", gjson.GetBytes(raw, "notes").String())
}
