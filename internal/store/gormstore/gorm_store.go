package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tradekuant/internal/store"
	storemodel "tradekuant/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type platformModel = storemodel.PlatformModel
type snapshotModel = storemodel.SnapshotModel
type tradeModel = storemodel.TradeModel
type metricsModel = storemodel.MetricsCacheModel
type globalMetricsModel = storemodel.GlobalMetricsCacheModel

// GormStore implements store.Store on Gorm + SQLite.
type GormStore struct {
	db *gorm.DB
}

var _ store.Store = (*GormStore)(nil)

// NewGormStore opens (or creates) the database at path and migrates the
// schema. SQLite + WAL keeps concurrent dashboard reads cheap while the
// sync job writes.
func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: database path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	models := []interface{}{
		&platformModel{},
		&snapshotModel{},
		&tradeModel{},
		&metricsModel{},
		&globalMetricsModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --------------------------- Platforms ------------------------------

func (s *GormStore) SeedPlatforms(ctx context.Context, platforms []store.Platform) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if len(platforms) == 0 {
		return nil
	}
	now := time.Now()
	models := make([]platformModel, 0, len(platforms))
	for _, p := range platforms {
		slug := strings.ToLower(strings.TrimSpace(p.Slug))
		if slug == "" {
			return fmt.Errorf("platform seed requires slug")
		}
		models = append(models, platformModel{
			Slug:          slug,
			Name:          strings.TrimSpace(p.Name),
			APIEnabled:    boolToInt(p.APIEnabled),
			ProfileURL:    strings.TrimSpace(p.ProfileURL),
			Color:         strings.TrimSpace(p.Color),
			CreatedAtUnix: now.UnixMilli(),
		})
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "api_enabled", "profile_url", "color"}),
		}).
		Create(&models).Error
}

func (s *GormStore) ListPlatforms(ctx context.Context) ([]store.Platform, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	var models []platformModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]store.Platform, 0, len(models))
	for _, m := range models {
		out = append(out, platformModelToRecord(m))
	}
	return out, nil
}

func (s *GormStore) GetPlatformBySlug(ctx context.Context, slug string) (store.Platform, bool, error) {
	if s == nil || s.db == nil {
		return store.Platform{}, false, fmt.Errorf("gorm store not initialized")
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return store.Platform{}, false, fmt.Errorf("slug required")
	}
	var m platformModel
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return store.Platform{}, false, nil
		}
		return store.Platform{}, false, err
	}
	return platformModelToRecord(m), true, nil
}

// --------------------------- Snapshots ------------------------------

var snapshotUpsertColumns = []string{
	"equity", "daily_pnl", "total_pnl", "total_pnl_percent", "peak_equity",
	"drawdown", "copiers", "aum", "source", "notes", "raw_data", "updated_at",
}

// UpsertSnapshot inserts a snapshot, or updates the existing row for the
// same (platform_id, date). Re-syncing a day never duplicates it.
func (s *GormStore) UpsertSnapshot(ctx context.Context, snap store.Snapshot) (store.Snapshot, error) {
	if s == nil || s.db == nil {
		return store.Snapshot{}, fmt.Errorf("gorm store not initialized")
	}
	if snap.PlatformID <= 0 {
		return store.Snapshot{}, fmt.Errorf("snapshot requires platform_id")
	}
	if strings.TrimSpace(snap.Date) == "" {
		return store.Snapshot{}, fmt.Errorf("snapshot requires date")
	}
	m := newSnapshotModel(snap)
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns(snapshotUpsertColumns),
		}).
		Create(&m).Error; err != nil {
		return store.Snapshot{}, err
	}
	// On conflict the generated ID is not reliable; read the row back.
	var stored snapshotModel
	if err := s.db.WithContext(ctx).
		Where("platform_id = ? AND date = ?", snap.PlatformID, snap.Date).
		First(&stored).Error; err != nil {
		return store.Snapshot{}, err
	}
	return snapshotModelToRecord(stored), nil
}

func (s *GormStore) UpdateSnapshot(ctx context.Context, id int64, fields map[string]any) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if id <= 0 {
		return fmt.Errorf("snapshot id required")
	}
	if len(fields) == 0 {
		return nil
	}
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["updated_at"] = time.Now().UnixMilli()
	res := s.db.WithContext(ctx).Model(&snapshotModel{}).Where("id = ?", id).Updates(payload)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *GormStore) DeleteSnapshot(ctx context.Context, id int64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if id <= 0 {
		return fmt.Errorf("snapshot id required")
	}
	res := s.db.WithContext(ctx).Delete(&snapshotModel{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *GormStore) snapshotQuery(ctx context.Context, q store.SnapshotQuery) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&snapshotModel{})
	if q.PlatformID > 0 {
		query = query.Where("platform_id = ?", q.PlatformID)
	}
	if strings.TrimSpace(q.StartDate) != "" {
		query = query.Where("date >= ?", q.StartDate)
	}
	if strings.TrimSpace(q.EndDate) != "" {
		query = query.Where("date <= ?", q.EndDate)
	}
	return query
}

func (s *GormStore) ListSnapshots(ctx context.Context, q store.SnapshotQuery) ([]store.Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if q.Limit <= 0 || q.Limit > 1000 {
		q.Limit = 200
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	var models []snapshotModel
	if err := s.snapshotQuery(ctx, q).
		Order("date DESC, id DESC").
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]store.Snapshot, 0, len(models))
	for _, m := range models {
		out = append(out, snapshotModelToRecord(m))
	}
	return out, nil
}

func (s *GormStore) CountSnapshots(ctx context.Context, q store.SnapshotQuery) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("gorm store not initialized")
	}
	var total int64
	if err := s.snapshotQuery(ctx, q).Count(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

func (s *GormStore) LatestSnapshot(ctx context.Context, platformID int) (store.Snapshot, bool, error) {
	if s == nil || s.db == nil {
		return store.Snapshot{}, false, fmt.Errorf("gorm store not initialized")
	}
	if platformID <= 0 {
		return store.Snapshot{}, false, fmt.Errorf("platform id required")
	}
	var m snapshotModel
	err := s.db.WithContext(ctx).
		Where("platform_id = ?", platformID).
		Order("date DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return store.Snapshot{}, false, nil
		}
		return store.Snapshot{}, false, err
	}
	return snapshotModelToRecord(m), true, nil
}

func (s *GormStore) ListSnapshotsSince(ctx context.Context, startDate string) ([]store.Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	query := s.db.WithContext(ctx).Model(&snapshotModel{})
	if strings.TrimSpace(startDate) != "" {
		query = query.Where("date >= ?", startDate)
	}
	var models []snapshotModel
	if err := query.Order("date ASC, platform_id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]store.Snapshot, 0, len(models))
	for _, m := range models {
		out = append(out, snapshotModelToRecord(m))
	}
	return out, nil
}

// RunningPeak reports the highest equity ever recorded for the platform,
// considering both stored peak_equity values and raw equities. 0 when
// the platform has no history yet.
func (s *GormStore) RunningPeak(ctx context.Context, platformID int) (float64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("gorm store not initialized")
	}
	if platformID <= 0 {
		return 0, fmt.Errorf("platform id required")
	}
	row := s.db.WithContext(ctx).Model(&snapshotModel{}).
		Where("platform_id = ?", platformID).
		Select("COALESCE(MAX(peak_equity), 0), COALESCE(MAX(equity), 0)").
		Row()
	var peak, equity float64
	if err := row.Scan(&peak, &equity); err != nil {
		return 0, err
	}
	if equity > peak {
		peak = equity
	}
	return peak, nil
}

// ----------------------------- Trades -------------------------------

var tradeUpsertColumns = []string{
	"symbol", "side", "entry_price", "exit_price", "quantity", "leverage",
	"pnl", "pnl_percent", "fees", "status", "opened_at", "closed_at",
	"notes", "tags", "raw_data", "updated_at",
}

func (s *GormStore) UpsertTrade(ctx context.Context, trade store.Trade) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if trade.PlatformID <= 0 {
		return fmt.Errorf("trade requires platform_id")
	}
	m := newTradeModel(trade)
	if trade.ExternalID == nil || strings.TrimSpace(*trade.ExternalID) == "" {
		// No external identity: plain insert, nothing to collide with.
		return s.db.WithContext(ctx).Create(&m).Error
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform_id"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns(tradeUpsertColumns),
		}).
		Create(&m).Error
}

func (s *GormStore) ListTrades(ctx context.Context, q store.TradeQuery) ([]store.Trade, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if q.Limit <= 0 || q.Limit > 1000 {
		q.Limit = 200
	}
	query := s.db.WithContext(ctx).Model(&tradeModel{})
	if q.PlatformID > 0 {
		query = query.Where("platform_id = ?", q.PlatformID)
	}
	if strings.TrimSpace(q.Status) != "" {
		query = query.Where("status = ?", q.Status)
	}
	var models []tradeModel
	if err := query.Order("opened_at DESC, id DESC").Limit(q.Limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]store.Trade, 0, len(models))
	for _, m := range models {
		out = append(out, tradeModelToRecord(m))
	}
	return out, nil
}

func (s *GormStore) ListTradesSince(ctx context.Context, platformID int, startDate string) ([]store.Trade, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	query := s.db.WithContext(ctx).Model(&tradeModel{})
	if platformID > 0 {
		query = query.Where("platform_id = ?", platformID)
	}
	if strings.TrimSpace(startDate) != "" {
		if t, err := time.Parse("2006-01-02", startDate); err == nil {
			query = query.Where("opened_at >= ?", t.UnixMilli())
		}
	}
	var models []tradeModel
	if err := query.Order("opened_at ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]store.Trade, 0, len(models))
	for _, m := range models {
		out = append(out, tradeModelToRecord(m))
	}
	return out, nil
}

// -------------------------- Metrics cache ---------------------------

var metricsUpsertColumns = []string{
	"total_return", "cagr", "avg_monthly_return", "best_month", "worst_month",
	"positive_months", "negative_months", "max_drawdown", "current_drawdown",
	"volatility", "sharpe_ratio", "sortino_ratio", "calmar_ratio",
	"profit_factor", "total_trades", "winning_trades", "losing_trades",
	"win_rate", "avg_win", "avg_loss", "avg_trade_duration_days",
	"current_copiers", "total_aum", "calculated_at",
}

func (s *GormStore) UpsertMetrics(ctx context.Context, rec store.MetricsCache) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if rec.PlatformID <= 0 || strings.TrimSpace(rec.Period) == "" {
		return fmt.Errorf("metrics cache requires platform_id and period")
	}
	m := newMetricsModel(rec)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform_id"}, {Name: "period"}},
			DoUpdates: clause.AssignmentColumns(metricsUpsertColumns),
		}).
		Create(&m).Error
}

func (s *GormStore) MetricsFor(ctx context.Context, platformID int, period string) (store.MetricsCache, bool, error) {
	if s == nil || s.db == nil {
		return store.MetricsCache{}, false, fmt.Errorf("gorm store not initialized")
	}
	var m metricsModel
	err := s.db.WithContext(ctx).
		Where("platform_id = ? AND period = ?", platformID, period).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return store.MetricsCache{}, false, nil
		}
		return store.MetricsCache{}, false, err
	}
	return metricsModelToRecord(m), true, nil
}

func (s *GormStore) MetricsByPeriod(ctx context.Context, period string) ([]store.MetricsCache, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	var models []metricsModel
	if err := s.db.WithContext(ctx).
		Where("period = ?", period).
		Order("platform_id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]store.MetricsCache, 0, len(models))
	for _, m := range models {
		out = append(out, metricsModelToRecord(m))
	}
	return out, nil
}

func (s *GormStore) AllMetrics(ctx context.Context) ([]store.MetricsCache, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	var models []metricsModel
	if err := s.db.WithContext(ctx).
		Order("platform_id ASC, period ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]store.MetricsCache, 0, len(models))
	for _, m := range models {
		out = append(out, metricsModelToRecord(m))
	}
	return out, nil
}

func (s *GormStore) UpsertGlobalMetrics(ctx context.Context, rec store.GlobalMetricsCache) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if strings.TrimSpace(rec.Period) == "" {
		return fmt.Errorf("global metrics cache requires period")
	}
	m := newGlobalMetricsModel(rec)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "period"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_equity", "total_pnl", "total_return",
				"combined_max_drawdown", "total_copiers", "total_aum",
				"calculated_at",
			}),
		}).
		Create(&m).Error
}

func (s *GormStore) GlobalMetricsByPeriod(ctx context.Context, period string) (store.GlobalMetricsCache, bool, error) {
	if s == nil || s.db == nil {
		return store.GlobalMetricsCache{}, false, fmt.Errorf("gorm store not initialized")
	}
	var m globalMetricsModel
	err := s.db.WithContext(ctx).Where("period = ?", period).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return store.GlobalMetricsCache{}, false, nil
		}
		return store.GlobalMetricsCache{}, false, err
	}
	return globalMetricsModelToRecord(m), true, nil
}

// ----------------------- Model conversion helpers -------------------

func platformModelToRecord(m platformModel) store.Platform {
	return store.Platform{
		ID:         m.ID,
		Slug:       m.Slug,
		Name:       m.Name,
		APIEnabled: m.APIEnabled != 0,
		ProfileURL: m.ProfileURL,
		Color:      m.Color,
		CreatedAt:  millisToTime(m.CreatedAtUnix),
	}
}

func newSnapshotModel(rec store.Snapshot) snapshotModel {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	return snapshotModel{
		ID:              rec.ID,
		PlatformID:      rec.PlatformID,
		Date:            strings.TrimSpace(rec.Date),
		Equity:          rec.Equity,
		DailyPnL:        rec.DailyPnL,
		TotalPnL:        rec.TotalPnL,
		TotalPnLPercent: rec.TotalPnLPercent,
		PeakEquity:      rec.PeakEquity,
		Drawdown:        rec.Drawdown,
		Copiers:         rec.Copiers,
		AUM:             rec.AUM,
		Source:          strings.TrimSpace(rec.Source),
		Notes:           rec.Notes,
		RawData:         jsonOrNil(rec.RawData),
		CreatedAtUnix:   rec.CreatedAt.UnixMilli(),
		UpdatedAtUnix:   rec.UpdatedAt.UnixMilli(),
	}
}

func snapshotModelToRecord(m snapshotModel) store.Snapshot {
	return store.Snapshot{
		ID:              m.ID,
		PlatformID:      m.PlatformID,
		Date:            m.Date,
		Equity:          m.Equity,
		DailyPnL:        m.DailyPnL,
		TotalPnL:        m.TotalPnL,
		TotalPnLPercent: m.TotalPnLPercent,
		PeakEquity:      m.PeakEquity,
		Drawdown:        m.Drawdown,
		Copiers:         m.Copiers,
		AUM:             m.AUM,
		Source:          m.Source,
		Notes:           m.Notes,
		RawData:         []byte(m.RawData),
		CreatedAt:       millisToTime(m.CreatedAtUnix),
		UpdatedAt:       millisToTime(m.UpdatedAtUnix),
	}
}

func newTradeModel(rec store.Trade) tradeModel {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	var tags datatypes.JSON
	if len(rec.Tags) > 0 {
		if raw, err := json.Marshal(rec.Tags); err == nil {
			tags = datatypes.JSON(raw)
		}
	}
	m := tradeModel{
		ID:            rec.ID,
		PlatformID:    rec.PlatformID,
		ExternalID:    rec.ExternalID,
		Symbol:        strings.ToUpper(strings.TrimSpace(rec.Symbol)),
		Side:          strings.ToLower(strings.TrimSpace(rec.Side)),
		EntryPrice:    rec.EntryPrice,
		ExitPrice:     rec.ExitPrice,
		Quantity:      rec.Quantity,
		Leverage:      rec.Leverage,
		PnL:           rec.PnL,
		PnLPercent:    rec.PnLPercent,
		Fees:          rec.Fees,
		Status:        strings.ToLower(strings.TrimSpace(rec.Status)),
		OpenedAtUnix:  rec.OpenedAt.UnixMilli(),
		Notes:         rec.Notes,
		Tags:          tags,
		RawData:       jsonOrNil(rec.RawData),
		CreatedAtUnix: rec.CreatedAt.UnixMilli(),
		UpdatedAtUnix: rec.UpdatedAt.UnixMilli(),
	}
	if rec.ClosedAt != nil && !rec.ClosedAt.IsZero() {
		val := rec.ClosedAt.UnixMilli()
		m.ClosedAtUnix = &val
	}
	return m
}

func tradeModelToRecord(m tradeModel) store.Trade {
	rec := store.Trade{
		ID:         m.ID,
		PlatformID: m.PlatformID,
		ExternalID: m.ExternalID,
		Symbol:     m.Symbol,
		Side:       m.Side,
		EntryPrice: m.EntryPrice,
		ExitPrice:  m.ExitPrice,
		Quantity:   m.Quantity,
		Leverage:   m.Leverage,
		PnL:        m.PnL,
		PnLPercent: m.PnLPercent,
		Fees:       m.Fees,
		Status:     m.Status,
		OpenedAt:   millisToTime(m.OpenedAtUnix),
		Notes:      m.Notes,
		RawData:    []byte(m.RawData),
		CreatedAt:  millisToTime(m.CreatedAtUnix),
		UpdatedAt:  millisToTime(m.UpdatedAtUnix),
	}
	if m.ClosedAtUnix != nil && *m.ClosedAtUnix > 0 {
		ts := millisToTime(*m.ClosedAtUnix)
		rec.ClosedAt = &ts
	}
	if len(m.Tags) > 0 {
		var tags []string
		if err := json.Unmarshal(m.Tags, &tags); err == nil {
			rec.Tags = tags
		}
	}
	return rec
}

func newMetricsModel(rec store.MetricsCache) metricsModel {
	if rec.CalculatedAt.IsZero() {
		rec.CalculatedAt = time.Now()
	}
	return metricsModel{
		ID:                   rec.ID,
		PlatformID:           rec.PlatformID,
		Period:               strings.TrimSpace(rec.Period),
		TotalReturn:          rec.TotalReturn,
		CAGR:                 rec.CAGR,
		AvgMonthlyReturn:     rec.AvgMonthlyReturn,
		BestMonth:            rec.BestMonth,
		WorstMonth:           rec.WorstMonth,
		PositiveMonths:       rec.PositiveMonths,
		NegativeMonths:       rec.NegativeMonths,
		MaxDrawdown:          rec.MaxDrawdown,
		CurrentDrawdown:      rec.CurrentDrawdown,
		Volatility:           rec.Volatility,
		SharpeRatio:          rec.SharpeRatio,
		SortinoRatio:         rec.SortinoRatio,
		CalmarRatio:          rec.CalmarRatio,
		ProfitFactor:         rec.ProfitFactor,
		TotalTrades:          rec.TotalTrades,
		WinningTrades:        rec.WinningTrades,
		LosingTrades:         rec.LosingTrades,
		WinRate:              rec.WinRate,
		AvgWin:               rec.AvgWin,
		AvgLoss:              rec.AvgLoss,
		AvgTradeDurationDays: rec.AvgTradeDurationDays,
		CurrentCopiers:       rec.CurrentCopiers,
		TotalAUM:             rec.TotalAUM,
		CalculatedAtUnix:     rec.CalculatedAt.UnixMilli(),
	}
}

func metricsModelToRecord(m metricsModel) store.MetricsCache {
	return store.MetricsCache{
		ID:                   m.ID,
		PlatformID:           m.PlatformID,
		Period:               m.Period,
		TotalReturn:          m.TotalReturn,
		CAGR:                 m.CAGR,
		AvgMonthlyReturn:     m.AvgMonthlyReturn,
		BestMonth:            m.BestMonth,
		WorstMonth:           m.WorstMonth,
		PositiveMonths:       m.PositiveMonths,
		NegativeMonths:       m.NegativeMonths,
		MaxDrawdown:          m.MaxDrawdown,
		CurrentDrawdown:      m.CurrentDrawdown,
		Volatility:           m.Volatility,
		SharpeRatio:          m.SharpeRatio,
		SortinoRatio:         m.SortinoRatio,
		CalmarRatio:          m.CalmarRatio,
		ProfitFactor:         m.ProfitFactor,
		TotalTrades:          m.TotalTrades,
		WinningTrades:        m.WinningTrades,
		LosingTrades:         m.LosingTrades,
		WinRate:              m.WinRate,
		AvgWin:               m.AvgWin,
		AvgLoss:              m.AvgLoss,
		AvgTradeDurationDays: m.AvgTradeDurationDays,
		CurrentCopiers:       m.CurrentCopiers,
		TotalAUM:             m.TotalAUM,
		CalculatedAt:         millisToTime(m.CalculatedAtUnix),
	}
}

func newGlobalMetricsModel(rec store.GlobalMetricsCache) globalMetricsModel {
	if rec.CalculatedAt.IsZero() {
		rec.CalculatedAt = time.Now()
	}
	return globalMetricsModel{
		ID:                  rec.ID,
		Period:              strings.TrimSpace(rec.Period),
		TotalEquity:         rec.TotalEquity,
		TotalPnL:            rec.TotalPnL,
		TotalReturn:         rec.TotalReturn,
		CombinedMaxDrawdown: rec.CombinedMaxDrawdown,
		TotalCopiers:        rec.TotalCopiers,
		TotalAUM:            rec.TotalAUM,
		CalculatedAtUnix:    rec.CalculatedAt.UnixMilli(),
	}
}

func globalMetricsModelToRecord(m globalMetricsModel) store.GlobalMetricsCache {
	return store.GlobalMetricsCache{
		ID:                  m.ID,
		Period:              m.Period,
		TotalEquity:         m.TotalEquity,
		TotalPnL:            m.TotalPnL,
		TotalReturn:         m.TotalReturn,
		CombinedMaxDrawdown: m.CombinedMaxDrawdown,
		TotalCopiers:        m.TotalCopiers,
		TotalAUM:            m.TotalAUM,
		CalculatedAt:        millisToTime(m.CalculatedAtUnix),
	}
}

// --------------------------- Helper funcs ---------------------------

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func jsonOrNil(raw []byte) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func millisToTime(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(v)
}
