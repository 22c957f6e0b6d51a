package model

import (
	"gorm.io/datatypes"
)

type PlatformModel struct {
	ID            int    `gorm:"column:id;primaryKey"`
	Slug          string `gorm:"column:slug;uniqueIndex"`
	Name          string `gorm:"column:name"`
	APIEnabled    int    `gorm:"column:api_enabled"`
	ProfileURL    string `gorm:"column:profile_url"`
	Color         string `gorm:"column:color"`
	CreatedAtUnix int64  `gorm:"column:created_at"`
}

func (PlatformModel) TableName() string { return "platforms" }

type SnapshotModel struct {
	ID              int64          `gorm:"column:id;primaryKey"`
	PlatformID      int            `gorm:"column:platform_id;uniqueIndex:idx_snapshot_platform_date,priority:1"`
	Date            string         `gorm:"column:date;uniqueIndex:idx_snapshot_platform_date,priority:2;index"`
	Equity          float64        `gorm:"column:equity"`
	DailyPnL        float64        `gorm:"column:daily_pnl"`
	TotalPnL        float64        `gorm:"column:total_pnl"`
	TotalPnLPercent float64        `gorm:"column:total_pnl_percent"`
	PeakEquity      *float64       `gorm:"column:peak_equity"`
	Drawdown        float64        `gorm:"column:drawdown"`
	Copiers         int            `gorm:"column:copiers"`
	AUM             float64        `gorm:"column:aum"`
	Source          string         `gorm:"column:source"`
	Notes           *string        `gorm:"column:notes"`
	RawData         datatypes.JSON `gorm:"column:raw_data"`
	CreatedAtUnix   int64          `gorm:"column:created_at"`
	UpdatedAtUnix   int64          `gorm:"column:updated_at"`
}

func (SnapshotModel) TableName() string { return "snapshots" }

type TradeModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	PlatformID    int            `gorm:"column:platform_id;uniqueIndex:idx_trade_platform_ext,priority:1"`
	ExternalID    *string        `gorm:"column:external_id;uniqueIndex:idx_trade_platform_ext,priority:2"`
	Symbol        string         `gorm:"column:symbol"`
	Side          string         `gorm:"column:side"`
	EntryPrice    float64        `gorm:"column:entry_price"`
	ExitPrice     *float64       `gorm:"column:exit_price"`
	Quantity      float64        `gorm:"column:quantity"`
	Leverage      float64        `gorm:"column:leverage"`
	PnL           *float64       `gorm:"column:pnl"`
	PnLPercent    *float64       `gorm:"column:pnl_percent"`
	Fees          float64        `gorm:"column:fees"`
	Status        string         `gorm:"column:status;index"`
	OpenedAtUnix  int64          `gorm:"column:opened_at;index"`
	ClosedAtUnix  *int64         `gorm:"column:closed_at"`
	Notes         *string        `gorm:"column:notes"`
	Tags          datatypes.JSON `gorm:"column:tags"`
	RawData       datatypes.JSON `gorm:"column:raw_data"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (TradeModel) TableName() string { return "trades" }

type MetricsCacheModel struct {
	ID         int64  `gorm:"column:id;primaryKey"`
	PlatformID int    `gorm:"column:platform_id;uniqueIndex:idx_metrics_platform_period,priority:1"`
	Period     string `gorm:"column:period;uniqueIndex:idx_metrics_platform_period,priority:2"`

	TotalReturn      float64 `gorm:"column:total_return"`
	CAGR             float64 `gorm:"column:cagr"`
	AvgMonthlyReturn float64 `gorm:"column:avg_monthly_return"`
	BestMonth        float64 `gorm:"column:best_month"`
	WorstMonth       float64 `gorm:"column:worst_month"`
	PositiveMonths   int     `gorm:"column:positive_months"`
	NegativeMonths   int     `gorm:"column:negative_months"`

	MaxDrawdown     float64 `gorm:"column:max_drawdown"`
	CurrentDrawdown float64 `gorm:"column:current_drawdown"`
	Volatility      float64 `gorm:"column:volatility"`

	SharpeRatio  float64 `gorm:"column:sharpe_ratio"`
	SortinoRatio float64 `gorm:"column:sortino_ratio"`
	CalmarRatio  float64 `gorm:"column:calmar_ratio"`
	ProfitFactor float64 `gorm:"column:profit_factor"`

	TotalTrades          int     `gorm:"column:total_trades"`
	WinningTrades        int     `gorm:"column:winning_trades"`
	LosingTrades         int     `gorm:"column:losing_trades"`
	WinRate              float64 `gorm:"column:win_rate"`
	AvgWin               float64 `gorm:"column:avg_win"`
	AvgLoss              float64 `gorm:"column:avg_loss"`
	AvgTradeDurationDays float64 `gorm:"column:avg_trade_duration_days"`

	CurrentCopiers int     `gorm:"column:current_copiers"`
	TotalAUM       float64 `gorm:"column:total_aum"`

	CalculatedAtUnix int64 `gorm:"column:calculated_at"`
}

func (MetricsCacheModel) TableName() string { return "metrics_cache" }

type GlobalMetricsCacheModel struct {
	ID     int64  `gorm:"column:id;primaryKey"`
	Period string `gorm:"column:period;uniqueIndex"`

	TotalEquity         float64 `gorm:"column:total_equity"`
	TotalPnL            float64 `gorm:"column:total_pnl"`
	TotalReturn         float64 `gorm:"column:total_return"`
	CombinedMaxDrawdown float64 `gorm:"column:combined_max_drawdown"`
	TotalCopiers        int     `gorm:"column:total_copiers"`
	TotalAUM            float64 `gorm:"column:total_aum"`

	CalculatedAtUnix int64 `gorm:"column:calculated_at"`
}

func (GlobalMetricsCacheModel) TableName() string { return "global_metrics_cache" }
