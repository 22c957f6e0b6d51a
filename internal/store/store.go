package store

import (
	"context"
	"time"
)

// Snapshot provenance tags.
const (
	SourceAPI    = "api"
	SourceManual = "manual"
)

// Trade lifecycle states.
const (
	TradeStatusOpen      = "open"
	TradeStatusClosed    = "closed"
	TradeStatusCancelled = "cancelled"
)

// Platform is a static reference entity seeded from the registry.
type Platform struct {
	ID         int
	Slug       string
	Name       string
	APIEnabled bool
	ProfileURL string
	Color      string
	CreatedAt  time.Time
}

// Snapshot is one platform's daily account state. Date is the calendar
// day as YYYY-MM-DD; (PlatformID, Date) is unique.
type Snapshot struct {
	ID              int64
	PlatformID      int
	Date            string
	Equity          float64
	DailyPnL        float64
	TotalPnL        float64
	TotalPnLPercent float64
	PeakEquity      *float64
	Drawdown        float64
	Copiers         int
	AUM             float64
	Source          string
	Notes           *string
	RawData         []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Trade is one discrete position lifecycle on a platform. PnL, ExitPrice
// and ClosedAt are all nil (open) or all set (closed).
type Trade struct {
	ID         int64
	PlatformID int
	ExternalID *string
	Symbol     string
	Side       string
	EntryPrice float64
	ExitPrice  *float64
	Quantity   float64
	Leverage   float64
	PnL        *float64
	PnLPercent *float64
	Fees       float64
	Status     string
	OpenedAt   time.Time
	ClosedAt   *time.Time
	Notes      *string
	Tags       []string
	RawData    []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MetricsCache holds the precomputed statistics for one (platform,
// period) pair. Derived data: recomputed in place, never history.
type MetricsCache struct {
	ID         int64
	PlatformID int
	Period     string

	TotalReturn      float64
	CAGR             float64
	AvgMonthlyReturn float64
	BestMonth        float64
	WorstMonth       float64
	PositiveMonths   int
	NegativeMonths   int

	MaxDrawdown     float64
	CurrentDrawdown float64
	Volatility      float64

	SharpeRatio  float64
	SortinoRatio float64
	CalmarRatio  float64
	ProfitFactor float64

	TotalTrades          int
	WinningTrades        int
	LosingTrades         int
	WinRate              float64
	AvgWin               float64
	AvgLoss              float64
	AvgTradeDurationDays float64

	CurrentCopiers int
	TotalAUM       float64

	CalculatedAt time.Time
}

// GlobalMetricsCache is the all-platforms aggregate, keyed by period.
type GlobalMetricsCache struct {
	ID     int64
	Period string

	TotalEquity         float64
	TotalPnL            float64
	TotalReturn         float64
	CombinedMaxDrawdown float64
	TotalCopiers        int
	TotalAUM            float64

	CalculatedAt time.Time
}

// SnapshotQuery filters the admin/public snapshot listings.
type SnapshotQuery struct {
	PlatformID int
	StartDate  string
	EndDate    string
	Limit      int
	Offset     int
}

// TradeQuery filters trade listings.
type TradeQuery struct {
	PlatformID int
	Status     string
	Limit      int
}

// Store is the persistence gateway. It is the only component that
// touches the database; everything above it works on these records.
type Store interface {
	SeedPlatforms(ctx context.Context, platforms []Platform) error
	ListPlatforms(ctx context.Context) ([]Platform, error)
	GetPlatformBySlug(ctx context.Context, slug string) (Platform, bool, error)

	UpsertSnapshot(ctx context.Context, snap Snapshot) (Snapshot, error)
	UpdateSnapshot(ctx context.Context, id int64, fields map[string]any) error
	DeleteSnapshot(ctx context.Context, id int64) error
	ListSnapshots(ctx context.Context, q SnapshotQuery) ([]Snapshot, error)
	CountSnapshots(ctx context.Context, q SnapshotQuery) (int, error)
	LatestSnapshot(ctx context.Context, platformID int) (Snapshot, bool, error)
	ListSnapshotsSince(ctx context.Context, startDate string) ([]Snapshot, error)
	RunningPeak(ctx context.Context, platformID int) (float64, error)

	UpsertTrade(ctx context.Context, trade Trade) error
	ListTrades(ctx context.Context, q TradeQuery) ([]Trade, error)
	ListTradesSince(ctx context.Context, platformID int, startDate string) ([]Trade, error)

	UpsertMetrics(ctx context.Context, rec MetricsCache) error
	MetricsFor(ctx context.Context, platformID int, period string) (MetricsCache, bool, error)
	MetricsByPeriod(ctx context.Context, period string) ([]MetricsCache, error)
	AllMetrics(ctx context.Context) ([]MetricsCache, error)

	UpsertGlobalMetrics(ctx context.Context, rec GlobalMetricsCache) error
	GlobalMetricsByPeriod(ctx context.Context, period string) (GlobalMetricsCache, bool, error)

	Close() error
}
