package apihttp

import (
	"math"
	"time"

	"tradekuant/internal/store"
)

// API payloads keep the column-style snake_case field names the public
// consumers already bind to.

type snapshotPayload struct {
	ID              int64    `json:"id"`
	PlatformID      int      `json:"platform_id"`
	Date            string   `json:"date"`
	Equity          float64  `json:"equity"`
	DailyPnL        float64  `json:"daily_pnl"`
	TotalPnL        float64  `json:"total_pnl"`
	TotalPnLPercent float64  `json:"total_pnl_percent"`
	PeakEquity      *float64 `json:"peak_equity"`
	Drawdown        float64  `json:"drawdown"`
	Copiers         int      `json:"copiers"`
	AUM             float64  `json:"aum"`
	Source          string   `json:"source"`
	Notes           *string  `json:"notes"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

func snapshotToPayload(s store.Snapshot) snapshotPayload {
	return snapshotPayload{
		ID:              s.ID,
		PlatformID:      s.PlatformID,
		Date:            s.Date,
		Equity:          s.Equity,
		DailyPnL:        s.DailyPnL,
		TotalPnL:        s.TotalPnL,
		TotalPnLPercent: s.TotalPnLPercent,
		PeakEquity:      s.PeakEquity,
		Drawdown:        s.Drawdown,
		Copiers:         s.Copiers,
		AUM:             s.AUM,
		Source:          s.Source,
		Notes:           s.Notes,
		CreatedAt:       s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func snapshotsToPayload(snaps []store.Snapshot) []snapshotPayload {
	out := make([]snapshotPayload, len(snaps))
	for i, s := range snaps {
		out[i] = snapshotToPayload(s)
	}
	return out
}

type metricsPayload struct {
	ID         int64  `json:"id"`
	PlatformID int    `json:"platform_id"`
	Period     string `json:"period"`

	TotalReturn      float64  `json:"total_return"`
	CAGR             *float64 `json:"cagr"`
	AvgMonthlyReturn float64  `json:"avg_monthly_return"`
	BestMonth        float64  `json:"best_month"`
	WorstMonth       float64  `json:"worst_month"`
	PositiveMonths   int      `json:"positive_months"`
	NegativeMonths   int      `json:"negative_months"`

	MaxDrawdown     float64  `json:"max_drawdown"`
	CurrentDrawdown float64  `json:"current_drawdown"`
	Volatility      *float64 `json:"volatility"`

	SharpeRatio  *float64 `json:"sharpe_ratio"`
	SortinoRatio *float64 `json:"sortino_ratio"`
	CalmarRatio  *float64 `json:"calmar_ratio"`
	ProfitFactor *float64 `json:"profit_factor"`

	TotalTrades          int     `json:"total_trades"`
	WinningTrades        int     `json:"winning_trades"`
	LosingTrades         int     `json:"losing_trades"`
	WinRate              float64 `json:"win_rate"`
	AvgWin               float64 `json:"avg_win"`
	AvgLoss              float64 `json:"avg_loss"`
	AvgTradeDurationDays float64 `json:"avg_trade_duration_days"`

	CurrentCopiers int     `json:"current_copiers"`
	TotalAUM       float64 `json:"total_aum"`

	CalculatedAt string `json:"calculated_at"`
}

func metricsToPayload(m store.MetricsCache) metricsPayload {
	return metricsPayload{
		ID:                   m.ID,
		PlatformID:           m.PlatformID,
		Period:               m.Period,
		TotalReturn:          m.TotalReturn,
		CAGR:                 finiteOrNil(m.CAGR),
		AvgMonthlyReturn:     m.AvgMonthlyReturn,
		BestMonth:            m.BestMonth,
		WorstMonth:           m.WorstMonth,
		PositiveMonths:       m.PositiveMonths,
		NegativeMonths:       m.NegativeMonths,
		MaxDrawdown:          m.MaxDrawdown,
		CurrentDrawdown:      m.CurrentDrawdown,
		Volatility:           finiteOrNil(m.Volatility),
		SharpeRatio:          finiteOrNil(m.SharpeRatio),
		SortinoRatio:         finiteOrNil(m.SortinoRatio),
		CalmarRatio:          finiteOrNil(m.CalmarRatio),
		ProfitFactor:         finiteOrNil(m.ProfitFactor),
		TotalTrades:          m.TotalTrades,
		WinningTrades:        m.WinningTrades,
		LosingTrades:         m.LosingTrades,
		WinRate:              m.WinRate,
		AvgWin:               m.AvgWin,
		AvgLoss:              m.AvgLoss,
		AvgTradeDurationDays: m.AvgTradeDurationDays,
		CurrentCopiers:       m.CurrentCopiers,
		TotalAUM:             m.TotalAUM,
		CalculatedAt:         m.CalculatedAt.UTC().Format(time.RFC3339),
	}
}

type globalMetricsPayload struct {
	ID                  int64   `json:"id"`
	Period              string  `json:"period"`
	TotalEquity         float64 `json:"total_equity"`
	TotalPnL            float64 `json:"total_pnl"`
	TotalReturn         float64 `json:"total_return"`
	CombinedMaxDrawdown float64 `json:"combined_max_drawdown"`
	TotalCopiers        int     `json:"total_copiers"`
	TotalAUM            float64 `json:"total_aum"`
	CalculatedAt        string  `json:"calculated_at"`
}

func globalMetricsToPayload(g store.GlobalMetricsCache) globalMetricsPayload {
	return globalMetricsPayload{
		ID:                  g.ID,
		Period:              g.Period,
		TotalEquity:         g.TotalEquity,
		TotalPnL:            g.TotalPnL,
		TotalReturn:         g.TotalReturn,
		CombinedMaxDrawdown: g.CombinedMaxDrawdown,
		TotalCopiers:        g.TotalCopiers,
		TotalAUM:            g.TotalAUM,
		CalculatedAt:        g.CalculatedAt.UTC().Format(time.RFC3339),
	}
}

// finiteOrNil drops Inf/NaN before JSON encoding; encoding/json rejects
// both, and a null reads better than a 500.
func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
