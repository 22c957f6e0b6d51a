package syncjob

import (
	"context"

	"tradekuant/internal/store"
)

// Observation is the normalized shape every platform client must hand
// back: one day of account state plus the raw upstream payload.
type Observation struct {
	Date     string  `json:"date"`
	Equity   float64 `json:"equity"`
	DailyPnL float64 `json:"daily_pnl"`
	TotalPnL float64 `json:"total_pnl"`
	Copiers  int     `json:"copiers"`
	AUM      float64 `json:"aum"`
	Raw      []byte  `json:"-"`
}

// Client pulls the latest observation from one platform's API.
type Client interface {
	Slug() string
	FetchLatest(ctx context.Context) (Observation, error)
}

// TradeFetcher is implemented by clients that can also report the
// platform's recent trade history.
type TradeFetcher interface {
	FetchTrades(ctx context.Context) ([]store.Trade, error)
}
