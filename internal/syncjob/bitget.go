package syncjob

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradekuant/internal/store"

	"github.com/tidwall/gjson"
)

const (
	defaultBitgetREST    = "https://api.bitget.com"
	bitgetAPIPrefix      = "/api/v2"
	defaultClientTimeout = 15 * time.Second
)

// BitgetConfig carries the copy-trading API credentials. With an empty
// APIKey the client serves fixture data instead of calling out.
type BitgetConfig struct {
	APIKey      string
	APISecret   string
	Passphrase  string
	TraderID    string
	RESTBaseURL string
	HTTPTimeout time.Duration
}

func (c BitgetConfig) withDefaults() BitgetConfig {
	if strings.TrimSpace(c.RESTBaseURL) == "" {
		c.RESTBaseURL = defaultBitgetREST
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultClientTimeout
	}
	return c
}

// BitgetClient reads the trader profit summary and order history from
// the Bitget copy-trading API.
type BitgetClient struct {
	cfg  BitgetConfig
	http *http.Client
}

func NewBitgetClient(cfg BitgetConfig) *BitgetClient {
	final := cfg.withDefaults()
	return &BitgetClient{
		cfg:  final,
		http: &http.Client{Timeout: final.HTTPTimeout},
	}
}

func (c *BitgetClient) Slug() string { return "bitget" }

// sign builds the ACCESS-SIGN header: base64 HMAC-SHA256 over
// timestamp + method + requestPath + body.
func (c *BitgetClient) sign(timestamp, method, requestPath, body string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(timestamp + strings.ToUpper(method) + requestPath + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *BitgetClient) request(ctx context.Context, method, endpoint string) (gjson.Result, error) {
	requestPath := bitgetAPIPrefix + endpoint
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.RESTBaseURL+requestPath, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("ACCESS-KEY", c.cfg.APIKey)
	req.Header.Set("ACCESS-SIGN", c.sign(timestamp, method, requestPath, ""))
	req.Header.Set("ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("ACCESS-PASSPHRASE", c.cfg.Passphrase)

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("bitget request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("bitget API error: %s", resp.Status)
	}
	parsed := gjson.ParseBytes(raw)
	if code := parsed.Get("code").String(); code != "00000" {
		return gjson.Result{}, fmt.Errorf("bitget API error: %s", parsed.Get("msg").String())
	}
	return parsed.Get("data"), nil
}

// FetchLatest returns the trader's profit summary as an observation.
func (c *BitgetClient) FetchLatest(ctx context.Context) (Observation, error) {
	var data gjson.Result
	if c.cfg.APIKey == "" {
		data = gjson.Parse(bitgetMockProfitSummary(time.Now()))
	} else {
		fetched, err := c.request(ctx, http.MethodGet, "/copy/spot-trader/profit-summarys")
		if err != nil {
			return Observation{}, err
		}
		data = fetched
	}
	return Observation{
		Date:     data.Get("date").String(),
		Equity:   data.Get("equity").Float(),
		DailyPnL: data.Get("daily_pnl").Float(),
		TotalPnL: data.Get("total_pnl").Float(),
		Copiers:  int(data.Get("copiers").Int()),
		AUM:      data.Get("aum").Float(),
		Raw:      []byte(data.Raw),
	}, nil
}

// FetchTrades returns the recent copy-trading order history.
func (c *BitgetClient) FetchTrades(ctx context.Context) ([]store.Trade, error) {
	var data gjson.Result
	if c.cfg.APIKey == "" {
		data = gjson.Parse(bitgetMockOrderHistory)
	} else {
		fetched, err := c.request(ctx, http.MethodGet, "/copy/spot-trader/order-history?limit=50")
		if err != nil {
			return nil, err
		}
		data = fetched
	}

	var trades []store.Trade
	data.ForEach(func(_, order gjson.Result) bool {
		trade := store.Trade{
			Symbol:     order.Get("symbol").String(),
			Side:       order.Get("side").String(),
			EntryPrice: order.Get("entry_price").Float(),
			Quantity:   order.Get("quantity").Float(),
			Status:     store.TradeStatusOpen,
			RawData:    []byte(order.Raw),
		}
		if id := order.Get("order_id").String(); id != "" {
			trade.ExternalID = &id
		}
		if opened := order.Get("opened_at").String(); opened != "" {
			if ts, err := time.Parse(time.RFC3339, opened); err == nil {
				trade.OpenedAt = ts
			}
		}
		if closed := order.Get("closed_at").String(); closed != "" {
			if ts, err := time.Parse(time.RFC3339, closed); err == nil {
				trade.ClosedAt = &ts
				trade.Status = store.TradeStatusClosed
			}
		}
		if pnl := order.Get("pnl"); pnl.Exists() {
			v := pnl.Float()
			trade.PnL = &v
		}
		if exit := order.Get("exit_price"); exit.Exists() {
			v := exit.Float()
			trade.ExitPrice = &v
		}
		trades = append(trades, trade)
		return true
	})
	return trades, nil
}

// Fixture payloads mirroring the upstream response shapes, used until
// real credentials are configured.
func bitgetMockProfitSummary(now time.Time) string {
	return fmt.Sprintf(`{
		"date": %q,
		"equity": 350.75,
		"daily_pnl": 5.25,
		"total_pnl": 50.75,
		"copiers": 12,
		"aum": 2500.0
	}`, now.Format("2006-01-02"))
}

const bitgetMockOrderHistory = `[
	{
		"order_id": "bg-1001",
		"symbol": "BTCUSDT",
		"side": "long",
		"entry_price": 42000,
		"exit_price": 43500,
		"quantity": 0.01,
		"pnl": 15.0,
		"opened_at": "2024-12-25T10:00:00Z",
		"closed_at": "2024-12-26T15:30:00Z"
	},
	{
		"order_id": "bg-1002",
		"symbol": "ETHUSDT",
		"side": "long",
		"entry_price": 2200,
		"exit_price": 2250,
		"quantity": 0.5,
		"pnl": 25.0,
		"opened_at": "2024-12-27T08:00:00Z",
		"closed_at": "2024-12-28T12:00:00Z"
	}
]`
