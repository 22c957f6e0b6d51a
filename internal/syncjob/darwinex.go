package syncjob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const defaultDarwinexREST = "https://api.darwinex.com"

// DarwinexConfig carries the DARWIN API token and the index name to
// track. With an empty APIToken the client serves fixture data.
type DarwinexConfig struct {
	APIToken       string
	DarwinName     string
	RESTBaseURL    string
	HTTPTimeout    time.Duration
	InitialCapital float64
}

func (c DarwinexConfig) withDefaults() DarwinexConfig {
	if strings.TrimSpace(c.RESTBaseURL) == "" {
		c.RESTBaseURL = defaultDarwinexREST
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultClientTimeout
	}
	return c
}

// DarwinexClient derives a daily observation from the DARWIN quote
// series: daily pnl is the delta of the last two closes, total pnl the
// distance from the configured capital baseline.
type DarwinexClient struct {
	cfg  DarwinexConfig
	http *http.Client
}

func NewDarwinexClient(cfg DarwinexConfig) *DarwinexClient {
	final := cfg.withDefaults()
	return &DarwinexClient{
		cfg:  final,
		http: &http.Client{Timeout: final.HTTPTimeout},
	}
}

func (c *DarwinexClient) Slug() string { return "darwinex" }

func (c *DarwinexClient) request(ctx context.Context, endpoint string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.RESTBaseURL+endpoint, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("darwinex request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("darwinex API error: %s", resp.Status)
	}
	return gjson.ParseBytes(raw), nil
}

func (c *DarwinexClient) darwinInfo(ctx context.Context) (gjson.Result, error) {
	if c.cfg.APIToken == "" {
		return gjson.Parse(fmt.Sprintf(darwinexMockInfo, c.cfg.DarwinName)), nil
	}
	return c.request(ctx, "/darwininfo/"+c.cfg.DarwinName)
}

func (c *DarwinexClient) quotes(ctx context.Context) (gjson.Result, error) {
	if c.cfg.APIToken == "" {
		return gjson.Parse(darwinexMockQuotes), nil
	}
	data, err := c.request(ctx, "/quotes/"+c.cfg.DarwinName+"?resolution=1d")
	if err != nil {
		return gjson.Result{}, err
	}
	return data.Get("quotes"), nil
}

// FetchLatest combines the DARWIN info and quote series into one
// normalized observation dated today.
func (c *DarwinexClient) FetchLatest(ctx context.Context) (Observation, error) {
	info, err := c.darwinInfo(ctx)
	if err != nil {
		return Observation{}, err
	}
	quotes, err := c.quotes(ctx)
	if err != nil {
		return Observation{}, err
	}

	series := quotes.Array()
	equity := c.cfg.InitialCapital
	dailyPnL := 0.0
	totalPnL := 0.0
	if n := len(series); n > 0 {
		last := series[n-1].Get("close").Float()
		equity = last
		totalPnL = last - c.cfg.InitialCapital
		if n > 1 {
			dailyPnL = last - series[n-2].Get("close").Float()
		}
	}

	return Observation{
		Date:     time.Now().Format("2006-01-02"),
		Equity:   equity,
		DailyPnL: dailyPnL,
		TotalPnL: totalPnL,
		Copiers:  int(info.Get("investorsCount").Int()),
		AUM:      info.Get("aum").Float(),
		Raw:      []byte(info.Raw),
	}, nil
}

const darwinexMockInfo = `{
	"darwin": %q,
	"return": 18.5,
	"maxDrawdown": -6.2,
	"investorsCount": 28,
	"aum": 12500
}`

const darwinexMockQuotes = `[
	{"date": "2024-12-01", "close": 305.0},
	{"date": "2024-12-15", "close": 315.5},
	{"date": "2024-12-30", "close": 318.5}
]`
