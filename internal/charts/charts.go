package charts

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"tradekuant/internal/dashboard"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorTotal         = "#fbbf24"
	colorDrawdown      = "#f87171"
	colorPositiveBar   = "#34d399"
	colorNegativeBar   = "#f87171"

	chartWidthPx  = 1200
	chartHeightPx = 420
)

// ImageResult is one rendered chart image.
type ImageResult struct {
	Bytes    []byte `json:"-"`
	Base64   string `json:"base64"`
	Filename string `json:"filename"`
}

func (r *ImageResult) DataURI() string {
	if r == nil {
		return ""
	}
	if r.Base64 == "" && len(r.Bytes) > 0 {
		r.Base64 = base64.StdEncoding.EncodeToString(r.Bytes)
	}
	if r.Base64 == "" {
		return ""
	}
	return "data:image/png;base64," + r.Base64
}

// BuildPage renders the dashboard charts (equity curve, drawdown
// curve, monthly grid) into a standalone HTML document.
func BuildPage(data dashboard.Data) ([]byte, error) {
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(
		buildEquityChart(data),
		buildDrawdownChart(data),
		buildMonthlyChart(data),
	)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func chartInit(height int) opts.Initialization {
	return opts.Initialization{
		Theme:           types.ThemeWesteros,
		Width:           fmt.Sprintf("%dpx", chartWidthPx),
		Height:          fmt.Sprintf("%dpx", height),
		BackgroundColor: colorBackground,
	}
}

func baseGlobalOptions(title, subtitle string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(chartInit(chartHeightPx)),
		charts.WithTitleOpts(opts.Title{
			Title:         title,
			Subtitle:      subtitle,
			Left:          "left",
			Top:           "10",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	}
}

func buildEquityChart(data dashboard.Data) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(baseGlobalOptions(
		"Equity",
		fmt.Sprintf("period %s | %d points", data.Period, len(data.EquityCurve)),
	)...)

	xAxis := make([]string, len(data.EquityCurve))
	totals := make([]opts.LineData, len(data.EquityCurve))
	for i, p := range data.EquityCurve {
		xAxis[i] = p.Date
		totals[i] = opts.LineData{Value: p.Total}
	}
	line.SetXAxis(xAxis)

	colorBySlug := make(map[string]string, len(data.Platforms))
	for _, p := range data.Platforms {
		colorBySlug[p.Slug] = p.Color
	}
	for _, slug := range seriesSlugs(data.EquityCurve) {
		series := make([]opts.LineData, len(data.EquityCurve))
		for i, p := range data.EquityCurve {
			series[i] = opts.LineData{Value: p.Series[slug]}
		}
		line.AddSeries(slug, series,
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorBySlug[slug], Width: 2}),
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
		)
	}
	line.AddSeries("total", totals,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorTotal, Width: 3}),
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
	)
	return line
}

func seriesSlugs(curve []dashboard.EquityPoint) []string {
	if len(curve) == 0 {
		return nil
	}
	slugs := make([]string, 0, len(curve[0].Series))
	for slug := range curve[0].Series {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

func buildDrawdownChart(data dashboard.Data) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(baseGlobalOptions("Drawdown %", "combined, peak-tracking")...)

	xAxis := make([]string, len(data.DrawdownCurve))
	series := make([]opts.LineData, len(data.DrawdownCurve))
	for i, p := range data.DrawdownCurve {
		xAxis[i] = p.Date
		series[i] = opts.LineData{Value: p.Drawdown}
	}
	line.SetXAxis(xAxis)
	line.AddSeries("drawdown", series,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorDrawdown, Width: 2}),
		charts.WithAreaStyleOpts(opts.AreaStyle{Color: colorDrawdown, Opacity: opts.Float(0.25)}),
	)
	return line
}

func buildMonthlyChart(data dashboard.Data) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(baseGlobalOptions("Monthly Return %", "")...)

	xAxis := make([]string, len(data.MonthlyReturns))
	series := make([]opts.BarData, len(data.MonthlyReturns))
	for i, m := range data.MonthlyReturns {
		xAxis[i] = m.Month
		color := colorPositiveBar
		if m.Value < 0 {
			color = colorNegativeBar
		}
		series[i] = opts.BarData{
			Value:     m.Value,
			ItemStyle: &opts.ItemStyle{Color: color},
		}
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("monthly", series)
	return bar
}

var (
	headlessOnce sync.Once
	headlessErr  error
)

// EnsureHeadlessAvailable probes for a usable headless browser once.
func EnsureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		targetCtx := ctx
		if targetCtx == nil {
			targetCtx = context.Background()
		}
		parent, cancel := chromedp.NewContext(targetCtx)
		defer cancel()
		headlessErr = chromedp.Run(parent)
	})
	return headlessErr
}

// RenderPNG screenshots the charts page, for social preview images and
// report exports.
func RenderPNG(ctx context.Context, data dashboard.Data) (ImageResult, error) {
	if err := EnsureHeadlessAvailable(ctx); err != nil {
		return ImageResult{}, err
	}
	html, err := BuildPage(data)
	if err != nil {
		return ImageResult{}, err
	}
	png, err := renderHTMLToPNG(ctx, html, chartWidthPx, 3*chartHeightPx)
	if err != nil {
		return ImageResult{}, err
	}
	return ImageResult{
		Bytes:    png,
		Base64:   base64.StdEncoding.EncodeToString(png),
		Filename: fmt.Sprintf("dashboard_%s.png", data.Period),
	}, nil
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, 20*time.Second)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
