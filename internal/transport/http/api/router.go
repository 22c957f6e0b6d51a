package apihttp

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tradekuant/internal/charts"
	"tradekuant/internal/dashboard"
	"tradekuant/internal/logger"
	"tradekuant/internal/store"
	"tradekuant/internal/syncjob"
)

type handlers struct {
	store store.Store
	dash  *dashboard.Service
	sync  *syncjob.Service
}

func (h *handlers) registerPublic(group *gin.RouterGroup) {
	group.GET("/dashboard", h.handleDashboard)
	group.GET("/metrics", h.handleMetrics)
	group.GET("/snapshots", h.handleSnapshots)
	group.GET("/stats", h.handleStats)
}

func (h *handlers) registerCharts(group *gin.RouterGroup) {
	group.GET("", h.handleChartsPage)
	group.GET("/og.png", h.handleChartsImage)
}

func failRequest(c *gin.Context, status int, title string, err error) {
	msg := "Unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, gin.H{"success": false, "error": title, "message": msg})
}

func (h *handlers) handleDashboard(c *gin.Context) {
	data, err := h.dash.Aggregate(c.Request.Context(), c.Query("period"))
	if err != nil {
		logger.Errorf("[api] dashboard aggregation failed: %v", err)
		failRequest(c, http.StatusInternalServerError, "Failed to fetch dashboard data", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func (h *handlers) handleMetrics(c *gin.Context) {
	ctx := c.Request.Context()
	period := c.DefaultQuery("period", "all")

	if c.Query("global") == "true" {
		rec, ok, err := h.store.GlobalMetricsByPeriod(ctx, period)
		if err != nil {
			failRequest(c, http.StatusInternalServerError, "Failed to fetch metrics", err)
			return
		}
		var data any
		if ok {
			data = globalMetricsToPayload(rec)
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "period": period})
		return
	}

	if raw := c.Query("platformId"); raw != "" {
		platformID, err := strconv.Atoi(raw)
		if err != nil {
			failRequest(c, http.StatusBadRequest, "Invalid platformId", err)
			return
		}
		rec, ok, err := h.store.MetricsFor(ctx, platformID, period)
		if err != nil {
			failRequest(c, http.StatusInternalServerError, "Failed to fetch metrics", err)
			return
		}
		var data any
		if ok {
			data = metricsToPayload(rec)
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "platform_id": raw, "period": period})
		return
	}

	all, err := h.store.AllMetrics(ctx)
	if err != nil {
		failRequest(c, http.StatusInternalServerError, "Failed to fetch metrics", err)
		return
	}
	byPlatform := make(map[int]map[string]metricsPayload)
	for _, rec := range all {
		if byPlatform[rec.PlatformID] == nil {
			byPlatform[rec.PlatformID] = make(map[string]metricsPayload)
		}
		byPlatform[rec.PlatformID][rec.Period] = metricsToPayload(rec)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": byPlatform, "count": len(byPlatform)})
}

func (h *handlers) handleSnapshots(c *gin.Context) {
	q := store.SnapshotQuery{}
	if raw := c.Query("platformId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			failRequest(c, http.StatusBadRequest, "Invalid platformId", err)
			return
		}
		q.PlatformID = id
	}
	q.StartDate = c.Query("startDate")
	q.EndDate = c.Query("endDate")
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			q.Limit = limit
		}
	}

	snaps, err := h.store.ListSnapshots(c.Request.Context(), q)
	if err != nil {
		failRequest(c, http.StatusInternalServerError, "Failed to fetch snapshots", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": snapshotsToPayload(snaps), "count": len(snaps)})
}

// handleStats backs the landing-page stat cards from the lifetime
// caches.
func (h *handlers) handleStats(c *gin.Context) {
	ctx := c.Request.Context()

	global, globalOK, err := h.store.GlobalMetricsByPeriod(ctx, "all")
	if err != nil {
		failRequest(c, http.StatusInternalServerError, "Failed to fetch stats", err)
		return
	}
	platforms, err := h.store.ListPlatforms(ctx)
	if err != nil {
		failRequest(c, http.StatusInternalServerError, "Failed to fetch stats", err)
		return
	}
	metricRows, err := h.store.MetricsByPeriod(ctx, "all")
	if err != nil {
		failRequest(c, http.StatusInternalServerError, "Failed to fetch stats", err)
		return
	}

	var avgSharpe, avgWinRate, maxDrawdown float64
	byPlatform := make(map[int]store.MetricsCache, len(metricRows))
	for _, m := range metricRows {
		avgSharpe += m.SharpeRatio
		avgWinRate += m.WinRate
		if m.MaxDrawdown > maxDrawdown {
			maxDrawdown = m.MaxDrawdown
		}
		byPlatform[m.PlatformID] = m
	}
	if len(metricRows) > 0 {
		avgSharpe /= float64(len(metricRows))
		avgWinRate /= float64(len(metricRows))
	}

	totalReturn := "+0.00%"
	drawdownCard := fmt.Sprintf("%.1f%%", maxDrawdown)
	lastUpdated := time.Now().UTC().Format(time.RFC3339)
	if globalOK {
		totalReturn = fmt.Sprintf("%+.2f%%", global.TotalReturn)
		if global.CombinedMaxDrawdown != 0 {
			drawdownCard = fmt.Sprintf("%.1f%%", global.CombinedMaxDrawdown)
		}
		lastUpdated = global.CalculatedAt.UTC().Format(time.RFC3339)
	}

	stats := []gin.H{
		{"key": "totalReturn", "value": totalReturn},
		{"key": "maxDrawdown", "value": drawdownCard},
		{"key": "sharpeRatio", "value": fmt.Sprintf("%.2f", avgSharpe)},
		{"key": "winRate", "value": fmt.Sprintf("%.1f%%", avgWinRate)},
	}

	platformReturns := make([]gin.H, len(platforms))
	for i, p := range platforms {
		color := p.Color
		if color == "" {
			color = "#10B981"
		}
		platformReturns[i] = gin.H{
			"name":   p.Name,
			"color":  color,
			"return": fmt.Sprintf("%+.2f%%", byPlatform[p.ID].TotalReturn),
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
		"stats":       stats,
		"platforms":   platformReturns,
		"lastUpdated": lastUpdated,
	}})
}

func (h *handlers) handleChartsPage(c *gin.Context) {
	data, err := h.dash.Aggregate(c.Request.Context(), c.Query("period"))
	if err != nil {
		failRequest(c, http.StatusInternalServerError, "Failed to render charts", err)
		return
	}
	html, err := charts.BuildPage(data)
	if err != nil {
		failRequest(c, http.StatusInternalServerError, "Failed to render charts", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func (h *handlers) handleChartsImage(c *gin.Context) {
	ctx := c.Request.Context()
	data, err := h.dash.Aggregate(ctx, c.Query("period"))
	if err != nil {
		failRequest(c, http.StatusInternalServerError, "Failed to render chart image", err)
		return
	}
	img, err := charts.RenderPNG(ctx, data)
	if err != nil {
		logger.Errorf("[api] headless render failed: %v", err)
		failRequest(c, http.StatusInternalServerError, "Failed to render chart image", err)
		return
	}
	c.Data(http.StatusOK, "image/png", img.Bytes)
}

func (h *handlers) registerCron(group *gin.RouterGroup) {
	group.POST("", h.handleCronAll)
	group.POST("/:platform", h.handleCronPlatform)
}

func (h *handlers) handleCronAll(c *gin.Context) {
	if h.sync == nil {
		failRequest(c, http.StatusServiceUnavailable, "Sync disabled", nil)
		return
	}
	report := h.sync.SyncAll(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"success": true, "data": report})
}

func (h *handlers) handleCronPlatform(c *gin.Context) {
	if h.sync == nil {
		failRequest(c, http.StatusServiceUnavailable, "Sync disabled", nil)
		return
	}
	slug := c.Param("platform")
	snap, err := h.sync.SyncPlatform(c.Request.Context(), slug)
	if err != nil {
		if syncjob.IsUnknownPlatform(err) {
			failRequest(c, http.StatusNotFound, "Unknown platform", err)
			return
		}
		logger.Errorf("[api] cron sync failed platform=%s: %v", slug, err)
		failRequest(c, http.StatusInternalServerError, "Failed to sync platform", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "platform": slug, "data": snapshotToPayload(snap)})
}
