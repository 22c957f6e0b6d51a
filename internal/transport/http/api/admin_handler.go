package apihttp

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tradekuant/internal/csvimport"
	"tradekuant/internal/logger"
	"tradekuant/internal/store"
)

func (h *handlers) registerAdmin(group *gin.RouterGroup) {
	group.GET("/snapshots", h.handleAdminListSnapshots)
	group.POST("/snapshots", h.handleAdminCreateSnapshot)
	group.PUT("/snapshots", h.handleAdminUpdateSnapshot)
	group.DELETE("/snapshots", h.handleAdminDeleteSnapshot)
	group.POST("/upload-csv", h.handleAdminUploadCSV)
	group.GET("/csv-template", h.handleAdminCSVTemplate)
	group.POST("/recompute", h.handleAdminRecompute)
}

func (h *handlers) handleAdminListSnapshots(c *gin.Context) {
	ctx := c.Request.Context()
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
	if raw := c.Query("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil {
			q.Offset = offset
		}
	}

	snaps, err := h.store.ListSnapshots(ctx, q)
	if err != nil {
		failRequest(c, http.StatusInternalServerError, "Failed to fetch snapshots", err)
		return
	}
	total, err := h.store.CountSnapshots(ctx, q)
	if err != nil {
		failRequest(c, http.StatusInternalServerError, "Failed to fetch snapshots", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": snapshotsToPayload(snaps), "total": total})
}

type createSnapshotRequest struct {
	PlatformID int      `json:"platform_id"`
	Date       string   `json:"date"`
	Equity     *float64 `json:"equity"`
	DailyPnL   float64  `json:"daily_pnl"`
	TotalPnL   float64  `json:"total_pnl"`
	Copiers    int      `json:"copiers"`
	AUM        float64  `json:"aum"`
	Notes      string   `json:"notes"`
}

// handleAdminCreateSnapshot runs the manual-entry path through the same
// validator and mapper the CSV import uses, so a hand-typed row cannot
// bypass the field rules.
func (h *handlers) handleAdminCreateSnapshot(c *gin.Context) {
	var req createSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failRequest(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PlatformID == 0 || req.Date == "" || req.Equity == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing required fields"})
		return
	}

	raw := map[string]string{
		"date":      req.Date,
		"equity":    strconv.FormatFloat(*req.Equity, 'f', -1, 64),
		"daily_pnl": strconv.FormatFloat(req.DailyPnL, 'f', -1, 64),
		"total_pnl": strconv.FormatFloat(req.TotalPnL, 'f', -1, 64),
		"copiers":   strconv.Itoa(req.Copiers),
		"aum":       strconv.FormatFloat(req.AUM, 'f', -1, 64),
		"notes":     req.Notes,
	}
	row, rowErrs := csvimport.ValidateRow(raw, 0)
	if len(rowErrs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Validation failed", "errors": rowErrs})
		return
	}

	snap := csvimport.RowToSnapshot(row, req.PlatformID, h.dash.InitialCapital())
	stored, err := h.store.UpsertSnapshot(c.Request.Context(), snap)
	if err != nil {
		failRequest(c, http.StatusInternalServerError, "Failed to create snapshot", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": snapshotToPayload(stored)})
}

type updateSnapshotRequest struct {
	ID       int64    `json:"id"`
	Date     *string  `json:"date"`
	Equity   *float64 `json:"equity"`
	DailyPnL *float64 `json:"daily_pnl"`
	TotalPnL *float64 `json:"total_pnl"`
	Copiers  *int     `json:"copiers"`
	AUM      *float64 `json:"aum"`
	Notes    *string  `json:"notes"`
}

func (h *handlers) handleAdminUpdateSnapshot(c *gin.Context) {
	var req updateSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failRequest(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Snapshot ID required"})
		return
	}

	fields := make(map[string]any)
	if req.Date != nil {
		if !csvimport.IsValidDateString(*req.Date) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid date"})
			return
		}
		fields["date"] = *req.Date
	}
	if req.Equity != nil {
		fields["equity"] = *req.Equity
	}
	if req.DailyPnL != nil {
		fields["daily_pnl"] = *req.DailyPnL
	}
	if req.TotalPnL != nil {
		fields["total_pnl"] = *req.TotalPnL
	}
	if req.Copiers != nil {
		fields["copiers"] = *req.Copiers
	}
	if req.AUM != nil {
		fields["aum"] = *req.AUM
	}
	if req.Notes != nil {
		fields["notes"] = *req.Notes
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No fields to update"})
		return
	}

	if err := h.store.UpdateSnapshot(c.Request.Context(), req.ID, fields); err != nil {
		failRequest(c, http.StatusInternalServerError, "Failed to update snapshot", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Snapshot updated"})
}

func (h *handlers) handleAdminDeleteSnapshot(c *gin.Context) {
	raw := c.Query("id")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Snapshot ID required"})
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		failRequest(c, http.StatusBadRequest, "Invalid snapshot ID", err)
		return
	}
	if err := h.store.DeleteSnapshot(c.Request.Context(), id); err != nil {
		failRequest(c, http.StatusInternalServerError, "Failed to delete snapshot", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Snapshot deleted"})
}

func (h *handlers) handleAdminUploadCSV(c *gin.Context) {
	ctx := c.Request.Context()

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No file provided"})
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		failRequest(c, http.StatusBadRequest, "Failed to read file", err)
		return
	}

	result := csvimport.ParseCSV(string(content))
	if !result.Success {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "CSV validation failed",
			"errors":  result.Errors,
			"summary": result.Summary,
		})
		return
	}

	slug := strings.TrimSpace(c.PostForm("platform"))
	if slug == "" {
		slug = "etoro"
	}
	platform, found, err := h.store.GetPlatformBySlug(ctx, slug)
	if err != nil || !found {
		if err == nil {
			err = errors.New("platform " + slug + " not found in database")
		}
		failRequest(c, http.StatusInternalServerError, "Platform not found", err)
		return
	}

	inserted := make([]snapshotPayload, 0, len(result.Rows))
	rowErrors := make([]gin.H, 0)
	for _, row := range result.Rows {
		snap := csvimport.RowToSnapshot(row, platform.ID, h.dash.InitialCapital())
		stored, err := h.store.UpsertSnapshot(ctx, snap)
		if err != nil {
			rowErrors = append(rowErrors, gin.H{"date": row.Date, "error": err.Error()})
			continue
		}
		inserted = append(inserted, snapshotToPayload(stored))
	}
	logger.Infof("csv import platform=%s inserted=%d failed=%d", slug, len(inserted), len(rowErrors))

	if len(inserted) > 0 {
		if err := h.dash.RecomputeCaches(ctx); err != nil {
			logger.Warnf("cache recompute after csv import failed: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"inserted":  len(inserted),
			"failed":    len(rowErrors),
			"snapshots": inserted,
			"errors":    rowErrors,
		},
		"summary": result.Summary,
	})
}

func (h *handlers) handleAdminCSVTemplate(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="template.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(csvimport.Template()))
}

func (h *handlers) handleAdminRecompute(c *gin.Context) {
	if err := h.dash.RecomputeCaches(c.Request.Context()); err != nil {
		failRequest(c, http.StatusInternalServerError, "Failed to recompute metrics", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Metrics recomputed"})
}
