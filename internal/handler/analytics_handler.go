package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/service"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/response"
)

// AnalyticsHandler exposes dashboard-ready analytics endpoints.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Overview godoc
// @Summary Tenant overview counters
// @Tags Analytics
// @Produce json
// @Param tenantId query int false "Tenant scope (super admin only)"
// @Success 200 {object} response.Envelope
// @Router /analytics/overview [get]
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	p, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	override, err := parseTenantOverride(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	overview, cacheHit, err := h.analytics.Overview(c.Request.Context(), p, override)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{
		"cache_hit":          cacheHit,
		"processing_time_ms": time.Since(start).Milliseconds(),
	}
	response.JSON(c, http.StatusOK, overview, nil, meta)
}

// Engagement godoc
// @Summary Per-course enrollment activity
// @Tags Analytics
// @Produce json
// @Param tenantId query int false "Tenant scope (super admin only)"
// @Param limit query int false "Number of courses"
// @Success 200 {object} response.Envelope
// @Router /analytics/engagement [get]
func (h *AnalyticsHandler) Engagement(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	p, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	override, err := parseTenantOverride(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrInvalidQuery, "invalid limit parameter"))
			return
		}
		limit = parsed
	}
	start := time.Now()
	engagement, cacheHit, err := h.analytics.Engagement(c.Request.Context(), p, override, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{
		"cache_hit":          cacheHit,
		"processing_time_ms": time.Since(start).Milliseconds(),
	}
	response.JSON(c, http.StatusOK, engagement, nil, meta)
}

// System godoc
// @Summary Instrumentation metrics snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	metrics := h.analytics.SystemMetrics()
	response.JSON(c, http.StatusOK, metrics, nil)
}
