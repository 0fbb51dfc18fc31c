package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/tenancy"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

// AnalyticsRepository describes the persistence layer required by
// AnalyticsService.
type AnalyticsRepository interface {
	TenantOverview(ctx context.Context, filter tenancy.AccessFilter, tenantID int64) (*models.TenantOverview, error)
	CourseEngagement(ctx context.Context, filter tenancy.AccessFilter, limit int) ([]models.CourseEngagement, error)
}

// AnalyticsService provides read-optimised access to analytics datasets with
// cache integration. Cache keys embed the tenant so one tenant's aggregates
// never serve another's request.
type AnalyticsService struct {
	repo    AnalyticsRepository
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(repo AnalyticsRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{repo: repo, cache: cache, metrics: metrics, logger: logger}
}

// resolveTenant picks the tenant whose aggregates are requested. Tenant-bound
// principals always read their own tenant; global principals must name one.
func resolveTenant(p tenancy.Principal, override *int64) (int64, tenancy.AccessFilter, error) {
	if !p.Global() {
		t := p.Tenant()
		return t, tenancy.AccessFilter{TenantID: &t}, nil
	}
	if override == nil || *override <= 0 {
		return 0, tenancy.AccessFilter{}, appErrors.Clone(appErrors.ErrValidation, "tenant_id is required")
	}
	t := *override
	return t, tenancy.AccessFilter{TenantID: &t}, nil
}

// Overview returns the headline counters for a tenant. The boolean indicates
// whether data originated from cache.
func (s *AnalyticsService) Overview(ctx context.Context, p tenancy.Principal, tenantOverride *int64) (*models.TenantOverview, bool, error) {
	tenantID, filter, err := resolveTenant(p, tenantOverride)
	if err != nil {
		return nil, false, err
	}

	cacheKey := fmt.Sprintf("analytics:overview:%d", tenantID)
	var cached models.TenantOverview
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	start := time.Now()
	overview, err := s.repo.TenantOverview(ctx, filter, tenantID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tenant overview")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("analytics_overview", time.Since(start))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, overview, 0); err != nil {
			s.logger.Warn("cache overview", zap.Error(err))
		}
	}
	return overview, false, nil
}

// Engagement returns per-course enrollment activity for a tenant.
func (s *AnalyticsService) Engagement(ctx context.Context, p tenancy.Principal, tenantOverride *int64, limit int) ([]models.CourseEngagement, bool, error) {
	tenantID, filter, err := resolveTenant(p, tenantOverride)
	if err != nil {
		return nil, false, err
	}
	if limit <= 0 {
		limit = 10
	}

	cacheKey := fmt.Sprintf("analytics:engagement:%d:%d", tenantID, limit)
	var cached []models.CourseEngagement
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return cached, true, nil
		}
	}

	start := time.Now()
	engagement, err := s.repo.CourseEngagement(ctx, filter, limit)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course engagement")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("analytics_engagement", time.Since(start))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, engagement, 0); err != nil {
			s.logger.Warn("cache engagement", zap.Error(err))
		}
	}
	return engagement, false, nil
}

// InvalidateTenant drops cached aggregates for a tenant after writes that
// move its counters.
func (s *AnalyticsService) InvalidateTenant(ctx context.Context, tenantID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("analytics:*:%d*", tenantID)); err != nil {
		s.logger.Warn("invalidate analytics cache", zap.Int64("tenant_id", tenantID), zap.Error(err))
	}
}

// SystemMetrics returns the system instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.SystemMetrics {
	if s.metrics == nil {
		return models.SystemMetrics{}
	}
	return s.metrics.Snapshot()
}
