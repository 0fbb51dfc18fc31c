package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/middleware"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/tenancy"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// principalFromContext derives the request principal from the verified JWT
// claims the auth middleware stored.
func principalFromContext(c *gin.Context) (tenancy.Principal, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return tenancy.Principal{}, appErrors.ErrUnauthorized
	}
	return claims.Principal()
}

// parseListQuery reads the shared list parameters plus the optional tenantId
// override. The override is only honored downstream for global principals.
func parseListQuery(c *gin.Context) (tenancy.ListQuery, *int64, error) {
	q := tenancy.NewListQuery()
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return q, nil, appErrors.Clone(appErrors.ErrInvalidQuery, "invalid page parameter")
		}
		q.Page = page
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return q, nil, appErrors.Clone(appErrors.ErrInvalidQuery, "invalid limit parameter")
		}
		q.Limit = limit
	}
	q.SortBy = c.Query("sort_by")
	q.SortOrder = c.Query("sort_order")
	q.Search = strings.TrimSpace(c.Query("search"))

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, nil, appErrors.Clone(appErrors.ErrInvalidQuery, "invalid from parameter")
		}
		q.From = &parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, nil, appErrors.Clone(appErrors.ErrInvalidQuery, "invalid to parameter")
		}
		q.To = &parsed
	}

	override, err := parseTenantOverride(c)
	if err != nil {
		return q, nil, err
	}
	return q, override, nil
}

func parseTenantOverride(c *gin.Context) (*int64, error) {
	raw := c.Query("tenantId")
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidQuery, "invalid tenantId parameter")
	}
	return &value, nil
}

// Query filter setters. Empty values are skipped so absent parameters never
// become predicates.

func setStringFilter(f *tenancy.Filters, key, value string) {
	if value == "" {
		return
	}
	if f.Strings == nil {
		f.Strings = make(map[string]string)
	}
	f.Strings[key] = value
}

func setEnumFilter(f *tenancy.Filters, key, value string) {
	if value == "" {
		return
	}
	if f.Enums == nil {
		f.Enums = make(map[string]string)
	}
	f.Enums[key] = value
}

func setBoolFilter(f *tenancy.Filters, key, raw string) {
	switch raw {
	case "true":
		if f.Bools == nil {
			f.Bools = make(map[string]bool)
		}
		f.Bools[key] = true
	case "false":
		if f.Bools == nil {
			f.Bools = make(map[string]bool)
		}
		f.Bools[key] = false
	}
}
