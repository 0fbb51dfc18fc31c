package tenancy

import (
	"fmt"

	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

// AccessFilter is the predicate every persistence query must apply: a tenant
// restriction (nil means unrestricted) plus soft-delete exclusion. It is
// derived fresh per request and never persisted.
type AccessFilter struct {
	TenantID       *int64
	IncludeDeleted bool
}

// Scope derives the access filter for list queries. Non-global principals are
// always pinned to their own tenant; a client-supplied tenant override is
// honored only for global principals.
func Scope(p Principal, override *int64) AccessFilter {
	if p.Global() {
		if override != nil && *override > 0 {
			t := *override
			return AccessFilter{TenantID: &t}
		}
		return AccessFilter{}
	}
	t := p.Tenant()
	return AccessFilter{TenantID: &t}
}

// ScopeRecord derives the access filter for single-record operations, where
// no override applies.
func ScopeRecord(p Principal) AccessFilter {
	return Scope(p, nil)
}

// Authorize checks tenant ownership of an already-loaded record. A mismatch
// surfaces as NOT_FOUND so cross-tenant probing cannot confirm existence.
func Authorize(p Principal, recordTenantID int64) error {
	if p.Global() {
		return nil
	}
	if recordTenantID != p.Tenant() {
		return appErrors.Clone(appErrors.ErrNotFound, "resource not found")
	}
	return nil
}

// Predicates renders the filter as SQL fragments over the given qualified
// columns. argOffset is the number of positional arguments already bound in
// the surrounding query.
func (f AccessFilter) Predicates(tenantColumn, deletedColumn string, argOffset int) ([]string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.TenantID != nil && tenantColumn != "" {
		conds = append(conds, fmt.Sprintf("%s = $%d", tenantColumn, argOffset+len(args)+1))
		args = append(args, *f.TenantID)
	}
	if !f.IncludeDeleted && deletedColumn != "" {
		conds = append(conds, fmt.Sprintf("%s IS NULL", deletedColumn))
	}
	return conds, args
}
