// Package tenancy implements tenant isolation for every read and write path:
// resolving the requesting principal, deriving the mandatory access filter,
// and composing list queries (search, typed filters, sort, pagination) into
// SQL clauses the repositories execute. It never performs I/O itself.
package tenancy

import (
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

// Role enumerates the RBAC roles known to the platform.
type Role string

const (
	RoleSuperAdmin  Role = "SUPER_ADMIN"
	RoleTenantAdmin Role = "TENANT_ADMIN"
	RoleTeacher     Role = "TEACHER"
	RoleStudent     Role = "STUDENT"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleTenantAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// Global reports whether the role is unbound to any tenant.
func (r Role) Global() bool {
	return r == RoleSuperAdmin
}

// Principal is the authenticated identity a request acts as. TenantID is nil
// only for global (SUPER_ADMIN) principals.
type Principal struct {
	UserID   string
	Role     Role
	TenantID *int64
}

// Global reports whether the principal may act across tenants.
func (p Principal) Global() bool {
	return p.Role.Global()
}

// Tenant returns the bound tenant ID, or 0 for a global principal.
func (p Principal) Tenant() int64 {
	if p.TenantID == nil {
		return 0
	}
	return *p.TenantID
}

// Resolve maps an already-verified token payload onto a Principal. Signature
// and expiry checks belong to the auth middleware; this only derives identity.
func Resolve(userID string, role string, tenantID *int64) (Principal, error) {
	if userID == "" {
		return Principal{}, appErrors.Clone(appErrors.ErrUnauthorized, "token carries no principal")
	}
	r := Role(role)
	if !r.Valid() {
		return Principal{}, appErrors.Clone(appErrors.ErrForbidden, "unrecognized role")
	}
	if r.Global() {
		return Principal{UserID: userID, Role: r}, nil
	}
	if tenantID == nil || *tenantID <= 0 {
		return Principal{}, appErrors.Clone(appErrors.ErrForbidden, "role requires a tenant binding")
	}
	t := *tenantID
	return Principal{UserID: userID, Role: r, TenantID: &t}, nil
}
