package service

import (
	"github.com/noah-isme/lms-api/internal/tenancy"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

// writeTenant resolves the tenant a write lands in. Tenant-bound principals
// always write into their own tenant and any requested tenant is ignored;
// global principals must name a target tenant explicitly.
func writeTenant(p tenancy.Principal, requested *int64) (int64, error) {
	if !p.Global() {
		return p.Tenant(), nil
	}
	if requested == nil || *requested <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "tenant_id is required")
	}
	return *requested, nil
}
