package models

import (
	"time"

	"github.com/noah-isme/lms-api/internal/tenancy"
)

// User represents an application user stored in the users table. TenantID is
// nil only for super admins; every other role is bound to exactly one tenant.
type User struct {
	ID           string       `db:"id" json:"id"`
	TenantID     *int64       `db:"tenant_id" json:"tenant_id,omitempty"`
	Email        string       `db:"email" json:"email"`
	PasswordHash string       `db:"password_hash" json:"-"`
	FullName     string       `db:"full_name" json:"full_name"`
	Role         tenancy.Role `db:"role" json:"role"`
	Active       bool         `db:"active" json:"active"`
	LastLogin    *time.Time   `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time   `db:"deleted_at" json:"-"`
	DeletedBy    *string      `db:"deleted_by" json:"-"`
}
