package models

import "time"

// TenantStatus represents the lifecycle of a tenant account.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "ACTIVE"
	TenantStatusSuspended TenantStatus = "SUSPENDED"
)

// Tenant is an isolated customer organization. Tenants themselves are global
// records managed only by super admins.
type Tenant struct {
	ID           int64        `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	Slug         string       `db:"slug" json:"slug"`
	ContactEmail string       `db:"contact_email" json:"contact_email"`
	Status       TenantStatus `db:"status" json:"status"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time   `db:"deleted_at" json:"-"`
	DeletedBy    *string      `db:"deleted_by" json:"-"`
}
