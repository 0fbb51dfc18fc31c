package models

import "time"

// TenantScoped carries the ownership, audit, and lifecycle columns shared by
// every tenant-owned record. TenantID is immutable after creation; deletion
// is a lifecycle tag, never a row removal.
type TenantScoped struct {
	TenantID  int64      `db:"tenant_id" json:"tenant_id"`
	CreatedBy *string    `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy *string    `db:"updated_by" json:"updated_by,omitempty"`
	CreatedIP string     `db:"created_ip" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
	DeletedBy *string    `db:"deleted_by" json:"-"`
}

// Deleted reports whether the record carries the deleted lifecycle tag.
func (t TenantScoped) Deleted() bool {
	return t.DeletedAt != nil
}
