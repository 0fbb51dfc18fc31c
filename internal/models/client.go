package models

// ClientStatus represents the approval state of a client organization.
type ClientStatus string

const (
	ClientStatusPending   ClientStatus = "PENDING"
	ClientStatusApproved  ClientStatus = "APPROVED"
	ClientStatusSuspended ClientStatus = "SUSPENDED"
)

// Client is a partner organization within a tenant that sponsors students.
type Client struct {
	ID           string       `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	ContactEmail string       `db:"contact_email" json:"contact_email"`
	Phone        string       `db:"phone" json:"phone"`
	City         string       `db:"city" json:"city"`
	Status       ClientStatus `db:"status" json:"status"`
	Active       bool         `db:"active" json:"active"`
	TenantScoped
}
