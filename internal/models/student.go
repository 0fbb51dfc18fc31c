package models

import "time"

// Student represents a learner profile within a tenant.
type Student struct {
	ID        string     `db:"id" json:"id"`
	UserID    *string    `db:"user_id" json:"user_id,omitempty"`
	ClientID  *string    `db:"client_id" json:"client_id,omitempty"`
	Code      string     `db:"code" json:"code"`
	FullName  string     `db:"full_name" json:"full_name"`
	Email     string     `db:"email" json:"email"`
	Gender    string     `db:"gender" json:"gender"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Phone     string     `db:"phone" json:"phone"`
	Address   string     `db:"address" json:"address"`
	Active    bool       `db:"active" json:"active"`
	TenantScoped
}
