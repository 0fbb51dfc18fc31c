package models

// Teacher represents an instructor profile within a tenant.
type Teacher struct {
	ID        string  `db:"id" json:"id"`
	UserID    *string `db:"user_id" json:"user_id,omitempty"`
	Code      string  `db:"code" json:"code"`
	FullName  string  `db:"full_name" json:"full_name"`
	Email     string  `db:"email" json:"email"`
	Specialty string  `db:"specialty" json:"specialty"`
	Phone     string  `db:"phone" json:"phone"`
	Active    bool    `db:"active" json:"active"`
	TenantScoped
}
