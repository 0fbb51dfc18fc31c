package models

import "time"

// NotificationKind labels the origin of a notification.
type NotificationKind string

const (
	NotificationKindSystem     NotificationKind = "SYSTEM"
	NotificationKindEnrollment NotificationKind = "ENROLLMENT"
	NotificationKindCourse     NotificationKind = "COURSE"
	NotificationKindQuiz       NotificationKind = "QUIZ"
)

// Notification is a per-user message within a tenant.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	TenantID  int64            `db:"tenant_id" json:"tenant_id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Kind      NotificationKind `db:"kind" json:"kind"`
	Title     string           `db:"title" json:"title"`
	Body      string           `db:"body" json:"body"`
	ReadAt    *time.Time       `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// NotificationBroadcast describes a fan-out request queued for delivery.
type NotificationBroadcast struct {
	TenantID int64
	UserIDs  []string
	Kind     NotificationKind
	Title    string
	Body     string
}
