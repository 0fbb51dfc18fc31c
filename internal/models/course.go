package models

import "time"

// Course is a deliverable unit of study under a program. Content is nested
// course → module → topic → video; every nested row repeats tenant_id so the
// access filter applies uniformly without joins.
type Course struct {
	ID               string     `db:"id" json:"id"`
	ProgramID        string     `db:"program_id" json:"program_id"`
	SpecializationID *string    `db:"specialization_id" json:"specialization_id,omitempty"`
	Code             string     `db:"code" json:"code"`
	Title            string     `db:"title" json:"title"`
	Description      string     `db:"description" json:"description"`
	Level            string     `db:"level" json:"level"`
	Published        bool       `db:"published" json:"published"`
	PublishedAt      *time.Time `db:"published_at" json:"published_at,omitempty"`
	TenantScoped
}

// CourseModule groups topics inside a course.
type CourseModule struct {
	ID       string `db:"id" json:"id"`
	CourseID string `db:"course_id" json:"course_id"`
	Title    string `db:"title" json:"title"`
	Position int    `db:"position" json:"position"`
	TenantScoped
}

// Topic is a lesson within a module.
type Topic struct {
	ID       string `db:"id" json:"id"`
	ModuleID string `db:"module_id" json:"module_id"`
	Title    string `db:"title" json:"title"`
	Content  string `db:"content" json:"content"`
	Position int    `db:"position" json:"position"`
	TenantScoped
}

// Video is a playable asset attached to a topic. StoragePath refers to the
// media storage backend; playback goes through signed URLs.
type Video struct {
	ID              string `db:"id" json:"id"`
	TopicID         string `db:"topic_id" json:"topic_id"`
	Title           string `db:"title" json:"title"`
	StoragePath     string `db:"storage_path" json:"-"`
	DurationSeconds int    `db:"duration_seconds" json:"duration_seconds"`
	Position        int    `db:"position" json:"position"`
	TenantScoped
}

// CourseDetail bundles a course with its nested content tree.
type CourseDetail struct {
	Course
	Modules []CourseModuleDetail `json:"modules"`
}

// CourseModuleDetail bundles a module with its topics.
type CourseModuleDetail struct {
	CourseModule
	Topics []TopicDetail `json:"topics"`
}

// TopicDetail bundles a topic with its videos.
type TopicDetail struct {
	Topic
	Videos []Video `json:"videos"`
}
