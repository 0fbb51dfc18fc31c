package models

import "time"

// Quiz is an assessment attached to a course topic.
type Quiz struct {
	ID        string     `db:"id" json:"id"`
	TopicID   string     `db:"topic_id" json:"topic_id"`
	Title     string     `db:"title" json:"title"`
	PassScore int        `db:"pass_score" json:"pass_score"`
	OpensAt   *time.Time `db:"opens_at" json:"opens_at,omitempty"`
	ClosesAt  *time.Time `db:"closes_at" json:"closes_at,omitempty"`
	Active    bool       `db:"active" json:"active"`
	TenantScoped
}

// QuizQuestion is a single prompt within a quiz.
type QuizQuestion struct {
	ID       string `db:"id" json:"id"`
	QuizID   string `db:"quiz_id" json:"quiz_id"`
	Prompt   string `db:"prompt" json:"prompt"`
	Position int    `db:"position" json:"position"`
}

// QuizOption is an answer choice for a question.
type QuizOption struct {
	ID         string `db:"id" json:"id"`
	QuestionID string `db:"question_id" json:"question_id"`
	Label      string `db:"label" json:"label"`
	Correct    bool   `db:"correct" json:"correct"`
}

// QuizDetail bundles a quiz with its questions and options.
type QuizDetail struct {
	Quiz
	Questions []QuizQuestionDetail `json:"questions"`
}

// QuizQuestionDetail bundles a question with its options.
type QuizQuestionDetail struct {
	QuizQuestion
	Options []QuizOption `json:"options"`
}
