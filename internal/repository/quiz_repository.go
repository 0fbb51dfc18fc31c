package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/tenancy"
)

const quizColumns = `q.id, q.topic_id, q.title, q.pass_score, q.opens_at, q.closes_at, q.active,
        q.tenant_id, q.created_by, q.updated_by, q.created_ip, q.created_at, q.updated_at, q.deleted_at, q.deleted_by`

// QuizRepository manages persistence for quizzes, questions, and options.
type QuizRepository struct {
	db *sqlx.DB
}

// NewQuizRepository constructs a QuizRepository.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// QueryConfig declares the list-query surface for quizzes.
func (r *QuizRepository) QueryConfig() tenancy.Config {
	return tenancy.Config{
		PrimaryKey:    "q.id",
		TenantColumn:  "q.tenant_id",
		DeletedColumn: "q.deleted_at",
		DefaultSort:   "q.created_at",
		SortColumns: map[string]string{
			"title":      "q.title",
			"created_at": "q.created_at",
		},
		SearchColumns: []string{"q.title"},
		DateColumn:    "q.created_at",
		StringFilters: map[string]string{"topic_id": "q.topic_id"},
		BoolFilters:   map[string]string{"active": "q.active"},
	}
}

// List returns quizzes matching the composed clause plus the total count.
func (r *QuizRepository) List(ctx context.Context, clause tenancy.Clause) ([]models.Quiz, int, error) {
	query := fmt.Sprintf("SELECT %s FROM quizzes q WHERE %s ORDER BY %s LIMIT %d OFFSET %d",
		quizColumns, clause.Where, clause.OrderBy, clause.Limit, clause.Offset)
	var quizzes []models.Quiz
	if err := r.db.SelectContext(ctx, &quizzes, query, clause.Args...); err != nil {
		return nil, 0, fmt.Errorf("list quizzes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM quizzes q WHERE %s", clause.Where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, clause.Args...); err != nil {
		return nil, 0, fmt.Errorf("count quizzes: %w", err)
	}
	return quizzes, total, nil
}

// FindByID fetches a quiz within the caller's access scope.
func (r *QuizRepository) FindByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Quiz, error) {
	conds := []string{"q.id = $1"}
	args := []interface{}{id}
	extra, extraArgs := filter.Predicates("q.tenant_id", "q.deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("SELECT %s FROM quizzes q WHERE %s", quizColumns, strings.Join(conds, " AND "))
	var quiz models.Quiz
	if err := r.db.GetContext(ctx, &quiz, query, args...); err != nil {
		return nil, err
	}
	return &quiz, nil
}

// ListQuestions returns a quiz's questions with their options, ordered by
// position.
func (r *QuizRepository) ListQuestions(ctx context.Context, quizID string) ([]models.QuizQuestionDetail, error) {
	const questionQuery = `SELECT qq.id, qq.quiz_id, qq.prompt, qq.position
        FROM quiz_questions qq WHERE qq.quiz_id = $1 ORDER BY qq.position ASC, qq.id ASC`
	var questions []models.QuizQuestion
	if err := r.db.SelectContext(ctx, &questions, questionQuery, quizID); err != nil {
		return nil, fmt.Errorf("list quiz questions: %w", err)
	}

	const optionQuery = `SELECT qo.id, qo.question_id, qo.label, qo.correct
        FROM quiz_options qo JOIN quiz_questions qq ON qq.id = qo.question_id
        WHERE qq.quiz_id = $1 ORDER BY qo.id ASC`
	var options []models.QuizOption
	if err := r.db.SelectContext(ctx, &options, optionQuery, quizID); err != nil {
		return nil, fmt.Errorf("list quiz options: %w", err)
	}

	optionsByQuestion := make(map[string][]models.QuizOption, len(questions))
	for _, option := range options {
		optionsByQuestion[option.QuestionID] = append(optionsByQuestion[option.QuestionID], option)
	}
	details := make([]models.QuizQuestionDetail, 0, len(questions))
	for _, question := range questions {
		detail := models.QuizQuestionDetail{QuizQuestion: question, Options: optionsByQuestion[question.ID]}
		if detail.Options == nil {
			detail.Options = []models.QuizOption{}
		}
		details = append(details, detail)
	}
	return details, nil
}

// Create inserts a new quiz record.
func (r *QuizRepository) Create(ctx context.Context, quiz *models.Quiz) error {
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = now
	}
	quiz.UpdatedAt = now
	const query = `INSERT INTO quizzes (id, topic_id, title, pass_score, opens_at, closes_at, active, tenant_id, created_by, updated_by, created_ip, created_at, updated_at)
        VALUES (:id, :topic_id, :title, :pass_score, :opens_at, :closes_at, :active, :tenant_id, :created_by, :updated_by, :created_ip, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, quiz); err != nil {
		return fmt.Errorf("create quiz: %w", err)
	}
	return nil
}

// CreateQuestion inserts a question with its options.
func (r *QuizRepository) CreateQuestion(ctx context.Context, question *models.QuizQuestion, options []models.QuizOption) error {
	if question.ID == "" {
		question.ID = uuid.NewString()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin question tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const questionQuery = `INSERT INTO quiz_questions (id, quiz_id, prompt, position) VALUES (:id, :quiz_id, :prompt, :position)`
	if _, err := tx.NamedExecContext(ctx, questionQuery, question); err != nil {
		return fmt.Errorf("create quiz question: %w", err)
	}
	const optionQuery = `INSERT INTO quiz_options (id, question_id, label, correct) VALUES (:id, :question_id, :label, :correct)`
	for i := range options {
		if options[i].ID == "" {
			options[i].ID = uuid.NewString()
		}
		options[i].QuestionID = question.ID
		if _, err := tx.NamedExecContext(ctx, optionQuery, options[i]); err != nil {
			return fmt.Errorf("create quiz option: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit question tx: %w", err)
	}
	return nil
}

// Update modifies an existing quiz.
func (r *QuizRepository) Update(ctx context.Context, quiz *models.Quiz) error {
	quiz.UpdatedAt = time.Now().UTC()
	const query = `UPDATE quizzes SET title = :title, pass_score = :pass_score, opens_at = :opens_at, closes_at = :closes_at,
        active = :active, updated_by = :updated_by, updated_at = :updated_at
        WHERE id = :id AND deleted_at IS NULL`
	if _, err := r.db.NamedExecContext(ctx, query, quiz); err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}
	return nil
}

// SoftDelete tags a quiz as deleted within the caller's scope.
func (r *QuizRepository) SoftDelete(ctx context.Context, filter tenancy.AccessFilter, id string, deletedBy string) (bool, error) {
	conds := []string{"id = $3"}
	args := []interface{}{time.Now().UTC(), deletedBy, id}
	extra, extraArgs := filter.Predicates("tenant_id", "deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("UPDATE quizzes SET deleted_at = $1, deleted_by = $2 WHERE %s", strings.Join(conds, " AND "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete quiz: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete quiz: %w", err)
	}
	return affected > 0, nil
}
