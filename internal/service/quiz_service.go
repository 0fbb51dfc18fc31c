package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/tenancy"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type quizRepository interface {
	QueryConfig() tenancy.Config
	List(ctx context.Context, clause tenancy.Clause) ([]models.Quiz, int, error)
	FindByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Quiz, error)
	ListQuestions(ctx context.Context, quizID string) ([]models.QuizQuestionDetail, error)
	Create(ctx context.Context, quiz *models.Quiz) error
	CreateQuestion(ctx context.Context, question *models.QuizQuestion, options []models.QuizOption) error
	Update(ctx context.Context, quiz *models.Quiz) error
	SoftDelete(ctx context.Context, filter tenancy.AccessFilter, id string, deletedBy string) (bool, error)
}

type quizTopicFinder interface {
	FindTopicByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Topic, error)
}

// CreateQuizRequest holds payload for creating quizzes.
type CreateQuizRequest struct {
	TopicID   string     `json:"topic_id" validate:"required"`
	Title     string     `json:"title" validate:"required"`
	PassScore int        `json:"pass_score" validate:"gte=0,lte=100"`
	OpensAt   *time.Time `json:"opens_at"`
	ClosesAt  *time.Time `json:"closes_at"`
}

// UpdateQuizRequest holds payload for updating quizzes.
type UpdateQuizRequest struct {
	Title     string     `json:"title" validate:"required"`
	PassScore int        `json:"pass_score" validate:"gte=0,lte=100"`
	OpensAt   *time.Time `json:"opens_at"`
	ClosesAt  *time.Time `json:"closes_at"`
	Active    bool       `json:"active"`
}

// QuizOptionRequest is one answer choice in a question payload.
type QuizOptionRequest struct {
	Label   string `json:"label" validate:"required"`
	Correct bool   `json:"correct"`
}

// CreateQuestionRequest holds payload for adding a question with options.
type CreateQuestionRequest struct {
	Prompt   string              `json:"prompt" validate:"required"`
	Position int                 `json:"position" validate:"gte=0"`
	Options  []QuizOptionRequest `json:"options" validate:"required,min=2,dive"`
}

// QuizService handles quiz use-cases.
type QuizService struct {
	repo      quizRepository
	topics    quizTopicFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewQuizService constructs the quiz service.
func NewQuizService(repo quizRepository, topics quizTopicFinder, validate *validator.Validate, logger *zap.Logger) *QuizService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizService{repo: repo, topics: topics, validator: validate, logger: logger}
}

// List returns quizzes visible to the principal plus pagination metadata.
func (s *QuizService) List(ctx context.Context, p tenancy.Principal, tenantOverride *int64, q tenancy.ListQuery, f tenancy.Filters) ([]models.Quiz, *tenancy.Pagination, error) {
	clause, err := tenancy.Build(tenancy.Scope(p, tenantOverride), q, s.repo.QueryConfig(), f)
	if err != nil {
		return nil, nil, err
	}
	quizzes, total, err := s.repo.List(ctx, clause)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list quizzes")
	}
	return quizzes, tenancy.NewPagination(q.Page, q.Limit, total), nil
}

// Get returns a quiz with its questions and options.
func (s *QuizService) Get(ctx context.Context, p tenancy.Principal, id string) (*models.QuizDetail, error) {
	quiz, err := s.findQuiz(ctx, p, id)
	if err != nil {
		return nil, err
	}
	questions, err := s.repo.ListQuestions(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz questions")
	}
	return &models.QuizDetail{Quiz: *quiz, Questions: questions}, nil
}

// Create registers a new quiz under a topic. The quiz inherits the topic's
// tenant, so no tenant can attach quizzes to another tenant's content.
func (s *QuizService) Create(ctx context.Context, p tenancy.Principal, ip string, req CreateQuizRequest) (*models.Quiz, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz payload")
	}
	if req.OpensAt != nil && req.ClosesAt != nil && req.ClosesAt.Before(*req.OpensAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "closes_at precedes opens_at")
	}
	topic, err := s.topics.FindTopicByID(ctx, tenancy.ScopeRecord(p), req.TopicID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load topic")
	}
	quiz := &models.Quiz{
		TopicID:   req.TopicID,
		Title:     req.Title,
		PassScore: req.PassScore,
		OpensAt:   req.OpensAt,
		ClosesAt:  req.ClosesAt,
		Active:    true,
		TenantScoped: models.TenantScoped{
			TenantID:  topic.TenantID,
			CreatedBy: &p.UserID,
			CreatedIP: ip,
		},
	}
	if err := s.repo.Create(ctx, quiz); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create quiz")
	}
	return quiz, nil
}

// AddQuestion appends a question with its options to a quiz. At least one
// option must be marked correct.
func (s *QuizService) AddQuestion(ctx context.Context, p tenancy.Principal, quizID string, req CreateQuestionRequest) (*models.QuizQuestionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid question payload")
	}
	anyCorrect := false
	for _, option := range req.Options {
		if option.Correct {
			anyCorrect = true
			break
		}
	}
	if !anyCorrect {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one option must be correct")
	}
	if _, err := s.findQuiz(ctx, p, quizID); err != nil {
		return nil, err
	}
	question := &models.QuizQuestion{
		QuizID:   quizID,
		Prompt:   req.Prompt,
		Position: req.Position,
	}
	options := make([]models.QuizOption, 0, len(req.Options))
	for _, option := range req.Options {
		options = append(options, models.QuizOption{Label: option.Label, Correct: option.Correct})
	}
	if err := s.repo.CreateQuestion(ctx, question, options); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create question")
	}
	return &models.QuizQuestionDetail{QuizQuestion: *question, Options: options}, nil
}

// Update modifies an existing quiz within the principal's scope.
func (s *QuizService) Update(ctx context.Context, p tenancy.Principal, id string, req UpdateQuizRequest) (*models.Quiz, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz payload")
	}
	if req.OpensAt != nil && req.ClosesAt != nil && req.ClosesAt.Before(*req.OpensAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "closes_at precedes opens_at")
	}
	quiz, err := s.findQuiz(ctx, p, id)
	if err != nil {
		return nil, err
	}
	quiz.Title = req.Title
	quiz.PassScore = req.PassScore
	quiz.OpensAt = req.OpensAt
	quiz.ClosesAt = req.ClosesAt
	quiz.Active = req.Active
	quiz.UpdatedBy = &p.UserID
	if err := s.repo.Update(ctx, quiz); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update quiz")
	}
	return quiz, nil
}

// Delete tags a quiz as deleted within the principal's scope.
func (s *QuizService) Delete(ctx context.Context, p tenancy.Principal, id string) error {
	deleted, err := s.repo.SoftDelete(ctx, tenancy.ScopeRecord(p), id, p.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete quiz")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
	}
	return nil
}

func (s *QuizService) findQuiz(ctx context.Context, p tenancy.Principal, id string) (*models.Quiz, error) {
	quiz, err := s.repo.FindByID(ctx, tenancy.ScopeRecord(p), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	return quiz, nil
}
