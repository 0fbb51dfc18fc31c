package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/tenancy"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type mockQuizRepo struct {
	quizzes   map[string]*models.Quiz
	questions map[string][]models.QuizQuestionDetail
	created   *models.Quiz
}

func newMockQuizRepo() *mockQuizRepo {
	return &mockQuizRepo{
		quizzes:   map[string]*models.Quiz{},
		questions: map[string][]models.QuizQuestionDetail{},
	}
}

func (m *mockQuizRepo) QueryConfig() tenancy.Config {
	return tenancy.Config{
		PrimaryKey:    "q.id",
		TenantColumn:  "q.tenant_id",
		DeletedColumn: "q.deleted_at",
		DefaultSort:   "q.created_at",
		StringFilters: map[string]string{"topic_id": "q.topic_id"},
		BoolFilters:   map[string]string{"active": "q.active"},
	}
}

func (m *mockQuizRepo) List(_ context.Context, _ tenancy.Clause) ([]models.Quiz, int, error) {
	return nil, 0, nil
}

func (m *mockQuizRepo) FindByID(_ context.Context, filter tenancy.AccessFilter, id string) (*models.Quiz, error) {
	q, ok := m.quizzes[id]
	if !ok || q.Deleted() {
		return nil, sql.ErrNoRows
	}
	if filter.TenantID != nil && q.TenantID != *filter.TenantID {
		return nil, sql.ErrNoRows
	}
	clone := *q
	return &clone, nil
}

func (m *mockQuizRepo) ListQuestions(_ context.Context, quizID string) ([]models.QuizQuestionDetail, error) {
	return m.questions[quizID], nil
}

func (m *mockQuizRepo) Create(_ context.Context, quiz *models.Quiz) error {
	quiz.ID = "quiz-new"
	m.created = quiz
	clone := *quiz
	m.quizzes[quiz.ID] = &clone
	return nil
}

func (m *mockQuizRepo) CreateQuestion(_ context.Context, question *models.QuizQuestion, options []models.QuizOption) error {
	question.ID = "question-new"
	m.questions[question.QuizID] = append(m.questions[question.QuizID], models.QuizQuestionDetail{
		QuizQuestion: *question,
		Options:      options,
	})
	return nil
}

func (m *mockQuizRepo) Update(_ context.Context, quiz *models.Quiz) error {
	clone := *quiz
	m.quizzes[quiz.ID] = &clone
	return nil
}

func (m *mockQuizRepo) SoftDelete(_ context.Context, filter tenancy.AccessFilter, id, _ string) (bool, error) {
	if _, err := m.FindByID(context.Background(), filter, id); err != nil {
		return false, nil
	}
	delete(m.quizzes, id)
	return true, nil
}

type mockTopicFinder struct {
	topics map[string]*models.Topic
}

func (m *mockTopicFinder) FindTopicByID(_ context.Context, filter tenancy.AccessFilter, id string) (*models.Topic, error) {
	topic, ok := m.topics[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if filter.TenantID != nil && topic.TenantID != *filter.TenantID {
		return nil, sql.ErrNoRows
	}
	return topic, nil
}

func newQuizFixture() (*QuizService, *mockQuizRepo, *mockTopicFinder) {
	repo := newMockQuizRepo()
	topics := &mockTopicFinder{topics: map[string]*models.Topic{}}
	return NewQuizService(repo, topics, validator.New(), zap.NewNop()), repo, topics
}

func TestQuizServiceCreateInheritsTopicTenant(t *testing.T) {
	svc, _, topics := newQuizFixture()
	topics.topics["t1"] = &models.Topic{
		ID:           "t1",
		Title:        "Pointers",
		TenantScoped: models.TenantScoped{TenantID: 7},
	}

	quiz, err := svc.Create(context.Background(), tenantAdmin(7), "10.0.0.1", CreateQuizRequest{
		TopicID:   "t1",
		Title:     "Pointers check",
		PassScore: 70,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), quiz.TenantID)
	assert.True(t, quiz.Active)
}

func TestQuizServiceCreateHidesForeignTopic(t *testing.T) {
	svc, _, topics := newQuizFixture()
	topics.topics["t1"] = &models.Topic{
		ID:           "t1",
		TenantScoped: models.TenantScoped{TenantID: 2},
	}

	_, err := svc.Create(context.Background(), tenantAdmin(1), "", CreateQuizRequest{
		TopicID:   "t1",
		Title:     "Hidden",
		PassScore: 50,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestQuizServiceCreateRejectsInvertedWindow(t *testing.T) {
	svc, _, topics := newQuizFixture()
	topics.topics["t1"] = &models.Topic{ID: "t1", TenantScoped: models.TenantScoped{TenantID: 7}}

	opens := time.Now().UTC()
	closes := opens.Add(-time.Hour)
	_, err := svc.Create(context.Background(), tenantAdmin(7), "", CreateQuizRequest{
		TopicID:   "t1",
		Title:     "Window",
		PassScore: 50,
		OpensAt:   &opens,
		ClosesAt:  &closes,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestQuizServiceAddQuestion(t *testing.T) {
	svc, repo, _ := newQuizFixture()
	repo.quizzes["q1"] = &models.Quiz{
		ID:           "q1",
		Title:        "Pointers check",
		TenantScoped: models.TenantScoped{TenantID: 7},
	}

	question, err := svc.AddQuestion(context.Background(), tenantAdmin(7), "q1", CreateQuestionRequest{
		Prompt:   "What does a nil map read return?",
		Position: 1,
		Options: []QuizOptionRequest{
			{Label: "the zero value", Correct: true},
			{Label: "a panic"},
		},
	})
	require.NoError(t, err)
	assert.Len(t, question.Options, 2)
	assert.Len(t, repo.questions["q1"], 1)
}

func TestQuizServiceAddQuestionNeedsCorrectOption(t *testing.T) {
	svc, repo, _ := newQuizFixture()
	repo.quizzes["q1"] = &models.Quiz{ID: "q1", TenantScoped: models.TenantScoped{TenantID: 7}}

	_, err := svc.AddQuestion(context.Background(), tenantAdmin(7), "q1", CreateQuestionRequest{
		Prompt: "Unanswerable",
		Options: []QuizOptionRequest{
			{Label: "a"},
			{Label: "b"},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.questions["q1"])
}

func TestQuizServiceAddQuestionNeedsTwoOptions(t *testing.T) {
	svc, repo, _ := newQuizFixture()
	repo.quizzes["q1"] = &models.Quiz{ID: "q1", TenantScoped: models.TenantScoped{TenantID: 7}}

	_, err := svc.AddQuestion(context.Background(), tenantAdmin(7), "q1", CreateQuestionRequest{
		Prompt: "Single choice",
		Options: []QuizOptionRequest{
			{Label: "only", Correct: true},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
