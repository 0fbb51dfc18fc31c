package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/tenancy"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type mockCourseRepo struct {
	courses map[string]*models.Course
	modules map[string]*models.CourseModule
	topics  map[string]*models.Topic
	videos  map[string]*models.Video
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{
		courses: map[string]*models.Course{},
		modules: map[string]*models.CourseModule{},
		topics:  map[string]*models.Topic{},
		videos:  map[string]*models.Video{},
	}
}

func (m *mockCourseRepo) QueryConfig() tenancy.Config {
	return tenancy.Config{
		PrimaryKey:    "c.id",
		TenantColumn:  "c.tenant_id",
		DeletedColumn: "c.deleted_at",
		DefaultSort:   "c.created_at",
		SearchColumns: []string{"c.title", "c.code"},
		BoolFilters:   map[string]string{"published": "c.published"},
		StringFilters: map[string]string{"program_id": "c.program_id"},
	}
}

func (m *mockCourseRepo) List(_ context.Context, _ tenancy.Clause) ([]models.Course, int, error) {
	return nil, 0, nil
}

func (m *mockCourseRepo) visible(filter tenancy.AccessFilter, scoped models.TenantScoped) bool {
	if scoped.Deleted() && !filter.IncludeDeleted {
		return false
	}
	if filter.TenantID != nil && scoped.TenantID != *filter.TenantID {
		return false
	}
	return true
}

func (m *mockCourseRepo) FindByID(_ context.Context, filter tenancy.AccessFilter, id string) (*models.Course, error) {
	c, ok := m.courses[id]
	if !ok || !m.visible(filter, c.TenantScoped) {
		return nil, sql.ErrNoRows
	}
	clone := *c
	return &clone, nil
}

func (m *mockCourseRepo) ExistsByCode(_ context.Context, filter tenancy.AccessFilter, code, excludeID string) (bool, error) {
	for _, c := range m.courses {
		if c.ID == excludeID || !m.visible(filter, c.TenantScoped) {
			continue
		}
		if c.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockCourseRepo) Create(_ context.Context, course *models.Course) error {
	course.ID = "course-new"
	clone := *course
	m.courses[course.ID] = &clone
	return nil
}

func (m *mockCourseRepo) Update(_ context.Context, course *models.Course) error {
	clone := *course
	m.courses[course.ID] = &clone
	return nil
}

func (m *mockCourseRepo) SoftDelete(_ context.Context, filter tenancy.AccessFilter, id, _ string) (bool, error) {
	c, ok := m.courses[id]
	if !ok || !m.visible(filter, c.TenantScoped) {
		return false, nil
	}
	delete(m.courses, id)
	return true, nil
}

func (m *mockCourseRepo) ListContent(_ context.Context, _ tenancy.AccessFilter, _ string) ([]models.CourseModuleDetail, error) {
	return nil, nil
}

func (m *mockCourseRepo) CreateModule(_ context.Context, module *models.CourseModule) error {
	module.ID = "module-new"
	clone := *module
	m.modules[module.ID] = &clone
	return nil
}

func (m *mockCourseRepo) CreateTopic(_ context.Context, topic *models.Topic) error {
	topic.ID = "topic-new"
	clone := *topic
	m.topics[topic.ID] = &clone
	return nil
}

func (m *mockCourseRepo) CreateVideo(_ context.Context, video *models.Video) error {
	video.ID = "video-new"
	clone := *video
	m.videos[video.ID] = &clone
	return nil
}

func (m *mockCourseRepo) FindModuleByID(_ context.Context, filter tenancy.AccessFilter, id string) (*models.CourseModule, error) {
	mod, ok := m.modules[id]
	if !ok || !m.visible(filter, mod.TenantScoped) {
		return nil, sql.ErrNoRows
	}
	clone := *mod
	return &clone, nil
}

func (m *mockCourseRepo) FindTopicByID(_ context.Context, filter tenancy.AccessFilter, id string) (*models.Topic, error) {
	topic, ok := m.topics[id]
	if !ok || !m.visible(filter, topic.TenantScoped) {
		return nil, sql.ErrNoRows
	}
	clone := *topic
	return &clone, nil
}

func (m *mockCourseRepo) FindVideoByID(_ context.Context, filter tenancy.AccessFilter, id string) (*models.Video, error) {
	video, ok := m.videos[id]
	if !ok || !m.visible(filter, video.TenantScoped) {
		return nil, sql.ErrNoRows
	}
	clone := *video
	return &clone, nil
}

func seedCourse(repo *mockCourseRepo, id, code string, tenant int64) {
	repo.courses[id] = &models.Course{
		ID:           id,
		ProgramID:    "program-1",
		Code:         code,
		Title:        "Course " + id,
		TenantScoped: models.TenantScoped{TenantID: tenant},
	}
}

func courseUpdateReq(code string) UpdateCourseRequest {
	return UpdateCourseRequest{Code: code, Title: "Course"}
}

func TestCourseServiceUpdateUniquenessStaysTenantScoped(t *testing.T) {
	repo := newMockCourseRepo()
	seedCourse(repo, "c1", "CRS-1", 1)
	seedCourse(repo, "c2", "CRS-1", 2)
	svc := NewCourseService(repo, nil, validator.New(), zap.NewNop())

	// The same code in another tenant must not trip a super admin's update.
	updated, err := svc.Update(context.Background(), superAdmin(), "c1", courseUpdateReq("CRS-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.TenantID)

	// A collision inside the record's own tenant still conflicts.
	seedCourse(repo, "c3", "CRS-3", 1)
	_, err = svc.Update(context.Background(), superAdmin(), "c1", courseUpdateReq("CRS-3"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCourseServicePublishStampsOnce(t *testing.T) {
	repo := newMockCourseRepo()
	seedCourse(repo, "c1", "CRS-1", 7)
	svc := NewCourseService(repo, nil, validator.New(), zap.NewNop())

	req := courseUpdateReq("CRS-1")
	req.Published = true
	published, err := svc.Update(context.Background(), tenantAdmin(7), "c1", req)
	require.NoError(t, err)
	require.NotNil(t, published.PublishedAt)
	firstStamp := *published.PublishedAt

	// Unpublish and republish: the original timestamp survives.
	req.Published = false
	_, err = svc.Update(context.Background(), tenantAdmin(7), "c1", req)
	require.NoError(t, err)

	req.Published = true
	republished, err := svc.Update(context.Background(), tenantAdmin(7), "c1", req)
	require.NoError(t, err)
	require.NotNil(t, republished.PublishedAt)
	assert.Equal(t, firstStamp, *republished.PublishedAt)
}

func TestCourseServiceContentInheritsCourseTenant(t *testing.T) {
	repo := newMockCourseRepo()
	seedCourse(repo, "c1", "CRS-1", 7)
	svc := NewCourseService(repo, nil, validator.New(), zap.NewNop())

	module, err := svc.AddModule(context.Background(), tenantAdmin(7), "", "c1", CreateModuleRequest{Title: "Basics"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), module.TenantID)

	topic, err := svc.AddTopic(context.Background(), tenantAdmin(7), "", module.ID, CreateTopicRequest{Title: "Intro"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), topic.TenantID)

	// A foreign module is invisible, so nothing can be attached to it.
	_, err = svc.AddTopic(context.Background(), tenantAdmin(8), "", module.ID, CreateTopicRequest{Title: "Intro"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
