package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/tenancy"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/jobs"
)

type mockNotificationRepo struct {
	mu         sync.Mutex
	lastClause *tenancy.Clause
	created    []*models.Notification
	readable   map[string]string
	unread     int
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{readable: map[string]string{}}
}

func (m *mockNotificationRepo) QueryConfig() tenancy.Config {
	return tenancy.Config{
		PrimaryKey:    "n.id",
		TenantColumn:  "n.tenant_id",
		DefaultSort:   "n.created_at",
		StringFilters: map[string]string{"user_id": "n.user_id"},
		EnumFilters:   map[string]string{"kind": "n.kind"},
	}
}

func (m *mockNotificationRepo) List(_ context.Context, clause tenancy.Clause) ([]models.Notification, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastClause = &clause
	return nil, 0, nil
}

func (m *mockNotificationRepo) Create(_ context.Context, notification *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	notification.ID = "ntf-new"
	m.created = append(m.created, notification)
	return nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, _ tenancy.AccessFilter, id, userID string) (bool, error) {
	owner, ok := m.readable[id]
	return ok && owner == userID, nil
}

func (m *mockNotificationRepo) CountUnread(_ context.Context, _ tenancy.AccessFilter, _ string) (int, error) {
	return m.unread, nil
}

func (m *mockNotificationRepo) createdCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

func TestNotificationServiceListForcesOwnInbox(t *testing.T) {
	repo := newMockNotificationRepo()
	svc := NewNotificationService(repo, jobs.QueueConfig{}, zap.NewNop())

	// Even an explicit filter for someone else's inbox is overridden.
	f := tenancy.Filters{Strings: map[string]string{"user_id": "someone-else"}}
	_, _, err := svc.List(context.Background(), tenantAdmin(7), tenancy.NewListQuery(), f)
	require.NoError(t, err)
	require.NotNil(t, repo.lastClause)
	assert.Contains(t, repo.lastClause.Where, "n.user_id = $2")
	assert.Equal(t, int64(7), repo.lastClause.Args[0])
	assert.Equal(t, "admin-1", repo.lastClause.Args[1])
}

func TestNotificationServiceBroadcastFanOut(t *testing.T) {
	repo := newMockNotificationRepo()
	svc := NewNotificationService(repo, jobs.QueueConfig{Workers: 1, BufferSize: 4}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.Broadcast(models.NotificationBroadcast{
		TenantID: 7,
		UserIDs:  []string{"user-1", "user-2"},
		Kind:     models.NotificationKindEnrollment,
		Title:    "Enrollment confirmed",
		Body:     "You are enrolled in Go Fundamentals.",
	})

	require.Eventually(t, func() bool {
		return repo.createdCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, n := range repo.created {
		assert.Equal(t, int64(7), n.TenantID)
		assert.Equal(t, models.NotificationKindEnrollment, n.Kind)
	}
}

func TestNotificationServiceBroadcastEmptyRecipients(t *testing.T) {
	repo := newMockNotificationRepo()
	svc := NewNotificationService(repo, jobs.QueueConfig{}, zap.NewNop())

	// Queue is never started; an empty broadcast must not try to enqueue.
	svc.Broadcast(models.NotificationBroadcast{TenantID: 7})
	assert.Zero(t, repo.createdCount())
}

func TestNotificationServiceMarkRead(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.readable["n1"] = "admin-1"
	svc := NewNotificationService(repo, jobs.QueueConfig{}, zap.NewNop())

	require.NoError(t, svc.MarkRead(context.Background(), tenantAdmin(7), "n1"))

	err := svc.MarkRead(context.Background(), tenantAdmin(7), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestNotificationServiceUnreadCount(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.unread = 3
	svc := NewNotificationService(repo, jobs.QueueConfig{}, zap.NewNop())

	count, err := svc.UnreadCount(context.Background(), tenantAdmin(7))
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
