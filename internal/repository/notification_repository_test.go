package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/tenancy"
)

func TestNotificationRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	notification := &models.Notification{
		TenantID: 7,
		UserID:   "user-1",
		Kind:     models.NotificationKindEnrollment,
		Title:    "Enrollment confirmed",
		Body:     "You are enrolled in Go Fundamentals.",
	}
	require.NoError(t, repo.Create(context.Background(), notification))
	assert.NotEmpty(t, notification.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryMarkRead(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET read_at = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	marked, err := repo.MarkRead(context.Background(), tenancy.AccessFilter{TenantID: int64Ptr(7)}, "ntf-1", "user-1")
	require.NoError(t, err)
	assert.True(t, marked)

	// Already read or not the caller's row: zero rows affected.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET read_at = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	marked, err = repo.MarkRead(context.Background(), tenancy.AccessFilter{TenantID: int64Ptr(7)}, "ntf-1", "someone-else")
	require.NoError(t, err)
	assert.False(t, marked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryCountUnread(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications n WHERE n.user_id = $1 AND n.read_at IS NULL AND n.tenant_id = $2")).
		WithArgs("user-1", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountUnread(context.Background(), tenancy.AccessFilter{TenantID: int64Ptr(7)}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
