package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/tenancy"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func clientRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "contact_email", "phone", "city", "status", "active",
		"tenant_id", "created_by", "updated_by", "created_ip", "created_at", "updated_at", "deleted_at", "deleted_by",
	})
}

func int64Ptr(v int64) *int64 { return &v }

func TestClientRepositoryListScoped(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewClientRepository(db)
	clause, err := tenancy.Build(
		tenancy.AccessFilter{TenantID: int64Ptr(7)},
		tenancy.ListQuery{Page: 1, Limit: 20, Search: "acme"},
		repo.QueryConfig(),
		tenancy.Filters{Bools: map[string]bool{"active": true}},
	)
	require.NoError(t, err)
	assert.Equal(t, `c.tenant_id = $1 AND c.deleted_at IS NULL AND (LOWER(c.name) LIKE $2 ESCAPE '\' OR LOWER(c.contact_email) LIKE $2 ESCAPE '\') AND c.active = $3`, clause.Where)
	assert.Equal(t, []interface{}{int64(7), "%acme%", true}, clause.Args)
	assert.Equal(t, "c.created_at DESC, c.id ASC", clause.OrderBy)

	now := time.Now().UTC()
	rows := clientRows().AddRow(
		"client-1", "Acme", "ops@acme.test", "", "Bandung", "APPROVED", true,
		int64(7), nil, nil, "", now, now, nil, nil,
	)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT c.id, c.name, c.contact_email")).
		WithArgs(int64(7), "%acme%", true).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM clients c WHERE")).
		WithArgs(int64(7), "%acme%", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	clients, total, err := repo.List(context.Background(), clause)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "client-1", clients[0].ID)
	assert.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientRepositoryFindByIDScoped(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewClientRepository(db)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT c.id, c.name, c.contact_email")).
		WithArgs("client-1", int64(7)).
		WillReturnRows(clientRows().AddRow(
			"client-1", "Acme", "ops@acme.test", "", "Bandung", "PENDING", true,
			int64(7), nil, nil, "", now, now, nil, nil,
		))

	found, err := repo.FindByID(context.Background(), tenancy.AccessFilter{TenantID: int64Ptr(7)}, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", found.Name)

	// Same row queried under another tenant: the scope predicate filters it
	// out and the miss reads like a missing row.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT c.id, c.name, c.contact_email")).
		WithArgs("client-1", int64(8)).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.FindByID(context.Background(), tenancy.AccessFilter{TenantID: int64Ptr(8)}, "client-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewClientRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO clients")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	client := &models.Client{
		Name:         "Acme",
		ContactEmail: "ops@acme.test",
		Status:       models.ClientStatusPending,
		Active:       true,
		TenantScoped: models.TenantScoped{TenantID: 7},
	}
	require.NoError(t, repo.Create(context.Background(), client))
	assert.NotEmpty(t, client.ID)
	assert.False(t, client.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientRepositorySoftDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewClientRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE clients SET deleted_at = $1, deleted_by = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.SoftDelete(context.Background(), tenancy.AccessFilter{TenantID: int64Ptr(7)}, "client-1", "admin-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE clients SET deleted_at = $1, deleted_by = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err = repo.SoftDelete(context.Background(), tenancy.AccessFilter{TenantID: int64Ptr(8)}, "client-1", "admin-1")
	require.NoError(t, err)
	assert.False(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientRepositoryExistsByName(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewClientRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM clients c WHERE")).
		WithArgs("Acme", "client-1", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByName(context.Background(), tenancy.AccessFilter{TenantID: int64Ptr(7)}, "Acme", "client-1")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
