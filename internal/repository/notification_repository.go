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

const notificationColumns = `n.id, n.tenant_id, n.user_id, n.kind, n.title, n.body, n.read_at, n.created_at`

// NotificationRepository manages persistence for per-user notifications.
// Notifications are recipient-scoped: every query pins both tenant and user,
// so the access filter's tenant predicate composes with a user predicate.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// QueryConfig declares the list-query surface for notifications.
func (r *NotificationRepository) QueryConfig() tenancy.Config {
	return tenancy.Config{
		PrimaryKey:   "n.id",
		TenantColumn: "n.tenant_id",
		DefaultSort:  "n.created_at",
		SortColumns: map[string]string{
			"created_at": "n.created_at",
			"kind":       "n.kind",
		},
		SearchColumns: []string{"n.title", "n.body"},
		DateColumn:    "n.created_at",
		StringFilters: map[string]string{"user_id": "n.user_id"},
		EnumFilters:   map[string]string{"kind": "n.kind"},
	}
}

// List returns notifications matching the composed clause plus the total
// count.
func (r *NotificationRepository) List(ctx context.Context, clause tenancy.Clause) ([]models.Notification, int, error) {
	query := fmt.Sprintf("SELECT %s FROM notifications n WHERE %s ORDER BY %s LIMIT %d OFFSET %d",
		notificationColumns, clause.Where, clause.OrderBy, clause.Limit, clause.Offset)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, clause.Args...); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM notifications n WHERE %s", clause.Where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, clause.Args...); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return notifications, total, nil
}

// Create inserts a single notification row.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, tenant_id, user_id, kind, title, body, created_at)
        VALUES (:id, :tenant_id, :user_id, :kind, :title, :body, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// MarkRead stamps a notification as read for the given recipient. Returns
// false when no row matched.
func (r *NotificationRepository) MarkRead(ctx context.Context, filter tenancy.AccessFilter, id, userID string) (bool, error) {
	conds := []string{"id = $2", "user_id = $3", "read_at IS NULL"}
	args := []interface{}{time.Now().UTC(), id, userID}
	extra, extraArgs := filter.Predicates("tenant_id", "", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("UPDATE notifications SET read_at = $1 WHERE %s", strings.Join(conds, " AND "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return affected > 0, nil
}

// CountUnread returns the number of unread notifications for a recipient.
func (r *NotificationRepository) CountUnread(ctx context.Context, filter tenancy.AccessFilter, userID string) (int, error) {
	conds := []string{"n.user_id = $1", "n.read_at IS NULL"}
	args := []interface{}{userID}
	extra, extraArgs := filter.Predicates("n.tenant_id", "", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("SELECT COUNT(*) FROM notifications n WHERE %s", strings.Join(conds, " AND "))
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}
