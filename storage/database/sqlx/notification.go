package sqlxrepos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Digitalguyco/convade-backend/core/notification"
)

type notificationRow struct {
	ID     string `db:"id"`
	UserID string `db:"user_id"`

	Category string `db:"category"`
	Priority string `db:"priority"`
	Status   string `db:"status"`

	Title   string `db:"title"`
	Message string `db:"message"`

	CourseID null.String `db:"course_id"`
	TestID   null.String `db:"test_id"`

	ActionURL  string `db:"action_url"`
	ActionText string `db:"action_text"`

	SentAt    null.Time `db:"sent_at"`
	ReadAt    null.Time `db:"read_at"`
	ExpiresAt null.Time `db:"expires_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r notificationRow) toDomain() notification.Notification {
	return notification.Notification{
		ID:     r.ID,
		UserID: r.UserID,

		Category: r.Category,
		Priority: r.Priority,
		Status:   r.Status,

		Title:   r.Title,
		Message: r.Message,

		CourseID: r.CourseID.String,
		TestID:   r.TestID.String,

		ActionURL:  r.ActionURL,
		ActionText: r.ActionText,

		SentAt:    fromNullTime(r.SentAt),
		ReadAt:    fromNullTime(r.ReadAt),
		ExpiresAt: fromNullTime(r.ExpiresAt),

		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func newNotificationRow(n notification.Notification) notificationRow {
	return notificationRow{
		ID:     n.ID,
		UserID: n.UserID,

		Category: n.Category,
		Priority: n.Priority,
		Status:   n.Status,

		Title:   n.Title,
		Message: n.Message,

		CourseID: nullString(n.CourseID),
		TestID:   nullString(n.TestID),

		ActionURL:  n.ActionURL,
		ActionText: n.ActionText,

		SentAt:    nullTime(n.SentAt),
		ReadAt:    nullTime(n.ReadAt),
		ExpiresAt: nullTime(n.ExpiresAt),

		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

const notificationColumns = `id, user_id, category, priority, status, title, message,
	course_id, test_id, action_url, action_text, sent_at, read_at, expires_at,
	created_at, updated_at`

type settingsRow struct {
	UserID string `db:"user_id"`

	Enabled            bool `db:"notifications_enabled"`
	EmailEnabled       bool `db:"email_notifications"`
	InAppEnabled       bool `db:"in_app_notifications"`
	TestReminders      bool `db:"test_reminders"`
	TestResults        bool `db:"test_results"`
	CourseUpdates      bool `db:"course_updates"`
	EnrollmentUpdates  bool `db:"enrollment_notifications"`
	BadgeNotifications bool `db:"badge_notifications"`
	AssignmentUpdates  bool `db:"assignment_reminders"`
	SystemAlerts       bool `db:"system_alerts"`

	DigestFrequency string `db:"digest_frequency"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r settingsRow) toDomain() notification.Settings {
	return notification.Settings{
		UserID: r.UserID,

		Enabled:            r.Enabled,
		EmailEnabled:       r.EmailEnabled,
		InAppEnabled:       r.InAppEnabled,
		TestReminders:      r.TestReminders,
		TestResults:        r.TestResults,
		CourseUpdates:      r.CourseUpdates,
		EnrollmentUpdates:  r.EnrollmentUpdates,
		BadgeNotifications: r.BadgeNotifications,
		AssignmentUpdates:  r.AssignmentUpdates,
		SystemAlerts:       r.SystemAlerts,

		DigestFrequency: r.DigestFrequency,

		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func newSettingsRow(s notification.Settings) settingsRow {
	return settingsRow{
		UserID: s.UserID,

		Enabled:            s.Enabled,
		EmailEnabled:       s.EmailEnabled,
		InAppEnabled:       s.InAppEnabled,
		TestReminders:      s.TestReminders,
		TestResults:        s.TestResults,
		CourseUpdates:      s.CourseUpdates,
		EnrollmentUpdates:  s.EnrollmentUpdates,
		BadgeNotifications: s.BadgeNotifications,
		AssignmentUpdates:  s.AssignmentUpdates,
		SystemAlerts:       s.SystemAlerts,

		DigestFrequency: s.DigestFrequency,

		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

const settingsColumns = `user_id, notifications_enabled, email_notifications,
	in_app_notifications, test_reminders, test_results, course_updates,
	enrollment_notifications, badge_notifications, assignment_reminders, system_alerts,
	digest_frequency, created_at, updated_at`

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	q := `INSERT INTO notifications (` + notificationColumns + `) VALUES (
		:id, :user_id, :category, :priority, :status, :title, :message, :course_id, :test_id,
		:action_url, :action_text, :sent_at, :read_at, :expires_at, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, newNotificationRow(n)); err != nil {
		return notification.Notification{}, errors.Wrap(err, "creating notification")
	}
	return n, nil
}

func (repo *notificationRepository) GetNotificationByID(ctx context.Context, id string) (notification.Notification, error) {
	var row notificationRow
	q := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "getting notification")
	}
	return row.toDomain(), nil
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]notification.Notification, error) {
	q := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	args := []interface{}{userID}
	if unreadOnly {
		args = append(args, notification.StatusRead)
		q += " AND status != $2"
	}
	q += " ORDER BY created_at DESC"
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		notifs = append(notifs, row.toDomain())
	}
	return notifs, nil
}

func (repo *notificationRepository) UpdateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	q := `UPDATE notifications SET
		status = :status, sent_at = :sent_at, read_at = :read_at, updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newNotificationRow(n))
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "updating notification")
	}
	if n2, err := res.RowsAffected(); err == nil && n2 == 0 {
		return notification.Notification{}, notification.ErrNotFound
	}
	return n, nil
}

func (repo *notificationRepository) MarkAllRead(ctx context.Context, userID string, now time.Time) (int, error) {
	q := `UPDATE notifications SET status = $1, read_at = $2, updated_at = $2
		WHERE user_id = $3 AND status != $1`
	res, err := repo.db.ExecContext(ctx, q, notification.StatusRead, now, userID)
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications read")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo *notificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	q := `SELECT COUNT(id) FROM notifications WHERE user_id = $1 AND status != $2`
	if err := repo.db.GetContext(ctx, &count, q, userID, notification.StatusRead); err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return count, nil
}

func (repo *notificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	q := `DELETE FROM notifications WHERE expires_at IS NOT NULL AND expires_at <= $1`
	res, err := repo.db.ExecContext(ctx, q, now)
	if err != nil {
		return 0, errors.Wrap(err, "deleting expired notifications")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo *notificationRepository) QueryDigestUserIDs(ctx context.Context, frequency string) ([]string, error) {
	q := `SELECT DISTINCT s.user_id FROM notification_settings s
		JOIN notifications n ON n.user_id = s.user_id AND n.status != $1
		WHERE s.digest_frequency = $2 AND s.notifications_enabled AND s.email_notifications`
	var ids []string
	if err := repo.db.SelectContext(ctx, &ids, q, notification.StatusRead, frequency); err != nil {
		return nil, errors.Wrap(err, "querying digest users")
	}
	return ids, nil
}

func (repo *notificationRepository) GetSettings(ctx context.Context, userID string) (notification.Settings, error) {
	var row settingsRow
	q := `SELECT ` + settingsColumns + ` FROM notification_settings WHERE user_id = $1`
	if err := repo.db.GetContext(ctx, &row, q, userID); err != nil {
		if isNoRows(err) {
			return notification.Settings{}, notification.ErrSettingsNotFound
		}
		return notification.Settings{}, errors.Wrap(err, "getting notification settings")
	}
	return row.toDomain(), nil
}

func (repo *notificationRepository) UpsertSettings(ctx context.Context, s notification.Settings) (notification.Settings, error) {
	q := `INSERT INTO notification_settings (` + settingsColumns + `) VALUES (
		:user_id, :notifications_enabled, :email_notifications, :in_app_notifications,
		:test_reminders, :test_results, :course_updates, :enrollment_notifications,
		:badge_notifications, :assignment_reminders, :system_alerts, :digest_frequency,
		:created_at, :updated_at)
	ON CONFLICT (user_id) DO UPDATE SET
		notifications_enabled = EXCLUDED.notifications_enabled,
		email_notifications = EXCLUDED.email_notifications,
		in_app_notifications = EXCLUDED.in_app_notifications,
		test_reminders = EXCLUDED.test_reminders,
		test_results = EXCLUDED.test_results,
		course_updates = EXCLUDED.course_updates,
		enrollment_notifications = EXCLUDED.enrollment_notifications,
		badge_notifications = EXCLUDED.badge_notifications,
		assignment_reminders = EXCLUDED.assignment_reminders,
		system_alerts = EXCLUDED.system_alerts,
		digest_frequency = EXCLUDED.digest_frequency,
		updated_at = EXCLUDED.updated_at`
	if _, err := repo.db.NamedExecContext(ctx, q, newSettingsRow(s)); err != nil {
		return notification.Settings{}, errors.Wrap(err, "upserting notification settings")
	}
	return s, nil
}
