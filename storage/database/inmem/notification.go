package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Digitalguyco/convade-backend/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	repo.db.notifications[n.ID] = n
	return n, nil
}

func (repo *notificationRepository) GetNotificationByID(ctx context.Context, id string) (notification.Notification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if n, ok := repo.db.notifications[id]; ok {
		return n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]notification.Notification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var notifs []notification.Notification
	for _, n := range repo.db.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.IsRead() {
			continue
		}
		notifs = append(notifs, n)
	}
	sort.Slice(notifs, func(i, j int) bool { return notifs[i].CreatedAt.After(notifs[j].CreatedAt) })
	if limit > 0 && len(notifs) > limit {
		notifs = notifs[:limit]
	}
	return notifs, nil
}

func (repo *notificationRepository) UpdateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.notifications[n.ID]; !ok {
		return notification.Notification{}, notification.ErrNotFound
	}
	repo.db.notifications[n.ID] = n
	return n, nil
}

func (repo *notificationRepository) MarkAllRead(ctx context.Context, userID string, now time.Time) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for id, notif := range repo.db.notifications {
		if notif.UserID == userID && !notif.IsRead() {
			notif.Status = notification.StatusRead
			notif.ReadAt = now
			notif.UpdatedAt = now
			repo.db.notifications[id] = notif
			n++
		}
	}
	return n, nil
}

func (repo *notificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var n int
	for _, notif := range repo.db.notifications {
		if notif.UserID == userID && !notif.IsRead() {
			n++
		}
	}
	return n, nil
}

func (repo *notificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for id, notif := range repo.db.notifications {
		if !notif.ExpiresAt.IsZero() && !notif.ExpiresAt.After(now) {
			delete(repo.db.notifications, id)
			n++
		}
	}
	return n, nil
}

func (repo *notificationRepository) QueryDigestUserIDs(ctx context.Context, frequency string) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	seen := make(map[string]bool)
	var ids []string
	for _, s := range repo.db.notifSettings {
		if s.DigestFrequency != frequency || !s.Enabled || !s.EmailEnabled {
			continue
		}
		for _, notif := range repo.db.notifications {
			if notif.UserID == s.UserID && !notif.IsRead() {
				if !seen[s.UserID] {
					seen[s.UserID] = true
					ids = append(ids, s.UserID)
				}
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (repo *notificationRepository) GetSettings(ctx context.Context, userID string) (notification.Settings, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.notifSettings[userID]; ok {
		return s, nil
	}
	return notification.Settings{}, notification.ErrSettingsNotFound
}

func (repo *notificationRepository) UpsertSettings(ctx context.Context, s notification.Settings) (notification.Settings, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.notifSettings[s.UserID] = s
	return s, nil
}
