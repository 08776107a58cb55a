package notification

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/Digitalguyco/convade-backend/core"
	"github.com/Digitalguyco/convade-backend/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("notification not found")
	ErrSettingsNotFound = errors.New("notification settings not found")
	ErrMuted            = errors.New("recipient has muted this category")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		GetNotificationByID(ctx context.Context, id string) (Notification, error)
		QueryNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error)
		UpdateNotification(ctx context.Context, n Notification) (Notification, error)
		// MarkAllRead flips every unread notification of the user to read and
		// returns how many were affected.
		MarkAllRead(ctx context.Context, userID string, now time.Time) (int, error)
		CountUnread(ctx context.Context, userID string) (int, error)
		// DeleteExpired removes notifications past their expiry.
		DeleteExpired(ctx context.Context, now time.Time) (int, error)
		// QueryDigestUserIDs returns the ids of users on the given digest
		// frequency who have unread notifications.
		QueryDigestUserIDs(ctx context.Context, frequency string) ([]string, error)

		GetSettings(ctx context.Context, userID string) (Settings, error)
		UpsertSettings(ctx context.Context, s Settings) (Settings, error)
	}

	Service interface {
		// Notify records an in-app notification for the user, honoring their
		// settings. Muted categories return ErrMuted as a validation error.
		Notify(ctx context.Context, nn NewNotification) (Notification, error)
		GetByID(ctx context.Context, id string) (Notification, error)
		ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error)
		MarkRead(ctx context.Context, id, userID string) (Notification, error)
		MarkAllRead(ctx context.Context, userID string) (int, error)
		UnreadCount(ctx context.Context, userID string) (int, error)
		DeleteExpired(ctx context.Context) (int, error)
		// SendDigests mails each user on the given frequency a summary of
		// their unread notifications.
		SendDigests(ctx context.Context, frequency string) (int, error)

		GetSettings(ctx context.Context, userID string) (Settings, error)
		UpdateSettings(ctx context.Context, userID string, us UpdateSettings) (Settings, error)
	}

	service struct {
		repo    Repository
		usrSvc  user.Service
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, mailSvc core.EmailService) Service {
	return &service{
		repo:    repo,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
	}
}

func (svc *service) Notify(ctx context.Context, nn NewNotification) (Notification, error) {
	settings, err := svc.getOrDefaultSettings(ctx, nn.UserID)
	if err != nil {
		return Notification{}, err
	}
	if !settings.Allows(nn.Category) {
		return Notification{}, core.NewValidationError(ErrMuted)
	}

	now := nowFunc().UTC()
	n := Notification{
		UserID:   nn.UserID,
		Category: nn.Category,
		Priority: nn.Priority,
		Status:   StatusSent,

		Title:   nn.Title,
		Message: nn.Message,

		CourseID:   nn.CourseID,
		TestID:     nn.TestID,
		ActionURL:  nn.ActionURL,
		ActionText: nn.ActionText,

		SentAt:    now,
		ExpiresAt: nn.ExpiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	n, err = svc.repo.CreateNotification(ctx, n)
	if err != nil {
		return Notification{}, err
	}

	if nn.SendEmail && settings.AllowsEmail(nn.Category) && settings.DigestFrequency == DigestImmediate {
		go svc.sendNotificationMail(n)
	}
	return n, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Notification, error) {
	return svc.repo.GetNotificationByID(ctx, id)
}

func (svc *service) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, userID, unreadOnly, limit)
}

func (svc *service) MarkRead(ctx context.Context, id, userID string) (Notification, error) {
	n, err := svc.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	// recipients can only touch their own notifications
	if n.UserID != userID {
		return Notification{}, ErrNotFound
	}
	if n.IsRead() {
		return n, nil
	}
	now := nowFunc().UTC()
	n.Status = StatusRead
	n.ReadAt = now
	n.UpdatedAt = now
	return svc.repo.UpdateNotification(ctx, n)
}

func (svc *service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return svc.repo.MarkAllRead(ctx, userID, nowFunc().UTC())
}

func (svc *service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return svc.repo.CountUnread(ctx, userID)
}

func (svc *service) DeleteExpired(ctx context.Context) (int, error) {
	return svc.repo.DeleteExpired(ctx, nowFunc().UTC())
}

func (svc *service) SendDigests(ctx context.Context, frequency string) (int, error) {
	userIDs, err := svc.repo.QueryDigestUserIDs(ctx, frequency)
	if err != nil {
		return 0, err
	}

	var sent int
	for _, uid := range userIDs {
		unread, err := svc.repo.QueryNotifications(ctx, uid, true /* unreadOnly */, 0)
		if err != nil || len(unread) == 0 {
			continue
		}
		usr, err := svc.usrSvc.GetByID(ctx, uid)
		if err != nil || !usr.EmailNotifications {
			continue
		}

		items := make([]digestItem, 0, len(unread))
		for _, n := range unread {
			items = append(items, digestItem{Title: n.Title, Message: n.Message})
		}
		svc.mailSvc.SendMessages(
			&core.EmailMessage{
				To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
				Subject:      fmt.Sprintf("You have %d unread notifications", len(unread)),
				TemplateName: "digest",
				TemplateData: struct {
					Name  string
					Items []digestItem
				}{usr.FirstName, items},
			},
		)
		sent++
	}
	return sent, nil
}

type digestItem struct {
	Title   string
	Message string
}

func (svc *service) GetSettings(ctx context.Context, userID string) (Settings, error) {
	return svc.getOrDefaultSettings(ctx, userID)
}

func (svc *service) UpdateSettings(ctx context.Context, userID string, us UpdateSettings) (Settings, error) {
	s, err := svc.getOrDefaultSettings(ctx, userID)
	if err != nil {
		return Settings{}, err
	}

	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setBool(&s.Enabled, us.Enabled)
	setBool(&s.EmailEnabled, us.EmailEnabled)
	setBool(&s.InAppEnabled, us.InAppEnabled)
	setBool(&s.TestReminders, us.TestReminders)
	setBool(&s.TestResults, us.TestResults)
	setBool(&s.CourseUpdates, us.CourseUpdates)
	setBool(&s.EnrollmentUpdates, us.EnrollmentUpdates)
	setBool(&s.BadgeNotifications, us.BadgeNotifications)
	setBool(&s.AssignmentUpdates, us.AssignmentUpdates)
	setBool(&s.SystemAlerts, us.SystemAlerts)
	if us.DigestFrequency != "" {
		s.DigestFrequency = us.DigestFrequency
	}
	s.UpdatedAt = nowFunc().UTC()

	return svc.repo.UpsertSettings(ctx, s)
}

func (svc *service) getOrDefaultSettings(ctx context.Context, userID string) (Settings, error) {
	s, err := svc.repo.GetSettings(ctx, userID)
	if err != nil {
		if errors.Cause(err) == ErrSettingsNotFound {
			return DefaultSettings(userID, nowFunc().UTC()), nil
		}
		return Settings{}, err
	}
	return s, nil
}

func (svc *service) sendNotificationMail(n Notification) {
	ctx := context.Background()
	usr, err := svc.usrSvc.GetByID(ctx, n.UserID)
	if err != nil || !usr.EmailNotifications {
		return
	}
	svc.mailSvc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
			Subject:      n.Title,
			TemplateName: "notification",
			TemplateData: struct {
				Name       string
				Title      string
				Message    string
				ActionURL  string
				ActionText string
			}{usr.FirstName, n.Title, n.Message, n.ActionURL, n.ActionText},
		},
	)
}
