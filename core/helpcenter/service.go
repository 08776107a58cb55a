package helpcenter

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/Digitalguyco/convade-backend/core"
	"github.com/Digitalguyco/convade-backend/core/notification"
	"github.com/Digitalguyco/convade-backend/core/user"
)

var (
	// errors
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrFAQNotFound     = errors.New("faq not found")
	ErrTicketClosed    = errors.New("ticket is closed")
	ErrNumberExists    = errors.New("ticket number collision")

	nowFunc = time.Now // mockable

	maxNumberAttempts = 10
)

type (
	Repository interface {
		CreateTicket(ctx context.Context, t SupportTicket) (SupportTicket, error)
		GetTicketByID(ctx context.Context, id string) (SupportTicket, error)
		GetTicketByNumber(ctx context.Context, number string) (SupportTicket, error)
		QueryTickets(ctx context.Context, filter *QueryFilter) ([]SupportTicket, error)
		UpdateTicket(ctx context.Context, t SupportTicket) (SupportTicket, error)

		CreateMessage(ctx context.Context, m TicketMessage) (TicketMessage, error)
		// QueryMessages returns a ticket's thread, oldest first. Internal
		// notes are filtered out unless includeInternal is set.
		QueryMessages(ctx context.Context, ticketID string, includeInternal bool) ([]TicketMessage, error)

		CreateFAQ(ctx context.Context, f FAQ) (FAQ, error)
		GetFAQByID(ctx context.Context, id string) (FAQ, error)
		QueryFAQs(ctx context.Context, category string, publishedOnly bool) ([]FAQ, error)
		UpdateFAQ(ctx context.Context, f FAQ) (FAQ, error)
		DeleteFAQsByID(ctx context.Context, ids ...string) (int, error)
		IncrementFAQViews(ctx context.Context, id string) error
	}

	Service interface {
		// CreateTicket opens a support ticket, assigns it a public number and
		// alerts the support inbox.
		CreateTicket(ctx context.Context, nt NewTicket, requester user.User) (SupportTicket, error)
		GetTicketByID(ctx context.Context, id string) (SupportTicket, error)
		GetTicketByNumber(ctx context.Context, number string) (SupportTicket, error)
		ListTickets(ctx context.Context, filter *QueryFilter) ([]SupportTicket, error)
		AssignTicket(ctx context.Context, id string, assignee user.User) (SupportTicket, error)
		// AddMessage appends to the thread. A requester reply reopens a
		// waiting ticket; a staff reply puts it back on the requester.
		AddMessage(ctx context.Context, nm NewMessage, author user.User) (TicketMessage, error)
		ListMessages(ctx context.Context, ticketID string, includeInternal bool) ([]TicketMessage, error)
		// UpdateStatus moves the ticket through its lifecycle and stamps
		// resolution and closure times.
		UpdateStatus(ctx context.Context, id, status, resolution string, actor user.User) (SupportTicket, error)

		CreateFAQ(ctx context.Context, nf NewFAQ) (FAQ, error)
		ListFAQs(ctx context.Context, category string, publishedOnly bool) ([]FAQ, error)
		PublishFAQ(ctx context.Context, id string) (FAQ, error)
		UpdateFAQ(ctx context.Context, id string, nf NewFAQ) (FAQ, error)
		DeleteFAQs(ctx context.Context, ids ...string) error
		RecordFAQView(ctx context.Context, id string) error
	}

	service struct {
		repo     Repository
		notifSvc notification.Service
		mailSvc  core.EmailService
		support  mail.Address
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, notifSvc notification.Service, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		repo:     repo,
		notifSvc: notifSvc,
		mailSvc:  mailSvc,
		support:  conf.SupportEmail,
	}
}

func (svc *service) CreateTicket(ctx context.Context, nt NewTicket, requester user.User) (SupportTicket, error) {
	now := nowFunc().UTC()
	t := SupportTicket{
		RequesterID: requester.ID,
		Subject:     nt.Subject,
		Description: nt.Description,
		Category:    nt.Category,
		Priority:    nt.Priority,
		Status:      TicketOpen,

		UserAgent: nt.UserAgent,
		IPAddress: nt.IPAddress,

		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// ticket numbers are short, retry on the rare collision
	var err error
	for i := 0; i < maxNumberAttempts; i++ {
		t.Number = makeTicketNumber()
		var created SupportTicket
		if created, err = svc.repo.CreateTicket(ctx, t); err == nil {
			t = created
			break
		}
		if errors.Cause(err) != ErrNumberExists {
			return SupportTicket{}, err
		}
	}
	if err != nil {
		return SupportTicket{}, errors.Wrap(err, "allocating ticket number")
	}

	go svc.alertSupport(t, requester)
	return t, nil
}

func (svc *service) GetTicketByID(ctx context.Context, id string) (SupportTicket, error) {
	return svc.repo.GetTicketByID(ctx, id)
}

func (svc *service) GetTicketByNumber(ctx context.Context, number string) (SupportTicket, error) {
	return svc.repo.GetTicketByNumber(ctx, number)
}

func (svc *service) ListTickets(ctx context.Context, filter *QueryFilter) ([]SupportTicket, error) {
	return svc.repo.QueryTickets(ctx, filter)
}

func (svc *service) AssignTicket(ctx context.Context, id string, assignee user.User) (SupportTicket, error) {
	t, err := svc.repo.GetTicketByID(ctx, id)
	if err != nil {
		return SupportTicket{}, err
	}
	if t.Status == TicketClosed {
		return SupportTicket{}, core.NewValidationError(ErrTicketClosed)
	}

	now := nowFunc().UTC()
	t.AssigneeID = assignee.ID
	if t.Status == TicketOpen {
		t.Status = TicketInProgress
	}
	t.LastActivityAt = now
	t.UpdatedAt = now
	return svc.repo.UpdateTicket(ctx, t)
}

func (svc *service) AddMessage(ctx context.Context, nm NewMessage, author user.User) (TicketMessage, error) {
	t, err := svc.repo.GetTicketByID(ctx, nm.TicketID)
	if err != nil {
		return TicketMessage{}, err
	}
	if t.Status == TicketClosed {
		return TicketMessage{}, core.NewValidationError(ErrTicketClosed)
	}

	fromRequester := author.ID == t.RequesterID
	now := nowFunc().UTC()

	m := TicketMessage{
		TicketID:   t.ID,
		AuthorID:   author.ID,
		Type:       MessageStaff,
		Content:    nm.Content,
		IsInternal: nm.IsInternal && !fromRequester,
		CreatedAt:  now,
	}
	if fromRequester {
		m.Type = MessageUser
	}
	m, err = svc.repo.CreateMessage(ctx, m)
	if err != nil {
		return TicketMessage{}, err
	}

	switch {
	case fromRequester && t.Status == TicketWaitingOnUser:
		t.Status = TicketInProgress
	case !fromRequester && !m.IsInternal:
		if t.FirstResponseAt.IsZero() {
			t.FirstResponseAt = now
		}
		if t.Status == TicketOpen || t.Status == TicketInProgress {
			t.Status = TicketWaitingOnUser
		}
	}
	t.LastActivityAt = now
	t.UpdatedAt = now
	if _, err = svc.repo.UpdateTicket(ctx, t); err != nil {
		return TicketMessage{}, errors.Wrap(err, "updating ticket activity")
	}

	if !fromRequester && !m.IsInternal {
		svc.notifyRequester(ctx, t, "New reply on your support ticket",
			fmt.Sprintf("A support agent replied on ticket %s.", t.Number))
	}
	return m, nil
}

func (svc *service) ListMessages(ctx context.Context, ticketID string, includeInternal bool) ([]TicketMessage, error) {
	return svc.repo.QueryMessages(ctx, ticketID, includeInternal)
}

func (svc *service) UpdateStatus(ctx context.Context, id, status, resolution string, actor user.User) (SupportTicket, error) {
	t, err := svc.repo.GetTicketByID(ctx, id)
	if err != nil {
		return SupportTicket{}, err
	}

	now := nowFunc().UTC()
	t.Status = status
	switch status {
	case TicketResolved:
		t.Resolution = resolution
		t.ResolvedByID = actor.ID
		t.ResolvedAt = now
	case TicketClosed:
		if t.ResolvedAt.IsZero() {
			t.Resolution = resolution
			t.ResolvedByID = actor.ID
			t.ResolvedAt = now
		}
		t.ClosedAt = now
	}
	t.LastActivityAt = now
	t.UpdatedAt = now

	t, err = svc.repo.UpdateTicket(ctx, t)
	if err != nil {
		return SupportTicket{}, err
	}

	if _, err = svc.repo.CreateMessage(ctx, TicketMessage{
		TicketID:   t.ID,
		AuthorID:   actor.ID,
		Type:       MessageStatusChange,
		Content:    fmt.Sprintf("Status changed to %s", status),
		IsInternal: false,
		CreatedAt:  now,
	}); err != nil {
		return SupportTicket{}, errors.Wrap(err, "recording status change")
	}

	if status == TicketResolved {
		svc.notifyRequester(ctx, t, "Your support ticket was resolved",
			fmt.Sprintf("Ticket %s has been resolved: %s", t.Number, resolution))
	}
	return t, nil
}

func (svc *service) CreateFAQ(ctx context.Context, nf NewFAQ) (FAQ, error) {
	now := nowFunc().UTC()
	f := FAQ{
		Question:  nf.Question,
		Answer:    nf.Answer,
		Category:  nf.Category,
		SortOrder: nf.SortOrder,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateFAQ(ctx, f)
}

func (svc *service) ListFAQs(ctx context.Context, category string, publishedOnly bool) ([]FAQ, error) {
	return svc.repo.QueryFAQs(ctx, category, publishedOnly)
}

func (svc *service) PublishFAQ(ctx context.Context, id string) (FAQ, error) {
	f, err := svc.repo.GetFAQByID(ctx, id)
	if err != nil {
		return FAQ{}, err
	}
	f.IsPublished = true
	f.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateFAQ(ctx, f)
}

func (svc *service) UpdateFAQ(ctx context.Context, id string, nf NewFAQ) (FAQ, error) {
	f, err := svc.repo.GetFAQByID(ctx, id)
	if err != nil {
		return FAQ{}, err
	}
	f.Question = nf.Question
	f.Answer = nf.Answer
	f.Category = nf.Category
	f.SortOrder = nf.SortOrder
	f.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateFAQ(ctx, f)
}

func (svc *service) DeleteFAQs(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteFAQsByID(ctx, ids...)
	return err
}

func (svc *service) RecordFAQView(ctx context.Context, id string) error {
	return svc.repo.IncrementFAQViews(ctx, id)
}

func (svc *service) notifyRequester(ctx context.Context, t SupportTicket, title, message string) {
	if svc.notifSvc == nil {
		return
	}
	nn := notification.NewNotification{
		UserID:   t.RequesterID,
		Category: notification.CategorySupport,
		Priority: notification.PriorityNormal,
		Title:    title,
		Message:  message,
	}
	// muted recipients are fine, everything else is best-effort
	_, _ = svc.notifSvc.Notify(ctx, nn)
}

func (svc *service) alertSupport(t SupportTicket, requester user.User) {
	svc.mailSvc.SendMessages(
		&core.EmailMessage{
			To:      []mail.Address{svc.support},
			Subject: fmt.Sprintf("[%s] %s: %s", t.Priority, t.Number, t.Subject),
			BodyStr: fmt.Sprintf("New %s ticket from %s <%s>:\n\n%s",
				t.Category, requester.FullName(), requester.Email, t.Description),
		},
	)
}
