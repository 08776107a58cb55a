package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/Digitalguyco/convade-backend/core/helpcenter"
)

type helpcenterRepository struct {
	db *DB
}

var _ helpcenter.Repository = (*helpcenterRepository)(nil)

func NewHelpCenterRepository(db *DB) helpcenter.Repository {
	return &helpcenterRepository{db: db}
}

func (repo *helpcenterRepository) CreateTicket(ctx context.Context, t helpcenter.SupportTicket) (helpcenter.SupportTicket, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, cur := range repo.db.tickets {
		if cur.Number == t.Number {
			return helpcenter.SupportTicket{}, helpcenter.ErrNumberExists
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	repo.db.tickets[t.ID] = t
	return t, nil
}

func (repo *helpcenterRepository) GetTicketByID(ctx context.Context, id string) (helpcenter.SupportTicket, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.tickets[id]; ok {
		return t, nil
	}
	return helpcenter.SupportTicket{}, helpcenter.ErrTicketNotFound
}

func (repo *helpcenterRepository) GetTicketByNumber(ctx context.Context, number string) (helpcenter.SupportTicket, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, t := range repo.db.tickets {
		if t.Number == number {
			return t, nil
		}
	}
	return helpcenter.SupportTicket{}, helpcenter.ErrTicketNotFound
}

func (repo *helpcenterRepository) QueryTickets(ctx context.Context, filter *helpcenter.QueryFilter) ([]helpcenter.SupportTicket, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var tickets []helpcenter.SupportTicket
	for _, t := range repo.db.tickets {
		if filter != nil {
			if filter.RequesterID != "" && t.RequesterID != filter.RequesterID {
				continue
			}
			if filter.AssigneeID != "" && t.AssigneeID != filter.AssigneeID {
				continue
			}
			if filter.Status != "" && t.Status != filter.Status {
				continue
			}
			if filter.Category != "" && t.Category != filter.Category {
				continue
			}
			if filter.Priority != "" && t.Priority != filter.Priority {
				continue
			}
		}
		tickets = append(tickets, t)
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].LastActivityAt.After(tickets[j].LastActivityAt) })
	return tickets, nil
}

func (repo *helpcenterRepository) UpdateTicket(ctx context.Context, t helpcenter.SupportTicket) (helpcenter.SupportTicket, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.tickets[t.ID]; !ok {
		return helpcenter.SupportTicket{}, helpcenter.ErrTicketNotFound
	}
	repo.db.tickets[t.ID] = t
	return t, nil
}

func (repo *helpcenterRepository) CreateMessage(ctx context.Context, m helpcenter.TicketMessage) (helpcenter.TicketMessage, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	repo.db.ticketMessages[m.ID] = m
	return m, nil
}

func (repo *helpcenterRepository) QueryMessages(ctx context.Context, ticketID string, includeInternal bool) ([]helpcenter.TicketMessage, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var msgs []helpcenter.TicketMessage
	for _, m := range repo.db.ticketMessages {
		if m.TicketID != ticketID {
			continue
		}
		if m.IsInternal && !includeInternal {
			continue
		}
		msgs = append(msgs, m)
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

func (repo *helpcenterRepository) CreateFAQ(ctx context.Context, f helpcenter.FAQ) (helpcenter.FAQ, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	repo.db.faqs[f.ID] = f
	return f, nil
}

func (repo *helpcenterRepository) GetFAQByID(ctx context.Context, id string) (helpcenter.FAQ, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if f, ok := repo.db.faqs[id]; ok {
		return f, nil
	}
	return helpcenter.FAQ{}, helpcenter.ErrFAQNotFound
}

func (repo *helpcenterRepository) QueryFAQs(ctx context.Context, category string, publishedOnly bool) ([]helpcenter.FAQ, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var faqs []helpcenter.FAQ
	for _, f := range repo.db.faqs {
		if category != "" && f.Category != category {
			continue
		}
		if publishedOnly && !f.IsPublished {
			continue
		}
		faqs = append(faqs, f)
	}
	sort.Slice(faqs, func(i, j int) bool {
		if faqs[i].SortOrder != faqs[j].SortOrder {
			return faqs[i].SortOrder < faqs[j].SortOrder
		}
		return faqs[i].Question < faqs[j].Question
	})
	return faqs, nil
}

func (repo *helpcenterRepository) UpdateFAQ(ctx context.Context, f helpcenter.FAQ) (helpcenter.FAQ, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.faqs[f.ID]; !ok {
		return helpcenter.FAQ{}, helpcenter.ErrFAQNotFound
	}
	repo.db.faqs[f.ID] = f
	return f, nil
}

func (repo *helpcenterRepository) DeleteFAQsByID(ctx context.Context, ids ...string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.faqs[id]; ok {
			delete(repo.db.faqs, id)
			n++
		}
	}
	return n, nil
}

func (repo *helpcenterRepository) IncrementFAQViews(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	f, ok := repo.db.faqs[id]
	if !ok {
		return helpcenter.ErrFAQNotFound
	}
	f.ViewCount++
	repo.db.faqs[id] = f
	return nil
}
