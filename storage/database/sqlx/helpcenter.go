package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Digitalguyco/convade-backend/core/helpcenter"
)

type ticketRow struct {
	ID     string `db:"id"`
	Number string `db:"ticket_number"`

	RequesterID string      `db:"requester_id"`
	AssigneeID  null.String `db:"assignee_id"`

	Subject     string `db:"subject"`
	Description string `db:"description"`
	Category    string `db:"category"`
	Priority    string `db:"priority"`
	Status      string `db:"status"`

	UserAgent string `db:"user_agent"`
	IPAddress string `db:"ip_address"`

	Resolution   string      `db:"resolution"`
	ResolvedByID null.String `db:"resolved_by_id"`
	ResolvedAt   null.Time   `db:"resolved_at"`
	ClosedAt     null.Time   `db:"closed_at"`

	FirstResponseAt null.Time `db:"first_response_at"`
	LastActivityAt  time.Time `db:"last_activity_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r ticketRow) toDomain() helpcenter.SupportTicket {
	return helpcenter.SupportTicket{
		ID:     r.ID,
		Number: r.Number,

		RequesterID: r.RequesterID,
		AssigneeID:  r.AssigneeID.String,

		Subject:     r.Subject,
		Description: r.Description,
		Category:    r.Category,
		Priority:    r.Priority,
		Status:      r.Status,

		UserAgent: r.UserAgent,
		IPAddress: r.IPAddress,

		Resolution:   r.Resolution,
		ResolvedByID: r.ResolvedByID.String,
		ResolvedAt:   fromNullTime(r.ResolvedAt),
		ClosedAt:     fromNullTime(r.ClosedAt),

		FirstResponseAt: fromNullTime(r.FirstResponseAt),
		LastActivityAt:  r.LastActivityAt.UTC(),

		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func newTicketRow(t helpcenter.SupportTicket) ticketRow {
	return ticketRow{
		ID:     t.ID,
		Number: t.Number,

		RequesterID: t.RequesterID,
		AssigneeID:  nullString(t.AssigneeID),

		Subject:     t.Subject,
		Description: t.Description,
		Category:    t.Category,
		Priority:    t.Priority,
		Status:      t.Status,

		UserAgent: t.UserAgent,
		IPAddress: t.IPAddress,

		Resolution:   t.Resolution,
		ResolvedByID: nullString(t.ResolvedByID),
		ResolvedAt:   nullTime(t.ResolvedAt),
		ClosedAt:     nullTime(t.ClosedAt),

		FirstResponseAt: nullTime(t.FirstResponseAt),
		LastActivityAt:  t.LastActivityAt,

		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

const ticketColumns = `id, ticket_number, requester_id, assignee_id, subject, description,
	category, priority, status, user_agent, ip_address, resolution, resolved_by_id,
	resolved_at, closed_at, first_response_at, last_activity_at, created_at, updated_at`

type ticketMessageRow struct {
	ID       string `db:"id"`
	TicketID string `db:"ticket_id"`
	AuthorID string `db:"author_id"`

	Type    string `db:"message_type"`
	Content string `db:"content"`

	IsInternal bool `db:"is_internal"`

	CreatedAt time.Time `db:"created_at"`
}

func (r ticketMessageRow) toDomain() helpcenter.TicketMessage {
	return helpcenter.TicketMessage{
		ID:       r.ID,
		TicketID: r.TicketID,
		AuthorID: r.AuthorID,

		Type:    r.Type,
		Content: r.Content,

		IsInternal: r.IsInternal,

		CreatedAt: r.CreatedAt.UTC(),
	}
}

const ticketMessageColumns = `id, ticket_id, author_id, message_type, content, is_internal, created_at`

type faqRow struct {
	ID       string `db:"id"`
	Question string `db:"question"`
	Answer   string `db:"answer"`
	Category string `db:"category"`

	SortOrder   int  `db:"sort_order"`
	IsPublished bool `db:"is_published"`
	ViewCount   int  `db:"view_count"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r faqRow) toDomain() helpcenter.FAQ {
	return helpcenter.FAQ{
		ID:       r.ID,
		Question: r.Question,
		Answer:   r.Answer,
		Category: r.Category,

		SortOrder:   r.SortOrder,
		IsPublished: r.IsPublished,
		ViewCount:   r.ViewCount,

		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

const faqColumns = `id, question, answer, category, sort_order, is_published, view_count,
	created_at, updated_at`

type helpcenterRepository struct {
	db *sqlx.DB
}

var _ helpcenter.Repository = (*helpcenterRepository)(nil)

func NewHelpCenterRepository(db *sqlx.DB) helpcenter.Repository {
	return &helpcenterRepository{db: db}
}

// isUniqueViolation matches Postgres error 23505.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func (repo *helpcenterRepository) CreateTicket(ctx context.Context, t helpcenter.SupportTicket) (helpcenter.SupportTicket, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	q := `INSERT INTO support_tickets (` + ticketColumns + `) VALUES (
		:id, :ticket_number, :requester_id, :assignee_id, :subject, :description, :category,
		:priority, :status, :user_agent, :ip_address, :resolution, :resolved_by_id,
		:resolved_at, :closed_at, :first_response_at, :last_activity_at, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, newTicketRow(t)); err != nil {
		if isUniqueViolation(err) {
			return helpcenter.SupportTicket{}, helpcenter.ErrNumberExists
		}
		return helpcenter.SupportTicket{}, errors.Wrap(err, "creating ticket")
	}
	return t, nil
}

func (repo *helpcenterRepository) getTicketBy(ctx context.Context, column string, value interface{}) (helpcenter.SupportTicket, error) {
	var row ticketRow
	q := `SELECT ` + ticketColumns + ` FROM support_tickets WHERE ` + column + ` = $1`
	if err := repo.db.GetContext(ctx, &row, q, value); err != nil {
		if isNoRows(err) {
			return helpcenter.SupportTicket{}, helpcenter.ErrTicketNotFound
		}
		return helpcenter.SupportTicket{}, errors.Wrap(err, "getting ticket")
	}
	return row.toDomain(), nil
}

func (repo *helpcenterRepository) GetTicketByID(ctx context.Context, id string) (helpcenter.SupportTicket, error) {
	return repo.getTicketBy(ctx, "id", id)
}

func (repo *helpcenterRepository) GetTicketByNumber(ctx context.Context, number string) (helpcenter.SupportTicket, error) {
	return repo.getTicketBy(ctx, "ticket_number", number)
}

func (repo *helpcenterRepository) QueryTickets(ctx context.Context, filter *helpcenter.QueryFilter) ([]helpcenter.SupportTicket, error) {
	q := `SELECT ` + ticketColumns + ` FROM support_tickets`
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.RequesterID != "" {
			conds = append(conds, "requester_id = "+arg(filter.RequesterID))
		}
		if filter.AssigneeID != "" {
			conds = append(conds, "assignee_id = "+arg(filter.AssigneeID))
		}
		if filter.Status != "" {
			conds = append(conds, "status = "+arg(filter.Status))
		}
		if filter.Category != "" {
			conds = append(conds, "category = "+arg(filter.Category))
		}
		if filter.Priority != "" {
			conds = append(conds, "priority = "+arg(filter.Priority))
		}
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY last_activity_at DESC"

	var rows []ticketRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying tickets")
	}
	tickets := make([]helpcenter.SupportTicket, 0, len(rows))
	for _, row := range rows {
		tickets = append(tickets, row.toDomain())
	}
	return tickets, nil
}

func (repo *helpcenterRepository) UpdateTicket(ctx context.Context, t helpcenter.SupportTicket) (helpcenter.SupportTicket, error) {
	q := `UPDATE support_tickets SET
		assignee_id = :assignee_id, subject = :subject, priority = :priority, status = :status,
		resolution = :resolution, resolved_by_id = :resolved_by_id, resolved_at = :resolved_at,
		closed_at = :closed_at, first_response_at = :first_response_at,
		last_activity_at = :last_activity_at, updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newTicketRow(t))
	if err != nil {
		return helpcenter.SupportTicket{}, errors.Wrap(err, "updating ticket")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return helpcenter.SupportTicket{}, helpcenter.ErrTicketNotFound
	}
	return t, nil
}

func (repo *helpcenterRepository) CreateMessage(ctx context.Context, m helpcenter.TicketMessage) (helpcenter.TicketMessage, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	q := `INSERT INTO ticket_messages (` + ticketMessageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := repo.db.ExecContext(ctx, q, m.ID, m.TicketID, m.AuthorID, m.Type, m.Content, m.IsInternal, m.CreatedAt)
	if err != nil {
		return helpcenter.TicketMessage{}, errors.Wrap(err, "creating ticket message")
	}
	return m, nil
}

func (repo *helpcenterRepository) QueryMessages(ctx context.Context, ticketID string, includeInternal bool) ([]helpcenter.TicketMessage, error) {
	q := `SELECT ` + ticketMessageColumns + ` FROM ticket_messages WHERE ticket_id = $1`
	if !includeInternal {
		q += " AND NOT is_internal"
	}
	q += " ORDER BY created_at ASC"

	var rows []ticketMessageRow
	if err := repo.db.SelectContext(ctx, &rows, q, ticketID); err != nil {
		return nil, errors.Wrap(err, "querying ticket messages")
	}
	msgs := make([]helpcenter.TicketMessage, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.toDomain())
	}
	return msgs, nil
}

func (repo *helpcenterRepository) CreateFAQ(ctx context.Context, f helpcenter.FAQ) (helpcenter.FAQ, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	q := `INSERT INTO faqs (` + faqColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := repo.db.ExecContext(ctx, q, f.ID, f.Question, f.Answer, f.Category,
		f.SortOrder, f.IsPublished, f.ViewCount, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return helpcenter.FAQ{}, errors.Wrap(err, "creating faq")
	}
	return f, nil
}

func (repo *helpcenterRepository) GetFAQByID(ctx context.Context, id string) (helpcenter.FAQ, error) {
	var row faqRow
	q := `SELECT ` + faqColumns + ` FROM faqs WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return helpcenter.FAQ{}, helpcenter.ErrFAQNotFound
		}
		return helpcenter.FAQ{}, errors.Wrap(err, "getting faq")
	}
	return row.toDomain(), nil
}

func (repo *helpcenterRepository) QueryFAQs(ctx context.Context, category string, publishedOnly bool) ([]helpcenter.FAQ, error) {
	q := `SELECT ` + faqColumns + ` FROM faqs`
	var (
		conds []string
		args  []interface{}
	)
	if category != "" {
		args = append(args, category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if publishedOnly {
		conds = append(conds, "is_published")
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY sort_order, question"

	var rows []faqRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying faqs")
	}
	faqs := make([]helpcenter.FAQ, 0, len(rows))
	for _, row := range rows {
		faqs = append(faqs, row.toDomain())
	}
	return faqs, nil
}

func (repo *helpcenterRepository) UpdateFAQ(ctx context.Context, f helpcenter.FAQ) (helpcenter.FAQ, error) {
	q := `UPDATE faqs SET question = $1, answer = $2, category = $3, sort_order = $4,
		is_published = $5, updated_at = $6 WHERE id = $7`
	res, err := repo.db.ExecContext(ctx, q, f.Question, f.Answer, f.Category,
		f.SortOrder, f.IsPublished, f.UpdatedAt, f.ID)
	if err != nil {
		return helpcenter.FAQ{}, errors.Wrap(err, "updating faq")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return helpcenter.FAQ{}, helpcenter.ErrFAQNotFound
	}
	return f, nil
}

func (repo *helpcenterRepository) DeleteFAQsByID(ctx context.Context, ids ...string) (int, error) {
	q := `DELETE FROM faqs WHERE id = ANY($1)`
	res, err := repo.db.ExecContext(ctx, q, stringArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting faqs")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo *helpcenterRepository) IncrementFAQViews(ctx context.Context, id string) error {
	q := `UPDATE faqs SET view_count = view_count + 1 WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q, id)
	if err != nil {
		return errors.Wrap(err, "incrementing faq views")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return helpcenter.ErrFAQNotFound
	}
	return nil
}
