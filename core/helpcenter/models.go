package helpcenter

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Digitalguyco/convade-backend/core"
)

// Ticket statuses
const (
	TicketOpen          = "open"
	TicketInProgress    = "in_progress"
	TicketWaitingOnUser = "waiting_on_user"
	TicketResolved      = "resolved"
	TicketClosed        = "closed"
)

// Ticket priorities
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Ticket categories
const (
	CategoryTechnicalIssue = "technical_issue"
	CategoryAccountIssue   = "account_issue"
	CategoryCourseRelated  = "course_related"
	CategoryPaymentIssue   = "payment_issue"
	CategoryFeatureRequest = "feature_request"
	CategoryGeneralInquiry = "general_inquiry"
	CategoryBugReport      = "bug_report"
)

// Message types
const (
	MessageUser         = "user_message"
	MessageStaff        = "staff_reply"
	MessageStatusChange = "status_change"
)

var (
	AllTicketStatuses = []string{TicketOpen, TicketInProgress, TicketWaitingOnUser, TicketResolved, TicketClosed}
	AllPriorities     = []string{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}
	AllCategories     = []string{
		CategoryTechnicalIssue, CategoryAccountIssue, CategoryCourseRelated,
		CategoryPaymentIssue, CategoryFeatureRequest, CategoryGeneralInquiry, CategoryBugReport,
	}
)

type SupportTicket struct {
	ID     string `json:"id"`
	Number string `json:"ticket_number"`

	RequesterID string `json:"requester_id"`
	AssigneeID  string `json:"assignee_id,omitempty"`

	Subject     string `json:"subject"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`

	UserAgent string `json:"user_agent,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`

	Resolution   string    `json:"resolution,omitempty"`
	ResolvedByID string    `json:"resolved_by_id,omitempty"`
	ResolvedAt   time.Time `json:"resolved_at,omitempty"`
	ClosedAt     time.Time `json:"closed_at,omitempty"`

	FirstResponseAt time.Time `json:"first_response_at,omitempty"`
	LastActivityAt  time.Time `json:"last_activity_at"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (t SupportTicket) IsOpen() bool {
	switch t.Status {
	case TicketOpen, TicketInProgress, TicketWaitingOnUser:
		return true
	}
	return false
}

type NewTicket struct {
	Subject     string `json:"subject" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
	Category    string `json:"category" validate:"required,oneof=technical_issue account_issue course_related payment_issue feature_request general_inquiry bug_report"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	UserAgent   string `json:"-"`
	IPAddress   string `json:"-"`
}

func (nt *NewTicket) Validate(validate *validator.Validate) error {
	nt.Subject = core.CleanString(nt.Subject)
	if nt.Priority == "" {
		nt.Priority = PriorityNormal
	}
	return validate.Struct(nt)
}

type TicketMessage struct {
	ID       string `json:"id"`
	TicketID string `json:"ticket_id"`
	AuthorID string `json:"author_id"`

	Type    string `json:"message_type"`
	Content string `json:"content"`

	// IsInternal hides the message from the requester.
	IsInternal bool `json:"is_internal"`

	CreatedAt time.Time `json:"created_at"` // UTC
}

type NewMessage struct {
	TicketID   string `json:"ticket_id" validate:"required"`
	Content    string `json:"content" validate:"required"`
	IsInternal bool   `json:"is_internal"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	return validate.Struct(nm)
}

type FAQ struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`

	SortOrder   int  `json:"sort_order"`
	IsPublished bool `json:"is_published"`
	ViewCount   int  `json:"view_count"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type NewFAQ struct {
	Question  string `json:"question" validate:"required,max=500"`
	Answer    string `json:"answer" validate:"required"`
	Category  string `json:"category"`
	SortOrder int    `json:"sort_order" validate:"gte=0"`
}

func (nf *NewFAQ) Validate(validate *validator.Validate) error {
	nf.Question = core.CleanString(nf.Question)
	return validate.Struct(nf)
}

// QueryFilter narrows ticket listings. Staff see all tickets, requesters
// only their own.
type QueryFilter struct {
	RequesterID string
	AssigneeID  string
	Status      string
	Category    string
	Priority    string
}

// makeTicketNumber builds a short public reference: TCK-<6 digits>.
func makeTicketNumber() string {
	const digits = "0123456789"
	buf := make([]byte, 6)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			panic(err) // crypto/rand failure is not recoverable
		}
		buf[i] = digits[n.Int64()]
	}
	return fmt.Sprintf("TCK-%s", buf)
}
