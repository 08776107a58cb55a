package notification

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Notification statuses
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusRead    = "read"
)

// Categories
const (
	CategoryTestReminder  = "test_reminder"
	CategoryTestResult    = "test_result"
	CategoryCourseUpdate  = "course_update"
	CategoryEnrollment    = "enrollment"
	CategoryBadgeEarned   = "badge_earned"
	CategoryAssignmentDue = "assignment_due"
	CategorySystemAlert   = "system_alert"
	CategoryWelcome       = "welcome"
	CategorySupport       = "support"
)

// Priorities
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Digest frequencies
const (
	DigestImmediate = "immediate"
	DigestDaily     = "daily"
	DigestWeekly    = "weekly"
)

var (
	AllCategories = []string{
		CategoryTestReminder, CategoryTestResult, CategoryCourseUpdate,
		CategoryEnrollment, CategoryBadgeEarned, CategoryAssignmentDue,
		CategorySystemAlert, CategoryWelcome, CategorySupport,
	}
	AllPriorities = []string{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}
)

type Notification struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	Category string `json:"category"`
	Priority string `json:"priority"`
	Status   string `json:"status"`

	Title   string `json:"title"`
	Message string `json:"message"`

	CourseID string `json:"course_id,omitempty"`
	TestID   string `json:"test_id,omitempty"`

	ActionURL  string `json:"action_url,omitempty"`
	ActionText string `json:"action_text,omitempty"`

	SentAt    time.Time `json:"sent_at,omitempty"`
	ReadAt    time.Time `json:"read_at,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"` // zero = never

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (n Notification) IsRead() bool { return n.Status == StatusRead }

func (n Notification) IsExpired(now time.Time) bool {
	return !n.ExpiresAt.IsZero() && now.After(n.ExpiresAt)
}

// NewNotification is the input to Notify. Callers are other services, not
// HTTP handlers, so validation stays light.
type NewNotification struct {
	UserID   string `json:"user_id" validate:"required"`
	Category string `json:"category" validate:"required"`
	Priority string `json:"priority"`

	Title   string `json:"title" validate:"required,max=200"`
	Message string `json:"message" validate:"required"`

	CourseID   string    `json:"course_id"`
	TestID     string    `json:"test_id"`
	ActionURL  string    `json:"action_url"`
	ActionText string    `json:"action_text"`
	ExpiresAt  time.Time `json:"expires_at"`

	// SendEmail also delivers the notification by mail when the recipient's
	// settings allow it.
	SendEmail bool `json:"send_email"`
}

func (nn *NewNotification) Validate(validate *validator.Validate) error {
	if nn.Priority == "" {
		nn.Priority = PriorityNormal
	}
	return validate.Struct(nn)
}

// Settings holds a user's notification preferences. Zero value is not
// usable; DefaultSettings seeds new users.
type Settings struct {
	UserID string `json:"user_id"`

	Enabled            bool `json:"notifications_enabled"`
	EmailEnabled       bool `json:"email_notifications"`
	InAppEnabled       bool `json:"in_app_notifications"`
	TestReminders      bool `json:"test_reminders"`
	TestResults        bool `json:"test_results"`
	CourseUpdates      bool `json:"course_updates"`
	EnrollmentUpdates  bool `json:"enrollment_notifications"`
	BadgeNotifications bool `json:"badge_notifications"`
	AssignmentUpdates  bool `json:"assignment_reminders"`
	SystemAlerts       bool `json:"system_alerts"`

	DigestFrequency string `json:"digest_frequency"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func DefaultSettings(userID string, now time.Time) Settings {
	return Settings{
		UserID:             userID,
		Enabled:            true,
		EmailEnabled:       true,
		InAppEnabled:       true,
		TestReminders:      true,
		TestResults:        true,
		CourseUpdates:      true,
		EnrollmentUpdates:  true,
		BadgeNotifications: true,
		AssignmentUpdates:  true,
		SystemAlerts:       true,
		DigestFrequency:    DigestImmediate,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Allows reports whether the user accepts in-app notifications of a category.
func (s Settings) Allows(category string) bool {
	if !s.Enabled || !s.InAppEnabled {
		return false
	}
	switch category {
	case CategoryTestReminder:
		return s.TestReminders
	case CategoryTestResult:
		return s.TestResults
	case CategoryCourseUpdate:
		return s.CourseUpdates
	case CategoryEnrollment:
		return s.EnrollmentUpdates
	case CategoryBadgeEarned:
		return s.BadgeNotifications
	case CategoryAssignmentDue:
		return s.AssignmentUpdates
	case CategorySystemAlert:
		return s.SystemAlerts
	}
	return true
}

// AllowsEmail reports whether the category may also go out by mail.
func (s Settings) AllowsEmail(category string) bool {
	return s.Allows(category) && s.EmailEnabled
}

type UpdateSettings struct {
	Enabled            *bool `json:"notifications_enabled"`
	EmailEnabled       *bool `json:"email_notifications"`
	InAppEnabled       *bool `json:"in_app_notifications"`
	TestReminders      *bool `json:"test_reminders"`
	TestResults        *bool `json:"test_results"`
	CourseUpdates      *bool `json:"course_updates"`
	EnrollmentUpdates  *bool `json:"enrollment_notifications"`
	BadgeNotifications *bool `json:"badge_notifications"`
	AssignmentUpdates  *bool `json:"assignment_reminders"`
	SystemAlerts       *bool `json:"system_alerts"`

	DigestFrequency string `json:"digest_frequency" validate:"omitempty,oneof=immediate daily weekly"`
}

func (us *UpdateSettings) Validate(validate *validator.Validate) error {
	return validate.Struct(us)
}
