package course

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Digitalguyco/convade-backend/core"
)

// Course statuses
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Difficulty levels
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// Lesson types
const (
	LessonVideo       = "video"
	LessonText        = "text"
	LessonQuiz        = "quiz"
	LessonAssignment  = "assignment"
	LessonDownload    = "download"
	LessonLiveSession = "live_session"
)

// Enrollment statuses
const (
	EnrollmentPending   = "pending"
	EnrollmentActive    = "active"
	EnrollmentCompleted = "completed"
	EnrollmentDropped   = "dropped"
	EnrollmentSuspended = "suspended"
)

// Lesson progress statuses
const (
	ProgressNotStarted = "not_started"
	ProgressInProgress = "in_progress"
	ProgressCompleted  = "completed"
)

var (
	AllStatuses     = []string{StatusDraft, StatusPublished, StatusArchived}
	AllDifficulties = []string{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced}
	AllLessonTypes  = []string{LessonVideo, LessonText, LessonQuiz, LessonAssignment, LessonDownload, LessonLiveSession}
)

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Color       string    `json:"color"`
	IsActive    bool      `json:"is_active"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type NewCategory struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
	SortOrder   int    `json:"sort_order" validate:"gte=0"`
}

func (nc *NewCategory) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	if nc.Color == "" {
		nc.Color = "#007bff"
	}
	return validate.Struct(nc)
}

type Course struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Slug             string `json:"slug"`
	Description      string `json:"description,omitempty"`
	ShortDescription string `json:"short_description,omitempty"`

	CourseCode   string `json:"course_code"`
	CategoryID   string `json:"category_id"`
	InstructorID string `json:"instructor_id"`
	SchoolID     string `json:"school_id"`

	ThumbnailURL  string `json:"thumbnail_url,omitempty"`
	IntroVideoURL string `json:"intro_video_url,omitempty"`
	SyllabusURL   string `json:"syllabus_url,omitempty"`

	Status     string `json:"status"`
	Difficulty string `json:"difficulty"`
	IsFree     bool   `json:"is_free"`
	PriceCents int64  `json:"price_cents"`

	EstimatedDuration int       `json:"estimated_duration"` // minutes
	StartDate         time.Time `json:"start_date,omitempty"`
	EndDate           time.Time `json:"end_date,omitempty"`
	EnrollmentStart   time.Time `json:"enrollment_start,omitempty"`
	EnrollmentEnd     time.Time `json:"enrollment_end,omitempty"`

	MaxStudents         int  `json:"max_students"`
	AllowSelfEnrollment bool `json:"allow_self_enrollment"`
	RequiresApproval    bool `json:"requires_approval"`

	PassingScore       int  `json:"passing_score"` // percentage
	CertificateEnabled bool `json:"certificate_enabled"`

	ViewCount       int `json:"view_count"`
	EnrollmentCount int `json:"enrollment_count"`
	CompletionCount int `json:"completion_count"`

	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// IsEnrollmentOpen reports whether the enrollment window is open.
func (c Course) IsEnrollmentOpen(now time.Time) bool {
	if !c.EnrollmentStart.IsZero() && now.Before(c.EnrollmentStart) {
		return false
	}
	if !c.EnrollmentEnd.IsZero() && now.After(c.EnrollmentEnd) {
		return false
	}
	return true
}

// IsActive reports whether the course is published and within its run dates.
func (c Course) IsActive(now time.Time) bool {
	if !c.StartDate.IsZero() && now.Before(c.StartDate) {
		return false
	}
	if !c.EndDate.IsZero() && now.After(c.EndDate) {
		return false
	}
	return c.Status == StatusPublished
}

func (c Course) AvailableSlots() int {
	if slots := c.MaxStudents - c.EnrollmentCount; slots > 0 {
		return slots
	}
	return 0
}

func (c Course) CompletionRate() float64 {
	if c.EnrollmentCount == 0 {
		return 0
	}
	return float64(c.CompletionCount) / float64(c.EnrollmentCount) * 100
}

type NewCourse struct {
	Title            string `json:"title" validate:"required,max=200"`
	Description      string `json:"description"`
	ShortDescription string `json:"short_description" validate:"max=500"`

	CourseCode string `json:"course_code" validate:"required,uppercode,max=20"`
	CategoryID string `json:"category_id" validate:"required"`
	SchoolID   string `json:"school_id" validate:"required"`

	ThumbnailURL  string `json:"thumbnail_url" validate:"omitempty,url"`
	IntroVideoURL string `json:"intro_video_url" validate:"omitempty,url"`
	SyllabusURL   string `json:"syllabus_url" validate:"omitempty,url"`

	Difficulty string `json:"difficulty" validate:"omitempty,difficulty"`
	IsFree     *bool  `json:"is_free"`
	PriceCents int64  `json:"price_cents" validate:"gte=0"`

	EstimatedDuration int       `json:"estimated_duration" validate:"gte=0"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	EnrollmentStart   time.Time `json:"enrollment_start"`
	EnrollmentEnd     time.Time `json:"enrollment_end"`

	MaxStudents         int   `json:"max_students" validate:"gte=0"`
	AllowSelfEnrollment *bool `json:"allow_self_enrollment"`
	RequiresApproval    bool  `json:"requires_approval"`

	PassingScore       int   `json:"passing_score" validate:"gte=0,lte=100"`
	CertificateEnabled *bool `json:"certificate_enabled"`
}

func (nc *NewCourse) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nc.Title = core.CleanString(nc.Title)
	nc.CourseCode = strings.ToUpper(core.CleanString(nc.CourseCode))
	if nc.Difficulty == "" {
		nc.Difficulty = DifficultyBeginner
	}
	if nc.MaxStudents == 0 {
		nc.MaxStudents = 100
	}
	if nc.PassingScore == 0 {
		nc.PassingScore = 70
	}

	if err := validate.Struct(nc); err != nil {
		return err
	}
	return svc.CheckCodeUniqueness(ctx, nc.CourseCode)
}

type UpdateCourse struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	ShortDescription string `json:"short_description" validate:"max=500"`
	CategoryID       string `json:"category_id"`

	ThumbnailURL  string `json:"thumbnail_url" validate:"omitempty,url"`
	IntroVideoURL string `json:"intro_video_url" validate:"omitempty,url"`
	SyllabusURL   string `json:"syllabus_url" validate:"omitempty,url"`

	Difficulty string `json:"difficulty" validate:"omitempty,difficulty"`
	IsFree     *bool  `json:"is_free"`
	PriceCents *int64 `json:"price_cents" validate:"omitempty,gte=0"`

	EstimatedDuration *int      `json:"estimated_duration" validate:"omitempty,gte=0"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	EnrollmentStart   time.Time `json:"enrollment_start"`
	EnrollmentEnd     time.Time `json:"enrollment_end"`

	MaxStudents         *int  `json:"max_students" validate:"omitempty,gte=0"`
	AllowSelfEnrollment *bool `json:"allow_self_enrollment"`
	RequiresApproval    *bool `json:"requires_approval"`

	PassingScore       *int  `json:"passing_score" validate:"omitempty,gte=0,lte=100"`
	CertificateEnabled *bool `json:"certificate_enabled"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.Title = core.CleanString(uc.Title)
	return validate.Struct(uc)
}

type Module struct {
	ID          string `json:"id"`
	CourseID    string `json:"course_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Order       int  `json:"order"`
	IsPublished bool `json:"is_published"`

	EstimatedDuration int    `json:"estimated_duration"` // minutes
	UnlockAfterID     string `json:"unlock_after_id,omitempty"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type NewModule struct {
	CourseID          string `json:"course_id" validate:"required"`
	Title             string `json:"title" validate:"required,max=200"`
	Description       string `json:"description"`
	Order             int    `json:"order" validate:"gte=0"`
	EstimatedDuration int    `json:"estimated_duration" validate:"gte=0"`
	UnlockAfterID     string `json:"unlock_after_id"`
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	return validate.Struct(nm)
}

type Lesson struct {
	ID       string `json:"id"`
	ModuleID string `json:"module_id"`
	Title    string `json:"title"`
	Type     string `json:"lesson_type"`

	Content       string `json:"content,omitempty"`
	VideoURL      string `json:"video_url,omitempty"`
	AttachmentURL string `json:"attachment_url,omitempty"`

	Order         int  `json:"order"`
	IsPublished   bool `json:"is_published"`
	IsFreePreview bool `json:"is_free_preview"`

	Duration int `json:"duration"` // minutes

	LiveSessionDate time.Time `json:"live_session_date,omitempty"`
	LiveSessionURL  string    `json:"live_session_url,omitempty"`

	ViewCount int `json:"view_count"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type NewLesson struct {
	ModuleID string `json:"module_id" validate:"required"`
	Title    string `json:"title" validate:"required,max=200"`
	Type     string `json:"lesson_type" validate:"omitempty,lessontype"`

	Content       string `json:"content"`
	VideoURL      string `json:"video_url" validate:"omitempty,url"`
	AttachmentURL string `json:"attachment_url" validate:"omitempty,url"`

	Order         int  `json:"order" validate:"gte=0"`
	IsFreePreview bool `json:"is_free_preview"`
	Duration      int  `json:"duration" validate:"gte=0"`

	LiveSessionDate time.Time `json:"live_session_date"`
	LiveSessionURL  string    `json:"live_session_url" validate:"omitempty,url"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	if nl.Type == "" {
		nl.Type = LessonText
	}
	return validate.Struct(nl)
}

type Enrollment struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id"`

	Status         string    `json:"status"`
	EnrollmentDate time.Time `json:"enrollment_date"` // UTC
	CompletionDate time.Time `json:"completion_date,omitempty"`

	ProgressPercentage float64   `json:"progress_percentage"`
	LastAccessed       time.Time `json:"last_accessed,omitempty"`

	CurrentGrade float64 `json:"current_grade"`
	FinalGrade   float64 `json:"final_grade"`

	TotalStudyTime int `json:"total_study_time"` // minutes

	CertificateIssued bool      `json:"certificate_issued"`
	CertificateDate   time.Time `json:"certificate_date,omitempty"`

	PaymentCompleted bool      `json:"payment_completed"`
	PaymentDate      time.Time `json:"payment_date,omitempty"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// IsPassed reports whether the final grade meets the course passing score.
func (e Enrollment) IsPassed(c Course) bool {
	return e.FinalGrade > 0 && e.FinalGrade >= float64(c.PassingScore)
}

type LessonProgress struct {
	ID           string `json:"id"`
	EnrollmentID string `json:"enrollment_id"`
	LessonID     string `json:"lesson_id"`

	Status      string    `json:"status"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`

	WatchTime            int     `json:"watch_time"` // seconds
	CompletionPercentage float64 `json:"completion_percentage"`

	Notes        string `json:"notes,omitempty"`
	IsBookmarked bool   `json:"is_bookmarked"`

	LastAccessed time.Time `json:"last_accessed"` // UTC
	CreatedAt    time.Time `json:"created_at"`    // UTC
	UpdatedAt    time.Time `json:"updated_at"`    // UTC
}

type Announcement struct {
	ID           string `json:"id"`
	CourseID     string `json:"course_id"`
	InstructorID string `json:"instructor_id"`

	Title   string `json:"title"`
	Content string `json:"content"`

	IsUrgent    bool `json:"is_urgent"`
	IsPublished bool `json:"is_published"`
	SendEmail   bool `json:"send_email"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type NewAnnouncement struct {
	CourseID  string `json:"course_id" validate:"required"`
	Title     string `json:"title" validate:"required,max=200"`
	Content   string `json:"content" validate:"required"`
	IsUrgent  bool   `json:"is_urgent"`
	SendEmail bool   `json:"send_email"`
}

func (na *NewAnnouncement) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	return validate.Struct(na)
}

type QueryFilter struct {
	Search       string `query:"search"`
	Status       string `query:"status"`
	Difficulty   string `query:"difficulty"`
	CategoryID   string `query:"category_id"`
	SchoolID     string `query:"school_id"`
	InstructorID string `query:"instructor_id"`
	IsFree       *bool  `query:"is_free"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Status == "" && qf.Difficulty == "" &&
		qf.CategoryID == "" && qf.SchoolID == "" && qf.InstructorID == "" && qf.IsFree == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.Difficulty = core.CleanString(qf.Difficulty, true /* lower */)
}
