package quiz

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Digitalguyco/convade-backend/core"
)

// Test types
const (
	TypeQuiz       = "quiz"
	TypeExam       = "exam"
	TypeAssignment = "assignment"
	TypePractice   = "practice"
)

// Test statuses
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Grading methods
const (
	GradingAuto   = "auto"
	GradingManual = "manual"
	GradingMixed  = "mixed"
)

// Question types
const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionTrueFalse      = "true_false"
	QuestionShortAnswer    = "short_answer"
	QuestionEssay          = "essay"
	QuestionFillBlank      = "fill_blank"
)

// Attempt statuses
const (
	AttemptNotStarted = "not_started"
	AttemptInProgress = "in_progress"
	AttemptSubmitted  = "submitted"
	AttemptGraded     = "graded"
	AttemptExpired    = "expired"
)

var (
	AllTestTypes       = []string{TypeQuiz, TypeExam, TypeAssignment, TypePractice}
	AllGradingMethods  = []string{GradingAuto, GradingManual, GradingMixed}
	AllQuestionTypes   = []string{QuestionMultipleChoice, QuestionTrueFalse, QuestionShortAnswer, QuestionEssay, QuestionFillBlank}
	AutoGradableTypes  = map[string]bool{QuestionMultipleChoice: true, QuestionTrueFalse: true, QuestionShortAnswer: true, QuestionFillBlank: true}
	AllAttemptStatuses = []string{AttemptNotStarted, AttemptInProgress, AttemptSubmitted, AttemptGraded, AttemptExpired}
)

type Test struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Type         string `json:"test_type"`
	Status       string `json:"status"`
	CourseID     string `json:"course_id"`
	LessonID     string `json:"lesson_id,omitempty"`
	InstructorID string `json:"instructor_id"`

	TimeLimit      int       `json:"time_limit"` // minutes; 0 = none
	AvailableFrom  time.Time `json:"available_from,omitempty"`
	AvailableUntil time.Time `json:"available_until,omitempty"`

	MaxAttempts          int  `json:"max_attempts"`
	AllowReview          bool `json:"allow_review"`
	ShowCorrectAnswers   bool `json:"show_correct_answers"`
	ShowScoreImmediately bool `json:"show_score_immediately"`

	GradingMethod string  `json:"grading_method"`
	PassingScore  int     `json:"passing_score"` // percentage
	TotalPoints   float64 `json:"total_points"`

	RandomizeQuestions bool `json:"randomize_questions"`
	RandomizeAnswers   bool `json:"randomize_answers"`

	RequirePassword bool   `json:"require_password"`
	AccessPassword  string `json:"-"`

	TotalAttempts int     `json:"total_attempts"`
	AverageScore  float64 `json:"average_score"`

	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// IsAvailable reports whether the test is published and within its window.
func (t Test) IsAvailable(now time.Time) bool {
	if !t.AvailableFrom.IsZero() && now.Before(t.AvailableFrom) {
		return false
	}
	if !t.AvailableUntil.IsZero() && now.After(t.AvailableUntil) {
		return false
	}
	return t.Status == StatusPublished
}

func (t Test) HasTimeLimit() bool { return t.TimeLimit > 0 }

type NewTest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`

	Type     string `json:"test_type" validate:"omitempty,testtype"`
	CourseID string `json:"course_id" validate:"required"`
	LessonID string `json:"lesson_id"`

	TimeLimit      int       `json:"time_limit" validate:"gte=0"`
	AvailableFrom  time.Time `json:"available_from"`
	AvailableUntil time.Time `json:"available_until"`

	MaxAttempts          int   `json:"max_attempts" validate:"omitempty,gte=1,lte=10"`
	AllowReview          *bool `json:"allow_review"`
	ShowCorrectAnswers   *bool `json:"show_correct_answers"`
	ShowScoreImmediately *bool `json:"show_score_immediately"`

	GradingMethod string `json:"grading_method" validate:"omitempty,gradingmethod"`
	PassingScore  int    `json:"passing_score" validate:"gte=0,lte=100"`

	RandomizeQuestions bool `json:"randomize_questions"`
	RandomizeAnswers   bool `json:"randomize_answers"`

	RequirePassword bool   `json:"require_password"`
	AccessPassword  string `json:"access_password" validate:"required_with=RequirePassword,omitempty,max=50"`
}

func (nt *NewTest) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	if nt.Type == "" {
		nt.Type = TypeQuiz
	}
	if nt.GradingMethod == "" {
		nt.GradingMethod = GradingAuto
	}
	if nt.MaxAttempts == 0 {
		nt.MaxAttempts = 1
	}
	if nt.PassingScore == 0 {
		nt.PassingScore = 70
	}
	return validate.Struct(nt)
}

type Question struct {
	ID     string `json:"id"`
	TestID string `json:"test_id"`
	Text   string `json:"question_text"`
	Type   string `json:"question_type"`

	Order      int     `json:"order"`
	Points     float64 `json:"points"`
	IsRequired bool    `json:"is_required"`

	Explanation   string `json:"explanation,omitempty"`
	CaseSensitive bool   `json:"case_sensitive"`
	Difficulty    string `json:"difficulty"`

	Answers []Answer `json:"answers,omitempty"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// IsAutoGradable reports whether the question can be machine graded.
func (q Question) IsAutoGradable() bool { return AutoGradableTypes[q.Type] }

type Answer struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"question_id"`
	Text       string    `json:"answer_text"`
	IsCorrect  bool      `json:"-"`
	Order      int       `json:"order"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

type NewAnswer struct {
	Text      string `json:"answer_text" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
	Order     int    `json:"order" validate:"gte=0"`
}

type NewQuestion struct {
	TestID string `json:"test_id" validate:"required"`
	Text   string `json:"question_text" validate:"required"`
	Type   string `json:"question_type" validate:"omitempty,questiontype"`

	Order      int     `json:"order" validate:"gte=0"`
	Points     float64 `json:"points" validate:"gte=0"`
	IsRequired *bool   `json:"is_required"`

	Explanation   string `json:"explanation"`
	CaseSensitive bool   `json:"case_sensitive"`
	Difficulty    string `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`

	Answers []NewAnswer `json:"answers" validate:"dive"`
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Text = core.CleanString(nq.Text)
	if nq.Type == "" {
		nq.Type = QuestionMultipleChoice
	}
	if nq.Points == 0 {
		nq.Points = 1
	}
	if nq.Difficulty == "" {
		nq.Difficulty = "medium"
	}

	if err := validate.Struct(nq); err != nil {
		return err
	}

	// choice questions need at least one correct answer
	switch nq.Type {
	case QuestionMultipleChoice, QuestionTrueFalse:
		var hasCorrect bool
		for _, ans := range nq.Answers {
			if ans.IsCorrect {
				hasCorrect = true
				break
			}
		}
		if !hasCorrect {
			return core.NewValidationError(nil, core.FieldError{
				Field: "answers", Error: "at least one correct answer is required"})
		}
	case QuestionShortAnswer, QuestionFillBlank:
		if len(nq.Answers) == 0 {
			return core.NewValidationError(nil, core.FieldError{
				Field: "answers", Error: "at least one accepted answer is required"})
		}
	}
	return nil
}

type TestAttempt struct {
	ID        string `json:"id"`
	TestID    string `json:"test_id"`
	StudentID string `json:"student_id"`

	AttemptNumber int    `json:"attempt_number"`
	Status        string `json:"status"`

	StartedAt   time.Time `json:"started_at,omitempty"`
	SubmittedAt time.Time `json:"submitted_at,omitempty"`
	TimeSpent   int       `json:"time_spent"` // seconds
	ExpiresAt   time.Time `json:"expires_at,omitempty"`

	Score      float64 `json:"score"`
	Percentage float64 `json:"percentage"`
	IsPassed   bool    `json:"is_passed"`

	AutoGraded     bool      `json:"auto_graded"`
	ManuallyGraded bool      `json:"manually_graded"`
	GradedByID     string    `json:"graded_by_id,omitempty"`
	GradedAt       time.Time `json:"graded_at,omitempty"`

	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"-"`

	InstructorFeedback string `json:"instructor_feedback,omitempty"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// IsExpired reports whether the attempt ran past its deadline.
func (a TestAttempt) IsExpired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}

// TimeRemaining returns remaining seconds, or -1 when untimed.
func (a TestAttempt) TimeRemaining(now time.Time) int {
	if a.ExpiresAt.IsZero() {
		return -1
	}
	if remaining := int(a.ExpiresAt.Sub(now).Seconds()); remaining > 0 {
		return remaining
	}
	return 0
}

type QuestionResponse struct {
	ID         string `json:"id"`
	AttemptID  string `json:"attempt_id"`
	QuestionID string `json:"question_id"`

	SelectedAnswerIDs []string `json:"selected_answer_ids,omitempty"`
	TextResponse      string   `json:"text_response,omitempty"`

	PointsEarned float64 `json:"points_earned"`
	IsCorrect    bool    `json:"is_correct"`
	IsGraded     bool    `json:"is_graded"`

	Feedback  string `json:"feedback,omitempty"`
	TimeSpent int    `json:"time_spent"` // seconds

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// SaveResponse is a student's answer to a single question.
type SaveResponse struct {
	QuestionID        string   `json:"question_id" validate:"required"`
	SelectedAnswerIDs []string `json:"selected_answer_ids"`
	TextResponse      string   `json:"text_response"`
	TimeSpent         int      `json:"time_spent" validate:"gte=0"`
}

func (sr *SaveResponse) Validate(validate *validator.Validate) error {
	return validate.Struct(sr)
}

// ReviewItem pairs a question with the student's response to it.
type ReviewItem struct {
	Question Question         `json:"question"`
	Response QuestionResponse `json:"response"`

	// CorrectAnswerIDs is populated only when the test shows correct answers.
	CorrectAnswerIDs []string `json:"correct_answer_ids,omitempty"`
}

// AttemptReview is the student-facing read of a closed attempt.
type AttemptReview struct {
	Attempt            TestAttempt  `json:"attempt"`
	Items              []ReviewItem `json:"items"`
	ShowCorrectAnswers bool         `json:"show_correct_answers"`
}

// GradeInput is an instructor's manual grade for a single response.
type GradeInput struct {
	PointsEarned float64 `json:"points_earned" validate:"gte=0"`
	Feedback     string  `json:"feedback"`
}

func (gi *GradeInput) Validate(validate *validator.Validate) error {
	return validate.Struct(gi)
}

// TestResult is the per-student aggregate over all graded attempts of a test.
type TestResult struct {
	ID        string `json:"id"`
	TestID    string `json:"test_id"`
	StudentID string `json:"student_id"`

	BestAttemptID  string  `json:"best_attempt_id"`
	BestScore      float64 `json:"best_score"`
	BestPercentage float64 `json:"best_percentage"`

	TotalAttempts     int     `json:"total_attempts"`
	AverageScore      float64 `json:"average_score"`
	FirstAttemptScore float64 `json:"first_attempt_score"`

	IsPassed    bool `json:"is_passed"`
	IsCompleted bool `json:"is_completed"`

	TotalTimeSpent   int       `json:"total_time_spent"` // seconds
	FirstCompletedAt time.Time `json:"first_completed_at,omitempty"`
	LastAttemptAt    time.Time `json:"last_attempt_at,omitempty"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type QueryFilter struct {
	Search       string `query:"search"`
	Type         string `query:"test_type"`
	Status       string `query:"status"`
	CourseID     string `query:"course_id"`
	InstructorID string `query:"instructor_id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Type == "" && qf.Status == "" &&
		qf.CourseID == "" && qf.InstructorID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Type = core.CleanString(qf.Type, true /* lower */)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}
