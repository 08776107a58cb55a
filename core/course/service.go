package course

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Digitalguyco/convade-backend/core"
	"github.com/Digitalguyco/convade-backend/core/user"
)

var (
	// errors
	ErrNotFound            = errors.New("course not found")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrModuleNotFound      = errors.New("module not found")
	ErrLessonNotFound      = errors.New("lesson not found")
	ErrEnrollmentNotFound  = errors.New("enrollment not found")
	ErrCodeExists          = errors.New("a course with this code already exists")
	ErrAlreadyEnrolled     = errors.New("student is already enrolled in this course")
	ErrEnrollmentClosed    = errors.New("enrollment is closed for this course")
	ErrCourseFull          = errors.New("course has no available slots")
	ErrSelfEnrollDisabled  = errors.New("this course does not allow self-enrollment")
	ErrCourseNotPublished  = errors.New("course is not published")
	ErrEnrollmentNotActive = errors.New("enrollment is not active")
	ErrLessonNotInCourse   = errors.New("lesson does not belong to this course")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateCategory(ctx context.Context, cat Category) (Category, error)
		QueryCategories(ctx context.Context, activeOnly bool) ([]Category, error)
		GetCategoryByID(ctx context.Context, id string) (Category, error)
		UpdateCategory(ctx context.Context, cat Category) (Category, error)

		CheckCodeUniqueness(ctx context.Context, code string) error
		CourseSlugExists(ctx context.Context, slug string) (bool, error)
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		GetCourseBySlug(ctx context.Context, slug string) (Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		DeleteCoursesByID(ctx context.Context, ids ...string) (int, error)
		// IncrementCourseViews bumps the view counter without touching updated_at.
		IncrementCourseViews(ctx context.Context, id string) error

		CreateModule(ctx context.Context, mod Module) (Module, error)
		QueryModules(ctx context.Context, courseID string) ([]Module, error)
		GetModuleByID(ctx context.Context, id string) (Module, error)
		UpdateModule(ctx context.Context, mod Module) (Module, error)
		DeleteModulesByID(ctx context.Context, ids ...string) (int, error)

		CreateLesson(ctx context.Context, les Lesson) (Lesson, error)
		QueryLessons(ctx context.Context, moduleID string) ([]Lesson, error)
		// QueryCourseLessons returns all lessons of a course across its modules.
		QueryCourseLessons(ctx context.Context, courseID string, publishedOnly bool) ([]Lesson, error)
		GetLessonByID(ctx context.Context, id string) (Lesson, error)
		UpdateLesson(ctx context.Context, les Lesson) (Lesson, error)
		DeleteLessonsByID(ctx context.Context, ids ...string) (int, error)

		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, studentID, courseID string) (Enrollment, error)
		GetEnrollmentByID(ctx context.Context, id string) (Enrollment, error)
		QueryEnrollments(ctx context.Context, studentID, courseID, status string) ([]Enrollment, error)
		UpdateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)

		UpsertLessonProgress(ctx context.Context, lp LessonProgress) (LessonProgress, error)
		QueryLessonProgress(ctx context.Context, enrollmentID string) ([]LessonProgress, error)

		CreateAnnouncement(ctx context.Context, ann Announcement) (Announcement, error)
		QueryAnnouncements(ctx context.Context, courseID string) ([]Announcement, error)
	}

	// RecordProgress is a student's progress report on a single lesson.
	RecordProgress struct {
		LessonID             string  `json:"lesson_id" validate:"required"`
		WatchTime            int     `json:"watch_time" validate:"gte=0"`
		CompletionPercentage float64 `json:"completion_percentage" validate:"gte=0,lte=100"`
		Notes                string  `json:"notes"`
		IsBookmarked         *bool   `json:"is_bookmarked"`
	}

	// CompletionHook runs after an enrollment reaches 100% progress.
	// Wired at startup to certificate issuance and badge evaluation.
	CompletionHook func(ctx context.Context, enr Enrollment, crs Course)

	Service interface {
		CreateCategory(ctx context.Context, nc NewCategory) (Category, error)
		QueryCategories(ctx context.Context, activeOnly bool) ([]Category, error)

		CheckCodeUniqueness(ctx context.Context, code string) error
		Create(ctx context.Context, nc NewCourse, instructor user.User) (Course, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		GetByID(ctx context.Context, id string) (Course, error)
		GetBySlug(ctx context.Context, slug string) (Course, error)
		Update(ctx context.Context, id string, uc UpdateCourse) (Course, error)
		Publish(ctx context.Context, id string) (Course, error)
		Archive(ctx context.Context, id string) (Course, error)
		Delete(ctx context.Context, ids ...string) error
		RecordView(ctx context.Context, id string) error

		AddModule(ctx context.Context, nm NewModule) (Module, error)
		QueryModules(ctx context.Context, courseID string) ([]Module, error)
		PublishModule(ctx context.Context, id string) (Module, error)
		DeleteModules(ctx context.Context, ids ...string) error

		AddLesson(ctx context.Context, nl NewLesson) (Lesson, error)
		QueryLessons(ctx context.Context, moduleID string) ([]Lesson, error)
		GetLessonByID(ctx context.Context, id string) (Lesson, error)
		PublishLesson(ctx context.Context, id string) (Lesson, error)
		DeleteLessons(ctx context.Context, ids ...string) error

		// Enroll registers a student on a course, subject to the enrollment
		// window, capacity, self-enrollment and approval settings. Paid courses
		// start pending with payment outstanding.
		Enroll(ctx context.Context, studentID, courseID string) (Enrollment, error)
		GetEnrollment(ctx context.Context, studentID, courseID string) (Enrollment, error)
		GetEnrollmentByID(ctx context.Context, id string) (Enrollment, error)
		QueryEnrollments(ctx context.Context, studentID, courseID, status string) ([]Enrollment, error)
		ApproveEnrollment(ctx context.Context, id string) (Enrollment, error)
		DropEnrollment(ctx context.Context, id string) (Enrollment, error)
		// ActivateEnrollmentPayment flips payment to completed and activates the
		// enrollment unless it still needs instructor approval.
		ActivateEnrollmentPayment(ctx context.Context, id string) (Enrollment, error)
		// RecordLessonProgress stores a progress report and recomputes the
		// enrollment's overall progress from published lessons. Reaching 100%
		// completes the enrollment.
		RecordLessonProgress(ctx context.Context, enrollmentID string, rp RecordProgress) (Enrollment, error)
		QueryLessonProgress(ctx context.Context, enrollmentID string) ([]LessonProgress, error)
		UpdateGrades(ctx context.Context, enrollmentID string, currentGrade, finalGrade float64) (Enrollment, error)

		Announce(ctx context.Context, na NewAnnouncement, instructor user.User) (Announcement, error)
		QueryAnnouncements(ctx context.Context, courseID string) ([]Announcement, error)

		SetCompletionHook(hook CompletionHook)
	}

	service struct {
		repo           Repository
		usrSvc         user.Service
		mailSvc        core.EmailService
		completionHook CompletionHook
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

func (svc *service) SetCompletionHook(hook CompletionHook) {
	svc.completionHook = hook
}

func (svc *service) CreateCategory(ctx context.Context, nc NewCategory) (Category, error) {
	now := nowFunc().UTC()
	cat := Category{
		Name:        nc.Name,
		Slug:        core.Slugify(nc.Name),
		Description: nc.Description,
		Icon:        nc.Icon,
		Color:       nc.Color,
		IsActive:    true,
		SortOrder:   nc.SortOrder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateCategory(ctx, cat)
}

func (svc *service) QueryCategories(ctx context.Context, activeOnly bool) ([]Category, error) {
	return svc.repo.QueryCategories(ctx, activeOnly)
}

func (svc *service) CheckCodeUniqueness(ctx context.Context, code string) error {
	if err := svc.repo.CheckCodeUniqueness(ctx, code); err != nil {
		if err == ErrCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "course_code", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nc NewCourse, instructor user.User) (Course, error) {
	slug, err := svc.newUniqueSlug(ctx, nc.Title, nc.CourseCode)
	if err != nil {
		return Course{}, err
	}

	now := nowFunc().UTC()
	crs := Course{
		Title:            nc.Title,
		Slug:             slug,
		Description:      nc.Description,
		ShortDescription: nc.ShortDescription,

		CourseCode:   nc.CourseCode,
		CategoryID:   nc.CategoryID,
		InstructorID: instructor.ID,
		SchoolID:     nc.SchoolID,

		ThumbnailURL:  nc.ThumbnailURL,
		IntroVideoURL: nc.IntroVideoURL,
		SyllabusURL:   nc.SyllabusURL,

		Status:     StatusDraft,
		Difficulty: nc.Difficulty,
		IsFree:     true,
		PriceCents: nc.PriceCents,

		EstimatedDuration: nc.EstimatedDuration,
		StartDate:         nc.StartDate,
		EndDate:           nc.EndDate,
		EnrollmentStart:   nc.EnrollmentStart,
		EnrollmentEnd:     nc.EnrollmentEnd,

		MaxStudents:         nc.MaxStudents,
		AllowSelfEnrollment: true,
		RequiresApproval:    nc.RequiresApproval,

		PassingScore:       nc.PassingScore,
		CertificateEnabled: true,

		CreatedAt: now,
		UpdatedAt: now,
	}
	if nc.IsFree != nil {
		crs.IsFree = *nc.IsFree
	}
	if nc.AllowSelfEnrollment != nil {
		crs.AllowSelfEnrollment = *nc.AllowSelfEnrollment
	}
	if nc.CertificateEnabled != nil {
		crs.CertificateEnabled = *nc.CertificateEnabled
	}
	if crs.PriceCents > 0 {
		crs.IsFree = false
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *service) GetBySlug(ctx context.Context, slug string) (Course, error) {
	return svc.repo.GetCourseBySlug(ctx, slug)
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	crs, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, err
	}

	if uc.Title != "" {
		crs.Title = uc.Title
	}
	if uc.Description != "" {
		crs.Description = uc.Description
	}
	if uc.ShortDescription != "" {
		crs.ShortDescription = uc.ShortDescription
	}
	if uc.CategoryID != "" {
		crs.CategoryID = uc.CategoryID
	}
	if uc.ThumbnailURL != "" {
		crs.ThumbnailURL = uc.ThumbnailURL
	}
	if uc.IntroVideoURL != "" {
		crs.IntroVideoURL = uc.IntroVideoURL
	}
	if uc.SyllabusURL != "" {
		crs.SyllabusURL = uc.SyllabusURL
	}
	if uc.Difficulty != "" {
		crs.Difficulty = uc.Difficulty
	}
	if uc.IsFree != nil {
		crs.IsFree = *uc.IsFree
	}
	if uc.PriceCents != nil {
		crs.PriceCents = *uc.PriceCents
		crs.IsFree = crs.PriceCents == 0
	}
	if uc.EstimatedDuration != nil {
		crs.EstimatedDuration = *uc.EstimatedDuration
	}
	if !uc.StartDate.IsZero() {
		crs.StartDate = uc.StartDate
	}
	if !uc.EndDate.IsZero() {
		crs.EndDate = uc.EndDate
	}
	if !uc.EnrollmentStart.IsZero() {
		crs.EnrollmentStart = uc.EnrollmentStart
	}
	if !uc.EnrollmentEnd.IsZero() {
		crs.EnrollmentEnd = uc.EnrollmentEnd
	}
	if uc.MaxStudents != nil {
		crs.MaxStudents = *uc.MaxStudents
	}
	if uc.AllowSelfEnrollment != nil {
		crs.AllowSelfEnrollment = *uc.AllowSelfEnrollment
	}
	if uc.RequiresApproval != nil {
		crs.RequiresApproval = *uc.RequiresApproval
	}
	if uc.PassingScore != nil {
		crs.PassingScore = *uc.PassingScore
	}
	if uc.CertificateEnabled != nil {
		crs.CertificateEnabled = *uc.CertificateEnabled
	}
	crs.UpdatedAt = nowFunc().UTC()

	return svc.repo.UpdateCourse(ctx, crs)
}

func (svc *service) Publish(ctx context.Context, id string) (Course, error) {
	crs, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if crs.Status == StatusPublished {
		return crs, nil
	}
	now := nowFunc().UTC()
	crs.Status = StatusPublished
	crs.PublishedAt = now
	crs.UpdatedAt = now
	return svc.repo.UpdateCourse(ctx, crs)
}

func (svc *service) Archive(ctx context.Context, id string) (Course, error) {
	crs, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	crs.Status = StatusArchived
	crs.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateCourse(ctx, crs)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteCoursesByID(ctx, ids...)
	return err
}

func (svc *service) RecordView(ctx context.Context, id string) error {
	return svc.repo.IncrementCourseViews(ctx, id)
}

func (svc *service) AddModule(ctx context.Context, nm NewModule) (Module, error) {
	if _, err := svc.repo.GetCourseByID(ctx, nm.CourseID); err != nil {
		return Module{}, err
	}
	now := nowFunc().UTC()
	mod := Module{
		CourseID:          nm.CourseID,
		Title:             nm.Title,
		Description:       nm.Description,
		Order:             nm.Order,
		EstimatedDuration: nm.EstimatedDuration,
		UnlockAfterID:     nm.UnlockAfterID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return svc.repo.CreateModule(ctx, mod)
}

func (svc *service) QueryModules(ctx context.Context, courseID string) ([]Module, error) {
	return svc.repo.QueryModules(ctx, courseID)
}

func (svc *service) PublishModule(ctx context.Context, id string) (Module, error) {
	mod, err := svc.repo.GetModuleByID(ctx, id)
	if err != nil {
		return Module{}, err
	}
	mod.IsPublished = true
	mod.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateModule(ctx, mod)
}

func (svc *service) DeleteModules(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteModulesByID(ctx, ids...)
	return err
}

func (svc *service) AddLesson(ctx context.Context, nl NewLesson) (Lesson, error) {
	if _, err := svc.repo.GetModuleByID(ctx, nl.ModuleID); err != nil {
		return Lesson{}, err
	}
	now := nowFunc().UTC()
	les := Lesson{
		ModuleID:        nl.ModuleID,
		Title:           nl.Title,
		Type:            nl.Type,
		Content:         nl.Content,
		VideoURL:        nl.VideoURL,
		AttachmentURL:   nl.AttachmentURL,
		Order:           nl.Order,
		IsFreePreview:   nl.IsFreePreview,
		Duration:        nl.Duration,
		LiveSessionDate: nl.LiveSessionDate,
		LiveSessionURL:  nl.LiveSessionURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return svc.repo.CreateLesson(ctx, les)
}

func (svc *service) QueryLessons(ctx context.Context, moduleID string) ([]Lesson, error) {
	return svc.repo.QueryLessons(ctx, moduleID)
}

func (svc *service) GetLessonByID(ctx context.Context, id string) (Lesson, error) {
	return svc.repo.GetLessonByID(ctx, id)
}

func (svc *service) PublishLesson(ctx context.Context, id string) (Lesson, error) {
	les, err := svc.repo.GetLessonByID(ctx, id)
	if err != nil {
		return Lesson{}, err
	}
	les.IsPublished = true
	les.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateLesson(ctx, les)
}

func (svc *service) DeleteLessons(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteLessonsByID(ctx, ids...)
	return err
}

func (svc *service) Enroll(ctx context.Context, studentID, courseID string) (Enrollment, error) {
	crs, err := svc.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return Enrollment{}, err
	}

	now := nowFunc().UTC()
	switch {
	case crs.Status != StatusPublished:
		return Enrollment{}, core.NewValidationError(ErrCourseNotPublished)
	case !crs.AllowSelfEnrollment:
		return Enrollment{}, core.NewValidationError(ErrSelfEnrollDisabled)
	case !crs.IsEnrollmentOpen(now):
		return Enrollment{}, core.NewValidationError(ErrEnrollmentClosed)
	case crs.AvailableSlots() == 0:
		return Enrollment{}, core.NewValidationError(ErrCourseFull)
	}

	if _, err = svc.repo.GetEnrollment(ctx, studentID, courseID); err == nil {
		return Enrollment{}, core.NewValidationError(ErrAlreadyEnrolled)
	} else if errors.Cause(err) != ErrEnrollmentNotFound {
		return Enrollment{}, err
	}

	enr := Enrollment{
		StudentID:        studentID,
		CourseID:         courseID,
		Status:           EnrollmentActive,
		EnrollmentDate:   now,
		PaymentCompleted: true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if !crs.IsFree {
		enr.Status = EnrollmentPending
		enr.PaymentCompleted = false
	}
	if crs.RequiresApproval {
		enr.Status = EnrollmentPending
	}

	enr, err = svc.repo.CreateEnrollment(ctx, enr)
	if err != nil {
		return Enrollment{}, err
	}

	crs.EnrollmentCount++
	if _, err = svc.repo.UpdateCourse(ctx, crs); err != nil {
		return Enrollment{}, errors.Wrap(err, "bumping enrollment count")
	}
	return enr, nil
}

func (svc *service) GetEnrollment(ctx context.Context, studentID, courseID string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, studentID, courseID)
}

func (svc *service) GetEnrollmentByID(ctx context.Context, id string) (Enrollment, error) {
	return svc.repo.GetEnrollmentByID(ctx, id)
}

func (svc *service) QueryEnrollments(ctx context.Context, studentID, courseID, status string) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, studentID, courseID, status)
}

func (svc *service) ApproveEnrollment(ctx context.Context, id string) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollmentByID(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	if enr.Status != EnrollmentPending {
		return enr, nil
	}
	if enr.PaymentCompleted {
		enr.Status = EnrollmentActive
	}
	enr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateEnrollment(ctx, enr)
}

func (svc *service) DropEnrollment(ctx context.Context, id string) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollmentByID(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	enr.Status = EnrollmentDropped
	enr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateEnrollment(ctx, enr)
}

func (svc *service) ActivateEnrollmentPayment(ctx context.Context, id string) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollmentByID(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	crs, err := svc.repo.GetCourseByID(ctx, enr.CourseID)
	if err != nil {
		return Enrollment{}, err
	}

	now := nowFunc().UTC()
	enr.PaymentCompleted = true
	enr.PaymentDate = now
	if enr.Status == EnrollmentPending && !crs.RequiresApproval {
		enr.Status = EnrollmentActive
	}
	enr.UpdatedAt = now
	return svc.repo.UpdateEnrollment(ctx, enr)
}

func (svc *service) RecordLessonProgress(ctx context.Context, enrollmentID string, rp RecordProgress) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollmentByID(ctx, enrollmentID)
	if err != nil {
		return Enrollment{}, err
	}
	if enr.Status != EnrollmentActive {
		return Enrollment{}, core.NewValidationError(ErrEnrollmentNotActive)
	}
	les, err := svc.repo.GetLessonByID(ctx, rp.LessonID)
	if err != nil {
		return Enrollment{}, err
	}
	mod, err := svc.repo.GetModuleByID(ctx, les.ModuleID)
	if err != nil {
		return Enrollment{}, err
	}
	if mod.CourseID != enr.CourseID {
		return Enrollment{}, core.NewValidationError(ErrLessonNotInCourse)
	}

	now := nowFunc().UTC()
	lp := LessonProgress{
		EnrollmentID:         enrollmentID,
		LessonID:             les.ID,
		Status:               ProgressInProgress,
		StartedAt:            now,
		WatchTime:            rp.WatchTime,
		CompletionPercentage: rp.CompletionPercentage,
		Notes:                rp.Notes,
		LastAccessed:         now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if rp.IsBookmarked != nil {
		lp.IsBookmarked = *rp.IsBookmarked
	}
	if rp.CompletionPercentage >= 100 {
		lp.Status = ProgressCompleted
		lp.CompletedAt = now
	}
	if _, err = svc.repo.UpsertLessonProgress(ctx, lp); err != nil {
		return Enrollment{}, err
	}

	return svc.recomputeProgress(ctx, enr)
}

// recomputeProgress recalculates the enrollment's overall progress from
// published lessons and completes it at 100%.
func (svc *service) recomputeProgress(ctx context.Context, enr Enrollment) (Enrollment, error) {
	lessons, err := svc.repo.QueryCourseLessons(ctx, enr.CourseID, true /* publishedOnly */)
	if err != nil {
		return Enrollment{}, err
	}
	progress, err := svc.repo.QueryLessonProgress(ctx, enr.ID)
	if err != nil {
		return Enrollment{}, err
	}

	completed := make(map[string]bool, len(progress))
	for _, lp := range progress {
		if lp.Status == ProgressCompleted {
			completed[lp.LessonID] = true
		}
	}
	var done int
	for _, les := range lessons {
		if completed[les.ID] {
			done++
		}
	}

	now := nowFunc().UTC()
	enr.LastAccessed = now
	enr.UpdatedAt = now
	if len(lessons) > 0 {
		enr.ProgressPercentage = float64(done) / float64(len(lessons)) * 100
	}

	if len(lessons) > 0 && done == len(lessons) && enr.Status == EnrollmentActive {
		enr.Status = EnrollmentCompleted
		enr.CompletionDate = now

		crs, err := svc.repo.GetCourseByID(ctx, enr.CourseID)
		if err != nil {
			return Enrollment{}, err
		}
		crs.CompletionCount++
		if _, err = svc.repo.UpdateCourse(ctx, crs); err != nil {
			return Enrollment{}, errors.Wrap(err, "bumping completion count")
		}

		enr, err = svc.repo.UpdateEnrollment(ctx, enr)
		if err != nil {
			return Enrollment{}, err
		}
		if svc.completionHook != nil {
			svc.completionHook(ctx, enr, crs)
		}
		return enr, nil
	}

	return svc.repo.UpdateEnrollment(ctx, enr)
}

func (svc *service) QueryLessonProgress(ctx context.Context, enrollmentID string) ([]LessonProgress, error) {
	return svc.repo.QueryLessonProgress(ctx, enrollmentID)
}

func (svc *service) UpdateGrades(ctx context.Context, enrollmentID string, currentGrade, finalGrade float64) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollmentByID(ctx, enrollmentID)
	if err != nil {
		return Enrollment{}, err
	}
	enr.CurrentGrade = currentGrade
	if finalGrade > 0 {
		enr.FinalGrade = finalGrade
	}
	enr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateEnrollment(ctx, enr)
}

func (svc *service) Announce(ctx context.Context, na NewAnnouncement, instructor user.User) (Announcement, error) {
	crs, err := svc.repo.GetCourseByID(ctx, na.CourseID)
	if err != nil {
		return Announcement{}, err
	}

	now := nowFunc().UTC()
	ann := Announcement{
		CourseID:     na.CourseID,
		InstructorID: instructor.ID,
		Title:        na.Title,
		Content:      na.Content,
		IsUrgent:     na.IsUrgent,
		IsPublished:  true,
		SendEmail:    na.SendEmail,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	ann, err = svc.repo.CreateAnnouncement(ctx, ann)
	if err != nil {
		return Announcement{}, err
	}

	if ann.SendEmail {
		go svc.emailAnnouncement(ann, crs)
	}
	return ann, nil
}

func (svc *service) QueryAnnouncements(ctx context.Context, courseID string) ([]Announcement, error) {
	return svc.repo.QueryAnnouncements(ctx, courseID)
}

func (svc *service) emailAnnouncement(ann Announcement, crs Course) {
	ctx := context.Background()
	enrollments, err := svc.repo.QueryEnrollments(ctx, "", crs.ID, EnrollmentActive)
	if err != nil {
		return
	}

	var msgs []*core.EmailMessage
	for _, enr := range enrollments {
		usr, err := svc.usrSvc.GetByID(ctx, enr.StudentID)
		if err != nil || !usr.EmailNotifications {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
			Subject:      fmt.Sprintf("%s: %s", crs.Title, ann.Title),
			TemplateName: "announcement",
			TemplateData: struct {
				Name        string
				CourseTitle string
				Title       string
				Content     string
				IsUrgent    bool
			}{usr.FirstName, crs.Title, ann.Title, ann.Content, ann.IsUrgent},
		})
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
}

// newUniqueSlug slugifies the title, falling back to a code-suffixed slug
// on collision.
func (svc *service) newUniqueSlug(ctx context.Context, title, code string) (string, error) {
	slug := core.Slugify(title)
	exists, err := svc.repo.CourseSlugExists(ctx, slug)
	if err != nil {
		return "", err
	}
	if !exists {
		return slug, nil
	}
	return slug + "-" + strings.ToLower(code), nil
}
