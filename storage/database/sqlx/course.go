package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Digitalguyco/convade-backend/core"
	"github.com/Digitalguyco/convade-backend/core/course"
)

type categoryRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Slug        string    `db:"slug"`
	Description string    `db:"description"`
	Icon        string    `db:"icon"`
	Color       string    `db:"color"`
	IsActive    bool      `db:"is_active"`
	SortOrder   int       `db:"sort_order"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r categoryRow) toDomain() course.Category {
	return course.Category{
		ID:          r.ID,
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		Icon:        r.Icon,
		Color:       r.Color,
		IsActive:    r.IsActive,
		SortOrder:   r.SortOrder,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

const categoryColumns = `id, name, slug, description, icon, color, is_active, sort_order, created_at, updated_at`

type courseRow struct {
	ID               string      `db:"id"`
	Title            string      `db:"title"`
	Slug             string      `db:"slug"`
	Description      string      `db:"description"`
	ShortDescription string      `db:"short_description"`
	CourseCode       string      `db:"course_code"`
	CategoryID       null.String `db:"category_id"`
	InstructorID     string      `db:"instructor_id"`
	SchoolID         null.String `db:"school_id"`

	ThumbnailURL  string `db:"thumbnail_url"`
	IntroVideoURL string `db:"intro_video_url"`
	SyllabusURL   string `db:"syllabus_url"`

	Status     string `db:"status"`
	Difficulty string `db:"difficulty"`
	IsFree     bool   `db:"is_free"`
	PriceCents int64  `db:"price_cents"`

	EstimatedDuration int       `db:"estimated_duration"`
	StartDate         null.Time `db:"start_date"`
	EndDate           null.Time `db:"end_date"`
	EnrollmentStart   null.Time `db:"enrollment_start"`
	EnrollmentEnd     null.Time `db:"enrollment_end"`

	MaxStudents         int  `db:"max_students"`
	AllowSelfEnrollment bool `db:"allow_self_enrollment"`
	RequiresApproval    bool `db:"requires_approval"`

	PassingScore       int  `db:"passing_score"`
	CertificateEnabled bool `db:"certificate_enabled"`

	ViewCount       int `db:"view_count"`
	EnrollmentCount int `db:"enrollment_count"`
	CompletionCount int `db:"completion_count"`

	PublishedAt null.Time `db:"published_at"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r courseRow) toDomain() course.Course {
	return course.Course{
		ID:               r.ID,
		Title:            r.Title,
		Slug:             r.Slug,
		Description:      r.Description,
		ShortDescription: r.ShortDescription,

		CourseCode:   r.CourseCode,
		CategoryID:   r.CategoryID.String,
		InstructorID: r.InstructorID,
		SchoolID:     r.SchoolID.String,

		ThumbnailURL:  r.ThumbnailURL,
		IntroVideoURL: r.IntroVideoURL,
		SyllabusURL:   r.SyllabusURL,

		Status:     r.Status,
		Difficulty: r.Difficulty,
		IsFree:     r.IsFree,
		PriceCents: r.PriceCents,

		EstimatedDuration: r.EstimatedDuration,
		StartDate:         fromNullTime(r.StartDate),
		EndDate:           fromNullTime(r.EndDate),
		EnrollmentStart:   fromNullTime(r.EnrollmentStart),
		EnrollmentEnd:     fromNullTime(r.EnrollmentEnd),

		MaxStudents:         r.MaxStudents,
		AllowSelfEnrollment: r.AllowSelfEnrollment,
		RequiresApproval:    r.RequiresApproval,

		PassingScore:       r.PassingScore,
		CertificateEnabled: r.CertificateEnabled,

		ViewCount:       r.ViewCount,
		EnrollmentCount: r.EnrollmentCount,
		CompletionCount: r.CompletionCount,

		PublishedAt: fromNullTime(r.PublishedAt),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func newCourseRow(crs course.Course) courseRow {
	return courseRow{
		ID:               crs.ID,
		Title:            crs.Title,
		Slug:             crs.Slug,
		Description:      crs.Description,
		ShortDescription: crs.ShortDescription,

		CourseCode:   crs.CourseCode,
		CategoryID:   nullString(crs.CategoryID),
		InstructorID: crs.InstructorID,
		SchoolID:     nullString(crs.SchoolID),

		ThumbnailURL:  crs.ThumbnailURL,
		IntroVideoURL: crs.IntroVideoURL,
		SyllabusURL:   crs.SyllabusURL,

		Status:     crs.Status,
		Difficulty: crs.Difficulty,
		IsFree:     crs.IsFree,
		PriceCents: crs.PriceCents,

		EstimatedDuration: crs.EstimatedDuration,
		StartDate:         nullTime(crs.StartDate),
		EndDate:           nullTime(crs.EndDate),
		EnrollmentStart:   nullTime(crs.EnrollmentStart),
		EnrollmentEnd:     nullTime(crs.EnrollmentEnd),

		MaxStudents:         crs.MaxStudents,
		AllowSelfEnrollment: crs.AllowSelfEnrollment,
		RequiresApproval:    crs.RequiresApproval,

		PassingScore:       crs.PassingScore,
		CertificateEnabled: crs.CertificateEnabled,

		ViewCount:       crs.ViewCount,
		EnrollmentCount: crs.EnrollmentCount,
		CompletionCount: crs.CompletionCount,

		PublishedAt: nullTime(crs.PublishedAt),
		CreatedAt:   crs.CreatedAt,
		UpdatedAt:   crs.UpdatedAt,
	}
}

const courseColumns = `id, title, slug, description, short_description, course_code, category_id,
	instructor_id, school_id, thumbnail_url, intro_video_url, syllabus_url, status, difficulty,
	is_free, price_cents, estimated_duration, start_date, end_date, enrollment_start,
	enrollment_end, max_students, allow_self_enrollment, requires_approval, passing_score,
	certificate_enabled, view_count, enrollment_count, completion_count, published_at,
	created_at, updated_at`

type moduleRow struct {
	ID                string      `db:"id"`
	CourseID          string      `db:"course_id"`
	Title             string      `db:"title"`
	Description       string      `db:"description"`
	Order             int         `db:"module_order"`
	IsPublished       bool        `db:"is_published"`
	EstimatedDuration int         `db:"estimated_duration"`
	UnlockAfterID     null.String `db:"unlock_after_id"`
	CreatedAt         time.Time   `db:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at"`
}

func (r moduleRow) toDomain() course.Module {
	return course.Module{
		ID:                r.ID,
		CourseID:          r.CourseID,
		Title:             r.Title,
		Description:       r.Description,
		Order:             r.Order,
		IsPublished:       r.IsPublished,
		EstimatedDuration: r.EstimatedDuration,
		UnlockAfterID:     r.UnlockAfterID.String,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

const moduleColumns = `id, course_id, title, description, module_order, is_published,
	estimated_duration, unlock_after_id, created_at, updated_at`

type lessonRow struct {
	ID            string `db:"id"`
	ModuleID      string `db:"module_id"`
	Title         string `db:"title"`
	Type          string `db:"lesson_type"`
	Content       string `db:"content"`
	VideoURL      string `db:"video_url"`
	AttachmentURL string `db:"attachment_url"`
	Order         int    `db:"lesson_order"`
	IsPublished   bool   `db:"is_published"`
	IsFreePreview bool   `db:"is_free_preview"`
	Duration      int    `db:"duration"`

	LiveSessionDate null.Time `db:"live_session_date"`
	LiveSessionURL  string    `db:"live_session_url"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r lessonRow) toDomain() course.Lesson {
	return course.Lesson{
		ID:              r.ID,
		ModuleID:        r.ModuleID,
		Title:           r.Title,
		Type:            r.Type,
		Content:         r.Content,
		VideoURL:        r.VideoURL,
		AttachmentURL:   r.AttachmentURL,
		Order:           r.Order,
		IsPublished:     r.IsPublished,
		IsFreePreview:   r.IsFreePreview,
		Duration:        r.Duration,
		LiveSessionDate: fromNullTime(r.LiveSessionDate),
		LiveSessionURL:  r.LiveSessionURL,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

const lessonColumns = `id, module_id, title, lesson_type, content, video_url, attachment_url,
	lesson_order, is_published, is_free_preview, duration, live_session_date, live_session_url,
	created_at, updated_at`

type enrollmentRow struct {
	ID        string `db:"id"`
	StudentID string `db:"student_id"`
	CourseID  string `db:"course_id"`

	Status         string    `db:"status"`
	EnrollmentDate time.Time `db:"enrollment_date"`
	CompletionDate null.Time `db:"completion_date"`

	ProgressPercentage float64 `db:"progress_percentage"`
	CurrentGrade       float64 `db:"current_grade"`
	FinalGrade         float64 `db:"final_grade"`
	TotalStudyTime     int     `db:"total_study_time"`

	PaymentCompleted bool      `db:"payment_completed"`
	PaymentDate      null.Time `db:"payment_date"`

	CertificateIssued bool      `db:"certificate_issued"`
	CertificateDate   null.Time `db:"certificate_date"`

	LastAccessed null.Time `db:"last_accessed"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r enrollmentRow) toDomain() course.Enrollment {
	return course.Enrollment{
		ID:                 r.ID,
		StudentID:          r.StudentID,
		CourseID:           r.CourseID,
		Status:             r.Status,
		EnrollmentDate:     r.EnrollmentDate.UTC(),
		CompletionDate:     fromNullTime(r.CompletionDate),
		ProgressPercentage: r.ProgressPercentage,
		LastAccessed:       fromNullTime(r.LastAccessed),
		CurrentGrade:       r.CurrentGrade,
		FinalGrade:         r.FinalGrade,
		TotalStudyTime:     r.TotalStudyTime,
		CertificateIssued:  r.CertificateIssued,
		CertificateDate:    fromNullTime(r.CertificateDate),
		PaymentCompleted:   r.PaymentCompleted,
		PaymentDate:        fromNullTime(r.PaymentDate),
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
}

func newEnrollmentRow(enr course.Enrollment) enrollmentRow {
	return enrollmentRow{
		ID:                 enr.ID,
		StudentID:          enr.StudentID,
		CourseID:           enr.CourseID,
		Status:             enr.Status,
		EnrollmentDate:     enr.EnrollmentDate,
		CompletionDate:     nullTime(enr.CompletionDate),
		ProgressPercentage: enr.ProgressPercentage,
		CurrentGrade:       enr.CurrentGrade,
		FinalGrade:         enr.FinalGrade,
		TotalStudyTime:     enr.TotalStudyTime,
		PaymentCompleted:   enr.PaymentCompleted,
		PaymentDate:        nullTime(enr.PaymentDate),
		CertificateIssued:  enr.CertificateIssued,
		CertificateDate:    nullTime(enr.CertificateDate),
		LastAccessed:       nullTime(enr.LastAccessed),
		CreatedAt:          enr.CreatedAt,
		UpdatedAt:          enr.UpdatedAt,
	}
}

const enrollmentColumns = `id, student_id, course_id, status, enrollment_date, completion_date,
	progress_percentage, current_grade, final_grade, total_study_time, payment_completed,
	payment_date, certificate_issued, certificate_date, last_accessed, created_at, updated_at`

type lessonProgressRow struct {
	ID           string `db:"id"`
	EnrollmentID string `db:"enrollment_id"`
	LessonID     string `db:"lesson_id"`

	Status      string    `db:"status"`
	StartedAt   null.Time `db:"started_at"`
	CompletedAt null.Time `db:"completed_at"`

	WatchTime            int     `db:"watch_time"`
	CompletionPercentage float64 `db:"completion_percentage"`

	Notes        string `db:"notes"`
	IsBookmarked bool   `db:"is_bookmarked"`

	LastAccessed null.Time `db:"last_accessed"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r lessonProgressRow) toDomain() course.LessonProgress {
	return course.LessonProgress{
		ID:                   r.ID,
		EnrollmentID:         r.EnrollmentID,
		LessonID:             r.LessonID,
		Status:               r.Status,
		StartedAt:            fromNullTime(r.StartedAt),
		CompletedAt:          fromNullTime(r.CompletedAt),
		WatchTime:            r.WatchTime,
		CompletionPercentage: r.CompletionPercentage,
		Notes:                r.Notes,
		IsBookmarked:         r.IsBookmarked,
		LastAccessed:         fromNullTime(r.LastAccessed),
		CreatedAt:            r.CreatedAt.UTC(),
		UpdatedAt:            r.UpdatedAt.UTC(),
	}
}

const lessonProgressColumns = `id, enrollment_id, lesson_id, status, started_at, completed_at,
	watch_time, completion_percentage, notes, is_bookmarked, last_accessed, created_at, updated_at`

type announcementRow struct {
	ID           string    `db:"id"`
	CourseID     string    `db:"course_id"`
	InstructorID string    `db:"instructor_id"`
	Title        string    `db:"title"`
	Content      string    `db:"content"`
	IsUrgent     bool      `db:"is_urgent"`
	IsPublished  bool      `db:"is_published"`
	SendEmail    bool      `db:"send_email"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r announcementRow) toDomain() course.Announcement {
	return course.Announcement{
		ID:           r.ID,
		CourseID:     r.CourseID,
		InstructorID: r.InstructorID,
		Title:        r.Title,
		Content:      r.Content,
		IsUrgent:     r.IsUrgent,
		IsPublished:  r.IsPublished,
		SendEmail:    r.SendEmail,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

const announcementColumns = `id, course_id, instructor_id, title, content, is_urgent,
	is_published, send_email, created_at, updated_at`

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCategory(ctx context.Context, cat course.Category) (course.Category, error) {
	if cat.ID == "" {
		cat.ID = uuid.NewString()
	}
	q := `INSERT INTO course_categories (` + categoryColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := repo.db.ExecContext(ctx, q,
		cat.ID, cat.Name, cat.Slug, cat.Description, cat.Icon, cat.Color,
		cat.IsActive, cat.SortOrder, cat.CreatedAt, cat.UpdatedAt)
	if err != nil {
		return course.Category{}, errors.Wrap(err, "creating category")
	}
	return cat, nil
}

func (repo *courseRepository) QueryCategories(ctx context.Context, activeOnly bool) ([]course.Category, error) {
	q := `SELECT ` + categoryColumns + ` FROM course_categories`
	if activeOnly {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY sort_order ASC, name ASC`

	var rows []categoryRow
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying categories")
	}
	cats := make([]course.Category, 0, len(rows))
	for _, row := range rows {
		cats = append(cats, row.toDomain())
	}
	return cats, nil
}

func (repo *courseRepository) GetCategoryByID(ctx context.Context, id string) (course.Category, error) {
	var row categoryRow
	q := `SELECT ` + categoryColumns + ` FROM course_categories WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return course.Category{}, course.ErrCategoryNotFound
		}
		return course.Category{}, errors.Wrap(err, "getting category")
	}
	return row.toDomain(), nil
}

func (repo *courseRepository) UpdateCategory(ctx context.Context, cat course.Category) (course.Category, error) {
	q := `UPDATE course_categories SET
		name = $1, slug = $2, description = $3, icon = $4, color = $5, is_active = $6,
		sort_order = $7, updated_at = $8
	WHERE id = $9`
	res, err := repo.db.ExecContext(ctx, q,
		cat.Name, cat.Slug, cat.Description, cat.Icon, cat.Color, cat.IsActive,
		cat.SortOrder, cat.UpdatedAt, cat.ID)
	if err != nil {
		return course.Category{}, errors.Wrap(err, "updating category")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Category{}, course.ErrCategoryNotFound
	}
	return cat, nil
}

func (repo *courseRepository) CheckCodeUniqueness(ctx context.Context, code string) error {
	var count int
	if err := repo.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM courses WHERE course_code = $1`, code); err != nil {
		return errors.Wrap(err, "checking course code uniqueness")
	}
	if count > 0 {
		return course.ErrCodeExists
	}
	return nil
}

func (repo *courseRepository) CourseSlugExists(ctx context.Context, slug string) (bool, error) {
	var count int
	if err := repo.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM courses WHERE slug = $1`, slug); err != nil {
		return false, errors.Wrap(err, "checking course slug")
	}
	return count > 0, nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	if crs.ID == "" {
		crs.ID = uuid.NewString()
	}
	q := `INSERT INTO courses (` + courseColumns + `) VALUES (
		:id, :title, :slug, :description, :short_description, :course_code, :category_id,
		:instructor_id, :school_id, :thumbnail_url, :intro_video_url, :syllabus_url, :status,
		:difficulty, :is_free, :price_cents, :estimated_duration, :start_date, :end_date,
		:enrollment_start, :enrollment_end, :max_students, :allow_self_enrollment,
		:requires_approval, :passing_score, :certificate_enabled, :view_count,
		:enrollment_count, :completion_count, :published_at, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, newCourseRow(crs)); err != nil {
		return course.Course{}, errors.Wrap(err, "creating course")
	}
	return crs, nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	q := `SELECT ` + courseColumns + ` FROM courses`
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			conds = append(conds, fmt.Sprintf("(title ILIKE %[1]s OR course_code ILIKE %[1]s OR description ILIKE %[1]s)", p))
		}
		if filter.Status != "" {
			conds = append(conds, "status = "+arg(filter.Status))
		}
		if filter.Difficulty != "" {
			conds = append(conds, "difficulty = "+arg(filter.Difficulty))
		}
		if filter.CategoryID != "" {
			conds = append(conds, "category_id = "+arg(filter.CategoryID))
		}
		if filter.SchoolID != "" {
			conds = append(conds, "school_id = "+arg(filter.SchoolID))
		}
		if filter.InstructorID != "" {
			conds = append(conds, "instructor_id = "+arg(filter.InstructorID))
		}
		if filter.IsFree != nil {
			conds = append(conds, "is_free = "+arg(*filter.IsFree))
		}
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += orderBy(ordering, "created_at DESC")

	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toDomain())
	}
	return courses, nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	q := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "getting course")
	}
	return row.toDomain(), nil
}

func (repo *courseRepository) GetCourseBySlug(ctx context.Context, slug string) (course.Course, error) {
	var row courseRow
	q := `SELECT ` + courseColumns + ` FROM courses WHERE slug = $1`
	if err := repo.db.GetContext(ctx, &row, q, slug); err != nil {
		if isNoRows(err) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "getting course by slug")
	}
	return row.toDomain(), nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	q := `UPDATE courses SET
		title = :title, slug = :slug, description = :description,
		short_description = :short_description, category_id = :category_id,
		thumbnail_url = :thumbnail_url, intro_video_url = :intro_video_url,
		syllabus_url = :syllabus_url, status = :status, difficulty = :difficulty,
		is_free = :is_free, price_cents = :price_cents, estimated_duration = :estimated_duration,
		start_date = :start_date, end_date = :end_date, enrollment_start = :enrollment_start,
		enrollment_end = :enrollment_end, max_students = :max_students,
		allow_self_enrollment = :allow_self_enrollment, requires_approval = :requires_approval,
		passing_score = :passing_score, certificate_enabled = :certificate_enabled,
		enrollment_count = :enrollment_count, completion_count = :completion_count,
		published_at = :published_at, updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newCourseRow(crs))
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return crs, nil
}

func (repo *courseRepository) DeleteCoursesByID(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM courses WHERE id = ANY($1)`, stringArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting courses")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo *courseRepository) IncrementCourseViews(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE courses SET view_count = view_count + 1 WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "bumping course views")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo *courseRepository) CreateModule(ctx context.Context, mod course.Module) (course.Module, error) {
	if mod.ID == "" {
		mod.ID = uuid.NewString()
	}
	q := `INSERT INTO course_modules (` + moduleColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := repo.db.ExecContext(ctx, q,
		mod.ID, mod.CourseID, mod.Title, mod.Description, mod.Order, mod.IsPublished,
		mod.EstimatedDuration, nullString(mod.UnlockAfterID), mod.CreatedAt, mod.UpdatedAt)
	if err != nil {
		return course.Module{}, errors.Wrap(err, "creating module")
	}
	return mod, nil
}

func (repo *courseRepository) QueryModules(ctx context.Context, courseID string) ([]course.Module, error) {
	q := `SELECT ` + moduleColumns + ` FROM course_modules WHERE course_id = $1 ORDER BY module_order ASC`
	var rows []moduleRow
	if err := repo.db.SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}
	mods := make([]course.Module, 0, len(rows))
	for _, row := range rows {
		mods = append(mods, row.toDomain())
	}
	return mods, nil
}

func (repo *courseRepository) GetModuleByID(ctx context.Context, id string) (course.Module, error) {
	var row moduleRow
	q := `SELECT ` + moduleColumns + ` FROM course_modules WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return course.Module{}, course.ErrModuleNotFound
		}
		return course.Module{}, errors.Wrap(err, "getting module")
	}
	return row.toDomain(), nil
}

func (repo *courseRepository) UpdateModule(ctx context.Context, mod course.Module) (course.Module, error) {
	q := `UPDATE course_modules SET
		title = $1, description = $2, module_order = $3, is_published = $4,
		estimated_duration = $5, unlock_after_id = $6, updated_at = $7
	WHERE id = $8`
	res, err := repo.db.ExecContext(ctx, q,
		mod.Title, mod.Description, mod.Order, mod.IsPublished,
		mod.EstimatedDuration, nullString(mod.UnlockAfterID), mod.UpdatedAt, mod.ID)
	if err != nil {
		return course.Module{}, errors.Wrap(err, "updating module")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Module{}, course.ErrModuleNotFound
	}
	return mod, nil
}

func (repo *courseRepository) DeleteModulesByID(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM course_modules WHERE id = ANY($1)`, stringArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting modules")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo *courseRepository) CreateLesson(ctx context.Context, les course.Lesson) (course.Lesson, error) {
	if les.ID == "" {
		les.ID = uuid.NewString()
	}
	q := `INSERT INTO lessons (` + lessonColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := repo.db.ExecContext(ctx, q,
		les.ID, les.ModuleID, les.Title, les.Type, les.Content, les.VideoURL, les.AttachmentURL,
		les.Order, les.IsPublished, les.IsFreePreview, les.Duration,
		nullTime(les.LiveSessionDate), les.LiveSessionURL, les.CreatedAt, les.UpdatedAt)
	if err != nil {
		return course.Lesson{}, errors.Wrap(err, "creating lesson")
	}
	return les, nil
}

func (repo *courseRepository) QueryLessons(ctx context.Context, moduleID string) ([]course.Lesson, error) {
	q := `SELECT ` + lessonColumns + ` FROM lessons WHERE module_id = $1 ORDER BY lesson_order ASC`
	var rows []lessonRow
	if err := repo.db.SelectContext(ctx, &rows, q, moduleID); err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	lessons := make([]course.Lesson, 0, len(rows))
	for _, row := range rows {
		lessons = append(lessons, row.toDomain())
	}
	return lessons, nil
}

func (repo *courseRepository) QueryCourseLessons(ctx context.Context, courseID string, publishedOnly bool) ([]course.Lesson, error) {
	q := `SELECT l.id, l.module_id, l.title, l.lesson_type, l.content, l.video_url,
		l.attachment_url, l.lesson_order, l.is_published, l.is_free_preview, l.duration,
		l.live_session_date, l.live_session_url, l.created_at, l.updated_at
	FROM lessons l
	JOIN course_modules m ON m.id = l.module_id
	WHERE m.course_id = $1`
	if publishedOnly {
		q += ` AND l.is_published AND m.is_published`
	}
	q += ` ORDER BY m.module_order ASC, l.lesson_order ASC`

	var rows []lessonRow
	if err := repo.db.SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying course lessons")
	}
	lessons := make([]course.Lesson, 0, len(rows))
	for _, row := range rows {
		lessons = append(lessons, row.toDomain())
	}
	return lessons, nil
}

func (repo *courseRepository) GetLessonByID(ctx context.Context, id string) (course.Lesson, error) {
	var row lessonRow
	q := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return course.Lesson{}, course.ErrLessonNotFound
		}
		return course.Lesson{}, errors.Wrap(err, "getting lesson")
	}
	return row.toDomain(), nil
}

func (repo *courseRepository) UpdateLesson(ctx context.Context, les course.Lesson) (course.Lesson, error) {
	q := `UPDATE lessons SET
		title = $1, lesson_type = $2, content = $3, video_url = $4, attachment_url = $5,
		lesson_order = $6, is_published = $7, is_free_preview = $8, duration = $9,
		live_session_date = $10, live_session_url = $11, updated_at = $12
	WHERE id = $13`
	res, err := repo.db.ExecContext(ctx, q,
		les.Title, les.Type, les.Content, les.VideoURL, les.AttachmentURL,
		les.Order, les.IsPublished, les.IsFreePreview, les.Duration,
		nullTime(les.LiveSessionDate), les.LiveSessionURL, les.UpdatedAt, les.ID)
	if err != nil {
		return course.Lesson{}, errors.Wrap(err, "updating lesson")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Lesson{}, course.ErrLessonNotFound
	}
	return les, nil
}

func (repo *courseRepository) DeleteLessonsByID(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM lessons WHERE id = ANY($1)`, stringArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting lessons")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo *courseRepository) CreateEnrollment(ctx context.Context, enr course.Enrollment) (course.Enrollment, error) {
	if enr.ID == "" {
		enr.ID = uuid.NewString()
	}
	q := `INSERT INTO enrollments (` + enrollmentColumns + `) VALUES (
		:id, :student_id, :course_id, :status, :enrollment_date, :completion_date,
		:progress_percentage, :current_grade, :final_grade, :total_study_time,
		:payment_completed, :payment_date, :certificate_issued, :certificate_date,
		:last_accessed, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, newEnrollmentRow(enr)); err != nil {
		return course.Enrollment{}, errors.Wrap(err, "creating enrollment")
	}
	return enr, nil
}

func (repo *courseRepository) GetEnrollment(ctx context.Context, studentID, courseID string) (course.Enrollment, error) {
	var row enrollmentRow
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 AND course_id = $2`
	if err := repo.db.GetContext(ctx, &row, q, studentID, courseID); err != nil {
		if isNoRows(err) {
			return course.Enrollment{}, course.ErrEnrollmentNotFound
		}
		return course.Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	return row.toDomain(), nil
}

func (repo *courseRepository) GetEnrollmentByID(ctx context.Context, id string) (course.Enrollment, error) {
	var row enrollmentRow
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return course.Enrollment{}, course.ErrEnrollmentNotFound
		}
		return course.Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	return row.toDomain(), nil
}

func (repo *courseRepository) QueryEnrollments(ctx context.Context, studentID, courseID, status string) ([]course.Enrollment, error) {
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments`
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if studentID != "" {
		conds = append(conds, "student_id = "+arg(studentID))
	}
	if courseID != "" {
		conds = append(conds, "course_id = "+arg(courseID))
	}
	if status != "" {
		conds = append(conds, "status = "+arg(status))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY enrollment_date DESC"

	var rows []enrollmentRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrs := make([]course.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrs = append(enrs, row.toDomain())
	}
	return enrs, nil
}

func (repo *courseRepository) UpdateEnrollment(ctx context.Context, enr course.Enrollment) (course.Enrollment, error) {
	q := `UPDATE enrollments SET
		status = :status, completion_date = :completion_date,
		progress_percentage = :progress_percentage, current_grade = :current_grade,
		final_grade = :final_grade, total_study_time = :total_study_time,
		payment_completed = :payment_completed, payment_date = :payment_date,
		certificate_issued = :certificate_issued, certificate_date = :certificate_date,
		last_accessed = :last_accessed, updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newEnrollmentRow(enr))
	if err != nil {
		return course.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Enrollment{}, course.ErrEnrollmentNotFound
	}
	return enr, nil
}

func (repo *courseRepository) UpsertLessonProgress(ctx context.Context, lp course.LessonProgress) (course.LessonProgress, error) {
	if lp.ID == "" {
		lp.ID = uuid.NewString()
	}
	q := `INSERT INTO lesson_progress (` + lessonProgressColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (enrollment_id, lesson_id) DO UPDATE SET
		status = EXCLUDED.status,
		completed_at = EXCLUDED.completed_at,
		watch_time = lesson_progress.watch_time + EXCLUDED.watch_time,
		completion_percentage = EXCLUDED.completion_percentage,
		notes = EXCLUDED.notes,
		is_bookmarked = EXCLUDED.is_bookmarked,
		last_accessed = EXCLUDED.last_accessed,
		updated_at = EXCLUDED.updated_at
	RETURNING ` + lessonProgressColumns
	var row lessonProgressRow
	err := repo.db.GetContext(ctx, &row, q,
		lp.ID, lp.EnrollmentID, lp.LessonID, lp.Status, nullTime(lp.StartedAt),
		nullTime(lp.CompletedAt), lp.WatchTime, lp.CompletionPercentage, lp.Notes,
		lp.IsBookmarked, nullTime(lp.LastAccessed), lp.CreatedAt, lp.UpdatedAt)
	if err != nil {
		return course.LessonProgress{}, errors.Wrap(err, "upserting lesson progress")
	}
	return row.toDomain(), nil
}

func (repo *courseRepository) QueryLessonProgress(ctx context.Context, enrollmentID string) ([]course.LessonProgress, error) {
	q := `SELECT ` + lessonProgressColumns + ` FROM lesson_progress WHERE enrollment_id = $1 ORDER BY created_at ASC`
	var rows []lessonProgressRow
	if err := repo.db.SelectContext(ctx, &rows, q, enrollmentID); err != nil {
		return nil, errors.Wrap(err, "querying lesson progress")
	}
	progress := make([]course.LessonProgress, 0, len(rows))
	for _, row := range rows {
		progress = append(progress, row.toDomain())
	}
	return progress, nil
}

func (repo *courseRepository) CreateAnnouncement(ctx context.Context, ann course.Announcement) (course.Announcement, error) {
	if ann.ID == "" {
		ann.ID = uuid.NewString()
	}
	q := `INSERT INTO announcements (` + announcementColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := repo.db.ExecContext(ctx, q,
		ann.ID, ann.CourseID, ann.InstructorID, ann.Title, ann.Content,
		ann.IsUrgent, ann.IsPublished, ann.SendEmail, ann.CreatedAt, ann.UpdatedAt)
	if err != nil {
		return course.Announcement{}, errors.Wrap(err, "creating announcement")
	}
	return ann, nil
}

func (repo *courseRepository) QueryAnnouncements(ctx context.Context, courseID string) ([]course.Announcement, error) {
	q := `SELECT ` + announcementColumns + ` FROM announcements WHERE course_id = $1 ORDER BY created_at DESC`
	var rows []announcementRow
	if err := repo.db.SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}
	anns := make([]course.Announcement, 0, len(rows))
	for _, row := range rows {
		anns = append(anns, row.toDomain())
	}
	return anns, nil
}
