package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/Digitalguyco/convade-backend/core"
	"github.com/Digitalguyco/convade-backend/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCategory(ctx context.Context, cat course.Category) (course.Category, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if cat.ID == "" {
		cat.ID = uuid.NewString()
	}
	repo.db.categories[cat.ID] = cat
	return cat, nil
}

func (repo *courseRepository) QueryCategories(ctx context.Context, activeOnly bool) ([]course.Category, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var cats []course.Category
	for _, cat := range repo.db.categories {
		if activeOnly && !cat.IsActive {
			continue
		}
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].SortOrder != cats[j].SortOrder {
			return cats[i].SortOrder < cats[j].SortOrder
		}
		return cats[i].Name < cats[j].Name
	})
	return cats, nil
}

func (repo *courseRepository) GetCategoryByID(ctx context.Context, id string) (course.Category, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if cat, ok := repo.db.categories[id]; ok {
		return cat, nil
	}
	return course.Category{}, course.ErrCategoryNotFound
}

func (repo *courseRepository) UpdateCategory(ctx context.Context, cat course.Category) (course.Category, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.categories[cat.ID]; !ok {
		return course.Category{}, course.ErrCategoryNotFound
	}
	repo.db.categories[cat.ID] = cat
	return cat, nil
}

func (repo *courseRepository) CheckCodeUniqueness(ctx context.Context, code string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, crs := range repo.db.courses {
		if crs.CourseCode == code {
			return course.ErrCodeExists
		}
	}
	return nil
}

func (repo *courseRepository) CourseSlugExists(ctx context.Context, slug string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, crs := range repo.db.courses {
		if crs.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if crs.ID == "" {
		crs.ID = uuid.NewString()
	}
	repo.db.courses[crs.ID] = crs
	return crs, nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		if filter != nil && !matchCourse(crs, filter) {
			continue
		}
		courses = append(courses, crs)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.After(courses[j].CreatedAt) })
	return courses, nil
}

func matchCourse(crs course.Course, filter *course.QueryFilter) bool {
	if filter.Search != "" &&
		!containsFold(crs.Title, filter.Search) &&
		!containsFold(crs.CourseCode, filter.Search) {
		return false
	}
	if filter.Status != "" && crs.Status != filter.Status {
		return false
	}
	if filter.Difficulty != "" && crs.Difficulty != filter.Difficulty {
		return false
	}
	if filter.CategoryID != "" && crs.CategoryID != filter.CategoryID {
		return false
	}
	if filter.SchoolID != "" && crs.SchoolID != filter.SchoolID {
		return false
	}
	if filter.InstructorID != "" && crs.InstructorID != filter.InstructorID {
		return false
	}
	if filter.IsFree != nil && crs.IsFree != *filter.IsFree {
		return false
	}
	return true
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) GetCourseBySlug(ctx context.Context, slug string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, crs := range repo.db.courses {
		if crs.Slug == slug {
			return crs, nil
		}
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.courses[crs.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	// immutable fields and counters keep their stored values
	crs.CourseCode = orig.CourseCode
	crs.InstructorID = orig.InstructorID
	crs.SchoolID = orig.SchoolID
	crs.ViewCount = orig.ViewCount
	repo.db.courses[crs.ID] = crs
	return crs, nil
}

func (repo *courseRepository) DeleteCoursesByID(ctx context.Context, ids ...string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.courses[id]; ok {
			delete(repo.db.courses, id)
			n++
		}
	}
	return n, nil
}

func (repo *courseRepository) IncrementCourseViews(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	crs, ok := repo.db.courses[id]
	if !ok {
		return course.ErrNotFound
	}
	crs.ViewCount++
	repo.db.courses[id] = crs
	return nil
}

func (repo *courseRepository) CreateModule(ctx context.Context, mod course.Module) (course.Module, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if mod.ID == "" {
		mod.ID = uuid.NewString()
	}
	repo.db.modules[mod.ID] = mod
	return mod, nil
}

func (repo *courseRepository) QueryModules(ctx context.Context, courseID string) ([]course.Module, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var mods []course.Module
	for _, mod := range repo.db.modules {
		if mod.CourseID == courseID {
			mods = append(mods, mod)
		}
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Order < mods[j].Order })
	return mods, nil
}

func (repo *courseRepository) GetModuleByID(ctx context.Context, id string) (course.Module, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if mod, ok := repo.db.modules[id]; ok {
		return mod, nil
	}
	return course.Module{}, course.ErrModuleNotFound
}

func (repo *courseRepository) UpdateModule(ctx context.Context, mod course.Module) (course.Module, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.modules[mod.ID]; !ok {
		return course.Module{}, course.ErrModuleNotFound
	}
	repo.db.modules[mod.ID] = mod
	return mod, nil
}

func (repo *courseRepository) DeleteModulesByID(ctx context.Context, ids ...string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.modules[id]; ok {
			delete(repo.db.modules, id)
			n++
		}
	}
	return n, nil
}

func (repo *courseRepository) CreateLesson(ctx context.Context, les course.Lesson) (course.Lesson, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if les.ID == "" {
		les.ID = uuid.NewString()
	}
	repo.db.lessons[les.ID] = les
	return les, nil
}

func (repo *courseRepository) QueryLessons(ctx context.Context, moduleID string) ([]course.Lesson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var lessons []course.Lesson
	for _, les := range repo.db.lessons {
		if les.ModuleID == moduleID {
			lessons = append(lessons, les)
		}
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].Order < lessons[j].Order })
	return lessons, nil
}

func (repo *courseRepository) QueryCourseLessons(ctx context.Context, courseID string, publishedOnly bool) ([]course.Lesson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	modOrder := make(map[string]int)
	for _, mod := range repo.db.modules {
		if mod.CourseID != courseID {
			continue
		}
		if publishedOnly && !mod.IsPublished {
			continue
		}
		modOrder[mod.ID] = mod.Order
	}

	var lessons []course.Lesson
	for _, les := range repo.db.lessons {
		if _, ok := modOrder[les.ModuleID]; !ok {
			continue
		}
		if publishedOnly && !les.IsPublished {
			continue
		}
		lessons = append(lessons, les)
	}
	sort.Slice(lessons, func(i, j int) bool {
		mi, mj := modOrder[lessons[i].ModuleID], modOrder[lessons[j].ModuleID]
		if mi != mj {
			return mi < mj
		}
		return lessons[i].Order < lessons[j].Order
	})
	return lessons, nil
}

func (repo *courseRepository) GetLessonByID(ctx context.Context, id string) (course.Lesson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if les, ok := repo.db.lessons[id]; ok {
		return les, nil
	}
	return course.Lesson{}, course.ErrLessonNotFound
}

func (repo *courseRepository) UpdateLesson(ctx context.Context, les course.Lesson) (course.Lesson, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.lessons[les.ID]; !ok {
		return course.Lesson{}, course.ErrLessonNotFound
	}
	repo.db.lessons[les.ID] = les
	return les, nil
}

func (repo *courseRepository) DeleteLessonsByID(ctx context.Context, ids ...string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.lessons[id]; ok {
			delete(repo.db.lessons, id)
			n++
		}
	}
	return n, nil
}

func (repo *courseRepository) CreateEnrollment(ctx context.Context, enr course.Enrollment) (course.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if enr.ID == "" {
		enr.ID = uuid.NewString()
	}
	repo.db.enrollments[enr.ID] = enr
	return enr, nil
}

func (repo *courseRepository) GetEnrollment(ctx context.Context, studentID, courseID string) (course.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID && enr.CourseID == courseID {
			return enr, nil
		}
	}
	return course.Enrollment{}, course.ErrEnrollmentNotFound
}

func (repo *courseRepository) GetEnrollmentByID(ctx context.Context, id string) (course.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if enr, ok := repo.db.enrollments[id]; ok {
		return enr, nil
	}
	return course.Enrollment{}, course.ErrEnrollmentNotFound
}

func (repo *courseRepository) QueryEnrollments(ctx context.Context, studentID, courseID, status string) ([]course.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var enrs []course.Enrollment
	for _, enr := range repo.db.enrollments {
		if studentID != "" && enr.StudentID != studentID {
			continue
		}
		if courseID != "" && enr.CourseID != courseID {
			continue
		}
		if status != "" && enr.Status != status {
			continue
		}
		enrs = append(enrs, enr)
	}
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].EnrollmentDate.After(enrs[j].EnrollmentDate) })
	return enrs, nil
}

func (repo *courseRepository) UpdateEnrollment(ctx context.Context, enr course.Enrollment) (course.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.enrollments[enr.ID]; !ok {
		return course.Enrollment{}, course.ErrEnrollmentNotFound
	}
	repo.db.enrollments[enr.ID] = enr
	return enr, nil
}

func (repo *courseRepository) UpsertLessonProgress(ctx context.Context, lp course.LessonProgress) (course.LessonProgress, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, cur := range repo.db.lessonProgress {
		if cur.EnrollmentID == lp.EnrollmentID && cur.LessonID == lp.LessonID {
			lp.ID = id
			lp.CreatedAt = cur.CreatedAt
			lp.WatchTime += cur.WatchTime
			repo.db.lessonProgress[id] = lp
			return lp, nil
		}
	}
	if lp.ID == "" {
		lp.ID = uuid.NewString()
	}
	repo.db.lessonProgress[lp.ID] = lp
	return lp, nil
}

func (repo *courseRepository) QueryLessonProgress(ctx context.Context, enrollmentID string) ([]course.LessonProgress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var lps []course.LessonProgress
	for _, lp := range repo.db.lessonProgress {
		if lp.EnrollmentID == enrollmentID {
			lps = append(lps, lp)
		}
	}
	sort.Slice(lps, func(i, j int) bool { return lps[i].CreatedAt.Before(lps[j].CreatedAt) })
	return lps, nil
}

func (repo *courseRepository) CreateAnnouncement(ctx context.Context, ann course.Announcement) (course.Announcement, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if ann.ID == "" {
		ann.ID = uuid.NewString()
	}
	repo.db.announcements[ann.ID] = ann
	return ann, nil
}

func (repo *courseRepository) QueryAnnouncements(ctx context.Context, courseID string) ([]course.Announcement, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var anns []course.Announcement
	for _, ann := range repo.db.announcements {
		if ann.CourseID == courseID {
			anns = append(anns, ann)
		}
	}
	sort.Slice(anns, func(i, j int) bool { return anns[i].CreatedAt.After(anns[j].CreatedAt) })
	return anns, nil
}
