package tests

import (
	"net/http"
	"testing"

	"github.com/Digitalguyco/convade-backend/core/course"
	"github.com/Digitalguyco/convade-backend/core/user"
)

func Test_courseApi_catalog(t *testing.T) {
	env := setup(t)

	sch := env.createSchool(t, "Kin Academy", "KIN01")
	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin, true)
	teacher := env.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "hero@test.cd", user.RoleStudent, true)
	adminToken := getToken(t, admin)
	teacherToken := getToken(t, teacher)

	// category
	rec := env.do(t, http.MethodPost, "/v1/courses/categories", adminToken, map[string]string{"name": "Mathematics"})
	checkCode(t, rec, http.StatusCreated)
	var cat course.Category
	decode(t, rec, &cat)

	t.Run("categories are public", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/courses/categories", "", nil)
		checkCode(t, rec, http.StatusOK)

		var cats []course.Category
		decode(t, rec, &cats)
		if len(cats) != 1 {
			t.Errorf("got %d categories; want 1", len(cats))
		}
	})

	t.Run("students cannot create courses", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/courses", getToken(t, student), map[string]string{
			"title": "Algebra I", "course_code": "ALG101", "category_id": cat.ID, "school_id": sch.ID,
		})
		checkCode(t, rec, http.StatusForbidden)
	})

	// course
	rec = env.do(t, http.MethodPost, "/v1/courses", teacherToken, map[string]string{
		"title": "Algebra I", "course_code": "alg101", "category_id": cat.ID, "school_id": sch.ID,
	})
	checkCode(t, rec, http.StatusCreated)
	var crs course.Course
	decode(t, rec, &crs)
	if crs.Status != course.StatusDraft || crs.InstructorID != teacher.ID || crs.CourseCode != "ALG101" {
		t.Fatalf("unexpected course: %+v", crs)
	}

	t.Run("duplicate course code rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/courses", teacherToken, map[string]string{
			"title": "Algebra II", "course_code": "ALG101", "category_id": cat.ID, "school_id": sch.ID,
		})
		checkCode(t, rec, http.StatusBadRequest)
	})

	t.Run("publish and fetch by slug", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/courses/"+crs.ID+"/publish", teacherToken, nil)
		checkCode(t, rec, http.StatusOK)
		decode(t, rec, &crs)
		if crs.Status != course.StatusPublished {
			t.Fatalf("status = %q; want published", crs.Status)
		}

		rec = env.do(t, http.MethodGet, "/v1/courses/slug/"+crs.Slug, "", nil)
		checkCode(t, rec, http.StatusOK)
	})
}

func Test_courseApi_enrollmentLifecycle(t *testing.T) {
	env := setup(t)

	sch := env.createSchool(t, "Kin Academy", "KIN01")
	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin, true)
	teacher := env.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "hero@test.cd", user.RoleStudent, true)
	teacherToken := getToken(t, teacher)
	studentToken := getToken(t, student)

	rec := env.do(t, http.MethodPost, "/v1/courses/categories", getToken(t, admin), map[string]string{"name": "Mathematics"})
	checkCode(t, rec, http.StatusCreated)
	var cat course.Category
	decode(t, rec, &cat)

	rec = env.do(t, http.MethodPost, "/v1/courses", teacherToken, map[string]string{
		"title": "Algebra I", "course_code": "ALG101", "category_id": cat.ID, "school_id": sch.ID,
	})
	checkCode(t, rec, http.StatusCreated)
	var crs course.Course
	decode(t, rec, &crs)

	t.Run("cannot enroll in a draft course", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/courses/"+crs.ID+"/enroll", studentToken, nil)
		checkCode(t, rec, http.StatusBadRequest)
	})

	rec = env.do(t, http.MethodPost, "/v1/courses/"+crs.ID+"/publish", teacherToken, nil)
	checkCode(t, rec, http.StatusOK)

	// content: one module, one published lesson
	rec = env.do(t, http.MethodPost, "/v1/courses/modules", teacherToken, map[string]interface{}{
		"course_id": crs.ID, "title": "Basics", "order": 1,
	})
	checkCode(t, rec, http.StatusCreated)
	var mod course.Module
	decode(t, rec, &mod)

	rec = env.do(t, http.MethodPost, "/v1/courses/lessons", teacherToken, map[string]interface{}{
		"module_id": mod.ID, "title": "Numbers", "content": "1 + 1", "order": 1,
	})
	checkCode(t, rec, http.StatusCreated)
	var lsn course.Lesson
	decode(t, rec, &lsn)

	rec = env.do(t, http.MethodPost, "/v1/courses/lessons/"+lsn.ID+"/publish", teacherToken, nil)
	checkCode(t, rec, http.StatusOK)

	// enroll
	rec = env.do(t, http.MethodPost, "/v1/courses/"+crs.ID+"/enroll", studentToken, nil)
	checkCode(t, rec, http.StatusCreated)
	var enr course.Enrollment
	decode(t, rec, &enr)
	if enr.Status != course.EnrollmentActive {
		t.Fatalf("enrollment status = %q; want active", enr.Status)
	}

	t.Run("double enrollment rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/courses/"+crs.ID+"/enroll", studentToken, nil)
		checkCode(t, rec, http.StatusBadRequest)
	})

	t.Run("students cannot touch others' enrollments", func(t *testing.T) {
		sneak := env.createUser(t, "Sneak", "sneak@test.cd", user.RoleStudent, true)
		sneakToken := getToken(t, sneak)

		rec := env.do(t, http.MethodPost, "/v1/courses/enrollments/"+enr.ID+"/progress", sneakToken, map[string]interface{}{
			"lesson_id": lsn.ID, "completion_percentage": 100,
		})
		checkCode(t, rec, http.StatusNotFound)

		rec = env.do(t, http.MethodPost, "/v1/courses/enrollments/"+enr.ID+"/drop", sneakToken, nil)
		checkCode(t, rec, http.StatusNotFound)

		rec = env.do(t, http.MethodGet, "/v1/courses/enrollments/"+enr.ID+"/progress", sneakToken, nil)
		checkCode(t, rec, http.StatusNotFound)

		// nothing moved
		rec = env.do(t, http.MethodGet, "/v1/courses/enrollments/"+enr.ID+"/progress", studentToken, nil)
		checkCode(t, rec, http.StatusOK)
		var progress []course.LessonProgress
		decode(t, rec, &progress)
		if len(progress) != 0 {
			t.Fatalf("got %d progress records; want 0", len(progress))
		}
	})

	t.Run("progress only counts lessons of the course", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/courses", teacherToken, map[string]string{
			"title": "Geometry I", "course_code": "GEO101", "category_id": cat.ID, "school_id": sch.ID,
		})
		checkCode(t, rec, http.StatusCreated)
		var crs2 course.Course
		decode(t, rec, &crs2)

		rec = env.do(t, http.MethodPost, "/v1/courses/modules", teacherToken, map[string]interface{}{
			"course_id": crs2.ID, "title": "Shapes", "order": 1,
		})
		checkCode(t, rec, http.StatusCreated)
		var mod2 course.Module
		decode(t, rec, &mod2)

		rec = env.do(t, http.MethodPost, "/v1/courses/lessons", teacherToken, map[string]interface{}{
			"module_id": mod2.ID, "title": "Triangles", "content": "3 sides", "order": 1,
		})
		checkCode(t, rec, http.StatusCreated)
		var lsn2 course.Lesson
		decode(t, rec, &lsn2)

		rec = env.do(t, http.MethodPost, "/v1/courses/enrollments/"+enr.ID+"/progress", studentToken, map[string]interface{}{
			"lesson_id": lsn2.ID, "completion_percentage": 100,
		})
		checkCode(t, rec, http.StatusBadRequest)
	})

	t.Run("progress to completion", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/courses/enrollments/"+enr.ID+"/progress", studentToken, map[string]interface{}{
			"lesson_id": lsn.ID, "completion_percentage": 50,
		})
		checkCode(t, rec, http.StatusOK)
		decode(t, rec, &enr)
		if enr.Status != course.EnrollmentActive || enr.ProgressPercentage != 0 {
			t.Fatalf("unexpected enrollment after partial progress: %+v", enr)
		}

		rec = env.do(t, http.MethodPost, "/v1/courses/enrollments/"+enr.ID+"/progress", studentToken, map[string]interface{}{
			"lesson_id": lsn.ID, "completion_percentage": 100,
		})
		checkCode(t, rec, http.StatusOK)
		decode(t, rec, &enr)
		if enr.Status != course.EnrollmentCompleted || enr.ProgressPercentage != 100 {
			t.Fatalf("unexpected enrollment after full progress: %+v", enr)
		}
	})

	t.Run("students only see their own enrollments", func(t *testing.T) {
		other := env.createUser(t, "Other", "other@test.cd", user.RoleStudent, true)
		rec := env.do(t, http.MethodGet, "/v1/courses/enrollments?student_id="+student.ID, getToken(t, other), nil)
		checkCode(t, rec, http.StatusOK)

		var enrs []course.Enrollment
		decode(t, rec, &enrs)
		if len(enrs) != 0 {
			t.Errorf("got %d enrollments; want 0", len(enrs))
		}
	})
}
