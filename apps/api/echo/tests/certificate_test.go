package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/Digitalguyco/convade-backend/core/certificate"
	"github.com/Digitalguyco/convade-backend/core/course"
	"github.com/Digitalguyco/convade-backend/core/user"
)

// completeCourse drives a student through a one-lesson course so the
// completion hook fires.
func (env *testEnv) completeCourse(t *testing.T, teacher, student user.User) course.Course {
	t.Helper()
	teacherToken := getToken(t, teacher)
	studentToken := getToken(t, student)

	sch := env.createSchool(t, "Kin Academy", "KIN01")
	cat, err := env.crsSvc.CreateCategory(context.Background(), course.NewCategory{Name: "Mathematics"})
	if err != nil {
		t.Fatalf("creating category: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/v1/courses", teacherToken, map[string]string{
		"title": "Algebra I", "course_code": "ALG101", "category_id": cat.ID, "school_id": sch.ID,
	})
	checkCode(t, rec, http.StatusCreated)
	var crs course.Course
	decode(t, rec, &crs)

	rec = env.do(t, http.MethodPost, "/v1/courses/"+crs.ID+"/publish", teacherToken, nil)
	checkCode(t, rec, http.StatusOK)
	decode(t, rec, &crs)

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

	rec = env.do(t, http.MethodPost, "/v1/courses/"+crs.ID+"/enroll", studentToken, nil)
	checkCode(t, rec, http.StatusCreated)
	var enr course.Enrollment
	decode(t, rec, &enr)

	rec = env.do(t, http.MethodPost, "/v1/courses/enrollments/"+enr.ID+"/progress", studentToken, map[string]interface{}{
		"lesson_id": lsn.ID, "completion_percentage": 100,
	})
	checkCode(t, rec, http.StatusOK)
	return crs
}

func Test_certificateApi_issueAndVerify(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin, true)
	teacher := env.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "hero@test.cd", user.RoleStudent, true)
	studentToken := getToken(t, student)

	// completion issues the certificate
	env.crsSvc.SetCompletionHook(func(ctx context.Context, enr course.Enrollment, crs course.Course) {
		if _, err := env.certSvc.IssueForEnrollment(ctx, enr, crs); err != nil {
			t.Errorf("issuing certificate: %v", err)
		}
	})

	env.completeCourse(t, teacher, student)

	rec := env.do(t, http.MethodGet, "/v1/certificates", studentToken, nil)
	checkCode(t, rec, http.StatusOK)
	var certs []certificate.Certificate
	decode(t, rec, &certs)
	if len(certs) != 1 {
		t.Fatalf("got %d certificates; want 1", len(certs))
	}
	cert := certs[0]
	if cert.Status != certificate.StatusIssued || cert.Number == "" || cert.VerificationCode == "" {
		t.Fatalf("unexpected certificate: %+v", cert)
	}

	t.Run("students cannot read others' certificates", func(t *testing.T) {
		other := env.createUser(t, "Other", "other@test.cd", user.RoleStudent, true)
		rec := env.do(t, http.MethodGet, "/v1/certificates/"+cert.ID, getToken(t, other), nil)
		checkCode(t, rec, http.StatusNotFound)
	})

	t.Run("public verification", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/certificates/verify/"+cert.VerificationCode, "", nil)
		checkCode(t, rec, http.StatusOK)

		var res certificate.VerificationResult
		decode(t, rec, &res)
		if !res.Valid || res.Number != cert.Number || res.Recipient != student.FullName() {
			t.Fatalf("unexpected verification result: %+v", res)
		}

		// unknown codes leak nothing
		rec = env.do(t, http.MethodGet, "/v1/certificates/verify/BOGUS", "", nil)
		checkCode(t, rec, http.StatusOK)
		decode(t, rec, &res)
		if res.Valid || res.Number != "" {
			t.Fatalf("unexpected result for unknown code: %+v", res)
		}
	})

	t.Run("download counter", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/certificates/"+cert.ID+"/download", studentToken, nil)
		checkCode(t, rec, http.StatusOK)

		var c certificate.Certificate
		decode(t, rec, &c)
		if c.DownloadCount != 1 {
			t.Errorf("download count = %d; want 1", c.DownloadCount)
		}
	})

	t.Run("revoke", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/certificates/"+cert.ID+"/revoke", studentToken, map[string]string{"reason": "nope"})
		checkCode(t, rec, http.StatusForbidden)

		rec = env.do(t, http.MethodPost, "/v1/certificates/"+cert.ID+"/revoke", getToken(t, admin), map[string]string{"reason": "academic misconduct"})
		checkCode(t, rec, http.StatusOK)

		var c certificate.Certificate
		decode(t, rec, &c)
		if c.Status != certificate.StatusRevoked || c.RevokedByID != admin.ID {
			t.Fatalf("unexpected certificate after revoke: %+v", c)
		}

		// revoked certificates no longer verify
		rec = env.do(t, http.MethodGet, "/v1/certificates/verify/"+cert.VerificationCode, "", nil)
		checkCode(t, rec, http.StatusOK)
		var res certificate.VerificationResult
		decode(t, rec, &res)
		if res.Valid || res.Status != certificate.StatusRevoked {
			t.Fatalf("unexpected verification after revoke: %+v", res)
		}
	})
}
