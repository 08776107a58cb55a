package tests

import (
	"net/http"
	"testing"

	"github.com/Digitalguyco/convade-backend/core/analytics"
	"github.com/Digitalguyco/convade-backend/core/user"
)

func Test_analyticsApi_dashboard(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin, true)
	teacher := env.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "hero@test.cd", user.RoleStudent, true)

	env.completeCourse(t, teacher, student)

	t.Run("staff only", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/analytics/dashboard", getToken(t, student), nil)
		checkCode(t, rec, http.StatusForbidden)
	})

	t.Run("platform overview", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/analytics/dashboard", getToken(t, admin), nil)
		checkCode(t, rec, http.StatusOK)

		var dash analytics.Dashboard
		decode(t, rec, &dash)
		if dash.TotalUsers != 3 || dash.TotalCourses != 1 || dash.PublishedCourses != 1 || dash.TotalEnrollments != 1 {
			t.Fatalf("unexpected dashboard: %+v", dash)
		}
		if len(dash.Courses) != 1 {
			t.Fatalf("got %d course stats; want 1", len(dash.Courses))
		}
		if cs := dash.Courses[0]; cs.EnrollmentCount != 1 || cs.CompletionCount != 1 || cs.CompletionRate != 100 {
			t.Fatalf("unexpected course stats: %+v", cs)
		}
	})

	t.Run("teachers see their own slice", func(t *testing.T) {
		otherTeacher := env.createUser(t, "Idle", "idle@test.cd", user.RoleTeacher, true)

		rec := env.do(t, http.MethodGet, "/v1/analytics/dashboard", getToken(t, otherTeacher), nil)
		checkCode(t, rec, http.StatusOK)

		var dash analytics.Dashboard
		decode(t, rec, &dash)
		if len(dash.Courses) != 0 {
			t.Errorf("got %d course stats; want 0", len(dash.Courses))
		}
	})
}
