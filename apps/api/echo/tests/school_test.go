package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/Digitalguyco/convade-backend/core/school"
	"github.com/Digitalguyco/convade-backend/core/user"
)

func (env *testEnv) createSchool(t *testing.T, name, code string) school.School {
	t.Helper()
	sch, err := env.schSvc.Create(context.Background(), school.NewSchool{Name: name, Code: code})
	if err != nil {
		t.Fatalf("creating school: %v", err)
	}
	return sch
}

func Test_schoolApi_create(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin, true)
	teacher := env.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, true)
	adminToken := getToken(t, admin)

	payload := map[string]string{"name": "Kin Academy", "code": "KIN01"}

	t.Run("admin required", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/schools", getToken(t, teacher), payload)
		checkCode(t, rec, http.StatusForbidden)
	})

	t.Run("create ok", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/schools", adminToken, payload)
		checkCode(t, rec, http.StatusCreated)

		var sch school.School
		decode(t, rec, &sch)
		if sch.ID == "" || sch.Code != "KIN01" || !sch.IsActive {
			t.Errorf("unexpected school: %+v", sch)
		}
	})

	t.Run("duplicate code rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/schools", adminToken, map[string]string{"name": "Other", "code": "kin01"})
		checkCode(t, rec, http.StatusBadRequest)
	})
}

func Test_schoolApi_invitations(t *testing.T) {
	env := setup(t)

	sch := env.createSchool(t, "Kin Academy", "KIN01")
	teacher := env.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, true)
	teacherToken := getToken(t, teacher)

	t.Run("invitee role capped at inviter's", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/schools/invitations", teacherToken, map[string]string{
			"email": "boss@test.cd", "role": user.RoleAdmin, "school_id": sch.ID,
		})
		checkCode(t, rec, http.StatusForbidden)
	})

	t.Run("invite ok", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/schools/invitations", teacherToken, map[string]string{
			"email": "kid@test.cd", "role": user.RoleStudent, "school_id": sch.ID,
		})
		checkCode(t, rec, http.StatusCreated)

		var inv school.Invitation
		decode(t, rec, &inv)
		if inv.Status != school.InvitationPending || inv.InvitedByID != teacher.ID {
			t.Errorf("unexpected invitation: %+v", inv)
		}
	})

	t.Run("accept flow", func(t *testing.T) {
		// the token only travels by email; fetch it at the service level
		inv, err := env.schSvc.Invite(context.Background(), school.NewInvitation{
			Email: "hero@test.cd", Role: user.RoleStudent, SchoolID: sch.ID,
		}, teacher)
		if err != nil {
			t.Fatalf("creating invitation: %v", err)
		}

		rec := env.do(t, http.MethodPost, "/v1/schools/invitations/accept", "", map[string]string{
			"token":            inv.Token,
			"first_name":       "Hero",
			"last_name":        "Kid",
			"password":         "Tr0ub4dor&3!",
			"password_confirm": "Tr0ub4dor&3!",
		})
		checkCode(t, rec, http.StatusCreated)

		var usr user.User
		decode(t, rec, &usr)
		if usr.Email != "hero@test.cd" || usr.Role != user.RoleStudent || usr.SchoolID != sch.ID {
			t.Errorf("unexpected user: %+v", usr)
		}

		// single use
		rec = env.do(t, http.MethodPost, "/v1/schools/invitations/accept", "", map[string]string{
			"token":            inv.Token,
			"first_name":       "Copy",
			"last_name":        "Cat",
			"password":         "Tr0ub4dor&3!",
			"password_confirm": "Tr0ub4dor&3!",
		})
		checkCode(t, rec, http.StatusBadRequest)
	})
}

func Test_schoolApi_registrationCodes(t *testing.T) {
	env := setup(t)

	sch := env.createSchool(t, "Kin Academy", "KIN01")
	teacher := env.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, true)
	teacherToken := getToken(t, teacher)

	rec := env.do(t, http.MethodPost, "/v1/schools/codes", teacherToken, map[string]interface{}{
		"school_id": sch.ID, "max_uses": 1,
	})
	checkCode(t, rec, http.StatusCreated)

	var code school.RegistrationCode
	decode(t, rec, &code)
	if code.Code == "" || code.Status != school.CodeActive {
		t.Fatalf("unexpected code: %+v", code)
	}

	t.Run("public validation", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/schools/codes/"+code.Code, "", nil)
		checkCode(t, rec, http.StatusOK)

		rec = env.do(t, http.MethodGet, "/v1/schools/codes/NOPE42", "", nil)
		checkCode(t, rec, http.StatusBadRequest)
	})

	t.Run("register with code", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/schools/register", "", map[string]string{
			"code":             code.Code,
			"email":            "kid@test.cd",
			"first_name":       "Kid",
			"last_name":        "Test",
			"password":         "Tr0ub4dor&3!",
			"password_confirm": "Tr0ub4dor&3!",
		})
		checkCode(t, rec, http.StatusCreated)

		var usr user.User
		decode(t, rec, &usr)
		if usr.SchoolID != sch.ID || usr.Role != user.RoleStudent {
			t.Errorf("unexpected user: %+v", usr)
		}

		// max_uses=1: the code is now spent
		rec = env.do(t, http.MethodPost, "/v1/schools/register", "", map[string]string{
			"code":             code.Code,
			"email":            "kid2@test.cd",
			"first_name":       "Kid",
			"last_name":        "Two",
			"password":         "Tr0ub4dor&3!",
			"password_confirm": "Tr0ub4dor&3!",
		})
		checkCode(t, rec, http.StatusBadRequest)
	})
}
