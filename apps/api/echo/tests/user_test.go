package tests

import (
	"net/http"
	"testing"

	"github.com/Digitalguyco/convade-backend/core/user"
)

func Test_userApi_login(t *testing.T) {
	env := setup(t)

	env.createUser(t, "Awe", "awe@test.cd", user.RoleStudent, true)
	env.createUser(t, "Naughty", "ndog@test.cd", user.RoleStudent, false)

	tests := []httpTest{
		{
			name: "empty payload", body: map[string]string{},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown email", body: map[string]string{"email": "lol@test.cd", "password": "lol"},
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", body: map[string]string{"email": "awe@test.cd", "password": "lol"},
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", body: map[string]string{"email": "ndog@test.cd", "password": "LePassword!"},
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "login ok", body: map[string]string{"email": "awe@test.cd", "password": "LePassword!"},
			wantCode: http.StatusOK,
		},
		{
			name: "email is case-insensitive", body: map[string]string{"email": "AWE@Test.CD", "password": "LePassword!"},
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/users/login", "", tt.body)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var resp struct {
					Token string `json:"token"`
				}
				decode(t, rec, &resp)
				if resp.Token == "" {
					t.Error("expected a token")
				}
			}
		})
	}
}

func Test_userApi_query(t *testing.T) {
	env := setup(t)

	student := env.createUser(t, "Hero", "hero@test.cd", user.RoleStudent, true)
	teacher := env.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, true)
	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin, true)

	tests := []httpTest{
		{name: "auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "admin required (student)", path: "/v1/users", token: getToken(t, student), wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden)},
		{name: "admin required (teacher)", path: "/v1/users", token: getToken(t, teacher), wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden)},
		{name: "get all", path: "/v1/users", token: getToken(t, admin), wantCode: http.StatusOK},
		{name: "filter by role", path: "/v1/users?role=teacher", token: getToken(t, admin), wantCode: http.StatusOK},
		{name: "search", path: "/v1/users?search=hero", token: getToken(t, admin), wantCode: http.StatusOK},
	}
	wantLen := map[string]int{"get all": 3, "filter by role": 1, "search": 1}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, tt.token, nil)
			checkCodeAndData(t, tt, rec)

			if n, ok := wantLen[tt.name]; ok {
				var users []user.User
				decode(t, rec, &users)
				if len(users) != n {
					t.Errorf("got %d users; want %d", len(users), n)
				}
			}
		})
	}
}

func Test_userApi_register(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin, true)
	teacher := env.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, true)
	adminToken := getToken(t, admin)

	newUser := func(email, role string) map[string]interface{} {
		return map[string]interface{}{
			"first_name":       "New",
			"last_name":        "Guy",
			"email":            email,
			"role":             role,
			"password":         "Tr0ub4dor&3!",
			"password_confirm": "Tr0ub4dor&3!",
		}
	}

	t.Run("admin required", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/users/register", getToken(t, teacher), newUser("x@test.cd", user.RoleAdmin))
		checkCode(t, rec, http.StatusForbidden)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/users/register", adminToken, newUser("teacher@test.cd", user.RoleStudent))
		checkCode(t, rec, http.StatusBadRequest)
	})

	t.Run("create ok", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/users/register", adminToken, newUser("new@test.cd", user.RoleStudent))
		checkCode(t, rec, http.StatusCreated)

		var usr user.User
		decode(t, rec, &usr)
		if usr.ID == "" || usr.Email != "new@test.cd" || usr.Role != user.RoleStudent {
			t.Errorf("unexpected user: %+v", usr)
		}
	})
}

func Test_userApi_retrieveAndUpdate(t *testing.T) {
	env := setup(t)

	student := env.createUser(t, "Hero", "hero@test.cd", user.RoleStudent, true)
	other := env.createUser(t, "Other", "other@test.cd", user.RoleStudent, true)
	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin, true)
	studentToken := getToken(t, student)

	t.Run("retrieve self", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/users/"+student.ID, studentToken, nil)
		checkCode(t, rec, http.StatusOK)
	})

	t.Run("cannot retrieve others", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/users/"+other.ID, studentToken, nil)
		checkCode(t, rec, http.StatusNotFound)
	})

	t.Run("admin retrieves anyone", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/users/"+other.ID, getToken(t, admin), nil)
		checkCode(t, rec, http.StatusOK)
	})

	t.Run("self update ok", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/v1/users/"+student.ID, studentToken, map[string]string{"bio": "hello"})
		checkCode(t, rec, http.StatusOK)

		var usr user.User
		decode(t, rec, &usr)
		if usr.Bio != "hello" {
			t.Errorf("bio = %q; want %q", usr.Bio, "hello")
		}
	})

	t.Run("non-admin cannot change role", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/v1/users/"+student.ID, studentToken, map[string]string{"role": user.RoleAdmin})
		checkCode(t, rec, http.StatusForbidden)
	})

	t.Run("admin cannot delete themselves", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/v1/users/"+admin.ID, getToken(t, admin), nil)
		checkCode(t, rec, http.StatusForbidden)
	})
}

func Test_userApi_tokenRefresh(t *testing.T) {
	env := setup(t)

	usr := env.createUser(t, "Awe", "awe@test.cd", user.RoleStudent, true)

	rec := env.do(t, http.MethodPost, "/v1/users/token-refresh", getToken(t, usr), nil)
	checkCode(t, rec, http.StatusOK)

	var resp struct {
		Token string `json:"token"`
	}
	decode(t, rec, &resp)
	if resp.Token == "" {
		t.Error("expected a refreshed token")
	}
}
