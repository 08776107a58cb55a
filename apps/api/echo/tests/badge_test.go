package tests

import (
	"net/http"
	"testing"

	"github.com/Digitalguyco/convade-backend/core/badge"
	"github.com/Digitalguyco/convade-backend/core/user"
)

func Test_badgeApi_awardAndPoints(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin, true)
	teacher := env.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "hero@test.cd", user.RoleStudent, true)
	adminToken := getToken(t, admin)
	studentToken := getToken(t, student)

	t.Run("admin required to create", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/badges", getToken(t, teacher), map[string]interface{}{
			"name": "Nope", "description": "nope",
		})
		checkCode(t, rec, http.StatusForbidden)
	})

	rec := env.do(t, http.MethodPost, "/v1/badges", adminToken, map[string]interface{}{
		"name":         "First Steps",
		"description":  "Complete your first course",
		"points_value": 100,
		"xp_reward":    50,
	})
	checkCode(t, rec, http.StatusCreated)
	var b badge.Badge
	decode(t, rec, &b)
	if !b.IsActive || b.PointsValue != 100 {
		t.Fatalf("unexpected badge: %+v", b)
	}

	t.Run("badges are listed", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/badges", studentToken, nil)
		checkCode(t, rec, http.StatusOK)

		var badges []badge.Badge
		decode(t, rec, &badges)
		if len(badges) != 1 {
			t.Errorf("got %d badges; want 1", len(badges))
		}
	})

	t.Run("students cannot award", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/badges/"+b.ID+"/award", studentToken, map[string]string{"user_id": student.ID})
		checkCode(t, rec, http.StatusForbidden)
	})

	rec = env.do(t, http.MethodPost, "/v1/badges/"+b.ID+"/award", getToken(t, teacher), map[string]string{"user_id": student.ID})
	checkCode(t, rec, http.StatusCreated)
	var ub badge.UserBadge
	decode(t, rec, &ub)
	if ub.UserID != student.ID || ub.AwardedByID != teacher.ID {
		t.Fatalf("unexpected user badge: %+v", ub)
	}

	t.Run("non-stackable badge awarded once", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/badges/"+b.ID+"/award", getToken(t, teacher), map[string]string{"user_id": student.ID})
		checkCode(t, rec, http.StatusBadRequest)
	})

	t.Run("earned badges show under mine", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/badges/mine", studentToken, nil)
		checkCode(t, rec, http.StatusOK)

		var ubs []badge.UserBadge
		decode(t, rec, &ubs)
		if len(ubs) != 1 {
			t.Errorf("got %d user badges; want 1", len(ubs))
		}
	})

	t.Run("award credits points and xp", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/badges/points", studentToken, nil)
		checkCode(t, rec, http.StatusOK)

		var pts badge.UserPoints
		decode(t, rec, &pts)
		if pts.TotalPoints != 100 || pts.AvailablePoints != 100 || pts.TotalXP != 50 {
			t.Fatalf("unexpected points: %+v", pts)
		}
	})

	t.Run("spend points", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/badges/points/spend", studentToken, map[string]interface{}{
			"points": 40, "reason": "avatar frame",
		})
		checkCode(t, rec, http.StatusOK)

		var pts badge.UserPoints
		decode(t, rec, &pts)
		if pts.AvailablePoints != 60 || pts.SpentPoints != 40 {
			t.Fatalf("unexpected points after spend: %+v", pts)
		}

		// overdraft
		rec = env.do(t, http.MethodPost, "/v1/badges/points/spend", studentToken, map[string]interface{}{
			"points": 1000, "reason": "greed",
		})
		checkCode(t, rec, http.StatusBadRequest)
	})

	t.Run("transactions are recorded", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/badges/points/transactions", studentToken, nil)
		checkCode(t, rec, http.StatusOK)

		var txns []badge.PointTransaction
		decode(t, rec, &txns)
		if len(txns) != 2 { // award + spend
			t.Errorf("got %d transactions; want 2", len(txns))
		}
	})

	t.Run("leaderboard falls back to the database", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/badges/leaderboard", studentToken, nil)
		checkCode(t, rec, http.StatusOK)

		var entries []badge.LeaderboardEntry
		decode(t, rec, &entries)
		if len(entries) != 1 || entries[0].UserID != student.ID || entries[0].Rank != 1 {
			t.Fatalf("unexpected leaderboard: %+v", entries)
		}
	})
}
