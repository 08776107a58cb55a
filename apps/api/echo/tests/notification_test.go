package tests

import (
	"net/http"
	"testing"

	"github.com/Digitalguyco/convade-backend/core/notification"
	"github.com/Digitalguyco/convade-backend/core/user"
)

func Test_notificationApi_lifecycle(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin, true)
	student := env.createUser(t, "Hero", "hero@test.cd", user.RoleStudent, true)
	adminToken := getToken(t, admin)
	studentToken := getToken(t, student)

	notify := func(t *testing.T, title string) notification.Notification {
		t.Helper()
		rec := env.do(t, http.MethodPost, "/v1/notifications", adminToken, map[string]interface{}{
			"user_id":  student.ID,
			"category": notification.CategorySystemAlert,
			"title":    title,
			"message":  "Scheduled maintenance tonight.",
		})
		checkCode(t, rec, http.StatusCreated)
		var n notification.Notification
		decode(t, rec, &n)
		return n
	}

	t.Run("admin required to create", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/notifications", studentToken, map[string]interface{}{
			"user_id": student.ID, "category": notification.CategorySystemAlert,
			"title": "Nope", "message": "nope",
		})
		checkCode(t, rec, http.StatusForbidden)
	})

	n1 := notify(t, "Maintenance window")
	notify(t, "Maintenance rescheduled")
	if n1.Status != notification.StatusSent || n1.Priority != notification.PriorityNormal {
		t.Fatalf("unexpected notification: %+v", n1)
	}

	t.Run("list and unread count", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/notifications", studentToken, nil)
		checkCode(t, rec, http.StatusOK)
		var notifs []notification.Notification
		decode(t, rec, &notifs)
		if len(notifs) != 2 {
			t.Fatalf("got %d notifications; want 2", len(notifs))
		}

		rec = env.do(t, http.MethodGet, "/v1/notifications/unread-count", studentToken, nil)
		checkCode(t, rec, http.StatusOK)
		var count struct {
			Count int `json:"count"`
		}
		decode(t, rec, &count)
		if count.Count != 2 {
			t.Errorf("unread count = %d; want 2", count.Count)
		}
	})

	t.Run("mark one read", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/notifications/"+n1.ID+"/read", studentToken, nil)
		checkCode(t, rec, http.StatusOK)

		var n notification.Notification
		decode(t, rec, &n)
		if !n.IsRead() || n.ReadAt.IsZero() {
			t.Fatalf("unexpected notification after read: %+v", n)
		}
	})

	t.Run("recipients cannot read others' notifications", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/notifications/"+n1.ID+"/read", adminToken, nil)
		checkCode(t, rec, http.StatusNotFound)
	})

	t.Run("mark all read", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/notifications/read-all", studentToken, nil)
		checkCode(t, rec, http.StatusOK)
		var resp struct {
			Marked int `json:"marked"`
		}
		decode(t, rec, &resp)
		if resp.Marked != 1 {
			t.Errorf("marked = %d; want 1", resp.Marked)
		}

		rec = env.do(t, http.MethodGet, "/v1/notifications?unread=1", studentToken, nil)
		checkCode(t, rec, http.StatusOK)
		var notifs []notification.Notification
		decode(t, rec, &notifs)
		if len(notifs) != 0 {
			t.Errorf("got %d unread notifications; want 0", len(notifs))
		}
	})
}

func Test_notificationApi_settings(t *testing.T) {
	env := setup(t)

	student := env.createUser(t, "Hero", "hero@test.cd", user.RoleStudent, true)
	studentToken := getToken(t, student)

	t.Run("defaults on first access", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/notifications/settings", studentToken, nil)
		checkCode(t, rec, http.StatusOK)

		var s notification.Settings
		decode(t, rec, &s)
		if !s.Enabled || !s.InAppEnabled || s.DigestFrequency != notification.DigestImmediate {
			t.Fatalf("unexpected default settings: %+v", s)
		}
	})

	t.Run("opt out of a category", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/v1/notifications/settings", studentToken, map[string]interface{}{
			"system_alerts": false, "digest_frequency": "daily",
		})
		checkCode(t, rec, http.StatusOK)

		var s notification.Settings
		decode(t, rec, &s)
		if s.SystemAlerts || s.DigestFrequency != notification.DigestDaily {
			t.Fatalf("unexpected settings after update: %+v", s)
		}
		if s.Allows(notification.CategorySystemAlert) {
			t.Error("system alerts should be muted")
		}
	})

	t.Run("bad digest frequency rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/v1/notifications/settings", studentToken, map[string]string{
			"digest_frequency": "hourly",
		})
		checkCode(t, rec, http.StatusBadRequest)
	})
}
