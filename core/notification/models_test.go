package notification

import (
	"testing"
	"time"
)

func TestSettingsAllows(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name     string
		mutate   func(*Settings)
		category string
		want     bool
	}{
		{name: "defaults allow", mutate: func(*Settings) {}, category: CategoryCourseUpdate, want: true},
		{name: "globally disabled", mutate: func(s *Settings) { s.Enabled = false }, category: CategoryCourseUpdate},
		{name: "in-app disabled", mutate: func(s *Settings) { s.InAppEnabled = false }, category: CategoryCourseUpdate},
		{name: "category muted", mutate: func(s *Settings) { s.BadgeNotifications = false }, category: CategoryBadgeEarned},
		{name: "other categories unaffected", mutate: func(s *Settings) { s.BadgeNotifications = false }, category: CategoryTestResult, want: true},
		{name: "unknown category allowed", mutate: func(*Settings) {}, category: CategorySupport, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings("u1", now)
			tt.mutate(&s)
			if got := s.Allows(tt.category); got != tt.want {
				t.Errorf("Allows(%q) = %v, want %v", tt.category, got, tt.want)
			}
		})
	}
}

func TestSettingsAllowsEmail(t *testing.T) {
	now := time.Now().UTC()

	s := DefaultSettings("u1", now)
	if !s.AllowsEmail(CategoryEnrollment) {
		t.Error("AllowsEmail() with defaults = false, want true")
	}

	s.EmailEnabled = false
	if s.AllowsEmail(CategoryEnrollment) {
		t.Error("AllowsEmail() with email off = true, want false")
	}
}

func TestNotificationIsExpired(t *testing.T) {
	now := time.Now().UTC()

	if (Notification{}).IsExpired(now) {
		t.Error("IsExpired() without expiry = true, want false")
	}
	if (Notification{ExpiresAt: now.Add(time.Hour)}).IsExpired(now) {
		t.Error("IsExpired() before expiry = true, want false")
	}
	if !(Notification{ExpiresAt: now.Add(-time.Hour)}).IsExpired(now) {
		t.Error("IsExpired() past expiry = false, want true")
	}
}
