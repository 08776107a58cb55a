package course

import (
	"testing"
	"time"
)

func TestCourseIsEnrollmentOpen(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name string
		crs  Course
		want bool
	}{
		{name: "no window", crs: Course{}, want: true},
		{name: "before window", crs: Course{EnrollmentStart: now.Add(time.Hour)}},
		{name: "after window", crs: Course{EnrollmentEnd: now.Add(-time.Hour)}},
		{name: "within window", crs: Course{EnrollmentStart: now.Add(-time.Hour), EnrollmentEnd: now.Add(time.Hour)}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.crs.IsEnrollmentOpen(now); got != tt.want {
				t.Errorf("IsEnrollmentOpen() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCourseIsActive(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name string
		crs  Course
		want bool
	}{
		{name: "published no dates", crs: Course{Status: StatusPublished}, want: true},
		{name: "draft", crs: Course{Status: StatusDraft}},
		{name: "archived", crs: Course{Status: StatusArchived}},
		{name: "not started", crs: Course{Status: StatusPublished, StartDate: now.Add(time.Hour)}},
		{name: "ended", crs: Course{Status: StatusPublished, EndDate: now.Add(-time.Hour)}},
		{name: "running", crs: Course{Status: StatusPublished, StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour)}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.crs.IsActive(now); got != tt.want {
				t.Errorf("IsActive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCourseAvailableSlots(t *testing.T) {
	crs := Course{MaxStudents: 10, EnrollmentCount: 7}
	if got := crs.AvailableSlots(); got != 3 {
		t.Errorf("AvailableSlots() = %d, want 3", got)
	}
	crs.EnrollmentCount = 12 // over-enrolled never goes negative
	if got := crs.AvailableSlots(); got != 0 {
		t.Errorf("AvailableSlots() = %d, want 0", got)
	}
}

func TestCourseCompletionRate(t *testing.T) {
	crs := Course{EnrollmentCount: 8, CompletionCount: 2}
	if got := crs.CompletionRate(); got != 25 {
		t.Errorf("CompletionRate() = %v, want 25", got)
	}
	crs.EnrollmentCount = 0
	if got := crs.CompletionRate(); got != 0 {
		t.Errorf("CompletionRate() = %v, want 0", got)
	}
}

func TestEnrollmentIsPassed(t *testing.T) {
	crs := Course{PassingScore: 70}
	tests := []struct {
		name string
		enr  Enrollment
		want bool
	}{
		{name: "no grade yet", enr: Enrollment{}},
		{name: "below passing", enr: Enrollment{FinalGrade: 69.5}},
		{name: "at passing", enr: Enrollment{FinalGrade: 70}, want: true},
		{name: "above passing", enr: Enrollment{FinalGrade: 92}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.enr.IsPassed(crs); got != tt.want {
				t.Errorf("IsPassed() = %v, want %v", got, tt.want)
			}
		})
	}
}
