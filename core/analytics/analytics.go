package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("no analytics recorded")

	// DashboardTTL bounds staleness of cached aggregates.
	DashboardTTL = 5 * time.Minute
)

type (
	// Dashboard is the admin/instructor overview.
	Dashboard struct {
		TotalUsers       int `json:"total_users"`
		ActiveUsers      int `json:"active_users"`
		TotalCourses     int `json:"total_courses"`
		PublishedCourses int `json:"published_courses"`
		TotalEnrollments int `json:"total_enrollments"`
		TotalAttempts    int `json:"total_attempts"`

		Courses []CourseStats `json:"courses"`
		Tests   []TestStats   `json:"tests"`

		GeneratedAt time.Time `json:"generated_at"`
	}

	CourseStats struct {
		CourseID        string  `json:"course_id"`
		Title           string  `json:"title"`
		EnrollmentCount int     `json:"enrollment_count"`
		CompletionCount int     `json:"completion_count"`
		CompletionRate  float64 `json:"completion_rate"`
		AverageGrade    float64 `json:"average_grade"`
	}

	TestStats struct {
		TestID       string  `json:"test_id"`
		Title        string  `json:"title"`
		AttemptCount int     `json:"attempt_count"`
		AverageScore float64 `json:"average_score"`
		PassRate     float64 `json:"pass_rate"`
	}

	// Repository aggregates straight from the database.
	Repository interface {
		CountUsers(ctx context.Context) (total, active int, err error)
		CountCourses(ctx context.Context) (total, published int, err error)
		CountEnrollments(ctx context.Context) (int, error)
		CountAttempts(ctx context.Context) (int, error)
		// QueryCourseStats scopes to the instructor's courses when
		// instructorID is set; empty means all courses.
		QueryCourseStats(ctx context.Context, instructorID string) ([]CourseStats, error)
		QueryTestStats(ctx context.Context, instructorID string) ([]TestStats, error)
	}

	// Cache is a best-effort store for computed dashboards. A nil Cache
	// disables caching.
	Cache interface {
		Get(ctx context.Context, key string) ([]byte, error)
		Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	}

	Service interface {
		// Dashboard returns platform-wide aggregates, or the instructor's
		// slice of them when instructorID is set.
		Dashboard(ctx context.Context, instructorID string) (Dashboard, error)
	}

	service struct {
		repo  Repository
		cache Cache
	}
)

var (
	_ Service = (*service)(nil)

	nowFunc = time.Now // mockable
)

func NewService(repo Repository, cache Cache) Service {
	return &service{repo: repo, cache: cache}
}

func (svc *service) Dashboard(ctx context.Context, instructorID string) (Dashboard, error) {
	key := cacheKey(instructorID)
	if svc.cache != nil {
		if raw, err := svc.cache.Get(ctx, key); err == nil && len(raw) > 0 {
			var dash Dashboard
			if err = json.Unmarshal(raw, &dash); err == nil {
				return dash, nil
			}
		}
	}

	dash, err := svc.compute(ctx, instructorID)
	if err != nil {
		return Dashboard{}, err
	}

	if svc.cache != nil {
		if raw, err := json.Marshal(dash); err == nil {
			_ = svc.cache.Set(ctx, key, raw, DashboardTTL) // best effort
		}
	}
	return dash, nil
}

func (svc *service) compute(ctx context.Context, instructorID string) (Dashboard, error) {
	var (
		dash Dashboard
		err  error
	)
	if dash.TotalUsers, dash.ActiveUsers, err = svc.repo.CountUsers(ctx); err != nil {
		return Dashboard{}, errors.Wrap(err, "counting users")
	}
	if dash.TotalCourses, dash.PublishedCourses, err = svc.repo.CountCourses(ctx); err != nil {
		return Dashboard{}, errors.Wrap(err, "counting courses")
	}
	if dash.TotalEnrollments, err = svc.repo.CountEnrollments(ctx); err != nil {
		return Dashboard{}, errors.Wrap(err, "counting enrollments")
	}
	if dash.TotalAttempts, err = svc.repo.CountAttempts(ctx); err != nil {
		return Dashboard{}, errors.Wrap(err, "counting attempts")
	}
	if dash.Courses, err = svc.repo.QueryCourseStats(ctx, instructorID); err != nil {
		return Dashboard{}, errors.Wrap(err, "querying course stats")
	}
	if dash.Tests, err = svc.repo.QueryTestStats(ctx, instructorID); err != nil {
		return Dashboard{}, errors.Wrap(err, "querying test stats")
	}
	dash.GeneratedAt = nowFunc().UTC()
	return dash, nil
}

func cacheKey(instructorID string) string {
	if instructorID == "" {
		return "analytics:dashboard"
	}
	return "analytics:dashboard:" + instructorID
}
