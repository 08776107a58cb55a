package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Digitalguyco/convade-backend/core/analytics"
	"github.com/Digitalguyco/convade-backend/core/course"
	"github.com/Digitalguyco/convade-backend/core/quiz"
	"github.com/Digitalguyco/convade-backend/core/user"
)

type analyticsRepository struct {
	db *sqlx.DB
}

var _ analytics.Repository = (*analyticsRepository)(nil)

func NewAnalyticsRepository(db *sqlx.DB) analytics.Repository {
	return &analyticsRepository{db: db}
}

func (repo *analyticsRepository) CountUsers(ctx context.Context) (total, active int, err error) {
	q := `SELECT COUNT(id), COUNT(id) FILTER (WHERE status = $1) FROM users`
	row := repo.db.QueryRowxContext(ctx, q, user.StatusActive)
	if err = row.Scan(&total, &active); err != nil {
		return 0, 0, errors.Wrap(err, "counting users")
	}
	return total, active, nil
}

func (repo *analyticsRepository) CountCourses(ctx context.Context) (total, published int, err error) {
	q := `SELECT COUNT(id), COUNT(id) FILTER (WHERE status = $1) FROM courses`
	row := repo.db.QueryRowxContext(ctx, q, course.StatusPublished)
	if err = row.Scan(&total, &published); err != nil {
		return 0, 0, errors.Wrap(err, "counting courses")
	}
	return total, published, nil
}

func (repo *analyticsRepository) CountEnrollments(ctx context.Context) (int, error) {
	var count int
	if err := repo.db.GetContext(ctx, &count, `SELECT COUNT(id) FROM enrollments`); err != nil {
		return 0, errors.Wrap(err, "counting enrollments")
	}
	return count, nil
}

func (repo *analyticsRepository) CountAttempts(ctx context.Context) (int, error) {
	var count int
	if err := repo.db.GetContext(ctx, &count, `SELECT COUNT(id) FROM test_attempts`); err != nil {
		return 0, errors.Wrap(err, "counting attempts")
	}
	return count, nil
}

type courseStatsRow struct {
	CourseID        string  `db:"course_id"`
	Title           string  `db:"title"`
	EnrollmentCount int     `db:"enrollment_count"`
	CompletionCount int     `db:"completion_count"`
	AverageGrade    float64 `db:"average_grade"`
}

func (repo *analyticsRepository) QueryCourseStats(ctx context.Context, instructorID string) ([]analytics.CourseStats, error) {
	q := `SELECT c.id AS course_id, c.title,
			COUNT(e.id) AS enrollment_count,
			COUNT(e.id) FILTER (WHERE e.status = $1) AS completion_count,
			COALESCE(AVG(e.current_grade) FILTER (WHERE e.status = $1), 0) AS average_grade
		FROM courses c
		LEFT JOIN enrollments e ON e.course_id = c.id`
	args := []interface{}{course.EnrollmentCompleted}
	if instructorID != "" {
		args = append(args, instructorID)
		q += ` WHERE c.instructor_id = $2`
	}
	q += ` GROUP BY c.id, c.title ORDER BY enrollment_count DESC, c.title`

	var rows []courseStatsRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying course stats")
	}
	stats := make([]analytics.CourseStats, 0, len(rows))
	for _, row := range rows {
		cs := analytics.CourseStats{
			CourseID:        row.CourseID,
			Title:           row.Title,
			EnrollmentCount: row.EnrollmentCount,
			CompletionCount: row.CompletionCount,
			AverageGrade:    row.AverageGrade,
		}
		if cs.EnrollmentCount > 0 {
			cs.CompletionRate = float64(cs.CompletionCount) / float64(cs.EnrollmentCount) * 100
		}
		stats = append(stats, cs)
	}
	return stats, nil
}

type testStatsRow struct {
	TestID       string  `db:"test_id"`
	Title        string  `db:"title"`
	AttemptCount int     `db:"attempt_count"`
	PassedCount  int     `db:"passed_count"`
	AverageScore float64 `db:"average_score"`
}

func (repo *analyticsRepository) QueryTestStats(ctx context.Context, instructorID string) ([]analytics.TestStats, error) {
	q := `SELECT t.id AS test_id, t.title,
			COUNT(a.id) AS attempt_count,
			COUNT(a.id) FILTER (WHERE a.is_passed) AS passed_count,
			COALESCE(AVG(a.percentage), 0) AS average_score
		FROM tests t
		LEFT JOIN test_attempts a ON a.test_id = t.id AND a.status = $1`
	args := []interface{}{quiz.AttemptGraded}
	if instructorID != "" {
		args = append(args, instructorID)
		q += ` WHERE t.instructor_id = $2`
	}
	q += ` GROUP BY t.id, t.title ORDER BY attempt_count DESC, t.title`

	var rows []testStatsRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying test stats")
	}
	stats := make([]analytics.TestStats, 0, len(rows))
	for _, row := range rows {
		ts := analytics.TestStats{
			TestID:       row.TestID,
			Title:        row.Title,
			AttemptCount: row.AttemptCount,
			AverageScore: row.AverageScore,
		}
		if ts.AttemptCount > 0 {
			ts.PassRate = float64(row.PassedCount) / float64(ts.AttemptCount) * 100
		}
		stats = append(stats, ts)
	}
	return stats, nil
}
