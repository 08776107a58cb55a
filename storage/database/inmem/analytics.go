package inmemdb

import (
	"context"
	"sort"

	"github.com/Digitalguyco/convade-backend/core/analytics"
	"github.com/Digitalguyco/convade-backend/core/course"
	"github.com/Digitalguyco/convade-backend/core/quiz"
	"github.com/Digitalguyco/convade-backend/core/user"
)

type analyticsRepository struct {
	db *DB
}

var _ analytics.Repository = (*analyticsRepository)(nil)

func NewAnalyticsRepository(db *DB) analytics.Repository {
	return &analyticsRepository{db: db}
}

func (repo *analyticsRepository) CountUsers(ctx context.Context) (total, active int, err error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.db.users {
		total++
		if usr.Status == user.StatusActive {
			active++
		}
	}
	return total, active, nil
}

func (repo *analyticsRepository) CountCourses(ctx context.Context) (total, published int, err error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, crs := range repo.db.courses {
		total++
		if crs.Status == course.StatusPublished {
			published++
		}
	}
	return total, published, nil
}

func (repo *analyticsRepository) CountEnrollments(ctx context.Context) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.db.enrollments), nil
}

func (repo *analyticsRepository) CountAttempts(ctx context.Context) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.db.attempts), nil
}

func (repo *analyticsRepository) QueryCourseStats(ctx context.Context, instructorID string) ([]analytics.CourseStats, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var stats []analytics.CourseStats
	for _, crs := range repo.db.courses {
		if instructorID != "" && crs.InstructorID != instructorID {
			continue
		}
		cs := analytics.CourseStats{CourseID: crs.ID, Title: crs.Title}
		var gradeSum float64
		for _, enr := range repo.db.enrollments {
			if enr.CourseID != crs.ID {
				continue
			}
			cs.EnrollmentCount++
			if enr.Status == course.EnrollmentCompleted {
				cs.CompletionCount++
				gradeSum += enr.CurrentGrade
			}
		}
		if cs.EnrollmentCount > 0 {
			cs.CompletionRate = float64(cs.CompletionCount) / float64(cs.EnrollmentCount) * 100
		}
		if cs.CompletionCount > 0 {
			cs.AverageGrade = gradeSum / float64(cs.CompletionCount)
		}
		stats = append(stats, cs)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].EnrollmentCount != stats[j].EnrollmentCount {
			return stats[i].EnrollmentCount > stats[j].EnrollmentCount
		}
		return stats[i].Title < stats[j].Title
	})
	return stats, nil
}

func (repo *analyticsRepository) QueryTestStats(ctx context.Context, instructorID string) ([]analytics.TestStats, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var stats []analytics.TestStats
	for _, tst := range repo.db.tests {
		if instructorID != "" && tst.InstructorID != instructorID {
			continue
		}
		ts := analytics.TestStats{TestID: tst.ID, Title: tst.Title}
		var scoreSum float64
		var passed int
		for _, att := range repo.db.attempts {
			if att.TestID != tst.ID || att.Status != quiz.AttemptGraded {
				continue
			}
			ts.AttemptCount++
			scoreSum += att.Percentage
			if att.IsPassed {
				passed++
			}
		}
		if ts.AttemptCount > 0 {
			ts.AverageScore = scoreSum / float64(ts.AttemptCount)
			ts.PassRate = float64(passed) / float64(ts.AttemptCount) * 100
		}
		stats = append(stats, ts)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].AttemptCount != stats[j].AttemptCount {
			return stats[i].AttemptCount > stats[j].AttemptCount
		}
		return stats[i].Title < stats[j].Title
	})
	return stats, nil
}
