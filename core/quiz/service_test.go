package quiz_test

import (
	"context"
	"testing"
	"time"

	"github.com/Digitalguyco/convade-backend/core"
	"github.com/Digitalguyco/convade-backend/core/quiz"
	"github.com/Digitalguyco/convade-backend/core/user"
	inmemdb "github.com/Digitalguyco/convade-backend/storage/database/inmem"
)

var (
	instructor = user.User{ID: "t1", Role: user.RoleTeacher}
	ctx        = context.Background()
)

func newTestService(t *testing.T) (quiz.Service, quiz.Repository) {
	t.Helper()
	repo := inmemdb.NewQuizRepository(inmemdb.NewDB())
	return quiz.NewService(repo), repo
}

// publishTest sets up a published test with one essay question.
func publishTest(t *testing.T, svc quiz.Service, nt quiz.NewTest) (quiz.Test, quiz.Question) {
	t.Helper()
	tst, err := svc.Create(ctx, nt, instructor)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	q, err := svc.AddQuestion(ctx, quiz.NewQuestion{
		TestID: tst.ID,
		Text:   "Explain the water cycle.",
		Type:   quiz.QuestionEssay,
		Points: 10,
	})
	if err != nil {
		t.Fatalf("AddQuestion() failed: %v", err)
	}
	if tst, err = svc.Publish(ctx, tst.ID); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	return tst, q
}

func TestServiceManualGrading(t *testing.T) {
	svc, _ := newTestService(t)
	tst, q := publishTest(t, svc, quiz.NewTest{
		Title: "Essay Exam", CourseID: "crs1", Type: quiz.TypeExam,
		MaxAttempts: 1, PassingScore: 70, GradingMethod: quiz.GradingMixed,
	})

	att, err := svc.StartAttempt(ctx, tst.ID, "s1", quiz.StartAttemptInput{})
	if err != nil {
		t.Fatalf("StartAttempt() failed: %v", err)
	}

	resp, err := svc.SaveResponse(ctx, att.ID, quiz.SaveResponse{
		QuestionID: q.ID, TextResponse: "Evaporation, condensation, precipitation.",
	})
	if err != nil {
		t.Fatalf("SaveResponse() failed: %v", err)
	}

	// essays cannot be machine graded, the attempt waits for the instructor
	att, err = svc.SubmitAttempt(ctx, att.ID)
	if err != nil {
		t.Fatalf("SubmitAttempt() failed: %v", err)
	}
	if att.Status != quiz.AttemptSubmitted || att.AutoGraded {
		t.Fatalf("unexpected attempt after submit: %+v", att)
	}
	if _, err = svc.GetResult(ctx, tst.ID, "s1"); err == nil {
		t.Fatal("GetResult() should fail before grading")
	}

	att, err = svc.GradeResponse(ctx, resp.ID, quiz.GradeInput{PointsEarned: 8, Feedback: "solid"}, instructor)
	if err != nil {
		t.Fatalf("GradeResponse() failed: %v", err)
	}
	if att.Status != quiz.AttemptGraded || !att.ManuallyGraded || att.GradedByID != instructor.ID {
		t.Fatalf("unexpected attempt after grading: %+v", att)
	}
	if att.Score != 8 || att.Percentage != 80 || !att.IsPassed {
		t.Fatalf("unexpected score: %+v", att)
	}

	res, err := svc.GetResult(ctx, tst.ID, "s1")
	if err != nil {
		t.Fatalf("GetResult() failed: %v", err)
	}
	if res.BestPercentage != 80 || !res.IsPassed || res.TotalAttempts != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestServiceGradeResponseCapsPoints(t *testing.T) {
	svc, _ := newTestService(t)
	tst, q := publishTest(t, svc, quiz.NewTest{
		Title: "Essay Exam", CourseID: "crs1", MaxAttempts: 1, PassingScore: 70,
	})

	att, err := svc.StartAttempt(ctx, tst.ID, "s1", quiz.StartAttemptInput{})
	if err != nil {
		t.Fatalf("StartAttempt() failed: %v", err)
	}
	resp, err := svc.SaveResponse(ctx, att.ID, quiz.SaveResponse{QuestionID: q.ID, TextResponse: "..."})
	if err != nil {
		t.Fatalf("SaveResponse() failed: %v", err)
	}
	if _, err = svc.SubmitAttempt(ctx, att.ID); err != nil {
		t.Fatalf("SubmitAttempt() failed: %v", err)
	}

	att, err = svc.GradeResponse(ctx, resp.ID, quiz.GradeInput{PointsEarned: 9000}, instructor)
	if err != nil {
		t.Fatalf("GradeResponse() failed: %v", err)
	}
	if att.Score != q.Points {
		t.Errorf("Score = %v, want capped at %v", att.Score, q.Points)
	}
}

func TestServiceExpireOverdueAttempts(t *testing.T) {
	svc, repo := newTestService(t)
	tst, q := publishTest(t, svc, quiz.NewTest{
		Title: "Timed Quiz", CourseID: "crs1", TimeLimit: 30, MaxAttempts: 1, PassingScore: 70,
	})

	backdate := func(t *testing.T, att quiz.TestAttempt) {
		t.Helper()
		att.StartedAt = att.StartedAt.Add(-2 * time.Hour)
		att.ExpiresAt = att.ExpiresAt.Add(-2 * time.Hour)
		if _, err := repo.UpdateAttempt(ctx, att); err != nil {
			t.Fatalf("UpdateAttempt() failed: %v", err)
		}
	}

	// idle has no responses, busy answered before the deadline
	idle, err := svc.StartAttempt(ctx, tst.ID, "idle", quiz.StartAttemptInput{})
	if err != nil {
		t.Fatalf("StartAttempt() failed: %v", err)
	}
	if idle.ExpiresAt.IsZero() {
		t.Fatal("timed attempts must carry a deadline")
	}
	busy, err := svc.StartAttempt(ctx, tst.ID, "busy", quiz.StartAttemptInput{})
	if err != nil {
		t.Fatalf("StartAttempt() failed: %v", err)
	}
	if _, err = svc.SaveResponse(ctx, busy.ID, quiz.SaveResponse{QuestionID: q.ID, TextResponse: "..."}); err != nil {
		t.Fatalf("SaveResponse() failed: %v", err)
	}

	backdate(t, idle)
	backdate(t, busy)

	count, err := svc.ExpireOverdueAttempts(ctx)
	if err != nil {
		t.Fatalf("ExpireOverdueAttempts() failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("processed %d attempts; want 2", count)
	}

	idle, err = svc.GetAttempt(ctx, idle.ID)
	if err != nil {
		t.Fatalf("GetAttempt() failed: %v", err)
	}
	if idle.Status != quiz.AttemptExpired || idle.Score != 0 {
		t.Fatalf("unexpected idle attempt: %+v", idle)
	}

	busy, err = svc.GetAttempt(ctx, busy.ID)
	if err != nil {
		t.Fatalf("GetAttempt() failed: %v", err)
	}
	// force-submitted at the deadline with time spent clamped to the limit
	if busy.Status != quiz.AttemptSubmitted {
		t.Fatalf("unexpected busy attempt: %+v", busy)
	}
	if want := int((30 * time.Minute).Seconds()); busy.TimeSpent != want {
		t.Errorf("TimeSpent = %d, want %d", busy.TimeSpent, want)
	}
	if !busy.SubmittedAt.Equal(busy.ExpiresAt) {
		t.Errorf("SubmittedAt = %v, want the deadline %v", busy.SubmittedAt, busy.ExpiresAt)
	}
}

func TestServiceTotalPointsTracking(t *testing.T) {
	svc, repo := newTestService(t)

	tst, err := svc.Create(ctx, quiz.NewTest{Title: "Points Quiz", CourseID: "crs1", MaxAttempts: 1, PassingScore: 70}, instructor)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if _, err = svc.AddQuestion(ctx, quiz.NewQuestion{TestID: tst.ID, Text: "Q1", Type: quiz.QuestionEssay, Points: 10}); err != nil {
		t.Fatalf("AddQuestion() failed: %v", err)
	}
	q2, err := svc.AddQuestion(ctx, quiz.NewQuestion{TestID: tst.ID, Text: "Q2", Type: quiz.QuestionEssay, Points: 5})
	if err != nil {
		t.Fatalf("AddQuestion() failed: %v", err)
	}

	tst, err = svc.GetByID(ctx, tst.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if tst.TotalPoints != 15 {
		t.Fatalf("TotalPoints = %v, want 15", tst.TotalPoints)
	}

	// deleting a question releases its points
	if err = svc.DeleteQuestions(ctx, q2.ID); err != nil {
		t.Fatalf("DeleteQuestions() failed: %v", err)
	}
	tst, err = svc.GetByID(ctx, tst.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if tst.TotalPoints != 10 {
		t.Fatalf("TotalPoints after delete = %v, want 10", tst.TotalPoints)
	}

	// publishing recomputes a drifted total
	tst.TotalPoints = 999
	if _, err = repo.UpdateTest(ctx, tst); err != nil {
		t.Fatalf("UpdateTest() failed: %v", err)
	}
	tst, err = svc.Publish(ctx, tst.ID)
	if err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if tst.TotalPoints != 10 {
		t.Errorf("TotalPoints after publish = %v, want 10", tst.TotalPoints)
	}
}

func TestServiceStartAttemptEnrollmentGate(t *testing.T) {
	svc, _ := newTestService(t)
	tst, _ := publishTest(t, svc, quiz.NewTest{
		Title: "Gated Quiz", CourseID: "crs1", MaxAttempts: 1, PassingScore: 70,
	})

	svc.SetEnrollmentChecker(func(_ context.Context, studentID, courseID string) error {
		if courseID != "crs1" {
			t.Errorf("checker got course %q, want crs1", courseID)
		}
		if studentID != "member" {
			return core.NewValidationError(quiz.ErrNotEnrolled)
		}
		return nil
	})

	_, err := svc.StartAttempt(ctx, tst.ID, "outsider", quiz.StartAttemptInput{})
	if !core.IsValidationError(err) {
		t.Fatalf("StartAttempt() unenrolled = %v, want validation error", err)
	}
	if _, err = svc.StartAttempt(ctx, tst.ID, "member", quiz.StartAttemptInput{}); err != nil {
		t.Fatalf("StartAttempt() enrolled failed: %v", err)
	}
}

func TestServiceStartAttemptGuards(t *testing.T) {
	svc, _ := newTestService(t)

	tst, err := svc.Create(ctx, quiz.NewTest{Title: "Draft Quiz", CourseID: "crs1", MaxAttempts: 1, PassingScore: 70}, instructor)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	// drafts are not available
	_, err = svc.StartAttempt(ctx, tst.ID, "s1", quiz.StartAttemptInput{})
	if !core.IsValidationError(err) {
		t.Fatalf("StartAttempt() on draft = %v, want validation error", err)
	}

	if _, err = svc.Publish(ctx, tst.ID); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if _, err = svc.StartAttempt(ctx, tst.ID, "s1", quiz.StartAttemptInput{}); err != nil {
		t.Fatalf("StartAttempt() failed: %v", err)
	}

	// one open attempt at a time
	_, err = svc.StartAttempt(ctx, tst.ID, "s1", quiz.StartAttemptInput{})
	if !core.IsValidationError(err) {
		t.Fatalf("StartAttempt() with one in progress = %v, want validation error", err)
	}
}
