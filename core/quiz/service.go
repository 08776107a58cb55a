package quiz

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/pkg/errors"

	"github.com/Digitalguyco/convade-backend/core"
	"github.com/Digitalguyco/convade-backend/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("test not found")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrResponseNotFound   = errors.New("response not found")
	ErrResultNotFound     = errors.New("result not found")
	ErrTestNotAvailable   = errors.New("test is not available")
	ErrMaxAttemptsReached = errors.New("maximum attempts reached")
	ErrAttemptInProgress  = errors.New("an attempt is already in progress")
	ErrAttemptNotOpen     = errors.New("attempt is not in progress")
	ErrAttemptNotGradable = errors.New("attempt is not awaiting grading")
	ErrWrongPassword      = errors.New("incorrect test password")
	ErrNotEnrolled        = errors.New("student is not enrolled in this course")
	ErrReviewNotAllowed   = errors.New("this test does not allow review")
	ErrAttemptStillOpen   = errors.New("attempt is still in progress")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateTest(ctx context.Context, tst Test) (Test, error)
		QueryTests(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Test, error)
		GetTestByID(ctx context.Context, id string) (Test, error)
		UpdateTest(ctx context.Context, tst Test) (Test, error)
		DeleteTestsByID(ctx context.Context, ids ...string) (int, error)

		// CreateQuestion persists the question along with its answers.
		CreateQuestion(ctx context.Context, q Question) (Question, error)
		// QueryQuestions returns the test's questions with answers, in order.
		QueryQuestions(ctx context.Context, testID string) ([]Question, error)
		GetQuestionByID(ctx context.Context, id string) (Question, error)
		DeleteQuestionsByID(ctx context.Context, ids ...string) (int, error)

		CreateAttempt(ctx context.Context, att TestAttempt) (TestAttempt, error)
		GetAttemptByID(ctx context.Context, id string) (TestAttempt, error)
		QueryAttempts(ctx context.Context, testID, studentID, status string) ([]TestAttempt, error)
		UpdateAttempt(ctx context.Context, att TestAttempt) (TestAttempt, error)
		// QueryOverdueAttempts returns in-progress attempts past their deadline.
		QueryOverdueAttempts(ctx context.Context, now time.Time) ([]TestAttempt, error)

		UpsertResponse(ctx context.Context, resp QuestionResponse) (QuestionResponse, error)
		QueryResponses(ctx context.Context, attemptID string) ([]QuestionResponse, error)
		GetResponseByID(ctx context.Context, id string) (QuestionResponse, error)
		UpdateResponse(ctx context.Context, resp QuestionResponse) (QuestionResponse, error)

		GetResult(ctx context.Context, testID, studentID string) (TestResult, error)
		UpsertResult(ctx context.Context, res TestResult) (TestResult, error)
		QueryResults(ctx context.Context, testID, studentID string) ([]TestResult, error)
	}

	// ResultHook runs after a result is recomputed from a freshly graded
	// attempt. Wired at startup to enrollment grades and badge evaluation.
	ResultHook func(ctx context.Context, res TestResult, tst Test)

	// EnrollmentChecker reports whether the student holds an active enrollment
	// on the course. Wired at startup to the course service; gates StartAttempt.
	EnrollmentChecker func(ctx context.Context, studentID, courseID string) error

	// StartAttemptInput carries the request metadata recorded on an attempt.
	StartAttemptInput struct {
		Password  string
		IPAddress string
		UserAgent string
	}

	Service interface {
		Create(ctx context.Context, nt NewTest, instructor user.User) (Test, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Test, error)
		GetByID(ctx context.Context, id string) (Test, error)
		Publish(ctx context.Context, id string) (Test, error)
		Archive(ctx context.Context, id string) (Test, error)
		Delete(ctx context.Context, ids ...string) error

		AddQuestion(ctx context.Context, nq NewQuestion) (Question, error)
		QueryQuestions(ctx context.Context, testID string) ([]Question, error)
		DeleteQuestions(ctx context.Context, ids ...string) error

		// StartAttempt opens a new attempt when the test is available, the
		// student has attempts left and none in progress. Timed tests get a
		// hard deadline of start + time limit.
		StartAttempt(ctx context.Context, testID, studentID string, in StartAttemptInput) (TestAttempt, error)
		GetAttempt(ctx context.Context, id string) (TestAttempt, error)
		QueryAttempts(ctx context.Context, testID, studentID, status string) ([]TestAttempt, error)
		// SaveResponse stores an answer on an open attempt. A response past the
		// deadline force-submits the attempt instead.
		SaveResponse(ctx context.Context, attemptID string, sr SaveResponse) (QuestionResponse, error)
		// SubmitAttempt closes the attempt and machine-grades what it can.
		// Attempts with only auto-gradable work transition straight to graded;
		// the rest stay submitted awaiting manual grading. Late submissions are
		// accepted with time spent clamped to the limit.
		SubmitAttempt(ctx context.Context, attemptID string) (TestAttempt, error)
		// GradeResponse records an instructor grade on one response. Once every
		// response is graded the attempt transitions to graded.
		GradeResponse(ctx context.Context, responseID string, gi GradeInput, grader user.User) (TestAttempt, error)
		// ExpireOverdueAttempts force-submits abandoned timed attempts; those
		// without any saved responses are marked expired with no score.
		ExpireOverdueAttempts(ctx context.Context) (int, error)

		// ReviewAttempt returns a closed attempt with its questions and
		// responses. Correct answers and explanations are included only when
		// the test shows correct answers; tests with review disabled reject.
		ReviewAttempt(ctx context.Context, attemptID string) (AttemptReview, error)

		GetResult(ctx context.Context, testID, studentID string) (TestResult, error)
		QueryResults(ctx context.Context, testID, studentID string) ([]TestResult, error)

		SetResultHook(hook ResultHook)
		SetEnrollmentChecker(check EnrollmentChecker)
	}

	service struct {
		repo            Repository
		resultHook      ResultHook
		checkEnrollment EnrollmentChecker
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) SetResultHook(hook ResultHook) {
	svc.resultHook = hook
}

func (svc *service) SetEnrollmentChecker(check EnrollmentChecker) {
	svc.checkEnrollment = check
}

func (svc *service) Create(ctx context.Context, nt NewTest, instructor user.User) (Test, error) {
	now := nowFunc().UTC()
	tst := Test{
		Title:       nt.Title,
		Description: nt.Description,

		Type:         nt.Type,
		Status:       StatusDraft,
		CourseID:     nt.CourseID,
		LessonID:     nt.LessonID,
		InstructorID: instructor.ID,

		TimeLimit:      nt.TimeLimit,
		AvailableFrom:  nt.AvailableFrom,
		AvailableUntil: nt.AvailableUntil,

		MaxAttempts:          nt.MaxAttempts,
		AllowReview:          true,
		ShowCorrectAnswers:   true,
		ShowScoreImmediately: true,

		GradingMethod: nt.GradingMethod,
		PassingScore:  nt.PassingScore,

		RandomizeQuestions: nt.RandomizeQuestions,
		RandomizeAnswers:   nt.RandomizeAnswers,

		RequirePassword: nt.RequirePassword,
		AccessPassword:  nt.AccessPassword,

		CreatedAt: now,
		UpdatedAt: now,
	}
	if nt.AllowReview != nil {
		tst.AllowReview = *nt.AllowReview
	}
	if nt.ShowCorrectAnswers != nil {
		tst.ShowCorrectAnswers = *nt.ShowCorrectAnswers
	}
	if nt.ShowScoreImmediately != nil {
		tst.ShowScoreImmediately = *nt.ShowScoreImmediately
	}
	return svc.repo.CreateTest(ctx, tst)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Test, error) {
	return svc.repo.QueryTests(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Test, error) {
	return svc.repo.GetTestByID(ctx, id)
}

func (svc *service) Publish(ctx context.Context, id string) (Test, error) {
	tst, err := svc.repo.GetTestByID(ctx, id)
	if err != nil {
		return Test{}, err
	}
	if tst.Status == StatusPublished {
		return tst, nil
	}
	questions, err := svc.repo.QueryQuestions(ctx, id)
	if err != nil {
		return Test{}, err
	}
	now := nowFunc().UTC()
	tst.TotalPoints = totalPoints(questions)
	tst.Status = StatusPublished
	tst.PublishedAt = now
	tst.UpdatedAt = now
	return svc.repo.UpdateTest(ctx, tst)
}

func (svc *service) Archive(ctx context.Context, id string) (Test, error) {
	tst, err := svc.repo.GetTestByID(ctx, id)
	if err != nil {
		return Test{}, err
	}
	tst.Status = StatusArchived
	tst.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateTest(ctx, tst)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteTestsByID(ctx, ids...)
	return err
}

func (svc *service) AddQuestion(ctx context.Context, nq NewQuestion) (Question, error) {
	tst, err := svc.repo.GetTestByID(ctx, nq.TestID)
	if err != nil {
		return Question{}, err
	}

	now := nowFunc().UTC()
	q := Question{
		TestID:        nq.TestID,
		Text:          nq.Text,
		Type:          nq.Type,
		Order:         nq.Order,
		Points:        nq.Points,
		IsRequired:    true,
		Explanation:   nq.Explanation,
		CaseSensitive: nq.CaseSensitive,
		Difficulty:    nq.Difficulty,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if nq.IsRequired != nil {
		q.IsRequired = *nq.IsRequired
	}
	for _, na := range nq.Answers {
		q.Answers = append(q.Answers, Answer{
			Text:      na.Text,
			IsCorrect: na.IsCorrect,
			Order:     na.Order,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	q, err = svc.repo.CreateQuestion(ctx, q)
	if err != nil {
		return Question{}, err
	}

	// keep the denormalized total in sync
	tst.TotalPoints += q.Points
	tst.UpdatedAt = now
	if _, err = svc.repo.UpdateTest(ctx, tst); err != nil {
		return Question{}, errors.Wrap(err, "updating total points")
	}
	return q, nil
}

func (svc *service) QueryQuestions(ctx context.Context, testID string) ([]Question, error) {
	return svc.repo.QueryQuestions(ctx, testID)
}

func (svc *service) DeleteQuestions(ctx context.Context, ids ...string) error {
	affected := make(map[string]bool, 1)
	for _, id := range ids {
		q, err := svc.repo.GetQuestionByID(ctx, id)
		if err != nil {
			if errors.Cause(err) == ErrQuestionNotFound {
				continue
			}
			return err
		}
		affected[q.TestID] = true
	}

	if _, err := svc.repo.DeleteQuestionsByID(ctx, ids...); err != nil {
		return err
	}

	// keep the denormalized totals in sync
	now := nowFunc().UTC()
	for testID := range affected {
		tst, err := svc.repo.GetTestByID(ctx, testID)
		if err != nil {
			return err
		}
		questions, err := svc.repo.QueryQuestions(ctx, testID)
		if err != nil {
			return err
		}
		tst.TotalPoints = totalPoints(questions)
		tst.UpdatedAt = now
		if _, err = svc.repo.UpdateTest(ctx, tst); err != nil {
			return err
		}
	}
	return nil
}

func totalPoints(questions []Question) float64 {
	var total float64
	for _, q := range questions {
		total += q.Points
	}
	return total
}

func (svc *service) StartAttempt(ctx context.Context, testID, studentID string, in StartAttemptInput) (TestAttempt, error) {
	tst, err := svc.repo.GetTestByID(ctx, testID)
	if err != nil {
		return TestAttempt{}, err
	}

	now := nowFunc().UTC()
	if !tst.IsAvailable(now) {
		return TestAttempt{}, core.NewValidationError(ErrTestNotAvailable)
	}
	if svc.checkEnrollment != nil {
		if err = svc.checkEnrollment(ctx, studentID, tst.CourseID); err != nil {
			return TestAttempt{}, err
		}
	}
	if tst.RequirePassword {
		if subtle.ConstantTimeCompare([]byte(tst.AccessPassword), []byte(in.Password)) == 0 {
			return TestAttempt{}, core.NewValidationError(ErrWrongPassword)
		}
	}

	prev, err := svc.repo.QueryAttempts(ctx, testID, studentID, "")
	if err != nil {
		return TestAttempt{}, err
	}
	for _, att := range prev {
		if att.Status == AttemptInProgress {
			return TestAttempt{}, core.NewValidationError(ErrAttemptInProgress)
		}
	}
	if len(prev) >= tst.MaxAttempts {
		return TestAttempt{}, core.NewValidationError(ErrMaxAttemptsReached)
	}

	att := TestAttempt{
		TestID:        testID,
		StudentID:     studentID,
		AttemptNumber: len(prev) + 1,
		Status:        AttemptInProgress,
		StartedAt:     now,
		IPAddress:     in.IPAddress,
		UserAgent:     in.UserAgent,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if tst.HasTimeLimit() {
		att.ExpiresAt = now.Add(time.Duration(tst.TimeLimit) * time.Minute)
	}

	att, err = svc.repo.CreateAttempt(ctx, att)
	if err != nil {
		return TestAttempt{}, err
	}

	tst.TotalAttempts++
	tst.UpdatedAt = now
	if _, err = svc.repo.UpdateTest(ctx, tst); err != nil {
		return TestAttempt{}, errors.Wrap(err, "bumping attempt count")
	}
	return att, nil
}

func (svc *service) GetAttempt(ctx context.Context, id string) (TestAttempt, error) {
	return svc.repo.GetAttemptByID(ctx, id)
}

func (svc *service) QueryAttempts(ctx context.Context, testID, studentID, status string) ([]TestAttempt, error) {
	return svc.repo.QueryAttempts(ctx, testID, studentID, status)
}

func (svc *service) SaveResponse(ctx context.Context, attemptID string, sr SaveResponse) (QuestionResponse, error) {
	att, err := svc.repo.GetAttemptByID(ctx, attemptID)
	if err != nil {
		return QuestionResponse{}, err
	}
	if att.Status != AttemptInProgress {
		return QuestionResponse{}, core.NewValidationError(ErrAttemptNotOpen)
	}

	now := nowFunc().UTC()
	if att.IsExpired(now) {
		if _, err = svc.SubmitAttempt(ctx, attemptID); err != nil {
			return QuestionResponse{}, err
		}
		return QuestionResponse{}, core.NewValidationError(ErrAttemptNotOpen)
	}

	q, err := svc.repo.GetQuestionByID(ctx, sr.QuestionID)
	if err != nil {
		return QuestionResponse{}, err
	}
	if q.TestID != att.TestID {
		return QuestionResponse{}, core.NewValidationError(ErrQuestionNotFound)
	}

	resp := QuestionResponse{
		AttemptID:         attemptID,
		QuestionID:        sr.QuestionID,
		SelectedAnswerIDs: sr.SelectedAnswerIDs,
		TextResponse:      sr.TextResponse,
		TimeSpent:         sr.TimeSpent,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return svc.repo.UpsertResponse(ctx, resp)
}

func (svc *service) SubmitAttempt(ctx context.Context, attemptID string) (TestAttempt, error) {
	att, err := svc.repo.GetAttemptByID(ctx, attemptID)
	if err != nil {
		return TestAttempt{}, err
	}
	if att.Status != AttemptInProgress {
		return TestAttempt{}, core.NewValidationError(ErrAttemptNotOpen)
	}
	tst, err := svc.repo.GetTestByID(ctx, att.TestID)
	if err != nil {
		return TestAttempt{}, err
	}

	now := nowFunc().UTC()
	submittedAt := now
	if att.IsExpired(now) {
		// late submission counts, but only up to the deadline
		submittedAt = att.ExpiresAt
	}
	att.SubmittedAt = submittedAt
	att.TimeSpent = int(submittedAt.Sub(att.StartedAt).Seconds())
	att.Status = AttemptSubmitted
	att.UpdatedAt = now

	return svc.finalizeAttempt(ctx, att, tst)
}

// finalizeAttempt machine-grades what it can and settles the attempt status.
func (svc *service) finalizeAttempt(ctx context.Context, att TestAttempt, tst Test) (TestAttempt, error) {
	questions, err := svc.repo.QueryQuestions(ctx, att.TestID)
	if err != nil {
		return TestAttempt{}, err
	}
	responses, err := svc.repo.QueryResponses(ctx, att.ID)
	if err != nil {
		return TestAttempt{}, err
	}

	byID := make(map[string]Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	allGraded := true
	for i := range responses {
		resp := &responses[i]
		if resp.IsGraded {
			continue
		}
		q, ok := byID[resp.QuestionID]
		if !ok {
			continue
		}
		if tst.GradingMethod != GradingManual && autoGrade(q, resp) {
			if _, err = svc.repo.UpdateResponse(ctx, *resp); err != nil {
				return TestAttempt{}, err
			}
			continue
		}
		allGraded = false
	}

	if allGraded {
		calculateScore(&att, questions, responses, tst.PassingScore)
		att.Status = AttemptGraded
		att.AutoGraded = true
		att.GradedAt = nowFunc().UTC()
	}

	att, err = svc.repo.UpdateAttempt(ctx, att)
	if err != nil {
		return TestAttempt{}, err
	}
	if att.Status == AttemptGraded {
		if err = svc.refreshResult(ctx, tst, att.StudentID); err != nil {
			return TestAttempt{}, err
		}
	}
	return att, nil
}

func (svc *service) GradeResponse(ctx context.Context, responseID string, gi GradeInput, grader user.User) (TestAttempt, error) {
	resp, err := svc.repo.GetResponseByID(ctx, responseID)
	if err != nil {
		return TestAttempt{}, err
	}
	att, err := svc.repo.GetAttemptByID(ctx, resp.AttemptID)
	if err != nil {
		return TestAttempt{}, err
	}
	if att.Status != AttemptSubmitted {
		return TestAttempt{}, core.NewValidationError(ErrAttemptNotGradable)
	}
	q, err := svc.repo.GetQuestionByID(ctx, resp.QuestionID)
	if err != nil {
		return TestAttempt{}, err
	}
	tst, err := svc.repo.GetTestByID(ctx, att.TestID)
	if err != nil {
		return TestAttempt{}, err
	}

	if gi.PointsEarned > q.Points {
		gi.PointsEarned = q.Points
	}
	now := nowFunc().UTC()
	resp.PointsEarned = gi.PointsEarned
	resp.IsCorrect = gi.PointsEarned >= q.Points
	resp.IsGraded = true
	resp.Feedback = gi.Feedback
	resp.UpdatedAt = now
	if _, err = svc.repo.UpdateResponse(ctx, resp); err != nil {
		return TestAttempt{}, err
	}

	// settle the attempt once nothing is left ungraded
	responses, err := svc.repo.QueryResponses(ctx, att.ID)
	if err != nil {
		return TestAttempt{}, err
	}
	for _, r := range responses {
		if !r.IsGraded {
			att.UpdatedAt = now
			return svc.repo.UpdateAttempt(ctx, att)
		}
	}

	questions, err := svc.repo.QueryQuestions(ctx, att.TestID)
	if err != nil {
		return TestAttempt{}, err
	}
	calculateScore(&att, questions, responses, tst.PassingScore)
	att.Status = AttemptGraded
	att.ManuallyGraded = true
	att.GradedByID = grader.ID
	att.GradedAt = now
	att.UpdatedAt = now

	att, err = svc.repo.UpdateAttempt(ctx, att)
	if err != nil {
		return TestAttempt{}, err
	}
	if err = svc.refreshResult(ctx, tst, att.StudentID); err != nil {
		return TestAttempt{}, err
	}
	return att, nil
}

func (svc *service) ExpireOverdueAttempts(ctx context.Context) (int, error) {
	now := nowFunc().UTC()
	overdue, err := svc.repo.QueryOverdueAttempts(ctx, now)
	if err != nil {
		return 0, err
	}

	var count int
	for _, att := range overdue {
		responses, err := svc.repo.QueryResponses(ctx, att.ID)
		if err != nil {
			return count, err
		}
		if len(responses) == 0 {
			// nothing to grade
			att.Status = AttemptExpired
			att.SubmittedAt = att.ExpiresAt
			att.TimeSpent = int(att.ExpiresAt.Sub(att.StartedAt).Seconds())
			att.UpdatedAt = now
			if _, err = svc.repo.UpdateAttempt(ctx, att); err != nil {
				return count, err
			}
			count++
			continue
		}
		if _, err = svc.SubmitAttempt(ctx, att.ID); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (svc *service) ReviewAttempt(ctx context.Context, attemptID string) (AttemptReview, error) {
	att, err := svc.repo.GetAttemptByID(ctx, attemptID)
	if err != nil {
		return AttemptReview{}, err
	}
	if att.Status == AttemptInProgress {
		return AttemptReview{}, core.NewValidationError(ErrAttemptStillOpen)
	}
	tst, err := svc.repo.GetTestByID(ctx, att.TestID)
	if err != nil {
		return AttemptReview{}, err
	}
	if !tst.AllowReview {
		return AttemptReview{}, core.NewValidationError(ErrReviewNotAllowed)
	}

	questions, err := svc.repo.QueryQuestions(ctx, att.TestID)
	if err != nil {
		return AttemptReview{}, err
	}
	responses, err := svc.repo.QueryResponses(ctx, att.ID)
	if err != nil {
		return AttemptReview{}, err
	}
	byQuestion := make(map[string]QuestionResponse, len(responses))
	for _, r := range responses {
		byQuestion[r.QuestionID] = r
	}

	review := AttemptReview{Attempt: att, ShowCorrectAnswers: tst.ShowCorrectAnswers}
	for _, q := range questions {
		item := ReviewItem{Question: q, Response: byQuestion[q.ID]}
		if tst.ShowCorrectAnswers {
			for _, a := range q.Answers {
				if a.IsCorrect {
					item.CorrectAnswerIDs = append(item.CorrectAnswerIDs, a.ID)
				}
			}
		} else {
			// explanations give the answers away
			item.Question.Explanation = ""
		}
		review.Items = append(review.Items, item)
	}
	return review, nil
}

func (svc *service) GetResult(ctx context.Context, testID, studentID string) (TestResult, error) {
	return svc.repo.GetResult(ctx, testID, studentID)
}

func (svc *service) QueryResults(ctx context.Context, testID, studentID string) ([]TestResult, error) {
	return svc.repo.QueryResults(ctx, testID, studentID)
}

// refreshResult recomputes the student's aggregate from all graded attempts
// and refreshes the test's running average.
func (svc *service) refreshResult(ctx context.Context, tst Test, studentID string) error {
	graded, err := svc.repo.QueryAttempts(ctx, tst.ID, studentID, AttemptGraded)
	if err != nil {
		return err
	}
	if len(graded) == 0 {
		return nil
	}

	res, err := svc.repo.GetResult(ctx, tst.ID, studentID)
	if err != nil {
		if errors.Cause(err) != ErrResultNotFound {
			return err
		}
		res = TestResult{
			TestID:    tst.ID,
			StudentID: studentID,
			CreatedAt: nowFunc().UTC(),
		}
	}

	first, best := graded[0], graded[0]
	var totalScore float64
	var totalTime int
	last := graded[0]
	for _, att := range graded {
		totalScore += att.Score
		totalTime += att.TimeSpent
		if att.Score > best.Score {
			best = att
		}
		if att.AttemptNumber < first.AttemptNumber {
			first = att
		}
		if att.SubmittedAt.After(last.SubmittedAt) {
			last = att
		}
	}

	res.BestAttemptID = best.ID
	res.BestScore = best.Score
	res.BestPercentage = best.Percentage
	res.TotalAttempts = len(graded)
	res.AverageScore = totalScore / float64(len(graded))
	res.FirstAttemptScore = first.Score
	res.IsPassed = res.BestPercentage >= float64(tst.PassingScore)
	res.IsCompleted = true
	res.TotalTimeSpent = totalTime
	res.FirstCompletedAt = first.SubmittedAt
	res.LastAttemptAt = last.SubmittedAt
	res.UpdatedAt = nowFunc().UTC()

	res, err = svc.repo.UpsertResult(ctx, res)
	if err != nil {
		return err
	}

	if err = svc.refreshTestAverage(ctx, tst); err != nil {
		return err
	}
	if svc.resultHook != nil {
		svc.resultHook(ctx, res, tst)
	}
	return nil
}

func (svc *service) refreshTestAverage(ctx context.Context, tst Test) error {
	graded, err := svc.repo.QueryAttempts(ctx, tst.ID, "", AttemptGraded)
	if err != nil {
		return err
	}
	if len(graded) == 0 {
		return nil
	}
	var total float64
	for _, att := range graded {
		total += att.Score
	}
	tst.AverageScore = total / float64(len(graded))
	tst.UpdatedAt = nowFunc().UTC()
	_, err = svc.repo.UpdateTest(ctx, tst)
	return err
}
