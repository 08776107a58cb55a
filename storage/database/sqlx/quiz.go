package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Digitalguyco/convade-backend/core"
	"github.com/Digitalguyco/convade-backend/core/quiz"
)

type testRow struct {
	ID          string `db:"id"`
	Title       string `db:"title"`
	Description string `db:"description"`

	Type         string      `db:"test_type"`
	Status       string      `db:"status"`
	CourseID     string      `db:"course_id"`
	LessonID     null.String `db:"lesson_id"`
	InstructorID string      `db:"instructor_id"`

	TimeLimit      int       `db:"time_limit"`
	AvailableFrom  null.Time `db:"available_from"`
	AvailableUntil null.Time `db:"available_until"`

	MaxAttempts          int  `db:"max_attempts"`
	AllowReview          bool `db:"allow_review"`
	ShowCorrectAnswers   bool `db:"show_correct_answers"`
	ShowScoreImmediately bool `db:"show_score_immediately"`

	GradingMethod string  `db:"grading_method"`
	PassingScore  int     `db:"passing_score"`
	TotalPoints   float64 `db:"total_points"`

	RandomizeQuestions bool `db:"randomize_questions"`
	RandomizeAnswers   bool `db:"randomize_answers"`

	RequirePassword bool   `db:"require_password"`
	AccessPassword  string `db:"access_password"`

	TotalAttempts int     `db:"total_attempts"`
	AverageScore  float64 `db:"average_score"`

	PublishedAt null.Time `db:"published_at"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r testRow) toDomain() quiz.Test {
	return quiz.Test{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,

		Type:         r.Type,
		Status:       r.Status,
		CourseID:     r.CourseID,
		LessonID:     r.LessonID.String,
		InstructorID: r.InstructorID,

		TimeLimit:      r.TimeLimit,
		AvailableFrom:  fromNullTime(r.AvailableFrom),
		AvailableUntil: fromNullTime(r.AvailableUntil),

		MaxAttempts:          r.MaxAttempts,
		AllowReview:          r.AllowReview,
		ShowCorrectAnswers:   r.ShowCorrectAnswers,
		ShowScoreImmediately: r.ShowScoreImmediately,

		GradingMethod: r.GradingMethod,
		PassingScore:  r.PassingScore,
		TotalPoints:   r.TotalPoints,

		RandomizeQuestions: r.RandomizeQuestions,
		RandomizeAnswers:   r.RandomizeAnswers,

		RequirePassword: r.RequirePassword,
		AccessPassword:  r.AccessPassword,

		TotalAttempts: r.TotalAttempts,
		AverageScore:  r.AverageScore,

		PublishedAt: fromNullTime(r.PublishedAt),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func newTestRow(tst quiz.Test) testRow {
	return testRow{
		ID:          tst.ID,
		Title:       tst.Title,
		Description: tst.Description,

		Type:         tst.Type,
		Status:       tst.Status,
		CourseID:     tst.CourseID,
		LessonID:     nullString(tst.LessonID),
		InstructorID: tst.InstructorID,

		TimeLimit:      tst.TimeLimit,
		AvailableFrom:  nullTime(tst.AvailableFrom),
		AvailableUntil: nullTime(tst.AvailableUntil),

		MaxAttempts:          tst.MaxAttempts,
		AllowReview:          tst.AllowReview,
		ShowCorrectAnswers:   tst.ShowCorrectAnswers,
		ShowScoreImmediately: tst.ShowScoreImmediately,

		GradingMethod: tst.GradingMethod,
		PassingScore:  tst.PassingScore,
		TotalPoints:   tst.TotalPoints,

		RandomizeQuestions: tst.RandomizeQuestions,
		RandomizeAnswers:   tst.RandomizeAnswers,

		RequirePassword: tst.RequirePassword,
		AccessPassword:  tst.AccessPassword,

		TotalAttempts: tst.TotalAttempts,
		AverageScore:  tst.AverageScore,

		PublishedAt: nullTime(tst.PublishedAt),
		CreatedAt:   tst.CreatedAt,
		UpdatedAt:   tst.UpdatedAt,
	}
}

const testColumns = `id, title, description, test_type, status, course_id, lesson_id,
	instructor_id, time_limit, available_from, available_until, max_attempts, allow_review,
	show_correct_answers, show_score_immediately, grading_method, passing_score, total_points,
	randomize_questions, randomize_answers, require_password, access_password, total_attempts,
	average_score, published_at, created_at, updated_at`

type questionRow struct {
	ID            string    `db:"id"`
	TestID        string    `db:"test_id"`
	Text          string    `db:"text"`
	Type          string    `db:"question_type"`
	Order         int       `db:"question_order"`
	Points        float64   `db:"points"`
	IsRequired    bool      `db:"is_required"`
	Explanation   string    `db:"explanation"`
	CaseSensitive bool      `db:"case_sensitive"`
	Difficulty    string    `db:"difficulty"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r questionRow) toDomain() quiz.Question {
	return quiz.Question{
		ID:            r.ID,
		TestID:        r.TestID,
		Text:          r.Text,
		Type:          r.Type,
		Order:         r.Order,
		Points:        r.Points,
		IsRequired:    r.IsRequired,
		Explanation:   r.Explanation,
		CaseSensitive: r.CaseSensitive,
		Difficulty:    r.Difficulty,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

const questionColumns = `id, test_id, text, question_type, question_order, points, is_required,
	explanation, case_sensitive, difficulty, created_at, updated_at`

type answerRow struct {
	ID         string    `db:"id"`
	QuestionID string    `db:"question_id"`
	Text       string    `db:"text"`
	IsCorrect  bool      `db:"is_correct"`
	Order      int       `db:"answer_order"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r answerRow) toDomain() quiz.Answer {
	return quiz.Answer{
		ID:         r.ID,
		QuestionID: r.QuestionID,
		Text:       r.Text,
		IsCorrect:  r.IsCorrect,
		Order:      r.Order,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

const answerColumns = `id, question_id, text, is_correct, answer_order, created_at, updated_at`

type attemptRow struct {
	ID        string `db:"id"`
	TestID    string `db:"test_id"`
	StudentID string `db:"student_id"`

	AttemptNumber int    `db:"attempt_number"`
	Status        string `db:"status"`

	StartedAt   time.Time `db:"started_at"`
	SubmittedAt null.Time `db:"submitted_at"`
	ExpiresAt   null.Time `db:"expires_at"`
	TimeSpent   int       `db:"time_spent"`

	Score      float64 `db:"score"`
	Percentage float64 `db:"percentage"`
	IsPassed   bool    `db:"is_passed"`

	AutoGraded     bool        `db:"auto_graded"`
	ManuallyGraded bool        `db:"manually_graded"`
	GradedByID     null.String `db:"graded_by_id"`
	GradedAt       null.Time   `db:"graded_at"`

	InstructorFeedback string `db:"instructor_feedback"`
	IPAddress          string `db:"ip_address"`
	UserAgent          string `db:"user_agent"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r attemptRow) toDomain() quiz.TestAttempt {
	return quiz.TestAttempt{
		ID:        r.ID,
		TestID:    r.TestID,
		StudentID: r.StudentID,

		AttemptNumber: r.AttemptNumber,
		Status:        r.Status,

		StartedAt:   r.StartedAt.UTC(),
		SubmittedAt: fromNullTime(r.SubmittedAt),
		TimeSpent:   r.TimeSpent,
		ExpiresAt:   fromNullTime(r.ExpiresAt),

		Score:      r.Score,
		Percentage: r.Percentage,
		IsPassed:   r.IsPassed,

		AutoGraded:     r.AutoGraded,
		ManuallyGraded: r.ManuallyGraded,
		GradedByID:     r.GradedByID.String,
		GradedAt:       fromNullTime(r.GradedAt),

		IPAddress: r.IPAddress,
		UserAgent: r.UserAgent,

		InstructorFeedback: r.InstructorFeedback,

		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func newAttemptRow(att quiz.TestAttempt) attemptRow {
	return attemptRow{
		ID:        att.ID,
		TestID:    att.TestID,
		StudentID: att.StudentID,

		AttemptNumber: att.AttemptNumber,
		Status:        att.Status,

		StartedAt:   att.StartedAt,
		SubmittedAt: nullTime(att.SubmittedAt),
		ExpiresAt:   nullTime(att.ExpiresAt),
		TimeSpent:   att.TimeSpent,

		Score:      att.Score,
		Percentage: att.Percentage,
		IsPassed:   att.IsPassed,

		AutoGraded:     att.AutoGraded,
		ManuallyGraded: att.ManuallyGraded,
		GradedByID:     nullString(att.GradedByID),
		GradedAt:       nullTime(att.GradedAt),

		InstructorFeedback: att.InstructorFeedback,
		IPAddress:          att.IPAddress,
		UserAgent:          att.UserAgent,

		CreatedAt: att.CreatedAt,
		UpdatedAt: att.UpdatedAt,
	}
}

const attemptColumns = `id, test_id, student_id, attempt_number, status, started_at,
	submitted_at, expires_at, time_spent, score, percentage, is_passed, auto_graded,
	manually_graded, graded_by_id, graded_at, instructor_feedback, ip_address, user_agent,
	created_at, updated_at`

type responseRow struct {
	ID         string `db:"id"`
	AttemptID  string `db:"attempt_id"`
	QuestionID string `db:"question_id"`

	SelectedAnswerIDs string `db:"selected_answer_ids"`
	TextResponse      string `db:"text_response"`

	PointsEarned float64 `db:"points_earned"`
	IsCorrect    bool    `db:"is_correct"`
	IsGraded     bool    `db:"is_graded"`

	Feedback  string `db:"feedback"`
	TimeSpent int    `db:"time_spent"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r responseRow) toDomain() quiz.QuestionResponse {
	return quiz.QuestionResponse{
		ID:                r.ID,
		AttemptID:         r.AttemptID,
		QuestionID:        r.QuestionID,
		SelectedAnswerIDs: splitIDs(r.SelectedAnswerIDs),
		TextResponse:      r.TextResponse,
		PointsEarned:      r.PointsEarned,
		IsCorrect:         r.IsCorrect,
		IsGraded:          r.IsGraded,
		Feedback:          r.Feedback,
		TimeSpent:         r.TimeSpent,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

const responseColumns = `id, attempt_id, question_id, selected_answer_ids, text_response,
	points_earned, is_correct, is_graded, feedback, time_spent, created_at, updated_at`

// selected answer ids travel as a comma-joined text column
func joinIDs(ids []string) string { return strings.Join(ids, ",") }

func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

type resultRow struct {
	ID        string `db:"id"`
	TestID    string `db:"test_id"`
	StudentID string `db:"student_id"`

	BestAttemptID  null.String `db:"best_attempt_id"`
	BestScore      float64     `db:"best_score"`
	BestPercentage float64     `db:"best_percentage"`

	TotalAttempts     int     `db:"total_attempts"`
	AverageScore      float64 `db:"average_score"`
	FirstAttemptScore float64 `db:"first_attempt_score"`

	IsPassed    bool `db:"is_passed"`
	IsCompleted bool `db:"is_completed"`

	TotalTimeSpent   int       `db:"total_time_spent"`
	FirstCompletedAt null.Time `db:"first_completed_at"`
	LastAttemptAt    null.Time `db:"last_attempt_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r resultRow) toDomain() quiz.TestResult {
	return quiz.TestResult{
		ID:        r.ID,
		TestID:    r.TestID,
		StudentID: r.StudentID,

		BestAttemptID:  r.BestAttemptID.String,
		BestScore:      r.BestScore,
		BestPercentage: r.BestPercentage,

		TotalAttempts:     r.TotalAttempts,
		AverageScore:      r.AverageScore,
		FirstAttemptScore: r.FirstAttemptScore,

		IsPassed:    r.IsPassed,
		IsCompleted: r.IsCompleted,

		TotalTimeSpent:   r.TotalTimeSpent,
		FirstCompletedAt: fromNullTime(r.FirstCompletedAt),
		LastAttemptAt:    fromNullTime(r.LastAttemptAt),

		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

const resultColumns = `id, test_id, student_id, best_attempt_id, best_score, best_percentage,
	total_attempts, average_score, first_attempt_score, is_passed, is_completed,
	total_time_spent, first_completed_at, last_attempt_at, created_at, updated_at`

type quizRepository struct {
	db *sqlx.DB
}

var _ quiz.Repository = (*quizRepository)(nil)

func NewQuizRepository(db *sqlx.DB) quiz.Repository {
	return &quizRepository{db: db}
}

func (repo *quizRepository) CreateTest(ctx context.Context, tst quiz.Test) (quiz.Test, error) {
	if tst.ID == "" {
		tst.ID = uuid.NewString()
	}
	q := `INSERT INTO tests (` + testColumns + `) VALUES (
		:id, :title, :description, :test_type, :status, :course_id, :lesson_id, :instructor_id,
		:time_limit, :available_from, :available_until, :max_attempts, :allow_review,
		:show_correct_answers, :show_score_immediately, :grading_method, :passing_score,
		:total_points, :randomize_questions, :randomize_answers, :require_password,
		:access_password, :total_attempts, :average_score, :published_at, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, newTestRow(tst)); err != nil {
		return quiz.Test{}, errors.Wrap(err, "creating test")
	}
	return tst, nil
}

func (repo *quizRepository) QueryTests(ctx context.Context, filter *quiz.QueryFilter, ordering []core.DBOrdering) ([]quiz.Test, error) {
	q := `SELECT ` + testColumns + ` FROM tests`
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			conds = append(conds, fmt.Sprintf("(title ILIKE %[1]s OR description ILIKE %[1]s)", p))
		}
		if filter.Type != "" {
			conds = append(conds, "test_type = "+arg(filter.Type))
		}
		if filter.Status != "" {
			conds = append(conds, "status = "+arg(filter.Status))
		}
		if filter.CourseID != "" {
			conds = append(conds, "course_id = "+arg(filter.CourseID))
		}
		if filter.InstructorID != "" {
			conds = append(conds, "instructor_id = "+arg(filter.InstructorID))
		}
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += orderBy(ordering, "created_at DESC")

	var rows []testRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying tests")
	}
	tests := make([]quiz.Test, 0, len(rows))
	for _, row := range rows {
		tests = append(tests, row.toDomain())
	}
	return tests, nil
}

func (repo *quizRepository) GetTestByID(ctx context.Context, id string) (quiz.Test, error) {
	var row testRow
	q := `SELECT ` + testColumns + ` FROM tests WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return quiz.Test{}, quiz.ErrNotFound
		}
		return quiz.Test{}, errors.Wrap(err, "getting test")
	}
	return row.toDomain(), nil
}

func (repo *quizRepository) UpdateTest(ctx context.Context, tst quiz.Test) (quiz.Test, error) {
	q := `UPDATE tests SET
		title = :title, description = :description, test_type = :test_type, status = :status,
		lesson_id = :lesson_id, time_limit = :time_limit, available_from = :available_from,
		available_until = :available_until, max_attempts = :max_attempts,
		allow_review = :allow_review, show_correct_answers = :show_correct_answers,
		show_score_immediately = :show_score_immediately, grading_method = :grading_method,
		passing_score = :passing_score, total_points = :total_points,
		randomize_questions = :randomize_questions, randomize_answers = :randomize_answers,
		require_password = :require_password, access_password = :access_password,
		total_attempts = :total_attempts, average_score = :average_score,
		published_at = :published_at, updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newTestRow(tst))
	if err != nil {
		return quiz.Test{}, errors.Wrap(err, "updating test")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return quiz.Test{}, quiz.ErrNotFound
	}
	return tst, nil
}

func (repo *quizRepository) DeleteTestsByID(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM tests WHERE id = ANY($1)`, stringArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting tests")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo *quizRepository) CreateQuestion(ctx context.Context, q quiz.Question) (quiz.Question, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return quiz.Question{}, errors.Wrap(err, "starting tx")
	}
	defer func() { _ = tx.Rollback() }()

	insQ := `INSERT INTO questions (` + questionColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = tx.ExecContext(ctx, insQ,
		q.ID, q.TestID, q.Text, q.Type, q.Order, q.Points, q.IsRequired,
		q.Explanation, q.CaseSensitive, q.Difficulty, q.CreatedAt, q.UpdatedAt)
	if err != nil {
		return quiz.Question{}, errors.Wrap(err, "creating question")
	}

	insA := `INSERT INTO answers (` + answerColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for i := range q.Answers {
		ans := &q.Answers[i]
		if ans.ID == "" {
			ans.ID = uuid.NewString()
		}
		ans.QuestionID = q.ID
		_, err = tx.ExecContext(ctx, insA,
			ans.ID, ans.QuestionID, ans.Text, ans.IsCorrect, ans.Order, ans.CreatedAt, ans.UpdatedAt)
		if err != nil {
			return quiz.Question{}, errors.Wrap(err, "creating answer")
		}
	}

	if err = tx.Commit(); err != nil {
		return quiz.Question{}, errors.Wrap(err, "committing question")
	}
	return q, nil
}

func (repo *quizRepository) QueryQuestions(ctx context.Context, testID string) ([]quiz.Question, error) {
	q := `SELECT ` + questionColumns + ` FROM questions WHERE test_id = $1 ORDER BY question_order ASC`
	var qRows []questionRow
	if err := repo.db.SelectContext(ctx, &qRows, q, testID); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	if len(qRows) == 0 {
		return nil, nil
	}

	aq := `SELECT a.id, a.question_id, a.text, a.is_correct, a.answer_order, a.created_at, a.updated_at
	FROM answers a
	JOIN questions q ON q.id = a.question_id
	WHERE q.test_id = $1
	ORDER BY a.answer_order ASC`
	var aRows []answerRow
	if err := repo.db.SelectContext(ctx, &aRows, aq, testID); err != nil {
		return nil, errors.Wrap(err, "querying answers")
	}

	byQuestion := make(map[string][]quiz.Answer, len(qRows))
	for _, row := range aRows {
		byQuestion[row.QuestionID] = append(byQuestion[row.QuestionID], row.toDomain())
	}

	questions := make([]quiz.Question, 0, len(qRows))
	for _, row := range qRows {
		question := row.toDomain()
		question.Answers = byQuestion[question.ID]
		questions = append(questions, question)
	}
	return questions, nil
}

func (repo *quizRepository) GetQuestionByID(ctx context.Context, id string) (quiz.Question, error) {
	var row questionRow
	q := `SELECT ` + questionColumns + ` FROM questions WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return quiz.Question{}, quiz.ErrQuestionNotFound
		}
		return quiz.Question{}, errors.Wrap(err, "getting question")
	}

	var aRows []answerRow
	aq := `SELECT ` + answerColumns + ` FROM answers WHERE question_id = $1 ORDER BY answer_order ASC`
	if err := repo.db.SelectContext(ctx, &aRows, aq, id); err != nil {
		return quiz.Question{}, errors.Wrap(err, "getting question answers")
	}

	question := row.toDomain()
	for _, ar := range aRows {
		question.Answers = append(question.Answers, ar.toDomain())
	}
	return question, nil
}

func (repo *quizRepository) DeleteQuestionsByID(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM questions WHERE id = ANY($1)`, stringArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting questions")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo *quizRepository) CreateAttempt(ctx context.Context, att quiz.TestAttempt) (quiz.TestAttempt, error) {
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	q := `INSERT INTO test_attempts (` + attemptColumns + `) VALUES (
		:id, :test_id, :student_id, :attempt_number, :status, :started_at, :submitted_at,
		:expires_at, :time_spent, :score, :percentage, :is_passed, :auto_graded,
		:manually_graded, :graded_by_id, :graded_at, :instructor_feedback, :ip_address,
		:user_agent, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, newAttemptRow(att)); err != nil {
		return quiz.TestAttempt{}, errors.Wrap(err, "creating attempt")
	}
	return att, nil
}

func (repo *quizRepository) GetAttemptByID(ctx context.Context, id string) (quiz.TestAttempt, error) {
	var row attemptRow
	q := `SELECT ` + attemptColumns + ` FROM test_attempts WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return quiz.TestAttempt{}, quiz.ErrAttemptNotFound
		}
		return quiz.TestAttempt{}, errors.Wrap(err, "getting attempt")
	}
	return row.toDomain(), nil
}

func (repo *quizRepository) QueryAttempts(ctx context.Context, testID, studentID, status string) ([]quiz.TestAttempt, error) {
	q := `SELECT ` + attemptColumns + ` FROM test_attempts`
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if testID != "" {
		conds = append(conds, "test_id = "+arg(testID))
	}
	if studentID != "" {
		conds = append(conds, "student_id = "+arg(studentID))
	}
	if status != "" {
		conds = append(conds, "status = "+arg(status))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY attempt_number ASC"

	var rows []attemptRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying attempts")
	}
	attempts := make([]quiz.TestAttempt, 0, len(rows))
	for _, row := range rows {
		attempts = append(attempts, row.toDomain())
	}
	return attempts, nil
}

func (repo *quizRepository) UpdateAttempt(ctx context.Context, att quiz.TestAttempt) (quiz.TestAttempt, error) {
	q := `UPDATE test_attempts SET
		status = :status, submitted_at = :submitted_at, expires_at = :expires_at,
		time_spent = :time_spent, score = :score, percentage = :percentage,
		is_passed = :is_passed, auto_graded = :auto_graded, manually_graded = :manually_graded,
		graded_by_id = :graded_by_id, graded_at = :graded_at,
		instructor_feedback = :instructor_feedback, updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newAttemptRow(att))
	if err != nil {
		return quiz.TestAttempt{}, errors.Wrap(err, "updating attempt")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return quiz.TestAttempt{}, quiz.ErrAttemptNotFound
	}
	return att, nil
}

func (repo *quizRepository) QueryOverdueAttempts(ctx context.Context, now time.Time) ([]quiz.TestAttempt, error) {
	q := `SELECT ` + attemptColumns + ` FROM test_attempts
	WHERE status = $1 AND expires_at IS NOT NULL AND expires_at <= $2`
	var rows []attemptRow
	if err := repo.db.SelectContext(ctx, &rows, q, quiz.AttemptInProgress, now); err != nil {
		return nil, errors.Wrap(err, "querying overdue attempts")
	}
	attempts := make([]quiz.TestAttempt, 0, len(rows))
	for _, row := range rows {
		attempts = append(attempts, row.toDomain())
	}
	return attempts, nil
}

func (repo *quizRepository) UpsertResponse(ctx context.Context, resp quiz.QuestionResponse) (quiz.QuestionResponse, error) {
	if resp.ID == "" {
		resp.ID = uuid.NewString()
	}
	q := `INSERT INTO question_responses (` + responseColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (attempt_id, question_id) DO UPDATE SET
		selected_answer_ids = EXCLUDED.selected_answer_ids,
		text_response = EXCLUDED.text_response,
		time_spent = question_responses.time_spent + EXCLUDED.time_spent,
		updated_at = EXCLUDED.updated_at
	RETURNING ` + responseColumns
	var row responseRow
	err := repo.db.GetContext(ctx, &row, q,
		resp.ID, resp.AttemptID, resp.QuestionID, joinIDs(resp.SelectedAnswerIDs),
		resp.TextResponse, resp.PointsEarned, resp.IsCorrect, resp.IsGraded,
		resp.Feedback, resp.TimeSpent, resp.CreatedAt, resp.UpdatedAt)
	if err != nil {
		return quiz.QuestionResponse{}, errors.Wrap(err, "upserting response")
	}
	return row.toDomain(), nil
}

func (repo *quizRepository) QueryResponses(ctx context.Context, attemptID string) ([]quiz.QuestionResponse, error) {
	q := `SELECT ` + responseColumns + ` FROM question_responses WHERE attempt_id = $1 ORDER BY created_at ASC`
	var rows []responseRow
	if err := repo.db.SelectContext(ctx, &rows, q, attemptID); err != nil {
		return nil, errors.Wrap(err, "querying responses")
	}
	responses := make([]quiz.QuestionResponse, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, row.toDomain())
	}
	return responses, nil
}

func (repo *quizRepository) GetResponseByID(ctx context.Context, id string) (quiz.QuestionResponse, error) {
	var row responseRow
	q := `SELECT ` + responseColumns + ` FROM question_responses WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return quiz.QuestionResponse{}, quiz.ErrResponseNotFound
		}
		return quiz.QuestionResponse{}, errors.Wrap(err, "getting response")
	}
	return row.toDomain(), nil
}

func (repo *quizRepository) UpdateResponse(ctx context.Context, resp quiz.QuestionResponse) (quiz.QuestionResponse, error) {
	q := `UPDATE question_responses SET
		selected_answer_ids = $1, text_response = $2, points_earned = $3, is_correct = $4,
		is_graded = $5, feedback = $6, time_spent = $7, updated_at = $8
	WHERE id = $9`
	res, err := repo.db.ExecContext(ctx, q,
		joinIDs(resp.SelectedAnswerIDs), resp.TextResponse, resp.PointsEarned, resp.IsCorrect,
		resp.IsGraded, resp.Feedback, resp.TimeSpent, resp.UpdatedAt, resp.ID)
	if err != nil {
		return quiz.QuestionResponse{}, errors.Wrap(err, "updating response")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return quiz.QuestionResponse{}, quiz.ErrResponseNotFound
	}
	return resp, nil
}

func (repo *quizRepository) GetResult(ctx context.Context, testID, studentID string) (quiz.TestResult, error) {
	var row resultRow
	q := `SELECT ` + resultColumns + ` FROM test_results WHERE test_id = $1 AND student_id = $2`
	if err := repo.db.GetContext(ctx, &row, q, testID, studentID); err != nil {
		if isNoRows(err) {
			return quiz.TestResult{}, quiz.ErrResultNotFound
		}
		return quiz.TestResult{}, errors.Wrap(err, "getting result")
	}
	return row.toDomain(), nil
}

func (repo *quizRepository) UpsertResult(ctx context.Context, res quiz.TestResult) (quiz.TestResult, error) {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	q := `INSERT INTO test_results (` + resultColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (test_id, student_id) DO UPDATE SET
		best_attempt_id = EXCLUDED.best_attempt_id,
		best_score = EXCLUDED.best_score,
		best_percentage = EXCLUDED.best_percentage,
		total_attempts = EXCLUDED.total_attempts,
		average_score = EXCLUDED.average_score,
		first_attempt_score = EXCLUDED.first_attempt_score,
		is_passed = EXCLUDED.is_passed,
		is_completed = EXCLUDED.is_completed,
		total_time_spent = EXCLUDED.total_time_spent,
		first_completed_at = EXCLUDED.first_completed_at,
		last_attempt_at = EXCLUDED.last_attempt_at,
		updated_at = EXCLUDED.updated_at
	RETURNING ` + resultColumns
	var row resultRow
	err := repo.db.GetContext(ctx, &row, q,
		res.ID, res.TestID, res.StudentID, nullString(res.BestAttemptID), res.BestScore,
		res.BestPercentage, res.TotalAttempts, res.AverageScore, res.FirstAttemptScore,
		res.IsPassed, res.IsCompleted, res.TotalTimeSpent, nullTime(res.FirstCompletedAt),
		nullTime(res.LastAttemptAt), res.CreatedAt, res.UpdatedAt)
	if err != nil {
		return quiz.TestResult{}, errors.Wrap(err, "upserting result")
	}
	return row.toDomain(), nil
}

func (repo *quizRepository) QueryResults(ctx context.Context, testID, studentID string) ([]quiz.TestResult, error) {
	q := `SELECT ` + resultColumns + ` FROM test_results`
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if testID != "" {
		conds = append(conds, "test_id = "+arg(testID))
	}
	if studentID != "" {
		conds = append(conds, "student_id = "+arg(studentID))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY updated_at DESC"

	var rows []resultRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying results")
	}
	results := make([]quiz.TestResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.toDomain())
	}
	return results, nil
}
