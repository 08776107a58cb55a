package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Digitalguyco/convade-backend/core"
	"github.com/Digitalguyco/convade-backend/core/quiz"
)

type quizRepository struct {
	db *DB
}

var _ quiz.Repository = (*quizRepository)(nil)

func NewQuizRepository(db *DB) quiz.Repository {
	return &quizRepository{db: db}
}

func (repo *quizRepository) CreateTest(ctx context.Context, tst quiz.Test) (quiz.Test, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if tst.ID == "" {
		tst.ID = uuid.NewString()
	}
	repo.db.tests[tst.ID] = tst
	return tst, nil
}

func (repo *quizRepository) QueryTests(ctx context.Context, filter *quiz.QueryFilter, ordering []core.DBOrdering) ([]quiz.Test, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	tests := make([]quiz.Test, 0, len(repo.db.tests))
	for _, tst := range repo.db.tests {
		if filter != nil {
			if filter.Search != "" && !containsFold(tst.Title, filter.Search) {
				continue
			}
			if filter.Type != "" && tst.Type != filter.Type {
				continue
			}
			if filter.Status != "" && tst.Status != filter.Status {
				continue
			}
			if filter.CourseID != "" && tst.CourseID != filter.CourseID {
				continue
			}
			if filter.InstructorID != "" && tst.InstructorID != filter.InstructorID {
				continue
			}
		}
		tests = append(tests, tst)
	}
	sort.Slice(tests, func(i, j int) bool { return tests[i].CreatedAt.After(tests[j].CreatedAt) })
	return tests, nil
}

func (repo *quizRepository) GetTestByID(ctx context.Context, id string) (quiz.Test, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if tst, ok := repo.db.tests[id]; ok {
		return tst, nil
	}
	return quiz.Test{}, quiz.ErrNotFound
}

func (repo *quizRepository) UpdateTest(ctx context.Context, tst quiz.Test) (quiz.Test, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.tests[tst.ID]; !ok {
		return quiz.Test{}, quiz.ErrNotFound
	}
	repo.db.tests[tst.ID] = tst
	return tst, nil
}

func (repo *quizRepository) DeleteTestsByID(ctx context.Context, ids ...string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.tests[id]; ok {
			delete(repo.db.tests, id)
			n++
		}
	}
	return n, nil
}

func (repo *quizRepository) CreateQuestion(ctx context.Context, q quiz.Question) (quiz.Question, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	for i := range q.Answers {
		if q.Answers[i].ID == "" {
			q.Answers[i].ID = uuid.NewString()
		}
		q.Answers[i].QuestionID = q.ID
	}
	repo.db.questions[q.ID] = q
	return q, nil
}

func (repo *quizRepository) QueryQuestions(ctx context.Context, testID string) ([]quiz.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var questions []quiz.Question
	for _, q := range repo.db.questions {
		if q.TestID == testID {
			questions = append(questions, q)
		}
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].Order < questions[j].Order })
	return questions, nil
}

func (repo *quizRepository) GetQuestionByID(ctx context.Context, id string) (quiz.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if q, ok := repo.db.questions[id]; ok {
		return q, nil
	}
	return quiz.Question{}, quiz.ErrQuestionNotFound
}

func (repo *quizRepository) DeleteQuestionsByID(ctx context.Context, ids ...string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.questions[id]; ok {
			delete(repo.db.questions, id)
			n++
		}
	}
	return n, nil
}

func (repo *quizRepository) CreateAttempt(ctx context.Context, att quiz.TestAttempt) (quiz.TestAttempt, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	repo.db.attempts[att.ID] = att
	return att, nil
}

func (repo *quizRepository) GetAttemptByID(ctx context.Context, id string) (quiz.TestAttempt, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if att, ok := repo.db.attempts[id]; ok {
		return att, nil
	}
	return quiz.TestAttempt{}, quiz.ErrAttemptNotFound
}

func (repo *quizRepository) QueryAttempts(ctx context.Context, testID, studentID, status string) ([]quiz.TestAttempt, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var atts []quiz.TestAttempt
	for _, att := range repo.db.attempts {
		if testID != "" && att.TestID != testID {
			continue
		}
		if studentID != "" && att.StudentID != studentID {
			continue
		}
		if status != "" && att.Status != status {
			continue
		}
		atts = append(atts, att)
	}
	sort.Slice(atts, func(i, j int) bool { return atts[i].AttemptNumber < atts[j].AttemptNumber })
	return atts, nil
}

func (repo *quizRepository) UpdateAttempt(ctx context.Context, att quiz.TestAttempt) (quiz.TestAttempt, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.attempts[att.ID]; !ok {
		return quiz.TestAttempt{}, quiz.ErrAttemptNotFound
	}
	repo.db.attempts[att.ID] = att
	return att, nil
}

func (repo *quizRepository) QueryOverdueAttempts(ctx context.Context, now time.Time) ([]quiz.TestAttempt, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var atts []quiz.TestAttempt
	for _, att := range repo.db.attempts {
		if att.Status == quiz.AttemptInProgress && !att.ExpiresAt.IsZero() && !att.ExpiresAt.After(now) {
			atts = append(atts, att)
		}
	}
	return atts, nil
}

func (repo *quizRepository) UpsertResponse(ctx context.Context, resp quiz.QuestionResponse) (quiz.QuestionResponse, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, cur := range repo.db.responses {
		if cur.AttemptID == resp.AttemptID && cur.QuestionID == resp.QuestionID {
			resp.ID = id
			resp.CreatedAt = cur.CreatedAt
			resp.TimeSpent += cur.TimeSpent
			repo.db.responses[id] = resp
			return resp, nil
		}
	}
	if resp.ID == "" {
		resp.ID = uuid.NewString()
	}
	repo.db.responses[resp.ID] = resp
	return resp, nil
}

func (repo *quizRepository) QueryResponses(ctx context.Context, attemptID string) ([]quiz.QuestionResponse, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var resps []quiz.QuestionResponse
	for _, resp := range repo.db.responses {
		if resp.AttemptID == attemptID {
			resps = append(resps, resp)
		}
	}
	sort.Slice(resps, func(i, j int) bool { return resps[i].CreatedAt.Before(resps[j].CreatedAt) })
	return resps, nil
}

func (repo *quizRepository) GetResponseByID(ctx context.Context, id string) (quiz.QuestionResponse, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if resp, ok := repo.db.responses[id]; ok {
		return resp, nil
	}
	return quiz.QuestionResponse{}, quiz.ErrResponseNotFound
}

func (repo *quizRepository) UpdateResponse(ctx context.Context, resp quiz.QuestionResponse) (quiz.QuestionResponse, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.responses[resp.ID]; !ok {
		return quiz.QuestionResponse{}, quiz.ErrResponseNotFound
	}
	repo.db.responses[resp.ID] = resp
	return resp, nil
}

func (repo *quizRepository) GetResult(ctx context.Context, testID, studentID string) (quiz.TestResult, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, res := range repo.db.results {
		if res.TestID == testID && res.StudentID == studentID {
			return res, nil
		}
	}
	return quiz.TestResult{}, quiz.ErrResultNotFound
}

func (repo *quizRepository) UpsertResult(ctx context.Context, res quiz.TestResult) (quiz.TestResult, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, cur := range repo.db.results {
		if cur.TestID == res.TestID && cur.StudentID == res.StudentID {
			res.ID = id
			res.CreatedAt = cur.CreatedAt
			repo.db.results[id] = res
			return res, nil
		}
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	repo.db.results[res.ID] = res
	return res, nil
}

func (repo *quizRepository) QueryResults(ctx context.Context, testID, studentID string) ([]quiz.TestResult, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var results []quiz.TestResult
	for _, res := range repo.db.results {
		if testID != "" && res.TestID != testID {
			continue
		}
		if studentID != "" && res.StudentID != studentID {
			continue
		}
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].UpdatedAt.After(results[j].UpdatedAt) })
	return results, nil
}
