package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/Digitalguyco/convade-backend/core/course"
	"github.com/Digitalguyco/convade-backend/core/quiz"
	"github.com/Digitalguyco/convade-backend/core/user"
)

// enrolledCourse publishes a course and enrolls each student on it.
func (env *testEnv) enrolledCourse(t *testing.T, teacher user.User, students ...user.User) course.Course {
	t.Helper()
	teacherToken := getToken(t, teacher)

	sch := env.createSchool(t, "Kin Academy", "KIN01")
	cat, err := env.crsSvc.CreateCategory(context.Background(), course.NewCategory{Name: "Mathematics"})
	if err != nil {
		t.Fatalf("creating category: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/v1/courses", teacherToken, map[string]string{
		"title": "Algebra I", "course_code": "ALG101", "category_id": cat.ID, "school_id": sch.ID,
	})
	checkCode(t, rec, http.StatusCreated)
	var crs course.Course
	decode(t, rec, &crs)

	rec = env.do(t, http.MethodPost, "/v1/courses/"+crs.ID+"/publish", teacherToken, nil)
	checkCode(t, rec, http.StatusOK)
	decode(t, rec, &crs)

	for _, s := range students {
		rec = env.do(t, http.MethodPost, "/v1/courses/"+crs.ID+"/enroll", getToken(t, s), nil)
		checkCode(t, rec, http.StatusCreated)
	}
	return crs
}

func Test_quizApi_attemptLifecycle(t *testing.T) {
	env := setup(t)

	teacher := env.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "hero@test.cd", user.RoleStudent, true)
	other := env.createUser(t, "Other", "other@test.cd", user.RoleStudent, true)
	teacherToken := getToken(t, teacher)
	studentToken := getToken(t, student)
	otherToken := getToken(t, other)

	crs := env.enrolledCourse(t, teacher, student) // other stays unenrolled

	t.Run("students cannot create tests", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/tests", studentToken, map[string]string{
			"title": "Pop Quiz", "course_id": crs.ID,
		})
		checkCode(t, rec, http.StatusForbidden)
	})

	rec := env.do(t, http.MethodPost, "/v1/tests", teacherToken, map[string]interface{}{
		"title": "Algebra Quiz", "course_id": crs.ID, "max_attempts": 2, "passing_score": 50,
	})
	checkCode(t, rec, http.StatusCreated)
	var tst quiz.Test
	decode(t, rec, &tst)

	rec = env.do(t, http.MethodPost, "/v1/tests/questions", teacherToken, map[string]interface{}{
		"test_id":       tst.ID,
		"question_text": "What is 1 + 1?",
		"points":        10,
		"answers": []map[string]interface{}{
			{"answer_text": "2", "is_correct": true, "order": 1},
			{"answer_text": "3", "order": 2},
		},
	})
	checkCode(t, rec, http.StatusCreated)
	var q quiz.Question
	decode(t, rec, &q)
	if len(q.Answers) != 2 {
		t.Fatalf("got %d answers; want 2", len(q.Answers))
	}
	correctID := q.Answers[0].ID

	t.Run("cannot attempt an unpublished test", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/tests/"+tst.ID+"/attempts", studentToken, nil)
		checkCode(t, rec, http.StatusBadRequest)
	})

	rec = env.do(t, http.MethodPost, "/v1/tests/"+tst.ID+"/publish", teacherToken, nil)
	checkCode(t, rec, http.StatusOK)
	decode(t, rec, &tst)
	if tst.TotalPoints != 10 {
		t.Fatalf("total points = %v; want 10", tst.TotalPoints)
	}

	t.Run("attempts require an active enrollment", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/tests/"+tst.ID+"/attempts", otherToken, nil)
		checkCode(t, rec, http.StatusBadRequest)
	})

	// start, answer, submit
	rec = env.do(t, http.MethodPost, "/v1/tests/"+tst.ID+"/attempts", studentToken, nil)
	checkCode(t, rec, http.StatusCreated)
	var att quiz.TestAttempt
	decode(t, rec, &att)
	if att.Status != quiz.AttemptInProgress || att.AttemptNumber != 1 {
		t.Fatalf("unexpected attempt: %+v", att)
	}

	t.Run("no parallel attempts", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/tests/"+tst.ID+"/attempts", studentToken, nil)
		checkCode(t, rec, http.StatusBadRequest)
	})

	t.Run("students cannot write others' attempts", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/tests/attempts/"+att.ID+"/responses", otherToken, map[string]interface{}{
			"question_id": q.ID, "selected_answer_ids": []string{correctID},
		})
		checkCode(t, rec, http.StatusNotFound)

		rec = env.do(t, http.MethodPost, "/v1/tests/attempts/"+att.ID+"/submit", otherToken, nil)
		checkCode(t, rec, http.StatusNotFound)

		// the attempt is untouched
		rec = env.do(t, http.MethodGet, "/v1/tests/attempts/"+att.ID, studentToken, nil)
		checkCode(t, rec, http.StatusOK)
		var a quiz.TestAttempt
		decode(t, rec, &a)
		if a.Status != quiz.AttemptInProgress {
			t.Fatalf("attempt status = %q; want in_progress", a.Status)
		}
	})

	rec = env.do(t, http.MethodPost, "/v1/tests/attempts/"+att.ID+"/responses", studentToken, map[string]interface{}{
		"question_id": q.ID, "selected_answer_ids": []string{correctID},
	})
	checkCode(t, rec, http.StatusOK)

	rec = env.do(t, http.MethodPost, "/v1/tests/attempts/"+att.ID+"/submit", studentToken, nil)
	checkCode(t, rec, http.StatusOK)
	decode(t, rec, &att)
	if !att.AutoGraded || att.Percentage != 100 || !att.IsPassed {
		t.Fatalf("unexpected graded attempt: %+v", att)
	}

	t.Run("result is recorded", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/tests/"+tst.ID+"/result", studentToken, nil)
		checkCode(t, rec, http.StatusOK)

		var res quiz.TestResult
		decode(t, rec, &res)
		if res.BestPercentage != 100 || !res.IsPassed || res.TotalAttempts != 1 {
			t.Fatalf("unexpected result: %+v", res)
		}
	})

	t.Run("max attempts enforced", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/tests/"+tst.ID+"/attempts", studentToken, nil)
		checkCode(t, rec, http.StatusCreated) // second of two

		var att2 quiz.TestAttempt
		decode(t, rec, &att2)
		rec = env.do(t, http.MethodPost, "/v1/tests/attempts/"+att2.ID+"/submit", studentToken, nil)
		checkCode(t, rec, http.StatusOK)

		rec = env.do(t, http.MethodPost, "/v1/tests/"+tst.ID+"/attempts", studentToken, nil)
		checkCode(t, rec, http.StatusBadRequest)
	})

	t.Run("students cannot read others' attempts", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/tests/attempts/"+att.ID, otherToken, nil)
		checkCode(t, rec, http.StatusNotFound)
	})
}

func Test_quizApi_passwordProtected(t *testing.T) {
	env := setup(t)

	teacher := env.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "hero@test.cd", user.RoleStudent, true)
	teacherToken := getToken(t, teacher)
	studentToken := getToken(t, student)

	crs := env.enrolledCourse(t, teacher, student)

	rec := env.do(t, http.MethodPost, "/v1/tests", teacherToken, map[string]interface{}{
		"title": "Final Exam", "course_id": crs.ID, "test_type": "exam",
		"require_password": true, "access_password": "sésame",
	})
	checkCode(t, rec, http.StatusCreated)
	var tst quiz.Test
	decode(t, rec, &tst)

	rec = env.do(t, http.MethodPost, "/v1/tests/"+tst.ID+"/publish", teacherToken, nil)
	checkCode(t, rec, http.StatusOK)

	t.Run("wrong password", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/tests/"+tst.ID+"/attempts", studentToken, map[string]string{"password": "lol"})
		checkCode(t, rec, http.StatusBadRequest)
	})

	t.Run("right password", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/tests/"+tst.ID+"/attempts", studentToken, map[string]string{"password": "sésame"})
		checkCode(t, rec, http.StatusCreated)
	})
}

func Test_quizApi_attemptReview(t *testing.T) {
	env := setup(t)

	teacher := env.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "hero@test.cd", user.RoleStudent, true)
	teacherToken := getToken(t, teacher)
	studentToken := getToken(t, student)

	crs := env.enrolledCourse(t, teacher, student)

	// publishTest creates a one-question test and publishes it.
	publishTest := func(t *testing.T, body map[string]interface{}) (quiz.Test, quiz.Question) {
		t.Helper()
		body["course_id"] = crs.ID
		rec := env.do(t, http.MethodPost, "/v1/tests", teacherToken, body)
		checkCode(t, rec, http.StatusCreated)
		var tst quiz.Test
		decode(t, rec, &tst)

		rec = env.do(t, http.MethodPost, "/v1/tests/questions", teacherToken, map[string]interface{}{
			"test_id":       tst.ID,
			"question_text": "What is 1 + 1?",
			"explanation":   "One plus one makes two.",
			"points":        10,
			"answers": []map[string]interface{}{
				{"answer_text": "2", "is_correct": true, "order": 1},
				{"answer_text": "3", "order": 2},
			},
		})
		checkCode(t, rec, http.StatusCreated)
		var q quiz.Question
		decode(t, rec, &q)

		rec = env.do(t, http.MethodPost, "/v1/tests/"+tst.ID+"/publish", teacherToken, nil)
		checkCode(t, rec, http.StatusOK)
		decode(t, rec, &tst)
		return tst, q
	}

	tstHidden, qHidden := publishTest(t, map[string]interface{}{
		"title": "Hidden Answers Quiz", "passing_score": 50,
		"show_correct_answers": false, "show_score_immediately": false,
	})

	rec := env.do(t, http.MethodPost, "/v1/tests/"+tstHidden.ID+"/attempts", studentToken, nil)
	checkCode(t, rec, http.StatusCreated)
	var att quiz.TestAttempt
	decode(t, rec, &att)

	t.Run("review waits for submission", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/tests/attempts/"+att.ID+"/review", studentToken, nil)
		checkCode(t, rec, http.StatusBadRequest)
	})

	rec = env.do(t, http.MethodPost, "/v1/tests/attempts/"+att.ID+"/responses", studentToken, map[string]interface{}{
		"question_id": qHidden.ID, "selected_answer_ids": []string{qHidden.Answers[0].ID},
	})
	checkCode(t, rec, http.StatusOK)

	rec = env.do(t, http.MethodPost, "/v1/tests/attempts/"+att.ID+"/submit", studentToken, nil)
	checkCode(t, rec, http.StatusOK)
	var submitted quiz.TestAttempt
	decode(t, rec, &submitted)

	t.Run("score held back on submission", func(t *testing.T) {
		if submitted.Percentage != 0 || submitted.IsPassed {
			t.Fatalf("score leaked on submission: %+v", submitted)
		}
		// it was graded all the same
		rec := env.do(t, http.MethodGet, "/v1/tests/attempts/"+att.ID, studentToken, nil)
		checkCode(t, rec, http.StatusOK)
		var a quiz.TestAttempt
		decode(t, rec, &a)
		if a.Status != quiz.AttemptGraded || a.Percentage != 100 {
			t.Fatalf("unexpected graded attempt: %+v", a)
		}
	})

	t.Run("correct answers hidden from review", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/tests/attempts/"+att.ID+"/review", studentToken, nil)
		checkCode(t, rec, http.StatusOK)

		var rev quiz.AttemptReview
		decode(t, rec, &rev)
		if rev.ShowCorrectAnswers || len(rev.Items) != 1 {
			t.Fatalf("unexpected review: %+v", rev)
		}
		item := rev.Items[0]
		if len(item.CorrectAnswerIDs) != 0 || item.Question.Explanation != "" {
			t.Fatalf("correct answers leaked: %+v", item)
		}
		if item.Response.QuestionID != qHidden.ID {
			t.Fatalf("unexpected response in review: %+v", item.Response)
		}
	})

	t.Run("students cannot review others' attempts", func(t *testing.T) {
		other := env.createUser(t, "Other", "other@test.cd", user.RoleStudent, true)
		rec := env.do(t, http.MethodGet, "/v1/tests/attempts/"+att.ID+"/review", getToken(t, other), nil)
		checkCode(t, rec, http.StatusNotFound)
	})

	t.Run("correct answers shown when the test allows", func(t *testing.T) {
		tst, q := publishTest(t, map[string]interface{}{
			"title": "Open Review Quiz", "passing_score": 50,
		})
		rec := env.do(t, http.MethodPost, "/v1/tests/"+tst.ID+"/attempts", studentToken, nil)
		checkCode(t, rec, http.StatusCreated)
		var att quiz.TestAttempt
		decode(t, rec, &att)

		rec = env.do(t, http.MethodPost, "/v1/tests/attempts/"+att.ID+"/responses", studentToken, map[string]interface{}{
			"question_id": q.ID, "selected_answer_ids": []string{q.Answers[1].ID}, // wrong pick
		})
		checkCode(t, rec, http.StatusOK)
		rec = env.do(t, http.MethodPost, "/v1/tests/attempts/"+att.ID+"/submit", studentToken, nil)
		checkCode(t, rec, http.StatusOK)

		rec = env.do(t, http.MethodGet, "/v1/tests/attempts/"+att.ID+"/review", studentToken, nil)
		checkCode(t, rec, http.StatusOK)
		var rev quiz.AttemptReview
		decode(t, rec, &rev)
		if !rev.ShowCorrectAnswers || len(rev.Items) != 1 {
			t.Fatalf("unexpected review: %+v", rev)
		}
		item := rev.Items[0]
		if len(item.CorrectAnswerIDs) != 1 || item.CorrectAnswerIDs[0] != q.Answers[0].ID {
			t.Fatalf("unexpected correct answers: %+v", item.CorrectAnswerIDs)
		}
		if item.Question.Explanation == "" {
			t.Error("explanation missing from review")
		}
		if item.Response.IsCorrect {
			t.Errorf("unexpected response grading: %+v", item.Response)
		}
	})

	t.Run("review can be disabled", func(t *testing.T) {
		tst, q := publishTest(t, map[string]interface{}{
			"title": "No Review Quiz", "passing_score": 50, "allow_review": false,
		})
		rec := env.do(t, http.MethodPost, "/v1/tests/"+tst.ID+"/attempts", studentToken, nil)
		checkCode(t, rec, http.StatusCreated)
		var att quiz.TestAttempt
		decode(t, rec, &att)

		rec = env.do(t, http.MethodPost, "/v1/tests/attempts/"+att.ID+"/responses", studentToken, map[string]interface{}{
			"question_id": q.ID, "selected_answer_ids": []string{q.Answers[0].ID},
		})
		checkCode(t, rec, http.StatusOK)
		rec = env.do(t, http.MethodPost, "/v1/tests/attempts/"+att.ID+"/submit", studentToken, nil)
		checkCode(t, rec, http.StatusOK)

		rec = env.do(t, http.MethodGet, "/v1/tests/attempts/"+att.ID+"/review", studentToken, nil)
		checkCode(t, rec, http.StatusBadRequest)
	})
}
