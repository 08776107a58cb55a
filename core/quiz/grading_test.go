package quiz

import "testing"

func mcQuestion() Question {
	return Question{
		ID:     "q1",
		Type:   QuestionMultipleChoice,
		Points: 4,
		Answers: []Answer{
			{ID: "a1", IsCorrect: true},
			{ID: "a2", IsCorrect: true},
			{ID: "a3"},
			{ID: "a4"},
		},
	}
}

func TestAutoGradeMultipleChoice(t *testing.T) {
	q := mcQuestion()
	tests := []struct {
		name     string
		selected []string
		correct  bool
	}{
		{name: "exact correct set", selected: []string{"a1", "a2"}, correct: true},
		{name: "order does not matter", selected: []string{"a2", "a1"}, correct: true},
		{name: "missing one", selected: []string{"a1"}},
		{name: "extra wrong pick", selected: []string{"a1", "a2", "a3"}},
		{name: "all wrong", selected: []string{"a3", "a4"}},
		{name: "duplicate picks", selected: []string{"a1", "a1"}},
		{name: "nothing selected", selected: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := QuestionResponse{QuestionID: q.ID, SelectedAnswerIDs: tt.selected}
			if graded := autoGrade(q, &resp); !graded {
				t.Fatal("autoGrade() = false, want true")
			}
			if resp.IsCorrect != tt.correct {
				t.Errorf("IsCorrect = %v, want %v", resp.IsCorrect, tt.correct)
			}
			wantPoints := 0.0
			if tt.correct {
				wantPoints = q.Points
			}
			if resp.PointsEarned != wantPoints {
				t.Errorf("PointsEarned = %v, want %v", resp.PointsEarned, wantPoints)
			}
			if !resp.IsGraded {
				t.Error("IsGraded = false, want true")
			}
		})
	}
}

func TestAutoGradeTrueFalse(t *testing.T) {
	q := Question{
		ID:     "q1",
		Type:   QuestionTrueFalse,
		Points: 1,
		Answers: []Answer{
			{ID: "true", IsCorrect: true},
			{ID: "false"},
		},
	}
	tests := []struct {
		name     string
		selected []string
		correct  bool
	}{
		{name: "correct", selected: []string{"true"}, correct: true},
		{name: "wrong", selected: []string{"false"}},
		{name: "both selected", selected: []string{"true", "false"}},
		{name: "none selected", selected: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := QuestionResponse{QuestionID: q.ID, SelectedAnswerIDs: tt.selected}
			autoGrade(q, &resp)
			if resp.IsCorrect != tt.correct {
				t.Errorf("IsCorrect = %v, want %v", resp.IsCorrect, tt.correct)
			}
		})
	}
}

func TestAutoGradeShortAnswer(t *testing.T) {
	q := Question{
		ID:     "q1",
		Type:   QuestionShortAnswer,
		Points: 2,
		Answers: []Answer{
			{ID: "a1", Text: "Photosynthesis"},
			{ID: "a2", Text: "Light reaction"},
		},
	}
	tests := []struct {
		name          string
		text          string
		caseSensitive bool
		correct       bool
	}{
		{name: "exact match", text: "Photosynthesis", correct: true},
		{name: "case-insensitive match", text: "photosynthesis", correct: true},
		{name: "second accepted answer", text: "light reaction", correct: true},
		{name: "surrounding whitespace", text: "  Photosynthesis  ", correct: true},
		{name: "wrong answer", text: "Respiration"},
		{name: "empty answer", text: ""},
		{name: "case-sensitive mismatch", text: "photosynthesis", caseSensitive: true},
		{name: "case-sensitive match", text: "Photosynthesis", caseSensitive: true, correct: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := q
			q.CaseSensitive = tt.caseSensitive
			resp := QuestionResponse{QuestionID: q.ID, TextResponse: tt.text}
			autoGrade(q, &resp)
			if resp.IsCorrect != tt.correct {
				t.Errorf("IsCorrect = %v, want %v", resp.IsCorrect, tt.correct)
			}
		})
	}
}

func TestAutoGradeEssayNotGradable(t *testing.T) {
	q := Question{ID: "q1", Type: QuestionEssay, Points: 10}
	resp := QuestionResponse{QuestionID: q.ID, TextResponse: "a long essay"}
	if graded := autoGrade(q, &resp); graded {
		t.Error("autoGrade() = true for essay, want false")
	}
	if resp.IsGraded {
		t.Error("IsGraded = true for essay, want false")
	}
}

func TestCalculateScore(t *testing.T) {
	questions := []Question{
		{ID: "q1", Points: 4},
		{ID: "q2", Points: 4},
		{ID: "q3", Points: 2},
	}
	tests := []struct {
		name           string
		responses      []QuestionResponse
		wantScore      float64
		wantPercentage float64
		wantPassed     bool
	}{
		{
			name: "all correct",
			responses: []QuestionResponse{
				{QuestionID: "q1", PointsEarned: 4, IsGraded: true},
				{QuestionID: "q2", PointsEarned: 4, IsGraded: true},
				{QuestionID: "q3", PointsEarned: 2, IsGraded: true},
			},
			wantScore: 10, wantPercentage: 100, wantPassed: true,
		},
		{
			name: "partial pass",
			responses: []QuestionResponse{
				{QuestionID: "q1", PointsEarned: 4, IsGraded: true},
				{QuestionID: "q2", PointsEarned: 4, IsGraded: true},
				{QuestionID: "q3", PointsEarned: 0, IsGraded: true},
			},
			wantScore: 8, wantPercentage: 80, wantPassed: true,
		},
		{
			name: "unanswered questions count against",
			responses: []QuestionResponse{
				{QuestionID: "q1", PointsEarned: 4, IsGraded: true},
			},
			wantScore: 4, wantPercentage: 40,
		},
		{
			name:      "no responses",
			responses: nil,
			wantScore: 0, wantPercentage: 0,
		},
		{
			name: "ungraded response ignored",
			responses: []QuestionResponse{
				{QuestionID: "q1", PointsEarned: 4, IsGraded: true},
				{QuestionID: "q2", PointsEarned: 4}, // not graded yet
			},
			wantScore: 4, wantPercentage: 40,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			att := TestAttempt{}
			calculateScore(&att, questions, tt.responses, 70)
			if att.Score != tt.wantScore {
				t.Errorf("Score = %v, want %v", att.Score, tt.wantScore)
			}
			if att.Percentage != tt.wantPercentage {
				t.Errorf("Percentage = %v, want %v", att.Percentage, tt.wantPercentage)
			}
			if att.IsPassed != tt.wantPassed {
				t.Errorf("IsPassed = %v, want %v", att.IsPassed, tt.wantPassed)
			}
		})
	}
}
