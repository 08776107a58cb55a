package quiz

import "strings"

// autoGrade machine-grades a response in place and reports whether it could.
// Multiple choice needs the exact set of correct answers selected; true/false
// a single matching choice; short answer and fill-in-the-blank an exact text
// match against any accepted answer, honoring the question's case sensitivity.
// Essays are left for manual grading.
func autoGrade(q Question, resp *QuestionResponse) bool {
	switch q.Type {
	case QuestionMultipleChoice:
		resp.IsCorrect = selectedExactly(q, resp.SelectedAnswerIDs)

	case QuestionTrueFalse:
		if len(resp.SelectedAnswerIDs) == 1 {
			for _, ans := range q.Answers {
				if ans.IsCorrect && ans.ID == resp.SelectedAnswerIDs[0] {
					resp.IsCorrect = true
					break
				}
			}
		}

	case QuestionShortAnswer, QuestionFillBlank:
		given := strings.TrimSpace(resp.TextResponse)
		for _, ans := range q.Answers {
			accepted := strings.TrimSpace(ans.Text)
			if q.CaseSensitive {
				if given == accepted {
					resp.IsCorrect = true
					break
				}
			} else if strings.EqualFold(given, accepted) {
				resp.IsCorrect = true
				break
			}
		}

	default:
		return false
	}

	if resp.IsCorrect {
		resp.PointsEarned = q.Points
	} else {
		resp.PointsEarned = 0
	}
	resp.IsGraded = true
	return true
}

// selectedExactly checks that the selected set equals the correct set.
func selectedExactly(q Question, selected []string) bool {
	correct := make(map[string]bool)
	for _, ans := range q.Answers {
		if ans.IsCorrect {
			correct[ans.ID] = true
		}
	}
	if len(selected) != len(correct) {
		return false
	}
	seen := make(map[string]bool, len(selected))
	for _, id := range selected {
		if !correct[id] || seen[id] {
			return false
		}
		seen[id] = true
	}
	return len(correct) > 0
}

// calculateScore totals earned points over all questions (unanswered ones
// count for zero but still count toward the possible total) and sets the
// attempt's score, percentage and pass flag.
func calculateScore(att *TestAttempt, questions []Question, responses []QuestionResponse, passingScore int) {
	var earned, possible float64
	byQuestion := make(map[string]QuestionResponse, len(responses))
	for _, resp := range responses {
		byQuestion[resp.QuestionID] = resp
	}
	for _, q := range questions {
		possible += q.Points
		if resp, ok := byQuestion[q.ID]; ok && resp.IsGraded {
			earned += resp.PointsEarned
		}
	}

	att.Score = earned
	if possible > 0 {
		att.Percentage = earned / possible * 100
		att.IsPassed = att.Percentage >= float64(passingScore)
	}
}
