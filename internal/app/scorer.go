package app

import "quiz-attempt-service/internal/domain"

// Score counts exact matches between submitted option indices and each
// question's correct index. No partial credit; an out-of-range index is
// simply wrong. The answer vector must cover every question.
func Score(questions []domain.Question, answers []int) (int, error) {
	if len(answers) != len(questions) {
		return 0, domain.ErrShapeMismatch
	}
	score := 0
	for i, q := range questions {
		if answers[i] == q.CorrectIndex {
			score++
		}
	}
	return score, nil
}
