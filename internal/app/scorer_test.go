package app_test

import (
	"errors"
	"testing"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

func threeQuestions() []domain.Question {
	return []domain.Question{
		{Options: []string{"a", "b", "c"}, CorrectIndex: 1},
		{Options: []string{"a", "b", "c"}, CorrectIndex: 0},
		{Options: []string{"a", "b", "c"}, CorrectIndex: 2},
	}
}

func TestScoreCountsExactMatches(t *testing.T) {
	score, err := app.Score(threeQuestions(), []int{1, 0, 2})
	if err != nil || score != 3 {
		t.Fatalf("expected perfect score 3, got %d (%v)", score, err)
	}

	score, err = app.Score(threeQuestions(), []int{0, 0, 2})
	if err != nil || score != 2 {
		t.Fatalf("expected score 2, got %d (%v)", score, err)
	}
}

func TestScoreShapeMismatch(t *testing.T) {
	if _, err := app.Score(threeQuestions(), []int{1, 0}); !errors.Is(err, domain.ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
	if _, err := app.Score(nil, []int{1}); !errors.Is(err, domain.ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch for empty quiz, got %v", err)
	}
}

func TestScoreOutOfRangeAnswersAreWrongNotErrors(t *testing.T) {
	score, err := app.Score(threeQuestions(), []int{7, -1, 2})
	if err != nil {
		t.Fatalf("out-of-range answer must not error: %v", err)
	}
	if score != 1 {
		t.Fatalf("expected score 1, got %d", score)
	}
}
