package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
)

func testQuizzes() *memory.StaticQuizStore {
	return memory.NewStaticQuizStore(map[string]domain.Quiz{
		"quiz-1": {
			ID:              "quiz-1",
			Title:           "Sample",
			ShowLeaderboard: true,
			Questions: []domain.Question{
				{Prompt: "pick b", Options: []string{"a", "b", "c"}, CorrectIndex: 1},
				{Prompt: "pick a", Options: []string{"a", "b", "c"}, CorrectIndex: 0},
				{Prompt: "pick c", Options: []string{"a", "b", "c"}, CorrectIndex: 2},
			},
		},
	})
}

func newTestAttemptService(requireIdentity bool) (*app.AttemptService, *memory.AttemptLedger) {
	ledger := memory.NewAttemptLedger()
	service := app.NewAttemptService(ledger, testQuizzes(), nil, requireIdentity, nil)
	return service, ledger
}

func TestSubmitScoresAndRecords(t *testing.T) {
	ctx := context.Background()
	service, ledger := newTestAttemptService(false)

	res, err := service.Submit(ctx, app.SubmitRequest{
		QuizID:      "quiz-1",
		UserID:      "u1",
		DisplayName: "Alice",
		Answers:     []int{1, 0, 2},
		TimeTaken:   42,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Score != 3 || res.QuestionCount != 3 {
		t.Fatalf("expected 3/3, got %+v", res)
	}

	attempts, _ := ledger.FindByQuiz(ctx, "quiz-1")
	if len(attempts) != 1 || attempts[0].Score != 3 {
		t.Fatalf("expected one stored attempt with score 3, got %+v", attempts)
	}
}

func TestSubmitShapeMismatch(t *testing.T) {
	service, _ := newTestAttemptService(false)
	_, err := service.Submit(context.Background(), app.SubmitRequest{
		QuizID:      "quiz-1",
		UserID:      "u1",
		DisplayName: "Alice",
		Answers:     []int{1, 0},
		TimeTaken:   10,
	})
	if !errors.Is(err, domain.ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
}

func TestSubmitUnknownQuiz(t *testing.T) {
	service, _ := newTestAttemptService(false)
	_, err := service.Submit(context.Background(), app.SubmitRequest{
		QuizID:      "missing",
		DisplayName: "Alice",
		Answers:     []int{1},
	})
	if !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestSubmitDuplicateReturnsPriorScore(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestAttemptService(false)

	if _, err := service.Submit(ctx, app.SubmitRequest{
		QuizID: "quiz-1", ExternalID: "a@x.com", DisplayName: "Alice",
		Answers: []int{1, 0, 2}, TimeTaken: 30,
	}); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err := service.Submit(ctx, app.SubmitRequest{
		QuizID: "quiz-1", ExternalID: "a@x.com", DisplayName: "Alice",
		Answers: []int{0, 0, 0}, TimeTaken: 10,
	})
	var dup *domain.DuplicateAttemptError
	if !errors.As(err, &dup) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if dup.PriorScore != 3 {
		t.Fatalf("duplicate should carry prior score 3, got %d", dup.PriorScore)
	}
}

func TestSubmitConcurrentSameIdentity(t *testing.T) {
	ctx := context.Background()
	service, ledger := newTestAttemptService(false)

	const racers = 16
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.Submit(ctx, app.SubmitRequest{
				QuizID: "quiz-1", UserID: "u1", DisplayName: "Alice",
				Answers: []int{1, 0, 2}, TimeTaken: 30,
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, domain.ErrDuplicateAttempt):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
	attempts, _ := ledger.FindByQuiz(ctx, "quiz-1")
	if len(attempts) != 1 {
		t.Fatalf("expected one attempt, got %d", len(attempts))
	}
}

func TestStrictModeRejectsUnauthenticated(t *testing.T) {
	service, _ := newTestAttemptService(true)

	_, err := service.Submit(context.Background(), app.SubmitRequest{
		QuizID: "quiz-1", ExternalID: "roll-9", DisplayName: "Bob",
		Answers: []int{1, 0, 2},
	})
	if !errors.Is(err, domain.ErrAuthenticationRequired) {
		t.Fatalf("expected authentication required, got %v", err)
	}

	if _, err := service.Submit(context.Background(), app.SubmitRequest{
		QuizID: "quiz-1", UserID: "u1", DisplayName: "Bob",
		Answers: []int{1, 0, 2},
	}); err != nil {
		t.Fatalf("authenticated submit should pass: %v", err)
	}
}

func TestLenientModeAllowsAnonymous(t *testing.T) {
	ctx := context.Background()
	service, ledger := newTestAttemptService(false)

	for i := 0; i < 2; i++ {
		if _, err := service.Submit(ctx, app.SubmitRequest{
			QuizID: "quiz-1", DisplayName: "Visitor",
			Answers: []int{1, 0, 2}, TimeTaken: 5,
		}); err != nil {
			t.Fatalf("anonymous submit %d: %v", i, err)
		}
	}
	attempts, _ := ledger.FindByQuiz(ctx, "quiz-1")
	if len(attempts) != 2 {
		t.Fatalf("anonymous attempts are not deduplicated, want 2 got %d", len(attempts))
	}
}

func TestSubmitRejectsMalformedRequests(t *testing.T) {
	service, _ := newTestAttemptService(false)

	_, err := service.Submit(context.Background(), app.SubmitRequest{
		QuizID: "quiz-1", Answers: []int{1, 0, 2},
	})
	if !errors.Is(err, domain.ErrInvalidSubmission) {
		t.Fatalf("missing display name should be rejected, got %v", err)
	}

	_, err = service.Submit(context.Background(), app.SubmitRequest{
		QuizID: "quiz-1", DisplayName: "Alice", Answers: []int{1, 0, 2}, TimeTaken: -1,
	})
	if !errors.Is(err, domain.ErrInvalidSubmission) {
		t.Fatalf("negative elapsed time should be rejected, got %v", err)
	}
}

func TestCheckAttempted(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestAttemptService(false)

	identity := domain.ResolveIdentity("u1", "")
	status, err := service.CheckAttempted(ctx, "quiz-1", identity)
	if err != nil || status.Attempted {
		t.Fatalf("expected not attempted, got %+v (%v)", status, err)
	}

	if _, err := service.Submit(ctx, app.SubmitRequest{
		QuizID: "quiz-1", UserID: "u1", DisplayName: "Alice",
		Answers: []int{1, 0, 0}, TimeTaken: 21,
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	status, err = service.CheckAttempted(ctx, "quiz-1", identity)
	if err != nil {
		t.Fatalf("check attempted: %v", err)
	}
	if !status.Attempted || status.Score != 2 || status.TimeTaken != 21 {
		t.Fatalf("expected attempted with score 2, got %+v", status)
	}
	if len(status.Answers) != 3 {
		t.Fatalf("expected recorded answers, got %+v", status.Answers)
	}
	if status.CreatedAt.IsZero() || time.Since(status.CreatedAt) > time.Minute {
		t.Fatalf("unexpected createdAt %v", status.CreatedAt)
	}

	anon, err := service.CheckAttempted(ctx, "quiz-1", domain.Identity{})
	if err != nil || anon.Attempted {
		t.Fatalf("anonymous callers can never be correlated, got %+v", anon)
	}
}
