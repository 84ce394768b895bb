package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"quiz-attempt-service/internal/domain"
)

func TestAppendEnforcesOneAttemptPerIdentity(t *testing.T) {
	ctx := context.Background()
	ledger := NewAttemptLedger()

	first := &domain.Attempt{ID: "a1", QuizID: "quiz-1", UserID: "u1", DisplayName: "Alice", Answers: []int{1}, Score: 1, TimeTaken: 30, CreatedAt: time.Now()}
	if err := ledger.Append(ctx, first); err != nil {
		t.Fatalf("first append: %v", err)
	}

	second := &domain.Attempt{ID: "a2", QuizID: "quiz-1", UserID: "u1", DisplayName: "Alice", Answers: []int{0}, Score: 0, TimeTaken: 10, CreatedAt: time.Now()}
	err := ledger.Append(ctx, second)
	if !errors.Is(err, domain.ErrDuplicateAttempt) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	var dup *domain.DuplicateAttemptError
	if !errors.As(err, &dup) || dup.PriorScore != 1 {
		t.Fatalf("expected prior score 1, got %+v", dup)
	}
}

func TestAppendConcurrentExactlyOneWinner(t *testing.T) {
	ctx := context.Background()
	ledger := NewAttemptLedger()

	const racers = 32
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ledger.Append(ctx, &domain.Attempt{
				ID:          fmt.Sprintf("a%d", i),
				QuizID:      "quiz-1",
				ExternalID:  "roll-7",
				DisplayName: "Bob",
				Answers:     []int{1, 2},
				Score:       i % 3,
				TimeTaken:   20,
				CreatedAt:   time.Now(),
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else if !errors.Is(err, domain.ErrDuplicateAttempt) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}

	attempts, err := ledger.FindByQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("find by quiz: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("expected one stored attempt, got %d", len(attempts))
	}
}

func TestAnonymousAttemptsAreExemptFromDedup(t *testing.T) {
	ctx := context.Background()
	ledger := NewAttemptLedger()

	for i := 0; i < 3; i++ {
		err := ledger.Append(ctx, &domain.Attempt{
			ID:          fmt.Sprintf("anon-%d", i),
			QuizID:      "quiz-1",
			DisplayName: "Visitor",
			Answers:     []int{0},
			CreatedAt:   time.Now(),
		})
		if err != nil {
			t.Fatalf("anonymous append %d: %v", i, err)
		}
	}

	attempts, _ := ledger.FindByQuiz(ctx, "quiz-1")
	if len(attempts) != 3 {
		t.Fatalf("expected 3 anonymous attempts, got %d", len(attempts))
	}
}

func TestDeleteManyReportsCount(t *testing.T) {
	ctx := context.Background()
	ledger := NewAttemptLedger()

	ledger.AppendUnchecked(&domain.Attempt{ID: "a1", QuizID: "q", UserID: "u1", DisplayName: "A", CreatedAt: time.Now()})
	ledger.AppendUnchecked(&domain.Attempt{ID: "a2", QuizID: "q", UserID: "u1", DisplayName: "A", CreatedAt: time.Now()})

	removed, err := ledger.DeleteMany(ctx, []string{"a2", "missing"})
	if err != nil {
		t.Fatalf("delete many: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := ledger.FindByIdentity(ctx, "q", "user:u1"); err != nil {
		t.Fatalf("surviving attempt should remain addressable: %v", err)
	}
}
