package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
)

var admin = domain.Caller{UserID: "root", Role: domain.RoleAdmin}

func TestReconcileKeepsBestAttempt(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewAttemptLedger()

	// a@x.com submitted twice; the score-8 attempt must survive regardless
	// of insertion order.
	seedAttempt(ledger, "low", "Q1", "", "a@x.com", "Alice", []int{0}, 5, 30, baseTime)
	seedAttempt(ledger, "high", "Q1", "", "a@x.com", "Alice", []int{0}, 8, 20, baseTime.Add(time.Minute))

	reconciler := app.NewReconciler(ledger, nil, nil)
	removed, err := reconciler.Run(ctx, admin)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	remaining, _ := ledger.FindByQuiz(ctx, "Q1")
	if len(remaining) != 1 || remaining[0].Score != 8 {
		t.Fatalf("expected only the score-8 attempt to survive, got %+v", remaining)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewAttemptLedger()

	seedAttempt(ledger, "a1", "Q1", "u1", "", "Alice", []int{0}, 3, 30, baseTime)
	seedAttempt(ledger, "a2", "Q1", "u1", "", "Alice", []int{0}, 2, 30, baseTime.Add(time.Minute))
	seedAttempt(ledger, "a3", "Q2", "u1", "", "Alice", []int{0}, 1, 30, baseTime)

	reconciler := app.NewReconciler(ledger, nil, nil)
	removed, err := reconciler.Run(ctx, admin)
	if err != nil || removed != 1 {
		t.Fatalf("first run: removed=%d err=%v", removed, err)
	}

	removed, err = reconciler.Run(ctx, admin)
	if err != nil || removed != 0 {
		t.Fatalf("second run must remove nothing, removed=%d err=%v", removed, err)
	}
}

func TestReconcileGroupsAcrossIdentifierStyles(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewAttemptLedger()

	// One record keyed by account, one by the matching email; the directory
	// makes them the same person.
	seedAttempt(ledger, "a1", "Q1", "u1", "", "Alice", []int{0}, 7, 30, baseTime)
	seedAttempt(ledger, "a2", "Q1", "", "alice@x.com", "Alice", []int{0}, 4, 30, baseTime.Add(time.Minute))

	directory := app.StaticUserDirectory{"u1": "alice@x.com"}
	reconciler := app.NewReconciler(ledger, directory, nil)
	removed, err := reconciler.Run(ctx, admin)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected the weaker email-keyed record removed, got %d", removed)
	}
	remaining, _ := ledger.FindByQuiz(ctx, "Q1")
	if len(remaining) != 1 || remaining[0].Score != 7 {
		t.Fatalf("expected the score-7 attempt kept, got %+v", remaining)
	}
}

func TestReconcileSkipsAnonymousAttempts(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewAttemptLedger()

	seedAttempt(ledger, "a1", "Q1", "", "", "Visitor", []int{0}, 5, 10, baseTime)
	seedAttempt(ledger, "a2", "Q1", "", "", "Visitor", []int{0}, 5, 10, baseTime)

	reconciler := app.NewReconciler(ledger, nil, nil)
	removed, err := reconciler.Run(ctx, admin)
	if err != nil || removed != 0 {
		t.Fatalf("anonymous attempts must never be reconciled away: removed=%d err=%v", removed, err)
	}
}

func TestReconcileRequiresAdmin(t *testing.T) {
	reconciler := app.NewReconciler(memory.NewAttemptLedger(), nil, nil)
	if _, err := reconciler.Run(context.Background(), domain.Caller{Role: domain.RoleUser}); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
}
