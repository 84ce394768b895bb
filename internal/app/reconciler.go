package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"quiz-attempt-service/internal/domain"
)

// UserDirectory resolves an account id to its email, used by the reconciler
// to group legacy attempts recorded under different identifier styles. A nil
// directory always misses.
type UserDirectory interface {
	Email(ctx context.Context, userID string) (string, bool)
}

// StaticUserDirectory is a map-backed UserDirectory.
type StaticUserDirectory map[string]string

func (d StaticUserDirectory) Email(_ context.Context, userID string) (string, bool) {
	email, ok := d[userID]
	return email, ok
}

// Reconciler is the administrative batch pass that repairs data violating
// the one-attempt-per-identity invariant (pre-enforcement records, races
// from a store briefly lacking the constraint). Idempotent: a second run
// removes nothing.
type Reconciler struct {
	ledger AttemptLedger
	users  UserDirectory
	log    *zap.Logger
}

func NewReconciler(ledger AttemptLedger, users UserDirectory, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{ledger: ledger, users: users, log: log}
}

// Run walks all attempts best-first and deletes every attempt whose
// (quiz, identity) key was already kept; by construction of the sort the
// kept attempt outranks every later duplicate. Admin only. Returns the
// number of attempts removed.
func (r *Reconciler) Run(ctx context.Context, caller domain.Caller) (int, error) {
	if !caller.IsAdmin() {
		return 0, domain.ErrAccessDenied
	}

	attempts, err := r.ledger.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load attempts: %w", err)
	}
	sortBestFirst(attempts)

	seen := make(map[string]struct{}, len(attempts))
	var duplicates []string
	for _, a := range attempts {
		key, ok := r.reconcileKey(ctx, a)
		if !ok {
			// Unidentifiable record; log and keep scanning rather than
			// aborting the whole pass.
			r.log.Warn("skipping attempt with no resolvable identity",
				zap.String("attemptId", a.ID),
				zap.String("quizId", a.QuizID),
			)
			continue
		}
		full := a.QuizID + "|" + key
		if _, dup := seen[full]; dup {
			duplicates = append(duplicates, a.ID)
			continue
		}
		seen[full] = struct{}{}
	}

	if len(duplicates) == 0 {
		return 0, nil
	}
	removed, err := r.ledger.DeleteMany(ctx, duplicates)
	if err != nil {
		return 0, fmt.Errorf("delete duplicates: %w", err)
	}
	r.log.Info("duplicate attempts removed", zap.Int("count", removed))
	return removed, nil
}

// reconcileKey prefers the account's directory email, then the external
// identifier, then the raw account id. Anonymous attempts report no key and
// are never grouped or removed.
func (r *Reconciler) reconcileKey(ctx context.Context, a *domain.Attempt) (string, bool) {
	if a.UserID != "" && r.users != nil {
		if email, ok := r.users.Email(ctx, a.UserID); ok && email != "" {
			return email, true
		}
	}
	if a.ExternalID != "" {
		return a.ExternalID, true
	}
	if a.UserID != "" {
		return a.UserID, true
	}
	return "", false
}
