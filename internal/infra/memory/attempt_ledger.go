package memory

import (
	"context"
	"sync"

	"quiz-attempt-service/internal/domain"
)

// AttemptLedger is an in-memory implementation of app.AttemptLedger. The
// uniqueness index is updated under the same lock as the insert, so Append
// is atomic for concurrent submissions the way the Postgres constraint is.
type AttemptLedger struct {
	mu       sync.RWMutex
	attempts map[string]*domain.Attempt
	byKey    map[ledgerKey]string // (quiz, identity key) -> attempt id
}

type ledgerKey struct {
	quizID      string
	identityKey string
}

func NewAttemptLedger() *AttemptLedger {
	return &AttemptLedger{
		attempts: make(map[string]*domain.Attempt),
		byKey:    make(map[ledgerKey]string),
	}
}

func (l *AttemptLedger) Exists(_ context.Context, quizID, identityKey string) (bool, error) {
	if identityKey == "" {
		return false, nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.byKey[ledgerKey{quizID, identityKey}]
	return ok, nil
}

func (l *AttemptLedger) Append(_ context.Context, attempt *domain.Attempt) error {
	identityKey := domain.AttemptIdentity(attempt).Key()

	l.mu.Lock()
	defer l.mu.Unlock()

	if identityKey != "" {
		key := ledgerKey{attempt.QuizID, identityKey}
		if priorID, ok := l.byKey[key]; ok {
			prior := l.attempts[priorID]
			return &domain.DuplicateAttemptError{
				QuizID:     attempt.QuizID,
				PriorScore: prior.Score,
				PriorTime:  prior.TimeTaken,
			}
		}
		l.byKey[key] = attempt.ID
	}

	stored := *attempt
	stored.Answers = append([]int(nil), attempt.Answers...)
	l.attempts[attempt.ID] = &stored
	return nil
}

// AppendUnchecked inserts without the uniqueness constraint, mirroring
// records created before enforcement existed. The reconciler is the repair
// path for such data.
func (l *AttemptLedger) AppendUnchecked(attempt *domain.Attempt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stored := *attempt
	stored.Answers = append([]int(nil), attempt.Answers...)
	l.attempts[attempt.ID] = &stored
	if key := domain.AttemptIdentity(attempt).Key(); key != "" {
		if _, ok := l.byKey[ledgerKey{attempt.QuizID, key}]; !ok {
			l.byKey[ledgerKey{attempt.QuizID, key}] = attempt.ID
		}
	}
}

func (l *AttemptLedger) FindByQuiz(_ context.Context, quizID string) ([]*domain.Attempt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*domain.Attempt
	for _, a := range l.attempts {
		if a.QuizID == quizID {
			out = append(out, copyAttempt(a))
		}
	}
	return out, nil
}

func (l *AttemptLedger) FindByIdentity(_ context.Context, quizID, identityKey string) (*domain.Attempt, error) {
	if identityKey == "" {
		return nil, domain.ErrAttemptNotFound
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.byKey[ledgerKey{quizID, identityKey}]
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	return copyAttempt(l.attempts[id]), nil
}

func (l *AttemptLedger) FindAll(_ context.Context) ([]*domain.Attempt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*domain.Attempt, 0, len(l.attempts))
	for _, a := range l.attempts {
		out = append(out, copyAttempt(a))
	}
	return out, nil
}

func (l *AttemptLedger) DeleteMany(_ context.Context, ids []string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for _, id := range ids {
		a, ok := l.attempts[id]
		if !ok {
			continue
		}
		if key := domain.AttemptIdentity(a).Key(); key != "" {
			if l.byKey[ledgerKey{a.QuizID, key}] == id {
				delete(l.byKey, ledgerKey{a.QuizID, key})
			}
		}
		delete(l.attempts, id)
		removed++
	}
	// Re-point keys whose mapped attempt was removed but a sibling survives
	// (legacy data inserted unchecked).
	for _, a := range l.attempts {
		if key := domain.AttemptIdentity(a).Key(); key != "" {
			if _, ok := l.byKey[ledgerKey{a.QuizID, key}]; !ok {
				l.byKey[ledgerKey{a.QuizID, key}] = a.ID
			}
		}
	}
	return removed, nil
}

func (l *AttemptLedger) CountByQuiz(_ context.Context) (map[string]int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	counts := make(map[string]int)
	for _, a := range l.attempts {
		counts[a.QuizID]++
	}
	return counts, nil
}

func copyAttempt(a *domain.Attempt) *domain.Attempt {
	c := *a
	c.Answers = append([]int(nil), a.Answers...)
	return &c
}
