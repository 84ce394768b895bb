package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-attempt-service/internal/domain"
)

const uniqueViolation = "23505"

// AttemptLedger stores attempts in Postgres. The one-attempt-per-identity
// invariant is enforced by a partial unique index on (quiz_id, identity_key)
// so concurrent submissions resolve at the constraint, not in application
// code.
type AttemptLedger struct {
	pool *pgxpool.Pool
}

func NewAttemptLedger(pool *pgxpool.Pool) *AttemptLedger {
	return &AttemptLedger{pool: pool}
}

func (l *AttemptLedger) Exists(ctx context.Context, quizID, identityKey string) (bool, error) {
	if identityKey == "" {
		return false, nil
	}
	var exists bool
	err := l.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM attempts WHERE quiz_id=$1 AND identity_key=$2)`,
		quizID, identityKey,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("attempt exists: %w", err)
	}
	return exists, nil
}

func (l *AttemptLedger) Append(ctx context.Context, attempt *domain.Attempt) error {
	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	identityKey := domain.AttemptIdentity(attempt).Key()

	_, err = l.pool.Exec(ctx,
		`INSERT INTO attempts (id, quiz_id, user_id, display_name, external_id, identity_key, answers, score, time_taken, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		attempt.ID, attempt.QuizID, attempt.UserID, attempt.DisplayName,
		attempt.ExternalID, identityKey, answers, attempt.Score,
		attempt.TimeTaken, attempt.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return l.duplicateError(ctx, attempt.QuizID, identityKey)
		}
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

// duplicateError loads the surviving attempt so the caller sees its score.
func (l *AttemptLedger) duplicateError(ctx context.Context, quizID, identityKey string) error {
	dup := &domain.DuplicateAttemptError{QuizID: quizID}
	if prior, err := l.FindByIdentity(ctx, quizID, identityKey); err == nil {
		dup.PriorScore = prior.Score
		dup.PriorTime = prior.TimeTaken
	}
	return dup
}

func (l *AttemptLedger) FindByQuiz(ctx context.Context, quizID string) ([]*domain.Attempt, error) {
	rows, err := l.pool.Query(ctx,
		attemptColumns+` WHERE quiz_id=$1`, quizID)
	if err != nil {
		return nil, fmt.Errorf("find by quiz: %w", err)
	}
	defer rows.Close()
	return scanAttempts(rows)
}

func (l *AttemptLedger) FindByIdentity(ctx context.Context, quizID, identityKey string) (*domain.Attempt, error) {
	if identityKey == "" {
		return nil, domain.ErrAttemptNotFound
	}
	row := l.pool.QueryRow(ctx,
		attemptColumns+` WHERE quiz_id=$1 AND identity_key=$2`, quizID, identityKey)
	attempt, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find by identity: %w", err)
	}
	return attempt, nil
}

func (l *AttemptLedger) FindAll(ctx context.Context) ([]*domain.Attempt, error) {
	rows, err := l.pool.Query(ctx, attemptColumns)
	if err != nil {
		return nil, fmt.Errorf("find all: %w", err)
	}
	defer rows.Close()
	return scanAttempts(rows)
}

// DeleteMany removes the given attempts in one statement so a failed
// reconciliation pass never half-applies.
func (l *AttemptLedger) DeleteMany(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := l.pool.Exec(ctx, `DELETE FROM attempts WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete attempts: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (l *AttemptLedger) CountByQuiz(ctx context.Context) (map[string]int, error) {
	rows, err := l.pool.Query(ctx, `SELECT quiz_id, COUNT(*) FROM attempts GROUP BY quiz_id`)
	if err != nil {
		return nil, fmt.Errorf("count by quiz: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var quizID string
		var n int
		if err := rows.Scan(&quizID, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[quizID] = n
	}
	return counts, rows.Err()
}

const attemptColumns = `SELECT id, quiz_id, user_id, display_name, external_id, answers, score, time_taken, created_at FROM attempts`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAttempt(row rowScanner) (*domain.Attempt, error) {
	var a domain.Attempt
	var answers []byte
	if err := row.Scan(&a.ID, &a.QuizID, &a.UserID, &a.DisplayName, &a.ExternalID, &answers, &a.Score, &a.TimeTaken, &a.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answers, &a.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	return &a, nil
}

func scanAttempts(rows pgx.Rows) ([]*domain.Attempt, error) {
	var out []*domain.Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, attempt)
	}
	return out, rows.Err()
}
