package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-attempt-service/internal/domain"
)

// QuizStore loads quiz JSONB from Postgres and mutates the per-quiz
// leaderboard publish flag. Quiz content is authored elsewhere; this service
// only reads it and flips the flag.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

func (s *QuizStore) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var (
		raw             []byte
		title           string
		showLeaderboard bool
	)
	err := s.pool.QueryRow(ctx,
		`SELECT title, data, show_leaderboard FROM quizzes WHERE id=$1`, quizID,
	).Scan(&title, &raw, &showLeaderboard)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	quiz.ID = quizID
	quiz.Title = title
	quiz.ShowLeaderboard = showLeaderboard
	return quiz, nil
}

func (s *QuizStore) SetShowLeaderboard(ctx context.Context, quizID string, show bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE quizzes SET show_leaderboard=$2 WHERE id=$1`, quizID, show)
	if err != nil {
		return fmt.Errorf("set show_leaderboard: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}
