package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/domain"
)

// AttemptLedger is the authoritative store of attempts. Append must enforce
// at-most-one attempt per (quiz, identity key) as an atomic storage-level
// constraint and report violations as *domain.DuplicateAttemptError.
type AttemptLedger interface {
	Exists(ctx context.Context, quizID, identityKey string) (bool, error)
	Append(ctx context.Context, attempt *domain.Attempt) error
	FindByQuiz(ctx context.Context, quizID string) ([]*domain.Attempt, error)
	FindByIdentity(ctx context.Context, quizID, identityKey string) (*domain.Attempt, error)
	FindAll(ctx context.Context) ([]*domain.Attempt, error)
	DeleteMany(ctx context.Context, ids []string) (int, error)
	CountByQuiz(ctx context.Context) (map[string]int, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizAdmin mutates the per-quiz leaderboard publish flag. Quiz content
// itself is owned elsewhere and read-only here.
type QuizAdmin interface {
	SetShowLeaderboard(ctx context.Context, quizID string, show bool) error
}

// QuizCache drops cached quiz content after an admin mutation so flag flips
// take effect immediately.
type QuizCache interface {
	Invalidate(ctx context.Context, quizID string) error
}

// SubmitRequest carries one quiz submission.
type SubmitRequest struct {
	QuizID      string
	UserID      string // authenticated account id, empty for visitors
	ExternalID  string
	DisplayName string
	Answers     []int
	TimeTaken   int // seconds
}

// SubmitResult is the outcome of a successful submission.
type SubmitResult struct {
	AttemptID     string `json:"attemptId"`
	DisplayName   string `json:"displayName"`
	Score         int    `json:"score"`
	QuestionCount int    `json:"totalQuestions"`
}

// AttemptStatus answers "has this identity already taken this quiz".
type AttemptStatus struct {
	Attempted bool      `json:"attempted"`
	Score     int       `json:"score,omitempty"`
	TimeTaken int       `json:"timeTaken,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	Answers   []int     `json:"answers,omitempty"`
}

// AttemptService implements the submission pipeline: resolve identity,
// enforce the attempt policy, score, append, publish.
type AttemptService struct {
	ledger          AttemptLedger
	quizzes         QuizRepository
	boards          *LeaderboardService // optional live-feed source
	requireIdentity bool
	log             *zap.Logger
	now             func() time.Time
}

func NewAttemptService(ledger AttemptLedger, quizzes QuizRepository, boards *LeaderboardService, requireIdentity bool, log *zap.Logger) *AttemptService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AttemptService{
		ledger:          ledger,
		quizzes:         quizzes,
		boards:          boards,
		requireIdentity: requireIdentity,
		log:             log,
		now:             time.Now,
	}
}

// Submit scores and records one attempt. Exactly one submission per
// (quiz, identity) succeeds; later or concurrent ones fail with
// DuplicateAttempt carrying the prior score.
func (s *AttemptService) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if req.DisplayName == "" || req.TimeTaken < 0 {
		return SubmitResult{}, domain.ErrInvalidSubmission
	}

	identity := domain.ResolveIdentity(req.UserID, req.ExternalID)
	if s.requireIdentity && !identity.Authenticated() {
		return SubmitResult{}, domain.ErrAuthenticationRequired
	}

	quiz, err := s.quizzes.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return SubmitResult{}, err
	}

	// Fast pre-check for a friendlier duplicate response; the append below
	// still enforces the invariant atomically for races.
	if identity.Stable() {
		exists, err := s.ledger.Exists(ctx, req.QuizID, identity.Key())
		if err != nil {
			return SubmitResult{}, fmt.Errorf("check existing attempt: %w", err)
		}
		if exists {
			dup := &domain.DuplicateAttemptError{QuizID: req.QuizID}
			if prior, err := s.ledger.FindByIdentity(ctx, req.QuizID, identity.Key()); err == nil {
				dup.PriorScore = prior.Score
				dup.PriorTime = prior.TimeTaken
			}
			return SubmitResult{}, dup
		}
	}

	score, err := Score(quiz.Questions, req.Answers)
	if err != nil {
		return SubmitResult{}, err
	}

	attempt := &domain.Attempt{
		ID:          uuid.NewString(),
		QuizID:      req.QuizID,
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
		ExternalID:  req.ExternalID,
		Answers:     req.Answers,
		Score:       score,
		TimeTaken:   req.TimeTaken,
		CreatedAt:   s.now(),
	}

	if err := s.ledger.Append(ctx, attempt); err != nil {
		return SubmitResult{}, err
	}

	s.log.Info("attempt recorded",
		zap.String("quizId", req.QuizID),
		zap.String("attemptId", attempt.ID),
		zap.Int("score", score),
	)
	if s.boards != nil {
		s.boards.publishQuiz(ctx, req.QuizID)
	}

	return SubmitResult{
		AttemptID:     attempt.ID,
		DisplayName:   req.DisplayName,
		Score:         score,
		QuestionCount: len(quiz.Questions),
	}, nil
}

// CheckAttempted reports whether the given identity already has an attempt
// for the quiz, returning the recorded result when it does. Anonymous
// callers can never be correlated and always read as not attempted.
func (s *AttemptService) CheckAttempted(ctx context.Context, quizID string, identity domain.Identity) (AttemptStatus, error) {
	if !identity.Stable() {
		return AttemptStatus{}, nil
	}
	attempt, err := s.ledger.FindByIdentity(ctx, quizID, identity.Key())
	if errors.Is(err, domain.ErrAttemptNotFound) {
		return AttemptStatus{}, nil
	}
	if err != nil {
		return AttemptStatus{}, fmt.Errorf("find attempt: %w", err)
	}
	return AttemptStatus{
		Attempted: true,
		Score:     attempt.Score,
		TimeTaken: attempt.TimeTaken,
		CreatedAt: attempt.CreatedAt,
		Answers:   attempt.Answers,
	}, nil
}
