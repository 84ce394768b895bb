package app

import (
	"context"
	"fmt"
	"sort"

	"quiz-attempt-service/internal/domain"
)

// SettingsStore is the key/value configuration store behind the visibility
// gate. Set has upsert semantics.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// maxLeaderboardSize bounds every ranked view.
const maxLeaderboardSize = 100

// LeaderboardService derives ranked, deduplicated views from the ledger and
// applies the visibility gate. Views are computed from current ledger
// contents on every call; nothing is denormalized.
type LeaderboardService struct {
	ledger   AttemptLedger
	quizzes  QuizRepository
	settings SettingsStore
	watch    *LeaderboardWatch
}

func NewLeaderboardService(ledger AttemptLedger, quizzes QuizRepository, settings SettingsStore, watch *LeaderboardWatch) *LeaderboardService {
	return &LeaderboardService{ledger: ledger, quizzes: quizzes, settings: settings, watch: watch}
}

// QuizLeaderboard returns the per-quiz ranked view. When the quiz's publish
// flag is off and the caller is not an admin the gate short-circuits before
// any ledger query: callers get a valid, empty, Visible=false board.
func (s *LeaderboardService) QuizLeaderboard(ctx context.Context, quizID string, caller domain.Caller) (domain.Leaderboard, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if !quiz.ShowLeaderboard && !caller.IsAdmin() {
		return domain.Leaderboard{QuizID: quizID, Visible: false, Entries: []domain.LeaderboardEntry{}}, nil
	}
	return s.buildQuizBoard(ctx, quizID)
}

func (s *LeaderboardService) buildQuizBoard(ctx context.Context, quizID string) (domain.Leaderboard, error) {
	attempts, err := s.ledger.FindByQuiz(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("load attempts: %w", err)
	}

	ranked := bestPerGroup(attempts)
	if len(ranked) > maxLeaderboardSize {
		ranked = ranked[:maxLeaderboardSize]
	}

	entries := make([]domain.LeaderboardEntry, 0, len(ranked))
	for i, a := range ranked {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:        i + 1,
			DisplayName: a.DisplayName,
			ExternalID:  a.ExternalID,
			Score:       a.Score,
			TimeTaken:   a.TimeTaken,
			CreatedAt:   a.CreatedAt,
		})
	}
	return domain.Leaderboard{QuizID: quizID, Visible: true, Entries: entries}, nil
}

// OverallLeaderboard aggregates every stable identity's best-per-quiz
// attempts across all quizzes, gated by the showOverallLeaderboard setting.
func (s *LeaderboardService) OverallLeaderboard(ctx context.Context, caller domain.Caller) (domain.OverallLeaderboard, error) {
	if !caller.IsAdmin() {
		published, err := s.overallPublished(ctx)
		if err != nil {
			return domain.OverallLeaderboard{}, err
		}
		if !published {
			return domain.OverallLeaderboard{Visible: false, Entries: []domain.OverallEntry{}}, nil
		}
	}

	attempts, err := s.ledger.FindAll(ctx)
	if err != nil {
		return domain.OverallLeaderboard{}, fmt.Errorf("load attempts: %w", err)
	}

	// Best attempt per (identity, quiz); anonymous attempts cannot be
	// correlated across quizzes and are left out of the aggregate.
	type identityTotals struct {
		displayName    string
		latest         *domain.Attempt
		quizCount      int
		totalScore     int
		totalQuestions int
		percentSum     float64
	}
	type bestKey struct{ identity, quiz string }
	best := make(map[bestKey]*domain.Attempt)
	for _, a := range attempts {
		identity := domain.AttemptIdentity(a)
		if !identity.Stable() {
			continue
		}
		key := bestKey{identity: identity.Key(), quiz: a.QuizID}
		if cur, ok := best[key]; !ok || betterAttempt(a, cur) {
			best[key] = a
		}
	}

	totals := make(map[string]*identityTotals)
	for key, a := range best {
		t, ok := totals[key.identity]
		if !ok {
			t = &identityTotals{}
			totals[key.identity] = t
		}
		t.quizCount++
		t.totalScore += a.Score
		t.totalQuestions += a.QuestionCount()
		if n := a.QuestionCount(); n > 0 {
			t.percentSum += float64(a.Score) / float64(n) * 100
		}
		if t.latest == nil || a.CreatedAt.After(t.latest.CreatedAt) {
			t.latest = a
			t.displayName = a.DisplayName
		}
	}

	entries := make([]domain.OverallEntry, 0, len(totals))
	for _, t := range totals {
		entry := domain.OverallEntry{
			DisplayName:    t.displayName,
			QuizCount:      t.quizCount,
			TotalScore:     t.totalScore,
			TotalQuestions: t.totalQuestions,
			AveragePercent: t.percentSum / float64(t.quizCount),
		}
		if t.totalQuestions > 0 {
			entry.OverallPercent = float64(t.totalScore) / float64(t.totalQuestions) * 100
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].AveragePercent != entries[j].AveragePercent {
			return entries[i].AveragePercent > entries[j].AveragePercent
		}
		if entries[i].QuizCount != entries[j].QuizCount {
			return entries[i].QuizCount > entries[j].QuizCount
		}
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})
	if len(entries) > maxLeaderboardSize {
		entries = entries[:maxLeaderboardSize]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	return domain.OverallLeaderboard{Visible: true, Entries: entries}, nil
}

// Dashboard returns the admin summary. Admin only.
func (s *LeaderboardService) Dashboard(ctx context.Context, caller domain.Caller) (domain.DashboardSummary, error) {
	if !caller.IsAdmin() {
		return domain.DashboardSummary{}, domain.ErrAccessDenied
	}
	counts, err := s.ledger.CountByQuiz(ctx)
	if err != nil {
		return domain.DashboardSummary{}, fmt.Errorf("count attempts: %w", err)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return domain.DashboardSummary{
		TotalAttempts:       total,
		QuizzesWithAttempts: len(counts),
		AttemptsByQuiz:      counts,
	}, nil
}

func (s *LeaderboardService) overallPublished(ctx context.Context) (bool, error) {
	value, ok, err := s.settings.Get(ctx, domain.SettingOverallLeaderboard)
	if err != nil {
		return false, fmt.Errorf("read setting: %w", err)
	}
	return ok && value == "true", nil
}

// publishQuiz pushes the current public view of a quiz board to watchers.
// Gated boards are not broadcast.
func (s *LeaderboardService) publishQuiz(ctx context.Context, quizID string) {
	if s.watch == nil {
		return
	}
	board, err := s.QuizLeaderboard(ctx, quizID, domain.Caller{})
	if err != nil || !board.Visible {
		return
	}
	s.watch.Broadcast(quizID, board)
}
