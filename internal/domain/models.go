package domain

import "time"

// Question models an MCQ question; CorrectIndex is zero-based into Options.
type Question struct {
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// Quiz is the read-only quiz content this engine scores against.
// ShowLeaderboard is the per-quiz publish flag, mutable only by admins.
type Quiz struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Questions       []Question `json:"questions"`
	ShowLeaderboard bool       `json:"showLeaderboard"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Attempt is one scored submission. Attempts are immutable after creation
// and are removed only by the duplicate reconciler or an admin purge.
type Attempt struct {
	ID          string    `json:"id"`
	QuizID      string    `json:"quizId"`
	UserID      string    `json:"userId,omitempty"` // empty when not signed in
	DisplayName string    `json:"displayName"`
	ExternalID  string    `json:"externalId,omitempty"` // roll no / email / phone
	Answers     []int     `json:"answers"`
	Score       int       `json:"score"`
	TimeTaken   int       `json:"timeTaken"` // seconds
	CreatedAt   time.Time `json:"createdAt"`
}

// QuestionCount is the number of questions this attempt answered.
func (a *Attempt) QuestionCount() int {
	return len(a.Answers)
}

// Setting is an admin-controlled key/value pair with upsert semantics.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SettingOverallLeaderboard gates the cross-quiz leaderboard for non-admins.
// Absent means unpublished.
const SettingOverallLeaderboard = "showOverallLeaderboard"

// LeaderboardEntry is a derived view over a single attempt. Rank is
// positional in the sorted output and never persisted.
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	DisplayName string    `json:"displayName"`
	ExternalID  string    `json:"externalId,omitempty"`
	Score       int       `json:"score"`
	TimeTaken   int       `json:"timeTaken"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Leaderboard is the per-quiz ranked view. A gated board is a valid state:
// Visible false with no entries, never an error.
type Leaderboard struct {
	QuizID  string             `json:"quizId"`
	Visible bool               `json:"visible"`
	Entries []LeaderboardEntry `json:"entries"`
}

// OverallEntry aggregates one identity's best-per-quiz attempts.
type OverallEntry struct {
	Rank           int     `json:"rank"`
	DisplayName    string  `json:"displayName"`
	QuizCount      int     `json:"quizCount"`
	TotalScore     int     `json:"totalScore"`
	TotalQuestions int     `json:"totalQuestions"`
	OverallPercent float64 `json:"overallPercent"`
	AveragePercent float64 `json:"averagePercent"`
}

// OverallLeaderboard is the cross-quiz aggregate view.
type OverallLeaderboard struct {
	Visible bool           `json:"visible"`
	Entries []OverallEntry `json:"entries"`
}

// DashboardSummary is the admin overview derived from the ledger.
type DashboardSummary struct {
	TotalAttempts       int            `json:"totalAttempts"`
	QuizzesWithAttempts int            `json:"quizzesWithAttempts"`
	AttemptsByQuiz      map[string]int `json:"attemptsByQuiz"`
}

// Role of an authenticated caller.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Caller is the resolved authentication context of a request.
// A zero Caller is an unauthenticated visitor.
type Caller struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the caller may bypass visibility gates and run
// administrative operations.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}
