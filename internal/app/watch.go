package app

import (
	"sync"

	"quiz-attempt-service/internal/domain"
)

// LeaderboardWatch fans out per-quiz leaderboard snapshots to subscribers
// (the websocket transport). Snapshots are rebuilt by the leaderboard
// service after each accepted submission.
type LeaderboardWatch struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardWatch() *LeaderboardWatch {
	return &LeaderboardWatch{subs: make(map[string]map[chan domain.Leaderboard]struct{})}
}

// Subscribe returns a channel receiving snapshots for one quiz. The caller
// must invoke the returned cancel function to avoid leaks.
func (w *LeaderboardWatch) Subscribe(quizID string) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	w.mu.Lock()
	if w.subs[quizID] == nil {
		w.subs[quizID] = make(map[chan domain.Leaderboard]struct{})
	}
	w.subs[quizID][ch] = struct{}{}
	w.mu.Unlock()

	cancel := func() {
		w.mu.Lock()
		if set, ok := w.subs[quizID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(w.subs, quizID)
			}
		}
		w.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast delivers a snapshot to every subscriber of the quiz. A slow
// subscriber's stale snapshot is dropped in favor of the fresh one so one
// client cannot block the rest.
func (w *LeaderboardWatch) Broadcast(quizID string, board domain.Leaderboard) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for ch := range w.subs[quizID] {
		select {
		case ch <- board:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- board
		}
	}
}
