package app

import (
	"sort"

	"quiz-attempt-service/internal/domain"
)

// betterAttempt is the tie-break order used everywhere a single attempt must
// win: higher score, then lower elapsed time, then earlier creation. The id
// comparison at the end only makes the order total.
func betterAttempt(a, b *domain.Attempt) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.TimeTaken != b.TimeTaken {
		return a.TimeTaken < b.TimeTaken
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// sortBestFirst orders attempts by the tie-break key, best first.
func sortBestFirst(attempts []*domain.Attempt) {
	sort.Slice(attempts, func(i, j int) bool {
		return betterAttempt(attempts[i], attempts[j])
	})
}

// bestPerGroup keeps the single best attempt for each grouping key.
// Anonymous attempts group by their own id and therefore all survive.
func bestPerGroup(attempts []*domain.Attempt) []*domain.Attempt {
	best := make(map[string]*domain.Attempt, len(attempts))
	for _, a := range attempts {
		key := domain.GroupKey(a)
		if cur, ok := best[key]; !ok || betterAttempt(a, cur) {
			best[key] = a
		}
	}
	out := make([]*domain.Attempt, 0, len(best))
	for _, a := range best {
		out = append(out, a)
	}
	sortBestFirst(out)
	return out
}
