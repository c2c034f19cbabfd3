package game

import (
	"math/rand/v2"
	"sync"

	"github.com/victornm/quizzer/internal/domain"
)

type shuffleFunc func(n int, swap func(i, j int))

// lockedShuffle serializes access to r, which is not safe for concurrent use.
func lockedShuffle(r *rand.Rand) shuffleFunc {
	var mu sync.Mutex
	return func(n int, swap func(i, j int)) {
		mu.Lock()
		defer mu.Unlock()
		r.Shuffle(n, swap)
	}
}

// shuffleQuestions reorders the questions and, independently, the options of each question,
// keeping CorrectOption pointing at the same answer.
func shuffleQuestions(shuffle shuffleFunc, qs []domain.Question) {
	shuffle(len(qs), func(i, j int) {
		qs[i], qs[j] = qs[j], qs[i]
	})

	for k := range qs {
		q := &qs[k]
		shuffle(len(q.Options), func(i, j int) {
			q.Options[i], q.Options[j] = q.Options[j], q.Options[i]
			switch q.CorrectOption {
			case i:
				q.CorrectOption = j
			case j:
				q.CorrectOption = i
			}
		})
	}
}
