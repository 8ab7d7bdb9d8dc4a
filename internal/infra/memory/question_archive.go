package memory

import (
	"context"
	"math/rand"
	"sync"

	"crisis-quiz-service/internal/domain"
	"github.com/google/uuid"
)

// QuestionArchive keeps generated questions in process memory.
type QuestionArchive struct {
	mu        sync.RWMutex
	questions []domain.ArchivedQuestion
	intn      func(int) int
}

func NewQuestionArchive() *QuestionArchive {
	return &QuestionArchive{intn: rand.Intn}
}

func (a *QuestionArchive) SaveSet(_ context.Context, mode domain.GameMode, set domain.QuestionSet) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, q := range set.Questions {
		a.questions = append(a.questions, domain.ArchivedQuestion{
			ID:       uuid.NewString(),
			Mode:     mode,
			Scenario: set.Label,
			Question: q,
		})
	}
	return nil
}

func (a *QuestionArchive) RandomQuestion(_ context.Context) (domain.ArchivedQuestion, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.questions) == 0 {
		return domain.ArchivedQuestion{}, domain.ErrNoQuestions
	}
	return a.questions[a.intn(len(a.questions))], nil
}
