package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"crisis-quiz-service/internal/domain"
)

// UserStore is an in-memory implementation of app.UserRepository.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*domain.User)}
}

func (s *UserStore) Create(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email || strings.EqualFold(existing.CharacterName, user.CharacterName) {
			return domain.ErrUserExists
		}
	}
	stored := user
	stored.Scores = copyScores(user.Scores)
	s.users[user.ID] = &stored
	return nil
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			return cloneUser(user), nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (s *UserStore) FindByID(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (s *UserStore) RecordScore(_ context.Context, userID string, mode domain.GameMode, score int) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	if user.Scores == nil {
		user.Scores = map[string]int{}
	}
	// A mode with no score yet counts as 0, so a negative first game stores 0.
	user.Scores[string(mode)] = max(user.Scores[string(mode)], score)
	user.TotalScore += score
	user.GamesPlayed++
	return cloneUser(user), nil
}

func (s *UserStore) Top(_ context.Context, limit int) ([]domain.RankedUser, error) {
	s.mu.RLock()
	ranked := make([]domain.RankedUser, 0, len(s.users))
	for _, user := range s.users {
		ranked = append(ranked, domain.RankedUser{
			UserID:        user.ID,
			CharacterName: user.CharacterName,
			TotalScore:    user.TotalScore,
			GamesPlayed:   user.GamesPlayed,
		})
	}
	s.mu.RUnlock()

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].TotalScore != ranked[j].TotalScore {
			return ranked[i].TotalScore > ranked[j].TotalScore
		}
		return ranked[i].CharacterName < ranked[j].CharacterName
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func cloneUser(u *domain.User) domain.User {
	out := *u
	out.Scores = copyScores(u.Scores)
	return out
}

func copyScores(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
