package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crisis-quiz-service/internal/config"
	"crisis-quiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository is the record store for players and their scores.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	FindByID(ctx context.Context, id string) (domain.User, error)
	// RecordScore keeps the best score per mode, adds to the total and counts the game.
	RecordScore(ctx context.Context, userID string, mode domain.GameMode, score int) (domain.User, error)
	Top(ctx context.Context, limit int) ([]domain.RankedUser, error)
}

// TokenIssuer signs access tokens for authenticated players.
type TokenIssuer interface {
	Generate(userID, characterName string) (string, error)
}

// DefaultLeaderboardSize is used when callers pass a non-positive limit.
const DefaultLeaderboardSize = 10

// AccountService holds the signup, login and score use cases.
type AccountService struct {
	users      UserRepository
	tokens     TokenIssuer
	bcryptCost int
	now        func() time.Time
}

func NewAccountService(users UserRepository, tokens TokenIssuer) *AccountService {
	return &AccountService{users: users, tokens: tokens, bcryptCost: bcrypt.DefaultCost, now: time.Now}
}

// NewAccountServiceWithCost is test-only; a low cost keeps hashing fast.
func NewAccountServiceWithCost(users UserRepository, tokens TokenIssuer, cost int) *AccountService {
	s := NewAccountService(users, tokens)
	s.bcryptCost = cost
	return s
}

func (s *AccountService) Signup(ctx context.Context, email, password, characterName string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	password = strings.TrimSpace(password)
	characterName = strings.TrimSpace(characterName)
	if email == "" || password == "" || characterName == "" {
		return domain.User{}, fmt.Errorf("%w: all fields are required", domain.ErrInvalidInput)
	}
	if !strings.Contains(email, "@") {
		return domain.User{}, fmt.Errorf("%w: invalid email format", domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:            uuid.NewString(),
		Email:         email,
		CharacterName: characterName,
		PasswordHash:  string(hash),
		Scores:        map[string]int{},
		CreatedAt:     s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return domain.User{}, err
	}
	config.WithContext(ctx).WithField("user_id", user.ID).Info("user registered")
	return user, nil
}

// Login returns a signed token and the matching user.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return "", domain.User{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", domain.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(strings.TrimSpace(password))); err != nil {
		return "", domain.User{}, domain.ErrInvalidCredentials
	}
	token, err := s.tokens.Generate(user.ID, user.CharacterName)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("sign token: %w", err)
	}
	return token, user, nil
}

func (s *AccountService) RecordScore(ctx context.Context, userID string, mode domain.GameMode, score int) (domain.User, error) {
	if mode == "" {
		return domain.User{}, fmt.Errorf("%w: game mode is required", domain.ErrInvalidInput)
	}
	user, err := s.users.RecordScore(ctx, userID, mode, score)
	if err != nil {
		return domain.User{}, err
	}
	config.WithContext(ctx).WithFields(logrus.Fields{
		"user_id": userID,
		"mode":    mode,
		"score":   score,
	}).Info("score recorded")
	return user, nil
}

func (s *AccountService) Leaderboard(ctx context.Context, limit int) ([]domain.RankedUser, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	return s.users.Top(ctx, limit)
}
