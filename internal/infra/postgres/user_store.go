package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"crisis-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const userColumns = `id, email, character_name, password_hash, total_score, games_played, scores, created_at`

// UserStore keeps players in the users table. Per-mode best scores live in a
// JSONB column keyed by mode.
type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) Create(ctx context.Context, user domain.User) error {
	scores, err := json.Marshal(nonNilScores(user.Scores))
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
		ON CONFLICT DO NOTHING`,
		user.ID, user.Email, user.CharacterName, user.PasswordHash,
		user.TotalScore, user.GamesPlayed, string(scores), user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserExists
	}
	return nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.scanOne(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
}

func (s *UserStore) FindByID(ctx context.Context, id string) (domain.User, error) {
	return s.scanOne(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (s *UserStore) RecordScore(ctx context.Context, userID string, mode domain.GameMode, score int) (domain.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users SET
			scores = jsonb_set(scores, ARRAY[$2::text],
				to_jsonb(GREATEST(COALESCE((scores->>$2::text)::int, 0), $3::int))),
			total_score = total_score + $3::int,
			games_played = games_played + 1
		WHERE id=$1
		RETURNING `+userColumns,
		userID, string(mode), score,
	)
	return s.scanOne(row)
}

func (s *UserStore) Top(ctx context.Context, limit int) ([]domain.RankedUser, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, character_name, total_score, games_played
		FROM users
		ORDER BY total_score DESC, character_name ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	ranked := []domain.RankedUser{}
	for rows.Next() {
		var r domain.RankedUser
		if err := rows.Scan(&r.UserID, &r.CharacterName, &r.TotalScore, &r.GamesPlayed); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		ranked = append(ranked, r)
	}
	return ranked, rows.Err()
}

func (s *UserStore) scanOne(row pgx.Row) (domain.User, error) {
	var (
		user   domain.User
		scores []byte
	)
	err := row.Scan(&user.ID, &user.Email, &user.CharacterName, &user.PasswordHash,
		&user.TotalScore, &user.GamesPlayed, &scores, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("scan user: %w", err)
	}
	if err := json.Unmarshal(scores, &user.Scores); err != nil {
		return domain.User{}, fmt.Errorf("unmarshal scores: %w", err)
	}
	return user, nil
}

func nonNilScores(in map[string]int) map[string]int {
	if in == nil {
		return map[string]int{}
	}
	return in
}
