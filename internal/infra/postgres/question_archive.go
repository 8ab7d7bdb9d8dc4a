package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"crisis-quiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionArchive stores every generated question as JSONB in generated_questions.
type QuestionArchive struct {
	pool *pgxpool.Pool
}

func NewQuestionArchive(pool *pgxpool.Pool) *QuestionArchive {
	return &QuestionArchive{pool: pool}
}

func (a *QuestionArchive) SaveSet(ctx context.Context, mode domain.GameMode, set domain.QuestionSet) error {
	if len(set.Questions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, q := range set.Questions {
		data, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("marshal question: %w", err)
		}
		batch.Queue(`INSERT INTO generated_questions (id, mode, scenario, question) VALUES ($1, $2, $3, $4::jsonb)`,
			uuid.NewString(), string(mode), set.Label, string(data))
	}
	results := a.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range set.Questions {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
	}
	return nil
}

func (a *QuestionArchive) RandomQuestion(ctx context.Context) (domain.ArchivedQuestion, error) {
	var (
		q    domain.ArchivedQuestion
		mode string
		raw  []byte
	)
	err := a.pool.QueryRow(ctx, `
		SELECT id, mode, scenario, question FROM generated_questions
		ORDER BY random() LIMIT 1`).Scan(&q.ID, &mode, &q.Scenario, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ArchivedQuestion{}, domain.ErrNoQuestions
	}
	if err != nil {
		return domain.ArchivedQuestion{}, fmt.Errorf("load question: %w", err)
	}
	if err := json.Unmarshal(raw, &q.Question); err != nil {
		return domain.ArchivedQuestion{}, fmt.Errorf("unmarshal question: %w", err)
	}
	q.Mode = domain.GameMode(mode)
	return q, nil
}
