package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"langcenter-quiz-service/internal/domain"
)

// ContentLoader reads quiz and placement content JSONB from Postgres. Reads
// go through pgx directly; the caching layers sit on top.
type ContentLoader struct {
	pool *pgxpool.Pool
}

func NewContentLoader(pool *pgxpool.Pool) *ContentLoader {
	return &ContentLoader{pool: pool}
}

func (l *ContentLoader) LoadActiveQuiz(ctx context.Context) (domain.KahootQuiz, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx,
		`SELECT data FROM kahoot_quizzes WHERE (data->>'isActive')::boolean LIMIT 1`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.KahootQuiz{}, domain.ErrNoActiveQuiz
	}
	if err != nil {
		return domain.KahootQuiz{}, fmt.Errorf("load active quiz: %w", err)
	}
	var quiz domain.KahootQuiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.KahootQuiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return quiz, nil
}

func (l *ContentLoader) LoadQuiz(ctx context.Context, quizID string) (domain.KahootQuiz, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx,
		`SELECT data FROM kahoot_quizzes WHERE id = $1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.KahootQuiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.KahootQuiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.KahootQuiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.KahootQuiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return quiz, nil
}

func (l *ContentLoader) LoadPlacementQuestions(ctx context.Context) ([]domain.PlacementQuestion, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT data FROM placement_questions WHERE (data->>'isActive')::boolean ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("load placement questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.PlacementQuestion
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan placement question: %w", err)
		}
		var q domain.PlacementQuestion
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal placement question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
