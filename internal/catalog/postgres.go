package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/quizzer/internal/domain"
	"github.com/victornm/quizzer/internal/errors"
)

// PostgresSource reads quizzes and question banks from the quizzes and questions tables.
type PostgresSource struct {
	db *pgxpool.Pool
}

func NewPostgresSource(db *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) LoadQuizzes(ctx context.Context) ([]domain.QuizDefinition, error) {
	const stmt = `SELECT code, title, description, COALESCE(question_bank, '') FROM quizzes ORDER BY code;`

	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("query quizzes: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.QuizDefinition, error) {
		var q domain.QuizDefinition
		err := r.Scan(&q.Code, &q.Title, &q.Description, &q.QuestionBankRef)
		return q, err
	})
}

func (s *PostgresSource) LoadQuestionBank(ctx context.Context, ref string) ([]domain.Question, error) {
	const stmt = `
SELECT id, prompt, options, correct
FROM questions
WHERE bank = $1
ORDER BY position;`

	rows, err := s.db.Query(ctx, stmt, ref)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("catalog: query bank %s: %w", ref, err))
	}

	qs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Question, error) {
		var (
			id, prompt, correct string
			options             []string
		)
		if err := r.Scan(&id, &prompt, &options, &correct); err != nil {
			return domain.Question{}, err
		}

		return newQuestion(id, prompt, options, correct)
	})
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("catalog: bank %s: %w", ref, err))
	}

	if len(qs) == 0 {
		return nil, errors.NotFound(errors.ReasonQuestionBankNotFound, "questions not found: bank=%s", ref)
	}

	return qs, nil
}
