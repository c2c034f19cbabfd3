// Package catalog resolves quiz definitions and their question banks.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/victornm/quizzer/internal/domain"
	"github.com/victornm/quizzer/internal/errors"
)

// LoadTimeout bounds a shared question bank load, which outlives the request that started it.
const LoadTimeout = 10 * time.Second

// Source loads raw catalog content.
type Source interface {
	LoadQuizzes(ctx context.Context) ([]domain.QuizDefinition, error)
	// LoadQuestionBank returns a NotFound error when the bank does not exist.
	LoadQuestionBank(ctx context.Context, ref string) ([]domain.Question, error)
}

type Config struct {
	Source Source
}

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	src     Source
	quizzes map[string]domain.QuizDefinition

	group singleflight.Group
	mu    sync.RWMutex
	banks map[string][]domain.Question
}

// New loads the quiz index eagerly. Question banks are loaded on first use.
func New(ctx context.Context, c Config) (*Catalog, error) {
	qs, err := c.Source.LoadQuizzes(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: load quizzes: %w", err)
	}

	m := make(map[string]domain.QuizDefinition, len(qs))
	for _, q := range qs {
		if _, dup := m[q.Code]; dup {
			return nil, fmt.Errorf("catalog: duplicate quiz code %q", q.Code)
		}
		m[q.Code] = q
	}

	return &Catalog{
		src:     c.Source,
		quizzes: m,
		banks:   make(map[string][]domain.Question),
	}, nil
}

func (c *Catalog) Resolve(_ context.Context, code string) (domain.QuizDefinition, error) {
	q, ok := c.quizzes[code]
	if !ok {
		return domain.QuizDefinition{}, errors.NotFound(errors.ReasonQuizNotFound, "quiz not found: code=%s", code)
	}

	return q, nil
}

// List returns every quiz sorted by code.
func (c *Catalog) List(_ context.Context) ([]domain.QuizDefinition, error) {
	qs := make([]domain.QuizDefinition, 0, len(c.quizzes))
	for _, q := range c.quizzes {
		qs = append(qs, q)
	}
	sort.Slice(qs, func(i, j int) bool { return qs[i].Code < qs[j].Code })

	return qs, nil
}

// QuestionsFor returns a private copy of the quiz's question bank in its stored order.
func (c *Catalog) QuestionsFor(ctx context.Context, def domain.QuizDefinition) ([]domain.Question, error) {
	if def.QuestionBankRef == "" {
		return nil, errors.NotFound(errors.ReasonQuestionBankNotFound, "questions not found: code=%s", def.Code)
	}

	bank, err := c.bank(ctx, def.QuestionBankRef)
	if err != nil {
		return nil, err
	}

	return clone(bank), nil
}

func (c *Catalog) bank(ctx context.Context, ref string) ([]domain.Question, error) {
	c.mu.RLock()
	b, ok := c.banks[ref]
	c.mu.RUnlock()
	if ok {
		return b, nil
	}

	// Every waiter shares the load, so it must not die with the caller that started it.
	ch := c.group.DoChan(ref, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LoadTimeout)
		defer cancel()

		b, err := c.src.LoadQuestionBank(ctx, ref)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.banks[ref] = b
		c.mu.Unlock()

		return b, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.Question), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func clone(qs []domain.Question) []domain.Question {
	out := make([]domain.Question, len(qs))
	for i, q := range qs {
		q.Options = append([]string(nil), q.Options...)
		out[i] = q
	}

	return out
}
