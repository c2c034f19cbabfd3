package catalog_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizzer/internal/catalog"
	"github.com/victornm/quizzer/internal/domain"
	"github.com/victornm/quizzer/internal/errors"
)

const (
	indexJSON = `[
  {"game_code": "Q1", "title": "Capitals", "description": "World capitals", "game_question": "capitals.json"},
  {"game_code": "Q2", "title": "No bank"},
  {"game_code": "Q3", "title": "Missing bank", "game_question": "missing.json"},
  {"game_code": "Q4", "title": "Broken bank", "game_question": "broken.json"}
]`

	capitalsJSON = `[
  {"id": "c1", "question": "Capital of France?", "options": ["Paris", "Lyon", "Nice"], "correct": "Paris"},
  {"question": "Capital of Japan?", "options": ["Osaka", "Tokyo"], "correct": "Tokyo"}
]`

	brokenJSON = `[{"id": "b1", "question": "?", "options": ["a", "b"], "correct": "c"}]`
)

func TestCatalog_Resolve(t *testing.T) {
	c := makeCatalog(t)

	q, err := c.Resolve(context.Background(), "Q1")
	require.NoError(t, err)
	require.Equal(t, domain.QuizDefinition{
		Code:            "Q1",
		Title:           "Capitals",
		Description:     "World capitals",
		QuestionBankRef: "capitals.json",
	}, q)

	_, err = c.Resolve(context.Background(), "nope")
	require.True(t, errors.Is(err, errors.CodeNotFound, errors.ReasonQuizNotFound), "got %v", err)
}

func TestCatalog_QuestionsFor(t *testing.T) {
	tests := map[string]struct {
		code   string
		assert func(t *testing.T, qs []domain.Question, err error)
	}{
		"should load questions with the correct answer as an index": {
			code: "Q1",
			assert: func(t *testing.T, qs []domain.Question, err error) {
				require.NoError(t, err)
				require.Equal(t, []domain.Question{
					{ID: "c1", Prompt: "Capital of France?", Options: []string{"Paris", "Lyon", "Nice"}, CorrectOption: 0},
					{ID: "2", Prompt: "Capital of Japan?", Options: []string{"Osaka", "Tokyo"}, CorrectOption: 1},
				}, qs)
			},
		},

		"should fail with not found when the quiz has no bank": {
			code: "Q2",
			assert: func(t *testing.T, _ []domain.Question, err error) {
				require.True(t, errors.Is(err, errors.CodeNotFound, errors.ReasonQuestionBankNotFound), "got %v", err)
			},
		},

		"should fail with not found when the bank file is missing": {
			code: "Q3",
			assert: func(t *testing.T, _ []domain.Question, err error) {
				require.True(t, errors.Is(err, errors.CodeNotFound, errors.ReasonQuestionBankNotFound), "got %v", err)
			},
		},

		"should fail with internal when the correct answer is not an option": {
			code: "Q4",
			assert: func(t *testing.T, _ []domain.Question, err error) {
				require.True(t, errors.Is(err, errors.CodeInternal, ""), "got %v", err)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := makeCatalog(t)

			def, err := c.Resolve(ctx, tt.code)
			require.NoError(t, err)

			qs, err := c.QuestionsFor(ctx, def)
			tt.assert(t, qs, err)
		})
	}
}

func TestCatalog_QuestionsForReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := makeCatalog(t)
	def, err := c.Resolve(ctx, "Q1")
	require.NoError(t, err)

	first, err := c.QuestionsFor(ctx, def)
	require.NoError(t, err)
	first[0].Options[0] = "Marseille"
	first[1] = domain.Question{}

	second, err := c.QuestionsFor(ctx, def)
	require.NoError(t, err)
	assert.Equal(t, "Paris", second[0].Options[0])
	assert.Equal(t, "Capital of Japan?", second[1].Prompt)
}

func TestCatalog_List(t *testing.T) {
	qs, err := makeCatalog(t).List(context.Background())
	require.NoError(t, err)

	codes := make([]string, 0, len(qs))
	for _, q := range qs {
		codes = append(codes, q.Code)
	}
	require.Equal(t, []string{"Q1", "Q2", "Q3", "Q4"}, codes)
}

func TestCatalog_LoadsBankOnce(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{Source: catalog.NewFSSource(contentFS())}
	c, err := catalog.New(ctx, catalog.Config{Source: src})
	require.NoError(t, err)

	def, err := c.Resolve(ctx, "Q1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.QuestionsFor(ctx, def)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err = c.QuestionsFor(ctx, def)
	require.NoError(t, err)
	assert.LessOrEqual(t, src.loads.Load(), int32(20))
	assert.GreaterOrEqual(t, src.loads.Load(), int32(1))

	before := src.loads.Load()
	_, err = c.QuestionsFor(ctx, def)
	require.NoError(t, err)
	assert.Equal(t, before, src.loads.Load(), "cached bank should not be reloaded")
}

func TestNew_DuplicateCode(t *testing.T) {
	fsys := fstest.MapFS{
		catalog.IndexFile: {Data: []byte(`[{"game_code": "Q1"}, {"game_code": "Q1"}]`)},
	}

	_, err := catalog.New(context.Background(), catalog.Config{Source: catalog.NewFSSource(fsys)})
	require.Error(t, err)
}

func TestCatalog_CancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	src := &blockingSource{
		Source:  catalog.NewFSSource(contentFS()),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	c, err := catalog.New(context.Background(), catalog.Config{Source: src})
	require.NoError(t, err)

	def, err := c.Resolve(context.Background(), "Q1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.QuestionsFor(ctx, def)
		first <- err
	}()
	<-src.entered

	second := make(chan error, 1)
	go func() {
		qs, err := c.QuestionsFor(context.Background(), def)
		if err == nil && len(qs) != 2 {
			err = fmt.Errorf("got %d questions", len(qs))
		}
		second <- err
	}()

	cancel()
	require.ErrorIs(t, <-first, context.Canceled)

	close(src.release)
	require.NoError(t, <-second)
	require.Nil(t, src.loadErr.Load(), "the load must not see the caller's cancellation")
}

// blockingSource holds the first bank load until release is closed.
type blockingSource struct {
	catalog.Source
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	loadErr atomic.Pointer[error]
}

func (s *blockingSource) LoadQuestionBank(ctx context.Context, ref string) ([]domain.Question, error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release

	if err := ctx.Err(); err != nil {
		s.loadErr.Store(&err)
		return nil, err
	}
	return s.Source.LoadQuestionBank(ctx, ref)
}

type countingSource struct {
	catalog.Source
	loads atomic.Int32
}

func (s *countingSource) LoadQuestionBank(ctx context.Context, ref string) ([]domain.Question, error) {
	s.loads.Add(1)
	return s.Source.LoadQuestionBank(ctx, ref)
}

func contentFS() fstest.MapFS {
	return fstest.MapFS{
		catalog.IndexFile: {Data: []byte(indexJSON)},
		"capitals.json":   {Data: []byte(capitalsJSON)},
		"broken.json":     {Data: []byte(brokenJSON)},
	}
}

func makeCatalog(t *testing.T) *catalog.Catalog {
	c, err := catalog.New(context.Background(), catalog.Config{
		Source: catalog.NewFSSource(contentFS()),
	})
	require.NoError(t, err)
	return c
}
