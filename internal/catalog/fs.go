package catalog

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"path"
	"strconv"

	"github.com/victornm/quizzer/internal/domain"
	"github.com/victornm/quizzer/internal/errors"
)

// IndexFile lists the quizzes inside an FSSource.
const IndexFile = "quizzes.json"

type (
	quizFile struct {
		Code         string `json:"game_code"`
		Title        string `json:"title"`
		Description  string `json:"description"`
		QuestionBank string `json:"game_question"`
	}

	questionFile struct {
		ID       string   `json:"id"`
		Question string   `json:"question"`
		Options  []string `json:"options"`
		Correct  string   `json:"correct"`
	}
)

// FSSource reads JSON content: an index file and one question bank file per quiz.
// The correct answer of a question is stored by value and must be one of its options.
type FSSource struct {
	fsys fs.FS
}

func NewFSSource(fsys fs.FS) *FSSource {
	return &FSSource{fsys: fsys}
}

func (s *FSSource) LoadQuizzes(_ context.Context) ([]domain.QuizDefinition, error) {
	b, err := fs.ReadFile(s.fsys, IndexFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", IndexFile, err)
	}

	var files []quizFile
	if err := json.Unmarshal(b, &files); err != nil {
		return nil, fmt.Errorf("parse %s: %w", IndexFile, err)
	}

	qs := make([]domain.QuizDefinition, 0, len(files))
	for _, f := range files {
		qs = append(qs, domain.QuizDefinition{
			Code:            f.Code,
			Title:           f.Title,
			Description:     f.Description,
			QuestionBankRef: f.QuestionBank,
		})
	}

	return qs, nil
}

func (s *FSSource) LoadQuestionBank(_ context.Context, ref string) ([]domain.Question, error) {
	name := path.Clean(ref)
	if !fs.ValidPath(name) {
		return nil, errors.NotFound(errors.ReasonQuestionBankNotFound, "questions not found: bank=%s", ref)
	}

	b, err := fs.ReadFile(s.fsys, name)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.NotFound(errors.ReasonQuestionBankNotFound, "questions not found: bank=%s", ref)
	}
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("catalog: read bank %s: %w", ref, err))
	}

	var files []questionFile
	if err := json.Unmarshal(b, &files); err != nil {
		return nil, errors.Internal(fmt.Errorf("catalog: parse bank %s: %w", ref, err))
	}

	qs := make([]domain.Question, 0, len(files))
	for i, f := range files {
		id := f.ID
		if id == "" {
			id = strconv.Itoa(i + 1)
		}

		q, err := newQuestion(id, f.Question, f.Options, f.Correct)
		if err != nil {
			return nil, errors.Internal(fmt.Errorf("catalog: bank %s: %w", ref, err))
		}
		qs = append(qs, q)
	}

	return qs, nil
}

func newQuestion(id, prompt string, options []string, correct string) (domain.Question, error) {
	for i, o := range options {
		if o == correct {
			return domain.Question{
				ID:            id,
				Prompt:        prompt,
				Options:       options,
				CorrectOption: i,
			}, nil
		}
	}

	return domain.Question{}, fmt.Errorf("question %s: correct answer %q is not an option", id, correct)
}
