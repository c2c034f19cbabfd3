package game

import (
	"encoding/json"
	"fmt"

	"github.com/victornm/quizzer/internal/domain"
)

// record is the cached representation of a game session.
type record struct {
	ID            string           `json:"id"`
	GameCode      string           `json:"game_code"`
	Questions     []questionRecord `json:"questions"`
	QuestionIndex int              `json:"current_question_index"`
	RoundDeadline int64            `json:"round_deadline"`
	Score         int              `json:"score"`
	Player        playerRecord     `json:"player"`
	// Version increases on every write so that two snapshots of the same session never compare equal.
	Version int64 `json:"version"`
}

type questionRecord struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Correct int      `json:"correct"`
}

type playerRecord struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func newRecord(id, code string, qs []domain.Question, p domain.Player, deadline int64) *record {
	r := &record{
		ID:            id,
		GameCode:      code,
		Questions:     make([]questionRecord, 0, len(qs)),
		RoundDeadline: deadline,
		Player:        playerRecord{Name: p.Name, Email: p.Email},
		Version:       1,
	}

	for _, q := range qs {
		r.Questions = append(r.Questions, questionRecord{
			ID:      q.ID,
			Prompt:  q.Prompt,
			Options: q.Options,
			Correct: q.CorrectOption,
		})
	}

	return r
}

func (r *record) completed() bool {
	return r.QuestionIndex >= len(r.Questions)
}

// current returns the open question. Callers check completed first.
func (r *record) current() domain.Question {
	q := r.Questions[r.QuestionIndex]
	return domain.Question{
		ID:            q.ID,
		Prompt:        q.Prompt,
		Options:       q.Options,
		CorrectOption: q.Correct,
	}
}

func (r *record) player() domain.Player {
	return domain.Player{Name: r.Player.Name, Email: r.Player.Email}
}

func (r *record) marshal() ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal session %s: %w", r.ID, err)
	}

	return b, nil
}

func unmarshalRecord(b []byte) (*record, error) {
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	if r.QuestionIndex < 0 || r.QuestionIndex > len(r.Questions) {
		return nil, fmt.Errorf("session %s: question index %d out of range", r.ID, r.QuestionIndex)
	}

	return &r, nil
}
