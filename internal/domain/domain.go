package domain

// QuizDefinition describes a playable quiz. It is loaded from static content and never mutated.
type QuizDefinition struct {
	Code            string
	Title           string
	Description     string
	QuestionBankRef string
}

// Question is a single multiple choice question. CorrectOption indexes Options.
type Question struct {
	ID            string
	Prompt        string
	Options       []string
	CorrectOption int
}

// CorrectAnswer returns the value of the correct option, or "" when the index is out of range.
func (q Question) CorrectAnswer() string {
	if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
		return ""
	}

	return q.Options[q.CorrectOption]
}

// Public strips the correct answer from the question.
func (q Question) Public() PublicQuestion {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)

	return PublicQuestion{
		ID:      q.ID,
		Prompt:  q.Prompt,
		Options: opts,
	}
}

// PublicQuestion is the client facing projection of a question.
type PublicQuestion struct {
	ID      string
	Prompt  string
	Options []string
}

// Player is the authenticated principal playing a session.
type Player struct {
	Name  string
	Email string `validate:"required,email"`
}

// Leaderboard lists the best completed scores of a quiz, sorted by score in descending order.
type Leaderboard struct {
	GameCode string
	Entries  []LeaderboardEntry
}

type LeaderboardEntry struct {
	Player Player
	Score  int
}
