package domain

const (
	EventNameSessionStarted     = "session.started"
	EventNameAnswerScored       = "answer.scored"
	EventNameSessionCompleted   = "session.completed"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventSessionStarted struct {
	SessionID string
	GameCode  string
	Player    Player
}

func (EventSessionStarted) Name() string { return EventNameSessionStarted }

type EventAnswerScored struct {
	SessionID string
	GameCode  string
	Player    Player
	Points    int
	Score     int
}

func (EventAnswerScored) Name() string { return EventNameAnswerScored }

type EventSessionCompleted struct {
	SessionID string
	GameCode  string
	Player    Player
	Score     int
}

func (EventSessionCompleted) Name() string { return EventNameSessionCompleted }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
