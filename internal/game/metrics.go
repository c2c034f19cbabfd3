package game

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizzer",
		Subsystem: "game",
		Name:      "sessions_started_total",
		Help:      "Number of game sessions started.",
	}, []string{"game_code"})

	sessionsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizzer",
		Subsystem: "game",
		Name:      "sessions_completed_total",
		Help:      "Number of game sessions played to the end.",
	}, []string{"game_code"})

	answersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizzer",
		Subsystem: "game",
		Name:      "answers_total",
		Help:      "Number of evaluated answers by result.",
	}, []string{"game_code", "result"})

	concurrentUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quizzer",
		Subsystem: "game",
		Name:      "concurrent_updates_total",
		Help:      "Number of session writes rejected because the session changed in between.",
	})
)
