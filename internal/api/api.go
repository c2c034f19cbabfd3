package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizzer/internal/catalog"
	"github.com/victornm/quizzer/internal/domain"
	"github.com/victornm/quizzer/internal/errors"
	"github.com/victornm/quizzer/internal/event"
	"github.com/victornm/quizzer/internal/game"
	"github.com/victornm/quizzer/internal/leaderboard"
)

type Config struct {
	Router        gin.IRouter
	EventBus      *event.Bus
	Catalog       *catalog.Catalog
	Game          *game.Service
	Leaderboard   *leaderboard.Service
	Authenticator *Authenticator
	Redis         Redis
	PubsubPrefix  string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	cat *catalog.Catalog
	gs  *game.Service
	ls  *leaderboard.Service

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		cat:    c.Catalog,
		gs:     c.Game,
		ls:     c.Leaderboard,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	// HTTP APIs
	r := c.Router.Group("/", c.Authenticator.Middleware())
	r.GET("/quiz-hub", a.QuizHub)
	r.POST("/questions", a.Questions)
	r.POST("/questions-answer", a.SubmitAnswer)
	r.GET("/leaderboard/:game_code", a.GetLeaderboard)

	// Register event handlers
	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})

	return a
}

// QuizHub lists the playable quizzes without their question banks.
func (a *API) QuizHub(c *gin.Context) {
	qs, err := a.cat.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	data := make([]Quiz, 0, len(qs))
	for _, q := range qs {
		data = append(data, Quiz{
			GameCode:    q.Code,
			Title:       q.Title,
			Description: q.Description,
		})
	}

	c.JSON(http.StatusOK, Response{Message: MessageSuccess, Data: data})
}

type QuestionsRequest struct {
	GameCode  string `json:"game_code" binding:"required"`
	SessionID string `json:"session_id"`
}

// Questions starts a session, or serves the next question of the session in session_id.
func (a *API) Questions(c *gin.Context) {
	var req QuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.Validation("Invalid validation! %v", err))
		return
	}

	resp, err := a.gs.StartOrAdvance(c.Request.Context(), game.StartOrAdvanceRequest{
		Player:        playerFrom(c),
		GameCode:      req.GameCode,
		SessionHandle: req.SessionID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	if resp.Status == game.StatusCompleted {
		c.JSON(http.StatusOK, Response{
			Message: MessageGameCompleted,
			Data:    Completed{Status: string(resp.Status), Points: resp.Score},
		})
		return
	}

	msg := MessageNextQuestion
	if req.SessionID == "" {
		msg = MessageLetsPlay
	}

	c.JSON(http.StatusOK, Response{
		Message: msg,
		Data: Round{
			SessionID:      resp.SessionHandle,
			NumberQuestion: resp.QuestionNumber,
			TotalQuestions: resp.TotalQuestions,
			Question: Question{
				ID:       resp.Question.ID,
				Question: resp.Question.Prompt,
				Options:  resp.Question.Options,
			},
			Timestamps: resp.DeadlineHandle,
			Points:     resp.Score,
		},
	})
}

type AnswerRequest struct {
	GameCode   string       `json:"game_code" binding:"required"`
	SessionID  string       `json:"session_id" binding:"required"`
	Answer     string       `json:"answer"`
	TimeAnswer EpochSeconds `json:"time_answer" binding:"required"`
}

// UnmarshalJSON also accepts the camel-cased timeAnswer sent by older clients.
func (r *AnswerRequest) UnmarshalJSON(b []byte) error {
	type plain AnswerRequest
	var req struct {
		plain
		TimeAnswerLegacy *EpochSeconds `json:"timeAnswer"`
	}
	if err := json.Unmarshal(b, &req); err != nil {
		return err
	}

	*r = AnswerRequest(req.plain)
	if r.TimeAnswer == 0 && req.TimeAnswerLegacy != nil {
		r.TimeAnswer = *req.TimeAnswerLegacy
	}
	return nil
}

func (a *API) SubmitAnswer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.Validation("Invalid validation! %v", err))
		return
	}

	resp, err := a.gs.SubmitAnswer(c.Request.Context(), game.SubmitAnswerRequest{
		Player:        playerFrom(c),
		GameCode:      req.GameCode,
		SessionHandle: req.SessionID,
		Answer:        req.Answer,
		SubmittedAt:   int64(req.TimeAnswer),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	msg := MessageCorrectAnswer
	if resp.Status == game.StatusIncorrect {
		msg = MessageWrongAnswer
	}

	c.JSON(http.StatusOK, Response{
		Message: msg,
		Data: Answer{
			Status:        string(resp.Status),
			Points:        resp.Score,
			CorrectAnswer: resp.CorrectAnswer,
		},
	})
}

func (a *API) GetLeaderboard(c *gin.Context) {
	var limit int
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			abortWithError(c, errors.Validation("invalid limit: %s", s))
			return
		}
		limit = n
	}

	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		GameCode: c.Param("game_code"),
		Limit:    limit,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Message: MessageSuccess, Data: toLeaderboard(*l)})
}
