package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quizzer/internal/errors"
)

const (
	MessageSuccess       = "SUCCESS"
	MessageLetsPlay      = "LETS_PLAY"
	MessageNextQuestion  = "NEXT_QUESTION"
	MessageGameCompleted = "GAME_COMPLETED"
	MessageCorrectAnswer = "CORRECT_ANSWER"
	MessageWrongAnswer   = "WRONG_ANSWER"
)

type (
	Response struct {
		Message string `json:"message"`
		Data    any    `json:"data"`
	}

	Quiz struct {
		GameCode    string `json:"game_code"`
		Title       string `json:"title"`
		Description string `json:"description,omitempty"`
	}

	Question struct {
		ID       string   `json:"id"`
		Question string   `json:"question"`
		Options  []string `json:"options"`
	}

	Round struct {
		SessionID      string   `json:"session_id"`
		NumberQuestion int      `json:"number_question"`
		TotalQuestions int      `json:"total_questions"`
		Question       Question `json:"question"`
		Timestamps     string   `json:"timestamps"`
		Points         int      `json:"points"`
	}

	Completed struct {
		Status string `json:"status"`
		Points int    `json:"points"`
	}

	Answer struct {
		Status        string `json:"status"`
		Points        int    `json:"points"`
		CorrectAnswer string `json:"correct_answer,omitempty"`
	}
)

// EpochSeconds accepts a JSON number or a numeric string.
type EpochSeconds int64

func (e *EpochSeconds) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 {
		return nil
	}

	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp format: %s", b)
	}

	*e = EpochSeconds(int64(f))
	return nil
}

var _ json.Unmarshaler = (*EpochSeconds)(nil)

// abortWithError writes err as {code, reason, message}. Internal causes are logged, never returned.
func abortWithError(c *gin.Context, err error) {
	e := errors.Convert(err)

	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		e = errors.New(errors.CodeInternal)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}
