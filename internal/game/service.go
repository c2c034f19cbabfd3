// Package game runs timed single player quiz sessions.
//
// A session lives only in the store, under "gameSession_<id>", for a fixed lifetime counted from
// its creation. Clients never see the id or the round deadline in plain text: both travel as
// sealed handles.
package game

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/victornm/quizzer/internal/domain"
	"github.com/victornm/quizzer/internal/errors"
	"github.com/victornm/quizzer/internal/event"
	"github.com/victornm/quizzer/internal/score"
	"github.com/victornm/quizzer/internal/store"
)

const (
	DefaultRoundDuration = 15 * time.Second
	DefaultSessionTTL    = 900 * time.Second
	DefaultKeyPrefix     = "gameSession_"
)

var validate = validator.New()

type Catalog interface {
	Resolve(ctx context.Context, code string) (domain.QuizDefinition, error)
	QuestionsFor(ctx context.Context, def domain.QuizDefinition) ([]domain.Question, error)
}

type Codec interface {
	Seal(v any) (string, error)
	OpenString(token string) (string, error)
}

type Config struct {
	Catalog  Catalog
	Store    store.Store
	Codec    Codec
	Policy   score.Policy
	EventBus *event.Bus

	RoundDuration time.Duration
	SessionTTL    time.Duration
	KeyPrefix     string

	// Now and Rand default to the wall clock and the global source.
	Now  func() time.Time
	Rand *rand.Rand
}

type Service struct {
	catalog Catalog
	store   store.Store
	codec   Codec
	policy  score.Policy
	eb      *event.Bus

	round  time.Duration
	ttl    time.Duration
	prefix string

	now     func() time.Time
	shuffle shuffleFunc
}

func NewService(c Config) *Service {
	s := &Service{
		catalog: c.Catalog,
		store:   c.Store,
		codec:   c.Codec,
		policy:  c.Policy,
		eb:      c.EventBus,
		round:   c.RoundDuration,
		ttl:     c.SessionTTL,
		prefix:  c.KeyPrefix,
		now:     c.Now,
		shuffle: rand.Shuffle,
	}

	if s.policy == nil {
		s.policy = score.ClientClock{}
	}
	if s.round <= 0 {
		s.round = DefaultRoundDuration
	}
	if s.ttl <= 0 {
		s.ttl = DefaultSessionTTL
	}
	if s.prefix == "" {
		s.prefix = DefaultKeyPrefix
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.eb == nil {
		s.eb = event.NewBus()
	}
	if c.Rand != nil {
		s.shuffle = lockedShuffle(c.Rand)
	}

	return s
}

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCorrect    Status = "correct"
	StatusIncorrect  Status = "incorrect"
)

// StartOrAdvanceRequest starts a new session when SessionHandle is empty, otherwise it moves
// the session behind the handle to its next question.
type StartOrAdvanceRequest struct {
	Player        domain.Player
	GameCode      string `validate:"required,max=64"`
	SessionHandle string
}

// StartOrAdvanceResponse describes the open round, or only the final score once Status is completed.
type StartOrAdvanceResponse struct {
	Status         Status
	SessionHandle  string
	DeadlineHandle string
	QuestionNumber int
	TotalQuestions int
	Question       *domain.PublicQuestion
	Score          int
}

func (s *Service) StartOrAdvance(ctx context.Context, req StartOrAdvanceRequest) (*StartOrAdvanceResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if req.SessionHandle == "" {
		return s.start(ctx, req)
	}

	return s.advance(ctx, req)
}

func (s *Service) start(ctx context.Context, req StartOrAdvanceRequest) (*StartOrAdvanceResponse, error) {
	def, err := s.catalog.Resolve(ctx, req.GameCode)
	if err != nil {
		return nil, err
	}

	qs, err := s.catalog.QuestionsFor(ctx, def)
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, errors.NotFound(errors.ReasonQuestionBankNotFound, "questions not found: code=%s", def.Code)
	}

	shuffleQuestions(s.shuffle, qs)

	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("game: generate session ID: %w", err))
	}

	r := newRecord(id.String(), def.Code, qs, req.Player, s.deadline())

	b, err := r.marshal()
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("game: %w", err))
	}

	if err := s.store.Put(ctx, s.key(r.ID), b, s.ttl); err != nil {
		return nil, fmt.Errorf("game: save session: %w", err)
	}

	sessionsStarted.WithLabelValues(def.Code).Inc()
	slog.InfoContext(ctx, "game: session started",
		"session", r.ID,
		"game_code", def.Code,
		"questions", len(qs),
	)

	s.eb.Publish(ctx, domain.EventSessionStarted{
		SessionID: r.ID,
		GameCode:  def.Code,
		Player:    req.Player,
	})

	return s.roundResponse(r)
}

func (s *Service) advance(ctx context.Context, req StartOrAdvanceRequest) (*StartOrAdvanceResponse, error) {
	r, raw, err := s.load(ctx, req.SessionHandle, req.GameCode, req.Player)
	if err != nil {
		return nil, err
	}

	next := r.QuestionIndex + 1
	if next >= len(r.Questions) {
		return s.complete(ctx, r, raw)
	}

	r.QuestionIndex = next
	r.RoundDeadline = s.deadline()

	if err := s.save(ctx, r, raw); err != nil {
		return nil, err
	}

	return s.roundResponse(r)
}

// complete marks the session as finished, once, and reports the final score.
func (s *Service) complete(ctx context.Context, r *record, raw []byte) (*StartOrAdvanceResponse, error) {
	if !r.completed() {
		r.QuestionIndex = len(r.Questions)
		if err := s.save(ctx, r, raw); err != nil {
			return nil, err
		}

		sessionsCompleted.WithLabelValues(r.GameCode).Inc()
		slog.InfoContext(ctx, "game: session completed",
			"session", r.ID,
			"game_code", r.GameCode,
			"score", r.Score,
		)

		s.eb.Publish(ctx, domain.EventSessionCompleted{
			SessionID: r.ID,
			GameCode:  r.GameCode,
			Player:    r.player(),
			Score:     r.Score,
		})
	}

	return &StartOrAdvanceResponse{
		Status:         StatusCompleted,
		TotalQuestions: len(r.Questions),
		Score:          r.Score,
	}, nil
}

func (s *Service) roundResponse(r *record) (*StartOrAdvanceResponse, error) {
	sh, err := s.codec.Seal(r.ID)
	if err != nil {
		return nil, err
	}

	dh, err := s.codec.Seal(r.RoundDeadline)
	if err != nil {
		return nil, err
	}

	q := r.current().Public()

	return &StartOrAdvanceResponse{
		Status:         StatusInProgress,
		SessionHandle:  sh,
		DeadlineHandle: dh,
		QuestionNumber: r.QuestionIndex + 1,
		TotalQuestions: len(r.Questions),
		Question:       &q,
		Score:          r.Score,
	}, nil
}

type SubmitAnswerRequest struct {
	Player        domain.Player
	GameCode      string `validate:"required,max=64"`
	SessionHandle string `validate:"required"`
	Answer        string
	// SubmittedAt is the client reported submission time in epoch seconds.
	SubmittedAt int64 `validate:"gt=0"`
}

type SubmitAnswerResponse struct {
	Status Status
	Points int
	Score  int
	// CorrectAnswer is only set when the answer was wrong.
	CorrectAnswer string
}

// SubmitAnswer evaluates an answer to the open round. Only correct answers are persisted.
func (s *Service) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) (*SubmitAnswerResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	def, err := s.catalog.Resolve(ctx, req.GameCode)
	if err != nil {
		return nil, err
	}

	r, raw, err := s.load(ctx, req.SessionHandle, def.Code, req.Player)
	if err != nil {
		return nil, err
	}

	if r.completed() {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithReason(errors.ReasonSessionCompleted),
			errors.WithMessagef("session already completed"),
		)
	}

	q := r.current()
	correct := req.Answer == q.CorrectAnswer()
	points := s.policy.Score(r.RoundDeadline, req.SubmittedAt, correct)

	if !correct {
		answersSubmitted.WithLabelValues(r.GameCode, string(StatusIncorrect)).Inc()
		return &SubmitAnswerResponse{
			Status:        StatusIncorrect,
			Score:         r.Score,
			CorrectAnswer: q.CorrectAnswer(),
		}, nil
	}

	r.Score += points
	if err := s.save(ctx, r, raw); err != nil {
		return nil, err
	}

	answersSubmitted.WithLabelValues(r.GameCode, string(StatusCorrect)).Inc()

	s.eb.Publish(ctx, domain.EventAnswerScored{
		SessionID: r.ID,
		GameCode:  r.GameCode,
		Player:    r.player(),
		Points:    points,
		Score:     r.Score,
	})

	return &SubmitAnswerResponse{
		Status: StatusCorrect,
		Points: points,
		Score:  r.Score,
	}, nil
}

// load opens the session handle and reads the session it points to. Sessions of another game
// or another player are reported as missing.
func (s *Service) load(ctx context.Context, handle, gameCode string, p domain.Player) (*record, []byte, error) {
	id, err := s.codec.OpenString(handle)
	if err != nil {
		return nil, nil, err
	}

	raw, ok, err := s.store.Get(ctx, s.key(id))
	if err != nil {
		return nil, nil, fmt.Errorf("game: load session: %w", err)
	}
	if !ok {
		return nil, nil, sessionNotFound(id)
	}

	r, err := unmarshalRecord(raw)
	if err != nil {
		return nil, nil, errors.Internal(fmt.Errorf("game: %w", err))
	}

	if r.GameCode != gameCode || r.Player.Email != p.Email {
		return nil, nil, sessionNotFound(id)
	}

	return r, raw, nil
}

// save writes r over the snapshot old, failing if the session changed or expired since it was read.
func (s *Service) save(ctx context.Context, r *record, old []byte) error {
	r.Version++

	b, err := r.marshal()
	if err != nil {
		return errors.Internal(fmt.Errorf("game: %w", err))
	}

	ok, err := s.store.CompareAndPut(ctx, s.key(r.ID), old, b)
	if err != nil {
		return fmt.Errorf("game: save session: %w", err)
	}
	if ok {
		return nil
	}

	_, present, err := s.store.Get(ctx, s.key(r.ID))
	if err != nil {
		return fmt.Errorf("game: reload session: %w", err)
	}
	if !present {
		return sessionNotFound(r.ID)
	}

	concurrentUpdates.Inc()
	slog.WarnContext(ctx, "game: concurrent session update rejected", "session", r.ID)

	return errors.New(errors.CodeAborted,
		errors.WithReason(errors.ReasonConcurrentUpdate),
		errors.WithMessagef("session was modified concurrently, retry the request"),
	)
}

func (s *Service) deadline() int64 {
	return s.now().Add(s.round).Unix()
}

func (s *Service) key(id string) string {
	return s.prefix + id
}

// sessionNotFound keeps the internal id out of the client facing message.
func sessionNotFound(id string) error {
	return errors.New(errors.CodeNotFound,
		errors.WithReason(errors.ReasonSessionNotFound),
		errors.WithMessagef("session not found"),
		errors.WithCause(fmt.Errorf("session %s is absent or not owned by the caller", id)),
	)
}

func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !stderrors.As(err, &ves) {
		return errors.Internal(fmt.Errorf("game: validate request: %w", err))
	}

	fields := make([]string, 0, len(ves))
	for _, fe := range ves {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}

	return errors.Validation("invalid request: %s", strings.Join(fields, ", "))
}
