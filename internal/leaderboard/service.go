package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizzer/internal/domain"
	"github.com/victornm/quizzer/internal/errors"
	"github.com/victornm/quizzer/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond
	defaultLimit    = 100
)

type Config struct {
	// EventBus defaults to a private bus, which leaves the service unsubscribed from sessions.
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
	Now      func() time.Time
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
		now:    c.Now,
	}

	if s.now == nil {
		s.now = time.Now
	}
	if s.eb == nil {
		s.eb = event.NewBus()
	}

	s.eb.Subscribe(domain.EventNameSessionCompleted, func(ctx context.Context, e event.Event) error {
		return s.RecordScore(ctx, e.(domain.EventSessionCompleted))
	})

	return s
}

type GetLeaderboardRequest struct {
	GameCode string
	// Limit caps the number of entries, 100 when zero.
	Limit int
}

// GetLeaderboard returns the best completed scores of a quiz.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	res, err := s.redis.ZRevRangeWithScores(ctx, s.getLeaderboardKey(req.GameCode), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.NotFound(errors.ReasonLeaderboardNotFound, "leaderboard not found: code=%s", req.GameCode)
	}

	emails := make([]string, 0, len(res))
	for _, z := range res {
		emails = append(emails, z.Member.(string))
	}

	names, err := s.redis.HMGet(ctx, s.getPlayersKey(req.GameCode), emails...).Result()
	if err != nil {
		return nil, fmt.Errorf("get player names: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for i, z := range res {
		name, _ := names[i].(string)
		entries = append(entries, domain.LeaderboardEntry{
			Player: domain.Player{Name: name, Email: emails[i]},
			Score:  int(z.Score),
		})
	}

	return &domain.Leaderboard{
		GameCode: req.GameCode,
		Entries:  entries,
	}, nil
}

// RecordScore keeps the best completed score of the player for the quiz.
func (s *Service) RecordScore(ctx context.Context, e domain.EventSessionCompleted) error {
	// TODO: retry on error
	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAddGT(ctx, s.getLeaderboardKey(e.GameCode), redis.Z{
			Score:  float64(e.Score),
			Member: e.Player.Email,
		})
		p.HSet(ctx, s.getPlayersKey(e.GameCode), e.Player.Email, e.Player.Name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, e.GameCode)
}

// schedulePublishLeaderboard publishes the leaderboard at most once per interval per quiz.
// Many sessions of a popular quiz finish close together, publishing each would flood subscribers.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, code string) error {
	// Only the instance that wins the key publishes, others skip until it expires.
	ok, err := s.redis.SetNX(ctx, s.getLeaderboardTimeKey(code), s.now().UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publishLeaderboard(ctx, code)
}

func (s *Service) publishLeaderboard(ctx context.Context, code string) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{
		GameCode: code,
	})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: code=%s: %w", code, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

func (s *Service) getLeaderboardKey(code string) string {
	return fmt.Sprintf("%s:%s:leaderboard", s.prefix, code)
}

func (s *Service) getPlayersKey(code string) string {
	return fmt.Sprintf("%s:%s:players", s.prefix, code)
}

func (s *Service) getLeaderboardTimeKey(code string) string {
	return fmt.Sprintf("%s:%s:time", s.prefix, code)
}
