package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/quizzer/internal/api"
	"github.com/victornm/quizzer/internal/catalog"
	"github.com/victornm/quizzer/internal/codec"
	"github.com/victornm/quizzer/internal/event"
	"github.com/victornm/quizzer/internal/game"
	"github.com/victornm/quizzer/internal/leaderboard"
	"github.com/victornm/quizzer/internal/score"
	"github.com/victornm/quizzer/internal/store"
	"github.com/victornm/quizzer/internal/telemetry"
)

const (
	CatalogSourceFS       = "fs"
	CatalogSourcePostgres = "postgres"

	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type RedisConfig struct {
	Addrs  []string
	Pass   string
	Prefix string
}

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Redis struct {
		Session     RedisConfig
		Leaderboard RedisConfig
		Pubsub      RedisConfig
	}

	Postgres struct {
		Catalog struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}

	Catalog struct {
		// Source is fs or postgres.
		Source string
		Dir    string
	}

	Auth struct {
		Secret string
	}

	Codec struct {
		Secret string
	}

	Game struct {
		RoundSeconds      int
		SessionTTLSeconds int
		// Scoring is client or server, see score.New.
		Scoring   string
		KeyPrefix string
		// Store is redis or memory.
		Store string
	}

	CORS struct {
		AllowedOrigins []string
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			session     redis.UniversalClient
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		postgres struct {
			catalog *pgxpool.Pool
		}
	}

	service struct {
		catalog     *catalog.Catalog
		game        *game.Service
		leaderboard *leaderboard.Service
	}

	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(name string, rc RedisConfig) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    rc.Addrs,
			Password: rc.Pass,
		})

		if err := telemetry.MonitorRedis(r, name); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	if s.c.Game.Store != StoreMemory {
		s.infra.redis.session, err = connect("session", s.c.Redis.Session)
		if err != nil {
			return fmt.Errorf("session: %w", err)
		}
	}

	s.infra.redis.leaderboard, err = connect("leaderboard", s.c.Redis.Leaderboard)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.pubsub, err = connect("pubsub", s.c.Redis.Pubsub)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() (err error) {
	if s.c.Catalog.Source != CatalogSourcePostgres {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pc := s.c.Postgres.Catalog
	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", pc.User, pc.Pass, pc.Addr, pc.Name))
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return fmt.Errorf("catalog: %w", err)
	}

	s.infra.postgres.catalog = db
	return nil
}

func (s *Server) initService() (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var src catalog.Source
	switch s.c.Catalog.Source {
	case CatalogSourcePostgres:
		src = catalog.NewPostgresSource(s.infra.postgres.catalog)
	case CatalogSourceFS, "":
		src = catalog.NewFSSource(os.DirFS(s.c.Catalog.Dir))
	default:
		return fmt.Errorf("unknown catalog source %q", s.c.Catalog.Source)
	}

	s.service.catalog, err = catalog.New(ctx, catalog.Config{Source: src})
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	cd, err := codec.New(codec.Config{Secret: s.c.Codec.Secret})
	if err != nil {
		return fmt.Errorf("codec: %w", err)
	}

	var st store.Store
	if s.c.Game.Store == StoreMemory {
		st = store.NewMemory(time.Now)
	} else {
		st = store.NewRedis(s.infra.redis.session)
	}

	s.service.game = game.NewService(game.Config{
		Catalog:       s.service.catalog,
		Store:         st,
		Codec:         cd,
		Policy:        score.New(s.c.Game.Scoring, time.Now),
		EventBus:      s.eb,
		RoundDuration: time.Duration(s.c.Game.RoundSeconds) * time.Second,
		SessionTTL:    time.Duration(s.c.Game.SessionTTLSeconds) * time.Second,
		KeyPrefix:     s.c.Game.KeyPrefix,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
	})

	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	e.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery(), telemetry.HTTPLogger())

	api.New(api.Config{
		Router:        e,
		EventBus:      s.eb,
		Catalog:       s.service.catalog,
		Game:          s.service.game,
		Leaderboard:   s.service.leaderboard,
		Authenticator: api.NewAuthenticator(s.c.Auth.Secret),
		Redis:         s.infra.redis.pubsub,
		PubsubPrefix:  s.c.Redis.Pubsub.Prefix,
	})

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           corsHandler(s.c.CORS.AllowedOrigins)(e),
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	})
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	for _, r := range []redis.UniversalClient{s.infra.redis.session, s.infra.redis.leaderboard, s.infra.redis.pubsub} {
		if r != nil {
			_ = r.Close()
		}
	}
	if s.infra.postgres.catalog != nil {
		s.infra.postgres.catalog.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
