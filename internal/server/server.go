package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wildplay/arcade/internal/api"
	"github.com/wildplay/arcade/internal/event"
	"github.com/wildplay/arcade/internal/leaderboard"
	"github.com/wildplay/arcade/internal/quote"
	"github.com/wildplay/arcade/internal/store"
	"github.com/wildplay/arcade/internal/store/pgstore"
	"github.com/wildplay/arcade/internal/store/redisstore"
	"github.com/wildplay/arcade/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Store struct {
		// Driver selects the score store backend: "redis" or "postgres".
		Driver string
	}

	Redis struct {
		Store struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		Store struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}

	Quote struct {
		URL     string
		APIKey  string
		Model   string
		Timeout time.Duration
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			store  redis.UniversalClient
			pubsub redis.UniversalClient
		}

		postgres *pgxpool.Pool
	}

	service struct {
		store       store.Store
		leaderboard *leaderboard.Service
		quote       *quote.Service
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	connect := func(addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	switch s.c.Store.Driver {
	case "redis":
		r, err := connect(s.c.Redis.Store.Addrs, s.c.Redis.Store.Pass)
		if err != nil {
			return fmt.Errorf("redis: store: %w", err)
		}
		s.infra.redis.store = r

	case "postgres":
		db, err := s.connectPostgres()
		if err != nil {
			return fmt.Errorf("postgres: store: %w", err)
		}
		s.infra.postgres = db

	default:
		return fmt.Errorf("unknown store driver: %q", s.c.Store.Driver)
	}

	// Pub/sub notifications are optional; skip when unconfigured.
	if len(s.c.Redis.Pubsub.Addrs) > 0 {
		r, err := connect(s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
		if err != nil {
			return fmt.Errorf("redis: pubsub: %w", err)
		}
		s.infra.redis.pubsub = r
	}

	return nil
}

func (s *Server) connectPostgres() (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p := s.c.Postgres.Store
	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", p.User, p.Pass, p.Addr, p.Name))
	if err != nil {
		return nil, err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

func (s *Server) initService() {
	if s.infra.postgres != nil {
		s.service.store = pgstore.New(pgstore.Config{
			DB: s.infra.postgres,
		})
	} else {
		s.service.store = redisstore.New(redisstore.Config{
			Redis:  s.infra.redis.store,
			Prefix: s.c.Redis.Store.Prefix,
		})
	}

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Store:    s.service.store,
	})

	s.service.quote = quote.NewService(quote.Config{
		URL:     s.c.Quote.URL,
		APIKey:  s.c.Quote.APIKey,
		Model:   s.c.Quote.Model,
		Timeout: s.c.Quote.Timeout,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	e.GET("/healthz", s.healthz)

	cfg := api.Config{
		Engine:      e,
		EventBus:    s.eb,
		Leaderboard: s.service.leaderboard,
		Quote:       s.service.quote,
	}
	if s.infra.redis.pubsub != nil {
		cfg.Redis = s.infra.redis.pubsub
		cfg.PubsubPrefix = s.c.Redis.Pubsub.Prefix
	}
	api.New(cfg)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.infra.redis.store != nil {
		if err := s.infra.redis.store.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
			return
		}
	}
	if s.infra.postgres != nil {
		if err := s.infra.postgres.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start() {
	slog.Info(fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server: serve failed", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	if s.infra.redis.store != nil {
		_ = s.infra.redis.store.Close()
	}
	if s.infra.redis.pubsub != nil {
		_ = s.infra.redis.pubsub.Close()
	}
	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
