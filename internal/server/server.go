package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/briefly-ai/briefly/config"
	"github.com/briefly-ai/briefly/internal/brief"
	"github.com/briefly-ai/briefly/internal/memory"
	"github.com/briefly-ai/briefly/internal/store"
	"github.com/briefly-ai/briefly/internal/telemetry"
	openai_provider "github.com/briefly-ai/briefly/provider/openai"
	"github.com/briefly-ai/briefly/tools/web_fetch"
	"github.com/briefly-ai/briefly/tools/web_fetch/cache"
	"github.com/briefly-ai/briefly/tools/web_search"
)

// Run wires the whole service together and serves HTTP until the listener
// fails or the process is killed.
func Run(ctx context.Context, cfg *config.Config, migrationsDir string) error {
	logger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)

	if cfg.General.JWTSecret == "" {
		return fmt.Errorf("general.jwt_secret is required (or BRIEFLY_JWT_SECRET)")
	}
	secret := []byte(cfg.General.JWTSecret)

	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	if migrationsDir != "" {
		if err := Migrate(migrationsDir, dsn, "up", 0); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	st, err := store.New(ctx, cfg.Storage.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer st.Close()

	tele := telemetry.New(cfg.Telemetry)
	defer tele.Shutdown()

	llm := openai_provider.New(cfg.LLM, tele)

	searcher, err := web_search.NewWebSearcher(cfg.Search)
	if err != nil {
		return err
	}
	fetcher, err := web_fetch.NewWebFetcher(cfg.Fetch)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Storage.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr(),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Printf("redis unavailable at %s, fetch cache and scheduler locks disabled: %v", cfg.Storage.Redis.Addr(), err)
			rdb = nil
		}
	}

	var fetchPort brief.Fetcher
	if rdb != nil && cfg.Fetch.CacheTTL > 0 {
		fetchPort = web_fetch.Adapter{Fetcher: cache.New(fetcher, rdb, cfg.Fetch.CacheTTL), Recorder: tele}
	} else {
		fetchPort = web_fetch.Adapter{Fetcher: fetcher, Recorder: tele}
	}

	var idx *memory.Index
	if cfg.Storage.Index.Enabled {
		idx, err = memory.Open(cfg.Storage.Index.Path)
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer idx.Close()
	}

	runner := &PipelineRunner{
		Cfg:     cfg,
		LLM:     llm,
		Search:  web_search.Adapter{Searcher: searcher, Cfg: cfg.Search},
		Fetch:   fetchPort,
		History: st,
		Index:   idx,
		Sink:    tele,
	}

	sched := NewScheduler(st, rdb, runner, idx)
	go sched.Start(ctx)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			msg = fmt.Sprintf("%v", he.Message)
		}
		if c.Response().Committed {
			return
		}
		if jerr := c.JSON(code, HTTPError{Error: msg}); jerr != nil {
			logger.Printf("error response: %v", jerr)
		}
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")

	auth := &AuthHandler{Store: st, Secret: secret}
	auth.Register(api.Group("/auth"))

	api.GET("/me", func(c echo.Context) error {
		return c.JSON(http.StatusOK, MeResponse{UserID: c.Get("user_id").(string)})
	}, func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })

	briefs := &BriefsHandler{Store: st, Runner: runner, Index: idx, Logger: logger}
	briefs.Register(api, secret)

	topics := &TopicsHandler{Store: st}
	topics.Register(api, secret)

	chat := &ChatHandler{Store: st, LLM: llm, Logger: logger}
	chat.Register(api, secret)

	logger.Printf("listening on %s", cfg.General.Listen)
	if err := e.Start(cfg.General.Listen); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
