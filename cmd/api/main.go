package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-backend/internal/auth"
	"chat-backend/internal/calls"
	"chat-backend/internal/config"
	"chat-backend/internal/conversations"
	"chat-backend/internal/history"
	"chat-backend/internal/media"
	"chat-backend/internal/presence"
	"chat-backend/internal/realtime"
	"chat-backend/pkg/logger"
	"chat-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// appDeps carries the wired services into route registration.
type appDeps struct {
	db      *sql.DB
	auth    *auth.Manager
	authMW  gin.HandlerFunc
	calls   *calls.Service
	history *history.Service
	members conversations.Membership
	gateway *realtime.Gateway
}

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	tokens, err := media.NewProvider(cfg.LiveKit)
	if err != nil {
		log.Error("media token provider init failed", "err", err)
		os.Exit(1)
	}

	members := conversations.NewPostgresDirectory(db)

	// Realtime fan-out and presence.
	hub := realtime.NewHub(log)
	groups := presence.NewGroupIndex()
	tracker := presence.NewTracker(cfg.Presence.IdleAfter, cfg.Presence.AwayAfter)
	tracker.OnChange(presence.NewNotifier(hub, groups).PresenceChanged)

	sweeper := presence.NewSweeper(tracker, cfg.Presence.SweepInterval, log)
	go sweeper.Run(rootCtx)

	// Call sessions.
	callSvc := calls.NewService(calls.NewSessionStore(), members, tokens).
		WithNotifier(realtime.NewAnnouncer(hub)).
		WithGuard(calls.NewRedisGuard(rdb, 0)).
		WithRecorder(calls.NewPostgresRecorder(db)).
		WithPresenceHooks(
			func(userID string) { tracker.CallStarted(userID) },
			func(userID string) { tracker.CallEnded(userID) },
		).
		WithLogger(log)

	gateway := realtime.NewGateway(authManager, hub, tracker, groups, members, callSvc, cfg.WS, log)

	historySvc := history.NewService(history.NewPostgresRepo(db))

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, appDeps{
		db:      db,
		auth:    authManager,
		authMW:  auth.RequireAccessToken(authManager),
		calls:   callSvc,
		history: historySvc,
		members: members,
		gateway: gateway,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Websocket connections are hijacked from the server, so these
		// timeouts only govern the plain HTTP endpoints.
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
