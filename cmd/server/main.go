package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/pong-matchmaking/internal/arena"
	"github.com/DoyleJ11/pong-matchmaking/internal/auth"
	"github.com/DoyleJ11/pong-matchmaking/internal/bus"
	"github.com/DoyleJ11/pong-matchmaking/internal/config"
	"github.com/DoyleJ11/pong-matchmaking/internal/httpapi"
	"github.com/DoyleJ11/pong-matchmaking/internal/matchmaking"
	"github.com/DoyleJ11/pong-matchmaking/internal/session"
	"github.com/DoyleJ11/pong-matchmaking/internal/store"
	"github.com/DoyleJ11/pong-matchmaking/internal/ws"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zc := zap.NewProductionConfig()
	if cfg.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}

func openBrackets(cfg config.Config, logger *zap.Logger) (store.Brackets, error) {
	if cfg.BracketStore == "memory" {
		logger.Warn("bracket store is in-memory; results are lost on restart")
		return store.NewMemory(), nil
	}
	return store.OpenPostgres(cfg.DatabaseURL, logger.Named("store"))
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	brackets, err := openBrackets(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := brackets.Close(); err != nil {
			logger.Warn("closing bracket store", zap.Error(err))
		}
	}()

	b := bus.NewMemory(logger.Named("bus"))
	verifier := auth.NewJWTVerifier(cfg.JWTSecret)

	registry := session.NewRegistry(context.Background(), session.Deps{
		Bus:         b,
		Engine:      arena.NewPong(cfg.TickRate, cfg.ScoreLimit, logger.Named("arena")),
		Winners:     brackets,
		WaitTimeout: cfg.RoomWaitTimeout,
		Logger:      logger.Named("session"),
	})

	handler := httpapi.SetupRoutes(httpapi.Deps{
		Bus:        b,
		Gate:       auth.NewGate(b, verifier, logger.Named("auth")),
		Verifier:   verifier,
		Random:     matchmaking.NewRandom(logger),
		Tournament: matchmaking.NewTournament(brackets, registry, logger),
		Registry:   registry,
		WS:         ws.Options{AuthTimeout: cfg.AuthTimeout},
		Logger:     logger.Named("http"),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		// Hijacked websockets are not tracked by Shutdown; the rooms close them.
		registry.Shutdown(shutdownCtx)
		return err
	})
	return g.Wait()
}
