// Command server runs the back-office session and presence API.
//
// @title           Back Office API
// @version         1.0
// @description     Single-active-session authentication, realtime presence and administrative revocation.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dhammastream/backoffice/internal/api"
	"github.com/dhammastream/backoffice/internal/api/handler"
	"github.com/dhammastream/backoffice/internal/core/presence"
	"github.com/dhammastream/backoffice/internal/core/service"
	"github.com/dhammastream/backoffice/internal/infrastructure/config"
	mongodb "github.com/dhammastream/backoffice/internal/infrastructure/db/mongo"
	redisdb "github.com/dhammastream/backoffice/internal/infrastructure/db/redis"
	"github.com/dhammastream/backoffice/internal/infrastructure/http/handlers"
	"github.com/dhammastream/backoffice/internal/infrastructure/identity"
	"github.com/dhammastream/backoffice/internal/infrastructure/queue"
	"github.com/dhammastream/backoffice/internal/infrastructure/realtime"
	"github.com/dhammastream/backoffice/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		boot := logger.Init(logger.Options{Service: "backoffice"})
		boot.Fatal().Err(err).Msg("configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "backoffice",
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(dctx); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect")
		}
	}()

	users := mongodb.NewUserRepository(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		return err
	}

	redisClient, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer redisClient.Close()

	if cfg.Google.ClientID == "" {
		log.Warn().Msg("GOOGLE_CLIENT_ID not set, sign-in is disabled")
	}
	verifier, err := identity.NewVerifier(ctx, cfg.Google.ClientID)
	if err != nil {
		return err
	}

	exec := queue.NewSerial(0, logger.Component("presence-queue"))
	exec.Start(ctx)

	presenceSvc := presence.NewService(users, exec, logger.Component("presence"))
	hub := realtime.NewHub(realtime.Options{
		PingInterval: cfg.Realtime.PingInterval,
		PongWait:     cfg.Realtime.PongWait,
		WriteWait:    cfg.Realtime.WriteWait,
		SendBuffer:   cfg.Realtime.SendBuffer,
	}, logger.Component("hub"))
	if err := presenceSvc.Attach(hub); err != nil {
		return err
	}

	tokens := service.NewTokenIssuer(cfg.Session.JWTSecret, cfg.Session.Issuer, cfg.Session.TTL)
	sessions := service.NewSessionService(users, verifier, redisdb.NewReplayGuard(redisClient), tokens, presenceSvc, logger.Component("session"))
	admin := service.NewAdminService(users, presenceSvc, logger.Component("admin"))

	e := api.NewRouter(api.Dependencies{
		Log:            log,
		Sessions:       sessions,
		Admin:          admin,
		Presence:       presenceSvc,
		Hub:            hub,
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
		Cookie: handler.CookieConfig{
			Name:   cfg.Session.CookieName,
			Secure: cfg.IsProduction(),
			TTL:    cfg.Session.TTL,
		},
		Readiness: map[string]handlers.Pinger{
			"mongodb": mongodb.Pinger{Client: mongoClient},
			"redis":   redisdb.Pinger{Client: redisClient},
		},
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	hub.Shutdown()

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(sctx)
}
