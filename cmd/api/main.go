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

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"user-api/internal/core/auth"
	"user-api/internal/core/config"
	"user-api/internal/core/database"
	"user-api/internal/core/logger"
	"user-api/internal/core/server"
	"user-api/internal/core/telemetry"
	"user-api/internal/proverb"
	"user-api/internal/repo"
	"user-api/internal/service"
	"user-api/internal/transport/http/router"
	"user-api/internal/transport/http/validation"
	"user-api/pkg/utils"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))

	log, cleanup := newLogger(cfg)
	defer cleanup()
	defer logger.RedirectStdLog(log, zapcore.InfoLevel)()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}
	if err := validation.Setup(); err != nil {
		log.Fatal("validator setup", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracer(ctx, cfg.App.Name, cfg.App.Env, cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
	if err != nil {
		log.Fatal("tracing init", zap.Error(err))
	}

	db, err := database.NewGorm(database.OptsFrom(cfg.DB), log)
	if err != nil {
		log.Fatal("db open", zap.Error(err))
	}
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))
	if cfg.DB.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatal("automigrate failed", zap.Error(err))
		}
		log.Info("automigrate done")
	}

	hasher := utils.NewBcrypt(cfg.Security.BcryptCost)
	jwter := &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    cfg.AccessTokenTTL(),
	}
	users := service.NewUserService(repo.NewUserRepo(db), hasher, log)
	authSvc := service.NewAuthService(users, hasher, jwter, log)

	if cfg.Admin.Email != "" {
		u, created, err := users.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Name, cfg.Admin.Password)
		if err != nil {
			log.Fatal("admin bootstrap failed", zap.Error(err))
		}
		log.Info("admin account ready", zap.String("user_id", u.ID), zap.Bool("created", created))
	}

	deps := router.Deps{
		Log:   log,
		Cfg:   cfg,
		JWT:   jwter,
		Users: users,
		Auth:  authSvc,
		Proverbs: proverb.New(proverb.Options{
			URL:                cfg.Proverb.URL,
			Timeout:            time.Duration(cfg.Proverb.TimeoutSec) * time.Second,
			InsecureSkipVerify: cfg.Proverb.InsecureSkipVerify,
		}),
	}
	if cfg.Proverb.InsecureSkipVerify {
		log.Warn("proverb upstream TLS verification is disabled")
	}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unreachable, auth rate limit stays in memory", zap.Error(err))
		} else {
			deps.Redis = rdb
			log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
		}
	}

	r := router.NewAPIEngine(deps)

	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)

	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("user api starting",
		zap.String("addr", addr),
		zap.String("env", cfg.App.Env),
		zap.String("health", baseURL+"/health"),
	)

	go func() {
		if err := server.StartHTTP(srv, log); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("user api start failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("user api stopped gracefully")
}

func newLogger(cfg *config.Config) (*zap.Logger, func()) {
	if cfg.Log.File == "" {
		return logger.New(cfg.Log.Level, cfg.Log.JSON)
	}
	return logger.NewWithRotate(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File,
		cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays, cfg.Log.Compress)
}
