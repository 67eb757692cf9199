// Command admin runs one-off maintenance tasks against the user database.
//
//	admin migrate
//	admin ensure-admin -email root@example.com [-name Root] [-password secret]
//
// The password may also come from APP_ADMIN_PASSWORD.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"user-api/internal/core/config"
	"user-api/internal/core/database"
	"user-api/internal/core/logger"
	"user-api/internal/repo"
	"user-api/internal/service"
	"user-api/pkg/utils"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := logger.New(cfg.Log.Level, cfg.Log.JSON)
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "migrate":
		err = runMigrate(cfg, log)
	case "ensure-admin":
		err = runEnsureAdmin(ctx, cfg, log, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error("admin command failed", zap.String("cmd", os.Args[1]), zap.Error(err))
		cleanup()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin <migrate|ensure-admin> [flags]")
}

func openDB(cfg *config.Config, log *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.NewGorm(database.OptsFrom(cfg.DB), log)
	if err != nil {
		return nil, nil, err
	}
	return db, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}, nil
}

func runMigrate(cfg *config.Config, log *zap.Logger) error {
	db, closeDB, err := openDB(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()
	if err := database.Migrate(db); err != nil {
		return err
	}
	log.Info("migration done", zap.String("driver", cfg.DB.Driver))
	return nil
}

func runEnsureAdmin(ctx context.Context, cfg *config.Config, log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("ensure-admin", flag.ContinueOnError)
	email := fs.String("email", cfg.Admin.Email, "admin email")
	name := fs.String("name", cfg.Admin.Name, "display name used when the account is created")
	password := fs.String("password", cfg.Admin.Password, "password used when the account is created")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("-email is required")
	}

	db, closeDB, err := openDB(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()
	if err := database.Migrate(db); err != nil {
		return err
	}

	users := service.NewUserService(repo.NewUserRepo(db), utils.NewBcrypt(cfg.Security.BcryptCost), log)
	u, created, err := users.EnsureAdmin(ctx, *email, *name, *password)
	if err != nil {
		return err
	}
	verb := "promoted"
	if created {
		verb = "created"
	}
	fmt.Printf("%s admin %s (%s)\n", verb, u.Email, u.ID)
	return nil
}
