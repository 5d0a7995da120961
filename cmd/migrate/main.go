package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/orgstack/org-management-service/internal/config"
	"github.com/orgstack/org-management-service/pkg/logger"
)

func main() {
	var (
		source   = flag.String("source", "file://migrations", "Migration source URL")
		command  = flag.String("command", "up", "Migration command (up, down, force)")
		forceVer = flag.Int("force-version", 1, "Version for the force command")
	)
	flag.Parse()

	if err := logger.Init(&logger.Config{Level: "info", ServiceName: "org-management-migrate"}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Get()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	pgxCfg, err := pgx.ParseConfig(cfg.Database.DSN())
	if err != nil {
		log.Fatal("failed to parse DSN", zap.Error(err))
	}
	db := stdlib.OpenDB(*pgxCfg)
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatal("failed to create migration driver", zap.Error(err))
	}

	m, err := migrate.NewWithDatabaseInstance(*source, "postgres", driver)
	if err != nil {
		log.Fatal("failed to create migrator", zap.Error(err))
	}

	switch *command {
	case "up":
		log.Info("applying migrations")
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatal("failed to apply migrations", zap.Error(err))
		}
		log.Info("migrations applied")
	case "down":
		log.Info("reverting migrations")
		if err := m.Down(); err != nil && err != migrate.ErrNoChange {
			log.Fatal("failed to revert migrations", zap.Error(err))
		}
		log.Info("migrations reverted")
	case "force":
		log.Info("forcing migration version", zap.Int("version", *forceVer))
		if err := m.Force(*forceVer); err != nil {
			log.Fatal("failed to force migration version", zap.Error(err))
		}
		log.Info("migration version forced")
	default:
		log.Fatal("unknown command", zap.String("command", *command))
	}
}
