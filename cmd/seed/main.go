// Command seed populates the configured PostgreSQL database with demo
// schools, classes, packages and discount codes. It reads the same
// environment variables as the server and applies pending migrations first.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/audit"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/auth"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/config"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository/postgres"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/seed"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/service"
	"github.com/FirudinMustafa/OkulTedarik-sub000/migrations"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/database"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("okul-tedarik-seed", cfg.LogLevel)

	if cfg.MemoryStore {
		log.Error("MEMORY_STORE is set, nothing to seed")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		return err
	}

	store := postgres.NewStore(pool)
	auditLog := audit.NewLogger(log)
	catalog := service.NewCatalogService(store, auth.NewHasher(bcrypt.DefaultCost), auditLog, log)
	discounts := service.NewDiscountService(store, auditLog, log)

	_, err = seed.New(catalog, discounts, log).Run(ctx)
	return err
}
