// Seeder applies the initial schema and inserts the strategy catalog.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"autopilot/internal/adapters/config"
	pgadapter "autopilot/internal/adapters/postgres"
	pgrepo "autopilot/internal/repository/postgres"
	"autopilot/internal/seeds"
	"autopilot/pkg/logger"
)

func main() {
	migrationsDir := flag.String("migrations", "migrations", "Directory with schema SQL files")
	skipSchema := flag.Bool("skip-schema", false, "Skip applying schema files")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()
	log := logger.Get()

	ctx := context.Background()

	pg, err := pgadapter.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pg.Close()

	if !*skipSchema {
		if err := applySchema(ctx, pg, *migrationsDir); err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}
	}

	repo := pgrepo.NewStrategyRepository(pg.DB())
	if err := seeds.SeedStrategies(ctx, repo); err != nil {
		log.Fatalf("Failed to seed strategies: %v", err)
	}

	log.Info("✓ Seeding complete")
}

func applySchema(ctx context.Context, pg *pgadapter.Client, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return err
	}

	log := logger.Get()
	for _, file := range files {
		sql, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		if _, err := pg.DB().ExecContext(ctx, string(sql)); err != nil {
			return err
		}
		log.Infow("Schema applied", "file", file)
	}
	return nil
}
