package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/graphilearn/engine/internal/models"
	"github.com/graphilearn/engine/internal/repository"
	"github.com/graphilearn/engine/pkg/config"
	"github.com/graphilearn/engine/pkg/database"
	"github.com/graphilearn/engine/pkg/logger"
)

func main() {
	seed := flag.Bool("seed", false, "insert the default categories")
	promote := flag.String("promote", "", "grant the admin role to the profile with this email")
	flag.Parse()

	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL, log, database.Options{Verbose: !cfg.IsProduction()})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := runMigrations(db); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	if *seed {
		if err := seedCategories(ctx, db); err != nil {
			log.Fatal("seed failed", zap.Error(err))
		}
		log.Info("default categories seeded", zap.Int("count", len(defaultCategories)))
	}

	// Roles are granted out of band; the application never changes them.
	if *promote != "" {
		profiles := repository.NewProfileRepository(db)
		var p models.Profile
		if err := profiles.GetByEmail(ctx, *promote, &p); err != nil {
			log.Fatal("profile lookup failed", zap.String("email", *promote), zap.Error(err))
		}
		if err := profiles.SetRole(ctx, p.ID, models.RoleAdmin); err != nil {
			log.Fatal("promote failed", zap.Error(err))
		}
		log.Info("profile promoted", zap.String("email", *promote))
	}

	fmt.Fprintln(os.Stdout, "migrations completed")
}
