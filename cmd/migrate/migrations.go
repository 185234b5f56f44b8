package main

import (
	"context"

	"gorm.io/gorm"

	"github.com/graphilearn/engine/internal/models"
	"github.com/graphilearn/engine/internal/repository"
)

// defaultCategories are inserted by -seed; existing names are left untouched.
var defaultCategories = []models.Category{
	{Name: "Algèbre", Description: "Équations, systèmes et polynômes", Color: "#6366f1"},
	{Name: "Analyse", Description: "Fonctions, limites et dérivées", Color: "#0ea5e9"},
	{Name: "Géométrie", Description: "Figures, vecteurs et transformations", Color: "#10b981"},
	{Name: "Probabilités", Description: "Dénombrement et lois usuelles", Color: "#f59e0b"},
	{Name: "Statistiques", Description: "Séries, graphiques et indicateurs", Color: "#ef4444"},
}

// runMigrations executes all database migrations
func runMigrations(db *gorm.DB) error {
	if err := enableUUIDExtension(db); err != nil {
		return err
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		return err
	}
	return runCustomMigrations(db)
}

// runCustomMigrations handles schema changes AutoMigrate can't handle
func runCustomMigrations(db *gorm.DB) error {
	migrations := []func(*gorm.DB) error{
		addCatalogIndexes,
	}

	for _, migration := range migrations {
		if err := migration(db); err != nil {
			return err
		}
	}

	return nil
}

func seedCategories(ctx context.Context, db *gorm.DB) error {
	return repository.NewCategoryRepository(db).Seed(ctx, defaultCategories)
}

func enableUUIDExtension(db *gorm.DB) error {
	return db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error
}

// addCatalogIndexes backs the newest-first published listing.
func addCatalogIndexes(db *gorm.DB) error {
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_tutorials_published_created
		ON tutorials(created_at DESC)
		WHERE is_published
	`).Error
}
