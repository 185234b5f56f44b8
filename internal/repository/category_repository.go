package repository

import (
	"context"

	"github.com/graphilearn/engine/internal/models"
	appErr "github.com/graphilearn/engine/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CategoryRepository interface {
	BaseRepository[models.Category]
	ListByName(ctx context.Context) ([]models.Category, error)
	// Seed inserts the given categories, skipping names that already exist.
	Seed(ctx context.Context, categories []models.Category) error
}

type categoryRepository struct {
	BaseRepository[models.Category]
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{BaseRepository: NewBaseRepository[models.Category](db, "category"), db: db}
}

func (r *categoryRepository) ListByName(ctx context.Context) ([]models.Category, error) {
	out := []models.Category{}
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list categories failed")
	}
	return out, nil
}

func (r *categoryRepository) Seed(ctx context.Context, categories []models.Category) error {
	if len(categories) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&categories).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "seed categories failed")
	}
	return nil
}
