package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/graphilearn/engine/internal/models"
	appErr "github.com/graphilearn/engine/pkg/errors"
	"gorm.io/gorm"
)

// mutableTutorialColumns is the full-replace column set used by Replace.
var mutableTutorialColumns = []string{
	"title",
	"description",
	"content",
	"video_url",
	"image_url",
	"category_id",
	"is_published",
	"difficulty_level",
	"duration_minutes",
	"updated_at",
}

type TutorialRepository interface {
	BaseRepository[models.Tutorial]
	// ListPublished returns published tutorials with their category, newest first.
	// limit <= 0 means no limit.
	ListPublished(ctx context.Context, limit int) ([]models.Tutorial, error)
	GetPublished(ctx context.Context, id uuid.UUID, dest *models.Tutorial) error
	// ListAll returns every tutorial, drafts included, with its category, newest first.
	ListAll(ctx context.Context) ([]models.Tutorial, error)
	Replace(ctx context.Context, t *models.Tutorial) error
	SetPublished(ctx context.Context, id uuid.UUID, published bool, at time.Time) error
}

type tutorialRepository struct {
	BaseRepository[models.Tutorial]
	db *gorm.DB
}

func NewTutorialRepository(db *gorm.DB) TutorialRepository {
	return &tutorialRepository{BaseRepository: NewBaseRepository[models.Tutorial](db, "tutorial"), db: db}
}

func (r *tutorialRepository) ListPublished(ctx context.Context, limit int) ([]models.Tutorial, error) {
	out := []models.Tutorial{}
	q := r.db.WithContext(ctx).Preload("Category").Where("is_published = ?", true).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list published tutorials failed")
	}
	return out, nil
}

func (r *tutorialRepository) GetPublished(ctx context.Context, id uuid.UUID, dest *models.Tutorial) error {
	err := r.db.WithContext(ctx).Preload("Category").
		Where("id = ? AND is_published = ?", id, true).
		First(dest).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "tutorial not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get tutorial failed")
	}
	return nil
}

func (r *tutorialRepository) ListAll(ctx context.Context) ([]models.Tutorial, error) {
	out := []models.Tutorial{}
	if err := r.db.WithContext(ctx).Preload("Category").Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list tutorials failed")
	}
	return out, nil
}

func (r *tutorialRepository) Replace(ctx context.Context, t *models.Tutorial) error {
	res := r.db.WithContext(ctx).Model(&models.Tutorial{}).
		Where("id = ?", t.ID).
		Select(mutableTutorialColumns).
		Updates(t)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "update tutorial failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "tutorial not found")
	}
	return nil
}

func (r *tutorialRepository) SetPublished(ctx context.Context, id uuid.UUID, published bool, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Tutorial{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_published": published, "updated_at": at})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "set tutorial publication failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "tutorial not found")
	}
	return nil
}
