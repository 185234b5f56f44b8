package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/graphilearn/engine/internal/models"
	appErr "github.com/graphilearn/engine/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository interface {
	// GetByPair returns the progress row for (userID, tutorialID), or nil when none exists.
	GetByPair(ctx context.Context, userID, tutorialID uuid.UUID) (*models.UserProgress, error)
	// Upsert writes row keyed by (user_id, tutorial_id). started_at and created_at are only
	// written on insert; completed_at is kept when the stored row was already completed.
	Upsert(ctx context.Context, row *models.UserProgress) (*models.UserProgress, error)
	// Complete marks the pair completed at `at`, creating the row when needed.
	// transitioned is true only for the one call that flipped the row from not
	// completed to completed; concurrent and repeated calls see false.
	Complete(ctx context.Context, userID, tutorialID uuid.UUID, at time.Time) (row *models.UserProgress, transitioned bool, err error)
	// ListByUser returns the user's rows with the tutorial embedded, latest update first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserProgress, error)
}

type progressRepository struct {
	db *gorm.DB
}

func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) GetByPair(ctx context.Context, userID, tutorialID uuid.UUID) (*models.UserProgress, error) {
	if userID == uuid.Nil || tutorialID == uuid.Nil {
		return nil, nil
	}
	var row models.UserProgress
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND tutorial_id = ?", userID, tutorialID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "get progress failed")
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *progressRepository) Upsert(ctx context.Context, row *models.UserProgress) (*models.UserProgress, error) {
	if row == nil || row.UserID == uuid.Nil || row.TutorialID == uuid.Nil {
		return nil, appErr.New(appErr.CodeInvalid, "progress requires user and tutorial")
	}

	now := time.Now().UTC()
	if row.StartedAt.IsZero() {
		row.StartedAt = now
	}
	row.CreatedAt = now
	row.UpdatedAt = now

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "tutorial_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"completed":           gorm.Expr("excluded.completed"),
				"progress_percentage": gorm.Expr("excluded.progress_percentage"),
				"completed_at":        gorm.Expr("CASE WHEN excluded.completed AND user_progress.completed THEN user_progress.completed_at ELSE excluded.completed_at END"),
				"updated_at":          gorm.Expr("excluded.updated_at"),
			}),
		}).
		Create(row).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "upsert progress failed")
	}

	stored, err := r.GetByPair(ctx, row.UserID, row.TutorialID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, appErr.New(appErr.CodeInternal, "progress row missing after upsert")
	}
	return stored, nil
}

func (r *progressRepository) Complete(ctx context.Context, userID, tutorialID uuid.UUID, at time.Time) (*models.UserProgress, bool, error) {
	if userID == uuid.Nil || tutorialID == uuid.Nil {
		return nil, false, appErr.New(appErr.CodeInvalid, "progress requires user and tutorial")
	}
	db := r.db.WithContext(ctx)
	now := time.Now().UTC()

	fresh := &models.UserProgress{UserID: userID, TutorialID: tutorialID, StartedAt: now, CreatedAt: now, UpdatedAt: now}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "tutorial_id"}},
		DoNothing: true,
	}).Create(fresh).Error; err != nil {
		return nil, false, appErr.Wrap(err, appErr.CodeInternal, "complete progress failed")
	}

	res := db.Model(&models.UserProgress{}).
		Where("user_id = ? AND tutorial_id = ? AND completed = ?", userID, tutorialID, false).
		Updates(map[string]interface{}{
			"completed":           true,
			"progress_percentage": 100,
			"completed_at":        at,
			"updated_at":          now,
		})
	if res.Error != nil {
		return nil, false, appErr.Wrap(res.Error, appErr.CodeInternal, "complete progress failed")
	}

	stored, err := r.GetByPair(ctx, userID, tutorialID)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, appErr.New(appErr.CodeInternal, "progress row missing after completion")
	}
	return stored, res.RowsAffected == 1, nil
}

func (r *progressRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserProgress, error) {
	out := []models.UserProgress{}
	if err := r.db.WithContext(ctx).
		Preload("Tutorial").
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list progress failed")
	}
	return out, nil
}
