package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/graphilearn/engine/internal/models"
	appErr "github.com/graphilearn/engine/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfileRepository interface {
	BaseRepository[models.Profile]
	// EnsureProfile inserts {id, email, role: user} unless a row with that id exists,
	// then returns the stored row. Safe to call concurrently for the same id. Fails when
	// no auth user owns id.
	EnsureProfile(ctx context.Context, id uuid.UUID, email string) (*models.Profile, error)
	SetRole(ctx context.Context, id uuid.UUID, role models.Role) error
	GetByEmail(ctx context.Context, email string, dest *models.Profile) error
}

type profileRepository struct {
	BaseRepository[models.Profile]
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{BaseRepository: NewBaseRepository[models.Profile](db, "profile"), db: db}
}

func (r *profileRepository) EnsureProfile(ctx context.Context, id uuid.UUID, email string) (*models.Profile, error) {
	if id == uuid.Nil {
		return nil, appErr.New(appErr.CodeInvalid, "profile id is required")
	}
	row := &models.Profile{ID: id, Email: email, Role: models.RoleUser}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(row).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "provision profile failed")
	}

	var out models.Profile
	if err := r.GetByID(ctx, id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *profileRepository) SetRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	res := r.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Update("role", role)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "set profile role failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "profile not found")
	}
	return nil
}

func (r *profileRepository) GetByEmail(ctx context.Context, email string, dest *models.Profile) error {
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(dest).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "profile not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get profile by email failed")
	}
	return nil
}
