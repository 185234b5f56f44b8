package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/graphilearn/engine/internal/models"
	appErr "github.com/graphilearn/engine/pkg/errors"
	"gorm.io/gorm"
)

type AuthUserRepository interface {
	BaseRepository[models.AuthUser]
	GetByEmail(ctx context.Context, email string, dest *models.AuthUser) error
	// Confirm marks the identity owning token as confirmed and clears the token.
	Confirm(ctx context.Context, token string, at time.Time) (*models.AuthUser, error)
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	// BumpTokenVersion invalidates every token issued for the identity so far.
	BumpTokenVersion(ctx context.Context, id uuid.UUID) error
	// DeleteCascade removes the identity together with its profile and progress rows.
	DeleteCascade(ctx context.Context, id uuid.UUID) error
}

type authUserRepository struct {
	BaseRepository[models.AuthUser]
	db *gorm.DB
}

func NewAuthUserRepository(db *gorm.DB) AuthUserRepository {
	return &authUserRepository{BaseRepository: NewBaseRepository[models.AuthUser](db, "user"), db: db}
}

func (r *authUserRepository) GetByEmail(ctx context.Context, email string, dest *models.AuthUser) error {
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(dest).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "user not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get user by email failed")
	}
	return nil
}

func (r *authUserRepository) Confirm(ctx context.Context, token string, at time.Time) (*models.AuthUser, error) {
	var u models.AuthUser
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("confirmation_token = ?", token).First(&u).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return appErr.New(appErr.CodeNotFound, "confirmation token not found")
			}
			return appErr.Wrap(err, appErr.CodeInternal, "lookup confirmation token failed")
		}
		if err := tx.Model(&models.AuthUser{}).Where("id = ?", u.ID).
			Updates(map[string]interface{}{"confirmed_at": at, "confirmation_token": nil, "updated_at": at}).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "confirm user failed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.ConfirmedAt = &at
	u.ConfirmationToken = nil
	return &u, nil
}

func (r *authUserRepository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	res := r.db.WithContext(ctx).Model(&models.AuthUser{}).Where("id = ?", id).
		Updates(map[string]interface{}{"password_hash": hash, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "update password failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "user not found")
	}
	return nil
}

func (r *authUserRepository) BumpTokenVersion(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&models.AuthUser{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"token_version": gorm.Expr("token_version + 1"),
			"updated_at":    time.Now().UTC(),
		}).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "revoke tokens failed")
	}
	return nil
}

func (r *authUserRepository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.UserProgress{}).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "delete user progress failed")
		}
		if err := tx.Where("id = ?", id).Delete(&models.Profile{}).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "delete profile failed")
		}
		res := tx.Where("id = ?", id).Delete(&models.AuthUser{})
		if res.Error != nil {
			return appErr.Wrap(res.Error, appErr.CodeInternal, "delete user failed")
		}
		if res.RowsAffected == 0 {
			return appErr.New(appErr.CodeNotFound, "user not found")
		}
		return nil
	})
}
