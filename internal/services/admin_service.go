package services

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/graphilearn/engine/internal/models"
	"github.com/graphilearn/engine/internal/notify"
	"github.com/graphilearn/engine/internal/repository"
	"github.com/graphilearn/engine/internal/session"
	"github.com/graphilearn/engine/internal/storage"
	appErr "github.com/graphilearn/engine/pkg/errors"
	"github.com/graphilearn/engine/pkg/logger"
	"go.uber.org/zap"
)

const (
	defaultDurationMinutes = 30
	// MaxImageBytes bounds cover image uploads.
	MaxImageBytes = 5 << 20
	// DeletePrompt is returned when a delete arrives without confirmation.
	DeletePrompt = "Êtes-vous sûr de vouloir supprimer ce tutoriel ?"
)

// TutorialInput is the editable part of a tutorial. Empty difficulty and zero duration
// fall back to Débutant and 30 minutes.
type TutorialInput struct {
	Title           string `json:"title" validate:"required,max=200"`
	Description     string `json:"description"`
	Content         string `json:"content"`
	VideoURL        string `json:"video_url" validate:"omitempty,uri"`
	ImageURL        string `json:"image_url" validate:"omitempty,uri"`
	CategoryID      string `json:"category_id" validate:"required,uuid"`
	DifficultyLevel string `json:"difficulty_level" validate:"omitempty,oneof=Débutant Intermédiaire Avancé"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0,lte=10000"`
	IsPublished     bool   `json:"is_published"`
}

type AdminStats struct {
	Total     int `json:"total"`
	Published int `json:"published"`
	Draft     int `json:"draft"`
}

// AdminSnapshot is the editor's full view, re-read after every mutation.
type AdminSnapshot struct {
	Tutorials  []models.Tutorial `json:"tutorials"`
	Categories []models.Category `json:"categories"`
	Stats      AdminStats        `json:"stats"`
}

type AdminResult struct {
	Tutorial *models.Tutorial `json:"tutorial,omitempty"`
	Snapshot *AdminSnapshot   `json:"snapshot"`
}

type AdminService interface {
	Snapshot(ctx context.Context, v session.Viewer) (*AdminSnapshot, error)
	Create(ctx context.Context, v session.Viewer, in TutorialInput) (*AdminResult, error)
	Update(ctx context.Context, v session.Viewer, id uuid.UUID, in TutorialInput) (*AdminResult, error)
	// Delete is irreversible and refused unless confirmed is set.
	Delete(ctx context.Context, v session.Viewer, id uuid.UUID, confirmed bool) (*AdminResult, error)
	TogglePublish(ctx context.Context, v session.Viewer, id uuid.UUID) (*AdminResult, error)
	UploadImage(ctx context.Context, v session.Viewer, data []byte) (*storage.Object, error)
}

type adminService struct {
	tutorials  repository.TutorialRepository
	categories repository.CategoryRepository
	store      storage.ObjectStore
	notifier   notify.Notifier
	validate   *validator.Validate
	now        func() time.Time
}

func NewAdminService(tutorials repository.TutorialRepository, categories repository.CategoryRepository, store storage.ObjectStore, notifier notify.Notifier) AdminService {
	return &adminService{
		tutorials:  tutorials,
		categories: categories,
		store:      store,
		notifier:   notifier,
		validate:   validator.New(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

var _ AdminService = (*adminService)(nil)

func (s *adminService) Snapshot(ctx context.Context, v session.Viewer) (*AdminSnapshot, error) {
	if err := v.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.snapshot(ctx), nil
}

func (s *adminService) Create(ctx context.Context, v session.Viewer, in TutorialInput) (*AdminResult, error) {
	if err := v.RequireAdmin(); err != nil {
		return nil, err
	}
	sink := notify.For(s.notifier, v.Audience)

	t := &models.Tutorial{}
	if err := s.apply(ctx, t, in); err != nil {
		sink.Notify(ctx, notify.Failure("Erreur", "Impossible de créer le tutoriel"))
		return nil, err
	}
	if err := s.tutorials.Create(ctx, t); err != nil {
		logger.L().Error("create tutorial failed", zap.String("title", t.Title), zap.Error(err))
		sink.Notify(ctx, notify.Failure("Erreur", "Impossible de créer le tutoriel"))
		return nil, err
	}

	logger.L().Info("tutorial created", zap.String("tutorial_id", t.ID.String()), zap.String("admin_id", v.UserID.String()))
	sink.Notify(ctx, notify.Info("Succès", "Tutoriel créé avec succès"))
	return s.result(ctx, t.ID), nil
}

func (s *adminService) Update(ctx context.Context, v session.Viewer, id uuid.UUID, in TutorialInput) (*AdminResult, error) {
	if err := v.RequireAdmin(); err != nil {
		return nil, err
	}
	sink := notify.For(s.notifier, v.Audience)

	t := &models.Tutorial{ID: id}
	if err := s.apply(ctx, t, in); err != nil {
		sink.Notify(ctx, notify.Failure("Erreur", "Impossible de modifier le tutoriel"))
		return nil, err
	}
	t.UpdatedAt = s.now()
	if err := s.tutorials.Replace(ctx, t); err != nil {
		logger.L().Error("update tutorial failed", zap.String("tutorial_id", id.String()), zap.Error(err))
		sink.Notify(ctx, notify.Failure("Erreur", "Impossible de modifier le tutoriel"))
		return nil, err
	}

	logger.L().Info("tutorial updated", zap.String("tutorial_id", id.String()), zap.String("admin_id", v.UserID.String()))
	sink.Notify(ctx, notify.Info("Succès", "Tutoriel modifié avec succès"))
	return s.result(ctx, id), nil
}

func (s *adminService) Delete(ctx context.Context, v session.Viewer, id uuid.UUID, confirmed bool) (*AdminResult, error) {
	if err := v.RequireAdmin(); err != nil {
		return nil, err
	}
	if !confirmed {
		return nil, appErr.New(appErr.CodeConfirmationRequired, DeletePrompt)
	}
	sink := notify.For(s.notifier, v.Audience)

	if err := s.tutorials.Delete(ctx, id); err != nil {
		logger.L().Error("delete tutorial failed", zap.String("tutorial_id", id.String()), zap.Error(err))
		sink.Notify(ctx, notify.Failure("Erreur", "Impossible de supprimer le tutoriel"))
		return nil, err
	}

	logger.L().Info("tutorial deleted", zap.String("tutorial_id", id.String()), zap.String("admin_id", v.UserID.String()))
	sink.Notify(ctx, notify.Info("Succès", "Tutoriel supprimé avec succès"))
	return &AdminResult{Snapshot: s.snapshot(ctx)}, nil
}

func (s *adminService) TogglePublish(ctx context.Context, v session.Viewer, id uuid.UUID) (*AdminResult, error) {
	if err := v.RequireAdmin(); err != nil {
		return nil, err
	}
	sink := notify.For(s.notifier, v.Audience)

	var t models.Tutorial
	err := s.tutorials.GetByID(ctx, id, &t)
	if err == nil {
		err = s.tutorials.SetPublished(ctx, id, !t.IsPublished, s.now())
	}
	if err != nil {
		logger.L().Error("toggle publication failed", zap.String("tutorial_id", id.String()), zap.Error(err))
		sink.Notify(ctx, notify.Failure("Erreur", "Impossible de modifier le statut de publication"))
		return nil, err
	}

	state := "publié"
	if t.IsPublished {
		state = "dépublié"
	}
	logger.L().Info("tutorial publication toggled", zap.String("tutorial_id", id.String()), zap.Bool("published", !t.IsPublished))
	sink.Notify(ctx, notify.Info("Succès", "Tutoriel "+state+" avec succès"))
	return s.result(ctx, id), nil
}

func (s *adminService) UploadImage(ctx context.Context, v session.Viewer, data []byte) (*storage.Object, error) {
	if err := v.RequireAdmin(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, appErr.New(appErr.CodeInvalid, "empty upload")
	}
	if len(data) > MaxImageBytes {
		return nil, appErr.New(appErr.CodeInvalid, "image exceeds 5 MiB")
	}
	contentType := http.DetectContentType(data)
	ext, ok := storage.ImageExtension(contentType)
	if !ok {
		return nil, appErr.New(appErr.CodeInvalid, "unsupported image type").WithMeta("content_type", contentType)
	}

	obj, err := s.store.Put(ctx, storage.ContentKey("covers", data, ext), contentType, bytes.NewReader(data))
	if err != nil {
		logger.L().Error("store cover image failed", zap.Error(err))
		notify.For(s.notifier, v.Audience).Notify(ctx, notify.Failure("Erreur", "Impossible d'envoyer l'image"))
		return nil, appErr.Wrap(err, appErr.CodeUnavailable, "store image failed")
	}
	logger.L().Info("cover image stored", zap.String("key", obj.Key), zap.Int64("size", obj.Size))
	return obj, nil
}

// apply validates in and copies it onto t with defaults.
func (s *adminService) apply(ctx context.Context, t *models.Tutorial, in TutorialInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.validate.Struct(in); err != nil {
		return appErr.Wrap(err, appErr.CodeInvalid, "invalid tutorial")
	}
	categoryID := uuid.MustParse(in.CategoryID)
	var c models.Category
	if err := s.categories.GetByID(ctx, categoryID, &c); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return appErr.New(appErr.CodeInvalid, "unknown category")
		}
		return err
	}

	level := models.Difficulty(in.DifficultyLevel)
	if level == "" {
		level = models.DifficultyBeginner
	}
	duration := in.DurationMinutes
	if duration == 0 {
		duration = defaultDurationMinutes
	}

	t.Title = in.Title
	t.Description = in.Description
	t.Content = in.Content
	t.VideoURL = optional(in.VideoURL)
	t.ImageURL = optional(in.ImageURL)
	t.CategoryID = categoryID
	t.DifficultyLevel = level
	t.DurationMinutes = duration
	t.IsPublished = in.IsPublished
	return nil
}

func (s *adminService) result(ctx context.Context, id uuid.UUID) *AdminResult {
	snap := s.snapshot(ctx)
	res := &AdminResult{Snapshot: snap}
	for i := range snap.Tutorials {
		if snap.Tutorials[i].ID == id {
			res.Tutorial = &snap.Tutorials[i]
			break
		}
	}
	return res
}

func (s *adminService) snapshot(ctx context.Context) *AdminSnapshot {
	snap := &AdminSnapshot{Tutorials: []models.Tutorial{}, Categories: []models.Category{}}
	if list, err := s.tutorials.ListAll(ctx); err != nil {
		logger.L().Error("list tutorials failed", zap.Error(err))
	} else {
		snap.Tutorials = list
	}
	if list, err := s.categories.ListByName(ctx); err != nil {
		logger.L().Error("list categories failed", zap.Error(err))
	} else {
		snap.Categories = list
	}
	for _, t := range snap.Tutorials {
		snap.Stats.Total++
		if t.IsPublished {
			snap.Stats.Published++
		} else {
			snap.Stats.Draft++
		}
	}
	return snap
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
