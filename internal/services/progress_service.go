package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/graphilearn/engine/internal/models"
	"github.com/graphilearn/engine/internal/notify"
	"github.com/graphilearn/engine/internal/repository"
	"github.com/graphilearn/engine/internal/session"
	"github.com/graphilearn/engine/pkg/logger"
	"go.uber.org/zap"
)

type ProgressService interface {
	// Get returns the viewer's row for the tutorial, or nil when none exists.
	Get(ctx context.Context, v session.Viewer, tutorialID uuid.UUID) (*models.UserProgress, error)
	// Set records progress. percentage is clamped to [0,100]; completed forces 100.
	Set(ctx context.Context, v session.Viewer, tutorialID uuid.UUID, percentage int, completed bool) (*models.UserProgress, error)
	MarkCompleted(ctx context.Context, v session.Viewer, tutorialID uuid.UUID) (*models.UserProgress, error)
}

type progressService struct {
	progress  repository.ProgressRepository
	tutorials repository.TutorialRepository
	notifier  notify.Notifier
	now       func() time.Time
}

func NewProgressService(progress repository.ProgressRepository, tutorials repository.TutorialRepository, notifier notify.Notifier) ProgressService {
	return &progressService{
		progress:  progress,
		tutorials: tutorials,
		notifier:  notifier,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

var _ ProgressService = (*progressService)(nil)

func (s *progressService) Get(ctx context.Context, v session.Viewer, tutorialID uuid.UUID) (*models.UserProgress, error) {
	if err := v.RequireUser(); err != nil {
		return nil, err
	}
	row, err := s.progress.GetByPair(ctx, v.UserID, tutorialID)
	if err != nil {
		logger.L().Error("get progress failed", zap.String("user_id", v.UserID.String()), zap.String("tutorial_id", tutorialID.String()), zap.Error(err))
		return nil, nil
	}
	return row, nil
}

func (s *progressService) Set(ctx context.Context, v session.Viewer, tutorialID uuid.UUID, percentage int, completed bool) (*models.UserProgress, error) {
	if err := v.RequireUser(); err != nil {
		return nil, err
	}
	var t models.Tutorial
	if err := s.tutorials.GetPublished(ctx, tutorialID, &t); err != nil {
		return nil, err
	}

	if completed {
		return s.complete(ctx, v, tutorialID)
	}

	stored, err := s.progress.Upsert(ctx, &models.UserProgress{
		UserID:             v.UserID,
		TutorialID:         tutorialID,
		ProgressPercentage: clampPercentage(percentage),
	})
	if err != nil {
		return nil, s.writeFailed(ctx, v, tutorialID, err)
	}
	return stored, nil
}

// complete congratulates only when this call is the one that completed the tutorial.
func (s *progressService) complete(ctx context.Context, v session.Viewer, tutorialID uuid.UUID) (*models.UserProgress, error) {
	stored, transitioned, err := s.progress.Complete(ctx, v.UserID, tutorialID, s.now())
	if err != nil {
		return nil, s.writeFailed(ctx, v, tutorialID, err)
	}
	if transitioned {
		logger.L().Info("tutorial completed", zap.String("user_id", v.UserID.String()), zap.String("tutorial_id", tutorialID.String()))
		notify.For(s.notifier, v.Audience).Notify(ctx, notify.Info("Félicitations !", "Vous avez terminé ce tutoriel avec succès."))
	}
	return stored, nil
}

func (s *progressService) MarkCompleted(ctx context.Context, v session.Viewer, tutorialID uuid.UUID) (*models.UserProgress, error) {
	return s.Set(ctx, v, tutorialID, 100, true)
}

func (s *progressService) writeFailed(ctx context.Context, v session.Viewer, tutorialID uuid.UUID, err error) error {
	logger.L().Error("save progress failed", zap.String("user_id", v.UserID.String()), zap.String("tutorial_id", tutorialID.String()), zap.Error(err))
	notify.For(s.notifier, v.Audience).Notify(ctx, notify.Failure("Erreur", "Impossible d'enregistrer la progression"))
	return err
}

func clampPercentage(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
