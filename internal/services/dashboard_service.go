package services

import (
	"context"
	"math"

	"github.com/graphilearn/engine/internal/models"
	"github.com/graphilearn/engine/internal/repository"
	"github.com/graphilearn/engine/internal/session"
	"github.com/graphilearn/engine/pkg/logger"
	"go.uber.org/zap"
)

// recentTutorialsLimit is how many new tutorials the dashboard suggests.
const recentTutorialsLimit = 6

type DashboardStats struct {
	Completed       int `json:"completed"`
	InProgress      int `json:"in_progress"`
	TotalMinutes    int `json:"total_minutes"`
	AverageProgress int `json:"average_progress"`
}

type Dashboard struct {
	Progress []models.UserProgress `json:"progress"`
	Stats    DashboardStats        `json:"stats"`
	Recent   []models.Tutorial     `json:"recent_tutorials"`
}

type DashboardService interface {
	Get(ctx context.Context, v session.Viewer) (*Dashboard, error)
}

type dashboardService struct {
	progress  repository.ProgressRepository
	tutorials repository.TutorialRepository
}

func NewDashboardService(progress repository.ProgressRepository, tutorials repository.TutorialRepository) DashboardService {
	return &dashboardService{progress: progress, tutorials: tutorials}
}

var _ DashboardService = (*dashboardService)(nil)

func (s *dashboardService) Get(ctx context.Context, v session.Viewer) (*Dashboard, error) {
	if err := v.RequireUser(); err != nil {
		return nil, err
	}

	d := &Dashboard{Progress: []models.UserProgress{}, Recent: []models.Tutorial{}}
	rows, err := s.progress.ListByUser(ctx, v.UserID)
	if err != nil {
		logger.L().Error("list user progress failed", zap.String("user_id", v.UserID.String()), zap.Error(err))
	} else {
		d.Progress = rows
		d.Stats = ComputeStats(rows)
	}

	recent, err := s.tutorials.ListPublished(ctx, recentTutorialsLimit)
	if err != nil {
		logger.L().Error("list recent tutorials failed", zap.Error(err))
	} else {
		d.Recent = recent
	}
	return d, nil
}

// ComputeStats summarises progress rows. Minutes only count completed tutorials.
func ComputeStats(rows []models.UserProgress) DashboardStats {
	var st DashboardStats
	if len(rows) == 0 {
		return st
	}
	sum := 0
	for _, r := range rows {
		sum += r.ProgressPercentage
		switch {
		case r.Completed:
			st.Completed++
			if r.Tutorial != nil {
				st.TotalMinutes += r.Tutorial.DurationMinutes
			}
		case r.ProgressPercentage > 0:
			st.InProgress++
		}
	}
	st.AverageProgress = int(math.Floor(float64(sum)/float64(len(rows)) + 0.5))
	return st
}
