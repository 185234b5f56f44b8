package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/graphilearn/engine/internal/models"
	"github.com/graphilearn/engine/internal/repository"
	appErr "github.com/graphilearn/engine/pkg/errors"
	"github.com/graphilearn/engine/pkg/logger"
	"go.uber.org/zap"
)

// AllFilter is the sentinel that disables the category or difficulty filter.
const AllFilter = "all"

// TutorialFilter narrows a catalog listing. Empty fields behave like AllFilter.
type TutorialFilter struct {
	Search     string
	Category   string
	Difficulty string
}

// FilterTutorials keeps the tutorials matching every criterion of f, in input order.
// Search matches the title or description, case-insensitively and verbatim:
// surrounding whitespace is part of the needle.
func FilterTutorials(list []models.Tutorial, f TutorialFilter) []models.Tutorial {
	needle := strings.ToLower(f.Search)
	out := make([]models.Tutorial, 0, len(list))
	for _, t := range list {
		if needle != "" &&
			!strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			continue
		}
		if !isAll(f.Category) && t.CategoryID.String() != f.Category {
			continue
		}
		if !isAll(f.Difficulty) && string(t.DifficultyLevel) != f.Difficulty {
			continue
		}
		out = append(out, t)
	}
	return out
}

func isAll(v string) bool { return v == "" || v == AllFilter }

type CatalogService interface {
	// ListTutorials returns the published catalog, newest first, filtered by f.
	ListTutorials(ctx context.Context, f TutorialFilter) []models.Tutorial
	ListCategories(ctx context.Context) []models.Category
	// GetTutorial returns a published tutorial; anything else is not_found.
	GetTutorial(ctx context.Context, id uuid.UUID) (*models.Tutorial, error)
}

type catalogService struct {
	tutorials  repository.TutorialRepository
	categories repository.CategoryRepository
}

func NewCatalogService(tutorials repository.TutorialRepository, categories repository.CategoryRepository) CatalogService {
	return &catalogService{tutorials: tutorials, categories: categories}
}

var _ CatalogService = (*catalogService)(nil)

// Read failures degrade to an empty listing.
func (s *catalogService) ListTutorials(ctx context.Context, f TutorialFilter) []models.Tutorial {
	list, err := s.tutorials.ListPublished(ctx, 0)
	if err != nil {
		logger.L().Error("list published tutorials failed", zap.Error(err))
		return []models.Tutorial{}
	}
	return FilterTutorials(list, f)
}

func (s *catalogService) ListCategories(ctx context.Context) []models.Category {
	list, err := s.categories.ListByName(ctx)
	if err != nil {
		logger.L().Error("list categories failed", zap.Error(err))
		return []models.Category{}
	}
	return list
}

func (s *catalogService) GetTutorial(ctx context.Context, id uuid.UUID) (*models.Tutorial, error) {
	var t models.Tutorial
	if err := s.tutorials.GetPublished(ctx, id, &t); err != nil {
		if !appErr.IsCode(err, appErr.CodeNotFound) {
			logger.L().Error("get tutorial failed", zap.String("tutorial_id", id.String()), zap.Error(err))
			return nil, appErr.Wrap(err, appErr.CodeNotFound, "tutorial not found")
		}
		return nil, err
	}
	return &t, nil
}
