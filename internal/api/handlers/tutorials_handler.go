package handlers

import (
	"net/http"

	"github.com/graphilearn/engine/internal/api/middleware"
	"github.com/graphilearn/engine/internal/api/types"
	"github.com/graphilearn/engine/internal/services"
	appErr "github.com/graphilearn/engine/pkg/errors"
)

type TutorialsHandler struct {
	catalog  services.CatalogService
	progress services.ProgressService
}

func NewTutorialsHandler(catalog services.CatalogService, progress services.ProgressService) *TutorialsHandler {
	return &TutorialsHandler{catalog: catalog, progress: progress}
}

func (h *TutorialsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	items := h.catalog.ListCategories(r.Context())
	writeJSON(w, http.StatusOK, types.APIResponse{
		Success: true,
		Data:    items,
		Meta:    &types.Meta{RequestID: middleware.GetRequestID(r.Context()), Total: int64(len(items))},
	})
}

func (h *TutorialsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items := h.catalog.ListTutorials(r.Context(), services.TutorialFilter{
		Search:     q.Get("search"),
		Category:   q.Get("category"),
		Difficulty: q.Get("difficulty"),
	})
	writeJSON(w, http.StatusOK, types.APIResponse{
		Success: true,
		Data:    items,
		Meta:    &types.Meta{RequestID: middleware.GetRequestID(r.Context()), Total: int64(len(items))},
	})
}

// Get sends unknown and unpublished tutorials back to the list.
func (h *TutorialsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeErrorRedirect(w, r, appErr.Wrap(err, appErr.CodeNotFound, "tutorial not found"), types.RouteTutorials)
		return
	}
	t, err := h.catalog.GetTutorial(r.Context(), id)
	if err != nil {
		writeErrorRedirect(w, r, err, types.RouteTutorials)
		return
	}
	writeData(w, r, http.StatusOK, t)
}

func (h *TutorialsHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.progress.Get(r.Context(), middleware.GetViewer(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, p)
}

func (h *TutorialsHandler) SetProgress(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.ProgressRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.progress.Set(r.Context(), middleware.GetViewer(r.Context()), id, req.ProgressPercentage, req.Completed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, p)
}

func (h *TutorialsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.progress.MarkCompleted(r.Context(), middleware.GetViewer(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, p)
}
