package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/graphilearn/engine/internal/api/middleware"
	"github.com/graphilearn/engine/internal/services"
	appErr "github.com/graphilearn/engine/pkg/errors"
)

type AdminHandler struct {
	admin services.AdminService
}

func NewAdminHandler(admin services.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	snap, err := h.admin.Snapshot(r.Context(), middleware.GetViewer(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, snap)
}

func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.TutorialInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.admin.Create(r.Context(), middleware.GetViewer(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, res)
}

func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in services.TutorialInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.admin.Update(r.Context(), middleware.GetViewer(r.Context()), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, res)
}

// Delete requires ?confirm=true; without it the answer is 428 with the prompt to show.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	res, err := h.admin.Delete(r.Context(), middleware.GetViewer(r.Context()), id, confirmed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, res)
}

func (h *AdminHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.admin.TogglePublish(r.Context(), middleware.GetViewer(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, res)
}

// Upload accepts a multipart "file" field holding a cover image.
func (h *AdminHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxImageBytes+1<<20)
	f, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, appErr.Wrap(err, appErr.CodeInvalid, "image too large"))
			return
		}
		writeError(w, r, appErr.Wrap(err, appErr.CodeInvalid, "missing file"))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, services.MaxImageBytes+1))
	if err != nil {
		writeError(w, r, appErr.Wrap(err, appErr.CodeInvalid, "unreadable file"))
		return
	}
	obj, err := h.admin.UploadImage(r.Context(), middleware.GetViewer(r.Context()), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, obj)
}
