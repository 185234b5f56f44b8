package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/graphilearn/engine/internal/api/middleware"
	"github.com/graphilearn/engine/internal/api/types"
	"github.com/graphilearn/engine/internal/session"
	appErr "github.com/graphilearn/engine/pkg/errors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, types.APIResponse{
		Success: true,
		Data:    data,
		Meta:    &types.Meta{RequestID: middleware.GetRequestID(r.Context())},
	})
}

// writeError derives the status and redirect from the error's code.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorRedirect(w, r, err, types.RedirectFor(err))
}

func writeErrorRedirect(w http.ResponseWriter, r *http.Request, err error, redirect string) {
	writeJSON(w, appErr.HTTPStatus(appErr.CodeOf(err)), types.APIResponse{
		Success:  false,
		Error:    types.FromAppError(err),
		Meta:     &types.Meta{RequestID: middleware.GetRequestID(r.Context())},
		Redirect: redirect,
	})
}

func writeErrorStr(w http.ResponseWriter, r *http.Request, msg string) {
	writeError(w, r, appErr.New(appErr.CodeInvalid, msg))
}

func decode(r *http.Request, dest any) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return appErr.Wrap(err, appErr.CodeInvalid, "invalid json")
	}
	return nil
}

func idParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, appErr.Wrap(err, appErr.CodeInvalid, "invalid id")
	}
	return id, nil
}

// manager returns the request's session manager. Only requests carrying a rejected
// bearer token reach a handler without one.
func manager(w http.ResponseWriter, r *http.Request) (*session.Manager, bool) {
	m := middleware.GetManager(r.Context())
	if m == nil {
		writeError(w, r, appErr.New(appErr.CodeUnauthorized, "session expired"))
		return nil, false
	}
	return m, true
}
