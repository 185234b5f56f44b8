package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/graphilearn/engine/internal/api/middleware"
	"github.com/graphilearn/engine/internal/api/types"
	"github.com/graphilearn/engine/internal/api/validators"
	"github.com/graphilearn/engine/internal/gateway"
	"github.com/graphilearn/engine/internal/models"
	"github.com/graphilearn/engine/internal/services"
	"github.com/graphilearn/engine/internal/session"
	appErr "github.com/graphilearn/engine/pkg/errors"
	"github.com/graphilearn/engine/pkg/logger"
	"go.uber.org/zap"
)

// Confirmer completes the sign-up email confirmation.
type Confirmer interface {
	Confirm(ctx context.Context, token string) (*gateway.User, error)
}

type AuthHandler struct {
	confirmer Confirmer
	siteURL   string
}

func NewAuthHandler(confirmer Confirmer, siteURL string) *AuthHandler {
	return &AuthHandler{confirmer: confirmer, siteURL: siteURL}
}

type sessionView struct {
	User        *gateway.User   `json:"user"`
	Profile     *models.Profile `json:"profile"`
	IsAdmin     bool            `json:"is_admin"`
	Loading     bool            `json:"loading"`
	AccessToken string          `json:"access_token,omitempty"`
	ExpiresAt   *int64          `json:"expires_at,omitempty"`
}

func viewOf(s session.State) sessionView {
	v := sessionView{User: s.User, Profile: s.Profile, IsAdmin: s.IsAdmin(), Loading: s.Loading}
	if s.Session != nil {
		v.AccessToken = s.Session.AccessToken
		exp := s.Session.ExpiresAt.Unix()
		v.ExpiresAt = &exp
	}
	return v
}

// authError maps gateway failures onto error codes; other coded errors pass through.
func authError(err error) error {
	var ae *gateway.AuthError
	if !errors.As(err, &ae) && appErr.CodeOf(err) != appErr.CodeUnknown {
		return err
	}
	return appErr.Wrap(err, services.AuthErrorCode(err), gateway.MessageFor(gateway.ReasonOf(err)))
}

// Session returns the current state of the caller's browser session.
// Session reports the caller's auth state; callers without a session read as signed out.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	m := middleware.GetManager(r.Context())
	if m == nil {
		writeData(w, r, http.StatusOK, viewOf(session.State{}))
		return
	}
	writeData(w, r, http.StatusOK, viewOf(m.State()))
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	m, ok := manager(w, r)
	if !ok {
		return
	}
	var req types.SignInRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validators.New().Struct(req); err != nil {
		writeErrorStr(w, r, err.Error())
		return
	}
	if err := m.SignIn(r.Context(), req.Email, req.Password); err != nil {
		writeError(w, r, authError(err))
		return
	}
	writeData(w, r, http.StatusOK, viewOf(m.State()))
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	m, ok := manager(w, r)
	if !ok {
		return
	}
	var req types.SignUpRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validators.New().Struct(req); err != nil {
		writeErrorStr(w, r, err.Error())
		return
	}
	if err := m.SignUp(r.Context(), req.Email, req.Password); err != nil {
		writeError(w, r, authError(err))
		return
	}
	st := m.State()
	writeData(w, r, http.StatusCreated, map[string]any{
		"confirmation_required": st.User == nil,
		"session":               viewOf(st),
	})
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	m, ok := manager(w, r)
	if !ok {
		return
	}
	// Local state is cleared whatever the gateway answered.
	if err := m.SignOut(r.Context()); err != nil {
		logger.L().Warn("sign out reported an error", zap.String("request_id", middleware.GetRequestID(r.Context())), zap.Error(err))
	}
	writeData(w, r, http.StatusOK, viewOf(m.State()))
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	m, ok := manager(w, r)
	if !ok {
		return
	}
	if err := m.Refresh(r.Context()); err != nil {
		writeError(w, r, authError(err))
		return
	}
	writeData(w, r, http.StatusOK, viewOf(m.State()))
}

// Confirm validates the emailed token and redirects to the site.
func (h *AuthHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := q.Get("token")
	if token == "" {
		writeErrorStr(w, r, "missing token")
		return
	}
	if _, err := h.confirmer.Confirm(r.Context(), token); err != nil {
		writeError(w, r, authError(err))
		return
	}
	http.Redirect(w, r, h.redirectTarget(q.Get("redirect_to")), http.StatusSeeOther)
}

// redirectTarget only follows redirect_to when it stays on the site.
func (h *AuthHandler) redirectTarget(raw string) string {
	if raw == "" {
		return h.siteURL
	}
	site, err := url.Parse(h.siteURL)
	if err != nil {
		return h.siteURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host != site.Host || u.Scheme != site.Scheme {
		return h.siteURL
	}
	return u.String()
}
