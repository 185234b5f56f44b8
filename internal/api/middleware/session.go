package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/graphilearn/engine/internal/api/types"
	"github.com/graphilearn/engine/internal/gateway"
	"github.com/graphilearn/engine/internal/session"
	"github.com/graphilearn/engine/pkg/logger"
	"github.com/graphilearn/engine/pkg/utils"
	"go.uber.org/zap"
)

type managerKeyType string

const managerKey managerKeyType = "session_manager"

const (
	sidValue   = "sid"
	tokenValue = "access_token"
)

// TokenRestorer turns a bearer token back into a session, failing with
// gateway.ReasonNoSession for forged, expired, revoked or orphaned tokens.
type TokenRestorer interface {
	Restore(ctx context.Context, token string) (*gateway.Session, error)
}

type SessionConfig struct {
	Store      sessions.Store
	CookieName string
	Registry   *session.Registry
	// Tokens vets bearer tokens before a manager is registered for them.
	Tokens TokenRestorer
	// WaitTimeout bounds how long a request waits for the first session resolution.
	WaitTimeout time.Duration
}

// Session attaches the browser session's Manager to the request context. Browser clients
// are keyed by a cookie; API clients sending a bearer token get a manager keyed by the
// token's hash once the token restores, and stay anonymous otherwise. Cookie sessions
// are re-checked on every request so a session revoked elsewhere ends here too. The
// cookie is rewritten with the current access token before the response headers go out.
func Session(cfg SessionConfig) func(http.Handler) http.Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = "graphilearn_session"
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 5 * time.Second
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				sid := "bearer:" + utils.HexSHA256([]byte(token))
				if !bearerAccepted(r.Context(), cfg.Tokens, token) {
					cfg.Registry.Drop(sid)
					next.ServeHTTP(w, r)
					return
				}
				m := cfg.Registry.Get(r.Context(), sid, token)
				waitResolved(r.Context(), m, cfg.WaitTimeout)
				next.ServeHTTP(w, r.WithContext(WithManager(r.Context(), m)))
				return
			}

			gs, err := cfg.Store.Get(r, cfg.CookieName)
			if err != nil {
				logger.L().Debug("discarding unreadable session cookie", zap.Error(err))
			}
			sid, _ := gs.Values[sidValue].(string)
			if sid == "" {
				sid = uuid.NewString()
			}
			token, _ := gs.Values[tokenValue].(string)

			m := cfg.Registry.Get(r.Context(), sid, token)
			waitResolved(r.Context(), m, cfg.WaitTimeout)
			if err := m.Revalidate(r.Context()); err != nil {
				logger.L().Warn("session revalidation failed", zap.Error(err))
			}

			cw := &cookieWriter{ResponseWriter: w, save: func(w http.ResponseWriter) {
				gs.Values[sidValue] = sid
				gs.Values[tokenValue] = m.AccessToken()
				if err := gs.Save(r, w); err != nil {
					logger.L().Error("save session cookie failed", zap.Error(err))
				}
			}}
			next.ServeHTTP(cw, r.WithContext(WithManager(r.Context(), m)))
			cw.flushCookie()
		})
	}
}

// bearerAccepted reports whether token may own a manager. An unreachable identity
// server does not reject the token; the manager's own restore decides then.
func bearerAccepted(ctx context.Context, tokens TokenRestorer, token string) bool {
	if tokens == nil {
		return true
	}
	_, err := tokens.Restore(ctx, token)
	if err == nil {
		return true
	}
	if gateway.ReasonOf(err) == gateway.ReasonNoSession {
		return false
	}
	logger.L().Warn("bearer token check failed", zap.Error(err))
	return true
}

func waitResolved(ctx context.Context, m *session.Manager, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := m.Wait(ctx); err != nil {
		logger.L().Warn("session still resolving", zap.Error(err))
	}
}

func bearerToken(r *http.Request) string {
	ah := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return ""
	}
	return strings.TrimSpace(ah[len("Bearer "):])
}

// cookieWriter saves the session cookie right before the first header write.
type cookieWriter struct {
	http.ResponseWriter
	once sync.Once
	save func(http.ResponseWriter)
}

func (c *cookieWriter) flushCookie() { c.once.Do(func() { c.save(c.ResponseWriter) }) }

func (c *cookieWriter) WriteHeader(code int) {
	c.flushCookie()
	c.ResponseWriter.WriteHeader(code)
}

func (c *cookieWriter) Write(b []byte) (int, error) {
	c.flushCookie()
	return c.ResponseWriter.Write(b)
}

// WithManager stores m in ctx.
func WithManager(ctx context.Context, m *session.Manager) context.Context {
	return context.WithValue(ctx, managerKey, m)
}

// GetManager returns the request's session manager, or nil outside the Session middleware.
func GetManager(ctx context.Context) *session.Manager {
	if v := ctx.Value(managerKey); v != nil {
		if m, ok := v.(*session.Manager); ok {
			return m
		}
	}
	return nil
}

// GetViewer returns the request's viewer; anonymous when no manager is attached.
func GetViewer(ctx context.Context) session.Viewer {
	if m := GetManager(ctx); m != nil {
		return m.Viewer()
	}
	return session.Viewer{}
}

// RequireUser rejects anonymous requests with 401 and a redirect to the auth screen.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := GetViewer(r.Context()).RequireUser(); err != nil {
			deny(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin applies the admin capability check: 401 for anonymous, 403 otherwise.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := GetViewer(r.Context()).RequireAdmin(); err != nil {
			deny(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func deny(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	_ = json.NewEncoder(w).Encode(types.APIResponse{
		Success:  false,
		Error:    types.FromAppError(err),
		Meta:     &types.Meta{RequestID: GetRequestID(r.Context())},
		Redirect: types.RedirectFor(err),
	})
}
