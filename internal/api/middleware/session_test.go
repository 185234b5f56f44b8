package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/graphilearn/engine/internal/gateway"
	"github.com/graphilearn/engine/internal/session"
	"github.com/stretchr/testify/assert"
)

type restorerFunc func(ctx context.Context, token string) (*gateway.Session, error)

func (f restorerFunc) Restore(ctx context.Context, token string) (*gateway.Session, error) {
	return f(ctx, token)
}

func TestRejectedBearerTokenGetsNoManager(t *testing.T) {
	var built int
	registry := session.NewRegistry(func(ctx context.Context, sid, token string) *session.Manager {
		built++
		t.Fatalf("no manager may be built for a rejected token, got sid %q", sid)
		return nil
	}, time.Minute)

	var checked []string
	mw := Session(SessionConfig{
		Store:    sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef")),
		Registry: registry,
		Tokens: restorerFunc(func(ctx context.Context, token string) (*gateway.Session, error) {
			checked = append(checked, token)
			return nil, &gateway.AuthError{Reason: gateway.ReasonNoSession}
		}),
	})

	var attached bool
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attached = GetManager(r.Context()) != nil
		RequireUser(ok).ServeHTTP(w, r)
	}))

	for _, token := range []string{"forged-1", "forged-2"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.False(t, attached)
		assert.Empty(t, rr.Header().Get("Set-Cookie"))
	}

	assert.Equal(t, []string{"forged-1", "forged-2"}, checked)
	assert.Zero(t, built)
	assert.Zero(t, registry.Len())
}
