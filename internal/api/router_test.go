package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/graphilearn/engine/internal/api/handlers"
	mw "github.com/graphilearn/engine/internal/api/middleware"
	"github.com/graphilearn/engine/internal/api/types"
	"github.com/graphilearn/engine/internal/gateway"
	"github.com/graphilearn/engine/internal/models"
	"github.com/graphilearn/engine/internal/notify"
	"github.com/graphilearn/engine/internal/repository"
	"github.com/graphilearn/engine/internal/services"
	"github.com/graphilearn/engine/internal/session"
	"github.com/graphilearn/engine/internal/storage"
	"github.com/graphilearn/engine/internal/testutil"
	"github.com/graphilearn/engine/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Set(zap.NewNop())
	os.Exit(m.Run())
}

type stack struct {
	server   *httptest.Server
	db       *gorm.DB
	profiles repository.ProfileRepository
	category *models.Category
	registry *session.Registry
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()
	db := testutil.DB(t)

	profiles := repository.NewProfileRepository(db)
	tutorials := repository.NewTutorialRepository(db)
	categories := repository.NewCategoryRepository(db)
	progress := repository.NewProgressRepository(db)
	notifier := notify.NewMemoryNotifier()

	store, err := storage.NewLocalStore(t.TempDir(), "/media")
	require.NoError(t, err)

	identity := gateway.NewIdentity(repository.NewAuthUserRepository(db), gateway.IdentityOptions{
		Secret:      []byte("router-test-secret"),
		TokenTTL:    time.Hour,
		AutoConfirm: true,
	})
	registry := session.NewRegistry(func(ctx context.Context, sid, accessToken string) *session.Manager {
		return session.NewManager(gateway.NewClient(ctx, identity, accessToken), profiles, session.Options{
			Audience:       sid,
			RedirectTo:     "http://localhost/",
			ResolveTimeout: 2 * time.Second,
			Sink:           notify.For(notifier, sid),
		})
	}, time.Minute)

	cookies := sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef"))
	cookies.Options = &sessions.Options{Path: "/", HttpOnly: true}

	router := NewRouter(Dependencies{
		Session:              mw.SessionConfig{Store: cookies, Registry: registry, Tokens: identity, WaitTimeout: 2 * time.Second},
		RateLimitRPS:         1000,
		RateLimitBurst:       1000,
		HealthHandler:        handlers.NewHealthHandler(func(context.Context) error { return nil }),
		AuthHandler:          handlers.NewAuthHandler(identity, "http://localhost/"),
		TutorialsHandler:     handlers.NewTutorialsHandler(services.NewCatalogService(tutorials, categories), services.NewProgressService(progress, tutorials, notifier)),
		DashboardHandler:     handlers.NewDashboardHandler(services.NewDashboardService(progress, tutorials)),
		AccountHandler:       handlers.NewAccountHandler(services.NewAccountService(notifier)),
		AdminHandler:         handlers.NewAdminHandler(services.NewAdminService(tutorials, categories, store, notifier)),
		NotificationsHandler: handlers.NewNotificationsHandler(notifier),
		Media:                store.Handler(),
	})

	srv := httptest.NewServer(router)
	runCtx, cancel := context.WithCancel(ctx)
	go registry.Run(runCtx)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &stack{
		server:   srv,
		db:       db,
		profiles: profiles,
		category: testutil.SeedCategory(t, ctx, db, "Algèbre"),
		registry: registry,
	}
}

type envelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	Error    *types.APIError `json:"error"`
	Redirect string          `json:"redirect"`
}

type browser struct {
	t      *testing.T
	base   string
	client *http.Client
	bearer string
}

func (s *stack) newBrowser(t *testing.T) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: s.server.URL, client: &http.Client{Jar: jar}}
}

func (b *browser) do(method, path string, body any) (int, envelope) {
	b.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(b.t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, b.base+path, rd)
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/json")
	if b.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+b.bearer)
	}
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(b.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

type sessionData struct {
	User *struct {
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
	} `json:"user"`
	Profile *struct {
		Role string `json:"role"`
	} `json:"profile"`
	IsAdmin     bool   `json:"is_admin"`
	Loading     bool   `json:"loading"`
	AccessToken string `json:"access_token"`
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (b *browser) signUp(email string) sessionData {
	b.t.Helper()
	status, env := b.do(http.MethodPost, "/api/v1/auth/signup", types.SignUpRequest{Email: email, Password: "secret1"})
	require.Equal(b.t, http.StatusCreated, status, "signup: %+v", env.Error)
	out := decodeData[struct {
		ConfirmationRequired bool        `json:"confirmation_required"`
		Session              sessionData `json:"session"`
	}](b.t, env)
	assert.False(b.t, out.ConfirmationRequired)
	require.NotNil(b.t, out.Session.User)
	return out.Session
}

func TestHealthEndpoints(t *testing.T) {
	s := newStack(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(s.server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestAnonymousIsSentToAuth(t *testing.T) {
	s := newStack(t)
	b := s.newBrowser(t)

	status, env := b.do(http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, status)
	sd := decodeData[sessionData](t, env)
	assert.Nil(t, sd.User)
	assert.False(t, sd.Loading)

	status, env = b.do(http.MethodGet, "/api/v1/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, types.RouteAuth, env.Redirect)

	status, env = b.do(http.MethodGet, "/api/v1/admin/tutorials", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, types.RouteAuth, env.Redirect)
}

func TestCatalogRoutes(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	pub := testutil.SeedTutorial(t, ctx, s.db, s.category.ID, "Équations du second degré")
	draft := testutil.SeedTutorial(t, ctx, s.db, s.category.ID, "Brouillon", testutil.Draft())
	b := s.newBrowser(t)

	status, env := b.do(http.MethodGet, "/api/v1/tutorials?search=second", nil)
	require.Equal(t, http.StatusOK, status)
	list := decodeData[[]models.Tutorial](t, env)
	require.Len(t, list, 1)
	assert.Equal(t, pub.ID, list[0].ID)

	status, env = b.do(http.MethodGet, "/api/v1/tutorials?search=nothing-matches", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decodeData[[]models.Tutorial](t, env))

	status, env = b.do(http.MethodGet, "/api/v1/categories", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decodeData[[]models.Category](t, env), 1)

	status, env = b.do(http.MethodGet, "/api/v1/tutorials/"+draft.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, types.RouteTutorials, env.Redirect)

	status, env = b.do(http.MethodGet, "/api/v1/tutorials/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, types.RouteTutorials, env.Redirect)
}

func TestLearnerFlow(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	tut := testutil.SeedTutorial(t, ctx, s.db, s.category.ID, "Vecteurs", testutil.Duration(45))
	b := s.newBrowser(t)

	sd := b.signUp("u1@example.com")
	require.NotNil(t, sd.Profile)
	assert.Equal(t, "user", sd.Profile.Role)
	assert.False(t, sd.IsAdmin)

	progressPath := "/api/v1/tutorials/" + tut.ID.String() + "/progress"
	status, env := b.do(http.MethodPut, progressPath, types.ProgressRequest{ProgressPercentage: 140})
	require.Equal(t, http.StatusOK, status, "%+v", env.Error)
	row := decodeData[models.UserProgress](t, env)
	assert.Equal(t, 100, row.ProgressPercentage)
	assert.False(t, row.Completed)

	for i := 0; i < 2; i++ {
		status, env = b.do(http.MethodPost, "/api/v1/tutorials/"+tut.ID.String()+"/complete", nil)
		require.Equal(t, http.StatusOK, status)
		assert.True(t, decodeData[models.UserProgress](t, env).Completed)
	}

	status, env = b.do(http.MethodGet, "/api/v1/notifications", nil)
	require.Equal(t, http.StatusOK, status)
	notes := decodeData[[]notify.Notification](t, env)
	var congrats int
	for _, n := range notes {
		if n.Title == "Félicitations !" {
			congrats++
		}
	}
	assert.Equal(t, 1, congrats)

	status, env = b.do(http.MethodGet, "/api/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, status)
	dash := decodeData[services.Dashboard](t, env)
	assert.Equal(t, 1, dash.Stats.Completed)
	assert.Equal(t, 45, dash.Stats.TotalMinutes)

	status, env = b.do(http.MethodGet, "/api/v1/admin/tutorials", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, types.RouteHome, env.Redirect)

	status, _ = b.do(http.MethodPost, "/api/v1/auth/signout", nil)
	require.Equal(t, http.StatusOK, status)
	status, env = b.do(http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, decodeData[sessionData](t, env).User)
}

func TestRoleChangeAppliesAfterRefresh(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	tut := testutil.SeedTutorial(t, ctx, s.db, s.category.ID, "Limites")
	b := s.newBrowser(t)

	sd := b.signUp("editor@example.com")
	require.NoError(t, s.profiles.SetRole(ctx, sd.User.ID, models.RoleAdmin))

	status, _ := b.do(http.MethodGet, "/api/v1/admin/tutorials", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env := b.do(http.MethodPost, "/api/v1/auth/refresh", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decodeData[sessionData](t, env).IsAdmin)

	status, env = b.do(http.MethodGet, "/api/v1/admin/tutorials", nil)
	require.Equal(t, http.StatusOK, status)
	snap := decodeData[services.AdminSnapshot](t, env)
	assert.Equal(t, 1, snap.Stats.Total)

	status, env = b.do(http.MethodDelete, "/api/v1/admin/tutorials/"+tut.ID.String(), nil)
	assert.Equal(t, http.StatusPreconditionRequired, status)
	assert.Equal(t, services.DeletePrompt, env.Error.Message)

	status, env = b.do(http.MethodDelete, "/api/v1/admin/tutorials/"+tut.ID.String()+"?confirm=true", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, decodeData[services.AdminResult](t, env).Snapshot.Stats.Total)
}

func TestBearerTokenSession(t *testing.T) {
	s := newStack(t)
	sd := s.newBrowser(t).signUp("api@example.com")
	require.NotEmpty(t, sd.AccessToken)

	api := s.newBrowser(t)
	api.client.Jar = nil
	api.bearer = sd.AccessToken

	status, env := api.do(http.MethodGet, "/api/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, status, "%+v", env.Error)
	assert.Equal(t, 0, decodeData[services.Dashboard](t, env).Stats.Completed)

	api.bearer = "garbage"
	status, _ = api.do(http.MethodGet, "/api/v1/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRejectedBearerTokensStayAnonymous(t *testing.T) {
	s := newStack(t)
	api := s.newBrowser(t)
	api.client.Jar = nil
	before := s.registry.Len()

	for i := 0; i < 5; i++ {
		api.bearer = "garbage-" + uuid.NewString()

		status, env := api.do(http.MethodGet, "/api/v1/session", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Nil(t, decodeData[sessionData](t, env).User)

		status, _ = api.do(http.MethodGet, "/api/v1/tutorials", nil)
		assert.Equal(t, http.StatusOK, status)

		status, _ = api.do(http.MethodPost, "/api/v1/auth/signout", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	}

	assert.Equal(t, before, s.registry.Len())
}

func TestDeletedAccountTokensStopWorking(t *testing.T) {
	s := newStack(t)
	b := s.newBrowser(t)
	sd := b.signUp("leaver@example.com")

	other := s.newBrowser(t)
	status, _ := other.do(http.MethodPost, "/api/v1/auth/signin", types.SignInRequest{Email: "leaver@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, status)

	api := s.newBrowser(t)
	api.client.Jar = nil
	api.bearer = sd.AccessToken
	status, _ = api.do(http.MethodGet, "/api/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, status)
	registered := s.registry.Len()

	status, env := b.do(http.MethodDelete, "/api/v1/account", types.AccountDeleteRequest{Confirmation: services.DeleteConfirmationWord})
	require.Equal(t, http.StatusOK, status, "%+v", env.Error)

	status, _ = api.do(http.MethodGet, "/api/v1/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, env = api.do(http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, decodeData[sessionData](t, env).User)
	assert.Equal(t, registered-1, s.registry.Len(), "the bearer session is dropped")

	status, _ = other.do(http.MethodGet, "/api/v1/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	assert.Zero(t, testutil.CountRows(t, s.db, &models.AuthUser{}, "id = ?", sd.User.ID))
	assert.Zero(t, testutil.CountRows(t, s.db, &models.Profile{}, "id = ?", sd.User.ID))
}

func TestSignOutRevokesBearerToken(t *testing.T) {
	s := newStack(t)
	b := s.newBrowser(t)
	sd := b.signUp("leaving@example.com")

	api := s.newBrowser(t)
	api.client.Jar = nil
	api.bearer = sd.AccessToken
	status, _ := api.do(http.MethodGet, "/api/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = b.do(http.MethodPost, "/api/v1/auth/signout", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = api.do(http.MethodGet, "/api/v1/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.EqualValues(t, 1, testutil.CountRows(t, s.db, &models.Profile{}, "id = ?", sd.User.ID))
}

func TestSignInFailureIsReported(t *testing.T) {
	s := newStack(t)
	s.newBrowser(t).signUp("u2@example.com")

	b := s.newBrowser(t)
	status, env := b.do(http.MethodPost, "/api/v1/auth/signin", types.SignInRequest{Email: "u2@example.com", Password: "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, env.Error)

	status, env = b.do(http.MethodGet, "/api/v1/notifications", nil)
	require.Equal(t, http.StatusOK, status)
	notes := decodeData[[]notify.Notification](t, env)
	require.Len(t, notes, 1)
	assert.Equal(t, "Erreur de connexion", notes[0].Title)
	assert.Equal(t, notify.VariantDestructive, notes[0].Variant)

	status, env = b.do(http.MethodPost, "/api/v1/auth/signin", types.SignInRequest{Email: "u2@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, status)
	assert.NotNil(t, decodeData[sessionData](t, env).User)
}
