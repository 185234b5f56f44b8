package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/graphilearn/engine/internal/api"
	"github.com/graphilearn/engine/internal/api/handlers"
	mw "github.com/graphilearn/engine/internal/api/middleware"
	"github.com/graphilearn/engine/internal/gateway"
	"github.com/graphilearn/engine/internal/notify"
	"github.com/graphilearn/engine/internal/queue/tasks"
	"github.com/graphilearn/engine/internal/repository"
	"github.com/graphilearn/engine/internal/services"
	"github.com/graphilearn/engine/internal/session"
	"github.com/graphilearn/engine/internal/storage"
	"github.com/graphilearn/engine/pkg/config"
	"github.com/graphilearn/engine/pkg/database"
	"github.com/graphilearn/engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()

	// Initialize logger
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("Starting GraphiLearn",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Connect to database
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL, log, database.Options{Verbose: !cfg.IsProduction()})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Initialize repositories
	profileRepo := repository.NewProfileRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	tutorialRepo := repository.NewTutorialRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	authUserRepo := repository.NewAuthUserRepository(db)

	var rdb *redis.Client
	var enqueuer tasks.Enqueuer
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: 0})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("redis connection failed", zap.Error(err))
		}
		defer rdb.Close()

		ac := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: 0})
		defer ac.Close()
		enqueuer = ac
	} else {
		log.Warn("REDIS_ADDR not set, confirmation mails are not sent")
	}

	var notifier notify.Notifier = notify.NewMemoryNotifier()
	if cfg.Notifier == "redis" {
		notifier = notify.NewRedisNotifier(rdb, cfg.SessionIdleTTL)
	}

	store, media, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("object storage unavailable", zap.Error(err))
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	jwtSecret := []byte(cfg.JWTSecret)
	if len(jwtSecret) == 0 {
		if cfg.IsProduction() {
			log.Fatal("JWT_SECRET is required in production")
		}
		log.Warn("JWT_SECRET not set, using a random key (tokens do not survive restarts)")
		jwtSecret = securecookie.GenerateRandomKey(32)
	}

	identity := gateway.NewIdentity(authUserRepo, gateway.IdentityOptions{
		Secret:        jwtSecret,
		TokenTTL:      cfg.AccessTokenTTL,
		AutoConfirm:   cfg.AuthAutoConfirm,
		Confirmations: tasks.NewConfirmationDispatcher(enqueuer),
	})

	// One gateway client and session manager per browser session.
	registry := session.NewRegistry(func(ctx context.Context, sid, accessToken string) *session.Manager {
		return session.NewManager(gateway.NewClient(ctx, identity, accessToken), profileRepo, session.Options{
			Audience:       sid,
			RedirectTo:     cfg.SiteURL,
			ResolveTimeout: cfg.ProfileResolveTimeout,
			Sink:           notify.For(notifier, sid),
		})
	}, cfg.SessionIdleTTL)
	go registry.Run(ctx)

	sessionKey := []byte(cfg.SessionKey)
	if len(sessionKey) == 0 {
		if cfg.IsProduction() {
			log.Fatal("SESSION_KEY is required in production")
		}
		log.Warn("SESSION_KEY not set, using a random key (sessions do not survive restarts)")
		sessionKey = securecookie.GenerateRandomKey(32)
	}
	cookies := sessions.NewCookieStore(sessionKey)
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.AccessTokenTTL / time.Second),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}

	// Initialize handlers
	router := api.NewRouter(api.Dependencies{
		Session: mw.SessionConfig{
			Store:       cookies,
			Registry:    registry,
			Tokens:      identity,
			WaitTimeout: cfg.ProfileResolveTimeout,
		},
		AllowedOrigins:       cfg.AllowedOrigins(),
		HealthHandler:        handlers.NewHealthHandler(func(ctx context.Context) error { return database.Ping(ctx, db) }),
		AuthHandler:          handlers.NewAuthHandler(identity, cfg.SiteURL),
		TutorialsHandler:     handlers.NewTutorialsHandler(services.NewCatalogService(tutorialRepo, categoryRepo), services.NewProgressService(progressRepo, tutorialRepo, notifier)),
		DashboardHandler:     handlers.NewDashboardHandler(services.NewDashboardService(progressRepo, tutorialRepo)),
		AccountHandler:       handlers.NewAccountHandler(services.NewAccountService(notifier)),
		AdminHandler:         handlers.NewAdminHandler(services.NewAdminService(tutorialRepo, categoryRepo, store, notifier)),
		NotificationsHandler: handlers.NewNotificationsHandler(notifier),
		Media:                media,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
	// Closes every session manager.
	stop()
}

// openStore returns the configured object store and, for the local driver, the handler
// serving its files.
func openStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, http.Handler, error) {
	switch cfg.StorageDriver {
	case "gcs":
		s, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile, cfg.StoragePublicURL)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		s, err := storage.NewLocalStore(cfg.StorageDir, cfg.StoragePublicURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Handler(), nil
	}
}
