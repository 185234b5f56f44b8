package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/graphilearn/engine/internal/queue/tasks"
	"github.com/graphilearn/engine/pkg/config"
	"github.com/graphilearn/engine/pkg/logger"
)

func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.RedisAddr == "" {
		log.Fatal("REDIS_ADDR is required for the mail worker")
	}
	if err := pingRedis(cfg); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword},
		asynq.Config{
			Concurrency: cfg.AsynqConcurrency,
			Queues:      map[string]int{tasks.QueueMail: 1},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
				logger.L().Error("task failed", zap.String("type", t.Type()), zap.Error(err))
			}),
		},
	)

	// TODO: replace LogMailer with an SMTP mailer once a relay is provisioned.
	confirmations := tasks.NewConfirmationTaskHandler(tasks.LogMailer{}, cfg.SiteURL)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSignupConfirmation, confirmations.HandleSignupConfirmation)

	if err := srv.Start(mux); err != nil {
		log.Fatal("asynq worker failed to start", zap.Error(err))
	}
	log.Info("mail worker started", zap.Int("concurrency", cfg.AsynqConcurrency), zap.String("queue", tasks.QueueMail))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutdown signal received, draining in-flight tasks")
	srv.Shutdown()
}

func pingRedis(cfg *config.Config) error {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()
	return rdb.Ping(context.Background()).Err()
}
