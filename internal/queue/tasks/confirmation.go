package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/graphilearn/engine/internal/gateway"
	appErr "github.com/graphilearn/engine/pkg/errors"
	"github.com/graphilearn/engine/pkg/logger"
	"go.uber.org/zap"
)

const (
	TypeSignupConfirmation = "auth:signup_confirmation"
	// QueueMail carries outgoing mail tasks.
	QueueMail = "mail"
)

// ConfirmationPayload is the task payload for sign-up confirmation mails.
type ConfirmationPayload struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	Token      string `json:"token"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func NewConfirmationTask(c gateway.Confirmation) (*asynq.Task, error) {
	pb, err := json.Marshal(ConfirmationPayload{
		UserID:     c.UserID.String(),
		Email:      c.Email,
		Token:      c.Token,
		RedirectTo: c.RedirectTo,
	})
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "marshal confirmation payload failed")
	}
	return asynq.NewTask(TypeSignupConfirmation, pb, asynq.MaxRetry(0), asynq.Queue(QueueMail)), nil
}

// ConfirmationDispatcher hands confirmations to the worker through asynq.
type ConfirmationDispatcher struct {
	client Enqueuer
}

func NewConfirmationDispatcher(client Enqueuer) *ConfirmationDispatcher {
	return &ConfirmationDispatcher{client: client}
}

var _ gateway.ConfirmationSender = (*ConfirmationDispatcher)(nil)

func (d *ConfirmationDispatcher) SendConfirmation(ctx context.Context, c gateway.Confirmation) error {
	task, err := NewConfirmationTask(c)
	if err != nil {
		return err
	}
	if d.client == nil {
		logger.L().Warn("asynq client not configured, skipping confirmation enqueue", zap.String("user_id", c.UserID.String()))
		return nil
	}
	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "enqueue confirmation task failed")
	}
	logger.L().Info("confirmation task enqueued", zap.String("user_id", c.UserID.String()), zap.String("task_id", info.ID))
	return nil
}

// Mailer delivers one plain-text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, to, subject, body string) error {
	logger.L().Info("mail", zap.String("to", to), zap.String("subject", subject), zap.String("body", body))
	return nil
}

// ConfirmationTaskHandler renders and sends confirmation mails.
type ConfirmationTaskHandler struct {
	mailer  Mailer
	siteURL string
}

// NewConfirmationTaskHandler builds the handler. siteURL is the public base the
// confirmation link points at.
func NewConfirmationTaskHandler(mailer Mailer, siteURL string) *ConfirmationTaskHandler {
	return &ConfirmationTaskHandler{mailer: mailer, siteURL: strings.TrimRight(siteURL, "/")}
}

func (h *ConfirmationTaskHandler) HandleSignupConfirmation(ctx context.Context, t *asynq.Task) error {
	var p ConfirmationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		logger.L().Error("invalid confirmation task payload", zap.Error(err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.Email == "" || p.Token == "" {
		logger.L().Error("confirmation task missing email or token", zap.String("user_id", p.UserID))
		return fmt.Errorf("incomplete payload: %w", asynq.SkipRetry)
	}

	logger.L().Info("handling confirmation task", zap.String("user_id", p.UserID))
	link := h.ConfirmLink(p.Token, p.RedirectTo)
	body := "Bienvenue sur GraphiLearn !\n\nConfirmez votre adresse email en ouvrant ce lien :\n" + link + "\n"
	if err := h.mailer.Send(ctx, p.Email, "Confirmez votre inscription", body); err != nil {
		logger.L().Error("send confirmation mail failed", zap.String("user_id", p.UserID), zap.Error(err))
		return err
	}
	return nil
}

// ConfirmLink is the URL of the confirmation endpoint for token.
func (h *ConfirmationTaskHandler) ConfirmLink(token, redirectTo string) string {
	q := url.Values{}
	q.Set("token", token)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return h.siteURL + "/api/v1/auth/confirm?" + q.Encode()
}
