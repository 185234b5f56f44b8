package handlers

import (
	"net/http"

	"github.com/graphilearn/engine/internal/api/middleware"
	"github.com/graphilearn/engine/internal/notify"
	appErr "github.com/graphilearn/engine/pkg/errors"
	"github.com/graphilearn/engine/pkg/logger"
	"go.uber.org/zap"
)

type NotificationsHandler struct {
	notifier notify.Notifier
}

func NewNotificationsHandler(notifier notify.Notifier) *NotificationsHandler {
	return &NotificationsHandler{notifier: notifier}
}

// Drain returns and removes the pending toasts of the caller's browser session.
func (h *NotificationsHandler) Drain(w http.ResponseWriter, r *http.Request) {
	v := middleware.GetViewer(r.Context())
	if v.Audience == "" {
		writeData(w, r, http.StatusOK, []notify.Notification{})
		return
	}
	items, err := h.notifier.Drain(r.Context(), v.Audience)
	if err != nil {
		logger.L().Error("drain notifications failed", zap.String("audience", v.Audience), zap.Error(err))
		writeError(w, r, appErr.Wrap(err, appErr.CodeUnavailable, "notifications unavailable"))
		return
	}
	writeData(w, r, http.StatusOK, items)
}
