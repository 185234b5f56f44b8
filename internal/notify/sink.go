package notify

import (
	"context"
	"time"

	"github.com/graphilearn/engine/pkg/logger"
	"go.uber.org/zap"
)

type scopedSink struct {
	notifier Notifier
	audience string
}

// For binds a notifier to one audience. Push failures are logged, never returned:
// a lost toast must not fail the action that produced it.
func For(n Notifier, audience string) Sink {
	return &scopedSink{notifier: n, audience: audience}
}

func (s *scopedSink) Notify(ctx context.Context, n Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Variant == "" {
		n.Variant = VariantDefault
	}
	if err := s.notifier.Push(ctx, s.audience, n); err != nil {
		logger.L().Warn("notification dropped", zap.String("audience", s.audience), zap.String("title", n.Title), zap.Error(err))
	}
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Notify(context.Context, Notification) {}
