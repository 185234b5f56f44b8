package session

import (
	"github.com/google/uuid"
	appErr "github.com/graphilearn/engine/pkg/errors"
)

// Viewer is the resolved identity a request acts as.
type Viewer struct {
	UserID uuid.UUID
	Email  string
	// Audience addresses the browser session's notification queue.
	Audience string
	Admin    bool
	// Resolving is true until the first session resolution completed.
	Resolving bool
}

func (v Viewer) Authenticated() bool { return v.UserID != uuid.Nil }

// RequireUser fails with unauthorized for anonymous viewers.
func (v Viewer) RequireUser() error {
	if !v.Authenticated() {
		return appErr.New(appErr.CodeUnauthorized, "authentication required")
	}
	return nil
}

// RequireAdmin is the single capability check for content administration.
// A viewer whose role is still resolving is refused.
func (v Viewer) RequireAdmin() error {
	if err := v.RequireUser(); err != nil {
		return err
	}
	if v.Resolving || !v.Admin {
		return appErr.New(appErr.CodeForbidden, "admin role required")
	}
	return nil
}
