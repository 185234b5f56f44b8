// Package gateway is the auth side of the backend-as-a-service the application runs on.
// Identity is the in-process auth server; Client is the per-browser-session handle the
// session manager consumes through the Auth interface.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// User is the authenticated identity as the gateway reports it.
type User struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// Session is an issued access token and the identity it belongs to.
type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

// Expired reports whether the token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || !now.Before(s.ExpiresAt)
}

// AuthEvent names a session change.
type AuthEvent string

const (
	EventInitialSession AuthEvent = "INITIAL_SESSION"
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

// Listener receives session changes. session is nil after a sign-out.
type Listener func(event AuthEvent, session *Session)

// Auth is the set of auth capabilities the session manager consumes.
type Auth interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// SignUp registers an identity. The returned session is nil while the email
	// still needs confirming.
	SignUp(ctx context.Context, email, password, redirectTo string) (*Session, error)
	SignOut(ctx context.Context) error
	GetSession(ctx context.Context) (*Session, error)
	OnSessionChange(fn Listener) (unsubscribe func())
	UpdatePassword(ctx context.Context, password string) error
	DeleteUser(ctx context.Context) error
	Refresh(ctx context.Context) (*Session, error)
}

// AuthReason classifies auth failures.
type AuthReason string

const (
	ReasonInvalidCredentials AuthReason = "invalid_credentials"
	ReasonEmailNotConfirmed  AuthReason = "email_not_confirmed"
	ReasonWeakPassword       AuthReason = "weak_password"
	ReasonUserAlreadyExists  AuthReason = "user_already_exists"
	ReasonInvalidEmail       AuthReason = "invalid_email"
	ReasonNoSession          AuthReason = "no_session"
	ReasonUnavailable        AuthReason = "unavailable"
)

// AuthError is returned by the auth capabilities.
type AuthError struct {
	Reason AuthReason
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return string(e.Reason) + ": " + e.Err.Error()
	}
	return string(e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Message is the user-facing text for the failure.
func (e *AuthError) Message() string { return MessageFor(e.Reason) }

func authErr(reason AuthReason, err error) *AuthError {
	return &AuthError{Reason: reason, Err: err}
}

// ReasonOf extracts the AuthReason from err, or ReasonUnavailable for anything else.
func ReasonOf(err error) AuthReason {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ReasonUnavailable
}

// MessageFor returns the localized generic message for reason.
func MessageFor(reason AuthReason) string {
	switch reason {
	case ReasonInvalidCredentials:
		return "Email ou mot de passe incorrect"
	case ReasonEmailNotConfirmed:
		return "Veuillez confirmer votre email avant de vous connecter"
	case ReasonWeakPassword:
		return "Le mot de passe doit contenir au moins 6 caractères"
	case ReasonUserAlreadyExists:
		return "Un compte existe déjà avec cet email"
	case ReasonInvalidEmail:
		return "Adresse email invalide"
	case ReasonNoSession:
		return "Votre session a expiré. Veuillez vous reconnecter."
	default:
		return "Une erreur est survenue. Veuillez réessayer."
	}
}
