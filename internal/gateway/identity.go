package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/graphilearn/engine/internal/models"
	"github.com/graphilearn/engine/internal/repository"
	appErr "github.com/graphilearn/engine/pkg/errors"
	"github.com/graphilearn/engine/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password the identity server accepts.
const MinPasswordLength = 6

// Confirmation is a pending email confirmation for a new identity.
type Confirmation struct {
	UserID     uuid.UUID
	Email      string
	Token      string
	RedirectTo string
}

// ConfirmationSender delivers sign-up confirmation mails.
type ConfirmationSender interface {
	SendConfirmation(ctx context.Context, c Confirmation) error
}

type IdentityOptions struct {
	Secret   []byte
	TokenTTL time.Duration
	// AutoConfirm skips email confirmation: sign-up returns a live session.
	AutoConfirm   bool
	Confirmations ConfirmationSender
	Now           func() time.Time
}

// Identity is the password and token server backing every Client.
type Identity struct {
	users       repository.AuthUserRepository
	secret      []byte
	ttl         time.Duration
	autoConfirm bool
	sender      ConfirmationSender
	now         func() time.Time
	validate    *validator.Validate
}

type tokenClaims struct {
	Email   string `json:"email"`
	Version int    `json:"ver"`
	jwt.RegisteredClaims
}

func NewIdentity(users repository.AuthUserRepository, opts IdentityOptions) *Identity {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Identity{
		users:       users,
		secret:      opts.Secret,
		ttl:         opts.TokenTTL,
		autoConfirm: opts.AutoConfirm,
		sender:      opts.Confirmations,
		now:         opts.Now,
		validate:    validator.New(),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates an identity. With confirmation enabled no session is returned and a
// confirmation mail is dispatched instead.
func (i *Identity) SignUp(ctx context.Context, email, password, redirectTo string) (*Session, error) {
	email = normalizeEmail(email)
	if err := i.validate.Var(email, "required,email"); err != nil {
		return nil, authErr(ReasonInvalidEmail, err)
	}
	if len(password) < MinPasswordLength {
		return nil, authErr(ReasonWeakPassword, nil)
	}

	ph, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, authErr(ReasonUnavailable, fmt.Errorf("hash password: %w", err))
	}

	now := i.now()
	user := &models.AuthUser{Email: email, PasswordHash: string(ph)}
	if i.autoConfirm {
		user.ConfirmedAt = &now
	} else {
		token := uuid.NewString()
		user.ConfirmationToken = &token
	}

	if err := i.users.Create(ctx, user); err != nil {
		if appErr.IsCode(err, appErr.CodeAlreadyExists) {
			return nil, authErr(ReasonUserAlreadyExists, err)
		}
		return nil, authErr(ReasonUnavailable, err)
	}
	logger.L().Info("identity created", zap.String("user_id", user.ID.String()), zap.Bool("confirmed", user.Confirmed()))

	if user.Confirmed() {
		return i.issue(user)
	}

	if i.sender != nil {
		c := Confirmation{UserID: user.ID, Email: user.Email, Token: *user.ConfirmationToken, RedirectTo: redirectTo}
		if err := i.sender.SendConfirmation(ctx, c); err != nil {
			logger.L().Error("dispatch confirmation failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		}
	}
	return nil, nil
}

func (i *Identity) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var user models.AuthUser
	if err := i.users.GetByEmail(ctx, normalizeEmail(email), &user); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, authErr(ReasonInvalidCredentials, nil)
		}
		return nil, authErr(ReasonUnavailable, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, authErr(ReasonInvalidCredentials, nil)
	}
	if !user.Confirmed() && !i.autoConfirm {
		return nil, authErr(ReasonEmailNotConfirmed, nil)
	}
	return i.issue(&user)
}

// Confirm consumes a confirmation token.
func (i *Identity) Confirm(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, appErr.New(appErr.CodeInvalid, "confirmation token is required")
	}
	u, err := i.users.Confirm(ctx, token, i.now())
	if err != nil {
		return nil, err
	}
	logger.L().Info("identity confirmed", zap.String("user_id", u.ID.String()))
	return toUser(u), nil
}

// Verify checks an access token's signature and expiry only.
func (i *Identity) Verify(token string) (*User, time.Time, error) {
	c, id, err := i.parse(token)
	if err != nil {
		return nil, time.Time{}, err
	}
	return &User{ID: id, Email: c.Email}, c.ExpiresAt.Time, nil
}

// Restore turns an access token back into a session. Beyond Verify, the identity
// must still exist and the token must not have been revoked.
func (i *Identity) Restore(ctx context.Context, token string) (*Session, error) {
	c, id, err := i.parse(token)
	if err != nil {
		return nil, err
	}
	var user models.AuthUser
	if err := i.users.GetByID(ctx, id, &user); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, authErr(ReasonNoSession, err)
		}
		return nil, authErr(ReasonUnavailable, err)
	}
	if c.Version != user.TokenVersion {
		return nil, authErr(ReasonNoSession, errors.New("token revoked"))
	}
	return &Session{AccessToken: token, ExpiresAt: c.ExpiresAt.Time, User: *toUser(&user)}, nil
}

func (i *Identity) parse(token string) (*tokenClaims, uuid.UUID, error) {
	var c tokenClaims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, uuid.Nil, authErr(ReasonNoSession, err)
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, uuid.Nil, authErr(ReasonNoSession, err)
	}
	return &c, id, nil
}

// Reissue looks the identity up again and issues a fresh token for it.
func (i *Identity) Reissue(ctx context.Context, id uuid.UUID) (*Session, error) {
	var user models.AuthUser
	if err := i.users.GetByID(ctx, id, &user); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, authErr(ReasonNoSession, err)
		}
		return nil, authErr(ReasonUnavailable, err)
	}
	return i.issue(&user)
}

// Revoke ends every session of the identity server side: tokens issued before the
// call stop restoring.
func (i *Identity) Revoke(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return authErr(ReasonUnavailable, err)
	}
	if err := i.users.BumpTokenVersion(ctx, id); err != nil {
		return authErr(ReasonUnavailable, err)
	}
	return nil
}

func (i *Identity) UpdatePassword(ctx context.Context, id uuid.UUID, password string) error {
	if len(password) < MinPasswordLength {
		return authErr(ReasonWeakPassword, nil)
	}
	ph, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return authErr(ReasonUnavailable, fmt.Errorf("hash password: %w", err))
	}
	if err := i.users.UpdatePasswordHash(ctx, id, string(ph)); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return authErr(ReasonNoSession, err)
		}
		return authErr(ReasonUnavailable, err)
	}
	return nil
}

// DeleteUser removes the identity along with its profile and progress.
func (i *Identity) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := i.users.DeleteCascade(ctx, id); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return authErr(ReasonNoSession, err)
		}
		return authErr(ReasonUnavailable, err)
	}
	logger.L().Info("identity deleted", zap.String("user_id", id.String()))
	return nil
}

func (i *Identity) issue(u *models.AuthUser) (*Session, error) {
	if len(i.secret) == 0 {
		return nil, authErr(ReasonUnavailable, errors.New("token secret is not configured"))
	}
	now := i.now()
	exp := now.Add(i.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Email:   u.Email,
		Version: u.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return nil, authErr(ReasonUnavailable, fmt.Errorf("sign token: %w", err))
	}
	return &Session{AccessToken: signed, ExpiresAt: exp, User: *toUser(u)}, nil
}

func toUser(u *models.AuthUser) *User {
	return &User{ID: u.ID, Email: u.Email, ConfirmedAt: u.ConfirmedAt}
}
