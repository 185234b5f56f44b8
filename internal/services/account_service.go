package services

import (
	"context"

	"github.com/graphilearn/engine/internal/gateway"
	"github.com/graphilearn/engine/internal/notify"
	"github.com/graphilearn/engine/internal/session"
	appErr "github.com/graphilearn/engine/pkg/errors"
	"github.com/graphilearn/engine/pkg/logger"
	"go.uber.org/zap"
)

// DeleteConfirmationWord must be typed to delete an account.
const DeleteConfirmationWord = "SUPPRIMER"

// AccountSession is the slice of a session.Manager the account settings need.
type AccountSession interface {
	Viewer() session.Viewer
	UpdatePassword(ctx context.Context, password string) error
	DeleteUser(ctx context.Context) error
}

type AccountService interface {
	ChangePassword(ctx context.Context, s AccountSession, newPassword, confirmPassword string) error
	// DeleteAccount removes the user's progress, profile and identity, then signs out.
	DeleteAccount(ctx context.Context, s AccountSession, confirmation string) error
}

type accountService struct {
	notifier notify.Notifier
}

func NewAccountService(notifier notify.Notifier) AccountService {
	return &accountService{notifier: notifier}
}

var _ AccountService = (*accountService)(nil)

func (a *accountService) ChangePassword(ctx context.Context, s AccountSession, newPassword, confirmPassword string) error {
	v := s.Viewer()
	if err := v.RequireUser(); err != nil {
		return err
	}
	sink := notify.For(a.notifier, v.Audience)

	if newPassword != confirmPassword {
		msg := "Les nouveaux mots de passe ne correspondent pas"
		sink.Notify(ctx, notify.Failure("Erreur", msg))
		return appErr.New(appErr.CodeInvalid, msg)
	}
	if len(newPassword) < gateway.MinPasswordLength {
		msg := gateway.MessageFor(gateway.ReasonWeakPassword)
		sink.Notify(ctx, notify.Failure("Erreur", msg))
		return appErr.New(appErr.CodeInvalid, msg)
	}

	if err := s.UpdatePassword(ctx, newPassword); err != nil {
		logger.L().Warn("update password failed", zap.String("user_id", v.UserID.String()), zap.Error(err))
		msg := gateway.MessageFor(gateway.ReasonOf(err))
		sink.Notify(ctx, notify.Failure("Erreur", msg))
		return appErr.Wrap(err, AuthErrorCode(err), msg)
	}

	logger.L().Info("password changed", zap.String("user_id", v.UserID.String()))
	sink.Notify(ctx, notify.Info("Succès", "Mot de passe modifié avec succès"))
	return nil
}

func (a *accountService) DeleteAccount(ctx context.Context, s AccountSession, confirmation string) error {
	v := s.Viewer()
	if err := v.RequireUser(); err != nil {
		return err
	}
	sink := notify.For(a.notifier, v.Audience)

	if confirmation != DeleteConfirmationWord {
		msg := "Veuillez taper 'SUPPRIMER' pour confirmer"
		sink.Notify(ctx, notify.Failure("Erreur", msg))
		return appErr.New(appErr.CodeConfirmationRequired, msg)
	}

	if err := s.DeleteUser(ctx); err != nil {
		logger.L().Error("delete account failed", zap.String("user_id", v.UserID.String()), zap.Error(err))
		sink.Notify(ctx, notify.Failure("Erreur", "Impossible de supprimer le compte"))
		return appErr.Wrap(err, AuthErrorCode(err), "delete account failed")
	}

	logger.L().Info("account deleted", zap.String("user_id", v.UserID.String()))
	sink.Notify(ctx, notify.Info("Compte supprimé", "Votre compte a été supprimé avec succès"))
	return nil
}

// AuthErrorCode maps a gateway auth failure onto an error code.
func AuthErrorCode(err error) appErr.Code {
	switch gateway.ReasonOf(err) {
	case gateway.ReasonWeakPassword, gateway.ReasonInvalidEmail:
		return appErr.CodeInvalid
	case gateway.ReasonNoSession, gateway.ReasonInvalidCredentials, gateway.ReasonEmailNotConfirmed:
		return appErr.CodeUnauthorized
	case gateway.ReasonUserAlreadyExists:
		return appErr.CodeAlreadyExists
	default:
		return appErr.CodeUnavailable
	}
}
