package types

import (
	"errors"

	appErr "github.com/graphilearn/engine/pkg/errors"
)

func FromAppError(err error) *APIError {
	if err == nil {
		return nil
	}
	var e *appErr.AppError
	if errors.As(err, &e) {
		return &APIError{Code: string(e.Code), Message: e.Message}
	}
	return &APIError{Code: string(appErr.CodeUnknown), Message: "Une erreur est survenue. Veuillez réessayer."}
}

// RedirectFor returns the route an error sends the client to, or "".
func RedirectFor(err error) string {
	switch appErr.CodeOf(err) {
	case appErr.CodeUnauthorized:
		return RouteAuth
	case appErr.CodeForbidden:
		return RouteHome
	default:
		return ""
	}
}
