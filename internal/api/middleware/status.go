package middleware

import appErr "github.com/graphilearn/engine/pkg/errors"

func statusFor(err error) int { return appErr.HTTPStatus(appErr.CodeOf(err)) }
