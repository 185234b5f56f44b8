package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/graphilearn/engine/internal/api/types"
	appErr "github.com/graphilearn/engine/pkg/errors"
	"github.com/graphilearn/engine/pkg/logger"
	"go.uber.org/zap"
)

// Recovery logs panics and returns 500 with a generic message.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.L().Error("panic recovered", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(types.APIResponse{
					Error: &types.APIError{Code: string(appErr.CodeInternal), Message: http.StatusText(http.StatusInternalServerError)},
					Meta:  &types.Meta{RequestID: GetRequestID(r.Context())},
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
