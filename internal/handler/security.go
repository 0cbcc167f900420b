package handler

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// apiKeyHeader carries the caller's API key.
const apiKeyHeader = "api_key"

// requireScope authenticates the api_key header and checks that the key was
// granted scope. It is a no-op when no Authenticator is configured.
func (h *Handler) requireScope(scope string, next http.HandlerFunc) http.HandlerFunc {
	if h.auth == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := h.auth.Authenticate(r.Context(), r.Header.Get(apiKeyHeader))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		if !info.HasScope(scope) {
			writeError(w, http.StatusForbidden, "forbidden", map[string]string{"scope": scope})
			return
		}
		ctx := zctx.With(r.Context(), zap.String("api_key", info.Name))
		next(w, r.WithContext(ctx))
	}
}
