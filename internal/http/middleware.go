package http

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

type identityKey struct{}

// requireAuth resolves the bearer token before next runs. Requests without
// a valid token never reach the handler.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			ErrorResponse(http.StatusUnauthorized, "Authentication required").
				Header("WWW-Authenticate", `Bearer realm="fintrack"`).
				Write(w)
			return
		}
		id, err := s.tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			ErrorResponse(http.StatusUnauthorized, core.ErrInvalidToken.Error()).
				Header("WWW-Authenticate", `Bearer realm="fintrack", error="invalid_token"`).
				Write(w)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, id)
		logger := applog.FromContext(ctx).With(applog.FieldUserID, id.UserID)
		ctx = context.WithValue(ctx, applog.LoggerContextKey, logger)
		next(w, r.WithContext(ctx))
	}
}

// userID is the authenticated caller. Only valid behind requireAuth.
func userID(r *http.Request) int64 {
	id, _ := r.Context().Value(identityKey{}).(auth.Identity)
	return id.UserID
}

// recoverPanics turns a handler panic into a 500 envelope.
func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				applog.FromContext(r.Context()).ErrorContext(r.Context(), "Handler panic",
					"panic", rec,
					applog.FieldPath, r.URL.Path,
					"stack", string(debug.Stack()))
				ErrorResponse(http.StatusInternalServerError, internalErrorMessage).Write(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
