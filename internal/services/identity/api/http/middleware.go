package http

import (
	"net/http"
	"strings"

	apperrors "github.com/quillhub/quillhub.press/internal/platform/errors"
	"github.com/quillhub/quillhub.press/internal/platform/httpjson"
	"github.com/quillhub/quillhub.press/internal/platform/requestctx"
	"github.com/quillhub/quillhub.press/internal/services/identity/token"
)

// Middleware wraps a handler with a request precondition.
type Middleware func(http.Handler) http.Handler

// RequireAuth verifies the bearer token and stores the resulting principal
// in the request context.
func RequireAuth(tokens *token.Issuer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := bearerPrincipal(tokens, r)
			if err != nil {
				httpjson.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(requestctx.WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAdmin verifies the bearer token and rejects non-administrators.
func RequireAdmin(tokens *token.Issuer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := bearerPrincipal(tokens, r)
			if err != nil {
				httpjson.WriteError(w, err)
				return
			}
			if !principal.IsAdmin() {
				httpjson.WriteError(w, apperrors.New(apperrors.CodePermissionDenied, "administrator role required"))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestctx.WithPrincipal(r.Context(), principal)))
		})
	}
}

func bearerPrincipal(tokens *token.Issuer, r *http.Request) (requestctx.Principal, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, rest, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return requestctx.Principal{}, apperrors.New(apperrors.CodeTokenInvalid, "bearer token required")
	}
	return tokens.Verify(rest)
}
