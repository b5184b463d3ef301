package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/parkyard/parkyard/internal/platform/httpx"
	"github.com/parkyard/parkyard/internal/shared"
)

// Resolver maps a bearer token to an operator.
type Resolver interface {
	Resolve(ctx context.Context, token string) (shared.Operator, error)
}

// Authenticate rejects requests without a valid bearer token and stores the
// operator in the request context.
func Authenticate(resolver Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op, err := resolver.Resolve(r.Context(), shared.BearerToken(r))
			if err != nil {
				if shared.KindOf(err) == shared.KindInternal && logger != nil {
					logger.Error("resolve token", slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithOperator(r.Context(), op)))
		})
	}
}

// RequireRole lets the request through only when the operator's role is at least min.
func RequireRole(min shared.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := CheckRole(r.Context(), min); err != nil {
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CheckRole is the non-HTTP form of RequireRole.
func CheckRole(ctx context.Context, min shared.Role) error {
	op, ok := shared.OperatorFromContext(ctx)
	if !ok {
		return shared.ErrTokenMissing
	}
	if !op.Role.AtLeast(min) {
		return shared.ErrForbidden.WithDetails(map[string]any{"required": string(min), "role": string(op.Role)})
	}
	return nil
}
