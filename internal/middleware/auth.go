package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"restaurant-tab-service/internal/auth"
	"restaurant-tab-service/internal/orders"
)

type contextKey string

const authContextKey contextKey = "authContext"

type AuthContext struct {
	UserID      string
	Role        auth.UserRole
	Permissions []string
}

func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	value := ctx.Value(authContextKey)
	if value == nil {
		return nil, false
	}
	ac, ok := value.(*AuthContext)
	return ac, ok
}

// ActorFromContext returns the authenticated caller as an order engine actor.
// Requests without staff credentials act as customers.
func ActorFromContext(ctx context.Context) orders.Actor {
	authCtx, ok := GetAuthContext(ctx)
	if !ok || authCtx == nil {
		return orders.Actor{Role: orders.RoleCustomer}
	}
	return orders.Actor{UserID: authCtx.UserID, Role: authCtx.Role.OrderRole()}
}

func writeAuthError(w http.ResponseWriter, status int, code string, message string) {
	writeAuthErrorDebug(w, status, code, message, "")
}

func writeAuthErrorDebug(w http.ResponseWriter, status int, code string, message string, debug string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload := map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	}

	if os.Getenv("APP_ENV") == "development" && strings.TrimSpace(debug) != "" {
		payload["debug"] = debug
	}

	_ = json.NewEncoder(w).Encode(payload)
}

// StaffAuth admits ADMIN and STAFF bearer tokens and enforces the per-path
// permission from auth.GetPermissionForAPI.
func StaffAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ParseBearerToken(r.Header.Get("Authorization"))
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			claims, err := auth.VerifyAccessToken(token, jwtSecret)
			if err != nil {
				writeAuthErrorDebug(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token", err.Error())
				return
			}

			if !claims.Role.IsStaff() {
				writeAuthError(w, http.StatusForbidden, "FORBIDDEN", "Staff access required")
				return
			}

			if perm := auth.GetPermissionForAPI(r.URL.Path, r.Method); perm != nil {
				if !auth.HasPermission(claims.Role, claims.Permissions, *perm) {
					writeAuthError(w, http.StatusForbidden, "FORBIDDEN", "Access denied. You don't have permission for this feature.")
					return
				}
			}

			authCtx := &AuthContext{
				UserID:      claims.UserID,
				Role:        claims.Role,
				Permissions: claims.Permissions,
			}
			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), authCtx)))
		})
	}
}
