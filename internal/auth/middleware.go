package auth

import (
	"context"
	"fmt"
	"net/http"

	"ms-petevents/internal/logger"
	"ms-petevents/internal/models"
	"ms-petevents/internal/utils"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	claimsKey contextKey = "claims"
)

// TokenVerifier turns a raw bearer token into verified identity claims.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*models.Claims, error)
}

func Middleware(verifier TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				log.LogSecurity("AUTH_MISSING", "", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("unauthenticated", err.Error()))
				return
			}

			claims, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("AUTH_INVALID", "", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("unauthenticated", "invalid token"))
				return
			}
			if claims.Subject == "" {
				log.LogSecurity("AUTH_INVALID", "", fmt.Sprintf("%s %s: token has no subject", r.Method, r.URL.Path))
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("unauthenticated", "token has no subject"))
				return
			}

			ctx := WithClaims(r.Context(), *claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalMiddleware attaches the identity when a valid bearer token is
// present and lets anonymous requests through unchanged.
func OptionalMiddleware(verifier TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := verifier.Verify(r.Context(), rawToken)
			if err != nil || claims.Subject == "" {
				log.Debug("AUTH", fmt.Sprintf("ignoring unusable token on %s %s", r.Method, r.URL.Path))
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), *claims)))
		})
	}
}

// WithUserID stores the acting user in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// WithClaims stores the verified claims and their subject in ctx.
func WithClaims(ctx context.Context, claims models.Claims) context.Context {
	ctx = context.WithValue(ctx, claimsKey, claims)
	return WithUserID(ctx, claims.Subject)
}

// UserID returns the acting user, or "" when the request is anonymous.
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}

func ClaimsFromContext(ctx context.Context) models.Claims {
	if c, ok := ctx.Value(claimsKey).(models.Claims); ok {
		return c
	}
	return models.Claims{Subject: UserID(ctx)}
}
