package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"ms-petevents/internal/models"
)

// ExtractTokenFromRequest extracts a bearer token from the Authorization header.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// HS256Verifier validates tokens signed with a shared secret. Used for local development.
type HS256Verifier struct {
	secret []byte
}

func NewHS256Verifier(secret string) (*HS256Verifier, error) {
	if secret == "" {
		return nil, errors.New("JWT secret not configured")
	}
	return &HS256Verifier{secret: []byte(secret)}, nil
}

func (v *HS256Verifier) Verify(_ context.Context, rawToken string) (*models.Claims, error) {
	token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return claimsFromMap(mapClaims)
}

// Sign issues an HS256 token for the given claims. Used by tests and local tooling.
func (v *HS256Verifier) Sign(claims models.Claims, expiresAt int64) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     claims.Subject,
		"name":    claims.Name,
		"email":   claims.Email,
		"picture": claims.Picture,
		"exp":     expiresAt,
	})
	return token.SignedString(v.secret)
}

// ExtractUserIDFromJWT reads the subject claim without validating the signature.
func ExtractUserIDFromJWT(tokenString string) (string, error) {
	if tokenString == "" {
		return "", errors.New("empty token")
	}

	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("subject claim not found in token")
	}

	return sub, nil
}

func claimsFromMap(m jwt.MapClaims) (*models.Claims, error) {
	sub, err := m.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.New("subject claim not found in token")
	}
	claims := &models.Claims{Subject: sub}
	claims.Name, _ = m["name"].(string)
	claims.Email, _ = m["email"].(string)
	claims.Picture, _ = m["picture"].(string)
	return claims, nil
}
