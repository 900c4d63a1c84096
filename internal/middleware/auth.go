package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/mediline/telehealth-server-go/internal/errors"
	"github.com/mediline/telehealth-server-go/internal/httputil"
)

type contextKey string

const UserContextKey contextKey = "user"

// User is the authenticated identity placed in the request context.
type User struct {
	ID   string
	Role string
}

func GetUser(ctx context.Context) *User {
	if user, ok := ctx.Value(UserContextKey).(*User); ok {
		return user
	}
	return nil
}

type AuthMiddleware struct {
	secret []byte
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

// Handler authenticates the request from a bearer token (or ?token= for
// websocket clients, which cannot set headers) and stores the user in the
// context.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httputil.WriteError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		user, err := m.Authenticate(token)
		if err != nil {
			log.Warn().Err(err).Msg("auth middleware: invalid token attempt")
			httputil.WriteError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate validates a JWT and returns the identity it carries.
func (m *AuthMiddleware) Authenticate(tokenString string) (*User, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.InvalidToken("Unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.InvalidToken("Invalid or expired token").WithCause(err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, apperrors.InvalidToken("Token has no subject")
	}

	role, _ := claims["role"].(string)
	return &User{ID: sub, Role: role}, nil
}

func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
