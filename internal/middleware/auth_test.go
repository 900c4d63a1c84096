package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-for-auth-middleware"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestAuthenticate(t *testing.T) {
	m := NewAuthMiddleware(testSecret)

	t.Run("accepts valid token", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"sub":  "user-1",
			"role": "provider",
			"exp":  time.Now().Add(time.Hour).Unix(),
		})

		user, err := m.Authenticate(token)

		require.NoError(t, err)
		assert.Equal(t, "user-1", user.ID)
		assert.Equal(t, "provider", user.Role)
	})

	t.Run("accepts token without role", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{"sub": "user-1"})

		user, err := m.Authenticate(token)

		require.NoError(t, err)
		assert.Empty(t, user.Role)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"sub": "user-1",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		_, err := m.Authenticate(token)
		assert.Error(t, err)
	})

	t.Run("rejects token signed with another secret", func(t *testing.T) {
		other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})
		signed, err := other.SignedString([]byte("wrong-secret"))
		require.NoError(t, err)

		_, err = m.Authenticate(signed)
		assert.Error(t, err)
	})

	t.Run("rejects token without subject", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{"role": "provider"})

		_, err := m.Authenticate(token)
		assert.Error(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := m.Authenticate("not-a-jwt")
		assert.Error(t, err)
	})
}

func TestAuthMiddlewareHandler(t *testing.T) {
	m := NewAuthMiddleware(testSecret)

	nextUser := func() (http.Handler, **User) {
		var captured *User
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = GetUser(r.Context())
			w.WriteHeader(http.StatusOK)
		}), &captured
	}

	t.Run("accepts bearer header", func(t *testing.T) {
		next, captured := nextUser()
		handler := m.Handler(next)
		token := signToken(t, jwt.MapClaims{"sub": "user-1"})

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, *captured)
		assert.Equal(t, "user-1", (*captured).ID)
	})

	t.Run("accepts token query parameter", func(t *testing.T) {
		next, captured := nextUser()
		handler := m.Handler(next)
		token := signToken(t, jwt.MapClaims{"sub": "user-2"})

		req := httptest.NewRequest("GET", "/ws?token="+token, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, *captured)
		assert.Equal(t, "user-2", (*captured).ID)
	})

	t.Run("rejects missing token", func(t *testing.T) {
		next, _ := nextUser()
		handler := m.Handler(next)

		req := httptest.NewRequest("GET", "/test", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects invalid token", func(t *testing.T) {
		next, _ := nextUser()
		handler := m.Handler(next)

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGetUser(t *testing.T) {
	t.Run("returns nil on empty context", func(t *testing.T) {
		assert.Nil(t, GetUser(context.Background()))
	})
}
