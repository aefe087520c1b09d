package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func TestAuthRequired(t *testing.T) {
	tm := NewTokenManager(testSecret, nil)

	app := fiber.New()
	app.Get("/test", AuthRequired(tm), func(c *fiber.Ctx) error {
		userID, _ := UserID(c)
		return c.JSON(fiber.Map{"userID": userID})
	})

	valid, err := tm.Issue(123)
	require.NoError(t, err)

	foreign := func(claims jwt.MapClaims) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		s, _ := token.SignedString([]byte(testSecret))
		return s
	}

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedUserID uint
	}{
		{"happy path", "Bearer " + valid, http.StatusOK, 123},
		{"missing header", "", http.StatusUnauthorized, 0},
		{"wrong scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, 0},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, 0},
		{"expired", "Bearer " + foreign(jwt.MapClaims{
			"sub": "5", "iss": tokenIssuer, "aud": tokenAudience,
			"exp": time.Now().Add(-time.Hour).Unix(),
		}), http.StatusUnauthorized, 0},
		{"wrong audience", "Bearer " + foreign(jwt.MapClaims{
			"sub": "5", "iss": tokenIssuer, "aud": "someone-else",
			"exp": time.Now().Add(time.Hour).Unix(),
		}), http.StatusUnauthorized, 0},
		{"non numeric subject", "Bearer " + foreign(jwt.MapClaims{
			"sub": "alice@example.com", "iss": tokenIssuer, "aud": tokenAudience,
			"exp": time.Now().Add(time.Hour).Unix(),
		}), http.StatusUnauthorized, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var body map[string]any
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, float64(tt.expectedUserID), body["userID"])
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	tm := NewTokenManager(testSecret, nil)
	app := fiber.New()
	app.Get("/", OptionalAuth(tm), func(c *fiber.Ctx) error {
		id, ok := UserID(c)
		return c.JSON(fiber.Map{"id": id, "ok": ok})
	})

	token, err := tm.Issue(42)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(42), body["id"])
	assert.Equal(t, true, body["ok"])

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer broken")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, false, body["ok"])
}

func TestTokenManager_Revoke(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	tm := NewTokenManager(testSecret, rdb)
	ctx := context.Background()

	token, err := tm.Issue(7)
	require.NoError(t, err)

	claims, err := tm.Parse(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.NotEmpty(t, claims.JTI)

	require.NoError(t, tm.Revoke(ctx, claims))
	assert.True(t, mr.Exists("blacklist:"+claims.JTI))

	_, err = tm.Parse(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
