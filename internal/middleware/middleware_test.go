package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuterank/internal/security"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Logger(zerolog.Nop()), Recovery(zerolog.Nop()), CORS(nil))
	r.GET("/me", Authenticate(secret), func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"uid": id.UserID})
	})
	r.GET("/admin", Authenticate(secret), RequireAdmin(func(id int64) bool { return id == 1 }), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func bearer(t *testing.T, uid int64) string {
	t.Helper()
	tok, err := security.GenerateIdentityToken(secret, uid, "", security.RoleUser, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func do(r http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	req.Header.Set("Origin", "https://example.org")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	r := newEngine()

	w := do(r, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing_token")

	w = do(r, http.MethodGet, "/me", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_token")

	w = do(r, http.MethodGet, "/me", bearer(t, 7))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"uid":7}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
	assert.Equal(t, "https://example.org", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequireAdmin(t *testing.T) {
	r := newEngine()
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/admin", bearer(t, 7)).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/admin", bearer(t, 1)).Code)
}

func TestRecoveryAndPreflight(t *testing.T) {
	r := newEngine()

	w := do(r, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_error")

	w = do(r, http.MethodOptions, "/me", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequestID_KeepsIncomingHeader(t *testing.T) {
	r := newEngine()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
}
