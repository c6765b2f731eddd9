package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redtrack-io/redtrack/internal/auth"
	"github.com/redtrack-io/redtrack/internal/metrics"
)

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authMiddleware := NewAuthMiddleware(jwtManager)

	router := gin.New()
	router.Use(authMiddleware.RequireAuth())
	router.GET("/protected", func(c *gin.Context) {
		userID, ok := UserID(c)
		require.True(t, ok)
		c.JSON(200, gin.H{"user_id": userID})
	})

	serve := func(header string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("blocks unauthenticated requests", func(t *testing.T) {
		w := serve("")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Missing authorization token")
		assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
	})

	t.Run("allows authenticated requests", func(t *testing.T) {
		token, err := jwtManager.GenerateToken(123, "jsmith", false, auth.NewPermissionSet(auth.PermissionViewIssues))
		require.NoError(t, err)

		w := serve("Bearer " + token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user_id":123}`, w.Body.String())
	})

	t.Run("rejects invalid token", func(t *testing.T) {
		w := serve("Bearer not-a-token")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid or expired token")
	})

	t.Run("rejects token signed with another key", func(t *testing.T) {
		other := auth.NewJWTManager("other-secret", time.Hour)
		token, err := other.GenerateToken(1, "admin", true, auth.NewPermissionSet())
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, serve("Bearer "+token).Code)
	})

	t.Run("rejects other schemes", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve("Basic dXNlcjpwdw==").Code)
	})
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) {
		c.String(200, GetRequestID(c))
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)
	generated := w.Header().Get("X-Request-ID")
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Metrics())
	router.GET("/issues/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	counter := metrics.HTTPRequests.WithLabelValues("GET", "/issues/:id", "204")
	before := testutil.ToFloat64(counter)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/issues/42", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, 1.0, testutil.ToFloat64(counter)-before)
}
