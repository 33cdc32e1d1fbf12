package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stayhub/stayhub-backend/pkg/jwt"
)

func newAuthRouter(manager *jwt.Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWTAuth(manager))
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userID": GetUserID(c), "role": GetUserRole(c)})
	})
	return r
}

func TestJWTAuth_ValidToken(t *testing.T) {
	manager := jwt.NewManager("test-secret", time.Hour)
	r := newAuthRouter(manager)

	token, err := manager.GenerateToken("guest1", "guest", "Alice")
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	manager := jwt.NewManager("test-secret", time.Hour)
	r := newAuthRouter(manager)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestJWTAuth_MalformedHeader(t *testing.T) {
	manager := jwt.NewManager("test-secret", time.Hour)
	r := newAuthRouter(manager)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Token abc123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestJWTAuth_WrongSecret(t *testing.T) {
	manager := jwt.NewManager("test-secret", time.Hour)
	other := jwt.NewManager("other-secret", time.Hour)
	r := newAuthRouter(manager)

	token, _ := other.GenerateToken("guest1", "guest", "Alice")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestJWTAuth_ExpiredToken(t *testing.T) {
	manager := jwt.NewManager("test-secret", -time.Minute)
	r := newAuthRouter(manager)

	token, _ := manager.GenerateToken("guest1", "guest", "Alice")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}
