package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stayhub/stayhub-backend/pkg/logger"
)

func newLoggedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger.InitStructured("production")
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/conversations/:conversation_id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequestLogger_GeneratesRequestID(t *testing.T) {
	r := newLoggedRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/conversations/general_a_b", nil)
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); len(got) != 8 {
		t.Errorf("expected generated 8-char request id, got %q", got)
	}
}

func TestRequestLogger_EchoesProvidedRequestID(t *testing.T) {
	r := newLoggedRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/conversations/general_a_b", nil)
	req.Header.Set("X-Request-ID", "client-id-42")
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-id-42" {
		t.Errorf("expected echoed request id, got %q", got)
	}
}
