package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
)

func newRouter(buf *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := hclog.New(&hclog.LoggerOptions{Level: hclog.Debug, Output: buf})

	r := gin.New()
	r.Use(RequestLogger(logger), ErrorLogger(logger), CORS())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(errors.New("engine unreachable"))
		c.Status(http.StatusBadGateway)
	})
	return r
}

func TestRequestLogger_SkipsHealth(t *testing.T) {
	var buf bytes.Buffer
	r := newRouter(&buf)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, buf.String(), "HTTP Response")
}

func TestRequestLogger_LogsErrors(t *testing.T) {
	var buf bytes.Buffer
	r := newRouter(&buf)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail?x=1", nil))

	out := buf.String()
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, out, "[ERROR] HTTP Response")
	assert.Contains(t, out, "status=502")
	assert.Contains(t, out, "Request error")
	assert.Contains(t, out, "engine unreachable")
}

func TestCORS_Preflight(t *testing.T) {
	var buf bytes.Buffer
	r := newRouter(&buf)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/anything", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
