package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestRouter(logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddleware(logger), Recovery(logger))
	return router
}

func TestGinMiddleware_StatusLevels(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel zapcore.Level
	}{
		{name: "ok", status: http.StatusOK, wantLevel: zapcore.InfoLevel},
		{name: "client error", status: http.StatusConflict, wantLevel: zapcore.WarnLevel},
		{name: "server error", status: http.StatusBadGateway, wantLevel: zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, recorded := observer.New(zapcore.InfoLevel)
			router := newTestRouter(zap.New(core))
			router.POST("/api/v1/sync/orders", func(c *gin.Context) { c.Status(tt.status) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sync/orders?days=3", nil))

			require.Equal(t, 1, recorded.Len())
			entry := recorded.All()[0]
			assert.Equal(t, "HTTP Request", entry.Message)
			assert.Equal(t, tt.wantLevel, entry.Level)
			fields := entry.ContextMap()
			assert.Equal(t, int64(tt.status), fields["status"])
			assert.Equal(t, "days=3", fields["query"])
			assert.Equal(t, "/api/v1/sync/orders", fields["path"])
		})
	}
}

func TestGinMiddleware_RequestID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	router := newTestRouter(zap.New(core))

	var fromCtx string
	router.GET("/runs", func(c *gin.Context) {
		fromCtx = GetRequestID(c.Request.Context())
		L(c.Request.Context()).Info("listing runs")
		c.Status(http.StatusOK)
	})

	t.Run("propagates caller ID", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/runs", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		router.ServeHTTP(w, req)

		assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "req-42", fromCtx)
		for _, entry := range recorded.TakeAll() {
			assert.Equal(t, "req-42", entry.ContextMap()["request_id"])
		}
	})

	t.Run("generates one when missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs", nil))

		assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
		assert.Equal(t, w.Header().Get(RequestIDHeader), fromCtx)
	})
}

func TestRecovery(t *testing.T) {
	core, recorded := observer.New(zapcore.ErrorLevel)
	router := newTestRouter(zap.New(core))
	router.GET("/panic", func(c *gin.Context) { panic("sync exploded") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	messages := make([]string, 0, recorded.Len())
	for _, e := range recorded.All() {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "Panic recovered")
}
