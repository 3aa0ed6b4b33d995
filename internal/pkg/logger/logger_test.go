package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "default config", config: DefaultConfig()},
		{name: "nil config", config: nil},
		{
			name:   "console output",
			config: &Config{Level: "info", Format: "console", Output: "console"},
		},
		{
			name: "file output",
			config: &Config{
				Level:  "debug",
				Format: "json",
				Output: "file",
				File:   FileConfig{Filename: filepath.Join(dir, "a.log"), MaxSize: 10, MaxAge: 7, MaxBackups: 3},
			},
		},
		{
			name: "both output",
			config: &Config{
				Level:  "warn",
				Format: "json",
				Output: "both",
				File:   FileConfig{Filename: filepath.Join(dir, "b.log"), MaxSize: 10, MaxAge: 7},
			},
		},
		{
			name:    "invalid level",
			config:  &Config{Level: "loud", Format: "json", Output: "console"},
			wantErr: true,
		},
		{
			name:    "invalid format",
			config:  &Config{Level: "info", Format: "xml", Output: "console"},
			wantErr: true,
		},
		{
			name:    "invalid output",
			config:  &Config{Level: "info", Format: "json", Output: "syslog"},
			wantErr: true,
		},
		{
			name:    "file output without filename",
			config:  &Config{Level: "info", Format: "json", Output: "file"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, l)
			l.With(zap.String("k", "v")).Named("child").Debug("hello")
		})
	}
}

func TestContextIDs(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetThreadID(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithThreadID(ctx, "thread_abc")
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "thread_abc", GetThreadID(ctx))

	nop := NewNop()
	ctx = ToContext(ctx, nop)
	assert.NotNil(t, FromContext(ctx))
}

func TestGinLoggerSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen string
	r := gin.New()
	r.Use(GinLogger(NewNop()), GinRecovery(NewNop()))
	r.GET("/ping", func(c *gin.Context) {
		seen = GetRequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "fixed-id", seen)
	assert.Equal(t, "fixed-id", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
