package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	apperrors "github.com/lk2023060901/agent-gateway/internal/pkg/errors"
	"github.com/lk2023060901/agent-gateway/internal/pkg/logger"
)

func newContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.DebugLevel)
	req := httptest.NewRequest(http.MethodPost, "/agent/chat", nil)
	req = req.WithContext(logger.ToContext(req.Context(), &logger.Logger{Logger: zap.New(core)}))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w, logs
}

func TestHandleErrorLogsByCode(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		level  zapcore.Level
	}{
		{"client error", apperrors.NewInvalidRequest("No messages found in request."), http.StatusBadRequest, zapcore.WarnLevel},
		{"server error", apperrors.Wrap(errors.New("eof"), apperrors.ErrStreaming), http.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w, logs := newContext(t)
			HandleError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.level, entry.Level)
			assert.Equal(t, "/agent/chat", entry.ContextMap()["path"])
		})
	}
}

func TestErrorWithCode(t *testing.T) {
	c, w, _ := newContext(t)
	ErrorWithCode(c, apperrors.ErrNotFound, "/nope")

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperrors.ErrNotFound, body.Code)
	assert.Contains(t, body.Message, "/nope")
}
