package logger_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"

	"github.com/finbank/backend/internal/infrastructure/logger"
)

func TestNew(t *testing.T) {
	t.Run("JSONToFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.log")
		l, err := logger.New(&logger.Config{Level: "debug", Format: "json", Output: path})
		require.NoError(t, err)

		l.Info("hello")
		require.NoError(t, l.Sync())

		assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
		assert.FileExists(t, path)
	})

	t.Run("LevelFiltering", func(t *testing.T) {
		l, err := logger.New(&logger.Config{Level: "warn", Format: "json", Output: "stderr"})
		require.NoError(t, err)

		assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("UnknownLevelDefaultsToInfo", func(t *testing.T) {
		l, err := logger.New(&logger.Config{Level: "verbose", Format: "console", Output: "stdout"})
		require.NoError(t, err)

		assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
		assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	})
}

func TestNewForEnvironment(t *testing.T) {
	prod, err := logger.NewForEnvironment("production")
	require.NoError(t, err)
	assert.False(t, prod.Core().Enabled(zapcore.DebugLevel))

	dev, err := logger.NewForEnvironment("development")
	require.NoError(t, err)
	assert.NotNil(t, dev)
}

func TestContextHelpers(t *testing.T) {
	t.Run("RequestIDRoundTrip", func(t *testing.T) {
		ctx := logger.WithRequestID(context.Background(), "req-42")
		assert.Equal(t, "req-42", logger.GetRequestID(ctx))
	})

	t.Run("MissingRequestID", func(t *testing.T) {
		assert.Equal(t, "", logger.GetRequestID(context.Background()))
	})

	t.Run("LoggerRoundTrip", func(t *testing.T) {
		l := zap.NewNop()
		ctx := logger.WithLogger(context.Background(), l)
		assert.Same(t, l, logger.FromContext(ctx))
	})

	t.Run("MissingLoggerIsNop", func(t *testing.T) {
		assert.NotNil(t, logger.FromContext(context.Background()))
	})
}

func newObserved(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

func TestAccessLog(t *testing.T) {
	gin.SetMode(gin.TestMode)

	run := func(t *testing.T, status int, handler gin.HandlerFunc) *observer.ObservedLogs {
		t.Helper()
		l, logs := newObserved(zapcore.InfoLevel)
		engine := gin.New()
		engine.Use(func(c *gin.Context) { c.Set("request_id", "rid-1") })
		engine.Use(logger.AccessLog(l))
		engine.GET("/ping", handler)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping?verbose=1", nil)
		engine.ServeHTTP(rec, req)
		assert.Equal(t, status, rec.Code)
		return logs
	}

	t.Run("LogsInfoOnSuccess", func(t *testing.T) {
		logs := run(t, http.StatusOK, func(c *gin.Context) {
			c.Set("auth_subject", "cust-9")
			c.String(http.StatusOK, "pong")
		})

		entries := logs.All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.InfoLevel, entries[0].Level)

		fields := entries[0].ContextMap()
		assert.Equal(t, "rid-1", fields["request_id"])
		assert.Equal(t, "/ping", fields["path"])
		assert.Equal(t, "verbose=1", fields["query"])
		assert.Equal(t, "cust-9", fields["subject"])
		assert.EqualValues(t, http.StatusOK, fields["status"])
	})

	t.Run("LogsWarnOnClientError", func(t *testing.T) {
		logs := run(t, http.StatusNotFound, func(c *gin.Context) {
			c.AbortWithStatus(http.StatusNotFound)
		})

		entries := logs.All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	})

	t.Run("LogsErrorOnServerError", func(t *testing.T) {
		logs := run(t, http.StatusBadGateway, func(c *gin.Context) {
			c.AbortWithStatus(http.StatusBadGateway)
		})

		entries := logs.All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	})

	t.Run("AttachesLoggerToRequestContext", func(t *testing.T) {
		l, _ := newObserved(zapcore.InfoLevel)
		engine := gin.New()
		engine.Use(logger.AccessLog(l))

		var fromCtx *zap.Logger
		engine.GET("/ctx", func(c *gin.Context) {
			fromCtx = logger.FromContext(c.Request.Context())
			assert.NotNil(t, logger.FromGin(c))
			c.Status(http.StatusOK)
		})

		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ctx", nil))
		require.NotNil(t, fromCtx)
	})
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	l, logs := newObserved(zapcore.InfoLevel)
	engine := gin.New()
	engine.Use(logger.Recovery(l))
	engine.GET("/boom", func(c *gin.Context) {
		panic("kaboom")
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	entries := logs.FilterMessage("panic recovered").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "kaboom", entries[0].ContextMap()["error"])
}

func TestGormLogger(t *testing.T) {
	sqlTrace := func(sql string) func() (string, int64) {
		return func() (string, int64) { return sql, 1 }
	}

	t.Run("SlowQueryWarns", func(t *testing.T) {
		l, logs := newObserved(zapcore.DebugLevel)
		gl := logger.NewGormLogger(l, gormlogger.Warn)

		gl.Trace(context.Background(), time.Now().Add(-time.Second), sqlTrace("SELECT 1"), nil)

		entries := logs.All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		assert.Equal(t, "SELECT 1", entries[0].ContextMap()["sql"])
	})

	t.Run("ErrorsCarryRequestID", func(t *testing.T) {
		l, logs := newObserved(zapcore.DebugLevel)
		gl := logger.NewGormLogger(l, gormlogger.Error)

		ctx := logger.WithRequestID(context.Background(), "rid-7")
		gl.Trace(ctx, time.Now(), sqlTrace("INSERT"), assert.AnError)

		entries := logs.FilterMessage("sql error").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "rid-7", entries[0].ContextMap()["request_id"])
	})

	t.Run("RecordNotFoundIsSilent", func(t *testing.T) {
		l, logs := newObserved(zapcore.DebugLevel)
		gl := logger.NewGormLogger(l, gormlogger.Error)

		gl.Trace(context.Background(), time.Now(), sqlTrace("SELECT"), gormlogger.ErrRecordNotFound)

		assert.Zero(t, logs.Len())
	})

	t.Run("SilentLevelLogsNothing", func(t *testing.T) {
		l, logs := newObserved(zapcore.DebugLevel)
		gl := logger.NewGormLogger(l, gormlogger.Silent)

		gl.Trace(context.Background(), time.Now().Add(-time.Second), sqlTrace("SELECT"), assert.AnError)

		assert.Zero(t, logs.Len())
	})

	t.Run("LogModeClones", func(t *testing.T) {
		l, logs := newObserved(zapcore.DebugLevel)
		gl := logger.NewGormLogger(l, gormlogger.Silent)

		verbose := gl.LogMode(gormlogger.Info)
		verbose.Trace(context.Background(), time.Now(), sqlTrace("SELECT"), nil)

		assert.Equal(t, 1, logs.Len())

		gl.Trace(context.Background(), time.Now(), sqlTrace("SELECT"), nil)
		assert.Equal(t, 1, logs.Len())
	})
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, logger.MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, logger.MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Info, logger.MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, logger.MapGormLogLevel("info-ish"))
}
