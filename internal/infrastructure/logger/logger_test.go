package logger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestNew(t *testing.T) {
	l, err := New(&Config{Level: "warn", Format: "json", Output: "stderr", Service: "marketplace"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	_, err = New(&Config{Output: "/nonexistent-dir/x/y.log"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.DPanicLevel, ParseLevel("dpanic"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("nonsense"))
}

func TestL_EnrichesFromContext(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := WithContext(context.Background(), zap.New(core))
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithActorID(ctx, "actor-7")

	L(ctx).With(zap.String("order_id", "o-1")).Info("escrow released")

	require.Equal(t, 1, recorded.Len())
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "actor-7", fields["actor_id"])
	assert.Equal(t, "o-1", fields["order_id"])
}

func TestL_WithoutLoggerIsNop(t *testing.T) {
	assert.NotPanics(t, func() {
		L(context.Background()).Error("nothing listens")
		WithLogger(context.Background(), nil).Info("still nothing")
	})
}

func TestContextLogger_DPanic(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)

	prod := WithLogger(context.Background(), zap.New(core))
	assert.NotPanics(t, func() { prod.DPanic("ledger invariant broken") })
	assert.Equal(t, 1, recorded.FilterLevelExact(zapcore.DPanicLevel).Len())

	dev := WithLogger(context.Background(), zap.New(core, zap.Development()))
	assert.Panics(t, func() { dev.DPanic("ledger invariant broken") })
}

func TestGinMiddleware_PutsLoggerInRequestContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.InfoLevel)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("request_id", "req-42"); c.Next() })
	r.Use(GinMiddleware(zap.New(core)))
	r.GET("/ping", func(c *gin.Context) {
		L(c.Request.Context()).Info("handler")
		c.Status(http.StatusTeapot)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	require.Equal(t, 1, recorded.FilterMessage("handler").Len())
	assert.Equal(t, "req-42", recorded.FilterMessage("handler").All()[0].ContextMap()["request_id"])
	requests := recorded.FilterMessage("HTTP request").All()
	require.Len(t, requests, 1)
	assert.Equal(t, zapcore.WarnLevel, requests[0].Level)
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.InfoLevel)

	r := gin.New()
	r.Use(Recovery(zap.New(core)))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_INTERNAL")
	assert.Equal(t, 1, recorded.FilterMessage("panic recovered").Len())
}

func TestGormLogger_Trace(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Info, WithSlowThreshold(10*time.Millisecond))
	fc := func() (string, int64) { return "UPDATE allocations SET ...", 1 }
	ctx := WithRequestID(context.Background(), "req-9")

	gl.Trace(ctx, time.Now(), fc, nil)
	gl.Trace(ctx, time.Now().Add(-time.Second), fc, nil)
	gl.Trace(ctx, time.Now(), fc, gorm.ErrDuplicatedKey)
	gl.Trace(ctx, time.Now(), fc, gormlogger.ErrRecordNotFound)
	gl.Trace(ctx, time.Now(), fc, errors.New("connection reset"))

	assert.Equal(t, 1, recorded.FilterMessage("SQL").Len())
	assert.Equal(t, 1, recorded.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Equal(t, 1, recorded.FilterMessage("SQL miss").Len())
	errs := recorded.FilterMessage("SQL error").All()
	require.Len(t, errs, 1)
	assert.Equal(t, "req-9", errs[0].ContextMap()["request_id"])

	silent := NewGormLogger(zap.New(core), gormlogger.Silent)
	before := recorded.Len()
	silent.Trace(ctx, time.Now(), fc, errors.New("x"))
	assert.Equal(t, before, recorded.Len())
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel(""))
}
