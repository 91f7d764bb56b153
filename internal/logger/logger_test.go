// internal/logger/logger_test.go
package logger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")
	l, err := New(Config{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)
	l.Info("hello", zap.String("order_id", "MDY202501010000"))
	assert.NoError(t, Sync(l))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("nonsense"))
}

func TestContextRoundTrip(t *testing.T) {
	l := zap.NewExample()
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
	assert.NotNil(t, OrNop(nil))
}
