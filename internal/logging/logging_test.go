package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	logger, err := New("json", "debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = New("", "")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestNew_Invalid(t *testing.T) {
	_, err := New("xml", "info")
	assert.Error(t, err)

	_, err = New("json", "loud")
	assert.Error(t, err)
}

func TestWith_AddsRequestScopedFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := WithAgent(WithRequestID(context.Background(), "req-123"), "proposal")
	With(ctx, base).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-123", fields["request_id"])
	assert.Equal(t, "proposal", fields["agent"])
	assert.Equal(t, "req-123", RequestID(ctx))
}

func TestWith_NilBase(t *testing.T) {
	assert.NotPanics(t, func() {
		With(context.Background(), nil).Info("dropped")
	})
}
