package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	SetLogger(zap.New(core))

	Named("engine").Info("loaded", zap.String("model", "yolo11n.onnx"))
	S().Infow("frame", "objects", 3)
	Log().Debug("dropped below level")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "engine", entries[0].LoggerName)
	assert.Equal(t, "yolo11n.onnx", entries[0].ContextMap()["model"])
	assert.Equal(t, int64(3), entries[1].ContextMap()["objects"])
	assert.Same(t, Log(), zap.L())
}

func TestInitLevel(t *testing.T) {
	require.NoError(t, InitLevel("warn", false))
	assert.False(t, Log().Core().Enabled(zap.InfoLevel))
	assert.True(t, Log().Core().Enabled(zap.WarnLevel))

	assert.Error(t, InitLevel("loud", false))
}
