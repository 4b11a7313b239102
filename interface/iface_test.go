package iface

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectionResult_Timing(t *testing.T) {
	t.Run("total and fps", func(t *testing.T) {
		res := &DetectionResult{PreprocessTimeMs: 5, InferenceTimeMs: 10, PostprocessTimeMs: 5}
		assert.InDelta(t, 20.0, res.TotalTimeMs(), 1e-9)
		assert.InDelta(t, 50.0, res.FPS(), 1e-9)
	})

	t.Run("zero total gives zero fps", func(t *testing.T) {
		res := &DetectionResult{}
		assert.Equal(t, 0.0, res.FPS())
	})
}

func TestPixelFormat_String(t *testing.T) {
	assert.Equal(t, "rgba8888", RGBA8888.String())
	assert.Equal(t, "bgra8888", BGRA8888.String())
	assert.Equal(t, "yuv420", YUV420.String())
	assert.Equal(t, "encoded", Encoded.String())
	assert.Equal(t, "unknown", PixelFormat(42).String())
}

func TestParsePixelFormat(t *testing.T) {
	for _, f := range []PixelFormat{RGBA8888, BGRA8888, YUV420, Encoded} {
		got, err := ParsePixelFormat(f.String())
		assert.NoError(t, err)
		assert.Equal(t, f, got)
	}

	got, err := ParsePixelFormat("")
	assert.NoError(t, err)
	assert.Equal(t, Encoded, got)

	_, err = ParsePixelFormat("nv12")
	assert.Error(t, err)
}
