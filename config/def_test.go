package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 640, cfg.Engine.InputSize)
	assert.Equal(t, float32(0.45), cfg.Engine.ConfidenceThreshold)
	assert.Equal(t, float32(0.5), cfg.Engine.NmsThreshold)
	assert.Equal(t, 100, cfg.Engine.MaxDetections)
	assert.True(t, cfg.Engine.UseBackgroundWorker)
	assert.Equal(t, "images", cfg.Engine.InputName)
	assert.Equal(t, "output0", cfg.Engine.OutputName)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "yolo11n.onnx", "onnx")

	t.Run("overrides on top of defaults", func(t *testing.T) {
		p := writeFile(t, dir, "config.yaml", `
RPCPort: 6000
logLevel: debug
engine:
  modelAssetPath: `+model+`
  confidenceThreshold: 0.3
  labels: [cat, dog]
`)
		cfg, err := Load(p)
		require.NoError(t, err)
		assert.Equal(t, 6000, cfg.RPCPort)
		assert.Equal(t, 8080, cfg.HTTPPort)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, float32(0.3), cfg.Engine.ConfidenceThreshold)
		assert.Equal(t, 640, cfg.Engine.InputSize)
		assert.Equal(t, []string{"cat", "dog"}, cfg.Engine.Labels)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		p := writeFile(t, dir, "bad.yaml", "engine: [")
		_, err := Load(p)
		assert.Error(t, err)
	})

	t.Run("missing model asset", func(t *testing.T) {
		p := writeFile(t, dir, "nomodel.yaml", "engine:\n  modelAssetPath: "+filepath.Join(dir, "gone.onnx")+"\n")
		_, err := Load(p)
		var cerr *Error
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "modelAssetPath", cerr.Field)
	})
}

func TestEngineValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*EngineConfig)
		field  string
	}{
		{"input size", func(e *EngineConfig) { e.InputSize = 0 }, "inputSize"},
		{"confidence", func(e *EngineConfig) { e.ConfidenceThreshold = 1.5 }, "confidenceThreshold"},
		{"nms", func(e *EngineConfig) { e.NmsThreshold = -0.1 }, "nmsThreshold"},
		{"max detections", func(e *EngineConfig) { e.MaxDetections = 0 }, "maxDetections"},
		{"threads", func(e *EngineConfig) { e.NumThreads = -2 }, "numThreads"},
		{"classes", func(e *EngineConfig) { e.NumClasses = -1 }, "numClasses"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := DefaultEngine()
			tc.mutate(&e)
			err := e.Validate(false)
			var cerr *Error
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tc.field, cerr.Field)
			assert.Contains(t, cerr.Error(), tc.field)
		})
	}

	assert.NoError(t, DefaultEngine().Validate(false))
}

func TestValidatePorts(t *testing.T) {
	cfg := Default()
	cfg.Engine.ModelAssetPath = writeFile(t, t.TempDir(), "m.onnx", "x")
	require.NoError(t, cfg.Validate())

	cfg.HTTPPort = 70000
	var cerr *Error
	require.ErrorAs(t, cfg.Validate(), &cerr)
	assert.Equal(t, "HTTPPort", cerr.Field)

	cfg.HTTPPort = 8080
	cfg.UseRegServer = true
	require.ErrorAs(t, cfg.Validate(), &cerr)
	assert.Equal(t, "RegServerHost", cerr.Field)
}

func TestToEngine(t *testing.T) {
	e := DefaultEngine()
	e.ModelAssetPath = "m.onnx"
	e.Labels = []string{"a"}
	e.NumClasses = 3

	out := e.ToEngine()
	assert.Equal(t, 3, out.NumClasses)
	assert.Equal(t, "m.onnx", out.ModelPath)
	assert.Equal(t, float32(0.45), out.Conf)
	assert.Equal(t, float32(0.5), out.Iou)
	assert.False(t, out.Names.IsFile)
	assert.Equal(t, []string{"a"}, out.Names.Data)

	e.LabelsFile = "coco.names"
	out = e.ToEngine()
	assert.True(t, out.Names.IsFile)
	assert.Equal(t, "coco.names", out.Names.Data)
}
