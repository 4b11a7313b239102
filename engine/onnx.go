package engine

import (
	"YoloDetServer/config"
	iface "YoloDetServer/interface"
	"YoloDetServer/postprocess"
	"YoloDetServer/preprocess"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// OnnxBackend runs a YOLOv8/v11 detection model through onnxruntime. Input
// and output tensors are allocated once and reused for every frame.
type OnnxBackend struct {
	mu      sync.Mutex
	session *ort.AdvancedSession

	input  *ort.Tensor[float32]
	output *ort.Tensor[float32]

	// fp16 models bind raw half precision buffers instead
	inputHalf  *ort.CustomDataTensor
	outputHalf *ort.CustomDataTensor

	inputLen int
}

// NewOnnxBackend opens cfg.ModelPath with input [1,3,S,S] and output
// [1,4+numClasses,anchors(S)]. InitRuntime must have succeeded first.
func NewOnnxBackend(cfg iface.EngineConfig, numClasses int) (*OnnxBackend, error) {
	if !strings.EqualFold(filepath.Ext(cfg.ModelPath), ".onnx") {
		return nil, fmt.Errorf("onnx backend only supports .onnx models, got %s", cfg.ModelPath)
	}
	if numClasses <= 0 {
		return nil, fmt.Errorf("onnx backend needs at least one class")
	}
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()
	if cfg.NumThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("set intra op threads: %w", err)
		}
	}

	size := int64(cfg.InputSize)
	inputShape := ort.NewShape(1, 3, size, size)
	outputShape := ort.NewShape(1, int64(4+numClasses), int64(postprocess.AnchorsForInput(cfg.InputSize)))

	b := &OnnxBackend{inputLen: int(inputShape.FlattenedSize())}
	var in, out ort.ArbitraryTensor
	if cfg.UseFp16 {
		b.inputHalf, err = ort.NewCustomDataTensor(inputShape, make([]byte, 2*inputShape.FlattenedSize()), ort.TensorElementDataTypeFloat16)
		if err != nil {
			return nil, fmt.Errorf("error creating input tensor: %w", err)
		}
		b.outputHalf, err = ort.NewCustomDataTensor(outputShape, make([]byte, 2*outputShape.FlattenedSize()), ort.TensorElementDataTypeFloat16)
		if err != nil {
			b.destroyTensors()
			return nil, fmt.Errorf("error creating output tensor: %w", err)
		}
		in, out = b.inputHalf, b.outputHalf
	} else {
		b.input, err = ort.NewEmptyTensor[float32](inputShape)
		if err != nil {
			return nil, fmt.Errorf("error creating input tensor: %w", err)
		}
		b.output, err = ort.NewEmptyTensor[float32](outputShape)
		if err != nil {
			b.destroyTensors()
			return nil, fmt.Errorf("error creating output tensor: %w", err)
		}
		in, out = b.input, b.output
	}

	b.session, err = ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.ArbitraryTensor{in},
		[]ort.ArbitraryTensor{out},
		options,
	)
	if err != nil {
		b.destroyTensors()
		return nil, fmt.Errorf("error creating session: %w", err)
	}
	return b, nil
}

// Run copies input into the bound tensor, runs the session and returns a copy
// of the output.
func (b *OnnxBackend) Run(ctx context.Context, input []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(input) != b.inputLen {
		return nil, fmt.Errorf("input has %d values, model expects %d", len(input), b.inputLen)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil, fmt.Errorf("onnx session closed")
	}

	if b.inputHalf != nil {
		copy(b.inputHalf.GetData(), preprocess.ToHalf(input))
	} else {
		copy(b.input.GetData(), input)
	}
	if err := b.session.Run(); err != nil {
		return nil, fmt.Errorf("run session: %w", err)
	}
	if b.outputHalf != nil {
		return postprocess.HalfToFloat32(b.outputHalf.GetData())
	}
	return append([]float32(nil), b.output.GetData()...), nil
}

func (b *OnnxBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	if b.session != nil {
		err = b.session.Destroy()
		b.session = nil
	}
	b.destroyTensors()
	return err
}

func (b *OnnxBackend) destroyTensors() {
	if b.input != nil {
		b.input.Destroy()
		b.input = nil
	}
	if b.output != nil {
		b.output.Destroy()
		b.output = nil
	}
	if b.inputHalf != nil {
		b.inputHalf.Destroy()
		b.inputHalf = nil
	}
	if b.outputHalf != nil {
		b.outputHalf.Destroy()
		b.outputHalf = nil
	}
}

// NewOnnxDetector resolves the labels, opens the model and returns a loaded
// detector.
func NewOnnxDetector(cfg iface.EngineConfig, observer iface.Observer) (*Detector, error) {
	if err := config.ValidateEngine(cfg); err != nil {
		return nil, err
	}
	if cfg.InputName == "" {
		cfg.InputName = "images"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "output0"
	}
	names, err := resolveNames(cfg.Names)
	if err != nil {
		return nil, err
	}
	cfg.Names = iface.NamesConf{IsFile: false, Data: names}
	backend, err := NewOnnxBackend(cfg, numClasses(cfg, names))
	if err != nil {
		return nil, err
	}
	d, err := New(cfg, backend)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	d.SetObserver(observer)
	if err := d.Load(); err != nil {
		_ = backend.Close()
		return nil, err
	}
	return d, nil
}
