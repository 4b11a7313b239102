package iface

import (
	"context"
	"fmt"
	"strings"
)

type PixelFormat int

const (
	RGBA8888 PixelFormat = iota
	BGRA8888
	// YUV420 is I420 planar: the full Y plane, then the U and V quarter planes.
	YUV420
	// Encoded holds PNG/JPEG/... bytes that still need decoding.
	Encoded
)

func (f PixelFormat) String() string {
	switch f {
	case RGBA8888:
		return "rgba8888"
	case BGRA8888:
		return "bgra8888"
	case YUV420:
		return "yuv420"
	case Encoded:
		return "encoded"
	default:
		return "unknown"
	}
}

// ParsePixelFormat accepts the names produced by String. An empty name means
// Encoded.
func ParsePixelFormat(name string) (PixelFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "encoded":
		return Encoded, nil
	case "rgba8888", "rgba":
		return RGBA8888, nil
	case "bgra8888", "bgra":
		return BGRA8888, nil
	case "yuv420", "i420":
		return YUV420, nil
	default:
		return 0, fmt.Errorf("unknown pixel format %q", name)
	}
}

// ImageData is one frame handed to a detector. Width and Height are ignored
// for Encoded data.
type ImageData struct {
	Data   []byte
	Width  int
	Height int
	Format PixelFormat
}

// Box is a normalized [0,1] rectangle relative to the original image.
type Box struct {
	Left   float32 `json:"left"`
	Top    float32 `json:"top"`
	Right  float32 `json:"right"`
	Bottom float32 `json:"bottom"`
}

type DetectedObject struct {
	Box        Box     `json:"box"`
	Label      string  `json:"label"`
	ClassIndex int     `json:"classIndex"`
	Confidence float32 `json:"confidence"`
}

// DetectionResult is produced once per frame and never accumulated.
type DetectionResult struct {
	Objects           []DetectedObject `json:"objects"`
	InferenceTimeMs   float64          `json:"inferenceTimeMs"`
	PreprocessTimeMs  float64          `json:"preprocessTimeMs"`
	PostprocessTimeMs float64          `json:"postprocessTimeMs"`
	InputSize         int              `json:"inputSize"`
}

func (r *DetectionResult) TotalTimeMs() float64 {
	return r.PreprocessTimeMs + r.InferenceTimeMs + r.PostprocessTimeMs
}

// FPS is an approximation derived from the total time of this frame only.
func (r *DetectionResult) FPS() float64 {
	total := r.TotalTimeMs()
	if total == 0 {
		return 0
	}
	return 1000 / total
}

type EngineConfig struct {
	ModelPath           string
	InputSize           int
	Conf                float32
	Iou                 float32
	MaxDetections       int
	NumClasses          int // 0 means one class per label
	Names               NamesConf
	NumThreads          int
	UseBackgroundWorker bool
	UseFp16             bool
	InputName           string
	OutputName          string
	Description         string
}

// NamesConf either carries the label list inline or points at a file with one
// label per line.
type NamesConf struct {
	IsFile bool
	Data   any
}

// Inferencer runs the model on a CHW float tensor of shape [1,3,size,size] and
// returns the flat [1,4+numClasses,numAnchors] output.
type Inferencer interface {
	Run(ctx context.Context, input []float32) ([]float32, error)
	Close() error
}

// Observer receives per-frame measurements. Implementations must be safe for
// concurrent use since many detectors may share one.
type Observer interface {
	FrameDropped(reason string)
	FrameProcessed(res *DetectionResult)
	FrameFailed(stage string)
}
