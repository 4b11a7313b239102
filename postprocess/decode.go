package postprocess

import (
	"errors"
	"fmt"
	"math"
)

var negInf = float32(math.Inf(-1))

// ErrModelShapeMismatch is returned when the output buffer does not match the
// expected [1, 4+numClasses, numAnchors] layout.
var ErrModelShapeMismatch = errors.New("model output shape mismatch")

// RawDetection is one anchor that passed the confidence threshold. The box is
// still in model input pixel space.
type RawDetection struct {
	CenterX    float32
	CenterY    float32
	Width      float32
	Height     float32
	Confidence float32
	ClassIndex int
}

// Corners returns (x1, y1, x2, y2) of the box.
func (d RawDetection) Corners() (float32, float32, float32, float32) {
	hw, hh := d.Width/2, d.Height/2
	return d.CenterX - hw, d.CenterY - hh, d.CenterX + hw, d.CenterY + hh
}

// Decode reads a YOLOv8/v11 output buffer laid out as [1, 4+numClasses,
// numAnchors], deriving numAnchors from the buffer length.
func Decode(output []float32, numClasses int, threshold float32) ([]RawDetection, error) {
	if numClasses <= 0 {
		return nil, fmt.Errorf("%w: numClasses must be positive, got %d", ErrModelShapeMismatch, numClasses)
	}
	features := 4 + numClasses
	if len(output) == 0 || len(output)%features != 0 {
		return nil, fmt.Errorf("%w: %d values is not a multiple of %d features",
			ErrModelShapeMismatch, len(output), features)
	}
	return decode(output, numClasses, len(output)/features, threshold), nil
}

// DecodeAnchors is Decode for a model with a fixed anchor count; the buffer
// must hold exactly (4+numClasses)*numAnchors values.
func DecodeAnchors(output []float32, numClasses, numAnchors int, threshold float32) ([]RawDetection, error) {
	want := (4 + numClasses) * numAnchors
	if numClasses <= 0 || numAnchors <= 0 || len(output) != want {
		return nil, fmt.Errorf("%w: got %d values, want %d (classes=%d anchors=%d)",
			ErrModelShapeMismatch, len(output), want, numClasses, numAnchors)
	}
	return decode(output, numClasses, numAnchors, threshold), nil
}

func decode(output []float32, numClasses, numAnchors int, threshold float32) []RawDetection {
	dets := make([]RawDetection, 0, 64)

	for j := 0; j < numAnchors; j++ {
		best := negInf
		bestClass := -1
		// NaN scores never compare greater, so they are skipped
		for c := 0; c < numClasses; c++ {
			score := output[(4+c)*numAnchors+j]
			if score > best {
				best = score
				bestClass = c
			}
		}
		if bestClass < 0 || !(best >= threshold) {
			continue
		}
		dets = append(dets, RawDetection{
			CenterX:    output[j],
			CenterY:    output[numAnchors+j],
			Width:      output[2*numAnchors+j],
			Height:     output[3*numAnchors+j],
			Confidence: best,
			ClassIndex: bestClass,
		})
	}
	return dets
}

// AnchorsForInput returns the anchor count of a stride 8/16/32 YOLO head at the
// given square input size, 8400 for 640.
func AnchorsForInput(inputSize int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		g := inputSize / stride
		n += g * g
	}
	return n
}
