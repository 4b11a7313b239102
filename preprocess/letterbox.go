package preprocess

import (
	"fmt"
	"math"
)

// LetterboxState holds the scale and padding used to fit a source image into
// the square model input. It is immutable once created and must only be used
// with detections produced from the same frame.
type LetterboxState struct {
	scale     float64
	padX      float64
	padY      float64
	srcWidth  int
	srcHeight int
	target    int
	newWidth  int
	newHeight int
}

// NewLetterbox computes the letterbox parameters for a source image of
// srcWidth x srcHeight scaled into a targetSize square. Non-positive dimensions
// are a programming error and panic.
func NewLetterbox(srcWidth, srcHeight, targetSize int) LetterboxState {
	if srcWidth <= 0 || srcHeight <= 0 || targetSize <= 0 {
		panic(fmt.Sprintf("preprocess: invalid letterbox dimensions %dx%d -> %d",
			srcWidth, srcHeight, targetSize))
	}

	t := float64(targetSize)
	scale := math.Min(t/float64(srcWidth), t/float64(srcHeight))

	newW := clampInt(int(math.Round(float64(srcWidth)*scale)), 1, targetSize)
	newH := clampInt(int(math.Round(float64(srcHeight)*scale)), 1, targetSize)

	return LetterboxState{
		scale:     scale,
		padX:      float64(targetSize-newW) / 2,
		padY:      float64(targetSize-newH) / 2,
		srcWidth:  srcWidth,
		srcHeight: srcHeight,
		target:    targetSize,
		newWidth:  newW,
		newHeight: newH,
	}
}

// Scale is min(T/w, T/h), shared by both axes.
func (l LetterboxState) Scale() float64 { return l.scale }

// PadX and PadY are the fractional borders on each side of the scaled image.
func (l LetterboxState) PadX() float64 { return l.padX }
func (l LetterboxState) PadY() float64 { return l.padY }

func (l LetterboxState) SourceWidth() int  { return l.srcWidth }
func (l LetterboxState) SourceHeight() int { return l.srcHeight }
func (l LetterboxState) TargetSize() int   { return l.target }

// NewWidth and NewHeight are the scaled image size inside the square.
func (l LetterboxState) NewWidth() int  { return l.newWidth }
func (l LetterboxState) NewHeight() int { return l.newHeight }

// PadLeft is the integer column where the scaled image starts in the tensor.
func (l LetterboxState) PadLeft() int { return int(l.padX) }

// PadTop is the integer row where the scaled image starts in the tensor.
func (l LetterboxState) PadTop() int { return int(l.padY) }

// OriginalToModel maps a normalized point of the original image into target
// square pixel space.
func (l LetterboxState) OriginalToModel(nx, ny float64) (float64, float64) {
	x := nx*float64(l.srcWidth)*l.scale + l.padX
	y := ny*float64(l.srcHeight)*l.scale + l.padY
	return x, y
}

// ModelToOriginal maps a point in target square pixel space back to normalized
// original image coordinates. Points inside the padding are clamped to the
// visible image.
func (l LetterboxState) ModelToOriginal(x, y float32) (float32, float32) {
	nx := (float64(x) - l.padX) / l.scale / float64(l.srcWidth)
	ny := (float64(y) - l.padY) / l.scale / float64(l.srcHeight)
	return float32(clampUnit(nx)), float32(clampUnit(ny))
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
