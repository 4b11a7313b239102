package preprocess

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLetterbox(t *testing.T) {
	tests := []struct {
		srcWidth, srcHeight, target int
		scale                       float64
		newW, newH                  int
		padX, padY                  float64
		padLeft, padTop             int
	}{
		{1280, 720, 640, 0.5, 640, 360, 0, 140, 0, 140},
		{800, 1000, 640, 0.64, 512, 640, 64, 0, 64, 0},
		{800, 800, 640, 0.8, 640, 640, 0, 0, 0, 0},
		{641, 640, 640, 640.0 / 641.0, 640, 639, 0, 0.5, 0, 0},
		{3, 1, 4, 4.0 / 3.0, 4, 1, 0, 1.5, 0, 1},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%dx%d->%d", tc.srcWidth, tc.srcHeight, tc.target), func(t *testing.T) {
			lb := NewLetterbox(tc.srcWidth, tc.srcHeight, tc.target)
			assert.InDelta(t, tc.scale, lb.Scale(), 1e-9)
			assert.Equal(t, tc.newW, lb.NewWidth())
			assert.Equal(t, tc.newH, lb.NewHeight())
			assert.InDelta(t, tc.padX, lb.PadX(), 1e-9)
			assert.InDelta(t, tc.padY, lb.PadY(), 1e-9)
			assert.Equal(t, tc.padLeft, lb.PadLeft())
			assert.Equal(t, tc.padTop, lb.PadTop())
			assert.Equal(t, tc.srcWidth, lb.SourceWidth())
			assert.Equal(t, tc.srcHeight, lb.SourceHeight())
			assert.Equal(t, tc.target, lb.TargetSize())
		})
	}
}

func TestNewLetterbox_InvalidDimensions(t *testing.T) {
	assert.Panics(t, func() { NewLetterbox(0, 10, 640) })
	assert.Panics(t, func() { NewLetterbox(10, -1, 640) })
	assert.Panics(t, func() { NewLetterbox(10, 10, 0) })
}

func TestLetterbox_Containment(t *testing.T) {
	dims := [][3]int{
		{1280, 720, 640}, {720, 1280, 640}, {1, 1, 640}, {1, 5000, 320},
		{5000, 3, 640}, {641, 639, 640}, {33, 17, 32}, {99, 101, 416},
	}
	for _, d := range dims {
		lb := NewLetterbox(d[0], d[1], d[2])
		assert.GreaterOrEqual(t, lb.PadLeft(), 0)
		assert.GreaterOrEqual(t, lb.PadTop(), 0)
		assert.LessOrEqual(t, lb.PadLeft()+lb.NewWidth(), d[2], "dims %v", d)
		assert.LessOrEqual(t, lb.PadTop()+lb.NewHeight(), d[2], "dims %v", d)
		assert.True(t, lb.NewWidth() == d[2] || lb.NewHeight() == d[2], "one side touches the edge for %v", d)
	}
}

func TestLetterbox_RoundTrip(t *testing.T) {
	dims := [][3]int{{1280, 720, 640}, {720, 1280, 640}, {640, 640, 640}, {333, 777, 416}}
	points := []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1}

	for _, d := range dims {
		lb := NewLetterbox(d[0], d[1], d[2])
		for _, nx := range points {
			for _, ny := range points {
				x, y := lb.OriginalToModel(nx, ny)
				bx, by := lb.ModelToOriginal(float32(x), float32(y))
				assert.InDelta(t, nx, bx, 1e-4, "dims %v point (%v,%v)", d, nx, ny)
				assert.InDelta(t, ny, by, 1e-4, "dims %v point (%v,%v)", d, nx, ny)
			}
		}
	}
}

func TestLetterbox_ModelToOriginalClampsPadding(t *testing.T) {
	lb := NewLetterbox(1280, 720, 640)

	x, y := lb.ModelToOriginal(320, 10)
	assert.InDelta(t, 0.5, x, 1e-6)
	assert.Equal(t, float32(0), y)

	x, y = lb.ModelToOriginal(640, 640)
	assert.Equal(t, float32(1), x)
	assert.Equal(t, float32(1), y)

	x, y = lb.ModelToOriginal(-50, -50)
	assert.Equal(t, float32(0), x)
	assert.Equal(t, float32(0), y)
}
