package preprocess

import (
	iface "YoloDetServer/interface"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestToRGBA(t *testing.T) {
	t.Run("rgba passthrough", func(t *testing.T) {
		data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
		out, w, h, err := ToRGBA(iface.ImageData{Data: data, Width: 2, Height: 1, Format: iface.RGBA8888})
		require.NoError(t, err)
		assert.Equal(t, 2, w)
		assert.Equal(t, 1, h)
		assert.Equal(t, data, out)
	})

	t.Run("bgra swaps red and blue", func(t *testing.T) {
		data := []byte{10, 20, 30, 255}
		out, _, _, err := ToRGBA(iface.ImageData{Data: data, Width: 1, Height: 1, Format: iface.BGRA8888})
		require.NoError(t, err)
		assert.Equal(t, []byte{30, 20, 10, 255}, out)
	})

	t.Run("yuv420 neutral grey", func(t *testing.T) {
		// 2x2 Y plane, 1x1 U and V
		data := []byte{128, 128, 128, 128, 128, 128}
		out, w, h, err := ToRGBA(iface.ImageData{Data: data, Width: 2, Height: 2, Format: iface.YUV420})
		require.NoError(t, err)
		assert.Equal(t, 2, w)
		assert.Equal(t, 2, h)
		require.Len(t, out, 16)
		for i := 0; i < 16; i += 4 {
			assert.Equal(t, []byte{128, 128, 128, 255}, out[i:i+4])
		}
	})

	t.Run("encoded png", func(t *testing.T) {
		data := encodePNG(t, 3, 2, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		out, w, h, err := ToRGBA(iface.ImageData{Data: data, Format: iface.Encoded})
		require.NoError(t, err)
		assert.Equal(t, 3, w)
		assert.Equal(t, 2, h)
		require.Len(t, out, 3*2*4)
		assert.Equal(t, []byte{200, 100, 50, 255}, out[:4])
	})

	t.Run("short buffer", func(t *testing.T) {
		_, _, _, err := ToRGBA(iface.ImageData{Data: []byte{1, 2, 3}, Width: 1, Height: 1, Format: iface.RGBA8888})
		assert.ErrorIs(t, err, ErrInvalidFrame)
	})

	t.Run("bad dimensions", func(t *testing.T) {
		_, _, _, err := ToRGBA(iface.ImageData{Data: []byte{1, 2, 3, 4}, Width: 0, Height: 1, Format: iface.BGRA8888})
		assert.ErrorIs(t, err, ErrInvalidFrame)
	})

	t.Run("malformed encoded bytes", func(t *testing.T) {
		_, _, _, err := ToRGBA(iface.ImageData{Data: []byte("not an image"), Format: iface.Encoded})
		assert.ErrorIs(t, err, ErrDecode)
	})
}

func TestImageInfo(t *testing.T) {
	data := encodePNG(t, 7, 5, color.White)

	info, err := ImageInfo(data)
	require.NoError(t, err)
	assert.Equal(t, Info{Width: 7, Height: 5, Format: "png"}, info)

	format, err := DetectFormat(data)
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	_, err = DetectFormat([]byte{0, 1, 2})
	assert.ErrorIs(t, err, ErrDecode)
}
