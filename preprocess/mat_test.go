//go:build gocv

package preprocess

import (
	iface "YoloDetServer/interface"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestFromMat(t *testing.T) {
	cases := []struct {
		name  string
		mt    gocv.MatType
		pixel []byte
		want  []byte
	}{
		{"grey", gocv.MatTypeCV8UC1, []byte{90}, []byte{90, 90, 90, 255}},
		{"bgr", gocv.MatTypeCV8UC3, []byte{10, 20, 30}, []byte{30, 20, 10, 255}},
		{"bgra", gocv.MatTypeCV8UC4, []byte{10, 20, 30, 40}, []byte{30, 20, 10, 40}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := make([]byte, 0, 6*len(tc.pixel))
			for i := 0; i < 6; i++ {
				data = append(data, tc.pixel...)
			}
			m, err := gocv.NewMatFromBytes(2, 3, tc.mt, data)
			require.NoError(t, err)
			defer m.Close()

			frame, err := FromMat(m)
			require.NoError(t, err)
			assert.Equal(t, iface.RGBA8888, frame.Format)
			assert.Equal(t, 3, frame.Width)
			assert.Equal(t, 2, frame.Height)
			require.Len(t, frame.Data, 3*2*4)
			assert.Equal(t, tc.want, frame.Data[:4])
			assert.Equal(t, tc.want, frame.Data[len(frame.Data)-4:])
		})
	}

	t.Run("empty", func(t *testing.T) {
		m := gocv.NewMat()
		defer m.Close()
		_, err := FromMat(m)
		assert.ErrorIs(t, err, ErrInvalidFrame)
	})
}

func TestDecode_OpenCV(t *testing.T) {
	img, err := Decode(encodePNG(t, 4, 3, color.RGBA{R: 200, G: 100, B: 50, A: 255}))
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())
	r, g, b, _ := img.At(1, 1).RGBA()
	assert.Equal(t, []uint32{200, 100, 50}, []uint32{r >> 8, g >> 8, b >> 8})

	_, err = Decode([]byte("not an image"))
	assert.ErrorIs(t, err, ErrDecode)
}
