package preprocess

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// red then blue, 2x1
var twoPixels = []byte{
	255, 0, 0, 255,
	0, 0, 255, 255,
}

func TestBuildTensor(t *testing.T) {
	lb := NewLetterbox(2, 1, 4)
	tensor := BuildTensor(twoPixels, lb)
	require.Len(t, tensor, 3*4*4)

	plane := 16
	red := tensor[:plane]
	blue := tensor[2*plane:]

	t.Run("padding rows keep the grey value", func(t *testing.T) {
		for x := 0; x < 4; x++ {
			assert.Equal(t, PadValue, red[x])
			assert.Equal(t, PadValue, red[3*4+x])
			assert.Equal(t, PadValue, blue[x])
		}
	})

	t.Run("nearest neighbour sampling", func(t *testing.T) {
		for _, row := range []int{1, 2} {
			assert.Equal(t, float32(1), red[row*4+0])
			assert.Equal(t, float32(0), blue[row*4+0])
			for x := 1; x < 4; x++ {
				assert.Equal(t, float32(0), red[row*4+x])
				assert.Equal(t, float32(1), blue[row*4+x])
			}
		}
	})

	t.Run("values stay in unit range", func(t *testing.T) {
		for _, v := range tensor {
			assert.GreaterOrEqual(t, v, float32(0))
			assert.LessOrEqual(t, v, float32(1))
		}
	})
}

func TestBuildTensor_ShortBufferIsSkipped(t *testing.T) {
	lb := NewLetterbox(2, 1, 4)
	tensor := BuildTensor(twoPixels[:4], lb)

	// only the first source pixel exists
	assert.Equal(t, float32(1), tensor[4])
	assert.Equal(t, PadValue, tensor[5])
	assert.Equal(t, PadValue, tensor[6])
}

func TestPreprocess(t *testing.T) {
	tensor, lb := Preprocess(twoPixels, 2, 1, 4)
	assert.Len(t, tensor, 48)
	assert.Equal(t, 4, lb.TargetSize())
	assert.InDelta(t, 1.0, lb.PadY(), 1e-9)
}

func TestToHalf(t *testing.T) {
	buf := ToHalf([]float32{1, 0.5, 0})
	require.Len(t, buf, 6)
	assert.Equal(t, uint16(0x3C00), binary.LittleEndian.Uint16(buf[0:]))
	assert.Equal(t, uint16(0x3800), binary.LittleEndian.Uint16(buf[2:]))
	assert.Equal(t, uint16(0), binary.LittleEndian.Uint16(buf[4:]))
}
