package postprocess

import (
	"encoding/binary"
	"fmt"

	"github.com/x448/float16"
)

// HalfToFloat32 widens a little-endian float16 output buffer.
func HalfToFloat32(raw []byte) ([]float32, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("%w: odd float16 buffer length %d", ErrModelShapeMismatch, len(raw))
	}
	out := make([]float32, len(raw)/2)
	for i := range out {
		out[i] = float16.Frombits(binary.LittleEndian.Uint16(raw[i*2:])).Float32()
	}
	return out, nil
}
