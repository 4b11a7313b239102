package preprocess

import (
	"encoding/binary"

	"github.com/x448/float16"
)

// ToHalf encodes a float tensor as little-endian IEEE 754 half precision, the
// layout onnxruntime expects for float16 model inputs.
func ToHalf(tensor []float32) []byte {
	buf := make([]byte, len(tensor)*2)
	for i, v := range tensor {
		binary.LittleEndian.PutUint16(buf[i*2:], float16.Fromfloat32(v).Bits())
	}
	return buf
}
