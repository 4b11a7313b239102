package preprocess

import "math"

// PadValue is the grey used for the letterbox border, already normalized.
const PadValue = float32(114.0 / 255.0)

// BuildTensor converts packed RGBA pixels of the letterbox source dimensions
// into a CHW float tensor of shape [3, target, target] with values in [0,1].
// Sampling is nearest neighbour. Source pixels beyond the end of rgba are
// skipped and keep the pad value.
func BuildTensor(rgba []byte, lb LetterboxState) []float32 {
	size := lb.target
	plane := size * size
	tensor := make([]float32, 3*plane)
	for i := range tensor {
		tensor[i] = PadValue
	}

	padLeft, padTop := lb.PadLeft(), lb.PadTop()
	width, height := lb.srcWidth, lb.srcHeight

	for y := 0; y < lb.newHeight; y++ {
		srcY := clampInt(int(math.Round(float64(y)/lb.scale)), 0, height-1)
		row := (y + padTop) * size
		for x := 0; x < lb.newWidth; x++ {
			srcX := clampInt(int(math.Round(float64(x)/lb.scale)), 0, width-1)
			off := (srcY*width + srcX) * 4
			if off+2 >= len(rgba) {
				continue
			}
			i := row + x + padLeft
			tensor[i] = float32(rgba[off]) / 255
			tensor[plane+i] = float32(rgba[off+1]) / 255
			tensor[2*plane+i] = float32(rgba[off+2]) / 255
		}
	}
	return tensor
}

// Preprocess letterboxes an RGBA frame into a model input tensor and returns
// the letterbox state needed to map detections back.
func Preprocess(rgba []byte, width, height, targetSize int) ([]float32, LetterboxState) {
	lb := NewLetterbox(width, height, targetSize)
	return BuildTensor(rgba, lb), lb
}
