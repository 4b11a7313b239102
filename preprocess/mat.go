//go:build gocv

package preprocess

import (
	iface "YoloDetServer/interface"
	"fmt"

	"gocv.io/x/gocv"
)

// FromMat copies an OpenCV Mat (BGR, BGRA or grey) into an RGBA frame.
func FromMat(m gocv.Mat) (iface.ImageData, error) {
	if m.Empty() {
		return iface.ImageData{}, fmt.Errorf("%w: empty mat", ErrInvalidFrame)
	}

	var code gocv.ColorConversionCode
	switch m.Channels() {
	case 1:
		code = gocv.ColorGrayToRGBA
	case 3:
		code = gocv.ColorBGRToRGBA
	case 4:
		code = gocv.ColorBGRAToRGBA
	default:
		return iface.ImageData{}, fmt.Errorf("%w: %d channels", ErrInvalidFrame, m.Channels())
	}

	rgba := gocv.NewMat()
	defer rgba.Close()
	if err := gocv.CvtColor(m, &rgba, code); err != nil {
		return iface.ImageData{}, fmt.Errorf("convert mat: %w", err)
	}

	return iface.ImageData{
		Data:   rgba.ToBytes(),
		Width:  rgba.Cols(),
		Height: rgba.Rows(),
		Format: iface.RGBA8888,
	}, nil
}
