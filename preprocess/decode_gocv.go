//go:build gocv

package preprocess

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

// decodeImage 使用 OpenCV 解码, IMReadColor 会按 EXIF 方向旋转
func decodeImage(data []byte) (image.Image, error) {
	m, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, err
	}
	defer m.Close()
	if m.Empty() {
		return nil, errors.New("opencv could not decode the buffer")
	}
	frame, err := FromMat(m)
	if err != nil {
		return nil, err
	}
	return &image.RGBA{
		Pix:    frame.Data,
		Stride: frame.Width * 4,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}, nil
}
