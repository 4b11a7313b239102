//go:build !gocv

package preprocess

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
)

func decodeImage(data []byte) (image.Image, error) {
	return imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
}
