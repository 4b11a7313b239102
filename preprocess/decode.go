package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	_ "golang.org/x/image/webp"
)

// ErrDecode wraps every failure of the image decoder.
var ErrDecode = errors.New("decode image")

// Decode decodes PNG, JPEG, GIF, BMP, TIFF or WebP bytes, applying the EXIF
// orientation so boxes line up with what a viewer shows. Builds with the gocv
// tag decode through OpenCV instead.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	img, err := decodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return img, nil
}

type Info struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// ImageInfo reads only the header of encoded image bytes.
func ImageInfo(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

func DetectFormat(data []byte) (string, error) {
	info, err := ImageInfo(data)
	if err != nil {
		return "", err
	}
	return info.Format, nil
}
