package preprocess

import (
	iface "YoloDetServer/interface"
	"errors"
	"fmt"
	"image/color"

	"github.com/disintegration/imaging"
)

var ErrInvalidFrame = errors.New("invalid frame")

// ToRGBA converts any supported frame into packed RGBA8888 pixels.
func ToRGBA(img iface.ImageData) ([]byte, int, int, error) {
	if img.Format == iface.Encoded {
		decoded, err := Decode(img.Data)
		if err != nil {
			return nil, 0, 0, err
		}
		nrgba := imaging.Clone(decoded)
		b := nrgba.Bounds()
		return nrgba.Pix, b.Dx(), b.Dy(), nil
	}

	w, h := img.Width, img.Height
	if w <= 0 || h <= 0 {
		return nil, 0, 0, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFrame, w, h)
	}

	switch img.Format {
	case iface.RGBA8888:
		if len(img.Data) < w*h*4 {
			return nil, 0, 0, shortFrame(img, w*h*4)
		}
		return img.Data[:w*h*4], w, h, nil
	case iface.BGRA8888:
		if len(img.Data) < w*h*4 {
			return nil, 0, 0, shortFrame(img, w*h*4)
		}
		return bgraToRGBA(img.Data, w, h), w, h, nil
	case iface.YUV420:
		cw, ch := (w+1)/2, (h+1)/2
		if len(img.Data) < w*h+2*cw*ch {
			return nil, 0, 0, shortFrame(img, w*h+2*cw*ch)
		}
		return i420ToRGBA(img.Data, w, h), w, h, nil
	default:
		return nil, 0, 0, fmt.Errorf("%w: unsupported pixel format %s", ErrInvalidFrame, img.Format)
	}
}

func shortFrame(img iface.ImageData, want int) error {
	return fmt.Errorf("%w: %s %dx%d needs %d bytes, got %d",
		ErrInvalidFrame, img.Format, img.Width, img.Height, want, len(img.Data))
}

func bgraToRGBA(src []byte, w, h int) []byte {
	dst := make([]byte, w*h*4)
	for i := 0; i < w*h*4; i += 4 {
		dst[i] = src[i+2]
		dst[i+1] = src[i+1]
		dst[i+2] = src[i]
		dst[i+3] = src[i+3]
	}
	return dst
}

func i420ToRGBA(src []byte, w, h int) []byte {
	cw := (w + 1) / 2
	ySize := w * h
	uOff := ySize
	vOff := ySize + cw*((h+1)/2)

	dst := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := (y/2)*cw + x/2
			r, g, b := color.YCbCrToRGB(src[y*w+x], src[uOff+c], src[vOff+c])
			i := (y*w + x) * 4
			dst[i] = r
			dst[i+1] = g
			dst[i+2] = b
			dst[i+3] = 0xff
		}
	}
	return dst
}
