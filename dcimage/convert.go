// Package dcimage converts device color formats to RGBA and colorizes depth and infrared images.
package dcimage

import (
	"bytes"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/utils"
)

func grow(dst []byte, size int) []byte {
	if cap(dst) < size {
		return make([]byte, size)
	}
	return dst[:size]
}

// NV12ToRGBA converts a NV12 frame (Y plane then interleaved UV plane) to RGBA.
func NV12ToRGBA(dst, src []byte, w, h int) ([]byte, error) {
	if len(src) < w*h*3/2 {
		return dst[:0], errors.Errorf("nv12 frame of %d bytes too small for %dx%d", len(src), w, h)
	}
	dst = grow(dst, w*h*4)
	uv := src[w*h:]
	utils.ParallelForEachIndex(h, func(y int) {
		row := (y / 2) * w
		for x := 0; x < w; x++ {
			uvID := row + (x &^ 1)
			r, g, b := color.YCbCrToRGB(src[y*w+x], uv[uvID], uv[uvID+1])
			o := (y*w + x) * 4
			dst[o], dst[o+1], dst[o+2], dst[o+3] = r, g, b, 255
		}
	})
	return dst, nil
}

// YUY2ToRGBA converts a packed YUY2 frame (Y0 U Y1 V) to RGBA.
func YUY2ToRGBA(dst, src []byte, w, h int) ([]byte, error) {
	if len(src) < w*h*2 {
		return dst[:0], errors.Errorf("yuy2 frame of %d bytes too small for %dx%d", len(src), w, h)
	}
	dst = grow(dst, w*h*4)
	utils.ParallelForEachIndex(h, func(y int) {
		for x := 0; x < w; x++ {
			base := (y*w + (x &^ 1)) * 2
			r, g, b := color.YCbCrToRGB(src[base+(x&1)*2], src[base+1], src[base+3])
			o := (y*w + x) * 4
			dst[o], dst[o+1], dst[o+2], dst[o+3] = r, g, b, 255
		}
	})
	return dst, nil
}

// BGRAToRGBA swaps the red and blue channels.
func BGRAToRGBA(dst, src []byte, w, h int) ([]byte, error) {
	if len(src) < w*h*4 {
		return dst[:0], errors.Errorf("bgra frame of %d bytes too small for %dx%d", len(src), w, h)
	}
	dst = grow(dst, w*h*4)
	utils.ParallelForEachIndex(w*h, func(idx int) {
		o := idx * 4
		dst[o], dst[o+1], dst[o+2], dst[o+3] = src[o+2], src[o+1], src[o], src[o+3]
	})
	return dst, nil
}

// MJPGToRGBA decodes a motion JPEG frame.
func MJPGToRGBA(dst, src []byte, w, h int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(src))
	if err != nil {
		return dst[:0], errors.Wrap(err, "cannot decode mjpg frame")
	}
	bounds := img.Bounds()
	if bounds.Dx() != w || bounds.Dy() != h {
		return dst[:0], errors.Errorf("mjpg frame is %dx%d, expected %dx%d", bounds.Dx(), bounds.Dy(), w, h)
	}
	dst = grow(dst, w*h*4)
	out := &image.NRGBA{Pix: dst, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
	draw.Draw(out, out.Rect, img, bounds.Min, draw.Src)
	return dst, nil
}

// ToRGBA converts a color frame of any device format to RGBA, reusing dst.
func ToRGBA(format dcmode.ImageFormat, dst, src []byte, w, h int) ([]byte, error) {
	switch format {
	case dcmode.NV12:
		return NV12ToRGBA(dst, src, w, h)
	case dcmode.YUY2:
		return YUY2ToRGBA(dst, src, w, h)
	case dcmode.BGRA:
		return BGRAToRGBA(dst, src, w, h)
	case dcmode.MJPG:
		return MJPGToRGBA(dst, src, w, h)
	case dcmode.DEPTH16, dcmode.INFRA16, dcmode.NA:
	}
	return dst[:0], errors.Errorf("cannot convert %s frames to rgba", format)
}
