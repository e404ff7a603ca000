package codec

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/pkg/errors"
	"github.com/xfmoulet/qoi"
	"golang.org/x/image/draw"

	"go.viam.com/depthcam/dcimage"
	"go.viam.com/depthcam/settings"
)

// DefaultJPEGQuality is used when no quality is configured.
const DefaultJPEGQuality = 80

func clampQuality(q int) int {
	switch {
	case q <= 0:
		return DefaultJPEGQuality
	case q > 100:
		return 100
	default:
		return q
	}
}

// EncodeRGBA encodes an RGBA image. JPEG drops the alpha channel.
func EncodeRGBA(pix []byte, w, h, quality int, c settings.ColorCodec) (EncodedImage, error) {
	img, err := dcimage.NewNRGBA(pix, w, h)
	if err != nil {
		return EncodedImage{}, err
	}
	var buf bytes.Buffer
	out := EncodedImage{Width: w, Height: h}
	switch c {
	case settings.CodecQOI:
		out.Kind = KindQOI
		err = qoi.Encode(&buf, img)
	case settings.CodecJPEG:
		out.Kind = KindJPEG
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: clampQuality(quality)})
	default:
		return EncodedImage{}, errors.Errorf("unknown color codec %d", c)
	}
	if err != nil {
		return EncodedImage{}, errors.Wrapf(err, "cannot encode %dx%d image as %s", w, h, out.Kind)
	}
	out.Data = buf.Bytes()
	return out, nil
}

// DecodeRGBA decodes a color payload into dst, reallocated when too small.
func DecodeRGBA(e EncodedImage, dst []byte) ([]byte, error) {
	switch e.Kind {
	case KindJPEG:
		return dcimage.MJPGToRGBA(dst, e.Data, e.Width, e.Height)
	case KindQOI:
		img, err := qoi.Decode(bytes.NewReader(e.Data))
		if err != nil {
			return dst[:0], errors.Wrap(ErrCorrupted, err.Error())
		}
		return drawInto(dst, img, e.Width, e.Height)
	default:
		return dst[:0], errors.Errorf("cannot decode %s payload as a color image", e.Kind)
	}
}

func drawInto(dst []byte, img image.Image, w, h int) ([]byte, error) {
	b := img.Bounds()
	if b.Dx() != w || b.Dy() != h {
		return dst[:0], errors.Wrapf(ErrCorrupted, "image is %dx%d, expected %dx%d", b.Dx(), b.Dy(), w, h)
	}
	if cap(dst) < w*h*4 {
		dst = make([]byte, w*h*4)
	}
	dst = dst[:w*h*4]
	out, err := dcimage.NewNRGBA(dst, w, h)
	if err != nil {
		return dst[:0], err
	}
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)
	return dst, nil
}

// EncodeGray encodes a one byte per pixel image as a grey JPEG.
func EncodeGray(pix []byte, w, h, quality int) (EncodedImage, error) {
	if len(pix) != w*h {
		return EncodedImage{}, errors.Errorf("buffer of %d bytes does not hold a %dx%d grey image", len(pix), w, h)
	}
	img := &image.Gray{Pix: pix, Stride: w, Rect: image.Rect(0, 0, w, h)}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: clampQuality(quality)}); err != nil {
		return EncodedImage{}, errors.Wrap(err, "cannot encode grey image")
	}
	return EncodedImage{Width: w, Height: h, Kind: KindJPEG, Data: buf.Bytes()}, nil
}

// DecodeGray decodes a grey JPEG payload into dst.
func DecodeGray(e EncodedImage, dst []byte) ([]byte, error) {
	if e.Kind != KindJPEG {
		return dst[:0], errors.Errorf("cannot decode %s payload as a grey image", e.Kind)
	}
	img, err := jpeg.Decode(bytes.NewReader(e.Data))
	if err != nil {
		return dst[:0], errors.Wrap(ErrCorrupted, err.Error())
	}
	b := img.Bounds()
	if b.Dx() != e.Width || b.Dy() != e.Height {
		return dst[:0], errors.Wrapf(ErrCorrupted, "image is %dx%d, expected %dx%d", b.Dx(), b.Dy(), e.Width, e.Height)
	}
	if cap(dst) < e.Width*e.Height {
		dst = make([]byte, e.Width*e.Height)
	}
	dst = dst[:e.Width*e.Height]
	out := &image.Gray{Pix: dst, Stride: e.Width, Rect: image.Rect(0, 0, e.Width, e.Height)}
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)
	return dst, nil
}
