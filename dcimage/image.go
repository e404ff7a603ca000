package dcimage

import (
	"bufio"
	"image"
	"os"

	"github.com/disintegration/imaging"
	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/image/draw"
)

// NewNRGBA wraps an RGBA buffer without copying.
func NewNRGBA(pix []byte, w, h int) (*image.NRGBA, error) {
	if len(pix) != w*h*4 {
		return nil, errors.Errorf("buffer of %d bytes does not hold a %dx%d rgba image", len(pix), w, h)
	}
	return &image.NRGBA{Pix: pix, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}, nil
}

// Scale resizes an image for previews.
func Scale(img image.Image, w, h int) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(out, out.Rect, img, img.Bounds(), draw.Src, nil)
	return out
}

// SavePNG writes an RGBA buffer as a PNG file.
func SavePNG(path string, pix []byte, w, h int) error {
	img, err := NewNRGBA(pix, w, h)
	if err != nil {
		return err
	}
	return errors.Wrapf(imaging.Save(img, path), "cannot save %s", path)
}

// opaqueRGBA copies an RGBA buffer into an opaque image, the only color model ppm encodes.
func opaqueRGBA(pix []byte, w, h int) (*image.RGBA, error) {
	if len(pix) != w*h*4 {
		return nil, errors.Errorf("buffer of %d bytes does not hold a %dx%d rgba image", len(pix), w, h)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	copy(img.Pix, pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img, nil
}

// SavePPM writes an RGBA buffer as a binary PPM file, dropping alpha.
func SavePPM(path string, pix []byte, w, h int) (err error) {
	img, err := opaqueRGBA(pix, w, h)
	if err != nil {
		return err
	}
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create %s", path)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	buf := bufio.NewWriter(f)
	if err := ppm.Encode(buf, img); err != nil {
		return errors.Wrapf(err, "cannot encode %s", path)
	}
	return buf.Flush()
}
