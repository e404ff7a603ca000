package dcimage

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/lmittmann/ppm"
	"go.viam.com/test"

	"go.viam.com/depthcam/dcmode"
)

func TestGradient(t *testing.T) {
	for i, want := range gradientStops {
		r, g, b := Gradient(float64(i) / 4)
		test.That(t, [3]float64{r, g, b}, test.ShouldResemble, want)
	}
	r, g, b := Gradient(0.125)
	test.That(t, r, test.ShouldEqual, 0.0)
	test.That(t, g, test.ShouldAlmostEqual, 0.5)
	test.That(t, b, test.ShouldEqual, 1.0)

	r, g, b = Gradient(-3)
	test.That(t, [3]float64{r, g, b}, test.ShouldResemble, gradientStops[0])
	r, g, b = Gradient(7)
	test.That(t, [3]float64{r, g, b}, test.ShouldResemble, gradientStops[4])

	r, _, b = DepthGradient(4000, dcmode.Range{Min: 500, Max: 4000})
	test.That(t, r, test.ShouldEqual, 1.0)
	test.That(t, b, test.ShouldEqual, 0.0)
	_, _, b = DepthGradient(4000, dcmode.Range{Min: 500, Max: 500})
	test.That(t, b, test.ShouldEqual, 1.0)
}

func TestColorize(t *testing.T) {
	depth := []uint16{0, 500, 4000}
	out := ColorizeDepth(nil, depth, dcmode.Range{Min: 500, Max: 4000})
	test.That(t, out, test.ShouldResemble, []byte{0, 0, 0, 255, 0, 0, 255, 255, 255, 0, 0, 255})

	infra := []uint16{0, 1000, 60000}
	out = ColorizeInfra(out, infra)
	test.That(t, out, test.ShouldResemble, []byte{0, 0, 0, 255, 127, 127, 127, 255, 255, 255, 255, 255})
}

func TestYUVConversions(t *testing.T) {
	w, h := 4, 2
	nv12 := make([]byte, w*h*3/2)
	for i := range nv12 {
		nv12[i] = 128
	}
	out, err := NV12ToRGBA(nil, nv12, w, h)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(out), test.ShouldEqual, w*h*4)
	test.That(t, out[:4], test.ShouldResemble, []byte{128, 128, 128, 255})

	_, err = NV12ToRGBA(nil, nv12[:5], w, h)
	test.That(t, err, test.ShouldNotBeNil)

	yuy2 := []byte{
		16, 128, 235, 128, 16, 128, 235, 128,
		235, 128, 16, 128, 235, 128, 16, 128,
	}
	out, err = YUY2ToRGBA(out, yuy2, w, h)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out[:4], test.ShouldResemble, []byte{16, 16, 16, 255})
	test.That(t, out[4:8], test.ShouldResemble, []byte{235, 235, 235, 255})
	test.That(t, out[16:20], test.ShouldResemble, []byte{235, 235, 235, 255})
}

func TestBGRAAndDispatch(t *testing.T) {
	bgra := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	out, err := ToRGBA(dcmode.BGRA, nil, bgra, 2, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, []byte{3, 2, 1, 4, 7, 6, 5, 8})

	_, err = ToRGBA(dcmode.NA, nil, bgra, 2, 1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMJPG(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 8))
	for i := 0; i < 16*8; i++ {
		img.Set(i%16, i/16, color.NRGBA{200, 40, 40, 255})
	}
	var buf bytes.Buffer
	test.That(t, imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)), test.ShouldBeNil)

	out, err := ToRGBA(dcmode.MJPG, nil, buf.Bytes(), 16, 8)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(out), test.ShouldEqual, 16*8*4)
	test.That(t, int(out[0]), test.ShouldAlmostEqual, 200, 8)
	test.That(t, int(out[1]), test.ShouldAlmostEqual, 40, 8)

	_, err = MJPGToRGBA(nil, buf.Bytes(), 8, 8)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = MJPGToRGBA(nil, []byte("not a jpeg"), 16, 8)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestScaleAndSave(t *testing.T) {
	pix := ColorizeDepth(nil, make([]uint16, 64*48), dcmode.Range{Min: 0, Max: 1})
	img, err := NewNRGBA(pix, 64, 48)
	test.That(t, err, test.ShouldBeNil)
	small := Scale(img, 16, 12)
	test.That(t, small.Bounds().Dx(), test.ShouldEqual, 16)
	test.That(t, small.Bounds().Dy(), test.ShouldEqual, 12)

	path := filepath.Join(t.TempDir(), "depth.png")
	test.That(t, SavePNG(path, pix, 64, 48), test.ShouldBeNil)
	back, err := imaging.Open(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back.Bounds().Dx(), test.ShouldEqual, 64)

	test.That(t, SavePNG(path, pix, 10, 10), test.ShouldNotBeNil)

	test.That(t, SavePPM(filepath.Join(t.TempDir(), "depth.ppm"), pix, 10, 10), test.ShouldNotBeNil)
}

func TestSavePPM(t *testing.T) {
	const w, h = 5, 3
	pix := make([]byte, w*h*4)
	for i := range pix {
		pix[i] = byte(i * 7)
	}
	path := filepath.Join(t.TempDir(), "color.ppm")
	test.That(t, SavePPM(path, pix, w, h), test.ShouldBeNil)
	// the source buffer keeps its alpha
	test.That(t, pix[3], test.ShouldEqual, byte(21))

	f, err := os.Open(path)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	decoded, err := ppm.Decode(f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded.Bounds(), test.ShouldResemble, image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			r, g, b, _ := decoded.At(x, y).RGBA()
			test.That(t, [3]uint32{r >> 8, g >> 8, b >> 8}, test.ShouldResemble,
				[3]uint32{uint32(pix[i]), uint32(pix[i+1]), uint32(pix[i+2])})
		}
	}
}
