// Package fake provides simulated k4a and libobsensor libraries, body tracker, microphone array
// and a simulated Kinect2 class driver. Every device films the same synthetic scene: a wall with
// a box standing in front of it.
package fake

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"go.viam.com/depthcam/calibration"
	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/utils"
)

// Scene distances in millimeters.
const (
	WallDepthMM = 2000
	BoxDepthMM  = 1200
)

// Scene is the synthetic scene filmed by simulated devices.
type Scene struct {
	mu           sync.Mutex
	invalidDepth bool
	tick         int
}

// NewScene returns the default scene.
func NewScene() *Scene {
	return &Scene{}
}

// SetInvalidDepth switches the scene to an all invalid depth output.
func (s *Scene) SetInvalidDepth(invalid bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidDepth = invalid
}

// Advance moves to the next frame.
func (s *Scene) Advance() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick++
	return s.tick
}

func inBox(x, y, w, h int) bool {
	return x >= w*3/8 && x < w*5/8 && y >= h/4 && y < h*3/4
}

// BoxCenter returns the pixel at the center of the box.
func BoxCenter(w, h int) (int, int) {
	return w / 2, h / 2
}

// Depth renders a depth image.
func (s *Scene) Depth(w, h int) []uint16 {
	s.mu.Lock()
	invalid := s.invalidDepth
	s.mu.Unlock()
	depth := make([]uint16, w*h)
	if invalid {
		return depth
	}
	utils.ParallelForEachIndex(h, func(y int) {
		for x := 0; x < w; x++ {
			if inBox(x, y, w, h) {
				depth[y*w+x] = BoxDepthMM
			} else {
				depth[y*w+x] = WallDepthMM
			}
		}
	})
	return depth
}

// Infra renders an infrared image, closer surfaces being brighter.
func (s *Scene) Infra(w, h int) []uint16 {
	infra := make([]uint16, w*h)
	utils.ParallelForEachIndex(h, func(y int) {
		for x := 0; x < w; x++ {
			if inBox(x, y, w, h) {
				infra[y*w+x] = 1500
			} else {
				infra[y*w+x] = 600
			}
		}
	})
	return infra
}

func sceneColor(x, y, w, h int) color.NRGBA {
	if inBox(x, y, w, h) {
		return color.NRGBA{R: 200, G: 40, B: 40, A: 255}
	}
	return color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 160, A: 255}
}

// Color renders a color image in a device format.
func (s *Scene) Color(format dcmode.ImageFormat, w, h int) ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	utils.ParallelForEachIndex(h, func(y int) {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, sceneColor(x, y, w, h))
		}
	})

	switch format {
	case dcmode.BGRA:
		out := make([]byte, w*h*4)
		for i := 0; i < w*h; i++ {
			p := img.Pix[i*4 : i*4+4]
			out[i*4], out[i*4+1], out[i*4+2], out[i*4+3] = p[2], p[1], p[0], p[3]
		}
		return out, nil
	case dcmode.NV12:
		out := make([]byte, w*h*3/2)
		uv := out[w*h:]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := img.NRGBAAt(x, y)
				yy, cb, cr := color.RGBToYCbCr(c.R, c.G, c.B)
				out[y*w+x] = yy
				if x%2 == 0 && y%2 == 0 {
					o := (y/2)*w + x
					uv[o], uv[o+1] = cb, cr
				}
			}
		}
		return out, nil
	case dcmode.YUY2:
		out := make([]byte, w*h*2)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x += 2 {
				c0, c1 := img.NRGBAAt(x, y), img.NRGBAAt(x+1, y)
				y0, cb, cr := color.RGBToYCbCr(c0.R, c0.G, c0.B)
				y1, _, _ := color.RGBToYCbCr(c1.R, c1.G, c1.B)
				o := (y*w + x) * 2
				out[o], out[o+1], out[o+2], out[o+3] = y0, cb, y1, cr
			}
		}
		return out, nil
	case dcmode.MJPG:
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
			return nil, errors.Wrap(err, "cannot encode scene")
		}
		return buf.Bytes(), nil
	case dcmode.DEPTH16, dcmode.INFRA16, dcmode.NA:
	}
	return nil, errors.Errorf("cannot render %s color frames", format)
}

func focal(size, fovDeg int) float32 {
	return float32(float64(size) / 2 / math.Tan(utils.DegToRad(float64(fovDeg))/2))
}

// Color sensor field of view, in degrees.
const colorFovH = 90

// depthToColor is the simulated rig: the color camera sits 32mm on the side of the depth one.
var depthToColor = calibration.Extrinsics{
	Rotation:    [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1},
	Translation: [3]float32{-32, -2, 4},
}

// Calibration returns the simulated calibration of a pair of resolutions, in the unified
// layout k4a reports.
func Calibration(depth dcmode.DepthResolution, col dcmode.ColorResolution) calibration.UnifiedCalibration {
	info := depth.Info()
	camera := func(w, h int, in calibration.Intrinsics, radius float32) calibration.CameraCalibration {
		return calibration.CameraCalibration{
			Width: w, Height: h,
			Intrinsics:     in,
			Model:          calibration.LensBrownConrady,
			ParameterCount: calibration.BrownConradyParameterCount,
			MetricRadius:   radius,
			Extrinsics:     calibration.IdentityExtrinsics(),
		}
	}
	uc := calibration.UnifiedCalibration{
		DepthResolution: depth,
		ColorResolution: col,
		Depth:           camera(info.Width, info.Height, depthIntrinsics(depth), calibration.DepthMetricRadius),
		Color:           camera(col.Width(), col.Height(), colorIntrinsics(col), calibration.ColorMetricRadius),
	}
	uc.Color.Extrinsics = depthToColor
	uc.Extrinsics[calibration.CameraDepth][calibration.CameraDepth] = calibration.IdentityExtrinsics()
	uc.Extrinsics[calibration.CameraColor][calibration.CameraColor] = calibration.IdentityExtrinsics()
	uc.Extrinsics[calibration.CameraDepth][calibration.CameraColor] = depthToColor
	uc.Extrinsics[calibration.CameraColor][calibration.CameraDepth] = calibration.Extrinsics{
		Rotation:    depthToColor.Rotation,
		Translation: [3]float32{32, 2, -4},
	}
	return uc
}

func depthIntrinsics(depth dcmode.DepthResolution) calibration.Intrinsics {
	info := depth.Info()
	if info.Width == 0 {
		return calibration.Intrinsics{}
	}
	f := focal(info.Width, info.FovH)
	return calibration.Intrinsics{
		Cx: float32(info.Width) / 2, Cy: float32(info.Height) / 2, Fx: f, Fy: f,
		MetricRadius: calibration.DepthMetricRadius,
	}
}

func colorIntrinsics(col dcmode.ColorResolution) calibration.Intrinsics {
	if col.Width() == 0 {
		return calibration.Intrinsics{}
	}
	f := focal(col.Width(), colorFovH)
	return calibration.Intrinsics{
		Cx: float32(col.Width()) / 2, Cy: float32(col.Height()) / 2, Fx: f, Fy: f,
		MetricRadius: calibration.ColorMetricRadius,
	}
}

func obIntrinsic(in calibration.Intrinsics, w, h int) calibration.OBIntrinsic {
	return calibration.OBIntrinsic{Fx: in.Fx, Fy: in.Fy, Cx: in.Cx, Cy: in.Cy, Width: int16(w), Height: int16(h)}
}

// OrbbecCalibrationParam returns the simulated full calibration of a Femto device.
func OrbbecCalibrationParam(depth dcmode.DepthResolution, col dcmode.ColorResolution) calibration.OBCalibrationParam {
	var param calibration.OBCalibrationParam
	param.Intrinsics[calibration.OBSensorDepth] = obIntrinsic(depthIntrinsics(depth), depth.Width(), depth.Height())
	param.Intrinsics[calibration.OBSensorColor] = obIntrinsic(colorIntrinsics(col), col.Width(), col.Height())
	param.Extrinsics[calibration.OBSensorDepth][calibration.OBSensorColor] = calibration.OBExtrinsic{
		Rot:   depthToColor.Rotation,
		Trans: depthToColor.Translation,
	}
	return param
}

// OrbbecCameraParam returns the simulated per stream parameters of a Femto device.
func OrbbecCameraParam(depth dcmode.DepthResolution, col dcmode.ColorResolution) calibration.OBCameraParam {
	return calibration.OBCameraParam{
		DepthIntrinsic: obIntrinsic(depthIntrinsics(depth), depth.Width(), depth.Height()),
		RGBIntrinsic:   obIntrinsic(colorIntrinsics(col), col.Width(), col.Height()),
	}
}
