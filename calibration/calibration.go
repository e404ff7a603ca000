// Package calibration converts the calibrations reported by the vendor SDKs into one
// representation used for depth to color reprojection and point cloud generation.
package calibration

import (
	"github.com/pkg/errors"

	"go.viam.com/depthcam/dcmode"
)

// Metric radius fallbacks used when the vendor does not report one.
const (
	DepthMetricRadius = float32(1.7399998)
	ColorMetricRadius = float32(1.7)
)

// BrownConradyParameterCount is the number of intrinsic parameters of the 6+2 Brown-Conrady model.
const BrownConradyParameterCount = 15

// ErrMissingIntrinsics is returned when the vendor reports no focal length for an enabled camera.
var ErrMissingIntrinsics = errors.New("calibration: missing intrinsics")

// LensModel is the distortion model of a camera.
type LensModel int8

// Lens models.
const (
	LensUnknown LensModel = iota
	LensTheta
	LensPolynomial3K
	LensRational6KT
	LensBrownConrady
)

// CameraType indexes the extrinsics table.
type CameraType int

// Cameras.
const (
	CameraDepth CameraType = iota
	CameraColor
	numCameras
)

// Intrinsics are the pinhole and distortion parameters of a camera, in pixels.
type Intrinsics struct {
	Cx, Cy                 float32
	Fx, Fy                 float32
	K1, K2, K3, K4, K5, K6 float32
	Codx, Cody             float32
	P1, P2                 float32
	MetricRadius           float32
}

// Extrinsics is a rigid transform, rotation row major and translation in millimeters.
type Extrinsics struct {
	Rotation    [9]float32
	Translation [3]float32
}

// IdentityExtrinsics has an identity rotation and zero translation.
func IdentityExtrinsics() Extrinsics {
	return Extrinsics{Rotation: [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// IsIdentity returns whether e is exactly the identity transform.
func (e Extrinsics) IsIdentity() bool {
	return e == IdentityExtrinsics()
}

// CameraCalibration describes one camera of the device.
type CameraCalibration struct {
	Width, Height  int
	Intrinsics     Intrinsics
	Model          LensModel
	ParameterCount int
	MetricRadius   float32
	// Extrinsics of this camera relative to the depth camera.
	Extrinsics Extrinsics
}

// UnifiedCalibration is the session calibration of a device, whatever its vendor. It is built
// once when the pipeline starts and read only afterwards.
type UnifiedCalibration struct {
	DepthResolution dcmode.DepthResolution
	ColorResolution dcmode.ColorResolution
	Depth           CameraCalibration
	Color           CameraCalibration
	// Extrinsics[source][target]
	Extrinsics [numCameras][numCameras]Extrinsics
}

// Camera returns the calibration of a camera.
func (uc *UnifiedCalibration) Camera(ct CameraType) *CameraCalibration {
	if ct == CameraColor {
		return &uc.Color
	}
	return &uc.Depth
}

// DepthToColor returns the depth to color transform.
func (uc *UnifiedCalibration) DepthToColor() Extrinsics {
	return uc.Extrinsics[CameraDepth][CameraColor]
}

// ColorToDepth returns the color to depth transform.
func (uc *UnifiedCalibration) ColorToDepth() Extrinsics {
	return uc.Extrinsics[CameraColor][CameraDepth]
}

func newUnified(mi *dcmode.ModeInfos) UnifiedCalibration {
	uc := UnifiedCalibration{
		DepthResolution: mi.DepthResolution(),
		ColorResolution: mi.ColorResolution(),
		Depth: CameraCalibration{
			Width:          mi.DepthWidth(),
			Height:         mi.DepthHeight(),
			Model:          LensBrownConrady,
			ParameterCount: BrownConradyParameterCount,
			MetricRadius:   DepthMetricRadius,
			Extrinsics:     IdentityExtrinsics(),
		},
		Color: CameraCalibration{
			Width:          mi.ColorWidth(),
			Height:         mi.ColorHeight(),
			Model:          LensBrownConrady,
			ParameterCount: BrownConradyParameterCount,
			MetricRadius:   ColorMetricRadius,
			Extrinsics:     IdentityExtrinsics(),
		},
	}
	for i := range uc.Extrinsics {
		for j := range uc.Extrinsics[i] {
			uc.Extrinsics[i][j] = IdentityExtrinsics()
		}
	}
	return uc
}

// FromK4A checks a native k4a calibration against the session. k4a already reports the
// unified form for the requested modes, so only the resolutions are verified.
func FromK4A(native UnifiedCalibration, mi *dcmode.ModeInfos) (UnifiedCalibration, error) {
	if mi.HasDepth() && (native.Depth.Width != mi.DepthWidth() || native.Depth.Height != mi.DepthHeight()) {
		return UnifiedCalibration{}, errors.Errorf("calibration: depth resolution %dx%d does not match mode %s",
			native.Depth.Width, native.Depth.Height, mi.Mode())
	}
	if mi.HasColor() && (native.Color.Width != mi.ColorWidth() || native.Color.Height != mi.ColorHeight()) {
		return UnifiedCalibration{}, errors.Errorf("calibration: color resolution %dx%d does not match mode %s",
			native.Color.Width, native.Color.Height, mi.Mode())
	}
	native.DepthResolution = mi.DepthResolution()
	native.ColorResolution = mi.ColorResolution()
	return native, nil
}
