package transform

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.uber.org/zap/zapcore"
	"go.viam.com/test"

	"go.viam.com/depthcam/calibration"
	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/logging"
)

func testCalibration(t *testing.T, mode dcmode.Mode, distorted bool) *calibration.UnifiedCalibration {
	t.Helper()
	mi, err := dcmode.NewModeInfos(mode, true)
	test.That(t, err, test.ShouldBeNil)
	param := calibration.OBCameraParam{
		DepthIntrinsic: calibration.OBIntrinsic{
			Fx: 365, Fy: 365, Cx: float32(mi.DepthWidth()) / 2, Cy: float32(mi.DepthHeight()) / 2,
		},
		RGBIntrinsic: calibration.OBIntrinsic{
			Fx: 605, Fy: 605, Cx: float32(mi.ColorWidth()) / 2, Cy: float32(mi.ColorHeight()) / 2,
		},
	}
	if distorted {
		param.DepthDistortion = calibration.OBDistortion{K1: 0.45, K2: -0.03, K3: -0.002, K4: 0.78, K5: 0.05, K6: -0.01, P1: 5e-5, P2: -3e-5}
		param.RGBDistortion = calibration.OBDistortion{K1: 0.07, K2: -0.06, K3: 0.02, P1: 1e-4}
	}
	uc, err := calibration.FromOrbbecCameraParam(param, mi)
	test.That(t, err, test.ShouldBeNil)
	return &uc
}

func TestUndistortInvertsDistort(t *testing.T) {
	cal := testCalibration(t, dcmode.FB_C1280x720_DI640x576_NV12_F30, true)
	bc := newBrownConrady(&cal.Depth)
	for _, p := range [][2]float64{{0, 0}, {0.3, -0.2}, {-0.6, 0.5}, {0.8, 0.1}} {
		xd, yd, ok := bc.distort(p[0], p[1])
		test.That(t, ok, test.ShouldBeTrue)
		xu, yu, ok := bc.undistort(xd, yd)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, xu, test.ShouldAlmostEqual, p[0], 1e-6)
		test.That(t, yu, test.ShouldAlmostEqual, p[1], 1e-6)
	}
	// outside the metric radius
	_, _, ok := bc.distort(1.5, 1.5)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestDepthToPointCloud(t *testing.T) {
	cal := testCalibration(t, dcmode.FB_C1280x720_DI640x576_NV12_F30, false)
	engine, err := NewEngine(cal, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	w, h := engine.DepthSize()

	depth := make([]uint16, w*h)
	center := (h/2)*w + w/2
	depth[center] = 1000
	right := (h/2)*w + w/2 + 73
	depth[right] = 2000

	cloud := engine.DepthToPointCloud(depth, nil)
	test.That(t, len(cloud), test.ShouldEqual, w*h)
	test.That(t, cloud[center], test.ShouldResemble, Point3{0, 0, 1000})
	test.That(t, cloud[right].Z, test.ShouldEqual, int16(2000))
	test.That(t, cloud[right].X, test.ShouldEqual, int16(400))
	test.That(t, cloud[0], test.ShouldResemble, Point3{})

	// the destination is reused
	again := engine.DepthToPointCloud(depth, cloud)
	test.That(t, &again[0], test.ShouldEqual, &cloud[0])

	test.That(t, engine.DepthToPointCloud(nil, cloud), test.ShouldBeEmpty)
}

func TestResizeColorToDepthSizes(t *testing.T) {
	cal := testCalibration(t, dcmode.FB_C1280x720_DI640x576_NV12_F30, true)
	engine, err := NewEngine(cal, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	w, h := engine.DepthSize()

	depth := make([]uint16, w*h)
	for i := range depth {
		depth[i] = 1500
	}
	for _, size := range [][2]int{{1280, 720}, {640, 360}, {1920, 1080}, {3, 2}} {
		color := make([]byte, size[0]*size[1]*4)
		for i := range color {
			color[i] = 200
		}
		out := engine.ResizeColorToDepth(nil, color, size[0], size[1], depth)
		test.That(t, len(out), test.ShouldEqual, w*h*4)
	}

	color := make([]byte, 1280*720*4)
	test.That(t, engine.ResizeColorToDepth(nil, nil, 1280, 720, depth), test.ShouldBeEmpty)
	test.That(t, engine.ResizeColorToDepth(nil, color, 1280, 720, nil), test.ShouldBeEmpty)
}

func TestResizeColorToDepthSamples(t *testing.T) {
	cal := testCalibration(t, dcmode.FB_C1280x720_DI640x576_NV12_F30, false)
	engine, err := NewEngine(cal, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	w, h := engine.DepthSize()

	color := make([]byte, 1280*720*4)
	// paint the optical center of the color camera
	for y := 358; y < 362; y++ {
		for x := 638; x < 642; x++ {
			copy(color[(y*1280+x)*4:], []byte{10, 20, 30, 255})
		}
	}
	depth := make([]uint16, w*h)
	center := (h/2)*w + w/2
	depth[center] = 1200

	out := engine.ResizeColorToDepth(nil, color, 1280, 720, depth)
	test.That(t, out[center*4:center*4+4], test.ShouldResemble, []byte{10, 20, 30, 255})
	// no depth, no color
	test.That(t, out[0:4], test.ShouldResemble, []byte{0, 0, 0, 0})
}

func TestMalformedBuffersAreLogged(t *testing.T) {
	cal := testCalibration(t, dcmode.FB_C1280x720_DI640x576_NV12_F30, false)
	logger, logs := logging.NewObservedTestLogger(t)
	engine, err := NewEngine(cal, logger)
	test.That(t, err, test.ShouldBeNil)
	w, h := engine.DepthSize()

	out := engine.ResizeColorToDepth(nil, make([]byte, 17), 1280, 720, make([]uint16, w*h))
	test.That(t, out, test.ShouldBeEmpty)
	out = engine.ResizeColorToDepth(nil, make([]byte, 1280*720*4), 1280, 720, make([]uint16, 12))
	test.That(t, out, test.ShouldBeEmpty)
	test.That(t, engine.DepthToPointCloud(make([]uint16, 5), nil), test.ShouldBeEmpty)
	test.That(t, logs.FilterLevelExact(zapcore.WarnLevel).Len(), test.ShouldEqual, 3)
}

func TestProjectRoundTrip(t *testing.T) {
	cal := testCalibration(t, dcmode.FB_C1280x720_DI640x576_NV12_F30, true)
	engine, err := NewEngine(cal, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	w, _ := engine.DepthSize()

	idx := 200*w + 150
	p, ok := engine.DepthPixelToPoint(idx, 1800)
	test.That(t, ok, test.ShouldBeTrue)
	u, v, ok := engine.ProjectToDepth(p)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, u, test.ShouldAlmostEqual, 150, 1e-3)
	test.That(t, v, test.ShouldAlmostEqual, 200, 1e-3)

	_, _, ok = engine.ProjectToColor(r3.Vector{Z: -5})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestMissingDepthIntrinsics(t *testing.T) {
	cal := testCalibration(t, dcmode.FB_C1280x720_DI640x576_NV12_F30, false)
	cal.Depth.Intrinsics.Fx = 0
	_, err := NewEngine(cal, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewEngine(nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
