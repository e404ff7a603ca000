package orbbec_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/driver"
	"go.viam.com/depthcam/driver/fake"
	"go.viam.com/depthcam/driver/orbbec"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/settings"
)

func newSession(
	t *testing.T,
	ob *fake.OBSensor,
	dt dcmode.DeviceType,
	mode dcmode.Mode,
	logger logging.Logger,
) (*orbbec.Driver, *dcmode.ModeInfos, settings.ConfigSettings) {
	t.Helper()
	d, err := orbbec.New(ob, dt, &fake.TrackerFactory{}, &fake.CaptureFactory{}, logger)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { test.That(t, d.Close(context.Background()), test.ShouldBeNil) })
	mi, err := dcmode.NewModeInfos(mode, true)
	test.That(t, err, test.ShouldBeNil)
	cfg := settings.DefaultConfigSettings(dt)
	cfg.Mode = mode
	return d, mi, cfg
}

func TestNew(t *testing.T) {
	_, err := orbbec.New(fake.NewOBSensor(fake.NewScene(), dcmode.FemtoBolt), dcmode.AzureKinect, nil, nil,
		logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, orbbec.NetAddress(0), test.ShouldEqual, "192.168.1.2")
	test.That(t, orbbec.NetAddress(3), test.ShouldEqual, "192.168.4.2")
}

func TestEnumerate(t *testing.T) {
	scene := fake.NewScene()
	bolts := fake.NewOBSensor(scene, dcmode.FemtoBolt, "CL8F1", "CL8F2")
	serials, err := orbbec.Enumerate(bolts, dcmode.FemtoBolt)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, serials, test.ShouldResemble, []string{"CL8F1", "CL8F2"})

	serials, err = orbbec.Enumerate(bolts, dcmode.FemtoMegaUSB)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, serials, test.ShouldBeEmpty)

	serials, err = orbbec.Enumerate(fake.NewOBSensor(scene, dcmode.FemtoMegaEthernet, "NET1"), dcmode.FemtoMegaEthernet)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, serials, test.ShouldBeNil)
}

func TestSyncConfigFor(t *testing.T) {
	current := orbbec.SyncConfig{Mode: orbbec.SyncFreeRun, ColorDelayUs: 12, DepthDelayUs: 7}
	cfg := settings.DefaultConfigSettings(dcmode.FemtoBolt)
	cfg.SubordinateDelayUsec = 160

	sc := orbbec.SyncConfigFor(current, cfg)
	test.That(t, sc.Mode, test.ShouldEqual, orbbec.SyncStandalone)
	test.That(t, sc.TriggerOutEnable, test.ShouldBeFalse)
	test.That(t, sc.TriggerOutDelayUs, test.ShouldEqual, int32(0))
	test.That(t, sc.ColorDelayUs, test.ShouldEqual, int32(0))
	test.That(t, sc.DepthDelayUs, test.ShouldEqual, int32(0))

	cfg.SyncMode = dcmode.Main
	sc = orbbec.SyncConfigFor(current, cfg)
	test.That(t, sc.Mode, test.ShouldEqual, orbbec.SyncPrimary)
	test.That(t, sc.TriggerOutEnable, test.ShouldBeTrue)
	test.That(t, sc.TriggerOutDelayUs, test.ShouldEqual, int32(160))

	cfg.SyncMode = dcmode.Subordinate
	sc = orbbec.SyncConfigFor(current, cfg)
	test.That(t, sc.Mode, test.ShouldEqual, orbbec.SyncSecondary)
	test.That(t, sc.TriggerOutEnable, test.ShouldBeTrue)
}

func TestFemtoBoltSession(t *testing.T) {
	ctx := context.Background()
	ob := fake.NewOBSensor(fake.NewScene(), dcmode.FemtoBolt, "CL8F1")
	d, mi, cfg := newSession(t, ob, dcmode.FemtoBolt, dcmode.FB_C1280x720_DI640x576_NV12_F30, logging.NewTestLogger(t))
	cfg.SyncMode = dcmode.Main
	cfg.SubordinateDelayUsec = 200
	cfg.DisableLED = true
	cfg.BTEnabled = true

	test.That(t, d.Open(ctx, 1), test.ShouldNotBeNil)
	test.That(t, d.Open(ctx, 0), test.ShouldBeNil)
	test.That(t, d.SerialNumber(), test.ShouldEqual, "CL8F1")
	test.That(t, d.Initialize(mi, cfg), test.ShouldBeNil)
	test.That(t, d.Start(ctx), test.ShouldBeNil)

	dev := ob.USBDevices[0]
	sc, err := dev.SyncConfig()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sc.Mode, test.ShouldEqual, orbbec.SyncPrimary)
	test.That(t, sc.TriggerOutDelayUs, test.ShouldEqual, int32(200))
	test.That(t, dev.IndicatorLight(), test.ShouldBeFalse)

	pcfg := dev.Pipeline().Config()
	test.That(t, pcfg, test.ShouldNotBeNil)
	test.That(t, pcfg.FrameSync, test.ShouldBeTrue)
	test.That(t, len(pcfg.Profiles), test.ShouldEqual, 3)

	cal := d.Calibration()
	test.That(t, cal.Depth.Width, test.ShouldEqual, 640)
	test.That(t, cal.Color.Width, test.ShouldEqual, 1280)
	test.That(t, cal.DepthToColor().Translation[0], test.ShouldAlmostEqual, -32)

	test.That(t, d.CaptureFrame(ctx, mi.Timeout()), test.ShouldBeNil)
	test.That(t, d.ReadColorImage().Format, test.ShouldEqual, dcmode.NV12)
	test.That(t, len(d.ReadColorImage().Data), test.ShouldEqual, 1280*720*3/2)
	test.That(t, len(d.ReadDepthImage()), test.ShouldEqual, 640*576)
	test.That(t, len(d.ReadInfraImage()), test.ShouldEqual, 640*576)

	bodies, idMap := d.ReadBodies(ctx)
	test.That(t, len(bodies), test.ShouldEqual, 1)
	test.That(t, len(idMap), test.ShouldEqual, 640*576)

	_, ok := d.ReadFromIMU()
	test.That(t, ok, test.ShouldBeFalse)
	dev.Pipeline().EmitIMU()
	sample, ok := d.ReadFromIMU()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, sample.Acc.Z, test.ShouldAlmostEqual, -9.81, 1e-5)
	test.That(t, sample.Temperature, test.ShouldEqual, float32(35))
	_, ok = d.ReadFromIMU()
	test.That(t, ok, test.ShouldBeFalse)

	channels, samples := d.ReadFromMicrophones()
	test.That(t, channels, test.ShouldEqual, 0)
	test.That(t, samples, test.ShouldBeNil)

	test.That(t, d.Stop(ctx), test.ShouldBeNil)
	test.That(t, dev.Pipeline().Config(), test.ShouldBeNil)
	test.That(t, d.CaptureFrame(ctx, mi.Timeout()), test.ShouldBeError, driver.ErrNotStreaming)
}

func TestFemtoMegaEthernet(t *testing.T) {
	ctx := context.Background()
	ob := fake.NewOBSensor(fake.NewScene(), dcmode.FemtoMegaEthernet, "NET1", "NET2")
	d, mi, cfg := newSession(t, ob, dcmode.FemtoMegaEthernet, dcmode.FME_C1280x720_DI640x576_MJPG_F30,
		logging.NewTestLogger(t))

	test.That(t, d.Open(ctx, 2), test.ShouldNotBeNil)
	test.That(t, d.Open(ctx, 1), test.ShouldBeNil)
	test.That(t, d.SerialNumber(), test.ShouldEqual, "NET2")
	test.That(t, d.Initialize(mi, cfg), test.ShouldBeNil)
	test.That(t, d.Start(ctx), test.ShouldBeNil)
	test.That(t, d.CaptureFrame(ctx, mi.Timeout()), test.ShouldBeNil)
	test.That(t, d.ReadColorImage().Format, test.ShouldEqual, dcmode.MJPG)
	test.That(t, d.ReadColorImage().Empty(), test.ShouldBeFalse)
}

func TestFallbacks(t *testing.T) {
	ctx := context.Background()
	logger, logs := logging.NewObservedTestLogger(t)
	ob := fake.NewOBSensor(fake.NewScene(), dcmode.FemtoBolt, "CL8F1")
	dev := ob.USBDevices[0]
	dev.MissingProfiles = []orbbec.SensorType{orbbec.SensorIR}
	dev.NoCalibrationParam = true

	d, mi, cfg := newSession(t, ob, dcmode.FemtoBolt, dcmode.FB_C1280x720_DI640x576_NV12_F30, logger)
	test.That(t, d.Open(ctx, 0), test.ShouldBeNil)
	test.That(t, d.Initialize(mi, cfg), test.ShouldBeNil)
	test.That(t, d.Start(ctx), test.ShouldBeNil)

	test.That(t, logs.FilterMessageSnippet("stream profile not found").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessageSnippet("using camera parameters").Len(), test.ShouldEqual, 1)
	test.That(t, d.Calibration().Depth.Intrinsics.Fx, test.ShouldBeGreaterThan, 0)
	// camera parameters carry no extrinsics
	test.That(t, d.Calibration().DepthToColor().Translation[0], test.ShouldEqual, float32(0))
}

// The HDR control of a Femto device is only written while no reading loop consumes it.
func TestHDRWhileReading(t *testing.T) {
	ctx := context.Background()
	logger, logs := logging.NewObservedTestLogger(t)
	ob := fake.NewOBSensor(fake.NewScene(), dcmode.FemtoBolt, "CL8F1")
	dev := ob.USBDevices[0]
	d, mi, cfg := newSession(t, ob, dcmode.FemtoBolt, dcmode.FB_C1280x720_DI640x576_NV12_F30, logger)
	test.That(t, d.Open(ctx, 0), test.ShouldBeNil)
	test.That(t, d.Initialize(mi, cfg), test.ShouldBeNil)
	test.That(t, d.Start(ctx), test.ShouldBeNil)

	cs := settings.DefaultColorSettingsFor(dcmode.FemtoBolt)
	cs.HDR = false

	d.SetReading(true)
	d.UpdateColorSettings(ctx, cs)
	test.That(t, dev.SetCalls(settings.PropHDR), test.ShouldEqual, 0)
	test.That(t, logs.FilterMessageSnippet("HDR can only be changed").Len(), test.ShouldEqual, 1)

	d.SetReading(false)
	test.That(t, d.Stop(ctx), test.ShouldBeNil)
	d.UpdateColorSettings(ctx, cs)
	test.That(t, dev.SetCalls(settings.PropHDR), test.ShouldEqual, 1)
	value, _, err := dev.ColorProperty(settings.PropHDR)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, value, test.ShouldEqual, int32(0))

	// the stored value is already applied, the next session does not write it again
	test.That(t, d.Initialize(mi, cfg), test.ShouldBeNil)
	test.That(t, dev.SetCalls(settings.PropHDR), test.ShouldEqual, 1)
}

func TestHDRAppliedAtInitialize(t *testing.T) {
	ctx := context.Background()
	ob := fake.NewOBSensor(fake.NewScene(), dcmode.FemtoBolt, "CL8F1")
	dev := ob.USBDevices[0]
	d, mi, cfg := newSession(t, ob, dcmode.FemtoBolt, dcmode.FB_DI640x576_F30, logging.NewTestLogger(t))

	cs := settings.DefaultColorSettingsFor(dcmode.FemtoBolt)
	cs.HDR = false
	d.UpdateColorSettings(ctx, cs)
	test.That(t, dev.TotalSetCalls(), test.ShouldEqual, 0)

	test.That(t, d.Open(ctx, 0), test.ShouldBeNil)
	test.That(t, d.Initialize(mi, cfg), test.ShouldBeNil)
	test.That(t, dev.SetCalls(settings.PropHDR), test.ShouldEqual, 1)
}

func TestFemtoBoltStartFailure(t *testing.T) {
	ctx := context.Background()
	ob := fake.NewOBSensor(fake.NewScene(), dcmode.FemtoBolt, "CL8F1")
	dev := ob.USBDevices[0]
	d, mi, cfg := newSession(t, ob, dcmode.FemtoBolt, dcmode.FB_C1280x720_DI640x576_NV12_F30, logging.NewTestLogger(t))
	test.That(t, d.Open(ctx, 0), test.ShouldBeNil)
	test.That(t, d.Initialize(mi, cfg), test.ShouldBeNil)
	test.That(t, d.PipelineConfig().Profiles, test.ShouldBeEmpty)

	dev.StartErr = errors.New("usb bandwidth")
	err := d.Start(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "usb bandwidth")
	test.That(t, d.IsStreaming(), test.ShouldBeFalse)
	test.That(t, d.PipelineConfig(), test.ShouldResemble, orbbec.PipelineConfig{})
	test.That(t, dev.Pipeline().Config(), test.ShouldBeNil)

	dev.StartErr = nil
	test.That(t, d.Start(ctx), test.ShouldBeNil)
	test.That(t, len(d.PipelineConfig().Profiles), test.ShouldEqual, 3)
	test.That(t, d.Stop(ctx), test.ShouldBeNil)
}
