package azure_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/depthcam/audio"
	"go.viam.com/depthcam/body"
	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/driver"
	"go.viam.com/depthcam/driver/azure"
	"go.viam.com/depthcam/driver/fake"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/settings"
)

func modeInfos(t *testing.T, mode dcmode.Mode) *dcmode.ModeInfos {
	t.Helper()
	mi, err := dcmode.NewModeInfos(mode, true)
	test.That(t, err, test.ShouldBeNil)
	return mi
}

func TestGenerateConfig(t *testing.T) {
	mi := modeInfos(t, dcmode.AK_C1280x720_DI640x576_NV12_F30)

	t.Run("main without sync out falls back to standalone", func(t *testing.T) {
		logger, logs := logging.NewObservedTestLogger(t)
		cfg := settings.DefaultConfigSettings(dcmode.AzureKinect)
		cfg.SyncMode = dcmode.Main
		cfg.SubordinateDelayUsec = 160
		dc := azure.GenerateConfig(mi, cfg, true, false, logger)
		test.That(t, dc.SyncMode, test.ShouldEqual, dcmode.Standalone)
		test.That(t, dc.SubordinateDelayOffMasterUsec, test.ShouldEqual, uint32(0))
		test.That(t, logs.FilterLevelExact(logging.WARN.AsZap()).Len(), test.ShouldEqual, 1)
	})

	t.Run("subordinate without sync in falls back to standalone", func(t *testing.T) {
		logger, logs := logging.NewObservedTestLogger(t)
		cfg := settings.DefaultConfigSettings(dcmode.AzureKinect)
		cfg.SyncMode = dcmode.Subordinate
		cfg.SubordinateDelayUsec = 160
		dc := azure.GenerateConfig(mi, cfg, false, true, logger)
		test.That(t, dc.SyncMode, test.ShouldEqual, dcmode.Standalone)
		test.That(t, dc.SubordinateDelayOffMasterUsec, test.ShouldEqual, uint32(0))
		test.That(t, logs.FilterLevelExact(logging.WARN.AsZap()).Len(), test.ShouldEqual, 1)
	})

	t.Run("subordinate keeps its delay", func(t *testing.T) {
		logger, logs := logging.NewObservedTestLogger(t)
		cfg := settings.DefaultConfigSettings(dcmode.AzureKinect)
		cfg.SyncMode = dcmode.Subordinate
		cfg.SubordinateDelayUsec = 160
		dc := azure.GenerateConfig(mi, cfg, true, false, logger)
		test.That(t, dc.SyncMode, test.ShouldEqual, dcmode.Subordinate)
		test.That(t, dc.SubordinateDelayOffMasterUsec, test.ShouldEqual, uint32(160))
		test.That(t, logs.Len(), test.ShouldEqual, 0)
	})

	t.Run("standalone resets the delay", func(t *testing.T) {
		logger, logs := logging.NewObservedTestLogger(t)
		cfg := settings.DefaultConfigSettings(dcmode.AzureKinect)
		cfg.SubordinateDelayUsec = 80
		dc := azure.GenerateConfig(mi, cfg, true, true, logger)
		test.That(t, dc.SyncMode, test.ShouldEqual, dcmode.Standalone)
		test.That(t, dc.SubordinateDelayOffMasterUsec, test.ShouldEqual, uint32(0))
		test.That(t, logs.FilterLevelExact(logging.WARN.AsZap()).Len(), test.ShouldEqual, 1)
	})

	t.Run("streams follow the mode", func(t *testing.T) {
		cfg := settings.DefaultConfigSettings(dcmode.AzureKinect)
		cfg.DisableLED = true
		dc := azure.GenerateConfig(mi, cfg, false, false, logging.NewTestLogger(t))
		test.That(t, dc.ColorFormat, test.ShouldEqual, dcmode.NV12)
		test.That(t, dc.ColorResolution, test.ShouldEqual, dcmode.R720P)
		test.That(t, dc.DepthResolution, test.ShouldEqual, dcmode.K4A_640x576)
		test.That(t, dc.SynchronizedImagesOnly, test.ShouldBeTrue)
		test.That(t, dc.DisableStreamingIndicator, test.ShouldBeTrue)

		depthOnly := azure.GenerateConfig(modeInfos(t, dcmode.AK_DI640x576_F30), cfg, false, false, logging.NewTestLogger(t))
		test.That(t, depthOnly.SynchronizedImagesOnly, test.ShouldBeFalse)
		test.That(t, depthOnly.ColorResolution, test.ShouldEqual, dcmode.ColorOff)
	})
}

func newDriver(t *testing.T, k4a *fake.K4A, mics audio.Manager, trackers body.TrackerFactory) *azure.Driver {
	t.Helper()
	d := azure.New(k4a, mics, trackers, logging.NewTestLogger(t))
	t.Cleanup(func() { test.That(t, d.Close(context.Background()), test.ShouldBeNil) })
	return d
}

func TestAzureSession(t *testing.T) {
	ctx := context.Background()
	k4a := fake.NewK4A(fake.NewScene(), "000111", "000222")
	mics := fake.NewAudioManager("000111", "000222")
	trackers := &fake.TrackerFactory{}
	d := newDriver(t, k4a, mics, trackers)

	serials, err := azure.Enumerate(k4a)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, serials, test.ShouldResemble, []string{"000111", "000222"})

	test.That(t, d.Open(ctx, 5), test.ShouldNotBeNil)
	test.That(t, d.Start(ctx), test.ShouldBeError, driver.ErrNotOpened)
	test.That(t, d.Open(ctx, 1), test.ShouldBeNil)
	test.That(t, d.SerialNumber(), test.ShouldEqual, "000222")
	test.That(t, mics.Microphones["000222"].IsStarted(), test.ShouldBeTrue)
	test.That(t, d.Start(ctx), test.ShouldBeError, driver.ErrNotConfigured)

	mi := modeInfos(t, dcmode.AK_C1280x720_DI640x576_BGRA_F30)
	cfg := settings.DefaultConfigSettings(dcmode.AzureKinect)
	cfg.Mode = mi.Mode()
	cfg.SyncMode = dcmode.Main
	cfg.BTEnabled = true
	test.That(t, d.Initialize(mi, cfg), test.ShouldBeNil)
	// no cable in the fake sync jacks
	test.That(t, d.Config().SyncMode, test.ShouldEqual, dcmode.Standalone)

	test.That(t, d.Start(ctx), test.ShouldBeNil)
	test.That(t, d.IsStreaming(), test.ShouldBeTrue)
	dev := k4a.Devices[1]
	test.That(t, dev.CamerasConfig(), test.ShouldNotBeNil)
	test.That(t, dev.CamerasConfig().ColorFormat, test.ShouldEqual, dcmode.BGRA)
	test.That(t, d.Calibration().Depth.Width, test.ShouldEqual, 640)
	test.That(t, d.Engine(), test.ShouldNotBeNil)
	test.That(t, trackers.Last(), test.ShouldNotBeNil)

	test.That(t, d.CaptureFrame(ctx, mi.Timeout()), test.ShouldBeNil)
	col := d.ReadColorImage()
	test.That(t, col.Format, test.ShouldEqual, dcmode.BGRA)
	test.That(t, len(col.Data), test.ShouldEqual, 1280*720*4)
	test.That(t, len(d.ReadDepthImage()), test.ShouldEqual, 640*576)
	test.That(t, len(d.ReadInfraImage()), test.ShouldEqual, 640*576)

	bodies, idMap := d.ReadBodies(ctx)
	test.That(t, len(bodies), test.ShouldEqual, 1)
	test.That(t, len(idMap), test.ShouldEqual, 640*576)
	test.That(t, bodies[0].Joints[0].Position.Z, test.ShouldEqual, float64(fake.BoxDepthMM))

	// a canceled caller does not reach the tracker
	enqueued := trackers.Last().Enqueued()
	canceled, cancel := context.WithCancel(ctx)
	cancel()
	bodies, idMap = d.ReadBodies(canceled)
	test.That(t, bodies, test.ShouldBeEmpty)
	test.That(t, idMap, test.ShouldBeEmpty)
	test.That(t, trackers.Last().Enqueued(), test.ShouldEqual, enqueued)

	sample, ok := d.ReadFromIMU()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, sample.Acc.Z, test.ShouldAlmostEqual, -9.81)

	channels, samples := d.ReadFromMicrophones()
	test.That(t, channels, test.ShouldEqual, 7)
	test.That(t, len(samples)%7, test.ShouldEqual, 0)
	test.That(t, len(samples), test.ShouldBeGreaterThan, 0)

	test.That(t, d.Stop(ctx), test.ShouldBeNil)
	test.That(t, dev.CamerasConfig(), test.ShouldBeNil)
	test.That(t, trackers.Last().IsShutdown(), test.ShouldBeTrue)
	_, ok = d.ReadFromIMU()
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, d.CaptureFrame(ctx, mi.Timeout()), test.ShouldBeError, driver.ErrNotStreaming)

	// a stopped session restarts with the same configuration
	test.That(t, d.Start(ctx), test.ShouldBeNil)
	test.That(t, dev.StartCalls, test.ShouldEqual, 2)

	test.That(t, d.Close(ctx), test.ShouldBeNil)
	test.That(t, d.IsOpened(), test.ShouldBeFalse)
	test.That(t, mics.Microphones["000222"].Stops(), test.ShouldEqual, 1)
	test.That(t, d.Close(ctx), test.ShouldBeNil)
}

func TestAzureStartFailure(t *testing.T) {
	ctx := context.Background()
	k4a := fake.NewK4A(fake.NewScene(), "000111")
	d := newDriver(t, k4a, nil, nil)
	test.That(t, d.Open(ctx, 0), test.ShouldBeNil)

	mi := modeInfos(t, dcmode.AK_C1280x720_DI640x576_NV12_F30)
	cfg := settings.DefaultConfigSettings(dcmode.AzureKinect)
	test.That(t, d.Initialize(mi, cfg), test.ShouldBeNil)
	test.That(t, d.DeviceConfig().DepthResolution, test.ShouldEqual, dcmode.K4A_640x576)

	k4a.Devices[0].StartErr = errors.New("usb bandwidth")
	err := d.Start(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "usb bandwidth")
	test.That(t, d.IsStreaming(), test.ShouldBeFalse)
	test.That(t, d.DeviceConfig(), test.ShouldResemble, azure.DisabledConfig())

	k4a.Devices[0].StartErr = nil
	k4a.Devices[0].CalibrationErr = errors.New("corrupted eeprom")
	test.That(t, d.Initialize(mi, cfg), test.ShouldBeNil)
	test.That(t, d.Start(ctx), test.ShouldNotBeNil)
	test.That(t, k4a.Devices[0].CamerasConfig(), test.ShouldBeNil)
}

func TestAzureBodyTrackerFailure(t *testing.T) {
	ctx := context.Background()
	logger, logs := logging.NewObservedTestLogger(t)
	k4a := fake.NewK4A(fake.NewScene(), "000111")
	d := azure.New(k4a, nil, &fake.TrackerFactory{Err: errors.New("no gpu")}, logger)
	defer func() { test.That(t, d.Close(ctx), test.ShouldBeNil) }()
	test.That(t, d.Open(ctx, 0), test.ShouldBeNil)

	mi := modeInfos(t, dcmode.AK_DI640x576_F30)
	cfg := settings.DefaultConfigSettings(dcmode.AzureKinect)
	cfg.Mode = mi.Mode()
	cfg.BTEnabled = true
	test.That(t, d.Initialize(mi, cfg), test.ShouldBeNil)
	test.That(t, d.Start(ctx), test.ShouldBeNil)
	test.That(t, logs.FilterMessageSnippet("body tracking disabled").Len(), test.ShouldEqual, 1)

	test.That(t, d.CaptureFrame(ctx, mi.Timeout()), test.ShouldBeNil)
	bodies, idMap := d.ReadBodies(ctx)
	test.That(t, bodies, test.ShouldBeEmpty)
	test.That(t, idMap, test.ShouldBeEmpty)
	test.That(t, d.ReadColorImage().Empty(), test.ShouldBeTrue)
}

func TestAzureMicrophoneOverflow(t *testing.T) {
	ctx := context.Background()
	logger, logs := logging.NewObservedTestLogger(t)
	k4a := fake.NewK4A(fake.NewScene(), "000111")
	mics := fake.NewAudioManager("000111")
	d := azure.New(k4a, mics, nil, logger)
	defer func() { test.That(t, d.Close(ctx), test.ShouldBeNil) }()
	test.That(t, d.Open(ctx, 0), test.ShouldBeNil)

	mic := mics.Microphones["000111"]
	mic.SetOverflowed()
	channels, samples := d.ReadFromMicrophones()
	test.That(t, channels, test.ShouldEqual, 7)
	test.That(t, len(samples), test.ShouldEqual, 480*7)
	test.That(t, mic.Overflowed(), test.ShouldBeFalse)
	test.That(t, logs.FilterMessageSnippet("overflowed").Len(), test.ShouldEqual, 1)

	_, samples = d.ReadFromMicrophones()
	test.That(t, len(samples), test.ShouldEqual, 480*7)
	test.That(t, logs.FilterMessageSnippet("overflowed").Len(), test.ShouldEqual, 1)
}

func TestAzureColorSettings(t *testing.T) {
	ctx := context.Background()
	k4a := fake.NewK4A(fake.NewScene(), "000111")
	d := newDriver(t, k4a, nil, nil)

	cs := settings.DefaultColorSettingsFor(dcmode.AzureKinect)
	cs.Saturation = 40
	d.UpdateColorSettings(ctx, cs)
	test.That(t, k4a.Devices[0].TotalSetCalls(), test.ShouldEqual, 0)

	test.That(t, d.Open(ctx, 0), test.ShouldBeNil)
	d.UpdateColorSettings(ctx, cs)
	test.That(t, k4a.Devices[0].SetCalls(settings.PropSaturation), test.ShouldEqual, 1)
	d.UpdateColorSettings(ctx, cs)
	test.That(t, k4a.Devices[0].TotalSetCalls(), test.ShouldEqual, 1)
}
