// Package azure drives Azure Kinect devices through the k4a library, with the microphone
// array read through the process audio backend and bodies through the k4a body tracker.
package azure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/depthcam/audio"
	"go.viam.com/depthcam/body"
	"go.viam.com/depthcam/calibration"
	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/driver"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/settings"
)

// IMUTimeout bounds the wait for an IMU sample.
const IMUTimeout = time.Millisecond

// Driver is an Azure Kinect driver.
type Driver struct {
	*driver.Base

	sdk     SDK
	mics    audio.Manager
	bridge  *body.Bridge
	logger  logging.Logger
	device  Device
	mic     audio.Microphone
	config  DeviceConfig
	capture Capture

	imuStarted bool
	samples    []float32
}

var _ driver.Driver = (*Driver)(nil)

// New returns a closed driver. mics and trackers may be nil when the host has no audio backend
// or no body tracker.
func New(sdk SDK, mics audio.Manager, trackers body.TrackerFactory, logger logging.Logger) *Driver {
	return &Driver{
		Base:   driver.NewBase(dcmode.AzureKinect, logger),
		sdk:    sdk,
		mics:   mics,
		bridge: body.NewBridge(trackers, logger.Sublogger("body")),
		logger: logger,
		config: DisabledConfig(),
	}
}

// Enumerate lists the serial numbers of the plugged devices.
func Enumerate(sdk SDK) ([]string, error) {
	count := sdk.InstalledCount()
	serials := make([]string, 0, count)
	for idx := uint32(0); idx < count; idx++ {
		dev, err := sdk.Open(idx)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot open device %d", idx)
		}
		serial, err := dev.SerialNumber()
		err = multierr.Combine(err, dev.Close())
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read serial number of device %d", idx)
		}
		serials = append(serials, serial)
	}
	return serials, nil
}

// Open opens the device at deviceIndex and starts its microphone array.
func (d *Driver) Open(ctx context.Context, deviceIndex uint32) error {
	if d.IsOpened() {
		return errors.New("azure kinect already opened")
	}
	if count := d.sdk.InstalledCount(); deviceIndex >= count {
		return errors.Errorf("invalid device index %d, %d azure kinect installed", deviceIndex, count)
	}
	dev, err := d.sdk.Open(deviceIndex)
	if err != nil {
		return errors.Wrapf(err, "cannot open azure kinect %d", deviceIndex)
	}
	serial, err := dev.SerialNumber()
	if err != nil {
		return multierr.Combine(errors.Wrap(err, "cannot read serial number"), dev.Close())
	}
	if err := d.MarkOpened(serial); err != nil {
		return multierr.Combine(err, dev.Close())
	}
	d.device = dev
	d.logger.Infow("azure kinect opened", "index", deviceIndex, "serial", serial)

	if d.mics != nil {
		mic, err := d.mics.Microphone(serial)
		if err != nil {
			d.logger.Warnw("no microphone array found", "serial", serial, "error", err)
			return nil
		}
		if err := mic.Start(); err != nil {
			d.logger.Warnw("cannot start microphone array", "serial", serial, "error", err)
			return nil
		}
		d.mic = mic
	}
	return nil
}

// GenerateConfig builds the k4a configuration of a session. A sync role whose cable is not
// plugged falls back to standalone, and the subordinate delay is reset outside the subordinate
// role. Each downgrade logs a single warning.
func GenerateConfig(
	mi *dcmode.ModeInfos,
	cfg settings.ConfigSettings,
	syncIn, syncOut bool,
	logger logging.Logger,
) DeviceConfig {
	dc := DeviceConfig{
		ColorFormat:                   mi.ImageFormat(),
		ColorResolution:               mi.ColorResolution(),
		DepthResolution:               mi.DepthResolution(),
		Framerate:                     mi.Framerate(),
		SynchronizedImagesOnly:        cfg.SynchronizeColorAndDepth && mi.HasColor() && mi.HasDepth(),
		DepthDelayOffColorUsec:        cfg.DelayBetweenColorAndDepthUsec,
		SyncMode:                      cfg.SyncMode,
		SubordinateDelayOffMasterUsec: cfg.SubordinateDelayUsec,
		DisableStreamingIndicator:     cfg.DisableLED,
	}

	switch {
	case dc.SyncMode == dcmode.Subordinate && !syncIn:
		logger.Warnw("subordinate mode requested without a sync in cable, falling back to standalone",
			"subordinate_delay_usec", dc.SubordinateDelayOffMasterUsec)
		dc.SyncMode = dcmode.Standalone
		dc.SubordinateDelayOffMasterUsec = 0
	case dc.SyncMode == dcmode.Main && !syncOut:
		logger.Warnw("main mode requested without a sync out cable, falling back to standalone",
			"subordinate_delay_usec", dc.SubordinateDelayOffMasterUsec)
		dc.SyncMode = dcmode.Standalone
		dc.SubordinateDelayOffMasterUsec = 0
	case dc.SyncMode != dcmode.Subordinate && dc.SubordinateDelayOffMasterUsec != 0:
		logger.Warnw("subordinate delay is only used by subordinate devices, resetting it to 0",
			"sync_mode", dc.SyncMode, "subordinate_delay_usec", dc.SubordinateDelayOffMasterUsec)
		dc.SubordinateDelayOffMasterUsec = 0
	}
	return dc
}

// Initialize builds the session configuration.
func (d *Driver) Initialize(mi *dcmode.ModeInfos, cfg settings.ConfigSettings) error {
	if err := d.Configure(mi, cfg); err != nil {
		return err
	}
	syncIn, syncOut, err := d.device.SyncJacks()
	if err != nil {
		d.logger.Warnw("cannot read sync jacks state", "error", err)
	}
	d.config = GenerateConfig(mi, cfg, syncIn, syncOut, d.logger)
	cfg.SyncMode = d.config.SyncMode
	cfg.SubordinateDelayUsec = d.config.SubordinateDelayOffMasterUsec
	d.SetConfig(cfg)
	return nil
}

// DeviceConfig returns the configuration the cameras are started with.
func (d *Driver) DeviceConfig() DeviceConfig {
	return d.config
}

// Start starts the cameras, then the IMU and the body tracker. On failure the configuration
// is reset to every stream off.
func (d *Driver) Start(ctx context.Context) error {
	if err := d.CheckStart(); err != nil {
		return err
	}
	if err := d.start(); err != nil {
		d.config = DisabledConfig()
		return errors.Wrap(err, "cannot start azure kinect")
	}
	return nil
}

func (d *Driver) start() error {
	mi := d.ModeInfos()
	cfg := d.Config()

	if err := d.device.StartCameras(d.config); err != nil {
		return errors.Wrap(err, "cannot start cameras")
	}
	native, err := d.device.Calibration(mi.DepthResolution(), mi.ColorResolution())
	if err != nil {
		d.device.StopCameras()
		return errors.Wrap(err, "cannot read calibration")
	}
	cal, err := calibration.FromK4A(native, mi)
	if err != nil {
		d.device.StopCameras()
		return err
	}
	cal.ApplyColorAlignment(cfg.ColorAlignmentRotEuler, cfg.ColorAlignmentTr)
	if err := d.MarkStreaming(cal); err != nil {
		d.device.StopCameras()
		return err
	}

	if mi.HasIMU() {
		if err := d.device.StartIMU(); err != nil {
			d.device.StopCameras()
			d.MarkStopped()
			return errors.Wrap(err, "cannot start imu")
		}
		d.imuStarted = true
	}

	if mi.HasDepth() && cfg.BTEnabled {
		// tracking failures only disable tracking for the session
		goutils.UncheckedError(d.bridge.Start(d.Calibration(), body.TrackerConfig{
			Orientation:    cfg.BTOrientation,
			ProcessingMode: cfg.BTProcessingMode,
			GPUID:          cfg.BTGPUID,
		}))
	}
	d.logger.Infow("azure kinect started", "mode", mi.Mode(), "sync_mode", d.config.SyncMode)
	return nil
}

// Stop stops the body tracker, the IMU and the cameras, in that order.
func (d *Driver) Stop(ctx context.Context) error {
	if !d.IsStreaming() {
		return nil
	}
	d.bridge.Shutdown()
	if d.imuStarted {
		d.device.StopIMU()
		d.imuStarted = false
	}
	d.releaseCapture()
	d.device.StopCameras()
	d.MarkStopped()
	d.logger.Info("azure kinect stopped")
	return nil
}

// Close stops the device if needed, then its microphone array, then closes it.
func (d *Driver) Close(ctx context.Context) error {
	if !d.IsOpened() {
		return nil
	}
	err := d.Stop(ctx)
	if d.mic != nil {
		err = multierr.Combine(err, errors.Wrap(d.mic.Stop(), "cannot stop microphone array"))
		d.mic = nil
	}
	err = multierr.Combine(err, errors.Wrap(d.device.Close(), "cannot close device"))
	d.device = nil
	d.config = DisabledConfig()
	d.MarkClosed()
	return err
}

func (d *Driver) releaseCapture() {
	if d.capture != nil {
		d.capture.Release()
		d.capture = nil
	}
}

// CaptureFrame waits for the next capture.
func (d *Driver) CaptureFrame(ctx context.Context, timeout time.Duration) error {
	if !d.IsStreaming() {
		return driver.ErrNotStreaming
	}
	d.releaseCapture()
	c, err := d.device.Capture(ctx, timeout)
	if err != nil {
		if errors.Is(err, driver.ErrTimeout) {
			return err
		}
		return errors.Wrap(err, "cannot get capture")
	}
	d.capture = c
	return nil
}

// ReadColorImage returns the color image of the last capture.
func (d *Driver) ReadColorImage() driver.ColorImage {
	if d.capture == nil {
		return driver.ColorImage{}
	}
	return d.capture.Color()
}

// ReadDepthImage returns the depth image of the last capture.
func (d *Driver) ReadDepthImage() []uint16 {
	if d.capture == nil {
		return nil
	}
	return d.capture.Depth()
}

// ReadInfraImage returns the infrared image of the last capture.
func (d *Driver) ReadInfraImage() []uint16 {
	if d.capture == nil {
		return nil
	}
	if mi := d.ModeInfos(); mi == nil || !mi.HasInfra() {
		return nil
	}
	return d.capture.Infra()
}

// ReadBodies runs the body tracker on the last capture.
func (d *Driver) ReadBodies(ctx context.Context) ([]body.Body, []uint8) {
	if d.capture == nil || !d.bridge.Enabled() {
		return nil, nil
	}
	d.bridge.ProcessNative(ctx, d.capture)
	return d.bridge.Bodies()
}

// ReadFromIMU returns the next IMU sample, if one is queued.
func (d *Driver) ReadFromIMU() (driver.IMUSample, bool) {
	if !d.imuStarted {
		return driver.IMUSample{}, false
	}
	sample, err := d.device.IMUSample(IMUTimeout)
	if err != nil {
		if !errors.Is(err, driver.ErrTimeout) {
			d.logger.Debugw("cannot read imu sample", "error", err)
		}
		return driver.IMUSample{}, false
	}
	return sample, true
}

// ReadFromMicrophones drains the microphone array. Frames received before an overflow are
// still returned.
func (d *Driver) ReadFromMicrophones() (int, []float32) {
	if d.mic == nil || !d.mic.IsStarted() {
		return 0, nil
	}
	listener := d.mic.Listener()
	if listener == nil {
		return 0, nil
	}
	d.samples = listener.Drain(d.samples[:0])
	if listener.Overflowed() {
		d.logger.Warn("microphone array buffer overflowed, some audio frames were lost")
		listener.ClearOverflow()
	}
	return d.mic.Channels(), d.samples
}

// UpdateColorSettings pushes color settings to the device.
func (d *Driver) UpdateColorSettings(ctx context.Context, cs settings.ColorSettings) {
	if !d.IsOpened() {
		return
	}
	d.ApplyColorSettings(d.device, cs)
}
