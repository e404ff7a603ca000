package fake

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/depthcam/body"
	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/driver"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/settings"
)

// Kinect2Channels is the size of the Kinect2 microphone array.
const Kinect2Channels = 4

// Driver is a simulated driver of any device family, Kinect2 by default. It films a Scene and
// paces its captures with a clock.
type Driver struct {
	*driver.Base

	scene    *Scene
	clock    clock.Clock
	logger   logging.Logger
	mic      *Microphone
	bridge   *body.Bridge
	captures *CaptureFactory
	props    *Properties

	mu       sync.Mutex
	started  time.Time
	color    driver.ColorImage
	depth    []uint16
	infra    []uint16
	captured bool
	// CaptureErr makes every capture fail.
	CaptureErr error
	// Serial is reported at open time.
	Serial string
}

var _ driver.Driver = (*Driver)(nil)

// NewDriver returns a closed simulated driver. A nil clock uses the wall clock.
func NewDriver(dt dcmode.DeviceType, scene *Scene, clk clock.Clock, logger logging.Logger) *Driver {
	if clk == nil {
		clk = clock.New()
	}
	captures := &CaptureFactory{}
	return &Driver{
		Base:     driver.NewBase(dt, logger),
		scene:    scene,
		clock:    clk,
		logger:   logger,
		mic:      NewMicrophone(Kinect2Channels, 480),
		bridge:   body.NewBridge(&TrackerFactory{}, logger.Sublogger("body")),
		captures: captures,
		props:    NewProperties(dt),
		Serial:   "SIM-" + dt.String(),
	}
}

// Microphone returns the simulated microphone array.
func (d *Driver) Microphone() *Microphone {
	return d.mic
}

// Properties returns the simulated color controls.
func (d *Driver) Properties() *Properties {
	return d.props
}

// Open opens the simulated device.
func (d *Driver) Open(ctx context.Context, deviceIndex uint32) error {
	if err := d.MarkOpened(d.Serial); err != nil {
		return err
	}
	if dcmode.DeviceCapabilities(d.DeviceType()).Audio {
		if err := d.mic.Start(); err != nil {
			d.logger.Warnw("cannot start microphone array", "error", err)
		}
	}
	d.logger.Infow("simulated device opened", "type", d.DeviceType(), "index", deviceIndex, "serial", d.Serial)
	return nil
}

// Initialize stores the session descriptors.
func (d *Driver) Initialize(mi *dcmode.ModeInfos, cfg settings.ConfigSettings) error {
	return d.Configure(mi, cfg)
}

// Start computes the calibration of the session and starts streaming.
func (d *Driver) Start(ctx context.Context) error {
	if err := d.CheckStart(); err != nil {
		return err
	}
	mi := d.ModeInfos()
	cfg := d.Config()
	cal := Calibration(mi.DepthResolution(), mi.ColorResolution())
	cal.ApplyColorAlignment(cfg.ColorAlignmentRotEuler, cfg.ColorAlignmentTr)
	if err := d.MarkStreaming(cal); err != nil {
		return errors.Wrap(err, "cannot start simulated device")
	}
	d.mu.Lock()
	d.started = d.clock.Now()
	d.mu.Unlock()
	if mi.HasBodyTracking() && cfg.BTEnabled {
		goutils.UncheckedError(d.bridge.Start(d.Calibration(), body.TrackerConfig{
			Orientation:    cfg.BTOrientation,
			ProcessingMode: cfg.BTProcessingMode,
			GPUID:          cfg.BTGPUID,
		}))
	}
	d.logger.Infow("simulated device started", "mode", mi.Mode())
	return nil
}

// Stop stops streaming.
func (d *Driver) Stop(ctx context.Context) error {
	if !d.IsStreaming() {
		return nil
	}
	d.bridge.Shutdown()
	d.mu.Lock()
	d.captured = false
	d.mu.Unlock()
	d.MarkStopped()
	return nil
}

// Close stops and closes the simulated device.
func (d *Driver) Close(ctx context.Context) error {
	if !d.IsOpened() {
		return nil
	}
	err := d.Stop(ctx)
	if d.mic.IsStarted() {
		goutils.UncheckedError(d.mic.Stop())
	}
	d.MarkClosed()
	return err
}

// CaptureFrame waits for the next frame period, then renders the scene.
func (d *Driver) CaptureFrame(ctx context.Context, timeout time.Duration) error {
	if !d.IsStreaming() {
		return driver.ErrNotStreaming
	}
	if d.CaptureErr != nil {
		return d.CaptureErr
	}
	mi := d.ModeInfos()
	period := time.Second / time.Duration(mi.Framerate().Value())
	if period > timeout {
		return driver.ErrTimeout
	}
	timer := d.clock.Timer(period)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	d.scene.Advance()

	var col driver.ColorImage
	if mi.HasColor() {
		data, err := d.scene.Color(mi.ImageFormat(), mi.ColorWidth(), mi.ColorHeight())
		if err != nil {
			return err
		}
		col = driver.ColorImage{Format: mi.ImageFormat(), Width: mi.ColorWidth(), Height: mi.ColorHeight(), Data: data}
	}
	var depth, infra []uint16
	if mi.HasDepth() {
		depth = d.scene.Depth(mi.DepthWidth(), mi.DepthHeight())
	}
	if mi.HasInfra() {
		infra = d.scene.Infra(mi.InfraWidth(), mi.InfraHeight())
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.color, d.depth, d.infra = col, depth, infra
	d.captured = true
	return nil
}

// ReadColorImage returns the color image of the last capture.
func (d *Driver) ReadColorImage() driver.ColorImage {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.captured {
		return driver.ColorImage{}
	}
	return d.color
}

// ReadDepthImage returns the depth image of the last capture.
func (d *Driver) ReadDepthImage() []uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.captured {
		return nil
	}
	return d.depth
}

// ReadInfraImage returns the infrared image of the last capture.
func (d *Driver) ReadInfraImage() []uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.captured {
		return nil
	}
	return d.infra
}

// ReadBodies tracks the last capture when the session has a body tracker.
func (d *Driver) ReadBodies(ctx context.Context) ([]body.Body, []uint8) {
	if !d.bridge.Enabled() {
		return nil, nil
	}
	mi := d.ModeInfos()
	d.mu.Lock()
	depth, infra := d.depth, d.infra
	ts := d.clock.Since(d.started)
	d.mu.Unlock()
	d.bridge.ProcessSynthetic(ctx, d.captures, mi.DepthWidth(), mi.DepthHeight(), depth, infra, ts)
	return d.bridge.Bodies()
}

// ReadFromIMU returns a device at rest when the family has an IMU.
func (d *Driver) ReadFromIMU() (driver.IMUSample, bool) {
	mi := d.ModeInfos()
	if !d.IsStreaming() || mi == nil || !mi.HasIMU() {
		return driver.IMUSample{}, false
	}
	d.mu.Lock()
	ts := d.clock.Since(d.started)
	d.mu.Unlock()
	sample := driver.IMUSample{Temperature: 30, AccTimestamp: ts, GyrTimestamp: ts}
	sample.Acc.Z = -9.81
	return sample, true
}

// ReadFromMicrophones drains the simulated microphone array.
func (d *Driver) ReadFromMicrophones() (int, []float32) {
	if !d.mic.IsStarted() {
		return 0, nil
	}
	samples := d.mic.Drain(nil)
	if d.mic.Overflowed() {
		d.logger.Warn("microphone array buffer overflowed, some audio frames were lost")
		d.mic.ClearOverflow()
	}
	return d.mic.Channels(), samples
}

// UpdateColorSettings pushes color settings to the simulated controls.
func (d *Driver) UpdateColorSettings(ctx context.Context, cs settings.ColorSettings) {
	if !d.IsOpened() {
		return
	}
	d.ApplyColorSettings(d.props, cs)
}
