// Package orbbec drives Femto Bolt and Femto Mega devices through libobsensor. Their
// calibration is converted into the k4a layout and body tracking runs on synthetic captures
// built from the depth and infrared frames.
package orbbec

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/depthcam/body"
	"go.viam.com/depthcam/calibration"
	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/driver"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/settings"
)

// NetPort is the control port of Femto Mega devices on ethernet.
const NetPort = 8090

// NetAddress returns the address of the Femto Mega at a device index.
func NetAddress(deviceIndex uint32) string {
	return fmt.Sprintf("192.168.%d.2", deviceIndex+1)
}

var deviceNames = map[dcmode.DeviceType]string{
	dcmode.FemtoBolt:         "femto bolt",
	dcmode.FemtoMegaUSB:      "femto mega",
	dcmode.FemtoMegaEthernet: "femto mega",
}

// Driver is a Femto device driver.
type Driver struct {
	*driver.Base

	sdk      SDK
	bridge   *body.Bridge
	captures body.CaptureFactory
	logger   logging.Logger

	device     Device
	pipe       Pipeline
	pipeConfig PipelineConfig
	frames     FrameSet

	colorsMu  sync.Mutex
	colors    settings.ColorSettings
	hasColors bool

	imuMu      sync.Mutex
	imu        driver.IMUSample
	imuFresh   bool
	imuStarted bool
}

var _ driver.Driver = (*Driver)(nil)

// New returns a closed driver for a Femto device family. trackers and captures may be nil when
// the host has no body tracker.
func New(
	sdk SDK,
	dt dcmode.DeviceType,
	trackers body.TrackerFactory,
	captures body.CaptureFactory,
	logger logging.Logger,
) (*Driver, error) {
	if !dt.IsOrbbec() {
		return nil, errors.Errorf("%s is not an orbbec device", dt)
	}
	return &Driver{
		Base:     driver.NewBase(dt, logger),
		sdk:      sdk,
		bridge:   body.NewBridge(trackers, logger.Sublogger("body")),
		captures: captures,
		logger:   logger,
	}, nil
}

func matchingDevices(sdk SDK, dt dcmode.DeviceType) ([]DeviceInfo, error) {
	infos, err := sdk.Devices()
	if err != nil {
		return nil, errors.Wrap(err, "cannot query devices")
	}
	name := deviceNames[dt]
	return lo.Filter(infos, func(info DeviceInfo, _ int) bool {
		return strings.Contains(strings.ToLower(info.Name), name)
	}), nil
}

// Enumerate lists the serial numbers of the plugged devices of a family. Ethernet devices are
// addressed by index and are not enumerated.
func Enumerate(sdk SDK, dt dcmode.DeviceType) ([]string, error) {
	if dt == dcmode.FemtoMegaEthernet {
		return nil, nil
	}
	infos, err := matchingDevices(sdk, dt)
	if err != nil {
		return nil, err
	}
	return lo.Map(infos, func(info DeviceInfo, _ int) string { return info.Serial }), nil
}

// Open opens the device at deviceIndex, from the device list or from its network address.
func (d *Driver) Open(ctx context.Context, deviceIndex uint32) error {
	if d.IsOpened() {
		return errors.Errorf("%s already opened", d.DeviceType())
	}
	var dev Device
	if d.DeviceType() == dcmode.FemtoMegaEthernet {
		address := NetAddress(deviceIndex)
		d.logger.Infow("opening network device", "address", address, "port", NetPort)
		var err error
		if dev, err = d.sdk.OpenNetDevice(address, NetPort); err != nil {
			return errors.Wrapf(err, "cannot open device at %s", address)
		}
	} else {
		infos, err := matchingDevices(d.sdk, d.DeviceType())
		if err != nil {
			return err
		}
		if int(deviceIndex) >= len(infos) {
			return errors.Errorf("invalid device index %d, %d %s found", deviceIndex, len(infos), d.DeviceType())
		}
		if dev, err = d.sdk.OpenDevice(infos[deviceIndex].Serial); err != nil {
			return errors.Wrapf(err, "cannot open %s %d", d.DeviceType(), deviceIndex)
		}
	}
	serial := dev.Info().Serial
	if err := d.MarkOpened(serial); err != nil {
		return multierr.Combine(err, dev.Close())
	}
	d.device = dev
	d.logger.Infow("device opened", "type", d.DeviceType(), "index", deviceIndex, "serial", serial)
	return nil
}

// Initialize stores the session and applies the HDR setting, which the device only accepts
// before its pipeline starts.
func (d *Driver) Initialize(mi *dcmode.ModeInfos, cfg settings.ConfigSettings) error {
	if err := d.Configure(mi, cfg); err != nil {
		return err
	}
	d.colorsMu.Lock()
	hdr, ok := d.colors.HDR, d.hasColors
	d.colorsMu.Unlock()
	if ok {
		d.applyHDR(hdr)
	}
	return nil
}

func (d *Driver) applyHDR(hdr bool) {
	value := int32(0)
	if hdr {
		value = 1
	}
	current, _, err := d.device.ColorProperty(settings.PropHDR)
	if err != nil {
		d.logger.Warnw("cannot read HDR", "error", err)
		return
	}
	if current == value {
		return
	}
	if err := d.device.SetColorProperty(settings.PropHDR, value, true); err != nil {
		d.logger.Warnw("cannot set HDR", "error", err)
	}
}

// SyncConfigFor updates a device synchronisation configuration for a session.
func SyncConfigFor(current SyncConfig, cfg settings.ConfigSettings) SyncConfig {
	sc := current
	switch cfg.SyncMode {
	case dcmode.Standalone:
		sc.Mode = SyncStandalone
		sc.TriggerOutEnable = false
		sc.TriggerOutDelayUs = 0
	case dcmode.Main:
		sc.Mode = SyncPrimary
		sc.TriggerOutEnable = true
		sc.TriggerOutDelayUs = int32(cfg.SubordinateDelayUsec)
	case dcmode.Subordinate:
		sc.Mode = SyncSecondary
		sc.TriggerOutEnable = true
		sc.TriggerOutDelayUs = int32(cfg.SubordinateDelayUsec)
	default:
		sc.Mode = SyncFreeRun
		sc.TriggerOutEnable = false
		sc.TriggerOutDelayUs = 0
	}
	sc.ColorDelayUs = 0
	sc.DepthDelayUs = 0
	return sc
}

func (d *Driver) profile(pipe Pipeline, req StreamProfile) (StreamProfile, error) {
	profile, ok, err := pipe.StreamProfile(req)
	if err != nil {
		return StreamProfile{}, err
	}
	if ok {
		return profile, nil
	}
	d.logger.Warnw("stream profile not found, using the default one",
		"sensor", req.Sensor, "width", req.Width, "height", req.Height, "fps", req.FPS)
	return pipe.DefaultProfile(req.Sensor)
}

// PipelineConfig returns the streams built for the session, empty before Start or after a
// failed Start.
func (d *Driver) PipelineConfig() PipelineConfig {
	return d.pipeConfig
}

// Start configures synchronisation and starts the pipeline, then the IMU and the body tracker.
// On failure the pipeline configuration is reset to every stream off.
func (d *Driver) Start(ctx context.Context) error {
	if err := d.CheckStart(); err != nil {
		return err
	}
	if err := d.start(); err != nil {
		if d.pipe != nil {
			goutils.UncheckedError(d.pipe.Stop())
			d.pipe = nil
		}
		d.pipeConfig = PipelineConfig{}
		return errors.Wrap(err, "pipeline start failed")
	}
	return nil
}

func (d *Driver) start() error {
	mi := d.ModeInfos()
	cfg := d.Config()

	pipe, err := d.device.NewPipeline()
	if err != nil {
		return errors.Wrap(err, "cannot create pipeline")
	}
	d.pipe = pipe

	pcfg := PipelineConfig{FrameSync: cfg.SynchronizeColorAndDepth}
	fps := mi.Framerate().Value()
	var requests []StreamProfile
	if mi.HasColor() {
		requests = append(requests, StreamProfile{SensorColor, mi.ImageFormat(), mi.ColorWidth(), mi.ColorHeight(), fps})
	}
	if mi.HasDepth() {
		requests = append(requests, StreamProfile{SensorDepth, dcmode.DEPTH16, mi.DepthWidth(), mi.DepthHeight(), fps})
	}
	if mi.HasInfra() {
		requests = append(requests, StreamProfile{SensorIR, dcmode.INFRA16, mi.InfraWidth(), mi.InfraHeight(), fps})
	}
	for _, req := range requests {
		profile, err := d.profile(pipe, req)
		if err != nil {
			return errors.Wrapf(err, "cannot find a stream profile for sensor %d", req.Sensor)
		}
		pcfg.Profiles = append(pcfg.Profiles, profile)
	}
	d.pipeConfig = pcfg

	current, err := d.device.SyncConfig()
	if err != nil {
		return errors.Wrap(err, "cannot read sync configuration")
	}
	if err := d.device.SetSyncConfig(SyncConfigFor(current, cfg)); err != nil {
		return errors.Wrap(err, "cannot set sync configuration")
	}
	if err := d.device.SetIndicatorLight(!cfg.DisableLED); err != nil {
		d.logger.Warnw("cannot set indicator light", "error", err)
	}

	if err := pipe.Start(pcfg); err != nil {
		return err
	}

	cal, err := d.sessionCalibration(pipe, pcfg, mi)
	if err != nil {
		return err
	}
	cal.ApplyColorAlignment(cfg.ColorAlignmentRotEuler, cfg.ColorAlignmentTr)
	if err := d.MarkStreaming(cal); err != nil {
		return err
	}

	if mi.HasIMU() {
		if err := pipe.StartIMU(d.onAccel, d.onGyro); err != nil {
			d.logger.Warnw("imu unavailable for this session", "error", err)
		} else {
			d.imuStarted = true
		}
	}

	if mi.HasDepth() && cfg.BTEnabled {
		if d.captures == nil {
			d.logger.Warn("body tracking disabled, no capture factory")
		} else {
			// tracking failures only disable tracking for the session
			goutils.UncheckedError(d.bridge.Start(d.Calibration(), body.TrackerConfig{
				Orientation:    cfg.BTOrientation,
				ProcessingMode: cfg.BTProcessingMode,
				GPUID:          cfg.BTGPUID,
			}))
		}
	}
	d.logger.Infow("pipeline started", "mode", mi.Mode(), "sync_mode", cfg.SyncMode)
	return nil
}

// The full calibration is preferred, the per stream camera parameters are the fallback.
func (d *Driver) sessionCalibration(
	pipe Pipeline,
	pcfg PipelineConfig,
	mi *dcmode.ModeInfos,
) (calibration.UnifiedCalibration, error) {
	param, err := pipe.CalibrationParam(pcfg)
	if err == nil {
		cal, err := calibration.FromOrbbecCalibrationParam(param, mi)
		if err == nil {
			return cal, nil
		}
		d.logger.Warnw("invalid calibration parameters, using camera parameters", "error", err)
	} else {
		d.logger.Warnw("cannot read calibration parameters, using camera parameters", "error", err)
	}
	camParam, err := pipe.CameraParam()
	if err != nil {
		return calibration.UnifiedCalibration{}, errors.Wrap(err, "cannot read camera parameters")
	}
	return calibration.FromOrbbecCameraParam(camParam, mi)
}

func (d *Driver) onAccel(r IMUReading) {
	d.imuMu.Lock()
	defer d.imuMu.Unlock()
	d.imu.Acc = r3.Vector{X: float64(r.X), Y: float64(r.Y), Z: float64(r.Z)}
	d.imu.AccTimestamp = r.Timestamp
	d.imu.Temperature = r.Temperature
	d.imuFresh = true
}

func (d *Driver) onGyro(r IMUReading) {
	d.imuMu.Lock()
	defer d.imuMu.Unlock()
	d.imu.Gyr = r3.Vector{X: float64(r.X), Y: float64(r.Y), Z: float64(r.Z)}
	d.imu.GyrTimestamp = r.Timestamp
	d.imuFresh = true
}

// Stop stops the body tracker, the IMU and the pipeline.
func (d *Driver) Stop(ctx context.Context) error {
	if !d.IsStreaming() {
		return nil
	}
	d.bridge.Shutdown()
	var err error
	if d.imuStarted {
		err = multierr.Combine(err, errors.Wrap(d.pipe.StopIMU(), "cannot stop imu"))
		d.imuStarted = false
	}
	d.releaseFrames()
	err = multierr.Combine(err, errors.Wrap(d.pipe.Stop(), "cannot stop pipeline"))
	d.pipe = nil
	d.MarkStopped()
	d.logger.Info("pipeline stopped")
	return err
}

// Close stops the device if needed and closes it.
func (d *Driver) Close(ctx context.Context) error {
	if !d.IsOpened() {
		return nil
	}
	err := multierr.Combine(d.Stop(ctx), errors.Wrap(d.device.Close(), "cannot close device"))
	d.device = nil
	d.MarkClosed()
	return err
}

func (d *Driver) releaseFrames() {
	if d.frames != nil {
		d.frames.Release()
		d.frames = nil
	}
}

// CaptureFrame waits for the next frame set.
func (d *Driver) CaptureFrame(ctx context.Context, timeout time.Duration) error {
	if !d.IsStreaming() {
		return driver.ErrNotStreaming
	}
	d.releaseFrames()
	frames, err := d.pipe.WaitForFrames(ctx, timeout)
	if err != nil {
		if errors.Is(err, driver.ErrTimeout) {
			return err
		}
		return errors.Wrap(err, "cannot wait for frames")
	}
	d.frames = frames
	return nil
}

// ReadColorImage returns the color frame of the last frame set.
func (d *Driver) ReadColorImage() driver.ColorImage {
	if d.frames == nil {
		return driver.ColorImage{}
	}
	return d.frames.Color()
}

// ReadDepthImage returns the depth frame of the last frame set.
func (d *Driver) ReadDepthImage() []uint16 {
	if d.frames == nil {
		return nil
	}
	return d.frames.Depth()
}

// ReadInfraImage returns the infrared frame of the last frame set.
func (d *Driver) ReadInfraImage() []uint16 {
	if d.frames == nil {
		return nil
	}
	return d.frames.Infra()
}

// ReadBodies tracks bodies on a capture synthesized from the last depth and infrared frames.
func (d *Driver) ReadBodies(ctx context.Context) ([]body.Body, []uint8) {
	if d.frames == nil || !d.bridge.Enabled() {
		return nil, nil
	}
	mi := d.ModeInfos()
	d.bridge.ProcessSynthetic(ctx, d.captures,
		mi.DepthWidth(), mi.DepthHeight(), d.frames.Depth(), d.frames.Infra(), d.frames.Timestamp())
	return d.bridge.Bodies()
}

// ReadFromIMU returns the latest IMU sample received since the last call.
func (d *Driver) ReadFromIMU() (driver.IMUSample, bool) {
	d.imuMu.Lock()
	defer d.imuMu.Unlock()
	if !d.imuFresh {
		return driver.IMUSample{}, false
	}
	d.imuFresh = false
	return d.imu, true
}

// ReadFromMicrophones returns nothing, Femto devices have no microphone.
func (d *Driver) ReadFromMicrophones() (int, []float32) {
	return 0, nil
}

// UpdateColorSettings pushes color settings to the device.
func (d *Driver) UpdateColorSettings(ctx context.Context, cs settings.ColorSettings) {
	d.colorsMu.Lock()
	d.colors = cs
	d.hasColors = true
	d.colorsMu.Unlock()
	if !d.IsOpened() {
		return
	}
	d.ApplyColorSettings(d.device, cs)
}
