package fake

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/depthcam/calibration"
	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/driver"
	"go.viam.com/depthcam/driver/orbbec"
)

// OBSensor is a simulated libobsensor context.
type OBSensor struct {
	USBDevices []*OBDevice
	// NetDevices are reachable by address.
	NetDevices map[string]*OBDevice
}

var _ orbbec.SDK = (*OBSensor)(nil)

// NewOBSensor returns a context with USB devices of a family, one per serial number.
func NewOBSensor(scene *Scene, dt dcmode.DeviceType, serials ...string) *OBSensor {
	name := "Orbbec Femto Bolt"
	if dt == dcmode.FemtoMegaUSB || dt == dcmode.FemtoMegaEthernet {
		name = "Orbbec Femto Mega"
	}
	ob := &OBSensor{NetDevices: map[string]*OBDevice{}}
	for i, serial := range serials {
		dev := NewOBDevice(scene, dt, orbbec.DeviceInfo{Name: name, Serial: serial})
		if dt == dcmode.FemtoMegaEthernet {
			ob.NetDevices[orbbec.NetAddress(uint32(i))] = dev
			continue
		}
		ob.USBDevices = append(ob.USBDevices, dev)
	}
	return ob
}

// Devices lists the USB devices.
func (ob *OBSensor) Devices() ([]orbbec.DeviceInfo, error) {
	return lo.Map(ob.USBDevices, func(d *OBDevice, _ int) orbbec.DeviceInfo { return d.info }), nil
}

// OpenDevice opens a USB device.
func (ob *OBSensor) OpenDevice(serial string) (orbbec.Device, error) {
	dev, ok := lo.Find(ob.USBDevices, func(d *OBDevice) bool { return d.info.Serial == serial })
	if !ok {
		return nil, errors.Errorf("no device with serial %q", serial)
	}
	return dev, dev.open()
}

// OpenNetDevice opens an ethernet device.
func (ob *OBSensor) OpenNetDevice(address string, port uint16) (orbbec.Device, error) {
	dev, ok := ob.NetDevices[address]
	if !ok || port != orbbec.NetPort {
		return nil, errors.Errorf("no device at %s:%d", address, port)
	}
	return dev, dev.open()
}

// OBDevice is a simulated Femto device.
type OBDevice struct {
	*Properties

	scene *Scene
	dt    dcmode.DeviceType
	info  orbbec.DeviceInfo

	mu      sync.Mutex
	opened  bool
	light   bool
	syncCfg orbbec.SyncConfig
	pipe    *OBPipeline

	// MissingProfiles are stream profiles the device does not offer.
	MissingProfiles []orbbec.SensorType
	// NoCalibrationParam makes the full calibration unavailable.
	NoCalibrationParam bool
	// StartErr makes pipeline starts fail.
	StartErr error
}

var _ orbbec.Device = (*OBDevice)(nil)

// NewOBDevice returns a closed simulated device.
func NewOBDevice(scene *Scene, dt dcmode.DeviceType, info orbbec.DeviceInfo) *OBDevice {
	return &OBDevice{
		Properties: NewProperties(dt),
		scene:      scene,
		dt:         dt,
		info:       info,
		light:      true,
	}
}

func (d *OBDevice) open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opened {
		return errors.Errorf("device %s already opened", d.info.Serial)
	}
	d.opened = true
	return nil
}

// Info describes the device.
func (d *OBDevice) Info() orbbec.DeviceInfo {
	return d.info
}

// SetIndicatorLight switches the LED.
func (d *OBDevice) SetIndicatorLight(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.light = on
	return nil
}

// IndicatorLight returns the LED state.
func (d *OBDevice) IndicatorLight() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.light
}

// SyncConfig returns the synchronisation configuration.
func (d *OBDevice) SyncConfig() (orbbec.SyncConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.syncCfg, nil
}

// SetSyncConfig stores the synchronisation configuration.
func (d *OBDevice) SetSyncConfig(cfg orbbec.SyncConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.syncCfg = cfg
	return nil
}

// NewPipeline creates the pipeline of the device.
func (d *OBDevice) NewPipeline() (orbbec.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return nil, errors.New("device not opened")
	}
	d.pipe = &OBPipeline{device: d}
	return d.pipe, nil
}

// Pipeline returns the last created pipeline.
func (d *OBDevice) Pipeline() *OBPipeline {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pipe
}

// Close closes the device.
func (d *OBDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return errors.New("device not opened")
	}
	d.opened = false
	return nil
}

// OBPipeline is a simulated pipeline.
type OBPipeline struct {
	device *OBDevice

	mu      sync.Mutex
	config  *orbbec.PipelineConfig
	started time.Time
	onAccel func(orbbec.IMUReading)
	onGyro  func(orbbec.IMUReading)
}

var _ orbbec.Pipeline = (*OBPipeline)(nil)

// StreamProfile returns the requested profile unless the sensor is listed as missing.
func (p *OBPipeline) StreamProfile(req orbbec.StreamProfile) (orbbec.StreamProfile, bool, error) {
	if lo.Contains(p.device.MissingProfiles, req.Sensor) {
		return orbbec.StreamProfile{}, false, nil
	}
	return req, true, nil
}

// DefaultProfile returns the default profile of a sensor.
func (p *OBPipeline) DefaultProfile(sensor orbbec.SensorType) (orbbec.StreamProfile, error) {
	mode := dcmode.DeviceCapabilities(p.device.dt).DefaultMode
	switch sensor {
	case orbbec.SensorColor:
		r := mode.ColorResolution()
		return orbbec.StreamProfile{Sensor: sensor, Format: mode.ImageFormat(), Width: r.Width(), Height: r.Height(), FPS: 30}, nil
	case orbbec.SensorDepth, orbbec.SensorIR:
		r := mode.DepthResolution()
		return orbbec.StreamProfile{Sensor: sensor, Format: dcmode.DEPTH16, Width: r.Width(), Height: r.Height(), FPS: 30}, nil
	case orbbec.SensorAccel, orbbec.SensorGyro:
	}
	return orbbec.StreamProfile{}, errors.Errorf("no default profile for sensor %d", sensor)
}

// Start starts streaming.
func (p *OBPipeline) Start(cfg orbbec.PipelineConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.config != nil {
		return errors.New("pipeline already started")
	}
	if p.device.StartErr != nil {
		return p.device.StartErr
	}
	if len(cfg.Profiles) == 0 {
		return errors.New("no stream enabled")
	}
	p.config = &cfg
	p.started = time.Now()
	return nil
}

// Config returns the running configuration, nil when stopped.
func (p *OBPipeline) Config() *orbbec.PipelineConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config
}

// Stop stops streaming.
func (p *OBPipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.config = nil
	return nil
}

func (p *OBPipeline) profile(sensor orbbec.SensorType) (orbbec.StreamProfile, bool) {
	if p.config == nil {
		return orbbec.StreamProfile{}, false
	}
	return lo.Find(p.config.Profiles, func(sp orbbec.StreamProfile) bool { return sp.Sensor == sensor })
}

func resolutions(p *OBPipeline) (dcmode.DepthResolution, dcmode.ColorResolution) {
	depth, col := dcmode.DepthOff, dcmode.ColorOff
	if sp, ok := p.profile(orbbec.SensorDepth); ok {
		depth = depthResolutionOf(sp.Width, sp.Height)
	}
	if sp, ok := p.profile(orbbec.SensorColor); ok {
		col = colorResolutionOf(sp.Width, sp.Height)
	}
	return depth, col
}

func depthResolutionOf(w, h int) dcmode.DepthResolution {
	for _, r := range []dcmode.DepthResolution{
		dcmode.K2_512x424, dcmode.K4A_320x288, dcmode.K4A_640x576, dcmode.K4A_512x512, dcmode.K4A_1024x1024,
	} {
		if r.Width() == w && r.Height() == h {
			return r
		}
	}
	return dcmode.DepthOff
}

func colorResolutionOf(w, h int) dcmode.ColorResolution {
	for r := dcmode.R720P; r <= dcmode.R3072P; r++ {
		if r.Width() == w && r.Height() == h {
			return r
		}
	}
	return dcmode.ColorOff
}

// WaitForFrames renders the scene for the running profiles.
func (p *OBPipeline) WaitForFrames(ctx context.Context, timeout time.Duration) (orbbec.FrameSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.config == nil {
		return nil, errors.New("pipeline not started")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.device.scene.Advance()
	fs := &OBFrameSet{timestamp: time.Since(p.started)}
	if sp, ok := p.profile(orbbec.SensorColor); ok {
		data, err := p.device.scene.Color(sp.Format, sp.Width, sp.Height)
		if err != nil {
			return nil, err
		}
		fs.color = driver.ColorImage{Format: sp.Format, Width: sp.Width, Height: sp.Height, Data: data}
	}
	if sp, ok := p.profile(orbbec.SensorDepth); ok {
		fs.depth = p.device.scene.Depth(sp.Width, sp.Height)
	}
	if sp, ok := p.profile(orbbec.SensorIR); ok {
		fs.infra = p.device.scene.Infra(sp.Width, sp.Height)
	}
	return fs, nil
}

// CameraParam returns the simulated per stream parameters.
func (p *OBPipeline) CameraParam() (calibration.OBCameraParam, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return OrbbecCameraParam(resolutions(p)), nil
}

// CalibrationParam returns the simulated full calibration.
func (p *OBPipeline) CalibrationParam(cfg orbbec.PipelineConfig) (calibration.OBCalibrationParam, error) {
	if p.device.NoCalibrationParam {
		return calibration.OBCalibrationParam{}, errors.New("calibration parameters unavailable")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return OrbbecCalibrationParam(resolutions(p)), nil
}

// StartIMU registers the sample callbacks.
func (p *OBPipeline) StartIMU(onAccel, onGyro func(orbbec.IMUReading)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onAccel, p.onGyro = onAccel, onGyro
	return nil
}

// StopIMU drops the sample callbacks.
func (p *OBPipeline) StopIMU() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onAccel, p.onGyro = nil, nil
	return nil
}

// EmitIMU sends one accelerometer and one gyroscope sample of a device at rest.
func (p *OBPipeline) EmitIMU() {
	p.mu.Lock()
	onAccel, onGyro := p.onAccel, p.onGyro
	ts := time.Since(p.started)
	p.mu.Unlock()
	if onAccel != nil {
		onAccel(orbbec.IMUReading{Z: -9.81, Temperature: 35, Timestamp: ts})
	}
	if onGyro != nil {
		onGyro(orbbec.IMUReading{Timestamp: ts})
	}
}

// OBFrameSet is a simulated frame set.
type OBFrameSet struct {
	color     driver.ColorImage
	depth     []uint16
	infra     []uint16
	timestamp time.Duration
	released  bool
}

// Color returns the color frame.
func (fs *OBFrameSet) Color() driver.ColorImage { return fs.color }

// Depth returns the depth frame.
func (fs *OBFrameSet) Depth() []uint16 { return fs.depth }

// Infra returns the infrared frame.
func (fs *OBFrameSet) Infra() []uint16 { return fs.infra }

// Timestamp returns the device timestamp.
func (fs *OBFrameSet) Timestamp() time.Duration { return fs.timestamp }

// Release marks the frame set released.
func (fs *OBFrameSet) Release() { fs.released = true }
