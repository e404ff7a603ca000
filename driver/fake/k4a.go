package fake

import (
	"context"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/depthcam/calibration"
	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/driver"
	"go.viam.com/depthcam/driver/azure"
	"go.viam.com/depthcam/settings"
)

// K4A is a simulated k4a library.
type K4A struct {
	Devices []*K4ADevice
}

var _ azure.SDK = (*K4A)(nil)

// NewK4A returns a library with one device per serial number, all filming scene.
func NewK4A(scene *Scene, serials ...string) *K4A {
	k := &K4A{}
	for _, serial := range serials {
		k.Devices = append(k.Devices, NewK4ADevice(scene, serial))
	}
	return k
}

// InstalledCount returns the number of simulated devices.
func (k *K4A) InstalledCount() uint32 {
	return uint32(len(k.Devices))
}

// Open opens a simulated device.
func (k *K4A) Open(index uint32) (azure.Device, error) {
	if int(index) >= len(k.Devices) {
		return nil, errors.Errorf("no device at index %d", index)
	}
	dev := k.Devices[index]
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.opened {
		return nil, errors.Errorf("device %d already opened", index)
	}
	dev.opened = true
	return dev, nil
}

// K4ADevice is a simulated Azure Kinect.
type K4ADevice struct {
	*Properties

	scene  *Scene
	serial string

	mu      sync.Mutex
	opened  bool
	cameras *azure.DeviceConfig
	imu     bool
	started time.Time

	// SyncIn and SyncOut simulate cables plugged in the sync jacks.
	SyncIn  bool
	SyncOut bool
	// StartErr makes StartCameras fail.
	StartErr error
	// CalibrationErr makes Calibration fail.
	CalibrationErr error
	// StartCalls counts the camera starts.
	StartCalls int
}

var _ azure.Device = (*K4ADevice)(nil)

// NewK4ADevice returns a closed simulated device.
func NewK4ADevice(scene *Scene, serial string) *K4ADevice {
	return &K4ADevice{
		Properties: NewProperties(dcmode.AzureKinect),
		scene:      scene,
		serial:     serial,
	}
}

// SerialNumber returns the serial number.
func (d *K4ADevice) SerialNumber() (string, error) {
	return d.serial, nil
}

// SyncJacks reports the simulated cables.
func (d *K4ADevice) SyncJacks() (bool, bool, error) {
	return d.SyncIn, d.SyncOut, nil
}

// StartCameras records the configuration.
func (d *K4ADevice) StartCameras(cfg azure.DeviceConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.StartCalls++
	if d.StartErr != nil {
		return d.StartErr
	}
	if d.cameras != nil {
		return errors.New("cameras already started")
	}
	if cfg.ColorResolution == dcmode.ColorOff && cfg.DepthResolution == dcmode.DepthOff {
		return errors.New("every stream is off")
	}
	d.cameras = &cfg
	d.started = time.Now()
	return nil
}

// StopCameras stops the streams.
func (d *K4ADevice) StopCameras() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cameras = nil
}

// CamerasConfig returns the configuration of the running cameras, nil when stopped.
func (d *K4ADevice) CamerasConfig() *azure.DeviceConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cameras
}

// Calibration returns the simulated calibration.
func (d *K4ADevice) Calibration(depth dcmode.DepthResolution, col dcmode.ColorResolution) (calibration.UnifiedCalibration, error) {
	if d.CalibrationErr != nil {
		return calibration.UnifiedCalibration{}, d.CalibrationErr
	}
	return Calibration(depth, col), nil
}

// StartIMU starts the simulated IMU.
func (d *K4ADevice) StartIMU() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cameras == nil {
		return errors.New("imu needs the cameras running")
	}
	d.imu = true
	return nil
}

// StopIMU stops the simulated IMU.
func (d *K4ADevice) StopIMU() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.imu = false
}

// IMUSample returns a device at rest.
func (d *K4ADevice) IMUSample(timeout time.Duration) (driver.IMUSample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.imu {
		return driver.IMUSample{}, driver.ErrTimeout
	}
	ts := time.Since(d.started)
	return driver.IMUSample{
		Temperature:  31.5,
		Acc:          r3.Vector{Z: -9.81},
		AccTimestamp: ts,
		GyrTimestamp: ts,
	}, nil
}

// Capture renders the scene for the running configuration.
func (d *K4ADevice) Capture(ctx context.Context, timeout time.Duration) (azure.Capture, error) {
	d.mu.Lock()
	cfg := d.cameras
	started := d.started
	d.mu.Unlock()
	if cfg == nil {
		return nil, errors.New("cameras not started")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.scene.Advance()

	c := &K4ACapture{Timestamp: time.Since(started)}
	if cfg.ColorResolution != dcmode.ColorOff {
		w, h := cfg.ColorResolution.Width(), cfg.ColorResolution.Height()
		data, err := d.scene.Color(cfg.ColorFormat, w, h)
		if err != nil {
			return nil, err
		}
		c.ColorImage = driver.ColorImage{Format: cfg.ColorFormat, Width: w, Height: h, Data: data}
	}
	if cfg.DepthResolution != dcmode.DepthOff {
		w, h := cfg.DepthResolution.Width(), cfg.DepthResolution.Height()
		c.DepthImage = d.scene.Depth(w, h)
		c.InfraImage = d.scene.Infra(w, h)
	}
	return c, nil
}

// Close closes the device.
func (d *K4ADevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return errors.New("device not opened")
	}
	d.opened = false
	d.cameras = nil
	d.imu = false
	return nil
}

// K4ACapture is a simulated k4a capture.
type K4ACapture struct {
	ColorImage driver.ColorImage
	DepthImage []uint16
	InfraImage []uint16
	Timestamp  time.Duration

	mu       sync.Mutex
	released bool
}

// Color returns the color image.
func (c *K4ACapture) Color() driver.ColorImage { return c.ColorImage }

// Depth returns the depth image.
func (c *K4ACapture) Depth() []uint16 { return c.DepthImage }

// Infra returns the infrared image.
func (c *K4ACapture) Infra() []uint16 { return c.InfraImage }

// Release marks the capture released.
func (c *K4ACapture) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = true
}

// Released returns whether Release was called.
func (c *K4ACapture) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

// Properties simulates the color controls of a device and counts the writes.
type Properties struct {
	mu     sync.Mutex
	values map[settings.ColorProperty]int32
	manual map[settings.ColorProperty]bool
	sets   map[settings.ColorProperty]int
}

// NewProperties returns controls holding the defaults of a device family.
func NewProperties(dt dcmode.DeviceType) *Properties {
	p := &Properties{
		values: map[settings.ColorProperty]int32{},
		manual: map[settings.ColorProperty]bool{},
		sets:   map[settings.ColorProperty]int{},
	}
	if ranges := settings.RangesFor(dt); ranges != nil {
		for _, prop := range settings.ColorProperties() {
			p.values[prop] = ranges[prop].Default
		}
	}
	return p
}

// ColorProperty returns a control value.
func (p *Properties) ColorProperty(prop settings.ColorProperty) (int32, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[prop], p.manual[prop] || (prop != settings.PropExposure && prop != settings.PropWhiteBalance), nil
}

// SetColorProperty writes a control value.
func (p *Properties) SetColorProperty(prop settings.ColorProperty, value int32, manual bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[prop] = value
	p.manual[prop] = manual
	p.sets[prop]++
	return nil
}

// SetCalls returns how many times a control was written.
func (p *Properties) SetCalls(prop settings.ColorProperty) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sets[prop]
}

// TotalSetCalls returns how many control writes happened.
func (p *Properties) TotalSetCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.sets {
		total += n
	}
	return total
}
