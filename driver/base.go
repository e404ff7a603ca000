package driver

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/depthcam/calibration"
	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/settings"
	"go.viam.com/depthcam/transform"
)

// State is the lifecycle state of a driver.
type State int8

// Driver states, in lifecycle order.
const (
	StateClosed State = iota
	StateOpened
	StateConfigured
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpened:
		return "opened"
	case StateConfigured:
		return "configured"
	case StateStreaming:
		return "streaming"
	}
	return "unknown"
}

// PropertySetter reads and writes the color sensor properties of a vendor device. manual is
// false when the sensor regulates the property by itself.
type PropertySetter interface {
	ColorProperty(p settings.ColorProperty) (value int32, manual bool, err error)
	SetColorProperty(p settings.ColorProperty, value int32, manual bool) error
}

// Base holds what every driver shares: lifecycle state, session descriptors, calibration and
// transformation engine, and the reading flag used by the HDR rule.
type Base struct {
	logger     logging.Logger
	deviceType dcmode.DeviceType

	mu        sync.Mutex
	state     State
	serial    string
	modeInfos *dcmode.ModeInfos
	config    settings.ConfigSettings
	cal       *calibration.UnifiedCalibration
	engine    *transform.Engine

	// last HDR value read from or written to the device
	hdr      int32
	hdrKnown bool

	reading atomic.Bool
}

// NewBase returns a closed driver base.
func NewBase(dt dcmode.DeviceType, logger logging.Logger) *Base {
	return &Base{logger: logger, deviceType: dt}
}

// Logger returns the driver logger.
func (b *Base) Logger() logging.Logger {
	return b.logger
}

// DeviceType returns the device family.
func (b *Base) DeviceType() dcmode.DeviceType {
	return b.deviceType
}

// State returns the current lifecycle state.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsOpened returns whether the device is opened, streaming or not.
func (b *Base) IsOpened() bool {
	return b.State() >= StateOpened
}

// IsStreaming returns whether the device streams.
func (b *Base) IsStreaming() bool {
	return b.State() == StateStreaming
}

// SerialNumber returns the serial number read at open time.
func (b *Base) SerialNumber() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.serial
}

// SetReading flags whether a reading loop consumes the device.
func (b *Base) SetReading(reading bool) {
	b.reading.Store(reading)
}

// Reading returns the reading flag.
func (b *Base) Reading() bool {
	return b.reading.Load()
}

// MarkOpened records a successful open.
func (b *Base) MarkOpened(serial string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateClosed {
		return errors.Errorf("cannot open %s device in state %s", b.deviceType, b.state)
	}
	b.state = StateOpened
	b.serial = serial
	return nil
}

// Configure stores the session descriptors. The device must be opened and not streaming.
func (b *Base) Configure(mi *dcmode.ModeInfos, cfg settings.ConfigSettings) error {
	if mi == nil {
		return errors.New("missing mode infos")
	}
	if mi.Device() != b.deviceType {
		return errors.Errorf("mode %s cannot be used with a %s device", mi.Mode(), b.deviceType)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed:
		return ErrNotOpened
	case StateStreaming:
		return errors.New("cannot initialize a streaming device")
	case StateOpened, StateConfigured:
	}
	b.modeInfos = mi
	b.config = cfg
	b.state = StateConfigured
	return nil
}

// SetConfig replaces the session configuration after a downgrade.
func (b *Base) SetConfig(cfg settings.ConfigSettings) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.config = cfg
}

// Config returns the session configuration.
func (b *Base) Config() settings.ConfigSettings {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.config
}

// ModeInfos returns the session descriptor, nil before Initialize.
func (b *Base) ModeInfos() *dcmode.ModeInfos {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.modeInfos
}

// CheckStart returns an error unless the device is configured and stopped.
func (b *Base) CheckStart() error {
	switch b.State() {
	case StateClosed:
		return ErrNotOpened
	case StateOpened:
		return ErrNotConfigured
	case StateStreaming:
		return errors.New("device already streaming")
	case StateConfigured:
	}
	return nil
}

// MarkStreaming stores the session calibration and builds its transformation engine.
func (b *Base) MarkStreaming(cal calibration.UnifiedCalibration) error {
	engine, err := transform.NewEngine(&cal, b.logger.Sublogger("transform"))
	if err != nil {
		return errors.Wrap(err, "cannot create transformation engine")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cal = &cal
	b.engine = engine
	b.state = StateStreaming
	return nil
}

// MarkStopped drops the session engine. The configuration is kept for a later Start.
func (b *Base) MarkStopped() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateStreaming {
		b.state = StateConfigured
	}
	b.engine = nil
}

// MarkClosed resets the base to its initial state.
func (b *Base) MarkClosed() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.serial = ""
	b.modeInfos = nil
	b.cal = nil
	b.engine = nil
	b.hdrKnown = false
}

// Calibration returns the session calibration, nil when the device never streamed.
func (b *Base) Calibration() *calibration.UnifiedCalibration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cal
}

// Engine returns the session transformation engine, nil when not streaming.
func (b *Base) Engine() *transform.Engine {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine
}

// ApplyColorSettings pushes color settings to the device. Values are clamped to the device
// range, unsupported properties are skipped and a property is only written when it differs
// from the device value. HDR is left untouched while reading: the device is not queried and a
// change against the last known value is only logged.
func (b *Base) ApplyColorSettings(setter PropertySetter, cs settings.ColorSettings) {
	ranges := settings.RangesFor(b.deviceType)
	if ranges == nil {
		return
	}
	for _, p := range settings.ColorProperties() {
		// auto modes travel with their value property
		if p == settings.PropAutoExposure || p == settings.PropAutoWhiteBalance {
			continue
		}
		r := ranges[p]
		if !r.Supported {
			continue
		}
		value := r.Clamp(cs.Get(p))
		manual := true
		switch p {
		case settings.PropExposure:
			manual = !cs.AutoExposureTime
		case settings.PropWhiteBalance:
			manual = !cs.AutoWhiteBalance
		default:
		}

		if p == settings.PropHDR && b.reading.Load() {
			if hdr, known := b.knownHDR(); !known || hdr != value {
				b.logger.Warnw("HDR can only be changed while the device is not reading", "hdr", cs.HDR)
			}
			continue
		}

		current, currentManual, err := setter.ColorProperty(p)
		if err != nil {
			b.logger.Warnw("cannot read color property", "property", p, "error", err)
			continue
		}
		if p == settings.PropHDR {
			b.setKnownHDR(current)
		}
		if current == value && currentManual == manual {
			continue
		}
		if err := setter.SetColorProperty(p, value, manual); err != nil {
			b.logger.Warnw("cannot set color property", "property", p, "value", value, "error", err)
			continue
		}
		if p == settings.PropHDR {
			b.setKnownHDR(value)
		}
	}
}

func (b *Base) knownHDR() (int32, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hdr, b.hdrKnown
}

func (b *Base) setKnownHDR(v int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hdr, b.hdrKnown = v, true
}
