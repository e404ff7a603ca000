package dcmode

import (
	"time"

	"github.com/pkg/errors"
)

// Range is a closed interval.
type Range struct {
	Min, Max float64
}

// Capture timeouts per framerate.
const (
	TimeoutF30 = 40 * time.Millisecond
	TimeoutF15 = 70 * time.Millisecond
	TimeoutF5  = 250 * time.Millisecond
)

// ModeInfos describes one capture session. Everything but the capture id is fixed at
// construction; a new value is built whenever the session is reconfigured.
type ModeInfos struct {
	mode            Mode
	imageFormat     ImageFormat
	colorResolution ColorResolution
	depthResolution DepthResolution
	fps             Framerate
	timeout         time.Duration

	hasColor bool
	hasDepth bool
	hasInfra bool

	colorWidth, colorHeight int
	depthWidth, depthHeight int
	infraWidth, infraHeight int
	depthRange              Range

	idCapture uint64
}

// NewModeInfos builds the session descriptor of a mode. The infrared stream shares the depth
// sensor, so it is only available when depth is on and enableInfra is set.
func NewModeInfos(mode Mode, enableInfra bool) (*ModeInfos, error) {
	if !mode.IsValid() {
		return nil, errors.Errorf("invalid capture mode %d", mode)
	}
	mi := &ModeInfos{
		mode:            mode,
		imageFormat:     mode.ImageFormat(),
		colorResolution: mode.ColorResolution(),
		depthResolution: mode.DepthResolution(),
		fps:             mode.Framerate(),
	}
	switch mi.fps {
	case F30:
		mi.timeout = TimeoutF30
	case F15:
		mi.timeout = TimeoutF15
	case F5:
		mi.timeout = TimeoutF5
	case UndefinedFramerate:
		mi.timeout = 500 * time.Millisecond
	}

	mi.hasColor = mi.colorResolution != ColorOff
	mi.hasDepth = mi.depthResolution != DepthOff
	mi.hasInfra = mi.hasDepth && enableInfra && DeviceCapabilities(mode.Device()).Infra

	mi.colorWidth, mi.colorHeight = mi.colorResolution.Width(), mi.colorResolution.Height()
	info := mi.depthResolution.Info()
	mi.depthWidth, mi.depthHeight = info.Width, info.Height
	mi.depthRange = Range{Min: info.MinRange, Max: info.MaxRange}
	if mi.hasInfra {
		mi.infraWidth, mi.infraHeight = info.Width, info.Height
	}
	return mi, nil
}

// Mode returns the session mode.
func (mi *ModeInfos) Mode() Mode { return mi.mode }

// Device returns the device family of the session.
func (mi *ModeInfos) Device() DeviceType { return mi.mode.Device() }

// ImageFormat returns the color format of the session.
func (mi *ModeInfos) ImageFormat() ImageFormat { return mi.imageFormat }

// ColorResolution returns the color resolution of the session.
func (mi *ModeInfos) ColorResolution() ColorResolution { return mi.colorResolution }

// DepthResolution returns the depth resolution of the session.
func (mi *ModeInfos) DepthResolution() DepthResolution { return mi.depthResolution }

// Framerate returns the session framerate.
func (mi *ModeInfos) Framerate() Framerate { return mi.fps }

// Timeout returns how long a single capture may block.
func (mi *ModeInfos) Timeout() time.Duration { return mi.timeout }

// HasColor returns whether the color stream is on.
func (mi *ModeInfos) HasColor() bool { return mi.hasColor }

// HasDepth returns whether the depth stream is on.
func (mi *ModeInfos) HasDepth() bool { return mi.hasDepth }

// HasInfra returns whether the infrared stream is on.
func (mi *ModeInfos) HasInfra() bool { return mi.hasInfra }

// HasAudio returns whether the device family records audio.
func (mi *ModeInfos) HasAudio() bool { return DeviceCapabilities(mi.Device()).Audio }

// HasIMU returns whether the device family has an IMU.
func (mi *ModeInfos) HasIMU() bool { return DeviceCapabilities(mi.Device()).IMU }

// HasBodyTracking returns whether body tracking can run in this session.
func (mi *ModeInfos) HasBodyTracking() bool {
	return mi.hasDepth && DeviceCapabilities(mi.Device()).BodyTracking
}

// ColorWidth in pixels.
func (mi *ModeInfos) ColorWidth() int { return mi.colorWidth }

// ColorHeight in pixels.
func (mi *ModeInfos) ColorHeight() int { return mi.colorHeight }

// ColorSize is the number of color pixels.
func (mi *ModeInfos) ColorSize() int { return mi.colorWidth * mi.colorHeight }

// RGBAColorSizeBytes is the size of a converted color image.
func (mi *ModeInfos) RGBAColorSizeBytes() int { return mi.ColorSize() * 4 }

// DepthWidth in pixels.
func (mi *ModeInfos) DepthWidth() int { return mi.depthWidth }

// DepthHeight in pixels.
func (mi *ModeInfos) DepthHeight() int { return mi.depthHeight }

// DepthSize is the number of depth pixels.
func (mi *ModeInfos) DepthSize() int { return mi.depthWidth * mi.depthHeight }

// DepthRangeM is the sensor range in meters.
func (mi *ModeInfos) DepthRangeM() Range { return mi.depthRange }

// DepthRangeMM is the sensor range in millimeters.
func (mi *ModeInfos) DepthRangeMM() Range {
	return Range{Min: mi.depthRange.Min * 1000, Max: mi.depthRange.Max * 1000}
}

// InfraWidth in pixels.
func (mi *ModeInfos) InfraWidth() int { return mi.infraWidth }

// InfraHeight in pixels.
func (mi *ModeInfos) InfraHeight() int { return mi.infraHeight }

// InfraSize is the number of infrared pixels.
func (mi *ModeInfos) InfraSize() int { return mi.infraWidth * mi.infraHeight }

// IDCapture returns the number of ticks processed in this session.
func (mi *ModeInfos) IDCapture() uint64 { return mi.idCapture }

// IncrementCaptureID is called by the reading loop once per processed tick.
func (mi *ModeInfos) IncrementCaptureID() { mi.idCapture++ }
