package azure

import (
	"context"
	"time"

	"go.viam.com/depthcam/body"
	"go.viam.com/depthcam/calibration"
	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/driver"
)

// DeviceConfig is the k4a stream configuration.
type DeviceConfig struct {
	ColorFormat            dcmode.ImageFormat
	ColorResolution        dcmode.ColorResolution
	DepthResolution        dcmode.DepthResolution
	Framerate              dcmode.Framerate
	SynchronizedImagesOnly bool
	DepthDelayOffColorUsec int32
	SyncMode               dcmode.SyncMode
	// SubordinateDelayOffMasterUsec is only used by subordinate devices.
	SubordinateDelayOffMasterUsec uint32
	DisableStreamingIndicator     bool
}

// DisabledConfig is a configuration with every stream off.
func DisabledConfig() DeviceConfig {
	return DeviceConfig{
		ColorFormat:     dcmode.NA,
		ColorResolution: dcmode.ColorOff,
		DepthResolution: dcmode.DepthOff,
		Framerate:       dcmode.F30,
		SyncMode:        dcmode.Standalone,
	}
}

// SDK is the k4a library.
type SDK interface {
	InstalledCount() uint32
	Open(index uint32) (Device, error)
}

// Device is an opened k4a device. Its color controls are read and written through the
// driver.PropertySetter methods.
type Device interface {
	driver.PropertySetter

	SerialNumber() (string, error)
	// SyncJacks reports whether cables are plugged in the sync in and sync out jacks.
	SyncJacks() (syncIn, syncOut bool, err error)

	StartCameras(cfg DeviceConfig) error
	StopCameras()
	Calibration(depth dcmode.DepthResolution, color dcmode.ColorResolution) (calibration.UnifiedCalibration, error)

	StartIMU() error
	StopIMU()
	// IMUSample returns driver.ErrTimeout when no sample is queued.
	IMUSample(timeout time.Duration) (driver.IMUSample, error)

	// Capture returns driver.ErrTimeout when no capture arrived in time.
	Capture(ctx context.Context, timeout time.Duration) (Capture, error)

	Close() error
}

// Capture is a k4a capture. It is accepted as is by the body tracker.
type Capture interface {
	body.Capture
	Color() driver.ColorImage
	Depth() []uint16
	Infra() []uint16
}
