package orbbec

import (
	"context"
	"time"

	"go.viam.com/depthcam/calibration"
	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/driver"
)

// SensorType is a libobsensor sensor.
type SensorType int8

// Sensors.
const (
	SensorColor SensorType = iota
	SensorDepth
	SensorIR
	SensorAccel
	SensorGyro
)

// StreamProfile is a video stream configuration.
type StreamProfile struct {
	Sensor SensorType
	Format dcmode.ImageFormat
	Width  int
	Height int
	FPS    int
}

// PipelineConfig selects the streams started by a pipeline.
type PipelineConfig struct {
	Profiles  []StreamProfile
	FrameSync bool
}

// SyncMode is the libobsensor multi device synchronisation mode.
type SyncMode int8

// Sync modes.
const (
	SyncFreeRun SyncMode = iota
	SyncStandalone
	SyncPrimary
	SyncSecondary
)

// SyncConfig is the multi device synchronisation configuration.
type SyncConfig struct {
	Mode              SyncMode
	TriggerOutEnable  bool
	TriggerOutDelayUs int32
	ColorDelayUs      int32
	DepthDelayUs      int32
}

// DeviceInfo describes a plugged device.
type DeviceInfo struct {
	Name   string
	Serial string
}

// SDK is the libobsensor context.
type SDK interface {
	Devices() ([]DeviceInfo, error)
	OpenDevice(serial string) (Device, error)
	OpenNetDevice(address string, port uint16) (Device, error)
}

// Device is an opened Orbbec device. Color properties go through the driver.PropertySetter
// methods, HDR included.
type Device interface {
	driver.PropertySetter

	Info() DeviceInfo
	SetIndicatorLight(on bool) error
	SyncConfig() (SyncConfig, error)
	SetSyncConfig(cfg SyncConfig) error
	NewPipeline() (Pipeline, error)
	Close() error
}

// Pipeline streams the sensors of a device.
type Pipeline interface {
	// StreamProfile returns the profile matching the request, ok is false when the device has
	// no such profile.
	StreamProfile(req StreamProfile) (profile StreamProfile, ok bool, err error)
	DefaultProfile(sensor SensorType) (StreamProfile, error)
	Start(cfg PipelineConfig) error
	Stop() error
	// WaitForFrames returns driver.ErrTimeout when no frame set arrived in time.
	WaitForFrames(ctx context.Context, timeout time.Duration) (FrameSet, error)
	CameraParam() (calibration.OBCameraParam, error)
	CalibrationParam(cfg PipelineConfig) (calibration.OBCalibrationParam, error)
	// StartIMU streams accelerometer and gyroscope samples to the callbacks.
	StartIMU(onAccel, onGyro func(sample IMUReading)) error
	StopIMU() error
}

// IMUReading is one accelerometer or gyroscope sample.
type IMUReading struct {
	X, Y, Z     float32
	Temperature float32
	Timestamp   time.Duration
}

// FrameSet is a set of synchronized frames.
type FrameSet interface {
	Color() driver.ColorImage
	Depth() []uint16
	Infra() []uint16
	Timestamp() time.Duration
	Release()
}
