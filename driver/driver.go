// Package driver defines the contract every depth camera driver implements, along with the
// state machine and color property logic shared by the vendor implementations.
package driver

import (
	"context"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/depthcam/body"
	"go.viam.com/depthcam/calibration"
	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/settings"
	"go.viam.com/depthcam/transform"
)

var (
	// ErrNotOpened is returned by operations that need an opened device.
	ErrNotOpened = errors.New("device not opened")
	// ErrNotConfigured is returned when Start is called before Initialize.
	ErrNotConfigured = errors.New("device not configured")
	// ErrNotStreaming is returned by captures on a stopped device.
	ErrNotStreaming = errors.New("device not streaming")
	// ErrTimeout is returned when no capture arrived within the timeout.
	ErrTimeout = errors.New("capture timed out")
)

// ColorImage is a view on the last captured color image, in the device native format. The data
// is owned by the driver and valid until the next capture.
type ColorImage struct {
	Format dcmode.ImageFormat
	Width  int
	Height int
	Data   []byte
}

// Empty returns whether no color image was captured.
func (c ColorImage) Empty() bool {
	return len(c.Data) == 0
}

// IMUSample is one accelerometer and gyroscope reading.
type IMUSample struct {
	Temperature float32
	// Acc is in m/s2.
	Acc          r3.Vector
	AccTimestamp time.Duration
	// Gyr is in rad/s.
	Gyr          r3.Vector
	GyrTimestamp time.Duration
}

// Driver controls one physical depth camera. A driver is used by a single reading goroutine,
// apart from UpdateColorSettings and SetReading which may be called from any goroutine.
type Driver interface {
	Open(ctx context.Context, deviceIndex uint32) error
	IsOpened() bool
	// Initialize prepares the session. The stream configuration may be downgraded with a
	// warning when the hardware cannot honour it.
	Initialize(mi *dcmode.ModeInfos, cfg settings.ConfigSettings) error
	Start(ctx context.Context) error
	IsStreaming() bool
	Stop(ctx context.Context) error
	Close(ctx context.Context) error

	// CaptureFrame waits for the next capture. ErrTimeout means nothing arrived in time.
	CaptureFrame(ctx context.Context, timeout time.Duration) error
	ReadColorImage() ColorImage
	ReadDepthImage() []uint16
	ReadInfraImage() []uint16
	// ReadBodies tracks the last capture. ctx bounds the tracker calls.
	ReadBodies(ctx context.Context) ([]body.Body, []uint8)
	ReadFromIMU() (IMUSample, bool)
	ReadFromMicrophones() (channels int, samples []float32)

	Calibration() *calibration.UnifiedCalibration
	Engine() *transform.Engine

	UpdateColorSettings(ctx context.Context, cs settings.ColorSettings)
	SetReading(reading bool)
	SerialNumber() string
	DeviceType() dcmode.DeviceType
}
