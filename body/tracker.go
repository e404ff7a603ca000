package body

import (
	"context"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/depthcam/calibration"
	"go.viam.com/depthcam/dcmode"
)

// TrackerTimeout bounds every enqueue and pop.
const TrackerTimeout = time.Millisecond

// ErrTimeout is returned by trackers when the queue did not move within the timeout.
var ErrTimeout = errors.New("body tracker timed out")

// TrackerConfig configures the tracker of a session.
type TrackerConfig struct {
	Orientation       dcmode.SensorOrientation
	ProcessingMode    dcmode.BTProcessingMode
	GPUID             int32
	TemporalSmoothing float32
}

// Capture is a tracker native capture holding at least a depth and an infrared image.
type Capture interface {
	// Release frees the native handles.
	Release()
}

// CaptureFactory wraps depth and infrared buffers of a device without a native capture into a
// Capture the tracker accepts.
type CaptureFactory interface {
	NewCapture(width, height int, depth, infra []uint16, timestamp time.Duration) (Capture, error)
}

// NativeConfidence is the tracker confidence level.
type NativeConfidence int32

// Tracker confidence levels.
const (
	NativeConfidenceNone NativeConfidence = iota
	NativeConfidenceLow
	NativeConfidenceMedium
	NativeConfidenceHigh
)

var confidenceTable = map[NativeConfidence]Confidence{
	NativeConfidenceNone:   ConfidenceNone,
	NativeConfidenceLow:    ConfidenceLow,
	NativeConfidenceMedium: ConfidenceMedium,
	NativeConfidenceHigh:   ConfidenceHigh,
}

// NativeJoint is a joint in the tracker convention.
type NativeJoint struct {
	Position    r3.Vector
	Orientation Quaternion
	Confidence  NativeConfidence
}

// NativeBody is a skeleton in the tracker convention.
type NativeBody struct {
	ID     uint32
	Joints [JointCount]NativeJoint
}

// Result is the tracker output for one capture.
type Result struct {
	Bodies []NativeBody
	// IndexMap is a depth sized image of body indices, 255 for the background.
	IndexMap  []uint8
	Timestamp time.Duration
}

// Tracker is the body tracker of one device.
type Tracker interface {
	Enqueue(ctx context.Context, c Capture, timeout time.Duration) error
	// Pop returns ErrTimeout when no result is ready.
	Pop(ctx context.Context, timeout time.Duration) (*Result, error)
	SetTemporalSmoothing(v float32)
	Shutdown()
}

// TrackerFactory creates trackers.
type TrackerFactory interface {
	NewTracker(cal *calibration.UnifiedCalibration, cfg TrackerConfig) (Tracker, error)
}

// TrackerFactoryFunc adapts a function to a TrackerFactory.
type TrackerFactoryFunc func(cal *calibration.UnifiedCalibration, cfg TrackerConfig) (Tracker, error)

// NewTracker calls f.
func (f TrackerFactoryFunc) NewTracker(cal *calibration.UnifiedCalibration, cfg TrackerConfig) (Tracker, error) {
	return f(cal, cfg)
}
