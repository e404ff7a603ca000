package body

import (
	"context"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/depthcam/calibration"
	"go.viam.com/depthcam/logging"
)

// Bridge feeds captures of one device to a body tracker and keeps the latest bodies.
type Bridge struct {
	logger  logging.Logger
	factory TrackerFactory

	mu        sync.Mutex
	tracker   Tracker
	bodies    []Body
	indexMap  []uint8
	timestamp time.Duration
}

// NewBridge returns a bridge creating its trackers with factory. A nil factory disables tracking.
func NewBridge(factory TrackerFactory, logger logging.Logger) *Bridge {
	return &Bridge{logger: logger, factory: factory}
}

// Start creates the tracker of a session. On failure tracking stays disabled for the session
// and the error is returned for information only.
func (b *Bridge) Start(cal *calibration.UnifiedCalibration, cfg TrackerConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tracker != nil {
		b.tracker.Shutdown()
		b.tracker = nil
	}
	b.clear()
	if b.factory == nil {
		err := errors.New("no body tracker available")
		b.logger.Warnw("body tracking disabled", "error", err)
		return err
	}
	tracker, err := b.factory.NewTracker(cal, cfg)
	if err != nil {
		err = errors.Wrap(err, "cannot create body tracker")
		b.logger.Errorw("body tracking disabled", "error", err, "processing_mode", cfg.ProcessingMode)
		return err
	}
	tracker.SetTemporalSmoothing(cfg.TemporalSmoothing)
	b.tracker = tracker
	b.logger.Infow("body tracker started", "processing_mode", cfg.ProcessingMode, "orientation", cfg.Orientation)
	return nil
}

// Enabled reports whether a tracker is running.
func (b *Bridge) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tracker != nil
}

// SetTemporalSmoothing updates the smoothing of the running tracker.
func (b *Bridge) SetTemporalSmoothing(v float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tracker != nil {
		b.tracker.SetTemporalSmoothing(v)
	}
}

// ProcessNative tracks a native capture. The capture stays owned by the caller.
func (b *Bridge) ProcessNative(ctx context.Context, c Capture) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tracker == nil {
		return
	}
	b.process(ctx, c)
}

// ProcessSynthetic wraps depth and infrared buffers into a transient capture and tracks it.
// The capture is released before returning.
func (b *Bridge) ProcessSynthetic(
	ctx context.Context,
	factory CaptureFactory,
	width, height int,
	depth, infra []uint16,
	timestamp time.Duration,
) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tracker == nil {
		return
	}
	size := width * height
	if size == 0 || len(depth) != size || len(infra) != size {
		b.logger.Debugw("skipping body tracking, missing depth or infrared", "depth", len(depth), "infra", len(infra))
		b.clear()
		return
	}
	c, err := factory.NewCapture(width, height, depth, infra, timestamp)
	if err != nil {
		b.logger.Errorw("cannot create body tracking capture", "error", err)
		b.clear()
		return
	}
	defer c.Release()
	b.process(ctx, c)
}

func (b *Bridge) process(ctx context.Context, c Capture) {
	if ctx.Err() != nil {
		b.clear()
		return
	}
	if err := b.tracker.Enqueue(ctx, c, TrackerTimeout); err != nil {
		if !errors.Is(err, ErrTimeout) {
			b.logger.Errorw("body tracker enqueue failed", "error", err)
		}
		b.clear()
		return
	}
	res, err := b.tracker.Pop(ctx, TrackerTimeout)
	if err != nil || res == nil {
		if err != nil && !errors.Is(err, ErrTimeout) {
			b.logger.Errorw("body tracker pop failed", "error", err)
		}
		b.clear()
		return
	}

	if cap(b.bodies) < len(res.Bodies) {
		b.bodies = make([]Body, len(res.Bodies))
	}
	b.bodies = b.bodies[:len(res.Bodies)]
	for i := range res.Bodies {
		convert(&b.bodies[i], &res.Bodies[i])
	}
	b.indexMap = append(b.indexMap[:0], res.IndexMap...)
	b.timestamp = res.Timestamp
}

func (b *Bridge) clear() {
	b.bodies = b.bodies[:0]
	b.indexMap = b.indexMap[:0]
}

// convert mirrors positions on x and y.
func convert(dst *Body, src *NativeBody) {
	dst.ID = int8(src.ID)
	dst.Tracked = true
	for j := range src.Joints {
		nj := &src.Joints[j]
		dst.Joints[j] = Joint{
			Position:    r3.Vector{X: -nj.Position.X, Y: -nj.Position.Y, Z: nj.Position.Z},
			Orientation: nj.Orientation,
			Confidence:  confidenceTable[nj.Confidence],
		}
	}
}

// Bodies returns the bodies and the bodies id map of the last tick. Both are empty after a
// tracker miss. The slices are owned by the bridge until the next tick.
func (b *Bridge) Bodies() ([]Body, []uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies, b.indexMap
}

// Timestamp is the device timestamp of the last tracked capture.
func (b *Bridge) Timestamp() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timestamp
}

// Shutdown stops the tracker. It must run before the cameras stop.
func (b *Bridge) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tracker == nil {
		return
	}
	b.tracker.Shutdown()
	b.tracker = nil
	b.clear()
	b.logger.Info("body tracker stopped")
}
