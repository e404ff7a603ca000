package fake

import (
	"context"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/depthcam/body"
	"go.viam.com/depthcam/calibration"
)

type depthCapture interface {
	Depth() []uint16
}

// Tracker is a simulated body tracker. It reports one body standing at the center of every
// depth image whose center pixel is valid.
type Tracker struct {
	cal *calibration.UnifiedCalibration

	mu        sync.Mutex
	pending   []*body.Result
	smoothing float32
	shutdown  bool
	enqueued  int
}

var _ body.Tracker = (*Tracker)(nil)

// TrackerFactory creates simulated trackers. Err makes creation fail.
type TrackerFactory struct {
	Err error

	mu       sync.Mutex
	trackers []*Tracker
}

// NewTracker creates a tracker.
func (f *TrackerFactory) NewTracker(cal *calibration.UnifiedCalibration, cfg body.TrackerConfig) (body.Tracker, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	t := &Tracker{cal: cal, smoothing: cfg.TemporalSmoothing}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trackers = append(f.trackers, t)
	return t, nil
}

// Last returns the last created tracker, nil if none.
func (f *TrackerFactory) Last() *Tracker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.trackers) == 0 {
		return nil
	}
	return f.trackers[len(f.trackers)-1]
}

// Enqueue tracks the capture synchronously.
func (t *Tracker) Enqueue(ctx context.Context, c body.Capture, timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shutdown {
		return errors.New("tracker shut down")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dc, ok := c.(depthCapture)
	if !ok {
		return errors.Errorf("unsupported capture %T", c)
	}
	t.enqueued++
	t.pending = append(t.pending, t.track(dc.Depth()))
	return nil
}

func (t *Tracker) track(depth []uint16) *body.Result {
	w, h := t.cal.Depth.Width, t.cal.Depth.Height
	res := &body.Result{IndexMap: make([]uint8, len(depth))}
	for i := range res.IndexMap {
		res.IndexMap[i] = 255
	}
	if len(depth) != w*h || w == 0 {
		return res
	}
	cx, cy := BoxCenter(w, h)
	z := depth[cy*w+cx]
	if z == 0 {
		return res
	}
	var nb body.NativeBody
	nb.ID = 1
	for j := range nb.Joints {
		// joints stacked along the vertical axis of the camera
		nb.Joints[j] = body.NativeJoint{
			Position:    r3.Vector{X: 0, Y: float64(j-16) * 20, Z: float64(z)},
			Orientation: body.Quaternion{W: 1},
			Confidence:  body.NativeConfidenceMedium,
		}
	}
	res.Bodies = []body.NativeBody{nb}
	for y := h / 4; y < h*3/4; y++ {
		for x := w * 3 / 8; x < w*5/8; x++ {
			if depth[y*w+x] == z {
				res.IndexMap[y*w+x] = 0
			}
		}
	}
	return res
}

// Pop returns the oldest result.
func (t *Tracker) Pop(ctx context.Context, timeout time.Duration) (*body.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(t.pending) == 0 {
		return nil, body.ErrTimeout
	}
	res := t.pending[0]
	t.pending = t.pending[1:]
	return res, nil
}

// SetTemporalSmoothing stores the smoothing.
func (t *Tracker) SetTemporalSmoothing(v float32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.smoothing = v
}

// Shutdown stops the tracker.
func (t *Tracker) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shutdown = true
}

// IsShutdown returns whether Shutdown was called.
func (t *Tracker) IsShutdown() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shutdown
}

// Enqueued returns the number of tracked captures.
func (t *Tracker) Enqueued() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enqueued
}

// SyntheticCapture wraps depth and infrared buffers.
type SyntheticCapture struct {
	DepthImage []uint16
	InfraImage []uint16
	Timestamp  time.Duration
	released   atomic.Bool
}

// Depth returns the depth buffer.
func (c *SyntheticCapture) Depth() []uint16 { return c.DepthImage }

// Release marks the capture released.
func (c *SyntheticCapture) Release() { c.released.Store(true) }

// CaptureFactory creates synthetic captures and counts the live ones.
type CaptureFactory struct {
	mu   sync.Mutex
	made []*SyntheticCapture
}

var _ body.CaptureFactory = (*CaptureFactory)(nil)

// NewCapture wraps the buffers.
func (f *CaptureFactory) NewCapture(width, height int, depth, infra []uint16, timestamp time.Duration) (body.Capture, error) {
	if len(depth) != width*height || len(infra) != width*height {
		return nil, errors.New("buffers do not match their dimensions")
	}
	c := &SyntheticCapture{DepthImage: depth, InfraImage: infra, Timestamp: timestamp}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.made = append(f.made, c)
	return c, nil
}

// Live returns how many captures were not released.
func (f *CaptureFactory) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	live := 0
	for _, c := range f.made {
		if !c.released.Load() {
			live++
		}
	}
	return live
}

// Made returns how many captures were created.
func (f *CaptureFactory) Made() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.made)
}
