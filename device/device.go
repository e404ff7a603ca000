// Package device runs the reading loop of depth cameras: it drives the frame assembler of a
// session in a background goroutine and hands the frames to the registered callbacks.
package device

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	goutils "go.viam.com/utils"
	"golang.org/x/time/rate"

	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/driver"
	"go.viam.com/depthcam/frame"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/settings"
)

// ErrNotConfigured is returned when reading is started before Configure.
var ErrNotConfigured = errors.New("device has no capture session")

const (
	defaultDelayBufferSize = 150
	defaultRetryDelay      = 100 * time.Millisecond
	defaultTimingLogEvery  = 300

	// the first failures of a burst are all logged, then one per interval
	failureLogBurst    = 3
	failureLogInterval = 5 * time.Second
)

// Options configures a Device.
type Options struct {
	Clock clock.Clock
	// DelayBufferSize bounds the frames held for delayed delivery.
	DelayBufferSize int
	// RetryDelay is waited after a failed capture.
	RetryDelay time.Duration
	// NormalsConnectivity selects the neighbourhood of cloud normals.
	NormalsConnectivity dcmode.Connectivity
	// TimingLogEvery logs the stage timings every that many frames, 0 to never log.
	TimingLogEvery int
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{
		DelayBufferSize:     defaultDelayBufferSize,
		RetryDelay:          defaultRetryDelay,
		NormalsConnectivity: dcmode.Connectivity4,
		TimingLogEvery:      defaultTimingLogEvery,
	}
}

// Stats counts the outcome of the ticks of a device.
type Stats struct {
	Frames   uint64
	Timeouts uint64
	Failures uint64
}

// Device owns one driver and its reading loop. Settings may be changed from any goroutine
// while reading; they are picked up at the next tick. The capture session itself only changes
// through Configure.
type Device struct {
	drv    driver.Driver
	logger logging.Logger
	opts   Options

	mu                 sync.Mutex
	settings           settings.DeviceSettings
	assembler          *frame.Assembler
	workers            *goutils.StoppableWorkers
	localHandlers      []func(*frame.LocalFrame)
	compressedHandlers []func(*frame.CompressedFrame)

	localDelay      *frame.DelayBuffer[*frame.LocalFrame]
	compressedDelay *frame.DelayBuffer[*frame.CompressedFrame]

	failureLogs rate.Sometimes

	reading  atomic.Bool
	frames   atomic.Uint64
	timeouts atomic.Uint64
	failures atomic.Uint64
}

// New wraps a closed driver.
func New(drv driver.Driver, logger logging.Logger, opts Options) *Device {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.DelayBufferSize <= 0 {
		opts.DelayBufferSize = defaultDelayBufferSize
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	return &Device{
		drv:             drv,
		failureLogs:     rate.Sometimes{First: failureLogBurst, Interval: failureLogInterval},
		logger:          logger,
		opts:            opts,
		settings:        settings.DefaultDeviceSettings(drv.DeviceType()),
		localDelay:      frame.NewDelayBuffer[*frame.LocalFrame](opts.Clock, opts.DelayBufferSize),
		compressedDelay: frame.NewDelayBuffer[*frame.CompressedFrame](opts.Clock, opts.DelayBufferSize),
	}
}

// Driver returns the driver of the device.
func (d *Device) Driver() driver.Driver {
	return d.drv
}

// Open opens the device at deviceIndex.
func (d *Device) Open(ctx context.Context, deviceIndex uint32) error {
	if d.drv.IsOpened() {
		return nil
	}
	if err := d.drv.Open(ctx, deviceIndex); err != nil {
		return errors.Wrapf(err, "cannot open %s device %d", d.drv.DeviceType(), deviceIndex)
	}
	return nil
}

// Configure validates the settings and starts a new capture session with them. Reading is
// stopped first and has to be started again.
func (d *Device) Configure(ctx context.Context, ds settings.DeviceSettings) error {
	ignored, err := ds.Validate("device")
	if err != nil {
		return err
	}
	for _, field := range ignored {
		d.logger.Infow("setting ignored by this device family", "field", field)
	}
	if !d.drv.IsOpened() {
		return driver.ErrNotOpened
	}
	d.StopReading()

	mi, err := dcmode.NewModeInfos(ds.Config.Mode, ds.Config.EnableIRStream)
	if err != nil {
		return err
	}
	if d.drv.IsStreaming() {
		if err := d.drv.Stop(ctx); err != nil {
			return errors.Wrap(err, "cannot stop previous session")
		}
	}
	if err := d.drv.Initialize(mi, ds.Config); err != nil {
		return errors.Wrap(err, "cannot initialize session")
	}
	d.drv.UpdateColorSettings(ctx, ds.Color)
	if err := d.drv.Start(ctx); err != nil {
		return errors.Wrap(err, "cannot start session")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings = ds
	d.assembler = frame.NewAssembler(d.drv, mi, d.logger.Sublogger("frame"),
		frame.WithClock(d.opts.Clock),
		frame.WithNormalsConnectivity(d.opts.NormalsConnectivity))
	d.localDelay.Reset()
	d.compressedDelay.Reset()
	d.logger.Infow("capture session started", "mode", mi.Mode(), "serial", d.drv.SerialNumber())
	return nil
}

// Settings returns the current settings.
func (d *Device) Settings() settings.DeviceSettings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings
}

// SetFilters replaces the filters used from the next tick on.
func (d *Device) SetFilters(fs settings.FiltersSettings) error {
	if _, err := fs.Validate("filters"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings.Filters = fs
	return nil
}

// SetData replaces the capture, generation and compression choices used from the next tick on.
func (d *Device) SetData(data settings.DataSettings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings.Data = data
}

// SetDelay replaces the delivery delay.
func (d *Device) SetDelay(delay settings.DelaySettings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings.Delay = delay
}

// SetColor stores the color settings and pushes them to the device.
func (d *Device) SetColor(ctx context.Context, cs settings.ColorSettings) {
	d.mu.Lock()
	d.settings.Color = cs
	d.mu.Unlock()
	d.drv.UpdateColorSettings(ctx, cs)
}

// OnLocalFrame registers a callback receiving every local frame. Callbacks run on the reading
// goroutine.
func (d *Device) OnLocalFrame(h func(*frame.LocalFrame)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.localHandlers = append(d.localHandlers, h)
}

// OnCompressedFrame registers a callback receiving every compressed frame.
func (d *Device) OnCompressedFrame(h func(*frame.CompressedFrame)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.compressedHandlers = append(d.compressedHandlers, h)
}

// IsReading returns whether the reading loop runs.
func (d *Device) IsReading() bool {
	return d.reading.Load()
}

// Stats returns the tick counters.
func (d *Device) Stats() Stats {
	return Stats{Frames: d.frames.Load(), Timeouts: d.timeouts.Load(), Failures: d.failures.Load()}
}

// Timing returns the stage timings of the current session, nil before Configure.
func (d *Device) Timing() *frame.Timing {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.assembler == nil {
		return nil
	}
	return d.assembler.Timing()
}

// StartReading starts the reading loop.
func (d *Device) StartReading() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.assembler == nil {
		return ErrNotConfigured
	}
	if d.workers != nil {
		return nil
	}
	d.reading.Store(true)
	d.drv.SetReading(true)
	assembler := d.assembler
	d.workers = goutils.NewBackgroundStoppableWorkers(func(ctx context.Context) {
		d.readLoop(ctx, assembler)
	})
	return nil
}

// StopReading stops the reading loop and waits for it to return.
func (d *Device) StopReading() {
	d.mu.Lock()
	workers := d.workers
	d.workers = nil
	d.mu.Unlock()
	if workers == nil {
		return
	}
	d.reading.Store(false)
	workers.Stop()
	d.drv.SetReading(false)
}

// Close stops reading and closes the driver.
func (d *Device) Close(ctx context.Context) error {
	d.StopReading()
	if !d.drv.IsOpened() {
		return nil
	}
	return d.drv.Close(ctx)
}

func (d *Device) readLoop(ctx context.Context, assembler *frame.Assembler) {
	for ctx.Err() == nil {
		if !d.tick(ctx, assembler) {
			select {
			case <-ctx.Done():
				return
			case <-d.opts.Clock.After(d.opts.RetryDelay):
			}
		}
	}
}

// tick runs one capture and returns false when the loop should back off.
func (d *Device) tick(ctx context.Context, assembler *frame.Assembler) bool {
	d.mu.Lock()
	ds := d.settings
	d.mu.Unlock()

	out, err := assembler.Process(ctx, ds)
	switch {
	case err == nil:
	case errors.Is(err, driver.ErrTimeout):
		d.timeouts.Inc()
		return true
	case ctx.Err() != nil:
		return true
	default:
		n := d.failures.Inc()
		d.failureLogs.Do(func() {
			d.logger.Warnw("capture failed", "error", err, "failures", n)
		})
		return false
	}

	n := d.frames.Inc()
	if every := d.opts.TimingLogEvery; every > 0 && n%uint64(every) == 0 {
		assembler.Timing().Log(d.logger)
	}
	d.dispatch(out, time.Duration(ds.Delay.DelayMs)*time.Millisecond)
	return true
}

func (d *Device) dispatch(out frame.Output, delay time.Duration) {
	local, compressed := out.Local, out.Compressed
	if delay > 0 {
		if local != nil {
			d.localDelay.Push(local.AfterCaptureTS, local)
		}
		if compressed != nil {
			d.compressedDelay.Push(compressed.AfterCaptureTS, compressed)
		}
		local, _ = d.localDelay.Pop(delay)
		compressed, _ = d.compressedDelay.Pop(delay)
	}

	d.mu.Lock()
	localHandlers := d.localHandlers
	compressedHandlers := d.compressedHandlers
	d.mu.Unlock()
	if local != nil {
		for _, h := range localHandlers {
			h(local)
		}
	}
	if compressed != nil {
		for _, h := range compressedHandlers {
			h(compressed)
		}
	}
}
