package device

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/frame"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/settings"
)

// Manager runs several devices. Every device keeps its own driver, engine and assembler.
type Manager struct {
	logger logging.Logger

	mu      sync.Mutex
	devices []*Device
}

// NewManager returns an empty manager.
func NewManager(logger logging.Logger) *Manager {
	return &Manager{logger: logger}
}

// Add appends a device and returns its index.
func (m *Manager) Add(d *Device) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices = append(m.devices, d)
	return len(m.devices) - 1
}

// Devices returns the managed devices.
func (m *Manager) Devices() []*Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Device(nil), m.devices...)
}

// Device returns the device at index i.
func (m *Manager) Device(i int) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.devices) {
		return nil, errors.Errorf("no device at index %d", i)
	}
	return m.devices[i], nil
}

// OpenAndConfigure opens every device with the device index of its settings, then starts the
// sessions. Subordinate devices are started before the others so that they are waiting for the
// sync signal when it starts.
func (m *Manager) OpenAndConfigure(ctx context.Context, all []settings.DeviceSettings) error {
	devices := m.Devices()
	if len(all) != len(devices) {
		return errors.Errorf("%d settings for %d devices", len(all), len(devices))
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range devices {
		i, d := i, d
		g.Go(func() error {
			return d.Open(gctx, all[i].Config.IDDevice)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, subordinates := range []bool{true, false} {
		g, gctx := errgroup.WithContext(ctx)
		for i, d := range devices {
			i, d := i, d
			if (all[i].Config.SyncMode == dcmode.Subordinate) != subordinates {
				continue
			}
			g.Go(func() error {
				return errors.Wrapf(d.Configure(gctx, all[i]), "device %d", i)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// StartReading starts the reading loop of every device.
func (m *Manager) StartReading() error {
	var err error
	for i, d := range m.Devices() {
		err = multierr.Combine(err, errors.Wrapf(d.StartReading(), "device %d", i))
	}
	return err
}

// StopReading stops every reading loop.
func (m *Manager) StopReading() {
	var wg sync.WaitGroup
	for _, d := range m.Devices() {
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.StopReading()
		}()
	}
	wg.Wait()
}

// OnLocalFrame registers a callback receiving the local frames of every device with the index
// of the device.
func (m *Manager) OnLocalFrame(h func(int, *frame.LocalFrame)) {
	for i, d := range m.Devices() {
		i, d := i, d
		d.OnLocalFrame(func(lf *frame.LocalFrame) { h(i, lf) })
	}
}

// OnCompressedFrame registers a callback receiving the compressed frames of every device.
func (m *Manager) OnCompressedFrame(h func(int, *frame.CompressedFrame)) {
	for i, d := range m.Devices() {
		i, d := i, d
		d.OnCompressedFrame(func(cf *frame.CompressedFrame) { h(i, cf) })
	}
}

// Close closes every device.
func (m *Manager) Close(ctx context.Context) error {
	m.StopReading()
	var err error
	for i, d := range m.Devices() {
		err = multierr.Combine(err, errors.Wrapf(d.Close(ctx), "device %d", i))
	}
	return err
}
