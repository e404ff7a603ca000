package driver

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/logging"
)

// Constructor creates a closed driver.
type Constructor func(logger logging.Logger) (Driver, error)

// Enumerator returns the serial numbers of the plugged devices of a family, in open index order.
type Enumerator func() ([]string, error)

// Registration describes how to create and enumerate the drivers of one device family.
type Registration struct {
	Constructor Constructor
	Enumerator  Enumerator
}

// DeviceInfo identifies a plugged device.
type DeviceInfo struct {
	Type   dcmode.DeviceType
	Index  uint32
	Serial string
}

// Registry maps device families to their drivers.
type Registry struct {
	mu            sync.RWMutex
	registrations map[dcmode.DeviceType]Registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{registrations: map[dcmode.DeviceType]Registration{}}
}

// Register adds or replaces the registration of a device family.
func (r *Registry) Register(dt dcmode.DeviceType, reg Registration) error {
	if reg.Constructor == nil {
		return errors.Errorf("cannot register %s without a constructor", dt)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations[dt] = reg
	return nil
}

// Types returns the registered device families in a stable order.
func (r *Registry) Types() []dcmode.DeviceType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := lo.Keys(r.registrations)
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// New creates a driver for a device family.
func (r *Registry) New(dt dcmode.DeviceType, logger logging.Logger) (Driver, error) {
	r.mu.RLock()
	reg, ok := r.registrations[dt]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("no driver registered for %s devices", dt)
	}
	return reg.Constructor(logger)
}

// ListDevices enumerates the plugged devices of every registered family. A family failing to
// enumerate is logged and skipped.
func (r *Registry) ListDevices(logger logging.Logger) []DeviceInfo {
	var infos []DeviceInfo
	for _, dt := range r.Types() {
		r.mu.RLock()
		enumerate := r.registrations[dt].Enumerator
		r.mu.RUnlock()
		if enumerate == nil {
			continue
		}
		serials, err := enumerate()
		if err != nil {
			logger.Warnw("cannot enumerate devices", "type", dt, "error", err)
			continue
		}
		infos = append(infos, lo.Map(serials, func(serial string, idx int) DeviceInfo {
			return DeviceInfo{Type: dt, Index: uint32(idx), Serial: serial}
		})...)
	}
	return infos
}
