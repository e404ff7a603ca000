package fake

import (
	"math"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/depthcam/audio"
)

// AudioManager is a simulated audio backend holding one microphone array per serial number.
type AudioManager struct {
	Microphones map[string]*Microphone
}

var _ audio.Manager = (*AudioManager)(nil)

// NewAudioManager returns a backend with a 7 channels array for each serial number.
func NewAudioManager(serials ...string) *AudioManager {
	m := &AudioManager{Microphones: map[string]*Microphone{}}
	for _, serial := range serials {
		m.Microphones[serial] = NewMicrophone(audio.AzureChannels, 480)
	}
	return m
}

// Microphone returns the array of a device.
func (m *AudioManager) Microphone(serial string) (audio.Microphone, error) {
	mic, ok := m.Microphones[serial]
	if !ok {
		return nil, errors.Errorf("no microphone array for %q", serial)
	}
	return mic, nil
}

// Microphone is a simulated microphone array producing a sine on every channel.
type Microphone struct {
	channels      int
	framesPerTick int

	mu         sync.Mutex
	started    bool
	phase      int
	overflowed bool
	stops      int
}

var (
	_ audio.Microphone = (*Microphone)(nil)
	_ audio.Listener   = (*Microphone)(nil)
)

// NewMicrophone returns a stopped array delivering framesPerTick frames on every drain.
func NewMicrophone(channels, framesPerTick int) *Microphone {
	return &Microphone{channels: channels, framesPerTick: framesPerTick}
}

// Start starts the array.
func (m *Microphone) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return errors.New("microphone already started")
	}
	m.started = true
	return nil
}

// Stop stops the array.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = false
	m.stops++
	return nil
}

// Stops returns how many times Stop was called.
func (m *Microphone) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// IsStarted returns whether the array is started.
func (m *Microphone) IsStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Channels returns the number of channels.
func (m *Microphone) Channels() int {
	return m.channels
}

// Listener returns the array itself.
func (m *Microphone) Listener() audio.Listener {
	return m
}

// Drain appends one tick of samples.
func (m *Microphone) Drain(dst []float32) []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	for f := 0; f < m.framesPerTick; f++ {
		v := float32(0.5 * math.Sin(2*math.Pi*440*float64(m.phase)/audio.AzureSampleRate))
		m.phase++
		for c := 0; c < m.channels; c++ {
			dst = append(dst, v)
		}
	}
	return dst
}

// SetOverflowed simulates a listener overflow.
func (m *Microphone) SetOverflowed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overflowed = true
}

// Overflowed returns the overflow flag.
func (m *Microphone) Overflowed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overflowed
}

// ClearOverflow clears the overflow flag.
func (m *Microphone) ClearOverflow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overflowed = false
}
