// Package audio holds the microphone contracts of devices with a microphone array, the
// accumulation of interleaved float frames and their WAV export.
package audio

import (
	"io"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/transforms"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

// Azure Kinect microphone array format.
const (
	AzureChannels   = 7
	AzureSampleRate = 48000
)

const (
	wavBitDepth = 16
	wavPCM      = 1
)

// Listener receives the frames of a started microphone.
type Listener interface {
	// Drain appends the interleaved samples received since the last call to dst.
	Drain(dst []float32) []float32
	Overflowed() bool
	ClearOverflow()
}

// Microphone is the microphone array of one device.
type Microphone interface {
	Start() error
	Stop() error
	IsStarted() bool
	Channels() int
	Listener() Listener
}

// Manager is the process wide audio backend. It is created once and handed to every driver
// that needs it.
type Manager interface {
	// Microphone returns the microphone array of the device with the given serial number.
	Microphone(serial string) (Microphone, error)
}

// Buffer accumulates interleaved samples over several ticks, keeping at most maxFrames frames.
type Buffer struct {
	mu        sync.Mutex
	channels  int
	maxFrames int
	samples   []float32
}

// NewBuffer returns an empty buffer. A maxFrames of 0 keeps everything.
func NewBuffer(channels, maxFrames int) *Buffer {
	return &Buffer{channels: channels, maxFrames: maxFrames}
}

// Channels returns the number of interleaved channels.
func (b *Buffer) Channels() int {
	return b.channels
}

// Append adds the samples of a tick. The oldest frames are dropped past maxFrames.
func (b *Buffer) Append(channels int, samples []float32) error {
	if len(samples) == 0 {
		return nil
	}
	if channels != b.channels {
		return errors.Errorf("cannot append %d channels audio to a %d channels buffer", channels, b.channels)
	}
	if len(samples)%channels != 0 {
		return errors.Errorf("%d samples is not a whole number of %d channels frames", len(samples), channels)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = append(b.samples, samples...)
	if b.maxFrames > 0 {
		if extra := len(b.samples) - b.maxFrames*b.channels; extra > 0 {
			b.samples = append(b.samples[:0], b.samples[extra:]...)
		}
	}
	return nil
}

// Frames returns the number of buffered frames.
func (b *Buffer) Frames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channels == 0 {
		return 0
	}
	return len(b.samples) / b.channels
}

// Samples returns a copy of the buffered samples.
func (b *Buffer) Samples() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]float32(nil), b.samples...)
}

// Reset drops every buffered frame.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = b.samples[:0]
}

// FloatBuffer converts interleaved samples into a go-audio buffer.
func FloatBuffer(sampleRate, channels int, samples []float32) *audio.FloatBuffer {
	data := make([]float64, len(samples))
	for i, s := range samples {
		data[i] = float64(s)
	}
	return &audio.FloatBuffer{
		Format: &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:   data,
	}
}

// WriteWAV writes interleaved samples in [-1,1] as a 16 bits PCM WAV file. With normalize set,
// the samples are first scaled so that the loudest one reaches full scale.
func WriteWAV(w io.WriteSeeker, sampleRate, channels int, samples []float32, normalize bool) error {
	if channels <= 0 {
		return errors.Errorf("invalid channel count %d", channels)
	}
	if len(samples)%channels != 0 {
		return errors.Errorf("%d samples is not a whole number of %d channels frames", len(samples), channels)
	}
	fb := FloatBuffer(sampleRate, channels, samples)
	if normalize && len(samples) > 0 {
		transforms.NormalizeMax(fb)
	}

	const fullScale = 1<<(wavBitDepth-1) - 1
	ib := &audio.IntBuffer{Format: fb.Format, Data: make([]int, len(fb.Data)), SourceBitDepth: wavBitDepth}
	for i, v := range fb.Data {
		switch {
		case v > 1:
			v = 1
		case v < -1:
			v = -1
		}
		ib.Data[i] = int(v * fullScale)
	}

	enc := wav.NewEncoder(w, sampleRate, wavBitDepth, channels, wavPCM)
	if err := enc.Write(ib); err != nil {
		return errors.Wrap(err, "cannot write wav samples")
	}
	return errors.Wrap(enc.Close(), "cannot finish wav file")
}
