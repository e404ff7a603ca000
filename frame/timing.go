package frame

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"go.viam.com/depthcam/logging"
)

const defaultTimingSamples = 100

// StageStats summarizes the recent durations of a stage, in milliseconds.
type StageStats struct {
	Count  int
	MeanMs float64
	P95Ms  float64
	MaxMs  float64
}

// Timing keeps the last durations of every pipeline stage. It is safe for concurrent use.
type Timing struct {
	clock      clock.Clock
	maxSamples int

	mu     sync.Mutex
	stages map[string][]float64
}

// NewTiming returns a Timing keeping maxSamples durations per stage.
func NewTiming(clk clock.Clock, maxSamples int) *Timing {
	if maxSamples <= 0 {
		maxSamples = defaultTimingSamples
	}
	return &Timing{clock: clk, maxSamples: maxSamples, stages: map[string][]float64{}}
}

// Stopwatch measures consecutive stages of one tick.
type Stopwatch struct {
	t    *Timing
	last time.Time
}

// Begin starts measuring a tick.
func (t *Timing) Begin() *Stopwatch {
	return &Stopwatch{t: t, last: t.clock.Now()}
}

// Stage records the time elapsed since the previous stage, or since Begin.
func (sw *Stopwatch) Stage(name string) {
	now := sw.t.clock.Now()
	sw.t.Add(name, now.Sub(sw.last))
	sw.last = now
}

// Add records one duration of a stage.
func (t *Timing) Add(name string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	samples := append(t.stages[name], float64(d)/float64(time.Millisecond))
	if len(samples) > t.maxSamples {
		samples = samples[len(samples)-t.maxSamples:]
	}
	t.stages[name] = samples
}

// Stages returns the names of the recorded stages, sorted.
func (t *Timing) Stages() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.stages))
	for name := range t.stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats summarizes a stage.
func (t *Timing) Stats(name string) (StageStats, error) {
	t.mu.Lock()
	samples := append([]float64(nil), t.stages[name]...)
	t.mu.Unlock()
	if len(samples) == 0 {
		return StageStats{}, errors.Errorf("no timing recorded for stage %q", name)
	}
	data := stats.Float64Data(samples)
	mean, err := data.Mean()
	if err != nil {
		return StageStats{}, err
	}
	p95, err := data.Percentile(95)
	if err != nil {
		return StageStats{}, err
	}
	maxMs, err := data.Max()
	if err != nil {
		return StageStats{}, err
	}
	return StageStats{Count: len(samples), MeanMs: mean, P95Ms: p95, MaxMs: maxMs}, nil
}

// Log writes the summary of every stage at debug level.
func (t *Timing) Log(logger logging.Logger) {
	for _, name := range t.Stages() {
		s, err := t.Stats(name)
		if err != nil {
			continue
		}
		logger.Debugw("stage timing", "stage", name, "count", s.Count, "mean_ms", s.MeanMs, "p95_ms", s.P95Ms, "max_ms", s.MaxMs)
	}
}
