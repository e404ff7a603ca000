package frame

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"go.viam.com/depthcam/logging"
)

func TestTiming(t *testing.T) {
	clk := clock.NewMock()
	timing := NewTiming(clk, 3)

	for _, ms := range []int{10, 20, 30, 40} {
		sw := timing.Begin()
		clk.Add(time.Duration(ms) * time.Millisecond)
		sw.Stage("filter")
		clk.Add(time.Millisecond)
		sw.Stage("cloud")
	}
	test.That(t, timing.Stages(), test.ShouldResemble, []string{"cloud", "filter"})

	// only the last 3 samples are kept
	s, err := timing.Stats("filter")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Count, test.ShouldEqual, 3)
	test.That(t, s.MeanMs, test.ShouldAlmostEqual, 30)
	test.That(t, s.MaxMs, test.ShouldAlmostEqual, 40)
	test.That(t, s.P95Ms, test.ShouldBeBetweenOrEqual, 30, 40)

	s, err = timing.Stats("cloud")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.MeanMs, test.ShouldAlmostEqual, 1)

	_, err = timing.Stats("resize")
	test.That(t, err, test.ShouldNotBeNil)

	logger, logs := logging.NewObservedTestLogger(t)
	timing.Log(logger)
	test.That(t, logs.FilterMessageSnippet("stage timing").Len(), test.ShouldEqual, 2)
}
