package driver

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/depthcam/calibration"
	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/settings"
)

type property struct {
	value  int32
	manual bool
}

type testSetter struct {
	values map[settings.ColorProperty]property
	reads  map[settings.ColorProperty]int
	sets   map[settings.ColorProperty]int
	errOn  settings.ColorProperty
}

func newTestSetter(dt dcmode.DeviceType) *testSetter {
	s := &testSetter{
		values: map[settings.ColorProperty]property{},
		reads:  map[settings.ColorProperty]int{},
		sets:   map[settings.ColorProperty]int{},
		errOn:  -1,
	}
	ranges := settings.RangesFor(dt)
	for _, p := range settings.ColorProperties() {
		s.values[p] = property{ranges[p].Default, p != settings.PropExposure && p != settings.PropWhiteBalance}
	}
	return s
}

func (s *testSetter) ColorProperty(p settings.ColorProperty) (int32, bool, error) {
	s.reads[p]++
	v := s.values[p]
	return v.value, v.manual, nil
}

func (s *testSetter) SetColorProperty(p settings.ColorProperty, value int32, manual bool) error {
	s.sets[p]++
	if p == s.errOn {
		return errors.New("rejected")
	}
	s.values[p] = property{value, manual}
	return nil
}

func (s *testSetter) total() int {
	n := 0
	for _, c := range s.sets {
		n += c
	}
	return n
}

func TestBaseLifecycle(t *testing.T) {
	logger := logging.NewTestLogger(t)
	b := NewBase(dcmode.AzureKinect, logger)
	test.That(t, b.State(), test.ShouldEqual, StateClosed)
	test.That(t, b.IsOpened(), test.ShouldBeFalse)

	mi, err := dcmode.NewModeInfos(dcmode.AK_C1280x720_DI640x576_NV12_F30, true)
	test.That(t, err, test.ShouldBeNil)
	cfg := settings.DefaultConfigSettings(dcmode.AzureKinect)

	test.That(t, b.Configure(mi, cfg), test.ShouldBeError, ErrNotOpened)
	test.That(t, b.CheckStart(), test.ShouldBeError, ErrNotOpened)

	test.That(t, b.MarkOpened("000123"), test.ShouldBeNil)
	test.That(t, b.MarkOpened("000123"), test.ShouldNotBeNil)
	test.That(t, b.SerialNumber(), test.ShouldEqual, "000123")
	test.That(t, b.CheckStart(), test.ShouldBeError, ErrNotConfigured)

	t.Run("mode of another family", func(t *testing.T) {
		other, err := dcmode.NewModeInfos(dcmode.FB_DI640x576_F30, false)
		test.That(t, err, test.ShouldBeNil)
		err = b.Configure(other, cfg)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "cannot be used")
		test.That(t, b.Configure(nil, cfg), test.ShouldNotBeNil)
	})

	test.That(t, b.Configure(mi, cfg), test.ShouldBeNil)
	test.That(t, b.State(), test.ShouldEqual, StateConfigured)
	test.That(t, b.ModeInfos(), test.ShouldEqual, mi)
	test.That(t, b.CheckStart(), test.ShouldBeNil)

	test.That(t, b.MarkStreaming(calibration.UnifiedCalibration{}), test.ShouldBeNil)
	test.That(t, b.IsStreaming(), test.ShouldBeTrue)
	test.That(t, b.Engine(), test.ShouldNotBeNil)
	test.That(t, b.Calibration(), test.ShouldNotBeNil)
	test.That(t, b.CheckStart(), test.ShouldNotBeNil)
	test.That(t, b.Configure(mi, cfg), test.ShouldNotBeNil)

	b.MarkStopped()
	test.That(t, b.State(), test.ShouldEqual, StateConfigured)
	test.That(t, b.Engine(), test.ShouldBeNil)
	test.That(t, b.Calibration(), test.ShouldNotBeNil)
	test.That(t, b.CheckStart(), test.ShouldBeNil)

	b.MarkClosed()
	test.That(t, b.State(), test.ShouldEqual, StateClosed)
	test.That(t, b.SerialNumber(), test.ShouldBeEmpty)
	test.That(t, b.ModeInfos(), test.ShouldBeNil)
	test.That(t, b.State().String(), test.ShouldEqual, "closed")
}

func TestApplyColorSettings(t *testing.T) {
	t.Run("unchanged settings are not written", func(t *testing.T) {
		b := NewBase(dcmode.AzureKinect, logging.NewTestLogger(t))
		s := newTestSetter(dcmode.AzureKinect)
		b.ApplyColorSettings(s, settings.DefaultColorSettingsFor(dcmode.AzureKinect))
		test.That(t, s.total(), test.ShouldEqual, 0)
	})

	t.Run("changed values are clamped and written once", func(t *testing.T) {
		b := NewBase(dcmode.AzureKinect, logging.NewTestLogger(t))
		s := newTestSetter(dcmode.AzureKinect)
		cs := settings.DefaultColorSettingsFor(dcmode.AzureKinect)
		cs.Brightness = 1000
		cs.AutoExposureTime = false
		b.ApplyColorSettings(s, cs)
		test.That(t, s.sets[settings.PropBrightness], test.ShouldEqual, 1)
		test.That(t, s.values[settings.PropBrightness].value, test.ShouldEqual, int32(255))
		test.That(t, s.sets[settings.PropExposure], test.ShouldEqual, 1)
		test.That(t, s.values[settings.PropExposure].manual, test.ShouldBeTrue)
		test.That(t, s.sets[settings.PropAutoExposure], test.ShouldEqual, 0)
		test.That(t, s.total(), test.ShouldEqual, 2)

		b.ApplyColorSettings(s, cs)
		test.That(t, s.total(), test.ShouldEqual, 2)
	})

	t.Run("unsupported properties are skipped", func(t *testing.T) {
		b := NewBase(dcmode.AzureKinect, logging.NewTestLogger(t))
		s := newTestSetter(dcmode.AzureKinect)
		cs := settings.DefaultColorSettingsFor(dcmode.AzureKinect)
		cs.HDR = !cs.HDR
		b.ApplyColorSettings(s, cs)
		test.That(t, s.sets[settings.PropHDR], test.ShouldEqual, 0)
	})

	t.Run("families without color controls", func(t *testing.T) {
		b := NewBase(dcmode.Kinect2, logging.NewTestLogger(t))
		s := newTestSetter(dcmode.AzureKinect)
		cs := settings.DefaultColorSettings()
		cs.Brightness = 3
		b.ApplyColorSettings(s, cs)
		test.That(t, s.total(), test.ShouldEqual, 0)
	})

	t.Run("hdr is frozen while reading", func(t *testing.T) {
		logger, logs := logging.NewObservedTestLogger(t)
		b := NewBase(dcmode.FemtoBolt, logger)
		s := newTestSetter(dcmode.FemtoBolt)
		cs := settings.DefaultColorSettingsFor(dcmode.FemtoBolt)
		cs.HDR = false

		b.SetReading(true)
		test.That(t, b.Reading(), test.ShouldBeTrue)
		b.ApplyColorSettings(s, cs)
		test.That(t, s.reads[settings.PropHDR], test.ShouldEqual, 0)
		test.That(t, s.sets[settings.PropHDR], test.ShouldEqual, 0)
		test.That(t, s.reads[settings.PropBrightness], test.ShouldEqual, 1)
		test.That(t, logs.FilterMessageSnippet("HDR can only be changed").Len(), test.ShouldEqual, 1)

		b.SetReading(false)
		b.ApplyColorSettings(s, cs)
		test.That(t, s.sets[settings.PropHDR], test.ShouldEqual, 1)
		test.That(t, s.values[settings.PropHDR].value, test.ShouldEqual, int32(0))
		test.That(t, logs.FilterMessageSnippet("HDR can only be changed").Len(), test.ShouldEqual, 1)

		// the applied value is known, reading again with it neither queries nor warns
		reads := s.reads[settings.PropHDR]
		b.SetReading(true)
		b.ApplyColorSettings(s, cs)
		test.That(t, s.reads[settings.PropHDR], test.ShouldEqual, reads)
		test.That(t, logs.FilterMessageSnippet("HDR can only be changed").Len(), test.ShouldEqual, 1)

		cs.HDR = true
		b.ApplyColorSettings(s, cs)
		test.That(t, s.reads[settings.PropHDR], test.ShouldEqual, reads)
		test.That(t, s.sets[settings.PropHDR], test.ShouldEqual, 1)
		test.That(t, logs.FilterMessageSnippet("HDR can only be changed").Len(), test.ShouldEqual, 2)
	})

	t.Run("write failures are logged", func(t *testing.T) {
		logger, logs := logging.NewObservedTestLogger(t)
		b := NewBase(dcmode.AzureKinect, logger)
		s := newTestSetter(dcmode.AzureKinect)
		s.errOn = settings.PropGain
		cs := settings.DefaultColorSettingsFor(dcmode.AzureKinect)
		cs.Gain = 12
		cs.Contrast = 7
		b.ApplyColorSettings(s, cs)
		test.That(t, logs.FilterMessageSnippet("cannot set color property").Len(), test.ShouldEqual, 1)
		test.That(t, s.values[settings.PropContrast].value, test.ShouldEqual, int32(7))
	})
}
