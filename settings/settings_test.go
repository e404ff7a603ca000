package settings

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"go.viam.com/test"

	"go.viam.com/depthcam/dcmode"
)

func TestPropertyRangeClamp(t *testing.T) {
	wb := K4AColorRanges[PropWhiteBalance]
	test.That(t, wb.Clamp(100), test.ShouldEqual, int32(2500))
	test.That(t, wb.Clamp(20000), test.ShouldEqual, int32(12500))
	test.That(t, wb.Clamp(4500), test.ShouldEqual, int32(4500))
	// off-step values are pushed by their remainder
	test.That(t, wb.Clamp(4503), test.ShouldEqual, int32(4506))
	test.That(t, wb.Clamp(12499), test.ShouldEqual, int32(12500))

	brightness := OrbbecColorRanges[PropBrightness]
	test.That(t, brightness.Clamp(0), test.ShouldEqual, int32(1))
	test.That(t, brightness.Clamp(15), test.ShouldEqual, int32(15))

	hdr := K4AColorRanges[PropHDR]
	test.That(t, hdr.Supported, test.ShouldBeFalse)
	test.That(t, hdr.Clamp(1), test.ShouldEqual, int32(0))
}

func TestColorSettingsDefaults(t *testing.T) {
	cs := DefaultColorSettings()
	test.That(t, cs.WhiteBalance, test.ShouldEqual, int32(4500))
	test.That(t, cs.Contrast, test.ShouldEqual, int32(5))
	test.That(t, cs.HDR, test.ShouldBeTrue)

	orbbec := DefaultColorSettingsFor(dcmode.FemtoBolt)
	test.That(t, orbbec.WhiteBalance, test.ShouldEqual, int32(6500))
	test.That(t, orbbec.Brightness, test.ShouldEqual, int32(10))
	test.That(t, orbbec.BacklightCompensation, test.ShouldBeFalse)

	k4a := DefaultColorSettingsFor(dcmode.AzureKinect)
	test.That(t, k4a.Sharpness, test.ShouldEqual, int32(2))
	test.That(t, k4a.ExposureTime, test.ShouldEqual, int32(33330))
	// unsupported on this family: generic default kept
	test.That(t, k4a.HDR, test.ShouldBeTrue)

	test.That(t, RangesFor(dcmode.Kinect2), test.ShouldBeNil)

	for _, p := range ColorProperties() {
		var c ColorSettings
		c.Set(p, 1)
		test.That(t, c.Get(p), test.ShouldEqual, int32(1))
		test.That(t, p.String(), test.ShouldNotEqual, "unknown")
	}
}

func TestConfigValidate(t *testing.T) {
	cs := DefaultConfigSettings(dcmode.AzureKinect)
	ignored, err := cs.Validate("config")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ignored, test.ShouldBeEmpty)

	cs.Mode = dcmode.FB_DI512x512_F30
	_, err = cs.Validate("config")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "does not belong")

	cs = DefaultConfigSettings(dcmode.Kinect2)
	cs.BTEnabled = true
	cs.SubordinateDelayUsec = 160
	ignored, err = cs.Validate("config")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ignored, test.ShouldResemble, []string{"config.bt_enabled", "config.subordinate_delay_usec"})
}

func TestFiltersValidate(t *testing.T) {
	fs := DefaultFiltersSettings()
	_, err := fs.Validate("filters")
	test.That(t, err, test.ShouldBeNil)

	fs.MinDepthF = 0.8
	fs.MaxDepthF = 0.2
	_, err = fs.Validate("filters")
	test.That(t, err, test.ShouldNotBeNil)

	fs = CalibrationFiltersSettings()
	fs.PlaneMode = PlaneAbove
	ignored, err := fs.Validate("filters")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ignored, test.ShouldResemble, []string{"filters.p1_f_mode"})
}

func TestStringRoundTrip(t *testing.T) {
	ds := DefaultDeviceSettings(dcmode.FemtoMegaEthernet)
	ds.Filters.PlaneMode = PlaneBelow
	ds.Filters.PlaneA = r3.Vector{X: 0.1, Y: 0.2, Z: 0.3}
	ds.Config.SyncMode = dcmode.Subordinate
	ds.Delay.DelayMs = 120

	text, err := ToString(ds)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, text, test.ShouldContainSubstring, `"mode": "FME_C1280x720_DI640x576_MJPG_F30"`)

	var back DeviceSettings
	test.That(t, FromString(text, &back), test.ShouldBeNil)
	test.That(t, cmp.Diff(ds, back), test.ShouldBeEmpty)

	test.That(t, FromString("{not json", &back), test.ShouldNotBeNil)
}

func TestDecode(t *testing.T) {
	ds := DefaultDeviceSettings(dcmode.AzureKinect)
	err := Decode(map[string]interface{}{
		"config": map[string]interface{}{
			"mode":       "AK_DI640x576_F30",
			"synch_mode": "follower",
			"bt_enabled": "true",
		},
		"filters": map[string]interface{}{
			"max_local_diff": "12.5",
			"p1_a":           map[string]interface{}{"x": 1, "y": 2, "z": 3},
		},
		"delay": map[string]interface{}{"delay_ms": 40},
	}, &ds)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ds.Config.Mode, test.ShouldEqual, dcmode.AK_DI640x576_F30)
	test.That(t, ds.Config.SyncMode, test.ShouldEqual, dcmode.Subordinate)
	test.That(t, ds.Config.BTEnabled, test.ShouldBeTrue)
	test.That(t, ds.Filters.MaxLocalDiff, test.ShouldEqual, 12.5)
	test.That(t, ds.Filters.PlaneA, test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, ds.Delay.DelayMs, test.ShouldEqual, int64(40))
	// untouched keys keep their defaults
	test.That(t, ds.Filters.DoLocalDiffFiltering, test.ShouldBeTrue)

	err = Decode(map[string]interface{}{"filterz": map[string]interface{}{}}, &ds)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "filterz")

	err = Decode(map[string]interface{}{"config": map[string]interface{}{"mode": "nope"}}, &ds)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestApplyOverrides(t *testing.T) {
	ds := DefaultDeviceSettings(dcmode.FemtoBolt)
	err := ApplyOverrides(&ds, []string{
		"filters.max_local_diff=15",
		"filters.do_erosion = true",
		"filters.erosion_loops=3",
		"filters.p1_b.z=0.5",
		"config.synch_mode=leader",
		"color.white_balance=5000",
		"data.compression.jpeg_compression_rate=95",
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ds.Filters.MaxLocalDiff, test.ShouldEqual, 15.0)
	test.That(t, ds.Filters.DoErosion, test.ShouldBeTrue)
	test.That(t, ds.Filters.ErosionLoops, test.ShouldEqual, uint8(3))
	test.That(t, ds.Filters.PlaneB.Z, test.ShouldEqual, 0.5)
	test.That(t, ds.Config.SyncMode, test.ShouldEqual, dcmode.Main)
	test.That(t, ds.Color.WhiteBalance, test.ShouldEqual, int32(5000))
	test.That(t, ds.Data.Compression.JPEGCompressionRate, test.ShouldEqual, 95)

	for _, bad := range []string{"filters.erosion_loops=300", "filters.nope=1", "filters", "filters.do_erosion=maybe", "config.mode=AK_X"} {
		t.Run(bad, func(t *testing.T) {
			test.That(t, ApplyOverrides(&ds, []string{bad}), test.ShouldNotBeNil)
		})
	}
	test.That(t, ApplyOverrides(ds, nil), test.ShouldNotBeNil)
}

func TestSchema(t *testing.T) {
	schema := Schema()
	test.That(t, schema, test.ShouldNotBeNil)
	data, err := json.Marshal(schema)
	test.That(t, err, test.ShouldBeNil)
	text := string(data)
	for _, key := range []string{"max_local_diff", "jpeg_compression_rate", "synch_mode", "delay_ms"} {
		test.That(t, strings.Contains(text, key), test.ShouldBeTrue)
	}
}

func TestProfiles(t *testing.T) {
	local := LocalProfile()
	test.That(t, local.Generation.HasAny(), test.ShouldBeTrue)
	test.That(t, local.Compression.HasAny(), test.ShouldBeFalse)
	remote := RemoteProfile()
	test.That(t, remote.Generation.HasAny(), test.ShouldBeFalse)
	test.That(t, remote.Compression.HasAny(), test.ShouldBeTrue)
	test.That(t, remote.Compression.JPEGCompressionRate, test.ShouldEqual, 80)
}
