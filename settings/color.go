package settings

import (
	"github.com/samber/lo"

	"go.viam.com/depthcam/dcmode"
)

// ColorProperty is one adjustable property of a color sensor.
type ColorProperty int8

// Color properties.
const (
	PropExposure ColorProperty = iota
	PropAutoExposure
	PropWhiteBalance
	PropAutoWhiteBalance
	PropBrightness
	PropContrast
	PropSharpness
	PropSaturation
	PropGain
	PropPowerlineFrequency
	PropBacklightCompensation
	PropHDR
	numColorProperties
)

var colorPropertyNames = [numColorProperties]string{
	"exposure", "auto_exposure", "white_balance", "auto_white_balance", "brightness", "contrast",
	"sharpness", "saturation", "gain", "powerline_frequency", "backlight_compensation", "hdr",
}

func (p ColorProperty) String() string {
	if p < 0 || p >= numColorProperties {
		return "unknown"
	}
	return colorPropertyNames[p]
}

// ColorProperties lists every property in a stable order.
func ColorProperties() []ColorProperty {
	return lo.Times(int(numColorProperties), func(i int) ColorProperty { return ColorProperty(i) })
}

// PropertyRange is the accepted range of a color property on one device family.
type PropertyRange struct {
	Supported bool
	Min       int32
	Max       int32
	Step      int32
	Default   int32
}

// Clamp brings v inside the range, aligned on the step.
func (r PropertyRange) Clamp(v int32) int32 {
	if v < r.Min {
		v = r.Min
	}
	if r.Step > 1 {
		v += (v - r.Min) % r.Step
	}
	if v > r.Max {
		v = r.Max
	}
	return v
}

// ColorRanges is a per property range table.
type ColorRanges [numColorProperties]PropertyRange

// K4AColorRanges are the color sensor ranges of the Azure Kinect.
var K4AColorRanges = ColorRanges{
	PropExposure:              {true, 500, 133330, 1, 33330},
	PropAutoExposure:          {true, 0, 1, 1, 1},
	PropWhiteBalance:          {true, 2500, 12500, 10, 4500},
	PropAutoWhiteBalance:      {true, 0, 1, 1, 1},
	PropBrightness:            {true, 0, 255, 1, 128},
	PropContrast:              {true, 0, 10, 1, 5},
	PropSharpness:             {true, 0, 4, 1, 2},
	PropSaturation:            {true, 0, 63, 1, 32},
	PropGain:                  {true, 0, 255, 1, 128},
	PropPowerlineFrequency:    {true, 1, 2, 1, 2},
	PropBacklightCompensation: {true, 0, 1, 1, 0},
	PropHDR:                   {false, 0, 0, 0, 0},
}

// OrbbecColorRanges are the color sensor ranges of the Femto devices.
var OrbbecColorRanges = ColorRanges{
	PropExposure:              {true, 1, 300, 1, 200},
	PropAutoExposure:          {true, 0, 1, 1, 1},
	PropWhiteBalance:          {true, 2000, 11000, 100, 6500},
	PropAutoWhiteBalance:      {true, 0, 1, 1, 1},
	PropBrightness:            {true, 1, 20, 1, 10},
	PropContrast:              {true, 1, 99, 1, 50},
	PropSharpness:             {true, 1, 40, 1, 24},
	PropSaturation:            {true, 1, 255, 1, 64},
	PropGain:                  {true, 0, 80, 1, 0},
	PropPowerlineFrequency:    {true, 0, 2, 1, 2},
	PropBacklightCompensation: {false, 0, 0, 0, 0},
	PropHDR:                   {true, 0, 1, 1, 1},
}

// RangesFor returns the range table of a device family, nil when it has no adjustable color
// sensor.
func RangesFor(dt dcmode.DeviceType) *ColorRanges {
	switch {
	case dt == dcmode.AzureKinect:
		return &K4AColorRanges
	case dt.IsOrbbec():
		return &OrbbecColorRanges
	default:
		return nil
	}
}

// ColorSettings are the color sensor properties. They may change at any time, HDR excepted
// which is only applied while the device is not reading.
type ColorSettings struct {
	AutoExposureTime      bool                      `json:"auto_exposure_time"`
	ExposureTime          int32                     `json:"exposure_time"`
	AutoWhiteBalance      bool                      `json:"auto_white_balance"`
	WhiteBalance          int32                     `json:"white_balance"`
	Brightness            int32                     `json:"brightness"`
	Contrast              int32                     `json:"contrast"`
	Sharpness             int32                     `json:"sharpness"`
	Saturation            int32                     `json:"saturation"`
	Gain                  int32                     `json:"gain"`
	BacklightCompensation bool                      `json:"backlight_compensation"`
	PowerlineFrequency    dcmode.PowerlineFrequency `json:"powerline_frequency"`
	HDR                   bool                      `json:"hdr"`
}

// DefaultColorSettings returns the generic defaults.
func DefaultColorSettings() ColorSettings {
	return ColorSettings{
		AutoExposureTime:   true,
		AutoWhiteBalance:   true,
		WhiteBalance:       4500,
		Brightness:         128,
		Contrast:           5,
		Saturation:         32,
		Sharpness:          4,
		Gain:               128,
		PowerlineFrequency: dcmode.PowerlineF50,
		HDR:                true,
	}
}

// DefaultColorSettingsFor returns the defaults of the range table of a device family.
func DefaultColorSettingsFor(dt dcmode.DeviceType) ColorSettings {
	cs := DefaultColorSettings()
	ranges := RangesFor(dt)
	if ranges == nil {
		return cs
	}
	for _, p := range ColorProperties() {
		if ranges[p].Supported {
			cs.Set(p, ranges[p].Default)
		}
	}
	return cs
}

// Get returns a property as an integer, booleans being 0 or 1.
func (cs *ColorSettings) Get(p ColorProperty) int32 {
	switch p {
	case PropExposure:
		return cs.ExposureTime
	case PropAutoExposure:
		return boolToInt(cs.AutoExposureTime)
	case PropWhiteBalance:
		return cs.WhiteBalance
	case PropAutoWhiteBalance:
		return boolToInt(cs.AutoWhiteBalance)
	case PropBrightness:
		return cs.Brightness
	case PropContrast:
		return cs.Contrast
	case PropSharpness:
		return cs.Sharpness
	case PropSaturation:
		return cs.Saturation
	case PropGain:
		return cs.Gain
	case PropPowerlineFrequency:
		return int32(cs.PowerlineFrequency)
	case PropBacklightCompensation:
		return boolToInt(cs.BacklightCompensation)
	case PropHDR:
		return boolToInt(cs.HDR)
	case numColorProperties:
	}
	return 0
}

// Set writes a property from an integer.
func (cs *ColorSettings) Set(p ColorProperty, v int32) {
	switch p {
	case PropExposure:
		cs.ExposureTime = v
	case PropAutoExposure:
		cs.AutoExposureTime = v != 0
	case PropWhiteBalance:
		cs.WhiteBalance = v
	case PropAutoWhiteBalance:
		cs.AutoWhiteBalance = v != 0
	case PropBrightness:
		cs.Brightness = v
	case PropContrast:
		cs.Contrast = v
	case PropSharpness:
		cs.Sharpness = v
	case PropSaturation:
		cs.Saturation = v
	case PropGain:
		cs.Gain = v
	case PropPowerlineFrequency:
		cs.PowerlineFrequency = dcmode.PowerlineFrequency(v)
	case PropBacklightCompensation:
		cs.BacklightCompensation = v != 0
	case PropHDR:
		cs.HDR = v != 0
	case numColorProperties:
	}
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
