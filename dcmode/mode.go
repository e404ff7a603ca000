package dcmode

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Mode names one color format, color resolution, depth resolution and framerate combination
// supported by a device family.
type Mode int16

// Supported modes. The prefix names the device family.
//
//nolint:revive,stylecheck
const (
	InvalidMode Mode = iota

	AK_C2048x1536_DI640x576_MJPG_F30
	AK_C4096x3072_DI640x576_MJPG_F15
	AK_C1280x720_DI320x288_NV12_F30
	AK_C1280x720_DI640x576_NV12_F30
	AK_C1280x720_DI640x576_YUY2_F30
	AK_C1280x720_DI640x576_MJPG_F30
	AK_C1280x720_DI640x576_BGRA_F30
	AK_C2048x1536_DI512x512_MJPG_F30
	AK_C2048x1536_DI1024x1024_MJPG_F15
	AK_C1280x720_DI512x512_NV12_F30
	AK_C1280x720_DI512x512_YUY2_F30
	AK_C1280x720_DI512x512_MJPG_F30
	AK_C1280x720_DI1024x1024_NV12_F15
	AK_C1280x720_DI1024x1024_YUY2_F15
	AK_C1280x720_DI1024x1024_MJPG_F15
	AK_DI640x576_F30
	AK_DI512x512_F30
	AK_C2048x1536_MJPG_F30
	AK_C4096x3072_MJPG_F15
	AK_C1280x720_NV12_F30
	AK_C1920x1080_MJPG_F30
	AK_C2560x1440_MJPG_F30
	AK_C3840x2160_MJPG_F15

	FB_C2048x1536_DI640x576_MJPG_F30
	FB_C4096x3072_DI640x576_MJPG_F15
	FB_C1280x720_DI320x288_NV12_F30
	FB_C1280x720_DI640x576_NV12_F30
	FB_C2048x1536_DI512x512_MJPG_F30
	FB_C1280x720_DI512x512_NV12_F30
	FB_DI640x576_F30
	FB_DI512x512_F30
	FB_C1280x720_MJPG_F30

	FME_C1280x720_DI640x576_MJPG_F30
	FME_C1280x720_DI512x512_MJPG_F30
	FME_DI512x512_F30
	FME_C1280x720_MJPG_F30

	FMU_C1280x720_DI640x576_MJPG_F30
	FMU_C1280x720_DI512x512_MJPG_F30

	K2_C1920x1080_DI512x424_BGRA_F30
	K2_DI512x424_F30
)

type modeDef struct {
	mode     Mode
	format   ImageFormat
	colorRes ColorResolution
	depthRes DepthResolution
	fps      Framerate
	device   DeviceType
	name     string
}

var modeDefs = []modeDef{
	{AK_C2048x1536_DI640x576_MJPG_F30, MJPG, R1536P, K4A_640x576, F30, AzureKinect, "AK_C2048x1536_DI640x576_MJPG_F30"},
	{AK_C4096x3072_DI640x576_MJPG_F15, MJPG, R3072P, K4A_640x576, F15, AzureKinect, "AK_C4096x3072_DI640x576_MJPG_F15"},
	{AK_C1280x720_DI320x288_NV12_F30, NV12, R720P, K4A_320x288, F30, AzureKinect, "AK_C1280x720_DI320x288_NV12_F30"},
	{AK_C1280x720_DI640x576_NV12_F30, NV12, R720P, K4A_640x576, F30, AzureKinect, "AK_C1280x720_DI640x576_NV12_F30"},
	{AK_C1280x720_DI640x576_YUY2_F30, YUY2, R720P, K4A_640x576, F30, AzureKinect, "AK_C1280x720_DI640x576_YUY2_F30"},
	{AK_C1280x720_DI640x576_MJPG_F30, MJPG, R720P, K4A_640x576, F30, AzureKinect, "AK_C1280x720_DI640x576_MJPG_F30"},
	{AK_C1280x720_DI640x576_BGRA_F30, BGRA, R720P, K4A_640x576, F30, AzureKinect, "AK_C1280x720_DI640x576_BGRA_F30"},
	{AK_C2048x1536_DI512x512_MJPG_F30, MJPG, R1536P, K4A_512x512, F30, AzureKinect, "AK_C2048x1536_DI512x512_MJPG_F30"},
	{AK_C2048x1536_DI1024x1024_MJPG_F15, MJPG, R1536P, K4A_1024x1024, F15, AzureKinect, "AK_C2048x1536_DI1024x1024_MJPG_F15"},
	{AK_C1280x720_DI512x512_NV12_F30, NV12, R720P, K4A_512x512, F30, AzureKinect, "AK_C1280x720_DI512x512_NV12_F30"},
	{AK_C1280x720_DI512x512_YUY2_F30, YUY2, R720P, K4A_512x512, F30, AzureKinect, "AK_C1280x720_DI512x512_YUY2_F30"},
	{AK_C1280x720_DI512x512_MJPG_F30, MJPG, R720P, K4A_512x512, F30, AzureKinect, "AK_C1280x720_DI512x512_MJPG_F30"},
	{AK_C1280x720_DI1024x1024_NV12_F15, NV12, R720P, K4A_1024x1024, F15, AzureKinect, "AK_C1280x720_DI1024x1024_NV12_F15"},
	{AK_C1280x720_DI1024x1024_YUY2_F15, YUY2, R720P, K4A_1024x1024, F15, AzureKinect, "AK_C1280x720_DI1024x1024_YUY2_F15"},
	{AK_C1280x720_DI1024x1024_MJPG_F15, MJPG, R720P, K4A_1024x1024, F15, AzureKinect, "AK_C1280x720_DI1024x1024_MJPG_F15"},
	{AK_DI640x576_F30, NA, ColorOff, K4A_640x576, F30, AzureKinect, "AK_DI640x576_F30"},
	{AK_DI512x512_F30, NA, ColorOff, K4A_512x512, F30, AzureKinect, "AK_DI512x512_F30"},
	{AK_C2048x1536_MJPG_F30, MJPG, R1536P, DepthOff, F30, AzureKinect, "AK_C2048x1536_MJPG_F30"},
	{AK_C4096x3072_MJPG_F15, MJPG, R3072P, DepthOff, F15, AzureKinect, "AK_C4096x3072_MJPG_F15"},
	{AK_C1280x720_NV12_F30, NV12, R720P, DepthOff, F30, AzureKinect, "AK_C1280x720_NV12_F30"},
	{AK_C1920x1080_MJPG_F30, MJPG, R1080P, DepthOff, F30, AzureKinect, "AK_C1920x1080_MJPG_F30"},
	{AK_C2560x1440_MJPG_F30, MJPG, R1440P, DepthOff, F30, AzureKinect, "AK_C2560x1440_MJPG_F30"},
	{AK_C3840x2160_MJPG_F15, MJPG, R2160P, DepthOff, F15, AzureKinect, "AK_C3840x2160_MJPG_F15"},

	{FB_C2048x1536_DI640x576_MJPG_F30, MJPG, R1536P, K4A_640x576, F30, FemtoBolt, "FB_C2048x1536_DI640x576_MJPG_F30"},
	{FB_C4096x3072_DI640x576_MJPG_F15, MJPG, R3072P, K4A_640x576, F15, FemtoBolt, "FB_C4096x3072_DI640x576_MJPG_F15"},
	{FB_C1280x720_DI320x288_NV12_F30, NV12, R720P, K4A_320x288, F30, FemtoBolt, "FB_C1280x720_DI320x288_NV12_F30"},
	{FB_C1280x720_DI640x576_NV12_F30, NV12, R720P, K4A_640x576, F30, FemtoBolt, "FB_C1280x720_DI640x576_NV12_F30"},
	{FB_C2048x1536_DI512x512_MJPG_F30, MJPG, R1536P, K4A_512x512, F30, FemtoBolt, "FB_C2048x1536_DI512x512_MJPG_F30"},
	{FB_C1280x720_DI512x512_NV12_F30, NV12, R720P, K4A_512x512, F30, FemtoBolt, "FB_C1280x720_DI512x512_NV12_F30"},
	{FB_DI640x576_F30, NA, ColorOff, K4A_640x576, F30, FemtoBolt, "FB_DI640x576_F30"},
	{FB_DI512x512_F30, NA, ColorOff, K4A_512x512, F30, FemtoBolt, "FB_DI512x512_F30"},
	{FB_C1280x720_MJPG_F30, MJPG, R720P, DepthOff, F30, FemtoBolt, "FB_C1280x720_MJPG_F30"},

	{FME_C1280x720_DI640x576_MJPG_F30, MJPG, R720P, K4A_640x576, F30, FemtoMegaEthernet, "FME_C1280x720_DI640x576_MJPG_F30"},
	{FME_C1280x720_DI512x512_MJPG_F30, MJPG, R720P, K4A_512x512, F30, FemtoMegaEthernet, "FME_C1280x720_DI512x512_MJPG_F30"},
	{FME_DI512x512_F30, NA, ColorOff, K4A_512x512, F30, FemtoMegaEthernet, "FME_DI512x512_F30"},
	{FME_C1280x720_MJPG_F30, MJPG, R720P, DepthOff, F30, FemtoMegaEthernet, "FME_C1280x720_MJPG_F30"},

	{FMU_C1280x720_DI640x576_MJPG_F30, MJPG, R720P, K4A_640x576, F30, FemtoMegaUSB, "FMU_C1280x720_DI640x576_MJPG_F30"},
	{FMU_C1280x720_DI512x512_MJPG_F30, MJPG, R720P, K4A_512x512, F30, FemtoMegaUSB, "FMU_C1280x720_DI512x512_MJPG_F30"},

	{K2_C1920x1080_DI512x424_BGRA_F30, BGRA, R1080P, K2_512x424, F30, Kinect2, "K2_C1920x1080_DI512x424_BGRA_F30"},
	{K2_DI512x424_F30, NA, ColorOff, K2_512x424, F30, Kinect2, "K2_DI512x424_F30"},
}

var modesByID = lo.SliceToMap(modeDefs, func(def modeDef) (Mode, modeDef) {
	return def.mode, def
})

func (m Mode) def() modeDef {
	if def, ok := modesByID[m]; ok {
		return def
	}
	return modeDef{mode: InvalidMode, format: NA, fps: UndefinedFramerate, device: UndefinedDevice, name: "invalid"}
}

func (m Mode) String() string {
	return m.def().name
}

// IsValid returns whether the mode is in the mode table.
func (m Mode) IsValid() bool {
	_, ok := modesByID[m]
	return ok
}

// ImageFormat returns the color format delivered in this mode.
func (m Mode) ImageFormat() ImageFormat {
	return m.def().format
}

// ColorResolution returns the color resolution of this mode.
func (m Mode) ColorResolution() ColorResolution {
	return m.def().colorRes
}

// DepthResolution returns the depth resolution of this mode.
func (m Mode) DepthResolution() DepthResolution {
	return m.def().depthRes
}

// Framerate returns the capture framerate of this mode.
func (m Mode) Framerate() Framerate {
	return m.def().fps
}

// Device returns the device family owning this mode.
func (m Mode) Device() DeviceType {
	return m.def().device
}

// HasColor returns whether the color sensor is on.
func (m Mode) HasColor() bool {
	return m.ColorResolution() != ColorOff
}

// HasDepth returns whether the depth sensor is on.
func (m Mode) HasDepth() bool {
	return m.DepthResolution() != DepthOff
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	mode, err := ModeFromString(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ModeFromString looks a mode up by name.
func ModeFromString(name string) (Mode, error) {
	def, ok := lo.Find(modeDefs, func(def modeDef) bool { return def.name == name })
	if !ok {
		return InvalidMode, errors.Errorf("unknown capture mode %q", name)
	}
	return def.mode, nil
}

// DeviceModes lists the modes of a device family in table order.
func DeviceModes(dt DeviceType) []Mode {
	return lo.FilterMap(modeDefs, func(def modeDef, _ int) (Mode, bool) {
		return def.mode, def.device == dt
	})
}
