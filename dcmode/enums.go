// Package dcmode describes the capture modes of the supported depth cameras: device families,
// image formats, resolutions, framerates and the per-session ModeInfos derived from them.
package dcmode

import (
	"strings"

	"github.com/pkg/errors"
)

// DeviceType is a family of depth camera.
type DeviceType int8

// The known device families.
const (
	AzureKinect DeviceType = iota
	FemtoBolt
	FemtoMegaEthernet
	FemtoMegaUSB
	Kinect2
	Recording
	UndefinedDevice
)

var deviceTypeNames = map[DeviceType]string{
	AzureKinect:       "azure_kinect",
	FemtoBolt:         "femto_bolt",
	FemtoMegaEthernet: "femto_mega_ethernet",
	FemtoMegaUSB:      "femto_mega_usb",
	Kinect2:           "kinect2",
	Recording:         "recording",
	UndefinedDevice:   "undefined",
}

func (dt DeviceType) String() string {
	if name, ok := deviceTypeNames[dt]; ok {
		return name
	}
	return "undefined"
}

// MarshalText implements encoding.TextMarshaler.
func (dt DeviceType) MarshalText() ([]byte, error) {
	return []byte(dt.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (dt *DeviceType) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for k, v := range deviceTypeNames {
		if v == name {
			*dt = k
			return nil
		}
	}
	return errors.Errorf("unknown device type %q", string(text))
}

// IsOrbbec returns whether the device family is driven through libobsensor.
func (dt DeviceType) IsOrbbec() bool {
	return dt == FemtoBolt || dt == FemtoMegaEthernet || dt == FemtoMegaUSB
}

// ImageFormat is the pixel layout of a color image as delivered by a device.
type ImageFormat int8

// Image formats.
const (
	NV12 ImageFormat = iota
	YUY2
	MJPG
	BGRA
	DEPTH16
	INFRA16
	NA
)

var imageFormatNames = []string{"NV12", "YUY2", "MJPG", "BGRA", "DEPTH16", "INFRA16", "NA"}

func (f ImageFormat) String() string {
	if int(f) < 0 || int(f) >= len(imageFormatNames) {
		return "NA"
	}
	return imageFormatNames[f]
}

// Framerate is a capture framerate.
type Framerate int8

// Framerates.
const (
	F5 Framerate = iota
	F15
	F30
	UndefinedFramerate
)

// Value returns the number of frames per second.
func (f Framerate) Value() int {
	switch f {
	case F5:
		return 5
	case F15:
		return 15
	case F30:
		return 30
	case UndefinedFramerate:
	}
	return 0
}

// SyncMode is the hardware synchronisation role of a device.
type SyncMode int8

// Sync modes. Main is also called leader or primary, Subordinate follower or secondary.
const (
	Standalone SyncMode = iota
	Main
	Subordinate
)

var syncModeNames = []string{"standalone", "main", "subordinate"}

func (s SyncMode) String() string {
	if int(s) < 0 || int(s) >= len(syncModeNames) {
		return "unknown"
	}
	return syncModeNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s SyncMode) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. leader/follower aliases are accepted.
func (s *SyncMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "standalone":
		*s = Standalone
	case "main", "leader", "primary", "master":
		*s = Main
	case "subordinate", "follower", "secondary":
		*s = Subordinate
	default:
		return errors.Errorf("unknown sync mode %q", string(text))
	}
	return nil
}

// PowerlineFrequency of the color sensor anti flicker filter.
type PowerlineFrequency int8

// Powerline frequencies.
const (
	PowerlineUndefined PowerlineFrequency = iota
	PowerlineF50
	PowerlineF60
)

// Connectivity selects which neighbours of a pixel are considered.
type Connectivity int8

// Connectivities: 2H is left/right, 2V up/down, 4 the cross, 8 the full ring.
const (
	Connectivity2H Connectivity = iota
	Connectivity2V
	Connectivity4
	Connectivity8
)

// SensorOrientation of the camera for body tracking.
type SensorOrientation int8

// Orientations.
const (
	OrientationDefault SensorOrientation = iota
	OrientationClockwise90
	OrientationCounterClockwise90
	OrientationFlip180
)

// BTProcessingMode selects the body tracking inference backend.
type BTProcessingMode int8

// Processing modes.
const (
	BTGPU BTProcessingMode = iota
	BTCPU
	BTGPUCuda
	BTGPUTensorRT
	BTGPUDirectML
)

// CloudColorMode selects how point colors are produced.
type CloudColorMode int8

// Cloud color modes.
const (
	CloudColorFromDepthData CloudColorMode = iota
	CloudColorFromDepthSizedColorImage
)

// Invalid sample values.
const (
	InvalidDepthValue uint16 = 0
	InvalidInfraValue uint16 = 0
	InvalidColorValue uint8  = 0
)
