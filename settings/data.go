package settings

import "go.viam.com/depthcam/dcmode"

// ColorCodec selects the encoder used for color images in compressed frames.
type ColorCodec int8

// Color codecs.
const (
	CodecJPEG ColorCodec = iota
	CodecQOI
)

// CaptureSettings selects the modalities read from the device every tick.
type CaptureSettings struct {
	Color        bool `json:"color"`
	Depth        bool `json:"depth"`
	Infra        bool `json:"infra"`
	Audio        bool `json:"audio"`
	IMU          bool `json:"imu"`
	BodyTracking bool `json:"body_tracking"`
}

// GenerationSettings selects the content of local frames.
type GenerationSettings struct {
	Calibration          bool                  `json:"calibration"`
	Depth                bool                  `json:"depth"`
	DepthImage           bool                  `json:"depth_image"`
	DepthSizedColorImage bool                  `json:"depth_sized_color_image"`
	ColorImage           bool                  `json:"color_image"`
	Infra                bool                  `json:"infra"`
	InfraImage           bool                  `json:"infra_image"`
	BodyIDMapImage       bool                  `json:"body_id_map_image"`
	BodyTracking         bool                  `json:"body_tracking"`
	Cloud                bool                  `json:"cloud"`
	IMU                  bool                  `json:"imu"`
	Audio                bool                  `json:"audio"`
	CloudColorMode       dcmode.CloudColorMode `json:"cloud_color_mode"`
}

// HasAny returns whether a local frame is requested at all.
func (gs GenerationSettings) HasAny() bool {
	return gs.Calibration || gs.Depth || gs.DepthImage || gs.DepthSizedColorImage || gs.ColorImage ||
		gs.Infra || gs.InfraImage || gs.BodyIDMapImage || gs.BodyTracking || gs.Cloud || gs.IMU || gs.Audio
}

// CompressionSettings selects the content of compressed frames.
type CompressionSettings struct {
	JPEGCompressionRate int                   `json:"jpeg_compression_rate"`
	ColorCodec          ColorCodec            `json:"color_codec"`
	Calibration         bool                  `json:"calibration"`
	Depth               bool                  `json:"depth"`
	DepthSizedColor     bool                  `json:"depth_sized_color"`
	Color               bool                  `json:"color"`
	Infra               bool                  `json:"infra"`
	BodyIDMap           bool                  `json:"body_id_map"`
	Cloud               bool                  `json:"cloud"`
	BodyTracking        bool                  `json:"body_tracking"`
	Audio               bool                  `json:"audio"`
	IMU                 bool                  `json:"imu"`
	CloudColorMode      dcmode.CloudColorMode `json:"cloud_color_mode"`
}

// HasAny returns whether a compressed frame is requested at all.
func (cs CompressionSettings) HasAny() bool {
	return cs.Calibration || cs.Depth || cs.DepthSizedColor || cs.Color || cs.Infra || cs.BodyIDMap ||
		cs.Cloud || cs.BodyTracking || cs.Audio || cs.IMU
}

// DataSettings groups capture, generation and compression choices.
type DataSettings struct {
	Capture     CaptureSettings     `json:"capture"`
	Generation  GenerationSettings  `json:"generation"`
	Compression CompressionSettings `json:"compression"`
}

// LocalProfile is used when frames are displayed on the capturing host.
func LocalProfile() DataSettings {
	return DataSettings{
		Capture: CaptureSettings{Color: true, Depth: true, Infra: true, Audio: true, IMU: true, BodyTracking: true},
		Generation: GenerationSettings{
			Calibration:          true,
			Depth:                true,
			DepthImage:           true,
			DepthSizedColorImage: true,
			ColorImage:           true,
			Infra:                true,
			InfraImage:           true,
			BodyIDMapImage:       true,
			BodyTracking:         true,
			Cloud:                true,
			IMU:                  true,
			Audio:                true,
			CloudColorMode:       dcmode.CloudColorFromDepthSizedColorImage,
		},
		Compression: CompressionSettings{JPEGCompressionRate: 80},
	}
}

// RemoteProfile is used when frames are compressed and sent to another host.
func RemoteProfile() DataSettings {
	return DataSettings{
		Capture: CaptureSettings{Color: true, Depth: true, Infra: false, Audio: false, IMU: true, BodyTracking: false},
		Compression: CompressionSettings{
			JPEGCompressionRate: 80,
			ColorCodec:          CodecJPEG,
			Calibration:         true,
			Depth:               true,
			DepthSizedColor:     true,
			IMU:                 true,
			CloudColorMode:      dcmode.CloudColorFromDepthSizedColorImage,
		},
	}
}

// DelaySettings delays the frames handed to consumers.
type DelaySettings struct {
	DelayMs int64 `json:"delay_ms"`
}
