// Package frame turns the raw captures of a device into display-ready local frames and
// transport-ready compressed frames.
package frame

import (
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"

	"go.viam.com/depthcam/body"
	"go.viam.com/depthcam/codec"
	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/driver"
)

// ColorView borrows the native color image of the last capture.
type ColorView struct {
	Present bool
	driver.ColorImage
}

// DepthView borrows a 16 bits image of the last capture.
type DepthView struct {
	Present       bool
	Width, Height int
	Data          []uint16
}

// Audio holds interleaved samples.
type Audio struct {
	Channels int       `json:"channels"`
	Samples  []float32 `json:"samples"`
}

// Frames returns the number of sample frames.
func (a Audio) Frames() int {
	if a.Channels <= 0 {
		return 0
	}
	return len(a.Samples) / a.Channels
}

// CaptureFrame is the raw data of one tick. Views are owned by the driver and only valid until
// the next capture.
type CaptureFrame struct {
	Color       ColorView
	Depth       DepthView
	Infra       DepthView
	BodiesIDMap []uint8
	Bodies      []body.Body
	IMU         driver.IMUSample
	HasIMU      bool
	Audio       Audio
}

// Cloud is a colored point cloud. The three slices have the same length. Vertices are in
// meters, colors have channels in [0,1].
type Cloud struct {
	Vertices []r3.Vector
	Colors   []r3.Vector
	Normals  []r3.Vector
}

// Len returns the number of vertices.
func (c *Cloud) Len() int {
	return len(c.Vertices)
}

// LocalFrame is a decoded frame ready for display. It is created fresh every tick and owned by
// the receiver.
type LocalFrame struct {
	IDCapture      uint64
	AfterCaptureTS time.Time
	ReceivedTS     time.Time
	Mode           dcmode.Mode
	SessionID      uuid.UUID

	ColorWidth, ColorHeight int
	// RGBAColor has color dimensions.
	RGBAColor []byte
	// DepthSizedColor, DepthImage, InfraImage and BodiesIDMap have depth dimensions.
	DepthSizedColor []byte
	DepthWidth      int
	DepthHeight     int
	Depth           []uint16
	DepthImage      []byte
	Infra           []uint16
	InfraImage      []byte
	BodiesIDMap     []uint8

	Cloud  Cloud
	IMU    *driver.IMUSample
	Bodies []body.Body
	Audio  Audio

	Calibration []byte
}

// CompressedFrame is an encoded frame ready for transport.
type CompressedFrame struct {
	IDCapture      uint64      `json:"id_capture"`
	AfterCaptureTS time.Time   `json:"after_capture_ts"`
	Mode           dcmode.Mode `json:"mode"`
	DeviceID       string      `json:"device_id"`
	SessionID      uuid.UUID   `json:"session_id"`

	ValidVerticesCount int `json:"valid_vertices_count"`

	Color           codec.EncodedImage `json:"color"`
	DepthSizedColor codec.EncodedImage `json:"depth_sized_color"`
	Depth           codec.EncodedImage `json:"depth"`
	Infra           codec.EncodedImage `json:"infra"`
	BodiesIDMap     codec.EncodedImage `json:"bodies_id_map"`
	Cloud           codec.EncodedImage `json:"cloud"`

	IMU    *driver.IMUSample `json:"imu,omitempty"`
	Bodies []body.Body       `json:"bodies,omitempty"`
	Audio  Audio             `json:"audio"`

	Calibration []byte `json:"calibration"`
}
