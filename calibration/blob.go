package calibration

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"go.viam.com/depthcam/dcmode"
)

var blobMagic = [4]byte{'D', 'C', 'A', 'L'}

const blobVersion = 1

type wireCamera struct {
	Width, Height  int32
	Model          int32
	ParameterCount int32
	MetricRadius   float32
	Intrinsics     Intrinsics
	Extrinsics     Extrinsics
}

type wireCalibration struct {
	Magic           [4]byte
	Version         uint32
	DepthResolution int32
	ColorResolution int32
	Depth, Color    wireCamera
	Extrinsics      [numCameras][numCameras]Extrinsics
}

func toWire(c CameraCalibration) wireCamera {
	return wireCamera{
		Width: int32(c.Width), Height: int32(c.Height),
		Model:          int32(c.Model),
		ParameterCount: int32(c.ParameterCount),
		MetricRadius:   c.MetricRadius,
		Intrinsics:     c.Intrinsics,
		Extrinsics:     c.Extrinsics,
	}
}

func fromWire(w wireCamera) CameraCalibration {
	return CameraCalibration{
		Width: int(w.Width), Height: int(w.Height),
		Model:          LensModel(w.Model),
		ParameterCount: int(w.ParameterCount),
		MetricRadius:   w.MetricRadius,
		Intrinsics:     w.Intrinsics,
		Extrinsics:     w.Extrinsics,
	}
}

// BlobSize is the size of a marshaled calibration.
var BlobSize = binary.Size(wireCalibration{})

// MarshalBinary encodes the calibration in the little endian blob stamped into frames.
func (uc *UnifiedCalibration) MarshalBinary() ([]byte, error) {
	w := wireCalibration{
		Magic:           blobMagic,
		Version:         blobVersion,
		DepthResolution: int32(uc.DepthResolution),
		ColorResolution: int32(uc.ColorResolution),
		Depth:           toWire(uc.Depth),
		Color:           toWire(uc.Color),
		Extrinsics:      uc.Extrinsics,
	}
	var buf bytes.Buffer
	buf.Grow(BlobSize)
	if err := binary.Write(&buf, binary.LittleEndian, &w); err != nil {
		return nil, errors.Wrap(err, "cannot encode calibration")
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a blob produced by MarshalBinary.
func (uc *UnifiedCalibration) UnmarshalBinary(data []byte) error {
	if len(data) != BlobSize {
		return errors.Errorf("calibration blob has %d bytes, expected %d", len(data), BlobSize)
	}
	var w wireCalibration
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &w); err != nil {
		return errors.Wrap(err, "cannot decode calibration")
	}
	if w.Magic != blobMagic {
		return errors.New("not a calibration blob")
	}
	if w.Version != blobVersion {
		return errors.Errorf("unsupported calibration blob version %d", w.Version)
	}
	*uc = UnifiedCalibration{
		DepthResolution: dcmode.DepthResolution(w.DepthResolution),
		ColorResolution: dcmode.ColorResolution(w.ColorResolution),
		Depth:           fromWire(w.Depth),
		Color:           fromWire(w.Color),
		Extrinsics:      w.Extrinsics,
	}
	return nil
}
