package frame

import (
	"slices"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/depthcam/codec"
	"go.viam.com/depthcam/dcimage"
	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/depthfilter"
)

// Decompress rebuilds a local frame from a compressed one. Depth and infrared images are
// colorized again; cloud normals are derived from the depth image when it was transmitted,
// otherwise they are zero.
func Decompress(cf *CompressedFrame, u codec.Uncompressor, conn dcmode.Connectivity) (*LocalFrame, error) {
	if cf == nil {
		return nil, errors.New("nil compressed frame")
	}
	mi, err := dcmode.NewModeInfos(cf.Mode, false)
	if err != nil {
		return nil, err
	}
	lf := &LocalFrame{
		IDCapture:      cf.IDCapture,
		AfterCaptureTS: cf.AfterCaptureTS,
		Mode:           cf.Mode,
		SessionID:      cf.SessionID,
		Calibration:    slices.Clone(cf.Calibration),
		Bodies:         slices.Clone(cf.Bodies),
		Audio:          Audio{Channels: cf.Audio.Channels, Samples: slices.Clone(cf.Audio.Samples)},
	}
	if cf.IMU != nil {
		imu := *cf.IMU
		lf.IMU = &imu
	}

	if !cf.Color.Empty() {
		if lf.RGBAColor, err = u.DecodeColor(cf.Color, nil); err != nil {
			return nil, errors.Wrap(err, "cannot decode color")
		}
		lf.ColorWidth, lf.ColorHeight = cf.Color.Width, cf.Color.Height
	}
	if !cf.DepthSizedColor.Empty() {
		if lf.DepthSizedColor, err = u.DecodeColor(cf.DepthSizedColor, nil); err != nil {
			return nil, errors.Wrap(err, "cannot decode depth sized color")
		}
		lf.DepthWidth, lf.DepthHeight = cf.DepthSizedColor.Width, cf.DepthSizedColor.Height
	}
	if !cf.Depth.Empty() {
		if lf.Depth, err = u.DecodeUint16(cf.Depth, nil); err != nil {
			return nil, errors.Wrap(err, "cannot decode depth")
		}
		lf.DepthWidth, lf.DepthHeight = cf.Depth.Width, cf.Depth.Height
		lf.DepthImage = dcimage.ColorizeDepth(nil, lf.Depth, mi.DepthRangeMM())
	}
	if !cf.Infra.Empty() {
		if lf.Infra, err = u.DecodeUint16(cf.Infra, nil); err != nil {
			return nil, errors.Wrap(err, "cannot decode infrared")
		}
		lf.InfraImage = dcimage.ColorizeInfra(nil, lf.Infra)
	}
	if !cf.BodiesIDMap.Empty() {
		if lf.BodiesIDMap, err = u.DecodeGray(cf.BodiesIDMap, nil); err != nil {
			return nil, errors.Wrap(err, "cannot decode bodies id map")
		}
	}
	if !cf.Cloud.Empty() {
		if err := decompressCloud(lf, cf.Cloud, u, conn); err != nil {
			return nil, err
		}
	}
	return lf, nil
}

func decompressCloud(lf *LocalFrame, e codec.EncodedImage, u codec.Uncompressor, conn dcmode.Connectivity) error {
	points, rgb, err := u.DecodeCloud(e)
	if err != nil {
		return errors.Wrap(err, "cannot decode cloud")
	}
	n := len(points)
	lf.Cloud = Cloud{
		Vertices: make([]r3.Vector, n),
		Colors:   make([]r3.Vector, n),
		Normals:  make([]r3.Vector, n),
	}
	for i, p := range points {
		lf.Cloud.Vertices[i] = p.Vector().Mul(0.001)
		lf.Cloud.Colors[i] = r3.Vector{X: float64(rgb[i*3]) / 255, Y: float64(rgb[i*3+1]) / 255, Z: float64(rgb[i*3+2]) / 255}
	}

	// vertices were packed in pixel order, so the valid depth pixels give back the remap
	if len(lf.Depth) == 0 || lf.DepthWidth*lf.DepthHeight != len(lf.Depth) {
		return nil
	}
	remap := make([]int32, len(lf.Depth))
	count := int32(0)
	for id, d := range lf.Depth {
		if d == dcmode.InvalidDepthValue {
			remap[id] = -1
			continue
		}
		remap[id] = count
		count++
	}
	if int(count) != n {
		return nil
	}
	computeNormals(lf.Cloud.Normals, lf.Cloud.Vertices, depthfilter.NewIndices(lf.DepthWidth, lf.DepthHeight), remap, conn)
	return nil
}
