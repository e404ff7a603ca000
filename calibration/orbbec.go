package calibration

import (
	"github.com/pkg/errors"

	"go.viam.com/depthcam/dcmode"
)

// OBSensor indexes the per sensor blocks of an Orbbec calibration.
type OBSensor int

// Orbbec sensors.
const (
	OBSensorUnknown OBSensor = iota
	OBSensorIR
	OBSensorColor
	OBSensorDepth
	OBSensorAccel
	OBSensorGyro
	OBSensorIRLeft
	OBSensorIRRight
	OBSensorRawPhase
	OBSensorCount
)

// OBIntrinsic is an Orbbec camera intrinsic block.
type OBIntrinsic struct {
	Fx, Fy        float32
	Cx, Cy        float32
	Width, Height int16
}

// OBDistortion is an Orbbec distortion block.
type OBDistortion struct {
	K1, K2, K3, K4, K5, K6 float32
	P1, P2                 float32
}

// OBExtrinsic is an Orbbec rigid transform, translation in millimeters.
type OBExtrinsic struct {
	Rot   [9]float32
	Trans [3]float32
}

// OBCameraParam is the simple per stream calibration reported by every Orbbec device.
type OBCameraParam struct {
	DepthIntrinsic  OBIntrinsic
	RGBIntrinsic    OBIntrinsic
	DepthDistortion OBDistortion
	RGBDistortion   OBDistortion
	IsMirrored      bool
}

// OBCalibrationParam is the full device calibration, with extrinsics between sensors.
// Extrinsics[from][to] blocks the device does not provide are zero filled.
type OBCalibrationParam struct {
	Intrinsics [OBSensorCount]OBIntrinsic
	Distortion [OBSensorCount]OBDistortion
	Extrinsics [OBSensorCount][OBSensorCount]OBExtrinsic
}

func intrinsicsFromOrbbec(in OBIntrinsic, dist OBDistortion) Intrinsics {
	return Intrinsics{
		Cx: in.Cx, Cy: in.Cy,
		Fx: in.Fx, Fy: in.Fy,
		K1: dist.K1, K2: dist.K2, K3: dist.K3, K4: dist.K4, K5: dist.K5, K6: dist.K6,
		P1: dist.P1, P2: dist.P2,
	}
}

func checkIntrinsics(uc *UnifiedCalibration, mi *dcmode.ModeInfos) error {
	if mi.HasDepth() && (uc.Depth.Intrinsics.Fx == 0 || uc.Depth.Intrinsics.Fy == 0) {
		return errors.Wrap(ErrMissingIntrinsics, "depth camera")
	}
	if mi.HasColor() && (uc.Color.Intrinsics.Fx == 0 || uc.Color.Intrinsics.Fy == 0) {
		return errors.Wrap(ErrMissingIntrinsics, "color camera")
	}
	return nil
}

// FromOrbbecCameraParam builds the session calibration from the simple camera parameters.
// They carry no extrinsics, so every extrinsic block is the identity.
func FromOrbbecCameraParam(param OBCameraParam, mi *dcmode.ModeInfos) (UnifiedCalibration, error) {
	uc := newUnified(mi)
	uc.Depth.Intrinsics = intrinsicsFromOrbbec(param.DepthIntrinsic, param.DepthDistortion)
	uc.Color.Intrinsics = intrinsicsFromOrbbec(param.RGBIntrinsic, param.RGBDistortion)
	if err := checkIntrinsics(&uc, mi); err != nil {
		return UnifiedCalibration{}, err
	}
	return uc, nil
}

// FromOrbbecCalibrationParam builds the session calibration from the full device calibration.
// Camera resolutions come from the session and not from the calibration, the color to depth
// transform is the inverse of the depth to color one.
func FromOrbbecCalibrationParam(param OBCalibrationParam, mi *dcmode.ModeInfos) (UnifiedCalibration, error) {
	uc := newUnified(mi)
	uc.Depth.Intrinsics = intrinsicsFromOrbbec(param.Intrinsics[OBSensorDepth], param.Distortion[OBSensorDepth])
	uc.Color.Intrinsics = intrinsicsFromOrbbec(param.Intrinsics[OBSensorColor], param.Distortion[OBSensorColor])
	if err := checkIntrinsics(&uc, mi); err != nil {
		return UnifiedCalibration{}, err
	}

	d2c := extrinsicsFromOrbbec(param.Extrinsics[OBSensorDepth][OBSensorColor])
	uc.setDepthToColor(d2c)
	return uc, nil
}

// A vendor block with a zero rotation was not filled by the device.
func extrinsicsFromOrbbec(ext OBExtrinsic) Extrinsics {
	if ext.Rot == [9]float32{} {
		return IdentityExtrinsics()
	}
	return Extrinsics{Rotation: ext.Rot, Translation: ext.Trans}
}

func (uc *UnifiedCalibration) setDepthToColor(d2c Extrinsics) {
	uc.Extrinsics[CameraDepth][CameraColor] = d2c
	uc.Extrinsics[CameraColor][CameraDepth] = invert(d2c)
	uc.Color.Extrinsics = d2c
}
