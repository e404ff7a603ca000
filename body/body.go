// Package body tracks skeletons from depth and infrared frames of any device and converts the
// tracker output into Body values.
package body

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// JointType names a skeleton joint.
type JointType int8

// Joint types, in tracker order.
const (
	JointPelvis JointType = iota
	JointSpineNavel
	JointSpineChest
	JointNeck
	JointClavicleLeft
	JointShoulderLeft
	JointElbowLeft
	JointWristLeft
	JointHandLeft
	JointHandtipLeft
	JointThumbLeft
	JointClavicleRight
	JointShoulderRight
	JointElbowRight
	JointWristRight
	JointHandRight
	JointHandtipRight
	JointThumbRight
	JointHipLeft
	JointKneeLeft
	JointAnkleLeft
	JointFootLeft
	JointHipRight
	JointKneeRight
	JointAnkleRight
	JointFootRight
	JointHead
	JointNose
	JointEyeLeft
	JointEarLeft
	JointEyeRight
	JointEarRight
	JointCount
)

var jointNames = [JointCount]string{
	"pelvis", "spine_navel", "spine_chest", "neck",
	"clavicle_left", "shoulder_left", "elbow_left", "wrist_left", "hand_left", "handtip_left", "thumb_left",
	"clavicle_right", "shoulder_right", "elbow_right", "wrist_right", "hand_right", "handtip_right", "thumb_right",
	"hip_left", "knee_left", "ankle_left", "foot_left",
	"hip_right", "knee_right", "ankle_right", "foot_right",
	"head", "nose", "eye_left", "ear_left", "eye_right", "ear_right",
}

func (j JointType) String() string {
	if j < 0 || j >= JointCount {
		return "unknown"
	}
	return jointNames[j]
}

// MarshalText implements encoding.TextMarshaler.
func (j JointType) MarshalText() ([]byte, error) {
	return []byte(j.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (j *JointType) UnmarshalText(text []byte) error {
	idx := lo.IndexOf(jointNames[:], string(text))
	if idx < 0 {
		return errors.Errorf("unknown joint %q", text)
	}
	*j = JointType(idx)
	return nil
}

// JointTypes lists every joint type.
func JointTypes() []JointType {
	return lo.Times(int(JointCount), func(i int) JointType { return JointType(i) })
}

// Confidence is the confidence level of a joint.
type Confidence int8

// Confidence levels.
const (
	ConfidenceNone Confidence = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceNone:
		return "none"
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Quaternion is an orientation.
type Quaternion struct {
	X, Y, Z, W float64
}

// Joint is one joint of a skeleton. Positions are in millimeters, in the device convention.
type Joint struct {
	Position    r3.Vector  `json:"position"`
	Orientation Quaternion `json:"orientation"`
	Confidence  Confidence `json:"confidence"`
}

// Body is a tracked skeleton.
type Body struct {
	ID      int8              `json:"id"`
	Tracked bool              `json:"tracked"`
	Joints  [JointCount]Joint `json:"joints"`
}

// Joint returns the joint of type j.
func (b *Body) Joint(j JointType) Joint {
	return b.Joints[j]
}
