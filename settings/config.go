// Package settings holds the user facing configuration of a depth camera: capture mode and
// synchronisation, color sensor properties, depth filters, which data to capture, generate and
// compress, and the delay applied to frames.
package settings

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/depthcam/dcmode"
)

// ConfigSettings selects the capture session. It is fixed while a session runs.
type ConfigSettings struct {
	TypeDevice dcmode.DeviceType `json:"type_device"`
	IDDevice   uint32            `json:"id_device"`
	Mode       dcmode.Mode       `json:"mode"`

	EnableIRStream                bool  `json:"enable_ir_stream"`
	SynchronizeColorAndDepth      bool  `json:"synchronize_color_and_depth"`
	DelayBetweenColorAndDepthUsec int32 `json:"delay_between_color_and_depth_usec"`

	SyncMode             dcmode.SyncMode `json:"synch_mode"`
	SubordinateDelayUsec uint32          `json:"subordinate_delay_usec"`

	BTEnabled        bool                     `json:"bt_enabled"`
	BTOrientation    dcmode.SensorOrientation `json:"bt_orientation"`
	BTProcessingMode dcmode.BTProcessingMode  `json:"bt_processing_mode"`
	BTGPUID          int32                    `json:"bt_gpu_id"`

	DisableLED bool `json:"disable_led"`

	// ColorAlignmentTr is added to the depth to color translation, in millimeters.
	ColorAlignmentTr r3.Vector `json:"color_alignment_tr"`
	// ColorAlignmentRotEuler rotates the depth to color extrinsics, in degrees.
	ColorAlignmentRotEuler r3.Vector `json:"color_alignment_rot_euler"`
}

// DefaultConfigSettings returns the settings used for a freshly plugged device.
func DefaultConfigSettings(dt dcmode.DeviceType) ConfigSettings {
	return ConfigSettings{
		TypeDevice:               dt,
		Mode:                     dcmode.DeviceCapabilities(dt).DefaultMode,
		EnableIRStream:           true,
		SynchronizeColorAndDepth: true,
		SyncMode:                 dcmode.Standalone,
		BTProcessingMode:         dcmode.BTGPU,
	}
}

// Validate checks the settings. The returned fields are accepted but will be ignored by the
// device family.
func (cs *ConfigSettings) Validate(path string) ([]string, error) {
	if !cs.Mode.IsValid() {
		return nil, errors.Errorf("%s: invalid mode %d", path, cs.Mode)
	}
	if cs.Mode.Device() != cs.TypeDevice {
		return nil, errors.Errorf("%s: mode %s does not belong to device %s", path, cs.Mode, cs.TypeDevice)
	}
	if cs.SyncMode < dcmode.Standalone || cs.SyncMode > dcmode.Subordinate {
		return nil, errors.Errorf("%s: invalid synch_mode %d", path, cs.SyncMode)
	}

	caps := dcmode.DeviceCapabilities(cs.TypeDevice)
	var ignored []string
	if cs.BTEnabled && (!caps.BodyTracking || !cs.Mode.HasDepth()) {
		ignored = append(ignored, path+".bt_enabled")
	}
	if cs.EnableIRStream && !caps.Infra {
		ignored = append(ignored, path+".enable_ir_stream")
	}
	if cs.SubordinateDelayUsec != 0 && cs.SyncMode != dcmode.Subordinate {
		ignored = append(ignored, path+".subordinate_delay_usec")
	}
	return ignored, nil
}
