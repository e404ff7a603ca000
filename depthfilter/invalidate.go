package depthfilter

import (
	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/settings"
)

var bodyColor = [4]byte{255, 0, 0, 255}

// ApplyToDepth zeroes the masked pixels of depth.
func (f *Filter) ApplyToDepth(depth []uint16) {
	if len(depth) != len(f.mask) {
		return
	}
	for id, m := range f.mask {
		if m == 0 {
			depth[id] = dcmode.InvalidDepthValue
		}
	}
}

// InvalidateColor blanks the depth sized RGBA pixels whose depth is invalid and paints the
// pixels owned by a body. bodiesIDMap may be nil.
func InvalidateColor(color []byte, depth []uint16, bodiesIDMap []uint8, fs settings.FiltersSettings) {
	if len(color) != len(depth)*4 {
		return
	}
	hasBodies := len(bodiesIDMap) == len(depth)
	for id, d := range depth {
		px := color[id*4 : id*4+4]
		if fs.InvalidateColorFromDepth && d == dcmode.InvalidDepthValue {
			clear(px)
			continue
		}
		if hasBodies && bodiesIDMap[id] != BodyIndexBackground {
			copy(px, bodyColor[:])
		}
	}
}

// InvalidateInfra blanks the infrared pixels whose depth is invalid and saturates the pixels owned
// by a body.
func InvalidateInfra(infra, depth []uint16, bodiesIDMap []uint8, fs settings.FiltersSettings) {
	if len(infra) != len(depth) {
		return
	}
	hasBodies := len(bodiesIDMap) == len(depth)
	for id, d := range depth {
		if fs.InvalidateInfraFromDepth && d == dcmode.InvalidDepthValue {
			infra[id] = dcmode.InvalidInfraValue
			continue
		}
		if hasBodies && bodiesIDMap[id] != BodyIndexBackground {
			infra[id] = InfraBodyValue
		}
	}
}
