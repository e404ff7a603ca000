package dcimage

import (
	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/utils"
)

// InfraGreyMax is the infrared intensity mapped to white.
const InfraGreyMax = 2000

var gradientStops = [5][3]float64{
	{0, 0, 1},
	{0, 1, 1},
	{0, 1, 0},
	{1, 1, 0},
	{1, 0, 0},
}

// Gradient maps v in [0,1] on the blue, cyan, green, yellow, red ramp. Channels are in [0,1].
func Gradient(v float64) (float64, float64, float64) {
	switch {
	case v <= 0:
		s := gradientStops[0]
		return s[0], s[1], s[2]
	case v >= 1:
		s := gradientStops[4]
		return s[0], s[1], s[2]
	}
	pos := v * 4
	id := int(pos)
	t := pos - float64(id)
	a, b := gradientStops[id], gradientStops[id+1]
	return utils.Lerp(a[0], b[0], t), utils.Lerp(a[1], b[1], t), utils.Lerp(a[2], b[2], t)
}

// DepthGradient returns the gradient color of a depth value for a millimeter range.
func DepthGradient(depth uint16, rng dcmode.Range) (float64, float64, float64) {
	span := rng.Max - rng.Min
	if span <= 0 {
		return Gradient(0)
	}
	return Gradient((float64(depth) - rng.Min) / span)
}

// ColorizeDepth writes the RGBA gradient image of a depth frame. Invalid pixels are black.
func ColorizeDepth(dst []byte, depth []uint16, rng dcmode.Range) []byte {
	dst = grow(dst, len(depth)*4)
	utils.ParallelForEachIndex(len(depth), func(idx int) {
		o := idx * 4
		if depth[idx] == dcmode.InvalidDepthValue {
			dst[o], dst[o+1], dst[o+2], dst[o+3] = 0, 0, 0, 255
			return
		}
		r, g, b := DepthGradient(depth[idx], rng)
		dst[o], dst[o+1], dst[o+2], dst[o+3] = uint8(r*255), uint8(g*255), uint8(b*255), 255
	})
	return dst
}

// ColorizeInfra writes the RGBA grey image of an infrared frame.
func ColorizeInfra(dst []byte, infra []uint16) []byte {
	dst = grow(dst, len(infra)*4)
	utils.ParallelForEachIndex(len(infra), func(idx int) {
		v := float64(infra[idx])
		if v > InfraGreyMax {
			v = InfraGreyMax
		}
		grey := uint8(v / InfraGreyMax * 255)
		o := idx * 4
		dst[o], dst[o+1], dst[o+2], dst[o+3] = grey, grey, grey, 255
	})
	return dst
}
