package codec

import (
	"github.com/pkg/errors"

	"go.viam.com/depthcam/transform"
)

// CloudOffset shifts x and y so that they fit an unsigned 16 bits value.
const CloudOffset = 4096

// CloudPadding is the multiple, in 16 bits values, packed clouds are padded to.
const CloudPadding = 128

// PackedCloudSize is the number of 16 bits values of a packed cloud of n vertices.
func PackedCloudSize(n int) int {
	size := n * 5
	if rest := size % CloudPadding; rest != 0 {
		size += CloudPadding - rest
	}
	return size
}

// PackCloud lays out n vertices as XX..YY..ZZ..RR..GG..BB: three planes of 16 bits coordinates
// followed by three planes of 8 bits channels, zero padded. rgb holds 3 bytes per vertex and may
// be empty.
func PackCloud(points []transform.Point3, rgb []byte, dst []uint16) ([]uint16, error) {
	n := len(points)
	if len(rgb) != 0 && len(rgb) != n*3 {
		return dst[:0], errors.Errorf("%d color bytes for %d vertices", len(rgb), n)
	}
	size := PackedCloudSize(n)
	if cap(dst) < size {
		dst = make([]uint16, size)
	}
	dst = dst[:size]
	clear(dst)
	for i, p := range points {
		dst[i] = uint16(int32(p.X) + CloudOffset)
		dst[n+i] = uint16(int32(p.Y) + CloudOffset)
		dst[2*n+i] = uint16(p.Z)
	}
	if len(rgb) != 0 {
		for i := 0; i < n; i++ {
			setByte(dst, 6*n+i, rgb[i*3])
			setByte(dst, 7*n+i, rgb[i*3+1])
			setByte(dst, 8*n+i, rgb[i*3+2])
		}
	}
	return dst, nil
}

// bytes of a packed cloud are little endian halves of its 16 bits values.
func setByte(values []uint16, idx int, b byte) {
	v := &values[idx/2]
	if idx%2 == 0 {
		*v = *v&0xff00 | uint16(b)
	} else {
		*v = *v&0x00ff | uint16(b)<<8
	}
}

func getByte(values []uint16, idx int) byte {
	v := values[idx/2]
	if idx%2 == 0 {
		return byte(v)
	}
	return byte(v >> 8)
}

// UnpackCloud reverses PackCloud for a cloud of n vertices.
func UnpackCloud(packed []uint16, n int) ([]transform.Point3, []byte, error) {
	if len(packed) != PackedCloudSize(n) {
		return nil, nil, errors.Wrapf(ErrCorrupted, "packed cloud of %d values for %d vertices", len(packed), n)
	}
	points := make([]transform.Point3, n)
	rgb := make([]byte, n*3)
	for i := range points {
		points[i] = transform.Point3{
			X: int16(int32(packed[i]) - CloudOffset),
			Y: int16(int32(packed[n+i]) - CloudOffset),
			Z: int16(packed[2*n+i]),
		}
		rgb[i*3] = getByte(packed, 6*n+i)
		rgb[i*3+1] = getByte(packed, 7*n+i)
		rgb[i*3+2] = getByte(packed, 8*n+i)
	}
	return points, rgb, nil
}

// EncodeCloud packs and compresses a colored cloud.
func EncodeCloud(points []transform.Point3, rgb []byte) (EncodedImage, error) {
	packed, err := PackCloud(points, rgb, nil)
	if err != nil {
		return EncodedImage{}, err
	}
	return EncodedImage{Width: len(points), Height: 1, Kind: KindCloud, Data: compressBytes(uint16sToBytes(packed))}, nil
}

// DecodeCloud decodes a payload produced by EncodeCloud.
func DecodeCloud(e EncodedImage) ([]transform.Point3, []byte, error) {
	if e.Kind != KindCloud {
		return nil, nil, errors.Errorf("cannot decode %s payload as a cloud", e.Kind)
	}
	raw, err := uncompressBytes(e.Data, nil)
	if err != nil {
		return nil, nil, err
	}
	return UnpackCloud(bytesToUint16s(raw, nil), e.Width)
}
