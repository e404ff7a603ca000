package codec

import (
	"encoding/binary"

	"github.com/pkg/errors"
	lzf "github.com/zhuyie/golzf"
)

const (
	methodRaw byte = iota
	methodLZF
)

// header: method (1 byte) then the uncompressed size (uint32).
const headerSize = 5

func compressBytes(raw []byte) []byte {
	out := make([]byte, headerSize+len(raw)+len(raw)/16+64)
	binary.LittleEndian.PutUint32(out[1:], uint32(len(raw)))
	if len(raw) > 0 {
		n, err := lzf.Compress(raw, out[headerSize:])
		if err == nil && n > 0 && n < len(raw) {
			out[0] = methodLZF
			return out[:headerSize+n]
		}
	}
	out[0] = methodRaw
	n := copy(out[headerSize:], raw)
	return out[:headerSize+n]
}

func uncompressBytes(data, dst []byte) ([]byte, error) {
	if len(data) < headerSize {
		return dst[:0], errors.Wrap(ErrCorrupted, "payload shorter than its header")
	}
	size := int(binary.LittleEndian.Uint32(data[1:]))
	if cap(dst) < size {
		dst = make([]byte, size)
	}
	dst = dst[:size]
	body := data[headerSize:]
	switch data[0] {
	case methodRaw:
		if len(body) != size {
			return dst[:0], errors.Wrapf(ErrCorrupted, "raw payload of %d bytes, expected %d", len(body), size)
		}
		copy(dst, body)
	case methodLZF:
		n, err := lzf.Decompress(body, dst)
		if err != nil {
			return dst[:0], errors.Wrap(ErrCorrupted, err.Error())
		}
		if n != size {
			return dst[:0], errors.Wrapf(ErrCorrupted, "decompressed %d bytes, expected %d", n, size)
		}
	default:
		return dst[:0], errors.Wrapf(ErrCorrupted, "unknown method %d", data[0])
	}
	return dst, nil
}

func uint16sToBytes(values []uint16) []byte {
	raw := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(raw[i*2:], v)
	}
	return raw
}

func bytesToUint16s(raw []byte, dst []uint16) []uint16 {
	n := len(raw) / 2
	if cap(dst) < n {
		dst = make([]uint16, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return dst
}

// EncodeUint16 losslessly encodes a depth or infrared image.
func EncodeUint16(values []uint16, w, h int) (EncodedImage, error) {
	if len(values) != w*h {
		return EncodedImage{}, errors.Errorf("buffer of %d values does not hold a %dx%d image", len(values), w, h)
	}
	return EncodedImage{Width: w, Height: h, Kind: KindLZF16, Data: compressBytes(uint16sToBytes(values))}, nil
}

// DecodeUint16 decodes a payload produced by EncodeUint16 into dst.
func DecodeUint16(e EncodedImage, dst []uint16) ([]uint16, error) {
	if e.Kind != KindLZF16 {
		return dst[:0], errors.Errorf("cannot decode %s payload as an integer image", e.Kind)
	}
	raw, err := uncompressBytes(e.Data, nil)
	if err != nil {
		return dst[:0], err
	}
	if len(raw) != e.Width*e.Height*2 {
		return dst[:0], errors.Wrapf(ErrCorrupted, "payload of %d bytes does not hold a %dx%d image", len(raw), e.Width, e.Height)
	}
	return bytesToUint16s(raw, dst), nil
}
