// Package codec encodes frame payloads for transport and decodes them back.
package codec

import (
	"github.com/pkg/errors"
)

// ErrCorrupted is returned when a payload cannot be decoded.
var ErrCorrupted = errors.New("corrupted payload")

// Kind identifies the encoding of a payload.
type Kind uint8

// Payload encodings.
const (
	KindNone Kind = iota
	KindJPEG
	KindQOI
	KindLZF16
	KindCloud
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindJPEG:
		return "jpeg"
	case KindQOI:
		return "qoi"
	case KindLZF16:
		return "lzf16"
	case KindCloud:
		return "cloud"
	default:
		return "unknown"
	}
}

// EncodedImage is an encoded payload. Clouds store their vertex count in Width and 1 in Height.
type EncodedImage struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Kind   Kind   `json:"kind"`
	Data   []byte `json:"data"`
}

// Empty reports whether the payload holds no data.
func (e EncodedImage) Empty() bool {
	return len(e.Data) == 0
}
