package codec

import (
	"go.viam.com/depthcam/settings"
	"go.viam.com/depthcam/transform"
)

// Compressor encodes the payloads of compressed frames.
type Compressor interface {
	EncodeColor(pix []byte, w, h int) (EncodedImage, error)
	EncodeGray(pix []byte, w, h int) (EncodedImage, error)
	EncodeUint16(values []uint16, w, h int) (EncodedImage, error)
	EncodeCloud(points []transform.Point3, rgb []byte) (EncodedImage, error)
}

// Uncompressor decodes the payloads of compressed frames.
type Uncompressor interface {
	DecodeColor(e EncodedImage, dst []byte) ([]byte, error)
	DecodeGray(e EncodedImage, dst []byte) ([]byte, error)
	DecodeUint16(e EncodedImage, dst []uint16) ([]uint16, error)
	DecodeCloud(e EncodedImage) ([]transform.Point3, []byte, error)
}

// Default implements Compressor and Uncompressor with JPEG or QOI color and LZF integer payloads.
type Default struct {
	Quality    int
	ColorCodec settings.ColorCodec
}

var (
	_ Compressor   = (*Default)(nil)
	_ Uncompressor = (*Default)(nil)
)

// NewDefault returns the default codecs configured from compression settings.
func NewDefault(cs settings.CompressionSettings) *Default {
	return &Default{Quality: cs.JPEGCompressionRate, ColorCodec: cs.ColorCodec}
}

// EncodeColor implements Compressor.
func (d *Default) EncodeColor(pix []byte, w, h int) (EncodedImage, error) {
	return EncodeRGBA(pix, w, h, d.Quality, d.ColorCodec)
}

// EncodeGray implements Compressor.
func (d *Default) EncodeGray(pix []byte, w, h int) (EncodedImage, error) {
	return EncodeGray(pix, w, h, d.Quality)
}

// EncodeUint16 implements Compressor.
func (d *Default) EncodeUint16(values []uint16, w, h int) (EncodedImage, error) {
	return EncodeUint16(values, w, h)
}

// EncodeCloud implements Compressor.
func (d *Default) EncodeCloud(points []transform.Point3, rgb []byte) (EncodedImage, error) {
	return EncodeCloud(points, rgb)
}

// DecodeColor implements Uncompressor.
func (d *Default) DecodeColor(e EncodedImage, dst []byte) ([]byte, error) {
	return DecodeRGBA(e, dst)
}

// DecodeGray implements Uncompressor.
func (d *Default) DecodeGray(e EncodedImage, dst []byte) ([]byte, error) {
	return DecodeGray(e, dst)
}

// DecodeUint16 implements Uncompressor.
func (d *Default) DecodeUint16(e EncodedImage, dst []uint16) ([]uint16, error) {
	return DecodeUint16(e, dst)
}

// DecodeCloud implements Uncompressor.
func (d *Default) DecodeCloud(e EncodedImage) ([]transform.Point3, []byte, error) {
	return DecodeCloud(e)
}
