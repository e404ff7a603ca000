package frame

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
)

// PCDType is the data section encoding of a PCD file.
type PCDType int

const (
	// PCDAscii writes one point per text line.
	PCDAscii PCDType = iota
	// PCDBinary writes little endian float32 coordinates and a packed color.
	PCDBinary
)

func packColor(c [3]float64) uint32 {
	clamp := func(v float64) uint32 {
		switch {
		case v <= 0:
			return 0
		case v >= 1:
			return 255
		}
		return uint32(v * 255)
	}
	return clamp(c[0])<<16 | clamp(c[1])<<8 | clamp(c[2])
}

// WritePCD writes the vertices of a cloud and their colors as an unstructured PCD file, in
// meters.
func WritePCD(out io.Writer, c *Cloud, pcdType PCDType) error {
	if c == nil {
		return errors.New("no cloud to write")
	}
	n := c.Len()
	hasColor := len(c.Colors) == n
	header := "VERSION .7\n"
	if hasColor {
		header += "FIELDS x y z rgb\nSIZE 4 4 4 4\nTYPE F F F I\nCOUNT 1 1 1 1\n"
	} else {
		header += "FIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\n"
	}
	header += fmt.Sprintf("WIDTH %d\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS %d\n", n, n)
	switch pcdType {
	case PCDAscii:
		header += "DATA ascii\n"
	case PCDBinary:
		header += "DATA binary\n"
	default:
		return errors.Errorf("unsupported pcd type %d", pcdType)
	}
	if _, err := io.WriteString(out, header); err != nil {
		return err
	}

	buf := make([]byte, 16)
	for i, v := range c.Vertices {
		var rgb uint32
		if hasColor {
			col := c.Colors[i]
			rgb = packColor([3]float64{col.X, col.Y, col.Z})
		}
		var err error
		switch pcdType {
		case PCDAscii:
			if hasColor {
				_, err = fmt.Fprintf(out, "%f %f %f %d\n", v.X, v.Y, v.Z, rgb)
			} else {
				_, err = fmt.Fprintf(out, "%f %f %f\n", v.X, v.Y, v.Z)
			}
		case PCDBinary:
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v.X)))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(v.Y)))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(v.Z)))
			size := 12
			if hasColor {
				binary.LittleEndian.PutUint32(buf[12:], rgb)
				size = 16
			}
			_, err = out.Write(buf[:size])
		}
		if err != nil {
			return errors.Wrap(err, "cannot write pcd data")
		}
	}
	return nil
}
