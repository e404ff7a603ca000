// Package transform reprojects color images into the depth camera and back-projects depth
// images into point clouds, from a unified calibration.
package transform

import (
	"context"
	"math"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/depthcam/calibration"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/utils"
)

// ErrBufferSize is logged when an input buffer does not match its declared dimensions.
var ErrBufferSize = errors.New("transform: buffer size mismatch")

// Point3 is a camera space point in millimeters.
type Point3 struct {
	X, Y, Z int16
}

// Vector converts the point to an r3 vector in millimeters.
func (p Point3) Vector() r3.Vector {
	return r3.Vector{X: float64(p.X), Y: float64(p.Y), Z: float64(p.Z)}
}

type xy struct {
	x, y  float32
	valid bool
}

// Engine performs the geometric operations of one device session. Operations are serialized
// on the engine; each device owns its own engine.
type Engine struct {
	mu     sync.Mutex
	logger logging.Logger
	cal    calibration.UnifiedCalibration

	depthW, depthH int
	colorW, colorH int
	depthModel     brownConrady
	colorModel     brownConrady
	d2c            calibration.Extrinsics
	xyTable        []xy
}

// NewEngine precomputes the depth camera unprojection table of a calibration.
func NewEngine(cal *calibration.UnifiedCalibration, logger logging.Logger) (*Engine, error) {
	if cal == nil {
		return nil, errors.New("transform: nil calibration")
	}
	e := &Engine{
		logger:     logger,
		cal:        *cal,
		depthW:     cal.Depth.Width,
		depthH:     cal.Depth.Height,
		colorW:     cal.Color.Width,
		colorH:     cal.Color.Height,
		depthModel: newBrownConrady(&cal.Depth),
		colorModel: newBrownConrady(&cal.Color),
		d2c:        cal.DepthToColor(),
	}
	if e.depthW > 0 && e.depthH > 0 {
		if e.depthModel.fx == 0 || e.depthModel.fy == 0 {
			return nil, errors.Wrap(calibration.ErrMissingIntrinsics, "transform: depth camera")
		}
		e.xyTable = make([]xy, e.depthW*e.depthH)
		utils.ParallelForEachIndex(len(e.xyTable), func(idx int) {
			u := float64(idx % e.depthW)
			v := float64(idx / e.depthW)
			xd := (u - e.depthModel.cx) / e.depthModel.fx
			yd := (v - e.depthModel.cy) / e.depthModel.fy
			x, y, ok := e.depthModel.undistort(xd, yd)
			e.xyTable[idx] = xy{x: float32(x), y: float32(y), valid: ok}
		})
	}
	return e, nil
}

// Calibration returns the calibration the engine was built from.
func (e *Engine) Calibration() *calibration.UnifiedCalibration {
	return &e.cal
}

// DepthSize returns the depth image dimensions.
func (e *Engine) DepthSize() (int, int) {
	return e.depthW, e.depthH
}

// DepthPixelToPoint back-projects one depth pixel, in millimeters.
func (e *Engine) DepthPixelToPoint(idx int, depth uint16) (r3.Vector, bool) {
	if idx < 0 || idx >= len(e.xyTable) || depth == 0 || !e.xyTable[idx].valid {
		return r3.Vector{}, false
	}
	d := float64(depth)
	t := e.xyTable[idx]
	return r3.Vector{X: float64(t.x) * d, Y: float64(t.y) * d, Z: d}, true
}

// DepthToPointCloud back-projects every depth pixel into dst, reallocated when too small. The
// result has one point per depth pixel; invalid pixels give the zero point.
func (e *Engine) DepthToPointCloud(depth []uint16, dst []Point3) []Point3 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(depth) == 0 {
		return dst[:0]
	}
	if len(depth) != len(e.xyTable) {
		e.logger.Warnw("cannot generate cloud", "error", ErrBufferSize, "depth", len(depth), "expected", len(e.xyTable))
		return dst[:0]
	}
	if cap(dst) < len(depth) {
		dst = make([]Point3, len(depth))
	}
	dst = dst[:len(depth)]
	utils.ParallelForEachIndex(len(depth), func(idx int) {
		p, ok := e.DepthPixelToPoint(idx, depth[idx])
		if !ok {
			dst[idx] = Point3{}
			return
		}
		dst[idx] = Point3{X: clampInt16(p.X), Y: clampInt16(p.Y), Z: clampInt16(p.Z)}
	})
	return dst
}

// ResizeColorToDepth reprojects a 4 bytes per pixel color image into the depth camera grid.
// The result, written into dst, has depth image dimensions; depth pixels without a color
// sample are zeroed. An empty result is returned when an input is empty or malformed.
func (e *Engine) ResizeColorToDepth(dst, color []byte, colorW, colorH int, depth []uint16) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(color) == 0 || len(depth) == 0 {
		return dst[:0]
	}
	if colorW <= 0 || colorH <= 0 || len(color) != colorW*colorH*4 {
		e.logger.Warnw("cannot resize color to depth", "error", ErrBufferSize,
			"color", len(color), "width", colorW, "height", colorH)
		return dst[:0]
	}
	if len(depth) != len(e.xyTable) {
		e.logger.Warnw("cannot resize color to depth", "error", ErrBufferSize, "depth", len(depth), "expected", len(e.xyTable))
		return dst[:0]
	}
	if e.colorModel.fx == 0 || e.colorModel.fy == 0 {
		e.logger.Warnw("cannot resize color to depth", "error", calibration.ErrMissingIntrinsics)
		return dst[:0]
	}

	// the calibration is expressed for the session color resolution, scale if another one is given
	sx, sy := 1.0, 1.0
	if e.colorW > 0 && e.colorH > 0 {
		sx = float64(colorW) / float64(e.colorW)
		sy = float64(colorH) / float64(e.colorH)
	}

	size := len(depth) * 4
	if cap(dst) < size {
		dst = make([]byte, size)
	}
	dst = dst[:size]
	//nolint:errcheck
	utils.GroupWorkParallel(context.Background(), len(depth), nil,
		func(_, _, _, _ int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			return func(_, idx int) {
				out := dst[idx*4 : idx*4+4]
				p, ok := e.DepthPixelToPoint(idx, depth[idx])
				if !ok {
					clear(out)
					return
				}
				pc := e.d2c.Apply(p)
				u, v, ok := e.colorModel.project(pc.X, pc.Y, pc.Z)
				if !ok {
					clear(out)
					return
				}
				cu := int(math.Round(u * sx))
				cv := int(math.Round(v * sy))
				if cu < 0 || cv < 0 || cu >= colorW || cv >= colorH {
					clear(out)
					return
				}
				src := (cv*colorW + cu) * 4
				copy(out, color[src:src+4])
			}, nil
		})
	return dst
}

// ProjectToColor returns the color pixel of a depth camera point in millimeters.
func (e *Engine) ProjectToColor(p r3.Vector) (float64, float64, bool) {
	pc := e.d2c.Apply(p)
	return e.colorModel.project(pc.X, pc.Y, pc.Z)
}

// ProjectToDepth returns the depth pixel of a depth camera point in millimeters.
func (e *Engine) ProjectToDepth(p r3.Vector) (float64, float64, bool) {
	return e.depthModel.project(p.X, p.Y, p.Z)
}

func clampInt16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(math.Round(v))
	}
}
