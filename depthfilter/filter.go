package depthfilter

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/settings"
	"go.viam.com/depthcam/transform"
	"go.viam.com/depthcam/utils"
)

// BodyIndexBackground marks pixels owned by no body in a bodies id map.
const BodyIndexBackground = 255

// InfraBodyValue is written in infrared pixels owned by a body.
const InfraBodyValue = 16000

// Input is the data of one tick the depth mask is computed from.
type Input struct {
	Depth []uint16
	// DepthSizedColor is an optional RGBA image with the depth dimensions.
	DepthSizedColor []byte
	Width, Height   int
	// RangeMM is the sensor range of the session.
	RangeMM dcmode.Range
}

// Result describes the mask of a tick. Remap is owned by the filter and valid until the next call.
type Result struct {
	ValidDepthValues int
	// Remap gives the vertex index of every depth pixel, -1 for masked pixels.
	Remap []int32
	// MeanBiggestZoneID is the pixel at the mean position of the biggest cluster, -1 when unknown.
	MeanBiggestZoneID int
}

// Filter owns the mask of one device. It is not safe for concurrent use.
type Filter struct {
	logger  logging.Logger
	indices *Indices
	mask    []uint8
	scratch []uint8
	zones   []int32
	queue   []int
	remap   []int32
	valid   int
	meanID  int
}

// New returns a filter without tables; they are built on the first tick.
func New(logger logging.Logger) *Filter {
	return &Filter{logger: logger, meanID: -1}
}

// Indices returns the current index tables.
func (f *Filter) Indices() *Indices {
	return f.indices
}

// Mask returns the current mask, 1 for valid pixels.
func (f *Filter) Mask() []uint8 {
	return f.mask
}

func (f *Filter) reshape(w, h int) {
	if f.indices != nil && f.indices.Width == w && f.indices.Height == h {
		return
	}
	f.indices = NewIndices(w, h)
	size := w * h
	f.mask = make([]uint8, size)
	f.scratch = make([]uint8, size)
	f.zones = make([]int32, size)
	f.remap = make([]int32, size)
}

func (f *Filter) result() Result {
	return Result{ValidDepthValues: f.valid, Remap: f.remap, MeanBiggestZoneID: f.meanID}
}

// Filter recomputes the mask from scratch. The input buffers are not modified, so calling it
// twice on the same input gives the same result.
func (f *Filter) Filter(in Input, fs settings.FiltersSettings) Result {
	if len(in.Depth) == 0 || in.Width*in.Height != len(in.Depth) {
		if len(in.Depth) != 0 {
			f.logger.Warnw("depth buffer does not match its dimensions", "size", len(in.Depth), "width", in.Width, "height", in.Height)
		}
		f.valid = 0
		f.meanID = -1
		return Result{MeanBiggestZoneID: -1}
	}
	f.reshape(in.Width, in.Height)

	color := in.DepthSizedColor
	if len(color) != 0 && len(color) != len(in.Depth)*4 {
		f.logger.Warnw("ignoring depth sized color of unexpected size", "size", len(color), "expected", len(in.Depth)*4)
		color = nil
	}

	f.baseline(in.Depth, color, in.RangeMM, fs)
	if fs.DoLocalDiffFiltering {
		f.localDiff(in.Depth, fs.MaxLocalDiff, fs.LocalDiffConnectivity)
	}
	if fs.DoMinNeighboursFiltering {
		f.minNeighbours(fs.MinNeighboursLoops, fs.NbMinNeighbours, fs.MinNeighboursConnectivity)
	}
	if fs.DoErosion {
		f.erode(fs.ErosionLoops, fs.ErosionConnectivity)
	}
	f.meanID = -1
	if fs.KeepOnlyBiggestCluster {
		f.keepOnlyBiggestCluster()
	}
	if fs.RemoveAfterClosestPoint {
		f.removeAfterClosestPoint(in.Depth, fs.MaxDistanceAfterClosestPoint)
	}
	f.updateValidDepthValues()
	return f.result()
}

func (f *Filter) baseline(depth []uint16, color []byte, rng dcmode.Range, fs settings.FiltersSettings) {
	w, h := float64(f.indices.Width), float64(f.indices.Height)
	minW, maxW := w*fs.MinWidthF, w*fs.MaxWidthF
	minH, maxH := h*fs.MinHeightF, h*fs.MaxHeightF
	diff := rng.Max - rng.Min
	minD := rng.Min + fs.MinDepthF*diff
	maxD := rng.Min + fs.MaxDepthF*diff

	filterColor := fs.FilterDepthWithColor && len(color) != 0
	targetH, targetS, targetV := colorful.Color{R: fs.FilterColor.R, G: fs.FilterColor.G, B: fs.FilterColor.B}.Hsv()
	width := f.indices.Width

	utils.ParallelForEachIndex(len(depth), func(id int) {
		d := depth[id]
		if d == dcmode.InvalidDepthValue {
			f.mask[id] = 0
			return
		}
		x, y := float64(id%width), float64(id/width)
		fd := float64(d)
		if x < minW || x > maxW || y < minH || y > maxH || fd < minD || fd > maxD {
			f.mask[id] = 0
			return
		}
		if filterColor {
			c := color[id*4 : id*4+3]
			ch, cs, cv := colorful.Color{R: float64(c[0]) / 255, G: float64(c[1]) / 255, B: float64(c[2]) / 255}.Hsv()
			if math.Abs(ch-targetH) > fs.MaxDiffColor.H ||
				math.Abs(cs-targetS) > fs.MaxDiffColor.S ||
				math.Abs(cv-targetV) > fs.MaxDiffColor.V {
				f.mask[id] = 0
				return
			}
		}
		f.mask[id] = 1
	})
}

// commit clears the mask where scratch holds drop.
func (f *Filter) commit(drop uint8) {
	for id, v := range f.scratch {
		if v == drop {
			f.mask[id] = 0
		}
	}
}

// localDiff masks pixels whose mean depth difference with their valid neighbours reaches max.
// Border and isolated pixels are masked too.
func (f *Filter) localDiff(depth []uint16, maxDiff float64, conn dcmode.Connectivity) {
	clear(f.scratch)
	offsets := f.indices.Offsets(conn)
	utils.ParallelForEachIndex(len(f.indices.NoBorders), func(i int) {
		id := f.indices.NoBorders[i]
		if f.mask[id] == 0 {
			return
		}
		current := float64(depth[id])
		meanDiff := 0.0
		count := 0
		for _, off := range offsets {
			cID := id + off
			if f.mask[cID] == 1 {
				meanDiff += math.Abs(float64(depth[cID]) - current)
				count++
			}
		}
		if count != 0 && meanDiff/float64(count) < maxDiff {
			f.scratch[id] = 1
		}
	})
	f.commit(0)
}

// minNeighbours masks pixels having less than nbMin valid neighbours, repeated loops times.
func (f *Filter) minNeighbours(loops, nbMin uint8, conn dcmode.Connectivity) {
	offsets := f.indices.Offsets(conn)
	for loop := uint8(0); loop < loops; loop++ {
		clear(f.scratch)
		utils.ParallelForEachIndex(len(f.indices.NoBorders), func(i int) {
			id := f.indices.NoBorders[i]
			if f.mask[id] == 0 {
				return
			}
			count := uint8(0)
			for _, off := range offsets {
				if f.mask[id+off] == 1 {
					count++
				}
			}
			if count < nbMin {
				f.scratch[id] = 1
			}
		})
		f.commit(1)
	}
}

// erode keeps only pixels whose neighbours are all valid, repeated loops times.
func (f *Filter) erode(loops uint8, conn dcmode.Connectivity) {
	offsets := f.indices.Offsets(conn)
	for loop := uint8(0); loop < loops; loop++ {
		clear(f.scratch)
		utils.ParallelForEachIndex(len(f.indices.NoBorders), func(i int) {
			id := f.indices.NoBorders[i]
			if f.mask[id] == 0 {
				return
			}
			for _, off := range offsets {
				if f.mask[id+off] == 0 {
					return
				}
			}
			f.scratch[id] = 1
		})
		f.commit(0)
	}
}

// keepOnlyBiggestCluster labels 8-connected components and masks all but the largest.
func (f *Filter) keepOnlyBiggestCluster() {
	clear(f.zones)
	var zone int32
	biggest, biggestSize := int32(-1), 0
	for start := range f.mask {
		if f.zones[start] != 0 || f.mask[start] == 0 {
			continue
		}
		zone++
		count := 0
		f.queue = append(f.queue[:0], start)
		f.zones[start] = zone
		for len(f.queue) > 0 {
			id := f.queue[len(f.queue)-1]
			f.queue = f.queue[:len(f.queue)-1]
			count++
			for n := NA; n <= NH; n++ {
				cID := f.indices.Neighbour(id, n)
				if cID < 0 || f.zones[cID] != 0 || f.mask[cID] == 0 {
					continue
				}
				f.zones[cID] = zone
				f.queue = append(f.queue, cID)
			}
		}
		if count > biggestSize {
			biggest, biggestSize = zone, count
		}
	}
	if biggest < 0 {
		return
	}

	var sumX, sumY, count int
	for id := range f.mask {
		if f.zones[id] != biggest {
			f.mask[id] = 0
			continue
		}
		sumX += id % f.indices.Width
		sumY += id / f.indices.Width
		count++
	}
	f.meanID = (sumY/count)*f.indices.Width + sumX/count
}

// removeAfterClosestPoint masks pixels further than maxDistance meters behind the closest one.
func (f *Filter) removeAfterClosestPoint(depth []uint16, maxDistance float64) {
	minDist := uint16(math.MaxUint16)
	for id, m := range f.mask {
		if m != 0 && depth[id] < minDist {
			minDist = depth[id]
		}
	}
	maxDist := float64(minDist) + 1000*maxDistance
	for id, m := range f.mask {
		if m != 0 && float64(depth[id]) > maxDist {
			f.mask[id] = 0
		}
	}
}

func (f *Filter) updateValidDepthValues() {
	f.valid = 0
	for id, m := range f.mask {
		if m == 0 {
			f.remap[id] = -1
			continue
		}
		f.remap[id] = int32(f.valid)
		f.valid++
	}
}

// FilterCloud masks the points on the excluded side of the filtering plane. Plane points are
// in meters, cloud points in millimeters. The remap is rebuilt.
func (f *Filter) FilterCloud(depth []uint16, cloud []transform.Point3, fs settings.FiltersSettings) Result {
	if f.indices == nil || len(depth) != len(f.mask) || len(cloud) != len(f.mask) ||
		!fs.FilterDepthWithCloud || fs.PlaneMode == settings.PlaneNone {
		return f.result()
	}
	p1, p2, p3 := fs.PlaneA.Mul(1000), fs.PlaneB.Mul(1000), fs.PlaneC.Mul(1000)
	mean := p1.Add(p2).Add(p3).Mul(1.0 / 3)
	normal := p2.Sub(p1).Cross(p3.Sub(p1)).Normalize()

	utils.ParallelForEachIndex(len(depth), func(id int) {
		if f.mask[id] == 0 || depth[id] == dcmode.InvalidDepthValue {
			return
		}
		above := normal.Dot(cloud[id].Vector().Sub(mean)) >= 0
		if (above && fs.PlaneMode == settings.PlaneBelow) || (!above && fs.PlaneMode == settings.PlaneAbove) {
			f.mask[id] = 0
		}
	})
	f.updateValidDepthValues()
	return f.result()
}
