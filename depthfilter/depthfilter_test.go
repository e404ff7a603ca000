package depthfilter

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/settings"
	"go.viam.com/depthcam/transform"
)

const (
	testW = 10
	testH = 8
)

var testRange = dcmode.Range{Min: 500, Max: 5500}

func plainSettings() settings.FiltersSettings {
	fs := settings.DefaultFiltersSettings()
	fs.DoLocalDiffFiltering = false
	return fs
}

func flatDepth(v uint16) []uint16 {
	depth := make([]uint16, testW*testH)
	for i := range depth {
		depth[i] = v
	}
	return depth
}

// blockDepth has a 3x3 block centered on (6,4) and an isolated pixel at (2,2).
func blockDepth() []uint16 {
	depth := make([]uint16, testW*testH)
	for y := 3; y <= 5; y++ {
		for x := 5; x <= 7; x++ {
			depth[y*testW+x] = 1000
		}
	}
	depth[2*testW+2] = 1000
	return depth
}

func input(depth []uint16) Input {
	return Input{Depth: depth, Width: testW, Height: testH, RangeMM: testRange}
}

func TestIndices(t *testing.T) {
	ix := NewIndices(4, 3)
	test.That(t, ix.Size(), test.ShouldEqual, 12)
	test.That(t, ix.NoBorders, test.ShouldResemble, []int{5, 6})
	test.That(t, ix.Neighbour(0, NA), test.ShouldEqual, -1)
	test.That(t, ix.Neighbour(0, NH), test.ShouldEqual, 5)
	test.That(t, ix.Neighbour(3, NE), test.ShouldEqual, -1)
	test.That(t, ix.Offsets(dcmode.Connectivity2H), test.ShouldResemble, []int{-1, 1})
	test.That(t, ix.Offsets(dcmode.Connectivity2V), test.ShouldResemble, []int{-4, 4})
	test.That(t, len(ix.Offsets(dcmode.Connectivity8)), test.ShouldEqual, 8)
}

func TestFilterInvalidDepth(t *testing.T) {
	f := New(logging.NewTestLogger(t))
	res := f.Filter(input(flatDepth(dcmode.InvalidDepthValue)), settings.DefaultFiltersSettings())
	test.That(t, res.ValidDepthValues, test.ShouldEqual, 0)
	test.That(t, len(res.Remap), test.ShouldEqual, testW*testH)
	for _, r := range res.Remap {
		test.That(t, r, test.ShouldEqual, -1)
	}

	res = f.Filter(Input{}, settings.DefaultFiltersSettings())
	test.That(t, res.ValidDepthValues, test.ShouldEqual, 0)
	test.That(t, res.MeanBiggestZoneID, test.ShouldEqual, -1)
}

func TestFilterMismatchedSize(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	f := New(logger)
	res := f.Filter(Input{Depth: make([]uint16, 10), Width: 4, Height: 4}, plainSettings())
	test.That(t, res.ValidDepthValues, test.ShouldEqual, 0)
	test.That(t, logs.FilterMessage("depth buffer does not match its dimensions").Len(), test.ShouldEqual, 1)
}

func TestFilterIdempotent(t *testing.T) {
	depth := make([]uint16, testW*testH)
	for i := range depth {
		depth[i] = uint16(800 + (i%testW)*3 + (i/testW)*40)
	}
	depth[33] = 0
	original := append([]uint16(nil), depth...)

	f := New(logging.NewTestLogger(t))
	fs := settings.DefaultFiltersSettings()
	fs.DoMinNeighboursFiltering = true
	first := f.Filter(input(depth), fs)
	firstRemap := append([]int32(nil), first.Remap...)
	second := f.Filter(input(depth), fs)

	test.That(t, second.ValidDepthValues, test.ShouldEqual, first.ValidDepthValues)
	test.That(t, second.Remap, test.ShouldResemble, firstRemap)
	test.That(t, depth, test.ShouldResemble, original)
}

func TestFilterRemapIsCompact(t *testing.T) {
	f := New(logging.NewTestLogger(t))
	res := f.Filter(input(blockDepth()), plainSettings())
	test.That(t, res.ValidDepthValues, test.ShouldEqual, 10)
	next := int32(0)
	for _, r := range res.Remap {
		if r >= 0 {
			test.That(t, r, test.ShouldEqual, next)
			next++
		}
	}
	test.That(t, next, test.ShouldEqual, 10)
}

func TestFilterBounds(t *testing.T) {
	f := New(logging.NewTestLogger(t))

	fs := plainSettings()
	fs.MinWidthF = 0.5
	res := f.Filter(input(flatDepth(1000)), fs)
	test.That(t, res.ValidDepthValues, test.ShouldEqual, 5*testH)
	test.That(t, res.Remap[testW-1], test.ShouldBeGreaterThanOrEqualTo, 0)
	test.That(t, res.Remap[0], test.ShouldEqual, -1)

	fs = plainSettings()
	fs.MaxHeightF = 0.5
	res = f.Filter(input(flatDepth(1000)), fs)
	test.That(t, res.ValidDepthValues, test.ShouldEqual, 5*testW)

	fs = plainSettings()
	fs.MaxDepthF = 0.1
	res = f.Filter(input(flatDepth(1000)), fs)
	test.That(t, res.ValidDepthValues, test.ShouldEqual, testW*testH)
	res = f.Filter(input(flatDepth(1001)), fs)
	test.That(t, res.ValidDepthValues, test.ShouldEqual, 0)
}

func TestFilterColor(t *testing.T) {
	depth := flatDepth(1000)
	color := make([]byte, len(depth)*4)
	for id := range depth {
		if id%testW < testW/2 {
			copy(color[id*4:], []byte{0, 255, 0, 255})
		} else {
			copy(color[id*4:], []byte{255, 0, 0, 255})
		}
	}
	fs := plainSettings()
	fs.FilterDepthWithColor = true
	fs.FilterColor = settings.RGB{G: 1}

	f := New(logging.NewTestLogger(t))
	in := input(depth)
	in.DepthSizedColor = color
	res := f.Filter(in, fs)
	test.That(t, res.ValidDepthValues, test.ShouldEqual, testW*testH/2)
	test.That(t, res.Remap[0], test.ShouldEqual, 0)
	test.That(t, res.Remap[testW-1], test.ShouldEqual, -1)
}

func TestFilterLocalDiff(t *testing.T) {
	f := New(logging.NewTestLogger(t))
	fs := plainSettings()
	fs.DoLocalDiffFiltering = true

	res := f.Filter(input(flatDepth(1000)), fs)
	test.That(t, res.ValidDepthValues, test.ShouldEqual, (testW-2)*(testH-2))

	depth := flatDepth(1000)
	depth[3*testW+4] = 1500
	res = f.Filter(input(depth), fs)
	test.That(t, res.Remap[3*testW+4], test.ShouldEqual, -1)
	// the neighbours on the row see a mean difference of 250
	test.That(t, res.Remap[3*testW+3], test.ShouldEqual, -1)
	test.That(t, res.Remap[3*testW+5], test.ShouldEqual, -1)
	test.That(t, res.Remap[4*testW+4], test.ShouldBeGreaterThanOrEqualTo, 0)
	test.That(t, res.ValidDepthValues, test.ShouldEqual, (testW-2)*(testH-2)-3)
}

func TestFilterMinNeighbours(t *testing.T) {
	f := New(logging.NewTestLogger(t))
	fs := plainSettings()
	fs.DoMinNeighboursFiltering = true
	res := f.Filter(input(blockDepth()), fs)
	test.That(t, res.ValidDepthValues, test.ShouldEqual, 9)
	test.That(t, res.Remap[2*testW+2], test.ShouldEqual, -1)

	fs.NbMinNeighbours = 4
	res = f.Filter(input(blockDepth()), fs)
	test.That(t, res.ValidDepthValues, test.ShouldEqual, 1)
	test.That(t, res.Remap[4*testW+6], test.ShouldEqual, 0)
}

func TestFilterErosion(t *testing.T) {
	f := New(logging.NewTestLogger(t))
	fs := plainSettings()
	fs.DoErosion = true
	res := f.Filter(input(blockDepth()), fs)
	test.That(t, res.ValidDepthValues, test.ShouldEqual, 1)
	test.That(t, res.Remap[4*testW+6], test.ShouldEqual, 0)

	fs.ErosionLoops = 2
	res = f.Filter(input(blockDepth()), fs)
	test.That(t, res.ValidDepthValues, test.ShouldEqual, 0)
}

func TestFilterBiggestCluster(t *testing.T) {
	f := New(logging.NewTestLogger(t))
	fs := plainSettings()
	res := f.Filter(input(blockDepth()), fs)
	test.That(t, res.MeanBiggestZoneID, test.ShouldEqual, -1)

	fs.KeepOnlyBiggestCluster = true
	res = f.Filter(input(blockDepth()), fs)
	test.That(t, res.ValidDepthValues, test.ShouldEqual, 9)
	test.That(t, res.Remap[2*testW+2], test.ShouldEqual, -1)
	test.That(t, res.MeanBiggestZoneID, test.ShouldEqual, 4*testW+6)

	// diagonal pixels belong to the same cluster
	depth := make([]uint16, testW*testH)
	depth[0], depth[testW+1], depth[2*testW+2] = 1000, 1000, 1000
	depth[7*testW+9], depth[7*testW+8] = 1000, 1000
	res = f.Filter(input(depth), fs)
	test.That(t, res.ValidDepthValues, test.ShouldEqual, 3)
	test.That(t, res.MeanBiggestZoneID, test.ShouldEqual, testW+1)
}

func TestFilterClosestPoint(t *testing.T) {
	depth := flatDepth(1500)
	depth[10] = 1000
	depth[11] = 1150
	depth[12] = 1200
	f := New(logging.NewTestLogger(t))
	fs := plainSettings()
	fs.RemoveAfterClosestPoint = true
	res := f.Filter(input(depth), fs)
	test.That(t, res.ValidDepthValues, test.ShouldEqual, 3)
	test.That(t, res.Remap[10], test.ShouldEqual, 0)
	test.That(t, res.Remap[12], test.ShouldEqual, 2)
}

func TestFilterCloud(t *testing.T) {
	depth := flatDepth(1000)
	cloud := make([]transform.Point3, len(depth))
	for id := range cloud {
		z := int16(1500)
		if id < testW*testH/2 {
			z = 500
		}
		cloud[id] = transform.Point3{X: int16(id % testW), Y: int16(id / testW), Z: z}
	}
	fs := plainSettings()
	fs.FilterDepthWithCloud = true
	fs.PlaneA = r3.Vector{Z: 1}
	fs.PlaneB = r3.Vector{X: 1, Z: 1}
	fs.PlaneC = r3.Vector{Y: 1, Z: 1}

	f := New(logging.NewTestLogger(t))
	f.Filter(input(depth), fs)
	res := f.FilterCloud(depth, cloud, fs)
	test.That(t, res.ValidDepthValues, test.ShouldEqual, testW*testH)

	fs.PlaneMode = settings.PlaneAbove
	f.Filter(input(depth), fs)
	res = f.FilterCloud(depth, cloud, fs)
	test.That(t, res.ValidDepthValues, test.ShouldEqual, testW*testH/2)
	test.That(t, res.Remap[0], test.ShouldEqual, -1)
	test.That(t, res.Remap[testW*testH/2], test.ShouldEqual, 0)

	fs.PlaneMode = settings.PlaneBelow
	f.Filter(input(depth), fs)
	res = f.FilterCloud(depth, cloud, fs)
	test.That(t, res.ValidDepthValues, test.ShouldEqual, testW*testH/2)
	test.That(t, res.Remap[0], test.ShouldEqual, 0)
}

func TestApplyToDepth(t *testing.T) {
	depth := blockDepth()
	f := New(logging.NewTestLogger(t))
	fs := plainSettings()
	fs.DoErosion = true
	f.Filter(input(depth), fs)
	test.That(t, depth[2*testW+2], test.ShouldEqual, 1000)
	f.ApplyToDepth(depth)
	for id, d := range depth {
		if id == 4*testW+6 {
			test.That(t, d, test.ShouldEqual, 1000)
		} else {
			test.That(t, d, test.ShouldEqual, dcmode.InvalidDepthValue)
		}
	}
}

func TestInvalidateColorAndInfra(t *testing.T) {
	depth := []uint16{0, 1000, 1000}
	bodies := []uint8{BodyIndexBackground, 0, BodyIndexBackground}
	color := []byte{
		1, 2, 3, 255,
		4, 5, 6, 255,
		7, 8, 9, 255,
	}
	fs := settings.DefaultFiltersSettings()
	InvalidateColor(color, depth, bodies, fs)
	test.That(t, color[:4], test.ShouldResemble, []byte{1, 2, 3, 255})

	fs.InvalidateColorFromDepth = true
	fs.InvalidateInfraFromDepth = true
	InvalidateColor(color, depth, bodies, fs)
	test.That(t, color, test.ShouldResemble, []byte{
		0, 0, 0, 0,
		255, 0, 0, 255,
		7, 8, 9, 255,
	})

	infra := []uint16{100, 200, 300}
	InvalidateInfra(infra, depth, bodies, fs)
	test.That(t, infra, test.ShouldResemble, []uint16{0, InfraBodyValue, 300})

	infra = []uint16{100, 200, 300}
	InvalidateInfra(infra, depth, nil, fs)
	test.That(t, infra, test.ShouldResemble, []uint16{0, 200, 300})
}
