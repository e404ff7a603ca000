package frame

import (
	"github.com/golang/geo/r3"

	"go.viam.com/depthcam/dcmode"
	"go.viam.com/depthcam/depthfilter"
	"go.viam.com/depthcam/utils"
)

// rings list the neighbours of a pixel clockwise in image space.
var (
	ring4 = []depthfilter.Neighbour{depthfilter.NB, depthfilter.NE, depthfilter.NG, depthfilter.ND}
	ring8 = []depthfilter.Neighbour{
		depthfilter.NA, depthfilter.NB, depthfilter.NC, depthfilter.NE,
		depthfilter.NH, depthfilter.NG, depthfilter.NF, depthfilter.ND,
	}
)

func ringOf(conn dcmode.Connectivity) []depthfilter.Neighbour {
	if conn == dcmode.Connectivity8 {
		return ring8
	}
	return ring4
}

// computeNormals writes the normal of every valid pixel at its vertex index. The normal of a
// pixel is the normalized sum of the cross products of consecutive ring neighbours, taken
// relative to the pixel; a pair is skipped when one of its pixels is masked or off the grid.
// Pixels without any valid pair get the zero vector.
func computeNormals(dst, vertices []r3.Vector, ix *depthfilter.Indices, remap []int32, conn dcmode.Connectivity) {
	ring := ringOf(conn)
	utils.ParallelForEachIndex(len(remap), func(id int) {
		vid := remap[id]
		if vid < 0 {
			return
		}
		center := vertices[vid]
		var normal r3.Vector
		for i, n := range ring {
			a := neighbourVertex(ix, remap, id, n)
			b := neighbourVertex(ix, remap, id, ring[(i+1)%len(ring)])
			if a < 0 || b < 0 {
				continue
			}
			normal = normal.Add(vertices[a].Sub(center).Cross(vertices[b].Sub(center)))
		}
		dst[vid] = normal.Normalize()
	})
}

func neighbourVertex(ix *depthfilter.Indices, remap []int32, id int, n depthfilter.Neighbour) int32 {
	nid := ix.Neighbour(id, n)
	if nid < 0 {
		return -1
	}
	return remap[nid]
}
