// Package depthfilter decides which depth pixels are valid every tick and builds the table
// compacting valid pixels into cloud vertices.
package depthfilter

import "go.viam.com/depthcam/dcmode"

// Neighbour names the pixels around I:
//
//	A B C
//	D I E
//	F G H
type Neighbour int

// Neighbour positions.
const (
	NA Neighbour = iota
	NB
	NC
	ND
	NE
	NF
	NG
	NH
)

var neighbourSteps = [8][2]int{
	NA: {-1, -1}, NB: {0, -1}, NC: {1, -1},
	ND: {-1, 0}, NE: {1, 0},
	NF: {-1, 1}, NG: {0, 1}, NH: {1, 1},
}

var connectivityNeighbours = map[dcmode.Connectivity][]Neighbour{
	dcmode.Connectivity2H: {ND, NE},
	dcmode.Connectivity2V: {NB, NG},
	dcmode.Connectivity4:  {NB, ND, NE, NG},
	dcmode.Connectivity8:  {NA, NB, NC, ND, NE, NF, NG, NH},
}

// Indices holds the per resolution index tables. It is rebuilt when the depth resolution changes.
type Indices struct {
	Width, Height int
	// NoBorders lists the pixels having all eight neighbours.
	NoBorders []int
	offsets   map[dcmode.Connectivity][]int
}

// NewIndices builds the tables of a w x h depth image.
func NewIndices(w, h int) *Indices {
	ix := &Indices{Width: w, Height: h, offsets: map[dcmode.Connectivity][]int{}}
	if w > 2 && h > 2 {
		ix.NoBorders = make([]int, 0, (w-2)*(h-2))
		for y := 1; y < h-1; y++ {
			for x := 1; x < w-1; x++ {
				ix.NoBorders = append(ix.NoBorders, y*w+x)
			}
		}
	}
	for conn, ns := range connectivityNeighbours {
		offsets := make([]int, len(ns))
		for i, n := range ns {
			offsets[i] = neighbourSteps[n][1]*w + neighbourSteps[n][0]
		}
		ix.offsets[conn] = offsets
	}
	return ix
}

// Size is the number of pixels.
func (ix *Indices) Size() int {
	return ix.Width * ix.Height
}

// Neighbour returns the index of a neighbour of id, or -1 when it is off the grid.
func (ix *Indices) Neighbour(id int, n Neighbour) int {
	x := id%ix.Width + neighbourSteps[n][0]
	y := id/ix.Width + neighbourSteps[n][1]
	if x < 0 || y < 0 || x >= ix.Width || y >= ix.Height {
		return -1
	}
	return y*ix.Width + x
}

// Offsets returns the index offsets of a connectivity, valid for pixels not on the borders.
func (ix *Indices) Offsets(conn dcmode.Connectivity) []int {
	if offsets, ok := ix.offsets[conn]; ok {
		return offsets
	}
	return ix.offsets[dcmode.Connectivity4]
}
