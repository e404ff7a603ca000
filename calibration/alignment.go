package calibration

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/depthcam/utils"
)

func rotationDense(e Extrinsics) *mat.Dense {
	data := make([]float64, 9)
	for i, v := range e.Rotation {
		data[i] = float64(v)
	}
	return mat.NewDense(3, 3, data)
}

func fromDense(rot *mat.Dense, tr r3.Vector) Extrinsics {
	var e Extrinsics
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			e.Rotation[i*3+j] = float32(rot.At(i, j))
		}
	}
	e.Translation = [3]float32{float32(tr.X), float32(tr.Y), float32(tr.Z)}
	return e
}

// invert returns the inverse rigid transform: R' = R^-1, t' = -R^-1 t.
func invert(e Extrinsics) Extrinsics {
	rot := rotationDense(e)
	var inv mat.Dense
	if err := inv.Inverse(rot); err != nil {
		inv.CloneFrom(rot.T())
	}
	t := mat.NewVecDense(3, []float64{
		float64(e.Translation[0]), float64(e.Translation[1]), float64(e.Translation[2]),
	})
	var it mat.VecDense
	it.MulVec(&inv, t)
	return fromDense(&inv, r3.Vector{X: -it.AtVec(0), Y: -it.AtVec(1), Z: -it.AtVec(2)})
}

// EulerRotation returns the rotation Rz*Ry*Rx of angles given in degrees.
func EulerRotation(deg r3.Vector) *mat.Dense {
	x, y, z := utils.DegToRad(deg.X), utils.DegToRad(deg.Y), utils.DegToRad(deg.Z)
	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, math.Cos(x), -math.Sin(x),
		0, math.Sin(x), math.Cos(x),
	})
	ry := mat.NewDense(3, 3, []float64{
		math.Cos(y), 0, math.Sin(y),
		0, 1, 0,
		-math.Sin(y), 0, math.Cos(y),
	})
	rz := mat.NewDense(3, 3, []float64{
		math.Cos(z), -math.Sin(z), 0,
		math.Sin(z), math.Cos(z), 0,
		0, 0, 1,
	})
	var out mat.Dense
	out.Mul(rz, ry)
	out.Mul(&out, rx)
	return &out
}

// ApplyColorAlignment corrects the depth to color transform with a user rotation (degrees)
// and translation (millimeters). The color to depth transform is recomputed. A zero
// correction leaves the calibration untouched.
func (uc *UnifiedCalibration) ApplyColorAlignment(rotEulerDeg, trMM r3.Vector) {
	if rotEulerDeg == (r3.Vector{}) && trMM == (r3.Vector{}) {
		return
	}
	d2c := uc.DepthToColor()
	var rot mat.Dense
	rot.Mul(EulerRotation(rotEulerDeg), rotationDense(d2c))
	tr := r3.Vector{
		X: float64(d2c.Translation[0]) + trMM.X,
		Y: float64(d2c.Translation[1]) + trMM.Y,
		Z: float64(d2c.Translation[2]) + trMM.Z,
	}
	uc.setDepthToColor(fromDense(&rot, tr))
}

// Apply transforms a point with e.
func (e Extrinsics) Apply(p r3.Vector) r3.Vector {
	r := e.Rotation
	return r3.Vector{
		X: float64(r[0])*p.X + float64(r[1])*p.Y + float64(r[2])*p.Z + float64(e.Translation[0]),
		Y: float64(r[3])*p.X + float64(r[4])*p.Y + float64(r[5])*p.Z + float64(e.Translation[1]),
		Z: float64(r[6])*p.X + float64(r[7])*p.Y + float64(r[8])*p.Z + float64(e.Translation[2]),
	}
}
