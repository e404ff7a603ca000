package transform

import "go.viam.com/depthcam/calibration"

// brownConrady is the rational 6 radial + 2 tangential distortion model.
type brownConrady struct {
	k1, k2, k3, k4, k5, k6 float64
	p1, p2                 float64
	fx, fy, cx, cy         float64
	maxR2                  float64
}

func newBrownConrady(cc *calibration.CameraCalibration) brownConrady {
	in := cc.Intrinsics
	bc := brownConrady{
		k1: float64(in.K1), k2: float64(in.K2), k3: float64(in.K3),
		k4: float64(in.K4), k5: float64(in.K5), k6: float64(in.K6),
		p1: float64(in.P1), p2: float64(in.P2),
		fx: float64(in.Fx), fy: float64(in.Fy), cx: float64(in.Cx), cy: float64(in.Cy),
	}
	radius := float64(cc.MetricRadius)
	if radius > 0 {
		bc.maxR2 = radius * radius
	}
	return bc
}

// distort applies the forward model to undistorted normalized coordinates.
func (bc *brownConrady) distort(xu, yu float64) (float64, float64, bool) {
	r2 := xu*xu + yu*yu
	if bc.maxR2 > 0 && r2 > bc.maxR2 {
		return 0, 0, false
	}
	r4 := r2 * r2
	r6 := r4 * r2
	den := 1 + bc.k4*r2 + bc.k5*r4 + bc.k6*r6
	if den == 0 {
		return 0, 0, false
	}
	rad := (1 + bc.k1*r2 + bc.k2*r4 + bc.k3*r6) / den
	xd := xu*rad + 2*bc.p1*xu*yu + bc.p2*(r2+2*xu*xu)
	yd := yu*rad + 2*bc.p2*xu*yu + bc.p1*(r2+2*yu*yu)
	return xd, yd, true
}

// project returns the pixel of a camera space point.
func (bc *brownConrady) project(x, y, z float64) (float64, float64, bool) {
	if z <= 0 {
		return 0, 0, false
	}
	xd, yd, ok := bc.distort(x/z, y/z)
	if !ok {
		return 0, 0, false
	}
	return bc.fx*xd + bc.cx, bc.fy*yd + bc.cy, true
}

// undistort solves the forward model for the undistorted normalized coordinates of a
// distorted one with Newton-Raphson iterations.
func (bc *brownConrady) undistort(xd, yd float64) (float64, float64, bool) {
	const maxIterations = 20
	const tolerance = 1e-10

	xu, yu := xd, yd
	for i := 0; i < maxIterations; i++ {
		r2 := xu*xu + yu*yu
		r4 := r2 * r2
		r6 := r4 * r2

		a := 1 + bc.k1*r2 + bc.k2*r4 + bc.k3*r6
		b := 1 + bc.k4*r2 + bc.k5*r4 + bc.k6*r6
		if b == 0 {
			return 0, 0, false
		}
		rad := a / b

		errX := xu*rad + 2*bc.p1*xu*yu + bc.p2*(r2+2*xu*xu) - xd
		errY := yu*rad + 2*bc.p2*xu*yu + bc.p1*(r2+2*yu*yu) - yd
		if errX*errX+errY*errY < tolerance*tolerance {
			break
		}

		// d(rad)/dx = 2x*g, d(rad)/dy = 2y*g
		g := ((bc.k1+2*bc.k2*r2+3*bc.k3*r4)*b - a*(bc.k4+2*bc.k5*r2+3*bc.k6*r4)) / (b * b)

		dxdDxu := rad + 2*xu*xu*g + 2*bc.p1*yu + 6*bc.p2*xu
		dxdDyu := 2*xu*yu*g + 2*bc.p1*xu + 2*bc.p2*yu
		dydDxu := 2*xu*yu*g + 2*bc.p2*yu + 2*bc.p1*xu
		dydDyu := rad + 2*yu*yu*g + 2*bc.p2*xu + 6*bc.p1*yu

		det := dxdDxu*dydDyu - dxdDyu*dydDxu
		if det == 0 {
			return 0, 0, false
		}
		xu -= (dydDyu*errX - dxdDyu*errY) / det
		yu -= (-dydDxu*errX + dxdDxu*errY) / det
	}
	if bc.maxR2 > 0 && xu*xu+yu*yu > bc.maxR2 {
		return 0, 0, false
	}
	return xu, yu, true
}
