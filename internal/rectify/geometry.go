package rectify

import (
	"image"
	"math"

	"gonum.org/v1/gonum/mat"
)

// undistortIterations is the fixed-point iteration count used when
// inverting the distortion model, matching OpenCV's default.
const undistortIterations = 5

// rodriguesToMatrix converts a rotation vector to a 3x3 rotation
// matrix using the Rodrigues formula.
func rodriguesToMatrix(r []float64) *mat.Dense {
	theta := math.Sqrt(r[0]*r[0] + r[1]*r[1] + r[2]*r[2])
	out := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	if theta < 1e-12 {
		return out
	}

	kx, ky, kz := r[0]/theta, r[1]/theta, r[2]/theta
	s, c := math.Sin(theta), math.Cos(theta)
	ic := 1 - c

	out.Set(0, 0, c+kx*kx*ic)
	out.Set(0, 1, kx*ky*ic-kz*s)
	out.Set(0, 2, kx*kz*ic+ky*s)
	out.Set(1, 0, ky*kx*ic+kz*s)
	out.Set(1, 1, c+ky*ky*ic)
	out.Set(1, 2, ky*kz*ic-kx*s)
	out.Set(2, 0, kz*kx*ic-ky*s)
	out.Set(2, 1, kz*ky*ic+kx*s)
	out.Set(2, 2, c+kz*kz*ic)
	return out
}

// rodriguesFromMatrix converts a 3x3 rotation matrix to its rotation
// vector representation.
func rodriguesFromMatrix(r *mat.Dense) []float64 {
	rx := r.At(2, 1) - r.At(1, 2)
	ry := r.At(0, 2) - r.At(2, 0)
	rz := r.At(1, 0) - r.At(0, 1)

	s := 0.5 * math.Sqrt(rx*rx+ry*ry+rz*rz)
	c := 0.5 * (r.At(0, 0) + r.At(1, 1) + r.At(2, 2) - 1)
	c = math.Max(-1, math.Min(1, c))
	theta := math.Acos(c)

	if s < 1e-5 {
		if c > 0 {
			return []float64{0, 0, 0}
		}
		// theta == pi: recover the axis from the diagonal.
		xx := math.Sqrt(math.Max(0, (r.At(0, 0)+1)/2))
		yy := math.Sqrt(math.Max(0, (r.At(1, 1)+1)/2))
		zz := math.Sqrt(math.Max(0, (r.At(2, 2)+1)/2))
		if r.At(0, 1) < 0 {
			yy = -yy
		}
		if r.At(0, 2) < 0 {
			zz = -zz
		}
		return []float64{xx * theta, yy * theta, zz * theta}
	}

	scale := theta / (2 * s)
	return []float64{rx * scale, ry * scale, rz * scale}
}

// point2 is a 2D point in either pixel or ideal (normalized)
// coordinates.
type point2 struct {
	x, y float64
}

// undistortPoint maps a distorted pixel coordinate to its undistorted
// location. The point is first normalized with the camera matrix k,
// the distortion model is inverted by fixed-point iteration, and the
// result is rotated by r (may be nil) and reprojected with p (may be
// nil, in which case ideal coordinates are returned).
//
// dist follows the OpenCV layout k1,k2,p1,p2,k3[,k4,k5,k6]; shorter
// vectors are treated as zero-padded.
func undistortPoint(pt point2, k *mat.Dense, dist []float64, r, p *mat.Dense) point2 {
	var kc [8]float64
	copy(kc[:], dist)

	fx, fy := k.At(0, 0), k.At(1, 1)
	cx, cy := k.At(0, 2), k.At(1, 2)

	x0 := (pt.x - cx) / fx
	y0 := (pt.y - cy) / fy
	x, y := x0, y0

	for i := 0; i < undistortIterations; i++ {
		r2 := x*x + y*y
		icdist := (1 + ((kc[7]*r2+kc[6])*r2+kc[5])*r2) /
			(1 + ((kc[4]*r2+kc[1])*r2+kc[0])*r2)
		deltaX := 2*kc[2]*x*y + kc[3]*(r2+2*x*x)
		deltaY := kc[2]*(r2+2*y*y) + 2*kc[3]*x*y
		x = (x0 - deltaX) * icdist
		y = (y0 - deltaY) * icdist
	}

	if r != nil {
		xx := r.At(0, 0)*x + r.At(0, 1)*y + r.At(0, 2)
		yy := r.At(1, 0)*x + r.At(1, 1)*y + r.At(1, 2)
		ww := r.At(2, 0)*x + r.At(2, 1)*y + r.At(2, 2)
		x, y = xx/ww, yy/ww
	}

	if p != nil {
		u := p.At(0, 0)*x + p.At(0, 1)*y + p.At(0, 2)
		v := p.At(1, 0)*x + p.At(1, 1)*y + p.At(1, 2)
		x, y = u, v
	}

	return point2{x, y}
}

// floatRect is an axis-aligned rectangle with float bounds.
type floatRect struct {
	x0, y0, x1, y1 float64
}

func (r floatRect) width() float64  { return r.x1 - r.x0 }
func (r floatRect) height() float64 { return r.y1 - r.y0 }

// validRectangles samples a 9x9 grid over the source image, pushes
// each sample through undistortion and rectification, and returns the
// inscribed (inner) and bounding (outer) rectangles of the result.
// The inner rectangle is the largest area guaranteed free of
// remap-border artifacts.
func validRectangles(k *mat.Dense, dist []float64, r, p *mat.Dense, size image.Point) (inner, outer floatRect) {
	const n = 9

	inner = floatRect{math.Inf(-1), math.Inf(-1), math.Inf(1), math.Inf(1)}
	outer = floatRect{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}

	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			src := point2{
				float64(x) * float64(size.X) / (n - 1),
				float64(y) * float64(size.Y) / (n - 1),
			}
			pt := undistortPoint(src, k, dist, r, p)

			outer.x0 = math.Min(outer.x0, pt.x)
			outer.x1 = math.Max(outer.x1, pt.x)
			outer.y0 = math.Min(outer.y0, pt.y)
			outer.y1 = math.Max(outer.y1, pt.y)

			if x == 0 {
				inner.x0 = math.Max(inner.x0, pt.x)
			}
			if x == n-1 {
				inner.x1 = math.Min(inner.x1, pt.x)
			}
			if y == 0 {
				inner.y0 = math.Max(inner.y0, pt.y)
			}
			if y == n-1 {
				inner.y1 = math.Min(inner.y1, pt.y)
			}
		}
	}

	return inner, outer
}

func cross(a, b []float64) []float64 {
	return []float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func norm3(v []float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}
