// Package rectify derives stereo rectification transforms from a
// calibration and applies them to raw frame halves, producing
// row-aligned image pairs cropped to a shared valid region.
package rectify

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ayusman/stereorig/internal/calib"
)

// ErrDegenerateRegion is returned when the per-camera valid regions do
// not overlap enough to produce a positive-size matched crop. No valid
// frame could ever be produced from such a calibration.
var ErrDegenerateRegion = errors.New("degenerate matched region")

// Tables holds the rectification transforms derived from a
// calibration. All fields are immutable after Build returns and may be
// shared read-only across goroutines.
type Tables struct {
	R1, R2 *mat.Dense // 3x3 rectifying rotations
	P1, P2 *mat.Dense // 3x4 projection matrices in the rectified frames
	Q      *mat.Dense // 4x4 disparity-to-depth mapping

	// ValidLeft and ValidRight are the per-camera regions of the
	// rectified images free of undistortion border artifacts.
	ValidLeft  image.Rectangle
	ValidRight image.Rectangle
}

// Region is a matched pair of crop rectangles, one per camera, with
// identical width and height.
type Region struct {
	Left  image.Rectangle
	Right image.Rectangle
}

// Build computes stereo rectification transforms from the calibration
// such that corresponding scanlines of the two remapped images are
// epipolar-aligned. Deterministic given identical input; called once
// per connect cycle.
//
// This is Bouguet's algorithm with zero-disparity principal point
// alignment: the inter-camera rotation is split evenly between the two
// views, then both are rotated so the baseline lies along an image
// axis.
func Build(params *calib.Parameters) (*Tables, error) {
	size := params.ImageSize
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("invalid image size %v", size)
	}

	// Split the rotation between the two cameras.
	om := rodriguesFromMatrix(params.R)
	rr := rodriguesToMatrix([]float64{-om[0] / 2, -om[1] / 2, -om[2] / 2})

	var tHalf mat.Dense
	tHalf.Mul(rr, params.T)
	t := []float64{tHalf.At(0, 0), tHalf.At(1, 0), tHalf.At(2, 0)}

	// idx selects the baseline axis: 0 for horizontal stereo, 1 for
	// vertical.
	idx := 0
	if math.Abs(t[0]) <= math.Abs(t[1]) {
		idx = 1
	}
	if t[idx] == 0 {
		return nil, errors.New("zero baseline between cameras")
	}

	// Rotate the baseline onto the chosen axis.
	uu := []float64{0, 0, 0}
	if t[idx] > 0 {
		uu[idx] = 1
	} else {
		uu[idx] = -1
	}
	ww := cross(t, uu)
	if nw := norm3(ww); nw > 0 {
		scale := math.Acos(math.Abs(t[idx])/norm3(t)) / nw
		ww[0] *= scale
		ww[1] *= scale
		ww[2] *= scale
	}
	wr := rodriguesToMatrix(ww)

	r1 := &mat.Dense{}
	r1.Mul(wr, rr.T())
	r2 := &mat.Dense{}
	r2.Mul(wr, rr)

	var tRect mat.Dense
	tRect.Mul(r2, params.T)
	t = []float64{tRect.At(0, 0), tRect.At(1, 0), tRect.At(2, 0)}

	// Shared focal length for both rectified views, taken from the
	// axis orthogonal to the baseline.
	fc := (params.LeftCameraMatrix.At(1-idx, 1-idx) + params.RightCameraMatrix.At(1-idx, 1-idx)) / 2

	// New principal points: project the undistorted image corners with
	// a zero-center camera and recenter their average.
	cams := []struct {
		k    *mat.Dense
		dist []float64
		r    *mat.Dense
	}{
		{params.LeftCameraMatrix, params.LeftDistortion, r1},
		{params.RightCameraMatrix, params.RightDistortion, r2},
	}

	var cc [2]point2
	for i, cam := range cams {
		corners := []point2{
			{0, 0},
			{float64(size.X - 1), 0},
			{0, float64(size.Y - 1)},
			{float64(size.X - 1), float64(size.Y - 1)},
		}
		var sumX, sumY float64
		for _, c := range corners {
			ideal := undistortPoint(c, cam.k, cam.dist, nil, nil)
			x := cam.r.At(0, 0)*ideal.x + cam.r.At(0, 1)*ideal.y + cam.r.At(0, 2)
			y := cam.r.At(1, 0)*ideal.x + cam.r.At(1, 1)*ideal.y + cam.r.At(1, 2)
			z := cam.r.At(2, 0)*ideal.x + cam.r.At(2, 1)*ideal.y + cam.r.At(2, 2)
			sumX += fc * x / z
			sumY += fc * y / z
		}
		cc[i] = point2{
			float64(size.X-1)/2 - sumX/4,
			float64(size.Y-1)/2 - sumY/4,
		}
	}

	// Zero disparity: identical principal points in both views so a
	// point at infinity maps to the same pixel in both images.
	avg := point2{(cc[0].x + cc[1].x) / 2, (cc[0].y + cc[1].y) / 2}
	cc[0], cc[1] = avg, avg

	p1 := mat.NewDense(3, 4, []float64{
		fc, 0, cc[0].x, 0,
		0, fc, cc[0].y, 0,
		0, 0, 1, 0,
	})
	p2 := mat.NewDense(3, 4, []float64{
		fc, 0, cc[1].x, 0,
		0, fc, cc[1].y, 0,
		0, 0, 1, 0,
	})
	p2.Set(idx, 3, t[idx]*fc) // baseline * focal length

	q := mat.NewDense(4, 4, []float64{
		1, 0, 0, -cc[0].x,
		0, 1, 0, -cc[0].y,
		0, 0, 0, fc,
		0, 0, -1 / t[idx], 0,
	})
	if idx == 0 {
		q.Set(3, 3, (cc[0].x-cc[1].x)/t[idx])
	} else {
		q.Set(3, 3, (cc[0].y-cc[1].y)/t[idx])
	}

	tables := &Tables{R1: r1, R2: r2, P1: p1, P2: p2, Q: q}

	bounds := image.Rect(0, 0, size.X, size.Y)
	innerL, _ := validRectangles(params.LeftCameraMatrix, params.LeftDistortion, r1, p1, size)
	innerR, _ := validRectangles(params.RightCameraMatrix, params.RightDistortion, r2, p2, size)
	tables.ValidLeft = clipRect(innerL, bounds)
	tables.ValidRight = clipRect(innerR, bounds)

	return tables, nil
}

// clipRect converts an inscribed float rectangle to integer pixel
// coordinates, clipped to the image bounds.
func clipRect(r floatRect, bounds image.Rectangle) image.Rectangle {
	x := int(math.Ceil(r.x0))
	y := int(math.Ceil(r.y0))
	w := int(math.Floor(r.width()))
	h := int(math.Floor(r.height()))
	return image.Rect(x, y, x+w, y+h).Intersect(bounds)
}

// MatchedRegion reduces two per-camera valid regions to a single
// size-consistent pair of crops. Both output rectangles have identical
// width and height while staying inside each camera's individually
// valid area, so corresponding rows and columns of the two crops refer
// to overlapping scene geometry.
func MatchedRegion(roiLeft, roiRight image.Rectangle, size image.Point) (Region, error) {
	y := roiLeft.Min.Y
	if roiRight.Min.Y > y {
		y = roiRight.Min.Y
	}

	// Right-side crop origin respecting both the right ROI and the
	// mirror-image constraint of the left ROI.
	xRight := roiRight.Min.X
	if mirror := size.X - roiLeft.Max.X; mirror > xRight {
		xRight = mirror
	}

	height := roiLeft.Max.Y - y
	if h := roiRight.Max.Y - y; h < height {
		height = h
	}

	width := roiLeft.Max.X - xRight
	if w := roiRight.Dx(); w < width {
		width = w
	}
	if w := size.X - roiRight.Min.X - xRight; w < width {
		width = w
	}

	if width <= 0 || height <= 0 {
		return Region{}, fmt.Errorf("%w: %dx%d from left %v right %v",
			ErrDegenerateRegion, width, height, roiLeft, roiRight)
	}

	left := image.Rect(size.X-xRight-width, y, size.X-xRight, y+height)
	right := image.Rect(xRight, y, xRight+width, y+height)
	return Region{Left: left, Right: right}, nil
}
