package rectify

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"github.com/ayusman/stereorig/internal/calib"
)

// Maps holds the dense per-pixel remap tables for both cameras.
// Building them once per connect makes per-frame undistortion a table
// lookup instead of a re-derivation.
//
// Maps owns gocv resources; call Close when done.
type Maps struct {
	LeftMap1, LeftMap2   gocv.Mat
	RightMap1, RightMap2 gocv.Mat
}

// BuildMaps precomputes the remap tables for both cameras from the
// calibration and the rectification transforms. The maps have the same
// dimensions as the calibration image size and use the fixed-point
// CV_16SC2 representation.
func BuildMaps(params *calib.Parameters, tables *Tables) (*Maps, error) {
	m := &Maps{
		LeftMap1:  gocv.NewMat(),
		LeftMap2:  gocv.NewMat(),
		RightMap1: gocv.NewMat(),
		RightMap2: gocv.NewMat(),
	}

	kl := denseToMat(params.LeftCameraMatrix)
	defer kl.Close()
	kr := denseToMat(params.RightCameraMatrix)
	defer kr.Close()
	dl := vectorToMat(params.LeftDistortion)
	defer dl.Close()
	dr := vectorToMat(params.RightDistortion)
	defer dr.Close()
	r1 := denseToMat(tables.R1)
	defer r1.Close()
	r2 := denseToMat(tables.R2)
	defer r2.Close()
	p1 := denseToMat(tables.P1)
	defer p1.Close()
	p2 := denseToMat(tables.P2)
	defer p2.Close()

	gocv.InitUndistortRectifyMap(kl, dl, r1, p1, params.ImageSize,
		int(gocv.MatTypeCV16SC2), m.LeftMap1, m.LeftMap2)
	gocv.InitUndistortRectifyMap(kr, dr, r2, p2, params.ImageSize,
		int(gocv.MatTypeCV16SC2), m.RightMap1, m.RightMap2)

	if m.LeftMap1.Empty() || m.RightMap1.Empty() {
		m.Close()
		return nil, fmt.Errorf("remap table construction produced empty maps")
	}

	return m, nil
}

// Close releases the gocv resources held by the maps.
func (m *Maps) Close() {
	m.LeftMap1.Close()
	m.LeftMap2.Close()
	m.RightMap1.Close()
	m.RightMap2.Close()
}

// Rectify remaps both raw halves through their lookup tables and crops
// each to its matched region. The returned Mats are owned by the
// caller. Pure function of its inputs; safe as long as the maps are
// not closed concurrently.
func Rectify(rawLeft, rawRight gocv.Mat, maps *Maps, region Region) (left, right gocv.Mat, err error) {
	left, err = remapCrop(rawLeft, maps.LeftMap1, maps.LeftMap2, region.Left)
	if err != nil {
		return gocv.Mat{}, gocv.Mat{}, fmt.Errorf("left: %w", err)
	}
	right, err = remapCrop(rawRight, maps.RightMap1, maps.RightMap2, region.Right)
	if err != nil {
		left.Close()
		return gocv.Mat{}, gocv.Mat{}, fmt.Errorf("right: %w", err)
	}
	return left, right, nil
}

func remapCrop(src, map1, map2 gocv.Mat, roi image.Rectangle) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.Mat{}, fmt.Errorf("empty source frame")
	}

	remapped := gocv.NewMat()
	defer remapped.Close()
	gocv.Remap(src, &remapped, map1, map2, gocv.InterpolationLinear,
		gocv.BorderConstant, color.RGBA{})

	bounds := image.Rect(0, 0, remapped.Cols(), remapped.Rows())
	if !roi.In(bounds) {
		return gocv.Mat{}, fmt.Errorf("crop %v outside frame %v", roi, bounds)
	}

	view := remapped.Region(roi)
	defer view.Close()
	return view.Clone(), nil
}

// denseToMat copies a gonum matrix into a CV_64F gocv Mat.
func denseToMat(d *mat.Dense) gocv.Mat {
	rows, cols := d.Dims()
	out := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV64F)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.SetDoubleAt(i, j, d.At(i, j))
		}
	}
	return out
}

// vectorToMat copies a distortion vector into a 1xN CV_64F gocv Mat.
func vectorToMat(v []float64) gocv.Mat {
	out := gocv.NewMatWithSize(1, len(v), gocv.MatTypeCV64F)
	for i, x := range v {
		out.SetDoubleAt(0, i, x)
	}
	return out
}
