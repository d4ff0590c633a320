package rectify

import (
	"image"
	"math"
	"testing"

	"gocv.io/x/gocv"
)

func TestBuildMaps_Dimensions(t *testing.T) {
	params := idealParams()
	tables, err := Build(params)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	maps, err := BuildMaps(params, tables)
	if err != nil {
		t.Fatalf("BuildMaps() error = %v", err)
	}
	defer maps.Close()

	for name, m := range map[string]gocv.Mat{
		"LeftMap1":  maps.LeftMap1,
		"RightMap1": maps.RightMap1,
	} {
		if m.Cols() != params.ImageSize.X || m.Rows() != params.ImageSize.Y {
			t.Errorf("%s = %dx%d, want %dx%d", name,
				m.Cols(), m.Rows(), params.ImageSize.X, params.ImageSize.Y)
		}
	}
}

func TestRectify_SolidColorRoundTrip(t *testing.T) {
	params := idealParams()
	tables, err := Build(params)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	maps, err := BuildMaps(params, tables)
	if err != nil {
		t.Fatalf("BuildMaps() error = %v", err)
	}
	defer maps.Close()

	region, err := MatchedRegion(tables.ValidLeft, tables.ValidRight, params.ImageSize)
	if err != nil {
		t.Fatalf("MatchedRegion() error = %v", err)
	}

	// Solid green halves: remap plus crop must preserve the dominant
	// color, not just produce something of the right shape.
	green := gocv.NewScalar(0, 200, 0, 0)
	rawLeft := gocv.NewMatWithSizeFromScalar(green, params.ImageSize.Y, params.ImageSize.X, gocv.MatTypeCV8UC3)
	defer rawLeft.Close()
	rawRight := gocv.NewMatWithSizeFromScalar(green, params.ImageSize.Y, params.ImageSize.X, gocv.MatTypeCV8UC3)
	defer rawRight.Close()

	left, right, err := Rectify(rawLeft, rawRight, maps, region)
	if err != nil {
		t.Fatalf("Rectify() error = %v", err)
	}
	defer left.Close()
	defer right.Close()

	if left.Cols() != right.Cols() || left.Rows() != right.Rows() {
		t.Errorf("crop sizes differ: %dx%d vs %dx%d",
			left.Cols(), left.Rows(), right.Cols(), right.Rows())
	}
	if left.Cols() != region.Left.Dx() || left.Rows() != region.Left.Dy() {
		t.Errorf("left crop = %dx%d, want %dx%d",
			left.Cols(), left.Rows(), region.Left.Dx(), region.Left.Dy())
	}

	for name, m := range map[string]gocv.Mat{"left": left, "right": right} {
		mean := m.Mean()
		if math.Abs(mean.Val1) > 1 || math.Abs(mean.Val2-200) > 1 || math.Abs(mean.Val3) > 1 {
			t.Errorf("%s mean = (%v,%v,%v), want (0,200,0)", name, mean.Val1, mean.Val2, mean.Val3)
		}
	}
}

func TestRectify_FullFrameRegion(t *testing.T) {
	// Identity calibration with image_width=640: two 640x480 halves
	// and a full-frame matched region come back as two 640x480 crops.
	params := idealParams()
	tables, err := Build(params)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	maps, err := BuildMaps(params, tables)
	if err != nil {
		t.Fatalf("BuildMaps() error = %v", err)
	}
	defer maps.Close()

	full := image.Rect(0, 0, 640, 480)
	region, err := MatchedRegion(full, full, params.ImageSize)
	if err != nil {
		t.Fatalf("MatchedRegion() error = %v", err)
	}
	if region.Left != full || region.Right != full {
		t.Fatalf("matched region = %v/%v, want full frame", region.Left, region.Right)
	}

	rawLeft := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer rawLeft.Close()
	rawRight := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer rawRight.Close()

	left, right, err := Rectify(rawLeft, rawRight, maps, region)
	if err != nil {
		t.Fatalf("Rectify() error = %v", err)
	}
	defer left.Close()
	defer right.Close()

	if left.Cols() != 640 || left.Rows() != 480 {
		t.Errorf("left = %dx%d, want 640x480", left.Cols(), left.Rows())
	}
	if right.Cols() != 640 || right.Rows() != 480 {
		t.Errorf("right = %dx%d, want 640x480", right.Cols(), right.Rows())
	}
}

func TestRectify_EmptySource(t *testing.T) {
	params := idealParams()
	tables, err := Build(params)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	maps, err := BuildMaps(params, tables)
	if err != nil {
		t.Fatalf("BuildMaps() error = %v", err)
	}
	defer maps.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	region := Region{
		Left:  image.Rect(0, 0, 640, 480),
		Right: image.Rect(0, 0, 640, 480),
	}
	if _, _, err := Rectify(empty, empty, maps, region); err == nil {
		t.Error("Rectify() with empty source should fail")
	}
}
