// Package testutil provides synthetic calibration documents and frame
// builders shared by tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"
)

// IdentityCalibration is a calibration whose rectification is the
// identity transform: identical intrinsics, zero distortion, identity
// rotation, pure horizontal baseline, 640x480 halves.
const IdentityCalibration = `{
	"left_camera_matrix": [[700, 0, 320], [0, 700, 240], [0, 0, 1]],
	"left_distortion_coefficients": [0, 0, 0, 0, 0],
	"right_camera_matrix": [[700, 0, 320], [0, 700, 240], [0, 0, 1]],
	"right_distortion_coefficients": [0, 0, 0, 0, 0],
	"R": [[1, 0, 0], [0, 1, 0], [0, 0, 1]],
	"T": [-40.0, 0.0, 0.0],
	"image_width": 640,
	"image_height": 480
}`

// WriteCalibration writes a calibration document into dir and returns
// its path.
func WriteCalibration(dir, doc string) (string, error) {
	path := filepath.Join(dir, "calibration.json")
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		return "", fmt.Errorf("write calibration fixture: %w", err)
	}
	return path, nil
}

// SolidCombinedFrame builds a combined side-by-side frame of the given
// half size with solid-color halves (BGR channel order). The caller
// owns the returned Mat.
func SolidCombinedFrame(halfWidth, height int, leftBGR, rightBGR [3]float64) gocv.Mat {
	left := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(leftBGR[0], leftBGR[1], leftBGR[2], 0),
		height, halfWidth, gocv.MatTypeCV8UC3)
	defer left.Close()
	right := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(rightBGR[0], rightBGR[1], rightBGR[2], 0),
		height, halfWidth, gocv.MatTypeCV8UC3)
	defer right.Close()

	combined := gocv.NewMat()
	gocv.Hconcat(left, right, &combined)
	return combined
}
