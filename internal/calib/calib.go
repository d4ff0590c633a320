// Package calib loads stereo camera calibration parameters from a JSON
// document produced by an offline calibration run.
package calib

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"

	"gonum.org/v1/gonum/mat"
)

// ErrCalibrationLoad is returned when the calibration source cannot be
// opened or a required field is missing or malformed.
var ErrCalibrationLoad = errors.New("calibration load failed")

// Parameters holds the intrinsic and extrinsic calibration of a stereo
// rig. All fields are immutable after Load returns.
type Parameters struct {
	LeftCameraMatrix  *mat.Dense // 3x3
	LeftDistortion    []float64
	RightCameraMatrix *mat.Dense // 3x3
	RightDistortion   []float64
	R                 *mat.Dense // 3x3 rotation between sensors
	T                 *mat.Dense // 3x1 translation between sensors
	E                 *mat.Dense // essential matrix, informational
	F                 *mat.Dense // fundamental matrix, informational

	// ImageSize is the size of one half of the combined frame. The raw
	// frame delivered by the camera is 2*ImageSize.X wide.
	ImageSize image.Point
}

// document mirrors the on-disk JSON layout. Matrices are row-major
// nested arrays, vectors are flat arrays.
type document struct {
	LeftCameraMatrix  [][]float64 `json:"left_camera_matrix"`
	LeftDistortion    []float64   `json:"left_distortion_coefficients"`
	RightCameraMatrix [][]float64 `json:"right_camera_matrix"`
	RightDistortion   []float64   `json:"right_distortion_coefficients"`
	R                 [][]float64 `json:"R"`
	T                 []float64   `json:"T"`
	E                 [][]float64 `json:"E"`
	F                 [][]float64 `json:"F"`
	ImageWidth        int         `json:"image_width"`
	ImageHeight       int         `json:"image_height"`
}

// Load reads calibration parameters from the JSON document at path.
// Geometry-critical fields (camera matrices, distortion, R, T, image
// size) are required; E and F are optional.
func Load(path string) (*Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalibrationLoad, err)
	}
	return Parse(data)
}

// Parse decodes calibration parameters from raw JSON.
func Parse(data []byte) (*Parameters, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalibrationLoad, err)
	}

	p := &Parameters{}

	var err error
	if p.LeftCameraMatrix, err = squareMatrix("left_camera_matrix", doc.LeftCameraMatrix); err != nil {
		return nil, err
	}
	if p.RightCameraMatrix, err = squareMatrix("right_camera_matrix", doc.RightCameraMatrix); err != nil {
		return nil, err
	}
	if p.R, err = squareMatrix("R", doc.R); err != nil {
		return nil, err
	}

	if len(doc.LeftDistortion) == 0 {
		return nil, fmt.Errorf("%w: missing left_distortion_coefficients", ErrCalibrationLoad)
	}
	if len(doc.RightDistortion) == 0 {
		return nil, fmt.Errorf("%w: missing right_distortion_coefficients", ErrCalibrationLoad)
	}
	p.LeftDistortion = append([]float64(nil), doc.LeftDistortion...)
	p.RightDistortion = append([]float64(nil), doc.RightDistortion...)

	if len(doc.T) != 3 {
		return nil, fmt.Errorf("%w: T must have 3 elements, got %d", ErrCalibrationLoad, len(doc.T))
	}
	p.T = mat.NewDense(3, 1, append([]float64(nil), doc.T...))

	if doc.ImageWidth <= 0 || doc.ImageHeight <= 0 {
		return nil, fmt.Errorf("%w: missing or invalid image_width/image_height", ErrCalibrationLoad)
	}
	p.ImageSize = image.Pt(doc.ImageWidth, doc.ImageHeight)

	// E and F are informational; absence is fine, malformed is not.
	if doc.E != nil {
		if p.E, err = squareMatrix("E", doc.E); err != nil {
			return nil, err
		}
	}
	if doc.F != nil {
		if p.F, err = squareMatrix("F", doc.F); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// squareMatrix converts a 3x3 nested array into a dense matrix.
func squareMatrix(field string, rows [][]float64) (*mat.Dense, error) {
	if len(rows) != 3 {
		return nil, fmt.Errorf("%w: %s must be 3x3, got %d rows", ErrCalibrationLoad, field, len(rows))
	}
	flat := make([]float64, 0, 9)
	for _, row := range rows {
		if len(row) != 3 {
			return nil, fmt.Errorf("%w: %s must be 3x3, got a row of %d", ErrCalibrationLoad, field, len(row))
		}
		flat = append(flat, row...)
	}
	return mat.NewDense(3, 3, flat), nil
}
