// Package capture provides the stereo camera driver interface and the
// concrete drivers that read combined side-by-side frames using GoCV
// (OpenCV).
package capture

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

// Default driver settings
const (
	// DefaultReadRetries bounds how many empty reads a driver absorbs
	// before giving up on the device.
	DefaultReadRetries = 10
	// DefaultGain is the fixed sensor gain applied at connect time.
	DefaultGain = 5
)

// ErrCameraConnect is returned when the device cannot be opened or
// configured.
var ErrCameraConnect = errors.New("camera connect failed")

// ErrCameraRead is returned when the device stops producing frames
// after the bounded retry budget is exhausted.
var ErrCameraRead = errors.New("camera read failed")

// Config holds the device settings a driver applies at connect time.
// HalfSize is the size of one half of the combined frame; the device
// is configured to deliver frames of 2*HalfSize.X by HalfSize.Y.
type Config struct {
	DeviceID    int
	HalfSize    image.Point
	Gain        int
	ReadRetries int
}

// Driver is the capability set every physical camera family
// implements. All three operations are required members; a variant
// that omits one does not compile against this interface.
//
// ReadRawFrame blocks until one combined frame is available and the
// caller owns the returned Mat. Disconnect is idempotent.
type Driver interface {
	Connect(cfg Config) error
	ReadRawFrame() (gocv.Mat, error)
	Disconnect() error
}
