package capture

import (
	"fmt"
	"os/exec"
	"sync"

	"gocv.io/x/gocv"
)

// Arducam reads combined side-by-side stereo frames from an Arducam
// module exposed through GStreamer.
type Arducam struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	retries int
}

// NewArducam creates an unconnected Arducam driver.
func NewArducam() *Arducam {
	return &Arducam{}
}

// Connect opens the device and configures it for combined side-by-side
// delivery: width is twice the calibration width. The fixed sensor
// gain is applied exactly once, here.
func (a *Arducam) Connect(cfg Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.capture != nil {
		return nil
	}
	if cfg.HalfSize.X <= 0 || cfg.HalfSize.Y <= 0 {
		return fmt.Errorf("%w: invalid frame size %v", ErrCameraConnect, cfg.HalfSize)
	}

	capture, err := gocv.OpenVideoCaptureWithAPI(cfg.DeviceID, gocv.VideoCaptureGstreamer)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCameraConnect, err)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.HalfSize.X*2))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.HalfSize.Y))

	gain := cfg.Gain
	if gain <= 0 {
		gain = DefaultGain
	}
	if err := setSensorGain(gain); err != nil {
		capture.Close()
		return fmt.Errorf("%w: gain setup: %v", ErrCameraConnect, err)
	}

	a.retries = cfg.ReadRetries
	if a.retries <= 0 {
		a.retries = DefaultReadRetries
	}
	a.capture = capture
	return nil
}

// ReadRawFrame reads one combined frame. An empty read is retried up
// to the configured bound; a device that stays silent produces
// ErrCameraRead instead of an unterminated loop.
func (a *Arducam) ReadRawFrame() (gocv.Mat, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.capture == nil {
		return gocv.Mat{}, fmt.Errorf("%w: not connected", ErrCameraRead)
	}

	mat := gocv.NewMat()
	for attempt := 0; attempt <= a.retries; attempt++ {
		if a.capture.Read(&mat) && !mat.Empty() {
			return mat, nil
		}
	}

	mat.Close()
	return gocv.Mat{}, fmt.Errorf("%w: no frame after %d attempts", ErrCameraRead, a.retries+1)
}

// Disconnect releases the device. Safe to call repeatedly.
func (a *Arducam) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.capture == nil {
		return nil
	}
	err := a.capture.Close()
	a.capture = nil
	return err
}

// setSensorGain issues the external v4l2 control command the sensor
// needs before delivering usable exposure.
func setSensorGain(gain int) error {
	cmd := exec.Command("v4l2-ctl", fmt.Sprintf("--set-ctrl=gain=%d", gain))
	return cmd.Run()
}
