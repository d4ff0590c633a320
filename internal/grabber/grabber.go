// Package grabber runs the stereo frame acquisition loop: it reads
// combined frames from a camera driver, splits and rectifies the two
// halves, and delivers matched pairs to a bounded queue at a target
// cadence.
package grabber

import (
	"fmt"
	"image"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/stereorig/internal/calib"
	"github.com/ayusman/stereorig/internal/capture"
	"github.com/ayusman/stereorig/internal/rectify"
)

// State is the grabber lifecycle position. Transitions only move
// forward; Disconnected is terminal and the grabber must be recreated
// to acquire again.
type State int32

const (
	StateCreated State = iota
	StateConnected
	StateRunning
	StateStopping
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnected:
		return "connected"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// DefaultFramerate is the target cadence when the config leaves it
// unset.
const DefaultFramerate = 30

// Config holds the per-run acquisition settings.
type Config struct {
	CalibrationPath string
	DeviceID        int
	Gain            int
	Framerate       int
	ReadRetries     int
}

// Stats is a point-in-time snapshot of the acquisition run.
type Stats struct {
	State           string        `json:"state"`
	FramesDelivered uint64        `json:"frames_delivered"`
	QueueDepth      int           `json:"queue_depth"`
	LastCycle       time.Duration `json:"last_cycle_ns"`
}

// Grabber owns one camera driver and one rectification setup and runs
// a single acquisition worker goroutine between Start and Stop.
type Grabber struct {
	driver capture.Driver
	queue  *Queue
	config Config

	params *calib.Parameters
	tables *rectify.Tables
	maps   *rectify.Maps
	region rectify.Region

	mu     sync.Mutex
	state  State
	runErr error
	stopCh chan struct{}
	doneCh chan struct{}

	frames    atomic.Uint64
	lastCycle atomic.Int64
}

// New creates a grabber in the Created state. The queue is where
// rectified pairs are delivered; the driver is owned exclusively by
// the grabber from Connect on.
func New(driver capture.Driver, queue *Queue, config Config) *Grabber {
	if config.Framerate <= 0 {
		config.Framerate = DefaultFramerate
	}
	return &Grabber{
		driver: driver,
		queue:  queue,
		config: config,
		state:  StateCreated,
		doneCh: make(chan struct{}),
	}
}

// Connect loads the calibration, performs the one-time rectification
// setup (transforms, remap tables, matched region), and opens the
// device. A calibration whose valid regions cannot produce a positive
// matched crop fails here, before any frame is read.
func (g *Grabber) Connect() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateCreated {
		return fmt.Errorf("connect in state %s", g.state)
	}

	params, err := calib.Load(g.config.CalibrationPath)
	if err != nil {
		return err
	}

	tables, err := rectify.Build(params)
	if err != nil {
		return err
	}

	region, err := rectify.MatchedRegion(tables.ValidLeft, tables.ValidRight, params.ImageSize)
	if err != nil {
		return err
	}

	maps, err := rectify.BuildMaps(params, tables)
	if err != nil {
		return err
	}

	if err := g.driver.Connect(capture.Config{
		DeviceID:    g.config.DeviceID,
		HalfSize:    params.ImageSize,
		Gain:        g.config.Gain,
		ReadRetries: g.config.ReadRetries,
	}); err != nil {
		maps.Close()
		return err
	}

	g.params = params
	g.tables = tables
	g.maps = maps
	g.region = region
	g.state = StateConnected

	log.Printf("grabber connected: image %dx%d, matched region %dx%d",
		params.ImageSize.X, params.ImageSize.Y, region.Left.Dx(), region.Left.Dy())
	return nil
}

// Start launches the acquisition worker.
func (g *Grabber) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateConnected {
		return fmt.Errorf("start in state %s", g.state)
	}

	g.stopCh = make(chan struct{})
	g.state = StateRunning
	go g.run()
	return nil
}

// Stop requests a cooperative shutdown. The worker observes the signal
// at the next cycle boundary, finishes the in-flight frame, and
// disconnects; Done unblocks when that has happened. Stop on a grabber
// that was connected but never started disconnects immediately.
func (g *Grabber) Stop() {
	g.mu.Lock()
	switch g.state {
	case StateRunning:
		g.state = StateStopping
		close(g.stopCh)
		g.mu.Unlock()
	case StateConnected:
		g.state = StateStopping
		g.mu.Unlock()
		g.shutdown()
	default:
		g.mu.Unlock()
	}
}

// Done is closed once the grabber reaches Disconnected.
func (g *Grabber) Done() <-chan struct{} {
	return g.doneCh
}

// State returns the current lifecycle state.
func (g *Grabber) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Err returns the error that terminated the run, if any.
func (g *Grabber) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.runErr
}

// Region returns the matched crop regions derived at connect time.
func (g *Grabber) Region() rectify.Region {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.region
}

// Stats returns a snapshot of the acquisition counters.
func (g *Grabber) Stats() Stats {
	g.mu.Lock()
	state := g.state
	g.mu.Unlock()

	var depth int
	if g.queue != nil {
		depth = g.queue.Len()
	}
	return Stats{
		State:           state.String(),
		FramesDelivered: g.frames.Load(),
		QueueDepth:      depth,
		LastCycle:       time.Duration(g.lastCycle.Load()),
	}
}

// run is the acquisition loop. One combined frame per cycle: read,
// split, rectify, deliver, then sleep whatever remains of the target
// period. The stop signal is only observed here, between cycles, so an
// in-flight frame is always completed.
func (g *Grabber) run() {
	period := time.Second / time.Duration(g.config.Framerate)
	var seq uint64

	for {
		select {
		case <-g.stopCh:
			g.finish(nil)
			return
		default:
		}

		start := time.Now()
		if err := g.cycle(seq); err != nil {
			g.finish(err)
			return
		}
		seq++
		elapsed := time.Since(start)
		g.lastCycle.Store(int64(elapsed))

		// Best-effort cadence: an overlong cycle starts the next one
		// immediately, there is no catch-up.
		if remaining := period - elapsed; remaining > 0 {
			select {
			case <-time.After(remaining):
			case <-g.stopCh:
				g.finish(nil)
				return
			}
		}
	}
}

// cycle acquires and delivers exactly one pair.
func (g *Grabber) cycle(seq uint64) error {
	raw, err := g.driver.ReadRawFrame()
	if err != nil {
		return err
	}
	defer raw.Close()

	size := g.params.ImageSize
	if raw.Cols() != 2*size.X || raw.Rows() != size.Y {
		return fmt.Errorf("raw frame is %dx%d, want %dx%d side-by-side",
			raw.Cols(), raw.Rows(), 2*size.X, size.Y)
	}

	rawLeft := raw.Region(image.Rect(0, 0, size.X, size.Y))
	defer rawLeft.Close()
	rawRight := raw.Region(image.Rect(size.X, 0, 2*size.X, size.Y))
	defer rawRight.Close()

	left, right, err := rectify.Rectify(rawLeft, rawRight, g.maps, g.region)
	if err != nil {
		return err
	}

	// Blocks while the queue is full; a slow consumer throttles
	// acquisition instead of losing frames.
	g.queue.Put(FramePair{Left: left, Right: right, Seq: seq, Taken: time.Now()})
	g.frames.Add(1)
	return nil
}

// finish records the terminating error, releases the device and the
// rectification tables, and moves to Disconnected.
func (g *Grabber) finish(err error) {
	g.mu.Lock()
	g.state = StateStopping
	if err != nil {
		g.runErr = err
		log.Printf("grabber: acquisition aborted: %v", err)
	}
	g.mu.Unlock()

	g.shutdown()
}

func (g *Grabber) shutdown() {
	if err := g.driver.Disconnect(); err != nil {
		log.Printf("grabber: disconnect: %v", err)
	}
	if g.maps != nil {
		g.maps.Close()
	}
	g.queue.Close()

	g.mu.Lock()
	g.state = StateDisconnected
	g.mu.Unlock()
	close(g.doneCh)
}
