package server

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/stereorig/internal/grabber"
)

// PairCache holds the most recent rectified pair for preview. The
// queue consumer pushes every pair through Update; superseded images
// are closed here so the cache never holds more than one pair.
type PairCache struct {
	mu       sync.Mutex
	combined gocv.Mat
	seq      uint64
	valid    bool
}

// NewPairCache creates an empty cache.
func NewPairCache() *PairCache {
	return &PairCache{combined: gocv.NewMat()}
}

// Update takes ownership of the pair, replacing the cached preview
// with the two halves joined side by side.
func (c *PairCache) Update(pair grabber.FramePair) {
	defer pair.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	gocv.Hconcat(pair.Left, pair.Right, &c.combined)
	c.seq = pair.Seq
	c.valid = true
}

// EncodeJPEG returns the cached preview as JPEG bytes, or ok=false if
// nothing has been cached yet.
func (c *PairCache) EncodeJPEG() ([]byte, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid || c.combined.Empty() {
		return nil, 0, false
	}

	buf, err := gocv.IMEncode(".jpg", c.combined)
	if err != nil {
		return nil, 0, false
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, c.seq, true
}

// Close releases the cached image.
func (c *PairCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.combined.Close()
	c.valid = false
}
