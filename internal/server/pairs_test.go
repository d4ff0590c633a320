package server

import (
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/stereorig/internal/grabber"
)

func solidPair(seq uint64) grabber.FramePair {
	left := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 200, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
	right := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 200, 0), 480, 640, gocv.MatTypeCV8UC3)
	return grabber.FramePair{Left: left, Right: right, Seq: seq}
}

func TestPairCache_Empty(t *testing.T) {
	c := NewPairCache()
	defer c.Close()

	if _, _, ok := c.EncodeJPEG(); ok {
		t.Error("EncodeJPEG() on empty cache should report ok=false")
	}
}

func TestPairCache_UpdateAndEncode(t *testing.T) {
	c := NewPairCache()
	defer c.Close()

	c.Update(solidPair(3))

	data, seq, ok := c.EncodeJPEG()
	if !ok {
		t.Fatal("EncodeJPEG() failed after Update")
	}
	if seq != 3 {
		t.Errorf("seq = %d, want 3", seq)
	}

	// The preview is the two halves side by side.
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	defer img.Close()

	if img.Cols() != 1280 || img.Rows() != 480 {
		t.Errorf("preview = %dx%d, want 1280x480", img.Cols(), img.Rows())
	}
}

func TestPairCache_SupersededPairReplaced(t *testing.T) {
	c := NewPairCache()
	defer c.Close()

	c.Update(solidPair(1))
	c.Update(solidPair(2))

	_, seq, ok := c.EncodeJPEG()
	if !ok || seq != 2 {
		t.Errorf("EncodeJPEG() = (seq %d, ok %v), want latest seq 2", seq, ok)
	}
}
