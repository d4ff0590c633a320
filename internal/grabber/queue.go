package grabber

import (
	"time"

	"gocv.io/x/gocv"
)

// FramePair is one synchronized rectified stereo pair. Left and Right
// always have identical dimensions. Ownership transfers to whoever
// pops the pair from the queue; that consumer must call Close.
type FramePair struct {
	Left  gocv.Mat
	Right gocv.Mat
	Seq   uint64
	Taken time.Time
}

// Close releases both images.
func (p FramePair) Close() {
	p.Left.Close()
	p.Right.Close()
}

// Queue is a bounded, ordered hand-off of frame pairs from the grabber
// to a single downstream consumer. Put blocks when the queue is full;
// that blocking is the system's backpressure, pairs are never dropped
// or reordered here.
type Queue struct {
	ch chan FramePair
}

// NewQueue creates a queue holding at most capacity pairs.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan FramePair, capacity)}
}

// Put hands a pair to the consumer, blocking while the queue is full.
func (q *Queue) Put(p FramePair) {
	q.ch <- p
}

// Get blocks until a pair is available. ok is false once the queue has
// been closed and drained.
func (q *Queue) Get() (FramePair, bool) {
	p, ok := <-q.ch
	return p, ok
}

// Close marks the end of the acquisition run. Pending pairs remain
// readable until drained.
func (q *Queue) Close() {
	close(q.ch)
}

// Len reports how many pairs are currently queued.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap reports the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
