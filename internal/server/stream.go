package server

import (
	"fmt"
	"net/http"
	"time"
)

// StreamHandler serves MJPEG previews of the most recent rectified
// pair.
type StreamHandler struct {
	pairs *PairCache
}

// NewStreamHandler creates a new StreamHandler backed by the given
// cache.
func NewStreamHandler(pairs *PairCache) *StreamHandler {
	return &StreamHandler{pairs: pairs}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var lastSeq uint64
	for {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		data, seq, ok := h.pairs.EncodeJPEG()
		if !ok || (lastSeq != 0 && seq == lastSeq) {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		lastSeq = seq

		// Write MJPEG frame
		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data))
		w.Write(data)
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		time.Sleep(66 * time.Millisecond) // ~15 FPS
	}
}
