package models

import "time"

// Frame represents a single video sample delivered by the capture session.
//
// Data is a borrowed reference into the capture layer's buffer pool. It is
// valid only for the duration of the distribution callback: consumers that
// need the bytes beyond that call must copy them, because the underlying
// buffer is reused for subsequent frames.
type Frame struct {
	Data       []byte        // H.264 access unit, Annex-B byte stream
	Timestamp  time.Duration // presentation time, monotonic per session
	Width      int           // source width in pixels
	Height     int           // source height in pixels
	IsKeyFrame bool          // true for IDR access units
}
