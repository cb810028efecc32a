// Package muxer writes captured H.264 access units into a fragmented MP4
// container.
package muxer

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"

	"mirrorcap/internal/avc"
	"mirrorcap/pkg/models"
)

const (
	videoTimescale = 90000
	queueDepth     = 60
)

type queuedFrame struct {
	data       []byte
	timestamp  time.Duration
	isKeyFrame bool
}

// MP4Writer encodes frames into a fragmented MP4 file. Samples are written
// on a dedicated goroutine; Append only copies and queues, so the capture
// path never blocks on disk.
type MP4Writer struct {
	path      string
	width     int
	height    int
	frameRate int

	frames chan queuedFrame
	done   chan error

	mu     sync.Mutex
	closed bool
}

// NewMP4Writer creates the container file and starts the writer goroutine.
func NewMP4Writer(path string, width, height, frameRate int) (*MP4Writer, error) {
	if frameRate <= 0 {
		frameRate = 30
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create container file: %w", err)
	}

	w := &MP4Writer{
		path:      path,
		width:     width,
		height:    height,
		frameRate: frameRate,
		frames:    make(chan queuedFrame, queueDepth),
		done:      make(chan error, 1),
	}
	go w.run(f)
	return w, nil
}

// ReadyForMore reports whether the writer queue can take another frame.
func (w *MP4Writer) ReadyForMore() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed && len(w.frames) < cap(w.frames)
}

// Append copies the frame and queues it for muxing. The frame data may be
// reused by the caller as soon as Append returns.
func (w *MP4Writer) Append(frame *models.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	item := queuedFrame{
		data:       append([]byte(nil), frame.Data...),
		timestamp:  frame.Timestamp,
		isKeyFrame: frame.IsKeyFrame,
	}
	select {
	case w.frames <- item:
		return nil
	default:
		return fmt.Errorf("writer queue full")
	}
}

// Finish stops the writer goroutine, flushes the container, and closes the
// file. The file at path is complete once Finish returns.
func (w *MP4Writer) Finish() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.frames)
	}
	w.mu.Unlock()

	err := <-w.done
	// Keep the result available for repeated calls.
	w.done <- err
	return err
}

// run drains the frame queue into the file. The init segment is written once
// parameter sets show up in the stream; frames before that are unplayable
// and get skipped.
func (w *MP4Writer) run(f *os.File) {
	var (
		sps, pps    [][]byte
		initWritten bool
		trackID     uint32
		seq         uint32 = 1
		skipped     int
		writeErr    error
	)

	nominalDur := uint32(videoTimescale / w.frameRate)

	for item := range w.frames {
		if writeErr != nil {
			continue
		}

		if !initWritten {
			s, p := avc.ExtractParameterSets(item.data)
			if len(s) > 0 {
				sps = s
			}
			if len(p) > 0 {
				pps = p
			}
			if len(sps) == 0 || len(pps) == 0 {
				skipped++
				continue
			}
			id, err := w.writeInit(f, sps, pps)
			if err != nil {
				writeErr = err
				continue
			}
			trackID = id
			initWritten = true
			if skipped > 0 {
				log.Printf("Skipped %d frames before parameter sets arrived", skipped)
			}
		}

		sample, err := avc.ConvertAnnexBToAVCC(item.data)
		if err != nil {
			// Parameter-set-only units carry no sample data.
			continue
		}

		frag, err := mp4.CreateFragment(seq, trackID)
		if err != nil {
			writeErr = fmt.Errorf("failed to create fragment: %w", err)
			continue
		}
		seq++

		flags := mp4.NonSyncSampleFlags
		if item.isKeyFrame {
			flags = mp4.SyncSampleFlags
		}
		decodeTime := uint64(item.timestamp * videoTimescale / time.Second)
		frag.AddFullSample(mp4.FullSample{
			Sample: mp4.Sample{
				Flags: flags,
				Dur:   nominalDur,
				Size:  uint32(len(sample)),
			},
			DecodeTime: decodeTime,
			Data:       sample,
		})

		if err := frag.Encode(f); err != nil {
			writeErr = fmt.Errorf("failed to write fragment: %w", err)
		}
	}

	// A recording with no usable frames still gets a valid, empty container.
	if writeErr == nil && !initWritten {
		_, writeErr = w.writeInit(f, nil, nil)
	}

	if closeErr := f.Close(); writeErr == nil && closeErr != nil {
		writeErr = fmt.Errorf("failed to close container file: %w", closeErr)
	}
	w.done <- writeErr
}

// writeInit encodes the init segment and returns the video track ID.
func (w *MP4Writer) writeInit(f *os.File, sps, pps [][]byte) (uint32, error) {
	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(videoTimescale, "video", "und")
	trak := init.Moov.Trak
	if len(sps) > 0 {
		if err := trak.SetAVCDescriptor("avc1", sps, pps, true); err != nil {
			return 0, fmt.Errorf("failed to set AVC descriptor: %w", err)
		}
	}
	trak.Tkhd.Width = mp4.Fixed32(uint32(w.width) << 16)
	trak.Tkhd.Height = mp4.Fixed32(uint32(w.height) << 16)
	if err := init.Encode(f); err != nil {
		return 0, fmt.Errorf("failed to write init segment: %w", err)
	}
	return trak.Tkhd.TrackID, nil
}
