// Package recorder owns the recording pipeline: one state machine that
// normalizes frame timestamps, negotiates output dimensions, feeds an
// encoder, and relocates the finished file into storage.
package recorder

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"mirrorcap/internal/storage"
	"mirrorcap/pkg/models"
)

// Encoder consumes access units with recording-relative timestamps and
// produces a playable container at the path it was created with.
type Encoder interface {
	// ReadyForMore reports whether the encoder can accept another frame
	// right now. Frames arriving while it cannot are dropped upstream.
	ReadyForMore() bool

	// Append hands one frame to the encoder. The frame data is only valid
	// for the duration of the call.
	Append(frame *models.Frame) error

	// Finish flushes pending samples and closes the container. The file is
	// complete once Finish returns.
	Finish() error
}

// EncoderFactory builds an encoder writing to path at the negotiated size.
type EncoderFactory func(path string, width, height, frameRate int) (Encoder, error)

// SavePrompter decides what happens to a finished recording.
type SavePrompter interface {
	// ConfirmSave returns the artifact name to store the recording under
	// and whether to keep it at all.
	ConfirmSave(defaultName string) (name string, save bool)
}

// AutoSavePrompter keeps every recording under its default name.
type AutoSavePrompter struct{}

func (AutoSavePrompter) ConfirmSave(defaultName string) (string, bool) {
	return defaultName, true
}

// EventKind classifies recorder events.
type EventKind int

const (
	// EventState reports a state transition.
	EventState EventKind = iota
	// EventStatus carries the periodic progress line while writing.
	EventStatus
	// EventSaved reports the finalized artifact landing in storage.
	EventSaved
	// EventDiscarded reports a finished recording being thrown away.
	EventDiscarded
	// EventError reports a failure that aborted the recording.
	EventError
)

// Event is published on the recorder's outbound channel.
type Event struct {
	Kind     EventKind
	Message  string
	State    models.RecordingState
	Stats    models.RecordingStats
	Artifact string
}

// Recorder drives one recording at a time through
// idle -> configuring -> writing -> finalizing -> idle.
type Recorder struct {
	tempDir    string
	frameRate  int
	store      storage.Storage
	prompter   SavePrompter
	newEncoder EncoderFactory
	events     chan Event

	mu         sync.Mutex
	state      models.RecordingState
	quality    models.Quality
	enc        Encoder
	tempPath   string
	width      int
	height     int
	origin     time.Duration
	originSet  bool
	frameCount uint64
	dropped    uint64
	started    time.Time
	stopTicker chan struct{}
}

// New creates an idle recorder. Finished files land in store; tempDir holds
// the container while it is being written.
func New(tempDir string, frameRate int, store storage.Storage, prompter SavePrompter, factory EncoderFactory) *Recorder {
	return &Recorder{
		tempDir:    tempDir,
		frameRate:  frameRate,
		store:      store,
		prompter:   prompter,
		newEncoder: factory,
		events:     make(chan Event, 16),
		state:      models.RecordingStateIdle,
		quality:    models.QualityHigh,
	}
}

// Events returns the recorder's outbound event channel.
func (r *Recorder) Events() <-chan Event {
	return r.events
}

// SetQuality selects the size policy. A recording in progress keeps the
// dimensions it started with; the new setting applies from the next Start.
func (r *Recorder) SetQuality(q models.Quality) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quality = q
}

// Quality returns the currently selected size policy.
func (r *Recorder) Quality() models.Quality {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quality
}

// State returns the current pipeline state.
func (r *Recorder) State() models.RecordingState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Stats returns a snapshot of the recording in progress.
func (r *Recorder) Stats() models.RecordingStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statsLocked()
}

// DroppedFrames returns how many frames were discarded because the encoder
// was not ready.
func (r *Recorder) DroppedFrames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Start begins a recording from a source of the given dimensions. Only one
// recording can be active; starting from any state but idle is an error.
func (r *Recorder) Start(srcWidth, srcHeight int) error {
	r.mu.Lock()
	if r.state != models.RecordingStateIdle {
		r.mu.Unlock()
		return fmt.Errorf("recording already in progress (state %s)", r.state)
	}
	r.state = models.RecordingStateConfiguring
	quality := r.quality
	r.mu.Unlock()

	r.publish(Event{Kind: EventState, State: models.RecordingStateConfiguring})

	portrait := srcHeight > srcWidth
	targetWidth := quality.TargetWidth(portrait)
	width, height := negotiateDimensions(srcWidth, srcHeight, targetWidth, 0)

	tempPath := filepath.Join(r.tempDir, "capture-"+uuid.NewString()+".mp4")
	enc, err := r.newEncoder(tempPath, width, height, r.frameRate)
	if err != nil {
		r.mu.Lock()
		r.state = models.RecordingStateIdle
		r.mu.Unlock()
		r.publish(Event{Kind: EventError, Message: fmt.Sprintf("Could not start recording: %v", err), State: models.RecordingStateIdle})
		return fmt.Errorf("failed to create encoder: %w", err)
	}

	r.mu.Lock()
	r.state = models.RecordingStateWriting
	r.enc = enc
	r.tempPath = tempPath
	r.width = width
	r.height = height
	r.origin = 0
	r.originSet = false
	r.frameCount = 0
	r.dropped = 0
	r.started = time.Now()
	r.stopTicker = make(chan struct{})
	stop := r.stopTicker
	r.mu.Unlock()

	log.Printf("Recording started: %dx%d (%s) -> %s", width, height, quality, tempPath)
	r.publish(Event{Kind: EventState, State: models.RecordingStateWriting})
	go r.statusLoop(stop)
	return nil
}

// Append feeds one captured frame into the recording and reports whether it
// was handed to the encoder. Frames arriving outside the writing state, or
// while the encoder is busy, are discarded without error.
func (r *Recorder) Append(frame *models.Frame) bool {
	r.mu.Lock()
	if r.state != models.RecordingStateWriting || r.enc == nil {
		r.mu.Unlock()
		return false
	}
	enc := r.enc
	if !enc.ReadyForMore() {
		r.dropped++
		r.mu.Unlock()
		return false
	}
	if !r.originSet {
		r.origin = frame.Timestamp
		r.originSet = true
	}
	rel := frame.Timestamp - r.origin
	r.frameCount++
	r.mu.Unlock()

	adjusted := *frame
	adjusted.Timestamp = rel
	if err := enc.Append(&adjusted); err != nil {
		log.Printf("Failed to append frame at %v: %v", rel, err)
		r.mu.Lock()
		r.frameCount--
		r.mu.Unlock()
		return false
	}
	return true
}

// Stop ends the active recording and finalizes the file off the caller's
// goroutine. No-op unless a recording is writing.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.state != models.RecordingStateWriting {
		r.mu.Unlock()
		return
	}
	r.state = models.RecordingStateFinalizing
	enc := r.enc
	tempPath := r.tempPath
	stats := r.statsLocked()
	close(r.stopTicker)
	r.stopTicker = nil
	r.mu.Unlock()

	r.publish(Event{Kind: EventState, State: models.RecordingStateFinalizing, Stats: stats})
	go r.finalize(enc, tempPath, stats)
}

// finalize closes the container, asks the prompter where the file goes, and
// relocates or deletes it. Runs on its own goroutine; the recorder returns
// to idle whatever happens.
func (r *Recorder) finalize(enc Encoder, tempPath string, stats models.RecordingStats) {
	defer r.reset()

	if err := enc.Finish(); err != nil {
		log.Printf("Failed to finalize recording: %v", err)
		os.Remove(tempPath)
		r.publish(Event{Kind: EventError, Message: fmt.Sprintf("Recording failed: %v", err), State: models.RecordingStateIdle})
		return
	}

	defaultName := "recording-" + time.Now().Format("20060102-150405") + ".mp4"
	name, save := r.prompter.ConfirmSave(defaultName)
	if !save {
		os.Remove(tempPath)
		log.Printf("Recording discarded (%d frames, %v)", stats.FrameCount, stats.Duration.Round(time.Second))
		r.publish(Event{Kind: EventDiscarded, Message: "Recording discarded", State: models.RecordingStateIdle, Stats: stats})
		return
	}

	f, err := os.Open(tempPath)
	if err != nil {
		log.Printf("Failed to open finalized recording: %v", err)
		r.publish(Event{Kind: EventError, Message: "Recording lost during finalization", State: models.RecordingStateIdle, Stats: stats})
		return
	}
	err = r.store.WriteFrom(name, f)
	f.Close()
	os.Remove(tempPath)
	if err != nil {
		log.Printf("Failed to store recording %s: %v", name, err)
		r.publish(Event{Kind: EventError, Message: fmt.Sprintf("Could not save recording: %v", err), State: models.RecordingStateIdle, Stats: stats})
		return
	}

	log.Printf("Recording saved: %s (%d frames, %v)", name, stats.FrameCount, stats.Duration.Round(time.Second))
	r.publish(Event{
		Kind:     EventSaved,
		Message:  fmt.Sprintf("Saved %s", name),
		State:    models.RecordingStateIdle,
		Stats:    stats,
		Artifact: name,
	})
}

// reset returns the recorder to idle, clearing all per-recording state.
func (r *Recorder) reset() {
	r.mu.Lock()
	r.state = models.RecordingStateIdle
	r.enc = nil
	r.tempPath = ""
	r.width = 0
	r.height = 0
	r.origin = 0
	r.originSet = false
	r.started = time.Time{}
	r.mu.Unlock()
	r.publish(Event{Kind: EventState, State: models.RecordingStateIdle})
}

// statusLoop publishes a progress line once a second while writing.
func (r *Recorder) statusLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.state != models.RecordingStateWriting {
				r.mu.Unlock()
				return
			}
			stats := r.statsLocked()
			r.mu.Unlock()
			r.publish(Event{
				Kind:    EventStatus,
				Message: fmt.Sprintf("%s · %d frames", formatDuration(stats.Duration), stats.FrameCount),
				State:   models.RecordingStateWriting,
				Stats:   stats,
			})
		}
	}
}

// statsLocked builds a stats snapshot. Caller holds r.mu.
func (r *Recorder) statsLocked() models.RecordingStats {
	var duration time.Duration
	if !r.started.IsZero() {
		duration = time.Since(r.started)
	}
	return models.RecordingStats{
		State:      r.state,
		Width:      r.width,
		Height:     r.height,
		FrameCount: r.frameCount,
		Duration:   duration,
		TempPath:   r.tempPath,
	}
}

// formatDuration renders m:ss for the status line.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", m, s)
}

// publish sends an event without blocking the pipeline.
func (r *Recorder) publish(ev Event) {
	select {
	case r.events <- ev:
	default:
	}
}
