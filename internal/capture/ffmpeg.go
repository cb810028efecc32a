package capture

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"mirrorcap/internal/avc"
	"mirrorcap/pkg/models"
)

// AVFoundationBackend implements Backend by driving ffmpeg processes against
// the host's AVFoundation capture devices.
type AVFoundationBackend struct {
	ffmpegPath string
}

// NewAVFoundationBackend creates a backend using the given ffmpeg binary.
func NewAVFoundationBackend(ffmpegPath string) *AVFoundationBackend {
	return &AVFoundationBackend{ffmpegPath: ffmpegPath}
}

// streamDims matches the negotiated source size in an ffmpeg probe report,
// e.g. "Stream #0:0: Video: rawvideo ... 1920x1080, ...".
var streamDims = regexp.MustCompile(`Stream #\d+:\d+.*Video:.*?(\d{2,5})x(\d{2,5})`)

// NewInput probes the device to negotiate its source format.
func (b *AVFoundationBackend) NewInput(device models.CaptureDevice) (Input, error) {
	// One-frame probe; the report on stderr carries the stream dimensions.
	cmd := exec.Command(b.ffmpegPath,
		"-hide_banner",
		"-f", "avfoundation",
		"-i", device.ID+":none",
		"-frames:v", "1",
		"-f", "null", "-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run()

	m := streamDims.FindStringSubmatch(stderr.String())
	if m == nil {
		return nil, fmt.Errorf("device %s (%s) did not negotiate a video format: %s",
			device.ID, device.Name, firstLine(stderr.String()))
	}

	width, _ := strconv.Atoi(m[1])
	height, _ := strconv.Atoi(m[2])

	log.Printf("Negotiated %dx%d for device %s (%s)", width, height, device.ID, device.Name)

	return &avfInput{device: device, width: width, height: height}, nil
}

// NewOutput constructs an output delivering H.264 access units through a
// discard-late mailbox.
func (b *AVFoundationBackend) NewOutput(cfg OutputConfig) (Output, error) {
	if cfg.Codec != "h264" {
		return nil, fmt.Errorf("unsupported output codec %q", cfg.Codec)
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 30
	}

	return &avfOutput{
		ffmpegPath: b.ffmpegPath,
		cfg:        cfg,
		queue:      newDeliveryQueue(),
	}, nil
}

type avfInput struct {
	device models.CaptureDevice
	width  int
	height int
}

func (in *avfInput) Device() models.CaptureDevice { return in.device }
func (in *avfInput) Dimensions() (int, int)       { return in.width, in.height }
func (in *avfInput) Close() error                 { return nil }

type avfOutput struct {
	ffmpegPath string
	cfg        OutputConfig
	queue      *deliveryQueue

	mu      sync.Mutex
	in      *avfInput
	sink    FrameSink
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	wg      sync.WaitGroup
	started bool
	stopped bool
}

// Bind attaches the delivery callback and its dedicated queue.
func (o *avfOutput) Bind(in Input, sink FrameSink) error {
	avfIn, ok := in.(*avfInput)
	if !ok {
		return fmt.Errorf("input %T is not an AVFoundation input", in)
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	o.in = avfIn
	o.sink = sink
	return nil
}

// Start spawns the capture process and the reader and delivery goroutines.
func (o *avfOutput) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started {
		return fmt.Errorf("output already started")
	}
	if o.in == nil || o.sink == nil {
		return fmt.Errorf("output not bound")
	}

	// Access unit delimiters are inserted so the reader can split the
	// elementary stream into frames.
	cmd := exec.Command(o.ffmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-f", "avfoundation",
		"-framerate", strconv.Itoa(o.cfg.FrameRate),
		"-i", o.in.device.ID+":none",
		"-an",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-tune", "zerolatency",
		"-bsf:v", "h264_metadata=aud=insert",
		"-f", "h264",
		"pipe:1",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start capture process: %w", err)
	}

	o.cmd = cmd
	o.stdout = stdout
	o.started = true

	width, height := o.in.Dimensions()
	epoch := time.Now()
	sink := o.sink

	// Reader: split the stream into access units and publish each into the
	// mailbox. Publishing never blocks, so reading keeps pace with the
	// process even when the sink lags.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		scanner := avc.NewScanner()
		buf := make([]byte, 64*1024)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				for _, au := range scanner.Feed(buf[:n]) {
					o.queue.publish(&models.Frame{
						Data:       au,
						Timestamp:  time.Since(epoch),
						Width:      width,
						Height:     height,
						IsKeyFrame: avc.IsKeyFrame(au),
					})
				}
			}
			if err != nil {
				if err != io.EOF {
					log.Printf("Capture read ended: %v", err)
				}
				// The stream rarely ends on an access unit boundary;
				// deliver whatever the scanner still holds.
				if tail := scanner.Flush(); tail != nil {
					o.queue.publish(&models.Frame{
						Data:       tail,
						Timestamp:  time.Since(epoch),
						Width:      width,
						Height:     height,
						IsKeyFrame: avc.IsKeyFrame(tail),
					})
				}
				o.queue.close()
				return
			}
		}
	}()

	// Delivery: drain the mailbox on its own goroutine so the reader never
	// runs the callback.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for {
			frame := o.queue.next()
			if frame == nil {
				return
			}
			sink(frame)
		}
	}()

	return nil
}

// Stop halts delivery and reaps the capture process. Idempotent.
func (o *avfOutput) Stop() error {
	o.mu.Lock()
	if o.stopped || !o.started {
		o.stopped = true
		o.mu.Unlock()
		o.queue.close()
		return nil
	}
	o.stopped = true
	cmd := o.cmd
	o.mu.Unlock()

	o.queue.close()
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
	o.wg.Wait()

	return nil
}

// Drops returns the number of late frames discarded by the mailbox.
func (o *avfOutput) Drops() uint64 {
	return o.queue.drops.Load()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
