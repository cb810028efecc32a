// Package snapshot turns the most recent keyframe into a still image.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"sync"
	"time"

	"mirrorcap/internal/storage"
	"mirrorcap/pkg/models"
)

// Grabber keeps a copy of the latest keyframe access unit and renders it to
// a PNG on demand.
type Grabber struct {
	ffmpegPath string
	store      storage.Storage

	mu     sync.Mutex
	latest []byte
	width  int
	height int
}

// New creates a grabber storing screenshots in store.
func New(ffmpegPath string, store storage.Storage) *Grabber {
	return &Grabber{
		ffmpegPath: ffmpegPath,
		store:      store,
	}
}

// HandleFrame retains a copy of the frame when it is a keyframe. Non-key
// frames are ignored since they cannot be decoded standalone.
func (g *Grabber) HandleFrame(frame *models.Frame) {
	if !frame.IsKeyFrame {
		return
	}
	g.mu.Lock()
	g.latest = append(g.latest[:0], frame.Data...)
	g.width = frame.Width
	g.height = frame.Height
	g.mu.Unlock()
}

// Save decodes the retained keyframe to a PNG and writes it to storage,
// returning the artifact name. Fails when no keyframe has arrived yet.
func (g *Grabber) Save(ctx context.Context) (string, error) {
	g.mu.Lock()
	if len(g.latest) == 0 {
		g.mu.Unlock()
		return "", fmt.Errorf("no frame captured yet")
	}
	unit := append([]byte(nil), g.latest...)
	g.mu.Unlock()

	png, err := g.decode(ctx, unit)
	if err != nil {
		return "", err
	}

	name := "screenshot-" + time.Now().Format("20060102-150405") + ".png"
	if err := g.store.Write(name, png); err != nil {
		return "", fmt.Errorf("failed to store screenshot: %w", err)
	}
	log.Printf("Screenshot saved: %s (%d bytes)", name, len(png))
	return name, nil
}

// decode runs a one-shot decode of the access unit into a PNG.
func (g *Grabber) decode(ctx context.Context, unit []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, g.ffmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-f", "h264",
		"-i", "pipe:0",
		"-frames:v", "1",
		"-c:v", "png",
		"-f", "image2",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(unit)

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("failed to decode keyframe: %v (%s)", err, bytes.TrimSpace(errBuf.Bytes()))
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("decoder produced no image")
	}
	return out.Bytes(), nil
}
