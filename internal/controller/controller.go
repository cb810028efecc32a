// Package controller coordinates discovery, capture, and recording, and
// publishes a single status snapshot for clients.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"mirrorcap/internal/capture"
	"mirrorcap/internal/discovery"
	"mirrorcap/internal/distributor"
	"mirrorcap/internal/metrics"
	"mirrorcap/internal/recorder"
	"mirrorcap/internal/snapshot"
	"mirrorcap/pkg/models"
)

// Controller owns the component graph and the relay loop that folds every
// component event into the published status.
type Controller struct {
	discovery *discovery.Engine
	manager   *capture.Manager
	recorder  *recorder.Recorder
	dist      *distributor.Distributor
	grabber   *snapshot.Grabber
	metrics   *metrics.Metrics

	mu     sync.RWMutex
	status models.Status

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New wires the controller. Call Run to start relaying events.
func New(d *discovery.Engine, m *capture.Manager, r *recorder.Recorder, dist *distributor.Distributor, g *snapshot.Grabber, mt *metrics.Metrics) *Controller {
	return &Controller{
		discovery: d,
		manager:   m,
		recorder:  r,
		dist:      dist,
		grabber:   g,
		metrics:   mt,
		status: models.Status{
			StatusMessage: "Ready",
			Quality:       r.Quality(),
		},
		done: make(chan struct{}),
	}
}

// Run starts the event relay loop on a background goroutine.
func (c *Controller) Run() {
	c.wg.Add(1)
	go c.relay()
}

// Status returns a copy of the published snapshot.
func (c *Controller) Status() models.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.status
	s.Devices = append([]models.CaptureDevice(nil), c.status.Devices...)
	s.CaptureDrops = c.manager.DroppedFrames()
	return s
}

// Devices returns the most recently enumerated device set.
func (c *Controller) Devices() []models.CaptureDevice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.CaptureDevice(nil), c.status.Devices...)
}

// StartDiscovery begins a bounded discovery cycle.
func (c *Controller) StartDiscovery() {
	c.metrics.RecordDiscoveryCycle()
	c.discovery.Start()
	c.update(func(s *models.Status) {
		s.Discovering = true
		s.ManualSelectRequired = false
	})
}

// StopDiscovery cancels the discovery cycle if one is running.
func (c *Controller) StopDiscovery() {
	c.discovery.Stop()
	c.update(func(s *models.Status) {
		s.Discovering = false
	})
}

// SelectDevice attaches the named device from the last enumerated set. Used
// when discovery ends in manual selection, but valid at any time.
func (c *Controller) SelectDevice(deviceID string) error {
	c.mu.RLock()
	var found *models.CaptureDevice
	for i := range c.status.Devices {
		if c.status.Devices[i].ID == deviceID {
			found = &c.status.Devices[i]
			break
		}
	}
	c.mu.RUnlock()

	if found == nil {
		return fmt.Errorf("unknown device %q", deviceID)
	}

	c.discovery.Stop()
	dev := *found
	c.update(func(s *models.Status) {
		s.ManualSelectRequired = false
		s.StatusMessage = fmt.Sprintf("Connecting to %s...", dev.Name)
	})
	c.manager.Attach(dev)
	return nil
}

// ToggleRecording starts a recording when idle and stops the active one
// when writing.
func (c *Controller) ToggleRecording() error {
	switch c.recorder.State() {
	case models.RecordingStateIdle:
		w, h, ok := c.manager.ActiveDimensions()
		if !ok {
			return errors.New("no device attached")
		}
		if err := c.recorder.Start(w, h); err != nil {
			return err
		}
		c.metrics.RecordRecordingStart()
		return nil
	case models.RecordingStateWriting:
		c.recorder.Stop()
		return nil
	default:
		return fmt.Errorf("recording is %s, try again shortly", c.recorder.State())
	}
}

// SetQuality changes the size policy. Takes effect from the next recording;
// one already writing keeps its dimensions.
func (c *Controller) SetQuality(q models.Quality) {
	c.recorder.SetQuality(q)
	c.update(func(s *models.Status) {
		s.Quality = q
	})
}

// TakeScreenshot saves the latest keyframe as a PNG and returns its name.
func (c *Controller) TakeScreenshot(ctx context.Context) (string, error) {
	return c.grabber.Save(ctx)
}

// Cleanup tears the component graph down: discovery first so no new attach
// can race the shutdown, then the capture session, then the recording, then
// the frame subscriptions.
func (c *Controller) Cleanup() {
	c.closeOnce.Do(func() {
		log.Printf("Shutting down capture pipeline")
		c.discovery.Stop()
		c.manager.Stop()
		c.recorder.Stop()
		c.dist.Close()
		close(c.done)
	})
	c.wg.Wait()
}

// relay folds component events into the status snapshot until Cleanup.
func (c *Controller) relay() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.discovery.Events():
			c.handleDiscovery(ev)
		case ev := <-c.manager.Events():
			c.handleCapture(ev)
		case ev := <-c.recorder.Events():
			c.handleRecording(ev)
		}
	}
}

func (c *Controller) handleDiscovery(ev discovery.Event) {
	switch ev.Kind {
	case discovery.EventDevices:
		c.metrics.RecordDiscoveryAttempt(len(ev.Devices))
		c.update(func(s *models.Status) {
			s.Devices = ev.Devices
		})
	case discovery.EventFound:
		c.metrics.RecordDiscoveryOutcome("found")
		c.update(func(s *models.Status) {
			s.Discovering = false
			s.ManualSelectRequired = false
			s.StatusMessage = ev.Message
		})
	case discovery.EventManualSelectionRequired:
		c.metrics.RecordDiscoveryOutcome("manual")
		c.update(func(s *models.Status) {
			s.Discovering = false
			s.ManualSelectRequired = true
			s.StatusMessage = ev.Message
		})
	case discovery.EventExhausted:
		c.metrics.RecordDiscoveryOutcome("exhausted")
		c.update(func(s *models.Status) {
			s.Discovering = false
			s.StatusMessage = ev.Message
		})
	case discovery.EventStopped:
		c.metrics.RecordDiscoveryOutcome("stopped")
		c.update(func(s *models.Status) {
			s.Discovering = false
			s.StatusMessage = ev.Message
		})
	case discovery.EventStatus:
		c.update(func(s *models.Status) {
			s.Discovering = true
			s.StatusMessage = ev.Message
		})
	}
}

func (c *Controller) handleCapture(ev capture.Event) {
	switch ev.Kind {
	case capture.EventConnected:
		c.metrics.RecordAttach(nil)
		c.update(func(s *models.Status) {
			s.Connected = true
			s.StatusMessage = ev.Message
		})
	case capture.EventDisconnected:
		c.metrics.RecordDetach()
		// A recording cannot outlive its source.
		c.recorder.Stop()
		c.update(func(s *models.Status) {
			s.Connected = false
			s.StatusMessage = ev.Message
		})
	case capture.EventError:
		c.metrics.RecordAttach(errors.New(ev.Message))
		c.update(func(s *models.Status) {
			s.StatusMessage = ev.Message
		})
	}
}

func (c *Controller) handleRecording(ev recorder.Event) {
	switch ev.Kind {
	case recorder.EventState:
		c.update(func(s *models.Status) {
			s.Recording = ev.State != models.RecordingStateIdle
			if ev.State == models.RecordingStateIdle {
				s.RecordingDuration = 0
				s.RecordingFrames = 0
			}
		})
	case recorder.EventStatus:
		c.update(func(s *models.Status) {
			s.StatusMessage = ev.Message
			s.RecordingDuration = ev.Stats.Duration
			s.RecordingFrames = ev.Stats.FrameCount
		})
	case recorder.EventSaved:
		c.metrics.RecordRecordingEnd(true, ev.Stats.Duration.Seconds())
		c.update(func(s *models.Status) {
			s.StatusMessage = ev.Message
		})
	case recorder.EventDiscarded:
		c.metrics.RecordRecordingEnd(false, ev.Stats.Duration.Seconds())
		c.update(func(s *models.Status) {
			s.StatusMessage = ev.Message
		})
	case recorder.EventError:
		c.update(func(s *models.Status) {
			s.StatusMessage = ev.Message
		})
	}
}

// update applies a mutation to the status under the write lock.
func (c *Controller) update(fn func(*models.Status)) {
	c.mu.Lock()
	fn(&c.status)
	c.mu.Unlock()
}
