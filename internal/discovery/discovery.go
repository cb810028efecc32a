// Package discovery finds a capture device usable as a screen-mirroring
// source, or hands control to manual selection when the bounded cycle fails.
package discovery

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"mirrorcap/internal/device"
	"mirrorcap/pkg/models"
)

// EventKind classifies discovery events.
type EventKind int

const (
	// EventDevices carries the freshly enumerated device set.
	EventDevices EventKind = iota
	// EventFound reports the mirroring-capable device being attached.
	EventFound
	// EventManualSelectionRequired reports bound exhaustion with candidates.
	EventManualSelectionRequired
	// EventExhausted reports bound exhaustion with no candidates at all.
	EventExhausted
	// EventStopped reports the cycle being cancelled.
	EventStopped
	// EventStatus carries a transient status message.
	EventStatus
)

// Event is published on the engine's outbound channel.
type Event struct {
	Kind    EventKind
	Message string
	Devices []models.CaptureDevice
	Device  models.CaptureDevice
}

// Attacher receives the device a successful cycle selected. Attachment runs
// off the discovery goroutine.
type Attacher interface {
	Attach(device models.CaptureDevice)
}

// Engine runs bounded-retry discovery cycles.
type Engine struct {
	enumerator  device.Enumerator
	attacher    Attacher
	interval    time.Duration
	maxAttempts int
	events      chan Event

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	attempts int
}

// New creates an engine. interval is the spacing between attempts and
// maxAttempts bounds one cycle.
func New(enumerator device.Enumerator, attacher Attacher, interval time.Duration, maxAttempts int) *Engine {
	return &Engine{
		enumerator:  enumerator,
		attacher:    attacher,
		interval:    interval,
		maxAttempts: maxAttempts,
		events:      make(chan Event, 16),
	}
}

// Events returns the engine's outbound event channel.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Start enables the screen-capture-device visibility switch and begins a
// discovery cycle. No-op while a cycle is already running.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}

	if err := e.enumerator.EnableMirroredDevices(); err != nil {
		log.Printf("Could not enable mirrored device visibility: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.running = true
	e.cancel = cancel
	e.attempts = 0
	e.mu.Unlock()

	e.publish(Event{Kind: EventStatus, Message: "Searching for a mirrored device..."})
	go e.run(ctx)
}

// Stop cancels the recurring attempt. Idempotent, safe from any state; it
// always clears the discovering flag and leaves a status message.
func (e *Engine) Stop() {
	e.mu.Lock()
	wasRunning := e.running
	e.running = false
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.mu.Unlock()

	if wasRunning {
		e.publish(Event{Kind: EventStopped, Message: "Discovery stopped"})
	}
}

// Discovering reports whether a cycle is currently running.
func (e *Engine) Discovering() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Attempts returns the attempt counter of the current cycle.
func (e *Engine) Attempts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempts
}

// run performs one immediate attempt, then repeats on the fixed interval
// until the cycle terminates.
func (e *Engine) run(ctx context.Context) {
	if e.attempt(ctx) {
		return
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.attempt(ctx) {
				return
			}
		}
	}
}

// attempt re-enumerates devices, publishes the set, and inspects it for a
// mirroring source. Returns true when the cycle is done.
func (e *Engine) attempt(ctx context.Context) bool {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return true
	}
	e.attempts++
	attempt := e.attempts
	e.mu.Unlock()

	devices, err := e.enumerator.Enumerate(ctx)
	if err != nil {
		log.Printf("Device enumeration failed (attempt %d): %v", attempt, err)
		devices = nil
	}
	devices = device.Dedupe(devices)

	e.publish(Event{Kind: EventDevices, Devices: devices})

	if found, ok := device.FindMirroringSource(devices); ok {
		e.stopCycle()
		e.publish(Event{
			Kind:    EventFound,
			Message: fmt.Sprintf("Found %s", found.Name),
			Device:  found,
		})
		e.attacher.Attach(found)
		return true
	}

	if attempt >= e.maxAttempts {
		e.stopCycle()
		if len(devices) > 0 {
			e.publish(Event{
				Kind:    EventManualSelectionRequired,
				Message: "No mirrored device found - select one manually",
				Devices: devices,
			})
		} else {
			e.publish(Event{
				Kind:    EventExhausted,
				Message: "No capture devices found",
			})
		}
		return true
	}

	return false
}

// stopCycle clears the running state without emitting the stopped event;
// terminal attempts publish their own outcome.
func (e *Engine) stopCycle() {
	e.mu.Lock()
	e.running = false
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.mu.Unlock()
}

// publish sends an event without blocking the discovery goroutine.
func (e *Engine) publish(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}
