package capture

import (
	"fmt"
	"log"
	"sync"

	"mirrorcap/pkg/models"
)

// EventKind classifies session lifecycle events.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventError
)

// Event is published on the manager's outbound channel whenever the session
// changes state. The controller relays it into the published status.
type Event struct {
	Kind    EventKind
	Message string
	Device  models.CaptureDevice
}

// session is the live pipeline between a device and the stream of frames.
// At most one device is attached at a time; inputs and outputs are only ever
// replaced as a unit inside the manager's configuration bracket.
type session struct {
	device  *models.CaptureDevice
	input   Input
	output  Output
	running bool
}

// Manager owns the single active capture session and transitions it between
// devices safely.
type Manager struct {
	backend Backend
	cfg     OutputConfig
	sink    FrameSink
	events  chan Event

	mu      sync.Mutex
	current session
}

// NewManager creates a manager that delivers frames to sink.
func NewManager(backend Backend, cfg OutputConfig, sink FrameSink) *Manager {
	return &Manager{
		backend: backend,
		cfg:     cfg,
		sink:    sink,
		events:  make(chan Event, 16),
	}
}

// Events returns the manager's outbound lifecycle channel.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Attach reconfigures the session for the given device on a background
// goroutine. Reconfiguration blocks on OS negotiation and must never run on
// the frame-delivery goroutine or hold up discovery.
func (m *Manager) Attach(device models.CaptureDevice) {
	go m.attach(device)
}

// attach performs the atomic configuration bracket: remove current
// inputs/outputs, build the new pair, commit both or neither. A failure
// leaves the session unattached and is non-fatal.
func (m *Manager) attach(device models.CaptureDevice) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Begin bracket: no frame can be delivered from a half-swapped pair
	// because the old output stops before the new one exists.
	m.teardownLocked()

	input, err := m.backend.NewInput(device)
	if err != nil {
		m.publish(Event{Kind: EventError, Message: fmt.Sprintf("Could not open %s: %v", device.Name, err)})
		return
	}

	output, err := m.backend.NewOutput(m.cfg)
	if err != nil {
		input.Close()
		m.publish(Event{Kind: EventError, Message: fmt.Sprintf("Could not configure output: %v", err)})
		return
	}

	if err := output.Bind(input, m.sink); err != nil {
		input.Close()
		m.publish(Event{Kind: EventError, Message: fmt.Sprintf("Could not bind delivery: %v", err)})
		return
	}

	if err := output.Start(); err != nil {
		input.Close()
		m.publish(Event{Kind: EventError, Message: fmt.Sprintf("Could not start streaming from %s: %v", device.Name, err)})
		return
	}

	// Commit.
	m.current = session{
		device:  &device,
		input:   input,
		output:  output,
		running: true,
	}

	log.Printf("Capture session attached to %s (%s)", device.Name, device.ID)
	m.publish(Event{Kind: EventConnected, Message: fmt.Sprintf("Connected to %s", device.Name), Device: device})
}

// Start resumes delivery on the attached device. No-op while running.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.current.running {
		m.mu.Unlock()
		return nil
	}
	device := m.current.device
	m.mu.Unlock()

	if device == nil {
		return fmt.Errorf("no device attached")
	}

	m.attach(*device)
	return nil
}

// Stop halts delivery and releases the session, replacing it with an empty
// one so no device handles persist across cleanups. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.device == nil && m.current.output == nil {
		return
	}

	m.teardownLocked()
	m.current = session{}
	m.publish(Event{Kind: EventDisconnected, Message: "Capture session stopped"})
}

// ActiveDimensions returns the negotiated source size of the bound input,
// or false when no session is attached.
func (m *Manager) ActiveDimensions() (width, height int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.input == nil {
		return 0, 0, false
	}
	width, height = m.current.input.Dimensions()
	return width, height, true
}

// Connected reports whether a session is attached and streaming.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.running
}

// DroppedFrames returns the late frames discarded by the current output.
func (m *Manager) DroppedFrames() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.output == nil {
		return 0
	}
	return m.current.output.Drops()
}

// teardownLocked removes all current inputs and outputs. Caller holds m.mu.
func (m *Manager) teardownLocked() {
	if m.current.output != nil {
		m.current.output.Stop()
	}
	if m.current.input != nil {
		m.current.input.Close()
	}
	m.current.output = nil
	m.current.input = nil
	m.current.running = false
}

// publish sends an event without blocking; a slow consumer loses old events
// rather than stalling the session.
func (m *Manager) publish(ev Event) {
	select {
	case m.events <- ev:
	default:
	}
}
