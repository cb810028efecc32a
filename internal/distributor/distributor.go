// Package distributor fans captured frames out to the components that
// consume them.
package distributor

import (
	"sync"
	"sync/atomic"

	"mirrorcap/pkg/models"
)

// Sink consumes one frame. The frame data is only valid for the duration of
// the call; sinks that need it later must copy.
type Sink func(frame *models.Frame)

type registration struct {
	name string
	sink Sink
}

// Distributor delivers each frame to every subscribed sink, sequentially and
// in subscription order. It never copies or retains frame data itself.
type Distributor struct {
	mu    sync.RWMutex
	sinks []registration

	frameCount atomic.Uint64
}

// New creates a distributor with no subscribers.
func New() *Distributor {
	return &Distributor{}
}

// Subscribe registers a sink under a name, replacing any previous sink with
// the same name. Delivery order follows first subscription order.
func (d *Distributor) Subscribe(name string, sink Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, reg := range d.sinks {
		if reg.name == name {
			d.sinks[i].sink = sink
			return
		}
	}
	d.sinks = append(d.sinks, registration{name: name, sink: sink})
}

// Unsubscribe removes the sink registered under name, if any.
func (d *Distributor) Unsubscribe(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, reg := range d.sinks {
		if reg.name == name {
			d.sinks = append(d.sinks[:i], d.sinks[i+1:]...)
			return
		}
	}
}

// Dispatch hands one frame to every sink in order. Called from the capture
// delivery goroutine.
func (d *Distributor) Dispatch(frame *models.Frame) {
	d.frameCount.Add(1)

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, reg := range d.sinks {
		reg.sink(frame)
	}
}

// FrameCount returns how many frames have passed through.
func (d *Distributor) FrameCount() uint64 {
	return d.frameCount.Load()
}

// Close drops all subscriptions.
func (d *Distributor) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = nil
}
