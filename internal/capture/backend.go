// Package capture owns the single active capture session: the live binding
// between a selected device and the running frame-delivery pipeline.
package capture

import "mirrorcap/pkg/models"

// FrameSink receives every delivered frame on the output's dedicated
// delivery goroutine. The frame is a borrowed reference; implementations
// must be short, non-blocking, and must not retain the frame past the call.
type FrameSink func(frame *models.Frame)

// OutputConfig is the fixed delivery format every session output is
// configured for.
type OutputConfig struct {
	Codec     string // bitstream codec, "h264"
	FrameRate int    // requested capture rate
}

// Backend abstracts the OS capture subsystem.
type Backend interface {
	// NewInput binds a device and negotiates its source format. Fails when
	// the device is busy or its format is unsupported; such failures are
	// non-fatal to discovery.
	NewInput(device models.CaptureDevice) (Input, error)

	// NewOutput constructs an output for the fixed delivery format. The
	// output always discards late frames: when the consumer lags, the
	// freshest frame replaces the stale one instead of queuing behind it.
	NewOutput(cfg OutputConfig) (Output, error)
}

// Input is a configured connection to one capture device.
type Input interface {
	Device() models.CaptureDevice
	// Dimensions returns the negotiated source size.
	Dimensions() (width, height int)
	Close() error
}

// Output turns an input's stream into frame deliveries.
type Output interface {
	// Bind attaches the delivery callback and its dedicated delivery queue
	// to this output. Must be called before Start.
	Bind(in Input, sink FrameSink) error
	Start() error
	// Stop halts delivery and releases the output. Idempotent.
	Stop() error
	// Drops returns the number of late frames discarded so far.
	Drops() uint64
}
