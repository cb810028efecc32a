// Package device enumerates the host's video capture devices and classifies
// which of them expose the mirrored screen of a connected mobile device.
package device

import (
	"context"

	"mirrorcap/pkg/models"
)

// Enumerator lists candidate capture devices across the relevant media and
// device-type filters.
//
// Implementations must guarantee:
//   - EnableMirroredDevices() is idempotent and safe to call repeatedly
//     (process-wide one-shot toggle, no teardown required)
//   - Enumerate() returns a fresh, de-duplicated set on every call
type Enumerator interface {
	// EnableMirroredDevices flips the platform's screen-capture-device
	// visibility switch, after which mirrored mobile devices appear in
	// enumeration results.
	EnableMirroredDevices() error

	// Enumerate returns the current candidate device set.
	Enumerate(ctx context.Context) ([]models.CaptureDevice, error)
}

// Dedupe removes devices with duplicate IDs, keeping first occurrence.
// Enumeration spans several device-type filters and the same physical device
// can surface under more than one of them.
func Dedupe(devices []models.CaptureDevice) []models.CaptureDevice {
	seen := make(map[string]struct{}, len(devices))
	out := devices[:0]
	for _, d := range devices {
		if _, ok := seen[d.ID]; ok {
			continue
		}
		seen[d.ID] = struct{}{}
		out = append(out, d)
	}
	return out
}

// FindMirroringSource returns the first device whose capability flag marks
// it as a screen-mirroring source, or false when the set has none.
func FindMirroringSource(devices []models.CaptureDevice) (models.CaptureDevice, bool) {
	for _, d := range devices {
		if d.IsScreenMirroringSource() {
			return d, true
		}
	}
	return models.CaptureDevice{}, false
}
