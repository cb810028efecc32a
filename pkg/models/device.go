package models

// DeviceType classifies how a capture device is attached to the host.
type DeviceType string

const (
	DeviceTypeBuiltIn  DeviceType = "builtin"
	DeviceTypeUSB      DeviceType = "usb"
	DeviceTypeExternal DeviceType = "external"
	DeviceTypeScreen   DeviceType = "screen"
)

// ScreenMirroringModelID is the vendor-specific model property that marks a
// capture device as the mirrored screen of an externally connected mobile
// device. The capture subsystem only exposes such devices after the
// screen-capture visibility switch has been enabled.
const ScreenMirroringModelID = "iOS Device"

// CaptureDevice identifies a selectable video source. Instances are
// immutable once enumerated; a new enumeration pass produces a fresh set.
// Equality is by ID.
type CaptureDevice struct {
	ID      string     `json:"id"`       // stable device identifier
	Name    string     `json:"name"`     // human-readable name
	Type    DeviceType `json:"type"`     // attachment classification
	ModelID string     `json:"model_id"` // vendor-specific model property
}

// IsScreenMirroringSource reports whether this device exposes the mirrored
// screen of a connected mobile device, derived from the vendor model
// property.
func (d CaptureDevice) IsScreenMirroringSource() bool {
	return d.ModelID == ScreenMirroringModelID
}
