package models

import "time"

// Status is the published state consumed by UI clients. It is a value
// snapshot: the controller republishes a fresh copy on every relayed event,
// so readers never observe a half-updated view.
type Status struct {
	Connected            bool            `json:"connected"`
	Devices              []CaptureDevice `json:"devices"`
	StatusMessage        string          `json:"status_message"`
	Discovering          bool            `json:"discovering"`
	ManualSelectRequired bool            `json:"manual_select_required"`
	Recording            bool            `json:"recording"`
	RecordingDuration    time.Duration   `json:"recording_duration"`
	RecordingFrames      uint64          `json:"recording_frames"`
	CaptureDrops         uint64          `json:"capture_drops"`
	Quality              Quality         `json:"quality"`
}
