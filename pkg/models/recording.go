package models

import (
	"fmt"
	"time"
)

// RecordingState represents the current state of the recording pipeline.
type RecordingState string

const (
	RecordingStateIdle        RecordingState = "idle"
	RecordingStateConfiguring RecordingState = "configuring"
	RecordingStateWriting     RecordingState = "writing"
	RecordingStateFinalizing  RecordingState = "finalizing"
)

// Quality selects the output-size policy applied at recording start.
type Quality string

const (
	QualityLow      Quality = "low"
	QualityMedium   Quality = "medium"
	QualityHigh     Quality = "high"
	QualityOriginal Quality = "original"
)

// ParseQuality maps a user-supplied string to a Quality value.
func ParseQuality(s string) (Quality, error) {
	switch Quality(s) {
	case QualityLow, QualityMedium, QualityHigh, QualityOriginal:
		return Quality(s), nil
	}
	return "", fmt.Errorf("unknown quality %q", s)
}

// TargetWidth returns the fixed output width for the given orientation, or 0
// when the quality carries no override (original size).
func (q Quality) TargetWidth(portrait bool) int {
	var landscape, portraitW int
	switch q {
	case QualityLow:
		landscape, portraitW = 854, 480
	case QualityMedium:
		landscape, portraitW = 1280, 720
	case QualityHigh:
		landscape, portraitW = 1920, 1080
	default:
		return 0
	}
	if portrait {
		return portraitW
	}
	return landscape
}

// RecordingStats is a snapshot of one recording attempt, published while the
// pipeline is writing and in the terminal status after it finishes.
type RecordingStats struct {
	State      RecordingState `json:"state"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	FrameCount uint64         `json:"frame_count"`
	Duration   time.Duration  `json:"duration"`
	TempPath   string         `json:"-"`
}
