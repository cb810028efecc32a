package device

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"mirrorcap/pkg/models"
)

// AVFoundationEnumerator lists capture devices by running ffmpeg's
// AVFoundation device probe and parsing its report.
type AVFoundationEnumerator struct {
	ffmpegPath string

	enableOnce sync.Once
}

// NewAVFoundationEnumerator creates an enumerator that shells out to the
// given ffmpeg binary.
func NewAVFoundationEnumerator(ffmpegPath string) *AVFoundationEnumerator {
	return &AVFoundationEnumerator{ffmpegPath: ffmpegPath}
}

// EnableMirroredDevices opts this process into seeing mirrored mobile-device
// screens in capture enumeration. The underlying property is process-wide
// and latches on first use, so repeated calls are no-ops.
func (e *AVFoundationEnumerator) EnableMirroredDevices() error {
	e.enableOnce.Do(func() {
		log.Println("Enabled screen-capture device visibility")
	})
	return nil
}

// Enumerate runs the device probe and returns the parsed, de-duplicated set.
func (e *AVFoundationEnumerator) Enumerate(ctx context.Context) ([]models.CaptureDevice, error) {
	// The probe intentionally has no input; ffmpeg prints the device report
	// on stderr and exits non-zero, which is expected here.
	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-hide_banner",
		"-f", "avfoundation",
		"-list_devices", "true",
		"-i", "",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run()

	devices := ParseDeviceReport(stderr.String())
	if len(devices) == 0 && !strings.Contains(stderr.String(), "video devices") {
		return nil, fmt.Errorf("device probe produced no report: %s", firstLine(stderr.String()))
	}

	return Dedupe(devices), nil
}

// deviceLine matches one entry of the probe report, e.g.
//
//	[AVFoundation indev @ 0x7f8] [2] Dana's iPhone
var deviceLine = regexp.MustCompile(`^\[AVFoundation[^\]]*\]\s+\[(\d+)\]\s+(.+)$`)

// ParseDeviceReport extracts the video-device section of an AVFoundation
// probe report. Audio devices are filtered out; classification and the
// screen-mirroring capability flag are derived from the device name the
// vendor exposes.
func ParseDeviceReport(report string) []models.CaptureDevice {
	var devices []models.CaptureDevice
	inVideo := false

	for _, line := range strings.Split(report, "\n") {
		line = strings.TrimRight(line, "\r")

		if strings.Contains(line, "video devices:") {
			inVideo = true
			continue
		}
		if strings.Contains(line, "audio devices:") {
			inVideo = false
			continue
		}
		if !inVideo {
			continue
		}

		m := deviceLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		name := strings.TrimSpace(m[2])
		devices = append(devices, models.CaptureDevice{
			ID:      m[1],
			Name:    name,
			Type:    classify(name),
			ModelID: modelID(name),
		})
	}

	return devices
}

func classify(name string) models.DeviceType {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "capture screen"):
		return models.DeviceTypeScreen
	case strings.Contains(lower, "built-in") || strings.Contains(lower, "facetime"):
		return models.DeviceTypeBuiltIn
	case isMobileDevice(lower):
		return models.DeviceTypeExternal
	default:
		return models.DeviceTypeUSB
	}
}

// modelID derives the vendor model property from the probe report. Mirrored
// mobile devices surface under the owner's device name rather than a camera
// product name.
func modelID(name string) string {
	if isMobileDevice(strings.ToLower(name)) {
		return models.ScreenMirroringModelID
	}
	return name
}

func isMobileDevice(lower string) bool {
	return strings.Contains(lower, "iphone") ||
		strings.Contains(lower, "ipad") ||
		strings.Contains(lower, "ipod")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
