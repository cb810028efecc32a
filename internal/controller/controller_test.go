package controller_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"mirrorcap/internal/capture"
	"mirrorcap/internal/controller"
	"mirrorcap/internal/discovery"
	"mirrorcap/internal/distributor"
	"mirrorcap/internal/metrics"
	"mirrorcap/internal/recorder"
	"mirrorcap/internal/snapshot"
	"mirrorcap/internal/storage"
	"mirrorcap/pkg/models"
)

// The metrics registry is process-wide, so the whole test binary shares one
// instance.
var testMetrics = metrics.New()

var phone = models.CaptureDevice{ID: "2", Name: "Dana's iPhone", Type: models.DeviceTypeExternal, ModelID: models.ScreenMirroringModelID}

type stubEnumerator struct {
	mu     sync.Mutex
	script [][]models.CaptureDevice
	calls  int
}

func (s *stubEnumerator) EnableMirroredDevices() error { return nil }

func (s *stubEnumerator) Enumerate(ctx context.Context) ([]models.CaptureDevice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	idx := s.calls - 1
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	if idx < 0 {
		return nil, nil
	}
	return s.script[idx], nil
}

type stubInput struct{ dev models.CaptureDevice }

func (s stubInput) Device() models.CaptureDevice { return s.dev }
func (s stubInput) Dimensions() (int, int)       { return 1170, 2532 }
func (s stubInput) Close() error                 { return nil }

type stubOutput struct{ drops uint64 }

func (stubOutput) Bind(in capture.Input, sink capture.FrameSink) error { return nil }
func (stubOutput) Start() error                                        { return nil }
func (stubOutput) Stop() error                                         { return nil }
func (s stubOutput) Drops() uint64                                     { return s.drops }

type stubBackend struct{ outputDrops uint64 }

func (stubBackend) NewInput(device models.CaptureDevice) (capture.Input, error) {
	return stubInput{dev: device}, nil
}

func (b stubBackend) NewOutput(cfg capture.OutputConfig) (capture.Output, error) {
	return stubOutput{drops: b.outputDrops}, nil
}

type nullEncoder struct{}

func (nullEncoder) ReadyForMore() bool              { return true }
func (nullEncoder) Append(frame *models.Frame) error { return nil }
func (nullEncoder) Finish() error                   { return nil }

func newTestController(t *testing.T, enum *stubEnumerator) *controller.Controller {
	return newTestControllerWithBackend(t, enum, stubBackend{})
}

func newTestControllerWithBackend(t *testing.T, enum *stubEnumerator, backend stubBackend) *controller.Controller {
	t.Helper()

	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}

	dist := distributor.New()
	grabber := snapshot.New("ffmpeg", store)
	rec := recorder.New(t.TempDir(), 30, store, recorder.AutoSavePrompter{},
		func(path string, width, height, frameRate int) (recorder.Encoder, error) {
			f, err := os.Create(path)
			if err != nil {
				return nil, err
			}
			f.Close()
			return nullEncoder{}, nil
		})
	dist.Subscribe("recorder", func(frame *models.Frame) { rec.Append(frame) })

	manager := capture.NewManager(backend, capture.OutputConfig{Codec: "h264", FrameRate: 30}, dist.Dispatch)
	disc := discovery.New(enum, manager, 5*time.Millisecond, 5)

	ctrl := controller.New(disc, manager, rec, dist, grabber, testMetrics)
	ctrl.Run()
	t.Cleanup(ctrl.Cleanup)
	return ctrl
}

func waitStatus(t *testing.T, ctrl *controller.Controller, desc string, cond func(models.Status) bool) models.Status {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		s := ctrl.Status()
		if cond(s) {
			return s
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s; last status %+v", desc, s)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestDiscoveryFindsAndConnectsDevice(t *testing.T) {
	enum := &stubEnumerator{script: [][]models.CaptureDevice{
		nil,
		{phone},
	}}
	ctrl := newTestController(t, enum)

	ctrl.StartDiscovery()

	s := waitStatus(t, ctrl, "connection", func(s models.Status) bool { return s.Connected })
	if s.Discovering {
		t.Error("discovery should stop once connected")
	}

	devices := ctrl.Devices()
	if len(devices) != 1 || devices[0].ID != phone.ID {
		t.Errorf("Devices() = %v, want the phone", devices)
	}
}

func TestManualSelectionFlow(t *testing.T) {
	webcam := models.CaptureDevice{ID: "0", Name: "FaceTime HD Camera", Type: models.DeviceTypeBuiltIn, ModelID: "FaceTime HD Camera"}
	enum := &stubEnumerator{script: [][]models.CaptureDevice{{webcam}}}
	ctrl := newTestController(t, enum)

	ctrl.StartDiscovery()
	waitStatus(t, ctrl, "manual selection", func(s models.Status) bool { return s.ManualSelectRequired })

	if err := ctrl.SelectDevice("nope"); err == nil {
		t.Error("selecting an unknown device should fail")
	}

	if err := ctrl.SelectDevice(webcam.ID); err != nil {
		t.Fatalf("SelectDevice failed: %v", err)
	}
	s := waitStatus(t, ctrl, "connection", func(s models.Status) bool { return s.Connected })
	if s.ManualSelectRequired {
		t.Error("manual selection flag should clear on select")
	}
}

func TestToggleRecordingLifecycle(t *testing.T) {
	enum := &stubEnumerator{script: [][]models.CaptureDevice{{phone}}}
	ctrl := newTestController(t, enum)

	if err := ctrl.ToggleRecording(); err == nil {
		t.Error("recording without an attached device should fail")
	}

	ctrl.StartDiscovery()
	waitStatus(t, ctrl, "connection", func(s models.Status) bool { return s.Connected })

	if err := ctrl.ToggleRecording(); err != nil {
		t.Fatalf("starting recording failed: %v", err)
	}
	waitStatus(t, ctrl, "recording start", func(s models.Status) bool { return s.Recording })

	if err := ctrl.ToggleRecording(); err != nil {
		t.Fatalf("stopping recording failed: %v", err)
	}
	waitStatus(t, ctrl, "recording end", func(s models.Status) bool { return !s.Recording })
}

func TestSetQuality(t *testing.T) {
	enum := &stubEnumerator{script: [][]models.CaptureDevice{{phone}}}
	ctrl := newTestController(t, enum)

	ctrl.SetQuality(models.QualityLow)
	if got := ctrl.Status().Quality; got != models.QualityLow {
		t.Errorf("Status().Quality = %s, want low", got)
	}

	ctrl.StartDiscovery()
	waitStatus(t, ctrl, "connection", func(s models.Status) bool { return s.Connected })
	if err := ctrl.ToggleRecording(); err != nil {
		t.Fatalf("starting recording failed: %v", err)
	}
	ctrl.SetQuality(models.QualityHigh)
	if got := ctrl.Status().Quality; got != models.QualityHigh {
		t.Errorf("Status().Quality = %s while recording, want high", got)
	}
	ctrl.ToggleRecording()
	waitStatus(t, ctrl, "recording end", func(s models.Status) bool { return !s.Recording })
}

func TestStatusReportsCaptureDrops(t *testing.T) {
	enum := &stubEnumerator{script: [][]models.CaptureDevice{{phone}}}
	ctrl := newTestControllerWithBackend(t, enum, stubBackend{outputDrops: 7})

	if got := ctrl.Status().CaptureDrops; got != 0 {
		t.Errorf("CaptureDrops = %d before attach, want 0", got)
	}

	ctrl.StartDiscovery()
	waitStatus(t, ctrl, "connection", func(s models.Status) bool { return s.Connected })
	if got := ctrl.Status().CaptureDrops; got != 7 {
		t.Errorf("CaptureDrops = %d, want 7", got)
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	enum := &stubEnumerator{script: [][]models.CaptureDevice{{phone}}}
	ctrl := newTestController(t, enum)

	ctrl.StartDiscovery()
	waitStatus(t, ctrl, "connection", func(s models.Status) bool { return s.Connected })

	ctrl.Cleanup()
	ctrl.Cleanup()
}
