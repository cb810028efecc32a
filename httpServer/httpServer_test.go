package httpServer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

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

var testMetrics = metrics.New()

type stubEnumerator struct{}

func (stubEnumerator) EnableMirroredDevices() error { return nil }
func (stubEnumerator) Enumerate(ctx context.Context) ([]models.CaptureDevice, error) {
	return nil, nil
}

type stubInput struct{ dev models.CaptureDevice }

func (s stubInput) Device() models.CaptureDevice { return s.dev }
func (s stubInput) Dimensions() (int, int)       { return 1920, 1080 }
func (s stubInput) Close() error                 { return nil }

type stubOutput struct{}

func (stubOutput) Bind(in capture.Input, sink capture.FrameSink) error { return nil }
func (stubOutput) Start() error                                        { return nil }
func (stubOutput) Stop() error                                         { return nil }
func (stubOutput) Drops() uint64                                       { return 0 }

type stubBackend struct{}

func (stubBackend) NewInput(device models.CaptureDevice) (capture.Input, error) {
	return stubInput{dev: device}, nil
}

func (stubBackend) NewOutput(cfg capture.OutputConfig) (capture.Output, error) {
	return stubOutput{}, nil
}

type nullEncoder struct{}

func (nullEncoder) ReadyForMore() bool               { return true }
func (nullEncoder) Append(frame *models.Frame) error { return nil }
func (nullEncoder) Finish() error                    { return nil }

func newTestServer(t *testing.T) (*Server, storage.Storage) {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	manager := capture.NewManager(stubBackend{}, capture.OutputConfig{Codec: "h264", FrameRate: 30}, dist.Dispatch)
	disc := discovery.New(stubEnumerator{}, manager, time.Hour, 10)
	ctrl := controller.New(disc, manager, rec, dist, grabber, testMetrics)
	ctrl.Run()
	t.Cleanup(ctrl.Cleanup)

	return New(ctrl, store, testMetrics), store
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/ping", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/ping = %d, want 200", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp["message"] != "pong" {
		t.Errorf("message = %v, want pong", resp["message"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/v1/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/status = %d, want 200", w.Code)
	}

	var status models.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if status.Connected || status.Recording {
		t.Errorf("fresh status = %+v, want disconnected and not recording", status)
	}
}

func TestSetQualityEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/api/v1/quality", `{"quality":"medium"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/v1/quality = %d, want 200: %s", w.Code, w.Body.String())
	}

	w = doRequest(t, s, http.MethodPost, "/api/v1/quality", `{"quality":"ultra"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid quality = %d, want 400", w.Code)
	}

	w = doRequest(t, s, http.MethodPost, "/api/v1/quality", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing quality = %d, want 400", w.Code)
	}
}

func TestToggleRecordingWithoutDevice(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/api/v1/recording/toggle", "")
	if w.Code != http.StatusConflict {
		t.Errorf("toggle without device = %d, want 409", w.Code)
	}
}

func TestSelectUnknownDevice(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/api/v1/devices/99/select", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("select unknown device = %d, want 404", w.Code)
	}
}

func TestRecordingsEndpoints(t *testing.T) {
	s, store := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/v1/recordings", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/recordings = %d, want 200", w.Code)
	}

	if err := store.Write("clip.mp4", []byte("mp4data")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	w = doRequest(t, s, http.MethodGet, "/api/v1/recordings", "")
	var list struct {
		Recordings []models.Artifact `json:"recordings"`
		Total      int               `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if list.Total != 1 || list.Recordings[0].Name != "clip.mp4" {
		t.Errorf("recordings list = %+v", list)
	}

	w = doRequest(t, s, http.MethodGet, "/api/v1/recordings/clip.mp4", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET recording = %d, want 200", w.Code)
	}
	if w.Body.String() != "mp4data" {
		t.Errorf("recording body = %q", w.Body.String())
	}

	w = doRequest(t, s, http.MethodGet, "/api/v1/recordings/missing.mp4", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("GET missing recording = %d, want 404", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "mirrorcap_") {
		t.Error("metrics exposition is missing mirrorcap collectors")
	}
}
