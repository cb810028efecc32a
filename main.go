package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"mirrorcap/config"
	"mirrorcap/httpServer"
	"mirrorcap/internal/capture"
	"mirrorcap/internal/controller"
	"mirrorcap/internal/device"
	"mirrorcap/internal/discovery"
	"mirrorcap/internal/distributor"
	"mirrorcap/internal/metrics"
	"mirrorcap/internal/muxer"
	"mirrorcap/internal/recorder"
	"mirrorcap/internal/snapshot"
	"mirrorcap/internal/storage"
	"mirrorcap/pkg/models"
)

func main() {
	log.Println("Starting MirrorCap...")

	// Load configuration
	cfg := config.Load()
	log.Printf("HTTP Server: %s", cfg.HTTPAddr)
	log.Printf("Storage Directory: %s", cfg.StorageDir)

	// Initialize storage
	var storageBackend storage.Storage

	if cfg.StorageType == "gcs" {
		if cfg.GCSProjectID == "" || cfg.GCSBucketName == "" {
			log.Fatal("GCS_PROJECT_ID and GCS_BUCKET_NAME must be set when STORAGE_TYPE=gcs")
		}

		ctx := context.Background()
		gcsStorage, err := storage.NewGCSStorage(ctx, cfg.GCSProjectID, cfg.GCSBucketName, cfg.GCSBaseDir)
		if err != nil {
			log.Fatalf("Failed to initialize GCS storage: %v", err)
		}
		storageBackend = gcsStorage
		log.Printf("Storage initialized: GCS bucket=%s, project=%s, baseDir=%s",
			cfg.GCSBucketName, cfg.GCSProjectID, cfg.GCSBaseDir)
	} else {
		localStorage, err := storage.NewLocalStorage(cfg.StorageDir)
		if err != nil {
			log.Fatalf("Failed to initialize local storage: %v", err)
		}
		storageBackend = localStorage
		log.Printf("Storage initialized: Local directory=%s", localStorage.GetFullPath("."))
	}

	// Initialize metrics
	m := metrics.New()
	log.Println("Prometheus metrics initialized")

	// Frame fan-out
	dist := distributor.New()

	// Screenshot grabber
	grabber := snapshot.New(cfg.FFmpegPath, storageBackend)

	// Recording pipeline
	rec := recorder.New(cfg.TempDir, cfg.CaptureFrameRate, storageBackend, recorder.AutoSavePrompter{},
		func(path string, width, height, frameRate int) (recorder.Encoder, error) {
			return muxer.NewMP4Writer(path, width, height, frameRate)
		})
	if quality, err := models.ParseQuality(cfg.Quality); err == nil {
		rec.SetQuality(quality)
	} else {
		log.Printf("Ignoring invalid QUALITY %q, using %s", cfg.Quality, rec.Quality())
	}

	// Delivery order: metrics first, screenshot grabber, then the recorder.
	dist.Subscribe("metrics", func(frame *models.Frame) {
		m.RecordFrame(len(frame.Data), frame.IsKeyFrame)
	})
	dist.Subscribe("snapshot", grabber.HandleFrame)
	dist.Subscribe("recorder", func(frame *models.Frame) {
		if rec.Append(frame) {
			m.RecordAppend()
		} else if rec.State() == models.RecordingStateWriting {
			m.RecordDroppedFrame("encoder_busy")
		}
	})

	// Capture session
	backend := capture.NewAVFoundationBackend(cfg.FFmpegPath)
	manager := capture.NewManager(backend, capture.OutputConfig{
		Codec:     "h264",
		FrameRate: cfg.CaptureFrameRate,
	}, dist.Dispatch)

	// Device discovery
	enumerator := device.NewAVFoundationEnumerator(cfg.FFmpegPath)
	disc := discovery.New(enumerator, manager, cfg.DiscoveryInterval, cfg.DiscoveryMaxAttempts)

	// Controller ties it together
	ctrl := controller.New(disc, manager, rec, dist, grabber, m)
	ctrl.Run()
	log.Println("Capture controller started")

	// Shut the pipeline down cleanly on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received %s, shutting down", sig)
		ctrl.Cleanup()
		os.Exit(0)
	}()

	// Initialize HTTP server
	httpSrv := httpServer.New(ctrl, storageBackend, m)
	log.Println("---")
	log.Println("API Endpoints:")
	log.Println("  GET  /api/ping")
	log.Println("  GET  /api/v1/status")
	log.Println("  GET  /api/v1/devices")
	log.Println("  POST /api/v1/discovery/start")
	log.Println("  POST /api/v1/discovery/stop")
	log.Println("  POST /api/v1/devices/:deviceID/select")
	log.Println("  POST /api/v1/recording/toggle")
	log.Println("  POST /api/v1/quality")
	log.Println("  POST /api/v1/screenshot")
	log.Println("  GET  /api/v1/recordings")
	log.Println("  GET  /api/v1/recordings/:name")
	log.Println("---")

	// Start HTTP server (blocking)
	if err := httpSrv.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("HTTP server failed: %v", err)
	}
}
