package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// HTTP Server
	HTTPAddr string

	// Discovery
	DiscoveryInterval    time.Duration
	DiscoveryMaxAttempts int

	// Capture
	FFmpegPath       string
	CaptureFrameRate int

	// Recording
	TempDir string
	Quality string

	// Storage
	StorageType string // "local" or "gcs"
	StorageDir  string

	// GCS (when StorageType == "gcs")
	GCSProjectID  string
	GCSBucketName string
	GCSBaseDir    string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		DiscoveryInterval:    getDurationEnv("DISCOVERY_INTERVAL", 2*time.Second),
		DiscoveryMaxAttempts: getIntEnv("DISCOVERY_MAX_ATTEMPTS", 10),
		FFmpegPath:           getEnv("FFMPEG_PATH", "ffmpeg"),
		CaptureFrameRate:     getIntEnv("CAPTURE_FRAMERATE", 30),
		TempDir:              getEnv("TEMP_DIR", os.TempDir()),
		Quality:              getEnv("QUALITY", "high"),
		StorageType:          getEnv("STORAGE_TYPE", "local"),
		StorageDir:           getEnv("STORAGE_DIR", "./data/recordings"),
		GCSProjectID:         getEnv("GCS_PROJECT_ID", ""),
		GCSBucketName:        getEnv("GCS_BUCKET_NAME", ""),
		GCSBaseDir:           getEnv("GCS_BASE_DIR", "recordings"),
	}
}

// Helper functions to get environment variables with defaults

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
