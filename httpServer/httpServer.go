package httpServer

import (
	"net/http"
	"time"

	"mirrorcap/internal/controller"
	"mirrorcap/internal/metrics"
	"mirrorcap/internal/storage"
	"mirrorcap/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wraps the HTTP server with dependencies
type Server struct {
	router     *gin.Engine
	controller *controller.Controller
	store      storage.Storage
	metrics    *metrics.Metrics
}

// New creates a new HTTP server
func New(ctrl *controller.Controller, store storage.Storage, m *metrics.Metrics) *Server {
	s := &Server{
		controller: ctrl,
		store:      store,
		metrics:    m,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	router := gin.Default()
	router.Use(s.observeRequests())

	api := router.Group("/api")
	{
		api.GET("/ping", s.handlePing)
		api.GET("/v1/status", s.handleStatus)
		api.GET("/v1/devices", s.handleListDevices)
		api.POST("/v1/discovery/start", s.handleStartDiscovery)
		api.POST("/v1/discovery/stop", s.handleStopDiscovery)
		api.POST("/v1/devices/:deviceID/select", s.handleSelectDevice)
		api.POST("/v1/recording/toggle", s.handleToggleRecording)
		api.POST("/v1/quality", s.handleSetQuality)
		api.POST("/v1/screenshot", s.handleScreenshot)
		api.GET("/v1/recordings", s.handleListRecordings)
		api.GET("/v1/recordings/:name", s.handleGetRecording)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router = router
}

// Run starts the HTTP server
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// observeRequests records request counts and latency per route.
func (s *Server) observeRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		s.metrics.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start).Seconds())
	}
}

// Handler implementations

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
		"time":    time.Now().Unix(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.Status())
}

func (s *Server) handleListDevices(c *gin.Context) {
	devices := s.controller.Devices()
	c.JSON(http.StatusOK, gin.H{
		"devices": devices,
		"total":   len(devices),
	})
}

func (s *Server) handleStartDiscovery(c *gin.Context) {
	s.controller.StartDiscovery()
	c.JSON(http.StatusAccepted, gin.H{"message": "discovery started"})
}

func (s *Server) handleStopDiscovery(c *gin.Context) {
	s.controller.StopDiscovery()
	c.JSON(http.StatusOK, gin.H{"message": "discovery stopped"})
}

func (s *Server) handleSelectDevice(c *gin.Context) {
	deviceID := c.Param("deviceID")
	if err := s.controller.SelectDevice(deviceID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "attaching device", "device_id": deviceID})
}

func (s *Server) handleToggleRecording(c *gin.Context) {
	if err := s.controller.ToggleRecording(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.controller.Status())
}

func (s *Server) handleSetQuality(c *gin.Context) {
	var req struct {
		Quality string `json:"quality" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quality, err := models.ParseQuality(req.Quality)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.controller.SetQuality(quality)
	c.JSON(http.StatusOK, gin.H{"quality": quality})
}

func (s *Server) handleScreenshot(c *gin.Context) {
	name, err := s.controller.TakeScreenshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name})
}

func (s *Server) handleListRecordings(c *gin.Context) {
	artifacts, err := s.store.List(".")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list recordings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recordings": artifacts,
		"total":      len(artifacts),
	})
}

func (s *Server) handleGetRecording(c *gin.Context) {
	name := c.Param("name")

	exists, err := s.store.Exists(name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read recording"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "recording not found"})
		return
	}

	rs, err := s.store.ReadSeeker(name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open recording"})
		return
	}
	http.ServeContent(c.Writer, c.Request, name, time.Time{}, rs)
}
