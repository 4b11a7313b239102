package api

import (
	"YoloDetServer/engine"
	iface "YoloDetServer/interface"
	"YoloDetServer/logger"
	"YoloDetServer/monitor"
	"YoloDetServer/preprocess"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxFrameBytes = 20 * 1024 * 1024

// Server exposes the registered detectors over HTTP and websocket.
type Server struct {
	Registry *engine.Registry
	Monitor  *monitor.Monitor
	// IdleTimeout closes a websocket stream that sent no frame for this long.
	IdleTimeout time.Duration
}

type detectRequest struct {
	Image  string `json:"image" binding:"required"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type detectResponse struct {
	*iface.DetectionResult
	TotalMs float64 `json:"totalTimeMs"`
	Fps     float64 `json:"fps"`
}

func newDetectResponse(res *iface.DetectionResult) detectResponse {
	return detectResponse{DetectionResult: res, TotalMs: res.TotalTimeMs(), Fps: res.FPS()}
}

// decodeBase64Image accepts plain base64 or a data:image/...;base64, URL.
func decodeBase64Image(b64 string) ([]byte, error) {
	if i := strings.Index(b64, ","); i != -1 && strings.HasPrefix(b64, "data:") {
		b64 = b64[i+1:]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
}

func (s *Server) count(method string) {
	if s.Monitor != nil {
		s.Monitor.Request("http", method)
	}
}

func requestLogger() gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/api/engines", s.listEngines)
	r.GET("/api/engines/:id", s.checkEngine)
	r.POST("/api/engines/:id/detect", s.detect)
	r.POST("/api/image/info", s.imageInfo)
	r.GET("/ws/:id", s.stream)
	if s.Monitor != nil {
		r.GET("/metrics", gin.WrapH(s.Monitor.Handler()))
	}
	return r
}

func (s *Server) listEngines(c *gin.Context) {
	s.count("listEngines")
	c.JSON(http.StatusOK, gin.H{"data": s.Registry.List()})
}

func (s *Server) checkEngine(c *gin.Context) {
	s.count("checkEngine")
	info, ok := s.Registry.Info(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Detector not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": info})
}

// readFrame takes either a JSON body with a base64 image or the raw bytes of
// the request body; raw pixel formats pass format, width and height as query
// parameters.
func readFrame(c *gin.Context) (iface.ImageData, error) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req detectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return iface.ImageData{}, err
		}
		data, err := decodeBase64Image(req.Image)
		if err != nil {
			return iface.ImageData{}, fmt.Errorf("invalid base64 image: %w", err)
		}
		format, err := iface.ParsePixelFormat(req.Format)
		if err != nil {
			return iface.ImageData{}, err
		}
		return iface.ImageData{Data: data, Width: req.Width, Height: req.Height, Format: format}, nil
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxFrameBytes))
	if err != nil {
		return iface.ImageData{}, err
	}
	format, err := iface.ParsePixelFormat(c.Query("format"))
	if err != nil {
		return iface.ImageData{}, err
	}
	width, _ := strconv.Atoi(c.Query("width"))
	height, _ := strconv.Atoi(c.Query("height"))
	return iface.ImageData{Data: data, Width: width, Height: height, Format: format}, nil
}

func (s *Server) detect(c *gin.Context) {
	s.count("detect")
	detector, ok := s.Registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Detector not found"})
		return
	}
	img, err := readFrame(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := detector.Detect(c.Request.Context(), img)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if res == nil {
		if !detector.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "detector not ready"})
			return
		}
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "detector busy, frame dropped"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newDetectResponse(res)})
}

// imageInfo reports format and size of an encoded image without decoding the
// pixels.
func (s *Server) imageInfo(c *gin.Context) {
	s.count("imageInfo")
	img, err := readFrame(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if img.Format != iface.Encoded {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only encoded images carry a header"})
		return
	}
	info, err := preprocess.ImageInfo(img.Data)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": info})
}
